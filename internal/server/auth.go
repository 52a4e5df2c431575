package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/pysugar/checkin-nexus/internal/db"
	"gorm.io/gorm"
)

// APIKeyAuth validates the admin key from the Authorization or x-api-key header.
func APIKeyAuth(database *gorm.DB) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			expectedKey := db.GetAPIKey(database)
			if expectedKey == "" {
				// No key configured yet, allow (first run)
				next.ServeHTTP(w, r)
				return
			}

			if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && keyEqual(token, expectedKey) {
				next.ServeHTTP(w, r)
				return
			}
			if keyEqual(r.Header.Get("x-api-key"), expectedKey) {
				next.ServeHTTP(w, r)
				return
			}

			writeError(w, http.StatusUnauthorized, "Invalid API key")
		})
	}
}

func keyEqual(got, want string) bool {
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
