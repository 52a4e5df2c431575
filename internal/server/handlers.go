package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pysugar/checkin-nexus/internal/db/models"
	"github.com/pysugar/checkin-nexus/internal/games"
	"github.com/pysugar/checkin-nexus/internal/scheduler"
	"github.com/pysugar/checkin-nexus/internal/version"
)

// LogReader lists recent check-in rows of an account.
type LogReader interface {
	RecentLogs(ctx context.Context, accountID string, limit int) ([]models.CheckinLog, error)
}

// HealthHandler reports liveness and the build identity.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version.Version,
			"commit":  version.Commit,
		})
	}
}

// GamesHandler lists the loaded game descriptors.
func GamesHandler(catalog *games.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type gameView struct {
			ID          string `json:"id"`
			DisplayName string `json:"display_name"`
			Protocol    string `json:"protocol"`
			Enabled     bool   `json:"enabled"`
		}
		list := catalog.List()
		out := make([]gameView, 0, len(list))
		for _, d := range list {
			out = append(out, gameView{ID: d.ID, DisplayName: d.DisplayName, Protocol: d.Protocol, Enabled: d.Enabled})
		}
		writeJSON(w, http.StatusOK, map[string]any{"games": out, "count": len(out)})
	}
}

// RunHandler triggers a run and blocks until it finishes. base outlives the
// request so a dropped connection does not abort the run.
func RunHandler(base context.Context, runner *scheduler.Runner) http.HandlerFunc {
	if base == nil {
		base = context.Background()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("🔄 Manual check-in run requested from %s", r.RemoteAddr)
		summary, err := runner.TryRun(base)
		switch {
		case errors.Is(err, scheduler.ErrRunInProgress):
			writeError(w, http.StatusConflict, err.Error())
		case err != nil:
			log.Printf("❌ Manual run failed: %v", err)
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeJSON(w, http.StatusOK, summary)
		}
	}
}

// LastRunHandler returns the most recent run summary.
func LastRunHandler(runner *scheduler.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		last, err := runner.Last()
		if last == nil && err == nil {
			writeError(w, http.StatusNotFound, "no run has completed yet")
			return
		}
		resp := map[string]any{"running": runner.Running()}
		if last != nil {
			resp["summary"] = last
		}
		if err != nil {
			resp["last_error"] = err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ScheduleHandler reports the next scheduled run.
func ScheduleHandler(nextRun func() (time.Time, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if nextRun == nil {
			writeError(w, http.StatusNotFound, "no schedule configured")
			return
		}
		next, err := nextRun()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"next_run": next.Format(time.RFC3339)})
	}
}

// AccountLogsHandler returns the newest check-in rows of one account.
func AccountLogsHandler(logs LogReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "id")
		limit := 30
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 365 {
				writeError(w, http.StatusBadRequest, "limit must be between 1 and 365")
				return
			}
			limit = n
		}
		rows, err := logs.RecentLogs(r.Context(), accountID, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"logs": rows, "count": len(rows)})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"message": msg}})
}
