// Package logging carries the run ID through context so log lines from one
// check-in run can be correlated.
package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
)

type contextKey string

const runIDKey contextKey = "runId"

// GenerateRunID creates an 8-character hex run ID.
func GenerateRunID() string {
	b := make([]byte, 4)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// WithRunID injects a run ID into the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID retrieves the run ID from the context.
// Returns empty string if not found.
func RunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// Printf logs with the run ID of ctx as prefix.
func Printf(ctx context.Context, format string, args ...any) {
	if id := RunID(ctx); id != "" {
		log.Printf("[run %s] %s", id, fmt.Sprintf(format, args...))
		return
	}
	log.Printf(format, args...)
}
