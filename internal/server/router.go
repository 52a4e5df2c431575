// Package server exposes the operations HTTP surface: health, the game
// list and manual run control.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pysugar/checkin-nexus/internal/games"
	"github.com/pysugar/checkin-nexus/internal/scheduler"
	"gorm.io/gorm"
)

// Deps are the collaborators of the router. NextRun may be nil when no
// schedule is running.
type Deps struct {
	DB         *gorm.DB
	Catalog    *games.Catalog
	Runner     *scheduler.Runner
	Logs       LogReader
	NextRun    func() (time.Time, error)
	RunContext context.Context
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", HealthHandler())

	r.Route("/api", func(r chi.Router) {
		r.Use(APIKeyAuth(d.DB))
		r.Get("/games", GamesHandler(d.Catalog))
		r.Get("/schedule", ScheduleHandler(d.NextRun))
		r.Post("/checkin/run", RunHandler(d.RunContext, d.Runner))
		r.Get("/checkin/last", LastRunHandler(d.Runner))
		if d.Logs != nil {
			r.Get("/accounts/{id}/logs", AccountLogsHandler(d.Logs))
		}
	})
	return r
}
