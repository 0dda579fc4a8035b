// Package http provides HTTP routing and handlers for the local TimeKeeper
// API.
package http

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/atinyakov/TimeKeeper/internal/middleware"
)

// Handlers groups the endpoint handlers mounted by NewRouter.
type Handlers struct {
	Timer    *TimerHandler
	Entries  *EntryHandler
	Projects *ProjectHandler
	Sync     *SyncHandler
}

// NewRouter constructs the local API handler.
//
// Routes:
//
//	GET    /api/status
//	POST   /api/timer/start, /api/timer/stop
//	GET    /api/entries, /api/summary
//	PATCH  /api/entries/{id}, DELETE /api/entries/{id}
//	GET    /api/projects, POST /api/projects
//	PATCH  /api/projects/{id}, DELETE /api/projects/{id}
//	POST   /api/sync, /api/refresh, /api/identity, /api/connectivity
//
// Middleware chain (applied in order):
//  1. WithRequestLogging(logger)
//  2. TokenAuth(apiToken), disabled when apiToken is empty
//  3. AllowContentType("application/json") on requests with a body
func NewRouter(h Handlers, logger *zap.Logger, apiToken string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.WithRequestLogging(logger))
	r.Use(middleware.TokenAuth(apiToken))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.Timer.Status)
		r.Get("/entries", h.Entries.List)
		r.Get("/summary", h.Entries.Summary)
		r.Get("/projects", h.Projects.List)
		r.Delete("/entries/{id}", h.Entries.Delete)
		r.Delete("/projects/{id}", h.Projects.Delete)
		r.Post("/timer/stop", h.Timer.Stop)
		r.Post("/sync", h.Sync.Sync)
		r.Post("/refresh", h.Sync.Refresh)

		// Endpoints reading a JSON body.
		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.AllowContentType("application/json"))

			r.Post("/timer/start", h.Timer.Start)
			r.Patch("/entries/{id}", h.Entries.Update)
			r.Post("/projects", h.Projects.Create)
			r.Patch("/projects/{id}", h.Projects.Update)
			r.Post("/identity", h.Sync.Identity)
			r.Post("/connectivity", h.Sync.Connectivity)
		})
	})

	return r
}
