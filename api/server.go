/*
server.go - HTTP server setup and routing

PURPOSE:
  Configures the chi router with middleware and mounts all API routes.

MIDDLEWARE STACK (applied in order):
  1. RequestID - tags each request for log correlation
  2. Logger    - request/response logging
  3. Recoverer - panic recovery, returns 500 instead of crashing
  4. CORS      - permissive defaults for internal dashboards

SEE ALSO:
  - handlers.go: Handler implementations
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the chi router with all routes configured.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/scheduler", func(r chi.Router) {
			r.Get("/status", h.GetStatus)
			r.Post("/start", h.StartScheduler)
			r.Post("/stop", h.StopScheduler)
			r.Post("/run-now", h.RunNow)
			r.Put("/config", h.UpdateConfig)
			r.Get("/runs", h.ListRuns)
			r.Get("/runs/{id}", h.GetRun)
		})

		r.Get("/metrics", h.GetMetrics)

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", h.ListAlerts)
			r.Post("/{id}/read", h.MarkAlertRead)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.ListRules)
			r.Put("/", h.SaveRule)
			r.Get("/{id}", h.GetRule)
		})

		r.Route("/items/{id}", func(r chi.Router) {
			r.Get("/stock", h.GetStock)
			r.Get("/demand", h.GetDemand)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
