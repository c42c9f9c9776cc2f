package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig wires handlers into the router. Nil handlers leave their
// routes unregistered.
type RouterConfig struct {
	Availability   *AvailabilityHandler
	Series         *SeriesHandler
	Workflows      *WorkflowHandler
	Health         func(ctx context.Context) error
	Logger         *slog.Logger
	RequestTimeout time.Duration
	Middleware     []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(ActorFromHeader)
	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	responder := newResponder(cfg.Logger)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(req.Context()); err != nil {
				responder.writeError(req.Context(), w, http.StatusServiceUnavailable, err)
				return
			}
		}
		responder.writeJSON(req.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if h := cfg.Availability; h != nil {
		r.Post("/availability/check", h.Check)
		r.Post("/availability/slots", h.Slots)
		r.Put("/commitments/{entityID}", h.PutCommitments)
		r.Delete("/commitments/{entityID}", h.DeleteCommitments)
	}

	if h := cfg.Series; h != nil {
		r.Route("/series/{seriesID}", func(r chi.Router) {
			r.Post("/generate", h.Generate)
			r.Post("/regenerate", h.Regenerate)
			r.Get("/instances", h.ListInstances)
			r.Get("/calendar.ics", h.Calendar)
		})
		r.Post("/maintenance/retention", h.PurgeRecords)
	}

	if h := cfg.Workflows; h != nil {
		r.Route("/workflows", func(r chi.Router) {
			r.Get("/definitions", h.ListDefinitions)
			r.Get("/definitions/{definitionID}", h.GetDefinition)
			r.Put("/definitions/{definitionID}", h.PutDefinition)

			r.Post("/runs", h.StartRun)
			r.Get("/runs", h.ListRuns)
			r.Route("/runs/{runID}", func(r chi.Router) {
				r.Get("/", h.GetRun)
				r.Post("/steps/{stepIndex}/validate", h.ValidateStep)
				r.Post("/steps/{stepIndex}/reject", h.RejectStep)
				r.Post("/cancel", h.CancelRun)
			})
		})
	}

	return r
}
