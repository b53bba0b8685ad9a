// Package api exposes the call queue and event ingestion over HTTP for
// the desk tooling that renders the daily call sheet.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"farm_prospector/services"
	"farm_prospector/storage"
)

// Server wires the service layer to the HTTP boundary.
type Server struct {
	store   *storage.SQLiteStore
	events  *services.EventService
	queue   *services.QueueService
	suburbs []string
}

func NewServer(store *storage.SQLiteStore, events *services.EventService, queue *services.QueueService, suburbs []string) *Server {
	return &Server{store: store, events: events, queue: queue, suburbs: suburbs}
}

// Router builds the chi mux with middleware and all routes.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8085"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/events", s.handleIngestEvent)
		r.Get("/events", s.handleRecentEvents)
		r.Get("/events/{id}/contacts", s.handleEventContacts)

		r.Route("/queue", func(r chi.Router) {
			r.Get("/today", s.handleQueueToday)
			r.Post("/topup", s.handleQueueTopUp)
		})

		r.Post("/outcomes", s.handleOutcome)
		r.Post("/contacts", s.handleUpsertContact)
		r.Get("/contacts/{id}/calls", s.handleContactCalls)
		r.Get("/runs", s.handleRecentRuns)
	})

	return r
}

// ListenAndServe blocks serving the API on addr.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return srv.ListenAndServe()
}
