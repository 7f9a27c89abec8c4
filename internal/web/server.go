// Package web exposes the review API: browsing scanned photos, recording
// corrections and inspecting scan runs over HTTP.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/face-scanner/internal/store"
)

// Server represents the review API server.
type Server struct {
	store      store.Store
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer creates a new review API server on an open store.
func NewServer(st store.Store, host string, port int) *Server {
	r := chi.NewRouter()

	s := &Server{
		store:  st,
		router: r,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/api/v1/health", healthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/people", s.listPeople)
		r.Get("/photos/{hash}", s.getPhoto)
		r.Post("/photos/{hash}/corrections", s.applyCorrection)
		r.Get("/scans", s.listScans)
		r.Get("/stats", s.getStats)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting review API on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down review API...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
