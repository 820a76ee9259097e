// Package api exposes the administrative HTTP surface: CRUD over lists,
// subscriptions, mails, tasks, items and templates, plus health and metrics.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mailfan/mailfan/internal/aggregate"
	"github.com/mailfan/mailfan/internal/fanout"
	"github.com/mailfan/mailfan/internal/metrics"
	"github.com/mailfan/mailfan/internal/store"
)

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	stores     *store.Stores
	fanout     *fanout.Engine
	counter    *aggregate.Counter
	logger     *slog.Logger
	startTime  time.Time
}

// NewServer creates a new API server
func NewServer(stores *store.Stores, engine *fanout.Engine, counter *aggregate.Counter, m *metrics.Metrics, metricsPath string, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		stores:    stores,
		fanout:    engine,
		counter:   counter,
		logger:    logger.With("component", "api"),
		startTime: time.Now(),
	}

	s.setupRoutes(m, metricsPath)
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes(m *metrics.Metrics, metricsPath string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	if m != nil && metricsPath != "" {
		s.router.Handle(metricsPath, m.Handler())
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/lists", s.handleCreateList)
		r.Get("/lists", s.handleListLists)
		r.Get("/lists/{id}", s.handleGetList)
		r.Get("/lists/{id}/items", s.handleListItems)

		r.Post("/subscriptions", s.handleCreateSubscription)
		r.Get("/subscriptions/{id}", s.handleGetSubscription)

		r.Post("/mails", s.handleCreateMail)
		r.Get("/mails/{id}", s.handleGetMail)
		r.Get("/mails", s.handleListMails)

		r.Get("/tasks", s.handleListTasks)
		r.Get("/tasks/{id}", s.handleGetTask)

		r.Post("/templates", s.handleCreateTemplate)
		r.Get("/templates", s.handleListTemplates)
		r.Get("/templates/{id}", s.handleGetTemplate)
	})
}

// Router returns the underlying handler, used by tests
func (s *Server) Router() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP API server", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// ErrorResponse is the uniform error body
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.startTime).String(),
	})
}

// sendJSON sends a JSON response
func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{Error: message})
}
