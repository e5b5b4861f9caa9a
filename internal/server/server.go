// Package server provides the HTTP server of the face gate.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ayusman/facegate/internal/app"
	"github.com/ayusman/facegate/internal/server/api"
)

// Live view rates.
const (
	StreamInterval     = 66 * time.Millisecond // ~15 FPS
	DetectionsInterval = 200 * time.Millisecond
)

// Config holds the server configuration.
type Config struct {
	App       *app.App
	StaticDir string
}

// Server represents the HTTP server of the face gate.
type Server struct {
	config     Config
	router     *chi.Mux
	httpServer *http.Server
	start      time.Time

	results    *Hub
	detections *DetectionsHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)

	s := &Server{
		config: config,
		router: r,
		start:  time.Now(),
	}
	s.httpServer = &http.Server{
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.router.Get("/api/health", s.handleHealth)

	if a := s.config.App; a != nil {
		faces := api.NewFacesHandler(a)
		events := api.NewEventsHandler(a)

		s.results = NewHub()
		a.OnResult(func(res app.Result) {
			s.results.Broadcast(resultMessage{Type: "result", Result: res})
		})
		s.detections = NewDetectionsHandler(a, DetectionsInterval)

		s.router.Route("/api", func(r chi.Router) {
			r.Get("/faces", faces.List)
			r.Get("/faces/count", faces.Count)
			r.Delete("/faces", faces.Clear)

			r.Post("/enroll", faces.Enroll)
			r.Post("/recognize", faces.Recognize)

			r.Get("/events", events.List)
			r.Get("/last", events.Last)
			r.Get("/auto", events.GetAutoRecognize)
			r.Put("/auto", events.SetAutoRecognize)

			r.Get("/stream", NewStreamHandler(a, StreamInterval).ServeHTTP)
			r.Get("/results", s.results.ServeHTTP)
			r.Get("/detections", s.detections.ServeHTTP)
		})
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.router.Handle("/*", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router returns the chi router.
func (s *Server) Router() *chi.Mux {
	return s.router
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
	Ready  bool   `json:"ready"`
	Faces  int    `json:"faces"`
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := healthResponse{
		Status: "ok",
		Uptime: time.Since(s.start).String(),
	}
	if a := s.config.App; a != nil {
		response.Ready = a.Ready()
		response.Faces, _ = a.Count()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address and blocks
// until it is shut down.
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer.Addr = addr

	log.Printf("Starting web server on %s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops the live views and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")

	s.Close()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Close stops the detection loop and disconnects WebSocket clients.
func (s *Server) Close() {
	if s.detections != nil {
		s.detections.Close()
	}
	if s.results != nil {
		s.results.Close()
	}
}
