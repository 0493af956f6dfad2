// Package server exposes the tracker over a loopback HTTP API for the
// browser extension.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/runnerr0/tabage/internal/tracker"
)

// Options configures the HTTP server.
type Options struct {
	Addr           string
	AllowedOrigins []string
	MaxRequestSize int64
}

// Server serves the tracker API.
type Server struct {
	tracker *tracker.Tracker
	opts    Options
	logger  *slog.Logger
	server  *http.Server
}

// New creates a Server for t. A non-positive MaxRequestSize means 1 MiB.
func New(t *tracker.Tracker, opts Options, logger *slog.Logger) *Server {
	if opts.MaxRequestSize <= 0 {
		opts.MaxRequestSize = 1 << 20
	}
	return &Server{tracker: t, opts: opts, logger: logger}
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeMessage(w, http.StatusNotFound, "no route for "+req.URL.Path)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, req.Method+" not allowed on "+req.URL.Path)
	})

	r.HandleFunc("/healthz", s.handleHealthz).Methods("GET")

	r.HandleFunc("/api/tabs", s.handleListTabs).Methods("GET")
	r.HandleFunc("/api/tabs", s.handleTabCreated).Methods("POST")
	r.HandleFunc("/api/tabs/snapshot", s.handleSnapshot).Methods("POST")
	r.HandleFunc("/api/tabs/install", s.handleInstall).Methods("POST")
	r.HandleFunc("/api/tabs/startup", s.handleStartup).Methods("POST")
	r.HandleFunc("/api/tabs/{id}", s.handleTabUpdated).Methods("PATCH")
	r.HandleFunc("/api/tabs/{id}", s.handleTabRemoved).Methods("DELETE")

	r.HandleFunc("/api/stats/summary", s.handleSummary).Methods("GET")
	r.HandleFunc("/api/stats/buckets", s.handleBuckets).Methods("GET")
	r.HandleFunc("/api/stats/oldest", s.handleOldest).Methods("GET")
	r.HandleFunc("/api/stats/history", s.handleHistory).Methods("GET")
	r.HandleFunc("/api/stats/progress", s.handleProgress).Methods("GET")
	r.HandleFunc("/api/stats/badge", s.handleBadge).Methods("GET")
	r.HandleFunc("/api/stats/domains", s.handleDomains).Methods("GET")
	r.HandleFunc("/api/stats/duplicates", s.handleDuplicates).Methods("GET")
	r.HandleFunc("/api/stats/groups", s.handleGroups).Methods("GET")

	r.HandleFunc("/api/notifications/old-tabs", s.handleOldTabs).Methods("GET")

	r.HandleFunc("/api/settings", s.handleGetSettings).Methods("GET")
	r.HandleFunc("/api/settings", s.handlePutSettings).Methods("PUT")

	r.HandleFunc("/api/export", s.handleExport).Methods("GET")
	r.HandleFunc("/api/import", s.handleImport).Methods("POST")

	return r
}

// Handler returns the router wrapped in CORS handling for the extension
// origins.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           86400,
	})
	return c.Handler(s.routes())
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("tabage daemon listening", "addr", s.opts.Addr, "registry", s.tracker.Name())
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	s.logger.Info("server exited")
	return nil
}
