// Package api exposes the dashboard HTTP interface: account CRUD, run
// history, and a streaming endpoint that runs a bulk audit and emits
// progress as server-sent events.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/content-pulse/internal/model"
	"github.com/sells-group/content-pulse/internal/progress"
	"github.com/sells-group/content-pulse/internal/store"
)

// Auditor runs a bulk audit over the given accounts, streaming progress
// through the reporter. *audit.Runner satisfies it.
type Auditor interface {
	Run(ctx context.Context, accounts []model.Account, reporter progress.Reporter) (*model.BulkResult, error)
}

// Server wires the dashboard HTTP handlers to the store and the audit
// runner.
type Server struct {
	router  chi.Router
	store   store.Store
	auditor Auditor
	log     *zap.Logger
}

// NewServer constructs a Server with middleware and routes. The gatherer
// backs GET /metrics; pass the registry the progress reporter was
// registered on, or nil for the process default.
func NewServer(st store.Store, auditor Auditor, gatherer prometheus.Gatherer, allowedOrigins []string) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		store:   st,
		auditor: auditor,
		log:     zap.L().Named("api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", s.listAccounts)
			r.Post("/", s.upsertAccount)
			r.Route("/{account_id}", func(r chi.Router) {
				r.Get("/", s.getAccount)
				r.Get("/audits", s.listAudits)
			})
		})
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.listRuns)
			r.Post("/", s.startRun)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.Warn("api: store ping failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.log.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

// responseWriter records the status code and passes Flush and Hijack
// through to the underlying writer. Flush must survive the wrapping or
// the event stream cannot deliver frames incrementally.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, eris.New("api: hijack not supported")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
