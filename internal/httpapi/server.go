// Package httpapi is the transport adapter over the orchestration engine:
// request parsing, payload spooling, and status-code mapping. All domain
// decisions live below it.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/you/taskconvert/internal/dispatch"
	"github.com/you/taskconvert/internal/results"
	"github.com/you/taskconvert/internal/storage"
	"github.com/you/taskconvert/internal/validate"
)

// Server wires the engine components behind the HTTP routes.
type Server struct {
	validator *validate.Validator
	store     storage.Store
	results   results.Store
	disp      *dispatch.Dispatcher
	log       *zap.Logger
}

// NewServer constructs a Server over explicitly injected collaborators.
func NewServer(v *validate.Validator, store storage.Store, res results.Store, disp *dispatch.Dispatcher, log *zap.Logger) *Server {
	return &Server{validator: v, store: store, results: res, disp: disp, log: log}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/", s.handleRoot)
	r.Post("/audio", s.handleAudioSubmit)
	r.Post("/task", s.handleTaskSubmit)
	r.Get("/jobs", s.handleJobList)
	r.Get("/jobs/{jobID}", s.handleJobDetail)
	r.Get("/jobs/{jobID}/result", s.handleJobResult)
	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()))
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encoding response", zap.Error(err))
	}
}

// writeError maps engine errors onto status codes: validation failures are
// the client's fault, missing jobs and consumed results are 404, everything
// else is internal.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, validate.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, results.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, dispatch.ErrStopped):
		http.Error(w, "service shutting down", http.StatusServiceUnavailable)
	default:
		s.log.Error("internal error", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
