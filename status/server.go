// Package status serves the bootloader's state over HTTP as JSON.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/GoCodeAlone/zeros"
)

// Source is what the server reports on. *zeros.Bootloader implements it.
type Source interface {
	LastReport() *zeros.BootReport
	Progress() zeros.Progress
	LoadStates() map[string]zeros.ModuleLoadState
}

// SelfChecker is optionally implemented by a Source to allow on-demand self-checks.
type SelfChecker interface {
	RunSelfCheck(ctx context.Context) zeros.SelfCheckReport
}

// Server is the status HTTP surface.
type Server struct {
	source Source
	router chi.Router
	logger zeros.Logger
}

// NewServer builds the router for src. logger may be nil.
func NewServer(src Source, logger zeros.Logger) *Server {
	s := &Server{source: src, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Route("/boot", func(r chi.Router) {
		r.Get("/report", s.report)
		r.Get("/progress", s.progress)
		r.Get("/modules", s.modules)
		r.Get("/modules/*", s.module)
		r.Post("/selfcheck", s.selfCheck)
	})

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if s.logger != nil {
			s.logger.Info("Status server listening", "addr", addr)
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	rep := s.source.LastReport()
	if !rep.Ready() {
		body := map[string]any{"status": "unavailable", "progress": s.source.Progress()}
		if rep != nil {
			body["status"] = rep.Status
			body["error"] = rep.Error
		}
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": rep.Status, "summary": rep.Summary()})
}

func (s *Server) report(w http.ResponseWriter, _ *http.Request) {
	rep := s.source.LastReport()
	if rep == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no boot has completed"})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) progress(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.source.Progress())
}

func (s *Server) modules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.source.LoadStates())
}

func (s *Server) module(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "*")
	state, ok := s.source.LoadStates()[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown module", "module": id})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"module": id, "state": state})
}

func (s *Server) selfCheck(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.source.(SelfChecker)
	if !ok {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "self-check not available"})
		return
	}
	writeJSON(w, http.StatusOK, sc.RunSelfCheck(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
