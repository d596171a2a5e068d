// Package server exposes timing maps and playback control over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/agleyzer/lyricsync/internal/cluster"
	"github.com/agleyzer/lyricsync/internal/lyrics"
	"github.com/agleyzer/lyricsync/internal/player"
	"github.com/agleyzer/lyricsync/internal/session"
	"github.com/agleyzer/lyricsync/internal/timing"
)

// TimingSource generates timing maps by set name.
type TimingSource interface {
	Timing(name string, duration float64) (*timing.Map, error)
}

// Controller drives playback. A session controls the local engine; a
// cluster controller replicates through raft.
type Controller interface {
	Prepare(set string, duration float64) error
	Play() error
	Pause() error
	Toggle() error
	SeekToFraction(f float64) error
	Reset() error
	Status() player.Progress
	Stats() map[string]interface{}
}

// Server serves timing maps and the player API
type Server struct {
	timings    TimingSource
	controller Controller
	defaultSet string
	port       int
	logger     *slog.Logger
	httpServer *http.Server
}

// New creates a new HTTP server
func New(timings TimingSource, controller Controller, defaultSet string, port int, logger *slog.Logger) *Server {
	if defaultSet == "" {
		defaultSet = lyrics.DefaultSet
	}
	return &Server{
		timings:    timings,
		controller: controller,
		defaultSet: defaultSet,
		port:       port,
		logger:     logger,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/timing", s.handleTiming)
	mux.HandleFunc("GET /api/player", s.handleStatus)
	mux.HandleFunc("POST /api/player/prepare", s.handlePrepare)
	mux.HandleFunc("POST /api/player/play", s.control(Controller.Play))
	mux.HandleFunc("POST /api/player/pause", s.control(Controller.Pause))
	mux.HandleFunc("POST /api/player/toggle", s.control(Controller.Toggle))
	mux.HandleFunc("POST /api/player/reset", s.control(Controller.Reset))
	mux.HandleFunc("POST /api/player/seek", s.handleSeek)
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.loggingMiddleware(corsMiddleware(mux))
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
	}

	go func() {
		s.logger.Info("starting HTTP server", "port", s.port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}

// handleTiming serves a generated timing map
func (s *Server) handleTiming(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	duration, err := durationParam(q.Get("duration"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	set := s.setParam(q.Get("set"), q.Get("bref"))

	tm, err := s.timings.Timing(set, duration)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	writeJSON(w, http.StatusOK, tm)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Status())
}

func (s *Server) handlePrepare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	duration, err := durationParam(q.Get("duration"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.controller.Prepare(s.setParam(q.Get("set"), q.Get("bref")), duration); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Status())
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("fraction")
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid fraction %q", raw))
		return
	}

	if err := s.controller.SeekToFraction(f); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Status())
}

func (s *Server) control(fn func(Controller) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(s.controller); err != nil {
			s.writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, s.controller.Status())
	}
}

// handleHealth serves health check information
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "ok",
		"stats":  s.controller.Stats(),
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) setParam(set, bref string) string {
	if b, err := strconv.ParseBool(bref); err == nil && b {
		return lyrics.BrefSet
	}
	if set == "" {
		return s.defaultSet
	}
	return set
}

// durationParam parses an optional duration in seconds or m:ss form and
// clamps it to the supported range.
func durationParam(raw string) (float64, error) {
	if raw == "" {
		return timing.DefaultDuration, nil
	}

	d, err := timing.ParseClock(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	return timing.ClampDuration(d), nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, timing.ErrMalformed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, lyrics.ErrUnknownSet):
		return http.StatusNotFound
	case errors.Is(err, cluster.ErrNotLeader), errors.Is(err, session.ErrNotPrepared):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
