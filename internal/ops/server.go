// SPDX-License-Identifier: MIT

// Package ops exposes the operational HTTP surface: liveness, Prometheus
// metrics and the runtime media-interval setting.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/openestate/resosync/internal/log"
	"github.com/openestate/resosync/internal/ratelimit"
	"github.com/openestate/resosync/internal/store"
)

// Settings is the runtime-settings surface the API writes through.
type Settings interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	Ping(ctx context.Context) error
}

// Tunable applies a new pacing interval immediately, without waiting for the
// worker's next read of the settings table.
type Tunable interface {
	SetMinInterval(d time.Duration)
}

// Server is the ops HTTP server. It carries no business logic.
type Server struct {
	settings Settings
	governor Tunable
	fallback time.Duration
	logger   zerolog.Logger
}

func NewServer(settings Settings, governor Tunable, fallback time.Duration) *Server {
	return &Server{
		settings: settings,
		governor: governor,
		fallback: fallback,
		logger:   log.WithComponent("ops"),
	}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/api/settings", func(r chi.Router) {
		r.Get("/media-interval", s.handleGetInterval)
		r.Put("/media-interval", s.handlePutInterval)
	})
	return r
}

// Run serves until ctx is cancelled, then drains with a short grace period.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("event", "ops.listen").Str("addr", addr).Msg("ops server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.settings.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"error":  "database unreachable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type intervalPayload struct {
	IntervalMS int `json:"interval_ms"`
}

func (s *Server) handleGetInterval(w http.ResponseWriter, r *http.Request) {
	value, ok, err := s.settings.GetSetting(r.Context(), store.SettingMediaIntervalMS)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "settings read failed")
		return
	}
	ms := int(s.fallback / time.Millisecond)
	if ok {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			ms = parsed
		}
	}
	writeJSON(w, http.StatusOK, intervalPayload{IntervalMS: ms})
}

func (s *Server) handlePutInterval(w http.ResponseWriter, r *http.Request) {
	var payload intervalPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	d := time.Duration(payload.IntervalMS) * time.Millisecond
	if d < ratelimit.MinTunableInterval || d > ratelimit.MaxTunableInterval {
		writeError(w, http.StatusUnprocessableEntity, "interval_ms out of range")
		return
	}

	if err := s.settings.SetSetting(r.Context(), store.SettingMediaIntervalMS,
		strconv.Itoa(payload.IntervalMS)); err != nil {
		writeError(w, http.StatusInternalServerError, "settings write failed")
		return
	}
	s.governor.SetMinInterval(d)
	s.logger.Info().
		Str("event", "ops.interval_tuned").
		Int("interval_ms", payload.IntervalMS).
		Msg("media pacing interval updated")
	writeJSON(w, http.StatusOK, payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
