package environment

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wb-tariffs/internal/config"
	"wb-tariffs/internal/metrics"
)

type readinessCheck func(ctx context.Context) error

func initObservability(
	logger *slog.Logger,
	clients *Clients,
	cfg config.Config,
) *http.Server {
	metrics.MustRegister()

	return &http.Server{
		Handler:           newObservabilityRouter(logger, clients.DB.PingContext),
		Addr:              cfg.Observability.ADDR(),
		ReadTimeout:       cfg.Observability.ReadTimeout,
		WriteTimeout:      cfg.Observability.WriteTimeout,
		IdleTimeout:       cfg.Observability.IdleTimeout,
		ReadHeaderTimeout: cfg.Observability.ReadTimeout,
	}
}

func newObservabilityRouter(logger *slog.Logger, ready readinessCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()

		if err := ready(ctx); err != nil {
			logger.Warn("Readiness check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, "Not ready")
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "Ready")
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/debug", middleware.Profiler())

	return r
}
