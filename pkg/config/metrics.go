package config

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/dittoblk/internal/logger"
	"github.com/marmos91/dittoblk/pkg/metrics"
)

// MetricsResult holds what InitializeMetrics set up.
type MetricsResult struct {
	// Server serves /metrics on the configured port. Nil when metrics are
	// disabled; the caller starts and stops it.
	Server *http.Server
}

// InitializeMetrics creates the Prometheus registry when metrics are enabled.
// It must run before InitializeRegistry so the disk and cache collectors are
// created against the live registry.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		metrics.Reset()
		logger.Debug("Metrics disabled")
		return &MetricsResult{}
	}

	metrics.InitRegistry()

	r := chi.NewRouter()
	r.Handle("/metrics", metrics.Handler())

	return &MetricsResult{
		Server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           r,
			ReadHeaderTimeout: cfg.API.ReadTimeout,
		},
	}
}
