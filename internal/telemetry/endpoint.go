// endpoint.go: Prometheus compatible telemetry endpoint
package telemetry

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/guildwatch/internal/errors"
	"github.com/tphakala/guildwatch/internal/logging"
)

// Endpoint serves the metrics registry over HTTP.
type Endpoint struct {
	server        *http.Server
	ListenAddress string
	logger        *slog.Logger
}

// NewEndpoint creates a telemetry endpoint for the given listen address.
func NewEndpoint(listenAddress string) (*Endpoint, error) {
	if listenAddress == "" {
		return nil, errors.Newf("telemetry listen address not configured").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return &Endpoint{
		ListenAddress: listenAddress,
		logger:        logging.ForService("telemetry"),
	}, nil
}

// Start serves /metrics in a background goroutine until Shutdown.
func (e *Endpoint) Start(registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	e.server = &http.Server{
		Addr:         e.ListenAddress,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		e.logger.Info("telemetry endpoint starting", "listen", e.ListenAddress)
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("telemetry server failed", "listen", e.ListenAddress, "error", err)
		}
	}()
}

// Shutdown stops the HTTP server gracefully.
func (e *Endpoint) Shutdown() {
	if e.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.server.Shutdown(ctx); err != nil {
		e.logger.Error("failed to shut down telemetry server gracefully", "error", err)
	}
}
