// Package monitoring exposes operational counters over HTTP.
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application counters on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	// IncomingRequests counts inbound chat events.
	IncomingRequests prometheus.Counter
	// ProcessedItems counts receipt line items that reached a final
	// categorized transaction.
	ProcessedItems prometheus.Counter
}

// NewMetrics creates and registers the application counters.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		IncomingRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "incoming_requests_total",
			Help: "Inbound chat events received.",
		}),
		ProcessedItems: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "processed_items_total",
			Help: "Receipt items written to finished transactions.",
		}),
	}
	m.registry.MustRegister(m.IncomingRequests, m.ProcessedItems)
	return m
}

// Handler returns the HTTP mux serving /metrics and /status.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Serve runs the monitoring endpoint on addr until ctx is canceled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Monitoring server shutdown failed", "error", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("monitoring server failed: %w", err)
	}
}
