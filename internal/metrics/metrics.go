// Package metrics exposes Prometheus collectors for quoting and the TWAP
// oracle. A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ammQuote/internal/ammerr"
)

const namespace = "ammquote"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	quotes          *prometheus.CounterVec
	quoteDuration   *prometheus.HistogramVec
	priceImpact     *prometheus.HistogramVec
	observations    *prometheus.CounterVec
	evictions       *prometheus.CounterVec
	cachedSamples   *prometheus.GaugeVec
	providerLatency *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Quotes computed, by kind and outcome.",
		}, []string{"kind", "result"}),
		quoteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_duration_seconds",
			Help:      "Wall time to compute a quote including provider lookups.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		priceImpact: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "price_impact_bps",
			Help:      "Price impact of successful quotes in basis points.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"kind"}),
		observations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "twap",
			Name:      "observations_total",
			Help:      "Accumulator observations taken, by pool and whether they were cached.",
		}, []string{"pool", "cached"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "twap",
			Name:      "evictions_total",
			Help:      "Observations evicted from a full pool buffer.",
		}, []string{"pool"}),
		cachedSamples: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "twap",
			Name:      "cached_observations",
			Help:      "Observations currently held per pool.",
		}, []string{"pool"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_duration_seconds",
			Help:      "Latency of pool state lookups by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		m.quotes,
		m.quoteDuration,
		m.priceImpact,
		m.observations,
		m.evictions,
		m.cachedSamples,
		m.providerLatency,
	)
	return m
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveQuote records the outcome of one quote computation.
func (m *Metrics) ObserveQuote(kind string, started time.Time, impactBps uint32, err error) {
	if m == nil {
		return
	}
	m.quotes.WithLabelValues(kind, resultLabel(err)).Inc()
	m.quoteDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
	if err == nil {
		m.priceImpact.WithLabelValues(kind).Observe(float64(impactBps))
	}
}

// ObserveSample records one oracle observation.
func (m *Metrics) ObserveSample(poolID string, cached bool, size int) {
	if m == nil {
		return
	}
	label := "false"
	if cached {
		label = "true"
	}
	m.observations.WithLabelValues(poolID, label).Inc()
	m.cachedSamples.WithLabelValues(poolID).Set(float64(size))
}

// ObserveEviction counts an observation dropped from a full buffer.
func (m *Metrics) ObserveEviction(poolID string) {
	if m == nil {
		return
	}
	m.evictions.WithLabelValues(poolID).Inc()
}

// ResetPool clears the cached-observation gauge for a pool.
func (m *Metrics) ResetPool(poolID string) {
	if m == nil {
		return
	}
	m.cachedSamples.DeleteLabelValues(poolID)
}

// ObserveProviderCall records the latency of a pool state lookup.
func (m *Metrics) ObserveProviderCall(method string, started time.Time) {
	if m == nil {
		return
	}
	m.providerLatency.WithLabelValues(method).Observe(time.Since(started).Seconds())
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if m == nil {
		return fmt.Errorf("metrics are not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	return nil
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := ammerr.KindOf(err); kind != ammerr.KindUnknown {
		return kind.String()
	}
	return "error"
}
