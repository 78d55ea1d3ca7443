// Package metrics exposes the control loop state as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"codeberg.org/mutker/rampctl/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace       = "rampctl"
	shutdownTimeout = 2 * time.Second
)

// Fault kinds reported by the control loop
const (
	FaultCommand   = "command"
	FaultRead      = "read"
	FaultTelemetry = "telemetry"
	FaultStore     = "store"
	FaultPanic     = "panic"
	FaultNeutral   = "neutral"
)

// Metrics holds the control loop collectors on a private registry
type Metrics struct {
	registry  *prometheus.Registry
	target    prometheus.Gauge
	commanded prometheus.Gauge
	measured  prometheus.Gauge
	elapsed   prometheus.Gauge
	enabled   prometheus.Gauge
	ticks     prometheus.Counter
	faults    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		target: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_rpm",
			Help:      "Target velocity entered for the current session.",
		}),
		commanded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "commanded_rpm",
			Help:      "Ramped velocity commanded on the last tick.",
		}),
		measured: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "measured_rpm",
			Help:      "Velocity measured on the last tick.",
		}),
		elapsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "elapsed_seconds",
			Help:      "Seconds since the control clock started, as of the last tick.",
		}),
		enabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "enabled",
			Help:      "1 while the loop drives the actuator, 0 while it holds neutral.",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Enabled control ticks executed.",
		}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faults_total",
			Help:      "Non-fatal faults absorbed by the control loop.",
		}, []string{"kind"}),
	}

	m.registry.MustRegister(
		m.target, m.commanded, m.measured, m.elapsed, m.enabled, m.ticks, m.faults,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveTick records the state of one enabled tick
func (m *Metrics) ObserveTick(target, commanded, measured, elapsed float64) {
	m.target.Set(target)
	m.commanded.Set(commanded)
	m.measured.Set(measured)
	m.elapsed.Set(elapsed)
	m.ticks.Inc()
}

// Fault counts one absorbed fault of the given kind
func (m *Metrics) Fault(kind string) {
	m.faults.WithLabelValues(kind).Inc()
}

// SetEnabled reports whether the loop is currently driving the actuator
func (m *Metrics) SetEnabled(enabled bool) {
	if enabled {
		m.enabled.Set(1)
		return
	}
	m.enabled.Set(0)
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Failed to stop metrics server")
		}
	}()

	logger.Info().Str("address", addr).Msg("Serving metrics")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Observer is the subset of Metrics the control loop reports to
type Observer interface {
	ObserveTick(target, commanded, measured, elapsed float64)
	Fault(kind string)
	SetEnabled(enabled bool)
}

type noopObserver struct{}

// Noop returns an Observer that discards everything
func Noop() Observer {
	return noopObserver{}
}

func (noopObserver) ObserveTick(_, _, _, _ float64) {}
func (noopObserver) Fault(_ string)                 {}
func (noopObserver) SetEnabled(_ bool)              {}
