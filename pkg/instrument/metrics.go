// Package instrument provides Prometheus metrics and OpenTelemetry
// tracing for the debounce coordinator and subscription ledger.
package instrument

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus recorder.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "tether").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus recorder.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "tether",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics is a Prometheus-backed recorder. It satisfies both
// debounce.Recorder and listen.Recorder.
type Metrics struct {
	debounceScheduled   *prometheus.CounterVec
	debounceFired       *prometheus.CounterVec
	debounceCancelled   *prometheus.CounterVec
	subscriptionsTotal  *prometheus.CounterVec
	subscriptionsActive prometheus.Gauge
}

// NewMetrics creates and registers the recorder's collectors.
func NewMetrics(opts ...MetricsOption) *Metrics {
	cfg := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	factory := promauto.With(cfg.Registry)

	return &Metrics{
		debounceScheduled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "debounce_scheduled_total",
			Help:        "Debounce scheduling calls, by task and whether an existing arm was superseded.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"task", "rearmed"}),
		debounceFired: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "debounce_fired_total",
			Help:        "Debounced task invocations delivered.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"task"}),
		debounceCancelled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "debounce_cancelled_total",
			Help:        "Pending debounce invocations removed by cancel or disposal.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"task"}),
		subscriptionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "subscriptions_total",
			Help:        "Event subscriptions registered, by event name.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"event"}),
		subscriptionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "subscriptions_active",
			Help:        "Event subscriptions currently attached.",
			ConstLabels: cfg.ConstLabels,
		}),
	}
}

// DebounceScheduled implements debounce.Recorder.
func (m *Metrics) DebounceScheduled(task string, rearmed bool) {
	label := "false"
	if rearmed {
		label = "true"
	}
	m.debounceScheduled.WithLabelValues(task, label).Inc()
}

// DebounceFired implements debounce.Recorder.
func (m *Metrics) DebounceFired(task string) {
	m.debounceFired.WithLabelValues(task).Inc()
}

// DebounceCancelled implements debounce.Recorder.
func (m *Metrics) DebounceCancelled(task string) {
	m.debounceCancelled.WithLabelValues(task).Inc()
}

// SubscriptionAdded implements listen.Recorder.
func (m *Metrics) SubscriptionAdded(event string) {
	m.subscriptionsTotal.WithLabelValues(event).Inc()
	m.subscriptionsActive.Inc()
}

// SubscriptionRemoved implements listen.Recorder.
func (m *Metrics) SubscriptionRemoved(string) {
	m.subscriptionsActive.Dec()
}
