// Package metrics exposes Prometheus collectors for the hub and loader. A nil
// *Collector is valid and turns every recording call into a no-op, so
// instrumentation stays optional.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector bundles the engine's Prometheus instruments.
type Collector struct {
	eventsEmitted     prometheus.Counter
	subscriberErrors  prometheus.Counter
	streamRetries     prometheus.Counter
	streamFailures    prometheus.Counter
	backpressureDrops *prometheus.CounterVec
	eventsRouted      prometheus.Counter
	pluginsLoaded     prometheus.Counter
	pluginsFailed     prometheus.Counter
	pluginsActive     prometheus.Gauge
}

// NewCollector registers the engine's collectors on reg. Pass
// prometheus.DefaultRegisterer for the process-wide registry or a fresh
// registry in tests.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		eventsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "seance",
			Name:      "events_emitted_total",
			Help:      "Events pushed through the hub.",
		}),
		subscriberErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "seance",
			Name:      "subscriber_errors_total",
			Help:      "Observer failures contained during fan-out.",
		}),
		streamRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "seance",
			Name:      "stream_retries_total",
			Help:      "Retry attempts in stream processing pipelines.",
		}),
		streamFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "seance",
			Name:      "stream_failures_total",
			Help:      "Stream pipelines that failed terminally.",
		}),
		backpressureDrops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seance",
			Name:      "backpressure_drops_total",
			Help:      "Events discarded by bounded buffers, by overflow policy.",
		}, []string{"policy"}),
		eventsRouted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "seance",
			Name:      "events_routed_total",
			Help:      "Plugin process invocations performed by routing.",
		}),
		pluginsLoaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "seance",
			Name:      "plugins_loaded_total",
			Help:      "Plugins successfully loaded and initialized.",
		}),
		pluginsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "seance",
			Name:      "plugins_failed_total",
			Help:      "Plugins whose load or init failed terminally.",
		}),
		pluginsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "seance",
			Name:      "plugins_active",
			Help:      "Plugins currently in an active or haunting state.",
		}),
	}
}

// EventEmitted records one hub emission.
func (c *Collector) EventEmitted() {
	if c == nil {
		return
	}
	c.eventsEmitted.Inc()
}

// SubscriberError records one contained observer failure.
func (c *Collector) SubscriberError() {
	if c == nil {
		return
	}
	c.subscriberErrors.Inc()
}

// StreamRetry records one retry attempt.
func (c *Collector) StreamRetry() {
	if c == nil {
		return
	}
	c.streamRetries.Inc()
}

// StreamFailure records one terminal stream failure.
func (c *Collector) StreamFailure() {
	if c == nil {
		return
	}
	c.streamFailures.Inc()
}

// BackpressureDrop records one discarded event for the given policy label.
func (c *Collector) BackpressureDrop(policy string) {
	if c == nil {
		return
	}
	c.backpressureDrops.WithLabelValues(policy).Inc()
}

// EventRouted records one plugin process invocation.
func (c *Collector) EventRouted() {
	if c == nil {
		return
	}
	c.eventsRouted.Inc()
}

// PluginLoaded records one successful plugin load.
func (c *Collector) PluginLoaded() {
	if c == nil {
		return
	}
	c.pluginsLoaded.Inc()
	c.pluginsActive.Inc()
}

// PluginFailed records one terminal plugin load failure.
func (c *Collector) PluginFailed() {
	if c == nil {
		return
	}
	c.pluginsFailed.Inc()
}

// PluginRemoved records one plugin leaving the active set.
func (c *Collector) PluginRemoved() {
	if c == nil {
		return
	}
	c.pluginsActive.Dec()
}
