// Package metrics exports lifecycle telemetry through Prometheus collectors.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/san-kum/pxwrap/internal/lifecycle"
	"github.com/san-kum/pxwrap/internal/sdk"
)

// Collector is a lifecycle.Observer backed by its own Prometheus registry.
type Collector struct {
	registry  *prometheus.Registry
	namespace string

	created       *prometheus.CounterVec
	released      *prometheus.CounterVec
	releaseErrors *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	live          *prometheus.GaugeVec
	state         prometheus.Gauge
	stepDuration  prometheus.Histogram
}

// summaryKeys maps metric names, without the namespace, to run metadata keys.
var summaryKeys = map[string]string{
	"handle_created_total":        "created",
	"handle_released_total":       "released",
	"handle_release_errors_total": "release_errors",
	"lifecycle_transitions_total": "transitions",
	"scene_step_duration_seconds": "steps",
}

var _ lifecycle.Observer = (*Collector)(nil)

func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "pxwrap"
	}

	c := &Collector{
		registry:  prometheus.NewRegistry(),
		namespace: namespace,
	}

	c.created = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handle",
			Name:      "created_total",
			Help:      "SDK handles created, by kind",
		},
		[]string{"kind"},
	)
	c.released = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handle",
			Name:      "released_total",
			Help:      "SDK handles released, by kind",
		},
		[]string{"kind"},
	)
	c.releaseErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handle",
			Name:      "release_errors_total",
			Help:      "SDK handle releases that returned an error, by kind",
		},
		[]string{"kind"},
	)
	c.live = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "handle",
			Name:      "live",
			Help:      "SDK handles currently held, by kind",
		},
		[]string{"kind"},
	)
	c.transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Lifecycle state transitions",
		},
		[]string{"from", "to"},
	)
	c.state = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "state",
			Help:      "Current lifecycle state (0=uninitialized, 1=initializing, 2=ready, 3=shutting_down)",
		},
	)
	c.stepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scene",
			Name:      "step_duration_seconds",
			Help:      "Wall time of one simulate/fetch cycle",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
	)

	c.registry.MustRegister(
		c.created,
		c.released,
		c.releaseErrors,
		c.live,
		c.transitions,
		c.state,
		c.stepDuration,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collector's registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) OnCreate(kind sdk.Kind, id string) {
	c.created.WithLabelValues(string(kind)).Inc()
	c.live.WithLabelValues(string(kind)).Inc()
}

func (c *Collector) OnRelease(kind sdk.Kind, id string, err error) {
	c.released.WithLabelValues(string(kind)).Inc()
	c.live.WithLabelValues(string(kind)).Dec()
	if err != nil {
		c.releaseErrors.WithLabelValues(string(kind)).Inc()
	}
}

func (c *Collector) OnStateChange(from, to lifecycle.State, mode sdk.Mode) {
	c.transitions.WithLabelValues(from.String(), to.String()).Inc()
	c.state.Set(float64(to))
}

// ObserveStep records the duration of one scene step in seconds.
func (c *Collector) ObserveStep(seconds float64) {
	c.stepDuration.Observe(seconds)
}

// Summary gathers the registry and returns running totals suitable for run
// metadata: counters are summed across labels and the step histogram
// contributes its sample count.
func (c *Collector) Summary() map[string]float64 {
	out := make(map[string]float64, len(summaryKeys))
	families, err := c.registry.Gather()
	if err != nil {
		return out
	}
	for _, mf := range families {
		key, ok := summaryKeys[strings.TrimPrefix(mf.GetName(), c.namespace+"_")]
		if !ok {
			continue
		}
		var total float64
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				total += metric.GetCounter().GetValue()
			case metric.GetHistogram() != nil:
				total += float64(metric.GetHistogram().GetSampleCount())
			}
		}
		out[key] = total
	}
	return out
}
