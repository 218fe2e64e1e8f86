/*
Package metrics exposes arcflow's Prometheus metrics: per-node window
and channel counters plus an HTTP handler for scraping. Collector
periodically pulls the latest per-node snapshot out of a
manager.NodeManager and republishes it as labeled counters and
gauges, the same
ticker-driven pull shape used elsewhere in this codebase for
aggregating component state into Prometheus vectors.
*/
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ElementsAdmitted counts elements accepted into a window.
	ElementsAdmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arcflow_elements_admitted_total",
			Help: "Total number of elements admitted to a window assigner",
		},
		[]string{"node_id"},
	)

	// ElementsDiscardedLate counts elements dropped for arriving past
	// the lateness allowance.
	ElementsDiscardedLate = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arcflow_elements_discarded_late_total",
			Help: "Total number of elements discarded for arriving past the lateness allowance",
		},
		[]string{"node_id"},
	)

	// WindowsFired counts window materializations emitted downstream.
	WindowsFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arcflow_windows_fired_total",
			Help: "Total number of windows fired",
		},
		[]string{"node_id"},
	)

	// WatermarkLagSeconds tracks the gap between wall-clock time and a
	// node's last forwarded watermark.
	WatermarkLagSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arcflow_watermark_lag_seconds",
			Help: "Seconds between wall-clock time and the last forwarded watermark",
		},
		[]string{"node_id"},
	)

	// ModuleRunErrors counts operator-function failures on a single
	// element (spec section 7's ModuleRunError).
	ModuleRunErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arcflow_module_run_errors_total",
			Help: "Total number of ModuleRunError occurrences per node",
		},
		[]string{"node_id"},
	)

	// ChannelDeliveryErrors counts failed channel.Strategy deliveries,
	// e.g. SerializationError on a Remote channel.
	ChannelDeliveryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arcflow_channel_delivery_errors_total",
			Help: "Total number of failed channel deliveries",
		},
		[]string{"node_id", "channel_kind"},
	)

	// NodeParallelism reports a stage's current node instance count.
	NodeParallelism = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arcflow_node_parallelism",
			Help: "Current number of node instances in a pipeline stage",
		},
		[]string{"stage"},
	)
)

func init() {
	prometheus.MustRegister(
		ElementsAdmitted,
		ElementsDiscardedLate,
		WindowsFired,
		WatermarkLagSeconds,
		ModuleRunErrors,
		ChannelDeliveryErrors,
		NodeParallelism,
	)
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures an operation's duration against a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a Timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a labeled
// histogram vec.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the Timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
