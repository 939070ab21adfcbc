// Package metrics exposes snapshot builder telemetry to Prometheus.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"econ-snapshot/internal/snapshot"
)

const namespace = "econsnap"

// Recorder collects builder metrics. A nil *Recorder discards everything.
type Recorder struct {
	gatherer      prometheus.Gatherer
	fetches       *prometheus.CounterVec
	cacheRequests *prometheus.CounterVec
	gateWait      *prometheus.HistogramVec
	buildDuration prometheus.Histogram
	liveFields    prometheus.Gauge
	fieldValue    *prometheus.GaugeVec
	alerts        *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on reg and serves them from gatherer.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		gatherer: gatherer,
		fetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_total",
				Help:      "Upstream fetch attempts by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		cacheRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_requests_total",
				Help:      "Result cache lookups by group and result",
			},
			[]string{"group", "result"},
		),
		gateWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rate_gate_wait_seconds",
				Help:      "Time callers spent blocked in the rate gate",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 12, 30},
			},
			[]string{"source"},
		),
		buildDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "snapshot_build_duration_seconds",
				Help:      "Duration of snapshot assembly",
				Buckets:   prometheus.DefBuckets,
			},
		),
		liveFields: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "snapshot_live_fields",
				Help:      "Fields backed by live data in the latest snapshot",
			},
		),
		fieldValue: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "field_value",
				Help:      "Latest snapshot value per field",
			},
			[]string{"field", "live"},
		),
		alerts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_total",
				Help:      "Field move alerts by field and result",
			},
			[]string{"field", "result"},
		),
	}
}

// ObserveFetch counts one adapter outcome ("ok" or a failure kind).
func (r *Recorder) ObserveFetch(source, outcome string) {
	if r == nil {
		return
	}
	r.fetches.WithLabelValues(source, outcome).Inc()
}

// ObserveBuild records one assembly.
func (r *Recorder) ObserveBuild(duration time.Duration, live int) {
	if r == nil {
		return
	}
	r.buildDuration.Observe(duration.Seconds())
	r.liveFields.Set(float64(live))
}

// ObserveCache counts a lookup; keys look like "group:<name>".
func (r *Recorder) ObserveCache(key string, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheRequests.WithLabelValues(strings.TrimPrefix(key, "group:"), result).Inc()
}

// ObserveGateWait records time blocked waiting for a source slot.
func (r *Recorder) ObserveGateWait(source string, waited time.Duration) {
	if r == nil {
		return
	}
	r.gateWait.WithLabelValues(source).Observe(waited.Seconds())
}

// RecordSnapshot publishes the field values of a snapshot.
func (r *Recorder) RecordSnapshot(snap *snapshot.Snapshot) {
	if r == nil || snap == nil {
		return
	}
	r.fieldValue.Reset()
	for _, name := range snap.Fields() {
		live := "false"
		if snap.Live[name] {
			live = "true"
		}
		r.fieldValue.WithLabelValues(name, live).Set(snap.Float(name))
	}
}

// ObserveAlert counts a dispatched ("sent"), failed or suppressed alert.
func (r *Recorder) ObserveAlert(field, result string) {
	if r == nil {
		return
	}
	r.alerts.WithLabelValues(field, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil || r.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
