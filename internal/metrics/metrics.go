// Package metrics exposes Prometheus instrumentation for playlist
// refreshes and provider traffic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Refresh result label values.
const (
	ResultOK      = "ok"
	ResultPartial = "partial"
	ResultFailed  = "failed"
)

// Metrics bundles every collector the daemon registers. Construct one
// per process with New; a nil *Metrics is safe to call.
type Metrics struct {
	RefreshTotal   *prometheus.CounterVec
	RefreshSeconds prometheus.Histogram
	RowsUpserted   *prometheus.CounterVec
	ProviderErrors *prometheus.CounterVec
	ProgramsPurged prometheus.Counter
	GuideChannels  prometheus.Gauge
}

// New registers all collectors on reg. Pass prometheus.DefaultRegisterer
// for the process-wide registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RefreshTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iptvault",
			Name:      "refresh_total",
			Help:      "Playlist refreshes by outcome.",
		}, []string{"result"}),
		RefreshSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "iptvault",
			Name:      "refresh_duration_seconds",
			Help:      "Wall time of a full playlist refresh.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		RowsUpserted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iptvault",
			Name:      "rows_upserted_total",
			Help:      "Catalog rows written by refreshes, by entity.",
		}, []string{"entity"}),
		ProviderErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iptvault",
			Name:      "provider_errors_total",
			Help:      "Provider API failures by error kind.",
		}, []string{"kind"}),
		ProgramsPurged: f.NewCounter(prometheus.CounterOpts{
			Namespace: "iptvault",
			Name:      "epg_programs_purged_total",
			Help:      "Guide rows removed by retention purges.",
		}),
		GuideChannels: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "iptvault",
			Name:      "epg_linked_channels",
			Help:      "Channels linked to a guide id after the last EPG refresh.",
		}),
	}
}

func (m *Metrics) ObserveRefresh(result string, seconds float64) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(result).Inc()
	m.RefreshSeconds.Observe(seconds)
}

func (m *Metrics) AddRows(entity string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.RowsUpserted.WithLabelValues(entity).Add(float64(n))
}

func (m *Metrics) ProviderError(kind string) {
	if m == nil {
		return
	}
	m.ProviderErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) AddPurged(n int64) {
	if m == nil || n == 0 {
		return
	}
	m.ProgramsPurged.Add(float64(n))
}

func (m *Metrics) SetLinkedChannels(n int) {
	if m == nil {
		return
	}
	m.GuideChannels.Set(float64(n))
}
