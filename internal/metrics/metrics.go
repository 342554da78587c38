// Package metrics exposes Prometheus metrics for selection, publication and
// the content pool.
package metrics

import (
	"net/http"

	"github.com/bytesize-travel/service-curation/internal/domain/bundle"
	"github.com/bytesize-travel/service-curation/internal/domain/content"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// MetricsNamespace is the namespace for all curation metrics.
	MetricsNamespace = "curation"

	// MetricsSubsystem is the subsystem for selection metrics.
	MetricsSubsystem = "selection"
)

// Run outcomes.
const (
	OutcomeSelected  = "selected"
	OutcomePublished = "published"
	OutcomeNoContent = "no_content"
	OutcomeLocked    = "locked"
	OutcomeError     = "error"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	RunDurationSeconds *prometheus.HistogramVec
	ItemsSelected      *prometheus.HistogramVec
	AnchorFallbacks    prometheus.Counter
	DegradedSlotsTotal *prometheus.CounterVec

	UsageRecordedTotal prometheus.Counter
	ContentIngested    *prometheus.CounterVec
	PoolItems          *prometheus.GaugeVec
	PoolEligibleItems  *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates and registers all metrics on reg. A nil reg gets a
// fresh registry, which keeps tests independent of the global one.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	factory := promauto.With(reg)
	m := &Metrics{gatherer: reg}

	m.initRunMetrics(factory)
	m.initPoolMetrics(factory)

	return m
}

func (m *Metrics) initRunMetrics(factory promauto.Factory) {
	m.RunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "runs_total",
			Help:      "Total number of selection runs by cadence, mode and outcome",
		},
		[]string{"cadence", "mode", "outcome"},
	)

	m.RunDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "run_duration_seconds",
			Help:      "Duration of selection runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"mode"},
	)

	m.ItemsSelected = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "items_selected",
			Help:      "Number of items in a selected bundle",
			Buckets:   prometheus.LinearBuckets(1, 2, 8),
		},
		[]string{"cadence"},
	)

	m.AnchorFallbacks = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "anchor_fallbacks_total",
			Help:      "Runs whose featured deal came from the relaxed query",
		},
	)

	m.DegradedSlotsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "degraded_slots_total",
			Help:      "Slots left empty because no candidate qualified",
		},
		[]string{"slot", "category"},
	)

	m.UsageRecordedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "usage_recorded_items_total",
			Help:      "Items marked as used",
		},
	)
}

func (m *Metrics) initPoolMetrics(factory promauto.Factory) {
	m.ContentIngested = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "pool",
			Name:      "content_ingested_total",
			Help:      "Enriched records received, by category and outcome",
		},
		[]string{"category", "outcome"},
	)

	m.PoolItems = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: "pool",
			Name:      "items",
			Help:      "Stored content items per category",
		},
		[]string{"category"},
	)

	m.PoolEligibleItems = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: "pool",
			Name:      "eligible_items",
			Help:      "Content items currently eligible for selection per category",
		},
		[]string{"category"},
	)
}

// AnchorFallbackUsed implements selection.Observer.
func (m *Metrics) AnchorFallbackUsed() {
	m.AnchorFallbacks.Inc()
}

// SlotDegraded implements selection.Observer.
func (m *Metrics) SlotDegraded(slot bundle.SlotName, category content.Category) {
	m.DegradedSlotsTotal.WithLabelValues(string(slot), string(category)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
