// Package metrics exposes engine counters to Prometheus.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector the engine updates. All updates happen on
// the tick goroutine; scraping happens on the HTTP goroutine.
type Metrics struct {
	Ticks           prometheus.Counter
	Placements      prometheus.Counter
	PlacementNoops  *prometheus.CounterVec
	Removals        prometheus.Counter
	Milestones      *prometheus.CounterVec
	DeliveryMisses  prometheus.Counter
	JournalDropped  prometheus.Counter
	DroppedInputs   prometheus.Counter
	RecoveredPanics prometheus.Counter
	ActiveEntities  prometheus.Gauge
	ReticleVisible  prometheus.Gauge
	PausedTracks    prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arstage_ticks_total",
			Help: "Host ticks processed.",
		}),
		Placements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arstage_placements_total",
			Help: "Entities spawned by placement triggers.",
		}),
		PlacementNoops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arstage_placement_noops_total",
			Help: "Placement triggers ignored, by reason.",
		}, []string{"reason"}),
		Removals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arstage_entity_removals_total",
			Help: "Placed entities removed at the floor.",
		}),
		Milestones: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arstage_milestones_total",
			Help: "Milestone notifications dispatched, by trigger kind.",
		}, []string{"kind"}),
		DeliveryMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arstage_milestone_delivery_misses_total",
			Help: "Milestone notifications with no listener.",
		}),
		JournalDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arstage_journal_dropped_total",
			Help: "Journal entries dropped because the buffer was full while the journal was failing.",
		}),
		DroppedInputs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arstage_dropped_inputs_total",
			Help: "External inputs dropped because the input queue was full.",
		}),
		RecoveredPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arstage_recovered_panics_total",
			Help: "System panics recovered inside a tick.",
		}),
		ActiveEntities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arstage_active_entities",
			Help: "Placed entities currently in the active set.",
		}),
		ReticleVisible: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arstage_reticle_visible",
			Help: "1 when the last resolved hit test found a surface.",
		}),
		PausedTracks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arstage_paused_tracks",
			Help: "Animation tracks held at a pause gate.",
		}),
	}
	reg.MustRegister(
		m.Ticks, m.Placements, m.PlacementNoops, m.Removals, m.Milestones,
		m.DeliveryMisses, m.JournalDropped, m.DroppedInputs, m.RecoveredPanics,
		m.ActiveEntities, m.ReticleVisible, m.PausedTracks,
	)
	return m
}

// NewUnregistered creates collectors without registering them, for tests
// and embedded use.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
