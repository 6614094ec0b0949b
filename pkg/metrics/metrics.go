// Package metrics provides Prometheus metrics for the synchronizer. The
// process is a batch job, so metrics are gathered into a registry and
// written as a textfile at the end of a run instead of being scraped.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "roster"

// Manager owns the collectors for one process.
type Manager struct {
	registry *prometheus.Registry

	eventsCreated       prometheus.Counter
	eventsReused        prometheus.Counter
	eventsSkipped       *prometheus.CounterVec
	constituentsCreated prometheus.Counter
	constituentsAdopted prometheus.Counter
	constituentsReused  prometheus.Counter
	registrations       prometheus.Counter
	registrationsDupe   prometheus.Counter
	participantsSkipped *prometheus.CounterVec
	mappingConflicts    prometheus.Counter
	tokenRefreshes      *prometheus.CounterVec
	gatewayRequests     *prometheus.CounterVec
	runDuration         prometheus.Histogram
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithRegistry replaces the manager's registry, mainly for tests.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(m *Manager) {
		if reg != nil {
			m.registry = reg
		}
	}
}

// NewManager creates a Manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{registry: prometheus.NewRegistry()}
	for _, opt := range opts {
		opt(m)
	}

	factory := promauto.With(m.registry)

	m.eventsCreated = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "sync", Name: "events_created_total",
		Help: "Events created on the target platform.",
	})
	m.eventsReused = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "sync", Name: "events_reused_total",
		Help: "Events resolved through an existing mapping.",
	})
	m.eventsSkipped = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "sync", Name: "events_skipped_total",
		Help: "Events skipped, by error class.",
	}, []string{"reason"})
	m.constituentsCreated = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "sync", Name: "constituents_created_total",
		Help: "Constituents created on the target platform.",
	})
	m.constituentsAdopted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "sync", Name: "constituents_adopted_total",
		Help: "Existing target constituents adopted by identity match.",
	})
	m.constituentsReused = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "sync", Name: "constituents_reused_total",
		Help: "Constituents resolved through an existing mapping.",
	})
	m.registrations = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "sync", Name: "registrations_total",
		Help: "Participant registrations issued to the target platform.",
	})
	m.registrationsDupe = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "sync", Name: "registrations_duplicate_total",
		Help: "Registrations dropped as duplicates.",
	})
	m.participantsSkipped = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "sync", Name: "participants_skipped_total",
		Help: "Participants skipped, by error class.",
	}, []string{"reason"})
	m.mappingConflicts = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "sync", Name: "mapping_conflicts_total",
		Help: "Rejected mapping writes that violated bidirectional uniqueness.",
	})
	m.tokenRefreshes = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "token", Name: "refreshes_total",
		Help: "Credential refreshes, by platform.",
	}, []string{"platform"})
	m.gatewayRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "gateway", Name: "requests_total",
		Help: "Gateway HTTP requests, by platform and outcome.",
	}, []string{"platform", "outcome"})
	m.runDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "sync", Name: "run_duration_seconds",
		Help:    "Wall-clock duration of a full sync pass.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	return m
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (m *Manager) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

var (
	globalManager *Manager
	globalOnce    sync.Once
)

func manager() *Manager {
	globalOnce.Do(func() {
		if globalManager == nil {
			globalManager = NewManager()
		}
	})
	return globalManager
}

// Global returns the process-wide manager, creating it on first use.
func Global() *Manager { return manager() }

// Package-level record functions over the global manager.

func RecordEventCreated() { manager().eventsCreated.Inc() }
func RecordEventReused() { manager().eventsReused.Inc() }
func RecordEventSkipped(reason string) {
	manager().eventsSkipped.WithLabelValues(reason).Inc()
}
func RecordConstituentCreated() { manager().constituentsCreated.Inc() }
func RecordConstituentAdopted() { manager().constituentsAdopted.Inc() }
func RecordConstituentReused() { manager().constituentsReused.Inc() }
func RecordRegistration() { manager().registrations.Inc() }
func RecordDuplicateRegistration() {
	manager().registrationsDupe.Inc()
}
func RecordParticipantSkipped(reason string) {
	manager().participantsSkipped.WithLabelValues(reason).Inc()
}
func RecordMappingConflict() { manager().mappingConflicts.Inc() }
func RecordTokenRefresh(platform string) {
	manager().tokenRefreshes.WithLabelValues(platform).Inc()
}
func RecordGatewayRequest(platform, outcome string) {
	manager().gatewayRequests.WithLabelValues(platform, outcome).Inc()
}
func ObserveRunDuration(seconds float64) {
	manager().runDuration.Observe(seconds)
}
