package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcomes recorded against the external country source.
const (
	FetchFound    = "found"
	FetchNotFound = "not_found"
	FetchError    = "error"
)

// Deletion results recorded by the guarded country delete.
const (
	DeleteDeleted  = "deleted"
	DeleteConflict = "conflict"
	DeleteNotFound = "not_found"
)

// Metrics holds the Prometheus collectors for the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Resolutions   *prometheus.CounterVec
	SourceFetches *prometheus.CounterVec
	PlansCreated  prometheus.Counter
	Deletions     *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "travel_country_resolutions_total",
			Help: "Successful country resolutions by origin (cache or external).",
		}, []string{"origin"}),
		SourceFetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "travel_country_source_fetches_total",
			Help: "Calls to the external country source by outcome.",
		}, []string{"outcome"}),
		PlansCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "travel_plans_created_total",
			Help: "Travel plans persisted.",
		}),
		Deletions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "travel_country_deletions_total",
			Help: "Guarded country deletions by result.",
		}, []string{"result"}),
	}
}

// ObserveResolution counts a successful resolve by origin.
func (m *Metrics) ObserveResolution(origin string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(origin).Inc()
}

// ObserveFetch counts an external source call by outcome.
func (m *Metrics) ObserveFetch(outcome string) {
	if m == nil {
		return
	}
	m.SourceFetches.WithLabelValues(outcome).Inc()
}

// IncPlansCreated counts a persisted travel plan.
func (m *Metrics) IncPlansCreated() {
	if m == nil {
		return
	}
	m.PlansCreated.Inc()
}

// ObserveDeletion counts a guarded country deletion by result.
func (m *Metrics) ObserveDeletion(result string) {
	if m == nil {
		return
	}
	m.Deletions.WithLabelValues(result).Inc()
}
