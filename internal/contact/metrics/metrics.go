package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"linkage/internal/contact/models"
)

// Identify outcomes used as the "outcome" label.
const (
	OutcomeCreated = "created"
	OutcomeMatched = "matched"
	OutcomeMerged  = "merged"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Metrics provides observability for the contact module.
// Tracks identify latency, record creation, re-linking and component sizes.
type Metrics struct {
	IdentifyDuration *prometheus.HistogramVec
	ContactsCreated  *prometheus.CounterVec
	ContactsRelinked prometheus.Counter
	ComponentSize    prometheus.Histogram
}

// New creates a Metrics instance registered with reg. A nil reg registers
// with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		IdentifyDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "linkage_identify_duration_seconds",
			Help:    "Duration of identify operations including the serialized transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"outcome"}),
		ContactsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "linkage_contacts_created_total",
			Help: "Total number of contact records created",
		}, []string{"precedence"}),
		ContactsRelinked: factory.NewCounter(prometheus.CounterOpts{
			Name: "linkage_contacts_relinked_total",
			Help: "Total number of existing records demoted or re-pointed at a new primary",
		}),
		ComponentSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "linkage_component_size",
			Help:    "Number of records in the identity returned by identify",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 55, 89},
		}),
	}
}

// ObserveIdentify records the duration of an identify call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveIdentify(start time.Time, outcome string) {
	m.IdentifyDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// IncrementCreated records a newly inserted contact.
func (m *Metrics) IncrementCreated(precedence models.LinkPrecedence) {
	m.ContactsCreated.WithLabelValues(string(precedence)).Inc()
}

func (m *Metrics) AddRelinked(n int) {
	if n > 0 {
		m.ContactsRelinked.Add(float64(n))
	}
}

func (m *Metrics) ObserveComponentSize(n int) {
	m.ComponentSize.Observe(float64(n))
}
