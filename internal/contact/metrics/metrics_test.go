package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"linkage/internal/contact/models"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncrementCreated(models.LinkPrecedencePrimary)
	m.IncrementCreated(models.LinkPrecedenceSecondary)
	m.IncrementCreated(models.LinkPrecedenceSecondary)
	m.AddRelinked(3)
	m.AddRelinked(0)
	m.ObserveComponentSize(4)
	m.ObserveIdentify(time.Now(), OutcomeMatched)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ContactsCreated.WithLabelValues("primary")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ContactsCreated.WithLabelValues("secondary")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ContactsRelinked))
	assert.Equal(t, 1, testutil.CollectAndCount(m.IdentifyDuration, "linkage_identify_duration_seconds"))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ComponentSize, "linkage_component_size"))
}

func TestNewRegistersOncePerRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) }, "registering the same collectors twice must fail")
	assert.NotPanics(t, func() { New(prometheus.NewRegistry()) })
}
