package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordLookup(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewLookupMetrics(registry)
	require.NoError(t, err)

	m.RecordLookup("", 2, 3*time.Millisecond)
	m.RecordLookup("", 1, time.Millisecond)
	m.RecordLookup("no_postcard_found", 0, time.Millisecond)
	m.SetStoredLookups(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.lookupsTotal.WithLabelValues("found", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lookupsTotal.WithLabelValues("failed", "no_postcard_found")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.storedLookups))
	assert.Equal(t, 3, testutil.CollectAndCount(m.lookupsTotal)+testutil.CollectAndCount(m.storedLookups))
}

func TestRegisterTwiceFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewLookupMetrics(registry)
	require.NoError(t, err)
	_, err = NewLookupMetrics(registry)
	assert.Error(t, err)
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *LookupMetrics
	assert.NotPanics(t, func() {
		m.RecordLookup("", 1, time.Second)
		m.SetStoredLookups(1)
	})
}
