package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_RegistersCollectors(t *testing.T) {
	m, reg := NewTestManagerAndRegistry()
	require.NotNil(t, m)

	m.CounterSessionTransitions.WithLabelValues("ACTIVE").Inc()
	m.CounterEventsPublished.WithLabelValues("round-released", "ok").Add(2)
	m.CounterRateLimitedRequests.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterSessionTransitions.WithLabelValues("ACTIVE")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CounterEventsPublished.WithLabelValues("round-released", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterRateLimitedRequests))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewManager_SeparateRegistries(t *testing.T) {
	// two managers on fresh registries must not collide
	assert.NotPanics(t, func() {
		NewTestManager()
		NewTestManager()
	})
}
