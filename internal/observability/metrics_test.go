package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gathered(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		require.NotEmpty(t, mf.GetMetric())
		m := mf.GetMetric()[0]
		if c := m.GetCounter(); c != nil {
			return c.GetValue()
		}
		if g := m.GetGauge(); g != nil {
			return g.GetValue()
		}
	}
	t.Fatalf("метрика %s не найдена", name)
	return 0
}

func TestEngineMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewEngineMetrics(reg)
	require.NoError(t, err)

	m.ObserveRegistration(5, 2, 1, true)
	m.ObserveExtend(3, true, false)
	m.ObserveExtend(0, false, true)
	m.IncChainsRetracted()
	m.AddExpired(4)
	m.SetIndex(10, 4096, 12)

	assert.Equal(t, 5.0, gathered(t, reg, "gridextend_registrations_total"))
	assert.Equal(t, 2.0, gathered(t, reg, "gridextend_registration_contention_total"))
	assert.Equal(t, 1.0, gathered(t, reg, "gridextend_index_grows_total"))
	assert.Equal(t, 3.0, gathered(t, reg, "gridextend_segments_created_total"))
	assert.Equal(t, 1.0, gathered(t, reg, "gridextend_extend_truncations_total"))
	assert.Equal(t, 1.0, gathered(t, reg, "gridextend_extend_refused_total"))
	assert.Equal(t, 1.0, gathered(t, reg, "gridextend_chains_retracted_total"))
	assert.Equal(t, 4.0, gathered(t, reg, "gridextend_blocks_expired_total"))
	assert.Equal(t, 4096.0, gathered(t, reg, "gridextend_index_capacity"))
	assert.Equal(t, 12.0, gathered(t, reg, "gridextend_live_blocks"))
}

func TestEngineMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewEngineMetrics(reg)
	require.NoError(t, err)

	_, err = NewEngineMetrics(reg)
	assert.Error(t, err)
}

func TestEngineMetrics_NilSafe(t *testing.T) {
	var m *EngineMetrics
	assert.NotPanics(t, func() {
		m.ObserveRegistration(1, 1, 1, true)
		m.ObserveExtend(1, true, true)
		m.IncChainsRetracted()
		m.AddExpired(1)
		m.AddViolations(1)
		m.SetIndex(1, 1, 1)
		m.ObserveTick(0.01)
	})
}
