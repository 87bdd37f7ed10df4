package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/capread/pkg/arena"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, lp := range m.GetLabel() {
				name += "/" + lp.GetValue()
			}
			out[name] = m.GetCounter().GetValue()
		}
	}
	return out
}

func TestInstrumentedCountsCharges(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(WithRegistry(reg), WithNamespace("test"))
	l := c.Instrument(arena.NewLimited(16, 1))

	require.NoError(t, l.ChargeBytes(8))
	require.NoError(t, l.ChargeBytes(8))
	assert.ErrorIs(t, l.ChargeBytes(8), arena.ErrReadLimit)
	require.NoError(t, l.ChargeLevel(1))
	assert.ErrorIs(t, l.ChargeLevel(2), arena.ErrPointerLevel)

	got := gather(t, reg)
	assert.Equal(t, 16.0, got["test_reader_bytes_charged_total"])
	assert.Equal(t, 1.0, got["test_reader_levels_charged_total"])
	assert.Equal(t, 1.0, got["test_reader_refusals_total/bytes"])
	assert.Equal(t, 1.0, got["test_reader_refusals_total/levels"])
}

func TestInstrumentNilIsUnlimited(t *testing.T) {
	reg := prometheus.NewRegistry()
	l := NewCollector(WithRegistry(reg)).Instrument(nil)
	for range 100 {
		require.NoError(t, l.ChargeBytes(1<<20))
		require.NoError(t, l.ChargeLevel(1<<20))
	}
	got := gather(t, reg)
	assert.Equal(t, float64(100<<20), got["capread_reader_bytes_charged_total"])
}

func TestSharedCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(WithRegistry(reg), WithSubsystem("copy"))
	a := c.Instrument(arena.Unlimited{})
	b := c.Instrument(arena.Unlimited{})
	require.NoError(t, a.ChargeBytes(8))
	require.NoError(t, b.ChargeBytes(24))
	assert.Equal(t, 32.0, gather(t, reg)["capread_copy_bytes_charged_total"])
}
