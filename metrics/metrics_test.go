package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustRegisterAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustRegister(reg)

	families, err := reg.Gather()
	require.NoError(t, err)
	// FlushTotal is a vector with no label values used yet, so Gather
	// reports only the other six metrics.
	assert.GreaterOrEqual(t, len(families), 6)
}

func TestGaugesObserveMutation(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustRegister(reg)

	DirtyPages.Set(0)
	DirtyPages.Inc()
	DirtyPages.Inc()
	DirtyPages.Dec()

	assert.EqualValues(t, 1, testutil.ToFloat64(DirtyPages))
}
