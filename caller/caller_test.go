package caller

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func callDistinct(dc *Distinct_caller_t) (bool, string) {
	return dc.Distinct()
}

func TestDistinctFirstSeenThenSuppressed(t *testing.T) {
	dc := &Distinct_caller_t{Enabled: true}

	// Both calls go through the same line so the recorded stacks match.
	var fresh [2]bool
	var trace [2]string
	for i := range fresh {
		fresh[i], trace[i] = callDistinct(dc)
	}
	assert.True(t, fresh[0])
	assert.NotEmpty(t, trace[0])

	assert.False(t, fresh[1], "the same call site must not report fresh twice")
	assert.Equal(t, 1, dc.Len())
}

func TestDistinctDisabledAlwaysFalse(t *testing.T) {
	dc := &Distinct_caller_t{Enabled: false}
	fresh, trace := dc.Distinct()
	assert.False(t, fresh)
	assert.Empty(t, trace)
	assert.Equal(t, 0, dc.Len())
}

func TestPchashDiffersByStack(t *testing.T) {
	dc := &Distinct_caller_t{}
	a := dc._pchash([]uintptr{1, 2, 3})
	b := dc._pchash([]uintptr{3, 2, 1})
	assert.NotEqual(t, a, b)
}
