package procacct

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"viewkern/defs"
)

func TestTryIncrementRespectsCap(t *testing.T) {
	l := NewLedger(2)
	const pid defs.Pid_t = 1

	assert.True(t, l.TryIncrement(pid))
	assert.True(t, l.TryIncrement(pid))
	assert.False(t, l.TryIncrement(pid), "third increment must be refused at cap 2")
	assert.EqualValues(t, 2, l.Count(pid))
}

func TestDecrementNeverGoesNegative(t *testing.T) {
	l := NewLedger(DefaultHandleCap)
	const pid defs.Pid_t = 9
	l.Decrement(pid)
	l.Decrement(pid)
	assert.EqualValues(t, 0, l.Count(pid))
}

func TestNoPidAlwaysSucceeds(t *testing.T) {
	l := NewLedger(0)
	for i := 0; i < 100; i++ {
		assert.True(t, l.TryIncrement(defs.NoPid))
	}
	assert.EqualValues(t, 0, l.Count(defs.NoPid))
}

func TestForgetResetsCount(t *testing.T) {
	l := NewLedger(DefaultHandleCap)
	const pid defs.Pid_t = 4
	l.TryIncrement(pid)
	l.TryIncrement(pid)
	l.Forget(pid)
	assert.EqualValues(t, 0, l.Count(pid))
}

func TestNewLedgerNonPositiveCapFallsBackToDefault(t *testing.T) {
	l := NewLedger(0)
	assert.Equal(t, int64(DefaultHandleCap), l.cap)
	l = NewLedger(-5)
	assert.Equal(t, int64(DefaultHandleCap), l.cap)
}
