package tinfo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewThreadUnique(t *testing.T) {
	a := NewThread()
	b := NewThread()
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, NoTid, a)
}

func TestBackoffSpinsBeforeExhaustion(t *testing.T) {
	b := &Backoff{}
	for i := 0; i < 10; i++ {
		assert.True(t, b.Spin())
	}
}

func TestBackoffExhausts(t *testing.T) {
	b := &Backoff{tries: DefaultBudget}
	assert.False(t, b.Spin())
}

func TestShortDelayCapped(t *testing.T) {
	assert.LessOrEqual(t, shortDelay(1000000), 50*time.Microsecond)
	assert.Greater(t, shortDelay(2), time.Duration(0))
}
