package fileobj

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAssignsUniqueID(t *testing.T) {
	a := New()
	b := New()
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestRefDerefRoundTrip(t *testing.T) {
	f := New() // starts with one outstanding reference
	f.Ref()
	assert.False(t, f.Deref(), "two refs outstanding, one dropped: not yet last")
	assert.True(t, f.Deref(), "last reference dropped")
}

func TestDerefOnFreshFileIsLast(t *testing.T) {
	f := New()
	assert.True(t, f.Deref())
}
