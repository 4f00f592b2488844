package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMmapProviderRoundTrip(t *testing.T) {
	p := NewMmapProvider()

	base, err := p.CreateMappedRegion(4096)
	assert.NoError(t, err)
	assert.NotZero(t, base)

	assert.NoError(t, p.PageOut(base, 4096))

	p.ReleasePage(base, 4096)
}

func TestMmapProviderDistinctRegions(t *testing.T) {
	p := NewMmapProvider()

	a, err := p.CreateMappedRegion(4096)
	assert.NoError(t, err)
	b, err := p.CreateMappedRegion(4096)
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)

	p.ReleasePage(a, 4096)
	p.ReleasePage(b, 4096)
}

func TestPageOutUnknownRegionIsNoop(t *testing.T) {
	p := NewMmapProvider()
	assert.NoError(t, p.PageOut(0xdeadbeef, 4096))
}
