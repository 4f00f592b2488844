package tunables

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 256*1024, cfg.Granularity)
	assert.Equal(t, 0, cfg.DirtyPageThreshold)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	assert.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path/viewkern-tunables.yaml")
	assert.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := t.TempDir() + "/cfg.yaml"
	err := os.WriteFile(path, []byte("granularity: 65536\ndirty_page_threshold: 10\n"), 0o644)
	assert.NoError(t, err)

	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, 65536, cfg.Granularity)
	assert.Equal(t, 10, cfg.DirtyPageThreshold)
}
