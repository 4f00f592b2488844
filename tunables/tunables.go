// Package tunables holds the small set of compile-time-analogue knobs
// spec §6 calls out. Mapping granularity and dirty-page threshold live
// in Config and can be loaded from YAML; handle table size, reserved
// entry count and type-table size are constants. There is no per-type
// lookaside table here and no command-line flag override.
// Config is loaded from YAML with gopkg.in/yaml.v2, the same dependency
// SnellerInc-sneller's elasticproxy submodule carries for its own
// config surface.
package tunables

import (
	"os"

	"gopkg.in/yaml.v2"
)

// PageSize is the granularity the external VirtualMemoryProvider deals
// pages in; G (below) must be a multiple of it (spec §3.1, §6).
const PageSize = 4096

// Config collects the cache-side tunables (spec §6).
type Config struct {
	// Granularity is G, the VACB window size in bytes. Must be a power
	// of two multiple of PageSize. Default 256 KiB.
	Granularity int `yaml:"granularity"`

	// DirtyPageThreshold is the advisory write-throttle point (spec
	// §4.1.3). Zero means "no throttling advice".
	DirtyPageThreshold int `yaml:"dirty_page_threshold"`
}

// DefaultConfig matches spec §6's stated defaults.
func DefaultConfig() Config {
	return Config{
		Granularity:        256 * 1024,
		DirtyPageThreshold: 0,
	}
}

// Load reads a YAML config file, falling back to DefaultConfig for any
// field left zero. A missing file is not an error: callers run fine on
// defaults alone.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, err
	}
	var loaded Config
	if err := yaml.Unmarshal(b, &loaded); err != nil {
		return Config{}, err
	}
	if loaded.Granularity != 0 {
		cfg.Granularity = loaded.Granularity
	}
	if loaded.DirtyPageThreshold != 0 {
		cfg.DirtyPageThreshold = loaded.DirtyPageThreshold
	}
	return cfg, nil
}

// HandleTableSize is N, the fixed size of the object table (spec §3.5).
const HandleTableSize = 16384

// ReservedEntryCount is the count of never-used low indices (spec §3.5).
const ReservedEntryCount = 10

// BaseObjTypeCount is the number of entries in the compile-time type
// table (spec §4.2.4).
const BaseObjTypeCount = 32
