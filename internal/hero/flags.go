package hero

import (
	"log"
	"strconv"
)

const flagKey = "hero_enabled"

type settingsReader interface {
	Get(key string) (string, error)
}

// Flags resolves whether the hero pipeline is enabled. Resolution order:
// environment override, then the settings table, then enabled by default.
type Flags struct {
	EnvOverride *bool
	Settings    settingsReader
}

func (f Flags) Enabled() bool {
	if f.EnvOverride != nil {
		return *f.EnvOverride
	}
	if f.Settings != nil {
		raw, err := f.Settings.Get(flagKey)
		if err != nil {
			log.Printf("[hero] flag lookup failed, defaulting to enabled: %v", err)
			return true
		}
		if raw != "" {
			if v, err := strconv.ParseBool(raw); err == nil {
				return v
			}
		}
	}
	return true
}
