// Package version reads the build version stamp shipped alongside the
// binary.
package version

import (
	"encoding/json"
	"log"
	"os"
)

const defaultPath = "version.json"

type Info struct {
	Version string `json:"version"`
}

// Load reads version.json from the working directory. A missing or
// malformed stamp degrades to 0.0.0 rather than failing startup.
func Load() Info {
	return LoadFrom(defaultPath)
}

func LoadFrom(path string) Info {
	fallback := Info{Version: "0.0.0"}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[version] reading %s: %v", path, err)
		return fallback
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		log.Printf("[version] parsing %s: %v", path, err)
		return fallback
	}
	if info.Version == "" {
		return fallback
	}
	return info
}
