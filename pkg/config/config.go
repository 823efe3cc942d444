// Package config loads a metric-descriptor list and registry options
// from a JSONC file: hujson.Standardize, then a single json.Unmarshal.
// There is no merge with other sources and no second pass, so a field
// written explicitly empty reads the same as an absent one. This is
// additive convenience on top of the programmatic registry.Expand
// constructor; a config file is never required.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"

	"github.com/messagemedia/shmop/internal/registry"
)

// MetricEntry is one JSON-decodable metric config, mirroring
// registry.Config but with plain JSON-friendly fields.
type MetricEntry struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Cluster  int    `json:"pcp_cluster"`
	Item     *int   `json:"pcp_item,omitempty"`
	Instance *int   `json:"pcp_instance,omitempty"`
}

// File is the on-disk JSONC configuration surface: the facade
// constructor options plus the metric list.
type File struct {
	Name            string        `json:"name"`
	Identifier      string        `json:"identifier"`
	Dir             string        `json:"dir"`
	Version         uint32        `json:"version"`
	Mode            string        `json:"mode"` // "read-only" | "read-write"
	DevelopmentMode bool          `json:"development_mode"`
	Metrics         []MetricEntry `json:"metrics"`
}

// Load reads path as JSONC and decodes it into a File.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled configuration
	if err != nil {
		return File{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return File{}, fmt.Errorf("config: invalid JSONC in %s: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(standardized, &f); err != nil {
		return File{}, fmt.Errorf("config: invalid JSON in %s: %w", path, err)
	}

	if f.Version == 0 {
		f.Version = 1
	}

	return f, nil
}

// ToRegistryConfigs converts the decoded metric entries into
// registry.Config values ready for registry.Expand.
func (f File) ToRegistryConfigs() []registry.Config {
	out := make([]registry.Config, 0, len(f.Metrics))

	for _, m := range f.Metrics {
		out = append(out, registry.Config{
			Type: m.Type, Name: m.Name, Cluster: m.Cluster, Item: m.Item, Instance: m.Instance,
		})
	}

	return out
}

// Writable reports whether Mode selects read-write, the default when
// Mode is empty.
func (f File) Writable() bool {
	return f.Mode != "read-only"
}
