package settings

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape of a snapshot. It matches the surface the
// settings collaborator exposes (seconds for the timeout rather than a Go
// duration). Pointer fields distinguish "omitted" from zero values so that
// omitted keys keep their Default() values.
type fileConfig struct {
	Enabled                 *bool               `yaml:"enabled"`
	DefaultSwarmType        *string             `yaml:"default_swarm_type"`
	DefaultModel            *string             `yaml:"default_model"`
	MaxAgents               *int                `yaml:"max_agents"`
	MaxLoopsPerAgent        *int                `yaml:"max_loops_per_agent"`
	ExecutionTimeoutSeconds *int                `yaml:"execution_timeout_seconds"`
	TrackTokens             *bool               `yaml:"track_tokens"`
	DynamicReassignment     *bool               `yaml:"dynamic_reassignment"`
	OutputFormat            *string             `yaml:"output_format"`
	Tiers                   map[Tier]TierConfig `yaml:"tiers"`
	Manifests               []Manifest          `yaml:"manifests"`
}

// FromFile loads a snapshot from a YAML file, starting from Default() so
// that omitted keys keep their stock values. The loaded snapshot is
// validated before being returned.
func FromFile(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("settings: read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Snapshot{}, fmt.Errorf("settings: parse %s: %w", path, err)
	}

	snap := Default()
	if fc.Enabled != nil {
		snap.Enabled = *fc.Enabled
	}
	if fc.DefaultSwarmType != nil {
		snap.DefaultSwarmType = *fc.DefaultSwarmType
	}
	if fc.DefaultModel != nil {
		snap.DefaultModel = *fc.DefaultModel
	}
	if fc.MaxAgents != nil {
		snap.MaxAgents = *fc.MaxAgents
	}
	if fc.MaxLoopsPerAgent != nil {
		snap.MaxLoopsPerAgent = *fc.MaxLoopsPerAgent
	}
	if fc.ExecutionTimeoutSeconds != nil {
		snap.ExecutionTimeout = time.Duration(*fc.ExecutionTimeoutSeconds) * time.Second
	}
	if fc.TrackTokens != nil {
		snap.TrackTokens = *fc.TrackTokens
	}
	if fc.DynamicReassignment != nil {
		snap.DynamicReassignment = *fc.DynamicReassignment
	}
	if fc.OutputFormat != nil {
		snap.OutputFormat = *fc.OutputFormat
	}
	for t, cfg := range fc.Tiers {
		snap.Tiers[t] = cfg
	}
	if fc.Manifests != nil {
		snap.Manifests = fc.Manifests
	}

	if err := snap.Validate(); err != nil {
		return Snapshot{}, err
	}

	return snap, nil
}
