// Package settings defines the immutable configuration snapshot consumed by
// a swarm run: tier-to-model mapping, numeric limits and saved agent
// manifests. The snapshot is produced by an external settings collaborator
// and is never mutated by the orchestrator; every run observes exactly the
// snapshot it was started with.
package settings

import (
	"fmt"
	"time"
)

// Tier is a named cost/quality class that maps to a default model.
type Tier string

const (
	// TierPremium routes to the highest-quality configured model.
	TierPremium Tier = "premium"
	// TierMid routes to the balanced cost/quality model.
	TierMid Tier = "mid"
	// TierLow routes to the cheapest configured model.
	TierLow Tier = "low"
)

// Valid returns true if the tier is a known value.
func (t Tier) Valid() bool {
	switch t {
	case TierPremium, TierMid, TierLow:
		return true
	default:
		return false
	}
}

// TierConfig holds the model routing for a single tier. A disabled tier is
// treated as unset during resolution; resolution falls through to the
// snapshot's default model.
type TierConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Model   string `yaml:"model" json:"model"`
}

// Manifest is a named, persisted agent template. Fields supplied by a
// request spec override same-named manifest fields field-by-field; list
// fields replace wholesale, they are never merged element-wise.
type Manifest struct {
	Name         string   `yaml:"name" json:"name"`
	SystemPrompt string   `yaml:"system_prompt" json:"system_prompt"`
	Tier         Tier     `yaml:"tier,omitempty" json:"tier,omitempty"`
	Model        string   `yaml:"model,omitempty" json:"model,omitempty"`
	Capabilities []string `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
	Constraints  []string `yaml:"constraints,omitempty" json:"constraints,omitempty"`
	MaxLoops     int      `yaml:"max_loops,omitempty" json:"max_loops,omitempty"`
}

// Snapshot is the read-only configuration view supplied at run start.
//
// A Snapshot is shared by value between components; nothing in this module
// writes to it after construction. Callers that reload settings must build
// a fresh Snapshot; in-flight runs keep the one they started with.
type Snapshot struct {
	// Enabled is the master kill switch. When false, admission rejects
	// every request before any model call.
	Enabled bool `json:"enabled"`

	// DefaultSwarmType is used when a request omits swarm_type.
	DefaultSwarmType string `json:"default_swarm_type"`

	// DefaultModel is the terminal fallback of model resolution.
	DefaultModel string `json:"default_model"`

	// MaxAgents caps the roster size of a single request.
	MaxAgents int `json:"max_agents"`

	// MaxLoopsPerAgent caps internal turns per agent (group chat rounds,
	// per-agent loop counts).
	MaxLoopsPerAgent int `json:"max_loops_per_agent"`

	// ExecutionTimeout bounds the whole run; the deadline is the sole
	// cancellation source.
	ExecutionTimeout time.Duration `json:"execution_timeout"`

	// TrackTokens toggles the usage tracker.
	TrackTokens bool `json:"track_tokens"`

	// DynamicReassignment enables role substitution in the dynamic topology.
	DynamicReassignment bool `json:"dynamic_reassignment"`

	// OutputFormat selects the rendering at the tool boundary:
	// "markdown" (default), "json" or "plain".
	OutputFormat string `json:"output_format"`

	// Tiers maps each tier to its routing config.
	Tiers map[Tier]TierConfig `json:"tiers"`

	// Manifests holds the saved agent templates, matched by exact name.
	Manifests []Manifest `json:"manifests"`
}

// DefaultModelName is used when neither the snapshot nor the request names a model.
const DefaultModelName = "gpt-4o-mini"

// Default returns a snapshot mirroring the stock configuration of the
// settings store: swarms enabled, sequential default, 10 agents, 3 loops,
// 300s timeout, token tracking on, all tiers enabled.
func Default() Snapshot {
	return Snapshot{
		Enabled:          true,
		DefaultSwarmType: "sequential",
		DefaultModel:     DefaultModelName,
		MaxAgents:        10,
		MaxLoopsPerAgent: 3,
		ExecutionTimeout: 300 * time.Second,
		TrackTokens:      true,
		OutputFormat:     "markdown",
		Tiers: map[Tier]TierConfig{
			TierPremium: {Enabled: true, Model: "claude-sonnet-4-20250514"},
			TierMid:     {Enabled: true, Model: "gpt-4o-mini"},
			TierLow:     {Enabled: true, Model: "gpt-3.5-turbo"},
		},
	}
}

// Manifest returns the saved template with the given name. Lookup is
// case-sensitive and exact; a miss is not an error, the caller falls back
// to an empty template.
func (s Snapshot) Manifest(name string) (Manifest, bool) {
	for _, m := range s.Manifests {
		if m.Name == name {
			return m, true
		}
	}
	return Manifest{}, false
}

// TierModel returns the model configured for the tier if the tier exists
// and is enabled. A disabled or unknown tier reports false.
func (s Snapshot) TierModel(t Tier) (string, bool) {
	cfg, ok := s.Tiers[t]
	if !ok || !cfg.Enabled || cfg.Model == "" {
		return "", false
	}
	return cfg.Model, true
}

// Validate checks the snapshot's limits for internal consistency. It does
// not reject missing tiers or manifests; those simply never match.
func (s Snapshot) Validate() error {
	if s.MaxAgents <= 0 {
		return fmt.Errorf("settings: max_agents must be positive, got %d", s.MaxAgents)
	}
	if s.MaxLoopsPerAgent <= 0 {
		return fmt.Errorf("settings: max_loops_per_agent must be positive, got %d", s.MaxLoopsPerAgent)
	}
	if s.ExecutionTimeout <= 0 {
		return fmt.Errorf("settings: execution_timeout must be positive, got %s", s.ExecutionTimeout)
	}
	if s.DefaultModel == "" {
		return fmt.Errorf("settings: default_model must not be empty")
	}
	for t := range s.Tiers {
		if !t.Valid() {
			return fmt.Errorf("settings: unknown tier %q", t)
		}
	}
	return nil
}
