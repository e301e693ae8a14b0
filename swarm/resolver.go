package swarm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/agentswarm/settings"
)

// ErrMissingSystemPrompt is returned when neither the spec nor a matching
// manifest supplies a system prompt.
var ErrMissingSystemPrompt = errors.New("missing system prompt")

// Resolve turns a raw agent spec into a fully resolved agent by merging
// manifest fields and applying model precedence (explicit model > enabled
// tier > snapshot default).
//
// Resolution is pure: it reads only its arguments, so resolving the agents
// of one request in any order yields identical results. An unknown manifest
// reference is not an error; the spec simply overlays an empty template.
func Resolve(spec AgentSpec, snap settings.Snapshot) (ResolvedAgent, error) {
	tpl, _ := snap.Manifest(spec.Name)

	merged := overlay(tpl, spec)

	if strings.TrimSpace(merged.SystemPrompt) == "" {
		return ResolvedAgent{}, fmt.Errorf("agent %q: %w", spec.Name, ErrMissingSystemPrompt)
	}

	agent := ResolvedAgent{
		Name:         merged.Name,
		SystemPrompt: merged.SystemPrompt,
		Capabilities: merged.Capabilities,
		Constraints:  merged.Constraints,
		MaxLoops:     clampLoops(merged.MaxLoops, snap.MaxLoopsPerAgent),
	}

	switch {
	case merged.Model != "":
		// Explicit model wins; tier is ignored even when set.
		agent.Model = merged.Model
	default:
		if m, ok := snap.TierModel(merged.Tier); ok {
			agent.Model = m
			agent.TierUsed = merged.Tier
		} else {
			agent.Model = snap.DefaultModel
		}
	}

	agent.SystemPrompt = appendTraits(agent.SystemPrompt, agent.Capabilities, agent.Constraints)

	return agent, nil
}

// overlay applies every set field of the spec onto the manifest template.
// The merge is shallow and field-level: a spec-supplied capability or
// constraint list replaces the manifest list wholesale.
func overlay(tpl settings.Manifest, spec AgentSpec) AgentSpec {
	merged := AgentSpec{
		Name:         spec.Name,
		SystemPrompt: tpl.SystemPrompt,
		Tier:         tpl.Tier,
		Model:        tpl.Model,
		Capabilities: tpl.Capabilities,
		Constraints:  tpl.Constraints,
		MaxLoops:     tpl.MaxLoops,
	}

	if spec.SystemPrompt != "" {
		merged.SystemPrompt = spec.SystemPrompt
	}
	if spec.Tier != "" {
		merged.Tier = spec.Tier
	}
	if spec.Model != "" {
		merged.Model = spec.Model
	}
	if spec.Capabilities != nil {
		merged.Capabilities = spec.Capabilities
	}
	if spec.Constraints != nil {
		merged.Constraints = spec.Constraints
	}
	if spec.MaxLoops != 0 {
		merged.MaxLoops = spec.MaxLoops
	}

	return merged
}

// appendTraits folds declared capabilities and constraints into the system
// prompt so the model knows its role boundaries.
func appendTraits(prompt string, capabilities, constraints []string) string {
	var b strings.Builder
	b.WriteString(prompt)
	if len(capabilities) > 0 {
		b.WriteString("\n\nYour capabilities: ")
		b.WriteString(strings.Join(capabilities, ", "))
	}
	if len(constraints) > 0 {
		b.WriteString("\n\nYour constraints: ")
		b.WriteString(strings.Join(constraints, ", "))
	}
	return b.String()
}

func clampLoops(requested, limit int) int {
	if requested <= 0 {
		return 1
	}
	if requested > limit {
		return limit
	}
	return requested
}
