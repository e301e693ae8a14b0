package swarm

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentswarm/model"
)

// DefaultSynthesisPrompt instructs the synthesis model call used by the
// mixture topology and hierarchical collection when no custom prompt is set.
const DefaultSynthesisPrompt = "Synthesize and combine all agent outputs into a comprehensive, well-structured final answer."

// Aggregator folds multiple agent outputs into one result. Implementations
// must be deterministic given the same inputs and must never fail: when a
// higher-quality synthesis step cannot complete, they degrade to a plain
// concatenation and report degraded=true. The returned usage covers any
// model call the aggregation itself made, so the run's accounting includes
// synthesis turns; it is zero for pure concatenation.
type Aggregator interface {
	Aggregate(ctx context.Context, task string, outputs []string) (text string, usage model.Usage, degraded bool)
}

// Concat joins outputs with a separator, preserving input order. It is the
// cheap fallback that is always available.
type Concat struct {
	// Separator defaults to a markdown horizontal rule when empty.
	Separator string
}

// Aggregate implements Aggregator.
func (c Concat) Aggregate(_ context.Context, _ string, outputs []string) (string, model.Usage, bool) {
	sep := c.Separator
	if sep == "" {
		sep = "\n\n---\n\n"
	}
	return strings.Join(outputs, sep), model.Usage{}, false
}

// Synthesis performs one model call over the concatenated outputs to
// produce a combined answer. A failed call falls back to Concat and marks
// the aggregation degraded, so aggregation itself can never fail.
type Synthesis struct {
	Invoker model.Invoker
	// Model is the model id for the synthesis call.
	Model string
	// SystemPrompt overrides DefaultSynthesisPrompt when set.
	SystemPrompt string
	// Fallback is used verbatim when the synthesis call fails.
	Fallback Concat
}

// Aggregate implements Aggregator.
func (s Synthesis) Aggregate(ctx context.Context, task string, outputs []string) (string, model.Usage, bool) {
	concatenated, _, _ := s.Fallback.Aggregate(ctx, task, outputs)

	if s.Invoker == nil {
		return concatenated, model.Usage{}, true
	}

	prompt := s.SystemPrompt
	if prompt == "" {
		prompt = DefaultSynthesisPrompt
	}

	resp, err := s.Invoker.Invoke(ctx, model.Request{
		Model:        s.Model,
		SystemPrompt: prompt,
		UserPrompt:   fmt.Sprintf("Task: %s\n\nAgent outputs:\n\n%s", task, concatenated),
	})
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		return concatenated, model.Usage{}, true
	}

	return resp.Text, resp.Usage, false
}
