// Package tool exposes swarm orchestration as a structured tool for host
// agent frameworks: schema-described arguments in, a stable response
// envelope out. The boundary is total; every failure mode, including
// panics, is converted into an envelope with ok=false.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/agentswarm/settings"
	"github.com/hupe1980/agentswarm/swarm"
)

// Runner is the orchestration surface the tool calls into. The agentswarm
// façade satisfies it.
type Runner interface {
	Run(ctx context.Context, req swarm.Request) (*swarm.Result, error)
	Settings() settings.Snapshot
}

// Response is the envelope returned for every tool call. Exactly one of
// Data and Error is populated, keyed by OK.
type Response struct {
	OK    bool   `json:"ok"`
	Data  *Data  `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Data is the success payload: the rendered output plus the structured
// result for callers that want to inspect it.
type Data struct {
	Output string        `json:"output"`
	Result *swarm.Result `json:"result"`
}

// Args are the arguments accepted by the tool. Agents tolerates both a
// native JSON array and a JSON string containing an array, since host
// frameworks frequently double-encode nested arguments.
type Args struct {
	Task      string    `json:"task"`
	SwarmType string    `json:"swarm_type,omitempty"`
	Agents    AgentList `json:"agents"`
}

// AgentList unmarshals from either a JSON array of agent specs or a JSON
// string that itself contains such an array.
type AgentList []swarm.AgentSpec

// UnmarshalJSON implements json.Unmarshaler.
func (l *AgentList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "\"") {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return err
		}
		data = []byte(inner)
	}

	var specs []swarm.AgentSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return fmt.Errorf("agents must be an array of agent specs: %w", err)
	}

	*l = specs
	return nil
}

// Handler executes swarm runs on behalf of a host framework.
type Handler struct {
	runner Runner
}

// NewHandler creates a tool handler over a runner.
func NewHandler(runner Runner) *Handler {
	return &Handler{runner: runner}
}

// Name returns the unique identifier for this tool.
func (h *Handler) Name() string { return "swarm" }

// Description returns a human-readable description of what this tool does.
func (h *Handler) Description() string {
	return "Orchestrate a team of agents over a task using a swarm topology " +
		"(sequential, concurrent, mixture, group_chat, hierarchical, dynamic) " +
		"and return their combined result."
}

// Parameters returns a JSON schema describing the expected input format.
func (h *Handler) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task": map[string]interface{}{
				"type":        "string",
				"description": "The task the swarm should work on.",
			},
			"swarm_type": map[string]interface{}{
				"type":        "string",
				"enum":        typeNames(),
				"description": "Execution topology. Defaults to the configured default.",
			},
			"agents": map[string]interface{}{
				"type":        "array",
				"description": "Agent specs. Each needs at least a name; a name matching a saved manifest inherits its fields.",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"name":          map[string]interface{}{"type": "string"},
						"system_prompt": map[string]interface{}{"type": "string"},
						"tier":          map[string]interface{}{"type": "string", "enum": []string{"premium", "mid", "low"}},
						"model":         map[string]interface{}{"type": "string"},
						"capabilities":  map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
						"constraints":   map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
						"max_loops":     map[string]interface{}{"type": "integer"},
					},
					"required": []string{"name"},
				},
			},
		},
		"required": []string{"task", "agents"},
	}
}

// Execute runs one swarm request from raw JSON arguments. It never panics
// and never returns a Go error; everything surfaces through the envelope.
func (h *Handler) Execute(ctx context.Context, raw json.RawMessage) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = errorResponse(fmt.Sprintf("internal error: %v", r))
		}
	}()

	var args Args
	if err := json.Unmarshal(raw, &args); err != nil {
		return errorResponse(fmt.Sprintf("invalid arguments: %v", err))
	}

	return h.ExecuteArgs(ctx, args)
}

// ExecuteArgs runs one swarm request from already-decoded arguments.
func (h *Handler) ExecuteArgs(ctx context.Context, args Args) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = errorResponse(fmt.Sprintf("internal error: %v", r))
		}
	}()

	req := swarm.Request{
		Task:      args.Task,
		SwarmType: swarm.Type(args.SwarmType),
		Agents:    args.Agents,
	}

	snap := h.runner.Settings()

	result, err := h.runner.Run(ctx, req)
	if err != nil {
		return errorResponse(err.Error())
	}

	output := swarm.FormatResult(result, snap.OutputFormat, snap.TrackTokens)

	return Response{
		OK:   true,
		Data: &Data{Output: output, Result: result},
	}
}

func errorResponse(msg string) Response {
	return Response{OK: false, Error: msg}
}

func typeNames() []string {
	types := swarm.Types()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}
