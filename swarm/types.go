// Package swarm implements the orchestration core: admission of swarm
// requests, agent resolution against the settings snapshot, the six
// topology strategies, output aggregation and usage tracking.
package swarm

import (
	"time"

	"github.com/hupe1980/agentswarm/model"
	"github.com/hupe1980/agentswarm/settings"
)

// Type identifies the execution topology of a swarm run. The set is closed:
// strategies are dispatched through a table keyed by this enum, adding a
// topology means adding a variant plus a strategy implementation.
type Type string

const (
	// TypeSequential invokes agents in request order, feeding each agent
	// the previous agent's output as context.
	TypeSequential Type = "sequential"
	// TypeConcurrent invokes all agents in parallel against the identical
	// task with no cross-agent context.
	TypeConcurrent Type = "concurrent"
	// TypeMixture is concurrent fan-out followed by one aggregation pass
	// over the successful outputs.
	TypeMixture Type = "mixture"
	// TypeGroupChat runs fixed round-robin turns, each turn seeing the
	// full transcript of prior turns.
	TypeGroupChat Type = "group_chat"
	// TypeHierarchical treats the first agent as a director that emits a
	// delegation plan, fans out workers, then synthesizes their outputs.
	TypeHierarchical Type = "hierarchical"
	// TypeDynamic is sequential execution with optional per-turn role
	// reassignment from the roster.
	TypeDynamic Type = "dynamic"
)

// Valid returns true if the type is one of the six known topologies.
func (t Type) Valid() bool {
	switch t {
	case TypeSequential, TypeConcurrent, TypeMixture, TypeGroupChat, TypeHierarchical, TypeDynamic:
		return true
	default:
		return false
	}
}

// Types returns all known topologies in a stable order.
func Types() []Type {
	return []Type{TypeSequential, TypeConcurrent, TypeMixture, TypeGroupChat, TypeHierarchical, TypeDynamic}
}

// AgentSpec is a raw agent definition supplied by the caller. Name may
// reference a saved manifest by exact match; unset fields are then filled
// from the manifest during resolution.
type AgentSpec struct {
	Name         string        `json:"name"`
	SystemPrompt string        `json:"system_prompt,omitempty"`
	Tier         settings.Tier `json:"tier,omitempty"`
	Model        string        `json:"model,omitempty"`
	Capabilities []string      `json:"capabilities,omitempty"`
	Constraints  []string      `json:"constraints,omitempty"`
	MaxLoops     int           `json:"max_loops,omitempty"`
}

// Request is one swarm invocation: a task plus an ordered roster of agent
// specs. It is immutable once handed to the guard.
type Request struct {
	Task      string      `json:"task"`
	SwarmType Type        `json:"swarm_type,omitempty"`
	Agents    []AgentSpec `json:"agents"`
}

// ResolvedAgent is an agent after manifest merge and model resolution,
// ready to invoke. Model is always a concrete model string; SystemPrompt is
// non-empty (resolution fails otherwise).
type ResolvedAgent struct {
	Name         string        `json:"name"`
	SystemPrompt string        `json:"system_prompt"`
	Model        string        `json:"model"`
	Capabilities []string      `json:"capabilities,omitempty"`
	Constraints  []string      `json:"constraints,omitempty"`
	MaxLoops     int           `json:"max_loops"`
	// TierUsed is empty when the model was chosen explicitly or via the
	// global default rather than through tier routing.
	TierUsed settings.Tier `json:"tier_used,omitempty"`
}

// RunStatus is the lifecycle state of a swarm run.
type RunStatus string

const (
	// RunPending means the run is admitted but not yet executing.
	RunPending RunStatus = "pending"
	// RunRunning means the topology strategy is executing.
	RunRunning RunStatus = "running"
	// RunCompleted means every agent succeeded.
	RunCompleted RunStatus = "completed"
	// RunPartiallyFailed means some but not all agents succeeded.
	RunPartiallyFailed RunStatus = "partially_failed"
	// RunFailed means no agent succeeded.
	RunFailed RunStatus = "failed"
	// RunTimedOut means the deadline elapsed before any agent succeeded.
	RunTimedOut RunStatus = "timed_out"
)

// Terminal reports whether the status is a terminal state.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunPartiallyFailed, RunFailed, RunTimedOut:
		return true
	default:
		return false
	}
}

// AgentStatus is the outcome of one agent within a run.
type AgentStatus string

const (
	// AgentSuccess means the agent produced output.
	AgentSuccess AgentStatus = "success"
	// AgentFailed means resolution or invocation failed.
	AgentFailed AgentStatus = "failed"
	// AgentTimedOut means the run deadline elapsed mid-call; the call's
	// eventual result, if any, was discarded.
	AgentTimedOut AgentStatus = "timed_out"
	// AgentSkipped means the agent was never invoked (upstream failure or
	// deadline before its turn).
	AgentSkipped AgentStatus = "skipped"
)

// AgentResult records the outcome of a single roster slot. Output is
// present iff Status is AgentSuccess; Error iff Failed or TimedOut.
// Entries are append-only: once recorded they are never mutated.
type AgentResult struct {
	AgentName string      `json:"agent_name"`
	Status    AgentStatus `json:"status"`
	Output    string      `json:"output,omitempty"`
	Error     string      `json:"error,omitempty"`
	Usage     model.Usage `json:"usage"`
	// LoopCount is the number of internal turns actually executed, bounded
	// by the resolved agent's MaxLoops.
	LoopCount int `json:"loop_count"`
	// ReassignedFrom names the agent originally planned for this slot when
	// the dynamic topology substituted a better-fit agent. Empty otherwise.
	ReassignedFrom string `json:"reassigned_from,omitempty"`
}

// RunUsage is the accumulated token accounting of a whole run.
type RunUsage struct {
	TokensIn  int `json:"tokens_in"`
	TokensOut int `json:"tokens_out"`
	Calls     int `json:"calls"`
}

// Result is the single structured outcome returned to the caller. Agent
// results are reported in original request order regardless of completion
// order.
type Result struct {
	RunID         string        `json:"run_id"`
	SwarmType     Type          `json:"swarm_type"`
	OverallStatus RunStatus     `json:"overall_status"`
	AgentResults  []AgentResult `json:"agent_results"`
	// AggregatedOutput is present when the topology produces a single
	// synthesized answer (sequential tail, mixture/hierarchical synthesis,
	// group chat's final message).
	AggregatedOutput string `json:"aggregated_output,omitempty"`
	// AggregationDegraded is set when a synthesis call failed and the
	// result fell back to plain concatenation.
	AggregationDegraded bool          `json:"aggregation_degraded,omitempty"`
	Usage               RunUsage      `json:"usage"`
	StartedAt           time.Time     `json:"started_at"`
	Duration            time.Duration `json:"duration"`
}

// Run is the in-memory state of one orchestrated execution. It is owned
// exclusively by the topology executor for the run's duration and discarded
// once the Result is returned; nothing about a run survives the process.
type Run struct {
	ID        string
	Request   Request
	SwarmType Type
	Roster    []ResolvedAgent
	Status    RunStatus
	StartedAt time.Time
	Deadline  time.Time
	Results   []AgentResult
}
