package swarm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentswarm/model"
	"github.com/hupe1980/agentswarm/settings"
)

// routeInvoker dispatches canned responses by the request's model id, which
// lets tests address individual agents in any topology. All calls are
// recorded in arrival order.
type routeInvoker struct {
	mu       sync.Mutex
	calls    []model.Request
	handlers map[string]func(req model.Request) (model.Response, error)
}

func newRouteInvoker() *routeInvoker {
	return &routeInvoker{handlers: make(map[string]func(req model.Request) (model.Response, error))}
}

func (r *routeInvoker) respond(modelID, text string) {
	r.handlers[modelID] = func(model.Request) (model.Response, error) {
		return model.Response{Text: text, Usage: model.Usage{TokensIn: 10, TokensOut: 5}}, nil
	}
}

func (r *routeInvoker) fail(modelID string, err error) {
	r.handlers[modelID] = func(model.Request) (model.Response, error) {
		return model.Response{}, err
	}
}

func (r *routeInvoker) handle(modelID string, fn func(req model.Request) (model.Response, error)) {
	r.handlers[modelID] = fn
}

func (r *routeInvoker) Invoke(_ context.Context, req model.Request) (model.Response, error) {
	r.mu.Lock()
	r.calls = append(r.calls, req)
	handler := r.handlers[req.Model]
	r.mu.Unlock()

	if handler == nil {
		return model.Response{Text: "ok", Usage: model.Usage{TokensIn: 1, TokensOut: 1}}, nil
	}
	return handler(req)
}

func (r *routeInvoker) recorded() []model.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Request, len(r.calls))
	copy(out, r.calls)
	return out
}

func specWithModel(name string) AgentSpec {
	return AgentSpec{
		Name:         name,
		SystemPrompt: fmt.Sprintf("You are %s.", name),
		Model:        "model-" + name,
	}
}

func TestRun_Sequential(t *testing.T) {
	inv := newRouteInvoker()
	inv.respond("model-a", "alpha")
	inv.respond("model-b", "beta")
	inv.respond("model-c", "gamma")

	e := NewExecutor(inv)

	result, err := e.Run(context.Background(), Request{
		Task:      "do the thing",
		SwarmType: TypeSequential,
		Agents:    []AgentSpec{specWithModel("a"), specWithModel("b"), specWithModel("c")},
	}, settings.Default())
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, result.OverallStatus)
	require.Len(t, result.AgentResults, 3)
	assert.Equal(t, "alpha", result.AgentResults[0].Output)
	assert.Equal(t, "beta", result.AgentResults[1].Output)
	assert.Equal(t, "gamma", result.AgentResults[2].Output)
	assert.Equal(t, "gamma", result.AggregatedOutput)

	// Each agent sees the previous agent's output as context.
	calls := inv.recorded()
	require.Len(t, calls, 3)
	assert.Empty(t, calls[0].Context)
	assert.Equal(t, "alpha", calls[1].Context)
	assert.Equal(t, "beta", calls[2].Context)
	for _, c := range calls {
		assert.Equal(t, "do the thing", c.UserPrompt)
	}
}

func TestRun_Sequential_FailureHaltsChain(t *testing.T) {
	inv := newRouteInvoker()
	inv.respond("model-a", "alpha")
	inv.fail("model-b", errors.New("backend down"))
	inv.respond("model-c", "gamma")

	e := NewExecutor(inv)

	result, err := e.Run(context.Background(), Request{
		Task:      "do the thing",
		SwarmType: TypeSequential,
		Agents:    []AgentSpec{specWithModel("a"), specWithModel("b"), specWithModel("c")},
	}, settings.Default())
	require.NoError(t, err)

	assert.Equal(t, RunPartiallyFailed, result.OverallStatus)
	assert.Equal(t, AgentSuccess, result.AgentResults[0].Status)
	assert.Equal(t, AgentFailed, result.AgentResults[1].Status)
	assert.Contains(t, result.AgentResults[1].Error, "backend down")
	assert.Equal(t, AgentSkipped, result.AgentResults[2].Status)
	assert.Equal(t, "alpha", result.AggregatedOutput)

	// The skipped agent is never invoked.
	assert.Len(t, inv.recorded(), 2)
}

func TestRun_Concurrent_OrderPreserved(t *testing.T) {
	inv := newRouteInvoker()
	inv.respond("model-a", "alpha")
	inv.respond("model-b", "beta")
	inv.respond("model-c", "gamma")

	e := NewExecutor(inv)

	result, err := e.Run(context.Background(), Request{
		Task:      "fan out",
		SwarmType: TypeConcurrent,
		Agents:    []AgentSpec{specWithModel("a"), specWithModel("b"), specWithModel("c")},
	}, settings.Default())
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, result.OverallStatus)
	require.Len(t, result.AgentResults, 3)
	assert.Equal(t, "a", result.AgentResults[0].AgentName)
	assert.Equal(t, "b", result.AgentResults[1].AgentName)
	assert.Equal(t, "c", result.AgentResults[2].AgentName)

	// No cross-agent context in the concurrent topology.
	for _, c := range inv.recorded() {
		assert.Empty(t, c.Context)
	}
}

func TestRun_Mixture(t *testing.T) {
	inv := newRouteInvoker()
	inv.respond("model-a", "alpha")
	inv.fail("model-b", errors.New("boom"))
	inv.respond("model-c", "gamma")

	e := NewExecutor(inv)

	result, err := e.Run(context.Background(), Request{
		Task:      "combine",
		SwarmType: TypeMixture,
		Agents:    []AgentSpec{specWithModel("a"), specWithModel("b"), specWithModel("c")},
	}, settings.Default())
	require.NoError(t, err)

	assert.Equal(t, RunPartiallyFailed, result.OverallStatus)
	assert.Equal(t, "alpha\n\n---\n\ngamma", result.AggregatedOutput)
	assert.False(t, result.AggregationDegraded)
}

func TestRun_Mixture_AllFail(t *testing.T) {
	inv := newRouteInvoker()
	inv.fail("model-a", errors.New("boom"))
	inv.fail("model-b", errors.New("boom"))

	e := NewExecutor(inv)

	result, err := e.Run(context.Background(), Request{
		Task:      "combine",
		SwarmType: TypeMixture,
		Agents:    []AgentSpec{specWithModel("a"), specWithModel("b")},
	}, settings.Default())
	require.NoError(t, err)

	assert.Equal(t, RunFailed, result.OverallStatus)
	assert.Empty(t, result.AggregatedOutput)
}

func TestRun_Mixture_SynthesisDegraded(t *testing.T) {
	inv := newRouteInvoker()
	inv.respond("model-a", "alpha")
	inv.respond("model-b", "beta")

	synthInvoker := model.InvokerFunc(func(context.Context, model.Request) (model.Response, error) {
		return model.Response{}, errors.New("synthesis backend down")
	})

	e := NewExecutor(inv, func(o *ExecutorOptions) {
		o.Aggregator = Synthesis{Invoker: synthInvoker, Model: "gpt-4o-mini"}
	})

	result, err := e.Run(context.Background(), Request{
		Task:      "combine",
		SwarmType: TypeMixture,
		Agents:    []AgentSpec{specWithModel("a"), specWithModel("b")},
	}, settings.Default())
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, result.OverallStatus)
	assert.True(t, result.AggregationDegraded)
	assert.Equal(t, "alpha\n\n---\n\nbeta", result.AggregatedOutput)
}

func TestRun_Mixture_SynthesisUsageRecorded(t *testing.T) {
	inv := newRouteInvoker()
	inv.respond("model-a", "alpha")
	inv.respond("model-b", "beta")

	synthInvoker := model.InvokerFunc(func(context.Context, model.Request) (model.Response, error) {
		return model.Response{
			Text:  "combined",
			Usage: model.Usage{TokensIn: 7, TokensOut: 3},
		}, nil
	})

	e := NewExecutor(inv, func(o *ExecutorOptions) {
		o.Aggregator = Synthesis{Invoker: synthInvoker, Model: "gpt-4o-mini"}
	})

	result, err := e.Run(context.Background(), Request{
		Task:      "combine",
		SwarmType: TypeMixture,
		Agents:    []AgentSpec{specWithModel("a"), specWithModel("b")},
	}, settings.Default())
	require.NoError(t, err)

	assert.Equal(t, "combined", result.AggregatedOutput)

	// Two agent calls at 10/5 each plus the synthesis call at 7/3.
	assert.Equal(t, 27, result.Usage.TokensIn)
	assert.Equal(t, 13, result.Usage.TokensOut)
	assert.Equal(t, 3, result.Usage.Calls)
}

func TestRun_Timeout(t *testing.T) {
	inv := model.NewMockInvoker()
	inv.SetDelay(500 * time.Millisecond)

	snap := settings.Default()
	snap.ExecutionTimeout = 50 * time.Millisecond

	e := NewExecutor(inv)

	result, err := e.Run(context.Background(), Request{
		Task:      "slow task",
		SwarmType: TypeSequential,
		Agents:    []AgentSpec{specWithModel("a"), specWithModel("b")},
	}, snap)
	require.NoError(t, err)

	assert.Equal(t, RunTimedOut, result.OverallStatus)
	assert.Equal(t, AgentTimedOut, result.AgentResults[0].Status)
	assert.Equal(t, AgentSkipped, result.AgentResults[1].Status)
}

func TestRun_Timeout_PartialProgress(t *testing.T) {
	inv := newRouteInvoker()
	inv.respond("model-a", "alpha")
	inv.handle("model-b", func(model.Request) (model.Response, error) {
		time.Sleep(500 * time.Millisecond)
		return model.Response{Text: "late"}, nil
	})

	snap := settings.Default()
	snap.ExecutionTimeout = 100 * time.Millisecond

	e := NewExecutor(inv)

	result, err := e.Run(context.Background(), Request{
		Task:      "slow task",
		SwarmType: TypeSequential,
		Agents:    []AgentSpec{specWithModel("a"), specWithModel("b")},
	}, snap)
	require.NoError(t, err)

	// The deadline hit after one success; partial progress wins over the
	// timeout status.
	assert.Equal(t, RunPartiallyFailed, result.OverallStatus)
	assert.Equal(t, AgentSuccess, result.AgentResults[0].Status)
	assert.Equal(t, AgentTimedOut, result.AgentResults[1].Status)
	assert.Equal(t, "alpha", result.AggregatedOutput)
}

func TestRun_Concurrent_DeadlineMidFlight(t *testing.T) {
	slow := func(model.Request) (model.Response, error) {
		time.Sleep(500 * time.Millisecond)
		return model.Response{Text: "late"}, nil
	}

	inv := newRouteInvoker()
	inv.respond("model-a", "alpha")
	inv.handle("model-b", slow)
	inv.handle("model-c", slow)

	snap := settings.Default()
	snap.ExecutionTimeout = 100 * time.Millisecond

	e := NewExecutor(inv)

	result, err := e.Run(context.Background(), Request{
		Task:      "fan out",
		SwarmType: TypeConcurrent,
		Agents:    []AgentSpec{specWithModel("a"), specWithModel("b"), specWithModel("c")},
	}, snap)
	require.NoError(t, err)

	// One agent finished before the deadline, the two in-flight calls were
	// abandoned; partial progress wins over the timeout status.
	assert.Equal(t, RunPartiallyFailed, result.OverallStatus)
	assert.Equal(t, AgentSuccess, result.AgentResults[0].Status)
	assert.Equal(t, AgentTimedOut, result.AgentResults[1].Status)
	assert.Equal(t, AgentTimedOut, result.AgentResults[2].Status)
	assert.Empty(t, result.AgentResults[1].Output)
}

func TestRun_ResolutionFailureHaltsSequential(t *testing.T) {
	inv := newRouteInvoker()

	e := NewExecutor(inv)

	result, err := e.Run(context.Background(), Request{
		Task:      "task",
		SwarmType: TypeSequential,
		Agents: []AgentSpec{
			{Name: "mute"}, // no system prompt anywhere
			specWithModel("b"),
		},
	}, settings.Default())
	require.NoError(t, err)

	assert.Equal(t, RunFailed, result.OverallStatus)
	assert.Equal(t, AgentFailed, result.AgentResults[0].Status)
	assert.Contains(t, result.AgentResults[0].Error, "missing system prompt")
	assert.Equal(t, AgentSkipped, result.AgentResults[1].Status)
	assert.Empty(t, inv.recorded())
}

func TestRun_ResolutionFailureDoesNotHaltConcurrent(t *testing.T) {
	inv := newRouteInvoker()
	inv.respond("model-b", "beta")

	e := NewExecutor(inv)

	result, err := e.Run(context.Background(), Request{
		Task:      "task",
		SwarmType: TypeConcurrent,
		Agents:    []AgentSpec{{Name: "mute"}, specWithModel("b")},
	}, settings.Default())
	require.NoError(t, err)

	assert.Equal(t, RunPartiallyFailed, result.OverallStatus)
	assert.Equal(t, AgentFailed, result.AgentResults[0].Status)
	assert.Equal(t, AgentSuccess, result.AgentResults[1].Status)
}

func TestRun_AdmissionError(t *testing.T) {
	e := NewExecutor(newRouteInvoker())

	_, err := e.Run(context.Background(), Request{Task: ""}, settings.Default())
	assert.ErrorIs(t, err, ErrEmptyTask)
}

func TestRun_UsageTracking(t *testing.T) {
	inv := newRouteInvoker()
	inv.respond("model-a", "alpha")
	inv.respond("model-b", "beta")

	e := NewExecutor(inv)

	result, err := e.Run(context.Background(), Request{
		Task:      "task",
		SwarmType: TypeConcurrent,
		Agents:    []AgentSpec{specWithModel("a"), specWithModel("b")},
	}, settings.Default())
	require.NoError(t, err)

	assert.Equal(t, 20, result.Usage.TokensIn)
	assert.Equal(t, 10, result.Usage.TokensOut)
	assert.Equal(t, 2, result.Usage.Calls)

	total, runs := e.Tracker().Cumulative()
	assert.Equal(t, result.Usage, total)
	assert.Equal(t, 1, runs)
}

func TestRun_UsageTrackingDisabled(t *testing.T) {
	inv := newRouteInvoker()
	inv.respond("model-a", "alpha")

	snap := settings.Default()
	snap.TrackTokens = false

	e := NewExecutor(inv)

	result, err := e.Run(context.Background(), Request{
		Task:      "task",
		SwarmType: TypeSequential,
		Agents:    []AgentSpec{specWithModel("a")},
	}, snap)
	require.NoError(t, err)

	assert.Zero(t, result.Usage)

	_, runs := e.Tracker().Cumulative()
	assert.Zero(t, runs)
}

func TestRun_GroupChat(t *testing.T) {
	inv := newRouteInvoker()
	inv.respond("model-a", "a says hi")
	inv.respond("model-b", "b says hi")

	snap := settings.Default()
	snap.MaxLoopsPerAgent = 2

	e := NewExecutor(inv)

	result, err := e.Run(context.Background(), Request{
		Task:      "discuss",
		SwarmType: TypeGroupChat,
		Agents:    []AgentSpec{specWithModel("a"), specWithModel("b")},
	}, snap)
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, result.OverallStatus)
	assert.Equal(t, 2, result.AgentResults[0].LoopCount)
	assert.Equal(t, 2, result.AgentResults[1].LoopCount)
	assert.Equal(t, "b says hi", result.AggregatedOutput)

	// Four turns total; the last turn sees the three prior messages.
	calls := inv.recorded()
	require.Len(t, calls, 4)
	assert.Empty(t, calls[0].Context)
	assert.Contains(t, calls[3].Context, "a: a says hi")
	assert.Contains(t, calls[3].Context, "b: b says hi")
}

func TestRun_GroupChat_FailedAgentExcluded(t *testing.T) {
	inv := newRouteInvoker()
	inv.respond("model-a", "a speaks")
	inv.fail("model-b", errors.New("boom"))

	snap := settings.Default()
	snap.MaxLoopsPerAgent = 3

	e := NewExecutor(inv)

	result, err := e.Run(context.Background(), Request{
		Task:      "discuss",
		SwarmType: TypeGroupChat,
		Agents:    []AgentSpec{specWithModel("a"), specWithModel("b")},
	}, snap)
	require.NoError(t, err)

	assert.Equal(t, RunPartiallyFailed, result.OverallStatus)
	assert.Equal(t, AgentSuccess, result.AgentResults[0].Status)
	assert.Equal(t, 3, result.AgentResults[0].LoopCount)
	assert.Equal(t, AgentFailed, result.AgentResults[1].Status)
	assert.Equal(t, 1, result.AgentResults[1].LoopCount)

	// b took one failing turn, a took all three rounds.
	assert.Len(t, inv.recorded(), 4)
}

func TestRun_Hierarchical(t *testing.T) {
	inv := newRouteInvoker()
	inv.handle("model-dir", func(req model.Request) (model.Response, error) {
		if strings.Contains(req.UserPrompt, "You are the director") {
			plan := `[{"agent_name":"w1","subtask":"part one"},{"agent_name":"w2","subtask":"part two"}]`
			return model.Response{Text: plan, Usage: model.Usage{TokensIn: 10, TokensOut: 5}}, nil
		}
		return model.Response{Text: "final answer", Usage: model.Usage{TokensIn: 10, TokensOut: 5}}, nil
	})
	inv.respond("model-w1", "one done")
	inv.respond("model-w2", "two done")

	e := NewExecutor(inv)

	result, err := e.Run(context.Background(), Request{
		Task:      "big task",
		SwarmType: TypeHierarchical,
		Agents:    []AgentSpec{specWithModel("dir"), specWithModel("w1"), specWithModel("w2")},
	}, settings.Default())
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, result.OverallStatus)
	assert.Equal(t, "final answer", result.AggregatedOutput)
	assert.False(t, result.AggregationDegraded)

	assert.Equal(t, 2, result.AgentResults[0].LoopCount)
	assert.Equal(t, "one done", result.AgentResults[1].Output)
	assert.Equal(t, "two done", result.AgentResults[2].Output)

	// Workers receive their subtask as the prompt and the original task as
	// context.
	var w1Call model.Request
	var found bool
	for _, c := range inv.recorded() {
		if c.Model == "model-w1" {
			w1Call = c
			found = true
			break
		}
	}
	require.True(t, found)
	assert.Equal(t, "part one", w1Call.UserPrompt)
	assert.Contains(t, w1Call.Context, "big task")
}

func TestRun_Hierarchical_PlanWithFences(t *testing.T) {
	inv := newRouteInvoker()
	inv.handle("model-dir", func(req model.Request) (model.Response, error) {
		if strings.Contains(req.UserPrompt, "You are the director") {
			plan := "Here is my plan:\n```json\n[{\"agent_name\":\"w1\",\"subtask\":\"only part\"}]\n```"
			return model.Response{Text: plan}, nil
		}
		return model.Response{Text: "final"}, nil
	})
	inv.respond("model-w1", "done")

	e := NewExecutor(inv)

	result, err := e.Run(context.Background(), Request{
		Task:      "task",
		SwarmType: TypeHierarchical,
		Agents:    []AgentSpec{specWithModel("dir"), specWithModel("w1")},
	}, settings.Default())
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, result.OverallStatus)
	assert.Equal(t, "done", result.AgentResults[1].Output)
}

func TestRun_Hierarchical_InvalidPlan(t *testing.T) {
	inv := newRouteInvoker()
	inv.respond("model-dir", "I cannot split this task, sorry.")
	inv.respond("model-w1", "never called")

	e := NewExecutor(inv)

	result, err := e.Run(context.Background(), Request{
		Task:      "task",
		SwarmType: TypeHierarchical,
		Agents:    []AgentSpec{specWithModel("dir"), specWithModel("w1")},
	}, settings.Default())
	require.NoError(t, err)

	assert.Equal(t, RunFailed, result.OverallStatus)
	assert.Equal(t, AgentFailed, result.AgentResults[0].Status)
	assert.Contains(t, result.AgentResults[0].Error, "invalid delegation plan")
	assert.Equal(t, AgentSkipped, result.AgentResults[1].Status)

	// Only the director was invoked.
	assert.Len(t, inv.recorded(), 1)
}

func TestRun_Hierarchical_CollectionDegrades(t *testing.T) {
	collected := false
	inv := newRouteInvoker()
	inv.handle("model-dir", func(req model.Request) (model.Response, error) {
		if strings.Contains(req.UserPrompt, "You are the director") {
			return model.Response{Text: `[{"agent_name":"w1","subtask":"part"}]`}, nil
		}
		collected = true
		return model.Response{}, errors.New("collection failed")
	})
	inv.respond("model-w1", "worker output")

	e := NewExecutor(inv)

	result, err := e.Run(context.Background(), Request{
		Task:      "task",
		SwarmType: TypeHierarchical,
		Agents:    []AgentSpec{specWithModel("dir"), specWithModel("w1")},
	}, settings.Default())
	require.NoError(t, err)

	assert.True(t, collected)
	assert.Equal(t, RunCompleted, result.OverallStatus)
	assert.True(t, result.AggregationDegraded)
	assert.Contains(t, result.AggregatedOutput, "worker output")
}

func TestRun_Dynamic_Reassignment(t *testing.T) {
	inv := newRouteInvoker()
	inv.respond("model-a", "please handle the database migration next")
	inv.respond("model-b", "frontend done")
	inv.respond("model-c", "database done")

	snap := settings.Default()
	snap.DynamicReassignment = true

	specs := []AgentSpec{
		specWithModel("a"),
		specWithModel("b"),
		specWithModel("c"),
	}
	specs[1].Capabilities = []string{"frontend"}
	specs[2].Capabilities = []string{"database"}

	e := NewExecutor(inv)

	result, err := e.Run(context.Background(), Request{
		Task:      "task",
		SwarmType: TypeDynamic,
		Agents:    specs,
	}, snap)
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, result.OverallStatus)

	// Slot 1 was reassigned to the database-capable agent because its
	// capability matched the accumulated context.
	assert.Equal(t, "c", result.AgentResults[1].AgentName)
	assert.Equal(t, "b", result.AgentResults[1].ReassignedFrom)
	assert.Equal(t, "database done", result.AgentResults[1].Output)

	// The turn count is unchanged.
	assert.Len(t, result.AgentResults, 3)
	assert.Len(t, inv.recorded(), 3)
}

func TestRun_Dynamic_DisabledBehavesLikeSequential(t *testing.T) {
	inv := newRouteInvoker()
	inv.respond("model-a", "please handle the database migration next")
	inv.respond("model-b", "b output")

	specs := []AgentSpec{specWithModel("a"), specWithModel("b")}
	specs[1].Capabilities = []string{"frontend"}

	snap := settings.Default()
	snap.DynamicReassignment = false

	e := NewExecutor(inv)

	result, err := e.Run(context.Background(), Request{
		Task:      "task",
		SwarmType: TypeDynamic,
		Agents:    specs,
	}, snap)
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, result.OverallStatus)
	assert.Equal(t, "b", result.AgentResults[1].AgentName)
	assert.Empty(t, result.AgentResults[1].ReassignedFrom)
	assert.Equal(t, "b output", result.AggregatedOutput)
}

func TestOverallStatus(t *testing.T) {
	ok := AgentResult{Status: AgentSuccess}
	bad := AgentResult{Status: AgentFailed}

	assert.Equal(t, RunCompleted, overallStatus([]AgentResult{ok, ok}, false))
	assert.Equal(t, RunPartiallyFailed, overallStatus([]AgentResult{ok, bad}, false))
	assert.Equal(t, RunFailed, overallStatus([]AgentResult{bad, bad}, false))
	assert.Equal(t, RunTimedOut, overallStatus([]AgentResult{bad}, true))
	assert.Equal(t, RunPartiallyFailed, overallStatus([]AgentResult{ok, bad}, true))
}
