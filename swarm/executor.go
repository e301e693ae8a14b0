package swarm

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/model"
	"github.com/hupe1980/agentswarm/settings"
)

// ExecutorOptions configures an Executor instance.
//
// Use functional options with NewExecutor to override defaults.
type ExecutorOptions struct {
	// Aggregator synthesizes multi-agent outputs (mixture, hierarchical
	// collection). Defaults to plain concatenation.
	Aggregator Aggregator
	// Selector drives role reassignment in the dynamic topology.
	Selector Selector
	// Tracker receives per-run usage after each run completes.
	Tracker *Tracker
	// Logger receives structured run lifecycle events.
	Logger logging.Logger
	// TurnsPerRound caps how many turns a group chat round may take before
	// the round ends early. Zero means every active agent speaks once.
	TurnsPerRound int
}

// Executor drives the six topology strategies against the opaque model
// invocation surface. One executor serves many runs; all per-run state
// lives in the run itself, so Run is safe for concurrent use.
type Executor struct {
	invoker       model.Invoker
	aggregator    Aggregator
	selector      Selector
	tracker       *Tracker
	logger        logging.Logger
	turnsPerRound int
	strategies    map[Type]strategyFunc
}

// strategyFunc executes one topology over prepared run state. Strategies
// fill st.results (indexed by roster position) and may set st.aggregated.
type strategyFunc func(st *runState)

// NewExecutor creates a topology executor with sensible defaults: Concat
// aggregation, keyword-based dynamic selection, a fresh tracker and silent
// logging.
func NewExecutor(invoker model.Invoker, optFns ...func(o *ExecutorOptions)) *Executor {
	opts := ExecutorOptions{
		Aggregator: Concat{},
		Selector:   KeywordSelector{},
		Tracker:    NewTracker(),
		Logger:     logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	e := &Executor{
		invoker:       invoker,
		aggregator:    opts.Aggregator,
		selector:      opts.Selector,
		tracker:       opts.Tracker,
		logger:        opts.Logger,
		turnsPerRound: opts.TurnsPerRound,
	}

	// Closed dispatch table: one entry per Type variant.
	e.strategies = map[Type]strategyFunc{
		TypeSequential:   e.runSequential,
		TypeConcurrent:   e.runConcurrent,
		TypeMixture:      e.runMixture,
		TypeGroupChat:    e.runGroupChat,
		TypeHierarchical: e.runHierarchical,
		TypeDynamic:      e.runDynamic,
	}

	return e
}

// Tracker exposes the executor's cumulative usage tracker.
func (e *Executor) Tracker() *Tracker { return e.tracker }

// rosterEntry pairs a resolved agent with its resolution error, if any.
// Strategies treat an unresolved slot as an agent whose invocation fails
// immediately; whether siblings continue is a per-topology rule.
type rosterEntry struct {
	name       string
	agent      ResolvedAgent
	resolveErr error
}

// runState is the per-run working set handed to a strategy. It is owned by
// exactly one run and never shared.
type runState struct {
	ctx        context.Context
	task       string
	snap       settings.Snapshot
	roster     []rosterEntry
	results    []AgentResult
	aggregated string
	degraded   bool
	logger     logging.Logger
	usage      *UsageAccumulator
}

// Run executes one admitted swarm request to completion and returns the
// structured result. Admission failures return an error and create no run
// state; every other failure mode is reported inside the Result.
func (e *Executor) Run(ctx context.Context, req Request, snap settings.Snapshot) (*Result, error) {
	adm, err := Admit(req, snap)
	if err != nil {
		return nil, err
	}

	run := &Run{
		ID:        uuid.New().String(),
		Request:   req,
		SwarmType: adm.SwarmType,
		Status:    RunPending,
		StartedAt: time.Now(),
		Deadline:  adm.Deadline,
	}

	logger := e.logger
	logger.Info("Swarm starting",
		"run_id", run.ID,
		"swarm_type", string(adm.SwarmType),
		"agent_count", len(req.Agents),
		"timeout", adm.Timeout.String(),
	)

	roster := make([]rosterEntry, len(req.Agents))
	for i, spec := range req.Agents {
		agent, rerr := Resolve(spec, snap)
		roster[i] = rosterEntry{name: spec.Name, agent: agent, resolveErr: rerr}
		if rerr != nil {
			logger.Warn("Agent resolution failed", "run_id", run.ID, "agent", spec.Name, "error", rerr.Error())
			continue
		}
		run.Roster = append(run.Roster, agent)
		if agent.TierUsed != "" {
			logger.Debug("Tier routing applied", "run_id", run.ID, "agent", agent.Name, "tier", string(agent.TierUsed), "model", agent.Model)
		}
	}

	runCtx, cancel := adm.Context(ctx)
	defer cancel()

	st := &runState{
		ctx:     runCtx,
		task:    req.Task,
		snap:    snap,
		roster:  roster,
		results: make([]AgentResult, len(roster)),
		logger:  logger,
		usage:   e.tracker.NewRun(snap.TrackTokens),
	}

	run.Status = RunRunning
	e.strategies[adm.SwarmType](st)

	run.Results = st.results
	run.Status = overallStatus(st.results, runCtx.Err() != nil)

	e.tracker.Merge(st.usage)

	result := &Result{
		RunID:               run.ID,
		SwarmType:           run.SwarmType,
		OverallStatus:       run.Status,
		AgentResults:        run.Results,
		AggregatedOutput:    st.aggregated,
		AggregationDegraded: st.degraded,
		Usage:               st.usage.Total(),
		StartedAt:           run.StartedAt,
		Duration:            time.Since(run.StartedAt),
	}

	logger.Info("Swarm completed",
		"run_id", run.ID,
		"swarm_type", string(run.SwarmType),
		"status", string(run.Status),
		"duration", result.Duration.String(),
		"tokens_in", result.Usage.TokensIn,
		"tokens_out", result.Usage.TokensOut,
	)

	return result, nil
}

// overallStatus folds per-agent outcomes into the run status. The deadline
// only surfaces as TimedOut when it expired before any agent succeeded;
// otherwise the partial progress is reported as such.
func overallStatus(results []AgentResult, deadlineHit bool) RunStatus {
	succeeded := 0
	for _, r := range results {
		if r.Status == AgentSuccess {
			succeeded++
		}
	}

	switch {
	case succeeded == len(results) && len(results) > 0:
		return RunCompleted
	case succeeded > 0:
		return RunPartiallyFailed
	case deadlineHit:
		return RunTimedOut
	default:
		return RunFailed
	}
}

// invokeAgent performs one model call for one agent turn, honoring the run
// deadline. A signaled deadline before the turn starts yields Skipped; a
// deadline elapsing mid-call yields TimedOut and the call's eventual result
// is discarded (the in-flight request itself is not hard-aborted).
func (e *Executor) invokeAgent(st *runState, agent ResolvedAgent, userPrompt, contextText string) AgentResult {
	if st.ctx.Err() != nil {
		return AgentResult{AgentName: agent.Name, Status: AgentSkipped}
	}

	req := model.Request{
		Model:        agent.Model,
		SystemPrompt: agent.SystemPrompt,
		UserPrompt:   userPrompt,
		Context:      contextText,
	}

	start := time.Now()

	type outcome struct {
		resp model.Response
		err  error
	}
	done := make(chan outcome, 1)

	// The call itself runs on a detached context so that an in-flight
	// request is not hard-aborted when the run deadline fires; the run
	// merely stops waiting for it.
	callCtx := context.WithoutCancel(st.ctx)
	go func() {
		resp, err := e.invoker.Invoke(callCtx, req)
		done <- outcome{resp: resp, err: err}
	}()

	select {
	case <-st.ctx.Done():
		st.logger.Warn("Agent call abandoned at run deadline", "agent", agent.Name, "model", agent.Model, "elapsed", time.Since(start).String())
		return AgentResult{
			AgentName: agent.Name,
			Status:    AgentTimedOut,
			Error:     "run deadline exceeded before the model call returned",
			Usage:     model.Usage{Latency: time.Since(start)},
			LoopCount: 1,
		}
	case out := <-done:
		latency := time.Since(start)
		if out.err != nil {
			st.logger.Warn("Agent call failed", "agent", agent.Name, "model", agent.Model, "error", out.err.Error())
			return AgentResult{
				AgentName: agent.Name,
				Status:    AgentFailed,
				Error:     out.err.Error(),
				Usage:     model.Usage{Latency: latency},
				LoopCount: 1,
			}
		}

		usage := out.resp.Usage
		usage.Latency = latency
		st.usage.Record(agent.Name, usage)
		st.logger.Debug("Agent call completed", "agent", agent.Name, "model", agent.Model, "tokens_in", usage.TokensIn, "tokens_out", usage.TokensOut)

		return AgentResult{
			AgentName: agent.Name,
			Status:    AgentSuccess,
			Output:    out.resp.Text,
			Usage:     usage,
			LoopCount: 1,
		}
	}
}

// failedResult records a roster slot that never reached invocation, for
// example because resolution failed.
func failedResult(name string, err error) AgentResult {
	return AgentResult{AgentName: name, Status: AgentFailed, Error: err.Error()}
}

// skippedResult records a roster slot that was never started.
func skippedResult(name string) AgentResult {
	return AgentResult{AgentName: name, Status: AgentSkipped}
}
