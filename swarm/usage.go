package swarm

import (
	"sync"

	"github.com/hupe1980/agentswarm/model"
)

// UsageAccumulator collects per-agent token accounting for a single run.
// It is owned exclusively by that run; concurrent topologies record from
// multiple goroutines, so recording is synchronized. Recording never fails
// and never blocks execution beyond the mutex.
type UsageAccumulator struct {
	enabled  bool
	mu       sync.Mutex
	perAgent map[string]model.Usage
	total    RunUsage
}

// Record accumulates one agent call's usage. A no-op when tracking is
// disabled.
func (a *UsageAccumulator) Record(agentName string, u model.Usage) {
	if a == nil || !a.enabled {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	prev := a.perAgent[agentName]
	prev.TokensIn += u.TokensIn
	prev.TokensOut += u.TokensOut
	prev.Latency += u.Latency
	a.perAgent[agentName] = prev

	a.total.TokensIn += u.TokensIn
	a.total.TokensOut += u.TokensOut
	a.total.Calls++
}

// Total returns the run-wide accumulated usage.
func (a *UsageAccumulator) Total() RunUsage {
	if a == nil {
		return RunUsage{}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// PerAgent returns a copy of the per-agent usage map.
func (a *UsageAccumulator) PerAgent() map[string]model.Usage {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]model.Usage, len(a.perAgent))
	for k, v := range a.perAgent {
		out[k] = v
	}
	return out
}

// Tracker holds process-wide cumulative usage across runs. Each run gets
// its own accumulator via NewRun; the accumulator is merged back exactly
// once, after the run completes, under a single synchronized update.
type Tracker struct {
	mu    sync.Mutex
	total RunUsage
	runs  int
}

// NewTracker constructs an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// NewRun returns a fresh accumulator for one run. When enabled is false the
// accumulator silently discards every record.
func (t *Tracker) NewRun(enabled bool) *UsageAccumulator {
	return &UsageAccumulator{
		enabled:  enabled,
		perAgent: make(map[string]model.Usage),
	}
}

// Merge folds a completed run's accumulator into the cumulative totals.
func (t *Tracker) Merge(a *UsageAccumulator) {
	if t == nil || a == nil || !a.enabled {
		return
	}

	total := a.Total()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.total.TokensIn += total.TokensIn
	t.total.TokensOut += total.TokensOut
	t.total.Calls += total.Calls
	t.runs++
}

// Cumulative returns the process-wide totals and the number of merged runs.
func (t *Tracker) Cumulative() (RunUsage, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total, t.runs
}
