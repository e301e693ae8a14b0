package swarm

import "github.com/hupe1980/agentswarm/model"

// synthesisUsageName labels aggregation model calls in the usage accounting,
// since the synthesis turn belongs to the run rather than to any one agent.
const synthesisUsageName = "synthesis"

// runMixture is the concurrent fan-out followed by one aggregation pass
// over the successful outputs, in request order. With zero successes the
// aggregation is skipped entirely and the run reports failure through the
// usual status rules.
func (e *Executor) runMixture(st *runState) {
	e.runConcurrent(st)

	outputs := make([]string, 0, len(st.results))
	for _, r := range st.results {
		if r.Status == AgentSuccess {
			outputs = append(outputs, r.Output)
		}
	}

	if len(outputs) == 0 {
		return
	}

	var usage model.Usage
	st.aggregated, usage, st.degraded = e.aggregator.Aggregate(st.ctx, st.task, outputs)
	if usage != (model.Usage{}) {
		st.usage.Record(synthesisUsageName, usage)
	}
	if st.degraded {
		st.logger.Warn("Aggregation degraded to concatenation")
	}
}
