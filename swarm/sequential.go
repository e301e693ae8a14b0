package swarm

// runSequential invokes agents in request order. Each agent's prompt is the
// original task with the previous agent's verbatim output as context; the
// first agent sees only the task. A failure stops the chain: remaining
// agents are marked skipped and the aggregated output is the last
// successful output.
func (e *Executor) runSequential(st *runState) {
	prev := ""
	halted := false

	for i, entry := range st.roster {
		if halted {
			st.results[i] = skippedResult(entry.name)
			continue
		}

		if entry.resolveErr != nil {
			st.results[i] = failedResult(entry.name, entry.resolveErr)
			halted = true
			continue
		}

		res := e.invokeAgent(st, entry.agent, st.task, prev)
		st.results[i] = res

		switch res.Status {
		case AgentSuccess:
			prev = res.Output
		case AgentSkipped, AgentTimedOut:
			// Deadline reached; the remaining slots are skipped through
			// the halted path.
			halted = true
		default:
			halted = true
		}
	}

	st.aggregated = prev
}
