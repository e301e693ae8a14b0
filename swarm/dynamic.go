package swarm

// runDynamic is the sequential chain with optional per-turn role
// reassignment. Before each turn the selector may substitute the slot's
// agent with a better-suited roster member based on the accumulated
// context; the substitution is recorded on the result and never changes
// the number of turns. With reassignment disabled in settings the topology
// behaves exactly like sequential.
func (e *Executor) runDynamic(st *runState) {
	reassign := st.snap.DynamicReassignment && e.selector != nil

	var resolved []ResolvedAgent
	if reassign {
		resolved = make([]ResolvedAgent, 0, len(st.roster))
		for _, entry := range st.roster {
			if entry.resolveErr == nil {
				resolved = append(resolved, entry.agent)
			}
		}
	}

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

		agent := entry.agent
		reassignedFrom := ""
		if reassign {
			if chosen := e.selector.Select(agent, resolved, prev); chosen.Name != agent.Name {
				reassignedFrom = agent.Name
				agent = chosen
				st.logger.Debug("Role reassigned", "from", reassignedFrom, "to", agent.Name)
			}
		}

		res := e.invokeAgent(st, agent, st.task, prev)
		res.ReassignedFrom = reassignedFrom
		st.results[i] = res

		switch res.Status {
		case AgentSuccess:
			prev = res.Output
		default:
			halted = true
		}
	}

	st.aggregated = prev
}
