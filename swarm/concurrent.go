package swarm

import "sync"

// runConcurrent launches every agent in parallel against the identical task
// with no cross-agent context. Results land in their original roster slots,
// so reporting order is stable regardless of completion order. The roster
// size is bounded at admission; no additional pool throttling applies here.
func (e *Executor) runConcurrent(st *runState) {
	var wg sync.WaitGroup

	for i, entry := range st.roster {
		if entry.resolveErr != nil {
			st.results[i] = failedResult(entry.name, entry.resolveErr)
			continue
		}

		wg.Add(1)
		go func(slot int, agent ResolvedAgent) {
			defer wg.Done()
			st.results[slot] = e.invokeAgent(st, agent, st.task, "")
		}(i, entry.agent)
	}

	wg.Wait()
}
