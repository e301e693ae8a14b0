package swarm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentswarm/model"
)

// ErrInvalidDelegationPlan is returned inside the director's result when its
// output cannot be parsed into at least one valid delegation step. No
// workers are invoked in that case.
var ErrInvalidDelegationPlan = errors.New("invalid delegation plan")

// planStep is one entry of the director's delegation plan.
type planStep struct {
	AgentName string `json:"agent_name"`
	Subtask   string `json:"subtask"`
}

// runHierarchical treats the first roster agent as the director. The
// director is invoked with the task and the worker roster, its output is
// parsed as an ordered delegation plan, the named workers run concurrently
// on their subtasks, and the director is invoked once more over the worker
// outputs to produce the aggregated answer.
func (e *Executor) runHierarchical(st *runState) {
	director := st.roster[0]

	if director.resolveErr != nil {
		st.results[0] = failedResult(director.name, director.resolveErr)
		for i := 1; i < len(st.roster); i++ {
			st.results[i] = skippedResult(st.roster[i].name)
		}
		return
	}

	workers := st.roster[1:]

	planRes := e.invokeAgent(st, director.agent, delegationPrompt(st.task, workers), "")
	if planRes.Status != AgentSuccess {
		st.results[0] = planRes
		for i := 1; i < len(st.roster); i++ {
			st.results[i] = skippedResult(st.roster[i].name)
		}
		return
	}

	plan, err := parseDelegationPlan(planRes.Output, workers)
	if err != nil {
		st.logger.Warn("Delegation plan rejected", "director", director.agent.Name, "error", err.Error())
		st.results[0] = AgentResult{
			AgentName: director.agent.Name,
			Status:    AgentFailed,
			Error:     err.Error(),
			Usage:     planRes.Usage,
			LoopCount: 1,
		}
		for i := 1; i < len(st.roster); i++ {
			st.results[i] = skippedResult(st.roster[i].name)
		}
		return
	}

	// Fan the planned subtasks out concurrently; workers the plan never
	// names are reported as skipped.
	assigned := make(map[string]string, len(plan))
	for _, step := range plan {
		if _, dup := assigned[step.AgentName]; !dup {
			assigned[step.AgentName] = step.Subtask
		}
	}

	var wg sync.WaitGroup
	for i := 1; i < len(st.roster); i++ {
		entry := st.roster[i]
		if entry.resolveErr != nil {
			st.results[i] = failedResult(entry.name, entry.resolveErr)
			continue
		}
		subtask, ok := assigned[entry.agent.Name]
		if !ok {
			st.results[i] = skippedResult(entry.agent.Name)
			continue
		}

		wg.Add(1)
		go func(slot int, agent ResolvedAgent, subtask string) {
			defer wg.Done()
			st.results[slot] = e.invokeAgent(st, agent, subtask, fmt.Sprintf("Original task: %s", st.task))
		}(i, entry.agent, subtask)
	}
	wg.Wait()

	// Final collection turn: the director synthesizes the worker outputs.
	// If that call cannot complete, aggregation degrades to concatenation
	// rather than failing the run.
	var outputs []string
	for i := 1; i < len(st.roster); i++ {
		if st.results[i].Status == AgentSuccess {
			outputs = append(outputs, fmt.Sprintf("%s: %s", st.results[i].AgentName, st.results[i].Output))
		}
	}

	if len(outputs) == 0 {
		st.results[0] = AgentResult{
			AgentName: director.agent.Name,
			Status:    AgentSuccess,
			Output:    planRes.Output,
			Usage:     planRes.Usage,
			LoopCount: 1,
		}
		return
	}

	collectRes := e.invokeAgent(st, director.agent, collectionPrompt(st.task, outputs), "")
	if collectRes.Status == AgentSuccess {
		st.aggregated = collectRes.Output
		st.results[0] = AgentResult{
			AgentName: director.agent.Name,
			Status:    AgentSuccess,
			Output:    collectRes.Output,
			Usage:     sumUsage(planRes.Usage, collectRes.Usage),
			LoopCount: 2,
		}
		return
	}

	var aggUsage model.Usage
	st.aggregated, aggUsage, _ = e.aggregator.Aggregate(st.ctx, st.task, outputs)
	if aggUsage != (model.Usage{}) {
		st.usage.Record(synthesisUsageName, aggUsage)
	}
	st.degraded = true
	st.logger.Warn("Director collection failed, aggregation degraded", "director", director.agent.Name)
	st.results[0] = AgentResult{
		AgentName: director.agent.Name,
		Status:    AgentSuccess,
		Output:    planRes.Output,
		Usage:     planRes.Usage,
		LoopCount: 2,
	}
}

// delegationPrompt asks the director for a strict JSON plan over the
// available workers.
func delegationPrompt(task string, workers []rosterEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\nYou are the director of the following agents:\n", task)
	for _, w := range workers {
		if w.resolveErr != nil {
			continue
		}
		fmt.Fprintf(&b, "- %s", w.agent.Name)
		if len(w.agent.Capabilities) > 0 {
			fmt.Fprintf(&b, " (capabilities: %s)", strings.Join(w.agent.Capabilities, ", "))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nSplit the task into subtasks and assign them. Respond with only a JSON array of objects with keys \"agent_name\" and \"subtask\".")
	return b.String()
}

// collectionPrompt asks the director to synthesize the worker outputs.
func collectionPrompt(task string, outputs []string) string {
	return fmt.Sprintf(
		"Task: %s\n\nYour agents produced the following results:\n\n%s\n\nCombine them into one final, comprehensive answer.",
		task, strings.Join(outputs, "\n\n"),
	)
}

// parseDelegationPlan extracts the JSON plan from the director's output.
// Fenced code blocks and surrounding prose are tolerated; entries naming
// unknown workers are dropped. A plan with no remaining valid entry is
// invalid.
func parseDelegationPlan(output string, workers []rosterEntry) ([]planStep, error) {
	start := strings.Index(output, "[")
	end := strings.LastIndex(output, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON array found in director output", ErrInvalidDelegationPlan)
	}

	var steps []planStep
	if err := json.Unmarshal([]byte(output[start:end+1]), &steps); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDelegationPlan, err)
	}

	known := make(map[string]struct{}, len(workers))
	for _, w := range workers {
		if w.resolveErr == nil {
			known[w.agent.Name] = struct{}{}
		}
	}

	valid := steps[:0]
	for _, s := range steps {
		if _, ok := known[s.AgentName]; ok && strings.TrimSpace(s.Subtask) != "" {
			valid = append(valid, s)
		}
	}

	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: no step names a known worker", ErrInvalidDelegationPlan)
	}

	return valid, nil
}

func sumUsage(a, b model.Usage) model.Usage {
	a.TokensIn += b.TokensIn
	a.TokensOut += b.TokensOut
	a.Latency += b.Latency
	return a
}
