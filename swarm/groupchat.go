package swarm

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentswarm/model"
)

// chatTurn is one emitted message of a group chat transcript.
type chatTurn struct {
	agent string
	text  string
}

// renderTranscript flattens prior turns in emission order so every agent
// sees the full conversation.
func renderTranscript(turns []chatTurn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s: %s", t.agent, t.text)
	}
	return b.String()
}

// runGroupChat runs fixed round-robin turns for up to MaxLoopsPerAgent
// rounds. Each turn's prompt is the task plus the transcript of every prior
// turn. An agent whose turn fails is excluded from later rounds; the chat
// continues with the rest. The aggregated output is the transcript's final
// message.
func (e *Executor) runGroupChat(st *runState) {
	type seat struct {
		slot   int
		agent  ResolvedAgent
		active bool
		turns  int
		last   string
		usage  model.Usage
	}

	seats := make([]*seat, 0, len(st.roster))
	for i, entry := range st.roster {
		if entry.resolveErr != nil {
			st.results[i] = failedResult(entry.name, entry.resolveErr)
			continue
		}
		seats = append(seats, &seat{slot: i, agent: entry.agent, active: true})
	}

	var transcript []chatTurn
	rounds := st.snap.MaxLoopsPerAgent

	turnLimit := e.turnsPerRound
	if turnLimit <= 0 {
		turnLimit = len(seats)
	}

	for round := 0; round < rounds; round++ {
		taken := 0
		for _, s := range seats {
			if !s.active {
				continue
			}
			if taken >= turnLimit {
				break
			}
			if st.ctx.Err() != nil {
				break
			}

			res := e.invokeAgent(st, s.agent, st.task, renderTranscript(transcript))
			if res.Status == AgentSkipped {
				// Deadline fired before the turn started; the post-loop
				// accounting records the seat from its completed turns.
				break
			}
			taken++

			switch res.Status {
			case AgentSuccess:
				s.turns++
				s.last = res.Output
				s.usage.TokensIn += res.Usage.TokensIn
				s.usage.TokensOut += res.Usage.TokensOut
				s.usage.Latency += res.Usage.Latency
				transcript = append(transcript, chatTurn{agent: s.agent.Name, text: res.Output})
			case AgentTimedOut:
				s.active = false
				st.results[s.slot] = AgentResult{
					AgentName: s.agent.Name,
					Status:    AgentTimedOut,
					Error:     res.Error,
					Usage:     res.Usage,
					LoopCount: s.turns + 1,
				}
			default:
				s.active = false
				st.results[s.slot] = AgentResult{
					AgentName: s.agent.Name,
					Status:    AgentFailed,
					Error:     res.Error,
					Usage:     res.Usage,
					LoopCount: s.turns + 1,
				}
			}
		}

		if st.ctx.Err() != nil {
			break
		}
	}

	for _, s := range seats {
		if !s.active {
			continue // already recorded as failed or timed out
		}
		if s.turns == 0 {
			st.results[s.slot] = skippedResult(s.agent.Name)
			continue
		}
		st.results[s.slot] = AgentResult{
			AgentName: s.agent.Name,
			Status:    AgentSuccess,
			Output:    s.last,
			Usage:     s.usage,
			LoopCount: s.turns,
		}
	}

	if len(transcript) > 0 {
		st.aggregated = transcript[len(transcript)-1].text
	}
}
