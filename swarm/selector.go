package swarm

import "strings"

// Selector decides whether a roster slot in the dynamic topology should be
// filled by a different resolved agent before its turn starts. The exact
// matching rule is pluggable; implementations must return an agent from the
// roster and must return current when no candidate is a strictly better fit.
// Substitution never changes the number of turns, only who takes one.
type Selector interface {
	Select(current ResolvedAgent, roster []ResolvedAgent, accumulated string) ResolvedAgent
}

// KeywordSelector scores roster agents by how many of their declared
// capabilities occur as whole words in the accumulated run context and
// substitutes the current agent only on a strictly higher score. Ties keep
// the original assignment, so a roster without capabilities never reassigns.
type KeywordSelector struct{}

// Select implements Selector.
func (KeywordSelector) Select(current ResolvedAgent, roster []ResolvedAgent, accumulated string) ResolvedAgent {
	if strings.TrimSpace(accumulated) == "" {
		return current
	}

	words := tokenize(accumulated)

	best := current
	bestScore := capabilityScore(current, words)

	for _, candidate := range roster {
		if candidate.Name == current.Name {
			continue
		}
		if score := capabilityScore(candidate, words); score > bestScore {
			best = candidate
			bestScore = score
		}
	}

	return best
}

// capabilityScore counts the agent's capabilities appearing in the word set.
// Multi-word capabilities match when every word is present.
func capabilityScore(agent ResolvedAgent, words map[string]struct{}) int {
	score := 0
	for _, capability := range agent.Capabilities {
		matched := true
		for _, part := range tokenizeList(capability) {
			if _, ok := words[part]; !ok {
				matched = false
				break
			}
		}
		if matched && capability != "" {
			score++
		}
	}
	return score
}

func tokenize(s string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(s), isWordSeparator) {
		words[w] = struct{}{}
	}
	return words
}

func tokenizeList(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), isWordSeparator)
}

func isWordSeparator(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	default:
		return true
	}
}
