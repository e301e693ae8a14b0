package swarm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordSelector_EmptyContextKeepsCurrent(t *testing.T) {
	current := ResolvedAgent{Name: "a"}
	roster := []ResolvedAgent{current, {Name: "b", Capabilities: []string{"database"}}}

	chosen := KeywordSelector{}.Select(current, roster, "   ")
	assert.Equal(t, "a", chosen.Name)
}

func TestKeywordSelector_SubstitutesOnBetterMatch(t *testing.T) {
	current := ResolvedAgent{Name: "a", Capabilities: []string{"frontend"}}
	better := ResolvedAgent{Name: "b", Capabilities: []string{"database", "sql"}}
	roster := []ResolvedAgent{current, better}

	chosen := KeywordSelector{}.Select(current, roster, "next step: fix the database and the SQL queries")
	assert.Equal(t, "b", chosen.Name)
}

func TestKeywordSelector_TieKeepsCurrent(t *testing.T) {
	current := ResolvedAgent{Name: "a", Capabilities: []string{"database"}}
	other := ResolvedAgent{Name: "b", Capabilities: []string{"sql"}}
	roster := []ResolvedAgent{current, other}

	chosen := KeywordSelector{}.Select(current, roster, "the database needs new sql")
	assert.Equal(t, "a", chosen.Name)
}

func TestKeywordSelector_WholeWordsOnly(t *testing.T) {
	current := ResolvedAgent{Name: "a"}
	other := ResolvedAgent{Name: "b", Capabilities: []string{"go"}}
	roster := []ResolvedAgent{current, other}

	// "go" must not match inside "golang-adjacent" words that tokenize
	// differently, but does match as a standalone word.
	chosen := KeywordSelector{}.Select(current, roster, "the cargo is heavy")
	assert.Equal(t, "a", chosen.Name)

	chosen = KeywordSelector{}.Select(current, roster, "rewrite this in go please")
	assert.Equal(t, "b", chosen.Name)
}

func TestKeywordSelector_MultiWordCapability(t *testing.T) {
	current := ResolvedAgent{Name: "a"}
	other := ResolvedAgent{Name: "b", Capabilities: []string{"machine learning"}}
	roster := []ResolvedAgent{current, other}

	chosen := KeywordSelector{}.Select(current, roster, "we need some machine learning here")
	assert.Equal(t, "b", chosen.Name)

	// Both words must be present.
	chosen = KeywordSelector{}.Select(current, roster, "we need a machine")
	assert.Equal(t, "a", chosen.Name)
}

func TestKeywordSelector_NoCapabilitiesNeverReassigns(t *testing.T) {
	current := ResolvedAgent{Name: "a"}
	roster := []ResolvedAgent{current, {Name: "b"}, {Name: "c"}}

	chosen := KeywordSelector{}.Select(current, roster, "anything at all")
	assert.Equal(t, "a", chosen.Name)
}
