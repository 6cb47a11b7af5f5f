package prereq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcyclicGraph(t *testing.T) {
	g := Graph{
		"CS301":   {"CS201", "MATH201"},
		"CS201":   {"CS101"},
		"MATH201": {"MATH101"},
	}

	res := Validate(g, "CS301")
	assert.True(t, res.Valid)
	assert.Empty(t, res.Cycle)
}

func TestValidateDiamondIsNotACycle(t *testing.T) {
	g := Graph{
		"D": {"B", "C"},
		"B": {"A"},
		"C": {"A"},
	}

	assert.True(t, Validate(g, "D").Valid)
}

func TestValidateSelfPrerequisite(t *testing.T) {
	g := Graph{"CS101": {"CS101"}}

	res := Validate(g, "CS101")
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"CS101", "CS101"}, res.Cycle)
}

func TestValidateReportsOnlyCycleNodes(t *testing.T) {
	g := Graph{
		"A": {"B"},
		"B": {"C"},
		"C": {"D"},
		"D": {"B"},
	}

	res := Validate(g, "A")
	require.False(t, res.Valid)
	assert.Equal(t, []string{"B", "C", "D", "B"}, res.Cycle)
	assert.NotContains(t, res.Cycle, "A")
}

func TestValidateFindsCycleAwayFromRoot(t *testing.T) {
	g := Graph{
		"ROOT": {"LEAF"},
		"X":    {"Y"},
		"Y":    {"X"},
	}

	res := Validate(g, "ROOT")
	require.False(t, res.Valid)
	assert.Equal(t, []string{"X", "Y", "X"}, res.Cycle)
}

func TestGraphWithReplacesEdges(t *testing.T) {
	g := Graph{"A": {"B"}, "B": {}}

	candidate := g.With("B", []string{"A"})
	assert.False(t, Validate(candidate, "B").Valid)
	assert.Empty(t, g["B"], "original graph must stay untouched")
}

func TestChains(t *testing.T) {
	g := Graph{
		"CS301": {"CS201", "MATH201"},
		"CS201": {"CS101"},
	}

	chains, err := Chains(g, "CS301")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"CS301", "CS201", "CS101"},
		{"CS301", "MATH201"},
	}, chains)
}

func TestChainsRejectsCycle(t *testing.T) {
	_, err := Chains(Graph{"A": {"B"}, "B": {"A"}}, "A")
	assert.ErrorIs(t, err, ErrCycle)
}

func TestReachable(t *testing.T) {
	g := Graph{
		"CS301":  {"CS201"},
		"CS201":  {"CS101"},
		"ART100": {"ART050"},
	}

	sub := Reachable(g, "CS301")
	assert.Len(t, sub, 3)
	assert.Equal(t, []string{"CS201"}, sub["CS301"])
	assert.Empty(t, sub["CS101"])
	assert.NotContains(t, sub, "ART100")
}
