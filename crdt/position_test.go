package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocPositionEmptyList(t *testing.T) {
	counter := new(uint64)
	tree := newTestTree(t, sidA, counter, 1)

	pos := tree.allocPosition(RootID, "")
	assert.Greater(t, pos, 0.0)
	assert.Less(t, pos, 1.0)
	// The bias puts the first position near 0.4 of the empty gap.
	assert.InDelta(t, 0.4, pos, 0.01)
}

func TestAllocPositionHead(t *testing.T) {
	counter := new(uint64)
	tree := newTestTree(t, sidA, counter, 1)
	buildFixture(t, tree)

	first := tree.ChildList("b")[0].VPos
	pos := tree.allocPosition("b", "")
	assert.Greater(t, pos, 0.0)
	assert.Less(t, pos, first)
}

func TestAllocPositionTail(t *testing.T) {
	counter := new(uint64)
	tree := newTestTree(t, sidA, counter, 1)
	buildFixture(t, tree)

	children := tree.ChildList("b")
	last := children[len(children)-1]
	pos := tree.allocPosition("b", last.ID)
	assert.Greater(t, pos, last.VPos)
	assert.Less(t, pos, 1.0)
}

func TestAllocPositionBetweenNeighbors(t *testing.T) {
	counter := new(uint64)
	tree := newTestTree(t, sidA, counter, 1)
	buildFixture(t, tree)

	children := tree.ChildList("b")
	for i := 0; i < len(children)-1; i++ {
		pos := tree.allocPosition("b", children[i].ID)
		assert.Greater(t, pos, children[i].VPos)
		assert.Less(t, pos, children[i+1].VPos)
	}
}

func TestAllocPositionNearlyEqualNeighbors(t *testing.T) {
	counter := new(uint64)
	tree := newTestTree(t, sidA, counter, 1)

	require.NoError(t, tree.Insert(RootID, "", &Node{ID: "x"}))
	require.NoError(t, tree.Insert(RootID, "", &Node{ID: "y"}))

	// Squeeze the two nodes into a vanishing gap.
	nx, err := tree.Node("x")
	require.NoError(t, err)
	ny, err := tree.Node("y")
	require.NoError(t, err)
	ny.VPos = 0.5
	nx.VPos = 0.5 + 1e-14

	pos := tree.allocPosition(RootID, "y")
	assert.GreaterOrEqual(t, pos, ny.VPos)
	assert.LessOrEqual(t, pos, nx.VPos)
}

func TestAllocPositionDeterministicWithSeededRand(t *testing.T) {
	c1, c2 := new(uint64), new(uint64)
	t1 := newTestTree(t, sidA, c1, 42)
	t2 := newTestTree(t, sidA, c2, 42)

	buildFixture(t, t1)
	buildFixture(t, t2)

	assert.Equal(t, snapshot(t1), snapshot(t2))
}
