package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario: concurrent insert after the same node.
func TestConvergenceConcurrentInsertAfterSameNode(t *testing.T) {
	a, b, _ := newReplicaPair(t)

	require.NoError(t, a.Insert("a", "a2", &Node{ID: "a3"}))
	aOps := drainLog(a)
	require.NoError(t, b.Insert("a", "a2", &Node{ID: "a4"}))
	bOps := drainLog(b)

	require.NoError(t, a.Merge(bOps))
	require.NoError(t, b.Merge(aOps))

	assert.Equal(t, snapshot(a), snapshot(b))
	assert.Equal(t, childIDs(a, "a"), childIDs(b, "a"))

	// Both new nodes follow a2 on both replicas.
	ids := childIDs(a, "a")
	require.Len(t, ids, 4)
	assert.Equal(t, []string{"a1", "a2"}, ids[:2])
	assert.ElementsMatch(t, []string{"a3", "a4"}, ids[2:])
}

// Scenario: concurrent move of the same node.
func TestConvergenceConcurrentMoveOfSameNode(t *testing.T) {
	a, b, _ := newReplicaPair(t)

	require.NoError(t, a.Move("b3", "a", "a1"))
	aOps := drainLog(a)
	require.NoError(t, b.Move("b3", "b", ""))
	bOps := drainLog(b)

	require.NoError(t, a.Merge(bOps))
	require.NoError(t, b.Merge(aOps))

	assert.Equal(t, snapshot(a), snapshot(b))

	// The later move (B's) decides the placement.
	na, err := a.Node("b3")
	require.NoError(t, err)
	assert.Equal(t, "b", na.ParentID)
	assert.Equal(t, "b3", childIDs(a, "b")[0])
}

// Scenario: move vs remove of the same node; the move carries the larger
// timestamp and restores the node.
func TestConvergenceMoveVersusRemove(t *testing.T) {
	a, b, _ := newReplicaPair(t)

	require.NoError(t, a.Remove("a2"))
	aOps := drainLog(a)
	require.NoError(t, b.Move("a2", "b", ""))
	bOps := drainLog(b)

	require.NoError(t, a.Merge(bOps))
	require.NoError(t, b.Merge(aOps))

	assert.Equal(t, snapshot(a), snapshot(b))

	node, err := a.Node("a2")
	require.NoError(t, err)
	assert.False(t, node.IsTombstone())
	assert.Equal(t, "b", node.ParentID)
}

// Scenario: remove then insert, merged in reverse order.
func TestConvergenceRemoveThenInsertMergedInReverse(t *testing.T) {
	a, b, _ := newReplicaPair(t)

	require.NoError(t, a.Remove("a1"))
	require.NoError(t, a.Insert("a", "", &Node{ID: "a3"}))
	aOps := drainLog(a)

	reversed := []Operation{aOps[1], aOps[0]}
	require.NoError(t, b.Merge(reversed))

	assert.Equal(t, snapshot(a), snapshot(b))

	a1, err := b.Node("a1")
	require.NoError(t, err)
	assert.True(t, a1.IsTombstone())
	assert.Equal(t, "a3", childIDs(b, "a")[0])
}

// Scenario: insert after a reference that is concurrently removed.
func TestConvergenceInsertAfterConcurrentlyRemovedReference(t *testing.T) {
	a, b, _ := newReplicaPair(t)

	require.NoError(t, a.Insert("a", "a1", &Node{ID: "a3"}))
	aOps := drainLog(a)
	require.NoError(t, b.Remove("a1"))
	bOps := drainLog(b)

	require.NoError(t, a.Merge(bOps))
	require.NoError(t, b.Merge(aOps))

	assert.Equal(t, snapshot(a), snapshot(b))

	a1, err := a.Node("a1")
	require.NoError(t, err)
	assert.True(t, a1.IsTombstone())

	// The tombstoned reference keeps its slot, a3 sits right after it.
	assert.Equal(t, []string{"a1", "a3", "a2"}, childIDs(a, "a"))
}

// Scenario: duplicate delivery in any order.
func TestConvergenceDuplicateDelivery(t *testing.T) {
	a, b, _ := newReplicaPair(t)

	require.NoError(t, a.Insert("a", "a2", &Node{ID: "a3"}))
	require.NoError(t, a.SetValue("a3", "title", "x"))
	require.NoError(t, a.Move("b2", "a", "a3"))
	require.NoError(t, a.Remove("b1"))
	ops := drainLog(a)

	require.NoError(t, b.Merge(ops))
	once := snapshot(b)

	require.NoError(t, b.Merge(ops))
	assert.Equal(t, once, snapshot(b))

	doubled := append(append([]Operation{}, ops...), ops...)
	require.NoError(t, b.Merge(doubled))
	assert.Equal(t, once, snapshot(b))
}

// Permutation independence: any merge order yields the same observable state.
func TestConvergenceOrderIndependence(t *testing.T) {
	a, _, _ := newReplicaPair(t)

	require.NoError(t, a.Insert("a", "a2", &Node{ID: "a3"}))
	require.NoError(t, a.SetValue("a3", "k", "v"))
	require.NoError(t, a.Move("a3", "b", "b1"))
	require.NoError(t, a.Remove("b4"))
	ops := drainLog(a)
	want := snapshot(a)

	permutations := [][]int{
		{0, 1, 2, 3},
		{3, 2, 1, 0},
		{1, 3, 0, 2},
		{2, 0, 3, 1},
	}
	for _, perm := range permutations {
		_, replica, _ := newReplicaPair(t)
		shuffled := make([]Operation, len(ops))
		for i, j := range perm {
			shuffled[i] = ops[j]
		}
		require.NoError(t, replica.Merge(shuffled))
		assert.Equal(t, want, snapshot(replica))
	}
}

// Commutativity: merging log_a then log_b equals merging log_b then log_a.
func TestConvergenceCommutativity(t *testing.T) {
	a, b, _ := newReplicaPair(t)

	require.NoError(t, a.Insert("a", "a2", &Node{ID: "a3"}))
	require.NoError(t, a.SetValue("a1", "k", "from A"))
	aOps := drainLog(a)

	require.NoError(t, b.Move("b2", "a", "a1"))
	require.NoError(t, b.SetValue("a1", "k", "from B"))
	bOps := drainLog(b)

	x, y, _ := newReplicaPair(t)
	require.NoError(t, x.Merge(append(append([]Operation{}, aOps...), bOps...)))
	require.NoError(t, y.Merge(append(append([]Operation{}, bOps...), aOps...)))

	assert.Equal(t, snapshot(x), snapshot(y))
}
