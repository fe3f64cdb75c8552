package crdt

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"treecrdt/common"
)

// stepClock shares one counter across replicas so tests can reason about
// absolute timestamps the way a single global sequence would.
type stepClock struct {
	sid     common.SessionID
	counter *uint64
}

func (c *stepClock) Now() common.Timestamp {
	*c.counter++
	return common.Timestamp{Counter: *c.counter, SID: c.sid}
}

var (
	sidA = common.SessionID{0xa}
	sidB = common.SessionID{0xb}
)

func newTestTree(t *testing.T, sid common.SessionID, counter *uint64, seed int64) *Tree {
	t.Helper()

	tree, err := New(Options{
		Clock: &stepClock{sid: sid, counter: counter},
		Rand:  rand.New(rand.NewSource(seed)),
	})
	require.NoError(t, err)
	return tree
}

// buildFixture populates the reference shape: a with children a1, a2, and b
// with children b1..b4, both under the root.
func buildFixture(t *testing.T, tree *Tree) {
	t.Helper()

	require.NoError(t, tree.Insert(RootID, "", &Node{ID: "a"}))
	require.NoError(t, tree.Insert("a", "", &Node{ID: "a1"}))
	require.NoError(t, tree.Insert("a", "a1", &Node{ID: "a2"}))
	require.NoError(t, tree.Insert(RootID, "a", &Node{ID: "b"}))
	require.NoError(t, tree.Insert("b", "", &Node{ID: "b1"}))
	require.NoError(t, tree.Insert("b", "b1", &Node{ID: "b2"}))
	require.NoError(t, tree.Insert("b", "b2", &Node{ID: "b3"}))
	require.NoError(t, tree.Insert("b", "b3", &Node{ID: "b4"}))
}

// newReplicaPair builds the fixture on replica A, replicates it to B, and
// drains both logs so tests observe only their own operations.
func newReplicaPair(t *testing.T) (*Tree, *Tree, *uint64) {
	t.Helper()

	counter := new(uint64)
	a := newTestTree(t, sidA, counter, 1)
	b := newTestTree(t, sidB, counter, 2)

	buildFixture(t, a)
	require.NoError(t, b.Merge(a.log.(*MemoryLog).Operations()))

	a.log.(*MemoryLog).Drain()
	b.log.(*MemoryLog).Drain()
	return a, b, counter
}

func drainLog(tree *Tree) []Operation {
	return tree.log.(*MemoryLog).Drain()
}

// nodeState is the observable state of one node for convergence comparisons.
type nodeState struct {
	parent  string
	time    common.Timestamp
	vpos    float64
	removed *common.Timestamp
	data    map[string]Entry
}

// snapshot captures the observable state of a replica keyed by node id.
func snapshot(tree *Tree) map[string]nodeState {
	out := make(map[string]nodeState)
	for _, n := range tree.Nodes() {
		out[n.ID] = nodeState{
			parent:  n.ParentID,
			time:    n.Time,
			vpos:    n.VPos,
			removed: n.Removed,
			data:    n.Data,
		}
	}
	return out
}

// childIDs flattens a child list to ids for ordering assertions.
func childIDs(tree *Tree, parentID string) []string {
	children := tree.ChildList(parentID)
	ids := make([]string, len(children))
	for i, n := range children {
		ids[i] = n.ID
	}
	return ids
}
