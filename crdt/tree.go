package crdt

import (
	"math/rand"
	"time"

	"treecrdt/common"
)

// Options configures a Tree.
type Options struct {
	// Clock is the host-supplied timestamp source. Required.
	Clock common.Clock

	// Log receives every locally originated operation.
	// Defaults to a MemoryLog.
	Log OperationLog

	// Deferred parks remote operations whose target node has not arrived.
	// Defaults to a MemoryDeferredQueue.
	Deferred DeferredQueue

	// Rand drives the position allocator jitter. Defaults to a time-seeded
	// source; inject a fixed-seed source for deterministic tests.
	Rand *rand.Rand

	// Nodes optionally seeds the tree from a flat, unordered node list, e.g.
	// when reloading persisted state. Records are indexed by content, so input
	// order does not affect the resulting tree. A record with the root id is
	// ignored; the root sentinel is always synthesized.
	Nodes []*Node
}

// Tree is one replica of the ordered labeled tree. It is single-threaded: one
// goroutine owns the replica and performs all mutators, merges and reads.
// Hosts sharing a replica across goroutines must serialize access themselves.
type Tree struct {
	clock    common.Clock
	rng      *rand.Rand
	log      OperationLog
	deferred DeferredQueue

	root     *Node
	nodes    map[string]*Node
	parents  map[string]string
	children *MultiMap[*Node]
	order    []string
}

// New creates a replica from the given options.
func New(opts Options) (*Tree, error) {
	if opts.Clock == nil {
		return nil, common.ErrInvalidOperation{Message: "options carry no clock"}
	}

	t := &Tree{
		clock:    opts.Clock,
		rng:      opts.Rand,
		log:      opts.Log,
		deferred: opts.Deferred,
		root:     newRootNode(),
		nodes:    make(map[string]*Node),
		parents:  make(map[string]string),
		children: NewMultiMap[*Node](siblingLess),
	}
	if t.rng == nil {
		t.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if t.log == nil {
		t.log = NewMemoryLog()
	}
	if t.deferred == nil {
		t.deferred = NewMemoryDeferredQueue()
	}

	for _, n := range opts.Nodes {
		if n == nil || n.ID == RootID {
			continue
		}
		if _, ok := t.nodes[n.ID]; ok {
			continue
		}
		t.addNode(n.Clone(), n.ParentID)
	}

	return t, nil
}

// siblingLess orders a child list by (vPos, t). Full ties keep insertion order
// through the multimap's stable sort.
func siblingLess(a, b *Node) bool {
	if a.VPos != b.VPos {
		return a.VPos < b.VPos
	}
	return a.Time.Before(b.Time)
}

// Log returns the operation log the replica appends to.
func (t *Tree) Log() OperationLog {
	return t.log
}

// Clock returns the replica's timestamp source.
func (t *Tree) Clock() common.Clock {
	return t.clock
}

// addNode registers a node and attaches it under parentID.
func (t *Tree) addNode(node *Node, parentID string) {
	if node.Data == nil {
		node.Data = make(map[string]Entry)
	}
	node.ParentID = parentID
	t.nodes[node.ID] = node
	t.parents[node.ID] = parentID
	t.children.Insert(parentID, node)
	t.order = append(t.order, node.ID)
}

// removeNode physically deletes a node from all three indexes.
func (t *Tree) removeNode(node *Node) {
	t.unsetParent(node)
	delete(t.nodes, node.ID)
	for i, id := range t.order {
		if id == node.ID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// setParent attaches a node under a new parent.
func (t *Tree) setParent(node *Node, parentID string) {
	node.ParentID = parentID
	t.parents[node.ID] = parentID
	t.children.Insert(parentID, node)
}

// unsetParent detaches a node from its current parent's child list.
func (t *Tree) unsetParent(node *Node) {
	parentID, ok := t.parents[node.ID]
	if !ok {
		return
	}
	t.children.Remove(parentID, func(n *Node) bool { return n == node })
	delete(t.parents, node.ID)
}

// Node returns the node with the given id. The root sentinel is addressable
// under RootID.
func (t *Tree) Node(id string) (*Node, error) {
	if id == RootID {
		return t.root, nil
	}
	node, ok := t.nodes[id]
	if !ok {
		return nil, common.ErrNodeNotFound{ID: id}
	}
	return node, nil
}

// Nodes returns all nodes except the root sentinel, in insertion order.
func (t *Tree) Nodes() []*Node {
	out := make([]*Node, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.nodes[id])
	}
	return out
}

// ChildList returns the children of the given node ordered by (vPos, t),
// tombstones included. The view indexes into the sibling store and is
// recomputed on every call; callers must not modify it.
func (t *Tree) ChildList(id string) []*Node {
	return t.children.Get(id)
}

// Data returns a flattened key→value view of a node's data, stripped of
// timestamps.
func (t *Tree) Data(id string) (map[string]interface{}, error) {
	node, err := t.Node(id)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(node.Data))
	for k, e := range node.Data {
		out[k] = e.Value
	}
	return out, nil
}

// Value returns the value stored under a data key of a node. The second
// return is false when either the node or the key is absent; the two cases
// are not distinguished.
func (t *Tree) Value(id, key string) (interface{}, bool) {
	node, ok := t.nodes[id]
	if !ok {
		return nil, false
	}
	e, ok := node.Data[key]
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// indexOfChild returns the position of id in the sibling list, or -1.
func indexOfChild(siblings []*Node, id string) int {
	for i, n := range siblings {
		if n.ID == id {
			return i
		}
	}
	return -1
}
