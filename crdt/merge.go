package crdt

import (
	"treecrdt/common"
)

// Merge applies remote operation records to the replica. Handlers are
// idempotent and commutative: duplicates and stale records are dropped by
// content, records whose target node is absent are parked on the deferred
// queue, and the observable state after merging a set of operations does not
// depend on the order they were merged in.
//
// The only error Merge returns is an unknown operation name, which indicates
// a protocol mismatch between replicas. Every other inconsistency resolves
// silently.
func (t *Tree) Merge(ops []Operation) error {
	for _, op := range ops {
		if err := t.merge(op); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) merge(op Operation) error {
	switch o := op.(type) {
	case *InsertOperation:
		return t.mergeInsert(o)
	case *MoveOperation:
		t.mergeMove(o)
	case *RemoveOperation:
		t.mergeRemove(o)
	case *SetValueOperation:
		t.mergeSetValue(o)
	default:
		return common.ErrInvalidOperationType{Type: op.OpName()}
	}
	return nil
}

// mergeInsert adds the node as the originating replica shaped it, preserving
// its timestamp and virtual position. A node whose id is already present is a
// duplicate delivery and is dropped. After the node arrives, operations
// parked under its id are drained and merged.
func (t *Tree) mergeInsert(o *InsertOperation) error {
	if o.Node == nil || o.Node.ID == RootID {
		return nil
	}
	if _, ok := t.nodes[o.Node.ID]; ok {
		return nil
	}

	t.addNode(o.Node.Clone(), o.ParentID)

	return t.Merge(t.deferred.Pop(o.Node.ID))
}

// mergeMove reattaches the node with the operation's position and timestamp.
// A move older than the node's last structural touch is stale and dropped. A
// move newer than the node's removal restores the tombstone to a live node.
func (t *Tree) mergeMove(o *MoveOperation) {
	if o.NodeID == RootID {
		return
	}
	node, ok := t.nodes[o.NodeID]
	if !ok {
		t.deferred.Set(o.NodeID, o)
		return
	}
	if node.Time.After(o.T) {
		return
	}

	t.unsetParent(node)
	node.VPos = o.VPos
	node.Time = o.T
	t.setParent(node, o.ParentID)

	if node.Removed != nil && node.Removed.Before(o.T) {
		node.Removed = nil
	}
}

// mergeRemove tombstones the node unless a newer structural touch or a newer
// removal supersedes the record.
func (t *Tree) mergeRemove(o *RemoveOperation) {
	if o.NodeID == RootID {
		return
	}
	node, ok := t.nodes[o.NodeID]
	if !ok {
		t.deferred.Set(o.NodeID, o)
		return
	}
	if node.Time.After(o.T) {
		return
	}
	if node.Removed != nil && node.Removed.After(o.T) {
		return
	}

	ts := o.T
	node.Removed = &ts
}

// mergeSetValue applies Last-Write-Wins on the (node, key) pair.
func (t *Tree) mergeSetValue(o *SetValueOperation) {
	if o.NodeID == RootID {
		return
	}
	node, ok := t.nodes[o.NodeID]
	if !ok {
		t.deferred.Set(o.NodeID, o)
		return
	}

	e, ok := node.Data[o.Key]
	if !ok || e.Time.Before(o.T) {
		node.Data[o.Key] = Entry{Value: o.Value, Time: o.T}
	}
}
