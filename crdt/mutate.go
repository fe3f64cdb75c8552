package crdt

import (
	"fmt"

	"treecrdt/common"
)

// Insert creates a new node under parentID, positioned directly after the
// sibling refID (empty refID inserts at the head). The payload carries the
// host-assigned id and any initial data; the replica assigns the timestamp
// and virtual position. Exactly one insert record is appended to the log.
func (t *Tree) Insert(parentID, refID string, payload *Node) error {
	if payload == nil || payload.ID == RootID {
		return common.ErrUnmetPrecondition{Message: "insert payload carries no usable id"}
	}
	if _, ok := t.nodes[parentID]; !ok && parentID != RootID {
		return common.ErrUnmetPrecondition{Message: fmt.Sprintf("parent %q does not exist", parentID)}
	}
	if _, ok := t.nodes[payload.ID]; ok {
		return common.ErrUnmetPrecondition{Message: fmt.Sprintf("id %q is already used", payload.ID)}
	}
	if refID != "" && indexOfChild(t.children.Get(parentID), refID) < 0 {
		return common.ErrUnmetPrecondition{Message: fmt.Sprintf("reference %q is not a child of %q", refID, parentID)}
	}

	node := payload.Clone()
	node.Time = t.clock.Now()
	node.VPos = t.allocPosition(parentID, refID)
	t.addNode(node, parentID)

	t.log.Push(&InsertOperation{T: node.Time, ParentID: parentID, Node: node.Clone()})
	return nil
}

// Move detaches a node and reinserts it under parentID directly after refID
// (empty refID moves to the head). The node receives a fresh timestamp and
// virtual position; a tombstone flag is cleared. Moving a node into the slot
// it already occupies is rejected as a no-op.
//
// Moves are not checked for cycles: moving an ancestor under its own
// descendant disconnects the subtree. Hosts that allow such moves must guard
// against them.
func (t *Tree) Move(nodeID, parentID, refID string) error {
	node, ok := t.nodes[nodeID]
	if !ok {
		return common.ErrUnmetPrecondition{Message: fmt.Sprintf("node %q does not exist", nodeID)}
	}
	if refID == nodeID {
		return common.ErrUnmetPrecondition{Message: fmt.Sprintf("cannot move %q relative to itself", nodeID)}
	}
	siblings := t.children.Get(parentID)
	if refID != "" && indexOfChild(siblings, refID) < 0 {
		return common.ErrUnmetPrecondition{Message: fmt.Sprintf("reference %q is not a child of %q", refID, parentID)}
	}
	if t.parents[nodeID] == parentID {
		cur := indexOfChild(siblings, nodeID)
		if refID == "" && cur == 0 {
			return common.ErrUnmetPrecondition{Message: fmt.Sprintf("%q is already at the head of %q", nodeID, parentID)}
		}
		if refID != "" && cur == indexOfChild(siblings, refID)+1 {
			return common.ErrUnmetPrecondition{Message: fmt.Sprintf("%q already follows %q", nodeID, refID)}
		}
	}

	t.unsetParent(node)
	node.Time = t.clock.Now()
	node.VPos = t.allocPosition(parentID, refID)
	node.Removed = nil
	t.setParent(node, parentID)

	t.log.Push(&MoveOperation{T: node.Time, NodeID: nodeID, ParentID: parentID, VPos: node.VPos})
	return nil
}

// Remove marks a node as a tombstone. Removing a node that is already a
// tombstone changes nothing and emits no log record.
func (t *Tree) Remove(nodeID string) error {
	node, ok := t.nodes[nodeID]
	if !ok {
		return common.ErrUnmetPrecondition{Message: fmt.Sprintf("node %q does not exist", nodeID)}
	}
	if node.Removed != nil {
		return nil
	}

	now := t.clock.Now()
	node.Removed = &now

	t.log.Push(&RemoveOperation{T: now, NodeID: nodeID})
	return nil
}

// SetValue writes a value under a data key of a node. Tombstones remain
// addressable, so setting a value on one is permitted.
func (t *Tree) SetValue(nodeID, key string, value interface{}) error {
	node, ok := t.nodes[nodeID]
	if !ok {
		return common.ErrUnmetPrecondition{Message: fmt.Sprintf("node %q does not exist", nodeID)}
	}

	now := t.clock.Now()
	node.Data[key] = Entry{Value: value, Time: now}

	t.log.Push(&SetValueOperation{T: now, NodeID: nodeID, Key: key, Value: value})
	return nil
}
