package crdt

import (
	"treecrdt/common"
)

// RootID is the reserved id of the root sentinel. The root is always present
// and never mutated; its children are the top-level nodes.
const RootID = ""

// Entry is a timestamped value stored under one data key of a node. The
// timestamp is the maximum timestamp of any applied setValue for the key.
type Entry struct {
	Value interface{}      `json:"value"`
	Time  common.Timestamp `json:"t"`
}

// Node is one vertex of the replicated tree.
type Node struct {
	// ID is an opaque string unique across all replicas, supplied by the host.
	ID string `json:"id"`

	// ParentID is the id of the parent. RootID denotes the root sentinel.
	ParentID string `json:"parent_id"`

	// Time is the timestamp of the last structural touch: creation, move, or
	// restoration by move.
	Time common.Timestamp `json:"t"`

	// VPos orders the node within its siblings. It lies in the open interval
	// (0, 1); 0 and 1 are virtual endpoints only.
	VPos float64 `json:"v_pos"`

	// Removed, when present, marks the node as a tombstone. Tombstones remain
	// addressable, movable and visible in child lists until purged.
	Removed *common.Timestamp `json:"removed,omitempty"`

	// Data maps string keys to timestamped values.
	Data map[string]Entry `json:"data,omitempty"`
}

// IsTombstone reports whether the node is marked removed.
func (n *Node) IsTombstone() bool {
	return n.Removed != nil
}

// Clone returns a copy of the node with its own Data map and Removed pointer.
// Values themselves are shared.
func (n *Node) Clone() *Node {
	c := &Node{
		ID:       n.ID,
		ParentID: n.ParentID,
		Time:     n.Time,
		VPos:     n.VPos,
	}
	if n.Removed != nil {
		ts := *n.Removed
		c.Removed = &ts
	}
	if n.Data != nil {
		c.Data = make(map[string]Entry, len(n.Data))
		for k, v := range n.Data {
			c.Data[k] = v
		}
	}
	return c
}

func newRootNode() *Node {
	return &Node{ID: RootID, Time: common.ZeroTimestamp}
}
