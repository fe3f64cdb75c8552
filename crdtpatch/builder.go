package crdtpatch

import (
	"treecrdt/common"
	"treecrdt/crdt"
)

// Builder accumulates locally originated operations into outbound patches.
// Patch ids come from the same clock that stamps the replica's operations.
type Builder struct {
	// clock stamps the ids of flushed patches.
	clock common.Clock

	// pending is the list of operations to be packed into the next patch.
	pending []crdt.Operation
}

// NewBuilder creates a Builder over the given clock.
func NewBuilder(clock common.Clock) *Builder {
	return &Builder{
		clock:   clock,
		pending: make([]crdt.Operation, 0),
	}
}

// Add appends an operation to the pending set.
func (b *Builder) Add(op crdt.Operation) {
	b.pending = append(b.pending, op)
}

// AddAll appends operations to the pending set.
func (b *Builder) AddAll(ops []crdt.Operation) {
	b.pending = append(b.pending, ops...)
}

// Capture drains a replica's in-memory log into the pending set.
func (b *Builder) Capture(log *crdt.MemoryLog) {
	b.pending = append(b.pending, log.Drain()...)
}

// Pending returns the number of operations waiting for the next patch.
func (b *Builder) Pending() int {
	return len(b.pending)
}

// Flush packs the pending operations into a patch and resets the builder.
// It returns nil when nothing is pending.
func (b *Builder) Flush() *Patch {
	if len(b.pending) == 0 {
		return nil
	}

	patch := NewPatch(b.clock.Now())
	patch.operations = append(patch.operations, b.pending...)
	b.pending = b.pending[:0]
	return patch
}
