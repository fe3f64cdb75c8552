package crdtpatch

import (
	"encoding/json"

	"github.com/pkg/errors"

	"treecrdt/common"
	"treecrdt/crdt"
)

// Patch is a batch of tree operations exchanged between replicas. Operations
// keep their wire array form inside the patch JSON.
type Patch struct {
	// id identifies the patch.
	id common.Timestamp

	// metadata is optional custom metadata.
	metadata map[string]interface{}

	// operations is the list of operations in the patch.
	operations []crdt.Operation
}

// NewPatch creates an empty patch with the given id.
func NewPatch(id common.Timestamp) *Patch {
	return &Patch{
		id:         id,
		metadata:   make(map[string]interface{}),
		operations: make([]crdt.Operation, 0),
	}
}

// ID returns the ID of the patch.
func (p *Patch) ID() common.Timestamp {
	return p.id
}

// Metadata returns the metadata of the patch.
func (p *Patch) Metadata() map[string]interface{} {
	return p.metadata
}

// SetMetadata sets the metadata of the patch.
func (p *Patch) SetMetadata(metadata map[string]interface{}) {
	p.metadata = metadata
}

// Operations returns the operations in the patch.
func (p *Patch) Operations() []crdt.Operation {
	return p.operations
}

// AddOperation adds an operation to the patch.
func (p *Patch) AddOperation(op crdt.Operation) {
	p.operations = append(p.operations, op)
}

// Apply merges the patch into the replica.
func (p *Patch) Apply(tree *crdt.Tree) error {
	if err := tree.Merge(p.operations); err != nil {
		return errors.Wrap(err, "failed to apply patch")
	}
	return nil
}

// Clone returns a copy of the patch sharing the operation records.
func (p *Patch) Clone() *Patch {
	c := NewPatch(p.id)
	for k, v := range p.metadata {
		c.metadata[k] = v
	}
	c.operations = append(c.operations, p.operations...)
	return c
}

// MarshalJSON implements the json.Marshaler interface.
func (p *Patch) MarshalJSON() ([]byte, error) {
	type wirePatch struct {
		ID       common.Timestamp       `json:"id"`
		Metadata map[string]interface{} `json:"meta,omitempty"`
		Ops      []json.RawMessage      `json:"ops"`
	}

	ops := make([]json.RawMessage, len(p.operations))
	for i, op := range p.operations {
		opJSON, err := json.Marshal(op)
		if err != nil {
			return nil, err
		}
		ops[i] = opJSON
	}

	return json.Marshal(wirePatch{
		ID:       p.id,
		Metadata: p.metadata,
		Ops:      ops,
	})
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (p *Patch) UnmarshalJSON(data []byte) error {
	var patch struct {
		ID       common.Timestamp       `json:"id"`
		Metadata map[string]interface{} `json:"meta,omitempty"`
		Ops      []json.RawMessage      `json:"ops"`
	}

	if err := json.Unmarshal(data, &patch); err != nil {
		return err
	}

	p.id = patch.ID
	p.metadata = patch.Metadata
	if p.metadata == nil {
		p.metadata = make(map[string]interface{})
	}

	p.operations = make([]crdt.Operation, 0, len(patch.Ops))
	for _, raw := range patch.Ops {
		op, err := crdt.DecodeOperation(raw)
		if err != nil {
			return errors.Wrap(err, "failed to decode patch operation")
		}
		p.operations = append(p.operations, op)
	}

	return nil
}
