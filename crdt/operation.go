package crdt

import (
	"encoding/json"

	"treecrdt/common"
)

// Operation type names as they appear on the wire.
const (
	OpInsert   = "insert"
	OpMove     = "move"
	OpRemove   = "remove"
	OpSetValue = "setValue"
)

// Operation is one record of the replicated log. The wire form is the
// three-element JSON array [name, t, details]; each concrete operation
// marshals itself into that form and DecodeOperation parses it back.
type Operation interface {
	// OpName returns the wire name of the operation.
	OpName() string

	// OpTime returns the timestamp the operation was issued at.
	OpTime() common.Timestamp

	json.Marshaler
}

// InsertOperation creates a node under a parent. The embedded node carries the
// originating replica's timestamp and virtual position; preserving them on
// merge is how replicas agree on structural tie-breaks.
type InsertOperation struct {
	T        common.Timestamp
	ParentID string
	Node     *Node
}

type insertDetails struct {
	ParentID string `json:"parent_id"`
	Node     *Node  `json:"node"`
}

// OpName returns the wire name of the operation.
func (o *InsertOperation) OpName() string { return OpInsert }

// OpTime returns the timestamp the operation was issued at.
func (o *InsertOperation) OpTime() common.Timestamp { return o.T }

// MarshalJSON returns the wire array form of the operation.
func (o *InsertOperation) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{OpInsert, o.T, insertDetails{ParentID: o.ParentID, Node: o.Node}})
}

// MoveOperation reattaches a node under a parent at a virtual position.
type MoveOperation struct {
	T        common.Timestamp
	NodeID   string
	ParentID string
	VPos     float64
}

type moveDetails struct {
	NodeID   string  `json:"node_id"`
	ParentID string  `json:"parent_id"`
	VPos     float64 `json:"v_pos"`
}

// OpName returns the wire name of the operation.
func (o *MoveOperation) OpName() string { return OpMove }

// OpTime returns the timestamp the operation was issued at.
func (o *MoveOperation) OpTime() common.Timestamp { return o.T }

// MarshalJSON returns the wire array form of the operation.
func (o *MoveOperation) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{OpMove, o.T, moveDetails{NodeID: o.NodeID, ParentID: o.ParentID, VPos: o.VPos}})
}

// RemoveOperation marks a node as a tombstone.
type RemoveOperation struct {
	T      common.Timestamp
	NodeID string
}

type removeDetails struct {
	NodeID string `json:"node_id"`
}

// OpName returns the wire name of the operation.
func (o *RemoveOperation) OpName() string { return OpRemove }

// OpTime returns the timestamp the operation was issued at.
func (o *RemoveOperation) OpTime() common.Timestamp { return o.T }

// MarshalJSON returns the wire array form of the operation.
func (o *RemoveOperation) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{OpRemove, o.T, removeDetails{NodeID: o.NodeID}})
}

// SetValueOperation writes a timestamped value under a data key of a node.
type SetValueOperation struct {
	T      common.Timestamp
	NodeID string
	Key    string
	Value  interface{}
}

type setValueDetails struct {
	NodeID string      `json:"node_id"`
	Key    string      `json:"key"`
	Value  interface{} `json:"value"`
}

// OpName returns the wire name of the operation.
func (o *SetValueOperation) OpName() string { return OpSetValue }

// OpTime returns the timestamp the operation was issued at.
func (o *SetValueOperation) OpTime() common.Timestamp { return o.T }

// MarshalJSON returns the wire array form of the operation.
func (o *SetValueOperation) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{OpSetValue, o.T, setValueDetails{NodeID: o.NodeID, Key: o.Key, Value: o.Value}})
}

// DecodeOperation parses the wire array form [name, t, details] into the
// matching concrete operation.
func DecodeOperation(data []byte) (Operation, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil, common.ErrInvalidOperation{Message: err.Error()}
	}
	if len(arr) != 3 {
		return nil, common.ErrInvalidOperation{Message: "operation record is not a three-element array"}
	}

	var name string
	if err := json.Unmarshal(arr[0], &name); err != nil {
		return nil, common.ErrInvalidOperation{Message: "operation name is not a string"}
	}

	var t common.Timestamp
	if err := json.Unmarshal(arr[1], &t); err != nil {
		return nil, common.ErrInvalidOperation{Message: "malformed operation timestamp"}
	}

	switch name {
	case OpInsert:
		var d insertDetails
		if err := json.Unmarshal(arr[2], &d); err != nil {
			return nil, common.ErrInvalidOperation{Message: err.Error()}
		}
		if d.Node == nil {
			return nil, common.ErrInvalidOperation{Message: "insert record carries no node"}
		}
		return &InsertOperation{T: t, ParentID: d.ParentID, Node: d.Node}, nil
	case OpMove:
		var d moveDetails
		if err := json.Unmarshal(arr[2], &d); err != nil {
			return nil, common.ErrInvalidOperation{Message: err.Error()}
		}
		return &MoveOperation{T: t, NodeID: d.NodeID, ParentID: d.ParentID, VPos: d.VPos}, nil
	case OpRemove:
		var d removeDetails
		if err := json.Unmarshal(arr[2], &d); err != nil {
			return nil, common.ErrInvalidOperation{Message: err.Error()}
		}
		return &RemoveOperation{T: t, NodeID: d.NodeID}, nil
	case OpSetValue:
		var d setValueDetails
		if err := json.Unmarshal(arr[2], &d); err != nil {
			return nil, common.ErrInvalidOperation{Message: err.Error()}
		}
		return &SetValueOperation{T: t, NodeID: d.NodeID, Key: d.Key, Value: d.Value}, nil
	default:
		return nil, common.ErrInvalidOperationType{Type: name}
	}
}

// DecodeOperations parses a JSON array of wire operation records.
func DecodeOperations(data []byte) ([]Operation, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, common.ErrInvalidOperation{Message: err.Error()}
	}
	ops := make([]Operation, 0, len(raw))
	for _, r := range raw {
		op, err := DecodeOperation(r)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}
