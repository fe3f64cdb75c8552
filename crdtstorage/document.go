package crdtstorage

import (
	"encoding/json"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"treecrdt/common"
	"treecrdt/crdt"
)

// Document couples one replica of the tree with the identity and clock state
// that must survive a reload. What is persisted is the pair (node list,
// operation log): applied state lives in the nodes, so operations are never
// replayed on load; the log only carries records not yet shipped to peers.
type Document struct {
	// ID is the document's identifier across all replicas.
	ID string

	// Tree is the replica.
	Tree *crdt.Tree

	// Clock stamps the replica's operations.
	Clock *common.SessionClock

	// Metadata is optional host metadata stored with the document.
	Metadata map[string]interface{}

	// LastModified is when the document was last saved.
	LastModified time.Time

	log *crdt.MemoryLog
}

// NewDocument creates a fresh replica of the given document under a new
// session.
func NewDocument(id string) (*Document, error) {
	return newDocument(id, common.NewSessionClock(common.NewSessionID()), nil, nil)
}

func newDocument(id string, clock *common.SessionClock, nodes []*crdt.Node, rng *rand.Rand) (*Document, error) {
	memlog := crdt.NewMemoryLog()
	tree, err := crdt.New(crdt.Options{
		Clock: clock,
		Log:   memlog,
		Nodes: nodes,
		Rand:  rng,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create tree")
	}

	return &Document{
		ID:       id,
		Tree:     tree,
		Clock:    clock,
		Metadata: make(map[string]interface{}),
		log:      memlog,
	}, nil
}

// documentData is the persisted layout.
type documentData struct {
	ID       string                 `json:"id"`
	Session  common.SessionID       `json:"session"`
	Counter  uint64                 `json:"counter"`
	Nodes    []*crdt.Node           `json:"nodes"`
	Log      []json.RawMessage      `json:"log"`
	Metadata map[string]interface{} `json:"meta,omitempty"`
	Modified time.Time              `json:"modified"`
}

// Serialize returns the persisted form of the document.
func (d *Document) Serialize() ([]byte, error) {
	ops := d.log.Operations()
	rawOps := make([]json.RawMessage, len(ops))
	for i, op := range ops {
		raw, err := json.Marshal(op)
		if err != nil {
			return nil, errors.Wrap(err, "failed to serialize log record")
		}
		rawOps[i] = raw
	}

	return json.Marshal(documentData{
		ID:       d.ID,
		Session:  d.Clock.SessionID(),
		Counter:  d.Clock.Counter(),
		Nodes:    d.Tree.Nodes(),
		Log:      rawOps,
		Metadata: d.Metadata,
		Modified: d.LastModified,
	})
}

// DeserializeDocument rebuilds a document from its persisted form. The tree
// is reconstructed from the flat node list; the logged operations are
// restored into the outbound log without being applied.
func DeserializeDocument(data []byte) (*Document, error) {
	var dd documentData
	if err := json.Unmarshal(data, &dd); err != nil {
		return nil, errors.Wrap(err, "failed to deserialize document")
	}

	clock := common.NewSessionClock(dd.Session)
	clock.Witness(common.Timestamp{Counter: dd.Counter, SID: dd.Session})

	doc, err := newDocument(dd.ID, clock, dd.Nodes, nil)
	if err != nil {
		return nil, err
	}

	for _, raw := range dd.Log {
		op, err := crdt.DecodeOperation(raw)
		if err != nil {
			return nil, errors.Wrap(err, "failed to decode log record")
		}
		doc.log.Push(op)
	}

	if dd.Metadata != nil {
		doc.Metadata = dd.Metadata
	}
	doc.LastModified = dd.Modified
	return doc, nil
}

// PendingLog returns the replica's outbound log.
func (d *Document) PendingLog() *crdt.MemoryLog {
	return d.log
}
