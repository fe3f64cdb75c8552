package crdtsync

import (
	"context"

	logging "github.com/ipfs/go-log/v2"

	"treecrdt/crdt"
	"treecrdt/crdtpatch"
)

var log = logging.Logger("crdtsync")

// Broadcaster delivers patches between replicas.
type Broadcaster interface {
	// Broadcast sends a patch to the other replicas.
	Broadcast(ctx context.Context, patch *crdtpatch.Patch) error

	// Next receives the next broadcast patch.
	Next(ctx context.Context) (*crdtpatch.Patch, error)

	// Close closes the broadcaster.
	Close() error
}

// PatchStore keeps patches so replicas can catch peers up after a partition.
type PatchStore interface {
	// StorePatch stores a patch. Storing a patch twice is a no-op.
	StorePatch(patch *crdtpatch.Patch) error

	// GetPatch returns the patch with the given id.
	GetPatch(id string) (*crdtpatch.Patch, error)

	// GetPatches returns the patches not covered by the given state vector.
	GetPatches(stateVector map[string]uint64) ([]*crdtpatch.Patch, error)
}

// PeerDiscovery finds the other replicas participating in a document.
type PeerDiscovery interface {
	// DiscoverPeers returns the currently registered peers.
	DiscoverPeers(ctx context.Context) ([]string, error)

	// RegisterPeer registers a peer.
	RegisterPeer(ctx context.Context, peerID string) error

	// UnregisterPeer removes a peer registration.
	UnregisterPeer(ctx context.Context, peerID string) error

	// Close closes the discovery service.
	Close() error
}

// SyncManager ties a replica to a broadcaster and a patch store: it flushes
// local operations out as patches and merges incoming patches back in.
type SyncManager interface {
	// Start begins consuming broadcast patches.
	Start(ctx context.Context) error

	// Stop stops consuming and closes the broadcaster.
	Stop() error

	// Do runs fn with exclusive access to the replica, serialized against
	// the patch receive loop.
	Do(fn func(tree *crdt.Tree) error) error

	// Flush drains the replica's pending local operations into a patch,
	// stores it and broadcasts it. It returns the patch, or nil when there
	// was nothing to send.
	Flush(ctx context.Context) (*crdtpatch.Patch, error)

	// StateVector returns the replica's current state vector.
	StateVector() map[string]uint64

	// MissingPatches returns stored patches not covered by the given state
	// vector, for catch-up exchanges with a peer.
	MissingPatches(stateVector map[string]uint64) ([]*crdtpatch.Patch, error)
}
