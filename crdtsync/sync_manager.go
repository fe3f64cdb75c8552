package crdtsync

import (
	"context"
	"fmt"
	"sync"

	"treecrdt/crdt"
	"treecrdt/crdtpatch"
)

// syncManager is the default SyncManager implementation. It owns the
// replica's sync plumbing, not the replica itself: incoming patches are
// merged on the goroutine started by Start, so hosts that mutate the tree
// concurrently must serialize through Do.
type syncManager struct {
	tree    *crdt.Tree
	builder *crdtpatch.Builder
	store   PatchStore
	bcast   Broadcaster
	sv      *StateVector

	// mutex serializes every access to the tree and the builder.
	mutex   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewSyncManager creates a SyncManager for the given replica. The tree's log
// must be a *crdt.MemoryLog so pending operations can be drained into
// patches.
func NewSyncManager(tree *crdt.Tree, store PatchStore, bcast Broadcaster) (SyncManager, error) {
	if _, ok := tree.Log().(*crdt.MemoryLog); !ok {
		return nil, fmt.Errorf("sync manager requires a tree backed by a MemoryLog")
	}

	return &syncManager{
		tree:    tree,
		builder: crdtpatch.NewBuilder(tree.Clock()),
		store:   store,
		bcast:   bcast,
		sv:      NewStateVector(),
	}, nil
}

// Start begins consuming broadcast patches.
func (m *syncManager) Start(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.started {
		return fmt.Errorf("sync manager is already started")
	}
	m.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.receiveLoop(loopCtx)
	return nil
}

func (m *syncManager) receiveLoop(ctx context.Context) {
	defer close(m.done)

	for {
		patch, err := m.bcast.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Errorw("broadcast receive failed", "err", err)
			}
			return
		}
		if err := m.applyRemote(patch); err != nil {
			log.Errorw("failed to apply broadcast patch", "patch", patch.ID(), "err", err)
		}
	}
}

func (m *syncManager) applyRemote(patch *crdtpatch.Patch) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err := m.store.StorePatch(patch); err != nil {
		return err
	}
	if err := patch.Apply(m.tree); err != nil {
		return err
	}

	m.sv.Update(patch.ID())
	for _, op := range patch.Operations() {
		m.sv.Update(op.OpTime())
	}
	return nil
}

// Do runs fn with exclusive access to the replica. Local mutators invoked
// elsewhere race with the receive loop; this is the supported way in.
func (m *syncManager) Do(fn func(tree *crdt.Tree) error) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return fn(m.tree)
}

// Flush drains pending local operations into a patch, stores and broadcasts it.
func (m *syncManager) Flush(ctx context.Context) (*crdtpatch.Patch, error) {
	m.mutex.Lock()

	m.builder.Capture(m.tree.Log().(*crdt.MemoryLog))
	patch := m.builder.Flush()
	if patch == nil {
		m.mutex.Unlock()
		return nil, nil
	}

	if err := m.store.StorePatch(patch); err != nil {
		m.mutex.Unlock()
		return nil, err
	}
	m.sv.Update(patch.ID())
	for _, op := range patch.Operations() {
		m.sv.Update(op.OpTime())
	}
	m.mutex.Unlock()

	if err := m.bcast.Broadcast(ctx, patch); err != nil {
		return nil, fmt.Errorf("failed to broadcast patch: %w", err)
	}
	return patch, nil
}

// StateVector returns the replica's current state vector.
func (m *syncManager) StateVector() map[string]uint64 {
	return m.sv.Get()
}

// MissingPatches returns stored patches not covered by the given state vector.
func (m *syncManager) MissingPatches(stateVector map[string]uint64) ([]*crdtpatch.Patch, error) {
	return m.store.GetPatches(stateVector)
}

// Stop stops consuming and closes the broadcaster.
func (m *syncManager) Stop() error {
	m.mutex.Lock()
	started := m.started
	m.started = false
	m.mutex.Unlock()

	if !started {
		return nil
	}

	m.cancel()
	<-m.done
	return m.bcast.Close()
}
