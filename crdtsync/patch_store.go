package crdtsync

import (
	"sync"

	"treecrdt/common"
	"treecrdt/crdtpatch"
)

// MemoryPatchStore is the default in-memory PatchStore.
type MemoryPatchStore struct {
	// patches maps a patch id string to the patch.
	patches map[string]*crdtpatch.Patch

	// patchesBySession maps a session ID string to that session's patch ids
	// in arrival order.
	patchesBySession map[string][]common.Timestamp

	// mutex protects the store.
	mutex sync.RWMutex
}

// NewMemoryPatchStore creates an empty MemoryPatchStore.
func NewMemoryPatchStore() *MemoryPatchStore {
	return &MemoryPatchStore{
		patches:          make(map[string]*crdtpatch.Patch),
		patchesBySession: make(map[string][]common.Timestamp),
	}
}

// StorePatch stores a patch. Storing the same patch id twice is a no-op.
func (ps *MemoryPatchStore) StorePatch(patch *crdtpatch.Patch) error {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	id := patch.ID()
	idStr := id.String()
	if _, exists := ps.patches[idStr]; exists {
		return nil
	}

	ps.patches[idStr] = patch.Clone()

	sid := id.SID.String()
	ps.patchesBySession[sid] = append(ps.patchesBySession[sid], id)
	return nil
}

// GetPatch returns the patch with the given id string.
func (ps *MemoryPatchStore) GetPatch(id string) (*crdtpatch.Patch, error) {
	ps.mutex.RLock()
	defer ps.mutex.RUnlock()

	patch, exists := ps.patches[id]
	if !exists {
		return nil, common.ErrNotFound{Message: "patch " + id}
	}
	return patch.Clone(), nil
}

// GetPatches returns the patches whose id counters exceed the given state
// vector's entry for their session.
func (ps *MemoryPatchStore) GetPatches(stateVector map[string]uint64) ([]*crdtpatch.Patch, error) {
	ps.mutex.RLock()
	defer ps.mutex.RUnlock()

	var result []*crdtpatch.Patch
	for sid, ids := range ps.patchesBySession {
		counter := stateVector[sid]
		for _, id := range ids {
			if id.Counter > counter {
				if patch, exists := ps.patches[id.String()]; exists {
					result = append(result, patch.Clone())
				}
			}
		}
	}
	return result, nil
}

// Len returns the number of stored patches.
func (ps *MemoryPatchStore) Len() int {
	ps.mutex.RLock()
	defer ps.mutex.RUnlock()

	return len(ps.patches)
}
