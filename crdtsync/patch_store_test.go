package crdtsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treecrdt/common"
	"treecrdt/crdtpatch"
)

func newStoredPatch(counter uint64, sid common.SessionID) *crdtpatch.Patch {
	return crdtpatch.NewPatch(common.Timestamp{Counter: counter, SID: sid})
}

func TestMemoryPatchStoreStoreAndGet(t *testing.T) {
	store := NewMemoryPatchStore()
	sid := common.SessionID{1}

	patch := newStoredPatch(1, sid)
	require.NoError(t, store.StorePatch(patch))
	require.NoError(t, store.StorePatch(patch))
	assert.Equal(t, 1, store.Len())

	got, err := store.GetPatch(patch.ID().String())
	require.NoError(t, err)
	assert.Equal(t, patch.ID(), got.ID())

	_, err = store.GetPatch("missing")
	var notFound common.ErrNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestMemoryPatchStoreGetPatches(t *testing.T) {
	store := NewMemoryPatchStore()
	sidX := common.SessionID{1}
	sidY := common.SessionID{2}

	require.NoError(t, store.StorePatch(newStoredPatch(1, sidX)))
	require.NoError(t, store.StorePatch(newStoredPatch(2, sidX)))
	require.NoError(t, store.StorePatch(newStoredPatch(1, sidY)))

	// The caller has seen everything from X up to counter 1 and nothing
	// from Y.
	patches, err := store.GetPatches(map[string]uint64{sidX.String(): 1})
	require.NoError(t, err)
	require.Len(t, patches, 2)

	ids := []common.Timestamp{patches[0].ID(), patches[1].ID()}
	assert.Contains(t, ids, common.Timestamp{Counter: 2, SID: sidX})
	assert.Contains(t, ids, common.Timestamp{Counter: 1, SID: sidY})
}
