package crdtsync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treecrdt/common"
	"treecrdt/crdt"
	"treecrdt/crdtpubsub"
)

func newSyncedReplica(t *testing.T, ps crdtpubsub.PubSub, topic, name string) SyncManager {
	t.Helper()

	tree, err := crdt.New(crdt.Options{Clock: common.NewSessionClock(common.NewSessionID())})
	require.NoError(t, err)

	bcast, err := NewPubSubBroadcaster(context.Background(), ps, topic, name)
	require.NoError(t, err)

	manager, err := NewSyncManager(tree, NewMemoryPatchStore(), bcast)
	require.NoError(t, err)
	return manager
}

func TestSyncManagerConvergesTwoReplicas(t *testing.T) {
	ps, err := crdtpubsub.NewMemoryPubSub(nil)
	require.NoError(t, err)

	ctx := context.Background()
	alpha := newSyncedReplica(t, ps, "doc", "alpha")
	beta := newSyncedReplica(t, ps, "doc", "beta")

	require.NoError(t, alpha.Start(ctx))
	require.NoError(t, beta.Start(ctx))
	defer alpha.Stop()
	defer beta.Stop()

	require.NoError(t, alpha.Do(func(tree *crdt.Tree) error {
		if err := tree.Insert(crdt.RootID, "", &crdt.Node{ID: "x"}); err != nil {
			return err
		}
		return tree.SetValue("x", "title", "hello")
	}))

	patch, err := alpha.Flush(ctx)
	require.NoError(t, err)
	require.NotNil(t, patch)

	require.Eventually(t, func() bool {
		var ok bool
		beta.Do(func(tree *crdt.Tree) error {
			_, ok = tree.Value("x", "title")
			return nil
		})
		return ok
	}, time.Second, 10*time.Millisecond)

	beta.Do(func(tree *crdt.Tree) error {
		v, ok := tree.Value("x", "title")
		assert.True(t, ok)
		assert.Equal(t, "hello", v)
		return nil
	})
}

func TestSyncManagerFlushWithNothingPending(t *testing.T) {
	ps, err := crdtpubsub.NewMemoryPubSub(nil)
	require.NoError(t, err)

	manager := newSyncedReplica(t, ps, "doc", "solo")

	patch, err := manager.Flush(context.Background())
	require.NoError(t, err)
	assert.Nil(t, patch)
}

func TestSyncManagerTracksStateVector(t *testing.T) {
	ps, err := crdtpubsub.NewMemoryPubSub(nil)
	require.NoError(t, err)

	manager := newSyncedReplica(t, ps, "doc", "solo")
	require.NoError(t, manager.Do(func(tree *crdt.Tree) error {
		return tree.Insert(crdt.RootID, "", &crdt.Node{ID: "x"})
	}))

	_, err = manager.Flush(context.Background())
	require.NoError(t, err)

	sv := manager.StateVector()
	require.Len(t, sv, 1)
	for _, counter := range sv {
		assert.NotZero(t, counter)
	}

	missing, err := manager.MissingPatches(map[string]uint64{})
	require.NoError(t, err)
	assert.Len(t, missing, 1)
}
