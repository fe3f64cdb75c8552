package crdtsync

import (
	"context"
	"encoding/json"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"

	"treecrdt/crdtpatch"
)

// LibP2PBroadcaster delivers patches over a libp2p gossipsub topic. The host
// owns the libp2p node; the broadcaster only needs a joined topic, its
// subscription, and the host's own peer ID for self-filtering.
type LibP2PBroadcaster struct {
	self         peer.ID
	topic        *pubsub.Topic
	subscription *pubsub.Subscription
}

// NewLibP2PBroadcaster creates a broadcaster over a joined topic.
func NewLibP2PBroadcaster(self peer.ID, topic *pubsub.Topic, subscription *pubsub.Subscription) *LibP2PBroadcaster {
	return &LibP2PBroadcaster{
		self:         self,
		topic:        topic,
		subscription: subscription,
	}
}

// Broadcast publishes a patch to the topic.
func (b *LibP2PBroadcaster) Broadcast(ctx context.Context, patch *crdtpatch.Patch) error {
	data, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	return b.topic.Publish(ctx, data)
}

// Next receives the next patch broadcast by another peer. Messages published
// by this host are skipped.
func (b *LibP2PBroadcaster) Next(ctx context.Context) (*crdtpatch.Patch, error) {
	for {
		msg, err := b.subscription.Next(ctx)
		if err != nil {
			return nil, err
		}
		if msg.ReceivedFrom == b.self {
			continue
		}

		var patch crdtpatch.Patch
		if err := json.Unmarshal(msg.Data, &patch); err != nil {
			log.Errorw("dropping malformed broadcast patch", "from", msg.ReceivedFrom, "err", err)
			continue
		}
		return &patch, nil
	}
}

// Close cancels the subscription and leaves the topic.
func (b *LibP2PBroadcaster) Close() error {
	b.subscription.Cancel()
	return b.topic.Close()
}
