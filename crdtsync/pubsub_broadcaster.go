package crdtsync

import (
	"context"
	"fmt"

	"treecrdt/crdtpatch"
	"treecrdt/crdtpubsub"
)

// PubSubBroadcaster adapts a crdtpubsub.PubSub into a Broadcaster. Received
// patches are buffered on a channel drained by Next.
type PubSubBroadcaster struct {
	pubsub       crdtpubsub.PubSub
	topic        string
	subscriberID string
	incoming     chan *crdtpatch.Patch
	cancel       context.CancelFunc
}

// NewPubSubBroadcaster subscribes to the topic and returns a broadcaster
// over it. The subscriberID must be unique per replica. A replica receives
// its own publications back; merging them is a no-op, so they are not
// filtered here.
func NewPubSubBroadcaster(ctx context.Context, ps crdtpubsub.PubSub, topic, subscriberID string) (*PubSubBroadcaster, error) {
	bctx, cancel := context.WithCancel(ctx)

	b := &PubSubBroadcaster{
		pubsub:       ps,
		topic:        topic,
		subscriberID: subscriberID,
		incoming:     make(chan *crdtpatch.Patch, 64),
		cancel:       cancel,
	}

	handler := func(ctx context.Context, topic string, data []byte, format crdtpubsub.EncodingFormat) error {
		decoder, err := crdtpubsub.GetEncoderDecoder(format)
		if err != nil {
			return err
		}
		patch, err := decoder.Decode(data)
		if err != nil {
			return fmt.Errorf("failed to decode broadcast patch: %w", err)
		}
		select {
		case b.incoming <- patch:
		case <-bctx.Done():
		}
		return nil
	}

	if err := ps.Subscribe(bctx, topic, subscriberID, handler); err != nil {
		cancel()
		return nil, err
	}
	return b, nil
}

// Broadcast publishes a patch to the topic.
func (b *PubSubBroadcaster) Broadcast(ctx context.Context, patch *crdtpatch.Patch) error {
	return b.pubsub.Publish(ctx, b.topic, patch, "")
}

// Next returns the next received patch.
func (b *PubSubBroadcaster) Next(ctx context.Context) (*crdtpatch.Patch, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case patch := <-b.incoming:
		return patch, nil
	}
}

// Close unsubscribes from the topic.
func (b *PubSubBroadcaster) Close() error {
	b.cancel()
	return b.pubsub.Unsubscribe(context.Background(), b.topic, b.subscriberID)
}
