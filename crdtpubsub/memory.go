package crdtpubsub

import (
	"context"
	"fmt"
	"sync"

	"treecrdt/crdtpatch"
)

// MemoryPubSub implements the PubSub interface using in-memory delivery.
// It is intended for tests and single-process hosts.
type MemoryPubSub struct {
	// options contains the configuration options.
	options *Options
	// subscriptions is a map of topic to subscriptions.
	subscriptions map[string][]*memorySubscription
	// mutex protects the subscriptions map.
	mutex sync.RWMutex
	// closed indicates whether the PubSub has been closed.
	closed bool
}

// memorySubscription represents a subscription to an in-memory topic.
type memorySubscription struct {
	// topic is the topic being subscribed to.
	topic string
	// subscriberID is the unique identifier for the subscriber.
	subscriberID string
	// subscriberFunc is the subscriber function.
	subscriberFunc SubscriberFunc
}

// NewMemoryPubSub creates a new MemoryPubSub with the specified options.
func NewMemoryPubSub(options *Options) (*MemoryPubSub, error) {
	if options == nil {
		options = NewOptions()
	}

	return &MemoryPubSub{
		options:       options,
		subscriptions: make(map[string][]*memorySubscription),
	}, nil
}

// Publish publishes a patch to the specified topic.
func (ps *MemoryPubSub) Publish(ctx context.Context, topic string, patch *crdtpatch.Patch, format EncodingFormat) error {
	if format == "" {
		format = ps.options.DefaultFormat
	}

	encoder, err := GetEncoderDecoder(format)
	if err != nil {
		return err
	}

	data, err := encoder.Encode(patch)
	if err != nil {
		return fmt.Errorf("failed to encode patch: %w", err)
	}

	return ps.PublishRaw(ctx, topic, data, format)
}

// PublishRaw publishes raw data to the specified topic.
func (ps *MemoryPubSub) PublishRaw(ctx context.Context, topic string, data []byte, format EncodingFormat) error {
	ps.mutex.RLock()
	if ps.closed {
		ps.mutex.RUnlock()
		return fmt.Errorf("pubsub is closed")
	}
	subs := append([]*memorySubscription(nil), ps.subscriptions[topic]...)
	ps.mutex.RUnlock()

	if format == "" {
		format = ps.options.DefaultFormat
	}

	for _, sub := range subs {
		if err := sub.subscriberFunc(ctx, topic, data, format); err != nil {
			log.Errorw("subscriber failed", "topic", topic, "subscriber", sub.subscriberID, "err", err)
		}
	}
	return nil
}

// Subscribe subscribes to the specified topic.
func (ps *MemoryPubSub) Subscribe(ctx context.Context, topic string, subscriberID string, handler SubscriberFunc) error {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	if ps.closed {
		return fmt.Errorf("pubsub is closed")
	}

	for _, sub := range ps.subscriptions[topic] {
		if sub.subscriberID == subscriberID {
			return fmt.Errorf("subscriber %q is already subscribed to topic %q", subscriberID, topic)
		}
	}

	ps.subscriptions[topic] = append(ps.subscriptions[topic], &memorySubscription{
		topic:          topic,
		subscriberID:   subscriberID,
		subscriberFunc: handler,
	})
	return nil
}

// Unsubscribe unsubscribes from the specified topic.
func (ps *MemoryPubSub) Unsubscribe(ctx context.Context, topic string, subscriberID string) error {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	subs := ps.subscriptions[topic]
	for i, sub := range subs {
		if sub.subscriberID == subscriberID {
			ps.subscriptions[topic] = append(subs[:i], subs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("subscriber %q is not subscribed to topic %q", subscriberID, topic)
}

// Close closes the pubsub.
func (ps *MemoryPubSub) Close() error {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	ps.closed = true
	ps.subscriptions = make(map[string][]*memorySubscription)
	return nil
}
