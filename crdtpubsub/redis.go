package crdtpubsub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	logging "github.com/ipfs/go-log/v2"

	"treecrdt/crdtpatch"
)

var log = logging.Logger("crdtpubsub")

// RedisPubSub implements the PubSub interface using Redis channels.
type RedisPubSub struct {
	// client is the Redis client.
	client *redis.Client
	// options contains the configuration options.
	options *Options
	// subscriptions is a map of topic/subscriber to subscription.
	subscriptions map[string]*redisSubscription
	// mutex protects the subscriptions map.
	mutex sync.RWMutex
	// closed indicates whether the PubSub has been closed.
	closed bool
}

// redisSubscription represents a subscription to a Redis channel.
type redisSubscription struct {
	// topic is the topic being subscribed to.
	topic string
	// subscriberID is the unique identifier for the subscriber.
	subscriberID string
	// pubsub is the underlying Redis subscription.
	pubsub *redis.PubSub
	// cancel stops the receive loop.
	cancel context.CancelFunc
	// done is closed when the receive loop exits.
	done chan struct{}
}

func subscriptionKey(topic, subscriberID string) string {
	return topic + "/" + subscriberID
}

// NewRedisPubSub creates a new RedisPubSub with the specified Redis client
// and options.
func NewRedisPubSub(client *redis.Client, options *Options) (*RedisPubSub, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if options == nil {
		options = NewOptions()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisPubSub{
		client:        client,
		options:       options,
		subscriptions: make(map[string]*redisSubscription),
	}, nil
}

// Publish publishes a patch to the specified topic.
func (ps *RedisPubSub) Publish(ctx context.Context, topic string, patch *crdtpatch.Patch, format EncodingFormat) error {
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
func (ps *RedisPubSub) PublishRaw(ctx context.Context, topic string, data []byte, format EncodingFormat) error {
	ps.mutex.RLock()
	closed := ps.closed
	ps.mutex.RUnlock()
	if closed {
		return fmt.Errorf("pubsub is closed")
	}

	if err := ps.client.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %q: %w", topic, err)
	}
	return nil
}

// Subscribe subscribes to the specified topic and calls the handler for each
// received message.
func (ps *RedisPubSub) Subscribe(ctx context.Context, topic string, subscriberID string, handler SubscriberFunc) error {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	if ps.closed {
		return fmt.Errorf("pubsub is closed")
	}

	key := subscriptionKey(topic, subscriberID)
	if _, ok := ps.subscriptions[key]; ok {
		return fmt.Errorf("subscriber %q is already subscribed to topic %q", subscriberID, topic)
	}

	pubsub := ps.client.Subscribe(ctx, topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("failed to subscribe to %q: %w", topic, err)
	}

	subCtx, cancel := context.WithCancel(context.Background())
	sub := &redisSubscription{
		topic:        topic,
		subscriberID: subscriberID,
		pubsub:       pubsub,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	ps.subscriptions[key] = sub

	go ps.receiveLoop(subCtx, sub, handler)
	return nil
}

func (ps *RedisPubSub) receiveLoop(ctx context.Context, sub *redisSubscription, handler SubscriberFunc) {
	defer close(sub.done)

	ch := sub.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := handler(ctx, sub.topic, []byte(msg.Payload), ps.options.DefaultFormat); err != nil {
				log.Errorw("subscriber failed", "topic", sub.topic, "subscriber", sub.subscriberID, "err", err)
			}
		}
	}
}

// Unsubscribe unsubscribes from the specified topic.
func (ps *RedisPubSub) Unsubscribe(ctx context.Context, topic string, subscriberID string) error {
	ps.mutex.Lock()
	key := subscriptionKey(topic, subscriberID)
	sub, ok := ps.subscriptions[key]
	if ok {
		delete(ps.subscriptions, key)
	}
	ps.mutex.Unlock()

	if !ok {
		return fmt.Errorf("subscriber %q is not subscribed to topic %q", subscriberID, topic)
	}

	sub.cancel()
	if err := sub.pubsub.Close(); err != nil {
		return fmt.Errorf("failed to close subscription: %w", err)
	}
	<-sub.done
	return nil
}

// Close closes the pubsub and all its subscriptions.
func (ps *RedisPubSub) Close() error {
	ps.mutex.Lock()
	subs := ps.subscriptions
	ps.subscriptions = make(map[string]*redisSubscription)
	ps.closed = true
	ps.mutex.Unlock()

	for _, sub := range subs {
		sub.cancel()
		if err := sub.pubsub.Close(); err != nil {
			log.Errorw("failed to close subscription", "topic", sub.topic, "err", err)
		}
		<-sub.done
	}
	return nil
}
