package crdtsync

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisPeerDiscovery registers peers as TTL-keyed Redis entries and refreshes
// its own registration with a heartbeat loop.
type RedisPeerDiscovery struct {
	// client is the Redis client.
	client *redis.Client

	// keyPrefix namespaces the registration keys.
	keyPrefix string

	// peerID is this replica's peer ID.
	peerID string

	// ttl is how long a registration lives without a heartbeat.
	ttl time.Duration

	// heartbeatInterval is the refresh cadence.
	heartbeatInterval time.Duration

	// cancel stops the heartbeat loop.
	cancel context.CancelFunc

	// running indicates whether the heartbeat loop is active.
	running bool
}

// NewRedisPeerDiscovery creates a discovery service for the given peer.
func NewRedisPeerDiscovery(client *redis.Client, keyPrefix, peerID string) *RedisPeerDiscovery {
	return &RedisPeerDiscovery{
		client:            client,
		keyPrefix:         keyPrefix,
		peerID:            peerID,
		ttl:               5 * time.Minute,
		heartbeatInterval: time.Minute,
	}
}

func (pd *RedisPeerDiscovery) peerKey(peerID string) string {
	return fmt.Sprintf("%s:peer:%s", pd.keyPrefix, peerID)
}

// Start registers this peer and begins the heartbeat loop.
func (pd *RedisPeerDiscovery) Start(ctx context.Context) error {
	if pd.running {
		return fmt.Errorf("peer discovery is already running")
	}

	hbCtx, cancel := context.WithCancel(ctx)
	pd.cancel = cancel
	pd.running = true

	if err := pd.RegisterPeer(hbCtx, pd.peerID); err != nil {
		cancel()
		pd.running = false
		return fmt.Errorf("failed to register self: %w", err)
	}

	go pd.heartbeat(hbCtx)
	return nil
}

func (pd *RedisPeerDiscovery) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(pd.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := pd.RegisterPeer(ctx, pd.peerID); err != nil {
				log.Errorw("heartbeat failed", "peer", pd.peerID, "err", err)
			}
		}
	}
}

// DiscoverPeers returns the currently registered peers, excluding this one.
func (pd *RedisPeerDiscovery) DiscoverPeers(ctx context.Context) ([]string, error) {
	pattern := pd.peerKey("*")
	prefix := pd.peerKey("")

	var peers []string
	iter := pd.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		peerID := iter.Val()[len(prefix):]
		if peerID != pd.peerID {
			peers = append(peers, peerID)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan peers: %w", err)
	}
	return peers, nil
}

// RegisterPeer registers a peer with the configured TTL.
func (pd *RedisPeerDiscovery) RegisterPeer(ctx context.Context, peerID string) error {
	return pd.client.Set(ctx, pd.peerKey(peerID), time.Now().Unix(), pd.ttl).Err()
}

// UnregisterPeer removes a peer registration.
func (pd *RedisPeerDiscovery) UnregisterPeer(ctx context.Context, peerID string) error {
	return pd.client.Del(ctx, pd.peerKey(peerID)).Err()
}

// Close stops the heartbeat loop and unregisters this peer.
func (pd *RedisPeerDiscovery) Close() error {
	if pd.cancel != nil {
		pd.cancel()
	}
	pd.running = false

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return pd.UnregisterPeer(ctx, pd.peerID)
}
