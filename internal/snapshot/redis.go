package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisProvider stores snapshots in Redis under a TTL. An expired key is
// simply gone, which TryLoad reports as absence.
type RedisProvider struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewRedisProvider(client *redis.Client, ttl time.Duration) *RedisProvider {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisProvider{
		client:    client,
		keyPrefix: "canvas:",
		ttl:       ttl,
	}
}

func (p *RedisProvider) key(roomID string) string {
	return fmt.Sprintf("%sroom:%s:snapshot", p.keyPrefix, roomID)
}

func (p *RedisProvider) TryLoad(ctx context.Context, roomID string) (*Snapshot, bool, error) {
	raw, err := p.client.Get(ctx, p.key(roomID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("snapshot: redis get for room %s: %w", roomID, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		// A corrupt snapshot is treated as absent: the room starts
		// empty rather than refusing to activate.
		return nil, false, fmt.Errorf("snapshot: decode for room %s: %w", roomID, err)
	}
	return &snap, true, nil
}

func (p *RedisProvider) TrySave(ctx context.Context, snap *Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("snapshot: encode for room %s: %w", snap.RoomID, err)
	}
	if err := p.client.Set(ctx, p.key(snap.RoomID), raw, p.ttl).Err(); err != nil {
		return fmt.Errorf("snapshot: redis set for room %s: %w", snap.RoomID, err)
	}
	return nil
}
