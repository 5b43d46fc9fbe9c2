package snapshot

import (
	"context"
	"sync"
	"time"
)

// MemoryProvider is the degraded mode used when no Redis is configured,
// and the backend of choice in tests. TTL semantics match the Redis
// provider: an expired entry reads as absent.
type MemoryProvider struct {
	mu    sync.RWMutex
	snaps map[string]*Snapshot
	ttl   time.Duration
}

func NewMemoryProvider(ttl time.Duration) *MemoryProvider {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryProvider{
		snaps: make(map[string]*Snapshot),
		ttl:   ttl,
	}
}

func (p *MemoryProvider) TryLoad(_ context.Context, roomID string) (*Snapshot, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	snap, ok := p.snaps[roomID]
	if !ok {
		return nil, false, nil
	}
	if time.Since(snap.SavedAt) > p.ttl {
		return nil, false, nil
	}
	cp := *snap
	return &cp, true, nil
}

func (p *MemoryProvider) TrySave(_ context.Context, snap *Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *snap
	p.snaps[snap.RoomID] = &cp
	return nil
}
