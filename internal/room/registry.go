package room

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/PryCoder/flowdesk/internal/canvas"
	"github.com/PryCoder/flowdesk/internal/snapshot"
)

// Archiver receives a copy of a drained room's snapshot for durable
// write-behind storage. Implementations must not block.
type Archiver interface {
	EnqueueArchive(roomID string, snap *snapshot.Snapshot) error
}

// Registry owns the lifecycle of every active room. It is the only
// component with cross-cutting visibility and the only one touched
// concurrently by multiple connections, so get-or-create is atomic: two
// racing first-joins always converge on one Room instance.
//
// A room exists in the registry iff it has at least one participant or
// is mid-drain pending its final persistence write.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room

	provider snapshot.Provider
	presence *canvas.PresenceStore
	archiver Archiver
	chatCap  int

	log *logrus.Entry
}

func NewRegistry(provider snapshot.Provider, presence *canvas.PresenceStore, chatCap int) *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		provider: provider,
		presence: presence,
		chatCap:  chatCap,
		log:      logrus.WithField("component", "room_registry"),
	}
}

// SetArchiver wires the optional write-behind archive queue.
func (reg *Registry) SetArchiver(a Archiver) {
	reg.archiver = a
}

// GetOrCreate returns the room for id, activating it if needed. On
// activation the latest snapshot is loaded before the room is returned,
// so live traffic never races the restore. A failed or absent load means
// the room starts empty — persistence failures are logged, never fatal.
func (reg *Registry) GetOrCreate(ctx context.Context, id string) (*Room, bool) {
	reg.mu.Lock()
	if r, ok := reg.rooms[id]; ok {
		reg.mu.Unlock()
		return r, false
	}
	r := New(id, reg.chatCap)
	reg.rooms[id] = r
	reg.mu.Unlock()

	// Activation load. Happens exactly once per Inactive->Active
	// transition, before the first participant is attached.
	if reg.provider != nil {
		snap, ok, err := reg.provider.TryLoad(ctx, id)
		switch {
		case err != nil:
			reg.log.WithError(err).WithField("room_id", id).Error("Snapshot load failed, room starts empty")
		case ok:
			if err := r.RestoreSnapshot(snap); err != nil {
				reg.log.WithError(err).WithField("room_id", id).Error("Snapshot restore failed, room starts empty")
			} else {
				reg.log.WithFields(logrus.Fields{
					"room_id": id,
					"version": snap.Version,
					"bytes":   len(snap.BinaryState),
				}).Info("Room state restored from snapshot")
			}
		}
	}
	return r, true
}

// Get returns an already-active room without creating one.
func (reg *Registry) Get(id string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[id]
	return r, ok
}

// RemoveIfEmpty drains a room once its last participant has left. The
// persistence write happens before the entry is evicted, so a rejoin
// racing the drain always finds either the live room or the snapshot it
// just wrote. The room is evicted whether or not the write succeeds —
// state is best-effort durable and failures are logged, never propagated.
func (reg *Registry) RemoveIfEmpty(id string) bool {
	reg.mu.Lock()
	r, ok := reg.rooms[id]
	if !ok || r.Len() > 0 {
		reg.mu.Unlock()
		return false
	}
	reg.mu.Unlock()

	if snap, err := r.EncodeSnapshot(); err != nil {
		reg.log.WithError(err).WithField("room_id", id).Error("Snapshot encode failed on drain, state lost")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if reg.provider != nil {
			if err := reg.provider.TrySave(ctx, snap); err != nil {
				reg.log.WithError(err).WithField("room_id", id).Error("Snapshot save failed on drain")
			}
		}
		cancel()
		if reg.archiver != nil {
			if err := reg.archiver.EnqueueArchive(id, snap); err != nil {
				reg.log.WithError(err).WithField("room_id", id).Error("Snapshot archive enqueue failed")
			}
		}
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if cur, ok := reg.rooms[id]; !ok || cur != r || cur.Len() > 0 {
		// A rejoin landed while the checkpoint was in flight. The room
		// stays active; the write above is just an older checkpoint.
		return false
	}
	delete(reg.rooms, id)
	if reg.presence != nil {
		reg.presence.RemoveRoom(id)
	}
	return true
}

// Count reports the number of active rooms.
func (reg *Registry) Count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// ActiveRoomIDs lists currently active rooms, for stats endpoints.
func (reg *Registry) ActiveRoomIDs() []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	ids := make([]string, 0, len(reg.rooms))
	for id := range reg.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown snapshots every remaining room and clears the registry.
func (reg *Registry) Shutdown(ctx context.Context) {
	reg.mu.Lock()
	remaining := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		remaining = append(remaining, r)
	}
	reg.rooms = make(map[string]*Room)
	reg.mu.Unlock()

	for _, r := range remaining {
		snap, err := r.EncodeSnapshot()
		if err != nil {
			reg.log.WithError(err).WithField("room_id", r.ID).Error("Snapshot encode failed on shutdown")
			continue
		}
		if reg.provider != nil {
			if err := reg.provider.TrySave(ctx, snap); err != nil {
				reg.log.WithError(err).WithField("room_id", r.ID).Error("Snapshot save failed on shutdown")
			}
		}
	}
}
