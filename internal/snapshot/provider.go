package snapshot

import (
	"context"
	"time"
)

// Snapshot is a serialized copy of a room's document, written on drain
// and read once at reactivation.
type Snapshot struct {
	RoomID      string    `json:"room_id"`
	BinaryState []byte    `json:"binary_state"`
	Version     int64     `json:"version"`
	SavedAt     time.Time `json:"saved_at"`
}

// Provider is a capability-checked persistence backend. TryLoad reports
// absence (expired TTL included) as ok=false rather than an error, so
// the room lifecycle logic is identical whether or not a durable backend
// is configured behind it.
type Provider interface {
	TryLoad(ctx context.Context, roomID string) (snap *Snapshot, ok bool, err error)
	TrySave(ctx context.Context, snap *Snapshot) error
}
