package worker

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/PryCoder/flowdesk/internal/snapshot"
)

// TypeSnapshotArchive is the task type for the durable write-behind copy
// of a drained room's snapshot.
const TypeSnapshotArchive = "snapshot:archive"

// SnapshotArchivePayload carries everything the worker needs; the room
// itself is gone from the registry by the time this runs.
type SnapshotArchivePayload struct {
	RoomID  string    `json:"room_id"`
	Version int64     `json:"version"`
	State   []byte    `json:"state"`
	SavedAt time.Time `json:"saved_at"`
}

// NewSnapshotArchiveTask builds the asynq task for one drained room.
func NewSnapshotArchiveTask(roomID string, snap *snapshot.Snapshot) (*asynq.Task, error) {
	payload, err := json.Marshal(SnapshotArchivePayload{
		RoomID:  roomID,
		Version: snap.Version,
		State:   snap.BinaryState,
		SavedAt: snap.SavedAt,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSnapshotArchive, payload, asynq.MaxRetry(3)), nil
}
