package worker

import (
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/PryCoder/flowdesk/internal/snapshot"
)

// Enqueuer is the registry-facing side of the archive queue. It only
// enqueues; the worker server does the actual write.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(redisOpt asynq.RedisClientOpt) *Enqueuer {
	return &Enqueuer{client: asynq.NewClient(redisOpt)}
}

// EnqueueArchive implements room.Archiver. Enqueuing is cheap and the
// caller already runs off the hot path, but failures still only get
// logged upstream — the cache write is the primary copy.
func (e *Enqueuer) EnqueueArchive(roomID string, snap *snapshot.Snapshot) error {
	task, err := NewSnapshotArchiveTask(roomID, snap)
	if err != nil {
		return fmt.Errorf("worker: build archive task for room %s: %w", roomID, err)
	}
	if _, err := e.client.Enqueue(task); err != nil {
		return fmt.Errorf("worker: enqueue archive task for room %s: %w", roomID, err)
	}
	return nil
}

func (e *Enqueuer) Close() error {
	return e.client.Close()
}
