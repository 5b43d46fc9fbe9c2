package worker

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/PryCoder/flowdesk/internal/directory"
)

// Server runs the background queue consumers alongside the main process.
type Server struct {
	srv     *asynq.Server
	archive directory.SnapshotArchive
	log     *logrus.Entry
}

func NewServer(redisOpt asynq.RedisClientOpt, archive directory.SnapshotArchive) *Server {
	return &Server{
		srv: asynq.NewServer(redisOpt, asynq.Config{
			Concurrency: 4,
		}),
		archive: archive,
		log:     logrus.WithField("component", "worker"),
	}
}

// Start registers the handlers and runs the worker loop in the
// background. Errors from individual tasks are retried by asynq.
func (s *Server) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSnapshotArchive, s.handleSnapshotArchive)
	return s.srv.Start(mux)
}

func (s *Server) Shutdown() {
	s.srv.Shutdown()
}

func (s *Server) handleSnapshotArchive(ctx context.Context, t *asynq.Task) error {
	var p SnapshotArchivePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		s.log.WithError(err).Error("Malformed snapshot archive payload, dropping task")
		return nil // retrying cannot fix a bad payload
	}

	if err := s.archive.ArchiveSnapshot(ctx, p.RoomID, p.Version, p.State, p.SavedAt); err != nil {
		s.log.WithError(err).WithField("room_id", p.RoomID).Error("Snapshot archive write failed")
		return err
	}

	s.log.WithFields(logrus.Fields{
		"room_id": p.RoomID,
		"version": p.Version,
		"bytes":   len(p.State),
	}).Info("Snapshot archived")
	return nil
}
