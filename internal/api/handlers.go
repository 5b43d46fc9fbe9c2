package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/PryCoder/flowdesk/internal/room"
	"github.com/PryCoder/flowdesk/internal/snapshot"
)

// Handler exposes the thin HTTP surface around the canvas engine:
// snapshot access for the directory service and a stats probe.
type Handler struct {
	registry *room.Registry
	provider snapshot.Provider
}

func New(registry *room.Registry, provider snapshot.Provider) *Handler {
	return &Handler{registry: registry, provider: provider}
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"active_rooms": h.registry.Count(),
		"room_ids":     h.registry.ActiveRoomIDs(),
	})
}

// GetSnapshot serves the latest cached snapshot for a room. An active
// room is checkpointed on the fly so the caller always sees live state.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	if live, ok := h.registry.Get(roomID); ok {
		snap, err := live.EncodeSnapshot()
		if err != nil {
			http.Error(w, "snapshot encode failed", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(snap)
		return
	}

	snap, ok, err := h.provider.TryLoad(r.Context(), roomID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Snapshot load failed")
		http.Error(w, "snapshot load failed", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "no snapshot for room", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(snap)
}

// SaveSnapshot checkpoints an active room into the cache without
// waiting for drain.
func (h *Handler) SaveSnapshot(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	live, ok := h.registry.Get(roomID)
	if !ok {
		http.Error(w, "room is not active", http.StatusNotFound)
		return
	}

	snap, err := live.EncodeSnapshot()
	if err != nil {
		http.Error(w, "snapshot encode failed", http.StatusInternalServerError)
		return
	}
	if err := h.provider.TrySave(r.Context(), snap); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Snapshot save failed")
		http.Error(w, "snapshot save failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"room_id": snap.RoomID,
		"version": snap.Version,
		"bytes":   len(snap.BinaryState),
	})
}
