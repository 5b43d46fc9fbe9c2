package room

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PryCoder/flowdesk/internal/canvas"
	"github.com/PryCoder/flowdesk/internal/snapshot"
)

// ErrNotParticipant is returned when an operation references a user who
// is not currently in the room.
var ErrNotParticipant = errors.New("room: user is not a participant")

// Room is the unit of isolation for one collaborative canvas session.
//
// All mutation happens on the owning task loop (the gateway hub's Run
// goroutine), which is what gives operations their per-room FIFO order.
// The mutex exists only so read-side callers off the loop (the HTTP
// snapshot endpoints) see consistent state.
type Room struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	mu           sync.RWMutex
	participants map[string]*Participant

	doc     *canvas.Document
	state   *canvas.State
	chat    *canvas.ChatBuffer
	reducer canvas.Reducer
	gate    canvas.Gate
}

// New creates an empty room. The document's site id is derived from the
// room id so a restarted process gets a fresh replica identity.
func New(id string, chatCap int) *Room {
	now := time.Now().UTC()
	return &Room{
		ID:           id,
		CreatedAt:    now,
		UpdatedAt:    now,
		participants: make(map[string]*Participant),
		doc:          canvas.NewDocument(id + "/" + uuid.NewString()[:8]),
		state:        canvas.NewState(),
		chat:         canvas.NewChatBuffer(chatCap),
	}
}

// AddParticipant attaches a user, replacing any stale entry left by a
// reconnect. Returns the resulting participant count.
func (r *Room) AddParticipant(p *Participant) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.JoinedAt = time.Now().UTC()
	p.LastActivity = p.JoinedAt
	r.participants[p.UserID] = p
	r.UpdatedAt = p.JoinedAt
	return len(r.participants)
}

// RemoveParticipant detaches a user. Returns the remaining count; zero
// means the caller should drain the room.
func (r *Room) RemoveParticipant(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.participants, userID)
	r.UpdatedAt = time.Now().UTC()
	return len(r.participants)
}

// Participant looks up a connected user.
func (r *Room) Participant(userID string) (*Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[userID]
	return p, ok
}

// Participants returns a stable copy of the current roster.
func (r *Room) Participants() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, *p)
	}
	return out
}

// Len reports the participant count.
func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

// SetCursor mirrors a presence cursor move onto the roster entry.
func (r *Room) SetCursor(userID string, cur canvas.Cursor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.participants[userID]; ok {
		p.Cursor = cur
		p.Touch()
	}
}

// AppendLocal runs a CRDT append on behalf of a user: permission check,
// then a local change on the shared document. The returned bytes are the
// update to broadcast to the other replicas.
func (r *Room) AppendLocal(userID string, action canvas.Action, part canvas.Partition, payload json.RawMessage) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[userID]
	if !ok {
		return nil, ErrNotParticipant
	}
	if err := r.gate.Authorize(p.Role, p.Permissions, action); err != nil {
		return nil, err
	}
	p.Touch()
	r.UpdatedAt = p.LastActivity
	return r.doc.ApplyLocal(part, uuid.NewString(), userID, payload)
}

// MergeRemote folds a replica update from a reconnecting participant
// into the document. Merging is idempotent, so replaying entries the
// room already holds is harmless; the gate keeps viewers from
// injecting entries through the resync path.
func (r *Room) MergeRemote(userID string, update []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[userID]
	if !ok {
		return ErrNotParticipant
	}
	if err := r.gate.Authorize(p.Role, p.Permissions, canvas.ActionDraw); err != nil {
		return err
	}
	p.Touch()
	r.UpdatedAt = p.LastActivity
	return r.doc.Merge(update)
}

// ApplyOperations runs the permission gate and then the incremental
// reducer path. Denied operations leave the element list untouched.
func (r *Room) ApplyOperations(userID string, action canvas.Action, ops []canvas.Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[userID]
	if !ok {
		return ErrNotParticipant
	}
	if err := r.gate.Authorize(p.Role, p.Permissions, action); err != nil {
		return err
	}
	p.Touch()
	r.UpdatedAt = p.LastActivity
	r.reducer.ApplyOps(r.state, ops)
	return nil
}

// ReplaceState runs the full-state replacement path, including the
// version precondition.
func (r *Room) ReplaceState(userID string, full canvas.FullState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[userID]
	if !ok {
		return ErrNotParticipant
	}
	if err := r.gate.Authorize(p.Role, p.Permissions, canvas.ActionMove); err != nil {
		return err
	}
	p.Touch()
	r.UpdatedAt = p.LastActivity
	return r.reducer.ReplaceState(r.state, full, userID)
}

// Clear empties the canvas. Moderator-gated.
func (r *Room) Clear(userID string) error {
	return r.ApplyOperations(userID, canvas.ActionClear, []canvas.Operation{{Kind: canvas.OpClear, OriginUser: userID}})
}

// AppendChat adds a message to the ring buffer and returns the stamped
// message for broadcast.
func (r *Room) AppendChat(userID, userName, text string) (canvas.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[userID]
	if !ok {
		return canvas.ChatMessage{}, ErrNotParticipant
	}
	p.Touch()
	msg := canvas.ChatMessage{
		ID:        uuid.NewString(),
		UserID:    userID,
		UserName:  userName,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
	r.chat.Append(msg)
	r.UpdatedAt = msg.Timestamp
	return msg, nil
}

// ChatTail returns the most recent chat messages, oldest first.
func (r *Room) ChatTail(n int) []canvas.ChatMessage {
	return r.chat.Tail(n)
}

// State exposes the authoritative canvas mirror. Callers on the task
// loop may read it; nobody outside the reducer may write it.
func (r *Room) State() *canvas.State {
	return r.state
}

// Document exposes the shared CRDT document for reads.
func (r *Room) Document() *canvas.Document {
	return r.doc
}

// EncodeSnapshot serializes the room's durable state. Presence and chat
// are deliberately excluded — both are ephemeral.
func (r *Room) EncodeSnapshot() (*snapshot.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, err := r.doc.EncodeState()
	if err != nil {
		return nil, err
	}
	return &snapshot.Snapshot{
		RoomID:      r.ID,
		BinaryState: data,
		Version:     r.state.Version,
		SavedAt:     time.Now().UTC(),
	}, nil
}

// RestoreSnapshot loads a previously saved document state into this
// (empty) room. Restoring is a merge, so a partially stale snapshot can
// never remove entries that arrived since it was taken.
func (r *Room) RestoreSnapshot(snap *snapshot.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.doc.Merge(snap.BinaryState); err != nil {
		return err
	}
	if snap.Version > r.state.Version {
		r.state.Version = snap.Version
	}
	return nil
}
