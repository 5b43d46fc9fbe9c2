package canvas

import (
	"sync"
	"time"
)

// Cursor is a shared pointer position on the canvas.
type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Editing describes which element a user is currently manipulating.
type Editing struct {
	ElementID   string `json:"element_id"`
	Action      string `json:"action"`
	ElementType string `json:"element_type"`
}

// Presence is a user's live, ephemeral state inside a room. It is never
// persisted and never appears in snapshots.
type Presence struct {
	UserID   string    `json:"user_id"`
	UserName string    `json:"user_name"`
	Cursor   Cursor    `json:"cursor"`
	Editing  *Editing  `json:"editing,omitempty"`
	LastSeen time.Time `json:"last_seen"`
}

// PresenceStore tracks live presence per room. Consumers get no delivery
// guarantee stronger than "most recent wins" — intermediate cursor
// positions may be dropped.
type PresenceStore struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Presence
}

func NewPresenceStore() *PresenceStore {
	return &PresenceStore{
		rooms: make(map[string]map[string]*Presence),
	}
}

// SetCursor records a cursor move, creating the presence entry on first
// sight of the user.
func (ps *PresenceStore) SetCursor(roomID, userID, userName string, cur Cursor) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	p := ps.ensure(roomID, userID, userName)
	p.Cursor = cur
	p.LastSeen = time.Now().UTC()
}

// SetEditing marks the element a user started manipulating.
func (ps *PresenceStore) SetEditing(roomID, userID, userName string, e Editing) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	p := ps.ensure(roomID, userID, userName)
	p.Editing = &e
	p.LastSeen = time.Now().UTC()
}

// ClearEditing drops the editing marker, keeping the cursor.
func (ps *PresenceStore) ClearEditing(roomID, userID string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if room, ok := ps.rooms[roomID]; ok {
		if p, ok := room[userID]; ok {
			p.Editing = nil
			p.LastSeen = time.Now().UTC()
		}
	}
}

// Remove deletes a user's presence entirely, typically on leave.
func (ps *PresenceStore) Remove(roomID, userID string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if room, ok := ps.rooms[roomID]; ok {
		delete(room, userID)
		if len(room) == 0 {
			delete(ps.rooms, roomID)
		}
	}
}

// RemoveRoom drops all presence for a room, used on drain.
func (ps *PresenceStore) RemoveRoom(roomID string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	delete(ps.rooms, roomID)
}

// ListActive returns a copy of every live presence in the room.
func (ps *PresenceStore) ListActive(roomID string) []Presence {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	room, ok := ps.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]Presence, 0, len(room))
	for _, p := range room {
		out = append(out, *p)
	}
	return out
}

func (ps *PresenceStore) ensure(roomID, userID, userName string) *Presence {
	room, ok := ps.rooms[roomID]
	if !ok {
		room = make(map[string]*Presence)
		ps.rooms[roomID] = room
	}
	p, ok := room[userID]
	if !ok {
		p = &Presence{UserID: userID, UserName: userName}
		room[userID] = p
	}
	if userName != "" {
		p.UserName = userName
	}
	return p
}
