package directory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PryCoder/flowdesk/internal/canvas"
)

// MemoryDirectory backs the engine when no database is configured, and
// is the fixture of choice in tests.
type MemoryDirectory struct {
	mu       sync.RWMutex
	users    map[string]*User       // by username
	rooms    map[string]bool        // by room id
	members  map[string]*Membership // by roomID + "/" + userID
	openJoin bool
}

// NewMemoryDirectory creates an empty in-memory directory. With openJoin
// set, any room id resolves to a default employee membership — the mode
// the server runs in when no DB_DSN is configured.
func NewMemoryDirectory(openJoin bool) *MemoryDirectory {
	return &MemoryDirectory{
		users:    make(map[string]*User),
		rooms:    make(map[string]bool),
		members:  make(map[string]*Membership),
		openJoin: openJoin,
	}
}

func (d *MemoryDirectory) AddUser(u *User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.Username] = u
}

func (d *MemoryDirectory) CreateUser(_ context.Context, u *User) (*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[u.Username]; ok {
		return nil, ErrUserExists
	}
	cp := *u
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.CreatedAt = time.Now().UTC()
	d.users[cp.Username] = &cp
	out := cp
	return &out, nil
}

func (d *MemoryDirectory) AddRoom(roomID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rooms[roomID] = true
}

func (d *MemoryDirectory) AddMember(roomID, userID string, m Membership) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rooms[roomID] = true
	d.members[roomID+"/"+userID] = &m
}

func (d *MemoryDirectory) GetUserByUsername(_ context.Context, username string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (d *MemoryDirectory) Membership(_ context.Context, roomID, userID string) (*Membership, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if m, ok := d.members[roomID+"/"+userID]; ok {
		cp := *m
		return &cp, nil
	}
	if d.rooms[roomID] || d.openJoin {
		return &Membership{
			Role: canvas.RoleEmployee,
			Permissions: canvas.Permissions{
				CanDraw: d.openJoin,
				CanEdit: d.openJoin,
			},
		}, nil
	}
	return nil, ErrRoomNotFound
}

func (d *MemoryDirectory) ArchiveSnapshot(_ context.Context, _ string, _ int64, _ []byte, _ time.Time) error {
	return nil
}
