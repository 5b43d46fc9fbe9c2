package directory

import (
	"context"
	"errors"
	"time"

	"github.com/PryCoder/flowdesk/internal/canvas"
)

// The directory service is the persistent side of the platform: users,
// room records, invitations and the permission seeds handed to the
// canvas engine at join time. The engine only ever consumes this
// interface; everything else about the directory is out of its hands.

var (
	ErrRoomNotFound = errors.New("directory: room not found")
	ErrUserNotFound = errors.New("directory: user not found")
	ErrUserExists   = errors.New("directory: username already taken")
)

// User is a platform account as the directory stores it.
type User struct {
	ID           string
	Username     string
	DisplayName  string
	PasswordHash string
	Role         canvas.Role
	CreatedAt    time.Time
}

// Membership is the permission seed for one user in one room.
type Membership struct {
	Role        canvas.Role
	Permissions canvas.Permissions
}

// Directory is what the canvas engine needs from the platform at join
// time: does the room exist, and what may this user do in it.
type Directory interface {
	Membership(ctx context.Context, roomID, userID string) (*Membership, error)
}

// CredentialStore is what the auth layer needs for signup and login.
type CredentialStore interface {
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, u *User) (*User, error)
}

// SnapshotArchive is the durable, write-behind home for drained room
// snapshots, beyond the TTL-bound cache.
type SnapshotArchive interface {
	ArchiveSnapshot(ctx context.Context, roomID string, version int64, state []byte, savedAt time.Time) error
}
