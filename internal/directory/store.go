package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/PryCoder/flowdesk/internal/canvas"
)

// Store is the Postgres-backed directory.
type Store struct {
	db *sql.DB
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// AutoMigrate creates the directory tables the engine reads from plus
// the snapshot archive it writes to.
func (s *Store) AutoMigrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            username VARCHAR(50) UNIQUE NOT NULL,
            display_name VARCHAR(100) NOT NULL DEFAULT '',
            password VARCHAR(255) NOT NULL,
            role VARCHAR(20) NOT NULL DEFAULT 'employee',
            created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS rooms (
            id VARCHAR(64) PRIMARY KEY,
            name VARCHAR(100) NOT NULL DEFAULT '',
            created_by UUID REFERENCES users(id),
            created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS room_members (
            room_id VARCHAR(64) REFERENCES rooms(id) ON DELETE CASCADE,
            user_id UUID REFERENCES users(id) ON DELETE CASCADE,
            can_draw BOOLEAN NOT NULL DEFAULT TRUE,
            can_edit BOOLEAN NOT NULL DEFAULT TRUE,
            can_invite BOOLEAN NOT NULL DEFAULT FALSE,
            is_moderator BOOLEAN NOT NULL DEFAULT FALSE,
            joined_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (room_id, user_id)
        )`,

		`CREATE TABLE IF NOT EXISTS canvas_snapshots (
            room_id VARCHAR(64) NOT NULL,
            version BIGINT NOT NULL,
            state BYTEA NOT NULL,
            saved_at TIMESTAMPTZ NOT NULL,
            PRIMARY KEY (room_id, saved_at)
        )`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("directory: migration failed: %w", err)
		}
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u *User) (*User, error) {
	query := `INSERT INTO users (username, display_name, password, role)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (username) DO NOTHING
        RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query, u.Username, u.DisplayName, u.PasswordHash, u.Role).
		Scan(&u.ID, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserExists
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	u := &User{}
	query := `SELECT id, username, display_name, password, role, created_at FROM users WHERE username = $1`

	err := s.db.QueryRowContext(ctx, query, username).
		Scan(&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// Membership resolves the permission seed for a user joining a room.
// A room with no membership row for the user still admits them, but with
// view-only capabilities — the platform's invite flow is what grants more.
func (s *Store) Membership(ctx context.Context, roomID, userID string) (*Membership, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM rooms WHERE id = $1)`, roomID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrRoomNotFound
	}

	m := &Membership{}
	var role string
	query := `
		SELECT u.role, m.can_draw, m.can_edit, m.can_invite, m.is_moderator
		FROM room_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.room_id = $1 AND m.user_id = $2
	`
	err := s.db.QueryRowContext(ctx, query, roomID, userID).
		Scan(&role, &m.Permissions.CanDraw, &m.Permissions.CanEdit, &m.Permissions.CanInvite, &m.Permissions.IsModerator)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &Membership{Role: canvas.RoleEmployee}, nil
		}
		return nil, err
	}
	m.Role = canvas.Role(role)
	return m, nil
}

// ArchiveSnapshot stores a durable copy of a drained room's state.
func (s *Store) ArchiveSnapshot(ctx context.Context, roomID string, version int64, state []byte, savedAt time.Time) error {
	query := `INSERT INTO canvas_snapshots (room_id, version, state, saved_at) VALUES ($1, $2, $3, $4)
	          ON CONFLICT (room_id, saved_at) DO NOTHING`
	_, err := s.db.ExecContext(ctx, query, roomID, version, state, savedAt)
	return err
}
