package room

import (
	"time"

	"github.com/PryCoder/flowdesk/internal/canvas"
)

// Participant is one connected user inside a room. The ConnectionID is a
// back-reference only — the gateway owns the connection's lifecycle.
type Participant struct {
	UserID       string             `json:"user_id"`
	DisplayName  string             `json:"display_name"`
	Role         canvas.Role        `json:"role"`
	ConnectionID string             `json:"-"`
	Permissions  canvas.Permissions `json:"permissions"`
	Cursor       canvas.Cursor      `json:"cursor"`
	JoinedAt     time.Time          `json:"joined_at"`
	LastActivity time.Time          `json:"last_activity"`
}

// Touch bumps the activity clock. Called on every event the participant
// originates.
func (p *Participant) Touch() {
	p.LastActivity = time.Now().UTC()
}
