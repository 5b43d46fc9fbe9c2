package canvas

import "errors"

// ErrDenied is returned when a participant lacks the capability an
// operation requires. The document is never touched for a denied op.
var ErrDenied = errors.New("canvas: operation not permitted")

// Role is the participant's platform role as seeded by the directory
// service at join time.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// Permissions are the capability flags evaluated before any mutation
// reaches the document or reducer.
type Permissions struct {
	CanDraw     bool `json:"can_draw"`
	CanEdit     bool `json:"can_edit"`
	CanInvite   bool `json:"can_invite"`
	IsModerator bool `json:"is_moderator"`
}

// Action names the mutation classes the gate knows how to judge.
type Action string

const (
	ActionDraw      Action = "draw"
	ActionAddShape  Action = "add-shape"
	ActionAddText   Action = "add-text"
	ActionAddSticky Action = "add-sticky"
	ActionMove      Action = "move-object"
	ActionDelete    Action = "delete-object"
	ActionClear     Action = "clear"
)

// Gate decides whether a participant may perform a mutation. It is pure
// and synchronous: authorize, then mutate, with nothing in between.
type Gate struct{}

// Authorize returns ErrDenied if the capability flags do not cover the
// attempted action. Freehand drawing only needs CanDraw; structured
// edits need CanEdit; a full clear is reserved for moderators and admins.
func (Gate) Authorize(role Role, perms Permissions, action Action) error {
	switch action {
	case ActionDraw:
		if perms.CanDraw {
			return nil
		}
	case ActionAddShape, ActionAddText, ActionAddSticky, ActionMove, ActionDelete:
		if perms.CanEdit {
			return nil
		}
	case ActionClear:
		if perms.IsModerator || role == RoleAdmin {
			return nil
		}
	}
	return ErrDenied
}
