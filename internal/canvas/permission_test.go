package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGateDrawNeedsCanDraw(t *testing.T) {
	var gate Gate

	assert.NoError(t, gate.Authorize(RoleEmployee, Permissions{CanDraw: true}, ActionDraw))
	assert.ErrorIs(t, gate.Authorize(RoleEmployee, Permissions{CanEdit: true}, ActionDraw), ErrDenied)
}

func TestGateEditActionsNeedCanEdit(t *testing.T) {
	var gate Gate
	editActions := []Action{ActionAddShape, ActionAddText, ActionAddSticky, ActionMove, ActionDelete}

	for _, a := range editActions {
		assert.NoError(t, gate.Authorize(RoleEmployee, Permissions{CanEdit: true}, a), string(a))
		assert.ErrorIs(t, gate.Authorize(RoleEmployee, Permissions{CanDraw: true}, a), ErrDenied, string(a))
	}
}

func TestGateClearNeedsModeratorOrAdmin(t *testing.T) {
	var gate Gate

	assert.NoError(t, gate.Authorize(RoleEmployee, Permissions{IsModerator: true}, ActionClear))
	assert.NoError(t, gate.Authorize(RoleAdmin, Permissions{}, ActionClear))
	assert.ErrorIs(t, gate.Authorize(RoleEmployee, Permissions{CanDraw: true, CanEdit: true}, ActionClear), ErrDenied)
}
