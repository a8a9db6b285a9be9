package roles

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"meethub/backend/internal/config"
	"meethub/backend/internal/models"
	"meethub/backend/internal/storage"

	"github.com/rs/zerolog/log"
)

// Store is the part of the session store the engine needs.
type Store interface {
	SetRoleIfAbsent(ctx context.Context, roomID, userID string, role models.Role) (models.Role, error)
	SetRole(ctx context.Context, roomID, userID string, role models.Role) error
	GetRole(ctx context.Context, roomID, userID string) (models.Role, error)
	GetRoles(ctx context.Context, roomID string) (map[string]models.Role, error)
	GetPermissions(ctx context.Context, roomID string) (models.PermissionMatrix, bool, error)
	InitPermissions(ctx context.Context, roomID string, matrix models.PermissionMatrix) error
	SetPermission(ctx context.Context, roomID string, role models.Role, perm models.Permission, value bool) error
}

// RoomLookup resolves durable room configuration.
type RoomLookup interface {
	GetRoomByShortID(ctx context.Context, shortID string) (*models.Room, error)
}

// Engine assigns roles and maintains the per-room permission matrix.
type Engine struct {
	store Store
	rooms RoomLookup
}

func NewEngine(store Store, rooms RoomLookup) *Engine {
	return &Engine{store: store, rooms: rooms}
}

// AssignDefaultRole gives the user owner (isHost) or participant unless a role is
// already assigned. The effective role is returned.
func (e *Engine) AssignDefaultRole(ctx context.Context, roomID, userID string, isHost bool) (models.Role, error) {
	role := models.RoleParticipant
	if isHost {
		role = models.RoleOwner
	}
	effective, err := e.store.SetRoleIfAbsent(ctx, roomID, userID, role)
	if err != nil {
		return "", err
	}
	return effective, nil
}

// GetRoles returns the full userId -> role map of the room.
func (e *Engine) GetRoles(ctx context.Context, roomID string) (map[string]models.Role, error) {
	return e.store.GetRoles(ctx, roomID)
}

// RoleOf returns the user's role, or an empty role if none is assigned.
func (e *Engine) RoleOf(ctx context.Context, roomID, userID string) (models.Role, error) {
	role, err := e.store.GetRole(ctx, roomID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	return role, err
}

// DeriveMatrix computes the initial matrix from the room's durable permission levels.
func DeriveMatrix(room *models.Room) models.PermissionMatrix {
	levels := map[models.Permission]string{
		models.PermissionShareScreen:       room.CanShareScreen,
		models.PermissionStartPresentation: room.CanStartPresentation,
	}
	matrix := make(models.PermissionMatrix, len(models.Roles))
	for _, role := range models.Roles {
		var row models.RolePermissions
		for perm, level := range levels {
			row.Set(perm, grants(level, role))
		}
		matrix[role] = row
	}
	return matrix
}

// grants applies: ALL grants everyone, ADMIN grants owner and admin, OWNER grants owner.
// Unknown levels are as restrictive as OWNER.
func grants(level string, role models.Role) bool {
	rank, ok := config.PermissionLevelRank[level]
	if !ok {
		rank = config.PermissionLevelRank[models.LevelOwner]
	}
	switch role {
	case models.RoleOwner:
		return true
	case models.RoleAdmin:
		return rank >= config.PermissionLevelRank[models.LevelAdmin]
	case models.RoleParticipant:
		return rank >= config.PermissionLevelRank[models.LevelAll]
	}
	return false
}

// GetPermissionMatrix returns the live matrix, deriving and persisting it from the
// durable room on first access.
func (e *Engine) GetPermissionMatrix(ctx context.Context, roomID string) (models.PermissionMatrix, error) {
	matrix, found, err := e.store.GetPermissions(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if found {
		return matrix, nil
	}

	room, err := e.rooms.GetRoomByShortID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("derive permissions for room %s: %w", roomID, err)
	}
	if err := e.store.InitPermissions(ctx, roomID, DeriveMatrix(room)); err != nil {
		return nil, err
	}
	log.Debug().Str("module", "roles").Str("room_id", roomID).Msg("derived permission matrix from room config")

	// Re-read so a concurrent derivation or edit is reflected.
	matrix, _, err = e.store.GetPermissions(ctx, roomID)
	return matrix, err
}

// SetPermission overwrites one cell and returns the role's updated row.
func (e *Engine) SetPermission(ctx context.Context, roomID string, role models.Role, perm models.Permission, value bool) (models.RolePermissions, error) {
	if !slices.Contains(models.Roles, role) {
		return models.RolePermissions{}, ErrUnknownRole
	}
	if !slices.Contains(models.Permissions, perm) {
		return models.RolePermissions{}, ErrUnknownPermission
	}
	// The matrix must exist before a single cell is written, otherwise the
	// remaining cells would read as denied.
	if _, err := e.GetPermissionMatrix(ctx, roomID); err != nil {
		return models.RolePermissions{}, err
	}
	if err := e.store.SetPermission(ctx, roomID, role, perm, value); err != nil {
		return models.RolePermissions{}, err
	}
	matrix, _, err := e.store.GetPermissions(ctx, roomID)
	if err != nil {
		return models.RolePermissions{}, err
	}
	return matrix[role], nil
}

// Can reports whether the user's role holds perm.
func (e *Engine) Can(ctx context.Context, roomID, userID string, perm models.Permission) (bool, error) {
	role, err := e.RoleOf(ctx, roomID, userID)
	if err != nil || role == "" {
		return false, err
	}
	matrix, err := e.GetPermissionMatrix(ctx, roomID)
	if err != nil {
		return false, err
	}
	return matrix[role].Get(perm), nil
}

// CheckRoleChange validates a role change before SetRole is applied.
func (e *Engine) CheckRoleChange(ctx context.Context, roomID, targetUserID string, newRole models.Role) error {
	if newRole != models.RoleAdmin && newRole != models.RoleParticipant {
		return ErrRoleNotAssignable
	}
	current, err := e.RoleOf(ctx, roomID, targetUserID)
	if err != nil {
		return err
	}
	if current == models.RoleOwner {
		return ErrOwnerImmutable
	}
	return nil
}

// SetRole overwrites the target's role. Callers enforce authorization.
func (e *Engine) SetRole(ctx context.Context, roomID, targetUserID string, newRole models.Role) error {
	return e.store.SetRole(ctx, roomID, targetUserID, newRole)
}
