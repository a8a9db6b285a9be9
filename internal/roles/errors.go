package roles

import "errors"

var (
	// ErrUnknownRole is returned for a role outside the permission matrix.
	ErrUnknownRole = errors.New("roles: unknown role")
	// ErrUnknownPermission is returned for a permission the matrix does not carry.
	ErrUnknownPermission = errors.New("roles: unknown permission")
	// ErrRoleNotAssignable is returned when a role cannot be granted through a role change.
	ErrRoleNotAssignable = errors.New("roles: role cannot be assigned")
	// ErrOwnerImmutable is returned when a role change targets the room owner.
	ErrOwnerImmutable = errors.New("roles: owner role cannot be changed")
)
