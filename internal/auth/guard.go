package auth

import (
	"errors"

	"github.com/civicwatch/backend/internal/models"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("insufficient permissions")
)

// RequireRole admits s only when it is present and holds role. A missing
// session is always reported before a role mismatch.
func RequireRole(s *Session, role models.UserRole) error {
	if s == nil {
		return ErrUnauthenticated
	}
	if s.Role != role {
		return ErrForbidden
	}
	return nil
}

// RequireOwnerOrAdmin admits the owner of a resource or any admin.
func RequireOwnerOrAdmin(s *Session, ownerID uint) error {
	if s == nil {
		return ErrUnauthenticated
	}
	if s.Role == models.RoleAdmin || s.UserID == ownerID {
		return nil
	}
	return ErrForbidden
}

// RequireSession admits any authenticated caller.
func RequireSession(s *Session) error {
	if s == nil {
		return ErrUnauthenticated
	}
	return nil
}
