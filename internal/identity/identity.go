package identity

import (
	"errors"

	"github.com/google/uuid"
)

// Role is the tagged role variant. Authorization decisions match on
// this type, never on raw strings from the request.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RolePatient:
		return true
	}
	return false
}

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrProfileNotFound = errors.New("profile not found")
	ErrBadCredentials  = errors.New("invalid email or password")
)

// Identity is the authenticated caller attached to every request and
// channel connection.
type Identity struct {
	UserID uuid.UUID
	Name   string
	Role   Role
}

// User maps to the users table. Password hashes never leave this package.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	Role         Role
	PasswordHash string
}

// ProfileRef points at the role-specific profile row for a user. The
// lookup is explicit: callers get a ref or ErrProfileNotFound, never a
// reflective attribute probe.
type ProfileRef struct {
	Role   Role
	UserID uuid.UUID
}
