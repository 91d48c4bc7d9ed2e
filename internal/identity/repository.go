package identity

import (
	"context"

	"github.com/google/uuid"
)

// Repository contains the user lookups the rest of the service needs.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetProfileRef resolves which role-specific profile a user owns.
	GetProfileRef(ctx context.Context, userID uuid.UUID) (ProfileRef, error)

	// Authenticate verifies an email/password pair. All failures look
	// like ErrBadCredentials to the caller.
	Authenticate(ctx context.Context, email, password string) (Identity, error)
}
