package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanUser(row pgx.Row) (*User, error) {
	var u User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.Role,
		&u.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &u, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, name, role, password_hash
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (r *PgRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, name, role, password_hash
		FROM users
		WHERE email = $1
	`, email)
	return scanUser(row)
}

func (r *PgRepository) GetProfileRef(ctx context.Context, userID uuid.UUID) (ProfileRef, error) {
	u, err := r.GetByID(ctx, userID)
	if err != nil {
		return ProfileRef{}, err
	}

	var table string
	switch u.Role {
	case RoleDoctor:
		table = "doctors"
	case RolePatient:
		table = "patients"
	default:
		// Admins carry no profile row.
		return ProfileRef{}, ErrProfileNotFound
	}

	var exists bool
	err = r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM `+table+` WHERE user_id = $1)
	`, userID).Scan(&exists)
	if err != nil {
		return ProfileRef{}, err
	}
	if !exists {
		return ProfileRef{}, ErrProfileNotFound
	}

	return ProfileRef{Role: u.Role, UserID: userID}, nil
}

// Authenticate checks an email/password pair and returns the matching
// identity. Failures are collapsed into ErrBadCredentials so callers
// cannot distinguish a missing account from a wrong password.
func (r *PgRepository) Authenticate(ctx context.Context, email, password string) (Identity, error) {
	u, err := r.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Identity{}, ErrBadCredentials
		}
		return Identity{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Identity{}, ErrBadCredentials
	}

	return Identity{UserID: u.ID, Name: u.Name, Role: u.Role}, nil
}

var _ Repository = (*PgRepository)(nil)
