package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/journeyvault/internal/errs"
)

// IdentityRepo implements IdentityRepository over the profiles table.
type IdentityRepo struct{ db *DB }

// NewIdentityRepo constructs an identity repository.
func NewIdentityRepo(db *DB) *IdentityRepo { return &IdentityRepo{db: db} }

// Register adds an account profile. Emails are stored lower-cased.
func (r *IdentityRepo) Register(ctx context.Context, id uuid.UUID, email string) error {
	const q = `INSERT INTO profiles (id, email) VALUES ($1, $2)`
	_, err := r.db.Pool.Exec(ctx, q, id, strings.ToLower(strings.TrimSpace(email)))
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// IDByEmail looks an account up by email, case-insensitively.
func (r *IdentityRepo) IDByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	const q = `SELECT id FROM profiles WHERE email=$1`
	var id uuid.UUID
	err := r.db.Pool.QueryRow(ctx, q, strings.ToLower(strings.TrimSpace(email))).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, errs.ErrNotFound
	}
	return id, err
}

// EmailByID returns the email of an account.
func (r *IdentityRepo) EmailByID(ctx context.Context, id uuid.UUID) (string, error) {
	const q = `SELECT email FROM profiles WHERE id=$1`
	var email string
	err := r.db.Pool.QueryRow(ctx, q, id).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", errs.ErrNotFound
	}
	return email, err
}
