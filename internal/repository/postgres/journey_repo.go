package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/journeyvault/internal/errs"
	"github.com/and161185/journeyvault/internal/model"
)

// JourneyRepo implements JourneyRepository using PostgreSQL.
type JourneyRepo struct{ db *DB }

// NewJourneyRepo constructs a journey repository.
func NewJourneyRepo(db *DB) *JourneyRepo { return &JourneyRepo{db: db} }

const journeyCols = `id, owner_id, name, unlock_at, status, shared_with::text[], emoji, cover_image, created_at, version`

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func scanJourney(row scanner) (*model.Journey, error) {
	var (
		j      model.Journey
		status string
		shared []string
	)
	if err := row.Scan(&j.ID, &j.OwnerID, &j.Name, &j.UnlockAt, &status, &shared,
		&j.Emoji, &j.CoverImage, &j.CreatedAt, &j.Version); err != nil {
		return nil, err
	}
	j.Status = model.JourneyStatus(status)
	j.SharedWith = make([]uuid.UUID, 0, len(shared))
	for _, s := range shared {
		id, err := uuid.FromString(s)
		if err != nil {
			return nil, err
		}
		j.SharedWith = append(j.SharedWith, id)
	}
	return &j, nil
}

// Create inserts a journey row at version 1.
func (r *JourneyRepo) Create(ctx context.Context, j *model.Journey) error {
	const q = `
INSERT INTO journeys (id, owner_id, name, unlock_at, status, shared_with, emoji, cover_image, created_at, version)
VALUES ($1, $2, $3, $4, $5, $6::uuid[], $7, $8, $9, 1)`
	_, err := r.db.Pool.Exec(ctx, q, j.ID, j.OwnerID, j.Name, j.UnlockAt, string(j.Status),
		uuidStrings(j.SharedWith), j.Emoji, j.CoverImage, j.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	j.Version = 1
	return nil
}

// Get selects a journey by ID.
func (r *JourneyRepo) Get(ctx context.Context, id uuid.UUID) (*model.Journey, error) {
	const q = `SELECT ` + journeyCols + ` FROM journeys WHERE id=$1`
	j, err := scanJourney(r.db.Pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return j, err
}

// ListForViewer returns owned and shared journeys, newest first.
func (r *JourneyRepo) ListForViewer(ctx context.Context, viewer uuid.UUID) ([]model.Journey, error) {
	const q = `SELECT ` + journeyCols + `
FROM journeys
WHERE owner_id=$1 OR $1=ANY(shared_with)
ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, viewer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Journey
	for rows.Next() {
		j, err := scanJourney(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

// Update overwrites the mutable columns of a journey if its version still
// matches j.Version, then advances j.Version. A stale copy yields
// ErrVersionConflict.
func (r *JourneyRepo) Update(ctx context.Context, j *model.Journey) error {
	const q = `
UPDATE journeys
SET name=$2, unlock_at=$3, status=$4, shared_with=$5::uuid[], emoji=$6, cover_image=$7, version=version+1
WHERE id=$1 AND version=$8`
	tag, err := r.db.Pool.Exec(ctx, q, j.ID, j.Name, j.UnlockAt, string(j.Status),
		uuidStrings(j.SharedWith), j.Emoji, j.CoverImage, j.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journeys WHERE id=$1)`, j.ID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return errs.ErrVersionConflict
		}
		return errs.ErrNotFound
	}
	j.Version++
	return nil
}

// Delete removes the journey and its memories in one transaction.
func (r *JourneyRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM memories WHERE journey_id=$1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM journeys WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errs.ErrNotFound
		}
		return nil
	})
}

// CompleteDue flips due active journeys to completed.
func (r *JourneyRepo) CompleteDue(ctx context.Context, now time.Time) (int64, error) {
	const q = `UPDATE journeys SET status='completed', version=version+1 WHERE status='active' AND unlock_at<=$1`
	tag, err := r.db.Pool.Exec(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
