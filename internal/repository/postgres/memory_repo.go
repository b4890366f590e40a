package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/journeyvault/internal/errs"
	"github.com/and161185/journeyvault/internal/model"
)

// MemoryRepo implements MemoryRepository using PostgreSQL.
type MemoryRepo struct{ db *DB }

// NewMemoryRepo constructs a memory repository.
func NewMemoryRepo(db *DB) *MemoryRepo { return &MemoryRepo{db: db} }

const memoryCols = `id, journey_id, type, media_path, media_url, text_content, duration_ms, context, created_by, created_at`

func encodeContext(c *model.ContextSnapshot) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

func scanMemory(row scanner) (*model.Memory, error) {
	var (
		m     model.Memory
		typ   string
		durMS int64
		ctxJS []byte
	)
	if err := row.Scan(&m.ID, &m.JourneyID, &typ, &m.MediaPath, &m.MediaURL, &m.Text,
		&durMS, &ctxJS, &m.CreatedBy, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Type = model.MemoryType(typ)
	m.Duration = time.Duration(durMS) * time.Millisecond
	if len(ctxJS) > 0 {
		var c model.ContextSnapshot
		if err := json.Unmarshal(ctxJS, &c); err != nil {
			return nil, err
		}
		m.Context = &c
	}
	return &m, nil
}

// Create inserts a memory row.
func (r *MemoryRepo) Create(ctx context.Context, m *model.Memory) error {
	const q = `
INSERT INTO memories (id, journey_id, type, media_path, media_url, text_content, duration_ms, context, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	ctxJS, err := encodeContext(m.Context)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx, q, m.ID, m.JourneyID, string(m.Type), m.MediaPath, m.MediaURL, m.Text,
		m.Duration.Milliseconds(), ctxJS, m.CreatedBy, m.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// Get selects a memory by ID.
func (r *MemoryRepo) Get(ctx context.Context, id uuid.UUID) (*model.Memory, error) {
	const q = `SELECT ` + memoryCols + ` FROM memories WHERE id=$1`
	m, err := scanMemory(r.db.Pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return m, err
}

// ListByJourney returns a journey's memories in capture order.
func (r *MemoryRepo) ListByJourney(ctx context.Context, journeyID uuid.UUID) ([]model.Memory, error) {
	const q = `SELECT ` + memoryCols + `
FROM memories
WHERE journey_id=$1
ORDER BY created_at ASC`
	rows, err := r.db.Pool.Query(ctx, q, journeyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// Count returns how many memories a journey holds.
func (r *MemoryRepo) Count(ctx context.Context, journeyID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM memories WHERE journey_id=$1`
	var n int64
	if err := r.db.Pool.QueryRow(ctx, q, journeyID).Scan(&n); err != nil {
		return 0, err
	}
	return int(n), nil
}

// Delete removes one memory row.
func (r *MemoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM memories WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
