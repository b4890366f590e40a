package supabase

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/supabase-community/postgrest-go"

	"github.com/and161185/journeyvault/internal/errs"
	"github.com/and161185/journeyvault/internal/model"
)

type memoryRow struct {
	ID          uuid.UUID              `json:"id"`
	JourneyID   uuid.UUID              `json:"journey_id"`
	Type        string                 `json:"type"`
	MediaPath   string                 `json:"media_path"`
	MediaURL    string                 `json:"media_url"`
	TextContent string                 `json:"text_content"`
	DurationMS  int64                  `json:"duration_ms"`
	Context     *model.ContextSnapshot `json:"context"`
	CreatedBy   uuid.UUID              `json:"created_by"`
	CreatedAt   time.Time              `json:"created_at"`
}

func toMemoryRow(m *model.Memory) memoryRow {
	return memoryRow{
		ID: m.ID, JourneyID: m.JourneyID, Type: string(m.Type), MediaPath: m.MediaPath,
		MediaURL: m.MediaURL, TextContent: m.Text, DurationMS: m.Duration.Milliseconds(),
		Context: m.Context, CreatedBy: m.CreatedBy, CreatedAt: m.CreatedAt.UTC(),
	}
}

func (r memoryRow) model() model.Memory {
	return model.Memory{
		ID: r.ID, JourneyID: r.JourneyID, Type: model.MemoryType(r.Type), MediaPath: r.MediaPath,
		MediaURL: r.MediaURL, Text: r.TextContent, Duration: time.Duration(r.DurationMS) * time.Millisecond,
		Context: r.Context, CreatedBy: r.CreatedBy, CreatedAt: r.CreatedAt,
	}
}

// MemoryRepo implements MemoryRepository over PostgREST.
type MemoryRepo struct{ c restClient }

// NewMemoryRepo constructs a memory repository.
func NewMemoryRepo(c restClient) *MemoryRepo { return &MemoryRepo{c: c} }

// Create inserts a memory row.
func (r *MemoryRepo) Create(ctx context.Context, m *model.Memory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := r.c.From(memoriesTable).Insert(toMemoryRow(m), false, "", "minimal", "").Execute()
	return mapErr(err)
}

// Get selects a memory by ID.
func (r *MemoryRepo) Get(ctx context.Context, id uuid.UUID) (*model.Memory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []memoryRow
	if _, err := r.c.From(memoriesTable).Select("*", "", false).Eq("id", id.String()).ExecuteTo(&rows); err != nil {
		return nil, mapErr(err)
	}
	if len(rows) == 0 {
		return nil, errs.ErrNotFound
	}
	m := rows[0].model()
	return &m, nil
}

// ListByJourney returns a journey's memories in capture order.
func (r *MemoryRepo) ListByJourney(ctx context.Context, journeyID uuid.UUID) ([]model.Memory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []memoryRow
	_, err := r.c.From(memoriesTable).
		Select("*", "", false).
		Eq("journey_id", journeyID.String()).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]model.Memory, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.model())
	}
	return out, nil
}

// Count returns how many memories a journey holds.
func (r *MemoryRepo) Count(ctx context.Context, journeyID uuid.UUID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var ids []struct {
		ID uuid.UUID `json:"id"`
	}
	if _, err := r.c.From(memoriesTable).Select("id", "", false).Eq("journey_id", journeyID.String()).ExecuteTo(&ids); err != nil {
		return 0, mapErr(err)
	}
	return len(ids), nil
}

// Delete removes one memory row.
func (r *MemoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var out []memoryRow
	if _, err := r.c.From(memoriesTable).Delete("representation", "").Eq("id", id.String()).ExecuteTo(&out); err != nil {
		return mapErr(err)
	}
	if len(out) == 0 {
		return errs.ErrNotFound
	}
	return nil
}
