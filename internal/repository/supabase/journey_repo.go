package supabase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/supabase-community/postgrest-go"

	"github.com/and161185/journeyvault/internal/errs"
	"github.com/and161185/journeyvault/internal/model"
)

const (
	journeysTable = "journeys"
	memoriesTable = "memories"
)

type journeyRow struct {
	ID         uuid.UUID   `json:"id"`
	OwnerID    uuid.UUID   `json:"owner_id"`
	Name       string      `json:"name"`
	UnlockAt   time.Time   `json:"unlock_at"`
	Status     string      `json:"status"`
	SharedWith []uuid.UUID `json:"shared_with"`
	Emoji      string      `json:"emoji"`
	CoverImage string      `json:"cover_image"`
	CreatedAt  time.Time   `json:"created_at"`
	Version    int64       `json:"version"`
}

func toJourneyRow(j *model.Journey) journeyRow {
	shared := j.SharedWith
	if shared == nil {
		shared = []uuid.UUID{}
	}
	return journeyRow{
		ID: j.ID, OwnerID: j.OwnerID, Name: j.Name, UnlockAt: j.UnlockAt.UTC(),
		Status: string(j.Status), SharedWith: shared, Emoji: j.Emoji,
		CoverImage: j.CoverImage, CreatedAt: j.CreatedAt.UTC(), Version: j.Version,
	}
}

func (r journeyRow) model() model.Journey {
	shared := r.SharedWith
	if shared == nil {
		shared = []uuid.UUID{}
	}
	return model.Journey{
		ID: r.ID, OwnerID: r.OwnerID, Name: r.Name, UnlockAt: r.UnlockAt,
		Status: model.JourneyStatus(r.Status), SharedWith: shared, Emoji: r.Emoji,
		CoverImage: r.CoverImage, CreatedAt: r.CreatedAt, Version: r.Version,
	}
}

// journeyUpdate lists the columns Update may change.
type journeyUpdate struct {
	Name       string      `json:"name"`
	UnlockAt   time.Time   `json:"unlock_at"`
	Status     string      `json:"status"`
	SharedWith []uuid.UUID `json:"shared_with"`
	Emoji      string      `json:"emoji"`
	CoverImage string      `json:"cover_image"`
	Version    int64       `json:"version"`
}

// JourneyRepo implements JourneyRepository over PostgREST.
type JourneyRepo struct{ c restClient }

// NewJourneyRepo constructs a journey repository.
func NewJourneyRepo(c restClient) *JourneyRepo { return &JourneyRepo{c: c} }

// Create inserts a journey row at version 1.
func (r *JourneyRepo) Create(ctx context.Context, j *model.Journey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	row := toJourneyRow(j)
	row.Version = 1
	if _, _, err := r.c.From(journeysTable).Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return mapErr(err)
	}
	j.Version = 1
	return nil
}

// Get selects a journey by ID.
func (r *JourneyRepo) Get(ctx context.Context, id uuid.UUID) (*model.Journey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []journeyRow
	if _, err := r.c.From(journeysTable).Select("*", "", false).Eq("id", id.String()).ExecuteTo(&rows); err != nil {
		return nil, mapErr(err)
	}
	if len(rows) == 0 {
		return nil, errs.ErrNotFound
	}
	j := rows[0].model()
	return &j, nil
}

// ListForViewer returns owned and shared journeys, newest first.
func (r *JourneyRepo) ListForViewer(ctx context.Context, viewer uuid.UUID) ([]model.Journey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v := viewer.String()
	var rows []journeyRow
	_, err := r.c.From(journeysTable).
		Select("*", "", false).
		Or(fmt.Sprintf("owner_id.eq.%s,shared_with.cs.{%s}", v, v), "").
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]model.Journey, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.model())
	}
	return out, nil
}

// Update overwrites the mutable columns of a journey if its version still
// matches j.Version, then advances j.Version. A stale copy yields
// ErrVersionConflict.
func (r *JourneyRepo) Update(ctx context.Context, j *model.Journey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	row := toJourneyRow(j)
	upd := journeyUpdate{
		Name: row.Name, UnlockAt: row.UnlockAt, Status: row.Status,
		SharedWith: row.SharedWith, Emoji: row.Emoji, CoverImage: row.CoverImage,
		Version: j.Version + 1,
	}
	var out []journeyRow
	_, err := r.c.From(journeysTable).
		Update(upd, "representation", "").
		Eq("id", j.ID.String()).
		Eq("version", strconv.FormatInt(j.Version, 10)).
		ExecuteTo(&out)
	if err != nil {
		return mapErr(err)
	}
	if len(out) == 0 {
		if _, err := r.Get(ctx, j.ID); err != nil {
			return err
		}
		return errs.ErrVersionConflict
	}
	j.Version++
	return nil
}

// Delete removes the journey's memories, then the journey.
func (r *JourneyRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := r.c.From(memoriesTable).Delete("minimal", "").Eq("journey_id", id.String()).Execute(); err != nil {
		return mapErr(err)
	}
	var out []journeyRow
	if _, err := r.c.From(journeysTable).Delete("representation", "").Eq("id", id.String()).ExecuteTo(&out); err != nil {
		return mapErr(err)
	}
	if len(out) == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// CompleteDue flips due active journeys to completed. PostgREST cannot
// increment a column in place, so each row is patched against the version
// it was selected at; rows changed in between are left for the next sweep.
func (r *JourneyRepo) CompleteDue(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var due []journeyRow
	_, err := r.c.From(journeysTable).
		Select("id,version", "", false).
		Eq("status", string(model.StatusActive)).
		Lte("unlock_at", now.UTC().Format(time.RFC3339Nano)).
		ExecuteTo(&due)
	if err != nil {
		return 0, mapErr(err)
	}
	var n int64
	for _, d := range due {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		var out []journeyRow
		_, err := r.c.From(journeysTable).
			Update(map[string]any{"status": string(model.StatusCompleted), "version": d.Version + 1}, "representation", "").
			Eq("id", d.ID.String()).
			Eq("version", strconv.FormatInt(d.Version, 10)).
			Eq("status", string(model.StatusActive)).
			ExecuteTo(&out)
		if err != nil {
			return n, mapErr(err)
		}
		n += int64(len(out))
	}
	return n, nil
}
