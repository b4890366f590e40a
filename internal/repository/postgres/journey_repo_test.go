package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/journeyvault/internal/errs"
	"github.com/and161185/journeyvault/internal/model"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

var journeyColumns = []string{"id", "owner_id", "name", "unlock_at", "status", "shared_with", "emoji", "cover_image", "created_at", "version"}

func sampleJourney() *model.Journey {
	now := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	return &model.Journey{
		ID:         uuid.Must(uuid.NewV4()),
		OwnerID:    uuid.Must(uuid.NewV4()),
		Name:       "Kyoto 2024",
		UnlockAt:   now.Add(30 * 24 * time.Hour),
		Status:     model.StatusActive,
		SharedWith: []uuid.UUID{uuid.Must(uuid.NewV4())},
		Emoji:      "🗾",
		CreatedAt:  now,
		Version:    3,
	}
}

func TestJourneyRepo_Create(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewJourneyRepo(db)
	ctx := context.Background()
	j := sampleJourney()

	mock.ExpectExec(`INSERT INTO journeys \(id, owner_id, name, unlock_at, status, shared_with, emoji, cover_image, created_at, version\)`).
		WithArgs(j.ID, j.OwnerID, j.Name, j.UnlockAt, "active", []string{j.SharedWith[0].String()}, j.Emoji, "", j.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(ctx, j))
	require.EqualValues(t, 1, j.Version)

	mock.ExpectExec(`INSERT INTO journeys`).
		WithArgs(j.ID, j.OwnerID, j.Name, j.UnlockAt, "active", []string{j.SharedWith[0].String()}, j.Emoji, "", j.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Create(ctx, j), errs.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJourneyRepo_Get(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewJourneyRepo(db)
	ctx := context.Background()
	j := sampleJourney()

	mock.ExpectQuery(`FROM journeys WHERE id=\$1`).
		WithArgs(j.ID).
		WillReturnRows(pgxmock.NewRows(journeyColumns).
			AddRow(j.ID, j.OwnerID, j.Name, j.UnlockAt, "active", []string{j.SharedWith[0].String()}, j.Emoji, "", j.CreatedAt, j.Version))
	got, err := r.Get(ctx, j.ID)
	require.NoError(t, err)
	require.Equal(t, j, got)

	mock.ExpectQuery(`FROM journeys WHERE id=\$1`).
		WithArgs(j.ID).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.Get(ctx, j.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestJourneyRepo_ListForViewer(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewJourneyRepo(db)
	ctx := context.Background()
	a, b := sampleJourney(), sampleJourney()
	b.SharedWith = []uuid.UUID{}
	viewer := a.SharedWith[0]

	mock.ExpectQuery(`WHERE owner_id=\$1 OR \$1=ANY\(shared_with\) ORDER BY created_at DESC`).
		WithArgs(viewer).
		WillReturnRows(pgxmock.NewRows(journeyColumns).
			AddRow(a.ID, a.OwnerID, a.Name, a.UnlockAt, "active", []string{viewer.String()}, a.Emoji, "", a.CreatedAt, int64(1)).
			AddRow(b.ID, b.OwnerID, b.Name, b.UnlockAt, "completed", []string{}, "", "cover.png", b.CreatedAt, int64(4)))

	list, err := r.ListForViewer(ctx, viewer)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.True(t, list[0].IsCollaborator(viewer))
	require.Equal(t, model.StatusCompleted, list[1].Status)
	require.Equal(t, "cover.png", list[1].CoverImage)
}

func TestJourneyRepo_Update(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewJourneyRepo(db)
	ctx := context.Background()
	j := sampleJourney()
	j.Name = "Kyoto & Osaka"
	shared := []string{j.SharedWith[0].String()}

	mock.ExpectExec(`UPDATE journeys SET name=\$2, unlock_at=\$3, status=\$4, shared_with=\$5::uuid\[\], emoji=\$6, cover_image=\$7, version=version\+1 WHERE id=\$1 AND version=\$8`).
		WithArgs(j.ID, j.Name, j.UnlockAt, "active", shared, j.Emoji, "", int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.Update(ctx, j))
	require.EqualValues(t, 4, j.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJourneyRepo_Update_StaleVersion(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewJourneyRepo(db)
	ctx := context.Background()
	j := sampleJourney()
	shared := []string{j.SharedWith[0].String()}

	// Row exists but moved on: a concurrent writer won.
	mock.ExpectExec(`UPDATE journeys`).
		WithArgs(j.ID, j.Name, j.UnlockAt, "active", shared, j.Emoji, "", int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM journeys WHERE id=\$1\)`).
		WithArgs(j.ID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	require.ErrorIs(t, r.Update(ctx, j), errs.ErrVersionConflict)
	require.EqualValues(t, 3, j.Version)

	mock.ExpectExec(`UPDATE journeys`).
		WithArgs(j.ID, j.Name, j.UnlockAt, "active", shared, j.Emoji, "", int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(j.ID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	require.ErrorIs(t, r.Update(ctx, j), errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJourneyRepo_Delete_Cascades(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewJourneyRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM memories WHERE journey_id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`DELETE FROM journeys WHERE id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()
	require.NoError(t, r.Delete(ctx, id))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJourneyRepo_Delete_RollsBack(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewJourneyRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM memories WHERE journey_id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM journeys WHERE id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()
	require.ErrorIs(t, r.Delete(ctx, id), errs.ErrNotFound)

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM memories WHERE journey_id=\$1`).
		WithArgs(id).
		WillReturnError(boom)
	mock.ExpectRollback()
	require.ErrorIs(t, r.Delete(ctx, id), boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJourneyRepo_CompleteDue(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewJourneyRepo(db)
	now := time.Now()

	mock.ExpectExec(`UPDATE journeys SET status='completed', version=version\+1 WHERE status='active' AND unlock_at<=\$1`).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	n, err := r.CompleteDue(context.Background(), now)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}
