package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/journeyvault/internal/errs"
	"github.com/and161185/journeyvault/internal/model"
	"github.com/and161185/journeyvault/internal/repository"
)

type fakeJourneyRepo struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]model.Journey
	updateErr error
	deleted   []uuid.UUID
	sweptAt   time.Time
	conflicts int

	// beforeUpdate runs once, outside the lock, ahead of the next Update.
	beforeUpdate func()
}

var _ repository.JourneyRepository = (*fakeJourneyRepo)(nil)

func newFakeJourneyRepo() *fakeJourneyRepo {
	return &fakeJourneyRepo{rows: map[uuid.UUID]model.Journey{}}
}

func cloneJourney(j model.Journey) model.Journey {
	j.SharedWith = append([]uuid.UUID{}, j.SharedWith...)
	return j
}

func (f *fakeJourneyRepo) Create(_ context.Context, j *model.Journey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[j.ID]; ok {
		return errs.ErrAlreadyExists
	}
	j.Version = 1
	f.rows[j.ID] = cloneJourney(*j)
	return nil
}

func (f *fakeJourneyRepo) Get(_ context.Context, id uuid.UUID) (*model.Journey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.rows[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := cloneJourney(j)
	return &c, nil
}

func (f *fakeJourneyRepo) ListForViewer(_ context.Context, viewer uuid.UUID) ([]model.Journey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Journey
	for _, j := range f.rows {
		if j.OwnerID == viewer || j.IsCollaborator(viewer) {
			out = append(out, cloneJourney(j))
		}
	}
	slices.SortFunc(out, func(a, b model.Journey) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (f *fakeJourneyRepo) Update(_ context.Context, j *model.Journey) error {
	f.mu.Lock()
	hook := f.beforeUpdate
	f.beforeUpdate = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	cur, ok := f.rows[j.ID]
	if !ok {
		return errs.ErrNotFound
	}
	if cur.Version != j.Version {
		f.conflicts++
		return errs.ErrVersionConflict
	}
	j.Version++
	f.rows[j.ID] = cloneJourney(*j)
	return nil
}

func (f *fakeJourneyRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return errs.ErrNotFound
	}
	delete(f.rows, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeJourneyRepo) CompleteDue(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweptAt = now
	var n int64
	for id, j := range f.rows {
		if j.Status == model.StatusActive && !j.UnlockAt.After(now) {
			j.Status = model.StatusCompleted
			j.Version++
			f.rows[id] = j
			n++
		}
	}
	return n, nil
}

type fakeMemoryRepo struct {
	mu       sync.Mutex
	rows     map[uuid.UUID]model.Memory
	countErr error
}

var _ repository.MemoryRepository = (*fakeMemoryRepo)(nil)

func newFakeMemoryRepo() *fakeMemoryRepo {
	return &fakeMemoryRepo{rows: map[uuid.UUID]model.Memory{}}
}

func (f *fakeMemoryRepo) Create(_ context.Context, m *model.Memory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[m.ID] = *m
	return nil
}

func (f *fakeMemoryRepo) Get(_ context.Context, id uuid.UUID) (*model.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &m, nil
}

func (f *fakeMemoryRepo) ListByJourney(_ context.Context, jid uuid.UUID) ([]model.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Memory
	for _, m := range f.rows {
		if m.JourneyID == jid {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b model.Memory) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (f *fakeMemoryRepo) Count(_ context.Context, jid uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	n := 0
	for _, m := range f.rows {
		if m.JourneyID == jid {
			n++
		}
	}
	return n, nil
}

func (f *fakeMemoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return errs.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

// dropJourney mirrors the cascade a real backend performs.
func (f *fakeMemoryRepo) dropJourney(jid uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, m := range f.rows {
		if m.JourneyID == jid {
			delete(f.rows, id)
		}
	}
}

type cascadingJourneyRepo struct {
	*fakeJourneyRepo
	mems *fakeMemoryRepo
}

func (c cascadingJourneyRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.fakeJourneyRepo.Delete(ctx, id); err != nil {
		return err
	}
	c.mems.dropJourney(id)
	return nil
}

type fakeIdentities struct {
	byEmail map[string]uuid.UUID

	// onLookup runs inside IDByEmail, standing in for a slow directory.
	onLookup func()
}

var _ repository.IdentityRepository = (*fakeIdentities)(nil)

func (f *fakeIdentities) IDByEmail(_ context.Context, email string) (uuid.UUID, error) {
	if f.onLookup != nil {
		f.onLookup()
	}
	id, ok := f.byEmail[email]
	if !ok {
		return uuid.Nil, errs.ErrNotFound
	}
	return id, nil
}

func (f *fakeIdentities) EmailByID(_ context.Context, id uuid.UUID) (string, error) {
	for e, v := range f.byEmail {
		if v == id {
			return e, nil
		}
	}
	return "", errs.ErrNotFound
}

type fakeBlobs struct {
	mu          sync.Mutex
	objects     map[string][]byte
	removed     []string
	removeCalls int
	uploadErr   error
	removeErr   error
}

func newFakeBlobs() *fakeBlobs { return &fakeBlobs{objects: map[string][]byte{}} }

func (f *fakeBlobs) Upload(_ context.Context, path string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.objects[path] = append([]byte(nil), data...)
	return nil
}

func (f *fakeBlobs) PublicURL(path string) string { return "https://cdn.test/" + path }

func (f *fakeBlobs) Remove(_ context.Context, paths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls++
	f.removed = append(f.removed, paths...)
	for _, p := range paths {
		delete(f.objects, p)
	}
	return f.removeErr
}

var errBoom = errors.New("boom")
