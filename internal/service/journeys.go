// Package service contains journey administration, gallery reads and account bootstrap.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/journeyvault/internal/blob"
	"github.com/and161185/journeyvault/internal/errs"
	"github.com/and161185/journeyvault/internal/lock"
	"github.com/and161185/journeyvault/internal/media"
	"github.com/and161185/journeyvault/internal/model"
	"github.com/and161185/journeyvault/internal/repository"
	"github.com/and161185/journeyvault/internal/validation"
)

// JourneyView is a journey with its derived state for one viewer.
type JourneyView struct {
	Journey     model.Journey
	State       lock.State
	Role        lock.Role
	MemoryCount int
	Remaining   time.Duration
}

// Collaborator is a share-list entry resolved for display.
type Collaborator struct {
	ID    uuid.UUID
	Email string // empty if the account no longer resolves
}

// CreateJourneyInput holds user input for a new journey.
type CreateJourneyInput struct {
	Name     string    `validate:"required,max=50"`
	UnlockAt time.Time `validate:"required"`
	Emoji    string    `validate:"omitempty,max=8"`
}

// JourneyService administers journeys and serves gallery reads.
type JourneyService interface {
	Create(ctx context.Context, viewer uuid.UUID, in CreateJourneyInput) (*model.Journey, error)
	Get(ctx context.Context, viewer, id uuid.UUID) (*JourneyView, error)
	List(ctx context.Context, viewer uuid.UUID) ([]JourneyView, error)
	Vault(ctx context.Context, viewer uuid.UUID) ([]JourneyView, error)
	Rename(ctx context.Context, viewer, id uuid.UUID, name string) (*model.Journey, error)
	Reschedule(ctx context.Context, viewer, id uuid.UUID, unlockAt time.Time) (*model.Journey, error)
	SetEmoji(ctx context.Context, viewer, id uuid.UUID, emoji string) (*model.Journey, error)
	SetCover(ctx context.Context, viewer, id uuid.UUID, image []byte) (*model.Journey, error)
	ForceUnlock(ctx context.Context, viewer, id uuid.UUID) (*model.Journey, error)
	Invite(ctx context.Context, viewer, id uuid.UUID, email string) (uuid.UUID, error)
	RemoveCollaborator(ctx context.Context, viewer, id, collaborator uuid.UUID) error
	Collaborators(ctx context.Context, viewer, id uuid.UUID) ([]Collaborator, error)
	Delete(ctx context.Context, viewer, id uuid.UUID) error
	Memories(ctx context.Context, viewer, id uuid.UUID) ([]model.Memory, error)
	DeleteMemory(ctx context.Context, viewer, memoryID uuid.UUID) error
	Sweep(ctx context.Context) (int64, error)
}

type JourneyServiceImpl struct {
	journeys repository.JourneyRepository
	memories repository.MemoryRepository
	ids      repository.IdentityRepository
	blobs    blob.Store
	log      *zap.Logger
	now      func() time.Time

	maxImportBytes  int
	maxImportPixels int
}

// NewJourneyService constructs JourneyService. ids may be nil when invitations
// are not supported by the backend.
func NewJourneyService(
	journeys repository.JourneyRepository,
	memories repository.MemoryRepository,
	ids repository.IdentityRepository,
	blobs blob.Store,
	log *zap.Logger,
) *JourneyServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &JourneyServiceImpl{
		journeys: journeys, memories: memories, ids: ids, blobs: blobs,
		log: log, now: time.Now,
	}
}

// WithClock replaces the time source.
func (s *JourneyServiceImpl) WithClock(now func() time.Time) *JourneyServiceImpl {
	s.now = now
	return s
}

// WithImportLimits bounds cover images by encoded bytes and decoded pixels.
// Zero keeps the media package defaults.
func (s *JourneyServiceImpl) WithImportLimits(maxBytes, maxPixels int) *JourneyServiceImpl {
	s.maxImportBytes = maxBytes
	s.maxImportPixels = maxPixels
	return s
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if err := validation.Var("name", name, "required,max=50"); err != nil {
		return "", err
	}
	return name, nil
}

// load fetches a journey and authorizes op for viewer.
func (s *JourneyServiceImpl) load(ctx context.Context, viewer, id uuid.UUID, op lock.Op) (*model.Journey, error) {
	if viewer == uuid.Nil || id == uuid.Nil {
		return nil, errs.Validationf("empty viewer or journey id")
	}
	j, err := s.journeys.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load journey %s: %w", id, err)
	}
	if err := lock.Authorize(j, viewer, op, s.now()); err != nil {
		return nil, err
	}
	return j, nil
}

// Create validates input and stores a new locked journey owned by viewer.
func (s *JourneyServiceImpl) Create(ctx context.Context, viewer uuid.UUID, in CreateJourneyInput) (*model.Journey, error) {
	if viewer == uuid.Nil {
		return nil, errs.Validationf("empty viewer")
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Emoji = strings.TrimSpace(in.Emoji)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	now := s.now()
	if err := lock.ValidateUnlockAt(in.UnlockAt, now); err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	j := &model.Journey{
		ID:         id,
		OwnerID:    viewer,
		Name:       in.Name,
		UnlockAt:   in.UnlockAt.UTC(),
		Status:     model.StatusActive,
		SharedWith: []uuid.UUID{},
		Emoji:      in.Emoji,
		CreatedAt:  now.UTC(),
	}
	if err := s.journeys.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("create journey: %w", err)
	}
	s.log.Info("journey created", zap.String("journey", id.String()), zap.Time("unlock_at", j.UnlockAt))
	return j, nil
}

func (s *JourneyServiceImpl) view(ctx context.Context, j *model.Journey, viewer uuid.UUID, now time.Time) (JourneyView, error) {
	n, err := s.memories.Count(ctx, j.ID)
	if err != nil {
		return JourneyView{}, fmt.Errorf("count memories of %s: %w", j.ID, err)
	}
	return JourneyView{
		Journey:     *j,
		State:       lock.StateAt(j, now),
		Role:        lock.RoleOf(j, viewer),
		MemoryCount: n,
		Remaining:   lock.Remaining(j, now),
	}, nil
}

// Get returns journey metadata and the memory count. Memory content is never
// included, so this is allowed while the journey is sealed.
func (s *JourneyServiceImpl) Get(ctx context.Context, viewer, id uuid.UUID) (*JourneyView, error) {
	j, err := s.load(ctx, viewer, id, lock.OpViewJourney)
	if err != nil {
		return nil, err
	}
	v, err := s.view(ctx, j, viewer, s.now())
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// List returns every journey the viewer owns or collaborates on.
func (s *JourneyServiceImpl) List(ctx context.Context, viewer uuid.UUID) ([]JourneyView, error) {
	if viewer == uuid.Nil {
		return nil, errs.Validationf("empty viewer")
	}
	js, err := s.journeys.ListForViewer(ctx, viewer)
	if err != nil {
		return nil, fmt.Errorf("list journeys: %w", err)
	}
	now := s.now()
	out := make([]JourneyView, len(js))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range js {
		g.Go(func() error {
			v, err := s.view(gctx, &js[i], viewer, now)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Vault returns the viewer's unlocked journeys.
func (s *JourneyServiceImpl) Vault(ctx context.Context, viewer uuid.UUID) ([]JourneyView, error) {
	all, err := s.List(ctx, viewer)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(v JourneyView) bool { return v.State != lock.Unlocked }), nil
}

// maxConflictRetries bounds how often edit re-reads a journey that a
// concurrent writer changed underneath it.
const maxConflictRetries = 3

// errUnchanged lets an edit fn report that nothing needs writing.
var errUnchanged = errors.New("unchanged")

// edit loads and authorizes the journey, applies fn and writes the result
// back conditionally on the version it read. On a version conflict the whole
// cycle repeats against the fresh row, so fn and the lock check always see
// the latest state. fn may run more than once.
func (s *JourneyServiceImpl) edit(ctx context.Context, viewer, id uuid.UUID, op lock.Op, fn func(j *model.Journey) error) (*model.Journey, error) {
	for attempt := 0; ; attempt++ {
		j, err := s.load(ctx, viewer, id, op)
		if err != nil {
			return nil, err
		}
		now := s.now()
		wasUnlocked := lock.StateAt(j, now) == lock.Unlocked
		if err := fn(j); err != nil {
			if errors.Is(err, errUnchanged) {
				return j, nil
			}
			return nil, err
		}
		if wasUnlocked && lock.StateAt(j, now) != lock.Unlocked {
			return nil, fmt.Errorf("%w: %w", errs.ErrAccessDenied, errs.ErrUnlocked)
		}
		err = s.journeys.Update(ctx, j)
		if err == nil {
			return j, nil
		}
		if !errors.Is(err, errs.ErrVersionConflict) || attempt == maxConflictRetries {
			return nil, fmt.Errorf("update journey %s: %w", id, err)
		}
		s.log.Debug("journey changed concurrently, retrying",
			zap.String("journey", id.String()), zap.Int("attempt", attempt+1))
	}
}

// Rename changes the journey name.
func (s *JourneyServiceImpl) Rename(ctx context.Context, viewer, id uuid.UUID, name string) (*model.Journey, error) {
	return s.edit(ctx, viewer, id, lock.OpEdit, func(j *model.Journey) error {
		clean, err := cleanName(name)
		if err != nil {
			return err
		}
		j.Name = clean
		return nil
	})
}

// Reschedule moves the unlock date; it must stay strictly in the future.
func (s *JourneyServiceImpl) Reschedule(ctx context.Context, viewer, id uuid.UUID, unlockAt time.Time) (*model.Journey, error) {
	return s.edit(ctx, viewer, id, lock.OpEdit, func(j *model.Journey) error {
		if err := lock.ValidateUnlockAt(unlockAt, s.now()); err != nil {
			return err
		}
		j.UnlockAt = unlockAt.UTC()
		return nil
	})
}

// SetEmoji sets or clears the journey emoji.
func (s *JourneyServiceImpl) SetEmoji(ctx context.Context, viewer, id uuid.UUID, emoji string) (*model.Journey, error) {
	emoji = strings.TrimSpace(emoji)
	return s.edit(ctx, viewer, id, lock.OpEdit, func(j *model.Journey) error {
		if err := validation.Var("emoji", emoji, "omitempty,max=8"); err != nil {
			return err
		}
		j.Emoji = emoji
		return nil
	})
}

// SetCover validates, compresses and stores a cover image, replacing the old one.
func (s *JourneyServiceImpl) SetCover(ctx context.Context, viewer, id uuid.UUID, image []byte) (*model.Journey, error) {
	if _, err := s.load(ctx, viewer, id, lock.OpEdit); err != nil {
		return nil, err
	}
	imp, err := media.DecodeImport(image, s.maxImportBytes, s.maxImportPixels)
	if err != nil {
		return nil, err
	}
	c, err := media.Compress(imp.Image, media.CompressOptions{})
	if err != nil {
		return nil, err
	}
	path := blob.CoverPath(viewer, id, s.now(), c.Ext)
	if err := s.blobs.Upload(ctx, path, c.Data, c.ContentType); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrUploadFailed, err)
	}
	var old string
	j, err := s.edit(ctx, viewer, id, lock.OpEdit, func(j *model.Journey) error {
		old = j.CoverImage
		j.CoverImage = path
		return nil
	})
	if err != nil {
		return nil, &errs.OrphanError{Path: path, Err: err}
	}
	if old != "" {
		s.removeBlobs(ctx, []string{old})
	}
	return j, nil
}

// ForceUnlock opens a locked journey immediately.
func (s *JourneyServiceImpl) ForceUnlock(ctx context.Context, viewer, id uuid.UUID) (*model.Journey, error) {
	j, err := s.edit(ctx, viewer, id, lock.OpEdit, func(j *model.Journey) error {
		return lock.ForceUnlock(j, s.now())
	})
	if err == nil {
		s.log.Info("journey force-unlocked", zap.String("journey", id.String()))
	}
	return j, err
}

// Invite adds the account registered under email as a collaborator and
// returns its id. Inviting an existing collaborator is a no-op.
func (s *JourneyServiceImpl) Invite(ctx context.Context, viewer, id uuid.UUID, email string) (uuid.UUID, error) {
	if s.ids == nil {
		return uuid.Nil, errors.New("identity lookup is not configured")
	}
	if _, err := s.load(ctx, viewer, id, lock.OpManageCollaborators); err != nil {
		return uuid.Nil, err
	}
	email = strings.TrimSpace(email)
	if err := validation.Var("email", email, "required,email"); err != nil {
		return uuid.Nil, err
	}
	cid, err := s.ids.IDByEmail(ctx, email)
	if err != nil {
		return uuid.Nil, fmt.Errorf("look up %s: %w", email, err)
	}
	added := false
	_, err = s.edit(ctx, viewer, id, lock.OpManageCollaborators, func(j *model.Journey) error {
		added = false
		if cid == j.OwnerID {
			return errs.Validationf("the owner cannot be invited")
		}
		if j.IsCollaborator(cid) {
			return errUnchanged
		}
		j.SharedWith = append(j.SharedWith, cid)
		j.NormalizeShares()
		added = true
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	if added {
		s.log.Info("collaborator added", zap.String("journey", id.String()), zap.String("collaborator", cid.String()))
	}
	return cid, nil
}

// RemoveCollaborator drops a collaborator from the share list.
func (s *JourneyServiceImpl) RemoveCollaborator(ctx context.Context, viewer, id, collaborator uuid.UUID) error {
	_, err := s.edit(ctx, viewer, id, lock.OpManageCollaborators, func(j *model.Journey) error {
		if !j.IsCollaborator(collaborator) {
			return fmt.Errorf("collaborator %s: %w", collaborator, errs.ErrNotFound)
		}
		j.SharedWith = slices.DeleteFunc(j.SharedWith, func(u uuid.UUID) bool { return u == collaborator })
		return nil
	})
	return err
}

// Collaborators resolves the share list to emails for display.
func (s *JourneyServiceImpl) Collaborators(ctx context.Context, viewer, id uuid.UUID) ([]Collaborator, error) {
	j, err := s.load(ctx, viewer, id, lock.OpViewJourney)
	if err != nil {
		return nil, err
	}
	out := make([]Collaborator, 0, len(j.SharedWith))
	for _, cid := range j.SharedWith {
		c := Collaborator{ID: cid}
		if s.ids != nil {
			email, err := s.ids.EmailByID(ctx, cid)
			switch {
			case err == nil:
				c.Email = email
			case !errors.Is(err, errs.ErrNotFound):
				return nil, fmt.Errorf("look up %s: %w", cid, err)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// Delete destroys a journey, its memories, their media and the cover image.
func (s *JourneyServiceImpl) Delete(ctx context.Context, viewer, id uuid.UUID) error {
	j, err := s.load(ctx, viewer, id, lock.OpDelete)
	if err != nil {
		return err
	}
	mems, err := s.memories.ListByJourney(ctx, id)
	if err != nil {
		return fmt.Errorf("list memories of %s: %w", id, err)
	}
	paths := make([]string, 0, len(mems)+1)
	for _, m := range mems {
		if m.HasMedia() {
			paths = append(paths, m.MediaPath)
		}
	}
	if j.CoverImage != "" {
		paths = append(paths, j.CoverImage)
	}
	if err := s.journeys.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete journey %s: %w", id, err)
	}
	s.removeBlobs(ctx, paths)
	s.log.Info("journey deleted", zap.String("journey", id.String()), zap.Int("memories", len(mems)))
	return nil
}

// Memories returns the gallery of an unlocked journey.
func (s *JourneyServiceImpl) Memories(ctx context.Context, viewer, id uuid.UUID) ([]model.Memory, error) {
	if _, err := s.load(ctx, viewer, id, lock.OpViewMemories); err != nil {
		return nil, err
	}
	return s.memories.ListByJourney(ctx, id)
}

// DeleteMemory removes one memory and its media.
func (s *JourneyServiceImpl) DeleteMemory(ctx context.Context, viewer, memoryID uuid.UUID) error {
	if memoryID == uuid.Nil {
		return errs.Validationf("empty memory id")
	}
	m, err := s.memories.Get(ctx, memoryID)
	if err != nil {
		return fmt.Errorf("load memory %s: %w", memoryID, err)
	}
	if _, err := s.load(ctx, viewer, m.JourneyID, lock.OpDeleteMemory); err != nil {
		return err
	}
	if err := s.memories.Delete(ctx, memoryID); err != nil {
		return fmt.Errorf("delete memory %s: %w", memoryID, err)
	}
	if m.HasMedia() {
		s.removeBlobs(ctx, []string{m.MediaPath})
	}
	return nil
}

// Sweep marks every active journey whose unlock date has passed as completed.
func (s *JourneyServiceImpl) Sweep(ctx context.Context) (int64, error) {
	n, err := s.journeys.CompleteDue(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("complete due journeys: %w", err)
	}
	if n > 0 {
		s.log.Info("journeys completed", zap.Int64("count", n))
	}
	return n, nil
}

// removeBlobs deletes media best-effort; leftovers are logged, not surfaced.
func (s *JourneyServiceImpl) removeBlobs(ctx context.Context, paths []string) {
	if len(paths) == 0 || s.blobs == nil {
		return
	}
	if err := s.blobs.Remove(ctx, paths); err != nil {
		s.log.Warn("media cleanup failed", zap.Strings("paths", paths), zap.Error(err))
	}
}
