// Package capture turns camera frames, imports, recordings and notes into
// stored memories.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/and161185/journeyvault/internal/blob"
	"github.com/and161185/journeyvault/internal/device"
	"github.com/and161185/journeyvault/internal/errs"
	"github.com/and161185/journeyvault/internal/filter"
	"github.com/and161185/journeyvault/internal/lock"
	"github.com/and161185/journeyvault/internal/media"
	"github.com/and161185/journeyvault/internal/model"
	"github.com/and161185/journeyvault/internal/repository"
	"github.com/and161185/journeyvault/internal/validation"
)

// DefaultNoteMax is the note length limit in runes.
const DefaultNoteMax = 2000

// Options tune media handling. Zero values take the defaults.
type Options struct {
	Compress        media.CompressOptions
	MaxImportBytes  int
	MaxImportPixels int
	NoteMax         int
}

// Request names the journey a memory goes to and who is capturing it.
type Request struct {
	JourneyID uuid.UUID
	Uploader  uuid.UUID
	// Context is attached as is; nil means no snapshot was ready.
	Context *model.ContextSnapshot
}

// Orchestrator runs the save pipeline for every capture mode.
type Orchestrator struct {
	journeys repository.JourneyRepository
	memories repository.MemoryRepository
	blobs    blob.Store
	opts     Options

	feedback Feedback
	metrics  *Metrics
	tracer   trace.Tracer
	log      *zap.Logger
	now      func() time.Time

	wg sync.WaitGroup
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(journeys repository.JourneyRepository, memories repository.MemoryRepository, blobs blob.Store, opts Options, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxImportBytes <= 0 {
		opts.MaxImportBytes = media.MaxImportBytes
	}
	if opts.MaxImportPixels <= 0 {
		opts.MaxImportPixels = media.MaxImportPixels
	}
	if opts.NoteMax <= 0 {
		opts.NoteMax = DefaultNoteMax
	}
	return &Orchestrator{
		journeys: journeys,
		memories: memories,
		blobs:    blobs,
		opts:     opts,
		tracer:   otel.Tracer("github.com/and161185/journeyvault/internal/capture"),
		log:      log,
		now:      time.Now,
	}
}

// WithFeedback sets the success signal.
func (o *Orchestrator) WithFeedback(f Feedback) *Orchestrator {
	o.feedback = f
	return o
}

// WithMetrics enables prometheus collection.
func (o *Orchestrator) WithMetrics(m *Metrics) *Orchestrator {
	o.metrics = m
	return o
}

// WithClock replaces time.Now for tests.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Wait blocks until pending feedback goroutines return.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// Freeze captures the current camera frame. Frames from the user-facing
// camera are mirrored to match the preview.
func (o *Orchestrator) Freeze(s *device.Session, f filter.Filter) (*PhotoDraft, error) {
	start := time.Now()
	defer o.metrics.step("freeze", start)

	frame, facing, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	var img image.Image = frame
	if facing == device.FacingUser {
		img = media.Mirror(frame)
	}
	return newDraft(img, SourceCamera, f), nil
}

// Import validates and decodes an external still.
func (o *Orchestrator) Import(data []byte) (*PhotoDraft, error) {
	start := time.Now()
	defer o.metrics.step("import", start)

	im, err := media.DecodeImport(data, o.opts.MaxImportBytes, o.opts.MaxImportPixels)
	if err != nil {
		return nil, err
	}
	o.log.Debug("image imported", zap.String("format", im.Format), zap.Int("bytes", im.Size))
	return newDraft(im.Image, SourceImport, filter.None), nil
}

// CapturePhoto freezes the session and saves the frame. The draft is
// returned even when saving fails so the caller can retry FinishPhoto.
func (o *Orchestrator) CapturePhoto(ctx context.Context, req Request, s *device.Session, f filter.Filter) (*PhotoDraft, *model.Memory, error) {
	if err := o.authorize(ctx, req); err != nil {
		o.metrics.save(model.MemoryPhoto, outcome(err))
		return nil, nil, err
	}
	d, err := o.Freeze(s, f)
	if err != nil {
		return nil, nil, err
	}
	m, err := o.FinishPhoto(ctx, req, d)
	return d, m, err
}

// FinishPhoto bakes the filter, compresses, uploads and records the draft.
// The encoded bytes and path are kept on the draft so a retry uploads the
// identical object.
func (o *Orchestrator) FinishPhoto(ctx context.Context, req Request, d *PhotoDraft) (_ *model.Memory, err error) {
	ctx, span := o.tracer.Start(ctx, "capture.FinishPhoto", trace.WithAttributes(
		attribute.String("journey.id", req.JourneyID.String()),
		attribute.String("draft.source", d.Source().String()),
	))
	defer func() { o.finish(span, model.MemoryPhoto, err) }()

	if err := o.authorize(ctx, req); err != nil {
		return nil, err
	}

	a, f := d.cached(req.JourneyID, req.Uploader)
	if a == nil {
		a, err = o.encode(ctx, req, d.Frame(), f)
		if err != nil {
			return nil, err
		}
		d.keep(a)
	} else {
		if blob.Digest(a.data) != a.digest {
			return nil, fmt.Errorf("encoded photo for %s changed since the last attempt", a.path)
		}
		span.AddEvent("reusing encoded asset", trace.WithAttributes(attribute.String("blob.path", a.path)))
	}

	if err := o.upload(ctx, model.MemoryPhoto, a.path, a.data, a.contentType); err != nil {
		return nil, err
	}
	return o.commit(ctx, req, &model.Memory{Type: model.MemoryPhoto, MediaPath: a.path})
}

func (o *Orchestrator) encode(ctx context.Context, req Request, frame image.Image, f filter.Filter) (*asset, error) {
	_, span := o.tracer.Start(ctx, "capture.encode", trace.WithAttributes(attribute.String("filter", f.Name())))
	defer span.End()
	start := time.Now()
	defer o.metrics.step("encode", start)

	c, err := media.Compress(filter.Bake(frame, f), o.opts.Compress)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("encode photo: %w", err)
	}
	span.SetAttributes(
		attribute.Int("image.width", c.Width),
		attribute.Int("image.height", c.Height),
		attribute.Int("image.quality", c.Quality),
	)
	return &asset{
		journey:     req.JourneyID,
		uploader:    req.Uploader,
		filter:      f.Name(),
		data:        c.Data,
		contentType: c.ContentType,
		path:        blob.Path(req.Uploader, req.JourneyID, o.now(), c.Ext),
		digest:      blob.Digest(c.Data),
		width:       c.Width,
		height:      c.Height,
	}, nil
}

// SaveAudio uploads a finished recording and records it. The storage path is
// remembered on the recording so a retry overwrites the same object.
func (o *Orchestrator) SaveAudio(ctx context.Context, req Request, r *Recording) (_ *model.Memory, err error) {
	ctx, span := o.tracer.Start(ctx, "capture.SaveAudio", trace.WithAttributes(
		attribute.String("journey.id", req.JourneyID.String()),
	))
	defer func() { o.finish(span, model.MemoryAudio, err) }()

	if err := o.authorize(ctx, req); err != nil {
		return nil, err
	}
	if r == nil || len(r.Data) == 0 {
		return nil, errs.Validationf("empty recording")
	}
	if r.Duration <= 0 {
		return nil, errs.Validationf("recording has no duration")
	}
	ext := blob.Extension(r.ContentType)
	if ext == "" || !strings.HasPrefix(r.ContentType, "audio/") {
		return nil, errs.Validationf("unsupported audio type %q", r.ContentType)
	}
	if r.path == "" {
		r.path = blob.Path(req.Uploader, req.JourneyID, o.now(), ext)
	}
	span.SetAttributes(attribute.Int64("audio.duration_ms", r.Duration.Milliseconds()))

	if err := o.upload(ctx, model.MemoryAudio, r.path, r.Data, r.ContentType); err != nil {
		return nil, err
	}
	return o.commit(ctx, req, &model.Memory{
		Type:      model.MemoryAudio,
		MediaPath: r.path,
		Duration:  r.Duration,
	})
}

// SaveNote records trimmed text of 1..NoteMax runes.
func (o *Orchestrator) SaveNote(ctx context.Context, req Request, text string) (_ *model.Memory, err error) {
	ctx, span := o.tracer.Start(ctx, "capture.SaveNote", trace.WithAttributes(
		attribute.String("journey.id", req.JourneyID.String()),
	))
	defer func() { o.finish(span, model.MemoryNote, err) }()

	if err := o.authorize(ctx, req); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if err := validation.Var("note", text, "required,max="+strconv.Itoa(o.opts.NoteMax)); err != nil {
		return nil, err
	}
	return o.commit(ctx, req, &model.Memory{Type: model.MemoryNote, Text: text})
}

// authorize loads the journey and checks that the uploader may add memories now.
func (o *Orchestrator) authorize(ctx context.Context, req Request) error {
	if req.JourneyID == uuid.Nil || req.Uploader == uuid.Nil {
		return errs.Validationf("journey and uploader are required")
	}
	j, err := o.journeys.Get(ctx, req.JourneyID)
	if err != nil {
		return fmt.Errorf("load journey %s: %w", req.JourneyID, err)
	}
	return lock.Authorize(j, req.Uploader, lock.OpAddMemory, o.now())
}

func (o *Orchestrator) upload(ctx context.Context, t model.MemoryType, path string, data []byte, contentType string) error {
	ctx, span := o.tracer.Start(ctx, "capture.upload", trace.WithAttributes(
		attribute.String("blob.path", path),
		attribute.Int("blob.bytes", len(data)),
	))
	defer span.End()
	start := time.Now()
	defer o.metrics.step("upload", start)

	if err := o.blobs.Upload(ctx, path, data, contentType); err != nil {
		span.RecordError(err)
		o.log.Warn("upload failed", zap.String("path", path), zap.Int("bytes", len(data)), zap.Error(err))
		return fmt.Errorf("%w: %s: %w", errs.ErrUploadFailed, path, err)
	}
	o.metrics.uploaded(t, len(data))
	return nil
}

// commit re-checks authorization and inserts the row. A blob already stored
// for a rejected save is removed best-effort; a blob whose row could not be
// written is reported as orphaned.
func (o *Orchestrator) commit(ctx context.Context, req Request, m *model.Memory) (*model.Memory, error) {
	start := time.Now()
	defer o.metrics.step("record", start)

	if err := o.authorize(ctx, req); err != nil {
		if m.MediaPath != "" {
			if rmErr := o.blobs.Remove(context.WithoutCancel(ctx), []string{m.MediaPath}); rmErr != nil {
				o.log.Warn("remove rejected blob", zap.String("path", m.MediaPath), zap.Error(rmErr))
			}
		}
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("new memory id: %w", err)
	}
	m.ID = id
	m.JourneyID = req.JourneyID
	m.CreatedBy = req.Uploader
	m.CreatedAt = o.now()
	m.Context = req.Context
	if m.MediaPath != "" {
		m.MediaURL = o.blobs.PublicURL(m.MediaPath)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	if err := o.memories.Create(ctx, m); err != nil {
		if m.MediaPath != "" {
			o.log.Error("memory row not written, blob orphaned",
				zap.String("path", m.MediaPath),
				zap.String("journey", req.JourneyID.String()),
				zap.Error(err),
			)
			return nil, &errs.OrphanError{Path: m.MediaPath, Err: err}
		}
		return nil, fmt.Errorf("%w: %w", errs.ErrRecordCreateFailed, err)
	}

	o.log.Info("memory saved",
		zap.String("id", m.ID.String()),
		zap.String("journey", m.JourneyID.String()),
		zap.String("type", string(m.Type)),
	)
	o.celebrate(m.Type)
	return m, nil
}

func (o *Orchestrator) finish(span trace.Span, t model.MemoryType, err error) {
	o.metrics.save(t, outcome(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSaved
	case errors.Is(err, errs.ErrValidation):
		return OutcomeInvalid
	case errors.Is(err, errs.ErrUploadFailed):
		return OutcomeUploadFailed
	case errors.Is(err, errs.ErrRecordCreateFailed):
		return OutcomeRecordFailed
	default:
		return OutcomeDenied
	}
}
