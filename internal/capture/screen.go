package capture

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/journeyvault/internal/device"
	"github.com/and161185/journeyvault/internal/enrich"
	"github.com/and161185/journeyvault/internal/errs"
	"github.com/and161185/journeyvault/internal/filter"
	"github.com/and161185/journeyvault/internal/gesture"
	"github.com/and161185/journeyvault/internal/model"
)

// Result is the outcome of an asynchronous save.
type Result struct {
	Memory *model.Memory
	Err    error
	// Applied is false when the screen was unmounted or switched mode
	// before the save finished; its state was then left untouched.
	Applied bool
}

// Screen is the capture surface for one journey. It owns the camera
// session exclusively and serializes every user trigger.
type Screen struct {
	orch     *Orchestrator
	session  *device.Session
	recorder Recorder
	enricher *enrich.Enricher
	journey  uuid.UUID
	uploader uuid.UUID
	pinch    *gesture.Pinch
	log      *zap.Logger

	mu        sync.Mutex
	mounted   bool
	gen       uint64
	mode      Mode
	phase     Phase
	facing    device.Facing
	filter    filter.Filter
	draft     *PhotoDraft
	clip      *Recording
	recording bool
	pending   *enrich.Pending

	// Test seams around camera calls made without s.mu.
	afterOpen    func()
	beforeSwitch func()
}

// NewScreen constructs an unmounted screen. recorder and enricher may be nil.
func NewScreen(orch *Orchestrator, session *device.Session, recorder Recorder, enricher *enrich.Enricher, journey, uploader uuid.UUID, log *zap.Logger) *Screen {
	if log == nil {
		log = zap.NewNop()
	}
	return &Screen{
		orch:     orch,
		session:  session,
		recorder: recorder,
		enricher: enricher,
		journey:  journey,
		uploader: uploader,
		pinch:    gesture.NewPinch(session),
		log:      log.With(zap.String("journey", journey.String())),
		facing:   device.FacingEnvironment,
		filter:   filter.None,
	}
}

// WithFacing selects the camera opened by Mount.
func (s *Screen) WithFacing(f device.Facing) *Screen {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facing = f
	return s
}

// Mount activates the screen in mode and starts context prefetch. A camera
// failure leaves the screen mounted in idle so an import is still possible.
func (s *Screen) Mount(ctx context.Context, mode Mode) error {
	s.mu.Lock()
	if s.mounted {
		s.mu.Unlock()
		return fmt.Errorf("%w: already mounted", ErrInvalidTransition)
	}
	s.mounted = true
	s.gen++
	s.mode = mode
	s.phase = PhaseIdle
	if s.enricher != nil {
		s.pending = s.enricher.Prefetch(ctx)
	}
	s.mu.Unlock()

	return s.enter(ctx)
}

// Unmount releases the camera before returning. In-flight saves continue
// but their results are no longer applied.
func (s *Screen) Unmount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return
	}
	s.mounted = false
	s.gen++
	s.stopRecordingLocked()
	s.reset()
	s.pending.Cancel()
	s.pending = nil
	s.session.Close()
}

// SetMode switches capture mode. Leaving photo mode releases the camera
// before the new mode is entered.
func (s *Screen) SetMode(ctx context.Context, mode Mode) error {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return fmt.Errorf("%w: screen not mounted", ErrInvalidTransition)
	}
	if s.mode == mode {
		s.mu.Unlock()
		return nil
	}
	prev := s.mode
	s.gen++
	s.mode = mode
	s.stopRecordingLocked()
	s.reset()
	if prev == ModePhoto {
		s.session.Close()
	}
	s.mu.Unlock()

	s.log.Debug("capture mode", zap.Stringer("from", prev), zap.Stringer("to", mode))
	return s.enter(ctx)
}

// reset drops per-mode state. The caller holds s.mu.
func (s *Screen) reset() {
	s.phase = PhaseIdle
	s.draft = nil
	s.clip = nil
	s.pinch.Reset()
}

func (s *Screen) enter(ctx context.Context) error {
	s.mu.Lock()
	mode, gen, facing := s.mode, s.gen, s.facing
	next, err := Next(mode, s.phase, EventOpen)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.phase = next
	if mode != ModePhoto {
		s.phase, _ = Next(mode, s.phase, EventOpened)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	caps, err := s.session.Open(ctx, facing)
	if s.afterOpen != nil {
		s.afterOpen()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		// left photo mode while the camera was opening; a newer Open may own the session now
		if err == nil {
			s.session.Release(caps.Handle)
		}
		return nil
	}
	if err != nil {
		s.phase, _ = Next(mode, s.phase, EventOpenFailed)
		s.log.Info("camera unavailable", zap.Error(err))
		return err
	}
	s.facing = caps.Facing
	s.phase, _ = Next(mode, s.phase, EventOpened)
	return nil
}

// Reopen retries the camera after it failed to open.
func (s *Screen) Reopen(ctx context.Context) error {
	s.mu.Lock()
	if !s.mounted || s.mode != ModePhoto || s.phase != PhaseIdle {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.enter(ctx)
}

// Mode returns the current mode.
func (s *Screen) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Phase returns the current phase.
func (s *Screen) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Mounted reports whether the screen is active.
func (s *Screen) Mounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted
}

// Context returns the prefetched snapshot if it has resolved.
func (s *Screen) Context() *model.ContextSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Snapshot()
}

// AwaitContext blocks until the prefetched snapshot resolves or ctx ends,
// then returns what is available.
func (s *Screen) AwaitContext(ctx context.Context) *model.ContextSnapshot {
	s.mu.Lock()
	p := s.pending
	s.mu.Unlock()
	if p == nil {
		return nil
	}
	select {
	case <-p.Done():
	case <-ctx.Done():
	}
	return p.Snapshot()
}

// SwitchFacing reopens the camera on the opposite side.
func (s *Screen) SwitchFacing(ctx context.Context) error {
	s.mu.Lock()
	if s.mode != ModePhoto || s.phase != PhaseReady {
		defer s.mu.Unlock()
		return s.notReady("switch camera")
	}
	gen := s.gen
	s.phase = PhaseOpening
	s.pinch.Reset()
	s.mu.Unlock()

	if s.beforeSwitch != nil {
		s.beforeSwitch()
	}
	caps, err := s.session.SwitchFacing(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		if err == nil && (!s.mounted || s.mode != ModePhoto) {
			s.session.Release(caps.Handle)
		}
		return nil
	}
	if err != nil {
		s.phase, _ = Next(s.mode, s.phase, EventOpenFailed)
		return err
	}
	s.facing = caps.Facing
	s.phase, _ = Next(s.mode, s.phase, EventOpened)
	return nil
}

// SetFilter selects the filter for the live preview and any pending draft.
func (s *Screen) SetFilter(f filter.Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = f
	if s.draft != nil {
		s.draft.SetFilter(f)
	}
}

// Pinch forwards touch contacts to the zoom gesture while the camera is live.
func (s *Screen) Pinch(points []gesture.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModePhoto || s.phase != PhaseReady {
		s.pinch.Reset()
		return
	}
	s.pinch.Update(points)
}

// Freeze captures the current frame into a draft.
func (s *Screen) Freeze() (*PhotoDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModePhoto {
		return nil, s.notReady("freeze")
	}
	next, err := Next(s.mode, s.phase, EventCapture)
	if err != nil {
		return nil, err
	}
	d, err := s.orch.Freeze(s.session, s.filter)
	if err != nil {
		return nil, err
	}
	s.draft = d
	s.phase = next
	s.pinch.Reset()
	return d, nil
}

// Import loads an external still into a draft. It works without a camera.
func (s *Screen) Import(data []byte) (*PhotoDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := Next(s.mode, s.phase, EventImport)
	if err != nil {
		return nil, err
	}
	d, err := s.orch.Import(data)
	if err != nil {
		return nil, err
	}
	d.SetFilter(s.filter)
	s.draft = d
	s.phase = next
	return d, nil
}

// Preview renders the pending draft with the selected filter.
func (s *Screen) Preview() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return nil
	}
	return s.draft.Preview(s.filter)
}

// StartRecording begins an audio clip.
func (s *Screen) StartRecording(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeAudio || s.phase != PhaseReady || s.recording {
		return s.notReady("record")
	}
	if s.recorder == nil {
		return fmt.Errorf("%w: no microphone", errs.ErrDeviceNotFound)
	}
	if err := s.recorder.Start(ctx); err != nil {
		return err
	}
	s.recording = true
	return nil
}

// StopRecording ends the clip and holds it for preview.
func (s *Screen) StopRecording() (*Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeAudio || !s.recording {
		return nil, s.notReady("stop recording")
	}
	next, err := Next(s.mode, s.phase, EventCapture)
	if err != nil {
		return nil, err
	}
	s.recording = false
	r, err := s.recorder.Stop()
	if err != nil {
		return nil, err
	}
	s.clip = r
	s.phase = next
	return r, nil
}

// stopRecordingLocked abandons an unfinished clip. The caller holds s.mu.
func (s *Screen) stopRecordingLocked() {
	if !s.recording {
		return
	}
	s.recording = false
	if _, err := s.recorder.Stop(); err != nil {
		s.log.Debug("abandon recording", zap.Error(err))
	}
}

// Discard drops the pending draft or clip.
func (s *Screen) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := Next(s.mode, s.phase, EventDiscard)
	if err != nil {
		return err
	}
	s.draft = nil
	s.clip = nil
	s.phase = s.settledPhase(next)
	return nil
}

// settledPhase maps ready to idle in photo mode when no camera is live,
// which is the case after an import without camera access.
func (s *Screen) settledPhase(p Phase) Phase {
	if s.mode == ModePhoto && p == PhaseReady && s.session.Phase() != device.PhaseLive {
		return PhaseIdle
	}
	return p
}

// Save starts persisting the pending draft, clip or note text. It returns
// at once; the result arrives on the channel, which is closed afterwards.
// Triggers while a save is in flight fail with ErrBusy.
func (s *Screen) Save(ctx context.Context, text string) (<-chan Result, error) {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: screen not mounted", ErrInvalidTransition)
	}
	next, err := Next(s.mode, s.phase, EventSave)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	mode, gen := s.mode, s.gen
	draft, clip := s.draft, s.clip
	req := Request{JourneyID: s.journey, Uploader: s.uploader, Context: s.pending.Snapshot()}
	s.phase = next
	s.mu.Unlock()

	out := make(chan Result, 1)
	go func() {
		defer close(out)
		var (
			m   *model.Memory
			err error
		)
		switch mode {
		case ModePhoto:
			m, err = s.orch.FinishPhoto(ctx, req, draft)
		case ModeAudio:
			m, err = s.orch.SaveAudio(ctx, req, clip)
		case ModeNote:
			m, err = s.orch.SaveNote(ctx, req, text)
		}
		out <- Result{Memory: m, Err: err, Applied: s.settle(gen, err)}
	}()
	return out, nil
}

func (s *Screen) settle(gen uint64, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted || s.gen != gen {
		s.log.Debug("save finished after screen changed", zap.Error(err))
		return false
	}
	ev := EventSaved
	if err != nil {
		ev = EventSaveFailed
	}
	next, nerr := Next(s.mode, s.phase, ev)
	if nerr != nil {
		s.log.Warn("unexpected save transition", zap.Error(nerr))
		return false
	}
	if err == nil {
		s.draft = nil
		s.clip = nil
	}
	s.phase = s.settledPhase(next)
	return true
}

func (s *Screen) notReady(action string) error {
	if s.phase == PhaseSaving {
		return fmt.Errorf("%w: %s while saving", ErrBusy, action)
	}
	return fmt.Errorf("%w: cannot %s while %s in %s mode", errs.ErrDeviceNotReady, action, s.phase, s.mode)
}
