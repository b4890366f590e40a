package device

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/and161185/journeyvault/internal/errs"
)

// Phase is the lifecycle position of a Session.
type Phase int

const (
	PhaseClosed Phase = iota
	PhaseOpening
	PhaseLive
)

func (p Phase) String() string {
	switch p {
	case PhaseOpening:
		return "opening"
	case PhaseLive:
		return "live"
	default:
		return "closed"
	}
}

// Capabilities are reported by a successful Open.
type Capabilities struct {
	Facing  Facing
	CanZoom bool
	Zoom    ZoomRange
	// Handle identifies the stream this Open produced; see Release.
	Handle uint64
}

const enumerateTimeout = 2 * time.Second

type pendingOpen struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Session holds at most one live camera handle. It is owned by a single
// capture screen; no other component may touch the handle.
type Session struct {
	driver Driver
	log    *zap.Logger

	mu      sync.Mutex
	phase   Phase
	stream  Stream
	caps    Capabilities
	zoom    float64
	pending *pendingOpen
	handles uint64
}

// NewSession constructs a closed session over driver.
func NewSession(driver Driver, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{driver: driver, log: log, zoom: 1}
}

// Open acquires a stream for facing, releasing any current handle first.
// A pending Open is cancelled and awaited before the new one starts.
func (s *Session) Open(ctx context.Context, facing Facing) (Capabilities, error) {
	s.mu.Lock()
	s.awaitPendingLocked()
	s.releaseLocked()

	octx, cancel := context.WithCancel(ctx)
	p := &pendingOpen{cancel: cancel, done: make(chan struct{})}
	s.pending = p
	s.phase = PhaseOpening
	s.mu.Unlock()

	stream, err := s.driver.Open(octx, Constraints{Facing: facing, Width: PreferredWidth, Height: PreferredHeight})

	s.mu.Lock()
	defer s.mu.Unlock()
	defer close(p.done)
	defer cancel()

	s.pending = nil
	if err == nil && octx.Err() != nil {
		stream.Stop()
		err = octx.Err()
	}
	if err != nil {
		s.phase = PhaseClosed
		if ctxErr := octx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return Capabilities{}, fmt.Errorf("open %s camera: %w", facing, err)
		}
		return Capabilities{}, classify(facing, err)
	}

	s.handles++
	s.stream = stream
	s.phase = PhaseLive
	s.caps = Capabilities{Facing: facing, Handle: s.handles}
	if zr, ok := stream.Zoom(); ok && zr.Max > zr.Min {
		s.caps.CanZoom = true
		s.caps.Zoom = zr
	}
	s.zoom = 1
	if s.caps.CanZoom {
		s.zoom = s.caps.Zoom.Clamp(1)
	}
	s.log.Debug("camera open",
		zap.Stringer("facing", facing),
		zap.Bool("zoom", s.caps.CanZoom),
	)
	return s.caps, nil
}

// awaitPendingLocked cancels and waits for an in-flight Open. The caller holds s.mu.
func (s *Session) awaitPendingLocked() {
	for s.pending != nil {
		p := s.pending
		p.cancel()
		s.mu.Unlock()
		<-p.done
		s.mu.Lock()
	}
}

// releaseLocked stops the current stream. The caller holds s.mu.
func (s *Session) releaseLocked() {
	if s.stream != nil {
		s.stream.Stop()
		s.stream = nil
		s.log.Debug("camera released", zap.Stringer("facing", s.caps.Facing))
	}
	s.phase = PhaseClosed
	s.zoom = 1
}

// Close releases the handle. It cancels an in-flight Open and is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.awaitPendingLocked()
	s.releaseLocked()
}

// Release stops the stream only if it is still the one identified by handle.
// A newer Open, pending or live, is left alone.
func (s *Session) Release(handle uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil || s.caps.Handle != handle {
		return
	}
	s.releaseLocked()
}

// Scope opens the session, runs fn and closes the session on every exit path.
func (s *Session) Scope(ctx context.Context, facing Facing, fn func(Capabilities) error) error {
	caps, err := s.Open(ctx, facing)
	defer s.Close()
	if err != nil {
		return err
	}
	return fn(caps)
}

// SwitchFacing releases the current handle and opens the opposite direction
// in one step, so a concurrent Close always sees the new Open as pending.
// Zoom is reset to 1x within the new device's envelope.
func (s *Session) SwitchFacing(ctx context.Context) (Capabilities, error) {
	s.mu.Lock()
	next := s.caps.Facing.Opposite()
	s.mu.Unlock()

	return s.Open(ctx, next)
}

// Phase reports the lifecycle position.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Capabilities reports what the open device supports.
func (s *Session) Capabilities() Capabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps
}

// Zoom returns the current zoom level.
func (s *Session) Zoom() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}

// SetZoom clamps level into the envelope and applies it. It is a no-op when
// the device has no zoom; driver failures are logged and swallowed.
func (s *Session) SetZoom(level float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseLive || !s.caps.CanZoom {
		return
	}
	s.zoom = s.caps.Zoom.Clamp(level)
	if err := s.stream.ApplyZoom(s.zoom); err != nil {
		s.log.Debug("zoom ignored", zap.Float64("level", s.zoom), zap.Error(err))
	}
}

// Snapshot freezes the current frame into an independent buffer.
func (s *Session) Snapshot() (*image.RGBA, Facing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseLive {
		return nil, 0, fmt.Errorf("%w: camera is %s", errs.ErrDeviceNotReady, s.phase)
	}
	frame, err := s.stream.Frame()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", errs.ErrDeviceNotReady, err)
	}
	b := frame.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), frame, b.Min, draw.Src)
	return out, s.caps.Facing, nil
}

// Devices enumerates cameras best-effort. Errors and slow drivers yield an
// empty list; the session lock is not held.
func (s *Session) Devices(ctx context.Context) []Info {
	ctx, cancel := context.WithTimeout(ctx, enumerateTimeout)
	defer cancel()
	list, err := s.driver.Devices(ctx)
	if err != nil {
		s.log.Debug("device enumeration failed", zap.Error(err))
		return nil
	}
	return list
}

// CanSwitch reports whether both facing directions are available.
func (s *Session) CanSwitch(ctx context.Context) bool {
	var user, env bool
	for _, d := range s.Devices(ctx) {
		switch d.Facing {
		case FacingUser:
			user = true
		case FacingEnvironment:
			env = true
		}
	}
	return user && env
}

// classify maps driver errors onto the device taxonomy.
func classify(facing Facing, err error) error {
	switch {
	case errors.Is(err, errs.ErrPermissionDenied),
		errors.Is(err, errs.ErrDeviceNotFound),
		errors.Is(err, errs.ErrDeviceUnavailable):
		return fmt.Errorf("open %s camera: %w", facing, err)
	default:
		return fmt.Errorf("open %s camera: %w: %v", facing, errs.ErrDeviceUnavailable, err)
	}
}
