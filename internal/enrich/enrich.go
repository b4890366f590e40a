// Package enrich acquires best-effort location and weather context for
// memories without ever delaying a capture.
package enrich

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/journeyvault/internal/model"
)

// Position is a device location fix.
type Position struct {
	Lat, Lon float64
	Accuracy float64 // meters, 0 if unknown
}

// Weather is a current-conditions reading.
type Weather struct {
	Code       int
	Descriptor string
	TempC      float64
}

// Locator provides the device position.
type Locator interface {
	Locate(ctx context.Context) (Position, error)
}

// Geocoder resolves a position to a human-readable place name.
type Geocoder interface {
	PlaceName(ctx context.Context, p Position) (string, error)
}

// WeatherSource reports current conditions at a position.
type WeatherSource interface {
	Current(ctx context.Context, p Position) (Weather, error)
}

// ErrDisabled is returned by locators when location access is turned off.
var ErrDisabled = errors.New("location disabled")

// FixedLocator returns a configured position.
type FixedLocator struct{ Position Position }

func (f FixedLocator) Locate(context.Context) (Position, error) { return f.Position, nil }

// DisabledLocator never yields a position.
type DisabledLocator struct{}

func (DisabledLocator) Locate(context.Context) (Position, error) { return Position{}, ErrDisabled }

// DefaultTimeout bounds a whole prefetch.
const DefaultTimeout = 15 * time.Second

// Enricher builds context snapshots. Geocoder and Weather are optional.
type Enricher struct {
	locator  Locator
	geocoder Geocoder
	weather  WeatherSource
	log      *zap.Logger
	timeout  time.Duration
	now      func() time.Time
}

// New constructs an Enricher.
func New(locator Locator, geocoder Geocoder, weather WeatherSource, log *zap.Logger) *Enricher {
	if log == nil {
		log = zap.NewNop()
	}
	if locator == nil {
		locator = DisabledLocator{}
	}
	return &Enricher{
		locator:  locator,
		geocoder: geocoder,
		weather:  weather,
		log:      log,
		timeout:  DefaultTimeout,
		now:      time.Now,
	}
}

// Collect resolves a snapshot synchronously. Place name and weather are
// fetched in parallel and are individually optional; a location failure
// yields an error.
func (e *Enricher) Collect(ctx context.Context) (*model.ContextSnapshot, error) {
	pos, err := e.locator.Locate(ctx)
	if err != nil {
		return nil, err
	}
	snap := &model.ContextSnapshot{Lat: pos.Lat, Lon: pos.Lon}

	g, gctx := errgroup.WithContext(ctx)
	if e.geocoder != nil {
		g.Go(func() error {
			name, err := e.geocoder.PlaceName(gctx, pos)
			if err != nil {
				e.log.Debug("reverse geocode failed", zap.Error(err))
				return nil
			}
			snap.PlaceName = name
			return nil
		})
	}
	if e.weather != nil {
		g.Go(func() error {
			w, err := e.weather.Current(gctx, pos)
			if err != nil {
				e.log.Debug("weather failed", zap.Error(err))
				return nil
			}
			snap.Weather = w.Descriptor
			t := w.TempC
			snap.TempC = &t
			return nil
		})
	}
	_ = g.Wait()
	snap.CollectedAt = e.now()
	return snap, nil
}

// Prefetch starts collecting in the background and returns immediately.
func (e *Enricher) Prefetch(ctx context.Context) *Pending {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	p := &Pending{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer cancel()
		defer close(p.done)
		snap, err := e.Collect(ctx)
		if err != nil {
			e.log.Debug("context snapshot unavailable", zap.Error(err))
			return
		}
		p.mu.Lock()
		p.snap = snap
		p.mu.Unlock()
	}()
	return p
}

// Pending is an in-flight snapshot.
type Pending struct {
	mu     sync.Mutex
	snap   *model.ContextSnapshot
	done   chan struct{}
	cancel context.CancelFunc
}

// Snapshot returns the snapshot if it has already resolved. It never blocks.
func (p *Pending) Snapshot() *model.ContextSnapshot {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.snap == nil {
		return nil
	}
	cp := *p.snap
	return &cp
}

// Done is closed once collection finished, successfully or not.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Cancel abandons collection.
func (p *Pending) Cancel() {
	if p != nil {
		p.cancel()
	}
}
