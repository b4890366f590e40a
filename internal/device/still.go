package device

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"sync"

	"golang.org/x/image/draw"

	"github.com/and161185/journeyvault/internal/errs"
)

// StillDriver is a virtual camera that serves a still image file per facing
// direction. Zoom is emulated by cropping the frame center.
type StillDriver struct {
	Files map[Facing]string
	Zoom  ZoomRange // zero value disables zoom
}

// Open decodes the file configured for c.Facing.
func (d *StillDriver) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, ok := d.Files[c.Facing]
	if !ok || path == "" {
		return nil, fmt.Errorf("%w: no %s camera configured", errs.ErrDeviceNotFound, c.Facing)
	}
	f, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrPermission):
		return nil, fmt.Errorf("%w: %v", errs.ErrPermissionDenied, err)
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %v", errs.ErrDeviceNotFound, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", errs.ErrDeviceUnavailable, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", errs.ErrDeviceUnavailable, path, err)
	}
	return &stillStream{src: img, zoomRange: d.Zoom, level: 1}, nil
}

// Devices lists one device per configured facing.
func (d *StillDriver) Devices(context.Context) ([]Info, error) {
	out := make([]Info, 0, len(d.Files))
	for _, facing := range []Facing{FacingEnvironment, FacingUser} {
		if p := d.Files[facing]; p != "" {
			out = append(out, Info{ID: p, Label: "file:" + p, Facing: facing})
		}
	}
	return out, nil
}

type stillStream struct {
	mu        sync.Mutex
	src       image.Image
	zoomRange ZoomRange
	level     float64
	stopped   bool
}

func (s *stillStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, errors.New("stream stopped")
	}
	if s.level <= 1 {
		return s.src, nil
	}
	b := s.src.Bounds()
	w := int(float64(b.Dx()) / s.level)
	h := int(float64(b.Dy()) / s.level)
	crop := image.Rect(0, 0, w, h).Add(b.Min).Add(image.Pt((b.Dx()-w)/2, (b.Dy()-h)/2))
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.ApproxBiLinear.Scale(out, out.Bounds(), s.src, crop, draw.Src, nil)
	return out, nil
}

func (s *stillStream) Zoom() (ZoomRange, bool) {
	return s.zoomRange, s.zoomRange.Max > s.zoomRange.Min
}

func (s *stillStream) ApplyZoom(level float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return errors.New("stream stopped")
	}
	s.level = level
	return nil
}

func (s *stillStream) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}
