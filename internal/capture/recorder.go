package capture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/and161185/journeyvault/internal/blob"
	"github.com/and161185/journeyvault/internal/errs"
)

// Recording is a finished audio clip.
type Recording struct {
	Data        []byte
	ContentType string
	Duration    time.Duration

	// set once uploaded so a retry reuses the same object
	path string
}

// Path is the storage path of an uploaded recording, or "".
func (r *Recording) Path() string { return r.path }

// Recorder captures audio between Start and Stop.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() (*Recording, error)
}

// FileRecorder plays back an existing audio file as if it were recorded.
// Duration, when zero, is the wall time between Start and Stop.
type FileRecorder struct {
	Path     string
	Duration time.Duration

	mu      sync.Mutex
	started time.Time
	now     func() time.Time
}

var _ Recorder = (*FileRecorder)(nil)

func (f *FileRecorder) clock() time.Time {
	if f.now != nil {
		return f.now()
	}
	return time.Now()
}

// Start checks that the source file is readable.
func (f *FileRecorder) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started.IsZero() {
		return fmt.Errorf("%w: already recording", errs.ErrDeviceUnavailable)
	}
	if _, err := os.Stat(f.Path); err != nil {
		return deviceErr(err)
	}
	f.started = f.clock()
	return nil
}

// Stop returns the file contents as a recording.
func (f *FileRecorder) Stop() (*Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started.IsZero() {
		return nil, fmt.Errorf("%w: recorder not started", errs.ErrDeviceNotReady)
	}
	started := f.started
	f.started = time.Time{}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, deviceErr(err)
	}
	d := f.Duration
	if d <= 0 {
		d = f.clock().Sub(started)
	}
	return &Recording{
		Data:        data,
		ContentType: blob.ContentType(filepath.Ext(f.Path)),
		Duration:    d,
	}, nil
}

func deviceErr(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", errs.ErrDeviceNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", errs.ErrPermissionDenied, err)
	default:
		return fmt.Errorf("%w: %v", errs.ErrDeviceUnavailable, err)
	}
}
