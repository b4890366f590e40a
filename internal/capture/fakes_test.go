package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/journeyvault/internal/errs"
	"github.com/and161185/journeyvault/internal/model"
	"github.com/and161185/journeyvault/internal/repository"
)

var errBoom = errors.New("boom")

type fakeJourneys struct {
	mu   sync.Mutex
	rows map[uuid.UUID]model.Journey
	// getHook runs before every Get; tests use it to change the journey
	// between the two authorization checks.
	getHook func(calls int)
	calls   int
}

var _ repository.JourneyRepository = (*fakeJourneys)(nil)

func newFakeJourneys(js ...model.Journey) *fakeJourneys {
	f := &fakeJourneys{rows: map[uuid.UUID]model.Journey{}}
	for _, j := range js {
		f.rows[j.ID] = j
	}
	return f
}

func (f *fakeJourneys) Create(_ context.Context, j *model.Journey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[j.ID] = *j
	return nil
}

func (f *fakeJourneys) Get(_ context.Context, id uuid.UUID) (*model.Journey, error) {
	f.mu.Lock()
	f.calls++
	hook, calls := f.getHook, f.calls
	f.mu.Unlock()
	if hook != nil {
		hook(calls)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.rows[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	j.SharedWith = append([]uuid.UUID{}, j.SharedWith...)
	return &j, nil
}

func (f *fakeJourneys) ListForViewer(context.Context, uuid.UUID) ([]model.Journey, error) {
	return nil, nil
}

func (f *fakeJourneys) Update(_ context.Context, j *model.Journey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[j.ID] = *j
	return nil
}

func (f *fakeJourneys) Delete(context.Context, uuid.UUID) error { return nil }

func (f *fakeJourneys) CompleteDue(context.Context, time.Time) (int64, error) { return 0, nil }

type fakeMemories struct {
	mu        sync.Mutex
	rows      []model.Memory
	createErr error
}

var _ repository.MemoryRepository = (*fakeMemories)(nil)

func (f *fakeMemories) Create(_ context.Context, m *model.Memory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.rows = append(f.rows, *m)
	return nil
}

func (f *fakeMemories) Get(_ context.Context, id uuid.UUID) (*model.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.rows {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeMemories) ListByJourney(_ context.Context, jid uuid.UUID) ([]model.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Memory
	for _, m := range f.rows {
		if m.JourneyID == jid {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMemories) Count(ctx context.Context, jid uuid.UUID) (int, error) {
	ms, _ := f.ListByJourney(ctx, jid)
	return len(ms), nil
}

func (f *fakeMemories) Delete(context.Context, uuid.UUID) error { return nil }

func (f *fakeMemories) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type upload struct {
	path string
	data []byte
	ct   string
}

type fakeBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploads   []upload
	removed   []string
	uploadErr error
	// gate, when set, holds every upload until it is closed
	gate chan struct{}
}

func newFakeBlobs() *fakeBlobs { return &fakeBlobs{objects: map[string][]byte{}} }

func (f *fakeBlobs) Upload(_ context.Context, path string, data []byte, ct string) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, upload{path: path, data: append([]byte(nil), data...), ct: ct})
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
	f.removed = append(f.removed, paths...)
	for _, p := range paths {
		delete(f.objects, p)
	}
	return nil
}

func (f *fakeBlobs) attempts() []upload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]upload(nil), f.uploads...)
}

// gradient is a colourful frame, so colour filters visibly change it.
func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: uint8((x + y) * 127 / max(w+h-2, 1)),
				A: 255,
			})
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// writePNG stores img in a temp dir and returns the path.
func writePNG(t *testing.T, name string, img image.Image) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, pngBytes(t, img), 0o600))
	return p
}
