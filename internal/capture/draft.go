package capture

import (
	"image"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/journeyvault/internal/filter"
)

// Source tells where a draft's frame came from.
type Source int

const (
	SourceCamera Source = iota
	SourceImport
)

func (s Source) String() string {
	if s == SourceImport {
		return "import"
	}
	return "camera"
}

// asset is the encoded upload produced by FinishPhoto.
type asset struct {
	journey  uuid.UUID
	uploader uuid.UUID
	filter   string

	data        []byte
	contentType string
	path        string
	digest      string
	width       int
	height      int
}

// PhotoDraft is a frozen or imported still awaiting save. The frame is kept
// unfiltered; the selected filter is baked in only when the photo is finished.
type PhotoDraft struct {
	mu     sync.Mutex
	frame  image.Image
	source Source
	filter filter.Filter
	asset  *asset
}

func newDraft(frame image.Image, src Source, f filter.Filter) *PhotoDraft {
	return &PhotoDraft{frame: frame, source: src, filter: f}
}

// Source reports where the frame came from.
func (d *PhotoDraft) Source() Source { return d.source }

// Frame returns the unfiltered still.
func (d *PhotoDraft) Frame() image.Image { return d.frame }

// Filter returns the selected filter.
func (d *PhotoDraft) Filter() filter.Filter {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filter
}

// SetFilter selects the filter baked in on save. Changing it drops any
// encoded asset, so the next save uploads a fresh object.
func (d *PhotoDraft) SetFilter(f filter.Filter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.filter.Name() == f.Name() {
		return
	}
	d.filter = f
	d.asset = nil
}

// Preview renders the frame with f without changing the selection.
func (d *PhotoDraft) Preview(f filter.Filter) image.Image {
	return filter.Bake(d.frame, f)
}

// Path is the storage path of the encoded asset, or "" before the first save attempt.
func (d *PhotoDraft) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.asset == nil {
		return ""
	}
	return d.asset.path
}

// Digest is the checksum of the encoded asset, or "".
func (d *PhotoDraft) Digest() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.asset == nil {
		return ""
	}
	return d.asset.digest
}

// cached returns the encoded asset if it was built for the same target and filter.
func (d *PhotoDraft) cached(journey, uploader uuid.UUID) (*asset, filter.Filter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a := d.asset
	if a != nil && (a.journey != journey || a.uploader != uploader || a.filter != d.filter.Name()) {
		a = nil
	}
	return a, d.filter
}

func (d *PhotoDraft) keep(a *asset) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a.filter == d.filter.Name() {
		d.asset = a
	}
}
