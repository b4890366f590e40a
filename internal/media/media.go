// Package media prepares captured stills for upload: mirroring, import
// validation and size-bounded JPEG compression.
package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/and161185/journeyvault/internal/errs"
)

// MaxImportBytes is the byte ceiling for imported images.
const MaxImportBytes = 10 << 20

// MaxImportPixels is the decoded size ceiling (width*height) for imported images.
const MaxImportPixels = 50_000_000

// Accepted import formats, keyed by sniffed content type.
var importFormats = map[string]string{
	"image/jpeg": "jpeg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Mirror returns a horizontally flipped copy of src.
func Mirror(src image.Image) *image.RGBA {
	b := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), src, b.Min, draw.Src)
	w := b.Dx()
	for y := 0; y < b.Dy(); y++ {
		row := out.Pix[y*out.Stride : y*out.Stride+w*4]
		for l, r := 0, w-1; l < r; l, r = l+1, r-1 {
			li, ri := l*4, r*4
			for k := 0; k < 4; k++ {
				row[li+k], row[ri+k] = row[ri+k], row[li+k]
			}
		}
	}
	return out
}

// Import is a decoded, validated external image.
type Import struct {
	Image       image.Image
	Format      string
	ContentType string
	Size        int
}

// DecodeImport validates and decodes an externally supplied still. The
// header is checked against maxPixels before any pixel data is decoded.
// maxBytes <= 0 uses MaxImportBytes; maxPixels <= 0 uses MaxImportPixels.
func DecodeImport(data []byte, maxBytes, maxPixels int) (*Import, error) {
	if maxBytes <= 0 {
		maxBytes = MaxImportBytes
	}
	if maxPixels <= 0 {
		maxPixels = MaxImportPixels
	}
	if len(data) == 0 {
		return nil, errs.Validationf("empty image")
	}
	if len(data) > maxBytes {
		return nil, errs.Validationf("image is %d bytes, limit is %d", len(data), maxBytes)
	}
	ct := http.DetectContentType(data)
	format, ok := importFormats[ct]
	if !ok {
		return nil, errs.Validationf("unsupported image type %q", ct)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Validationf("decode %s header: %v", format, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errs.Validationf("image has no pixels")
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, errs.Validationf("image is %dx%d, limit is %d pixels", cfg.Width, cfg.Height, maxPixels)
	}
	img, decoded, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Validationf("decode %s: %v", format, err)
	}
	if decoded != format {
		return nil, errs.Validationf("content looks like %s but decodes as %s", format, decoded)
	}
	return &Import{Image: img, Format: format, ContentType: ct, Size: len(data)}, nil
}

// CompressOptions bound the encoded output.
type CompressOptions struct {
	MaxEdge     int // longest edge in pixels after downscaling
	TargetBytes int // stop lowering quality once the output fits
	Quality     int // starting JPEG quality
	MinQuality  int // quality floor
	QualityStep int
}

// DefaultCompress trades size against quality for phone-sized photos.
var DefaultCompress = CompressOptions{
	MaxEdge:     1920,
	TargetBytes: 1536 << 10,
	Quality:     85,
	MinQuality:  50,
	QualityStep: 10,
}

func (o CompressOptions) withDefaults() CompressOptions {
	d := DefaultCompress
	if o.MaxEdge > 0 {
		d.MaxEdge = o.MaxEdge
	}
	if o.TargetBytes > 0 {
		d.TargetBytes = o.TargetBytes
	}
	if o.Quality > 0 {
		d.Quality = o.Quality
	}
	if o.MinQuality > 0 {
		d.MinQuality = o.MinQuality
	}
	if o.QualityStep > 0 {
		d.QualityStep = o.QualityStep
	}
	if d.MinQuality > d.Quality {
		d.MinQuality = d.Quality
	}
	return d
}

// Compressed is an encoded image ready for upload.
type Compressed struct {
	Data        []byte
	ContentType string
	Ext         string
	Width       int
	Height      int
	Quality     int
}

// Compress downscales img so its longest edge fits MaxEdge, then encodes JPEG
// starting at Quality and stepping down until the output fits TargetBytes or
// MinQuality is reached. The smallest attempt is returned.
func Compress(img image.Image, opts CompressOptions) (*Compressed, error) {
	o := opts.withDefaults()
	scaled := Fit(img, o.MaxEdge)
	b := scaled.Bounds()
	if b.Empty() {
		return nil, errs.Validationf("empty image")
	}

	var best []byte
	bestQ := 0
	for q := o.Quality; ; q -= o.QualityStep {
		q = max(q, o.MinQuality)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: q}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		if best == nil || buf.Len() < len(best) {
			best, bestQ = buf.Bytes(), q
		}
		if buf.Len() <= o.TargetBytes || q == o.MinQuality {
			break
		}
	}
	return &Compressed{
		Data:        best,
		ContentType: "image/jpeg",
		Ext:         "jpg",
		Width:       b.Dx(),
		Height:      b.Dy(),
		Quality:     bestQ,
	}, nil
}

// Fit scales img down so its longest edge is at most maxEdge. Smaller images
// are returned unchanged.
func Fit(img image.Image, maxEdge int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return img
	}
	if w >= h {
		h = max(1, h*maxEdge/w)
		w = maxEdge
	} else {
		w = max(1, w*maxEdge/h)
		h = maxEdge
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(out, out.Bounds(), img, b, draw.Src, nil)
	return out
}
