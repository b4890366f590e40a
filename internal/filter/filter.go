// Package filter is the fixed catalog of visual transforms applied to live
// previews and baked into captured stills.
package filter

import (
	"context"
	"image"
	"image/color"
	"math"
	"strings"
)

// Filter is one entry of the closed catalog. Its fields are unexported so only
// the package-level values exist; the zero value behaves like None.
type Filter struct {
	name  string
	label string
	adj   adjust
}

// adjust is a color/contrast/saturation adjustment applied per pixel on
// normalized [0,1] channels, in this order: saturation, contrast, brightness,
// channel gains, fade toward a lifted black point.
type adjust struct {
	saturation float64 // 1 = unchanged, 0 = grayscale
	contrast   float64 // 1 = unchanged
	brightness float64 // additive
	gainR      float64
	gainG      float64
	gainB      float64
	fade       float64 // 0 = none, mixes toward 0.5 gray
}

var neutral = adjust{saturation: 1, contrast: 1, gainR: 1, gainG: 1, gainB: 1}

var (
	None  = Filter{name: "none", label: "Original", adj: neutral}
	Warm  = Filter{name: "warm", label: "Warm", adj: adjust{saturation: 1.1, contrast: 1.05, brightness: 0.02, gainR: 1.12, gainG: 1.02, gainB: 0.86}}
	Cool  = Filter{name: "cool", label: "Cool", adj: adjust{saturation: 0.95, contrast: 1.05, gainR: 0.88, gainG: 1.0, gainB: 1.14}}
	Mono  = Filter{name: "mono", label: "Mono", adj: adjust{saturation: 0, contrast: 1.15, gainR: 1, gainG: 1, gainB: 1}}
	Faded = Filter{name: "faded", label: "Faded", adj: adjust{saturation: 0.7, contrast: 0.85, brightness: 0.04, gainR: 1, gainG: 1, gainB: 1, fade: 0.15}}
	Vivid = Filter{name: "vivid", label: "Vivid", adj: adjust{saturation: 1.45, contrast: 1.15, gainR: 1, gainG: 1, gainB: 1}}
)

// All lists the catalog in display order.
var All = []Filter{None, Warm, Cool, Mono, Faded, Vivid}

// Parse resolves a catalog name. The empty string and "identity" mean None.
func Parse(name string) (Filter, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" || n == "identity" || n == "original" {
		return None, true
	}
	for _, f := range All {
		if f.name == n {
			return f, true
		}
	}
	return Filter{}, false
}

// Name is the catalog key.
func (f Filter) Name() string {
	if f.name == "" {
		return None.name
	}
	return f.name
}

// Label is the human-readable name.
func (f Filter) Label() string {
	if f.label == "" {
		return None.label
	}
	return f.label
}

func (f Filter) String() string { return f.Name() }

// IsNone reports whether the filter leaves pixels unchanged.
func (f Filter) IsNone() bool { return f.name == "" || f.name == None.name }

// Apply transforms one color.
func (f Filter) Apply(c color.RGBA) color.RGBA {
	if f.IsNone() {
		return c
	}
	a := f.adj
	r, g, b := float64(c.R)/255, float64(c.G)/255, float64(c.B)/255

	l := 0.2126*r + 0.7152*g + 0.0722*b
	r, g, b = l+(r-l)*a.saturation, l+(g-l)*a.saturation, l+(b-l)*a.saturation

	r, g, b = (r-0.5)*a.contrast+0.5, (g-0.5)*a.contrast+0.5, (b-0.5)*a.contrast+0.5
	r, g, b = r+a.brightness, g+a.brightness, b+a.brightness
	r, g, b = r*a.gainR, g*a.gainG, b*a.gainB

	if a.fade > 0 {
		r, g, b = r+(0.5-r)*a.fade, g+(0.5-g)*a.fade, b+(0.5-b)*a.fade
	}
	return color.RGBA{R: to8(r), G: to8(g), B: to8(b), A: c.A}
}

func to8(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

// Bake applies f to src and returns the result in a new buffer. src is never
// modified. None returns src itself, so selecting no filter costs nothing.
func Bake(src image.Image, f Filter) image.Image {
	if f.IsNone() {
		return src
	}
	b := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if rgba, ok := src.(*image.RGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			si := rgba.PixOffset(b.Min.X, b.Min.Y+y)
			di := out.PixOffset(0, y)
			for x := 0; x < b.Dx(); x++ {
				s := rgba.Pix[si+x*4 : si+x*4+4 : si+x*4+4]
				c := f.Apply(color.RGBA{R: s[0], G: s[1], B: s[2], A: s[3]})
				d := out.Pix[di+x*4 : di+x*4+4 : di+x*4+4]
				d[0], d[1], d[2], d[3] = c.R, c.G, c.B, c.A
			}
		}
		return out
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.RGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
			out.SetRGBA(x, y, f.Apply(c))
		}
	}
	return out
}

// Preview applies the currently selected filter to each frame of a live
// stream. Results are for display only. The output channel closes when
// frames closes or ctx ends.
func Preview(ctx context.Context, frames <-chan image.Image, current func() Filter) <-chan image.Image {
	out := make(chan image.Image)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-frames:
				if !ok {
					return
				}
				select {
				case out <- Bake(frame, current()):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
