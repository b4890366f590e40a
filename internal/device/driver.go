// Package device manages the lifecycle of a camera handle: acquisition,
// facing switches, zoom control and release on every exit path.
package device

import (
	"context"
	"image"
)

// Facing is the direction a camera points.
type Facing int

const (
	FacingEnvironment Facing = iota // back camera
	FacingUser                      // front camera, preview is mirrored
)

func (f Facing) String() string {
	if f == FacingUser {
		return "user"
	}
	return "environment"
}

// Opposite returns the other facing direction.
func (f Facing) Opposite() Facing {
	if f == FacingUser {
		return FacingEnvironment
	}
	return FacingUser
}

// Preferred capture resolution requested from drivers.
const (
	PreferredWidth  = 1920
	PreferredHeight = 1080
)

// Constraints describe the stream requested from a driver.
type Constraints struct {
	Facing Facing
	Width  int
	Height int
}

// ZoomRange is the zoom envelope a device reports.
type ZoomRange struct {
	Min, Max float64
}

// Clamp limits level to the envelope.
func (z ZoomRange) Clamp(level float64) float64 {
	if level < z.Min {
		return z.Min
	}
	if level > z.Max {
		return z.Max
	}
	return level
}

// Info describes an enumerated capture device.
type Info struct {
	ID     string
	Label  string
	Facing Facing
}

// Stream is a live video handle returned by a Driver.
type Stream interface {
	// Frame returns the most recent frame. The returned image must not be
	// modified by the stream afterwards.
	Frame() (image.Image, error)
	// Zoom reports the zoom envelope, if the device supports zoom.
	Zoom() (ZoomRange, bool)
	// ApplyZoom sets the hardware zoom level.
	ApplyZoom(level float64) error
	// Stop releases the handle and its tracks.
	Stop()
}

// Driver acquires platform capture devices. Implementations return
// errs.ErrPermissionDenied, errs.ErrDeviceNotFound or errs.ErrDeviceUnavailable
// (possibly wrapped) on failure. The ctx passed to Open bounds acquisition only.
type Driver interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
	Devices(ctx context.Context) ([]Info, error)
}
