// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique key (such as an account email) is taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation indicates rejected input: oversized or unknown media,
	// empty or oversized note text, an unlock date not in the future.
	ErrValidation = errors.New("validation")

	// ErrAccessDenied indicates that the lock state or the viewer role forbids the operation.
	ErrAccessDenied = errors.New("access denied")

	// ErrSealed indicates a read of a journey that is still locked. Always wrapped with ErrAccessDenied.
	ErrSealed = errors.New("journey is sealed")

	// ErrUnlocked indicates a write to a journey that already unlocked. Always wrapped with ErrAccessDenied.
	ErrUnlocked = errors.New("journey is unlocked")

	// ErrVersionConflict indicates the row changed since it was read.
	ErrVersionConflict = errors.New("version conflict")
)

// Capture device sentinels.
var (
	// ErrPermissionDenied indicates the user or platform refused camera/microphone access.
	ErrPermissionDenied = errors.New("device permission denied")

	// ErrDeviceNotFound indicates no device matches the requested constraints.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrDeviceUnavailable indicates the device exists but cannot be opened (busy, hardware error).
	ErrDeviceUnavailable = errors.New("device unavailable")

	// ErrDeviceNotReady indicates a capture was attempted before the session produced frames.
	ErrDeviceNotReady = errors.New("device not ready")
)

// Persistence sentinels of the capture pipeline.
var (
	// ErrUploadFailed indicates a network or storage failure after a valid asset was produced.
	ErrUploadFailed = errors.New("upload failed")

	// ErrRecordCreateFailed indicates the blob was stored but the memory row was not written.
	ErrRecordCreateFailed = errors.New("record create failed")
)

// Validationf returns an ErrValidation wrapped with a formatted reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// OrphanError reports a stored blob whose memory row could not be created.
type OrphanError struct {
	Path string
	Err  error
}

func (e *OrphanError) Error() string {
	return fmt.Sprintf("%v: orphaned blob %q: %v", ErrRecordCreateFailed, e.Path, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is.
func (e *OrphanError) Unwrap() []error { return []error{ErrRecordCreateFailed, e.Err} }

// Recoverable reports errors the user may fix and retry in place
// without losing entered text or a captured preview.
func Recoverable(err error) bool {
	return errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrDeviceNotFound) ||
		errors.Is(err, ErrDeviceUnavailable) ||
		errors.Is(err, ErrDeviceNotReady) ||
		errors.Is(err, ErrValidation)
}

// Retryable reports persistence failures that are offered a manual retry.
// They are never retried automatically.
func Retryable(err error) bool {
	return errors.Is(err, ErrUploadFailed) || errors.Is(err, ErrRecordCreateFailed)
}

// Fatal reports errors that end the current attempt; the caller must
// resynchronize the journey before continuing.
func Fatal(err error) bool {
	return errors.Is(err, ErrAccessDenied) || errors.Is(err, ErrNotFound)
}
