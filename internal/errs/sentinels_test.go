package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassification(t *testing.T) {
	cases := []struct {
		name              string
		err               error
		rec, retry, fatal bool
	}{
		{"permission", fmt.Errorf("open: %w", ErrPermissionDenied), true, false, false},
		{"not ready", ErrDeviceNotReady, true, false, false},
		{"validation", Validationf("note too long"), true, false, false},
		{"upload", fmt.Errorf("put: %w", ErrUploadFailed), false, true, false},
		{"orphan", &OrphanError{Path: "a/b/1.jpg", Err: errors.New("insert")}, false, true, false},
		{"sealed", fmt.Errorf("%w: %w", ErrAccessDenied, ErrSealed), false, false, true},
		{"other", errors.New("boom"), false, false, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.rec, Recoverable(c.err))
			require.Equal(t, c.retry, Retryable(c.err))
			require.Equal(t, c.fatal, Fatal(c.err))
		})
	}
}

func TestOrphanError_Unwrap(t *testing.T) {
	cause := errors.New("insert failed")
	err := fmt.Errorf("save: %w", &OrphanError{Path: "u/j/1.jpg", Err: cause})

	require.ErrorIs(t, err, ErrRecordCreateFailed)
	require.ErrorIs(t, err, cause)

	var oe *OrphanError
	require.ErrorAs(t, err, &oe)
	require.Equal(t, "u/j/1.jpg", oe.Path)
	require.Contains(t, err.Error(), "u/j/1.jpg")
}

func TestValidationf(t *testing.T) {
	err := Validationf("name longer than %d", 50)
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, "validation: name longer than 50", err.Error())
}
