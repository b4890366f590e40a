package capture

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/and161185/journeyvault/internal/errs"
)

func TestFileRecorder(t *testing.T) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := &FileRecorder{Path: audioFile(t), now: c.now}
	ctx := context.Background()

	_, err := r.Stop()
	require.ErrorIs(t, err, errs.ErrDeviceNotReady)

	require.NoError(t, r.Start(ctx))
	require.ErrorIs(t, r.Start(ctx), errs.ErrDeviceUnavailable)
	c.advance(2500 * time.Millisecond)

	rec, err := r.Stop()
	require.NoError(t, err)
	assert.Equal(t, 2500*time.Millisecond, rec.Duration)
	assert.Equal(t, "audio/webm", rec.ContentType)
	assert.NotEmpty(t, rec.Data)
	assert.Empty(t, rec.Path())

	// restartable after Stop
	require.NoError(t, r.Start(ctx))
	_, err = r.Stop()
	require.NoError(t, err)
}

func TestFileRecorder_Missing(t *testing.T) {
	r := &FileRecorder{Path: filepath.Join(t.TempDir(), "nope.ogg")}
	err := r.Start(context.Background())
	require.ErrorIs(t, err, errs.ErrDeviceNotFound)
	assert.True(t, errs.Recoverable(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, r.Start(ctx), context.Canceled)
}
