package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/and161185/journeyvault/internal/errs"
)

func TestNext(t *testing.T) {
	tests := []struct {
		name string
		mode Mode
		from Phase
		ev   Event
		want Phase
	}{
		{"photo open", ModePhoto, PhaseIdle, EventOpen, PhaseOpening},
		{"photo opened", ModePhoto, PhaseOpening, EventOpened, PhaseReady},
		{"photo open failed", ModePhoto, PhaseOpening, EventOpenFailed, PhaseIdle},
		{"photo freeze", ModePhoto, PhaseReady, EventCapture, PhasePreviewing},
		{"photo import without camera", ModePhoto, PhaseIdle, EventImport, PhasePreviewing},
		{"photo import with camera", ModePhoto, PhaseReady, EventImport, PhasePreviewing},
		{"photo discard", ModePhoto, PhasePreviewing, EventDiscard, PhaseReady},
		{"photo save", ModePhoto, PhasePreviewing, EventSave, PhaseSaving},
		{"photo saved", ModePhoto, PhaseSaving, EventSaved, PhaseReady},
		{"photo save failed keeps preview", ModePhoto, PhaseSaving, EventSaveFailed, PhasePreviewing},
		{"audio stop recording", ModeAudio, PhaseReady, EventCapture, PhasePreviewing},
		{"audio save failed keeps clip", ModeAudio, PhaseSaving, EventSaveFailed, PhasePreviewing},
		{"note save", ModeNote, PhaseReady, EventSave, PhaseSaving},
		{"note saved", ModeNote, PhaseSaving, EventSaved, PhaseReady},
		{"note save failed", ModeNote, PhaseSaving, EventSaveFailed, PhaseReady},
		{"close from saving", ModePhoto, PhaseSaving, EventClose, PhaseIdle},
		{"close from previewing", ModeAudio, PhasePreviewing, EventClose, PhaseIdle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.mode, tt.from, tt.ev)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNext_Rejections(t *testing.T) {
	_, err := Next(ModePhoto, PhaseSaving, EventSave)
	require.ErrorIs(t, err, ErrBusy)
	_, err = Next(ModePhoto, PhaseSaving, EventCapture)
	require.ErrorIs(t, err, ErrBusy)

	_, err = Next(ModePhoto, PhaseOpening, EventCapture)
	require.ErrorIs(t, err, errs.ErrDeviceNotReady)
	_, err = Next(ModePhoto, PhaseIdle, EventCapture)
	require.ErrorIs(t, err, errs.ErrDeviceNotReady)

	_, err = Next(ModePhoto, PhaseReady, EventSave)
	require.ErrorIs(t, err, ErrInvalidTransition, "nothing to save")
	_, err = Next(ModeNote, PhaseReady, EventCapture)
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = Next(ModeAudio, PhaseReady, EventImport)
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = Next(ModePhoto, PhasePreviewing, EventImport)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModePhoto, ModeAudio, ModeNote} {
		got, ok := ParseMode(m.String())
		require.True(t, ok)
		assert.Equal(t, m, got)
	}
	_, ok := ParseMode("video")
	assert.False(t, ok)
	assert.Equal(t, "save failed", EventSaveFailed.String())
}
