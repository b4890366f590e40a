package capture

import (
	"errors"
	"fmt"

	"github.com/and161185/journeyvault/internal/errs"
)

// Mode is the kind of memory the screen captures.
type Mode int

const (
	ModePhoto Mode = iota
	ModeAudio
	ModeNote
)

func (m Mode) String() string {
	switch m {
	case ModeAudio:
		return "audio"
	case ModeNote:
		return "note"
	default:
		return "photo"
	}
}

// ParseMode maps a mode name to a Mode.
func ParseMode(s string) (Mode, bool) {
	for _, m := range []Mode{ModePhoto, ModeAudio, ModeNote} {
		if m.String() == s {
			return m, true
		}
	}
	return 0, false
}

// Phase is the screen's position within a mode.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseOpening
	PhaseReady
	PhasePreviewing
	PhaseSaving
)

func (p Phase) String() string {
	switch p {
	case PhaseOpening:
		return "opening"
	case PhaseReady:
		return "ready"
	case PhasePreviewing:
		return "previewing"
	case PhaseSaving:
		return "saving"
	default:
		return "idle"
	}
}

// Event drives phase transitions.
type Event int

const (
	EventOpen Event = iota
	EventOpened
	EventOpenFailed
	EventCapture // freeze a frame or stop a recording
	EventImport
	EventDiscard
	EventSave
	EventSaved
	EventSaveFailed
	EventClose
)

var eventNames = [...]string{
	"open", "opened", "open failed", "capture", "import",
	"discard", "save", "saved", "save failed", "close",
}

func (e Event) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// ErrBusy is returned for triggers that arrive while a save is in flight.
var ErrBusy = errors.New("capture busy")

// ErrInvalidTransition is returned for events that do not apply in the current phase.
var ErrInvalidTransition = errors.New("invalid capture transition")

type edge struct {
	from Phase
	ev   Event
}

// transitions lists the edges every mode shares; mode-specific edges are
// resolved in Next.
var transitions = map[edge]Phase{
	{PhaseIdle, EventOpen}:          PhaseOpening,
	{PhaseOpening, EventOpened}:     PhaseReady,
	{PhaseOpening, EventOpenFailed}: PhaseIdle,
	{PhaseReady, EventCapture}:      PhasePreviewing,
	{PhasePreviewing, EventDiscard}: PhaseReady,
	{PhasePreviewing, EventSave}:    PhaseSaving,
	{PhaseSaving, EventSaved}:       PhaseReady,
	{PhaseSaving, EventSaveFailed}:  PhasePreviewing,
}

// Next returns the phase reached from p on ev in mode m.
func Next(m Mode, p Phase, ev Event) (Phase, error) {
	if ev == EventClose {
		return PhaseIdle, nil
	}
	switch {
	case ev == EventImport:
		if m == ModePhoto && (p == PhaseIdle || p == PhaseReady) {
			return PhasePreviewing, nil
		}
	case m == ModeNote && ev == EventCapture:
	case m == ModeNote && p == PhaseReady && ev == EventSave:
		return PhaseSaving, nil
	case m == ModeNote && p == PhaseSaving && ev == EventSaveFailed:
		return PhaseReady, nil
	default:
		if to, ok := transitions[edge{p, ev}]; ok {
			return to, nil
		}
	}
	if p == PhaseSaving {
		return p, fmt.Errorf("%w: %s while saving", ErrBusy, ev)
	}
	if p == PhaseIdle || p == PhaseOpening {
		return p, fmt.Errorf("%w: %s while %s in %s mode", errs.ErrDeviceNotReady, ev, p, m)
	}
	return p, fmt.Errorf("%w: %s from %s in %s mode", ErrInvalidTransition, ev, p, m)
}
