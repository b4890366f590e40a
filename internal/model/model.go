// Package model defines domain entities used by services and repositories.
package model

import (
	"slices"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/journeyvault/internal/errs"
)

// JourneyStatus is the stored lifecycle flag of a journey.
type JourneyStatus string

const (
	StatusActive    JourneyStatus = "active"
	StatusCompleted JourneyStatus = "completed"
)

// MemoryType selects which payload a memory carries.
type MemoryType string

const (
	MemoryPhoto MemoryType = "photo"
	MemoryNote  MemoryType = "note"
	MemoryAudio MemoryType = "audio"
)

// NameMaxLen is the maximum journey name length in runes (after trimming).
const NameMaxLen = 50

// Journey is a named, time-boxed container of memories with one owner.
type Journey struct {
	ID         uuid.UUID
	OwnerID    uuid.UUID
	Name       string
	UnlockAt   time.Time
	Status     JourneyStatus
	SharedWith []uuid.UUID // collaborators; never contains OwnerID, no duplicates
	Emoji      string      // optional
	CoverImage string      // optional storage path
	CreatedAt  time.Time
	Version    int64 // bumped by every write; updates are conditional on it
}

// IsCollaborator reports whether id is in the share list.
func (j *Journey) IsCollaborator(id uuid.UUID) bool {
	return slices.Contains(j.SharedWith, id)
}

// NormalizeShares drops the owner, nil ids and duplicates from SharedWith, keeping order.
func (j *Journey) NormalizeShares() {
	out := make([]uuid.UUID, 0, len(j.SharedWith))
	for _, id := range j.SharedWith {
		if id == uuid.Nil || id == j.OwnerID || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	j.SharedWith = out
}

// ContextSnapshot is best-effort location/weather metadata captured once at creation time.
type ContextSnapshot struct {
	PlaceName   string    `json:"place_name,omitempty"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	Weather     string    `json:"weather,omitempty"`
	TempC       *float64  `json:"temp_c,omitempty"`
	CollectedAt time.Time `json:"collected_at"`
}

// Memory is one captured item belonging to exactly one journey.
type Memory struct {
	ID        uuid.UUID
	JourneyID uuid.UUID
	Type      MemoryType
	MediaPath string        // storage path, photo/audio only
	MediaURL  string        // public URL of MediaPath
	Text      string        // note only
	Duration  time.Duration // audio only
	Context   *ContextSnapshot
	CreatedBy uuid.UUID
	CreatedAt time.Time
}

// HasMedia reports whether the memory references stored media.
func (m *Memory) HasMedia() bool { return m.MediaPath != "" }

// Validate checks that exactly one payload is populated and matches Type.
func (m *Memory) Validate() error {
	if m.JourneyID == uuid.Nil {
		return errs.Validationf("memory without journey")
	}
	switch m.Type {
	case MemoryPhoto, MemoryAudio:
		if m.MediaPath == "" || m.Text != "" {
			return errs.Validationf("%s memory needs a media reference and no text", m.Type)
		}
		if m.Type == MemoryPhoto && m.Duration != 0 {
			return errs.Validationf("photo memory with duration")
		}
	case MemoryNote:
		if m.Text == "" || m.MediaPath != "" || m.Duration != 0 {
			return errs.Validationf("note memory needs text and no media")
		}
	default:
		return errs.Validationf("unknown memory type %q", m.Type)
	}
	return nil
}

// Tokens is an access token and its expiry.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time
}
