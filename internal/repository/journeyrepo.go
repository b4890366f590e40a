// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/journeyvault/internal/model"
)

// JourneyRepository persists journeys.
type JourneyRepository interface {
	// Create inserts a new journey.
	Create(ctx context.Context, j *model.Journey) error
	// Get loads a journey by ID.
	Get(ctx context.Context, id uuid.UUID) (*model.Journey, error)
	// ListForViewer returns journeys the viewer owns or collaborates on, newest first.
	ListForViewer(ctx context.Context, viewer uuid.UUID) ([]model.Journey, error)
	// Update overwrites the mutable fields: name, unlock date, status, shares, emoji, cover.
	Update(ctx context.Context, j *model.Journey) error
	// Delete removes a journey together with its memory rows.
	Delete(ctx context.Context, id uuid.UUID) error
	// CompleteDue marks active journeys whose unlock date has passed as completed.
	CompleteDue(ctx context.Context, now time.Time) (int64, error)
}
