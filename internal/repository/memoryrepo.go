package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/journeyvault/internal/model"
)

// MemoryRepository persists memories.
type MemoryRepository interface {
	// Create inserts a new memory.
	Create(ctx context.Context, m *model.Memory) error
	// Get loads a memory by ID.
	Get(ctx context.Context, id uuid.UUID) (*model.Memory, error)
	// ListByJourney returns a journey's memories oldest first.
	ListByJourney(ctx context.Context, journeyID uuid.UUID) ([]model.Memory, error)
	// Count returns the number of memories in a journey.
	Count(ctx context.Context, journeyID uuid.UUID) (int, error)
	// Delete removes one memory.
	Delete(ctx context.Context, id uuid.UUID) error
}

// IdentityRepository resolves account emails to ids and back.
type IdentityRepository interface {
	// IDByEmail returns the account id for an email or ErrNotFound.
	IDByEmail(ctx context.Context, email string) (uuid.UUID, error)
	// EmailByID returns the account email for an id or ErrNotFound.
	EmailByID(ctx context.Context, id uuid.UUID) (string, error)
}

// AccountRepository registers accounts on backends that keep their own
// profiles table instead of delegating to an auth service.
type AccountRepository interface {
	IdentityRepository
	// Register adds an account; a taken email returns ErrAlreadyExists.
	Register(ctx context.Context, id uuid.UUID, email string) error
}
