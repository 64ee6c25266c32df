package user

import "context"

// Store persists profiles. Implementations return sentinel errors; the
// service translates them to coded domain errors.
type Store interface {
	// GetByID returns a copy of the profile or sentinel.ErrNotFound.
	GetByID(ctx context.Context, id string) (*Profile, error)

	// Create persists a new profile; sentinel.ErrConflict on duplicate id.
	Create(ctx context.Context, profile *Profile) error

	// Update replaces the stored profile; sentinel.ErrNotFound when absent.
	Update(ctx context.Context, profile *Profile) error

	// Delete removes the profile; sentinel.ErrNotFound when absent.
	Delete(ctx context.Context, id string) error
}
