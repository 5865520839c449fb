package workspace

import (
	"context"

	"github.com/google/uuid"
)

// Space is the catalog's view of a workspace: the snapshot the booking core
// needs to price and validate a reservation. The catalog service owns the
// records; this service only reads them.
type Space struct {
	ID                uuid.UUID
	HostID            uuid.UUID
	PricePerHourCents int64
	Capacity          int
	IsActive          bool
}

// Catalog looks up workspaces in the externally-owned catalog.
type Catalog interface {
	// GetActiveSpace retrieves a space that exists and is active. Inactive
	// or absent spaces yield a not-found error.
	GetActiveSpace(ctx context.Context, spaceID uuid.UUID) (*Space, error)

	// GetSpace retrieves a space regardless of its active flag. Used for
	// ownership checks on bookings whose space was since deactivated.
	GetSpace(ctx context.Context, spaceID uuid.UUID) (*Space, error)
}
