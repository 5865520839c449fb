package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for booking aggregates.
//
// CreateInSlot and UpdateSlot form the per-space critical section: each
// implementation must serialize the conflict check and the write for a given
// space so that two concurrent calls for overlapping intervals cannot both
// succeed.
type Repository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByUserID retrieves a user's bookings, optionally filtered by
	// status, newest first, with pagination.
	FindByUserID(ctx context.Context, userID uuid.UUID, status string, page, limit int) ([]*Booking, int64, error)

	// FindByHostID retrieves bookings across all spaces owned by the host,
	// optionally filtered by status, with pagination.
	FindByHostID(ctx context.Context, hostID uuid.UUID, status string, page, limit int) ([]*Booking, int64, error)

	// HasConflict reports whether any slot-occupying booking on the space
	// overlaps the half-open interval [start, end). excludeID, when non-nil,
	// removes the booking being modified from the conflict set.
	HasConflict(ctx context.Context, spaceID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error)

	// CreateInSlot persists a new booking after an atomic conflict check on
	// its space. Returns a conflict error if the slot is taken.
	CreateInSlot(ctx context.Context, b *Booking) error

	// UpdateSlot persists an interval change after an atomic conflict check
	// excluding the booking itself. Returns a conflict error if the new slot
	// is taken or the booking was modified concurrently.
	UpdateSlot(ctx context.Context, b *Booking) error

	// Update persists non-interval changes with optimistic locking.
	Update(ctx context.Context, b *Booking) error

	// FindExpiredPending retrieves pending bookings created before the
	// cutoff, oldest first, up to limit.
	FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*Booking, error)

	// ListAll retrieves all bookings with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)
}
