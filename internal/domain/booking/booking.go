package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/workhive/service-booking/internal/pkg/domain"
)

// Cancellation reasons recorded on a cancelled booking.
const (
	ReasonUserRequest    = "user_request"
	ReasonHostRequest    = "host_request"
	ReasonPaymentTimeout = "payment_timeout"
)

// CancellationInfo records how a booking was cancelled. Immutable once set.
type CancellationInfo struct {
	CancelledAt       time.Time  `json:"cancelled_at"`
	CancelledBy       uuid.UUID  `json:"cancelled_by"`
	Reason            string     `json:"reason"`
	RefundAmountCents int64      `json:"refund_amount_cents"`
	RefundTier        RefundTier `json:"refund_tier"`
	Notes             string     `json:"notes,omitempty"`
}

// RescheduleEntry is one audit-trail record of an interval change.
type RescheduleEntry struct {
	OriginalStart time.Time `json:"original_start"`
	OriginalEnd   time.Time `json:"original_end"`
	NewStart      time.Time `json:"new_start"`
	NewEnd        time.Time `json:"new_end"`
	RescheduledAt time.Time `json:"rescheduled_at"`
	RescheduledBy uuid.UUID `json:"rescheduled_by"`
	Reason        string    `json:"reason,omitempty"`
}

// Booking is the aggregate root for the booking domain. A booking reserves
// one workspace for one user over a half-open time interval.
type Booking struct {
	id      uuid.UUID
	userID  uuid.UUID
	spaceID uuid.UUID

	bookingType BookingType
	startTime   time.Time
	endTime     time.Time

	// Pricing snapshot. basePriceCents is the per-unit rate copied from
	// the space at creation time; the remaining fields are derived and
	// recomputed whenever an input changes.
	basePriceCents    int64
	markupPercentage  int
	durationUnits     int
	markupAmountCents int64
	totalAmountCents  int64
	hostEarningsCents int64

	guestCount      int
	specialRequests string
	hostNotes       string

	status        BookingStatus
	paymentStatus PaymentStatus
	expiresAt     *time.Time

	cancellation      *CancellationInfo
	rescheduleHistory []RescheduleEntry

	isActive  bool
	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewBookingParams holds the inputs for creating a booking aggregate.
type NewBookingParams struct {
	UserID           uuid.UUID
	SpaceID          uuid.UUID
	BookingType      BookingType
	StartTime        time.Time
	EndTime          time.Time
	GuestCount       int
	SpaceCapacity    int
	BasePriceCents   int64
	MarkupPercentage int
	SpecialRequests  string
	PendingTTL       time.Duration
}

// NewBooking creates a new Booking aggregate with status=pending and an
// expiry horizon for unpaid bookings. now is injected so callers control
// the clock.
func NewBooking(p NewBookingParams, now time.Time) (*Booking, error) {
	if p.UserID == uuid.Nil {
		return nil, domain.NewValidationError("user ID is required")
	}
	if p.SpaceID == uuid.Nil {
		return nil, domain.NewValidationError("space ID is required")
	}
	if !p.BookingType.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid booking type: %s", p.BookingType))
	}
	if !p.EndTime.After(p.StartTime) {
		return nil, domain.NewValidationError("end time must be after start time")
	}
	if !p.StartTime.After(now) {
		return nil, domain.NewValidationError("start time must be in the future")
	}
	if p.GuestCount < 1 {
		return nil, domain.NewValidationError("guest count must be at least 1")
	}
	if p.GuestCount > p.SpaceCapacity {
		return nil, domain.NewValidationError(fmt.Sprintf("guest count %d exceeds space capacity %d", p.GuestCount, p.SpaceCapacity))
	}

	quote, err := ComputeQuote(p.BasePriceCents, p.StartTime, p.EndTime, p.BookingType, p.MarkupPercentage)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	expiresAt := now.Add(p.PendingTTL)
	return &Booking{
		id:                uuid.New(),
		userID:            p.UserID,
		spaceID:           p.SpaceID,
		bookingType:       p.BookingType,
		startTime:         p.StartTime.UTC(),
		endTime:           p.EndTime.UTC(),
		basePriceCents:    p.BasePriceCents,
		markupPercentage:  p.MarkupPercentage,
		durationUnits:     quote.DurationUnits,
		markupAmountCents: quote.MarkupAmountCents,
		totalAmountCents:  quote.TotalAmountCents,
		hostEarningsCents: quote.HostEarningsCents,
		guestCount:        p.GuestCount,
		specialRequests:   p.SpecialRequests,
		status:            StatusPending,
		paymentStatus:     PaymentPending,
		expiresAt:         &expiresAt,
		isActive:          true,
		version:           1,
		createdAt:         now.UTC(),
		updatedAt:         now.UTC(),
	}, nil
}

// ReconstructedBooking holds persisted state for rehydration.
type ReconstructedBooking struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	SpaceID           uuid.UUID
	BookingType       BookingType
	StartTime         time.Time
	EndTime           time.Time
	BasePriceCents    int64
	MarkupPercentage  int
	DurationUnits     int
	MarkupAmountCents int64
	TotalAmountCents  int64
	HostEarningsCents int64
	GuestCount        int
	SpecialRequests   string
	HostNotes         string
	Status            BookingStatus
	PaymentStatus     PaymentStatus
	ExpiresAt         *time.Time
	Cancellation      *CancellationInfo
	RescheduleHistory []RescheduleEntry
	IsActive          bool
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Reconstruct rebuilds a Booking from persistence data (no validation).
func Reconstruct(r ReconstructedBooking) *Booking {
	return &Booking{
		id:                r.ID,
		userID:            r.UserID,
		spaceID:           r.SpaceID,
		bookingType:       r.BookingType,
		startTime:         r.StartTime,
		endTime:           r.EndTime,
		basePriceCents:    r.BasePriceCents,
		markupPercentage:  r.MarkupPercentage,
		durationUnits:     r.DurationUnits,
		markupAmountCents: r.MarkupAmountCents,
		totalAmountCents:  r.TotalAmountCents,
		hostEarningsCents: r.HostEarningsCents,
		guestCount:        r.GuestCount,
		specialRequests:   r.SpecialRequests,
		hostNotes:         r.HostNotes,
		status:            r.Status,
		paymentStatus:     r.PaymentStatus,
		expiresAt:         r.ExpiresAt,
		cancellation:      r.Cancellation,
		rescheduleHistory: r.RescheduleHistory,
		isActive:          r.IsActive,
		version:           r.Version,
		createdAt:         r.CreatedAt,
		updatedAt:         r.UpdatedAt,
	}
}

// --- Getters ---

func (b *Booking) ID() uuid.UUID                        { return b.id }
func (b *Booking) UserID() uuid.UUID                    { return b.userID }
func (b *Booking) SpaceID() uuid.UUID                   { return b.spaceID }
func (b *Booking) BookingType() BookingType             { return b.bookingType }
func (b *Booking) StartTime() time.Time                 { return b.startTime }
func (b *Booking) EndTime() time.Time                   { return b.endTime }
func (b *Booking) BasePriceCents() int64                { return b.basePriceCents }
func (b *Booking) MarkupPercentage() int                { return b.markupPercentage }
func (b *Booking) DurationUnits() int                   { return b.durationUnits }
func (b *Booking) MarkupAmountCents() int64             { return b.markupAmountCents }
func (b *Booking) TotalAmountCents() int64              { return b.totalAmountCents }
func (b *Booking) HostEarningsCents() int64             { return b.hostEarningsCents }
func (b *Booking) GuestCount() int                      { return b.guestCount }
func (b *Booking) SpecialRequests() string              { return b.specialRequests }
func (b *Booking) HostNotes() string                    { return b.hostNotes }
func (b *Booking) Status() BookingStatus                { return b.status }
func (b *Booking) PaymentStatus() PaymentStatus         { return b.paymentStatus }
func (b *Booking) ExpiresAt() *time.Time                { return b.expiresAt }
func (b *Booking) Cancellation() *CancellationInfo      { return b.cancellation }
func (b *Booking) RescheduleHistory() []RescheduleEntry { return b.rescheduleHistory }
func (b *Booking) IsActive() bool                       { return b.isActive }
func (b *Booking) Version() int64                       { return b.version }
func (b *Booking) CreatedAt() time.Time                 { return b.createdAt }
func (b *Booking) UpdatedAt() time.Time                 { return b.updatedAt }

// HoursUntilStart returns the lead time before the booking starts, in hours.
// Negative once the booking has started.
func (b *Booking) HoursUntilStart(now time.Time) float64 {
	return b.startTime.Sub(now).Hours()
}

// --- Behavior ---

// Approve transitions the booking from pending to upcoming without touching
// the payment axis. Used when a host confirms a booking manually.
func (b *Booking) Approve(now time.Time) error {
	if !b.status.CanTransitionTo(StatusUpcoming) {
		return domain.NewInvalidStateError(string(b.status), string(StatusUpcoming))
	}
	b.status = StatusUpcoming
	b.expiresAt = nil
	b.updatedAt = now.UTC()
	return nil
}

// ConfirmPayment transitions the booking from pending to upcoming once
// payment has cleared, clearing the expiry horizon.
func (b *Booking) ConfirmPayment(now time.Time) error {
	if err := b.Approve(now); err != nil {
		return err
	}
	b.paymentStatus = PaymentPaid
	return nil
}

// MarkPaymentFailed records a failed payment. The booking stays pending and
// is released by the expiry sweep.
func (b *Booking) MarkPaymentFailed(now time.Time) {
	b.paymentStatus = PaymentFailed
	b.updatedAt = now.UTC()
}

// Start transitions the booking from upcoming to in_progress. The transition
// is only legal while now lies within the booking window.
func (b *Booking) Start(now time.Time) error {
	if !b.status.CanTransitionTo(StatusInProgress) {
		return domain.NewInvalidStateError(string(b.status), string(StatusInProgress))
	}
	if now.Before(b.startTime) || now.After(b.endTime) {
		return domain.NewValidationError("booking can only start within its time window")
	}
	b.status = StatusInProgress
	b.updatedAt = now.UTC()
	return nil
}

// Complete transitions the booking from in_progress to completed.
func (b *Booking) Complete(now time.Time) error {
	if !b.status.CanTransitionTo(StatusCompleted) {
		return domain.NewInvalidStateError(string(b.status), string(StatusCompleted))
	}
	b.status = StatusCompleted
	b.updatedAt = now.UTC()
	return nil
}

// Cancel transitions the booking to cancelled, recording who cancelled and
// what refund applied. If a paid booking is refunded, the payment status
// follows the refund: full refunds mark it refunded, partial refunds mark it
// partially refunded, and a zero refund leaves it paid.
func (b *Booking) Cancel(cancelledBy uuid.UUID, reason string, refund Refund, notes string, now time.Time) error {
	if !b.status.CanBeCancelled() {
		return domain.NewInvalidStateError(string(b.status), string(StatusCancelled))
	}
	b.status = StatusCancelled
	b.expiresAt = nil
	b.cancellation = &CancellationInfo{
		CancelledAt:       now.UTC(),
		CancelledBy:       cancelledBy,
		Reason:            reason,
		RefundAmountCents: refund.AmountCents,
		RefundTier:        refund.Tier,
		Notes:             notes,
	}
	if b.paymentStatus == PaymentPaid && refund.AmountCents > 0 {
		if refund.AmountCents >= b.totalAmountCents {
			b.paymentStatus = PaymentRefunded
		} else {
			b.paymentStatus = PaymentPartiallyRefunded
		}
	}
	b.updatedAt = now.UTC()
	return nil
}

// Reschedule appends an audit-trail entry and moves the booking to the new
// interval. Pricing is recomputed only when the covered unit count changes;
// a same-duration move keeps the commercial terms.
func (b *Booking) Reschedule(newStart, newEnd time.Time, by uuid.UUID, reason string, now time.Time) error {
	if b.status != StatusPending && b.status != StatusUpcoming {
		return domain.NewInvalidStateError(string(b.status), "rescheduled")
	}
	if !newEnd.After(newStart) {
		return domain.NewValidationError("new end time must be after new start time")
	}
	if !newStart.After(now) {
		return domain.NewValidationError("new start time must be in the future")
	}

	newDuration := durationUnits(newStart, newEnd, b.bookingType)
	if newDuration != b.durationUnits {
		quote, err := ComputeQuote(b.basePriceCents, newStart, newEnd, b.bookingType, b.markupPercentage)
		if err != nil {
			return domain.NewValidationError(err.Error())
		}
		b.durationUnits = quote.DurationUnits
		b.markupAmountCents = quote.MarkupAmountCents
		b.totalAmountCents = quote.TotalAmountCents
		b.hostEarningsCents = quote.HostEarningsCents
	}

	b.rescheduleHistory = append(b.rescheduleHistory, RescheduleEntry{
		OriginalStart: b.startTime,
		OriginalEnd:   b.endTime,
		NewStart:      newStart.UTC(),
		NewEnd:        newEnd.UTC(),
		RescheduledAt: now.UTC(),
		RescheduledBy: by,
		Reason:        reason,
	})
	b.startTime = newStart.UTC()
	b.endTime = newEnd.UTC()
	b.updatedAt = now.UTC()
	return nil
}

// SetHostNotes records the host's notes on the booking.
func (b *Booking) SetHostNotes(notes string, now time.Time) {
	b.hostNotes = notes
	b.updatedAt = now.UTC()
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
}
