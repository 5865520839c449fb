package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics this service produces to and consumes from.
const (
	TopicBookingEvents = "booking.events"
	TopicPaymentEvents = "payment.events"
)

// Event types on booking.events.
const (
	BookingCreated     = "booking.created"
	BookingConfirmed   = "booking.confirmed"
	BookingCancelled   = "booking.cancelled"
	BookingRescheduled = "booking.rescheduled"
	BookingCompleted   = "booking.completed"
	BookingExpired     = "booking.expired"
)

// Event types on payment.events, produced by the payment service.
const (
	PaymentSucceeded = "payment.succeeded"
	PaymentFailed    = "payment.failed"
)

// BookingCreatedEvent is published when a booking is created in pending.
type BookingCreatedEvent struct {
	BookingID        uuid.UUID `json:"booking_id"`
	UserID           uuid.UUID `json:"user_id"`
	SpaceID          uuid.UUID `json:"space_id"`
	BookingType      string    `json:"booking_type"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	TotalAmountCents int64     `json:"total_amount_cents"`
	ExpiresAt        time.Time `json:"expires_at"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// BookingConfirmedEvent is published when payment clears and the booking
// moves to upcoming.
type BookingConfirmedEvent struct {
	BookingID  uuid.UUID `json:"booking_id"`
	UserID     uuid.UUID `json:"user_id"`
	SpaceID    uuid.UUID `json:"space_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// BookingCancelledEvent is published on user, host, or sweep cancellation.
type BookingCancelledEvent struct {
	BookingID         uuid.UUID `json:"booking_id"`
	CancelledBy       uuid.UUID `json:"cancelled_by"`
	Reason            string    `json:"reason"`
	RefundAmountCents int64     `json:"refund_amount_cents"`
	RefundTier        string    `json:"refund_tier"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// BookingRescheduledEvent is published when a booking's interval changes.
type BookingRescheduledEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	OriginalStart time.Time `json:"original_start"`
	OriginalEnd   time.Time `json:"original_end"`
	NewStart      time.Time `json:"new_start"`
	NewEnd        time.Time `json:"new_end"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// BookingCompletedEvent is published when a booking finishes.
type BookingCompletedEvent struct {
	BookingID         uuid.UUID `json:"booking_id"`
	SpaceID           uuid.UUID `json:"space_id"`
	HostEarningsCents int64     `json:"host_earnings_cents"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// BookingExpiredEvent is published when the sweep releases an unpaid slot.
type BookingExpiredEvent struct {
	BookingID  uuid.UUID `json:"booking_id"`
	SpaceID    uuid.UUID `json:"space_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PaymentEvent is the payload of payment.succeeded and payment.failed.
type PaymentEvent struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	BookingID   uuid.UUID `json:"booking_id"`
	AmountCents int64     `json:"amount_cents"`
	OccurredAt  time.Time `json:"occurred_at"`
}
