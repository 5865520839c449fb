//go:build integration

package main_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workhive/service-booking/internal/application"
	bookingEvents "github.com/workhive/service-booking/internal/events"
	"github.com/workhive/service-booking/internal/pkg/domain"
)

// TestPaymentSucceeded_ConfirmsBooking verifies that a payment.succeeded
// event consumed from Kafka moves a pending booking to upcoming/paid and
// emits a booking.confirmed event.
func TestPaymentSucceeded_ConfirmsBooking(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	go func() { _ = stack.Consumer.Start(consumerCtx) }()
	defer stack.Consumer.Close()

	hostID := uuid.New()
	spaceID := seedSpace(t, infra.DB, hostID)
	userID := uuid.New()

	start := time.Now().UTC().Truncate(time.Hour).Add(72 * time.Hour)
	created, err := stack.Service.CreateBooking(context.Background(), userID, application.CreateBookingRequest{
		SpaceID:     spaceID,
		StartTime:   start,
		EndTime:     start.Add(2 * time.Hour),
		GuestCount:  2,
		BookingType: "hourly",
	})
	require.NoError(t, err)
	require.Equal(t, "pending", created.Status)

	publishTestEvent(t, infra.KafkaBrokers, "payment.events", "service-payment", "payment.succeeded", bookingEvents.PaymentEvent{
		PaymentID:   uuid.New(),
		BookingID:   created.ID,
		AmountCents: created.TotalAmountCents,
		OccurredAt:  time.Now().UTC(),
	})

	model := waitForBookingStatus(t, infra.DB, created.ID, "upcoming", 30*time.Second)
	assert.Equal(t, "paid", model.PaymentStatus)
	assert.Nil(t, model.ExpiresAt)

	ce := consumeOneEvent(t, infra.KafkaBrokers, "booking.events", "booking.confirmed", 30*time.Second)
	var payload bookingEvents.BookingConfirmedEvent
	require.NoError(t, ce.ParseData(&payload))
	assert.Equal(t, created.ID, payload.BookingID)
}

// TestConcurrentCreate_ExactlyOneWins fires parallel creations of the same
// slot and verifies exactly one booking survives.
func TestConcurrentCreate_ExactlyOneWins(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	hostID := uuid.New()
	spaceID := seedSpace(t, infra.DB, hostID)

	start := time.Now().UTC().Truncate(time.Hour).Add(72 * time.Hour)
	req := application.CreateBookingRequest{
		SpaceID:     spaceID,
		StartTime:   start,
		EndTime:     start.Add(2 * time.Hour),
		GuestCount:  2,
		BookingType: "hourly",
	}

	const attempts = 10
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = stack.Service.CreateBooking(context.Background(), uuid.New(), req)
		}(i)
	}
	wg.Wait()

	successes, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case domain.IsConflict(err):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes, "exactly one creation should win the slot")
	assert.Equal(t, attempts-1, conflicts)
}

// TestReschedule_ConflictAndHistory verifies that rescheduling onto an
// occupied slot fails without mutating the booking, and a clean reschedule
// records the audit trail.
func TestReschedule_ConflictAndHistory(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	hostID := uuid.New()
	spaceID := seedSpace(t, infra.DB, hostID)
	userID := uuid.New()

	base := time.Now().UTC().Truncate(time.Hour).Add(72 * time.Hour)

	first, err := stack.Service.CreateBooking(context.Background(), userID, application.CreateBookingRequest{
		SpaceID:     spaceID,
		StartTime:   base,
		EndTime:     base.Add(2 * time.Hour),
		GuestCount:  2,
		BookingType: "hourly",
	})
	require.NoError(t, err)

	second, err := stack.Service.CreateBooking(context.Background(), userID, application.CreateBookingRequest{
		SpaceID:     spaceID,
		StartTime:   base.Add(4 * time.Hour),
		EndTime:     base.Add(6 * time.Hour),
		GuestCount:  2,
		BookingType: "hourly",
	})
	require.NoError(t, err)

	// Moving the second booking onto the first must fail.
	_, err = stack.Service.RescheduleBooking(context.Background(), userID, second.ID, base.Add(time.Hour), base.Add(3*time.Hour), "")
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))

	unchanged, err := stack.Service.GetBooking(context.Background(), userID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, base.Add(4*time.Hour), unchanged.StartTime.UTC())
	assert.Empty(t, unchanged.RescheduleHistory)

	// A free slot works and records history.
	moved, err := stack.Service.RescheduleBooking(context.Background(), userID, second.ID, base.Add(8*time.Hour), base.Add(10*time.Hour), "meeting moved")
	require.NoError(t, err)
	assert.Len(t, moved.RescheduleHistory, 1)
	assert.Equal(t, first.TotalAmountCents, moved.TotalAmountCents)

	// The vacated slot is free again.
	_, err = stack.Service.CreateBooking(context.Background(), uuid.New(), application.CreateBookingRequest{
		SpaceID:     spaceID,
		StartTime:   base.Add(4 * time.Hour),
		EndTime:     base.Add(6 * time.Hour),
		GuestCount:  1,
		BookingType: "hourly",
	})
	require.NoError(t, err)
}

// TestExpirePendingBookings_ReleasesSlot verifies that the expiry sweep
// cancels stale pending bookings and frees their slots.
func TestExpirePendingBookings_ReleasesSlot(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	hostID := uuid.New()
	spaceID := seedSpace(t, infra.DB, hostID)
	userID := uuid.New()

	start := time.Now().UTC().Truncate(time.Hour).Add(72 * time.Hour)
	created, err := stack.Service.CreateBooking(context.Background(), userID, application.CreateBookingRequest{
		SpaceID:     spaceID,
		StartTime:   start,
		EndTime:     start.Add(2 * time.Hour),
		GuestCount:  2,
		BookingType: "hourly",
	})
	require.NoError(t, err)

	// Age the booking past the pending TTL.
	stale := time.Now().UTC().Add(-30 * time.Minute)
	require.NoError(t, infra.DB.Exec("UPDATE bookings SET created_at = ? WHERE id = ?", stale, created.ID).Error)

	count, err := stack.Service.ExpirePendingBookings(context.Background(), 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	model := waitForBookingStatus(t, infra.DB, created.ID, "cancelled", 5*time.Second)
	assert.Equal(t, "pending", model.PaymentStatus)

	// A second sweep is a no-op.
	count, err = stack.Service.ExpirePendingBookings(context.Background(), 15*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, count)

	// The slot is free for someone else.
	_, err = stack.Service.CreateBooking(context.Background(), uuid.New(), application.CreateBookingRequest{
		SpaceID:     spaceID,
		StartTime:   start,
		EndTime:     start.Add(2 * time.Hour),
		GuestCount:  1,
		BookingType: "hourly",
	})
	require.NoError(t, err)
}
