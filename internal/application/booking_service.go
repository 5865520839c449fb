package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/workhive/service-booking/internal/domain/booking"
	"github.com/workhive/service-booking/internal/domain/workspace"
	"github.com/workhive/service-booking/internal/events"
	"github.com/workhive/service-booking/internal/pkg/domain"
	"github.com/workhive/service-booking/internal/pkg/kafka"
)

const eventSource = "service-booking"

// expiry sweep batch size per pass
const expiryBatchSize = 100

// Policy holds the commercial and temporal knobs of the booking core.
type Policy struct {
	MarkupPercentage int
	PendingTTL       time.Duration
	RescheduleCutoff time.Duration
}

// EventPublisher publishes CloudEvents. Satisfied by the kafka Producer.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// CreateBookingRequest holds the data needed to create a new booking.
type CreateBookingRequest struct {
	SpaceID         uuid.UUID `json:"space_id" binding:"required"`
	StartTime       time.Time `json:"start_time" binding:"required"`
	EndTime         time.Time `json:"end_time" binding:"required"`
	GuestCount      int       `json:"guest_count" binding:"required,min=1"`
	BookingType     string    `json:"booking_type" binding:"required"`
	SpecialRequests string    `json:"special_requests"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID                uuid.UUID                        `json:"id"`
	UserID            uuid.UUID                        `json:"user_id"`
	SpaceID           uuid.UUID                        `json:"space_id"`
	BookingType       string                           `json:"booking_type"`
	StartTime         time.Time                        `json:"start_time"`
	EndTime           time.Time                        `json:"end_time"`
	DurationUnits     int                              `json:"duration_units"`
	BasePriceCents    int64                            `json:"base_price_cents"`
	MarkupPercentage  int                              `json:"markup_percentage"`
	MarkupAmountCents int64                            `json:"markup_amount_cents"`
	TotalAmountCents  int64                            `json:"total_amount_cents"`
	HostEarningsCents int64                            `json:"host_earnings_cents"`
	GuestCount        int                              `json:"guest_count"`
	SpecialRequests   string                           `json:"special_requests,omitempty"`
	HostNotes         string                           `json:"host_notes,omitempty"`
	Status            string                           `json:"status"`
	PaymentStatus     string                           `json:"payment_status"`
	ExpiresAt         *time.Time                       `json:"expires_at,omitempty"`
	Cancellation      *bookingDomain.CancellationInfo  `json:"cancellation,omitempty"`
	RescheduleHistory []bookingDomain.RescheduleEntry  `json:"reschedule_history,omitempty"`
	IsActive          bool                             `json:"is_active"`
	Version           int64                            `json:"version"`
	CreatedAt         time.Time                        `json:"created_at"`
	UpdatedAt         time.Time                        `json:"updated_at"`
}

// RefundSummary reports the refund outcome of a cancellation.
type RefundSummary struct {
	RefundAmountCents int64  `json:"refund_amount_cents"`
	RefundTier        string `json:"refund_tier"`
}

// BookingService is the application service orchestrating the booking
// lifecycle. It is the only writer of booking records. The clock is
// injected so time-dependent behavior is testable at arbitrary instants.
type BookingService struct {
	repo     bookingDomain.Repository
	catalog  workspace.Catalog
	producer EventPublisher
	logger   *zap.Logger
	policy   Policy
	now      func() time.Time
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	repo bookingDomain.Repository,
	catalog workspace.Catalog,
	producer EventPublisher,
	logger *zap.Logger,
	policy Policy,
	now func() time.Time,
) *BookingService {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &BookingService{
		repo:     repo,
		catalog:  catalog,
		producer: producer,
		logger:   logger,
		policy:   policy,
		now:      now,
	}
}

// CreateBooking reserves a slot on a space for the given user. The conflict
// check and the insert run as one critical section per space; a taken slot
// fails with a conflict error, never a queue.
func (s *BookingService) CreateBooking(ctx context.Context, userID uuid.UUID, req CreateBookingRequest) (*BookingDTO, error) {
	bookingType, err := bookingDomain.ParseBookingType(req.BookingType)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	space, err := s.catalog.GetActiveSpace(ctx, req.SpaceID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	bk, err := bookingDomain.NewBooking(bookingDomain.NewBookingParams{
		UserID:           userID,
		SpaceID:          req.SpaceID,
		BookingType:      bookingType,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		GuestCount:       req.GuestCount,
		SpaceCapacity:    space.Capacity,
		BasePriceCents:   unitBasePrice(space.PricePerHourCents, bookingType),
		MarkupPercentage: s.policy.MarkupPercentage,
		SpecialRequests:  req.SpecialRequests,
		PendingTTL:       s.policy.PendingTTL,
	}, now)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateInSlot(ctx, bk); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.TopicBookingEvents, events.BookingCreated, events.BookingCreatedEvent{
		BookingID:        bk.ID(),
		UserID:           bk.UserID(),
		SpaceID:          bk.SpaceID(),
		BookingType:      bk.BookingType().String(),
		StartTime:        bk.StartTime(),
		EndTime:          bk.EndTime(),
		TotalAmountCents: bk.TotalAmountCents(),
		ExpiresAt:        *bk.ExpiresAt(),
		OccurredAt:       now,
	})

	result := toBookingDTO(bk)
	return &result, nil
}

// GetBooking retrieves a booking visible to the caller: its owner or the
// host of its space. Anyone else gets not-found.
func (s *BookingService) GetBooking(ctx context.Context, callerID, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if bk.UserID() != callerID {
		space, err := s.catalog.GetSpace(ctx, bk.SpaceID())
		if err != nil || space.HostID != callerID {
			return nil, s.denyAccess(callerID, bookingID, "get")
		}
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// GetUserBookings retrieves paginated bookings belonging to the user.
func (s *BookingService) GetUserBookings(ctx context.Context, userID uuid.UUID, status string, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	if err := validateStatusFilter(status); err != nil {
		return nil, err
	}
	bookings, total, err := s.repo.FindByUserID(ctx, userID, status, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toBookingDTOs(bookings), total, page, limit)
	return &result, nil
}

// GetHostBookings retrieves paginated bookings across the host's spaces.
func (s *BookingService) GetHostBookings(ctx context.Context, hostID uuid.UUID, status string, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	if err := validateStatusFilter(status); err != nil {
		return nil, err
	}
	bookings, total, err := s.repo.FindByHostID(ctx, hostID, status, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toBookingDTOs(bookings), total, page, limit)
	return &result, nil
}

// UpdateStatus applies a host-initiated status transition. The requesting
// host must own the space behind the booking; a cancelling transition
// refunds a paid booking in full.
func (s *BookingService) UpdateStatus(ctx context.Context, hostID, bookingID uuid.UUID, newStatus, notes, cancellationReason string) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	space, err := s.catalog.GetSpace(ctx, bk.SpaceID())
	if err != nil {
		return nil, err
	}
	if space.HostID != hostID {
		return nil, s.denyAccess(hostID, bookingID, "update_status")
	}

	target, err := bookingDomain.ParseBookingStatus(newStatus)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	now := s.now()
	switch target {
	case bookingDomain.StatusUpcoming:
		err = bk.Approve(now)
	case bookingDomain.StatusInProgress:
		err = bk.Start(now)
	case bookingDomain.StatusCompleted:
		err = bk.Complete(now)
	case bookingDomain.StatusCancelled:
		reason := cancellationReason
		if reason == "" {
			reason = bookingDomain.ReasonHostRequest
		}
		refund := bookingDomain.Refund{Tier: bookingDomain.RefundTierNone}
		if bk.PaymentStatus() == bookingDomain.PaymentPaid {
			refund = bookingDomain.Refund{AmountCents: bk.TotalAmountCents(), Tier: bookingDomain.RefundTierFull}
		}
		err = bk.Cancel(hostID, reason, refund, notes, now)
	default:
		err = domain.NewInvalidStateError(bk.Status().String(), newStatus)
	}
	if err != nil {
		return nil, err
	}

	if notes != "" && target != bookingDomain.StatusCancelled {
		bk.SetHostNotes(notes, now)
	}

	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return nil, err
	}

	s.publishStatusEvent(ctx, bk, target, now)

	result := toBookingDTO(bk)
	return &result, nil
}

// CancelBooking cancels the user's own booking, pricing the refund by how
// far ahead of the start time the cancellation lands.
func (s *BookingService) CancelBooking(ctx context.Context, userID, bookingID uuid.UUID) (*BookingDTO, *RefundSummary, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if bk.UserID() != userID {
		return nil, nil, s.denyAccess(userID, bookingID, "cancel")
	}

	if !bk.Status().CanBeCancelled() {
		return nil, nil, domain.NewInvalidStateError(bk.Status().String(), bookingDomain.StatusCancelled.String())
	}

	now := s.now()
	hoursUntilStart := bk.HoursUntilStart(now)
	if hoursUntilStart < 0 {
		return nil, nil, domain.NewValidationError("booking has already started")
	}

	refund := bookingDomain.ComputeRefund(bk.TotalAmountCents(), hoursUntilStart)
	if err := bk.Cancel(userID, bookingDomain.ReasonUserRequest, refund, "", now); err != nil {
		return nil, nil, err
	}

	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return nil, nil, err
	}

	s.publishEvent(ctx, events.TopicBookingEvents, events.BookingCancelled, events.BookingCancelledEvent{
		BookingID:         bk.ID(),
		CancelledBy:       userID,
		Reason:            bookingDomain.ReasonUserRequest,
		RefundAmountCents: refund.AmountCents,
		RefundTier:        string(refund.Tier),
		OccurredAt:        now,
	})

	result := toBookingDTO(bk)
	summary := RefundSummary{RefundAmountCents: refund.AmountCents, RefundTier: string(refund.Tier)}
	return &result, &summary, nil
}

// RescheduleBooking moves the user's booking to a new interval. The new
// slot is conflict-checked in the same critical section as the write,
// excluding the booking itself.
func (s *BookingService) RescheduleBooking(ctx context.Context, userID, bookingID uuid.UUID, newStart, newEnd time.Time, reason string) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if bk.UserID() != userID {
		return nil, s.denyAccess(userID, bookingID, "reschedule")
	}

	now := s.now()
	if bk.StartTime().Sub(now) < s.policy.RescheduleCutoff {
		return nil, domain.NewValidationError(fmt.Sprintf("booking can no longer be rescheduled within %s of its start", s.policy.RescheduleCutoff))
	}

	originalStart, originalEnd := bk.StartTime(), bk.EndTime()
	if err := bk.Reschedule(newStart, newEnd, userID, reason, now); err != nil {
		return nil, err
	}

	bk.IncrementVersion()
	if err := s.repo.UpdateSlot(ctx, bk); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.TopicBookingEvents, events.BookingRescheduled, events.BookingRescheduledEvent{
		BookingID:     bk.ID(),
		OriginalStart: originalStart,
		OriginalEnd:   originalEnd,
		NewStart:      bk.StartTime(),
		NewEnd:        bk.EndTime(),
		OccurredAt:    now,
	})

	result := toBookingDTO(bk)
	return &result, nil
}

// ExpirePendingBookings force-cancels pending bookings older than the
// given horizon, releasing their slots. Idempotent: a booking another
// sweep or a concurrent payment already moved on is skipped.
func (s *BookingService) ExpirePendingBookings(ctx context.Context, olderThan time.Duration) (int, error) {
	now := s.now()
	cutoff := now.Add(-olderThan)

	stale, err := s.repo.FindExpiredPending(ctx, cutoff, expiryBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, bk := range stale {
		refund := bookingDomain.Refund{Tier: bookingDomain.RefundTierNone}
		if err := bk.Cancel(uuid.Nil, bookingDomain.ReasonPaymentTimeout, refund, "", now); err != nil {
			continue
		}
		bk.IncrementVersion()
		if err := s.repo.Update(ctx, bk); err != nil {
			if domain.IsConflict(err) {
				// Lost the race to a payment confirmation or another sweep.
				continue
			}
			return expired, err
		}
		expired++

		s.publishEvent(ctx, events.TopicBookingEvents, events.BookingExpired, events.BookingExpiredEvent{
			BookingID:  bk.ID(),
			SpaceID:    bk.SpaceID(),
			OccurredAt: now,
		})
	}

	if expired > 0 {
		s.logger.Info("expired stale pending bookings", zap.Int("count", expired))
	}
	return expired, nil
}

// ConfirmBookingPayment moves a pending booking to upcoming after its
// payment cleared. Invoked by the payment event consumer.
func (s *BookingService) ConfirmBookingPayment(ctx context.Context, bookingID uuid.UUID) error {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return err
	}

	now := s.now()
	if err := bk.ConfirmPayment(now); err != nil {
		return err
	}

	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return err
	}

	s.publishEvent(ctx, events.TopicBookingEvents, events.BookingConfirmed, events.BookingConfirmedEvent{
		BookingID:  bk.ID(),
		UserID:     bk.UserID(),
		SpaceID:    bk.SpaceID(),
		OccurredAt: now,
	})
	return nil
}

// FailBookingPayment records a failed payment attempt. The booking stays
// pending and is released by the expiry sweep.
func (s *BookingService) FailBookingPayment(ctx context.Context, bookingID uuid.UUID) error {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return err
	}

	bk.MarkPaymentFailed(s.now())
	bk.IncrementVersion()
	return s.repo.Update(ctx, bk)
}

// --- Admin methods ---

// BookingStatsDTO holds booking statistics for the admin dashboard.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// ListAllBookings returns a paginated list of all bookings (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, page, limit int) ([]BookingDTO, int64, error) {
	bookings, total, err := s.repo.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	return toBookingDTOs(bookings), total, nil
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}
	return &BookingStatsDTO{TotalBookings: total, ByStatus: counts}, nil
}

// --- Helpers ---

// unitBasePrice derives the per-unit base rate from the catalog's hourly
// rate and the booking unit length.
func unitBasePrice(pricePerHourCents int64, bookingType bookingDomain.BookingType) int64 {
	hoursPerUnit := int64(bookingType.UnitLength() / time.Hour)
	return pricePerHourCents * hoursPerUnit
}

func validateStatusFilter(status string) error {
	if status == "" {
		return nil
	}
	if _, err := bookingDomain.ParseBookingStatus(status); err != nil {
		return domain.NewValidationError(err.Error())
	}
	return nil
}

// denyAccess shapes an ownership violation as not-found so booking IDs
// cannot be enumerated, while logging it in a distinct audit category.
func (s *BookingService) denyAccess(callerID, bookingID uuid.UUID, operation string) error {
	s.logger.Warn("booking access denied",
		zap.String("category", "authorization"),
		zap.String("operation", operation),
		zap.String("caller_id", callerID.String()),
		zap.String("booking_id", bookingID.String()),
	)
	return domain.NewNotFoundError("booking", bookingID.String())
}

func (s *BookingService) publishStatusEvent(ctx context.Context, bk *bookingDomain.Booking, target bookingDomain.BookingStatus, now time.Time) {
	switch target {
	case bookingDomain.StatusUpcoming:
		s.publishEvent(ctx, events.TopicBookingEvents, events.BookingConfirmed, events.BookingConfirmedEvent{
			BookingID:  bk.ID(),
			UserID:     bk.UserID(),
			SpaceID:    bk.SpaceID(),
			OccurredAt: now,
		})
	case bookingDomain.StatusCompleted:
		s.publishEvent(ctx, events.TopicBookingEvents, events.BookingCompleted, events.BookingCompletedEvent{
			BookingID:         bk.ID(),
			SpaceID:           bk.SpaceID(),
			HostEarningsCents: bk.HostEarningsCents(),
			OccurredAt:        now,
		})
	case bookingDomain.StatusCancelled:
		ci := bk.Cancellation()
		s.publishEvent(ctx, events.TopicBookingEvents, events.BookingCancelled, events.BookingCancelledEvent{
			BookingID:         bk.ID(),
			CancelledBy:       ci.CancelledBy,
			Reason:            ci.Reason,
			RefundAmountCents: ci.RefundAmountCents,
			RefundTier:        string(ci.RefundTier),
			OccurredAt:        now,
		})
	}
}

func (s *BookingService) publishEvent(ctx context.Context, topic, eventType string, data interface{}) {
	cloudEvent, err := kafka.NewCloudEvent(eventSource, eventType, data)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}
	if err := s.producer.PublishEvent(ctx, topic, cloudEvent); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	return BookingDTO{
		ID:                bk.ID(),
		UserID:            bk.UserID(),
		SpaceID:           bk.SpaceID(),
		BookingType:       bk.BookingType().String(),
		StartTime:         bk.StartTime(),
		EndTime:           bk.EndTime(),
		DurationUnits:     bk.DurationUnits(),
		BasePriceCents:    bk.BasePriceCents(),
		MarkupPercentage:  bk.MarkupPercentage(),
		MarkupAmountCents: bk.MarkupAmountCents(),
		TotalAmountCents:  bk.TotalAmountCents(),
		HostEarningsCents: bk.HostEarningsCents(),
		GuestCount:        bk.GuestCount(),
		SpecialRequests:   bk.SpecialRequests(),
		HostNotes:         bk.HostNotes(),
		Status:            bk.Status().String(),
		PaymentStatus:     bk.PaymentStatus().String(),
		ExpiresAt:         bk.ExpiresAt(),
		Cancellation:      bk.Cancellation(),
		RescheduleHistory: bk.RescheduleHistory(),
		IsActive:          bk.IsActive(),
		Version:           bk.Version(),
		CreatedAt:         bk.CreatedAt(),
		UpdatedAt:         bk.UpdatedAt(),
	}
}

func toBookingDTOs(bookings []*bookingDomain.Booking) []BookingDTO {
	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}
	return dtos
}
