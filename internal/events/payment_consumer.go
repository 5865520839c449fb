package events

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/google/uuid"

	"github.com/workhive/service-booking/internal/pkg/kafka"
)

// PaymentApplier is the slice of the booking service the consumer needs.
type PaymentApplier interface {
	ConfirmBookingPayment(ctx context.Context, bookingID uuid.UUID) error
	FailBookingPayment(ctx context.Context, bookingID uuid.UUID) error
}

// PaymentEventConsumer consumes payment.events and applies payment
// outcomes to bookings. Malformed messages are logged and dropped, never
// retried; handler failures are logged and the offset is committed so a
// poison message cannot wedge the partition.
type PaymentEventConsumer struct {
	consumer *kafka.Consumer
	service  PaymentApplier
	logger   *zap.Logger
}

// NewPaymentEventConsumer creates a consumer bound to the payment topic.
func NewPaymentEventConsumer(brokers []string, groupID string, service PaymentApplier, logger *zap.Logger) *PaymentEventConsumer {
	return &PaymentEventConsumer{
		consumer: kafka.NewConsumer(brokers, groupID, TopicPaymentEvents, logger),
		service:  service,
		logger:   logger,
	}
}

// Start consumes until the context is cancelled.
func (c *PaymentEventConsumer) Start(ctx context.Context) error {
	c.logger.Info("starting payment event consumer", zap.String("topic", TopicPaymentEvents))
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying reader.
func (c *PaymentEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *PaymentEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	event, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Warn("dropping malformed payment event",
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return nil
	}

	switch event.Type {
	case PaymentSucceeded, PaymentFailed:
	default:
		// Topic carries other event types this service does not act on.
		return nil
	}

	var payload PaymentEvent
	if err := event.ParseData(&payload); err != nil {
		c.logger.Warn("dropping payment event with malformed payload",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
			zap.Error(err),
		)
		return nil
	}
	if payload.BookingID == uuid.Nil {
		c.logger.Warn("dropping payment event without booking id",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
		)
		return nil
	}

	var applyErr error
	if event.Type == PaymentSucceeded {
		applyErr = c.service.ConfirmBookingPayment(ctx, payload.BookingID)
	} else {
		applyErr = c.service.FailBookingPayment(ctx, payload.BookingID)
	}
	if applyErr != nil {
		c.logger.Error("failed to apply payment event",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
			zap.String("booking_id", payload.BookingID.String()),
			zap.Error(applyErr),
		)
	}
	return nil
}
