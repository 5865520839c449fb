// Package scheduler runs the periodic background jobs of the booking
// service.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Expirer releases pending bookings older than the given horizon and
// reports how many were expired.
type Expirer interface {
	ExpirePendingBookings(ctx context.Context, olderThan time.Duration) (int, error)
}

// ExpirySweeper periodically cancels pending bookings whose payment never
// arrived, freeing their slots for other users. Running more than one
// instance is safe; optimistic locking makes a double sweep a no-op.
type ExpirySweeper struct {
	service  Expirer
	logger   *zap.Logger
	interval time.Duration
	ttl      time.Duration
}

// NewExpirySweeper creates a sweeper firing every interval and expiring
// pending bookings older than ttl.
func NewExpirySweeper(service Expirer, logger *zap.Logger, interval, ttl time.Duration) *ExpirySweeper {
	return &ExpirySweeper{
		service:  service,
		logger:   logger,
		interval: interval,
		ttl:      ttl,
	}
}

// Run blocks sweeping on the configured interval until the context is
// cancelled. A failed sweep is logged and retried on the next tick.
func (s *ExpirySweeper) Run(ctx context.Context) {
	s.logger.Info("starting expiry sweeper",
		zap.Duration("interval", s.interval),
		zap.Duration("pending_ttl", s.ttl),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.service.ExpirePendingBookings(ctx, s.ttl); err != nil {
				s.logger.Error("expiry sweep failed", zap.Error(err))
			}
		}
	}
}
