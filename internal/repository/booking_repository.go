package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	bookingDomain "github.com/workhive/service-booking/internal/domain/booking"
	"github.com/workhive/service-booking/internal/pkg/domain"
)

// occupyingStatuses are the statuses that hold a time slot on a space.
var occupyingStatuses = []string{
	string(bookingDomain.StatusPending),
	string(bookingDomain.StatusUpcoming),
	string(bookingDomain.StatusInProgress),
}

// conflictConstraint is the exclusion constraint backing conflict detection
// at the storage layer. See migrations/000001_create_bookings.up.sql.
const conflictConstraint = "bookings_no_overlap"

const writeAttempts = 3

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID            uuid.UUID       `gorm:"type:uuid;index;not null"`
	SpaceID           uuid.UUID       `gorm:"type:uuid;index;not null"`
	BookingType       string          `gorm:"not null;size:10"`
	StartTime         time.Time       `gorm:"not null;index"`
	EndTime           time.Time       `gorm:"not null"`
	BasePriceCents    int64           `gorm:"not null"`
	MarkupPercentage  int             `gorm:"not null"`
	DurationUnits     int             `gorm:"not null"`
	MarkupAmountCents int64           `gorm:"not null"`
	TotalAmountCents  int64           `gorm:"not null"`
	HostEarningsCents int64           `gorm:"not null"`
	GuestCount        int             `gorm:"not null"`
	SpecialRequests   string          `gorm:"size:1000"`
	HostNotes         string          `gorm:"size:1000"`
	Status            string          `gorm:"not null;size:20;index"`
	PaymentStatus     string          `gorm:"not null;size:20"`
	ExpiresAt         *time.Time      `gorm:"index"`
	Cancellation      json.RawMessage `gorm:"type:jsonb"`
	RescheduleHistory json.RawMessage `gorm:"type:jsonb"`
	IsActive          bool            `gorm:"not null;default:true"`
	Version           int64           `gorm:"not null;default:1"`
	CreatedAt         time.Time       `gorm:"not null;index"`
	UpdatedAt         time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// GormBookingRepository is the GORM-based implementation of the booking
// Repository. The conflict-check-plus-write critical section is serialized
// per space with a transaction-scoped advisory lock; the bookings_no_overlap
// exclusion constraint is the storage-layer backstop.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByUserID retrieves a user's bookings with pagination.
func (r *GormBookingRepository) FindByUserID(ctx context.Context, userID uuid.UUID, status string, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	q := r.db.WithContext(ctx).Model(&BookingModel{}).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	return r.paginate(q, page, limit)
}

// FindByHostID retrieves bookings across all spaces owned by the host.
func (r *GormBookingRepository) FindByHostID(ctx context.Context, hostID uuid.UUID, status string, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	q := r.db.WithContext(ctx).Model(&BookingModel{}).
		Joins("JOIN spaces ON spaces.id = bookings.space_id").
		Where("spaces.host_id = ?", hostID)
	if status != "" {
		q = q.Where("bookings.status = ?", status)
	}
	return r.paginate(q, page, limit)
}

func (r *GormBookingRepository) paginate(q *gorm.DB, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := q.Order("bookings.created_at DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find bookings: %w", err)
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i, m := range models {
		bk, err := toDomainBooking(&m)
		if err != nil {
			return nil, 0, err
		}
		bookings[i] = bk
	}
	return bookings, total, nil
}

// HasConflict reports whether any slot-occupying booking on the space
// overlaps the half-open interval [start, end).
func (r *GormBookingRepository) HasConflict(ctx context.Context, spaceID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	return hasConflictTx(r.db.WithContext(ctx), spaceID, start, end, excludeID)
}

func hasConflictTx(tx *gorm.DB, spaceID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	q := tx.Model(&BookingModel{}).
		Where("space_id = ?", spaceID).
		Where("is_active").
		Where("status IN ?", occupyingStatuses).
		Where("tstzrange(start_time, end_time, '[)') && tstzrange(?, ?, '[)')", start, end)
	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}

	var cnt int64
	if err := q.Count(&cnt).Error; err != nil {
		return false, fmt.Errorf("failed to check booking conflicts: %w", err)
	}
	return cnt > 0, nil
}

// lockSpace takes a transaction-scoped advisory lock on the space, making
// conflict-check-plus-write linearizable per space.
func lockSpace(tx *gorm.DB, spaceID uuid.UUID) error {
	if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", spaceID.String()).Error; err != nil {
		return fmt.Errorf("failed to lock space %s: %w", spaceID, err)
	}
	return nil
}

// CreateInSlot persists a new booking after an atomic conflict check on its
// space. Transient storage failures retry the whole critical section a
// bounded number of times.
func (r *GormBookingRepository) CreateInSlot(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	return r.retryWrite(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := lockSpace(tx, bk.SpaceID()); err != nil {
				return err
			}
			conflict, err := hasConflictTx(tx, bk.SpaceID(), bk.StartTime(), bk.EndTime(), nil)
			if err != nil {
				return err
			}
			if conflict {
				return domain.NewConflictError("the requested time slot is already booked")
			}
			if err := tx.Create(model).Error; err != nil {
				return translateWriteError(err)
			}
			return nil
		})
	})
}

// UpdateSlot persists an interval change after an atomic conflict check
// excluding the booking itself, with optimistic locking.
func (r *GormBookingRepository) UpdateSlot(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	id := bk.ID()
	return r.retryWrite(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := lockSpace(tx, bk.SpaceID()); err != nil {
				return err
			}
			conflict, err := hasConflictTx(tx, bk.SpaceID(), bk.StartTime(), bk.EndTime(), &id)
			if err != nil {
				return err
			}
			if conflict {
				return domain.NewConflictError("the requested time slot is already booked")
			}
			return applyUpdate(tx, model)
		})
	})
}

// Update persists non-interval changes with optimistic locking.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}
	return r.retryWrite(func() error {
		return applyUpdate(r.db.WithContext(ctx), model)
	})
}

// applyUpdate writes all mutable columns, guarded by the version column.
// IncrementVersion has already been called, so the row must still hold
// version-1.
func applyUpdate(tx *gorm.DB, model *BookingModel) error {
	result := tx.Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version-1).
		Updates(map[string]interface{}{
			"booking_type":        model.BookingType,
			"start_time":          model.StartTime,
			"end_time":            model.EndTime,
			"base_price_cents":    model.BasePriceCents,
			"markup_percentage":   model.MarkupPercentage,
			"duration_units":      model.DurationUnits,
			"markup_amount_cents": model.MarkupAmountCents,
			"total_amount_cents":  model.TotalAmountCents,
			"host_earnings_cents": model.HostEarningsCents,
			"guest_count":         model.GuestCount,
			"special_requests":    model.SpecialRequests,
			"host_notes":          model.HostNotes,
			"status":              model.Status,
			"payment_status":      model.PaymentStatus,
			"expires_at":          model.ExpiresAt,
			"cancellation":        model.Cancellation,
			"reschedule_history":  model.RescheduleHistory,
			"is_active":           model.IsActive,
			"version":             model.Version,
			"updated_at":          model.UpdatedAt,
		})
	if result.Error != nil {
		return translateWriteError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction")
	}
	return nil
}

// FindExpiredPending retrieves pending bookings created before the cutoff.
func (r *GormBookingRepository) FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*bookingDomain.Booking, error) {
	var models []BookingModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(bookingDomain.StatusPending)).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find expired pending bookings: %w", err)
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i, m := range models {
		bk, err := toDomainBooking(&m)
		if err != nil {
			return nil, err
		}
		bookings[i] = bk
	}
	return bookings, nil
}

// ListAll retrieves all bookings with pagination (admin).
func (r *GormBookingRepository) ListAll(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.paginate(r.db.WithContext(ctx).Model(&BookingModel{}), page, limit)
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// EnsureConflictGuard installs the exclusion constraint that prevents
// overlapping active bookings on a space. Used on the dev auto-migrate path;
// production schemas get it from the SQL migrations.
func EnsureConflictGuard(db *gorm.DB) error {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS btree_gist").Error; err != nil {
		return fmt.Errorf("failed to create btree_gist extension: %w", err)
	}
	stmt := fmt.Sprintf(`DO $$ BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '%s') THEN
			ALTER TABLE bookings ADD CONSTRAINT %s
			EXCLUDE USING gist (space_id WITH =, tstzrange(start_time, end_time, '[)') WITH &&)
			WHERE (is_active AND status IN ('pending', 'upcoming', 'in_progress'));
		END IF;
	END $$`, conflictConstraint, conflictConstraint)
	if err := db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("failed to create conflict guard: %w", err)
	}
	return nil
}

// retryWrite retries a write on transient storage failures. Each retry runs
// the whole critical section from scratch.
func (r *GormBookingRepository) retryWrite(write func() error) error {
	var err error
	for attempt := 0; attempt < writeAttempts; attempt++ {
		err = write()
		if err == nil || !isTransient(err) {
			return err
		}
	}
	return fmt.Errorf("storage write failed after %d attempts: %w", writeAttempts, err)
}

// isTransient reports whether the error is a serialization or deadlock
// failure worth retrying.
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01":
		return true
	}
	return false
}

// translateWriteError maps storage-level constraint violations onto the
// domain error taxonomy.
func translateWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23P01":
			if pgErr.ConstraintName == conflictConstraint {
				return domain.NewConflictError("the requested time slot is already booked")
			}
		case "23505":
			return domain.NewConflictError("booking already exists")
		}
	}
	return fmt.Errorf("failed to write booking: %w", err)
}

// --- Conversion helpers ---

func toBookingModel(bk *bookingDomain.Booking) (*BookingModel, error) {
	var cancellation json.RawMessage
	if bk.Cancellation() != nil {
		data, err := json.Marshal(bk.Cancellation())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal cancellation: %w", err)
		}
		cancellation = data
	}

	var history json.RawMessage
	if len(bk.RescheduleHistory()) > 0 {
		data, err := json.Marshal(bk.RescheduleHistory())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal reschedule history: %w", err)
		}
		history = data
	}

	return &BookingModel{
		ID:                bk.ID(),
		UserID:            bk.UserID(),
		SpaceID:           bk.SpaceID(),
		BookingType:       string(bk.BookingType()),
		StartTime:         bk.StartTime(),
		EndTime:           bk.EndTime(),
		BasePriceCents:    bk.BasePriceCents(),
		MarkupPercentage:  bk.MarkupPercentage(),
		DurationUnits:     bk.DurationUnits(),
		MarkupAmountCents: bk.MarkupAmountCents(),
		TotalAmountCents:  bk.TotalAmountCents(),
		HostEarningsCents: bk.HostEarningsCents(),
		GuestCount:        bk.GuestCount(),
		SpecialRequests:   bk.SpecialRequests(),
		HostNotes:         bk.HostNotes(),
		Status:            string(bk.Status()),
		PaymentStatus:     string(bk.PaymentStatus()),
		ExpiresAt:         bk.ExpiresAt(),
		Cancellation:      cancellation,
		RescheduleHistory: history,
		IsActive:          bk.IsActive(),
		Version:           bk.Version(),
		CreatedAt:         bk.CreatedAt(),
		UpdatedAt:         bk.UpdatedAt(),
	}, nil
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, err
	}

	bookingType, err := bookingDomain.ParseBookingType(m.BookingType)
	if err != nil {
		return nil, err
	}

	var cancellation *bookingDomain.CancellationInfo
	if len(m.Cancellation) > 0 {
		var ci bookingDomain.CancellationInfo
		if err := json.Unmarshal(m.Cancellation, &ci); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cancellation: %w", err)
		}
		cancellation = &ci
	}

	var history []bookingDomain.RescheduleEntry
	if len(m.RescheduleHistory) > 0 {
		if err := json.Unmarshal(m.RescheduleHistory, &history); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reschedule history: %w", err)
		}
	}

	return bookingDomain.Reconstruct(bookingDomain.ReconstructedBooking{
		ID:                m.ID,
		UserID:            m.UserID,
		SpaceID:           m.SpaceID,
		BookingType:       bookingType,
		StartTime:         m.StartTime,
		EndTime:           m.EndTime,
		BasePriceCents:    m.BasePriceCents,
		MarkupPercentage:  m.MarkupPercentage,
		DurationUnits:     m.DurationUnits,
		MarkupAmountCents: m.MarkupAmountCents,
		TotalAmountCents:  m.TotalAmountCents,
		HostEarningsCents: m.HostEarningsCents,
		GuestCount:        m.GuestCount,
		SpecialRequests:   m.SpecialRequests,
		HostNotes:         m.HostNotes,
		Status:            status,
		PaymentStatus:     bookingDomain.PaymentStatus(m.PaymentStatus),
		ExpiresAt:         m.ExpiresAt,
		Cancellation:      cancellation,
		RescheduleHistory: history,
		IsActive:          m.IsActive,
		Version:           m.Version,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}), nil
}
