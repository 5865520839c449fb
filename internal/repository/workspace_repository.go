package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/workhive/service-booking/internal/domain/workspace"
	"github.com/workhive/service-booking/internal/pkg/domain"
)

// SpaceModel is the GORM model for the spaces table. The catalog service
// owns and writes this table; the booking service only reads it.
type SpaceModel struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	HostID            uuid.UUID `gorm:"type:uuid;index;not null"`
	Name              string    `gorm:"size:255"`
	PricePerHourCents int64     `gorm:"not null"`
	Capacity          int       `gorm:"not null"`
	IsActive          bool      `gorm:"not null;default:true"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName returns the table name for the GORM model.
func (SpaceModel) TableName() string {
	return "spaces"
}

// GormWorkspaceCatalog is the read-only GORM implementation of the
// workspace Catalog.
type GormWorkspaceCatalog struct {
	db *gorm.DB
}

// NewGormWorkspaceCatalog creates a new GormWorkspaceCatalog.
func NewGormWorkspaceCatalog(db *gorm.DB) *GormWorkspaceCatalog {
	return &GormWorkspaceCatalog{db: db}
}

// GetActiveSpace retrieves a space that exists and is active.
func (c *GormWorkspaceCatalog) GetActiveSpace(ctx context.Context, spaceID uuid.UUID) (*workspace.Space, error) {
	space, err := c.GetSpace(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	if !space.IsActive {
		return nil, domain.NewNotFoundError("space", spaceID.String())
	}
	return space, nil
}

// GetSpace retrieves a space regardless of its active flag.
func (c *GormWorkspaceCatalog) GetSpace(ctx context.Context, spaceID uuid.UUID) (*workspace.Space, error) {
	var model SpaceModel
	if err := c.db.WithContext(ctx).Where("id = ?", spaceID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("space", spaceID.String())
		}
		return nil, fmt.Errorf("failed to find space: %w", err)
	}
	return &workspace.Space{
		ID:                model.ID,
		HostID:            model.HostID,
		PricePerHourCents: model.PricePerHourCents,
		Capacity:          model.Capacity,
		IsActive:          model.IsActive,
	}, nil
}
