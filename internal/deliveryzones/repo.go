package deliveryzones

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/florist-backend/pkg/db/models"
)

// Repository reads delivery zones.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to delivery zone queries.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ActiveZones returns active zones ordered by price, then name.
func (r *Repository) ActiveZones(ctx context.Context) ([]models.DeliveryZone, error) {
	var zones []models.DeliveryZone
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("price ASC").
		Order("name ASC").
		Find(&zones).Error; err != nil {
		return nil, err
	}
	return zones, nil
}
