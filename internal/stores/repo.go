package stores

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/florist-backend/pkg/db/models"
)

// Repository reads pickup stores.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to pickup store queries.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ActivePickupStores returns active stores ordered by name.
func (r *Repository) ActivePickupStores(ctx context.Context) ([]models.PickupStore, error) {
	var stores []models.PickupStore
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&stores).Error; err != nil {
		return nil, err
	}
	return stores, nil
}
