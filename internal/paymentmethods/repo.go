package paymentmethods

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/florist-backend/pkg/db/models"
)

// Repository reads payment methods.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ActiveMethods returns active methods ordered by sort order, then name.
func (r *Repository) ActiveMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	var methods []models.PaymentMethod
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_order ASC").
		Order("name ASC").
		Find(&methods).Error; err != nil {
		return nil, err
	}
	return methods, nil
}
