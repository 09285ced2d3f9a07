package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeliveryZone is a named delivery area with a flat fee and an optional free-over threshold.
type DeliveryZone struct {
	ID                string              `gorm:"column:id;primaryKey"`
	Name              string              `gorm:"column:name;not null"`
	EstimatedTime     string              `gorm:"column:estimated_time;not null;default:''"`
	Price             decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null"`
	FreeOverThreshold decimal.NullDecimal `gorm:"column:free_over_threshold;type:numeric(12,2)"`
	IsActive          bool                `gorm:"column:is_active;not null;default:true"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// Threshold returns the free-over threshold when one is configured.
func (z DeliveryZone) Threshold() (decimal.Decimal, bool) {
	if !z.FreeOverThreshold.Valid {
		return decimal.Decimal{}, false
	}
	return z.FreeOverThreshold.Decimal, true
}
