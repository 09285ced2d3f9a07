package deliveryzones

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/florist-backend/pkg/db/models"
)

// ZoneDTO is the storefront shape of a delivery zone.
type ZoneDTO struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	EstimatedTime     string           `json:"estimatedTime"`
	Price             decimal.Decimal  `json:"price"`
	FreeOverThreshold *decimal.Decimal `json:"freeOverThreshold"`
}

func FromModel(zone models.DeliveryZone) ZoneDTO {
	dto := ZoneDTO{
		ID:            zone.ID,
		Name:          zone.Name,
		EstimatedTime: zone.EstimatedTime,
		Price:         zone.Price,
	}
	if threshold, ok := zone.Threshold(); ok {
		dto.FreeOverThreshold = &threshold
	}
	return dto
}

func FromModels(zones []models.DeliveryZone) []ZoneDTO {
	out := make([]ZoneDTO, 0, len(zones))
	for _, zone := range zones {
		out = append(out, FromModel(zone))
	}
	return out
}
