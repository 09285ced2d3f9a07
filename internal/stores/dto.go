package stores

import "github.com/angelmondragon/florist-backend/pkg/db/models"

// StoreDTO is the storefront shape of a pickup store.
type StoreDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Phone      string `json:"phone"`
}

func FromModel(store models.PickupStore) StoreDTO {
	return StoreDTO{
		ID:         store.ID,
		Name:       store.Name,
		Address:    store.Address,
		City:       store.City,
		PostalCode: store.PostalCode,
		Phone:      store.Phone,
	}
}

func FromModels(stores []models.PickupStore) []StoreDTO {
	out := make([]StoreDTO, 0, len(stores))
	for _, store := range stores {
		out = append(out, FromModel(store))
	}
	return out
}

// Snapshot freezes a store into the order's pickup reference.
func Snapshot(store models.PickupStore) *models.PickupStoreRef {
	return &models.PickupStoreRef{
		StoreID:    store.ID,
		Name:       store.Name,
		Address:    store.Address,
		City:       store.City,
		PostalCode: store.PostalCode,
		Phone:      store.Phone,
	}
}
