package paymentmethods

import "github.com/angelmondragon/florist-backend/pkg/db/models"

type MethodDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

func FromModels(methods []models.PaymentMethod) []MethodDTO {
	out := make([]MethodDTO, 0, len(methods))
	for _, m := range methods {
		out = append(out, MethodDTO{ID: m.ID, Name: m.Name, Description: m.Description, Icon: m.Icon})
	}
	return out
}
