package dto

import "github.com/yptunaskarya/perpus-api/internal/models"

// CreateInventoryRequest registers a consumable with its opening stock.
type CreateInventoryRequest struct {
	Name     string `json:"name" validate:"required"`
	Category string `json:"category"`
	Unit     string `json:"unit"`
	Stock    int    `json:"stock" validate:"min=0"`
	MinStock int    `json:"min_stock" validate:"min=0"`
	ImageURL string `json:"image_url"`
}

// UpdateInventoryRequest mutates descriptive fields. Stock only moves through
// movement requests.
type UpdateInventoryRequest struct {
	Name     string `json:"name" validate:"required"`
	Category string `json:"category"`
	Unit     string `json:"unit"`
	MinStock int    `json:"min_stock" validate:"min=0"`
	ImageURL string `json:"image_url"`
}

// MovementRequest applies one stock movement to a consumable.
type MovementRequest struct {
	Type      models.InventoryLogType `json:"type" validate:"required,oneof=in out"`
	Quantity  int                     `json:"quantity" validate:"required,min=1"`
	StudentID *string                 `json:"student_id"`
	Notes     string                  `json:"notes"`
}

// MovementResponse returns the item after a movement together with the appended log.
type MovementResponse struct {
	Item models.InventoryItem `json:"item"`
	Log  models.InventoryLog  `json:"log"`
}
