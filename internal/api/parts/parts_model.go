package parts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Part is the catalogue record. ImageRef is the stored blob reference and may
// be null; ImageURL is derived from it at read time and always set.
type Part struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Brand     *string         `json:"brand"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Category  *string         `json:"category"`
	ImageRef  *string         `json:"imageRef"`
	ImageURL  string          `json:"imageUrl"`
	CreatedAt time.Time       `json:"createdAt"`
}

// CreatePartInput is the decoded "data" field of a create request.
type CreatePartInput struct {
	Name     string          `json:"name"`
	Brand    *string         `json:"brand"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	Category *string         `json:"category"`
}

// UpdatePartInput is the decoded "data" field of an update request. Every
// field is a pointer so absent keys leave the stored value untouched.
type UpdatePartInput struct {
	Name     *string          `json:"name"`
	Brand    *string          `json:"brand"`
	Price    *decimal.Decimal `json:"price"`
	Stock    *int             `json:"stock"`
	Category *string          `json:"category"`
}

// Stats summarizes the catalogue.
type Stats struct {
	TotalParts int `json:"totalParts"`
	Categories int `json:"categories"`
}
