package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product represents a product in the catalog. The article is the
// business-assigned product code and acts as the natural key during
// bulk imports: an incoming row with a known article updates the
// existing product instead of creating a new one.
type Product struct {
	ID         uuid.UUID `json:"id" db:"id"`
	CategoryID uuid.UUID `json:"category_id" db:"category_id"`
	Title      string    `json:"title" db:"title"`
	Article    string    `json:"article" db:"article"`
	Price      float64   `json:"price" db:"price"`
	Quantity   int       `json:"quantity" db:"quantity"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// InStock reports whether the requested quantity can be taken from stock.
func (p *Product) InStock(quantity int) bool {
	return p.Quantity > 0 && p.Quantity >= quantity
}

// Category represents a product category. Categories are created on
// demand during import when a row references an unseen category name.
type Category struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
