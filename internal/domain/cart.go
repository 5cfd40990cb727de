package domain

import (
	"time"

	"github.com/google/uuid"
)

// Payment methods accepted at checkout
const (
	PaymentMethodCard = "card"
	PaymentMethodCash = "cash"
)

// CartItem is one (product, quantity) line in a user's cart. A product
// appears at most once per cart; adding it again increments the
// quantity instead of creating a second line.
type CartItem struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Order holds the delivery and payment details submitted at checkout
type Order struct {
	ID            uuid.UUID `json:"id" db:"id"`
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	FullName      string    `json:"full_name" db:"full_name"`
	Phone         string    `json:"phone" db:"phone"`
	Email         string    `json:"email" db:"email"`
	City          string    `json:"city" db:"city"`
	Address       string    `json:"address" db:"address"`
	PaymentMethod string    `json:"payment_method" db:"payment_method"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Purchase is an immutable history record: one row per cart line at
// the moment an order was placed. Rows are never updated or deleted.
type Purchase struct {
	ID           uuid.UUID `json:"id" db:"id"`
	OrderID      uuid.UUID `json:"order_id" db:"order_id"`
	ProductID    uuid.UUID `json:"product_id" db:"product_id"`
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	Qty          int       `json:"qty" db:"qty"`
	PurchaseDate time.Time `json:"purchase_date" db:"purchase_date"`
}
