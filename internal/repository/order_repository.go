package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"shopmart/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrNotEnoughStock = errors.New("not enough quantity in stock")
	ErrOrderNotFound  = errors.New("order not found")
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	// PlaceOrder converts a set of cart lines into an order inside one
	// transaction: the order row is written, one purchase row is
	// appended per line, product quantities are written off, and the
	// cart lines are deleted. If any product no longer has enough
	// stock the whole transaction rolls back and ErrNotEnoughStock is
	// returned; no partial state is ever visible outside it.
	PlaceOrder(ctx context.Context, order *domain.Order, lines []*domain.CartItem) ([]*domain.Purchase, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

// PlaceOrder runs the checkout transaction
func (r *orderRepository) PlaceOrder(ctx context.Context, order *domain.Order, lines []*domain.CartItem) ([]*domain.Purchase, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin checkout transaction: %w", err)
	}
	defer tx.Rollback()

	orderQuery := `
		INSERT INTO orders (id, user_id, full_name, phone, email, city, address, payment_method, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = tx.ExecContext(
		ctx,
		orderQuery,
		order.ID,
		order.UserID,
		order.FullName,
		order.Phone,
		order.Email,
		order.City,
		order.Address,
		order.PaymentMethod,
		order.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	// Write off stock line by line. The WHERE guard keeps quantity
	// from ever going negative: zero rows affected means someone else
	// bought the stock since the lines were added to the cart.
	writeOffQuery := `
		UPDATE products
		SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity > 0 AND quantity >= $2
	`
	for _, line := range lines {
		result, err := tx.ExecContext(ctx, writeOffQuery, line.ProductID, line.Quantity)
		if err != nil {
			return nil, fmt.Errorf("failed to write off stock: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return nil, ErrNotEnoughStock
		}
	}

	// One immutable purchase row per cart line, inserted in bulk
	purchases := make([]*domain.Purchase, 0, len(lines))
	var (
		placeholders []string
		args         []interface{}
	)
	now := time.Now()
	for i, line := range lines {
		purchase := &domain.Purchase{
			ID:           uuid.New(),
			OrderID:      order.ID,
			ProductID:    line.ProductID,
			UserID:       order.UserID,
			Qty:          line.Quantity,
			PurchaseDate: now,
		}
		purchases = append(purchases, purchase)

		base := i * 6
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6))
		args = append(args, purchase.ID, purchase.OrderID, purchase.ProductID, purchase.UserID, purchase.Qty, purchase.PurchaseDate)
	}

	purchaseQuery := `
		INSERT INTO purchases (id, order_id, product_id, user_id, qty, purchase_date)
		VALUES ` + strings.Join(placeholders, ", ")
	if _, err := tx.ExecContext(ctx, purchaseQuery, args...); err != nil {
		return nil, fmt.Errorf("failed to record purchase history: %w", err)
	}

	clearQuery := `DELETE FROM cart_items WHERE user_id = $1`
	if _, err := tx.ExecContext(ctx, clearQuery, order.UserID); err != nil {
		return nil, fmt.Errorf("failed to clear cart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit checkout transaction: %w", err)
	}

	return purchases, nil
}

// FindByID retrieves an order by ID using parameterized queries
func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `
		SELECT id, user_id, full_name, phone, email, city, address, payment_method, created_at
		FROM orders
		WHERE id = $1
	`

	order := &domain.Order{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.UserID,
		&order.FullName,
		&order.Phone,
		&order.Email,
		&order.City,
		&order.Address,
		&order.PaymentMethod,
		&order.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}

	return order, nil
}
