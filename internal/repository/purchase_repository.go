package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"shopmart/internal/domain"

	"github.com/google/uuid"
)

// ReportRow is one purchase joined with its product, as consumed by
// the sales report.
type ReportRow struct {
	PurchaseDate time.Time
	ProductTitle string
	ProductPrice float64
	Qty          int
}

// PurchaseRepository defines the interface for purchase history access.
// Purchase rows are written by OrderRepository.PlaceOrder and are
// read-only afterwards.
type PurchaseRepository interface {
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*domain.Purchase, error)
	ReportRows(ctx context.Context) ([]*ReportRow, error)
}

type purchaseRepository struct {
	db *sql.DB
}

// NewPurchaseRepository creates a new instance of PurchaseRepository
func NewPurchaseRepository(db *sql.DB) PurchaseRepository {
	return &purchaseRepository{db: db}
}

// ListByOrder retrieves all purchase rows belonging to an order
func (r *purchaseRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*domain.Purchase, error) {
	query := `
		SELECT id, order_id, product_id, user_id, qty, purchase_date
		FROM purchases
		WHERE order_id = $1
		ORDER BY purchase_date ASC
	`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer rows.Close()

	purchases := []*domain.Purchase{}
	for rows.Next() {
		purchase := &domain.Purchase{}
		err := rows.Scan(
			&purchase.ID,
			&purchase.OrderID,
			&purchase.ProductID,
			&purchase.UserID,
			&purchase.Qty,
			&purchase.PurchaseDate,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, purchase)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating purchases: %w", err)
	}

	return purchases, nil
}

// ReportRows retrieves all purchases joined with product title and
// current price, newest first, for the sales report.
func (r *purchaseRepository) ReportRows(ctx context.Context) ([]*ReportRow, error) {
	query := `
		SELECT pu.purchase_date, pr.title, pr.price, pu.qty
		FROM purchases pu
		JOIN products pr ON pr.id = pu.product_id
		ORDER BY pu.purchase_date DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load report rows: %w", err)
	}
	defer rows.Close()

	report := []*ReportRow{}
	for rows.Next() {
		row := &ReportRow{}
		if err := rows.Scan(&row.PurchaseDate, &row.ProductTitle, &row.ProductPrice, &row.Qty); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		report = append(report, row)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report rows: %w", err)
	}

	return report, nil
}
