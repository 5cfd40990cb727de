package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopmart/internal/domain"
	"shopmart/internal/events"
	"shopmart/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrProductOutOfStock = errors.New("product is out of stock")
	ErrEmptyCart         = errors.New("cart is empty")
	// ErrCheckoutConflict means stock ran out between adding to the
	// cart and checking out. The cart has been cleared by then.
	ErrCheckoutConflict = errors.New("not enough stock to complete the order")
)

// CartLine is one cart line joined with its product
type CartLine struct {
	ID       uuid.UUID       `json:"id"`
	Product  *domain.Product `json:"product"`
	Quantity int             `json:"quantity"`
	Subtotal float64         `json:"subtotal"`
}

// CartView is the full cart of one user with its totals
type CartView struct {
	Lines    []*CartLine `json:"items"`
	TotalSum float64     `json:"total_sum"`
	Count    int         `json:"count"`
}

// CheckoutInput carries the delivery and payment details of an order
type CheckoutInput struct {
	FullName      string
	Phone         string
	Email         string
	City          string
	Address       string
	PaymentMethod string
}

// CartService defines the interface for cart and checkout logic
type CartService interface {
	ViewCart(ctx context.Context, userID uuid.UUID) (*CartView, error)
	// AddToCart adds the given quantity of a product to the user's
	// cart, bumping an existing line instead of creating a second one.
	// A quantity below 1 reads as 1. The requested quantity has to be
	// available in stock.
	AddToCart(ctx context.Context, userID, productID uuid.UUID, quantity int) error
	ClearCart(ctx context.Context, userID uuid.UUID) error
	// Checkout turns the cart into an order. When stock for any line
	// ran out since it was added, the order is abandoned, the stale
	// cart is cleared and ErrCheckoutConflict is returned.
	Checkout(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*domain.Order, error)
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	orderRepo   repository.OrderRepository
	publisher   events.Publisher
}

// NewCartService creates a new instance of CartService
func NewCartService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	orderRepo repository.OrderRepository,
	publisher events.Publisher,
) CartService {
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		orderRepo:   orderRepo,
		publisher:   publisher,
	}
}

// ViewCart returns the user's cart lines with the running totals
func (s *cartService) ViewCart(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	items, err := s.cartRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := &CartView{Lines: []*CartLine{}}
	for _, item := range items {
		product, err := s.productRepo.FindByID(ctx, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to load cart product: %w", err)
		}

		subtotal := product.Price * float64(item.Quantity)
		view.Lines = append(view.Lines, &CartLine{
			ID:       item.ID,
			Product:  product,
			Quantity: item.Quantity,
			Subtotal: subtotal,
		})
		view.TotalSum += subtotal
		view.Count += item.Quantity
	}

	return view, nil
}

// AddToCart adds the requested quantity of a product to the user's cart
func (s *cartService) AddToCart(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return err
	}
	if !product.InStock(quantity) {
		return ErrProductOutOfStock
	}

	line, err := s.cartRepo.FindLine(ctx, userID, productID)
	if err != nil {
		if errors.Is(err, repository.ErrCartLineNotFound) {
			return s.cartRepo.CreateLine(ctx, &domain.CartItem{
				ID:        uuid.New(),
				UserID:    userID,
				ProductID: productID,
				Quantity:  quantity,
				CreatedAt: time.Now(),
			})
		}
		return err
	}

	return s.cartRepo.UpdateQuantity(ctx, line.ID, line.Quantity+quantity)
}

// ClearCart removes every line from the user's cart
func (s *cartService) ClearCart(ctx context.Context, userID uuid.UUID) error {
	return s.cartRepo.DeleteByUser(ctx, userID)
}

// Checkout places an order from the user's current cart
func (s *cartService) Checkout(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*domain.Order, error) {
	lines, err := s.cartRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	order := &domain.Order{
		ID:            uuid.New(),
		UserID:        userID,
		FullName:      input.FullName,
		Phone:         input.Phone,
		Email:         input.Email,
		City:          input.City,
		Address:       input.Address,
		PaymentMethod: input.PaymentMethod,
		CreatedAt:     time.Now(),
	}

	purchases, err := s.orderRepo.PlaceOrder(ctx, order, lines)
	if err != nil {
		if errors.Is(err, repository.ErrNotEnoughStock) {
			// The cart no longer matches reality; drop it so the
			// user rebuilds it from current stock.
			if clearErr := s.cartRepo.DeleteByUser(ctx, userID); clearErr != nil {
				return nil, fmt.Errorf("failed to clear stale cart: %w", clearErr)
			}
			return nil, ErrCheckoutConflict
		}
		return nil, err
	}

	event := map[string]interface{}{
		"type":     "order_placed",
		"order_id": order.ID.String(),
		"user_id":  userID.String(),
		"lines":    len(purchases),
	}
	// Event delivery is best effort; the order is already committed
	_ = s.publisher.PublishEvent(ctx, events.TopicOrders, order.ID.String(), event)

	return order, nil
}
