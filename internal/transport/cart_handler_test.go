package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shopmart/internal/domain"
	"shopmart/internal/events"
	"shopmart/internal/middleware"
	"shopmart/internal/repository"
	"shopmart/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type stubProductRepository struct {
	products map[uuid.UUID]*domain.Product
}

func newStubProductRepository() *stubProductRepository {
	return &stubProductRepository{products: make(map[uuid.UUID]*domain.Product)}
}

func (m *stubProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.products[product.ID] = product
	return nil
}

func (m *stubProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return product, nil
}

func (m *stubProductRepository) List(ctx context.Context, categoryID *uuid.UUID, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
	return nil, 0, nil
}

func (m *stubProductRepository) Search(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error) {
	return nil, 0, nil
}

func (m *stubProductRepository) ArticleMap(ctx context.Context) (map[string]uuid.UUID, error) {
	articles := make(map[string]uuid.UUID, len(m.products))
	for id, product := range m.products {
		articles[product.Article] = id
	}
	return articles, nil
}

func (m *stubProductRepository) BulkCreate(ctx context.Context, products []*domain.Product) error {
	for _, product := range products {
		m.products[product.ID] = product
	}
	return nil
}

func (m *stubProductRepository) BulkUpdateByArticle(ctx context.Context, products []*domain.Product) error {
	for _, update := range products {
		for _, existing := range m.products {
			if existing.Article == update.Article {
				existing.Title = update.Title
				existing.Price = update.Price
				existing.Quantity = update.Quantity
				existing.CategoryID = update.CategoryID
			}
		}
	}
	return nil
}

type stubCartRepository struct {
	lines map[uuid.UUID]*domain.CartItem
}

func newStubCartRepository() *stubCartRepository {
	return &stubCartRepository{lines: make(map[uuid.UUID]*domain.CartItem)}
}

func (m *stubCartRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.CartItem, error) {
	var out []*domain.CartItem
	for _, line := range m.lines {
		if line.UserID == userID {
			out = append(out, line)
		}
	}
	return out, nil
}

func (m *stubCartRepository) FindLine(ctx context.Context, userID, productID uuid.UUID) (*domain.CartItem, error) {
	for _, line := range m.lines {
		if line.UserID == userID && line.ProductID == productID {
			return line, nil
		}
	}
	return nil, repository.ErrCartLineNotFound
}

func (m *stubCartRepository) CreateLine(ctx context.Context, item *domain.CartItem) error {
	m.lines[item.ID] = item
	return nil
}

func (m *stubCartRepository) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) error {
	line, ok := m.lines[id]
	if !ok {
		return repository.ErrCartLineNotFound
	}
	line.Quantity = quantity
	return nil
}

func (m *stubCartRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	for id, line := range m.lines {
		if line.UserID == userID {
			delete(m.lines, id)
		}
	}
	return nil
}

// stubOrderRepository mirrors the transactional contract: stock is
// checked and written off, the cart is cleared, or nothing changes.
type stubOrderRepository struct {
	products *stubProductRepository
	cart     *stubCartRepository
	orders   map[uuid.UUID]*domain.Order
}

func newStubOrderRepository(products *stubProductRepository, cart *stubCartRepository) *stubOrderRepository {
	return &stubOrderRepository{
		products: products,
		cart:     cart,
		orders:   make(map[uuid.UUID]*domain.Order),
	}
}

func (m *stubOrderRepository) PlaceOrder(ctx context.Context, order *domain.Order, lines []*domain.CartItem) ([]*domain.Purchase, error) {
	for _, line := range lines {
		product, ok := m.products.products[line.ProductID]
		if !ok || !product.InStock(line.Quantity) {
			return nil, repository.ErrNotEnoughStock
		}
	}

	var purchases []*domain.Purchase
	for _, line := range lines {
		m.products.products[line.ProductID].Quantity -= line.Quantity
		purchases = append(purchases, &domain.Purchase{
			ID:           uuid.New(),
			OrderID:      order.ID,
			ProductID:    line.ProductID,
			UserID:       order.UserID,
			Qty:          line.Quantity,
			PurchaseDate: time.Now(),
		})
	}

	m.orders[order.ID] = order
	m.cart.DeleteByUser(ctx, order.UserID)
	return purchases, nil
}

func (m *stubOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

type cartHandlerFixture struct {
	handler  *CartHandler
	products *stubProductRepository
	cart     *stubCartRepository
	orders   *stubOrderRepository
	userID   uuid.UUID
}

func newCartHandlerFixture() *cartHandlerFixture {
	products := newStubProductRepository()
	cart := newStubCartRepository()
	orders := newStubOrderRepository(products, cart)

	cartService := service.NewCartService(cart, products, orders, events.NopPublisher{})

	return &cartHandlerFixture{
		handler:  NewCartHandler(cartService, zap.NewNop()),
		products: products,
		cart:     cart,
		orders:   orders,
		userID:   uuid.New(),
	}
}

func (f *cartHandlerFixture) addProduct(quantity int) *domain.Product {
	product := &domain.Product{
		ID:       uuid.New(),
		Title:    "Wireless Mouse",
		Article:  "WM-" + uuid.NewString()[:8],
		Price:    1290,
		Quantity: quantity,
	}
	f.products.products[product.ID] = product
	return product
}

func (f *cartHandlerFixture) authenticatedRequest(method, target string, body []byte) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, f.userID.String())
	ctx = context.WithValue(ctx, middleware.UserRoleKey, "user")
	ctx = context.WithValue(ctx, middleware.UserVerifiedKey, true)
	return req.WithContext(ctx)
}

func checkoutBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(CheckoutRequest{
		FullName:      "Dana Shopper",
		Phone:         "+15551234567",
		Email:         "dana@example.com",
		City:          "Springfield",
		Address:       "12 Elm Street",
		PaymentMethod: "card",
	})
	if err != nil {
		t.Fatalf("failed to marshal checkout body: %v", err)
	}
	return body
}

func TestAddToCartHandler(t *testing.T) {
	f := newCartHandlerFixture()
	product := f.addProduct(3)

	body, _ := json.Marshal(AddToCartRequest{ProductID: product.ID.String()})
	w := httptest.NewRecorder()

	f.handler.AddToCart(w, f.authenticatedRequest(http.MethodPost, "/api/cart/items", body))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	lines, _ := f.cart.ListByUser(context.Background(), f.userID)
	if len(lines) != 1 || lines[0].Quantity != 1 {
		t.Fatalf("expected one cart line with quantity 1, got %+v", lines)
	}
}

func TestAddToCartHandlerAccumulatesQuantities(t *testing.T) {
	f := newCartHandlerFixture()
	product := f.addProduct(10)

	for _, qty := range []int{1, 2} {
		body, _ := json.Marshal(AddToCartRequest{ProductID: product.ID.String(), Quantity: qty})
		w := httptest.NewRecorder()

		f.handler.AddToCart(w, f.authenticatedRequest(http.MethodPost, "/api/cart/items", body))

		if w.Code != http.StatusOK {
			t.Fatalf("add with quantity %d failed: %d: %s", qty, w.Code, w.Body.String())
		}
	}

	lines, _ := f.cart.ListByUser(context.Background(), f.userID)
	if len(lines) != 1 || lines[0].Quantity != 3 {
		t.Fatalf("expected one line with quantity 3, got %+v", lines)
	}
}

func TestAddToCartHandlerQuantityAboveStock(t *testing.T) {
	f := newCartHandlerFixture()
	product := f.addProduct(2)

	body, _ := json.Marshal(AddToCartRequest{ProductID: product.ID.String(), Quantity: 3})
	w := httptest.NewRecorder()

	f.handler.AddToCart(w, f.authenticatedRequest(http.MethodPost, "/api/cart/items", body))

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestAddToCartHandlerRejectsNegativeQuantity(t *testing.T) {
	f := newCartHandlerFixture()
	product := f.addProduct(5)

	body, _ := json.Marshal(AddToCartRequest{ProductID: product.ID.String(), Quantity: -2})
	w := httptest.NewRecorder()

	f.handler.AddToCart(w, f.authenticatedRequest(http.MethodPost, "/api/cart/items", body))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAddToCartHandlerOutOfStock(t *testing.T) {
	f := newCartHandlerFixture()
	product := f.addProduct(0)

	body, _ := json.Marshal(AddToCartRequest{ProductID: product.ID.String()})
	w := httptest.NewRecorder()

	f.handler.AddToCart(w, f.authenticatedRequest(http.MethodPost, "/api/cart/items", body))

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestAddToCartHandlerUnknownProduct(t *testing.T) {
	f := newCartHandlerFixture()

	body, _ := json.Marshal(AddToCartRequest{ProductID: uuid.NewString()})
	w := httptest.NewRecorder()

	f.handler.AddToCart(w, f.authenticatedRequest(http.MethodPost, "/api/cart/items", body))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAddToCartHandlerRejectsInvalidBody(t *testing.T) {
	f := newCartHandlerFixture()

	body, _ := json.Marshal(AddToCartRequest{ProductID: "not-a-uuid"})
	w := httptest.NewRecorder()

	f.handler.AddToCart(w, f.authenticatedRequest(http.MethodPost, "/api/cart/items", body))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestViewCartHandlerTotals(t *testing.T) {
	f := newCartHandlerFixture()
	product := f.addProduct(5)

	addBody, _ := json.Marshal(AddToCartRequest{ProductID: product.ID.String()})
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		f.handler.AddToCart(w, f.authenticatedRequest(http.MethodPost, "/api/cart/items", addBody))
		if w.Code != http.StatusOK {
			t.Fatalf("add to cart failed: %d", w.Code)
		}
	}

	w := httptest.NewRecorder()
	f.handler.ViewCart(w, f.authenticatedRequest(http.MethodGet, "/api/cart", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var view service.CartView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode cart view: %v", err)
	}
	if view.Count != 2 {
		t.Fatalf("expected item count 2, got %d", view.Count)
	}
	if view.TotalSum != product.Price*2 {
		t.Fatalf("expected total %v, got %v", product.Price*2, view.TotalSum)
	}
}

func TestCheckoutHandlerPlacesOrder(t *testing.T) {
	f := newCartHandlerFixture()
	product := f.addProduct(5)

	addBody, _ := json.Marshal(AddToCartRequest{ProductID: product.ID.String()})
	w := httptest.NewRecorder()
	f.handler.AddToCart(w, f.authenticatedRequest(http.MethodPost, "/api/cart/items", addBody))

	w = httptest.NewRecorder()
	f.handler.Checkout(w, f.authenticatedRequest(http.MethodPost, "/api/checkout", checkoutBody(t)))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp CheckoutResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	orderID, err := uuid.Parse(resp.OrderID)
	if err != nil {
		t.Fatalf("order id is not a uuid: %v", err)
	}
	if _, ok := f.orders.orders[orderID]; !ok {
		t.Fatal("order was not stored")
	}

	if product.Quantity != 4 {
		t.Fatalf("expected stock 4 after checkout, got %d", product.Quantity)
	}
	lines, _ := f.cart.ListByUser(context.Background(), f.userID)
	if len(lines) != 0 {
		t.Fatalf("expected empty cart after checkout, got %d lines", len(lines))
	}
}

func TestCheckoutHandlerEmptyCart(t *testing.T) {
	f := newCartHandlerFixture()

	w := httptest.NewRecorder()
	f.handler.Checkout(w, f.authenticatedRequest(http.MethodPost, "/api/checkout", checkoutBody(t)))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCheckoutHandlerStockConflict(t *testing.T) {
	f := newCartHandlerFixture()
	product := f.addProduct(1)

	addBody, _ := json.Marshal(AddToCartRequest{ProductID: product.ID.String()})
	w := httptest.NewRecorder()
	f.handler.AddToCart(w, f.authenticatedRequest(http.MethodPost, "/api/cart/items", addBody))

	// Stock runs out between adding to cart and checking out.
	product.Quantity = 0

	w = httptest.NewRecorder()
	f.handler.Checkout(w, f.authenticatedRequest(http.MethodPost, "/api/checkout", checkoutBody(t)))

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}

	lines, _ := f.cart.ListByUser(context.Background(), f.userID)
	if len(lines) != 0 {
		t.Fatal("expected the stale cart to be cleared")
	}
	if len(f.orders.orders) != 0 {
		t.Fatal("no order should have been placed")
	}
}

func TestCartHandlerRequiresAuthentication(t *testing.T) {
	f := newCartHandlerFixture()

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	w := httptest.NewRecorder()

	f.handler.ViewCart(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
