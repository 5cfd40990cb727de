package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"shopmart/internal/domain"
	"shopmart/internal/repository"

	"github.com/google/uuid"
)

// Mock repositories shared by the service tests

type mockProductRepository struct {
	mu       sync.Mutex
	products map[uuid.UUID]*domain.Product
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{products: make(map[uuid.UUID]*domain.Product)}
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	product, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	clone := *product
	return &clone, nil
}

func (m *mockProductRepository) List(ctx context.Context, categoryID *uuid.UUID, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Product
	for _, p := range m.products {
		if categoryID != nil && p.CategoryID != *categoryID {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Article < out[j].Article })
	return out, len(out), nil
}

func (m *mockProductRepository) Search(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error) {
	return nil, 0, nil
}

func (m *mockProductRepository) ArticleMap(ctx context.Context) (map[string]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uuid.UUID, len(m.products))
	for _, p := range m.products {
		out[p.Article] = p.ID
	}
	return out, nil
}

func (m *mockProductRepository) BulkCreate(ctx context.Context, products []*domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range products {
		m.products[p.ID] = p
	}
	return nil
}

func (m *mockProductRepository) BulkUpdateByArticle(ctx context.Context, products []*domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range products {
		for id, existing := range m.products {
			if existing.Article == p.Article {
				updated := *p
				updated.ID = id
				updated.CreatedAt = existing.CreatedAt
				m.products[id] = &updated
			}
		}
	}
	return nil
}

func (m *mockProductRepository) byArticle(article string) *domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.Article == article {
			return p
		}
	}
	return nil
}

type mockCategoryRepository struct {
	categories  map[string]*domain.Category
	createCalls int
}

func newMockCategoryRepository() *mockCategoryRepository {
	return &mockCategoryRepository{categories: make(map[string]*domain.Category)}
}

func (m *mockCategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	if _, exists := m.categories[category.Name]; exists {
		return repository.ErrCategoryAlreadyExists
	}
	m.createCalls++
	m.categories[category.Name] = category
	return nil
}

func (m *mockCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	out := make([]*domain.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	for _, c := range m.categories {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, repository.ErrCategoryNotFound
}

func (m *mockCategoryRepository) FindByName(ctx context.Context, name string) (*domain.Category, error) {
	c, ok := m.categories[name]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	return c, nil
}

type mockImportJobRepository struct {
	jobs map[uuid.UUID]*domain.ImportJob
}

func newMockImportJobRepository() *mockImportJobRepository {
	return &mockImportJobRepository{jobs: make(map[uuid.UUID]*domain.ImportJob)}
}

func (m *mockImportJobRepository) Create(ctx context.Context, job *domain.ImportJob) error {
	m.jobs[job.ID] = job
	return nil
}

func (m *mockImportJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ImportJob, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, repository.ErrImportJobNotFound
	}
	return job, nil
}

func (m *mockImportJobRepository) List(ctx context.Context) ([]*domain.ImportJob, error) {
	out := make([]*domain.ImportJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	return out, nil
}

func (m *mockImportJobRepository) Complete(ctx context.Context, id uuid.UUID, errCount, warnCount int, log string) error {
	job, ok := m.jobs[id]
	if !ok {
		return repository.ErrImportJobNotFound
	}
	if job.Status == domain.ImportStatusComplete {
		return repository.ErrImportJobComplete
	}
	now := time.Now()
	job.Errors = errCount
	job.Warnings = warnCount
	job.Log = log
	job.Status = domain.ImportStatusComplete
	job.CompletedAt = &now
	return nil
}

type publishedEvent struct {
	topic string
	key   string
	event interface{}
}

type mockPublisher struct {
	events []publishedEvent
}

func (m *mockPublisher) PublishEvent(ctx context.Context, topic, key string, event interface{}) error {
	m.events = append(m.events, publishedEvent{topic: topic, key: key, event: event})
	return nil
}

func (m *mockPublisher) Close() error {
	return nil
}

type mockCartRepository struct {
	lines map[uuid.UUID]*domain.CartItem
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{lines: make(map[uuid.UUID]*domain.CartItem)}
}

func (m *mockCartRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.CartItem, error) {
	var out []*domain.CartItem
	for _, line := range m.lines {
		if line.UserID == userID {
			out = append(out, line)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *mockCartRepository) FindLine(ctx context.Context, userID, productID uuid.UUID) (*domain.CartItem, error) {
	for _, line := range m.lines {
		if line.UserID == userID && line.ProductID == productID {
			return line, nil
		}
	}
	return nil, repository.ErrCartLineNotFound
}

func (m *mockCartRepository) CreateLine(ctx context.Context, item *domain.CartItem) error {
	m.lines[item.ID] = item
	return nil
}

func (m *mockCartRepository) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) error {
	line, ok := m.lines[id]
	if !ok {
		return repository.ErrCartLineNotFound
	}
	line.Quantity = quantity
	return nil
}

func (m *mockCartRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	for id, line := range m.lines {
		if line.UserID == userID {
			delete(m.lines, id)
		}
	}
	return nil
}

// mockOrderRepository mimics the checkout transaction: on success the
// caller's cart lines vanish together with the stock write-off.
type mockOrderRepository struct {
	cartRepo    *mockCartRepository
	productRepo *mockProductRepository
	orders      []*domain.Order
	failWith    error
}

func (m *mockOrderRepository) PlaceOrder(ctx context.Context, order *domain.Order, lines []*domain.CartItem) ([]*domain.Purchase, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}

	if m.productRepo != nil {
		for _, line := range lines {
			product := m.productRepo.products[line.ProductID]
			if product == nil || product.Quantity < line.Quantity {
				return nil, repository.ErrNotEnoughStock
			}
		}
		for _, line := range lines {
			m.productRepo.products[line.ProductID].Quantity -= line.Quantity
		}
	}

	m.orders = append(m.orders, order)
	purchases := make([]*domain.Purchase, 0, len(lines))
	for _, line := range lines {
		purchases = append(purchases, &domain.Purchase{
			ID:           uuid.New(),
			OrderID:      order.ID,
			ProductID:    line.ProductID,
			UserID:       order.UserID,
			Qty:          line.Quantity,
			PurchaseDate: time.Now(),
		})
	}
	if m.cartRepo != nil {
		m.cartRepo.DeleteByUser(ctx, order.UserID)
	}
	return purchases, nil
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	for _, order := range m.orders {
		if order.ID == id {
			return order, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

type mockPurchaseRepository struct {
	rows []*repository.ReportRow
}

func (m *mockPurchaseRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*domain.Purchase, error) {
	return nil, nil
}

func (m *mockPurchaseRepository) ReportRows(ctx context.Context) ([]*repository.ReportRow, error) {
	return m.rows, nil
}

type mockUserRepository struct {
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*domain.User)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	for _, user := range m.users {
		if user.ID == id {
			user.Verified = verified
			return nil
		}
	}
	return repository.ErrUserNotFound
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	for _, user := range m.users {
		if user.ID == id {
			user.PasswordHash = passwordHash
			return nil
		}
	}
	return repository.ErrUserNotFound
}

type mockRefreshTokenRepository struct {
	tokens map[string]*domain.RefreshToken
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{tokens: make(map[string]*domain.RefreshToken)}
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.tokens[token.Token] = token
	return nil
}

func (m *mockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if refreshToken.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return refreshToken, nil
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return repository.ErrRefreshTokenNotFound
	}
	refreshToken.Revoked = true
	return nil
}

func (m *mockRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	for _, token := range m.tokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

type mockSMSCodeRepository struct {
	codes map[uuid.UUID]*domain.SMSCode // keyed by user ID
}

func newMockSMSCodeRepository() *mockSMSCodeRepository {
	return &mockSMSCodeRepository{codes: make(map[uuid.UUID]*domain.SMSCode)}
}

func (m *mockSMSCodeRepository) Replace(ctx context.Context, code *domain.SMSCode) error {
	m.codes[code.UserID] = code
	return nil
}

func (m *mockSMSCodeRepository) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.SMSCode, error) {
	code, ok := m.codes[userID]
	if !ok || code.VerifiedAt != nil {
		return nil, repository.ErrSMSCodeNotFound
	}
	return code, nil
}

func (m *mockSMSCodeRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	for _, code := range m.codes {
		if code.ID == id {
			code.Attempts++
			return code.Attempts, nil
		}
	}
	return 0, repository.ErrSMSCodeNotFound
}

func (m *mockSMSCodeRepository) MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) error {
	for _, code := range m.codes {
		if code.ID == id {
			code.VerifiedAt = &at
			return nil
		}
	}
	return repository.ErrSMSCodeNotFound
}

// Senders that record what they would have delivered

type sentSMS struct {
	phone   string
	message string
}

type capturingSMSSender struct {
	sent []sentSMS
}

func (s *capturingSMSSender) Send(ctx context.Context, phone, message string) error {
	s.sent = append(s.sent, sentSMS{phone: phone, message: message})
	return nil
}

type sentEmail struct {
	to      string
	subject string
	body    string
}

type capturingEmailSender struct {
	sent []sentEmail
}

func (s *capturingEmailSender) Send(ctx context.Context, to, subject, body string) error {
	s.sent = append(s.sent, sentEmail{to: to, subject: subject, body: body})
	return nil
}
