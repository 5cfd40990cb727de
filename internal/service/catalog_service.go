package service

import (
	"context"
	"errors"

	"shopmart/internal/domain"
	"shopmart/internal/repository"

	"github.com/google/uuid"
)

var (
	// ErrAmbiguousCategoryFilter means both a category ID and a
	// category name were given for one listing; only one is allowed.
	ErrAmbiguousCategoryFilter = errors.New("filter by either category id or category name, not both")
)

// ProductFilter narrows a catalog listing. CategoryID and
// CategoryName are mutually exclusive.
type ProductFilter struct {
	CategoryID   *uuid.UUID
	CategoryName string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    repository.SortOrder
}

// ProductPage is one page of a catalog listing
type ProductPage struct {
	Products []*domain.Product `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// CatalogService defines the interface for browsing the catalog
type CatalogService interface {
	ListProducts(ctx context.Context, filter ProductFilter) (*ProductPage, error)
	SearchProducts(ctx context.Context, query string, page, pageSize int) (*ProductPage, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListCategories(ctx context.Context) ([]*domain.Category, error)
}

type catalogService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(productRepo repository.ProductRepository, categoryRepo repository.CategoryRepository) CatalogService {
	return &catalogService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
	}
}

// ListProducts returns a page of products, optionally narrowed to one category
func (s *catalogService) ListProducts(ctx context.Context, filter ProductFilter) (*ProductPage, error) {
	if filter.CategoryID != nil && filter.CategoryName != "" {
		return nil, ErrAmbiguousCategoryFilter
	}

	categoryID := filter.CategoryID
	if filter.CategoryName != "" {
		category, err := s.categoryRepo.FindByName(ctx, filter.CategoryName)
		if err != nil {
			return nil, err
		}
		categoryID = &category.ID
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)

	products, total, err := s.productRepo.List(ctx, categoryID, page, pageSize, filter.SortBy, filter.SortOrder)
	if err != nil {
		return nil, err
	}

	return &ProductPage{
		Products: products,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// SearchProducts matches products by title or article substring
func (s *catalogService) SearchProducts(ctx context.Context, query string, page, pageSize int) (*ProductPage, error) {
	page, pageSize = normalizePage(page, pageSize)

	products, total, err := s.productRepo.Search(ctx, query, page, pageSize)
	if err != nil {
		return nil, err
	}

	return &ProductPage{
		Products: products,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// GetProduct retrieves a single product by ID
func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.productRepo.FindByID(ctx, id)
}

// ListCategories returns all categories
func (s *catalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.categoryRepo.List(ctx)
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
