package transport

import (
	"net/http"
	"strconv"

	"shopmart/internal/middleware"
	"shopmart/internal/repository"
	"shopmart/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductHandler handles HTTP requests for catalog browsing
type ProductHandler struct {
	catalogService service.CatalogService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(catalogService service.CatalogService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalogService: catalogService,
		logger:         logger,
	}
}

// RegisterRoutes registers all catalog routes. Browsing is public.
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/search", h.SearchProducts)
		r.Get("/{id}", h.GetProduct)
	})
	r.Get("/api/categories", h.ListCategories)
}

// Query params the listing understands. Anything else is a client
// mistake and gets a 400 instead of being silently ignored.
var allowedListParams = map[string]struct{}{
	"category_id": {},
	"category":    {},
	"page":        {},
	"page_size":   {},
	"sort_by":     {},
	"sort_order":  {},
}

// ListProducts handles the catalog listing with optional category filter
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	for key := range query {
		if _, ok := allowedListParams[key]; !ok {
			middleware.RespondWithError(w, http.StatusBadRequest, "unknown query parameter: "+key)
			return
		}
	}

	filter := service.ProductFilter{
		CategoryName: query.Get("category"),
		Page:         parseIntParam(query.Get("page"), 1),
		PageSize:     parseIntParam(query.Get("page_size"), 20),
		SortBy:       query.Get("sort_by"),
		SortOrder:    repository.SortOrder(query.Get("sort_order")),
	}

	if raw := query.Get("category_id"); raw != "" {
		categoryID, err := uuid.Parse(raw)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid category id")
			return
		}
		filter.CategoryID = &categoryID
	}

	page, err := h.catalogService.ListProducts(r.Context(), filter)
	if err != nil {
		switch err {
		case service.ErrAmbiguousCategoryFilter:
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		case repository.ErrCategoryNotFound:
			middleware.RespondWithError(w, http.StatusNotFound, "category not found")
		default:
			h.logger.Error("Failed to list products", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list products")
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, page)
}

var allowedSearchParams = map[string]struct{}{
	"q":         {},
	"page":      {},
	"page_size": {},
}

// SearchProducts handles catalog search by title or article
func (h *ProductHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	for key := range query {
		if _, ok := allowedSearchParams[key]; !ok {
			middleware.RespondWithError(w, http.StatusBadRequest, "unknown query parameter: "+key)
			return
		}
	}

	q := query.Get("q")
	if q == "" {
		middleware.RespondWithError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	page, err := h.catalogService.SearchProducts(
		r.Context(),
		q,
		parseIntParam(query.Get("page"), 1),
		parseIntParam(query.Get("page_size"), 20),
	)
	if err != nil {
		h.logger.Error("Product search failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to search products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, page)
}

// GetProduct handles fetching one product by ID
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := h.catalogService.GetProduct(r.Context(), id)
	if err != nil {
		if err == repository.ErrProductNotFound {
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("Failed to get product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// ListCategories handles listing all categories
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalogService.ListCategories(r.Context())
	if err != nil {
		h.logger.Error("Failed to list categories", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

func parseIntParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
