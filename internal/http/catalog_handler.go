package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/megamart-storefront/internal/catalog"
	"github.com/fjod/megamart-storefront/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type CatalogService interface {
	Snapshot(ctx context.Context) (*catalog.Snapshot, error)
	Product(ctx context.Context, id int64) (domain.Product, domain.StockSnapshot, error)
	AddCategory(ctx context.Context, name string) (domain.Category, error)
	Invalidate()
}

type CatalogHandler struct {
	catalog CatalogService
	timeout time.Duration
	log     logrus.FieldLogger
}

func NewCatalogHandler(catalog CatalogService, timeout time.Duration, log logrus.FieldLogger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, timeout: timeout, log: log}
}

type ProductDTO struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Price          decimal.Decimal `json:"price"`
	PriceDisplay   string          `json:"price_display"`
	CategoryID     int64           `json:"category_id"`
	StockID        int64           `json:"stock_id,omitempty"`
	QuantityOnHand int             `json:"quantity_on_hand"`
}

type AddCategoryRequestDTO struct {
	Name string `json:"name"`
}

type CatalogResponseDTO struct {
	Products  []ProductDTO `json:"products"`
	FetchedAt time.Time    `json:"fetched_at"`
}

// ListProducts serves the catalog, optionally narrowed by ?q= and ?category=.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var categoryID int64
	if raw := r.URL.Query().Get("category"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_category", "category must be a positive integer")
			return
		}
		categoryID = id
	}

	snapshot, err := h.catalog.Snapshot(ctx)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	list := snapshot.Products
	if categoryID != 0 {
		list = catalog.FilterByCategory(list, categoryID)
	}
	list = catalog.Search(list, r.URL.Query().Get("q"))

	stock := snapshot.StockSnapshot()
	dtos := make([]ProductDTO, len(list))
	for i, p := range list {
		dtos[i] = ProductDTO{
			ID:           p.ID,
			Name:         p.Name,
			Description:  p.Description,
			Price:        p.Price,
			PriceDisplay: domain.FormatLKR(p.Price),
			CategoryID:   p.CategoryID,
		}
		if level, ok := stock.ForProduct(p.ID); ok {
			dtos[i].StockID = level.StockID
			dtos[i].QuantityOnHand = level.QuantityOnHand
		}
	}

	respondJSON(w, http.StatusOK, CatalogResponseDTO{Products: dtos, FetchedAt: snapshot.FetchedAt})
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	snapshot, err := h.catalog.Snapshot(ctx)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	categories := snapshot.Categories
	if categories == nil {
		categories = []domain.Category{}
	}
	respondJSON(w, http.StatusOK, categories)
}

func (h *CatalogHandler) AddCategory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddCategoryRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	category, err := h.catalog.AddCategory(ctx, req.Name)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, category)
}
