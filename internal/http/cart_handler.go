package http

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/megamart-storefront/internal/cart"
	"github.com/fjod/megamart-storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// CartEngine is the cashier-facing surface of cart.Engine.
type CartEngine interface {
	AddToCart(product domain.Product, quantity int, stock domain.StockSnapshot) (cart.CartUpdated, error)
	RemoveFromCart(stockID int64) (cart.CartUpdated, error)
	ResetCart() error
	Cart() cart.CartUpdated
	Checkout() cart.CheckoutSession
	BeginPayment() error
	ConfirmTender(amount decimal.Decimal) (cart.CheckoutSession, error)
	CancelPayment() error
	SubmitOrder(ctx context.Context) (*cart.OrderConfirmed, error)
}

type CartHandler struct {
	engine  CartEngine
	catalog CatalogService
	timeout time.Duration
	log     logrus.FieldLogger
}

func NewCartHandler(engine CartEngine, catalog CatalogService, timeout time.Duration, log logrus.FieldLogger) *CartHandler {
	return &CartHandler{engine: engine, catalog: catalog, timeout: timeout, log: log}
}

type AddItemRequestDTO struct {
	ProductID int64       `json:"product_id"`
	Quantity  json.Number `json:"quantity"`
}

var maxQuantity = decimal.NewFromInt(math.MaxInt32)

// parseQuantity accepts whole numbers only, so 1.5 is a bad quantity rather than bad JSON.
func parseQuantity(raw json.Number) (int, error) {
	q, err := decimal.NewFromString(raw.String())
	if err != nil || !q.IsInteger() || q.GreaterThan(maxQuantity) {
		return 0, fmt.Errorf("%w: got %q", cart.ErrInvalidQuantity, raw.String())
	}
	return int(q.IntPart()), nil
}

type CartResponseDTO struct {
	Lines        []domain.CartLine `json:"lines"`
	Total        decimal.Decimal   `json:"total"`
	TotalDisplay string            `json:"total_display"`
	ItemCount    int               `json:"item_count"`
}

func newCartResponse(c cart.CartUpdated) CartResponseDTO {
	lines := c.Lines
	if lines == nil {
		lines = []domain.CartLine{}
	}
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	return CartResponseDTO{
		Lines:        lines,
		Total:        c.Total,
		TotalDisplay: domain.FormatLKR(c.Total),
		ItemCount:    count,
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, newCartResponse(h.engine.Cart()))
}

// AddItem validates the quantity against the current stock snapshot and adds it.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	quantity, err := parseQuantity(req.Quantity)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	product, stock, err := h.catalog.Product(ctx, req.ProductID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	updated, err := h.engine.AddToCart(product, quantity, stock)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusCreated, newCartResponse(updated))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	stockID, err := strconv.ParseInt(chi.URLParam(r, "stock_id"), 10, 64)
	if err != nil || stockID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_stock_id", "stock_id must be a positive integer")
		return
	}

	updated, err := h.engine.RemoveFromCart(stockID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, newCartResponse(updated))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ResetCart(); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(h.engine.Cart()))
}
