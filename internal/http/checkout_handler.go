package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/megamart-storefront/internal/cart"
	"github.com/fjod/megamart-storefront/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type CheckoutHandler struct {
	engine  CartEngine
	catalog CatalogService
	log     logrus.FieldLogger
}

func NewCheckoutHandler(engine CartEngine, catalog CatalogService, log logrus.FieldLogger) *CheckoutHandler {
	return &CheckoutHandler{engine: engine, catalog: catalog, log: log}
}

type TenderRequestDTO struct {
	Amount *decimal.Decimal `json:"amount"`
}

type CheckoutResponseDTO struct {
	cart.CheckoutSession
	Total               decimal.Decimal `json:"total"`
	TotalDisplay        string          `json:"total_display"`
	CashTenderedDisplay string          `json:"cash_tendered_display"`
	ChangeDueDisplay    string          `json:"change_due_display"`
}

type OrderConfirmedDTO struct {
	*cart.OrderConfirmed
	TotalDisplay        string `json:"total_display"`
	CashTenderedDisplay string `json:"cash_tendered_display"`
	ChangeDueDisplay    string `json:"change_due_display"`
}

func (h *CheckoutHandler) checkoutResponse() CheckoutResponseDTO {
	session := h.engine.Checkout()
	total := h.engine.Cart().Total
	return CheckoutResponseDTO{
		CheckoutSession:     session,
		Total:               total,
		TotalDisplay:        domain.FormatLKR(total),
		CashTenderedDisplay: domain.FormatLKR(session.CashTendered),
		ChangeDueDisplay:    domain.FormatLKR(session.ChangeDue),
	}
}

func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.checkoutResponse())
}

func (h *CheckoutHandler) BeginPayment(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.BeginPayment(); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, h.checkoutResponse())
}

func (h *CheckoutHandler) ConfirmTender(w http.ResponseWriter, r *http.Request) {
	var req TenderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "amount is required")
		return
	}

	if _, err := h.engine.ConfirmTender(*req.Amount); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, h.checkoutResponse())
}

func (h *CheckoutHandler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.CancelPayment(); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, h.checkoutResponse())
}

// Submit pushes the order to the backend. The catalog snapshot is dropped whenever
// backend stock may have moved.
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	confirmed, err := h.engine.SubmitOrder(r.Context())
	if err != nil {
		var subErr *cart.SubmissionError
		if errors.As(err, &subErr) && subErr.StockDecremented {
			h.catalog.Invalidate()
		}
		handleError(w, r, h.log, err)
		return
	}

	h.catalog.Invalidate()
	respondJSON(w, http.StatusCreated, OrderConfirmedDTO{
		OrderConfirmed:      confirmed,
		TotalDisplay:        domain.FormatLKR(confirmed.Total),
		CashTenderedDisplay: domain.FormatLKR(confirmed.CashTendered),
		ChangeDueDisplay:    domain.FormatLKR(confirmed.ChangeDue),
	})
}
