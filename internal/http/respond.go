package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/fjod/megamart-storefront/internal/cart"
	"github.com/fjod/megamart-storefront/internal/catalog"
	"github.com/fjod/megamart-storefront/internal/logger"
	"github.com/fjod/megamart-storefront/internal/restclient"
	"github.com/fjod/megamart-storefront/internal/session"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Error("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: "",
	})
}

// handleError maps domain and backend errors to HTTP statuses. Server side
// failures are logged with the request's ids.
func handleError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	httpStatus, code := classify(err)

	resp := ErrorResponse{Error: err.Error(), Code: code}

	var subErr *cart.SubmissionError
	if errors.As(err, &subErr) {
		resp.Details = fmt.Sprintf("step=%s stock_decremented=%t", subErr.Step, subErr.StockDecremented)
	}

	if httpStatus >= http.StatusInternalServerError {
		logger.FromContext(r.Context(), log).WithError(err).WithField("status", httpStatus).Error("request failed")
		if httpStatus == http.StatusInternalServerError {
			resp.Error = "internal server error"
		}
	}
	respondJSON(w, httpStatus, resp)
}

func classify(err error) (int, string) {
	var subErr *cart.SubmissionError
	var statusErr *restclient.StatusError

	switch {
	case errors.Is(err, cart.ErrInvalidQuantity):
		return http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, cart.ErrInsufficientTender):
		return http.StatusUnprocessableEntity, "insufficient_tender"
	case errors.Is(err, cart.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, cart.ErrSubmissionInProgress):
		return http.StatusConflict, "submission_in_progress"
	case errors.Is(err, cart.ErrEmptyCart):
		return http.StatusConflict, "empty_cart"
	case errors.Is(err, cart.ErrCheckoutLocked):
		return http.StatusConflict, "checkout_locked"
	case errors.Is(err, cart.ErrIllegalTransition):
		return http.StatusConflict, "illegal_transition"
	case errors.As(err, &subErr):
		return http.StatusBadGateway, "submission_failed"
	case errors.Is(err, catalog.ErrProductNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, session.ErrNoSession):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, session.ErrMissingCredentials),
		errors.Is(err, session.ErrMissingFields),
		errors.Is(err, session.ErrPasswordMismatch),
		errors.Is(err, session.ErrPasswordTooShort):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, catalog.ErrBlankCategoryName):
		return http.StatusBadRequest, "invalid_category_name"
	case errors.Is(err, session.ErrUserTypeNotAllowed):
		return http.StatusForbidden, "permission_denied"
	case errors.Is(err, restclient.ErrUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.As(err, &statusErr):
		if statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden {
			return http.StatusUnauthorized, "unauthenticated"
		}
		return http.StatusBadGateway, "backend_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
