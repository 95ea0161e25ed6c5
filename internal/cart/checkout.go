package cart

import (
	"github.com/fjod/megamart-storefront/internal/domain"
	"github.com/shopspring/decimal"
)

func (e *Engine) transitionLocked(to domain.CheckoutPhase) error {
	if !domain.CanTransitionTo(e.checkout.Phase, to) {
		return ErrIllegalTransition
	}
	e.checkout.Phase = to
	return nil
}

// BeginPayment opens cash collection for a non-empty cart.
func (e *Engine) BeginPayment() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.checkout.Phase == domain.CheckoutPhaseSubmitting {
		return ErrSubmissionInProgress
	}
	if len(e.lines) == 0 {
		return ErrEmptyCart
	}
	return e.transitionLocked(domain.CheckoutPhaseCollectingCash)
}

// ConfirmTender accepts the cash handed over by the customer. Anything below the
// cart total keeps the checkout in CollectingCash.
func (e *Engine) ConfirmTender(amount decimal.Decimal) (CheckoutSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.checkout.Phase != domain.CheckoutPhaseCollectingCash {
		if e.checkout.Phase == domain.CheckoutPhaseSubmitting {
			return e.checkout, ErrSubmissionInProgress
		}
		return e.checkout, ErrIllegalTransition
	}
	if amount.LessThan(e.total) {
		return e.checkout, ErrInsufficientTender
	}

	if err := e.transitionLocked(domain.CheckoutPhaseCashCollected); err != nil {
		return e.checkout, err
	}
	e.checkout.CashTendered = amount
	e.checkout.ChangeDue = amount.Sub(e.total)
	return e.checkout, nil
}

// CancelPayment returns to Reviewing from CollectingCash, or from Failed when the
// cashier gives up on retrying. The cart itself is kept.
func (e *Engine) CancelPayment() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.checkout.Phase {
	case domain.CheckoutPhaseSubmitting:
		return ErrSubmissionInProgress
	case domain.CheckoutPhaseCollectingCash, domain.CheckoutPhaseFailed:
		if err := e.transitionLocked(domain.CheckoutPhaseReviewing); err != nil {
			return err
		}
		e.checkout = newCheckoutSession()
		return nil
	default:
		return ErrIllegalTransition
	}
}
