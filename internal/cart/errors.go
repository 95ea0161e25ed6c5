package cart

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrInsufficientStock    = errors.New("not enough stock available")
	ErrInsufficientTender   = errors.New("cash amount must be equal to or greater than the total")
	ErrSubmissionInProgress = errors.New("order submission already in progress")
	ErrEmptyCart            = errors.New("cart is empty, nothing to checkout")
	ErrIllegalTransition    = errors.New("illegal transition of checkout phase")
	ErrCheckoutLocked       = errors.New("cart cannot be edited while checkout is in progress")
	ErrGatewayPanicked      = errors.New("backend call panicked")
)

type SubmissionStep string

const (
	StepDecrementStock SubmissionStep = "decrement_stock"
	StepCreateOrder    SubmissionStep = "create_order"
)

// SubmissionError reports which remote step failed. StockDecremented is true when the
// backend already deducted stock for this order; nothing gives that stock back.
type SubmissionError struct {
	Step             SubmissionStep
	StockDecremented bool
	Err              error
}

func (e *SubmissionError) Error() string {
	if e.StockDecremented {
		return fmt.Sprintf("order submission failed at %s (stock already decremented): %v", e.Step, e.Err)
	}
	return fmt.Sprintf("order submission failed at %s: %v", e.Step, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}
