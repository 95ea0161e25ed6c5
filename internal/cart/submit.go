package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/megamart-storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type pendingSubmission struct {
	id               uuid.UUID
	request          map[int64]int
	draft            []int64
	lines            []domain.CartLine
	total            decimal.Decimal
	tendered         decimal.Decimal
	changeDue        decimal.Decimal
	stockDecremented bool
}

// SubmitOrder decrements stock and then creates the order. It runs from CashCollected,
// or from Failed as a retry. A retry after a failed order creation does not decrement
// stock a second time.
func (e *Engine) SubmitOrder(ctx context.Context) (confirmed *OrderConfirmed, err error) {
	p, err := e.startSubmission()
	if err != nil {
		return nil, err
	}

	log := e.log.WithFields(logrus.Fields{
		"submission_id": p.id,
		"lines":         len(p.lines),
		"total":         p.total.String(),
	})

	step := StepDecrementStock
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e.Checkout().Phase != domain.CheckoutPhaseSubmitting {
			panic(r)
		}
		confirmed = nil
		err = e.failSubmission(ctx, log, p, step, fmt.Errorf("%w: %v", ErrGatewayPanicked, r))
	}()

	if !p.stockDecremented {
		if errDecrement := e.gateway.DecrementStock(ctx, p.request); errDecrement != nil {
			return nil, e.failSubmission(ctx, log, p, StepDecrementStock, errDecrement)
		}
		p.stockDecremented = true
	}

	step = StepCreateOrder
	orderID, errCreate := e.gateway.CreateOrder(ctx, p.draft)
	if errCreate != nil {
		return nil, e.failSubmission(ctx, log, p, StepCreateOrder, errCreate)
	}

	confirmed = e.completeSubmission(p, orderID)
	log.WithField("order_id", orderID).Info("order submitted")

	e.record(ctx, log, Submission{
		ID:               p.id,
		OrderID:          orderID,
		Outcome:          domain.CheckoutPhaseCompleted,
		StockDecremented: true,
		Total:            p.total,
		CashTendered:     p.tendered,
		ChangeDue:        p.changeDue,
		Lines:            p.lines,
		AttemptedAt:      time.Now().UTC(),
	})
	return confirmed, nil
}

func (e *Engine) startSubmission() (*pendingSubmission, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.checkout.Phase {
	case domain.CheckoutPhaseSubmitting:
		return nil, ErrSubmissionInProgress
	case domain.CheckoutPhaseCashCollected, domain.CheckoutPhaseFailed:
	default:
		return nil, ErrIllegalTransition
	}
	if len(e.lines) == 0 {
		return nil, ErrEmptyCart
	}
	if err := e.transitionLocked(domain.CheckoutPhaseSubmitting); err != nil {
		return nil, err
	}

	if e.checkout.SubmissionID == uuid.Nil {
		e.checkout.SubmissionID = uuid.New()
	}
	e.checkout.LastError = ""

	return &pendingSubmission{
		id:               e.checkout.SubmissionID,
		request:          e.stockRequestLocked(),
		draft:            e.orderDraftLocked(),
		lines:            e.linesLocked(),
		total:            e.total,
		tendered:         e.checkout.CashTendered,
		changeDue:        e.checkout.ChangeDue,
		stockDecremented: e.checkout.StockDecremented,
	}, nil
}

func (e *Engine) completeSubmission(p *pendingSubmission, orderID string) *OrderConfirmed {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.checkout.Phase = domain.CheckoutPhaseCompleted
	e.checkout.StockDecremented = true
	e.resetLocked()

	return &OrderConfirmed{
		SubmissionID: p.id,
		OrderID:      orderID,
		Total:        p.total,
		CashTendered: p.tendered,
		ChangeDue:    p.changeDue,
		Lines:        p.lines,
	}
}

func (e *Engine) failSubmission(ctx context.Context, log logrus.FieldLogger, p *pendingSubmission, step SubmissionStep, cause error) error {
	subErr := &SubmissionError{
		Step:             step,
		StockDecremented: p.stockDecremented,
		Err:              cause,
	}

	e.mu.Lock()
	e.checkout.Phase = domain.CheckoutPhaseFailed
	e.checkout.StockDecremented = p.stockDecremented
	e.checkout.LastError = subErr.Error()
	e.mu.Unlock()

	entry := log.WithError(cause).WithField("step", step)
	if p.stockDecremented {
		entry.Warn("order creation failed after stock was decremented")
	} else {
		entry.Error("order submission failed")
	}

	e.record(ctx, log, Submission{
		ID:               p.id,
		Outcome:          domain.CheckoutPhaseFailed,
		FailedStep:       step,
		StockDecremented: p.stockDecremented,
		Error:            cause.Error(),
		Total:            p.total,
		CashTendered:     p.tendered,
		ChangeDue:        p.changeDue,
		Lines:            p.lines,
		AttemptedAt:      time.Now().UTC(),
	})
	return subErr
}

func (e *Engine) record(ctx context.Context, log logrus.FieldLogger, s Submission) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordSubmission(ctx, s); err != nil {
		log.WithError(err).Error("failed to record submission")
	}
}
