package cart

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/megamart-storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Gateway is the order submission side of the backend.
type Gateway interface {
	DecrementStock(ctx context.Context, request map[int64]int) error
	CreateOrder(ctx context.Context, productIDs []int64) (string, error)
}

// Recorder receives every submission outcome. It may be nil.
type Recorder interface {
	RecordSubmission(ctx context.Context, s Submission) error
}

// Submission is one attempt to push the cart to the backend.
type Submission struct {
	ID               uuid.UUID
	OrderID          string
	Outcome          domain.CheckoutPhase
	FailedStep       SubmissionStep
	StockDecremented bool
	Error            string
	Total            decimal.Decimal
	CashTendered     decimal.Decimal
	ChangeDue        decimal.Decimal
	Lines            []domain.CartLine
	AttemptedAt      time.Time
}

type CheckoutSession struct {
	Phase            domain.CheckoutPhase `json:"phase"`
	CashTendered     decimal.Decimal      `json:"cash_tendered"`
	ChangeDue        decimal.Decimal      `json:"change_due"`
	StockDecremented bool                 `json:"stock_decremented"`
	LastError        string               `json:"last_error,omitempty"`
	SubmissionID     uuid.UUID            `json:"submission_id"`
}

type CartUpdated struct {
	Lines []domain.CartLine `json:"lines"`
	Total decimal.Decimal   `json:"total"`
}

type OrderConfirmed struct {
	SubmissionID uuid.UUID         `json:"submission_id"`
	OrderID      string            `json:"order_id"`
	Total        decimal.Decimal   `json:"total"`
	CashTendered decimal.Decimal   `json:"cash_tendered"`
	ChangeDue    decimal.Decimal   `json:"change_due"`
	Lines        []domain.CartLine `json:"lines"`
}

// Engine owns the in-progress order of one cashier session. Lines are the single
// source of truth; the stock decrement request and the order draft are derived
// from them on demand.
type Engine struct {
	mu       sync.Mutex
	gateway  Gateway
	recorder Recorder
	log      logrus.FieldLogger

	lines    map[int64]*domain.CartLine // stockID -> line
	sequence []int64                    // stockIDs in the order lines were created
	total    decimal.Decimal
	checkout CheckoutSession
}

func NewEngine(gateway Gateway, recorder Recorder, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{
		gateway:  gateway,
		recorder: recorder,
		log:      log,
		lines:    make(map[int64]*domain.CartLine),
		total:    decimal.Zero,
		checkout: newCheckoutSession(),
	}
}

func newCheckoutSession() CheckoutSession {
	return CheckoutSession{
		Phase:        domain.CheckoutPhaseReviewing,
		CashTendered: decimal.Zero,
		ChangeDue:    decimal.Zero,
	}
}

func (e *Engine) AddToCart(product domain.Product, quantity int, stock domain.StockSnapshot) (CartUpdated, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.beginEdit(); err != nil {
		return CartUpdated{}, err
	}
	if quantity <= 0 {
		return CartUpdated{}, ErrInvalidQuantity
	}
	level, ok := stock.ForProduct(product.ID)
	if !ok || level.QuantityOnHand < quantity {
		return CartUpdated{}, ErrInsufficientStock
	}

	if e.checkout.Phase == domain.CheckoutPhaseCompleted {
		e.checkout = newCheckoutSession()
	}

	line, exists := e.lines[level.StockID]
	if !exists {
		line = &domain.CartLine{
			StockID:     level.StockID,
			ProductID:   product.ID,
			Name:        product.Name,
			Description: product.Description,
			UnitPrice:   product.Price,
			LineTotal:   decimal.Zero,
		}
		e.lines[level.StockID] = line
		e.sequence = append(e.sequence, level.StockID)
	}

	// the unit price is fixed when the line is created
	added := line.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	line.Quantity += quantity
	line.LineTotal = line.LineTotal.Add(added)
	e.total = e.total.Add(added)

	e.log.WithFields(logrus.Fields{
		"stock_id":   level.StockID,
		"product_id": product.ID,
		"quantity":   line.Quantity,
	}).Debug("cart line updated")

	return e.snapshotLocked(), nil
}

// RemoveFromCart drops the line for stockID. Removing an absent line is not an error.
func (e *Engine) RemoveFromCart(stockID int64) (CartUpdated, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.beginEdit(); err != nil {
		return CartUpdated{}, err
	}

	line, exists := e.lines[stockID]
	if !exists {
		return e.snapshotLocked(), nil
	}

	e.total = e.total.Sub(line.LineTotal)
	delete(e.lines, stockID)
	for i, id := range e.sequence {
		if id == stockID {
			e.sequence = append(e.sequence[:i], e.sequence[i+1:]...)
			break
		}
	}

	return e.snapshotLocked(), nil
}

func (e *Engine) beginEdit() error {
	switch {
	case e.checkout.Phase == domain.CheckoutPhaseSubmitting:
		return ErrSubmissionInProgress
	case !e.checkout.Phase.AcceptsCartEdits():
		return ErrCheckoutLocked
	}
	return nil
}

// ResetCart empties the cart and returns the checkout to Reviewing.
func (e *Engine) ResetCart() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.checkout.Phase == domain.CheckoutPhaseSubmitting {
		return ErrSubmissionInProgress
	}
	e.resetLocked()
	e.checkout = newCheckoutSession()
	return nil
}

func (e *Engine) resetLocked() {
	e.lines = make(map[int64]*domain.CartLine)
	e.sequence = nil
	e.total = decimal.Zero
}

// CartTotal is the incrementally maintained total.
func (e *Engine) CartTotal() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.total
}

// RecomputeTotal sums quantity x unit price over the current lines from scratch.
func (e *Engine) RecomputeTotal() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()

	sum := decimal.Zero
	for _, line := range e.lines {
		sum = sum.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return sum
}

func (e *Engine) Cart() CartUpdated {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) Lines() []domain.CartLine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.linesLocked()
}

// StockDecrementRequest maps each stockID in the cart to its line quantity.
func (e *Engine) StockDecrementRequest() map[int64]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stockRequestLocked()
}

// OrderDraft lists one product id per purchased unit, grouped by line.
func (e *Engine) OrderDraft() []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.orderDraftLocked()
}

func (e *Engine) Checkout() CheckoutSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.checkout
}

func (e *Engine) snapshotLocked() CartUpdated {
	return CartUpdated{
		Lines: e.linesLocked(),
		Total: e.total,
	}
}

func (e *Engine) linesLocked() []domain.CartLine {
	lines := make([]domain.CartLine, 0, len(e.sequence))
	for _, id := range e.sequence {
		lines = append(lines, *e.lines[id])
	}
	return lines
}

func (e *Engine) stockRequestLocked() map[int64]int {
	request := make(map[int64]int, len(e.lines))
	for id, line := range e.lines {
		request[id] = line.Quantity
	}
	return request
}

func (e *Engine) orderDraftLocked() []int64 {
	var draft []int64
	for _, id := range e.sequence {
		line := e.lines[id]
		for i := 0; i < line.Quantity; i++ {
			draft = append(draft, line.ProductID)
		}
	}
	return draft
}
