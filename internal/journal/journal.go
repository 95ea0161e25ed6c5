package journal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fjod/megamart-storefront/internal/cart"
	"github.com/fjod/megamart-storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventSubmissionCompleted = "SubmissionCompleted"
	EventSubmissionFailed    = "SubmissionFailed"
)

var (
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrEventNotFound      = errors.New("outbox event not found")
	ErrOutcomeNotFinal    = errors.New("submission outcome must be completed or failed")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// Entry is the latest known state of one submission. Retries of the same
// checkout update the entry in place and bump Attempts.
type Entry struct {
	SubmissionID     uuid.UUID         `json:"submission_id"`
	OrderID          *string           `json:"order_id,omitempty"`
	Outcome          string            `json:"outcome"`
	FailedStep       *string           `json:"failed_step,omitempty"`
	StockDecremented bool              `json:"stock_decremented"`
	LastError        *string           `json:"last_error,omitempty"`
	Total            decimal.Decimal   `json:"total"`
	CashTendered     decimal.Decimal   `json:"cash_tendered"`
	ChangeDue        decimal.Decimal   `json:"change_due"`
	Lines            []domain.CartLine `json:"lines"`
	Attempts         int               `json:"attempts"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

type OutboxEvent struct {
	ID          int
	AggregateId string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

type RepoInterface interface {
	cart.Recorder
	GetSubmission(ctx context.Context, id uuid.UUID) (*Entry, error)
	ListPartialFailures(ctx context.Context) ([]*Entry, error)
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int) error
	Ping(ctx context.Context) error
	RunMigrations(*Credentials) error
	Close() error
}

type eventPayload struct {
	SubmissionID     uuid.UUID         `json:"submission_id"`
	OrderID          string            `json:"order_id,omitempty"`
	Outcome          string            `json:"outcome"`
	FailedStep       string            `json:"failed_step,omitempty"`
	StockDecremented bool              `json:"stock_decremented"`
	Error            string            `json:"error,omitempty"`
	Total            decimal.Decimal   `json:"total"`
	CashTendered     decimal.Decimal   `json:"cash_tendered"`
	ChangeDue        decimal.Decimal   `json:"change_due"`
	Currency         string            `json:"currency"`
	Lines            []domain.CartLine `json:"lines"`
	AttemptedAt      time.Time         `json:"attempted_at"`
}

func newEventPayload(s cart.Submission) eventPayload {
	return eventPayload{
		SubmissionID:     s.ID,
		OrderID:          s.OrderID,
		Outcome:          string(s.Outcome),
		FailedStep:       string(s.FailedStep),
		StockDecremented: s.StockDecremented,
		Error:            s.Error,
		Total:            s.Total,
		CashTendered:     s.CashTendered,
		ChangeDue:        s.ChangeDue,
		Currency:         domain.Currency,
		Lines:            s.Lines,
		AttemptedAt:      s.AttemptedAt,
	}
}

func eventType(s cart.Submission) string {
	if s.Outcome == domain.CheckoutPhaseCompleted {
		return EventSubmissionCompleted
	}
	return EventSubmissionFailed
}
