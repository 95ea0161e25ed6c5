package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/megamart-storefront/internal/cart"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "journal_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

// RecordSubmission upserts the submission entry and queues an outbox event in one
// transaction.
func (r *Repository) RecordSubmission(ctx context.Context, s cart.Submission) error {
	if !s.Outcome.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrOutcomeNotFinal, s.Outcome)
	}
	linesJSON, err := json.Marshal(s.Lines)
	if err != nil {
		return fmt.Errorf("failed to marshal submission lines: %w", err)
	}
	payloadJSON, err := json.Marshal(newEventPayload(s))
	if err != nil {
		return fmt.Errorf("failed to marshal submission event: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	upsert := `INSERT INTO submissions (submission_id, order_id, outcome, failed_step, stock_decremented,
	                                    last_error, total, cash_tendered, change_due, lines, attempts, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $11)
	           ON CONFLICT (submission_id) DO UPDATE SET
	               order_id          = EXCLUDED.order_id,
	               outcome           = EXCLUDED.outcome,
	               failed_step       = EXCLUDED.failed_step,
	               stock_decremented = submissions.stock_decremented OR EXCLUDED.stock_decremented,
	               last_error        = EXCLUDED.last_error,
	               total             = EXCLUDED.total,
	               cash_tendered     = EXCLUDED.cash_tendered,
	               change_due        = EXCLUDED.change_due,
	               lines             = EXCLUDED.lines,
	               attempts          = submissions.attempts + 1,
	               updated_at        = EXCLUDED.updated_at`

	if _, errUpsert := tx.ExecContext(ctx, upsert,
		s.ID,
		nullString(s.OrderID),
		string(s.Outcome),
		nullString(string(s.FailedStep)),
		s.StockDecremented,
		nullString(s.Error),
		s.Total,
		s.CashTendered,
		s.ChangeDue,
		linesJSON,
		s.AttemptedAt,
	); errUpsert != nil {
		return fmt.Errorf("upsert submission: %w", errUpsert)
	}

	outbox := `INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
	           VALUES ($1, $2, $3, NOW())`
	if _, errOutbox := tx.ExecContext(ctx, outbox, s.ID.String(), eventType(s), payloadJSON); errOutbox != nil {
		return fmt.Errorf("insert outbox event: %w", errOutbox)
	}

	if errCommit := tx.Commit(); errCommit != nil {
		return fmt.Errorf("commit submission: %w", errCommit)
	}
	return nil
}

const entryColumns = `submission_id, order_id, outcome, failed_step, stock_decremented, last_error,
	                  total, cash_tendered, change_due, lines, attempts, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var entry Entry
	var orderID, failedStep, lastError sql.NullString
	var linesJSON []byte
	if err := row.Scan(
		&entry.SubmissionID,
		&orderID,
		&entry.Outcome,
		&failedStep,
		&entry.StockDecremented,
		&lastError,
		&entry.Total,
		&entry.CashTendered,
		&entry.ChangeDue,
		&linesJSON,
		&entry.Attempts,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	); err != nil {
		return nil, err
	}
	entry.OrderID = stringPtr(orderID)
	entry.FailedStep = stringPtr(failedStep)
	entry.LastError = stringPtr(lastError)

	if err := json.Unmarshal(linesJSON, &entry.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal submission lines: %w", err)
	}
	return &entry, nil
}

func (r *Repository) GetSubmission(ctx context.Context, id uuid.UUID) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM submissions WHERE submission_id = $1`

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query submission by id: %w", err)
	}
	return entry, nil
}

// ListPartialFailures returns submissions whose stock was decremented on the
// backend while no order was created. Those need manual reconciliation.
func (r *Repository) ListPartialFailures(ctx context.Context) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM submissions
	          WHERE outcome = 'FAILED' AND stock_decremented AND order_id IS NULL
	          ORDER BY updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query partial failures: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		entry, errScan := scanEntry(rows)
		if errScan != nil {
			return nil, fmt.Errorf("scan submission row: %w", errScan)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM outbox_events
	          WHERE processed_at IS NULL
	          ORDER BY created_at, id
	          LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var event OutboxEvent
		var payload []byte
		if errScan := rows.Scan(&event.ID, &event.AggregateId, &event.EventType, &payload, &event.CreatedAt); errScan != nil {
			return nil, fmt.Errorf("scan outbox row: %w", errScan)
		}
		event.Payload = payload
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET processed_at = NOW() WHERE id = $1 AND processed_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	if affected == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
