package publisher

import (
	"context"
	"time"

	"github.com/fjod/megamart-storefront/internal/journal"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const batchSize = 100

type EventSource interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*journal.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int) error
	ListPartialFailures(ctx context.Context) ([]*journal.Entry, error)
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Options struct {
	Topic         string
	EventTick     time.Duration
	ReconcileTick time.Duration
	Timeout       time.Duration
}

type OutboxPoller struct {
	timeout       time.Duration
	eventTick     time.Duration
	reconcileTick time.Duration
	repo          EventSource
	writer        MessageWriter
	log           logrus.FieldLogger
}

func NewOutboxPoller(repo EventSource, opts Options, log logrus.FieldLogger, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  opts.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return newOutboxPoller(repo, w, opts, log)
}

func newOutboxPoller(repo EventSource, writer MessageWriter, opts Options, log logrus.FieldLogger) *OutboxPoller {
	if opts.EventTick <= 0 {
		opts.EventTick = time.Second
	}
	if opts.ReconcileTick <= 0 {
		opts.ReconcileTick = time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &OutboxPoller{
		timeout:       opts.Timeout,
		eventTick:     opts.EventTick,
		reconcileTick: opts.ReconcileTick,
		repo:          repo,
		writer:        writer,
		log:           log,
	}
}

// Run publishes journal events until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	reconcileTicker := time.NewTicker(p.reconcileTick)
	defer eventTicker.Stop()
	defer reconcileTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-reconcileTicker.C:
			p.reportPartialFailures(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.log.WithError(err).Error("failed to fetch outbox events")
		return
	}

	for _, event := range events {
		log := p.log.WithFields(logrus.Fields{
			"event_id":      event.ID,
			"submission_id": event.AggregateId,
		})
		if errPublish := p.publishToKafka(ctx, event); errPublish != nil {
			log.WithError(errPublish).Error("failed to publish event")
			continue
		}

		if errMark := p.repo.MarkEventAsProcessed(ctx, event.ID); errMark != nil {
			log.WithError(errMark).Error("failed to mark event as processed")
			continue
		}
		log.Debug("event published")
	}
}

// reportPartialFailures keeps orders whose stock was taken without an order being
// created visible in the logs until someone reconciles them.
func (p *OutboxPoller) reportPartialFailures(ctx context.Context) {
	entries, err := p.repo.ListPartialFailures(ctx)
	if err != nil {
		p.log.WithError(err).Error("failed to list partial failures")
		return
	}
	for _, entry := range entries {
		p.log.WithFields(logrus.Fields{
			"submission_id": entry.SubmissionID,
			"total":         entry.Total.String(),
			"attempts":      entry.Attempts,
			"updated_at":    entry.UpdatedAt,
		}).Warn("stock decremented without an order, needs reconciliation")
	}
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *journal.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateId), // submission id keeps retries ordered
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.writer.WriteMessages(writeCtx, msg)
}
