// Package worker drains the audit outbox table and publishes events to Kafka.
//
// The outbox pattern keeps audit writes transactional with the state change
// that produced them; this worker makes delivery eventually consistent
// without coupling request latency to the broker.
package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Producer publishes a single serialized audit event. Keyed by aggregate ID so
// per-user event ordering is preserved within a partition.
type Producer interface {
	Produce(ctx context.Context, key string, payload []byte) error
}

// OutboxWorker polls the outbox table for unpublished rows and hands them to
// the producer, marking each row published on success.
type OutboxWorker struct {
	db        *sql.DB
	producer  Producer
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// New constructs an outbox worker. Interval controls polling frequency;
// batchSize bounds how many rows are claimed per poll.
func New(db *sql.DB, producer Producer, logger *slog.Logger, interval time.Duration, batchSize int) *OutboxWorker {
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxWorker{
		db:        db,
		producer:  producer,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run polls until ctx is cancelled. Publish failures leave rows unclaimed for
// the next poll; a single bad row does not stall the batch.
func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.DrainOnce(ctx); err != nil {
				w.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

type outboxRow struct {
	id          string
	aggregateID string
	payload     []byte
}

// DrainOnce claims and publishes up to batchSize unpublished rows.
// Exported for testability; Run calls it on every tick.
func (w *OutboxWorker) DrainOnce(ctx context.Context) error {
	sqlTx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin outbox tx: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	// SKIP LOCKED lets multiple workers drain concurrently without double
	// publishing.
	rows, err := sqlTx.QueryContext(ctx, `
		SELECT id, aggregate_id, payload FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, w.batchSize)
	if err != nil {
		return fmt.Errorf("claim outbox rows: %w", err)
	}

	var claimed []outboxRow
	for rows.Next() {
		var row outboxRow
		if err := rows.Scan(&row.id, &row.aggregateID, &row.payload); err != nil {
			rows.Close()
			return fmt.Errorf("scan outbox row: %w", err)
		}
		claimed = append(claimed, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate outbox rows: %w", err)
	}
	if len(claimed) == 0 {
		return nil
	}

	published := 0
	for _, row := range claimed {
		if err := w.producer.Produce(ctx, row.aggregateID, row.payload); err != nil {
			w.logger.ErrorContext(ctx, "failed to publish audit event",
				"outbox_id", row.id,
				"error", err,
			)
			continue
		}
		if _, err := sqlTx.ExecContext(ctx,
			`UPDATE outbox SET published_at = NOW() WHERE id = $1`, row.id,
		); err != nil {
			return fmt.Errorf("mark outbox row published: %w", err)
		}
		published++
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit outbox tx: %w", err)
	}
	if published > 0 {
		w.logger.DebugContext(ctx, "published audit events", "count", published)
	}
	return nil
}
