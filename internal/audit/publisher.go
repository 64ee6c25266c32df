package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	publishInterval = 2 * time.Second
	publishBatch    = 100
)

// Publisher ships staged outbox rows to Kafka. It polls the outbox table,
// produces each row, and marks it published in the same transaction that
// claimed it. FOR UPDATE SKIP LOCKED lets multiple instances share the work
// without double-publishing; at-least-once delivery is accepted (the consumer
// side dedupes on entry id).
type Publisher struct {
	db     *sql.DB
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

func NewPublisher(db *sql.DB, brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Publisher{db: db, client: client, topic: topic, logger: logger}, nil
}

// EnsureTopic creates the audit topic if it does not exist yet.
func (p *Publisher) EnsureTopic(ctx context.Context) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopic(ctx, 1, 1, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", p.topic, resp.Err)
	}
	return nil
}

// Run polls the outbox until the context ends.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(publishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.publishOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("outbox publish failed", "error", err)
			}
		}
	}
}

func (p *Publisher) publishOnce(ctx context.Context) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin outbox batch: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, user_id, payload FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, publishBatch)
	if err != nil {
		return fmt.Errorf("claim outbox rows: %w", err)
	}

	var ids []string
	var records []*kgo.Record
	for rows.Next() {
		var id, userID string
		var payload []byte
		if err := rows.Scan(&id, &userID, &payload); err != nil {
			rows.Close()
			return fmt.Errorf("scan outbox row: %w", err)
		}
		ids = append(ids, id)
		records = append(records, &kgo.Record{
			Topic: p.topic,
			Key:   []byte(userID),
			Value: payload,
		})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("read outbox rows: %w", err)
	}
	rows.Close()

	if len(records) == 0 {
		return nil
	}

	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit records: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE audit_outbox SET published_at = now() WHERE id = ANY($1)
	`, pq.Array(ids)); err != nil {
		return fmt.Errorf("mark outbox rows published: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit outbox batch: %w", err)
	}

	p.logger.Debug("published audit records", "count", len(records))
	return nil
}

// Close flushes and releases the Kafka client.
func (p *Publisher) Close() {
	p.client.Close()
}
