package application

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"lifecert/pkg/domain"
	"lifecert/pkg/platform/sentinel"
	txcontext "lifecert/pkg/platform/tx"
)

// applicationsChannel carries change notices between instances so live
// subscriptions on one node observe writes from another.
const applicationsChannel = "lifecert:applications:changed"

const applicationsSchema = `
CREATE TABLE IF NOT EXISTS applications (
	id TEXT PRIMARY KEY,
	requester_id TEXT NOT NULL,
	notary_id TEXT,
	status TEXT NOT NULL,
	submitted_at TIMESTAMPTZ NOT NULL,
	attested_at TIMESTAMPTZ,
	record JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_applications_requester ON applications (requester_id);
CREATE INDEX IF NOT EXISTS idx_applications_status ON applications (status);
CREATE INDEX IF NOT EXISTS idx_applications_notary ON applications (notary_id);
`

// PostgresStore persists applications in PostgreSQL. The full record lives in
// a JSONB column; the filterable fields are duplicated into indexed columns.
// ApplyTransition runs its status check and write in one transaction with a
// row lock, so racing transitions against the same record see exactly one
// winner.
type PostgresStore struct {
	db     *sql.DB
	redis  *redis.Client
	logger *slog.Logger
}

// NewPostgres constructs the store. The redis client may be nil; live
// subscriptions then report sentinel.ErrUnavailable.
func NewPostgres(db *sql.DB, redisClient *redis.Client, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{db: db, redis: redisClient, logger: logger}
}

// EnsureSchema creates the applications table and indexes.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, applicationsSchema); err != nil {
		return fmt.Errorf("ensure applications schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) GetByID(ctx context.Context, id domain.ApplicationID) (*Application, error) {
	var raw []byte
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT record FROM applications WHERE id = $1`, string(id)).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("application %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get application: %w", err)
	}
	return decodeRecord(raw)
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]*Application, error) {
	query := `SELECT record FROM applications WHERE 1=1`
	var args []any
	if f.RequesterID != "" {
		args = append(args, f.RequesterID)
		query += fmt.Sprintf(" AND requester_id = $%d", len(args))
	}
	if f.NotaryID != "" {
		args = append(args, f.NotaryID)
		query += fmt.Sprintf(" AND notary_id = $%d", len(args))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, pq.Array(statuses))
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var out []*Application
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		app, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	SortByRelevantDate(out)
	return out, nil
}

func (s *PostgresStore) Create(ctx context.Context, app *Application) error {
	raw, err := json.Marshal(app)
	if err != nil {
		return fmt.Errorf("encode application: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO applications (id, requester_id, notary_id, status, submitted_at, attested_at, record)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, string(app.ID), app.RequesterID, nullString(app.NotaryID), string(app.Status),
		app.SubmittedDate, nullTime(app.AttestationDate), raw)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("application %s: %w", app.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create application: %w", err)
	}

	s.notifyChanged(ctx, app.ID)
	return nil
}

func (s *PostgresStore) ApplyTransition(ctx context.Context, id domain.ApplicationID, expected Status, mutate func(*Application) error) (*Application, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	txCtx := txcontext.WithTx(ctx, tx)

	var raw []byte
	err = tx.QueryRowContext(ctx,
		`SELECT record FROM applications WHERE id = $1 FOR UPDATE`, string(id)).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("application %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("lock application: %w", err)
	}

	app, err := decodeRecord(raw)
	if err != nil {
		return nil, err
	}
	if app.Status != expected {
		return nil, fmt.Errorf("application %s is %s, expected %s: %w",
			id, app.Status, expected, sentinel.ErrInvalidState)
	}

	if err := mutate(app); err != nil {
		return nil, err
	}

	updated, err := json.Marshal(app)
	if err != nil {
		return nil, fmt.Errorf("encode application: %w", err)
	}
	if _, err := s.execer(txCtx).ExecContext(txCtx, `
		UPDATE applications
		SET notary_id = $2, status = $3, attested_at = $4, record = $5
		WHERE id = $1
	`, string(id), nullString(app.NotaryID), string(app.Status),
		nullTime(app.AttestationDate), updated); err != nil {
		return nil, fmt.Errorf("update application: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}

	s.notifyChanged(ctx, id)
	return app, nil
}

func (s *PostgresStore) Subscribe(ctx context.Context, f Filter) (*Subscription, error) {
	if s.redis == nil {
		return nil, fmt.Errorf("live subscriptions require redis: %w", sentinel.ErrUnavailable)
	}

	subCtx, cancel := context.WithCancel(ctx)
	pubsub := s.redis.Subscribe(subCtx, applicationsChannel)
	sub := newSubscription(func() {
		cancel()
		_ = pubsub.Close()
	})

	go func() {
		if apps, err := s.List(subCtx, f); err == nil {
			sub.push(apps)
		} else if subCtx.Err() == nil {
			s.logger.Warn("initial subscription snapshot failed", "error", err)
		}

		changes := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				apps, err := s.List(subCtx, f)
				if err != nil {
					if subCtx.Err() == nil {
						s.logger.Warn("subscription re-query failed", "error", err)
					}
					continue
				}
				sub.push(apps)
			}
		}
	}()

	return sub, nil
}

// notifyChanged is best-effort: a missed notice only delays a snapshot until
// the next change, it never loses data.
func (s *PostgresStore) notifyChanged(ctx context.Context, id domain.ApplicationID) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Publish(ctx, applicationsChannel, string(id)).Err(); err != nil {
		s.logger.Warn("publish change notice failed", "application_id", string(id), "error", err)
	}
}

func decodeRecord(raw []byte) (*Application, error) {
	var app Application
	if err := json.Unmarshal(raw, &app); err != nil {
		return nil, fmt.Errorf("decode application record: %w", err)
	}
	return &app, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
