package resource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/resilience"
)

const schema = `CREATE TABLE IF NOT EXISTS resources (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const defaultQueryTimeout = 5 * time.Second

// PostgresStore keeps resources in the resources table. Every statement runs
// through a circuit breaker; reads are retried on transient failures.
type PostgresStore struct {
	db           *postgres.Client
	breaker      *resilience.CircuitBreaker
	retry        resilience.RetryConfig
	queryTimeout time.Duration
	logger       *slog.Logger
}

func NewPostgresStore(db *postgres.Client, breaker *resilience.CircuitBreaker) *PostgresStore {
	return &PostgresStore{
		db:      db,
		breaker: breaker,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 50 * time.Millisecond,
			Retryable:    isTransient,
		},
		queryTimeout: defaultQueryTimeout,
		logger:       slog.Default().With("component", "resource-store"),
	}
}

// Ping checks connectivity through the breaker, bounded by the query timeout.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return resilience.WithTimeout(ctx, s.queryTimeout, "resource.ping", func(ctx context.Context) error {
		return s.exec(ctx, "resource.ping", s.db.Ping)
	})
}

// EnsureSchema creates the resources table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	return s.exec(ctx, "resource.schema", func(ctx context.Context) error {
		_, err := s.db.DB.ExecContext(ctx, schema)
		return err
	})
}

func (s *PostgresStore) Put(ctx context.Context, r Resource) (Resource, error) {
	err := s.exec(ctx, "resource.put", func(ctx context.Context) error {
		return s.db.InTx(ctx, func(tx *sql.Tx) error {
			return tx.QueryRowContext(ctx,
				`INSERT INTO resources (id, title, content)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, content = EXCLUDED.content, updated_at = NOW()
		RETURNING created_at, updated_at`, r.ID, r.Title, r.Content).Scan(&r.CreatedAt, &r.UpdatedAt)
		})
	})
	if err != nil {
		return Resource{}, fmt.Errorf("storing resource %s: %w", r.ID, err)
	}
	return r, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Resource, error) {
	var r Resource
	found := true
	err := s.read(ctx, "resource.get", func(ctx context.Context) error {
		err := s.db.DB.QueryRowContext(ctx,
			`SELECT id, title, content, created_at, updated_at FROM resources WHERE id = $1`, id).
			Scan(&r.ID, &r.Title, &r.Content, &r.CreatedAt, &r.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		return err
	})
	if err != nil {
		return Resource{}, fmt.Errorf("loading resource %s: %w", id, err)
	}
	if !found {
		return Resource{}, fmt.Errorf("loading resource %s: %w", id, apperrors.ErrResourceNotFound)
	}
	return r, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	var affected int64
	err := s.exec(ctx, "resource.delete", func(ctx context.Context) error {
		res, err := s.db.DB.ExecContext(ctx, `DELETE FROM resources WHERE id = $1`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("deleting resource %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("deleting resource %s: %w", id, apperrors.ErrResourceNotFound)
	}
	return nil
}

// List returns every resource ordered by ID.
func (s *PostgresStore) List(ctx context.Context) ([]Resource, error) {
	var out []Resource
	err := s.read(ctx, "resource.list", func(ctx context.Context) error {
		rows, err := s.db.DB.QueryContext(ctx,
			`SELECT id, title, content, created_at, updated_at FROM resources ORDER BY id`)
		if err != nil {
			return err
		}
		defer rows.Close()
		out = out[:0]
		for rows.Next() {
			var r Resource
			if err := rows.Scan(&r.ID, &r.Title, &r.Content, &r.CreatedAt, &r.UpdatedAt); err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("listing resources: %w", err)
	}
	if out == nil {
		out = []Resource{}
	}
	return out, nil
}

func (s *PostgresStore) read(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return resilience.Retry(ctx, name, s.retry, func() error {
		return s.exec(ctx, name, fn)
	})
}

func (s *PostgresStore) exec(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	err := s.breaker.Execute(func() error {
		qctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
		return fn(qctx)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		s.logger.Warn("postgres call rejected", "operation", name)
		return fmt.Errorf("%w: %w", apperrors.ErrUnavailable, err)
	}
	return err
}

func isTransient(err error) bool {
	return !errors.Is(err, apperrors.ErrUnavailable) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}
