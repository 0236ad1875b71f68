package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore reads usage records from PostgreSQL with pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
	cfg  StoreConfig
}

// NewPostgresStore connects and verifies the pool.
func NewPostgresStore(ctx context.Context, dsn string, cfg StoreConfig) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool, cfg: cfg}, nil
}

// Usage returns every record since the lookback, oldest first.
func (s *PostgresStore) Usage(ctx context.Context) (*Dataset, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			provider, model, api_key, auth_index, source, requested_at, failed,
			input_tokens, output_tokens, reasoning_tokens, cached_tokens, total_tokens
		FROM usage_records
		WHERE requested_at >= $1
		ORDER BY requested_at, id
	`, s.cfg.since(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(rs pgx.CollectableRow) (row, error) {
		var r row
		err := rs.Scan(
			&r.provider, &r.model, &r.apiKey, &r.authIndex, &r.source, &r.requestedAt, &r.failed,
			&r.tokens.InputTokens, &r.tokens.OutputTokens, &r.tokens.ReasoningTokens,
			&r.tokens.CachedTokens, &r.tokens.TotalTokens,
		)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read usage records: %w", err)
	}
	return buildDataset(out), nil
}

func (s *PostgresStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}
