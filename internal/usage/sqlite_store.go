package usage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/nghyane/llm-mux-monitor/internal/util"
	_ "modernc.org/sqlite"
)

// SQLiteStore reads usage records from the gateway's SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	cfg StoreConfig
}

// NewSQLiteStore opens dbPath with query_only set. The file must already exist.
func NewSQLiteStore(dbPath string, cfg StoreConfig) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("SQLite path is required")
	}
	resolved, err := util.ResolvePath(dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(resolved); err != nil {
		return nil, fmt.Errorf("usage database: %w", err)
	}

	db, err := sql.Open("sqlite", resolved+"?_pragma=busy_timeout(5000)&_pragma=query_only(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return &SQLiteStore{db: db, cfg: cfg}, nil
}

// Usage returns every record since the lookback, oldest first.
func (s *SQLiteStore) Usage(ctx context.Context) (*Dataset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			provider, model, api_key, auth_index, source, requested_at, failed,
			input_tokens, output_tokens, reasoning_tokens, cached_tokens, total_tokens
		FROM usage_records
		WHERE requested_at >= ?
		ORDER BY requested_at, id
	`, s.cfg.since(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	var out []row
	for rows.Next() {
		var r row
		var requestedAt any
		if err := rows.Scan(
			&r.provider, &r.model, &r.apiKey, &r.authIndex, &r.source, &requestedAt, &r.failed,
			&r.tokens.InputTokens, &r.tokens.OutputTokens, &r.tokens.ReasoningTokens,
			&r.tokens.CachedTokens, &r.tokens.TotalTokens,
		); err != nil {
			return nil, err
		}
		t, ok := sqliteTime(requestedAt)
		if !ok {
			continue
		}
		r.requestedAt = t
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return buildDataset(out), nil
}

// sqliteTime decodes a TIMESTAMP column, which the driver may hand back as
// a time, text or a unix number.
func sqliteTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		return ParseTimestamp(t)
	case []byte:
		return ParseTimestamp(string(t))
	case int64:
		return time.Unix(t, 0), true
	default:
		return time.Time{}, false
	}
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
