package usage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nghyane/llm-mux-monitor/internal/config"
)

// ErrUnsupportedDSN is returned by OpenStore for an empty or unknown DSN.
var ErrUnsupportedDSN = errors.New("usage DSN is required (use sqlite:// or postgres://)")

// Store reads the gateway's usage_records table.
// Implementations must be safe for concurrent use.
type Store interface {
	// Usage rebuilds the nested dataset from records newer than the lookback.
	Usage(ctx context.Context) (*Dataset, error)

	// Close releases the underlying connection pool.
	Close() error
}

// StoreConfig holds parameters for store initialization.
type StoreConfig struct {
	// DSN is the database connection string (sqlite://... or postgres://...).
	DSN string

	// LookbackDays bounds how far back records are read.
	LookbackDays int
}

const defaultLookbackDays = 30

func (c StoreConfig) since(now time.Time) time.Time {
	days := c.LookbackDays
	if days <= 0 {
		days = defaultLookbackDays
	}
	return now.Add(-time.Duration(days) * 24 * time.Hour).UTC()
}

// OpenStore opens the store matching the DSN scheme.
func OpenStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	parsed, err := config.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedDSN, err)
	}
	if parsed == nil {
		return nil, ErrUnsupportedDSN
	}

	switch parsed.Backend {
	case "postgres":
		return NewPostgresStore(ctx, parsed.URL, cfg)
	case "sqlite":
		return NewSQLiteStore(parsed.Path, cfg)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrUnsupportedDSN, parsed.Backend)
	}
}

// row is one usage_records row as read by either backend.
type row struct {
	provider    string
	model       string
	apiKey      string
	authIndex   int64
	source      string
	requestedAt time.Time
	failed      bool
	tokens      TokenStats
}

// detail converts a row. Auth index 0 means the record has no auth file.
func (r row) detail() Detail {
	d := Detail{
		Timestamp: r.requestedAt.UTC().Format(time.RFC3339Nano),
		Failed:    r.failed,
		Source:    r.source,
		Tokens:    r.tokens,
	}
	if r.authIndex > 0 {
		d.AuthIndex = strconv.FormatInt(r.authIndex, 10)
	}
	return d
}

// group returns the API key a row is listed under, falling back to the
// provider for requests made without a client key.
func (r row) group() string {
	if r.apiKey != "" {
		return r.apiKey
	}
	if r.provider != "" {
		return r.provider
	}
	return "unknown"
}

func (r row) modelName() string {
	if r.model == "" {
		return "unknown"
	}
	return r.model
}

// buildDataset folds rows, already ordered by time, into a dataset.
func buildDataset(rows []row) *Dataset {
	ds := NewDataset()
	for _, r := range rows {
		ds.Add(r.group(), r.modelName(), r.detail())
	}
	return ds
}
