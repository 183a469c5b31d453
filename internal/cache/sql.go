package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder syntax and connection setup.
type Dialect string

// Supported SQL dialects.
const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	expiredDeleteTimeout    = 5 * time.Second
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS search_cache (
		cache_key     TEXT PRIMARY KEY,
		request_json  TEXT NOT NULL,
		response_json TEXT NOT NULL,
		expires_at    BIGINT NOT NULL,
		updated_at    BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS search_cache_expires_at_idx ON search_cache (expires_at)`,
}

// SQLStore is the durable tier on Postgres or SQLite. Timestamps are stored
// as Unix milliseconds so both dialects compare them the same way.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
	now     func() time.Time
}

// OpenSQL connects to dsn, applies the schema and returns the store.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string, logger *slog.Logger) (*SQLStore, error) {
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return nil, fmt.Errorf("unsupported cache dialect %q", dialect)
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		// One writer at a time; WAL lets readers proceed.
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout = 5000"} {
			if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
				_ = db.Close()
				return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
			}
		}
	}

	store := &SQLStore{db: db, dialect: dialect, logger: logger, now: time.Now}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if err := s.exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply cache schema: %w", err)
		}
	}
	return nil
}

// Get implements Store. An expired row is deleted in the background.
func (s *SQLStore) Get(ctx context.Context, key string) (*Entry, error) {
	var (
		request, response    string
		expiresAt, updatedAt int64
	)
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT request_json, response_json, expires_at, updated_at FROM search_cache WHERE cache_key = ?`), key)
	if err := row.Scan(&request, &response, &expiresAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get %s: %w", ErrUnavailable, key, err)
	}

	entry := &Entry{
		Key:       key,
		Request:   []byte(request),
		Response:  []byte(response),
		ExpiresAt: time.UnixMilli(expiresAt),
		UpdatedAt: time.UnixMilli(updatedAt),
	}
	if entry.Expired(s.now()) {
		go s.deleteExpired(key, expiresAt)
		return nil, nil
	}
	return entry, nil
}

// deleteExpired removes one expired row unless it was rewritten meanwhile.
func (s *SQLStore) deleteExpired(key string, expiresAt int64) {
	ctx, cancel := context.WithTimeout(context.Background(), expiredDeleteTimeout)
	defer cancel()

	err := s.exec(ctx, s.rebind(`DELETE FROM search_cache WHERE cache_key = ? AND expires_at <= ?`), key, expiresAt)
	if err != nil {
		s.logger.Debug("failed to delete expired cache row", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// Set implements Store.
func (s *SQLStore) Set(ctx context.Context, entry *Entry) error {
	updatedAt := entry.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now()
	}

	err := s.exec(ctx, s.rebind(`
		INSERT INTO search_cache (cache_key, request_json, response_json, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET
			request_json = excluded.request_json,
			response_json = excluded.response_json,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`),
		entry.Key, string(entry.Request), string(entry.Response), entry.ExpiresAt.UnixMilli(), updatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("%w: set %s: %w", ErrUnavailable, entry.Key, err)
	}
	return nil
}

// Sweep implements Sweeper.
func (s *SQLStore) Sweep(ctx context.Context) (int64, error) {
	var res sql.Result
	err := s.retry(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, s.rebind(`DELETE FROM search_cache WHERE expires_at < ?`), s.now().UnixMilli())
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("%w: sweep: %w", ErrUnavailable, err)
	}
	return res.RowsAffected()
}

// Close implements Store.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) error {
	return s.retry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// rebind rewrites ? placeholders to $N for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// retry repeats op while SQLite reports the database busy.
func (s *SQLStore) retry(ctx context.Context, op func() error) error {
	if s.dialect != DialectSQLite {
		return op()
	}

	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func isSQLiteBusy(err error) bool {
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
