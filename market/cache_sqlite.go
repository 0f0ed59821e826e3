package market

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteCacheSchema = `
CREATE TABLE IF NOT EXISTS quote_cache (
	key TEXT PRIMARY KEY,
	payload BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);`

// SQLiteCacheConfig configures the SQLite-backed quote cache.
type SQLiteCacheConfig struct {
	DSN string
	Now func() time.Time
}

// SQLiteCache persists provider responses in SQLite so cached market data
// survives restarts.
type SQLiteCache struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteCache opens (or creates) a SQLite-backed quote cache.
func NewSQLiteCache(cfg SQLiteCacheConfig) (*SQLiteCache, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("market: sqlite cache dsn is required")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("market: sqlite cache open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("market: sqlite cache set WAL mode: %w", err)
	}
	if _, err := db.Exec(sqliteCacheSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("market: sqlite cache create schema: %w", err)
	}

	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &SQLiteCache{db: db, now: now}, nil
}

// Close releases the underlying database handle.
func (c *SQLiteCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get returns the payload for key when present and unexpired.
func (c *SQLiteCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM quote_cache WHERE key = ?`, key)

	var payload []byte
	var expiresAt int64
	if err := row.Scan(&payload, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("market: sqlite cache get %q: %w", key, err)
	}
	if c.now().Unix() > expiresAt {
		return nil, false, nil
	}
	return payload, true, nil
}

// Put stores payload under key for ttl.
func (c *SQLiteCache) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	expiresAt := c.now().Add(ttl).Unix()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO quote_cache (key, payload, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at`,
		key, payload, expiresAt)
	if err != nil {
		return fmt.Errorf("market: sqlite cache put %q: %w", key, err)
	}
	return nil
}

// Keys lists all stored keys in deterministic order.
func (c *SQLiteCache) Keys(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT key FROM quote_cache ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("market: sqlite cache keys: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("market: sqlite cache scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("market: sqlite cache iterate keys: %w", err)
	}
	return keys, nil
}

// Delete removes key.
func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM quote_cache WHERE key = ?`, key); err != nil {
		return fmt.Errorf("market: sqlite cache delete %q: %w", key, err)
	}
	return nil
}
