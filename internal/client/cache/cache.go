// Package cache implements the durable local cache: a persistent key-value
// store backed by SQLite that survives process restarts. It holds the three
// diary collections (entries, summaries, pending queue) as JSON blobs.
//
// The cache never returns errors to callers. On the first database failure it
// degrades to a no-op for the rest of the process lifetime: loads return the
// fallback, saves are ignored, and the failure is logged once. The broken
// state is owned by the Cache value, so tests get a fresh instance each time.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/onelinediary/client/internal/client/cache/migrations"
	"github.com/onelinediary/client/internal/dbx"
	"github.com/onelinediary/client/internal/logging"

	_ "modernc.org/sqlite"
)

// Keys of the three diary collections.
const (
	KeyEntries   = "onelinediary.entries"
	KeySummaries = "onelinediary.summaries"
	KeyQueue     = "onelinediary.queue"
)

// Cache is a durable key-value store with permanent in-process degradation
// on storage failure.
type Cache struct {
	db  *sql.DB
	log logging.Logger

	mu     sync.Mutex
	broken bool
	warned bool
}

// Open opens (or creates) the cache database at dsn and runs migrations.
func Open(ctx context.Context, dsn string, log logging.Logger) (*Cache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db, log), nil
}

// New wraps an already-open database. The caller keeps ownership of db only
// until Close is called on the cache.
func New(db *sql.DB, log logging.Logger) *Cache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Cache{db: db, log: log}
}

// RunMigrations applies the embedded goose migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Broken reports whether the cache has degraded to a no-op.
func (c *Cache) Broken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.broken
}

// Load reads the JSON value stored under key into dst. It returns false when
// there is nothing usable for the key (absent, storage broken, or undecodable)
// and the caller should use its fallback. Load never fails.
func (c *Cache) Load(ctx context.Context, key string, dst any) bool {
	if c.Broken() {
		return false
	}
	var raw []byte
	row := c.db.QueryRowContext(ctx, `SELECT value FROM cache_kv WHERE key = ?`, key)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false
		}
		c.fail(ctx, "load", key, err)
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// A single undecodable key does not poison the channel itself.
		c.warnOnce(ctx, "decode", key, err)
		return false
	}
	return true
}

// Save stores v as JSON under key. Failures are swallowed; the first one
// degrades the cache permanently.
func (c *Cache) Save(ctx context.Context, key string, v any) {
	if c.Broken() {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.warnOnce(ctx, "encode", key, err)
		return
	}
	if err := c.put(ctx, c.db, key, raw); err != nil {
		c.fail(ctx, "save", key, err)
	}
}

// SaveAll stores several keys atomically, so a crash mid-write cannot leave
// the collections referencing each other inconsistently (e.g. a queue without
// its entries).
func (c *Cache) SaveAll(ctx context.Context, items map[string]any) {
	if c.Broken() || len(items) == 0 {
		return
	}
	encoded := make(map[string][]byte, len(items))
	for key, v := range items {
		raw, err := json.Marshal(v)
		if err != nil {
			c.warnOnce(ctx, "encode", key, err)
			return
		}
		encoded[key] = raw
	}
	err := dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for key, raw := range encoded {
			if err := c.put(ctx, tx, key, raw); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.fail(ctx, "save", "all", err)
	}
}

func (c *Cache) put(ctx context.Context, db dbx.DBTX, key string, raw []byte) error {
	query := `INSERT INTO cache_kv (key, value, updated_at)
			VALUES (?, ?, datetime('now'))
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, query, key, raw)
	return err
}

// fail degrades the cache permanently and logs the cause once.
func (c *Cache) fail(ctx context.Context, op, key string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broken = true
	if !c.warned {
		c.warned = true
		c.log.Warn(ctx, "local cache unavailable, continuing without persistence", "op", op, "key", key, "error", err)
	}
}

func (c *Cache) warnOnce(ctx context.Context, op, key string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.warned {
		c.warned = true
		c.log.Warn(ctx, "local cache value unusable", "op", op, "key", key, "error", err)
	}
}
