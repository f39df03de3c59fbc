package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vindiesel/vin-engine/internal/config"
)

const (
	dialectSQLite   = "sqlite3"
	dialectPostgres = "postgres"
)

// SQLClient implements cache on a cache_entries table. The same statements
// run on SQLite and Postgres; only the DDL differs.
type SQLClient struct {
	db      *sql.DB
	dialect string
	now     func() time.Time
}

// OpenSQLite opens (or creates) a SQLite cache database.
func OpenSQLite(cfg config.SQLiteConfig) (*SQLClient, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open(dialectSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 || path == ":memory:" {
		// Every connection to :memory: gets its own database.
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)

	if cfg.JournalMode != "" && path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=" + cfg.JournalMode); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set journal mode: %w", err)
		}
	}

	return newSQLClient(db, dialectSQLite)
}

// OpenPostgres connects to Postgres and ensures the cache table exists.
func OpenPostgres(cfg config.PostgresConfig) (*SQLClient, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres dsn is required")
	}

	db, err := sql.Open(dialectPostgres, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return newSQLClient(db, dialectPostgres)
}

func newSQLClient(db *sql.DB, dialect string) (*SQLClient, error) {
	c := &SQLClient{db: db, dialect: dialect, now: time.Now}
	if err := c.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLClient) migrate(ctx context.Context) error {
	valueType := "BLOB"
	if c.dialect == dialectPostgres {
		valueType = "BYTEA"
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS cache_entries (
	cache_key  TEXT PRIMARY KEY,
	value      %s NOT NULL,
	expires_at BIGINT NOT NULL
)`, valueType)

	if _, err := c.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create cache_entries: %w", err)
	}
	return nil
}

// Get retrieves a value from cache. Expired rows read as a miss.
func (c *SQLClient) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT value FROM cache_entries WHERE cache_key = $1 AND expires_at > $2`,
		key, c.now().UnixNano(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("sql cache get: %w", err)
	}
	return value, nil
}

// Set upserts a value with TTL.
func (c *SQLClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO cache_entries (cache_key, value, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (cache_key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, c.now().Add(ttl).UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sql cache set: %w", err)
	}
	return nil
}

// Delete removes a value from cache.
func (c *SQLClient) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE cache_key = $1`, key); err != nil {
		return fmt.Errorf("sql cache delete: %w", err)
	}
	return nil
}

// DeleteByPrefix removes all keys with the given prefix.
func (c *SQLClient) DeleteByPrefix(ctx context.Context, prefix string) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE cache_key LIKE $1 ESCAPE '\'`,
		escapeLike(prefix)+"%",
	)
	if err != nil {
		return fmt.Errorf("sql cache delete by prefix: %w", err)
	}
	return nil
}

// PurgeExpired deletes expired rows and reports how many were removed.
func (c *SQLClient) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at <= $1`, c.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sql cache purge: %w", err)
	}
	return res.RowsAffected()
}

// Ping checks the connection.
func (c *SQLClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database.
func (c *SQLClient) Close() error {
	return c.db.Close()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
