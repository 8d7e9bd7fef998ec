package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Supported backing store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and configures the backing store. SQLite is the embedded
// default; Postgres is the networked option for deployments that need one.
type Options struct {
	Driver  string
	DataDir string // sqlite only; empty means in-memory
	DSN     string // postgres only
}

// Store persists all gateway state: credentials, the usage ledger, cache
// entries, deny entries, notifications, and operator accounts. One Store
// serves all of them; the collections are independent tables.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects to the backing store and applies migrations.
func Open(opts Options) (*Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverSQLite
	}

	var (
		db  *sqlx.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		var dsn string
		if opts.DataDir == "" {
			dsn = ":memory:?_journal_mode=WAL"
		} else {
			if err := os.MkdirAll(opts.DataDir, 0755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
			dsn = filepath.Join(opts.DataDir, "deviceinsights.db") + "?_journal_mode=WAL&_busy_timeout=5000"
		}
		db, err = sqlx.Connect("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
	case DriverPostgres:
		db, err = sqlx.Connect("pgx", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		db.SetMaxOpenConns(25)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind translates ? placeholders into the driver's placeholder style.
func (s *Store) rebind(query string) string {
	return s.db.Rebind(query)
}

// insertGetID runs a named INSERT and returns the generated row ID. The pgx
// driver does not implement LastInsertId, so Postgres goes through RETURNING.
func (s *Store) insertGetID(ctx context.Context, namedQuery string, arg any) (int64, error) {
	if s.driver == DriverPostgres {
		q, args, err := s.db.BindNamed(namedQuery+" RETURNING id", arg)
		if err != nil {
			return 0, err
		}
		var id int64
		if err := s.db.GetContext(ctx, &id, q, args...); err != nil {
			return 0, err
		}
		return id, nil
	}

	result, err := s.db.NamedExecContext(ctx, namedQuery, arg)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}
