/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface of the leave ledger with SQLite.
  The same schema runs on PostgreSQL with minor dialect changes.

INTERFACES IMPLEMENTED:
  generic.TxStore:  leave types, users, leave accounts, ledger entries
  absence.Records:  absences and their day periods
  kpi.Source:       scope resolution, clock events, work schedules

KEY TABLES:
  leave_types:     registry of leave-type codes
  users:           directory read model (role, team, organization)
  leave_accounts:  one row per (user, leave type)
  ledger_entries:  signed movements; amounts stored as decimal TEXT
  absences:        absence requests; absence_days holds their periods
  clock_events:    IN/OUT punches
  work_schedules:  scheduled start per weekday and half-day

UNIQUENESS:
  - idx_accounts_user_type:    one account per (user, leave type)
  - idx_entries_reference:     one ledger row per referenced absence
  - ledger_entries.idempotency_key: one materialized accrual/expiry per key
  Violations are returned as *generic.AlreadyExistsError.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single database connection.
  WithTx holds the write lock for the whole transaction, so everything done
  through its view (reconciliation, balance reads, ledger writes) is
  serialized against other writers.

  Methods on the view handed to WithTx never take the lock themselves.
  Calling methods of the parent *Store from inside fn deadlocks.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := generic.NewLedgerService(store, logger)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - generic/store.go: Interface definitions
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/absence"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/kpi"
)

var (
	_ generic.TxStore = (*Store)(nil)
	_ absence.Records = (*Store)(nil)
	_ kpi.Source      = (*Store)(nil)

	_ generic.Store   = (*txStore)(nil)
	_ absence.Records = (*txStore)(nil)
)

// timestampLayout is fixed-width so stored instants sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries runs every statement against one querier without locking.
type queries struct {
	q querier
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) queries() queries { return queries{q: s.db} }

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS leave_types (
		code TEXT PRIMARY KEY,
		label TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		role TEXT NOT NULL DEFAULT '',
		team_id TEXT NOT NULL DEFAULT '',
		organization_id TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_users_team ON users(team_id);
	CREATE INDEX IF NOT EXISTS idx_users_organization ON users(organization_id);

	CREATE TABLE IF NOT EXISTS leave_accounts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		leave_type_code TEXT NOT NULL REFERENCES leave_types(code),
		opening_balance TEXT NOT NULL,
		accrual_per_month TEXT NOT NULL,
		max_carryover TEXT,
		carryover_expire_on TEXT,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_user_type
		ON leave_accounts(user_id, leave_type_code);

	-- Ledger (amounts are decimal strings, sums are computed in Go)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES leave_accounts(id) ON DELETE CASCADE,
		entry_date TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		reference_absence_id TEXT,
		note TEXT NOT NULL DEFAULT '',
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	-- Hot path: balance and listing by account in date order
	CREATE INDEX IF NOT EXISTS idx_entries_account_date
		ON ledger_entries(account_id, entry_date, created_at);

	-- CRITICAL: one ledger row per absence
	CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_reference
		ON ledger_entries(reference_absence_id) WHERE reference_absence_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS absences (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		start_date TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_absences_user ON absences(user_id);

	CREATE TABLE IF NOT EXISTS absence_days (
		absence_id TEXT NOT NULL REFERENCES absences(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		date TEXT NOT NULL,
		period TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (absence_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_absence_days_date ON absence_days(date);

	CREATE TABLE IF NOT EXISTS clock_events (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_clock_events_user_at ON clock_events(user_id, at);

	CREATE TABLE IF NOT EXISTS work_schedules (
		user_id TEXT NOT NULL,
		weekday INTEGER NOT NULL,
		period TEXT NOT NULL,
		start_minute INTEGER NOT NULL,
		grace_minutes INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, weekday, period)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	return s.inTx(ctx, func(q queries) error {
		return fn(&txStore{queries: q})
	})
}

// inTx takes the write lock and runs fn against one transaction.
func (s *Store) inTx(ctx context.Context, fn func(q queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(queries{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore is the view handed to WithTx. Its methods come from queries and
// run on the open transaction.
type txStore struct {
	queries
}

// =============================================================================
// UTILITIES
// =============================================================================

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullDate(tp *generic.TimePoint) sql.NullString {
	if tp == nil || tp.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: tp.String(), Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseDate(s string) (generic.TimePoint, error) {
	t, err := time.Parse(generic.DateLayout, s)
	if err != nil {
		return generic.TimePoint{}, fmt.Errorf("malformed date %q: %w", s, err)
	}
	return generic.TimePoint{Time: t}, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed decimal %q: %w", s, err)
	}
	return d, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func rowsAffected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func notFound(err error, resource, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return &generic.NotFoundError{Resource: resource, ID: id}
	}
	return err
}
