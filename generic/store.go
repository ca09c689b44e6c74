/*
store.go - Persistence interfaces for the leave ledger

PURPOSE:
  Defines the boundary between the ledger services and the database.
  Services never see SQL; stores never see business rules beyond the
  uniqueness constraints they enforce.

KEY INTERFACES:
  AccountStore:   LeaveAccount rows, unique per (user, leave type)
  LedgerStore:    Ledger entries, unique per reference absence and per
                  idempotency key
  LeaveTypeStore: Leave-type registry
  UserDirectory:  Read-only user lookup (external collaborator)
  AbsenceLookup:  Existence check for absences (external collaborator)
  TxStore:        All of the above plus atomic multi-write transactions

ERROR CONTRACT:
  GetX and FindX return *NotFoundError when nothing matches.
  InsertX returns *AlreadyExistsError when a uniqueness constraint fires.
  Everything else is wrapped with context and returned as-is.

IMPLEMENTATIONS:
  - store/sqlite: SQLite via database/sql

SEE ALSO:
  - ledger.go, account.go: services built on these interfaces
*/
package generic

import "context"

// =============================================================================
// ACCOUNT STORE
// =============================================================================

type AccountStore interface {
	InsertAccount(ctx context.Context, acc LeaveAccount) error
	UpdateAccount(ctx context.Context, acc LeaveAccount) error
	DeleteAccount(ctx context.Context, id AccountID) (bool, error)
	GetAccount(ctx context.Context, id AccountID) (LeaveAccount, error)

	// FindAccount resolves the account of (user, leave type).
	FindAccount(ctx context.Context, userID UserID, leaveTypeCode string) (LeaveAccount, error)

	ListAccountsByUser(ctx context.Context, userID UserID) ([]LeaveAccount, error)
	ListAccounts(ctx context.Context) ([]LeaveAccount, error)
	CountAccountsByLeaveType(ctx context.Context, code string) (int, error)
}

// =============================================================================
// LEDGER STORE
// =============================================================================

type LedgerStore interface {
	InsertEntry(ctx context.Context, e Entry) error

	// UpdateEntry overwrites date, kind, amount and note of an existing row.
	UpdateEntry(ctx context.Context, e Entry) error

	GetEntry(ctx context.Context, id EntryID) (Entry, error)
	DeleteEntry(ctx context.Context, id EntryID) (bool, error)

	// ListEntries returns entries ordered by EntryDate ascending, then creation order.
	// A nil period means the whole history.
	ListEntries(ctx context.Context, accountID AccountID, period *Period) ([]Entry, error)

	FindByReferenceAbsence(ctx context.Context, absenceID string) ([]Entry, error)
	DeleteByReferenceAbsence(ctx context.Context, absenceID string) (int, error)
	DeleteByAccount(ctx context.Context, accountID AccountID) (int, error)

	IdempotencyKeyExists(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// REGISTRIES - External collaborators read by the core
// =============================================================================

type LeaveTypeStore interface {
	GetLeaveType(ctx context.Context, code string) (LeaveType, error)
	ListLeaveTypes(ctx context.Context) ([]LeaveType, error)
	SaveLeaveType(ctx context.Context, lt LeaveType) error
	DeleteLeaveType(ctx context.Context, code string) (bool, error)
}

type UserDirectory interface {
	FindUser(ctx context.Context, id UserID) (User, error)
}

type AbsenceLookup interface {
	AbsenceExists(ctx context.Context, absenceID string) (bool, error)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// Store is everything the ledger services read and write.
type Store interface {
	AccountStore
	LedgerStore
	LeaveTypeStore
	UserDirectory
	AbsenceLookup
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
