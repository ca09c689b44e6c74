/*
Package generic provides the leave ledger core.

PURPOSE:
  This package contains the types and services that keep per-user leave
  balances correct: leave accounts (the balance policy), the ledger of
  signed movements against each account, and the balance engine that
  derives "how much leave does this person have" from the two.

KEY CONCEPTS IN THIS FILE (types.go):
  - LeaveType:    A kind of leave (VAC, RTT, ...) identified by a short code
  - LeaveAccount: One balance policy per (user, leave type)
  - Entry:        One ledger movement; Amount is never negative, the sign
                  comes from Kind
  - User:         Read model of the user directory

SIGN CONVENTION:
  ACCRUAL, ADJUSTMENT          -> +Amount
  DEBIT, CARRYOVER_EXPIRE      -> -Amount

  balance(account) = account.OpeningBalance + sum(entry.Signed())

PRECISION:
  Every quantity is a decimal.Decimal. Half days (0.5) and monthly accrual
  rates like 2.08 must add up exactly over years of history.

SEE ALSO:
  - account.go: LeaveAccount service
  - ledger.go:  Ledger service
  - balance.go: Balance engine
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type AccountID string
type EntryID string

// MaxLeaveTypeCodeLen bounds LeaveType.Code.
const MaxLeaveTypeCodeLen = 20

// =============================================================================
// UNITS - Decimal day counts
// =============================================================================

var (
	HalfDay = decimal.RequireFromString("0.5")
	FullDay = decimal.NewFromInt(1)
)

// DecimalPtr is a convenience for optional decimal fields.
func DecimalPtr(d decimal.Decimal) *decimal.Decimal { return &d }

// MustParseDecimal parses s or panics. Intended for constants and tests.
func MustParseDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// =============================================================================
// LEAVE TYPE
// =============================================================================

type LeaveType struct {
	Code  string
	Label string
}

// =============================================================================
// LEAVE ACCOUNT - Balance policy for one (user, leave type)
// =============================================================================

type LeaveAccount struct {
	ID              AccountID
	UserID          UserID
	LeaveTypeCode   string
	OpeningBalance  decimal.Decimal
	AccrualPerMonth decimal.Decimal

	// Optional carryover policy. MaxCarryover nil means unlimited carryover.
	MaxCarryover      *decimal.Decimal
	CarryoverExpireOn *TimePoint

	CreatedAt time.Time
}

// =============================================================================
// LEDGER ENTRY - One signed movement against an account
// =============================================================================

type EntryKind string

const (
	KindAccrual         EntryKind = "ACCRUAL"          // Earned leave
	KindDebit           EntryKind = "DEBIT"            // Consumed by an approved absence
	KindAdjustment      EntryKind = "ADJUSTMENT"       // Manual admin correction
	KindCarryoverExpire EntryKind = "CARRYOVER_EXPIRE" // Forfeited unused balance
)

// EntryKinds lists every kind in reporting order.
var EntryKinds = []EntryKind{KindAccrual, KindDebit, KindAdjustment, KindCarryoverExpire}

func (k EntryKind) Valid() bool {
	switch k {
	case KindAccrual, KindDebit, KindAdjustment, KindCarryoverExpire:
		return true
	}
	return false
}

// Sign returns +1 for credits and -1 for debits.
func (k EntryKind) Sign() int64 {
	switch k {
	case KindDebit, KindCarryoverExpire:
		return -1
	default:
		return 1
	}
}

type Entry struct {
	ID        EntryID
	AccountID AccountID
	EntryDate TimePoint
	Kind      EntryKind
	Amount    decimal.Decimal // always >= 0

	// ReferenceAbsenceID links an automatic debit to the absence that caused it.
	// At most one entry references a given absence.
	ReferenceAbsenceID string
	Note               string

	// IdempotencyKey deduplicates materialized accrual/expiry rows.
	IdempotencyKey string

	CreatedAt time.Time
}

// Signed returns the entry's contribution to the balance.
func (e Entry) Signed() decimal.Decimal {
	if e.Kind.Sign() < 0 {
		return e.Amount.Neg()
	}
	return e.Amount
}

// =============================================================================
// USER - Directory read model
// =============================================================================

type User struct {
	ID             UserID
	Role           string
	TeamID         string
	OrganizationID string
}
