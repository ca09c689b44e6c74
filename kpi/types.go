/*
Package kpi derives attendance, time, punctuality and leave-balance figures
for a user, a team or an organization over an inclusive date range.

INPUTS:
  Directory      users in scope
  AbsenceSource  absences touching the range
  ClockSource    IN/OUT clock events
  ScheduleSource per-user work schedule slots
  LedgerSource   leave accounts and their ledger rows, read in one transaction

Every figure is computed on read. Leave balances are re-derived from the
ledger and cross-checked against the balance engine over the same
transaction, so a concurrent ledger write cannot split the two reads. A
disagreement is an internal error, never a silently reported number.
*/
package kpi

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/absence"
	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// SCOPE
// =============================================================================

type ScopeKind string

const (
	ScopeUser         ScopeKind = "user"
	ScopeTeam         ScopeKind = "team"
	ScopeOrganization ScopeKind = "organization"
)

type Scope struct {
	Kind ScopeKind
	ID   string
}

func (s Scope) Validate() error {
	switch s.Kind {
	case ScopeUser, ScopeTeam, ScopeOrganization:
	default:
		return &generic.FieldError{Field: "scope", Reason: "must be one of user, team, organization"}
	}
	if s.ID == "" {
		return &generic.FieldError{Field: "id", Reason: "is required"}
	}
	return nil
}

func (s Scope) String() string { return fmt.Sprintf("%s:%s", s.Kind, s.ID) }

// =============================================================================
// ATTENDANCE INPUTS
// =============================================================================

type ClockKind string

const (
	ClockIn  ClockKind = "IN"
	ClockOut ClockKind = "OUT"
)

func (k ClockKind) Valid() bool { return k == ClockIn || k == ClockOut }

type ClockEvent struct {
	ID     string
	UserID generic.UserID
	Kind   ClockKind
	At     time.Time
}

// Slot is one scheduled start: weekday, half-day and minutes after midnight
// in the aggregator's location.
type Slot struct {
	Weekday      time.Weekday
	Period       absence.Period // AM or PM
	StartMinute  int
	GraceMinutes int
}

func (s Slot) Validate() error {
	if s.Weekday < time.Sunday || s.Weekday > time.Saturday {
		return &generic.FieldError{Field: "weekday", Reason: "must be 0 (Sunday) to 6 (Saturday)"}
	}
	if s.Period != absence.PeriodAM && s.Period != absence.PeriodPM {
		return &generic.FieldError{Field: "period", Reason: "must be AM or PM"}
	}
	if s.StartMinute < 0 || s.StartMinute >= 24*60 {
		return &generic.FieldError{Field: "start", Reason: "must be within the day"}
	}
	if s.GraceMinutes < 0 {
		return &generic.FieldError{Field: "grace_minutes", Reason: "must not be negative"}
	}
	return nil
}

// WeekdaySchedule builds Monday to Friday AM slots starting at startMinute.
func WeekdaySchedule(startMinute, graceMinutes int) []Slot {
	slots := make([]Slot, 0, 5)
	for d := time.Monday; d <= time.Friday; d++ {
		slots = append(slots, Slot{Weekday: d, Period: absence.PeriodAM, StartMinute: startMinute, GraceMinutes: graceMinutes})
	}
	return slots
}

// =============================================================================
// SOURCES
// =============================================================================

type Directory interface {
	UsersInScope(ctx context.Context, scope Scope) ([]generic.User, error)
}

type AbsenceSource interface {
	ListAbsences(ctx context.Context, userIDs []generic.UserID, period generic.Period) ([]absence.Absence, error)
}

type ClockSource interface {
	// ListClockEvents returns events in [from, to) ordered by user then time.
	ListClockEvents(ctx context.Context, userIDs []generic.UserID, from, to time.Time) ([]ClockEvent, error)
}

type ScheduleSource interface {
	// ScheduleFor returns the user's slots; empty means no schedule.
	ScheduleFor(ctx context.Context, userID generic.UserID) ([]Slot, error)
}

// LedgerSource runs fn against one consistent view of accounts and ledger rows.
type LedgerSource interface {
	WithTx(ctx context.Context, fn func(st generic.Store) error) error
}

// Source is everything the aggregator reads. store/sqlite implements it.
type Source interface {
	Directory
	AbsenceSource
	ClockSource
	ScheduleSource
	LedgerSource
}

// =============================================================================
// REPORT
// =============================================================================

type Report struct {
	Scope       Scope
	Period      generic.Period
	Users       int
	Attendance  Attendance
	Time        TimeStats
	Punctuality Punctuality
	Balances    []generic.BalanceBreakdown
}

type Attendance struct {
	Requests      int
	Approved      int
	ApprovedUnits decimal.Decimal
}

type TimeStats struct {
	TotalMinutes   int64
	Sessions       int
	AverageMinutes decimal.Decimal
}

type Punctuality struct {
	ScheduledIns        int
	LateIns             int
	LateRate            decimal.Decimal
	AverageDelayMinutes decimal.Decimal
}
