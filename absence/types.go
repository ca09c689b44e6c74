// Package absence models absence requests as the leave ledger sees them and
// keeps exactly one ledger debit in sync with every approved absence.
package absence

import (
	"context"
	"time"

	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// ABSENCE - Read model of the absence subsystem
// =============================================================================

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Type is the absence category. Only some types map to a leave account.
type Type string

const (
	TypeSick     Type = "SICK"
	TypeVacation Type = "VACATION"
	TypeRTT      Type = "RTT"
	TypeTraining Type = "TRAINING"
	TypeUnpaid   Type = "UNPAID"
)

// Period is the part of a day an absence covers.
type Period string

const (
	PeriodAM      Period = "AM"
	PeriodPM      Period = "PM"
	PeriodFullDay Period = "FULL_DAY"
)

func (p Period) Valid() bool {
	switch p {
	case PeriodAM, PeriodPM, PeriodFullDay, "":
		return true
	}
	return false
}

type Day struct {
	Date   generic.TimePoint
	Period Period // empty means FULL_DAY
}

type Absence struct {
	ID        string
	UserID    generic.UserID
	Type      Type
	Status    Status
	StartDate generic.TimePoint
	Days      []Day
	Reason    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// LIFECYCLE EVENTS - Notifications from the absence subsystem
// =============================================================================

type EventKind string

const (
	EventCreated       EventKind = "created"
	EventUpdated       EventKind = "updated"
	EventStatusChanged EventKind = "status_changed"
	EventDeleted       EventKind = "deleted"
)

// Event carries the absence's state after the change.
type Event struct {
	Kind    EventKind
	Absence Absence
}

// =============================================================================
// STORE
// =============================================================================

// Records persists absences. The transactional view handed out by a
// generic.TxStore must implement it for Service to work.
type Records interface {
	SaveAbsence(ctx context.Context, a Absence) error
	GetAbsence(ctx context.Context, id string) (Absence, error)
	DeleteAbsence(ctx context.Context, id string) (bool, error)

	// ListAbsences returns absences of the given users that touch the period.
	ListAbsences(ctx context.Context, userIDs []generic.UserID, period generic.Period) ([]Absence, error)
}

func recordsOf(st generic.Store) (Records, error) {
	r, ok := st.(Records)
	if !ok {
		return nil, generic.ErrStoreRequired
	}
	return r, nil
}
