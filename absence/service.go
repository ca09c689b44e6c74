package absence

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// ABSENCE SERVICE - Lifecycle with ledger reconciliation in one transaction
// =============================================================================

// NewAbsence holds the inputs of Service.Create. Status defaults to PENDING
// and StartDate to the earliest day.
type NewAbsence struct {
	UserID    generic.UserID
	Type      Type
	Status    Status
	StartDate *generic.TimePoint
	Days      []Day
	Reason    string
}

// AbsenceUpdate edits an absence without changing its status.
type AbsenceUpdate struct {
	Type      *Type
	StartDate *generic.TimePoint
	Days      []Day // nil leaves days untouched
	Reason    *string
}

// Service stores absences and notifies the bridge inside the same
// transaction, so a failed reconciliation rolls the change back.
type Service struct {
	Store  generic.TxStore
	Bridge *Bridge
	Clock  generic.Clock
	Log    *slog.Logger
}

func NewService(store generic.TxStore, bridge *Bridge, log *slog.Logger) *Service {
	return &Service{Store: store, Bridge: bridge, Log: log}
}

func (s *Service) logger() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}

func (s *Service) Create(ctx context.Context, in NewAbsence) (Absence, error) {
	now := s.Clock.Now()
	a := Absence{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Type:      in.Type,
		Status:    in.Status,
		Days:      sortedDays(in.Days),
		Reason:    in.Reason,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	if in.StartDate != nil {
		a.StartDate = *in.StartDate
	}
	if err := normalize(&a); err != nil {
		return Absence{}, err
	}

	err := s.apply(ctx, EventCreated, a, func(ctx context.Context, st generic.Store, rec Records) error {
		if _, err := st.FindUser(ctx, a.UserID); err != nil {
			return err
		}
		return rec.SaveAbsence(ctx, a)
	})
	if err != nil {
		return Absence{}, err
	}
	return a, nil
}

func (s *Service) Update(ctx context.Context, id string, upd AbsenceUpdate) (Absence, error) {
	var a Absence
	err := s.applyFn(ctx, EventUpdated, func(ctx context.Context, st generic.Store, rec Records) (Absence, error) {
		var err error
		a, err = rec.GetAbsence(ctx, id)
		if err != nil {
			return a, err
		}
		if upd.Type != nil {
			a.Type = *upd.Type
		}
		if upd.Days != nil {
			a.Days = sortedDays(upd.Days)
			if upd.StartDate == nil && len(a.Days) > 0 {
				a.StartDate = a.Days[0].Date
			}
		}
		if upd.StartDate != nil {
			a.StartDate = *upd.StartDate
		}
		if upd.Reason != nil {
			a.Reason = *upd.Reason
		}
		a.UpdatedAt = s.Clock.Now()
		if err := normalize(&a); err != nil {
			return a, err
		}
		return a, rec.SaveAbsence(ctx, a)
	})
	if err != nil {
		return Absence{}, err
	}
	return a, nil
}

// SetStatus moves the absence through PENDING -> APPROVED | REJECTED, or
// withdraws an approval (APPROVED -> REJECTED).
func (s *Service) SetStatus(ctx context.Context, id string, status Status) (Absence, error) {
	if !status.Valid() {
		return Absence{}, &generic.FieldError{Field: "status", Reason: "must be one of PENDING, APPROVED, REJECTED"}
	}
	var a Absence
	err := s.applyFn(ctx, EventStatusChanged, func(ctx context.Context, st generic.Store, rec Records) (Absence, error) {
		var err error
		a, err = rec.GetAbsence(ctx, id)
		if err != nil {
			return a, err
		}
		if !CanTransition(a.Status, status) {
			return a, &generic.FieldError{Field: "status", Reason: fmt.Sprintf("cannot change from %s to %s", a.Status, status)}
		}
		a.Status = status
		a.UpdatedAt = s.Clock.Now()
		return a, rec.SaveAbsence(ctx, a)
	})
	if err != nil {
		return Absence{}, err
	}
	s.logger().InfoContext(ctx, "absence status changed", "absence_id", id, "status", status)
	return a, nil
}

// Delete removes the absence and every ledger row referencing it.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	var existed bool
	err := s.Store.WithTx(ctx, func(st generic.Store) error {
		rec, err := recordsOf(st)
		if err != nil {
			return err
		}
		existed, err = rec.DeleteAbsence(ctx, id)
		if err != nil {
			return err
		}
		return s.Bridge.Reconcile(ctx, st, Event{Kind: EventDeleted, Absence: Absence{ID: id}})
	})
	return existed, err
}

func (s *Service) Get(ctx context.Context, id string) (Absence, error) {
	var a Absence
	err := s.Store.WithTx(ctx, func(st generic.Store) error {
		rec, err := recordsOf(st)
		if err != nil {
			return err
		}
		a, err = rec.GetAbsence(ctx, id)
		return err
	})
	return a, err
}

// CanTransition lists the allowed status changes. Same-status is allowed so
// edits of an approved absence re-run reconciliation.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusApproved || to == StatusRejected
	case StatusApproved:
		return to == StatusRejected
	}
	return false
}

func (s *Service) apply(ctx context.Context, kind EventKind, a Absence, write func(context.Context, generic.Store, Records) error) error {
	return s.applyFn(ctx, kind, func(ctx context.Context, st generic.Store, rec Records) (Absence, error) {
		return a, write(ctx, st, rec)
	})
}

// applyFn runs write and then the bridge in one store transaction.
func (s *Service) applyFn(ctx context.Context, kind EventKind, write func(context.Context, generic.Store, Records) (Absence, error)) error {
	return s.Store.WithTx(ctx, func(st generic.Store) error {
		rec, err := recordsOf(st)
		if err != nil {
			return err
		}
		a, err := write(ctx, st, rec)
		if err != nil {
			return err
		}
		return s.Bridge.Reconcile(ctx, st, Event{Kind: kind, Absence: a})
	})
}

func normalize(a *Absence) error {
	if a.UserID == "" {
		return &generic.FieldError{Field: "user_id", Reason: "is required"}
	}
	if a.Type == "" {
		return &generic.FieldError{Field: "type", Reason: "is required"}
	}
	if !a.Status.Valid() {
		return &generic.FieldError{Field: "status", Reason: "must be one of PENDING, APPROVED, REJECTED"}
	}
	for i, d := range a.Days {
		if d.Date.IsZero() {
			return &generic.FieldError{Field: fmt.Sprintf("days[%d].date", i), Reason: "is required"}
		}
		if !d.Period.Valid() {
			return &generic.FieldError{Field: fmt.Sprintf("days[%d].period", i), Reason: "must be AM, PM or FULL_DAY"}
		}
	}
	if a.StartDate.IsZero() {
		if len(a.Days) == 0 {
			return &generic.FieldError{Field: "start_date", Reason: "is required when no days are given"}
		}
		a.StartDate = a.Days[0].Date
	}
	return nil
}

func sortedDays(days []Day) []Day {
	if days == nil {
		return nil
	}
	out := make([]Day, len(days))
	copy(out, days)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
