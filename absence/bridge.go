/*
bridge.go - Accounting bridge between absences and the leave ledger

PURPOSE:
  Keeps exactly one DEBIT row per approved absence, in sync with the
  absence's type, start date and day units.

STATE HANDLING:
  ┌───────────────────────────────┬──────────────────────────────────────┐
  │ absence after the event       │ ledger effect                        │
  ├───────────────────────────────┼──────────────────────────────────────┤
  │ APPROVED (created/updated/    │ upsert the row referencing it        │
  │ status changed)               │                                      │
  │ PENDING or REJECTED           │ delete rows referencing it           │
  │ deleted                       │ delete rows referencing it           │
  └───────────────────────────────┴──────────────────────────────────────┘

UPSERT:
  1. Map the absence type to a leave-type code. Unmapped types carry no
     debit; a row left from a previously mapped type is deleted.
  2. Resolve the (user, code) account. A missing account is a
     PreconditionError: the caller's transaction must abort so the absence
     is never left APPROVED without its debit.
  3. Units from the day periods. Zero-unit absences still get a 0 row.
  4. Overwrite the existing referencing row, or insert one.

  Calling it twice for the same absence state leaves one row. The store's
  unique index on the reference absence turns a racing insert into
  AlreadyExists, which is resolved by rewriting the winner's row.

SEE ALSO:
  - service.go: absence lifecycle calling Reconcile in one transaction
  - generic/ledger.go: row rules
*/
package absence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/warp/leave-ledger/generic"
)

type Bridge struct {
	Store   generic.TxStore
	Mapping TypeMapping
	Clock   generic.Clock
	Log     *slog.Logger
}

func NewBridge(store generic.TxStore, mapping TypeMapping, log *slog.Logger) *Bridge {
	return &Bridge{Store: store, Mapping: mapping, Log: log}
}

func (b *Bridge) logger() *slog.Logger {
	if b.Log == nil {
		return slog.Default()
	}
	return b.Log
}

// Handle reconciles the ledger with one lifecycle event in its own transaction.
func (b *Bridge) Handle(ctx context.Context, ev Event) error {
	return b.Store.WithTx(ctx, func(st generic.Store) error {
		return b.Reconcile(ctx, st, ev)
	})
}

// Reconcile applies the event inside the caller's transaction.
func (b *Bridge) Reconcile(ctx context.Context, st generic.Store, ev Event) error {
	if ev.Kind == EventDeleted || ev.Absence.Status != StatusApproved {
		_, err := b.removeDebits(ctx, st, ev.Absence.ID)
		return err
	}
	_, err := b.ensureDebit(ctx, st, ev.Absence)
	return err
}

// EnsureDebit upserts the debit of an approved absence. It returns nil
// without error when the absence type is not mapped to a leave type.
func (b *Bridge) EnsureDebit(ctx context.Context, a Absence) (*generic.Entry, error) {
	var entry *generic.Entry
	err := b.Store.WithTx(ctx, func(st generic.Store) error {
		var err error
		entry, err = b.ensureDebit(ctx, st, a)
		return err
	})
	return entry, err
}

// RemoveDebits deletes every ledger row referencing the absence.
func (b *Bridge) RemoveDebits(ctx context.Context, absenceID string) (int, error) {
	var n int
	err := b.Store.WithTx(ctx, func(st generic.Store) error {
		var err error
		n, err = b.removeDebits(ctx, st, absenceID)
		return err
	})
	return n, err
}

func (b *Bridge) ensureDebit(ctx context.Context, st generic.Store, a Absence) (*generic.Entry, error) {
	code, ok := b.Mapping.LeaveTypeFor(a.Type)
	if !ok {
		// A retype to an unmapped type drops the debit written for the old type.
		if _, err := b.removeDebits(ctx, st, a.ID); err != nil {
			return nil, err
		}
		b.logger().DebugContext(ctx, "absence type not mapped to a leave type, no debit",
			"absence_id", a.ID, "absence_type", a.Type)
		return nil, nil
	}

	acc, err := st.FindAccount(ctx, a.UserID, code)
	if err != nil {
		if generic.IsNotFound(err) {
			return nil, &generic.PreconditionError{
				Reason: fmt.Sprintf("user %s has no %s leave account for approved absence %s", a.UserID, code, a.ID),
			}
		}
		return nil, err
	}

	entry := generic.Entry{
		AccountID:          acc.ID,
		EntryDate:          b.debitDate(a),
		Kind:               generic.KindDebit,
		Amount:             a.Units(),
		ReferenceAbsenceID: a.ID,
		Note:               fmt.Sprintf("%s absence %s", a.Type, a.ID),
	}

	existing, err := st.FindByReferenceAbsence(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 && existing[0].AccountID == acc.ID {
		entry.ID = existing[0].ID
		entry.CreatedAt = existing[0].CreatedAt
		if err := st.UpdateEntry(ctx, entry); err != nil {
			return nil, err
		}
		b.logger().InfoContext(ctx, "absence debit updated",
			"absence_id", a.ID, "account_id", acc.ID, "amount", entry.Amount.String())
		return &entry, nil
	}
	if len(existing) > 0 {
		// The type changed to another account; the account of a row is fixed,
		// so the old row goes and a new one is written.
		if _, err := st.DeleteByReferenceAbsence(ctx, a.ID); err != nil {
			return nil, err
		}
	}

	entry.ID = generic.EntryID(uuid.NewString())
	entry.CreatedAt = b.Clock.Now()
	if err := st.InsertEntry(ctx, entry); err != nil {
		if !errors.Is(err, generic.ErrAlreadyExists) {
			return nil, err
		}
		return b.overwriteWinner(ctx, st, entry)
	}
	b.logger().InfoContext(ctx, "absence debit recorded",
		"absence_id", a.ID, "account_id", acc.ID, "amount", entry.Amount.String())
	return &entry, nil
}

// overwriteWinner resolves a lost insert race by rewriting the row that won.
func (b *Bridge) overwriteWinner(ctx context.Context, st generic.Store, entry generic.Entry) (*generic.Entry, error) {
	existing, err := st.FindByReferenceAbsence(ctx, entry.ReferenceAbsenceID)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, fmt.Errorf("%w: debit for absence %s conflicted but cannot be found", generic.ErrInternal, entry.ReferenceAbsenceID)
	}
	entry.ID = existing[0].ID
	entry.CreatedAt = existing[0].CreatedAt
	if err := st.UpdateEntry(ctx, entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (b *Bridge) removeDebits(ctx context.Context, st generic.Store, absenceID string) (int, error) {
	n, err := st.DeleteByReferenceAbsence(ctx, absenceID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		b.logger().InfoContext(ctx, "absence debit removed", "absence_id", absenceID, "rows", n)
	}
	return n, nil
}

func (b *Bridge) debitDate(a Absence) generic.TimePoint {
	if !a.StartDate.IsZero() {
		return a.StartDate
	}
	if len(a.Days) > 0 {
		return a.Days[0].Date
	}
	return b.Clock.Today()
}
