/*
ledger.go - Ledger of signed balance movements

PURPOSE:
  The ledger is the source of every balance change. Accruals, absence
  debits, manual adjustments and carryover expiry are all rows here, and
  the balance is always recomputed from them (see balance.go).

ROW RULES:
  1. Amount >= 0 at write time; the sign comes from Kind.
  2. Account and Kind are fixed once a row is written.
  3. Administrators may correct EntryDate, Amount and Note.
  4. At most one row references a given absence. That row is owned by
     the accounting bridge (absence/bridge.go) and follows the absence:
     rewritten on edit, deleted on rejection or deletion.

ORDERING:
  ListByAccount returns rows by EntryDate ascending. Anything that walks
  the ledger chronologically (running balances, BalanceAsOf) depends on it.
*/
package generic

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER SERVICE
// =============================================================================

// NewEntry holds the inputs of LedgerService.AddEntry.
type NewEntry struct {
	AccountID          AccountID
	Date               *TimePoint // nil = today
	Kind               EntryKind
	Amount             decimal.Decimal
	ReferenceAbsenceID string
	Note               string
}

// EntryUpdate is a partial correction of an existing row.
type EntryUpdate struct {
	Date   *TimePoint
	Amount *decimal.Decimal
	Note   *string
}

type LedgerService struct {
	Store TxStore
	Clock Clock
	Log   *slog.Logger
}

func NewLedgerService(store TxStore, log *slog.Logger) *LedgerService {
	return &LedgerService{Store: store, Log: log}
}

func (s *LedgerService) logger() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}

// AddEntry appends a row to an account's ledger.
func (s *LedgerService) AddEntry(ctx context.Context, in NewEntry) (Entry, error) {
	if !in.Kind.Valid() {
		return Entry{}, &FieldError{Field: "kind", Reason: "must be one of ACCRUAL, DEBIT, ADJUSTMENT, CARRYOVER_EXPIRE"}
	}
	if err := validateAmount(in.Amount); err != nil {
		return Entry{}, err
	}

	entry := Entry{
		ID:                 EntryID(uuid.NewString()),
		AccountID:          in.AccountID,
		Kind:               in.Kind,
		Amount:             in.Amount,
		ReferenceAbsenceID: in.ReferenceAbsenceID,
		Note:               in.Note,
		CreatedAt:          s.Clock.Now(),
	}
	if in.Date != nil && !in.Date.IsZero() {
		entry.EntryDate = *in.Date
	} else {
		entry.EntryDate = s.Clock.Today()
	}

	err := s.Store.WithTx(ctx, func(st Store) error {
		if _, err := st.GetAccount(ctx, in.AccountID); err != nil {
			return err
		}
		if in.ReferenceAbsenceID != "" {
			ok, err := st.AbsenceExists(ctx, in.ReferenceAbsenceID)
			if err != nil {
				return err
			}
			if !ok {
				return &NotFoundError{Resource: "absence", ID: in.ReferenceAbsenceID}
			}
		}
		return st.InsertEntry(ctx, entry)
	})
	if err != nil {
		return Entry{}, err
	}

	s.logger().DebugContext(ctx, "ledger entry added",
		"entry_id", entry.ID, "account_id", entry.AccountID, "kind", entry.Kind, "amount", entry.Amount.String())
	return entry, nil
}

// UpdateEntry corrects date, amount or note. Kind and account never change.
func (s *LedgerService) UpdateEntry(ctx context.Context, id EntryID, upd EntryUpdate) (Entry, error) {
	if upd.Amount != nil {
		if err := validateAmount(*upd.Amount); err != nil {
			return Entry{}, err
		}
	}

	var entry Entry
	err := s.Store.WithTx(ctx, func(st Store) error {
		var err error
		entry, err = st.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		if upd.Date != nil && !upd.Date.IsZero() {
			entry.EntryDate = *upd.Date
		}
		if upd.Amount != nil {
			entry.Amount = *upd.Amount
		}
		if upd.Note != nil {
			entry.Note = *upd.Note
		}
		return st.UpdateEntry(ctx, entry)
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// DeleteEntry removes one row and reports whether it existed.
func (s *LedgerService) DeleteEntry(ctx context.Context, id EntryID) (bool, error) {
	return s.Store.DeleteEntry(ctx, id)
}

// ListByAccount returns the account's rows ordered by entry date.
// The account must exist.
func (s *LedgerService) ListByAccount(ctx context.Context, accountID AccountID, period *Period) ([]Entry, error) {
	if _, err := s.Store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.Store.ListEntries(ctx, accountID, period)
}

func (s *LedgerService) FindByReferenceAbsence(ctx context.Context, absenceID string) ([]Entry, error) {
	return s.Store.FindByReferenceAbsence(ctx, absenceID)
}

func (s *LedgerService) DeleteByReferenceAbsence(ctx context.Context, absenceID string) (int, error) {
	return s.Store.DeleteByReferenceAbsence(ctx, absenceID)
}

func validateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return &FieldError{Field: "amount", Reason: "must not be negative"}
	}
	return nil
}
