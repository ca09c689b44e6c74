package generic

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCOUNT SERVICE - Administration of leave accounts
// =============================================================================

// CreateAccount holds the inputs of AccountService.Create.
// Nil numeric fields default to zero.
type CreateAccount struct {
	UserID            UserID
	LeaveTypeCode     string
	OpeningBalance    *decimal.Decimal
	AccrualPerMonth   *decimal.Decimal
	MaxCarryover      *decimal.Decimal
	CarryoverExpireOn *TimePoint
}

// AccountUpdate is a partial update. Nil numeric fields are left untouched,
// but CarryoverExpireOn is always written, so nil clears it.
type AccountUpdate struct {
	OpeningBalance    *decimal.Decimal
	AccrualPerMonth   *decimal.Decimal
	MaxCarryover      *decimal.Decimal
	CarryoverExpireOn *TimePoint

	// ClearMaxCarryover removes the cap. A nil MaxCarryover alone keeps it.
	ClearMaxCarryover bool
}

type AccountService struct {
	Store TxStore
	Clock Clock
	Log   *slog.Logger
}

func NewAccountService(store TxStore, log *slog.Logger) *AccountService {
	return &AccountService{Store: store, Log: log}
}

func (s *AccountService) logger() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}

// Create opens a new account for (user, leave type).
func (s *AccountService) Create(ctx context.Context, in CreateAccount) (LeaveAccount, error) {
	if in.UserID == "" {
		return LeaveAccount{}, &FieldError{Field: "user_id", Reason: "is required"}
	}
	if in.LeaveTypeCode == "" {
		return LeaveAccount{}, &FieldError{Field: "leave_type", Reason: "is required"}
	}
	if err := validateAccountNumbers(in.AccrualPerMonth, in.MaxCarryover); err != nil {
		return LeaveAccount{}, err
	}

	acc := LeaveAccount{
		ID:                AccountID(uuid.NewString()),
		UserID:            in.UserID,
		LeaveTypeCode:     in.LeaveTypeCode,
		OpeningBalance:    decimal.Zero,
		AccrualPerMonth:   decimal.Zero,
		MaxCarryover:      in.MaxCarryover,
		CarryoverExpireOn: in.CarryoverExpireOn,
		CreatedAt:         s.Clock.Now(),
	}
	if in.OpeningBalance != nil {
		acc.OpeningBalance = *in.OpeningBalance
	}
	if in.AccrualPerMonth != nil {
		acc.AccrualPerMonth = *in.AccrualPerMonth
	}

	err := s.Store.WithTx(ctx, func(st Store) error {
		if _, err := st.FindUser(ctx, in.UserID); err != nil {
			return err
		}
		if _, err := st.GetLeaveType(ctx, in.LeaveTypeCode); err != nil {
			return err
		}
		if _, err := st.FindAccount(ctx, in.UserID, in.LeaveTypeCode); err == nil {
			return &AlreadyExistsError{Resource: "leave account", Key: fmt.Sprintf("%s/%s", in.UserID, in.LeaveTypeCode)}
		} else if !IsNotFound(err) {
			return err
		}
		return st.InsertAccount(ctx, acc)
	})
	if err != nil {
		return LeaveAccount{}, err
	}

	s.logger().InfoContext(ctx, "leave account created",
		"account_id", acc.ID, "user_id", acc.UserID, "leave_type", acc.LeaveTypeCode)
	return acc, nil
}

// Update applies a partial update to the account's policy fields.
func (s *AccountService) Update(ctx context.Context, id AccountID, upd AccountUpdate) (LeaveAccount, error) {
	if err := validateAccountNumbers(upd.AccrualPerMonth, upd.MaxCarryover); err != nil {
		return LeaveAccount{}, err
	}
	if upd.ClearMaxCarryover && upd.MaxCarryover != nil {
		return LeaveAccount{}, &FieldError{Field: "max_carryover", Reason: "cannot be set and cleared at once"}
	}

	var acc LeaveAccount
	err := s.Store.WithTx(ctx, func(st Store) error {
		var err error
		acc, err = st.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if upd.OpeningBalance != nil {
			acc.OpeningBalance = *upd.OpeningBalance
		}
		if upd.AccrualPerMonth != nil {
			acc.AccrualPerMonth = *upd.AccrualPerMonth
		}
		switch {
		case upd.ClearMaxCarryover:
			acc.MaxCarryover = nil
		case upd.MaxCarryover != nil:
			acc.MaxCarryover = upd.MaxCarryover
		}
		acc.CarryoverExpireOn = upd.CarryoverExpireOn
		return st.UpdateAccount(ctx, acc)
	})
	if err != nil {
		return LeaveAccount{}, err
	}
	return acc, nil
}

// Delete removes the account and its ledger rows. It reports whether the
// account existed.
func (s *AccountService) Delete(ctx context.Context, id AccountID) (bool, error) {
	var existed bool
	var removed int
	err := s.Store.WithTx(ctx, func(st Store) error {
		var err error
		removed, err = st.DeleteByAccount(ctx, id)
		if err != nil {
			return err
		}
		existed, err = st.DeleteAccount(ctx, id)
		return err
	})
	if err != nil {
		return false, err
	}
	if existed {
		s.logger().InfoContext(ctx, "leave account deleted", "account_id", id, "ledger_rows_removed", removed)
	}
	return existed, nil
}

func (s *AccountService) Get(ctx context.Context, id AccountID) (LeaveAccount, error) {
	return s.Store.GetAccount(ctx, id)
}

func (s *AccountService) ListByUser(ctx context.Context, userID UserID) ([]LeaveAccount, error) {
	return s.Store.ListAccountsByUser(ctx, userID)
}

func validateAccountNumbers(accrual, maxCarry *decimal.Decimal) error {
	if accrual != nil && accrual.IsNegative() {
		return &FieldError{Field: "accrual_per_month", Reason: "must not be negative"}
	}
	if maxCarry != nil && maxCarry.IsNegative() {
		return &FieldError{Field: "max_carryover", Reason: "must not be negative"}
	}
	return nil
}
