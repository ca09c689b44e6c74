/*
accrual.go - Materialized monthly accrual and carryover expiry

PURPOSE:
  Accounts earn AccrualPerMonth on the first day of every month after the
  month they were opened. Instead of computing accruals on read, the runner
  writes them as ACCRUAL rows, so the balance stays a plain
  opening + ledger sum.

  Accounts with a carryover policy forfeit whatever exceeds MaxCarryover on
  CarryoverExpireOn. The forfeited part is written as one CARRYOVER_EXPIRE
  row dated on the expiry day.

IDEMPOTENCY:
  Every materialized row carries an idempotency key:
    accrual:<account>:<YYYY-MM>
    expire:<account>:<YYYY-MM-DD>
  Rows whose key already exists are skipped, so Run can be called on every
  scheduler tick, after downtime, or twice concurrently.
*/
package generic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccrualSummary struct {
	AccountsScanned int
	AccrualsPosted  int
	ExpiriesPosted  int
}

type AccrualRunner struct {
	Store TxStore
	Clock Clock
	Log   *slog.Logger
}

func NewAccrualRunner(store TxStore, log *slog.Logger) *AccrualRunner {
	return &AccrualRunner{Store: store, Log: log}
}

func (r *AccrualRunner) logger() *slog.Logger {
	if r.Log == nil {
		return slog.Default()
	}
	return r.Log
}

// Run posts every accrual and expiry due up to and including today.
func (r *AccrualRunner) Run(ctx context.Context, today TimePoint) (AccrualSummary, error) {
	var summary AccrualSummary

	accounts, err := r.Store.ListAccounts(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to list accounts: %w", err)
	}

	for _, acc := range accounts {
		summary.AccountsScanned++
		var accrued, expired int
		err := r.Store.WithTx(ctx, func(st Store) error {
			var err error
			accrued, err = r.postAccruals(ctx, st, acc, today)
			if err != nil {
				return err
			}
			expired, err = r.postExpiry(ctx, st, acc, today)
			return err
		})
		if err != nil {
			return summary, fmt.Errorf("account %s: %w", acc.ID, err)
		}
		summary.AccrualsPosted += accrued
		summary.ExpiriesPosted += expired
	}

	r.logger().InfoContext(ctx, "accrual run completed",
		"today", today.String(),
		"accounts", summary.AccountsScanned,
		"accruals", summary.AccrualsPosted,
		"expiries", summary.ExpiriesPosted)
	return summary, nil
}

func (r *AccrualRunner) postAccruals(ctx context.Context, st Store, acc LeaveAccount, today TimePoint) (int, error) {
	if !acc.AccrualPerMonth.IsPositive() {
		return 0, nil
	}
	posted := 0
	for _, month := range MonthStartsBetween(DateOf(acc.CreatedAt), today) {
		key := fmt.Sprintf("accrual:%s:%s", acc.ID, month.Time.Format("2006-01"))
		ok, err := r.insertOnce(ctx, st, Entry{
			ID:             EntryID(uuid.NewString()),
			AccountID:      acc.ID,
			EntryDate:      month,
			Kind:           KindAccrual,
			Amount:         acc.AccrualPerMonth,
			Note:           "monthly accrual " + month.Time.Format("2006-01"),
			IdempotencyKey: key,
			CreatedAt:      r.Clock.Now(),
		})
		if err != nil {
			return posted, err
		}
		if ok {
			posted++
		}
	}
	return posted, nil
}

func (r *AccrualRunner) postExpiry(ctx context.Context, st Store, acc LeaveAccount, today TimePoint) (int, error) {
	if acc.CarryoverExpireOn == nil || acc.MaxCarryover == nil {
		return 0, nil
	}
	expireOn := *acc.CarryoverExpireOn
	if expireOn.After(today) {
		return 0, nil
	}

	before, err := NewBalanceEngine(st).BalanceAsOf(ctx, acc.ID, expireOn.AddDays(-1))
	if err != nil {
		return 0, err
	}
	excess := ExpiryExcess(before, *acc.MaxCarryover)
	if excess.IsZero() {
		return 0, nil
	}

	ok, err := r.insertOnce(ctx, st, Entry{
		ID:             EntryID(uuid.NewString()),
		AccountID:      acc.ID,
		EntryDate:      expireOn,
		Kind:           KindCarryoverExpire,
		Amount:         excess,
		Note:           fmt.Sprintf("carryover above %s expired", acc.MaxCarryover.String()),
		IdempotencyKey: fmt.Sprintf("expire:%s:%s", acc.ID, expireOn.String()),
		CreatedAt:      r.Clock.Now(),
	})
	if err != nil || !ok {
		return 0, err
	}
	return 1, nil
}

// insertOnce writes e unless its idempotency key is already taken.
func (r *AccrualRunner) insertOnce(ctx context.Context, st Store, e Entry) (bool, error) {
	exists, err := st.IdempotencyKeyExists(ctx, e.IdempotencyKey)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := st.InsertEntry(ctx, e); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ExpiryExcess is the amount forfeited when balance exceeds the cap.
func ExpiryExcess(balance, maxCarryover decimal.Decimal) decimal.Decimal {
	excess := balance.Sub(maxCarryover)
	if excess.IsNegative() {
		return decimal.Zero
	}
	return excess
}
