/*
balance.go - Balance engine

PURPOSE:
  Answers "what is this account's balance" from the two stored facts:

    balance = OpeningBalance + sum(signed ledger entries)

  Nothing is cached. Every read scans the account's ledger, so the result
  can never drift from the rows it is derived from.

BREAKDOWN:
  Breakdown also returns per-kind sums (accrued, debited, adjusted,
  expired). The KPI aggregator reports these and cross-checks its balance
  against CurrentBalance.
*/
package generic

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// BalanceReader is the read side the engine needs.
type BalanceReader interface {
	GetAccount(ctx context.Context, id AccountID) (LeaveAccount, error)
	ListEntries(ctx context.Context, accountID AccountID, period *Period) ([]Entry, error)
}

type BalanceEngine struct {
	Store BalanceReader
}

func NewBalanceEngine(store BalanceReader) *BalanceEngine {
	return &BalanceEngine{Store: store}
}

// BalanceBreakdown is the balance of one account with per-kind totals.
type BalanceBreakdown struct {
	AccountID       AccountID
	UserID          UserID
	LeaveTypeCode   string
	OpeningBalance  decimal.Decimal
	Accrued         decimal.Decimal
	Debited         decimal.Decimal
	Adjusted        decimal.Decimal
	CarryoverExpire decimal.Decimal
	Balance         decimal.Decimal
}

// CurrentBalance returns opening balance plus the signed sum of all entries.
func (e *BalanceEngine) CurrentBalance(ctx context.Context, accountID AccountID) (decimal.Decimal, error) {
	acc, err := e.Store.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	entries, err := e.Store.ListEntries(ctx, accountID, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load ledger: %w", err)
	}
	return acc.OpeningBalance.Add(SignedSum(entries)), nil
}

// BalanceAsOf counts only entries dated on or before the given day.
func (e *BalanceEngine) BalanceAsOf(ctx context.Context, accountID AccountID, asOf TimePoint) (decimal.Decimal, error) {
	acc, err := e.Store.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	entries, err := e.Store.ListEntries(ctx, accountID, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load ledger: %w", err)
	}
	balance := acc.OpeningBalance
	for _, entry := range entries {
		if entry.EntryDate.After(asOf) {
			break
		}
		balance = balance.Add(entry.Signed())
	}
	return balance, nil
}

// Breakdown returns the balance together with per-kind totals.
func (e *BalanceEngine) Breakdown(ctx context.Context, accountID AccountID) (BalanceBreakdown, error) {
	acc, err := e.Store.GetAccount(ctx, accountID)
	if err != nil {
		return BalanceBreakdown{}, err
	}
	entries, err := e.Store.ListEntries(ctx, accountID, nil)
	if err != nil {
		return BalanceBreakdown{}, fmt.Errorf("failed to load ledger: %w", err)
	}
	return BreakdownOf(acc, entries), nil
}

// BreakdownOf folds entries into per-kind totals for acc.
func BreakdownOf(acc LeaveAccount, entries []Entry) BalanceBreakdown {
	b := BalanceBreakdown{
		AccountID:       acc.ID,
		UserID:          acc.UserID,
		LeaveTypeCode:   acc.LeaveTypeCode,
		OpeningBalance:  acc.OpeningBalance,
		Accrued:         decimal.Zero,
		Debited:         decimal.Zero,
		Adjusted:        decimal.Zero,
		CarryoverExpire: decimal.Zero,
	}
	for _, entry := range entries {
		switch entry.Kind {
		case KindAccrual:
			b.Accrued = b.Accrued.Add(entry.Amount)
		case KindDebit:
			b.Debited = b.Debited.Add(entry.Amount)
		case KindAdjustment:
			b.Adjusted = b.Adjusted.Add(entry.Amount)
		case KindCarryoverExpire:
			b.CarryoverExpire = b.CarryoverExpire.Add(entry.Amount)
		}
	}
	b.Balance = acc.OpeningBalance.
		Add(b.Accrued).
		Add(b.Adjusted).
		Sub(b.Debited).
		Sub(b.CarryoverExpire)
	return b
}

// SignedSum adds up the signed contribution of each entry.
func SignedSum(entries []Entry) decimal.Decimal {
	sum := decimal.Zero
	for _, entry := range entries {
		sum = sum.Add(entry.Signed())
	}
	return sum
}
