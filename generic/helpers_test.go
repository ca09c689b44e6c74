package generic_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var now = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) generic.Clock {
	return func() time.Time { return t }
}

func dec(s string) decimal.Decimal { return generic.MustParseDecimal(s) }

func date(y int, m time.Month, d int) generic.TimePoint { return generic.NewTimePoint(y, m, d) }

type fixture struct {
	store    *sqlite.Store
	accounts *generic.AccountService
	ledger   *generic.LedgerService
	balances *generic.BalanceEngine
}

func newFixture(t *testing.T) *fixture {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.SaveUser(ctx, generic.User{ID: "u-1", TeamID: "t-1", OrganizationID: "o-1"}))
	require.NoError(t, store.SaveLeaveType(ctx, generic.LeaveType{Code: "VAC", Label: "Vacation"}))
	require.NoError(t, store.SaveLeaveType(ctx, generic.LeaveType{Code: "RTT", Label: "RTT"}))

	accounts := generic.NewAccountService(store, nil)
	accounts.Clock = fixedClock(now)
	ledger := generic.NewLedgerService(store, nil)
	ledger.Clock = fixedClock(now)

	return &fixture{
		store:    store,
		accounts: accounts,
		ledger:   ledger,
		balances: generic.NewBalanceEngine(store),
	}
}

func (f *fixture) openAccount(t *testing.T, code string, opening string) generic.LeaveAccount {
	acc, err := f.accounts.Create(context.Background(), generic.CreateAccount{
		UserID:         "u-1",
		LeaveTypeCode:  code,
		OpeningBalance: generic.DecimalPtr(dec(opening)),
	})
	require.NoError(t, err)
	return acc
}

func (f *fixture) add(t *testing.T, acc generic.AccountID, kind generic.EntryKind, amount string, day generic.TimePoint) generic.Entry {
	e, err := f.ledger.AddEntry(context.Background(), generic.NewEntry{
		AccountID: acc,
		Date:      &day,
		Kind:      kind,
		Amount:    dec(amount),
	})
	require.NoError(t, err)
	return e
}
