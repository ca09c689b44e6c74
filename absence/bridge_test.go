package absence_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/absence"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var now = time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC)

func fixedClock() generic.Clock {
	return func() time.Time { return now }
}

type bridgeFixture struct {
	store  *sqlite.Store
	bridge *absence.Bridge
	vac    generic.LeaveAccount
}

// newBridgeFixture opens a VAC account with 5 days for u-1. RTT exists as a
// leave type but u-1 has no RTT account.
func newBridgeFixture(t *testing.T) *bridgeFixture {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.SaveUser(ctx, generic.User{ID: "u-1"}))
	require.NoError(t, store.SaveLeaveType(ctx, generic.LeaveType{Code: "VAC", Label: "Vacation"}))
	require.NoError(t, store.SaveLeaveType(ctx, generic.LeaveType{Code: "RTT", Label: "RTT"}))

	accounts := generic.NewAccountService(store, nil)
	accounts.Clock = fixedClock()
	vac, err := accounts.Create(ctx, generic.CreateAccount{
		UserID:         "u-1",
		LeaveTypeCode:  "VAC",
		OpeningBalance: generic.DecimalPtr(generic.MustParseDecimal("5")),
	})
	require.NoError(t, err)

	bridge := absence.NewBridge(store, absence.DefaultTypeMapping(), nil)
	bridge.Clock = fixedClock()
	return &bridgeFixture{store: store, bridge: bridge, vac: vac}
}

func day(d int, p absence.Period) absence.Day {
	return absence.Day{Date: generic.NewTimePoint(2025, time.March, d), Period: p}
}

func approved(id string, typ absence.Type, days ...absence.Day) absence.Absence {
	a := absence.Absence{
		ID:     id,
		UserID: "u-1",
		Type:   typ,
		Status: absence.StatusApproved,
		Days:   days,
	}
	if len(days) > 0 {
		a.StartDate = days[0].Date
	}
	return a
}

func (f *bridgeFixture) debits(t *testing.T, absenceID string) []generic.Entry {
	entries, err := f.store.FindByReferenceAbsence(context.Background(), absenceID)
	require.NoError(t, err)
	return entries
}

func (f *bridgeFixture) balance(t *testing.T, id generic.AccountID) string {
	b, err := generic.NewBalanceEngine(f.store).CurrentBalance(context.Background(), id)
	require.NoError(t, err)
	return b.String()
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func TestBridge_ApprovedAbsence_DebitsAccount(t *testing.T) {
	// GIVEN: opening balance 5 and a two full day vacation
	f := newBridgeFixture(t)
	a := approved("abs-1", absence.TypeVacation, day(3, absence.PeriodFullDay), day(4, absence.PeriodFullDay))

	// WHEN
	err := f.bridge.Handle(context.Background(), absence.Event{Kind: absence.EventStatusChanged, Absence: a})

	// THEN: one DEBIT of 2 dated on the start date, balance 3
	require.NoError(t, err)
	rows := f.debits(t, "abs-1")
	require.Len(t, rows, 1)
	assert.Equal(t, generic.KindDebit, rows[0].Kind)
	assert.Equal(t, "2", rows[0].Amount.String())
	assert.Equal(t, "2025-03-03", rows[0].EntryDate.String())
	assert.Equal(t, f.vac.ID, rows[0].AccountID)
	assert.Equal(t, "3", f.balance(t, f.vac.ID))
}

func TestBridge_IsIdempotent_LastStateWins(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()
	a := approved("abs-1", absence.TypeVacation, day(3, absence.PeriodFullDay), day(4, absence.PeriodFullDay))

	require.NoError(t, f.bridge.Handle(ctx, absence.Event{Kind: absence.EventStatusChanged, Absence: a}))
	require.NoError(t, f.bridge.Handle(ctx, absence.Event{Kind: absence.EventStatusChanged, Absence: a}))
	require.Len(t, f.debits(t, "abs-1"), 1)

	// Editing the days rewrites the same row
	a.Days = append(a.Days, day(5, absence.PeriodAM))
	require.NoError(t, f.bridge.Handle(ctx, absence.Event{Kind: absence.EventUpdated, Absence: a}))

	rows := f.debits(t, "abs-1")
	require.Len(t, rows, 1)
	assert.Equal(t, "2.5", rows[0].Amount.String())
	assert.Equal(t, "2.5", f.balance(t, f.vac.ID))
}

func TestBridge_UnmappedType_NoDebit(t *testing.T) {
	f := newBridgeFixture(t)
	a := approved("abs-sick", absence.TypeSick, day(3, absence.PeriodFullDay))

	entry, err := f.bridge.EnsureDebit(context.Background(), a)

	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Empty(t, f.debits(t, "abs-sick"))
	assert.Equal(t, "5", f.balance(t, f.vac.ID))
}

func TestBridge_RetypeToUnmapped_RemovesDebit(t *testing.T) {
	// GIVEN: an approved vacation with its debit
	f := newBridgeFixture(t)
	ctx := context.Background()
	a := approved("abs-1", absence.TypeVacation, day(3, absence.PeriodFullDay))
	_, err := f.bridge.EnsureDebit(ctx, a)
	require.NoError(t, err)
	require.Len(t, f.debits(t, "abs-1"), 1)

	// WHEN: the same absence is reconciled as sick leave
	a.Type = absence.TypeSick
	err = f.bridge.Handle(ctx, absence.Event{Kind: absence.EventUpdated, Absence: a})

	// THEN
	require.NoError(t, err)
	assert.Empty(t, f.debits(t, "abs-1"))
	assert.Equal(t, "5", f.balance(t, f.vac.ID))
}

func TestBridge_MissingAccount_IsPrecondition(t *testing.T) {
	// GIVEN: RTT maps to the RTT leave type but u-1 has no RTT account
	f := newBridgeFixture(t)
	a := approved("abs-rtt", absence.TypeRTT, day(3, absence.PeriodFullDay))

	err := f.bridge.Handle(context.Background(), absence.Event{Kind: absence.EventStatusChanged, Absence: a})

	assert.True(t, generic.IsPrecondition(err))
	var pe *generic.PreconditionError
	assert.ErrorAs(t, err, &pe)
	assert.Empty(t, f.debits(t, "abs-rtt"))
}

func TestBridge_RejectionAndDeletion_RemoveDebit(t *testing.T) {
	tests := []struct {
		name  string
		event func(a absence.Absence) absence.Event
	}{
		{"rejected", func(a absence.Absence) absence.Event {
			a.Status = absence.StatusRejected
			return absence.Event{Kind: absence.EventStatusChanged, Absence: a}
		}},
		{"back to pending", func(a absence.Absence) absence.Event {
			a.Status = absence.StatusPending
			return absence.Event{Kind: absence.EventUpdated, Absence: a}
		}},
		{"deleted", func(a absence.Absence) absence.Event {
			return absence.Event{Kind: absence.EventDeleted, Absence: a}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBridgeFixture(t)
			ctx := context.Background()
			a := approved("abs-1", absence.TypeVacation, day(3, absence.PeriodFullDay))
			require.NoError(t, f.bridge.Handle(ctx, absence.Event{Kind: absence.EventStatusChanged, Absence: a}))
			require.Len(t, f.debits(t, "abs-1"), 1)

			require.NoError(t, f.bridge.Handle(ctx, tt.event(a)))

			assert.Empty(t, f.debits(t, "abs-1"))
			assert.Equal(t, "5", f.balance(t, f.vac.ID))
		})
	}
}

func TestBridge_ZeroUnitAbsence_WritesZeroRow(t *testing.T) {
	f := newBridgeFixture(t)
	a := approved("abs-empty", absence.TypeVacation)
	a.StartDate = generic.NewTimePoint(2025, time.March, 10)

	entry, err := f.bridge.EnsureDebit(context.Background(), a)

	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.Amount.IsZero())
	assert.Len(t, f.debits(t, "abs-empty"), 1)
	assert.Equal(t, "5", f.balance(t, f.vac.ID))
}

func TestBridge_TypeChange_MovesDebitToOtherAccount(t *testing.T) {
	// GIVEN: u-1 also has an RTT account and an approved vacation
	f := newBridgeFixture(t)
	ctx := context.Background()
	accounts := generic.NewAccountService(f.store, nil)
	rtt, err := accounts.Create(ctx, generic.CreateAccount{
		UserID:         "u-1",
		LeaveTypeCode:  "RTT",
		OpeningBalance: generic.DecimalPtr(generic.MustParseDecimal("3")),
	})
	require.NoError(t, err)
	a := approved("abs-1", absence.TypeVacation, day(3, absence.PeriodFullDay))
	require.NoError(t, f.bridge.Handle(ctx, absence.Event{Kind: absence.EventStatusChanged, Absence: a}))

	// WHEN: the absence becomes an RTT day
	a.Type = absence.TypeRTT
	require.NoError(t, f.bridge.Handle(ctx, absence.Event{Kind: absence.EventUpdated, Absence: a}))

	// THEN
	rows := f.debits(t, "abs-1")
	require.Len(t, rows, 1)
	assert.Equal(t, rtt.ID, rows[0].AccountID)
	assert.Equal(t, "5", f.balance(t, f.vac.ID))
	assert.Equal(t, "2", f.balance(t, rtt.ID))
}

func TestBridge_ConcurrentApprovals_SingleDebit(t *testing.T) {
	// GIVEN: the same approval delivered by several workers at once
	f := newBridgeFixture(t)
	a := approved("abs-1", absence.TypeVacation, day(3, absence.PeriodFullDay), day(4, absence.PeriodPM))

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = f.bridge.Handle(context.Background(), absence.Event{Kind: absence.EventStatusChanged, Absence: a})
		}()
	}
	wg.Wait()

	// THEN: every call succeeds and exactly one row exists
	for _, err := range errs {
		assert.NoError(t, err)
	}
	rows := f.debits(t, "abs-1")
	require.Len(t, rows, 1)
	assert.Equal(t, "1.5", rows[0].Amount.String())
	assert.Equal(t, "3.5", f.balance(t, f.vac.ID))
}

func TestBridge_RemoveDebits(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()
	_, err := f.bridge.EnsureDebit(ctx, approved("abs-1", absence.TypeVacation, day(3, absence.PeriodFullDay)))
	require.NoError(t, err)

	n, err := f.bridge.RemoveDebits(ctx, "abs-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.bridge.RemoveDebits(ctx, "abs-1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
