package absence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/absence"
	"github.com/warp/leave-ledger/generic"
)

func newService(f *bridgeFixture) *absence.Service {
	svc := absence.NewService(f.store, f.bridge, nil)
	svc.Clock = fixedClock()
	return svc
}

func TestService_Create_PendingByDefault_NoDebit(t *testing.T) {
	f := newBridgeFixture(t)
	svc := newService(f)

	a, err := svc.Create(context.Background(), absence.NewAbsence{
		UserID: "u-1",
		Type:   absence.TypeVacation,
		Days:   []absence.Day{day(4, absence.PeriodFullDay), day(3, absence.PeriodAM)},
	})

	require.NoError(t, err)
	assert.Equal(t, absence.StatusPending, a.Status)
	assert.Equal(t, "2025-03-03", a.StartDate.String(), "start date defaults to the earliest day")
	assert.Equal(t, "2025-03-03", a.Days[0].Date.String(), "days are sorted")
	assert.Empty(t, f.debits(t, a.ID))
}

func TestService_ApproveThenWithdraw(t *testing.T) {
	f := newBridgeFixture(t)
	svc := newService(f)
	ctx := context.Background()
	a, err := svc.Create(ctx, absence.NewAbsence{
		UserID: "u-1",
		Type:   absence.TypeVacation,
		Days:   []absence.Day{day(3, absence.PeriodFullDay), day(4, absence.PeriodFullDay)},
	})
	require.NoError(t, err)

	_, err = svc.SetStatus(ctx, a.ID, absence.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, "3", f.balance(t, f.vac.ID))

	_, err = svc.SetStatus(ctx, a.ID, absence.StatusRejected)
	require.NoError(t, err)
	assert.Empty(t, f.debits(t, a.ID))
	assert.Equal(t, "5", f.balance(t, f.vac.ID))
}

func TestService_ApprovalWithoutAccount_RollsBack(t *testing.T) {
	// GIVEN: a pending RTT absence and no RTT account
	f := newBridgeFixture(t)
	svc := newService(f)
	ctx := context.Background()
	a, err := svc.Create(ctx, absence.NewAbsence{
		UserID: "u-1",
		Type:   absence.TypeRTT,
		Days:   []absence.Day{day(3, absence.PeriodFullDay)},
	})
	require.NoError(t, err)

	// WHEN
	_, err = svc.SetStatus(ctx, a.ID, absence.StatusApproved)

	// THEN: the approval fails and the absence stays pending
	assert.True(t, generic.IsPrecondition(err))
	stored, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, absence.StatusPending, stored.Status)
	assert.Empty(t, f.debits(t, a.ID))
}

func TestService_Transitions(t *testing.T) {
	tests := []struct {
		from, to absence.Status
		ok       bool
	}{
		{absence.StatusPending, absence.StatusApproved, true},
		{absence.StatusPending, absence.StatusRejected, true},
		{absence.StatusApproved, absence.StatusRejected, true},
		{absence.StatusApproved, absence.StatusApproved, true},
		{absence.StatusRejected, absence.StatusApproved, false},
		{absence.StatusRejected, absence.StatusPending, false},
		{absence.StatusApproved, absence.StatusPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, absence.CanTransition(tt.from, tt.to))
		})
	}
}

func TestService_SetStatus_InvalidTransition(t *testing.T) {
	f := newBridgeFixture(t)
	svc := newService(f)
	ctx := context.Background()
	a, err := svc.Create(ctx, absence.NewAbsence{
		UserID: "u-1",
		Type:   absence.TypeVacation,
		Status: absence.StatusRejected,
		Days:   []absence.Day{day(3, absence.PeriodFullDay)},
	})
	require.NoError(t, err)

	_, err = svc.SetStatus(ctx, a.ID, absence.StatusApproved)

	assert.ErrorIs(t, err, generic.ErrInvalidArgument)
	assert.Empty(t, f.debits(t, a.ID))
}

func TestService_UpdateApproved_RewritesDebit(t *testing.T) {
	f := newBridgeFixture(t)
	svc := newService(f)
	ctx := context.Background()
	a, err := svc.Create(ctx, absence.NewAbsence{
		UserID: "u-1",
		Type:   absence.TypeVacation,
		Status: absence.StatusApproved,
		Days:   []absence.Day{day(3, absence.PeriodFullDay)},
	})
	require.NoError(t, err)
	assert.Equal(t, "4", f.balance(t, f.vac.ID))

	updated, err := svc.Update(ctx, a.ID, absence.AbsenceUpdate{
		Days: []absence.Day{day(10, absence.PeriodAM), day(11, absence.PeriodFullDay)},
	})

	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", updated.StartDate.String())
	rows := f.debits(t, a.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, "1.5", rows[0].Amount.String())
	assert.Equal(t, "2025-03-10", rows[0].EntryDate.String())
	assert.Equal(t, "3.5", f.balance(t, f.vac.ID))
}

func TestService_UpdateApproved_RetypeToUnmapped_RestoresBalance(t *testing.T) {
	// GIVEN: an approved two-day vacation debiting the VAC account
	f := newBridgeFixture(t)
	svc := newService(f)
	ctx := context.Background()
	a, err := svc.Create(ctx, absence.NewAbsence{
		UserID: "u-1",
		Type:   absence.TypeVacation,
		Status: absence.StatusApproved,
		Days:   []absence.Day{day(3, absence.PeriodFullDay), day(4, absence.PeriodFullDay)},
	})
	require.NoError(t, err)
	require.Equal(t, "3", f.balance(t, f.vac.ID))

	// WHEN: it is reclassified as sick leave, which maps to no leave type
	sick := absence.TypeSick
	updated, err := svc.Update(ctx, a.ID, absence.AbsenceUpdate{Type: &sick})

	// THEN: the absence stays approved and the vacation debit is gone
	require.NoError(t, err)
	assert.Equal(t, absence.TypeSick, updated.Type)
	assert.Equal(t, absence.StatusApproved, updated.Status)
	assert.Empty(t, f.debits(t, a.ID))
	assert.Equal(t, "5", f.balance(t, f.vac.ID))
}

func TestService_Delete_RemovesDebit(t *testing.T) {
	f := newBridgeFixture(t)
	svc := newService(f)
	ctx := context.Background()
	a, err := svc.Create(ctx, absence.NewAbsence{
		UserID: "u-1",
		Type:   absence.TypeVacation,
		Status: absence.StatusApproved,
		Days:   []absence.Day{day(3, absence.PeriodFullDay)},
	})
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, a.ID)

	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Empty(t, f.debits(t, a.ID))
	_, err = svc.Get(ctx, a.ID)
	assert.True(t, generic.IsNotFound(err))
}

func TestService_Create_Validation(t *testing.T) {
	f := newBridgeFixture(t)
	svc := newService(f)
	march3 := generic.NewTimePoint(2025, time.March, 3)

	tests := []struct {
		name string
		in   absence.NewAbsence
		want error
	}{
		{"unknown user", absence.NewAbsence{UserID: "ghost", Type: absence.TypeVacation, StartDate: &march3}, generic.ErrNotFound},
		{"missing type", absence.NewAbsence{UserID: "u-1", StartDate: &march3}, generic.ErrInvalidArgument},
		{"no days and no start", absence.NewAbsence{UserID: "u-1", Type: absence.TypeVacation}, generic.ErrInvalidArgument},
		{"bad period", absence.NewAbsence{UserID: "u-1", Type: absence.TypeVacation, Days: []absence.Day{day(3, "EVENING")}}, generic.ErrInvalidArgument},
		{"bad status", absence.NewAbsence{UserID: "u-1", Type: absence.TypeVacation, Status: "MAYBE", StartDate: &march3}, generic.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
