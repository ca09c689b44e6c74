package generic_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/generic"
)

func TestAccountService_Create_Defaults(t *testing.T) {
	f := newFixture(t)

	acc, err := f.accounts.Create(context.Background(), generic.CreateAccount{
		UserID:        "u-1",
		LeaveTypeCode: "VAC",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, acc.ID)
	assert.True(t, acc.OpeningBalance.IsZero())
	assert.True(t, acc.AccrualPerMonth.IsZero())
	assert.Nil(t, acc.MaxCarryover)
	assert.True(t, acc.CreatedAt.Equal(now))

	stored, err := f.accounts.Get(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, stored.ID)
}

func TestAccountService_Create_Errors(t *testing.T) {
	f := newFixture(t)
	f.openAccount(t, "VAC", "0")

	tests := []struct {
		name string
		in   generic.CreateAccount
		want error
	}{
		{"duplicate user and type", generic.CreateAccount{UserID: "u-1", LeaveTypeCode: "VAC"}, generic.ErrAlreadyExists},
		{"unknown user", generic.CreateAccount{UserID: "ghost", LeaveTypeCode: "VAC"}, generic.ErrNotFound},
		{"unknown leave type", generic.CreateAccount{UserID: "u-1", LeaveTypeCode: "SABBATICAL"}, generic.ErrNotFound},
		{"negative accrual", generic.CreateAccount{UserID: "u-1", LeaveTypeCode: "RTT", AccrualPerMonth: generic.DecimalPtr(dec("-1"))}, generic.ErrInvalidArgument},
		{"missing user", generic.CreateAccount{LeaveTypeCode: "RTT"}, generic.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.accounts.Create(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAccountService_Update_PartialNumbersButAlwaysExpiry(t *testing.T) {
	// GIVEN: an account with an expiry date
	f := newFixture(t)
	ctx := context.Background()
	expire := date(2026, time.March, 31)
	acc, err := f.accounts.Create(ctx, generic.CreateAccount{
		UserID:            "u-1",
		LeaveTypeCode:     "VAC",
		OpeningBalance:    generic.DecimalPtr(dec("10")),
		AccrualPerMonth:   generic.DecimalPtr(dec("2.08")),
		MaxCarryover:      generic.DecimalPtr(dec("5")),
		CarryoverExpireOn: &expire,
	})
	require.NoError(t, err)

	// WHEN: only the opening balance is supplied
	updated, err := f.accounts.Update(ctx, acc.ID, generic.AccountUpdate{
		OpeningBalance: generic.DecimalPtr(dec("12")),
	})

	// THEN: accrual and cap keep their values, the expiry date is cleared
	require.NoError(t, err)
	assert.Equal(t, "12", updated.OpeningBalance.String())
	assert.Equal(t, "2.08", updated.AccrualPerMonth.String())
	require.NotNil(t, updated.MaxCarryover)
	assert.Equal(t, "5", updated.MaxCarryover.String())
	assert.Nil(t, updated.CarryoverExpireOn)

	stored, err := f.accounts.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.CarryoverExpireOn)
	assert.Equal(t, "12", stored.OpeningBalance.String())
}

func TestAccountService_Update_ClearMaxCarryover(t *testing.T) {
	// GIVEN: an account capped at 5 days
	f := newFixture(t)
	ctx := context.Background()
	acc, err := f.accounts.Create(ctx, generic.CreateAccount{
		UserID:        "u-1",
		LeaveTypeCode: "VAC",
		MaxCarryover:  generic.DecimalPtr(dec("5")),
	})
	require.NoError(t, err)

	// WHEN: setting and clearing the cap together
	_, err = f.accounts.Update(ctx, acc.ID, generic.AccountUpdate{
		MaxCarryover:      generic.DecimalPtr(dec("3")),
		ClearMaxCarryover: true,
	})

	// THEN: the update is rejected
	assert.ErrorIs(t, err, generic.ErrInvalidArgument)

	// WHEN: only clearing it
	updated, err := f.accounts.Update(ctx, acc.ID, generic.AccountUpdate{ClearMaxCarryover: true})

	// THEN: the account is uncapped
	require.NoError(t, err)
	assert.Nil(t, updated.MaxCarryover)
	stored, err := f.accounts.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.MaxCarryover)
}

func TestAccountService_Update_Unknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.accounts.Update(context.Background(), "nope", generic.AccountUpdate{})

	assert.True(t, generic.IsNotFound(err))
}

func TestAccountService_Delete_CascadesLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.openAccount(t, "VAC", "10")
	f.add(t, acc.ID, generic.KindAccrual, "2", date(2025, time.February, 1))

	deleted, err := f.accounts.Delete(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	entries, err := f.store.ListEntries(ctx, acc.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, entries)

	again, err := f.accounts.Delete(ctx, acc.ID)
	require.NoError(t, err)
	assert.False(t, again)
}

func TestAccountService_ListByUser(t *testing.T) {
	f := newFixture(t)
	f.openAccount(t, "VAC", "1")
	f.openAccount(t, "RTT", "2")

	accounts, err := f.accounts.ListByUser(context.Background(), "u-1")

	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "RTT", accounts[0].LeaveTypeCode)
	assert.Equal(t, "VAC", accounts[1].LeaveTypeCode)
}
