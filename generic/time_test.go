package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/generic"
)

func TestMonthStartsBetween(t *testing.T) {
	starts := generic.MonthStartsBetween(date(2024, time.November, 20), date(2025, time.February, 1))

	require.Len(t, starts, 3)
	assert.Equal(t, "2024-12-01", starts[0].String())
	assert.Equal(t, "2025-01-01", starts[1].String())
	assert.Equal(t, "2025-02-01", starts[2].String())

	// A month start equal to the lower bound is excluded
	assert.Empty(t, generic.MonthStartsBetween(date(2025, time.March, 1), date(2025, time.March, 31)))
}

func TestParseDate(t *testing.T) {
	tp, err := generic.ParseDate("from", "2025-03-10")
	require.NoError(t, err)
	assert.True(t, tp.Equal(date(2025, time.March, 10)))

	_, err = generic.ParseDate("from", "10/03/2025")
	var fe *generic.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "from", fe.Field)
}

func TestPeriod(t *testing.T) {
	_, err := generic.NewPeriod(date(2025, time.March, 2), date(2025, time.March, 1))
	assert.ErrorIs(t, err, generic.ErrInvalidArgument)

	p, err := generic.NewPeriod(date(2025, time.March, 1), date(2025, time.March, 31))
	require.NoError(t, err)
	assert.True(t, p.Contains(date(2025, time.March, 1)))
	assert.True(t, p.Contains(date(2025, time.March, 31)))
	assert.False(t, p.Contains(date(2025, time.April, 1)))

	paris := time.FixedZone("CEST", 2*60*60)
	// 23:30 UTC on March 31 is already April 1 in Paris
	late := time.Date(2025, time.March, 31, 23, 30, 0, 0, time.UTC)
	assert.True(t, p.ContainsTime(late, time.UTC))
	assert.False(t, p.ContainsTime(late, paris))
}
