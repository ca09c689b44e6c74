package absence

import (
	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// DAY UNITS - Fractional day counts
// =============================================================================

// Units returns the day units of one period: AM and PM are half days,
// FULL_DAY and anything unset or unknown is a full day.
func (p Period) Units() decimal.Decimal {
	switch p {
	case PeriodAM, PeriodPM:
		return generic.HalfDay
	default:
		return generic.FullDay
	}
}

// Units sums the units of a sequence of periods. Empty input is zero.
func Units(periods []Period) decimal.Decimal {
	total := decimal.Zero
	for _, p := range periods {
		total = total.Add(p.Units())
	}
	return total
}

// Units is the absence's total duration in day units.
func (a Absence) Units() decimal.Decimal {
	total := decimal.Zero
	for _, d := range a.Days {
		total = total.Add(d.Period.Units())
	}
	return total
}

// UnitsInRange counts only the days that fall inside the period.
func UnitsInRange(days []Day, period generic.Period) decimal.Decimal {
	total := decimal.Zero
	for _, d := range days {
		if period.Contains(d.Date) {
			total = total.Add(d.Period.Units())
		}
	}
	return total
}

func (a Absence) UnitsIn(period generic.Period) decimal.Decimal {
	return UnitsInRange(a.Days, period)
}

// Touches reports whether any day of the absence, or its start date when
// it has no days, falls inside the period.
func (a Absence) Touches(period generic.Period) bool {
	if len(a.Days) == 0 {
		return period.Contains(a.StartDate)
	}
	for _, d := range a.Days {
		if period.Contains(d.Date) {
			return true
		}
	}
	return false
}
