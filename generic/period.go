package generic

import "time"

// =============================================================================
// PERIOD - Inclusive date range used for ledger listings and KPI windows
// =============================================================================

// Period is the inclusive range [Start, End].
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod validates that end is not before start.
func NewPeriod(start, end TimePoint) (Period, error) {
	if end.Before(start) {
		return Period{}, &FieldError{Field: "to", Reason: "must not be before from"}
	}
	return Period{Start: start, End: end}, nil
}

// Contains returns true if the day is within [Start, End].
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// ContainsTime reports whether the instant falls on a day inside the period,
// with days taken in loc.
func (p Period) ContainsTime(t time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	return p.Contains(DateOf(t.In(loc)))
}

// Bounds returns [start, end) instants covering the period in loc.
func (p Period) Bounds(loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	from := time.Date(p.Start.Year(), p.Start.Month(), p.Start.Day(), 0, 0, 0, 0, loc)
	end := p.End.AddDays(1)
	to := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)
	return from, to
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
