package kpi

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/absence"
	"github.com/warp/leave-ledger/generic"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the per-user fan-out of Compute.
const DefaultConcurrency = 8

// =============================================================================
// AGGREGATOR
// =============================================================================

type Aggregator struct {
	Source Source

	// Location decides which calendar day and weekday a clock event falls on.
	Location *time.Location

	// DefaultSchedule applies to users without slots of their own.
	DefaultSchedule []Slot

	Concurrency int
	Log         *slog.Logger
}

func NewAggregator(src Source, loc *time.Location, defaultSchedule []Slot, log *slog.Logger) *Aggregator {
	return &Aggregator{
		Source:          src,
		Location:        loc,
		DefaultSchedule: defaultSchedule,
		Concurrency:     DefaultConcurrency,
		Log:             log,
	}
}

func (a *Aggregator) logger() *slog.Logger {
	if a.Log == nil {
		return slog.Default()
	}
	return a.Log
}

func (a *Aggregator) location() *time.Location {
	if a.Location == nil {
		return time.UTC
	}
	return a.Location
}

// userFigures is what one user contributes to the report.
type userFigures struct {
	worked     time.Duration
	sessions   int
	scheduled  int
	late       int
	delayTotal int64
	balances   []generic.BalanceBreakdown
}

// Compute builds the report for every user in scope over the inclusive period.
func (a *Aggregator) Compute(ctx context.Context, scope Scope, period generic.Period) (Report, error) {
	if err := scope.Validate(); err != nil {
		return Report{}, err
	}
	if period.End.Before(period.Start) {
		return Report{}, &generic.FieldError{Field: "to", Reason: "must not be before from"}
	}

	report := emptyReport(scope, period)

	users, err := a.Source.UsersInScope(ctx, scope)
	if err != nil {
		return Report{}, fmt.Errorf("failed to resolve scope %s: %w", scope, err)
	}
	if len(users) == 0 {
		return report, nil
	}
	report.Users = len(users)

	ids := make([]generic.UserID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	absences, err := a.Source.ListAbsences(ctx, ids, period)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load absences: %w", err)
	}
	report.Attendance = attendanceOf(absences, period)

	from, to := period.Bounds(a.location())
	events, err := a.Source.ListClockEvents(ctx, ids, from, to)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load clock events: %w", err)
	}
	byUser := make(map[generic.UserID][]ClockEvent, len(users))
	for _, ev := range events {
		byUser[ev.UserID] = append(byUser[ev.UserID], ev)
	}

	figures := make([]userFigures, len(users))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency())
	for i, u := range users {
		g.Go(func() error {
			f, err := a.userFigures(gCtx, u.ID, byUser[u.ID])
			if err != nil {
				return fmt.Errorf("user %s: %w", u.ID, err)
			}
			figures[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	var worked time.Duration
	var delayTotal int64
	for _, f := range figures {
		worked += f.worked
		report.Time.Sessions += f.sessions
		report.Punctuality.ScheduledIns += f.scheduled
		report.Punctuality.LateIns += f.late
		delayTotal += f.delayTotal
		report.Balances = append(report.Balances, f.balances...)
	}

	report.Time.TotalMinutes = int64(worked / time.Minute)
	if report.Time.Sessions > 0 {
		seconds := decimal.NewFromInt(int64(worked / time.Second))
		report.Time.AverageMinutes = seconds.
			Div(decimal.NewFromInt(60)).
			DivRound(decimal.NewFromInt(int64(report.Time.Sessions)), 2)
	}
	if p := report.Punctuality; p.ScheduledIns > 0 {
		report.Punctuality.LateRate = decimal.NewFromInt(int64(p.LateIns)).
			DivRound(decimal.NewFromInt(int64(p.ScheduledIns)), 4)
		if p.LateIns > 0 {
			report.Punctuality.AverageDelayMinutes = decimal.NewFromInt(delayTotal).
				DivRound(decimal.NewFromInt(int64(p.LateIns)), 2)
		}
	}

	sort.Slice(report.Balances, func(i, j int) bool {
		bi, bj := report.Balances[i], report.Balances[j]
		if bi.UserID != bj.UserID {
			return bi.UserID < bj.UserID
		}
		return bi.LeaveTypeCode < bj.LeaveTypeCode
	})

	a.logger().DebugContext(ctx, "kpi computed",
		"scope", scope.String(),
		"period", period.String(),
		"users", report.Users,
		"sessions", report.Time.Sessions,
		"balances", len(report.Balances))
	return report, nil
}

func (a *Aggregator) concurrency() int {
	if a.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return a.Concurrency
}

func (a *Aggregator) userFigures(ctx context.Context, userID generic.UserID, events []ClockEvent) (userFigures, error) {
	var f userFigures

	f.worked, f.sessions = PairSessions(events)

	slots, err := a.Source.ScheduleFor(ctx, userID)
	if err != nil {
		return f, fmt.Errorf("failed to load schedule: %w", err)
	}
	if len(slots) == 0 {
		slots = a.DefaultSchedule
	}
	loc := a.location()
	for _, ev := range events {
		if ev.Kind != ClockIn {
			continue
		}
		d, scheduled := DelayOf(ev.At, slots, loc)
		if !scheduled {
			continue
		}
		f.scheduled++
		if d.Late {
			f.late++
			f.delayTotal += d.Minutes
		}
	}

	f.balances, err = a.balancesOf(ctx, userID)
	return f, err
}

// balancesOf re-derives every account balance from its ledger rows and
// checks it against the balance engine. Both reads share one transaction.
func (a *Aggregator) balancesOf(ctx context.Context, userID generic.UserID) ([]generic.BalanceBreakdown, error) {
	var out []generic.BalanceBreakdown
	err := a.Source.WithTx(ctx, func(st generic.Store) error {
		accounts, err := st.ListAccountsByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to list accounts: %w", err)
		}
		engine := generic.NewBalanceEngine(st)
		out = make([]generic.BalanceBreakdown, 0, len(accounts))
		for _, acc := range accounts {
			entries, err := st.ListEntries(ctx, acc.ID, nil)
			if err != nil {
				return fmt.Errorf("failed to load ledger of %s: %w", acc.ID, err)
			}
			b := generic.BreakdownOf(acc, entries)

			current, err := engine.CurrentBalance(ctx, acc.ID)
			if err != nil {
				return err
			}
			if !current.Equal(b.Balance) {
				return fmt.Errorf("%w: account %s sums to %s but the balance engine reports %s",
					generic.ErrInternal, acc.ID, b.Balance.String(), current.String())
			}
			out = append(out, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func attendanceOf(absences []absence.Absence, period generic.Period) Attendance {
	att := Attendance{ApprovedUnits: decimal.Zero}
	for _, ab := range absences {
		if !ab.Touches(period) {
			continue
		}
		att.Requests++
		if ab.Status == absence.StatusApproved {
			att.Approved++
			att.ApprovedUnits = att.ApprovedUnits.Add(ab.UnitsIn(period))
		}
	}
	return att
}

// =============================================================================
// TIME
// =============================================================================

// PairSessions matches IN and OUT events in time order. An IN followed by
// another IN is dropped, an OUT without an open IN counts nothing, and a
// trailing IN is left out.
func PairSessions(events []ClockEvent) (time.Duration, int) {
	sorted := make([]ClockEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At.Before(sorted[j].At) })

	var total time.Duration
	sessions := 0
	var open *ClockEvent
	for i := range sorted {
		ev := sorted[i]
		switch ev.Kind {
		case ClockIn:
			open = &sorted[i]
		case ClockOut:
			if open == nil {
				continue
			}
			total += ev.At.Sub(open.At)
			sessions++
			open = nil
		}
	}
	return total, sessions
}

// =============================================================================
// PUNCTUALITY
// =============================================================================

type Delay struct {
	Late    bool
	Minutes int64
}

// DelayOf picks the slot on the IN event's weekday whose start is closest to
// it. The event is late when it comes after start plus grace; the delay is
// counted in whole minutes from the scheduled start. scheduled is false when
// no slot exists for that weekday.
func DelayOf(at time.Time, slots []Slot, loc *time.Location) (d Delay, scheduled bool) {
	if loc == nil {
		loc = time.UTC
	}
	local := at.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	var best *Slot
	var bestDist time.Duration
	for i := range slots {
		s := slots[i]
		if s.Weekday != local.Weekday() {
			continue
		}
		start := midnight.Add(time.Duration(s.StartMinute) * time.Minute)
		dist := local.Sub(start)
		if dist < 0 {
			dist = -dist
		}
		if best == nil || dist < bestDist {
			best, bestDist = &slots[i], dist
		}
	}
	if best == nil {
		return Delay{}, false
	}

	start := midnight.Add(time.Duration(best.StartMinute) * time.Minute)
	deadline := start.Add(time.Duration(best.GraceMinutes) * time.Minute)
	if !local.After(deadline) {
		return Delay{}, true
	}
	return Delay{Late: true, Minutes: int64(local.Sub(start) / time.Minute)}, true
}

func emptyReport(scope Scope, period generic.Period) Report {
	return Report{
		Scope:      scope,
		Period:     period,
		Attendance: Attendance{ApprovedUnits: decimal.Zero},
		Time:       TimeStats{AverageMinutes: decimal.Zero},
		Punctuality: Punctuality{
			LateRate:            decimal.Zero,
			AverageDelayMinutes: decimal.Zero,
		},
		Balances: []generic.BalanceBreakdown{},
	}
}
