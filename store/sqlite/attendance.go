package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/kpi"
)

// =============================================================================
// SCOPE RESOLUTION (kpi.Directory interface)
// =============================================================================

func (s *Store) UsersInScope(ctx context.Context, scope kpi.Scope) ([]generic.User, error) {
	var column string
	switch scope.Kind {
	case kpi.ScopeUser:
		column = "id"
	case kpi.ScopeTeam:
		column = "team_id"
	case kpi.ScopeOrganization:
		column = "organization_id"
	default:
		return nil, &generic.FieldError{Field: "scope", Reason: fmt.Sprintf("unknown scope kind %q", scope.Kind)}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, role, team_id, organization_id FROM users WHERE "+column+" = ? ORDER BY id", scope.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []generic.User{}
	for rows.Next() {
		var u generic.User
		if err := rows.Scan(&u.ID, &u.Role, &u.TeamID, &u.OrganizationID); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// =============================================================================
// CLOCK EVENTS (kpi.ClockSource interface)
// =============================================================================

func (s *Store) SaveClockEvent(ctx context.Context, ev kpi.ClockEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO clock_events (id, user_id, kind, at) VALUES (?, ?, ?, ?)",
		ev.ID, ev.UserID, ev.Kind, formatTime(ev.At))
	if err != nil {
		if isUniqueConstraintError(err) {
			return &generic.AlreadyExistsError{Resource: "clock event", Key: ev.ID}
		}
		return fmt.Errorf("failed to save clock event: %w", err)
	}
	return nil
}

func (s *Store) ListClockEvents(ctx context.Context, userIDs []generic.UserID, from, to time.Time) ([]kpi.ClockEvent, error) {
	if len(userIDs) == 0 {
		return []kpi.ClockEvent{}, nil
	}
	args := make([]any, 0, len(userIDs)+2)
	for _, id := range userIDs {
		args = append(args, id)
	}
	args = append(args, formatTime(from), formatTime(to))

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, kind, at FROM clock_events
		WHERE user_id IN (`+placeholders(len(userIDs))+`) AND at >= ? AND at < ?
		ORDER BY user_id, at, rowid
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query clock events: %w", err)
	}
	defer rows.Close()

	events := []kpi.ClockEvent{}
	for rows.Next() {
		var (
			ev kpi.ClockEvent
			at string
		)
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.Kind, &at); err != nil {
			return nil, fmt.Errorf("failed to scan clock event: %w", err)
		}
		if ev.At, err = parseTime(at); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// =============================================================================
// WORK SCHEDULES (kpi.ScheduleSource interface)
// =============================================================================

// SaveSchedule replaces every slot of the user.
func (s *Store) SaveSchedule(ctx context.Context, userID generic.UserID, slots []kpi.Slot) error {
	return s.inTx(ctx, func(q queries) error {
		if _, err := q.q.ExecContext(ctx, "DELETE FROM work_schedules WHERE user_id = ?", userID); err != nil {
			return fmt.Errorf("failed to clear schedule: %w", err)
		}
		for _, slot := range slots {
			_, err := q.q.ExecContext(ctx, `
				INSERT INTO work_schedules (user_id, weekday, period, start_minute, grace_minutes)
				VALUES (?, ?, ?, ?, ?)
			`, userID, int(slot.Weekday), slot.Period, slot.StartMinute, slot.GraceMinutes)
			if err != nil {
				if isUniqueConstraintError(err) {
					return &generic.AlreadyExistsError{
						Resource: "schedule slot",
						Key:      fmt.Sprintf("%s/%s/%s", userID, slot.Weekday, slot.Period),
					}
				}
				return fmt.Errorf("failed to save schedule slot: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) ScheduleFor(ctx context.Context, userID generic.UserID) ([]kpi.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT weekday, period, start_minute, grace_minutes FROM work_schedules
		WHERE user_id = ? ORDER BY weekday, start_minute
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule: %w", err)
	}
	defer rows.Close()

	slots := []kpi.Slot{}
	for rows.Next() {
		var (
			slot    kpi.Slot
			weekday int
		)
		if err := rows.Scan(&weekday, &slot.Period, &slot.StartMinute, &slot.GraceMinutes); err != nil {
			return nil, fmt.Errorf("failed to scan schedule slot: %w", err)
		}
		slot.Weekday = time.Weekday(weekday)
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}
