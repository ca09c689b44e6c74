package sqlite

import (
	"context"
	"fmt"

	"github.com/warp/leave-ledger/absence"
	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// ABSENCE RECORDS (absence.Records interface)
// =============================================================================

const absenceColumns = "id, user_id, type, status, start_date, reason, created_at, updated_at"

// SaveAbsence inserts or replaces the absence and its days.
func (q queries) SaveAbsence(ctx context.Context, a absence.Absence) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO absences (`+absenceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			status = excluded.status,
			start_date = excluded.start_date,
			reason = excluded.reason,
			updated_at = excluded.updated_at
	`,
		a.ID, a.UserID, a.Type, a.Status, a.StartDate.String(), a.Reason,
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save absence: %w", err)
	}

	if _, err := q.q.ExecContext(ctx, "DELETE FROM absence_days WHERE absence_id = ?", a.ID); err != nil {
		return fmt.Errorf("failed to replace absence days: %w", err)
	}
	for i, d := range a.Days {
		_, err := q.q.ExecContext(ctx,
			"INSERT INTO absence_days (absence_id, position, date, period) VALUES (?, ?, ?, ?)",
			a.ID, i, d.Date.String(), d.Period)
		if err != nil {
			return fmt.Errorf("failed to save absence day: %w", err)
		}
	}
	return nil
}

func (q queries) GetAbsence(ctx context.Context, id string) (absence.Absence, error) {
	found, err := q.queryAbsences(ctx, "SELECT "+absenceColumns+" FROM absences WHERE id = ?", id)
	if err != nil {
		return absence.Absence{}, err
	}
	if len(found) == 0 {
		return absence.Absence{}, &generic.NotFoundError{Resource: "absence", ID: id}
	}
	return found[0], nil
}

// DeleteAbsence removes the absence; its days go with it.
func (q queries) DeleteAbsence(ctx context.Context, id string) (bool, error) {
	res, err := q.q.ExecContext(ctx, "DELETE FROM absences WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete absence: %w", err)
	}
	n, err := rowsAffected(res)
	return n > 0, err
}

// ListAbsences returns absences of the users with a day inside the period,
// or, for absences without days, a start date inside it.
func (q queries) ListAbsences(ctx context.Context, userIDs []generic.UserID, period generic.Period) ([]absence.Absence, error) {
	if len(userIDs) == 0 {
		return []absence.Absence{}, nil
	}
	from, to := period.Start.String(), period.End.String()

	args := make([]any, 0, len(userIDs)+4)
	for _, id := range userIDs {
		args = append(args, id)
	}
	args = append(args, from, to, from, to)

	query := "SELECT " + absenceColumns + ` FROM absences a
		WHERE a.user_id IN (` + placeholders(len(userIDs)) + `)
		  AND (
			EXISTS (SELECT 1 FROM absence_days d
			        WHERE d.absence_id = a.id AND d.date >= ? AND d.date <= ?)
			OR (NOT EXISTS (SELECT 1 FROM absence_days d WHERE d.absence_id = a.id)
			    AND a.start_date >= ? AND a.start_date <= ?)
		  )
		ORDER BY a.user_id, a.start_date, a.id`
	return q.queryAbsences(ctx, query, args...)
}

func (q queries) AbsenceExists(ctx context.Context, absenceID string) (bool, error) {
	var count int
	err := q.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM absences WHERE id = ?", absenceID).Scan(&count)
	return count > 0, err
}

// queryAbsences reads the matching rows first and loads days afterwards,
// so no result set is open while the next query runs.
func (q queries) queryAbsences(ctx context.Context, query string, args ...any) ([]absence.Absence, error) {
	found, err := q.scanAbsences(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	for i := range found {
		days, err := q.absenceDays(ctx, found[i].ID)
		if err != nil {
			return nil, err
		}
		found[i].Days = days
	}
	return found, nil
}

func (q queries) scanAbsences(ctx context.Context, query string, args ...any) ([]absence.Absence, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query absences: %w", err)
	}
	defer rows.Close()

	found := []absence.Absence{}
	for rows.Next() {
		var (
			a         absence.Absence
			startDate string
			createdAt string
			updatedAt string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.Status, &startDate, &a.Reason, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan absence: %w", err)
		}
		if a.StartDate, err = parseDate(startDate); err != nil {
			return nil, err
		}
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		found = append(found, a)
	}
	return found, rows.Err()
}

func (q queries) absenceDays(ctx context.Context, absenceID string) ([]absence.Day, error) {
	rows, err := q.q.QueryContext(ctx,
		"SELECT date, period FROM absence_days WHERE absence_id = ? ORDER BY position", absenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query absence days: %w", err)
	}
	defer rows.Close()

	days := []absence.Day{}
	for rows.Next() {
		var (
			d    absence.Day
			date string
		)
		if err := rows.Scan(&date, &d.Period); err != nil {
			return nil, fmt.Errorf("failed to scan absence day: %w", err)
		}
		if d.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

func (s *Store) SaveAbsence(ctx context.Context, a absence.Absence) error {
	return s.inTx(ctx, func(q queries) error {
		return q.SaveAbsence(ctx, a)
	})
}

func (s *Store) GetAbsence(ctx context.Context, id string) (absence.Absence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries().GetAbsence(ctx, id)
}

func (s *Store) DeleteAbsence(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries().DeleteAbsence(ctx, id)
}

func (s *Store) ListAbsences(ctx context.Context, userIDs []generic.UserID, period generic.Period) ([]absence.Absence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries().ListAbsences(ctx, userIDs, period)
}

func (s *Store) AbsenceExists(ctx context.Context, absenceID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries().AbsenceExists(ctx, absenceID)
}
