package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// LEDGER STORE (generic.LedgerStore interface)
// =============================================================================

const entryColumns = `id, account_id, entry_date, kind, amount, reference_absence_id,
	note, idempotency_key, created_at`

// Rows written in the same instant keep insertion order through rowid.
const entryOrder = "ORDER BY entry_date ASC, created_at ASC, rowid ASC"

func (q queries) InsertEntry(ctx context.Context, e generic.Entry) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO ledger_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.AccountID,
		e.EntryDate.String(),
		e.Kind,
		e.Amount.String(),
		nullString(e.ReferenceAbsenceID),
		e.Note,
		nullString(e.IdempotencyKey),
		formatTime(e.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return entryConflict(err, e)
		}
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

func entryConflict(err error, e generic.Entry) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "reference_absence_id"):
		return &generic.AlreadyExistsError{Resource: "ledger entry", Key: "absence " + e.ReferenceAbsenceID}
	case strings.Contains(msg, "idempotency_key"):
		return &generic.AlreadyExistsError{Resource: "ledger entry", Key: "idempotency key " + e.IdempotencyKey}
	default:
		return &generic.AlreadyExistsError{Resource: "ledger entry", Key: string(e.ID)}
	}
}

// UpdateEntry overwrites date, kind, amount and note. Account, reference
// and idempotency key stay as written.
func (q queries) UpdateEntry(ctx context.Context, e generic.Entry) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE ledger_entries SET entry_date = ?, kind = ?, amount = ?, note = ?
		WHERE id = ?
	`, e.EntryDate.String(), e.Kind, e.Amount.String(), e.Note, e.ID)
	if err != nil {
		return fmt.Errorf("failed to update ledger entry: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return &generic.NotFoundError{Resource: "ledger entry", ID: string(e.ID)}
	}
	return nil
}

func (q queries) GetEntry(ctx context.Context, id generic.EntryID) (generic.Entry, error) {
	row := q.q.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM ledger_entries WHERE id = ?", id)
	e, err := scanEntry(row)
	if err != nil {
		return generic.Entry{}, notFound(err, "ledger entry", string(id))
	}
	return e, nil
}

func (q queries) DeleteEntry(ctx context.Context, id generic.EntryID) (bool, error) {
	res, err := q.q.ExecContext(ctx, "DELETE FROM ledger_entries WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete ledger entry: %w", err)
	}
	n, err := rowsAffected(res)
	return n > 0, err
}

func (q queries) ListEntries(ctx context.Context, accountID generic.AccountID, period *generic.Period) ([]generic.Entry, error) {
	if period == nil {
		return q.queryEntries(ctx,
			"SELECT "+entryColumns+" FROM ledger_entries WHERE account_id = ? "+entryOrder, accountID)
	}
	return q.queryEntries(ctx,
		"SELECT "+entryColumns+` FROM ledger_entries
		WHERE account_id = ? AND entry_date >= ? AND entry_date <= ? `+entryOrder,
		accountID, period.Start.String(), period.End.String())
}

func (q queries) FindByReferenceAbsence(ctx context.Context, absenceID string) ([]generic.Entry, error) {
	return q.queryEntries(ctx,
		"SELECT "+entryColumns+" FROM ledger_entries WHERE reference_absence_id = ? "+entryOrder, absenceID)
}

func (q queries) DeleteByReferenceAbsence(ctx context.Context, absenceID string) (int, error) {
	res, err := q.q.ExecContext(ctx, "DELETE FROM ledger_entries WHERE reference_absence_id = ?", absenceID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete absence debits: %w", err)
	}
	return rowsAffected(res)
}

func (q queries) DeleteByAccount(ctx context.Context, accountID generic.AccountID) (int, error) {
	res, err := q.q.ExecContext(ctx, "DELETE FROM ledger_entries WHERE account_id = ?", accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete account ledger: %w", err)
	}
	return rowsAffected(res)
}

func (q queries) IdempotencyKeyExists(ctx context.Context, key string) (bool, error) {
	var count int
	err := q.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ledger_entries WHERE idempotency_key = ?", key,
	).Scan(&count)
	return count > 0, err
}

func (q queries) queryEntries(ctx context.Context, query string, args ...any) ([]generic.Entry, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	entries := []generic.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(row scanner) (generic.Entry, error) {
	var (
		e              generic.Entry
		entryDate      string
		amount         string
		referenceID    sql.NullString
		idempotencyKey sql.NullString
		createdAt      string
	)
	if err := row.Scan(
		&e.ID, &e.AccountID, &entryDate, &e.Kind, &amount, &referenceID,
		&e.Note, &idempotencyKey, &createdAt,
	); err != nil {
		return e, err
	}

	var err error
	if e.EntryDate, err = parseDate(entryDate); err != nil {
		return e, err
	}
	if e.Amount, err = parseDecimal(amount); err != nil {
		return e, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return e, err
	}
	e.ReferenceAbsenceID = referenceID.String
	e.IdempotencyKey = idempotencyKey.String
	return e, nil
}

func (s *Store) InsertEntry(ctx context.Context, e generic.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries().InsertEntry(ctx, e)
}

func (s *Store) UpdateEntry(ctx context.Context, e generic.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries().UpdateEntry(ctx, e)
}

func (s *Store) GetEntry(ctx context.Context, id generic.EntryID) (generic.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries().GetEntry(ctx, id)
}

func (s *Store) DeleteEntry(ctx context.Context, id generic.EntryID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries().DeleteEntry(ctx, id)
}

func (s *Store) ListEntries(ctx context.Context, accountID generic.AccountID, period *generic.Period) ([]generic.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries().ListEntries(ctx, accountID, period)
}

func (s *Store) FindByReferenceAbsence(ctx context.Context, absenceID string) ([]generic.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries().FindByReferenceAbsence(ctx, absenceID)
}

func (s *Store) DeleteByReferenceAbsence(ctx context.Context, absenceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries().DeleteByReferenceAbsence(ctx, absenceID)
}

func (s *Store) DeleteByAccount(ctx context.Context, accountID generic.AccountID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries().DeleteByAccount(ctx, accountID)
}

func (s *Store) IdempotencyKeyExists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries().IdempotencyKeyExists(ctx, key)
}
