package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// LEAVE TYPE STORE (generic.LeaveTypeStore interface)
// =============================================================================

func (q queries) SaveLeaveType(ctx context.Context, lt generic.LeaveType) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO leave_types (code, label) VALUES (?, ?)
		ON CONFLICT(code) DO UPDATE SET label = excluded.label
	`, lt.Code, lt.Label)
	if err != nil {
		return fmt.Errorf("failed to save leave type: %w", err)
	}
	return nil
}

func (q queries) GetLeaveType(ctx context.Context, code string) (generic.LeaveType, error) {
	var lt generic.LeaveType
	err := q.q.QueryRowContext(ctx,
		"SELECT code, label FROM leave_types WHERE code = ?", code,
	).Scan(&lt.Code, &lt.Label)
	if err != nil {
		return generic.LeaveType{}, notFound(err, "leave type", code)
	}
	return lt, nil
}

func (q queries) ListLeaveTypes(ctx context.Context) ([]generic.LeaveType, error) {
	rows, err := q.q.QueryContext(ctx, "SELECT code, label FROM leave_types ORDER BY code")
	if err != nil {
		return nil, fmt.Errorf("failed to query leave types: %w", err)
	}
	defer rows.Close()

	types := []generic.LeaveType{}
	for rows.Next() {
		var lt generic.LeaveType
		if err := rows.Scan(&lt.Code, &lt.Label); err != nil {
			return nil, fmt.Errorf("failed to scan leave type: %w", err)
		}
		types = append(types, lt)
	}
	return types, rows.Err()
}

func (q queries) DeleteLeaveType(ctx context.Context, code string) (bool, error) {
	res, err := q.q.ExecContext(ctx, "DELETE FROM leave_types WHERE code = ?", code)
	if err != nil {
		return false, fmt.Errorf("failed to delete leave type: %w", err)
	}
	n, err := rowsAffected(res)
	return n > 0, err
}

func (s *Store) SaveLeaveType(ctx context.Context, lt generic.LeaveType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries().SaveLeaveType(ctx, lt)
}

func (s *Store) GetLeaveType(ctx context.Context, code string) (generic.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries().GetLeaveType(ctx, code)
}

func (s *Store) ListLeaveTypes(ctx context.Context) ([]generic.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries().ListLeaveTypes(ctx)
}

func (s *Store) DeleteLeaveType(ctx context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries().DeleteLeaveType(ctx, code)
}

// =============================================================================
// USER DIRECTORY
// =============================================================================

// SaveUser inserts or replaces a directory entry.
func (q queries) SaveUser(ctx context.Context, u generic.User) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO users (id, role, team_id, organization_id) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			role = excluded.role,
			team_id = excluded.team_id,
			organization_id = excluded.organization_id
	`, u.ID, u.Role, u.TeamID, u.OrganizationID)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (q queries) FindUser(ctx context.Context, id generic.UserID) (generic.User, error) {
	var u generic.User
	err := q.q.QueryRowContext(ctx,
		"SELECT id, role, team_id, organization_id FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Role, &u.TeamID, &u.OrganizationID)
	if err != nil {
		return generic.User{}, notFound(err, "user", string(id))
	}
	return u, nil
}

func (s *Store) SaveUser(ctx context.Context, u generic.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries().SaveUser(ctx, u)
}

func (s *Store) FindUser(ctx context.Context, id generic.UserID) (generic.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries().FindUser(ctx, id)
}

// =============================================================================
// ACCOUNT STORE (generic.AccountStore interface)
// =============================================================================

const accountColumns = `id, user_id, leave_type_code, opening_balance, accrual_per_month,
	max_carryover, carryover_expire_on, created_at`

func (q queries) InsertAccount(ctx context.Context, acc generic.LeaveAccount) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO leave_accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		acc.ID,
		acc.UserID,
		acc.LeaveTypeCode,
		acc.OpeningBalance.String(),
		acc.AccrualPerMonth.String(),
		nullDecimal(acc.MaxCarryover),
		nullDate(acc.CarryoverExpireOn),
		formatTime(acc.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &generic.AlreadyExistsError{
				Resource: "leave account",
				Key:      fmt.Sprintf("%s/%s", acc.UserID, acc.LeaveTypeCode),
			}
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// UpdateAccount rewrites the policy fields. User, leave type and creation
// time are fixed.
func (q queries) UpdateAccount(ctx context.Context, acc generic.LeaveAccount) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE leave_accounts SET
			opening_balance = ?,
			accrual_per_month = ?,
			max_carryover = ?,
			carryover_expire_on = ?
		WHERE id = ?
	`,
		acc.OpeningBalance.String(),
		acc.AccrualPerMonth.String(),
		nullDecimal(acc.MaxCarryover),
		nullDate(acc.CarryoverExpireOn),
		acc.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return &generic.NotFoundError{Resource: "account", ID: string(acc.ID)}
	}
	return nil
}

func (q queries) DeleteAccount(ctx context.Context, id generic.AccountID) (bool, error) {
	res, err := q.q.ExecContext(ctx, "DELETE FROM leave_accounts WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete account: %w", err)
	}
	n, err := rowsAffected(res)
	return n > 0, err
}

func (q queries) GetAccount(ctx context.Context, id generic.AccountID) (generic.LeaveAccount, error) {
	row := q.q.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM leave_accounts WHERE id = ?", id)
	acc, err := scanAccount(row)
	if err != nil {
		return generic.LeaveAccount{}, notFound(err, "account", string(id))
	}
	return acc, nil
}

func (q queries) FindAccount(ctx context.Context, userID generic.UserID, leaveTypeCode string) (generic.LeaveAccount, error) {
	row := q.q.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM leave_accounts WHERE user_id = ? AND leave_type_code = ?",
		userID, leaveTypeCode)
	acc, err := scanAccount(row)
	if err != nil {
		return generic.LeaveAccount{}, notFound(err, "account", fmt.Sprintf("%s/%s", userID, leaveTypeCode))
	}
	return acc, nil
}

func (q queries) ListAccountsByUser(ctx context.Context, userID generic.UserID) ([]generic.LeaveAccount, error) {
	return q.queryAccounts(ctx,
		"SELECT "+accountColumns+" FROM leave_accounts WHERE user_id = ? ORDER BY leave_type_code", userID)
}

func (q queries) ListAccounts(ctx context.Context) ([]generic.LeaveAccount, error) {
	return q.queryAccounts(ctx,
		"SELECT "+accountColumns+" FROM leave_accounts ORDER BY user_id, leave_type_code")
}

func (q queries) CountAccountsByLeaveType(ctx context.Context, code string) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM leave_accounts WHERE leave_type_code = ?", code,
	).Scan(&n)
	return n, err
}

func (q queries) queryAccounts(ctx context.Context, query string, args ...any) ([]generic.LeaveAccount, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := []generic.LeaveAccount{}
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (generic.LeaveAccount, error) {
	var (
		acc          generic.LeaveAccount
		opening      string
		accrual      string
		maxCarryover sql.NullString
		expireOn     sql.NullString
		createdAt    string
	)
	if err := row.Scan(
		&acc.ID, &acc.UserID, &acc.LeaveTypeCode, &opening, &accrual,
		&maxCarryover, &expireOn, &createdAt,
	); err != nil {
		return acc, err
	}

	var err error
	if acc.OpeningBalance, err = parseDecimal(opening); err != nil {
		return acc, err
	}
	if acc.AccrualPerMonth, err = parseDecimal(accrual); err != nil {
		return acc, err
	}
	if maxCarryover.Valid {
		d, err := parseDecimal(maxCarryover.String)
		if err != nil {
			return acc, err
		}
		acc.MaxCarryover = &d
	}
	if expireOn.Valid {
		tp, err := parseDate(expireOn.String)
		if err != nil {
			return acc, err
		}
		acc.CarryoverExpireOn = &tp
	}
	if acc.CreatedAt, err = parseTime(createdAt); err != nil {
		return acc, err
	}
	return acc, nil
}

func (s *Store) InsertAccount(ctx context.Context, acc generic.LeaveAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries().InsertAccount(ctx, acc)
}

func (s *Store) UpdateAccount(ctx context.Context, acc generic.LeaveAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries().UpdateAccount(ctx, acc)
}

func (s *Store) DeleteAccount(ctx context.Context, id generic.AccountID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries().DeleteAccount(ctx, id)
}

func (s *Store) GetAccount(ctx context.Context, id generic.AccountID) (generic.LeaveAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries().GetAccount(ctx, id)
}

func (s *Store) FindAccount(ctx context.Context, userID generic.UserID, leaveTypeCode string) (generic.LeaveAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries().FindAccount(ctx, userID, leaveTypeCode)
}

func (s *Store) ListAccountsByUser(ctx context.Context, userID generic.UserID) ([]generic.LeaveAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries().ListAccountsByUser(ctx, userID)
}

func (s *Store) ListAccounts(ctx context.Context) ([]generic.LeaveAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries().ListAccounts(ctx)
}

func (s *Store) CountAccountsByLeaveType(ctx context.Context, code string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries().CountAccountsByLeaveType(ctx, code)
}
