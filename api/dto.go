/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

WIRE FORMATS:
  - Amounts and balances are decimal strings ("10.5"). Requests accept a
    string or a JSON number.
  - Dates are YYYY-MM-DD. Instants (clock events, created_at) are RFC 3339.
  - Schedule start times are HH:MM.

VALIDATION:
  Validation is done in handlers and services, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/absence"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/kpi"
)

const dateLayout = "2006-01-02"

// =============================================================================
// LEAVE TYPES AND USERS
// =============================================================================

type LeaveTypeDTO struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

type UserDTO struct {
	ID             string `json:"id"`
	Role           string `json:"role,omitempty"`
	TeamID         string `json:"team_id,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
}

func toUserDTO(u generic.User) UserDTO {
	return UserDTO{
		ID:             string(u.ID),
		Role:           u.Role,
		TeamID:         u.TeamID,
		OrganizationID: u.OrganizationID,
	}
}

// =============================================================================
// ACCOUNTS AND BALANCES
// =============================================================================

type AccountDTO struct {
	ID                string           `json:"id"`
	UserID            string           `json:"user_id"`
	LeaveType         string           `json:"leave_type"`
	OpeningBalance    decimal.Decimal  `json:"opening_balance"`
	AccrualPerMonth   decimal.Decimal  `json:"accrual_per_month"`
	MaxCarryover      *decimal.Decimal `json:"max_carryover,omitempty"`
	CarryoverExpireOn *string          `json:"carryover_expire_on,omitempty"`
	CreatedAt         string           `json:"created_at"`
}

type CreateAccountRequest struct {
	UserID            string           `json:"user_id"`
	LeaveType         string           `json:"leave_type"`
	OpeningBalance    *decimal.Decimal `json:"opening_balance,omitempty"`
	AccrualPerMonth   *decimal.Decimal `json:"accrual_per_month,omitempty"`
	MaxCarryover      *decimal.Decimal `json:"max_carryover,omitempty"`
	CarryoverExpireOn *string          `json:"carryover_expire_on,omitempty"`
}

// UpdateAccountRequest leaves absent numbers untouched. carryover_expire_on
// is always written: omitting it clears the expiry. The carryover cap is
// removed with clear_max_carryover.
type UpdateAccountRequest struct {
	OpeningBalance    *decimal.Decimal `json:"opening_balance,omitempty"`
	AccrualPerMonth   *decimal.Decimal `json:"accrual_per_month,omitempty"`
	MaxCarryover      *decimal.Decimal `json:"max_carryover,omitempty"`
	ClearMaxCarryover bool             `json:"clear_max_carryover,omitempty"`
	CarryoverExpireOn *string          `json:"carryover_expire_on,omitempty"`
}

func toAccountDTO(acc generic.LeaveAccount) AccountDTO {
	dto := AccountDTO{
		ID:              string(acc.ID),
		UserID:          string(acc.UserID),
		LeaveType:       acc.LeaveTypeCode,
		OpeningBalance:  acc.OpeningBalance,
		AccrualPerMonth: acc.AccrualPerMonth,
		MaxCarryover:    acc.MaxCarryover,
		CreatedAt:       acc.CreatedAt.Format(time.RFC3339),
	}
	if acc.CarryoverExpireOn != nil {
		s := acc.CarryoverExpireOn.String()
		dto.CarryoverExpireOn = &s
	}
	return dto
}

// BalanceDTO is the balance of one account. Breakdown is omitted for
// point-in-time balances.
type BalanceDTO struct {
	AccountID string          `json:"account_id"`
	UserID    string          `json:"user_id,omitempty"`
	LeaveType string          `json:"leave_type,omitempty"`
	AsOf      string          `json:"as_of"`
	Balance   decimal.Decimal `json:"balance"`
	Breakdown *BreakdownDTO   `json:"breakdown,omitempty"`
}

type BreakdownDTO struct {
	OpeningBalance   decimal.Decimal `json:"opening_balance"`
	Accrued          decimal.Decimal `json:"accrued"`
	Debited          decimal.Decimal `json:"debited"`
	Adjusted         decimal.Decimal `json:"adjusted"`
	CarryoverExpired decimal.Decimal `json:"carryover_expired"`
}

func toBalanceDTO(b generic.BalanceBreakdown, asOf generic.TimePoint) BalanceDTO {
	return BalanceDTO{
		AccountID: string(b.AccountID),
		UserID:    string(b.UserID),
		LeaveType: b.LeaveTypeCode,
		AsOf:      asOf.String(),
		Balance:   b.Balance,
		Breakdown: &BreakdownDTO{
			OpeningBalance:   b.OpeningBalance,
			Accrued:          b.Accrued,
			Debited:          b.Debited,
			Adjusted:         b.Adjusted,
			CarryoverExpired: b.CarryoverExpire,
		},
	}
}

// =============================================================================
// LEDGER
// =============================================================================

type EntryDTO struct {
	ID                 string          `json:"id"`
	AccountID          string          `json:"account_id"`
	EntryDate          string          `json:"entry_date"`
	Kind               string          `json:"kind"`
	Amount             decimal.Decimal `json:"amount"`
	SignedAmount       decimal.Decimal `json:"signed_amount"`
	ReferenceAbsenceID string          `json:"reference_absence_id,omitempty"`
	Note               string          `json:"note,omitempty"`
	CreatedAt          string          `json:"created_at"`
}

type CreateEntryRequest struct {
	Date               *string         `json:"date,omitempty"`
	Kind               string          `json:"kind"`
	Amount             decimal.Decimal `json:"amount"`
	ReferenceAbsenceID string          `json:"reference_absence_id,omitempty"`
	Note               string          `json:"note,omitempty"`
}

type UpdateEntryRequest struct {
	Date   *string          `json:"date,omitempty"`
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Note   *string          `json:"note,omitempty"`
}

func toEntryDTOs(entries []generic.Entry) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	return dtos
}

func toEntryDTO(e generic.Entry) EntryDTO {
	return EntryDTO{
		ID:                 string(e.ID),
		AccountID:          string(e.AccountID),
		EntryDate:          e.EntryDate.String(),
		Kind:               string(e.Kind),
		Amount:             e.Amount,
		SignedAmount:       e.Signed(),
		ReferenceAbsenceID: e.ReferenceAbsenceID,
		Note:               e.Note,
		CreatedAt:          e.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// ABSENCES
// =============================================================================

type DayDTO struct {
	Date   string `json:"date"`
	Period string `json:"period,omitempty"`
}

type AbsenceDTO struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Type      string          `json:"type"`
	Status    string          `json:"status"`
	StartDate string          `json:"start_date"`
	Days      []DayDTO        `json:"days"`
	Units     decimal.Decimal `json:"units"`
	Reason    string          `json:"reason,omitempty"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

type CreateAbsenceRequest struct {
	UserID    string   `json:"user_id"`
	Type      string   `json:"type"`
	Status    string   `json:"status,omitempty"`
	StartDate *string  `json:"start_date,omitempty"`
	Days      []DayDTO `json:"days"`
	Reason    string   `json:"reason,omitempty"`
}

// UpdateAbsenceRequest edits an absence. A missing days field leaves the
// days untouched; an empty list removes them.
type UpdateAbsenceRequest struct {
	Type      *string  `json:"type,omitempty"`
	StartDate *string  `json:"start_date,omitempty"`
	Days      []DayDTO `json:"days"`
	Reason    *string  `json:"reason,omitempty"`
}

type SetStatusRequest struct {
	Status string `json:"status"`
}

func toAbsenceDTO(a absence.Absence) AbsenceDTO {
	days := make([]DayDTO, len(a.Days))
	for i, d := range a.Days {
		days[i] = DayDTO{Date: d.Date.String(), Period: string(d.Period)}
	}
	return AbsenceDTO{
		ID:        a.ID,
		UserID:    string(a.UserID),
		Type:      string(a.Type),
		Status:    string(a.Status),
		StartDate: a.StartDate.String(),
		Days:      days,
		Units:     a.Units(),
		Reason:    a.Reason,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
		UpdatedAt: a.UpdatedAt.Format(time.RFC3339),
	}
}

func parseDays(in []DayDTO) ([]absence.Day, error) {
	if in == nil {
		return nil, nil
	}
	days := make([]absence.Day, len(in))
	for i, d := range in {
		date, err := generic.ParseDate(fmt.Sprintf("days[%d].date", i), d.Date)
		if err != nil {
			return nil, err
		}
		days[i] = absence.Day{Date: date, Period: absence.Period(d.Period)}
	}
	return days, nil
}

// =============================================================================
// ATTENDANCE
// =============================================================================

type ClockEventRequest struct {
	UserID string    `json:"user_id"`
	Kind   string    `json:"kind"`
	At     time.Time `json:"at"`
}

type ClockEventDTO struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
	At     string `json:"at"`
}

type SlotDTO struct {
	Weekday      int    `json:"weekday"` // 0 = Sunday
	Period       string `json:"period"`
	Start        string `json:"start"`
	GraceMinutes int    `json:"grace_minutes"`
}

func toSlotDTOs(slots []kpi.Slot) []SlotDTO {
	dtos := make([]SlotDTO, len(slots))
	for i, s := range slots {
		dtos[i] = SlotDTO{
			Weekday:      int(s.Weekday),
			Period:       string(s.Period),
			Start:        fmt.Sprintf("%02d:%02d", s.StartMinute/60, s.StartMinute%60),
			GraceMinutes: s.GraceMinutes,
		}
	}
	return dtos
}

func parseSlots(in []SlotDTO) ([]kpi.Slot, error) {
	slots := make([]kpi.Slot, len(in))
	for i, d := range in {
		start, err := time.Parse("15:04", d.Start)
		if err != nil {
			return nil, &generic.FieldError{Field: fmt.Sprintf("slots[%d].start", i), Reason: "must be HH:MM"}
		}
		slots[i] = kpi.Slot{
			Weekday:      time.Weekday(d.Weekday),
			Period:       absence.Period(d.Period),
			StartMinute:  start.Hour()*60 + start.Minute(),
			GraceMinutes: d.GraceMinutes,
		}
		if err := slots[i].Validate(); err != nil {
			return nil, err
		}
	}
	return slots, nil
}

// =============================================================================
// KPI
// =============================================================================

type KPIReportDTO struct {
	Scope       string         `json:"scope"`
	ID          string         `json:"id"`
	From        string         `json:"from"`
	To          string         `json:"to"`
	Users       int            `json:"users"`
	Attendance  AttendanceDTO  `json:"attendance"`
	Time        TimeDTO        `json:"time"`
	Punctuality PunctualityDTO `json:"punctuality"`
	Balances    []BalanceDTO   `json:"leave_balances"`
}

type AttendanceDTO struct {
	Requests      int             `json:"requests"`
	Approved      int             `json:"approved"`
	ApprovedUnits decimal.Decimal `json:"approved_units"`
}

type TimeDTO struct {
	TotalMinutes   int64           `json:"total_minutes"`
	Sessions       int             `json:"sessions"`
	AverageMinutes decimal.Decimal `json:"average_session_minutes"`
}

type PunctualityDTO struct {
	ScheduledIns        int             `json:"scheduled_ins"`
	LateIns             int             `json:"late_ins"`
	LateRate            decimal.Decimal `json:"late_rate"`
	AverageDelayMinutes decimal.Decimal `json:"average_delay_minutes"`
}

func toKPIReportDTO(r kpi.Report, asOf generic.TimePoint) KPIReportDTO {
	balances := make([]BalanceDTO, len(r.Balances))
	for i, b := range r.Balances {
		balances[i] = toBalanceDTO(b, asOf)
	}
	return KPIReportDTO{
		Scope: string(r.Scope.Kind),
		ID:    r.Scope.ID,
		From:  r.Period.Start.String(),
		To:    r.Period.End.String(),
		Users: r.Users,
		Attendance: AttendanceDTO{
			Requests:      r.Attendance.Requests,
			Approved:      r.Attendance.Approved,
			ApprovedUnits: r.Attendance.ApprovedUnits,
		},
		Time: TimeDTO{
			TotalMinutes:   r.Time.TotalMinutes,
			Sessions:       r.Time.Sessions,
			AverageMinutes: r.Time.AverageMinutes,
		},
		Punctuality: PunctualityDTO{
			ScheduledIns:        r.Punctuality.ScheduledIns,
			LateIns:             r.Punctuality.LateIns,
			LateRate:            r.Punctuality.LateRate,
			AverageDelayMinutes: r.Punctuality.AverageDelayMinutes,
		},
		Balances: balances,
	}
}

// =============================================================================
// ADMIN AND ERRORS
// =============================================================================

type AccrualRunDTO struct {
	AsOf            string `json:"as_of"`
	AccountsScanned int    `json:"accounts_scanned"`
	AccrualsPosted  int    `json:"accruals_posted"`
	ExpiriesPosted  int    `json:"expiries_posted"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
