/*
handlers.go - HTTP API handlers for the leave ledger

PURPOSE:
  Exposes accounts, the ledger, balances, absences, attendance and KPIs
  via REST API. Handles HTTP request/response, JSON serialization, and
  delegates to the domain services.

ENDPOINTS:
  Leave types:
    GET    /api/leave-types                 List leave types
    POST   /api/leave-types                 Create or relabel a leave type
    GET    /api/leave-types/{code}          Get leave type
    DELETE /api/leave-types/{code}          Delete an unused leave type

  Users:
    POST   /api/users                       Create or update a directory user
    GET    /api/users/{id}                  Get user
    GET    /api/users/{id}/accounts         Accounts of the user
    GET    /api/users/{id}/schedule         Work schedule slots
    PUT    /api/users/{id}/schedule         Replace work schedule

  Accounts and ledger:
    POST   /api/accounts                    Open an account
    GET    /api/accounts/{id}               Get account
    PATCH  /api/accounts/{id}               Update balance policy
    DELETE /api/accounts/{id}               Delete account and its ledger
    GET    /api/accounts/{id}/balance       Current balance (?as_of=YYYY-MM-DD)
    GET    /api/accounts/{id}/ledger        Ledger rows (?from=&to=)
    POST   /api/accounts/{id}/ledger        Add a ledger row
    PATCH  /api/ledger/{id}                 Correct a ledger row
    DELETE /api/ledger/{id}                 Delete a ledger row

  Absences:
    GET    /api/absences                    ?user_id=&from=&to=
    POST   /api/absences                    Create (PENDING by default)
    GET    /api/absences/{id}               Get absence
    PATCH  /api/absences/{id}               Edit days, type or reason
    DELETE /api/absences/{id}               Delete absence and its debit
    POST   /api/absences/{id}/status        Approve, reject

  Attendance and KPIs:
    POST   /api/clock-events                Record an IN/OUT event
    GET    /api/kpi                         ?scope=&id=&from=&to=

  Admin:
    POST   /api/admin/accruals/run          Post due accruals (?as_of=)

ERROR HANDLING:
  Errors are returned as JSON {"error", "details"} with status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (duplicate account, absence already referenced)
  - 422: Setup precondition failed (no account for an approved absence)
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/leave-ledger/absence"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/kpi"
	"github.com/warp/leave-ledger/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Accounts   *generic.AccountService
	Ledger     *generic.LedgerService
	LeaveTypes *generic.LeaveTypeService
	Balances   *generic.BalanceEngine
	Absences   *absence.Service
	KPI        *kpi.Aggregator
	Accruals   *generic.AccrualRunner

	Clock generic.Clock
	Log   *slog.Logger
}

// HandlerConfig carries the settings the services need besides the store.
type HandlerConfig struct {
	TypeMapping     absence.TypeMapping
	Location        *time.Location
	DefaultSchedule []kpi.Slot
	Log             *slog.Logger
}

// NewHandler wires every service onto the store.
func NewHandler(store *sqlite.Store, cfg HandlerConfig) *Handler {
	if cfg.TypeMapping == nil {
		cfg.TypeMapping = absence.DefaultTypeMapping()
	}
	balances := generic.NewBalanceEngine(store)
	bridge := absence.NewBridge(store, cfg.TypeMapping, cfg.Log)
	return &Handler{
		Store:      store,
		Accounts:   generic.NewAccountService(store, cfg.Log),
		Ledger:     generic.NewLedgerService(store, cfg.Log),
		LeaveTypes: generic.NewLeaveTypeService(store),
		Balances:   balances,
		Absences:   absence.NewService(store, bridge, cfg.Log),
		KPI:        kpi.NewAggregator(store, cfg.Location, cfg.DefaultSchedule, cfg.Log),
		Accruals:   generic.NewAccrualRunner(store, cfg.Log),
		Log:        cfg.Log,
	}
}

// SetClock makes every service read "now" from c.
func (h *Handler) SetClock(c generic.Clock) {
	h.Clock = c
	h.Accounts.Clock = c
	h.Ledger.Clock = c
	h.Absences.Clock = c
	h.Absences.Bridge.Clock = c
	h.Accruals.Clock = c
}

func (h *Handler) logger() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}

// =============================================================================
// LEAVE TYPE HANDLERS
// =============================================================================

func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.LeaveTypes.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]LeaveTypeDTO, len(types))
	for i, lt := range types {
		dtos[i] = LeaveTypeDTO{Code: lt.Code, Label: lt.Label}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SaveLeaveType(w http.ResponseWriter, r *http.Request) {
	var req LeaveTypeDTO
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	lt, err := h.LeaveTypes.Save(r.Context(), generic.LeaveType{Code: req.Code, Label: req.Label})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LeaveTypeDTO{Code: lt.Code, Label: lt.Label})
}

func (h *Handler) GetLeaveType(w http.ResponseWriter, r *http.Request) {
	lt, err := h.LeaveTypes.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LeaveTypeDTO{Code: lt.Code, Label: lt.Label})
}

func (h *Handler) DeleteLeaveType(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	deleted, err := h.LeaveTypes.Delete(r.Context(), code)
	h.deleted(w, r, deleted, err, "leave type", code)
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// SaveUser creates or replaces a directory entry.
// POST /api/users
func (h *Handler) SaveUser(w http.ResponseWriter, r *http.Request) {
	var req UserDTO
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.ID == "" {
		h.fail(w, r, &generic.FieldError{Field: "id", Reason: "is required"})
		return
	}
	u := generic.User{
		ID:             generic.UserID(req.ID),
		Role:           req.Role,
		TeamID:         req.TeamID,
		OrganizationID: req.OrganizationID,
	}
	if err := h.Store.SaveUser(r.Context(), u); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Store.FindUser(r.Context(), generic.UserID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

func (h *Handler) ListUserAccounts(w http.ResponseWriter, r *http.Request) {
	userID := generic.UserID(chi.URLParam(r, "id"))
	if _, err := h.Store.FindUser(r.Context(), userID); err != nil {
		h.fail(w, r, err)
		return
	}
	accounts, err := h.Accounts.ListByUser(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]AccountDTO, len(accounts))
	for i, acc := range accounts {
		dtos[i] = toAccountDTO(acc)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	slots, err := h.Store.ScheduleFor(r.Context(), generic.UserID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotDTOs(slots))
}

// PutSchedule replaces the user's slots. An empty list falls back to the
// default schedule.
// PUT /api/users/{id}/schedule
func (h *Handler) PutSchedule(w http.ResponseWriter, r *http.Request) {
	userID := generic.UserID(chi.URLParam(r, "id"))
	var req []SlotDTO
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	slots, err := parseSlots(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.Store.FindUser(r.Context(), userID); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Store.SaveSchedule(r.Context(), userID, slots); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotDTOs(slots))
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	expireOn, err := parseDatePtr("carryover_expire_on", req.CarryoverExpireOn)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	acc, err := h.Accounts.Create(r.Context(), generic.CreateAccount{
		UserID:            generic.UserID(req.UserID),
		LeaveTypeCode:     req.LeaveType,
		OpeningBalance:    req.OpeningBalance,
		AccrualPerMonth:   req.AccrualPerMonth,
		MaxCarryover:      req.MaxCarryover,
		CarryoverExpireOn: expireOn,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(acc))
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := h.Accounts.Get(r.Context(), generic.AccountID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(acc))
}

func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req UpdateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	expireOn, err := parseDatePtr("carryover_expire_on", req.CarryoverExpireOn)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	acc, err := h.Accounts.Update(r.Context(), generic.AccountID(chi.URLParam(r, "id")), generic.AccountUpdate{
		OpeningBalance:    req.OpeningBalance,
		AccrualPerMonth:   req.AccrualPerMonth,
		MaxCarryover:      req.MaxCarryover,
		ClearMaxCarryover: req.ClearMaxCarryover,
		CarryoverExpireOn: expireOn,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(acc))
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, err := h.Accounts.Delete(r.Context(), generic.AccountID(id))
	h.deleted(w, r, deleted, err, "leave account", id)
}

// GetBalance returns the current balance with its per-kind breakdown, or the
// balance as of a date when ?as_of is given.
// GET /api/accounts/{id}/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := generic.AccountID(chi.URLParam(r, "id"))

	if s := r.URL.Query().Get("as_of"); s != "" {
		asOf, err := generic.ParseDate("as_of", s)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		balance, err := h.Balances.BalanceAsOf(ctx, id, asOf)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, BalanceDTO{AccountID: string(id), AsOf: asOf.String(), Balance: balance})
		return
	}

	b, err := h.Balances.Breakdown(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(b, h.Clock.Today()))
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// ListLedger returns rows ordered by date then insertion.
// GET /api/accounts/{id}/ledger?from=&to=
func (h *Handler) ListLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := generic.AccountID(chi.URLParam(r, "id"))

	period, err := periodQuery(r, false)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.Accounts.Get(ctx, id); err != nil {
		h.fail(w, r, err)
		return
	}
	entries, err := h.Ledger.ListByAccount(ctx, id, period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

func (h *Handler) AddEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	date, err := parseDatePtr("date", req.Date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entry, err := h.Ledger.AddEntry(r.Context(), generic.NewEntry{
		AccountID:          generic.AccountID(chi.URLParam(r, "id")),
		Date:               date,
		Kind:               generic.EntryKind(req.Kind),
		Amount:             req.Amount,
		ReferenceAbsenceID: req.ReferenceAbsenceID,
		Note:               req.Note,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	var req UpdateEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	date, err := parseDatePtr("date", req.Date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entry, err := h.Ledger.UpdateEntry(r.Context(), generic.EntryID(chi.URLParam(r, "id")), generic.EntryUpdate{
		Date:   date,
		Amount: req.Amount,
		Note:   req.Note,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, err := h.Ledger.DeleteEntry(r.Context(), generic.EntryID(id))
	h.deleted(w, r, deleted, err, "ledger entry", id)
}

// =============================================================================
// ABSENCE HANDLERS
// =============================================================================

// ListAbsences returns the user's absences touching the range.
// GET /api/absences?user_id=&from=&to=
func (h *Handler) ListAbsences(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.fail(w, r, &generic.FieldError{Field: "user_id", Reason: "is required"})
		return
	}
	period, err := periodQuery(r, true)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	absences, err := h.Store.ListAbsences(r.Context(), []generic.UserID{generic.UserID(userID)}, *period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]AbsenceDTO, len(absences))
	for i, a := range absences {
		dtos[i] = toAbsenceDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateAbsence(w http.ResponseWriter, r *http.Request) {
	var req CreateAbsenceRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	start, err := parseDatePtr("start_date", req.StartDate)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	days, err := parseDays(req.Days)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.Absences.Create(r.Context(), absence.NewAbsence{
		UserID:    generic.UserID(req.UserID),
		Type:      absence.Type(req.Type),
		Status:    absence.Status(req.Status),
		StartDate: start,
		Days:      days,
		Reason:    req.Reason,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAbsenceDTO(a))
}

func (h *Handler) GetAbsence(w http.ResponseWriter, r *http.Request) {
	a, err := h.Absences.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAbsenceDTO(a))
}

func (h *Handler) UpdateAbsence(w http.ResponseWriter, r *http.Request) {
	var req UpdateAbsenceRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	start, err := parseDatePtr("start_date", req.StartDate)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	days, err := parseDays(req.Days)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	upd := absence.AbsenceUpdate{StartDate: start, Days: days, Reason: req.Reason}
	if req.Type != nil {
		t := absence.Type(*req.Type)
		upd.Type = &t
	}
	a, err := h.Absences.Update(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAbsenceDTO(a))
}

func (h *Handler) DeleteAbsence(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, err := h.Absences.Delete(r.Context(), id)
	h.deleted(w, r, deleted, err, "absence", id)
}

// SetAbsenceStatus approves or rejects an absence. The ledger debit follows
// in the same transaction.
// POST /api/absences/{id}/status
func (h *Handler) SetAbsenceStatus(w http.ResponseWriter, r *http.Request) {
	var req SetStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.Absences.SetStatus(r.Context(), chi.URLParam(r, "id"), absence.Status(req.Status))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAbsenceDTO(a))
}

// =============================================================================
// ATTENDANCE AND KPI HANDLERS
// =============================================================================

func (h *Handler) RecordClockEvent(w http.ResponseWriter, r *http.Request) {
	var req ClockEventRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ev := kpi.ClockEvent{
		ID:     uuid.NewString(),
		UserID: generic.UserID(req.UserID),
		Kind:   kpi.ClockKind(req.Kind),
		At:     req.At,
	}
	if !ev.Kind.Valid() {
		h.fail(w, r, &generic.FieldError{Field: "kind", Reason: "must be IN or OUT"})
		return
	}
	if ev.At.IsZero() {
		h.fail(w, r, &generic.FieldError{Field: "at", Reason: "is required"})
		return
	}
	if _, err := h.Store.FindUser(r.Context(), ev.UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Store.SaveClockEvent(r.Context(), ev); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ClockEventDTO{
		ID:     ev.ID,
		UserID: string(ev.UserID),
		Kind:   string(ev.Kind),
		At:     ev.At.UTC().Format(time.RFC3339),
	})
}

// GetKPI computes the report for a user, team or organization.
// GET /api/kpi?scope=team&id=t-1&from=2025-03-01&to=2025-03-31
func (h *Handler) GetKPI(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope := kpi.Scope{Kind: kpi.ScopeKind(q.Get("scope")), ID: q.Get("id")}
	period, err := periodQuery(r, true)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	report, err := h.KPI.Compute(r.Context(), scope, *period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toKPIReportDTO(report, h.Clock.Today()))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RunAccruals posts every accrual and carryover expiry due up to ?as_of
// (default today). Re-running is a no-op.
// POST /api/admin/accruals/run
func (h *Handler) RunAccruals(w http.ResponseWriter, r *http.Request) {
	asOf := h.Clock.Today()
	if s := r.URL.Query().Get("as_of"); s != "" {
		var err error
		if asOf, err = generic.ParseDate("as_of", s); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	summary, err := h.Accruals.Run(r.Context(), asOf)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AccrualRunDTO{
		AsOf:            asOf.String(),
		AccountsScanned: summary.AccountsScanned,
		AccrualsPosted:  summary.AccrualsPosted,
		ExpiriesPosted:  summary.ExpiriesPosted,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, generic.ErrNotFound):
		return http.StatusNotFound, generic.ErrNotFound.Error()
	case errors.Is(err, generic.ErrAlreadyExists):
		return http.StatusConflict, generic.ErrAlreadyExists.Error()
	case errors.Is(err, generic.ErrInvalidArgument):
		return http.StatusBadRequest, generic.ErrInvalidArgument.Error()
	case errors.Is(err, generic.ErrPrecondition):
		return http.StatusUnprocessableEntity, generic.ErrPrecondition.Error()
	default:
		return http.StatusInternalServerError, generic.ErrInternal.Error()
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)
	switch {
	case generic.IsClientError(err):
		h.logger().DebugContext(r.Context(), "request rejected",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err)
	case status == http.StatusInternalServerError:
		h.logger().ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
	}
	writeError(w, status, message, err)
}

// deleted answers a delete: 204 when something was removed, 404 otherwise.
func (h *Handler) deleted(w http.ResponseWriter, r *http.Request, deleted bool, err error, resource, id string) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !deleted {
		h.fail(w, r, &generic.NotFoundError{Resource: resource, ID: id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &generic.FieldError{Field: "body", Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return nil
}

func parseDatePtr(field string, s *string) (*generic.TimePoint, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	tp, err := generic.ParseDate(field, *s)
	if err != nil {
		return nil, err
	}
	return &tp, nil
}

// periodQuery reads ?from=&to=. When not required, both may be absent and
// the result is nil.
func periodQuery(r *http.Request, required bool) (*generic.Period, error) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" && to == "" && !required {
		return nil, nil
	}
	if from == "" {
		return nil, &generic.FieldError{Field: "from", Reason: "is required"}
	}
	if to == "" {
		return nil, &generic.FieldError{Field: "to", Reason: "is required"}
	}
	start, err := generic.ParseDate("from", from)
	if err != nil {
		return nil, err
	}
	end, err := generic.ParseDate("to", to)
	if err != nil {
		return nil, err
	}
	p, err := generic.NewPeriod(start, end)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
