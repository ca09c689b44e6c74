/*
handlers_test.go - HTTP round trips through the router

Tests for:
- Approving and rejecting an absence moves the account balance
- Error taxonomy to HTTP status mapping and its log level
- Ledger listing, KPI report and manual accrual run
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/api"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/kpi"
	"github.com/warp/leave-ledger/store/sqlite"
)

var now = time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC)

type testServer struct {
	*httptest.Server
	handler *api.Handler
}

func newTestServer(t *testing.T) *testServer {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := api.NewHandler(store, api.HandlerConfig{
		Location:        time.UTC,
		DefaultSchedule: kpi.WeekdaySchedule(9*60, 0),
		Log:             quiet,
	})
	h.SetClock(func() time.Time { return now })

	srv := httptest.NewServer(api.NewRouter(h, api.RouterOptions{RequestLogger: quiet}))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, handler: h}
}

// do sends body as JSON and decodes the response into out when non-nil.
func (s *testServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// seed creates user u-1 in team t-1, the VAC leave type and a VAC account
// with 5 days.
func (s *testServer) seed(t *testing.T) api.AccountDTO {
	require.Equal(t, http.StatusOK, s.do(t, "POST", "/api/users", api.UserDTO{ID: "u-1", TeamID: "t-1"}, nil))
	require.Equal(t, http.StatusOK, s.do(t, "POST", "/api/leave-types", api.LeaveTypeDTO{Code: "VAC", Label: "Vacation"}, nil))

	var acc api.AccountDTO
	status := s.do(t, "POST", "/api/accounts", map[string]any{
		"user_id":         "u-1",
		"leave_type":      "VAC",
		"opening_balance": "5",
	}, &acc)
	require.Equal(t, http.StatusCreated, status)
	return acc
}

func (s *testServer) balance(t *testing.T, accountID string) string {
	var b api.BalanceDTO
	require.Equal(t, http.StatusOK, s.do(t, "GET", "/api/accounts/"+accountID+"/balance", nil, &b))
	return b.Balance.String()
}

// =============================================================================
// ROUND TRIPS
// =============================================================================

func TestAPI_ApproveThenReject_MovesBalance(t *testing.T) {
	// GIVEN: a pending two day vacation against a 5 day account
	s := newTestServer(t)
	acc := s.seed(t)

	var created api.AbsenceDTO
	status := s.do(t, "POST", "/api/absences", map[string]any{
		"user_id": "u-1",
		"type":    "VACATION",
		"days": []map[string]string{
			{"date": "2025-03-03", "period": "FULL_DAY"},
			{"date": "2025-03-04", "period": "AM"},
		},
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "PENDING", created.Status)
	assert.Equal(t, "1.5", created.Units.String())
	assert.Equal(t, "5", s.balance(t, acc.ID))

	// WHEN: approved
	var approved api.AbsenceDTO
	status = s.do(t, "POST", "/api/absences/"+created.ID+"/status", api.SetStatusRequest{Status: "APPROVED"}, &approved)

	// THEN: one debit of 1.5 dated on the start date
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "APPROVED", approved.Status)
	assert.Equal(t, "3.5", s.balance(t, acc.ID))

	var ledger []api.EntryDTO
	require.Equal(t, http.StatusOK, s.do(t, "GET", "/api/accounts/"+acc.ID+"/ledger", nil, &ledger))
	require.Len(t, ledger, 1)
	assert.Equal(t, "DEBIT", ledger[0].Kind)
	assert.Equal(t, "2025-03-03", ledger[0].EntryDate)
	assert.Equal(t, "-1.5", ledger[0].SignedAmount.String())
	assert.Equal(t, created.ID, ledger[0].ReferenceAbsenceID)

	// WHEN: rejected afterwards, the debit goes away
	require.Equal(t, http.StatusOK, s.do(t, "POST", "/api/absences/"+created.ID+"/status", api.SetStatusRequest{Status: "REJECTED"}, nil))
	assert.Equal(t, "5", s.balance(t, acc.ID))
}

func TestAPI_BalanceBreakdownAndAsOf(t *testing.T) {
	s := newTestServer(t)
	acc := s.seed(t)

	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/accounts/"+acc.ID+"/ledger",
		map[string]any{"date": "2025-02-01", "kind": "ACCRUAL", "amount": "2"}, nil))
	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/accounts/"+acc.ID+"/ledger",
		map[string]any{"date": "2025-04-01", "kind": "ADJUSTMENT", "amount": 0.5, "note": "correction"}, nil))

	var b api.BalanceDTO
	require.Equal(t, http.StatusOK, s.do(t, "GET", "/api/accounts/"+acc.ID+"/balance", nil, &b))
	assert.Equal(t, "7.5", b.Balance.String())
	require.NotNil(t, b.Breakdown)
	assert.Equal(t, "2", b.Breakdown.Accrued.String())
	assert.Equal(t, "0.5", b.Breakdown.Adjusted.String())
	assert.Equal(t, "2025-03-01", b.AsOf)

	var past api.BalanceDTO
	require.Equal(t, http.StatusOK, s.do(t, "GET", "/api/accounts/"+acc.ID+"/balance?as_of=2025-03-15", nil, &past))
	assert.Equal(t, "7", past.Balance.String())
	assert.Nil(t, past.Breakdown)

	var ranged []api.EntryDTO
	require.Equal(t, http.StatusOK, s.do(t, "GET", "/api/accounts/"+acc.ID+"/ledger?from=2025-03-01&to=2025-12-31", nil, &ranged))
	require.Len(t, ranged, 1)
	assert.Equal(t, "ADJUSTMENT", ranged[0].Kind)
}

func TestAPI_KPI(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)
	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/clock-events",
		api.ClockEventRequest{UserID: "u-1", Kind: "IN", At: time.Date(2025, time.March, 3, 9, 15, 0, 0, time.UTC)}, nil))
	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/clock-events",
		api.ClockEventRequest{UserID: "u-1", Kind: "OUT", At: time.Date(2025, time.March, 3, 17, 15, 0, 0, time.UTC)}, nil))

	var report api.KPIReportDTO
	status := s.do(t, "GET", "/api/kpi?scope=team&id=t-1&from=2025-03-01&to=2025-03-31", nil, &report)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, report.Users)
	assert.Equal(t, int64(480), report.Time.TotalMinutes)
	assert.Equal(t, 1, report.Punctuality.LateIns)
	assert.Equal(t, "15", report.Punctuality.AverageDelayMinutes.String())
	require.Len(t, report.Balances, 1)
	assert.Equal(t, "5", report.Balances[0].Balance.String())

	var empty api.KPIReportDTO
	require.Equal(t, http.StatusOK, s.do(t, "GET", "/api/kpi?scope=team&id=nobody&from=2025-03-01&to=2025-03-31", nil, &empty))
	assert.Equal(t, 0, empty.Users)
	assert.NotNil(t, empty.Balances)
}

func TestAPI_RunAccruals(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)
	var acc api.AccountDTO
	require.Equal(t, http.StatusOK, s.do(t, "POST", "/api/leave-types", api.LeaveTypeDTO{Code: "RTT"}, nil))
	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/accounts",
		map[string]any{"user_id": "u-1", "leave_type": "RTT", "accrual_per_month": "1.25"}, &acc))

	var run api.AccrualRunDTO
	require.Equal(t, http.StatusOK, s.do(t, "POST", "/api/admin/accruals/run?as_of=2025-05-15", nil, &run))
	assert.Equal(t, 2, run.AccrualsPosted)
	assert.Equal(t, "2.5", s.balance(t, acc.ID))

	require.Equal(t, http.StatusOK, s.do(t, "POST", "/api/admin/accruals/run?as_of=2025-05-15", nil, &run))
	assert.Equal(t, 0, run.AccrualsPosted)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestAPI_ErrorStatuses(t *testing.T) {
	s := newTestServer(t)
	acc := s.seed(t)
	require.Equal(t, http.StatusOK, s.do(t, "POST", "/api/leave-types", api.LeaveTypeDTO{Code: "RTT"}, nil))

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown account", "GET", "/api/accounts/missing/balance", nil, http.StatusNotFound},
		{"unknown absence", "GET", "/api/absences/missing", nil, http.StatusNotFound},
		{"duplicate account", "POST", "/api/accounts", map[string]any{"user_id": "u-1", "leave_type": "VAC"}, http.StatusConflict},
		{"bad date", "GET", "/api/accounts/" + acc.ID + "/ledger?from=March&to=2025-03-31", nil, http.StatusBadRequest},
		{"half a range", "GET", "/api/accounts/" + acc.ID + "/ledger?from=2025-03-01", nil, http.StatusBadRequest},
		{"negative amount", "POST", "/api/accounts/" + acc.ID + "/ledger", map[string]any{"kind": "ADJUSTMENT", "amount": "-1"}, http.StatusBadRequest},
		{"unknown kpi scope", "GET", "/api/kpi?scope=galaxy&id=x&from=2025-03-01&to=2025-03-31", nil, http.StatusBadRequest},
		{"bad clock kind", "POST", "/api/clock-events", map[string]any{"user_id": "u-1", "kind": "LUNCH", "at": now}, http.StatusBadRequest},
		{"approved without account", "POST", "/api/absences", map[string]any{
			"user_id": "u-1", "type": "RTT", "status": "APPROVED",
			"days": []map[string]string{{"date": "2025-03-03"}},
		}, http.StatusUnprocessableEntity},
		{"delete missing entry", "DELETE", "/api/ledger/missing", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp api.ErrorResponse
			status := s.do(t, tt.method, tt.path, tt.body, &resp)
			assert.Equal(t, tt.want, status)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestAPI_ClientErrors_LoggedBelowErrorLevel(t *testing.T) {
	// GIVEN: a handler logging at debug into a buffer
	s := newTestServer(t)
	var buf bytes.Buffer
	s.handler.Log = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// WHEN: a lookup misses
	status := s.do(t, "GET", "/api/absences/missing", nil, nil)

	// THEN: the rejection is a debug record, not an error
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, buf.String(), `"msg":"request rejected"`)
	assert.Contains(t, buf.String(), `"level":"DEBUG"`)
	assert.NotContains(t, buf.String(), `"level":"ERROR"`)
}

func TestAPI_InvalidJSON(t *testing.T) {
	s := newTestServer(t)

	resp, err := http.Post(s.URL+"/api/accounts", "application/json", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// SCHEDULER
// =============================================================================

func TestAccrualScheduler_PostsAndStops(t *testing.T) {
	// GIVEN: an account accruing 1 day per month created on March 1
	s := newTestServer(t)
	s.seed(t)
	var acc api.AccountDTO
	require.Equal(t, http.StatusOK, s.do(t, "POST", "/api/leave-types", api.LeaveTypeDTO{Code: "RTT"}, nil))
	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/accounts",
		map[string]any{"user_id": "u-1", "leave_type": "RTT", "accrual_per_month": "1"}, &acc))

	sched := api.NewAccrualScheduler(s.handler.Accruals, s.handler.Log)
	sched.Clock = func() time.Time { return time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC) }
	sched.Interval = 10 * time.Millisecond

	// WHEN
	sched.Start()
	require.Eventually(t, func() bool { return sched.Runs() >= 2 }, 2*time.Second, 10*time.Millisecond)
	sched.Stop()
	sched.Stop()

	// THEN: April, May and June posted exactly once
	entries, err := s.handler.Ledger.ListByAccount(context.Background(), generic.AccountID(acc.ID), nil)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Equal(t, "3", s.balance(t, acc.ID))
}

func TestAccrualScheduler_Disabled(t *testing.T) {
	s := newTestServer(t)
	sched := api.NewAccrualScheduler(s.handler.Accruals, s.handler.Log)
	sched.Enabled = false

	sched.Start()
	sched.Stop()

	assert.Equal(t, 0, sched.Runs())
}
