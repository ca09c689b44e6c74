/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. CORS:           Cross-origin requests for frontends
  2. RequestLogger:  Structured request logs (httplog, ECS schema)
  3. RequestID:      Unique ID per request for tracing
  4. CleanPath:      Normalizes double slashes
  5. Recoverer:      Panic recovery (500 instead of crash)
  6. Heartbeat:      GET /health for probes

ROUTE GROUPS:
  /api/leave-types/*   Leave type registry
  /api/users/*         Directory users, their accounts and schedules
  /api/accounts/*      Accounts, balances and ledger rows
  /api/ledger/*        Ledger row corrections
  /api/absences/*      Absence lifecycle (drives ledger debits)
  /api/clock-events    Attendance input
  /api/kpi             KPI report
  /api/admin/*         Admin operations

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
)

var defaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// RouterOptions configures logging and CORS.
type RouterOptions struct {
	// RequestLogger receives one record per request. Nil builds an ECS JSON
	// logger on stdout.
	RequestLogger *slog.Logger

	AllowedOrigins []string
	Version        string
	Env            string
}

// NewRequestLogger builds the JSON request logger with ECS field names.
// Concise drops the request and response header groups.
func NewRequestLogger(version, env string, level slog.Level, concise bool) *slog.Logger {
	logFormat := httplog.SchemaECS.Concise(concise)
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "leave-ledger"),
		slog.String("version", version),
		slog.String("env", env),
	)
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	logger := opts.RequestLogger
	if logger == nil {
		logger = NewRequestLogger(opts.Version, opts.Env, slog.LevelInfo, false)
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = defaultOrigins
	}

	// Middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelDebug,
		Schema: httplog.SchemaECS,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.CleanPath)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))

	r.Route("/api", func(r chi.Router) {
		r.Route("/leave-types", func(r chi.Router) {
			r.Get("/", h.ListLeaveTypes)
			r.Post("/", h.SaveLeaveType)
			r.Get("/{code}", h.GetLeaveType)
			r.Delete("/{code}", h.DeleteLeaveType)
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.SaveUser)
			r.Get("/{id}", h.GetUser)
			r.Get("/{id}/accounts", h.ListUserAccounts)
			r.Get("/{id}/schedule", h.GetSchedule)
			r.Put("/{id}/schedule", h.PutSchedule)
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", h.CreateAccount)
			r.Get("/{id}", h.GetAccount)
			r.Patch("/{id}", h.UpdateAccount)
			r.Delete("/{id}", h.DeleteAccount)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/ledger", h.ListLedger)
			r.Post("/{id}/ledger", h.AddEntry)
		})

		r.Route("/ledger", func(r chi.Router) {
			r.Patch("/{id}", h.UpdateEntry)
			r.Delete("/{id}", h.DeleteEntry)
		})

		r.Route("/absences", func(r chi.Router) {
			r.Get("/", h.ListAbsences)
			r.Post("/", h.CreateAbsence)
			r.Get("/{id}", h.GetAbsence)
			r.Patch("/{id}", h.UpdateAbsence)
			r.Delete("/{id}", h.DeleteAbsence)
			r.Post("/{id}/status", h.SetAbsenceStatus)
		})

		r.Post("/clock-events", h.RecordClockEvent)
		r.Get("/kpi", h.GetKPI)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/accruals/run", h.RunAccruals)
		})
	})

	return r
}
