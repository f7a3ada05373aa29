package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/finchapp/finch/internal/infra/observability"
	"github.com/finchapp/finch/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Pinger reports storage health for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles the use-case layer for router construction.
type Services struct {
	Recurring *service.RecurringService
	Ledger    *service.LedgerService
	Snapshots *service.SnapshotService
	Auth      *service.AuthService
	Backup    *service.BackupService
}

// NewRouter creates the HTTP router with all routes and middleware.
// Everything under /v1 sits behind the lock middleware except the auth
// routes themselves.
func NewRouter(svcs Services, metrics *observability.Metrics, db Pinger, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.TraceExtractor)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler(db, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Lock screen: status and unlock stay reachable while locked.
		r.Route("/auth", func(r chi.Router) {
			r.Get("/status", lockStatusHandler(svcs.Auth, logger))
			r.Post("/unlock", unlockHandler(svcs.Auth, logger))
			r.Post("/password", setPasswordHandler(svcs.Auth, logger))
			r.Delete("/password", clearPasswordHandler(svcs.Auth, logger))
		})

		r.Group(func(r chi.Router) {
			r.Use(LockMiddleware(svcs.Auth, logger))

			// Accounts
			r.Get("/accounts", listAccountsHandler(svcs.Ledger, logger))
			r.Post("/accounts", createAccountHandler(svcs.Ledger, logger))
			r.Get("/accounts/{accountId}", getAccountHandler(svcs.Ledger, logger))
			r.Put("/accounts/{accountId}", updateAccountHandler(svcs.Ledger, logger))
			r.Delete("/accounts/{accountId}", deleteAccountHandler(svcs.Ledger, logger))
			r.Post("/accounts/{accountId}/adjust", adjustBalanceHandler(svcs.Ledger, logger))

			// Transfers and history
			r.Post("/transfers", transferHandler(svcs.Ledger, logger))
			r.Get("/transactions", listTransactionsHandler(svcs.Ledger, logger))

			// Investments
			r.Get("/investments", listInvestmentsHandler(svcs.Ledger, logger))
			r.Post("/investments", createInvestmentHandler(svcs.Ledger, logger))
			r.Post("/investments/accrue", accrueWealthHandler(svcs.Ledger, logger))
			r.Get("/investments/{investmentId}", getInvestmentHandler(svcs.Ledger, logger))
			r.Put("/investments/{investmentId}", updateInvestmentHandler(svcs.Ledger, logger))
			r.Delete("/investments/{investmentId}", deleteInvestmentHandler(svcs.Ledger, logger))
			r.Post("/investments/{investmentId}/price", updatePriceHandler(svcs.Ledger, logger))

			// Recurring rules
			r.Get("/recurring", listRulesHandler(svcs.Recurring, logger))
			r.Post("/recurring", createRuleHandler(svcs.Recurring, logger))
			r.Post("/recurring/run", runNowHandler(svcs.Recurring, logger))
			r.Get("/recurring/{ruleId}", getRuleHandler(svcs.Recurring, logger))
			r.Put("/recurring/{ruleId}", updateRuleHandler(svcs.Recurring, logger))
			r.Delete("/recurring/{ruleId}", deleteRuleHandler(svcs.Recurring, logger))
			r.Post("/recurring/{ruleId}/toggle", toggleRuleHandler(svcs.Recurring, logger))

			// Net worth
			r.Get("/networth", summaryHandler(svcs.Snapshots, logger))
			r.Get("/networth/history", snapshotHistoryHandler(svcs.Snapshots, logger))
			r.Post("/networth/snapshot", takeSnapshotHandler(svcs.Snapshots, logger))

			// Backup
			r.Get("/backup/export", exportBackupHandler(svcs.Backup, logger))
			r.Post("/backup/import", importBackupHandler(svcs.Backup, logger))
			r.Get("/backup/transactions.csv", exportCSVHandler(svcs.Backup, svcs.Ledger, logger))
			r.Post("/backup/remote/push", pushRemoteHandler(svcs.Backup, logger))
			r.Post("/backup/remote/pull", pullRemoteHandler(svcs.Backup, logger))

			// Engine counters
			r.Get("/metrics/engine", engineMetricsHandler(metrics, logger))
		})
	})

	return r
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}

func readyzHandler(db Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if db != nil {
			if err := db.Ping(ctx); err != nil {
				logger.Error("readiness probe failed", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	}
}

func engineMetricsHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetEngineSummary())
	}
}
