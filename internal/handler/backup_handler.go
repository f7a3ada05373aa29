package handler

import (
	"net/http"

	"github.com/finchapp/finch/internal/domain"
	"github.com/finchapp/finch/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Backup Handlers
// ============================================================

func exportBackupHandler(svc *service.BackupService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /backup/export")
		defer span.End()

		backup, err := svc.Export(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set("Content-Disposition", `attachment; filename="finch-backup.json"`)
		writeJSON(w, http.StatusOK, backup)
	}
}

func importBackupHandler(svc *service.BackupService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /backup/import")
		defer span.End()

		var backup domain.Backup
		if err := decodeBody(r, &backup); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if err := svc.Import(ctx, &backup); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "restored"})
	}
}

func exportCSVHandler(backupSvc *service.BackupService, ledgerSvc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /backup/transactions.csv")
		defer span.End()

		accountID := r.URL.Query().Get("account_id")
		txs, err := ledgerSvc.ListTransactions(ctx, accountID, 0)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		data, err := backupSvc.ExportTransactionsCSV(ctx, txs)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="finch-transactions.csv"`)
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

func pushRemoteHandler(svc *service.BackupService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /backup/remote/push")
		defer span.End()

		if err := svc.PushRemote(ctx); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "pushed"})
	}
}

func pullRemoteHandler(svc *service.BackupService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /backup/remote/pull")
		defer span.End()

		if err := svc.PullRemote(ctx); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "restored"})
	}
}
