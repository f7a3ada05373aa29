package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/finchapp/finch/internal/domain"
	"github.com/finchapp/finch/internal/infra/observability"
	"github.com/finchapp/finch/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var backupTracer = otel.Tracer("service/backup")

// remoteBackupName is the object name used on the remote vault.
const remoteBackupName = "finch-backup.json"

// BackupService exports and restores the full data set, as JSON for
// round-tripping and CSV for spreadsheets, and syncs the JSON payload
// to a WebDAV vault when one is configured.
type BackupService struct {
	store   port.BackupStore
	vault   port.RemoteVault
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewBackupService creates a new backup service. vault may be nil when
// no remote endpoint is configured.
func NewBackupService(store port.BackupStore, vault port.RemoteVault, metrics *observability.Metrics, logger *zap.Logger) *BackupService {
	return &BackupService{store: store, vault: vault, metrics: metrics, logger: logger}
}

// Export gathers the full data set into a versioned payload.
func (s *BackupService) Export(ctx context.Context) (*domain.Backup, error) {
	ctx, span := backupTracer.Start(ctx, "BackupService.Export")
	defer span.End()

	backup, err := s.store.ExportAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	backup.Version = domain.BackupVersion
	backup.ExportedAt = time.Now()

	span.SetAttributes(
		attribute.Int("backup.accounts", len(backup.Accounts)),
		attribute.Int("backup.transactions", len(backup.Transactions)),
	)
	return backup, nil
}

// Import replaces the entire data set with the payload. The restore is
// atomic: either everything lands or nothing changes.
func (s *BackupService) Import(ctx context.Context, backup *domain.Backup) error {
	ctx, span := backupTracer.Start(ctx, "BackupService.Import")
	defer span.End()

	if backup.Version != domain.BackupVersion {
		return &domain.ErrValidation{
			Field:   "version",
			Message: fmt.Sprintf("unsupported backup version %d", backup.Version),
		}
	}

	if err := s.store.ImportAll(ctx, backup); err != nil {
		return fmt.Errorf("import: %w", err)
	}

	s.logger.Info("backup restored",
		zap.Int("accounts", len(backup.Accounts)),
		zap.Int("investments", len(backup.Investments)),
		zap.Int("transactions", len(backup.Transactions)),
		zap.Int("rules", len(backup.Rules)),
	)
	return nil
}

// ExportTransactionsCSV renders the transaction history as CSV,
// newest-first, for use outside the tracker.
func (s *BackupService) ExportTransactionsCSV(ctx context.Context, txs []domain.Transaction) ([]byte, error) {
	_, span := backupTracer.Start(ctx, "BackupService.ExportTransactionsCSV")
	defer span.End()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"date", "account_id", "type", "amount", "previous_balance", "new_balance", "reason"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, tx := range txs {
		record := []string{
			tx.Date,
			tx.AccountID,
			tx.Type,
			strconv.FormatFloat(tx.Amount, 'f', -1, 64),
			strconv.FormatFloat(tx.PreviousBalance, 'f', -1, 64),
			strconv.FormatFloat(tx.NewBalance, 'f', -1, 64),
			tx.Reason,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// PushRemote exports the data set and uploads it to the WebDAV vault.
func (s *BackupService) PushRemote(ctx context.Context) error {
	ctx, span := backupTracer.Start(ctx, "BackupService.PushRemote")
	defer span.End()

	if s.vault == nil {
		return &domain.ErrValidation{Field: "webdav", Message: "remote backup is not configured"}
	}

	backup, err := s.Export(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(backup)
	if err != nil {
		return fmt.Errorf("marshal backup: %w", err)
	}

	if err := s.vault.Put(ctx, remoteBackupName, data); err != nil {
		s.metrics.IncrExternalError("webdav")
		return err
	}

	s.logger.Info("backup pushed to remote vault", zap.Int("bytes", len(data)))
	return nil
}

// PullRemote downloads the latest payload from the WebDAV vault and
// restores it.
func (s *BackupService) PullRemote(ctx context.Context) error {
	ctx, span := backupTracer.Start(ctx, "BackupService.PullRemote")
	defer span.End()

	if s.vault == nil {
		return &domain.ErrValidation{Field: "webdav", Message: "remote backup is not configured"}
	}

	data, err := s.vault.Get(ctx, remoteBackupName)
	if err != nil {
		s.metrics.IncrExternalError("webdav")
		return err
	}

	var backup domain.Backup
	if err := json.Unmarshal(data, &backup); err != nil {
		return &domain.ErrValidation{Field: "backup", Message: "remote payload is not a valid backup"}
	}
	return s.Import(ctx, &backup)
}
