package service

import (
	"context"
	"fmt"

	"github.com/finchapp/finch/internal/domain"
	"github.com/finchapp/finch/internal/infra/observability"
	"github.com/finchapp/finch/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var ledgerTracer = otel.Tracer("service/ledger")

// LedgerService handles manual ledger operations: accounts, investments,
// balance adjustments, transfers and transaction history. The schedule
// engine shares the same store but writes through its own path.
type LedgerService struct {
	ledger  port.LedgerStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewLedgerService creates a new ledger service.
func NewLedgerService(ledger port.LedgerStore, metrics *observability.Metrics, logger *zap.Logger) *LedgerService {
	return &LedgerService{ledger: ledger, metrics: metrics, logger: logger}
}

// ============================================================
// Accounts
// ============================================================

func (s *LedgerService) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ListAccounts")
	defer span.End()

	return s.ledger.ListAccounts(ctx)
}

func (s *LedgerService) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.GetAccount")
	defer span.End()

	return s.ledger.GetAccount(ctx, id)
}

func (s *LedgerService) CreateAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.CreateAccount")
	defer span.End()

	if account.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if account.Type == "" {
		account.Type = "other"
	}
	if account.Currency == "" {
		account.Currency = "USD"
	}

	id, err := s.ledger.CreateAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	account.ID = id

	s.logger.Info("account created",
		zap.String("account_id", id),
		zap.String("type", account.Type),
	)
	return account, nil
}

// UpdateAccount renames or reorders an account. Balance edits go through
// AdjustBalance so they leave a transaction.
func (s *LedgerService) UpdateAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.UpdateAccount")
	defer span.End()

	if account.ID == "" {
		return nil, &domain.ErrValidation{Field: "id", Message: "required"}
	}
	if account.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}

	existing, err := s.ledger.GetAccount(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	account.Balance = existing.Balance
	account.CreatedAt = existing.CreatedAt

	if err := s.ledger.SaveAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("save account: %w", err)
	}
	return account, nil
}

func (s *LedgerService) DeleteAccount(ctx context.Context, id string) error {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.DeleteAccount")
	defer span.End()

	return s.ledger.DeleteAccount(ctx, id)
}

// AdjustBalance sets an account balance to a new value and records the
// delta as an adjustment transaction dated the given day.
func (s *LedgerService) AdjustBalance(ctx context.Context, id string, newBalance float64, reason, date string) (*domain.Account, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.AdjustBalance")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", id))

	account, err := s.ledger.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	prev := account.Balance
	if prev == newBalance {
		return account, nil
	}
	account.Balance = newBalance

	if err := s.ledger.SaveAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("save account: %w", err)
	}

	if reason == "" {
		reason = "Balance adjustment"
	}
	if err := s.ledger.AppendTransaction(ctx, &domain.Transaction{
		AccountID:       account.ID,
		Type:            domain.TxAdjust,
		PreviousBalance: prev,
		NewBalance:      newBalance,
		Amount:          newBalance - prev,
		Reason:          reason,
		Date:            date,
	}); err != nil {
		return nil, fmt.Errorf("append adjustment: %w", err)
	}

	return account, nil
}

// Transfer moves money between two accounts, recording a linked pair of
// transactions. Overdrawing is allowed; liabilities live as negative
// balances.
func (s *LedgerService) Transfer(ctx context.Context, fromID, toID string, amount float64, note, date string) error {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.Transfer")
	defer span.End()

	if amount <= 0 {
		return &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	if fromID == toID {
		return &domain.ErrValidation{Field: "to_account_id", Message: "must differ from source account"}
	}

	from, err := s.ledger.GetAccount(ctx, fromID)
	if err != nil {
		return err
	}
	to, err := s.ledger.GetAccount(ctx, toID)
	if err != nil {
		return err
	}

	fromPrev := from.Balance
	toPrev := to.Balance
	from.Balance = fromPrev - amount
	to.Balance = toPrev + amount

	if err := s.ledger.SaveAccount(ctx, from); err != nil {
		return fmt.Errorf("save source account: %w", err)
	}
	if err := s.ledger.SaveAccount(ctx, to); err != nil {
		return fmt.Errorf("save target account: %w", err)
	}

	if note == "" {
		note = fmt.Sprintf("Transfer: %s → %s", from.Name, to.Name)
	}
	if err := s.ledger.AppendTransaction(ctx, &domain.Transaction{
		AccountID:       from.ID,
		Type:            domain.TxTransferOut,
		PreviousBalance: fromPrev,
		NewBalance:      from.Balance,
		Amount:          -amount,
		Reason:          note,
		Date:            date,
	}); err != nil {
		return fmt.Errorf("append outgoing transaction: %w", err)
	}
	if err := s.ledger.AppendTransaction(ctx, &domain.Transaction{
		AccountID:       to.ID,
		Type:            domain.TxTransferIn,
		PreviousBalance: toPrev,
		NewBalance:      to.Balance,
		Amount:          amount,
		Reason:          note,
		Date:            date,
	}); err != nil {
		return fmt.Errorf("append incoming transaction: %w", err)
	}

	s.logger.Info("manual transfer",
		zap.String("from", fromID),
		zap.String("to", toID),
		zap.Float64("amount", amount),
	)
	return nil
}

// ListTransactions returns history newest-first. An empty accountID
// spans all accounts; limit <= 0 returns everything.
func (s *LedgerService) ListTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ListTransactions")
	defer span.End()

	return s.ledger.ListTransactions(ctx, accountID, limit)
}
