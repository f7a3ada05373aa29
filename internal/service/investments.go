package service

import (
	"context"
	"fmt"
	"time"

	"github.com/finchapp/finch/internal/domain"
	"github.com/finchapp/finch/internal/schedule"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Investments
// ============================================================

func (s *LedgerService) ListInvestments(ctx context.Context) ([]domain.Investment, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ListInvestments")
	defer span.End()

	return s.ledger.ListInvestments(ctx)
}

func (s *LedgerService) GetInvestment(ctx context.Context, id string) (*domain.Investment, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.GetInvestment")
	defer span.End()

	return s.ledger.GetInvestment(ctx, id)
}

func (s *LedgerService) CreateInvestment(ctx context.Context, inv *domain.Investment) (*domain.Investment, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.CreateInvestment")
	defer span.End()

	if inv.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	switch inv.Type {
	case domain.InvestmentFund, domain.InvestmentStock, domain.InvestmentCrypto, domain.InvestmentWealth:
	default:
		return nil, &domain.ErrValidation{Field: "type", Message: "must be fund, stock, crypto or wealth"}
	}
	if inv.Quantity < 0 {
		return nil, &domain.ErrValidation{Field: "quantity", Message: "must not be negative"}
	}

	if inv.IsWealth() {
		// Accrual convention: principal in Quantity, factor in CurrentPrice.
		inv.CostPrice = 1
		if inv.CurrentPrice <= 0 {
			inv.CurrentPrice = 1
		}
		if inv.AnnualInterestRate < 0 {
			return nil, &domain.ErrValidation{Field: "annual_interest_rate", Message: "must not be negative"}
		}
	}

	id, err := s.ledger.CreateInvestment(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("create investment: %w", err)
	}
	inv.ID = id

	s.logger.Info("investment created",
		zap.String("investment_id", id),
		zap.String("type", inv.Type),
	)
	return inv, nil
}

// UpdateInvestment edits the descriptive fields. Quantity and cost price
// are owned by the DCA engine and the accrual path; the stored values win.
func (s *LedgerService) UpdateInvestment(ctx context.Context, inv *domain.Investment) (*domain.Investment, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.UpdateInvestment")
	defer span.End()

	if inv.ID == "" {
		return nil, &domain.ErrValidation{Field: "id", Message: "required"}
	}
	if inv.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}

	existing, err := s.ledger.GetInvestment(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Type = existing.Type
	inv.Quantity = existing.Quantity
	inv.CostPrice = existing.CostPrice
	inv.LastAccruedDate = existing.LastAccruedDate
	inv.CreatedAt = existing.CreatedAt
	if inv.IsWealth() {
		inv.CurrentPrice = existing.CurrentPrice
	}

	if err := s.ledger.SaveInvestment(ctx, inv); err != nil {
		return nil, fmt.Errorf("save investment: %w", err)
	}
	return inv, nil
}

func (s *LedgerService) DeleteInvestment(ctx context.Context, id string) error {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.DeleteInvestment")
	defer span.End()

	return s.ledger.DeleteInvestment(ctx, id)
}

// UpdatePrice sets the market price of a share-based holding. Wealth
// instruments reject manual prices since CurrentPrice carries the
// accrual factor.
func (s *LedgerService) UpdatePrice(ctx context.Context, id string, price float64) (*domain.Investment, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.UpdatePrice")
	defer span.End()
	span.SetAttributes(attribute.String("investment.id", id))

	if price <= 0 {
		return nil, &domain.ErrValidation{Field: "price", Message: "must be positive"}
	}

	inv, err := s.ledger.GetInvestment(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.IsWealth() {
		return nil, &domain.ErrValidation{Field: "price", Message: "wealth instruments accrue interest, not prices"}
	}

	inv.CurrentPrice = price
	if err := s.ledger.SaveInvestment(ctx, inv); err != nil {
		return nil, fmt.Errorf("save investment: %w", err)
	}
	return inv, nil
}

// AccrueWealth folds pending simple daily interest into every wealth
// instrument up to today and returns how many were updated. DCA
// contributions accrue on their own path; this covers instruments
// without an active rule.
func (s *LedgerService) AccrueWealth(ctx context.Context) (int, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.AccrueWealth")
	defer span.End()

	today := schedule.FormatDate(schedule.Midnight(time.Now()))

	invs, err := s.ledger.ListInvestments(ctx)
	if err != nil {
		return 0, fmt.Errorf("list investments: %w", err)
	}

	updated := 0
	for i := range invs {
		inv := &invs[i]
		if !inv.IsWealth() || inv.AnnualInterestRate <= 0 || inv.Quantity <= 0 {
			continue
		}

		lastAccrued := inv.LastAccruedDate
		if lastAccrued == "" {
			lastAccrued = inv.PurchaseDate
		}
		if lastAccrued == "" && !inv.CreatedAt.IsZero() {
			lastAccrued = schedule.FormatDate(inv.CreatedAt)
		}
		if lastAccrued == "" {
			inv.LastAccruedDate = today
			if err := s.ledger.SaveInvestment(ctx, inv); err != nil {
				return updated, fmt.Errorf("save investment %s: %w", inv.ID, err)
			}
			continue
		}

		days := schedule.DiffDays(lastAccrued, today)
		if days <= 0 {
			continue
		}

		factor := inv.CurrentPrice
		if factor <= 0 {
			factor = 1
		}
		dailyRate := inv.AnnualInterestRate / 100 / 365
		inv.CurrentPrice = factor * (1 + dailyRate*float64(days))
		inv.CostPrice = 1
		inv.LastAccruedDate = today

		if err := s.ledger.SaveInvestment(ctx, inv); err != nil {
			return updated, fmt.Errorf("save investment %s: %w", inv.ID, err)
		}
		updated++
	}

	if updated > 0 {
		s.logger.Info("wealth interest accrued", zap.Int("instruments", updated))
	}
	span.SetAttributes(attribute.Int("accrue.updated", updated))
	return updated, nil
}
