package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/finchapp/finch/internal/domain"

	"github.com/google/uuid"
)

const investmentColumns = `id, name, code, type, quantity, cost_price,
	current_price, annual_interest_rate, last_accrued_date, purchase_date, created_at`

func scanInvestment(row interface{ Scan(...any) error }) (*domain.Investment, error) {
	var (
		inv                             domain.Investment
		code, lastAccrued, purchaseDate sql.NullString
		createdAt                       string
	)
	err := row.Scan(&inv.ID, &inv.Name, &code, &inv.Type, &inv.Quantity,
		&inv.CostPrice, &inv.CurrentPrice, &inv.AnnualInterestRate,
		&lastAccrued, &purchaseDate, &createdAt)
	if err != nil {
		return nil, err
	}
	inv.Code = code.String
	inv.LastAccruedDate = lastAccrued.String
	inv.PurchaseDate = purchaseDate.String
	inv.CreatedAt = timeOrNow(createdAt)
	return &inv, nil
}

func (s *Store) ListInvestments(ctx context.Context) ([]domain.Investment, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM investments ORDER BY created_at", investmentColumns))
	if err != nil {
		return nil, fmt.Errorf("query investments: %w", err)
	}
	defer rows.Close()

	var out []domain.Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan investment: %w", err)
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func (s *Store) GetInvestment(ctx context.Context, id string) (*domain.Investment, error) {
	inv, err := scanInvestment(s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM investments WHERE id = ?", investmentColumns), id))
	if err == sql.ErrNoRows {
		return nil, &domain.ErrNotFound{Resource: "investment", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get investment: %w", err)
	}
	return inv, nil
}

func (s *Store) CreateInvestment(ctx context.Context, inv *domain.Investment) (string, error) {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO investments (`+investmentColumns+`)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		inv.ID, inv.Name, nullStr(inv.Code), inv.Type, inv.Quantity,
		inv.CostPrice, inv.CurrentPrice, inv.AnnualInterestRate,
		nullStr(inv.LastAccruedDate), nullStr(inv.PurchaseDate),
		inv.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert investment: %w", err)
	}
	return inv.ID, nil
}

func (s *Store) SaveInvestment(ctx context.Context, inv *domain.Investment) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE investments SET name=?, code=?, type=?, quantity=?, cost_price=?,
		 current_price=?, annual_interest_rate=?, last_accrued_date=?, purchase_date=?
		 WHERE id=?`,
		inv.Name, nullStr(inv.Code), inv.Type, inv.Quantity, inv.CostPrice,
		inv.CurrentPrice, inv.AnnualInterestRate, nullStr(inv.LastAccruedDate),
		nullStr(inv.PurchaseDate), inv.ID,
	)
	if err != nil {
		return fmt.Errorf("update investment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "investment", ID: inv.ID}
	}
	return nil
}

func (s *Store) DeleteInvestment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM investments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete investment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "investment", ID: id}
	}
	return nil
}
