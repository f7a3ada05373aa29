package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/finchapp/finch/internal/domain"
)

// ExportAll builds the full-data backup payload.
func (s *Store) ExportAll(ctx context.Context) (*domain.Backup, error) {
	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	investments, err := s.ListInvestments(ctx)
	if err != nil {
		return nil, err
	}
	transactions, err := s.ListTransactions(ctx, "", 0)
	if err != nil {
		return nil, err
	}
	rules, err := s.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	snapshots, err := s.ListSnapshots(ctx, "", "")
	if err != nil {
		return nil, err
	}

	return &domain.Backup{
		Version:      domain.BackupVersion,
		ExportedAt:   time.Now(),
		Accounts:     accounts,
		Investments:  investments,
		Transactions: transactions,
		Rules:        rules,
		Snapshots:    snapshots,
	}, nil
}

// ImportAll replaces the entire data set with the backup payload inside
// one transaction, so a half-imported backup never survives a failure.
func (s *Store) ImportAll(ctx context.Context, b *domain.Backup) error {
	if b.Version > domain.BackupVersion {
		return &domain.ErrValidation{Field: "version", Message: fmt.Sprintf("unsupported backup version %d", b.Version)}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"transactions", "recurring_rules", "snapshots", "investments", "accounts"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for i := range b.Accounts {
		a := &b.Accounts[i]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (id, name, type, balance, currency, sort_order, created_at)
			 VALUES (?,?,?,?,?,?,?)`,
			a.ID, a.Name, a.Type, a.Balance, a.Currency, a.SortOrder,
			a.CreatedAt.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("import account %s: %w", a.ID, err)
		}
	}
	for i := range b.Investments {
		inv := &b.Investments[i]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO investments (`+investmentColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			inv.ID, inv.Name, nullStr(inv.Code), inv.Type, inv.Quantity,
			inv.CostPrice, inv.CurrentPrice, inv.AnnualInterestRate,
			nullStr(inv.LastAccruedDate), nullStr(inv.PurchaseDate),
			inv.CreatedAt.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("import investment %s: %w", inv.ID, err)
		}
	}
	for i := range b.Transactions {
		t := &b.Transactions[i]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transactions (id, account_id, type, previous_balance,
			 new_balance, amount, reason, date, created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
			t.ID, t.AccountID, t.Type, t.PreviousBalance, t.NewBalance,
			t.Amount, nullStr(t.Reason), t.Date,
			t.CreatedAt.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("import transaction %s: %w", t.ID, err)
		}
	}
	for i := range b.Rules {
		r := &b.Rules[i]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO recurring_rules (`+ruleColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			r.ID, r.Kind, r.Action, nullStr(r.AccountID), nullStr(r.FromAccountID),
			nullStr(r.ToAccountID), nullStr(r.InvestmentID), r.Frequency,
			nullInt(r.Weekday), nullInt(r.MonthDay), nullInt(r.YearDay),
			r.Amount, nullStr(r.Note), r.Enabled, nullStr(r.NextRun),
			nullStr(r.LastRun), r.CreatedAt.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("import rule %s: %w", r.ID, err)
		}
	}
	for i := range b.Snapshots {
		sn := &b.Snapshots[i]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshots (id, date, net_worth, assets, liabilities, investments, created_at)
			 VALUES (?,?,?,?,?,?,?)`,
			sn.ID, sn.Date, sn.NetWorth, sn.Assets, sn.Liabilities,
			sn.Investments, sn.CreatedAt.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("import snapshot %s: %w", sn.ID, err)
		}
	}

	return tx.Commit()
}
