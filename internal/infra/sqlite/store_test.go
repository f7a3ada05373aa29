package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/finchapp/finch/internal/domain"
	"github.com/finchapp/finch/internal/infra/sqlite"
	"github.com/finchapp/finch/internal/port"

	"go.uber.org/zap"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "finch.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func intp(v int) *int { return &v }

func TestRuleCRUD(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	rule := &domain.RecurringRule{
		Kind: domain.KindAccount, Action: domain.ActionIncome,
		AccountID: "acc-1", Frequency: domain.FreqMonthly, MonthDay: intp(31),
		Amount: 1200, Note: "salary", Enabled: true, NextRun: "2024-01-31",
	}
	id, err := store.CreateRule(ctx, rule)
	if err != nil {
		t.Fatalf("CreateRule: %v", err)
	}
	if id == "" {
		t.Fatal("no id generated")
	}

	got, err := store.GetRule(ctx, id)
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if got.Amount != 1200 || got.NextRun != "2024-01-31" || got.MonthDay == nil || *got.MonthDay != 31 {
		t.Errorf("round trip mismatch: %+v", got)
	}

	got.NextRun = "2024-02-29"
	got.LastRun = "2024-01-31"
	if err := store.UpdateRule(ctx, got); err != nil {
		t.Fatalf("UpdateRule: %v", err)
	}

	enabled, err := store.ListEnabledRules(ctx)
	if err != nil {
		t.Fatalf("ListEnabledRules: %v", err)
	}
	if len(enabled) != 1 || enabled[0].NextRun != "2024-02-29" {
		t.Errorf("enabled rules = %+v", enabled)
	}

	got.Enabled = false
	if err := store.UpdateRule(ctx, got); err != nil {
		t.Fatalf("UpdateRule: %v", err)
	}
	enabled, _ = store.ListEnabledRules(ctx)
	if len(enabled) != 0 {
		t.Errorf("disabled rule still listed as enabled")
	}

	if err := store.DeleteRule(ctx, id); err != nil {
		t.Fatalf("DeleteRule: %v", err)
	}
	var notFound *domain.ErrNotFound
	if _, err := store.GetRule(ctx, id); !errors.As(err, &notFound) {
		t.Errorf("want ErrNotFound after delete, got %v", err)
	}
	if err := store.DeleteRule(ctx, id); !errors.As(err, &notFound) {
		t.Errorf("double delete: want ErrNotFound, got %v", err)
	}
}

func TestListRulesByFilter(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	store.CreateRule(ctx, &domain.RecurringRule{
		Kind: domain.KindAccount, Action: domain.ActionIncome,
		AccountID: "acc-1", Frequency: domain.FreqDaily, Amount: 10, Enabled: true,
	})
	store.CreateRule(ctx, &domain.RecurringRule{
		Kind: domain.KindAccount, Action: domain.ActionTransfer,
		FromAccountID: "acc-1", ToAccountID: "acc-2", Frequency: domain.FreqDaily,
		Amount: 20, Enabled: true,
	})
	store.CreateRule(ctx, &domain.RecurringRule{
		Kind: domain.KindInvestment, Action: domain.ActionDCA,
		FromAccountID: "acc-2", InvestmentID: "inv-1", Frequency: domain.FreqDaily,
		Amount: 30, Enabled: true,
	})

	byAccount, err := store.ListRulesByFilter(ctx, port.RuleFilter{AccountID: "acc-1"})
	if err != nil {
		t.Fatalf("ListRulesByFilter: %v", err)
	}
	if len(byAccount) != 2 {
		t.Errorf("rules touching acc-1 = %d, want 2", len(byAccount))
	}

	byInv, _ := store.ListRulesByFilter(ctx, port.RuleFilter{InvestmentID: "inv-1"})
	if len(byInv) != 1 || byInv[0].Action != domain.ActionDCA {
		t.Errorf("rules for inv-1 = %+v", byInv)
	}

	byKind, _ := store.ListRulesByFilter(ctx, port.RuleFilter{Kind: domain.KindInvestment})
	if len(byKind) != 1 {
		t.Errorf("investment rules = %d, want 1", len(byKind))
	}
}

func TestAccountsAndTransactions(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	id, err := store.CreateAccount(ctx, &domain.Account{Name: "Checking", Type: "bank", Balance: 100, Currency: "EUR"})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	acc, err := store.GetAccount(ctx, id)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acc.Balance != 100 || acc.Currency != "EUR" {
		t.Errorf("round trip mismatch: %+v", acc)
	}

	acc.Balance = 150
	if err := store.SaveAccount(ctx, acc); err != nil {
		t.Fatalf("SaveAccount: %v", err)
	}

	for _, date := range []string{"2024-01-01", "2024-01-02"} {
		if err := store.AppendTransaction(ctx, &domain.Transaction{
			AccountID: id, Type: domain.TxRecurringIncome,
			PreviousBalance: 100, NewBalance: 150, Amount: 50, Date: date,
		}); err != nil {
			t.Fatalf("AppendTransaction: %v", err)
		}
	}

	txs, err := store.ListTransactions(ctx, id, 1)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 1 || txs[0].Date != "2024-01-02" {
		t.Errorf("want newest first with limit, got %+v", txs)
	}

	all, _ := store.ListTransactions(ctx, "", 0)
	if len(all) != 2 {
		t.Errorf("all transactions = %d, want 2", len(all))
	}
}

func TestSnapshotsReplaceSameDay(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	store.AppendSnapshot(ctx, &domain.Snapshot{Date: "2024-06-01", NetWorth: 100})
	store.AppendSnapshot(ctx, &domain.Snapshot{Date: "2024-06-01", NetWorth: 120})
	store.AppendSnapshot(ctx, &domain.Snapshot{Date: "2024-06-02", NetWorth: 130})

	snaps, err := store.ListSnapshots(ctx, "2024-06-01", "2024-06-30")
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("snapshots = %d, want 2 (same-day replaced)", len(snaps))
	}
	if snaps[0].NetWorth != 120 {
		t.Errorf("first snapshot net worth = %v, want replacement 120", snaps[0].NetWorth)
	}

	latest, err := store.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if latest.Date != "2024-06-02" {
		t.Errorf("latest = %s, want 2024-06-02", latest.Date)
	}
}

func TestSettingsUpsert(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if v, err := store.GetSetting(ctx, "missing"); err != nil || v != "" {
		t.Fatalf("missing setting = %q/%v, want empty", v, err)
	}

	store.SetSetting(ctx, "currency", "USD")
	store.SetSetting(ctx, "currency", "EUR")

	if v, _ := store.GetSetting(ctx, "currency"); v != "EUR" {
		t.Errorf("setting = %q, want EUR", v)
	}
}

func TestBackupExportImport(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	store.CreateAccount(ctx, &domain.Account{ID: "a", Name: "Cash", Balance: 10})
	store.CreateInvestment(ctx, &domain.Investment{ID: "i", Name: "Fund", Type: domain.InvestmentFund, Quantity: 1, CostPrice: 2, CurrentPrice: 3})
	store.CreateRule(ctx, &domain.RecurringRule{
		ID: "r", Kind: domain.KindAccount, Action: domain.ActionIncome,
		AccountID: "a", Frequency: domain.FreqDaily, Amount: 5, Enabled: true,
	})

	backup, err := store.ExportAll(ctx)
	if err != nil {
		t.Fatalf("ExportAll: %v", err)
	}
	if len(backup.Accounts) != 1 || len(backup.Investments) != 1 || len(backup.Rules) != 1 {
		t.Fatalf("export = %+v", backup)
	}

	// Restore into a fresh store.
	other := openStore(t)
	backup.Version = domain.BackupVersion
	if err := other.ImportAll(ctx, backup); err != nil {
		t.Fatalf("ImportAll: %v", err)
	}

	acc, err := other.GetAccount(ctx, "a")
	if err != nil || acc.Balance != 10 {
		t.Errorf("restored account = %+v / %v", acc, err)
	}
	rules, _ := other.ListRules(ctx)
	if len(rules) != 1 || rules[0].Amount != 5 {
		t.Errorf("restored rules = %+v", rules)
	}
}
