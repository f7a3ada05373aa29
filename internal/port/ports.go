// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the schedule
// engine and service layer from concrete implementations.
package port

import (
	"context"

	"github.com/finchapp/finch/internal/domain"
)

// RuleFilter narrows a rule listing to one ledger entity.
type RuleFilter struct {
	Kind         domain.RuleKind
	AccountID    string
	InvestmentID string
}

// RuleStore is the durable storage of recurring rules.
type RuleStore interface {
	ListEnabledRules(ctx context.Context) ([]domain.RecurringRule, error)
	ListRules(ctx context.Context) ([]domain.RecurringRule, error)
	ListRulesByFilter(ctx context.Context, f RuleFilter) ([]domain.RecurringRule, error)
	GetRule(ctx context.Context, id string) (*domain.RecurringRule, error)
	CreateRule(ctx context.Context, rule *domain.RecurringRule) (string, error)
	UpdateRule(ctx context.Context, rule *domain.RecurringRule) error
	DeleteRule(ctx context.Context, id string) error
}

// LedgerStore owns accounts, investments, their transaction history and
// net-worth snapshots. The schedule engine mutates balances only through
// this contract.
type LedgerStore interface {
	// Accounts
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	CreateAccount(ctx context.Context, account *domain.Account) (string, error)
	SaveAccount(ctx context.Context, account *domain.Account) error
	DeleteAccount(ctx context.Context, id string) error

	// Investments
	ListInvestments(ctx context.Context) ([]domain.Investment, error)
	GetInvestment(ctx context.Context, id string) (*domain.Investment, error)
	CreateInvestment(ctx context.Context, inv *domain.Investment) (string, error)
	SaveInvestment(ctx context.Context, inv *domain.Investment) error
	DeleteInvestment(ctx context.Context, id string) error

	// Transactions
	AppendTransaction(ctx context.Context, tx *domain.Transaction) error
	ListTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error)

	// Snapshots
	AppendSnapshot(ctx context.Context, s *domain.Snapshot) error
	ListSnapshots(ctx context.Context, from, to string) ([]domain.Snapshot, error)
	LatestSnapshot(ctx context.Context) (*domain.Snapshot, error)
}

// SettingsStore holds small key/value settings (lock-screen password
// hash, preferred currency).
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// BackupStore exports and atomically restores the full data set.
type BackupStore interface {
	ExportAll(ctx context.Context) (*domain.Backup, error)
	ImportAll(ctx context.Context, b *domain.Backup) error
}

// Notifier is invoked once per catch-up run that executed at least one
// occurrence, so downstream consumers can recompute snapshots and
// refresh views.
type Notifier interface {
	RulesExecuted(ctx context.Context, executed int)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// RemoteVault pushes and pulls backup payloads to remote storage
// (the WebDAV adapter).
type RemoteVault interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
}
