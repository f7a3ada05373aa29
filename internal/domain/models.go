// Package domain defines the core business entities for Finch.
// These models are independent of the storage layer and represent the
// canonical data structures used throughout the tracker.
package domain

import "time"

// ============================================================
// Accounts
// ============================================================

// Account is a tracked balance: cash, bank, credit card, etc.
// Liabilities carry a negative balance.
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"` // cash, bank, credit, other
	Balance   float64   `json:"balance"`
	Currency  string    `json:"currency"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

// Transaction is one ledger entry against an account. Every balance
// mutation records the balance before and after, so history stays
// auditable even if an account is later edited by hand.
type Transaction struct {
	ID              string    `json:"id"`
	AccountID       string    `json:"account_id"`
	Type            string    `json:"type"`
	PreviousBalance float64   `json:"previous_balance"`
	NewBalance      float64   `json:"new_balance"`
	Amount          float64   `json:"amount"` // signed: credit positive, debit negative
	Reason          string    `json:"reason,omitempty"`
	Date            string    `json:"date"` // YYYY-MM-DD, occurrence date (not insert time)
	CreatedAt       time.Time `json:"created_at"`
}

// Transaction types written by the ledger.
const (
	TxAdjust               = "adjust"
	TxTransferIn           = "transfer_in"
	TxTransferOut          = "transfer_out"
	TxRecurringIncome      = "recurring_income"
	TxRecurringTransferIn  = "recurring_transfer_in"
	TxRecurringTransferOut = "recurring_transfer_out"
	TxDCAOut               = "dca_out"
)

// ============================================================
// Investments
// ============================================================

// Investment types. "wealth" is an interest-bearing product without a
// market price; the remaining types are share-based market holdings.
const (
	InvestmentFund   = "fund"
	InvestmentStock  = "stock"
	InvestmentCrypto = "crypto"
	InvestmentWealth = "wealth"
)

// Investment is a holding valued as Quantity × price.
//
// Wealth (interest-accrual) instruments reuse the same shape under a
// documented convention: Quantity holds the contributed principal,
// CostPrice is pinned to 1, and CurrentPrice holds the accrual factor
// (accrued amount / principal). LastAccruedDate tracks the last date
// interest was folded into the factor.
type Investment struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Code               string    `json:"code,omitempty"`
	Type               string    `json:"type"`
	Quantity           float64   `json:"quantity"`
	CostPrice          float64   `json:"cost_price"`
	CurrentPrice       float64   `json:"current_price"`
	AnnualInterestRate float64   `json:"annual_interest_rate,omitempty"` // percent, wealth only
	LastAccruedDate    string    `json:"last_accrued_date,omitempty"`    // YYYY-MM-DD
	PurchaseDate       string    `json:"purchase_date,omitempty"`        // YYYY-MM-DD
	CreatedAt          time.Time `json:"created_at"`
}

// IsWealth reports whether the investment follows the accrual convention.
func (i *Investment) IsWealth() bool {
	return i.Type == InvestmentWealth
}

// MarketValue returns the current valuation of the holding. For wealth
// instruments this is principal × accrual factor.
func (i *Investment) MarketValue() float64 {
	price := i.CurrentPrice
	if price <= 0 {
		price = i.CostPrice
	}
	if price <= 0 {
		return 0
	}
	return i.Quantity * price
}

// ============================================================
// Snapshots
// ============================================================

// Snapshot is a net-worth data point recorded after rule executions and
// on demand, consumed by the dashboard charts.
type Snapshot struct {
	ID          string    `json:"id"`
	Date        string    `json:"date"` // YYYY-MM-DD
	NetWorth    float64   `json:"net_worth"`
	Assets      float64   `json:"assets"`
	Liabilities float64   `json:"liabilities"`
	Investments float64   `json:"investments"`
	CreatedAt   time.Time `json:"created_at"`
}

// ============================================================
// Backup
// ============================================================

// Backup is the full-data export payload: everything needed to restore
// the tracker on another device.
type Backup struct {
	Version      int             `json:"version"`
	ExportedAt   time.Time       `json:"exported_at"`
	Accounts     []Account       `json:"accounts"`
	Investments  []Investment    `json:"investments"`
	Transactions []Transaction   `json:"transactions"`
	Rules        []RecurringRule `json:"recurring_rules"`
	Snapshots    []Snapshot      `json:"snapshots"`
}

// BackupVersion is the current export format version.
const BackupVersion = 1
