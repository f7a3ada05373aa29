package domain

import "time"

// RuleKind selects which ledger entity a recurring rule is scoped to.
type RuleKind string

const (
	KindAccount    RuleKind = "account"
	KindInvestment RuleKind = "investment"
)

// RuleAction is the operation performed on each occurrence.
type RuleAction string

const (
	ActionIncome   RuleAction = "income"
	ActionTransfer RuleAction = "transfer"
	ActionDCA      RuleAction = "dca"
)

// Frequency is the recurrence period of a rule.
type Frequency string

const (
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
	FreqYearly  Frequency = "yearly"
)

// RecurringRule is a persisted scheduling directive: credit an account,
// move money between accounts, or dollar-cost-average into an investment
// on a daily/weekly/monthly/yearly cadence.
//
// The shape is shared across variants; Weekday/MonthDay/YearDay are set
// only for the matching frequency, and the account/investment references
// only for the matching kind/action. Validate enforces the combinations.
type RecurringRule struct {
	ID            string     `json:"id"`
	Kind          RuleKind   `json:"kind"`
	Action        RuleAction `json:"action"`
	AccountID     string     `json:"account_id,omitempty"`
	FromAccountID string     `json:"from_account_id,omitempty"`
	ToAccountID   string     `json:"to_account_id,omitempty"`
	InvestmentID  string     `json:"investment_id,omitempty"`
	Frequency     Frequency  `json:"frequency"`
	Weekday       *int       `json:"weekday,omitempty"`   // 0 (Sunday) .. 6, weekly only
	MonthDay      *int       `json:"month_day,omitempty"` // 1..31, monthly only
	YearDay       *int       `json:"year_day,omitempty"`  // 1..366, yearly only
	Amount        float64    `json:"amount"`
	Note          string     `json:"note,omitempty"`
	Enabled       bool       `json:"enabled"`
	NextRun       string     `json:"next_run,omitempty"` // YYYY-MM-DD, next unexecuted occurrence
	LastRun       string     `json:"last_run,omitempty"` // YYYY-MM-DD, most recent executed occurrence
	CreatedAt     time.Time  `json:"created_at"`
}

// SourceAccountID returns the account debited by transfer and dca rules.
// Older transfer rules stored the source in AccountID only.
func (r *RecurringRule) SourceAccountID() string {
	if r.FromAccountID != "" {
		return r.FromAccountID
	}
	return r.AccountID
}

// Validate checks the kind/action/frequency field combinations.
func (r *RecurringRule) Validate() error {
	if r.Amount <= 0 {
		return &ErrValidation{Field: "amount", Message: "must be positive"}
	}

	switch r.Kind {
	case KindAccount:
		if r.Action != ActionIncome && r.Action != ActionTransfer {
			return &ErrValidation{Field: "action", Message: "account rules accept income or transfer"}
		}
		if r.AccountID == "" {
			return &ErrValidation{Field: "account_id", Message: "required"}
		}
		if r.Action == ActionTransfer {
			if r.ToAccountID == "" {
				return &ErrValidation{Field: "to_account_id", Message: "required for transfer"}
			}
			if r.ToAccountID == r.SourceAccountID() {
				return &ErrValidation{Field: "to_account_id", Message: "must differ from source account"}
			}
		}
	case KindInvestment:
		if r.Action != ActionDCA {
			return &ErrValidation{Field: "action", Message: "investment rules accept dca only"}
		}
		if r.InvestmentID == "" {
			return &ErrValidation{Field: "investment_id", Message: "required"}
		}
		if r.FromAccountID == "" {
			return &ErrValidation{Field: "from_account_id", Message: "required for dca"}
		}
	default:
		return &ErrValidation{Field: "kind", Message: "must be account or investment"}
	}

	switch r.Frequency {
	case FreqDaily:
	case FreqWeekly:
		if r.Weekday == nil || *r.Weekday < 0 || *r.Weekday > 6 {
			return &ErrValidation{Field: "weekday", Message: "must be 0..6 for weekly rules"}
		}
	case FreqMonthly:
		if r.MonthDay == nil || *r.MonthDay < 1 || *r.MonthDay > 31 {
			return &ErrValidation{Field: "month_day", Message: "must be 1..31 for monthly rules"}
		}
	case FreqYearly:
		if r.YearDay == nil || *r.YearDay < 1 || *r.YearDay > 366 {
			return &ErrValidation{Field: "year_day", Message: "must be 1..366 for yearly rules"}
		}
	default:
		return &ErrValidation{Field: "frequency", Message: "must be daily, weekly, monthly or yearly"}
	}

	return nil
}
