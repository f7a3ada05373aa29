package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finchapp/finch/internal/domain"
	"github.com/finchapp/finch/internal/infra/observability"
	"github.com/finchapp/finch/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("schedule")

// maxCatchUp bounds the per-rule catch-up loop in one run. A daily rule
// left dormant for over a year executes at most this many occurrences
// per invocation; the remainder is picked up on the next trigger.
const maxCatchUp = 366

// Engine owns due-date computation, the catch-up loop and execution
// dispatch for recurring rules. Balance mutations go through the ledger
// port; the engine itself holds no state between runs.
type Engine struct {
	rules    port.RuleStore
	ledger   port.LedgerStore
	notifier port.Notifier
	metrics  *observability.Metrics
	logger   *zap.Logger

	// now is the clock source, replaceable in tests.
	now func() time.Time

	// group collapses concurrent RunDue invocations (timer firing while
	// a resume-triggered run is in flight) into a single execution.
	group singleflight.Group
}

// NewEngine creates the schedule engine with all dependencies injected.
func NewEngine(rules port.RuleStore, ledger port.LedgerStore, notifier port.Notifier, metrics *observability.Metrics, logger *zap.Logger) *Engine {
	return &Engine{
		rules:    rules,
		ledger:   ledger,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the engine clock. Tests use this to pin "today".
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Today returns the current local date in wire format.
func (e *Engine) Today() string {
	return FormatDate(Midnight(e.now()))
}

// RunDue executes every overdue occurrence of every enabled rule, in
// chronological order per rule, and advances scheduling state. Repeated
// invocations are idempotent with respect to dates: an occurrence whose
// NextRun advance was persisted is never executed again. Concurrent
// invocations share a single underlying run.
//
// It returns the number of occurrences executed. One rule failing does
// not block the others; per-rule errors are logged and counted.
func (e *Engine) RunDue(ctx context.Context) (int, error) {
	v, err, _ := e.group.Do("run-due", func() (any, error) {
		return e.runDue(ctx)
	})
	n, _ := v.(int)
	return n, err
}

func (e *Engine) runDue(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "Engine.RunDue")
	defer span.End()

	start := time.Now()
	defer func() {
		e.metrics.RecordRunDuration(time.Since(start))
	}()

	today := e.Today()
	span.SetAttributes(attribute.String("run.today", today))

	rules, err := e.rules.ListEnabledRules(ctx)
	if err != nil {
		return 0, fmt.Errorf("list enabled rules: %w", err)
	}

	executed := 0
	for i := range rules {
		n, err := e.catchUp(ctx, &rules[i], today)
		executed += n
		if err != nil {
			// Isolate the broken rule; the rest of the batch proceeds.
			e.metrics.IncrRuleFailure(string(rules[i].Action))
			e.logger.Error("recurring rule run failed",
				zap.String("rule_id", rules[i].ID),
				zap.String("action", string(rules[i].Action)),
				zap.Int("executed_before_failure", n),
				zap.Error(err),
			)
		}
	}

	if executed > 0 {
		e.logger.Info("recurring rules executed",
			zap.Int("occurrences", executed),
			zap.String("today", today),
		)
		if e.notifier != nil {
			e.notifier.RulesExecuted(ctx, executed)
		}
	}

	return executed, nil
}

// catchUp advances one rule through all occurrences due on or before
// today. A precondition failure (missing account, no price) stops the
// loop with NextRun unchanged, so the same occurrence is retried on the
// next invocation. Persistence errors abort the rule and bubble up.
func (e *Engine) catchUp(ctx context.Context, rule *domain.RecurringRule, today string) (int, error) {
	if rule.NextRun == "" {
		next, err := NextRunAt(rule, e.now())
		if err != nil {
			return 0, err
		}
		rule.NextRun = next
		if err := e.rules.UpdateRule(ctx, rule); err != nil {
			return 0, fmt.Errorf("persist initial next run: %w", err)
		}
	}

	executed := 0
	for guard := 0; rule.NextRun != "" && rule.NextRun <= today && guard < maxCatchUp; guard++ {
		ran, err := e.executeRule(ctx, rule, rule.NextRun)
		if err != nil {
			return executed, err
		}
		if !ran {
			e.metrics.IncrRuleSkipped(string(rule.Action))
			e.logger.Debug("recurring rule skipped",
				zap.String("rule_id", rule.ID),
				zap.String("action", string(rule.Action)),
				zap.String("occurrence", rule.NextRun),
			)
			break
		}

		rule.LastRun = rule.NextRun
		next, err := Advance(rule, rule.NextRun)
		if err != nil {
			return executed, err
		}
		rule.NextRun = next
		if err := e.rules.UpdateRule(ctx, rule); err != nil {
			return executed, fmt.Errorf("persist rule state: %w", err)
		}

		e.metrics.IncrRuleExecuted(string(rule.Action))
		executed++
	}

	return executed, nil
}

// executeRule performs the side effect of one occurrence. The boolean
// result distinguishes precondition failures (false: skip and retry the
// same date later, nothing mutated) from persistence errors.
func (e *Engine) executeRule(ctx context.Context, rule *domain.RecurringRule, date string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Engine.executeRule")
	defer span.End()
	span.SetAttributes(
		attribute.String("rule.id", rule.ID),
		attribute.String("rule.action", string(rule.Action)),
		attribute.String("rule.occurrence", date),
	)

	switch rule.Action {
	case domain.ActionIncome:
		return e.executeIncome(ctx, rule, date)
	case domain.ActionTransfer:
		return e.executeTransfer(ctx, rule, date)
	case domain.ActionDCA:
		return e.executeDCA(ctx, rule, date)
	}
	return false, nil
}

func (e *Engine) executeIncome(ctx context.Context, rule *domain.RecurringRule, date string) (bool, error) {
	if rule.AccountID == "" {
		return false, nil
	}

	account, err := e.ledger.GetAccount(ctx, rule.AccountID)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	if account == nil {
		return false, nil
	}

	prev := account.Balance
	account.Balance = prev + rule.Amount
	if err := e.ledger.SaveAccount(ctx, account); err != nil {
		return false, err
	}

	reason := rule.Note
	if reason == "" {
		reason = "Recurring income"
	}
	if err := e.ledger.AppendTransaction(ctx, &domain.Transaction{
		AccountID:       account.ID,
		Type:            domain.TxRecurringIncome,
		PreviousBalance: prev,
		NewBalance:      account.Balance,
		Amount:          rule.Amount,
		Reason:          reason,
		Date:            date,
	}); err != nil {
		return false, err
	}

	return true, nil
}

func (e *Engine) executeTransfer(ctx context.Context, rule *domain.RecurringRule, date string) (bool, error) {
	fromID := rule.SourceAccountID()
	toID := rule.ToAccountID
	if fromID == "" || toID == "" || fromID == toID {
		return false, nil
	}
	if rule.Amount <= 0 {
		return false, nil
	}

	from, err := e.ledger.GetAccount(ctx, fromID)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	to, err := e.ledger.GetAccount(ctx, toID)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	if from == nil || to == nil {
		return false, nil
	}

	fromPrev := from.Balance
	toPrev := to.Balance
	from.Balance = fromPrev - rule.Amount
	to.Balance = toPrev + rule.Amount

	if err := e.ledger.SaveAccount(ctx, from); err != nil {
		return false, err
	}
	if err := e.ledger.SaveAccount(ctx, to); err != nil {
		return false, err
	}

	note := rule.Note
	if note == "" {
		note = fmt.Sprintf("Recurring transfer: %s → %s", from.Name, to.Name)
	}
	if err := e.ledger.AppendTransaction(ctx, &domain.Transaction{
		AccountID:       from.ID,
		Type:            domain.TxRecurringTransferOut,
		PreviousBalance: fromPrev,
		NewBalance:      from.Balance,
		Amount:          -rule.Amount,
		Reason:          note,
		Date:            date,
	}); err != nil {
		return false, err
	}
	if err := e.ledger.AppendTransaction(ctx, &domain.Transaction{
		AccountID:       to.ID,
		Type:            domain.TxRecurringTransferIn,
		PreviousBalance: toPrev,
		NewBalance:      to.Balance,
		Amount:          rule.Amount,
		Reason:          note,
		Date:            date,
	}); err != nil {
		return false, err
	}

	return true, nil
}

func (e *Engine) executeDCA(ctx context.Context, rule *domain.RecurringRule, date string) (bool, error) {
	if rule.FromAccountID == "" || rule.InvestmentID == "" {
		return false, nil
	}
	if rule.Amount <= 0 {
		return false, nil
	}

	from, err := e.ledger.GetAccount(ctx, rule.FromAccountID)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	inv, err := e.ledger.GetInvestment(ctx, rule.InvestmentID)
	if err != nil {
		return false, ignoreNotFound(err)
	}
	if from == nil || inv == nil {
		return false, nil
	}

	if inv.IsWealth() {
		return e.dcaWealth(ctx, rule, from, inv, date)
	}
	return e.dcaMarket(ctx, rule, from, inv, date)
}

// dcaMarket buys qtyAdded = amount / price shares and folds the purchase
// into the weighted-average cost price. Without a positive current or
// cost price the occurrence is skipped untouched.
func (e *Engine) dcaMarket(ctx context.Context, rule *domain.RecurringRule, from *domain.Account, inv *domain.Investment, date string) (bool, error) {
	price := inv.CurrentPrice
	if price <= 0 {
		price = inv.CostPrice
	}
	if price <= 0 {
		return false, nil
	}

	qtyAdded := rule.Amount / price
	oldQty := inv.Quantity
	newQty := oldQty + qtyAdded
	newCost := inv.CostPrice
	if newQty > 0 {
		newCost = (oldQty*inv.CostPrice + qtyAdded*price) / newQty
	}

	if err := e.debitForDCA(ctx, rule, from, inv, date); err != nil {
		return false, err
	}

	inv.Quantity = newQty
	inv.CostPrice = newCost
	if err := e.ledger.SaveInvestment(ctx, inv); err != nil {
		return false, err
	}

	return true, nil
}

// dcaWealth contributes into an interest-accrual instrument: accrue
// simple daily interest since the last accrual, then add the new
// contribution to both principal and accrued amount. CurrentPrice
// carries the accrual factor and CostPrice stays pinned to 1.
func (e *Engine) dcaWealth(ctx context.Context, rule *domain.RecurringRule, from *domain.Account, inv *domain.Investment, date string) (bool, error) {
	lastAccrued := inv.LastAccruedDate
	if lastAccrued == "" {
		lastAccrued = inv.PurchaseDate
	}
	if lastAccrued == "" && !inv.CreatedAt.IsZero() {
		lastAccrued = FormatDate(inv.CreatedAt)
	}
	if lastAccrued == "" {
		lastAccrued = date
	}

	dailyRate := 0.0
	if inv.AnnualInterestRate > 0 {
		dailyRate = inv.AnnualInterestRate / 100 / 365
	}

	principal := inv.Quantity
	prevFactor := inv.CurrentPrice
	if prevFactor <= 0 {
		prevFactor = 1
	}
	prevAmount := 0.0
	if principal > 0 {
		prevAmount = principal * prevFactor
	}

	accrued := prevAmount
	if days := DiffDays(lastAccrued, date); dailyRate > 0 && days > 0 {
		accrued = prevAmount * (1 + dailyRate*float64(days))
	}

	if err := e.debitForDCA(ctx, rule, from, inv, date); err != nil {
		return false, err
	}

	newPrincipal := principal + rule.Amount
	newAmount := accrued + rule.Amount
	inv.Quantity = newPrincipal
	inv.CostPrice = 1
	inv.CurrentPrice = 1
	if newPrincipal > 0 {
		inv.CurrentPrice = newAmount / newPrincipal
	}
	inv.LastAccruedDate = date
	if err := e.ledger.SaveInvestment(ctx, inv); err != nil {
		return false, err
	}

	return true, nil
}

func (e *Engine) debitForDCA(ctx context.Context, rule *domain.RecurringRule, from *domain.Account, inv *domain.Investment, date string) error {
	prev := from.Balance
	from.Balance = prev - rule.Amount
	if err := e.ledger.SaveAccount(ctx, from); err != nil {
		return err
	}

	reason := rule.Note
	if reason == "" {
		reason = fmt.Sprintf("DCA: %s → %s", from.Name, inv.Name)
	}
	return e.ledger.AppendTransaction(ctx, &domain.Transaction{
		AccountID:       from.ID,
		Type:            domain.TxDCAOut,
		PreviousBalance: prev,
		NewBalance:      from.Balance,
		Amount:          -rule.Amount,
		Reason:          reason,
		Date:            date,
	})
}

// ignoreNotFound maps a store not-found error to nil so callers can
// treat a deleted account/investment as a skip rather than a failure.
func ignoreNotFound(err error) error {
	var notFound *domain.ErrNotFound
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}
