package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/finchapp/finch/internal/domain"
	"github.com/finchapp/finch/internal/port"

	"github.com/google/uuid"
)

const ruleColumns = `id, kind, action, account_id, from_account_id, to_account_id,
	investment_id, frequency, weekday, month_day, year_day, amount, note,
	enabled, next_run, last_run, created_at`

func scanRule(row interface{ Scan(...any) error }) (*domain.RecurringRule, error) {
	var (
		r                           domain.RecurringRule
		accountID, fromID, toID     sql.NullString
		investmentID, note          sql.NullString
		weekday, monthDay, yearDay  sql.NullInt64
		nextRun, lastRun, createdAt sql.NullString
	)
	err := row.Scan(&r.ID, &r.Kind, &r.Action, &accountID, &fromID, &toID,
		&investmentID, &r.Frequency, &weekday, &monthDay, &yearDay, &r.Amount,
		&note, &r.Enabled, &nextRun, &lastRun, &createdAt)
	if err != nil {
		return nil, err
	}
	r.AccountID = accountID.String
	r.FromAccountID = fromID.String
	r.ToAccountID = toID.String
	r.InvestmentID = investmentID.String
	r.Note = note.String
	r.Weekday = intPtr(weekday)
	r.MonthDay = intPtr(monthDay)
	r.YearDay = intPtr(yearDay)
	r.NextRun = nextRun.String
	r.LastRun = lastRun.String
	r.CreatedAt = timeOrNow(createdAt.String)
	return &r, nil
}

func (s *Store) queryRules(ctx context.Context, where string, args ...any) ([]domain.RecurringRule, error) {
	q := fmt.Sprintf("SELECT %s FROM recurring_rules %s ORDER BY next_run, created_at", ruleColumns, where)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var out []domain.RecurringRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) ListEnabledRules(ctx context.Context) ([]domain.RecurringRule, error) {
	return s.queryRules(ctx, "WHERE enabled = 1")
}

func (s *Store) ListRules(ctx context.Context) ([]domain.RecurringRule, error) {
	return s.queryRules(ctx, "")
}

func (s *Store) ListRulesByFilter(ctx context.Context, f port.RuleFilter) ([]domain.RecurringRule, error) {
	where := "WHERE 1=1"
	var args []any
	if f.Kind != "" {
		where += " AND kind = ?"
		args = append(args, string(f.Kind))
	}
	if f.AccountID != "" {
		where += " AND (account_id = ? OR from_account_id = ? OR to_account_id = ?)"
		args = append(args, f.AccountID, f.AccountID, f.AccountID)
	}
	if f.InvestmentID != "" {
		where += " AND investment_id = ?"
		args = append(args, f.InvestmentID)
	}
	return s.queryRules(ctx, where, args...)
}

func (s *Store) GetRule(ctx context.Context, id string) (*domain.RecurringRule, error) {
	q := fmt.Sprintf("SELECT %s FROM recurring_rules WHERE id = ?", ruleColumns)
	r, err := scanRule(s.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, &domain.ErrNotFound{Resource: "recurring_rule", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return r, nil
}

func (s *Store) CreateRule(ctx context.Context, rule *domain.RecurringRule) (string, error) {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recurring_rules (`+ruleColumns+`)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rule.ID, rule.Kind, rule.Action, nullStr(rule.AccountID),
		nullStr(rule.FromAccountID), nullStr(rule.ToAccountID),
		nullStr(rule.InvestmentID), rule.Frequency, nullInt(rule.Weekday),
		nullInt(rule.MonthDay), nullInt(rule.YearDay), rule.Amount,
		nullStr(rule.Note), rule.Enabled, nullStr(rule.NextRun),
		nullStr(rule.LastRun), rule.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert rule: %w", err)
	}
	return rule.ID, nil
}

func (s *Store) UpdateRule(ctx context.Context, rule *domain.RecurringRule) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE recurring_rules SET kind=?, action=?, account_id=?,
		 from_account_id=?, to_account_id=?, investment_id=?, frequency=?,
		 weekday=?, month_day=?, year_day=?, amount=?, note=?, enabled=?,
		 next_run=?, last_run=? WHERE id=?`,
		rule.Kind, rule.Action, nullStr(rule.AccountID),
		nullStr(rule.FromAccountID), nullStr(rule.ToAccountID),
		nullStr(rule.InvestmentID), rule.Frequency, nullInt(rule.Weekday),
		nullInt(rule.MonthDay), nullInt(rule.YearDay), rule.Amount,
		nullStr(rule.Note), rule.Enabled, nullStr(rule.NextRun),
		nullStr(rule.LastRun), rule.ID,
	)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "recurring_rule", ID: rule.ID}
	}
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM recurring_rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "recurring_rule", ID: id}
	}
	return nil
}
