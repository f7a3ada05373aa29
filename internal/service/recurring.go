// Package service provides the business logic layer (use cases) on top
// of the stores and the schedule engine.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/finchapp/finch/internal/domain"
	"github.com/finchapp/finch/internal/infra/observability"
	"github.com/finchapp/finch/internal/port"
	"github.com/finchapp/finch/internal/schedule"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var recurringTracer = otel.Tracer("service/recurring")

// RecurringService manages recurring rule CRUD and manual runs. Due-date
// arithmetic lives in the schedule package; this layer validates input
// and keeps NextRun consistent with edits.
type RecurringService struct {
	rules   port.RuleStore
	engine  *schedule.Engine
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewRecurringService creates a new recurring rule service.
func NewRecurringService(rules port.RuleStore, engine *schedule.Engine, metrics *observability.Metrics, logger *zap.Logger) *RecurringService {
	return &RecurringService{rules: rules, engine: engine, metrics: metrics, logger: logger}
}

// ListRules returns rules, optionally narrowed to one account or
// investment. The store orders by next run date.
func (s *RecurringService) ListRules(ctx context.Context, filter port.RuleFilter) ([]domain.RecurringRule, error) {
	ctx, span := recurringTracer.Start(ctx, "RecurringService.ListRules")
	defer span.End()

	if filter.AccountID == "" && filter.InvestmentID == "" && filter.Kind == "" {
		return s.rules.ListRules(ctx)
	}
	return s.rules.ListRulesByFilter(ctx, filter)
}

func (s *RecurringService) GetRule(ctx context.Context, id string) (*domain.RecurringRule, error) {
	ctx, span := recurringTracer.Start(ctx, "RecurringService.GetRule")
	defer span.End()

	return s.rules.GetRule(ctx, id)
}

// CreateRule validates and persists a new rule. The first occurrence is
// established immediately so a rule created on a matching day fires on
// the next run.
func (s *RecurringService) CreateRule(ctx context.Context, rule *domain.RecurringRule) (*domain.RecurringRule, error) {
	ctx, span := recurringTracer.Start(ctx, "RecurringService.CreateRule")
	defer span.End()

	if err := rule.Validate(); err != nil {
		return nil, err
	}

	next, err := schedule.NextRunAt(rule, time.Now())
	if err != nil {
		return nil, err
	}
	rule.NextRun = next
	rule.LastRun = ""

	id, err := s.rules.CreateRule(ctx, rule)
	if err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}
	rule.ID = id

	s.logger.Info("recurring rule created",
		zap.String("rule_id", id),
		zap.String("action", string(rule.Action)),
		zap.String("frequency", string(rule.Frequency)),
		zap.String("next_run", rule.NextRun),
	)
	span.SetAttributes(attribute.String("rule.id", id))

	return rule, nil
}

// UpdateRule replaces a rule's definition. The next occurrence is
// recomputed from the new cadence; execution history (LastRun) is kept.
func (s *RecurringService) UpdateRule(ctx context.Context, rule *domain.RecurringRule) (*domain.RecurringRule, error) {
	ctx, span := recurringTracer.Start(ctx, "RecurringService.UpdateRule")
	defer span.End()

	if rule.ID == "" {
		return nil, &domain.ErrValidation{Field: "id", Message: "required"}
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.rules.GetRule(ctx, rule.ID)
	if err != nil {
		return nil, err
	}
	rule.LastRun = existing.LastRun
	rule.CreatedAt = existing.CreatedAt

	next, err := schedule.NextRunAt(rule, time.Now())
	if err != nil {
		return nil, err
	}
	rule.NextRun = next

	if err := s.rules.UpdateRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("update rule: %w", err)
	}
	return rule, nil
}

// ToggleRule enables or disables a rule. Re-enabling recomputes the next
// occurrence from today, so the backlog accumulated while disabled is
// discarded rather than replayed.
func (s *RecurringService) ToggleRule(ctx context.Context, id string, enabled bool) (*domain.RecurringRule, error) {
	ctx, span := recurringTracer.Start(ctx, "RecurringService.ToggleRule")
	defer span.End()
	span.SetAttributes(attribute.String("rule.id", id), attribute.Bool("rule.enabled", enabled))

	rule, err := s.rules.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.Enabled == enabled {
		return rule, nil
	}

	rule.Enabled = enabled
	if enabled {
		next, err := schedule.NextRunAt(rule, time.Now())
		if err != nil {
			return nil, err
		}
		rule.NextRun = next
	}

	if err := s.rules.UpdateRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("toggle rule: %w", err)
	}

	s.logger.Info("recurring rule toggled",
		zap.String("rule_id", id),
		zap.Bool("enabled", enabled),
	)
	return rule, nil
}

func (s *RecurringService) DeleteRule(ctx context.Context, id string) error {
	ctx, span := recurringTracer.Start(ctx, "RecurringService.DeleteRule")
	defer span.End()

	return s.rules.DeleteRule(ctx, id)
}

// RunNow triggers a catch-up run outside the timer cadence and returns
// the number of occurrences executed.
func (s *RecurringService) RunNow(ctx context.Context) (int, error) {
	ctx, span := recurringTracer.Start(ctx, "RecurringService.RunNow")
	defer span.End()

	executed, err := s.engine.RunDue(ctx)
	if err != nil {
		return 0, fmt.Errorf("run due rules: %w", err)
	}
	span.SetAttributes(attribute.Int("run.executed", executed))
	return executed, nil
}
