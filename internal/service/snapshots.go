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

var snapshotTracer = otel.Tracer("service/snapshots")

const summaryCacheKey = "net-worth-summary"

// Summary is the dashboard's aggregate view of the ledger.
type Summary struct {
	NetWorth    float64 `json:"net_worth"`
	Assets      float64 `json:"assets"`
	Liabilities float64 `json:"liabilities"`
	Investments float64 `json:"investments"`

	AccountCount    int `json:"account_count"`
	InvestmentCount int `json:"investment_count"`
}

// SnapshotService computes net worth and records snapshot history. It
// also implements port.Notifier: after the engine executes occurrences
// it re-snapshots today so charts reflect the new balances.
type SnapshotService struct {
	ledger  port.LedgerStore
	cache   port.Cache[*Summary]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewSnapshotService creates a new snapshot service.
func NewSnapshotService(ledger port.LedgerStore, cache port.Cache[*Summary], metrics *observability.Metrics, logger *zap.Logger) *SnapshotService {
	return &SnapshotService{ledger: ledger, cache: cache, metrics: metrics, logger: logger}
}

// Summary returns the current net-worth aggregate, memoized briefly to
// keep dashboard polling off the database.
func (s *SnapshotService) Summary(ctx context.Context) (*Summary, error) {
	ctx, span := snapshotTracer.Start(ctx, "SnapshotService.Summary")
	defer span.End()

	if s.cache != nil {
		if cached, ok := s.cache.Get(summaryCacheKey); ok {
			s.metrics.IncrCacheHit("summary")
			return cached, nil
		}
		s.metrics.IncrCacheMiss("summary")
	}

	summary, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(summaryCacheKey, summary)
	}
	return summary, nil
}

func (s *SnapshotService) compute(ctx context.Context) (*Summary, error) {
	accounts, err := s.ledger.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	investments, err := s.ledger.ListInvestments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}

	summary := &Summary{
		AccountCount:    len(accounts),
		InvestmentCount: len(investments),
	}
	for _, a := range accounts {
		if a.Balance >= 0 {
			summary.Assets += a.Balance
		} else {
			summary.Liabilities += -a.Balance
		}
	}
	for i := range investments {
		summary.Investments += investments[i].MarketValue()
	}
	summary.NetWorth = summary.Assets + summary.Investments - summary.Liabilities
	return summary, nil
}

// TakeSnapshot records a net-worth data point for the given date,
// replacing any earlier point on the same date.
func (s *SnapshotService) TakeSnapshot(ctx context.Context, date string) (*domain.Snapshot, error) {
	ctx, span := snapshotTracer.Start(ctx, "SnapshotService.TakeSnapshot")
	defer span.End()
	span.SetAttributes(attribute.String("snapshot.date", date))

	if _, err := schedule.ParseDate(date); err != nil {
		return nil, err
	}

	summary, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	snap := &domain.Snapshot{
		Date:        date,
		NetWorth:    summary.NetWorth,
		Assets:      summary.Assets,
		Liabilities: summary.Liabilities,
		Investments: summary.Investments,
	}
	if err := s.ledger.AppendSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("append snapshot: %w", err)
	}
	return snap, nil
}

// History returns snapshots in the inclusive date range, oldest first.
// Empty bounds are open-ended.
func (s *SnapshotService) History(ctx context.Context, from, to string) ([]domain.Snapshot, error) {
	ctx, span := snapshotTracer.Start(ctx, "SnapshotService.History")
	defer span.End()

	return s.ledger.ListSnapshots(ctx, from, to)
}

func (s *SnapshotService) Latest(ctx context.Context) (*domain.Snapshot, error) {
	ctx, span := snapshotTracer.Start(ctx, "SnapshotService.Latest")
	defer span.End()

	return s.ledger.LatestSnapshot(ctx)
}

// RulesExecuted implements port.Notifier. Balances just changed, so the
// memoized summary is stale and today's snapshot needs refreshing.
func (s *SnapshotService) RulesExecuted(ctx context.Context, executed int) {
	if s.cache != nil {
		s.cache.Delete(summaryCacheKey)
	}

	today := schedule.FormatDate(schedule.Midnight(time.Now()))
	if _, err := s.TakeSnapshot(ctx, today); err != nil {
		s.logger.Warn("post-run snapshot failed",
			zap.Int("executed", executed),
			zap.Error(err),
		)
	}
}
