package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/finchapp/finch/internal/domain"

	"github.com/google/uuid"
)

// AppendSnapshot records a net-worth data point. One snapshot per date:
// a second append on the same date overwrites the earlier value, so
// repeated catch-up runs in one day don't litter the chart.
func (s *Store) AppendSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, date, net_worth, assets, liabilities, investments, created_at)
		 VALUES (?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO NOTHING`,
		snap.ID, snap.Date, snap.NetWorth, snap.Assets, snap.Liabilities,
		snap.Investments, snap.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	// Collapse same-day snapshots down to the newest one.
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE date = ? AND id != ?`, snap.Date, snap.ID)
	if err != nil {
		return fmt.Errorf("prune same-day snapshots: %w", err)
	}
	return nil
}

// ListSnapshots returns snapshots in a date range, oldest first. Empty
// bounds are open-ended.
func (s *Store) ListSnapshots(ctx context.Context, from, to string) ([]domain.Snapshot, error) {
	q := "SELECT id, date, net_worth, assets, liabilities, investments, created_at FROM snapshots WHERE 1=1"
	var args []any
	if from != "" {
		q += " AND date >= ?"
		args = append(args, from)
	}
	if to != "" {
		q += " AND date <= ?"
		args = append(args, to)
	}
	q += " ORDER BY date"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}
	return out, rows.Err()
}

func (s *Store) LatestSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	snap, err := scanSnapshot(s.db.QueryRowContext(ctx,
		`SELECT id, date, net_worth, assets, liabilities, investments, created_at
		 FROM snapshots ORDER BY date DESC LIMIT 1`))
	if err == sql.ErrNoRows {
		return nil, &domain.ErrNotFound{Resource: "snapshot", ID: "latest"}
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func scanSnapshot(row interface{ Scan(...any) error }) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	var createdAt string
	err := row.Scan(&snap.ID, &snap.Date, &snap.NetWorth, &snap.Assets,
		&snap.Liabilities, &snap.Investments, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	snap.CreatedAt = timeOrNow(createdAt)
	return &snap, nil
}
