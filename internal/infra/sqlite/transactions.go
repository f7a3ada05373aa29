package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/finchapp/finch/internal/domain"

	"github.com/google/uuid"
)

func (s *Store) AppendTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, account_id, type, previous_balance,
		 new_balance, amount, reason, date, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		tx.ID, tx.AccountID, tx.Type, tx.PreviousBalance, tx.NewBalance,
		tx.Amount, nullStr(tx.Reason), tx.Date, tx.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ListTransactions returns transactions newest first. An empty
// accountID lists across all accounts; limit <= 0 means no limit.
func (s *Store) ListTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	q := `SELECT id, account_id, type, previous_balance, new_balance, amount,
	      reason, date, created_at FROM transactions`
	var args []any
	if accountID != "" {
		q += " WHERE account_id = ?"
		args = append(args, accountID)
	}
	q += " ORDER BY date DESC, created_at DESC"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var reason sql.NullString
		var createdAt string
		if err := rows.Scan(&tx.ID, &tx.AccountID, &tx.Type, &tx.PreviousBalance,
			&tx.NewBalance, &tx.Amount, &reason, &tx.Date, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Reason = reason.String
		tx.CreatedAt = timeOrNow(createdAt)
		out = append(out, tx)
	}
	return out, rows.Err()
}
