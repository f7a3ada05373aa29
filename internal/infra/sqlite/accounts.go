package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/finchapp/finch/internal/domain"

	"github.com/google/uuid"
)

func (s *Store) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, type, balance, currency, sort_order, created_at
		 FROM accounts ORDER BY sort_order, created_at`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		var a domain.Account
		var createdAt string
		if err := rows.Scan(&a.ID, &a.Name, &a.Type, &a.Balance, &a.Currency, &a.SortOrder, &createdAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.CreatedAt = timeOrNow(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	var a domain.Account
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, type, balance, currency, sort_order, created_at
		 FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.Name, &a.Type, &a.Balance, &a.Currency, &a.SortOrder, &createdAt)
	if err == sql.ErrNoRows {
		return nil, &domain.ErrNotFound{Resource: "account", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	a.CreatedAt = timeOrNow(createdAt)
	return &a, nil
}

func (s *Store) CreateAccount(ctx context.Context, account *domain.Account) (string, error) {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name, type, balance, currency, sort_order, created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		account.ID, account.Name, account.Type, account.Balance,
		account.Currency, account.SortOrder, account.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert account: %w", err)
	}
	return account.ID, nil
}

func (s *Store) SaveAccount(ctx context.Context, account *domain.Account) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET name=?, type=?, balance=?, currency=?, sort_order=?
		 WHERE id=?`,
		account.Name, account.Type, account.Balance, account.Currency,
		account.SortOrder, account.ID,
	)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "account", ID: account.ID}
	}
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "account", ID: id}
	}
	return nil
}
