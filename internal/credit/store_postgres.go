package credit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists ledger entries in PostgreSQL.
type PostgresStore struct {
	db querier
}

// NewPostgres constructs a PostgreSQL-backed ledger store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs a ledger store bound to an open transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{db: tx}
}

func requesterArgs(r domain.Requester) (accountID, guestID any) {
	if r.IsAccount() {
		return uuid.UUID(r.Account), nil
	}
	return nil, uuid.UUID(r.Guest)
}

func (s *PostgresStore) Balance(ctx context.Context, requester domain.Requester) (int, error) {
	accountID, guestID := requesterArgs(requester)
	query := `
		SELECT COALESCE(SUM(delta), 0)
		FROM credit_ledger
		WHERE account_id IS NOT DISTINCT FROM $1
		  AND guest_id IS NOT DISTINCT FROM $2
	`
	var balance int
	if err := s.db.QueryRowContext(ctx, query, accountID, guestID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("credit balance: %w", err)
	}
	return balance, nil
}

func (s *PostgresStore) Append(ctx context.Context, entry *Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	accountID, guestID := requesterArgs(entry.Requester)
	query := `
		INSERT INTO credit_ledger (id, account_id, guest_id, delta, reason, transaction_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		accountID,
		guestID,
		entry.Delta,
		entry.Reason,
		entry.TransactionID,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}
