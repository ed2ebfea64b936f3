package retention

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists retention rows in PostgreSQL.
type PostgresStore struct {
	db querier
}

// NewPostgres constructs a PostgreSQL-backed retention store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs a retention store bound to an open transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{db: tx}
}

func (s *PostgresStore) Get(ctx context.Context, reg domain.Registration) (*Status, error) {
	query := `
		SELECT registration, status_code, last_checked_at, retry_after, free_retry_used
		FROM retention_status
		WHERE registration = $1
	`
	var (
		status Status
		regStr string
	)
	err := s.db.QueryRowContext(ctx, query, reg.String()).Scan(
		&regStr,
		&status.StatusCode,
		&status.LastCheckedAt,
		&status.RetryAfter,
		&status.FreeRetryUsed,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get retention status: %w", err)
	}
	status.Registration = domain.Registration(regStr)
	return &status, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, status *Status) error {
	// free_retry_used is intentionally not in the update list: repeated
	// retention reports must not reset a consumed retry.
	query := `
		INSERT INTO retention_status (registration, status_code, last_checked_at, retry_after, free_retry_used)
		VALUES ($1, $2, $3, $4, FALSE)
		ON CONFLICT (registration) DO UPDATE SET
			status_code = EXCLUDED.status_code,
			last_checked_at = EXCLUDED.last_checked_at,
			retry_after = EXCLUDED.retry_after
	`
	_, err := s.db.ExecContext(ctx, query,
		status.Registration.String(),
		status.StatusCode,
		status.LastCheckedAt,
		status.RetryAfter,
	)
	if err != nil {
		return fmt.Errorf("upsert retention status: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkFreeRetryUsed(ctx context.Context, reg domain.Registration) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE retention_status SET free_retry_used = TRUE WHERE registration = $1`,
		reg.String(),
	)
	if err != nil {
		return fmt.Errorf("mark free retry used: %w", err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, reg domain.Registration) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM retention_status WHERE registration = $1`,
		reg.String(),
	)
	if err != nil {
		return fmt.Errorf("clear retention status: %w", err)
	}
	return nil
}
