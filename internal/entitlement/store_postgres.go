package entitlement

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

// PostgresStore persists entitlements in PostgreSQL.
type PostgresStore struct {
	db querier
}

// NewPostgres constructs a PostgreSQL-backed entitlement store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs an entitlement store bound to an open transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{db: tx}
}

// requesterArgs maps the one-of identity onto nullable columns.
func requesterArgs(r domain.Requester) (accountID, guestID any) {
	if r.IsAccount() {
		return uuid.UUID(r.Account), nil
	}
	return nil, uuid.UUID(r.Guest)
}

func (s *PostgresStore) Active(ctx context.Context, requester domain.Requester, now time.Time) (*Entitlement, error) {
	accountID, guestID := requesterArgs(requester)
	query := `
		SELECT id, account_id, guest_id, active_until, monthly_unlocks_used, cycle_original_ref, cycle_latest_ref
		FROM entitlements
		WHERE account_id IS NOT DISTINCT FROM $1
		  AND guest_id IS NOT DISTINCT FROM $2
		  AND active_until > $3
		ORDER BY active_until DESC
		LIMIT 1
	`
	ent, err := scanEntitlement(s.db.QueryRowContext(ctx, query, accountID, guestID, now))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("active entitlement: %w", err)
	}
	return ent, nil
}

// ConsumeMonthlyUnlock increments usage in one conditional statement so two
// racing callers can never both pass the cap guard.
func (s *PostgresStore) ConsumeMonthlyUnlock(ctx context.Context, requester domain.Requester, now time.Time) (bool, error) {
	accountID, guestID := requesterArgs(requester)
	query := `
		UPDATE entitlements
		SET monthly_unlocks_used = monthly_unlocks_used + 1
		WHERE id = (
			SELECT id FROM entitlements
			WHERE account_id IS NOT DISTINCT FROM $1
			  AND guest_id IS NOT DISTINCT FROM $2
			  AND active_until > $3
			ORDER BY active_until DESC
			LIMIT 1
		)
		AND active_until > $3
		AND monthly_unlocks_used < $4
	`
	res, err := s.db.ExecContext(ctx, query, accountID, guestID, now, MonthlyUnlockCap)
	if err != nil {
		return false, fmt.Errorf("consume monthly unlock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("consume monthly unlock: %w", err)
	}
	return affected == 1, nil
}

func (s *PostgresStore) Save(ctx context.Context, ent *Entitlement) error {
	if ent.ID == uuid.Nil {
		ent.ID = uuid.New()
	}
	accountID, guestID := requesterArgs(ent.Requester)
	query := `
		INSERT INTO entitlements (id, account_id, guest_id, active_until, monthly_unlocks_used, cycle_original_ref, cycle_latest_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			active_until = EXCLUDED.active_until,
			monthly_unlocks_used = EXCLUDED.monthly_unlocks_used,
			cycle_latest_ref = EXCLUDED.cycle_latest_ref
	`
	_, err := s.db.ExecContext(ctx, query,
		ent.ID,
		accountID,
		guestID,
		ent.ActiveUntil,
		ent.MonthlyUnlocksUsed,
		ent.CycleOriginalRef,
		ent.CycleLatestRef,
	)
	if err != nil {
		return fmt.Errorf("save entitlement: %w", err)
	}
	return nil
}

func scanEntitlement(row *sql.Row) (*Entitlement, error) {
	var (
		ent       Entitlement
		accountID uuid.NullUUID
		guestID   uuid.NullUUID
		original  sql.NullString
		latest    sql.NullString
	)
	if err := row.Scan(&ent.ID, &accountID, &guestID, &ent.ActiveUntil, &ent.MonthlyUnlocksUsed, &original, &latest); err != nil {
		return nil, err
	}
	if accountID.Valid {
		ent.Requester = domain.NewAccountRequester(domain.AccountID(accountID.UUID))
	} else if guestID.Valid {
		ent.Requester = domain.NewGuestRequester(domain.GuestID(guestID.UUID))
	}
	ent.CycleOriginalRef = original.String
	ent.CycleLatestRef = latest.String
	return &ent, nil
}
