package unlock

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/platform/sentinel"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresRecordStore persists unlock records in PostgreSQL. Uniqueness is
// enforced by constraints on (account_id, guest_id, registration) and on
// external_transaction_id; Insert surfaces conflicts as inserted=false.
type PostgresRecordStore struct {
	db querier
}

// NewPostgresRecords constructs a PostgreSQL-backed unlock record store.
func NewPostgresRecords(db *sql.DB) *PostgresRecordStore {
	return &PostgresRecordStore{db: db}
}

// NewPostgresRecordsTx constructs a record store bound to an open transaction.
func NewPostgresRecordsTx(tx *sql.Tx) *PostgresRecordStore {
	return &PostgresRecordStore{db: tx}
}

func requesterArgs(r domain.Requester) (accountID, guestID any) {
	if r.IsAccount() {
		return uuid.UUID(r.Account), nil
	}
	return nil, uuid.UUID(r.Guest)
}

const recordColumns = `id, account_id, guest_id, registration, snapshot_id, unlock_type, source_channel,
	external_transaction_id, product_id, platform, entitlement_cycle_ref, created_at`

func (s *PostgresRecordStore) FindByTransactionID(ctx context.Context, transactionID string) (*Record, error) {
	if transactionID == "" {
		return nil, nil
	}
	query := `SELECT ` + recordColumns + ` FROM unlock_records WHERE external_transaction_id = $1`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, transactionID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find unlock by transaction: %w", err)
	}
	return rec, nil
}

func (s *PostgresRecordStore) Find(ctx context.Context, requester domain.Requester, reg domain.Registration) (*Record, error) {
	accountID, guestID := requesterArgs(requester)
	query := `
		SELECT ` + recordColumns + `
		FROM unlock_records
		WHERE account_id IS NOT DISTINCT FROM $1
		  AND guest_id IS NOT DISTINCT FROM $2
		  AND registration = $3
	`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, accountID, guestID, reg.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find unlock record: %w", err)
	}
	return rec, nil
}

func (s *PostgresRecordStore) Insert(ctx context.Context, rec *Record) (bool, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	accountID, guestID := requesterArgs(rec.Requester)
	query := `
		INSERT INTO unlock_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), $12)
		ON CONFLICT DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		rec.ID,
		accountID,
		guestID,
		rec.Registration.String(),
		rec.SnapshotID,
		string(rec.UnlockType),
		string(rec.SourceChannel),
		rec.ExternalTransactionID,
		rec.ProductID,
		string(rec.Platform),
		rec.EntitlementCycleRef,
		rec.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert unlock record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert unlock record: %w", err)
	}
	return affected == 1, nil
}

func (s *PostgresRecordStore) Update(ctx context.Context, rec *Record) error {
	query := `
		UPDATE unlock_records
		SET snapshot_id = $2,
		    unlock_type = $3,
		    source_channel = $4,
		    external_transaction_id = NULLIF($5, ''),
		    product_id = NULLIF($6, ''),
		    platform = NULLIF($7, ''),
		    entitlement_cycle_ref = NULLIF($8, '')
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.SnapshotID,
		string(rec.UnlockType),
		string(rec.SourceChannel),
		rec.ExternalTransactionID,
		rec.ProductID,
		string(rec.Platform),
		rec.EntitlementCycleRef,
	)
	if err != nil {
		return fmt.Errorf("update unlock record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update unlock record: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanRecord(row *sql.Row) (*Record, error) {
	var (
		rec        Record
		accountID  uuid.NullUUID
		guestID    uuid.NullUUID
		reg        string
		unlockType string
		channel    string
		txID       sql.NullString
		productID  sql.NullString
		platform   sql.NullString
		cycleRef   sql.NullString
	)
	err := row.Scan(&rec.ID, &accountID, &guestID, &reg, &rec.SnapshotID, &unlockType, &channel,
		&txID, &productID, &platform, &cycleRef, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	if accountID.Valid {
		rec.Requester = domain.NewAccountRequester(domain.AccountID(accountID.UUID))
	} else if guestID.Valid {
		rec.Requester = domain.NewGuestRequester(domain.GuestID(guestID.UUID))
	}
	rec.Registration = domain.Registration(reg)
	rec.UnlockType = domain.UnlockSource(unlockType)
	rec.SourceChannel = SourceChannel(channel)
	rec.ExternalTransactionID = txID.String
	rec.ProductID = productID.String
	rec.Platform = domain.Platform(platform.String)
	rec.EntitlementCycleRef = cycleRef.String
	return &rec, nil
}
