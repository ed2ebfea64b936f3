package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
)

// querier abstracts *sql.DB and *sql.Tx so the same store runs standalone or
// inside the unlock transaction boundary.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists snapshots in PostgreSQL. Pure I/O; the fingerprint
// comparison that decides whether to create a generation lives in the service.
type PostgresStore struct {
	db querier
}

// NewPostgres constructs a PostgreSQL-backed snapshot store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs a snapshot store bound to an open transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{db: tx}
}

func (s *PostgresStore) MostRecent(ctx context.Context, reg domain.Registration) (*Snapshot, error) {
	query := `
		SELECT id, registration, spec_document, fingerprint, engine_code, tyre_data, created_at
		FROM spec_snapshots
		WHERE registration = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	snap, err := scanSnapshot(s.db.QueryRowContext(ctx, query, reg.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("most recent snapshot: %w", err)
	}
	return snap, nil
}

func (s *PostgresStore) Create(ctx context.Context, snap *Snapshot) error {
	if snap.ID == uuid.Nil {
		snap.ID = uuid.New()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}
	doc, err := json.Marshal(snap.SpecDocument)
	if err != nil {
		return fmt.Errorf("encode spec document: %w", err)
	}
	var tyres []byte
	if snap.TyreData != nil {
		tyres, err = json.Marshal(snap.TyreData)
		if err != nil {
			return fmt.Errorf("encode tyre data: %w", err)
		}
	}
	query := `
		INSERT INTO spec_snapshots (id, registration, spec_document, fingerprint, engine_code, tyre_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		snap.ID,
		snap.Registration.String(),
		doc,
		snap.Fingerprint.String(),
		snap.EngineCode,
		tyres,
		snap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	query := `
		SELECT id, registration, spec_document, fingerprint, engine_code, tyre_data, created_at
		FROM spec_snapshots
		WHERE id = $1
	`
	snap, err := scanSnapshot(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return snap, nil
}

func scanSnapshot(row *sql.Row) (*Snapshot, error) {
	var (
		snap       Snapshot
		reg        string
		fp         string
		engineCode sql.NullString
		doc        []byte
		tyres      []byte
	)
	if err := row.Scan(&snap.ID, &reg, &doc, &fp, &engineCode, &tyres, &snap.CreatedAt); err != nil {
		return nil, err
	}
	snap.Registration = domain.Registration(reg)
	snap.Fingerprint = domain.Fingerprint(fp)
	snap.EngineCode = engineCode.String
	if err := json.Unmarshal(doc, &snap.SpecDocument); err != nil {
		return nil, fmt.Errorf("decode spec document: %w", err)
	}
	if len(tyres) > 0 {
		if err := json.Unmarshal(tyres, &snap.TyreData); err != nil {
			return nil, fmt.Errorf("decode tyre data: %w", err)
		}
	}
	return &snap, nil
}
