package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/credit"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/entitlement"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/retention"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/unlock"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/vehicle/snapshot"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
	dErrors "github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain-errors"
)

const defaultUnlockTxTimeout = 10 * time.Second

// unlockPostgresTx runs the unlock store bundle inside one database
// transaction. The requester argument only matters to the in-memory boundary;
// here isolation comes from the database.
type unlockPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newUnlockPostgresTx(db *sql.DB) *unlockPostgresTx {
	return &unlockPostgresTx{db: db}
}

func (t *unlockPostgresTx) RunInTx(ctx context.Context, _ domain.Requester, fn func(s unlock.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultUnlockTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stores := unlock.Stores{
		Records:      unlock.NewPostgresRecordsTx(tx),
		Snapshots:    snapshot.NewPostgresTx(tx),
		Entitlements: entitlement.NewPostgresTx(tx),
		Credits:      credit.NewPostgresTx(tx),
		Retention:    retention.NewPostgresTx(tx),
	}
	if err := fn(stores); err != nil {
		return err
	}

	return tx.Commit()
}
