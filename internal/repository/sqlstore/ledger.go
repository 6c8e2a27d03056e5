package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"tuition/internal/domain"
)

// Ledger writes payment records in their own transaction on the pool.
// It is never handed a caller's *sql.Tx, so a record it commits survives a
// rollback of whatever unit of work triggered it.
type Ledger struct {
	db *sql.DB
}

// NewLedger creates a new Ledger.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Record commits the payment record independently and returns its ID.
func (l *Ledger) Record(ctx context.Context, payment *domain.Payment) (id int64, err error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin ledger transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = NewPaymentRepositoryWithTx(tx).Create(ctx, payment); err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit ledger transaction: %w", err)
	}

	return payment.ID, nil
}
