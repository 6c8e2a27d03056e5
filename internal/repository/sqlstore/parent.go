package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"tuition/internal/domain"
	"tuition/internal/repository"
)

// ParentRepository is a SQL implementation of repository.ParentRepository.
type ParentRepository struct {
	q       Querier
	dialect Dialect
}

// NewParentRepository creates a new parent repository.
func NewParentRepository(db *sql.DB, dialect Dialect) *ParentRepository {
	return &ParentRepository{q: db, dialect: dialect}
}

// NewParentRepositoryWithTx creates a parent repository using a transaction.
func NewParentRepositoryWithTx(tx *sql.Tx, dialect Dialect) *ParentRepository {
	return &ParentRepository{q: tx, dialect: dialect}
}

// GetByID retrieves a parent by ID.
func (r *ParentRepository) GetByID(ctx context.Context, id int64) (*domain.Parent, error) {
	query := `SELECT id, name, balance FROM parents WHERE id = $1`

	var parent domain.Parent
	err := r.q.QueryRowContext(ctx, query, id).Scan(&parent.ID, &parent.Name, &parent.Balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get parent: %w", err)
	}

	return &parent, nil
}

// GetAll retrieves all parents.
func (r *ParentRepository) GetAll(ctx context.Context) ([]*domain.Parent, error) {
	query := `SELECT id, name, balance FROM parents ORDER BY id`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list parents: %w", err)
	}
	defer rows.Close()

	var parents []*domain.Parent
	for rows.Next() {
		var parent domain.Parent
		if err := rows.Scan(&parent.ID, &parent.Name, &parent.Balance); err != nil {
			return nil, fmt.Errorf("failed to scan parent: %w", err)
		}
		parents = append(parents, &parent)
	}

	return parents, rows.Err()
}

// Debit subtracts amount from the parent's balance if the balance covers it.
// On PostgreSQL the guard lives in the UPDATE itself so that a concurrent
// debit committed after our read is re-checked under the row lock. On SQLite
// the check runs in Go and relies on the enclosing transaction holding the
// write lock (_txlock=immediate).
func (r *ParentRepository) Debit(ctx context.Context, id int64, amount decimal.Decimal) error {
	if r.dialect == DialectSQLite {
		return r.debitInTx(ctx, id, amount)
	}

	query := `UPDATE parents SET balance = balance - $1 WHERE id = $2 AND balance >= $1`

	result, err := r.q.ExecContext(ctx, query, amount, id)
	if err != nil {
		return fmt.Errorf("failed to debit parent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		var exists int
		err := r.q.QueryRowContext(ctx, `SELECT 1 FROM parents WHERE id = $1`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check parent existence: %w", err)
		}
		return repository.ErrInsufficientFunds
	}

	return nil
}

func (r *ParentRepository) debitInTx(ctx context.Context, id int64, amount decimal.Decimal) error {
	parent, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !parent.CanCover(amount) {
		return repository.ErrInsufficientFunds
	}

	_, err = r.q.ExecContext(ctx,
		`UPDATE parents SET balance = $1 WHERE id = $2`,
		parent.Balance.Sub(amount), id,
	)
	if err != nil {
		return fmt.Errorf("failed to debit parent: %w", err)
	}

	return nil
}

// Ensure ParentRepository implements repository.ParentRepository.
var _ repository.ParentRepository = (*ParentRepository)(nil)
