// Package sqlstore implements the repository interfaces over database/sql.
// Queries run unchanged against PostgreSQL (lib/pq, nrpq) and SQLite
// (modernc.org/sqlite); only balance updates depend on the Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"tuition/internal/repository"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)

	_ repository.TxManager  = (*Store)(nil)
	_ repository.UnitOfWork = (*unitOfWork)(nil)
)

// Store opens transactions on a connection pool.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// NewStore creates a new Store.
func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// WithTx runs fn in a transaction with repositories bound to it.
// The transaction is committed if fn returns nil and rolled back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(uow repository.UnitOfWork) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(newUnitOfWork(tx, s.dialect)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

type unitOfWork struct {
	parents      *ParentRepository
	students     *StudentRepository
	associations *AssociationRepository
	payments     *PaymentRepository
}

func newUnitOfWork(tx *sql.Tx, dialect Dialect) *unitOfWork {
	return &unitOfWork{
		parents:      NewParentRepositoryWithTx(tx, dialect),
		students:     NewStudentRepositoryWithTx(tx, dialect),
		associations: NewAssociationRepositoryWithTx(tx),
		payments:     NewPaymentRepositoryWithTx(tx),
	}
}

func (u *unitOfWork) Parents() repository.ParentRepository           { return u.parents }
func (u *unitOfWork) Students() repository.StudentRepository         { return u.students }
func (u *unitOfWork) Associations() repository.AssociationRepository { return u.associations }
func (u *unitOfWork) Payments() repository.PaymentRepository         { return u.payments }
