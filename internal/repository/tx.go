package repository

import "context"

// UnitOfWork exposes repositories bound to one database transaction.
type UnitOfWork interface {
	Parents() ParentRepository
	Students() StudentRepository
	Associations() AssociationRepository
	Payments() PaymentRepository
}

// TxManager runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
type TxManager interface {
	WithTx(ctx context.Context, fn func(uow UnitOfWork) error) error
}
