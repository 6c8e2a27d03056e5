package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"tuition/internal/domain"
)

// ParentRepository defines the persistence operations for parents.
type ParentRepository interface {
	// GetByID retrieves a parent by ID.
	GetByID(ctx context.Context, id int64) (*domain.Parent, error)

	// GetAll retrieves all parents.
	GetAll(ctx context.Context) ([]*domain.Parent, error)

	// Debit subtracts amount from the parent's balance only if the balance covers it.
	// Returns ErrInsufficientFunds when it does not and ErrNotFound for an unknown parent.
	Debit(ctx context.Context, id int64, amount decimal.Decimal) error
}
