package repository

import (
	"context"

	"tuition/internal/domain"
)

// PaymentFilter narrows a payment listing. Zero fields are ignored.
type PaymentFilter struct {
	ParentID  int64
	StudentID int64
}

// PaymentRepository defines the persistence operations for payment records.
// Records are append-only.
type PaymentRepository interface {
	// Create persists a new payment record and sets payment.ID.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves a payment record by ID.
	GetByID(ctx context.Context, id int64) (*domain.Payment, error)

	// List retrieves payment records matching the filter, oldest first.
	List(ctx context.Context, filter PaymentFilter) ([]*domain.Payment, error)
}
