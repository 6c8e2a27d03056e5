package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"tuition/internal/domain"
)

// StudentRepository defines the persistence operations for students.
type StudentRepository interface {
	// GetByID retrieves a student by ID, including associated parent IDs.
	GetByID(ctx context.Context, id int64) (*domain.Student, error)

	// GetAll retrieves all students, including associated parent IDs.
	GetAll(ctx context.Context) ([]*domain.Student, error)

	// Credit adds amount to the student's balance.
	Credit(ctx context.Context, id int64, amount decimal.Decimal) error
}

// AssociationRepository answers which parents may pay for which students.
type AssociationRepository interface {
	// IsAssociated reports whether the parent may pay for the student.
	IsAssociated(ctx context.Context, parentID, studentID int64) (bool, error)

	// CountParents returns the number of parents associated with the student.
	CountParents(ctx context.Context, studentID int64) (int, error)

	// ListParents returns the IDs of parents associated with the student, ordered by ID.
	ListParents(ctx context.Context, studentID int64) ([]int64, error)
}
