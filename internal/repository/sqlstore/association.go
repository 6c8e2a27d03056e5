package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tuition/internal/repository"
)

// AssociationRepository is a SQL implementation of repository.AssociationRepository
// backed by the parent_students join table.
type AssociationRepository struct {
	q Querier
}

// NewAssociationRepository creates a new association repository.
func NewAssociationRepository(db *sql.DB) *AssociationRepository {
	return &AssociationRepository{q: db}
}

// NewAssociationRepositoryWithTx creates an association repository using a transaction.
func NewAssociationRepositoryWithTx(tx *sql.Tx) *AssociationRepository {
	return &AssociationRepository{q: tx}
}

// IsAssociated reports whether the parent may pay for the student.
func (r *AssociationRepository) IsAssociated(ctx context.Context, parentID, studentID int64) (bool, error) {
	query := `SELECT 1 FROM parent_students WHERE parent_id = $1 AND student_id = $2`

	var one int
	err := r.q.QueryRowContext(ctx, query, parentID, studentID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check association: %w", err)
	}

	return true, nil
}

// CountParents returns the number of parents associated with the student.
func (r *AssociationRepository) CountParents(ctx context.Context, studentID int64) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM parent_students WHERE student_id = $1`, studentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count parents: %w", err)
	}

	return count, nil
}

// ListParents returns the IDs of parents associated with the student.
func (r *AssociationRepository) ListParents(ctx context.Context, studentID int64) ([]int64, error) {
	return listParentIDs(ctx, r.q, studentID)
}

func listParentIDs(ctx context.Context, q Querier, studentID int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT parent_id FROM parent_students WHERE student_id = $1 ORDER BY parent_id`, studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list parents: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan parent id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Ensure AssociationRepository implements repository.AssociationRepository.
var _ repository.AssociationRepository = (*AssociationRepository)(nil)
