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

// StudentRepository is a SQL implementation of repository.StudentRepository.
type StudentRepository struct {
	q       Querier
	dialect Dialect
}

// NewStudentRepository creates a new student repository.
func NewStudentRepository(db *sql.DB, dialect Dialect) *StudentRepository {
	return &StudentRepository{q: db, dialect: dialect}
}

// NewStudentRepositoryWithTx creates a student repository using a transaction.
func NewStudentRepositoryWithTx(tx *sql.Tx, dialect Dialect) *StudentRepository {
	return &StudentRepository{q: tx, dialect: dialect}
}

// GetByID retrieves a student by ID, including associated parent IDs.
func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*domain.Student, error) {
	query := `SELECT id, name, balance FROM students WHERE id = $1`

	var student domain.Student
	err := r.q.QueryRowContext(ctx, query, id).Scan(&student.ID, &student.Name, &student.Balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}

	parentIDs, err := listParentIDs(ctx, r.q, id)
	if err != nil {
		return nil, err
	}
	student.ParentIDs = parentIDs

	return &student, nil
}

// GetAll retrieves all students, including associated parent IDs.
func (r *StudentRepository) GetAll(ctx context.Context) ([]*domain.Student, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, name, balance FROM students ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}

	var students []*domain.Student
	byID := make(map[int64]*domain.Student)
	for rows.Next() {
		var student domain.Student
		if err := rows.Scan(&student.ID, &student.Name, &student.Balance); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, &student)
		byID[student.ID] = &student
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate students: %w", err)
	}

	// Rows must be closed before the next query: lib/pq cannot interleave result sets.
	links, err := r.q.QueryContext(ctx, `SELECT student_id, parent_id FROM parent_students ORDER BY parent_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list associations: %w", err)
	}
	defer links.Close()

	for links.Next() {
		var studentID, parentID int64
		if err := links.Scan(&studentID, &parentID); err != nil {
			return nil, fmt.Errorf("failed to scan association: %w", err)
		}
		if student, ok := byID[studentID]; ok {
			student.ParentIDs = append(student.ParentIDs, parentID)
		}
	}

	return students, links.Err()
}

// Credit adds amount to the student's balance.
func (r *StudentRepository) Credit(ctx context.Context, id int64, amount decimal.Decimal) error {
	if r.dialect == DialectSQLite {
		return r.creditInTx(ctx, id, amount)
	}

	query := `UPDATE students SET balance = balance + $1 WHERE id = $2`

	result, err := r.q.ExecContext(ctx, query, amount, id)
	if err != nil {
		return fmt.Errorf("failed to credit student: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *StudentRepository) creditInTx(ctx context.Context, id int64, amount decimal.Decimal) error {
	var balance decimal.Decimal
	err := r.q.QueryRowContext(ctx, `SELECT balance FROM students WHERE id = $1`, id).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("failed to get student balance: %w", err)
	}

	_, err = r.q.ExecContext(ctx,
		`UPDATE students SET balance = $1 WHERE id = $2`,
		balance.Add(amount), id,
	)
	if err != nil {
		return fmt.Errorf("failed to credit student: %w", err)
	}

	return nil
}

// Ensure StudentRepository implements repository.StudentRepository.
var _ repository.StudentRepository = (*StudentRepository)(nil)
