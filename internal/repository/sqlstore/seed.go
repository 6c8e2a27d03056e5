package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"tuition/internal/domain"
)

// Seeder inserts accounts directly. Account management is not exposed by the
// service; this exists for local environments and tests.
type Seeder struct {
	db *sql.DB
}

// NewSeeder creates a new Seeder.
func NewSeeder(db *sql.DB) *Seeder {
	return &Seeder{db: db}
}

// InsertParent creates a parent with the given opening balance.
func (s *Seeder) InsertParent(ctx context.Context, name string, balance decimal.Decimal) (*domain.Parent, error) {
	parent := &domain.Parent{Name: name, Balance: balance}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO parents (name, balance) VALUES ($1, $2) RETURNING id`,
		name, balance,
	).Scan(&parent.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert parent: %w", err)
	}

	return parent, nil
}

// InsertStudent creates a student linked to the given parents.
func (s *Seeder) InsertStudent(ctx context.Context, name string, balance decimal.Decimal, parentIDs ...int64) (student *domain.Student, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	student = &domain.Student{Name: name, Balance: balance, ParentIDs: parentIDs}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO students (name, balance) VALUES ($1, $2) RETURNING id`,
		name, balance,
	).Scan(&student.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert student: %w", err)
	}

	for _, parentID := range parentIDs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO parent_students (parent_id, student_id) VALUES ($1, $2)`,
			parentID, student.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to link parent %d: %w", parentID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return student, nil
}

// SeedDemo inserts two parents sharing one student plus one student each,
// unless parents already exist.
func (s *Seeder) SeedDemo(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM parents`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count parents: %w", err)
	}
	if count > 0 {
		return nil
	}

	opening := decimal.NewFromInt(500)

	parentA, err := s.InsertParent(ctx, "Parent A", opening)
	if err != nil {
		return err
	}
	parentB, err := s.InsertParent(ctx, "Parent B", opening)
	if err != nil {
		return err
	}

	if _, err := s.InsertStudent(ctx, "Shared Student", decimal.Zero, parentA.ID, parentB.ID); err != nil {
		return err
	}
	if _, err := s.InsertStudent(ctx, "Student A", decimal.Zero, parentA.ID); err != nil {
		return err
	}
	if _, err := s.InsertStudent(ctx, "Student B", decimal.Zero, parentB.ID); err != nil {
		return err
	}

	return nil
}
