// Package sqlstoretest provides throwaway SQLite databases for tests.
package sqlstoretest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"tuition/internal/domain"
	"tuition/internal/repository/sqlstore"
)

// NewDB returns a migrated SQLite database in a per-test temp directory.
func NewDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sqlstore.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

// Fixture is the account layout used across tests: two parents sharing one
// student, plus one student owned by each parent alone.
type Fixture struct {
	ParentA       *domain.Parent
	ParentB       *domain.Parent
	SharedStudent *domain.Student
	StudentA      *domain.Student
	StudentB      *domain.Student
}

// Seed inserts the standard fixture with both parents opening at 500.
func Seed(t testing.TB, db *sql.DB) *Fixture {
	t.Helper()
	return SeedWithBalances(t, db, decimal.NewFromInt(500), decimal.NewFromInt(500))
}

// SeedWithBalances inserts the standard fixture with the given opening balances.
func SeedWithBalances(t testing.TB, db *sql.DB, balanceA, balanceB decimal.Decimal) *Fixture {
	t.Helper()

	ctx := context.Background()
	seeder := sqlstore.NewSeeder(db)

	parentA, err := seeder.InsertParent(ctx, "Parent A", balanceA)
	require.NoError(t, err)
	parentB, err := seeder.InsertParent(ctx, "Parent B", balanceB)
	require.NoError(t, err)

	shared, err := seeder.InsertStudent(ctx, "Shared Student", decimal.Zero, parentA.ID, parentB.ID)
	require.NoError(t, err)
	studentA, err := seeder.InsertStudent(ctx, "Student A", decimal.Zero, parentA.ID)
	require.NoError(t, err)
	studentB, err := seeder.InsertStudent(ctx, "Student B", decimal.Zero, parentB.ID)
	require.NoError(t, err)

	return &Fixture{
		ParentA:       parentA,
		ParentB:       parentB,
		SharedStudent: shared,
		StudentA:      studentA,
		StudentB:      studentB,
	}
}
