package service_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuition/internal/domain"
	"tuition/internal/metrics"
	"tuition/internal/repository"
	"tuition/internal/repository/sqlstore"
	"tuition/internal/repository/sqlstore/sqlstoretest"
	"tuition/internal/service"
)

type harness struct {
	db  *sql.DB
	fx  *sqlstoretest.Fixture
	svc *service.PaymentService
}

func newHarness(t *testing.T, balanceA, balanceB string) *harness {
	t.Helper()

	db := sqlstoretest.NewDB(t)
	fx := sqlstoretest.SeedWithBalances(t, db, decimal.RequireFromString(balanceA), decimal.RequireFromString(balanceB))

	return &harness{
		db:  db,
		fx:  fx,
		svc: newService(db, sqlstore.NewStore(db, sqlstore.DialectSQLite), sqlstore.NewLedger(db)),
	}
}

func newService(db *sql.DB, tx repository.TxManager, ledger service.LedgerWriter) *service.PaymentService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return service.NewPaymentService(service.PaymentServiceDeps{
		TxManager:    tx,
		Ledger:       ledger,
		Payments:     sqlstore.NewPaymentRepository(db),
		Policy:       service.DefaultSurchargePolicy(),
		Notification: service.NewNotificationService(logger),
		Metrics:      metrics.New(),
		Logger:       logger,
	})
}

func (h *harness) pay(parentID, studentID int64, amount string) (*domain.Payment, error) {
	return h.svc.ProcessPayment(context.Background(), service.ProcessPaymentRequest{
		ParentID:  parentID,
		StudentID: studentID,
		Amount:    decimal.RequireFromString(amount),
	})
}

func (h *harness) parentBalance(t *testing.T, id int64) decimal.Decimal {
	t.Helper()
	parent, err := sqlstore.NewParentRepository(h.db, sqlstore.DialectSQLite).GetByID(context.Background(), id)
	require.NoError(t, err)
	return parent.Balance
}

func (h *harness) studentBalance(t *testing.T, id int64) decimal.Decimal {
	t.Helper()
	student, err := sqlstore.NewStudentRepository(h.db, sqlstore.DialectSQLite).GetByID(context.Background(), id)
	require.NoError(t, err)
	return student.Balance
}

func (h *harness) records(t *testing.T) []*domain.Payment {
	t.Helper()
	payments, err := sqlstore.NewPaymentRepository(h.db).List(context.Background(), repository.PaymentFilter{})
	require.NoError(t, err)
	return payments
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestProcessPayment_SinglePayer(t *testing.T) {
	h := newHarness(t, "500", "500")

	payment, err := h.pay(h.fx.ParentA.ID, h.fx.StudentA.ID, "100")
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusSuccess, payment.Status)
	assert.Equal(t, domain.ReasonNone, payment.Reason)
	assert.Equal(t, "Payment processed successfully.", payment.Description)
	assert.NotZero(t, payment.ID)
	assert.NotEmpty(t, payment.Reference)
	assertMoney(t, "105", payment.ChargedAmount)

	assertMoney(t, "395", h.parentBalance(t, h.fx.ParentA.ID))
	assertMoney(t, "500", h.parentBalance(t, h.fx.ParentB.ID))
	assertMoney(t, "100", h.studentBalance(t, h.fx.StudentA.ID))

	records := h.records(t)
	require.Len(t, records, 1)
	assert.Equal(t, payment.ID, records[0].ID)
	assert.Equal(t, domain.PaymentStatusSuccess, records[0].Status)
	assertMoney(t, "100", records[0].Amount)
	assert.WithinDuration(t, payment.CreatedAt, records[0].CreatedAt, time.Second)
}

func TestProcessPayment_SharedStudentSplitsCharge(t *testing.T) {
	for _, payer := range []string{"parent A", "parent B"} {
		t.Run(payer, func(t *testing.T) {
			h := newHarness(t, "500", "500")
			parentID := h.fx.ParentA.ID
			if payer == "parent B" {
				parentID = h.fx.ParentB.ID
			}

			payment, err := h.pay(parentID, h.fx.SharedStudent.ID, "100")
			require.NoError(t, err)

			assert.Equal(t, parentID, payment.ParentID)
			assertMoney(t, "105", payment.ChargedAmount)
			assertMoney(t, "447.5", h.parentBalance(t, h.fx.ParentA.ID))
			assertMoney(t, "447.5", h.parentBalance(t, h.fx.ParentB.ID))
			assertMoney(t, "100", h.studentBalance(t, h.fx.SharedStudent.ID))
			assert.Len(t, h.records(t), 1)
		})
	}
}

func TestProcessPayment_FractionalChargesDrainBalanceExactly(t *testing.T) {
	tests := []struct {
		amount string
		times  int64
	}{
		{"1", 3},
		{"0.6", 3},
		{"2", 3},
		{"3", 3},
		{"7", 4},
		{"11", 3},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s x%d", tt.amount, tt.times), func(t *testing.T) {
			amount := decimal.RequireFromString(tt.amount)
			opening := amount.Mul(decimal.RequireFromString("1.05")).Mul(decimal.NewFromInt(tt.times))
			h := newHarness(t, opening.String(), "0")

			for i := int64(1); i <= tt.times; i++ {
				_, err := h.pay(h.fx.ParentA.ID, h.fx.StudentA.ID, tt.amount)
				require.NoError(t, err, "payment %d/%d from opening %s", i, tt.times, opening)
			}

			assert.True(t, h.parentBalance(t, h.fx.ParentA.ID).IsZero(), "balance %s", h.parentBalance(t, h.fx.ParentA.ID))
			assertMoney(t, amount.Mul(decimal.NewFromInt(tt.times)).String(), h.studentBalance(t, h.fx.StudentA.ID))

			_, err := h.pay(h.fx.ParentA.ID, h.fx.StudentA.ID, "0.01")
			assert.ErrorIs(t, err, service.ErrInsufficientBalance)
		})
	}
}

func TestProcessPayment_FractionalSplitDrainsBothParents(t *testing.T) {
	// 0.21 * 1.05 / 2 = 0.11025 per parent, three times.
	h := newHarness(t, "0.33075", "0.33075")

	for i := 0; i < 3; i++ {
		_, err := h.pay(h.fx.ParentB.ID, h.fx.SharedStudent.ID, "0.21")
		require.NoError(t, err, "payment %d", i+1)
	}

	assert.True(t, h.parentBalance(t, h.fx.ParentA.ID).IsZero())
	assert.True(t, h.parentBalance(t, h.fx.ParentB.ID).IsZero())
	assertMoney(t, "0.63", h.studentBalance(t, h.fx.SharedStudent.ID))
}

func TestProcessPayment_Failures(t *testing.T) {
	tests := []struct {
		name        string
		balanceA    string
		balanceB    string
		request     func(fx *sqlstoretest.Fixture) (int64, int64, string)
		wantErr     error
		wantReason  domain.FailureReason
		wantMessage string
	}{
		{
			name:     "parent not found",
			balanceA: "500", balanceB: "500",
			request:     func(fx *sqlstoretest.Fixture) (int64, int64, string) { return 9999, fx.StudentA.ID, "100" },
			wantErr:     service.ErrParentNotFound,
			wantReason:  domain.ReasonParentNotFound,
			wantMessage: "Payment failed: Parent (ID=9999) not found",
		},
		{
			name:     "student not found",
			balanceA: "500", balanceB: "500",
			request:     func(fx *sqlstoretest.Fixture) (int64, int64, string) { return fx.ParentA.ID, 9999, "100" },
			wantErr:     service.ErrStudentNotFound,
			wantReason:  domain.ReasonStudentNotFound,
			wantMessage: "Payment failed: Student (ID=9999) not found",
		},
		{
			name:     "not associated",
			balanceA: "500", balanceB: "500",
			request:     func(fx *sqlstoretest.Fixture) (int64, int64, string) { return fx.ParentA.ID, fx.StudentB.ID, "100" },
			wantErr:     service.ErrNotAssociated,
			wantReason:  domain.ReasonNotAssociated,
			wantMessage: "Payment failed: Parent (ID=",
		},
		{
			name:     "single payer insufficient balance",
			balanceA: "50", balanceB: "500",
			request:     func(fx *sqlstoretest.Fixture) (int64, int64, string) { return fx.ParentA.ID, fx.StudentA.ID, "100" },
			wantErr:     service.ErrInsufficientBalance,
			wantReason:  domain.ReasonInsufficientBalance,
			wantMessage: "Payment failed: Insufficient balance for Parent (ID=",
		},
		{
			name:     "surcharge pushes charge over balance",
			balanceA: "104.99", balanceB: "500",
			request:     func(fx *sqlstoretest.Fixture) (int64, int64, string) { return fx.ParentA.ID, fx.StudentA.ID, "100" },
			wantErr:     service.ErrInsufficientBalance,
			wantReason:  domain.ReasonInsufficientBalance,
			wantMessage: "Insufficient balance",
		},
		{
			name:     "co-payer cannot cover share",
			balanceA: "500", balanceB: "10",
			request:     func(fx *sqlstoretest.Fixture) (int64, int64, string) { return fx.ParentA.ID, fx.SharedStudent.ID, "100" },
			wantErr:     service.ErrInsufficientBalance,
			wantReason:  domain.ReasonInsufficientBalance,
			wantMessage: "Insufficient balance for Parent",
		},
		{
			name:     "zero amount",
			balanceA: "500", balanceB: "500",
			request:     func(fx *sqlstoretest.Fixture) (int64, int64, string) { return fx.ParentA.ID, fx.StudentA.ID, "0" },
			wantErr:     service.ErrInvalidPaymentAmount,
			wantReason:  domain.ReasonInvalidAmount,
			wantMessage: "Payment failed: Payment amount must be greater than zero",
		},
		{
			name:     "negative amount",
			balanceA: "500", balanceB: "500",
			request:     func(fx *sqlstoretest.Fixture) (int64, int64, string) { return fx.ParentA.ID, fx.StudentA.ID, "-5" },
			wantErr:     service.ErrInvalidPaymentAmount,
			wantReason:  domain.ReasonInvalidAmount,
			wantMessage: "got -5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.balanceA, tt.balanceB)
			parentID, studentID, amount := tt.request(h.fx)

			payment, err := h.pay(parentID, studentID, amount)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantReason, service.ReasonOf(err))

			var perr *service.PaymentError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.wantReason, perr.Reason)

			require.NotNil(t, payment)
			assert.NotZero(t, payment.ID)
			assert.Equal(t, domain.PaymentStatusFailed, payment.Status)
			assert.True(t, payment.ChargedAmount.IsZero())

			assertMoney(t, tt.balanceA, h.parentBalance(t, h.fx.ParentA.ID))
			assertMoney(t, tt.balanceB, h.parentBalance(t, h.fx.ParentB.ID))
			assertMoney(t, "0", h.studentBalance(t, h.fx.StudentA.ID))
			assertMoney(t, "0", h.studentBalance(t, h.fx.SharedStudent.ID))

			records := h.records(t)
			require.Len(t, records, 1)
			assert.Equal(t, payment.ID, records[0].ID)
			assert.Equal(t, parentID, records[0].ParentID)
			assert.Equal(t, studentID, records[0].StudentID)
			assertMoney(t, amount, records[0].Amount)
			assert.Equal(t, domain.PaymentStatusFailed, records[0].Status)
			assert.Equal(t, tt.wantReason, records[0].Reason)
			assert.Contains(t, records[0].Description, tt.wantMessage)
		})
	}
}

func TestProcessPayment_CoPayerShortfallNamesCoPayer(t *testing.T) {
	h := newHarness(t, "500", "10")

	_, err := h.pay(h.fx.ParentA.ID, h.fx.SharedStudent.ID, "100")
	require.Error(t, err)

	records := h.records(t)
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Description, fmt.Sprintf("Insufficient balance for Parent (ID=%d)", h.fx.ParentB.ID))
}

func TestProcessPayment_RepeatedFailuresAreEachRecorded(t *testing.T) {
	h := newHarness(t, "500", "500")

	_, err := h.pay(h.fx.ParentA.ID, h.fx.StudentB.ID, "100")
	require.ErrorIs(t, err, service.ErrNotAssociated)
	_, err = h.pay(h.fx.ParentA.ID, h.fx.StudentB.ID, "100")
	require.ErrorIs(t, err, service.ErrNotAssociated)

	records := h.records(t)
	require.Len(t, records, 2)
	for _, record := range records {
		assert.Equal(t, domain.PaymentStatusFailed, record.Status)
	}
	assert.NotEqual(t, records[0].Reference, records[1].Reference)
}

func TestProcessPayment_UnexpectedFailureRollsBackDebits(t *testing.T) {
	h := newHarness(t, "500", "500")
	boom := errors.New("disk on fire")
	svc := newService(h.db, &faultyTxManager{TxManager: sqlstore.NewStore(h.db, sqlstore.DialectSQLite), creditErr: boom}, sqlstore.NewLedger(h.db))

	payment, err := svc.ProcessPayment(context.Background(), service.ProcessPaymentRequest{
		ParentID:  h.fx.ParentA.ID,
		StudentID: h.fx.SharedStudent.ID,
		Amount:    decimal.NewFromInt(100),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrUnexpectedFailure)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, domain.ReasonUnexpected, service.ReasonOf(err))

	assertMoney(t, "500", h.parentBalance(t, h.fx.ParentA.ID))
	assertMoney(t, "500", h.parentBalance(t, h.fx.ParentB.ID))
	assertMoney(t, "0", h.studentBalance(t, h.fx.SharedStudent.ID))

	records := h.records(t)
	require.Len(t, records, 1)
	assert.Equal(t, payment.ID, records[0].ID)
	assert.Equal(t, domain.ReasonUnexpected, records[0].Reason)
	assert.Contains(t, records[0].Description, "disk on fire")
}

func TestProcessPayment_AuditWriteFailureJoinsErrors(t *testing.T) {
	h := newHarness(t, "500", "500")
	ledgerErr := errors.New("ledger unavailable")
	svc := newService(h.db, sqlstore.NewStore(h.db, sqlstore.DialectSQLite), failingLedger{err: ledgerErr})

	payment, err := svc.ProcessPayment(context.Background(), service.ProcessPaymentRequest{
		ParentID:  h.fx.ParentA.ID,
		StudentID: h.fx.StudentB.ID,
		Amount:    decimal.NewFromInt(100),
	})
	require.Error(t, err)
	assert.Nil(t, payment)
	assert.ErrorIs(t, err, service.ErrNotAssociated)
	assert.ErrorIs(t, err, ledgerErr)
	assert.Empty(t, h.records(t))
}

func TestProcessPayment_IgnoresCallerCancellation(t *testing.T) {
	h := newHarness(t, "500", "500")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	payment, err := h.svc.ProcessPayment(ctx, service.ProcessPaymentRequest{
		ParentID:  h.fx.ParentA.ID,
		StudentID: h.fx.StudentA.ID,
		Amount:    decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	assert.True(t, payment.Succeeded())
	assertMoney(t, "395", h.parentBalance(t, h.fx.ParentA.ID))
}

func TestProcessPayment_ConcurrentPaymentsNeverOverdraw(t *testing.T) {
	h := newHarness(t, "500", "500")
	const attempts = 10

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payment, err := h.pay(h.fx.ParentA.ID, h.fx.StudentA.ID, "100")
			if err == nil && payment.Succeeded() {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// 500 covers four charges of 105.
	assert.LessOrEqual(t, successes, 4)
	assert.GreaterOrEqual(t, successes, 1)

	balance := h.parentBalance(t, h.fx.ParentA.ID)
	assert.False(t, balance.IsNegative())
	assertMoney(t, decimal.NewFromInt(500).Sub(decimal.NewFromInt(105).Mul(decimal.NewFromInt(int64(successes)))).String(), balance)
	assertMoney(t, decimal.NewFromInt(100).Mul(decimal.NewFromInt(int64(successes))).String(), h.studentBalance(t, h.fx.StudentA.ID))

	records := h.records(t)
	assert.Len(t, records, attempts)
	succeeded := 0
	for _, record := range records {
		if record.Succeeded() {
			succeeded++
		}
	}
	assert.Equal(t, successes, succeeded)
}

func TestGetPayment(t *testing.T) {
	h := newHarness(t, "500", "500")
	created, err := h.pay(h.fx.ParentA.ID, h.fx.StudentA.ID, "100")
	require.NoError(t, err)

	got, err := h.svc.GetPayment(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Reference, got.Reference)

	_, err = h.svc.GetPayment(context.Background(), 0)
	assert.ErrorIs(t, err, service.ErrInvalidPaymentID)

	_, err = h.svc.GetPayment(context.Background(), created.ID+100)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetPayments_Filters(t *testing.T) {
	h := newHarness(t, "500", "500")
	_, err := h.pay(h.fx.ParentA.ID, h.fx.StudentA.ID, "10")
	require.NoError(t, err)
	_, err = h.pay(h.fx.ParentB.ID, h.fx.StudentB.ID, "10")
	require.NoError(t, err)
	_, _ = h.pay(h.fx.ParentA.ID, h.fx.StudentB.ID, "10")

	ctx := context.Background()

	all, err := h.svc.GetPayments(ctx, repository.PaymentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byParent, err := h.svc.GetPayments(ctx, repository.PaymentFilter{ParentID: h.fx.ParentA.ID})
	require.NoError(t, err)
	assert.Len(t, byParent, 2)

	byBoth, err := h.svc.GetPayments(ctx, repository.PaymentFilter{ParentID: h.fx.ParentA.ID, StudentID: h.fx.StudentB.ID})
	require.NoError(t, err)
	require.Len(t, byBoth, 1)
	assert.Equal(t, domain.PaymentStatusFailed, byBoth[0].Status)
}

func TestGetReceipt(t *testing.T) {
	h := newHarness(t, "500", "500")
	created, err := h.pay(h.fx.ParentA.ID, h.fx.SharedStudent.ID, "100")
	require.NoError(t, err)

	receipt, err := h.svc.GetReceipt(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, receipt.PaymentID)
	assertMoney(t, "5", receipt.Surcharge)
	assertMoney(t, "105", receipt.ChargedAmount)
}

func TestGetReceipt_AfterRateChange(t *testing.T) {
	h := newHarness(t, "500", "500")
	created, err := h.pay(h.fx.ParentA.ID, h.fx.StudentA.ID, "100")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repriced := service.NewPaymentService(service.PaymentServiceDeps{
		TxManager: sqlstore.NewStore(h.db, sqlstore.DialectSQLite),
		Ledger:    sqlstore.NewLedger(h.db),
		Payments:  sqlstore.NewPaymentRepository(h.db),
		Policy:    service.NewSurchargePolicy(decimal.RequireFromString("0.1")),
		Logger:    logger,
	})

	receipt, err := repriced.GetReceipt(context.Background(), created.ID)
	require.NoError(t, err)
	assertMoney(t, "0.05", receipt.SurchargeRate)
	assertMoney(t, "5", receipt.Surcharge)
	assert.Contains(t, service.FormatReceipt(receipt), "Surcharge (5%): $5.00")
}

// faultyTxManager wraps a real TxManager and makes every student credit fail.
type faultyTxManager struct {
	repository.TxManager
	creditErr error
}

func (f *faultyTxManager) WithTx(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	return f.TxManager.WithTx(ctx, func(uow repository.UnitOfWork) error {
		return fn(faultyUnitOfWork{UnitOfWork: uow, creditErr: f.creditErr})
	})
}

type faultyUnitOfWork struct {
	repository.UnitOfWork
	creditErr error
}

func (u faultyUnitOfWork) Students() repository.StudentRepository {
	return failingCredit{StudentRepository: u.UnitOfWork.Students(), err: u.creditErr}
}

type failingCredit struct {
	repository.StudentRepository
	err error
}

func (f failingCredit) Credit(context.Context, int64, decimal.Decimal) error {
	return f.err
}

type failingLedger struct {
	err error
}

func (l failingLedger) Record(context.Context, *domain.Payment) (int64, error) {
	return 0, l.err
}
