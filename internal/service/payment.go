package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tuition/internal/domain"
	"tuition/internal/metrics"
	"tuition/internal/repository"
)

const successDescription = "Payment processed successfully."

// LedgerWriter commits a payment record in its own transaction, independent of
// any unit of work in progress.
type LedgerWriter interface {
	Record(ctx context.Context, payment *domain.Payment) (int64, error)
}

// PaymentServiceDeps contains the dependencies of PaymentService.
type PaymentServiceDeps struct {
	TxManager    repository.TxManager
	Ledger       LedgerWriter
	Payments     repository.PaymentRepository
	Policy       SurchargePolicy
	Notification *NotificationService
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// PaymentService processes tuition payments from parents to students.
type PaymentService struct {
	txManager    repository.TxManager
	ledger       LedgerWriter
	paymentRepo  repository.PaymentRepository
	policy       SurchargePolicy
	notification *NotificationService
	metrics      *metrics.Metrics
	logger       *slog.Logger
	now          func() time.Time
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(deps PaymentServiceDeps) *PaymentService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &PaymentService{
		txManager:    deps.TxManager,
		ledger:       deps.Ledger,
		paymentRepo:  deps.Payments,
		policy:       deps.Policy,
		notification: deps.Notification,
		metrics:      deps.Metrics,
		logger:       logger.With("component", "payments"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ProcessPaymentRequest contains the parameters for processing a payment.
type ProcessPaymentRequest struct {
	ParentID  int64
	StudentID int64
	Amount    decimal.Decimal
}

// ProcessPayment charges the parent (or both parents of a shared student) the
// amount plus surcharge and credits the student the amount, all in one
// transaction. Every call writes exactly one payment record.
//
// On failure the balances are left untouched, a FAILED record is committed
// independently, and that record is returned together with a *PaymentError.
// If the FAILED record itself cannot be written the returned payment is nil
// and the error joins both failures.
//
// Cancelling ctx does not abort a payment in progress.
func (s *PaymentService) ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (*domain.Payment, error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	payment := &domain.Payment{
		Reference:     uuid.New().String(),
		ParentID:      req.ParentID,
		StudentID:     req.StudentID,
		Amount:        req.Amount,
		ChargedAmount: decimal.Zero,
		CreatedAt:     s.now(),
	}

	var payers []int64
	err := s.txManager.WithTx(ctx, func(uow repository.UnitOfWork) error {
		var err error
		payers, err = s.settle(ctx, uow, req, payment)
		return err
	})
	if err != nil {
		return s.fail(ctx, payment, err, start)
	}

	s.logger.Info("payment processed",
		"payment_id", payment.ID,
		"reference", payment.Reference,
		"parent_id", payment.ParentID,
		"student_id", payment.StudentID,
		"amount", payment.Amount,
		"charged", payment.ChargedAmount,
		"payers", payers,
	)
	s.metrics.ObservePayment(string(payment.Status), string(payment.Reason), time.Since(start))

	if s.notification != nil {
		s.notification.NotifyPaymentSucceeded(ctx, payment, payers)
	}

	return payment, nil
}

// settle runs inside the payment transaction. It returns the IDs of the
// parents that were debited.
func (s *PaymentService) settle(ctx context.Context, uow repository.UnitOfWork, req ProcessPaymentRequest, payment *domain.Payment) ([]int64, error) {
	parent, err := uow.Parents().GetByID(ctx, req.ParentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, parentNotFound(req.ParentID)
		}
		return nil, err
	}

	student, err := uow.Students().GetByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, studentNotFound(req.StudentID)
		}
		return nil, err
	}

	associated, err := uow.Associations().IsAssociated(ctx, parent.ID, student.ID)
	if err != nil {
		return nil, err
	}
	if !associated {
		return nil, notAssociated(parent.ID, student.ID)
	}

	if !req.Amount.IsPositive() {
		return nil, invalidAmount(req.Amount)
	}

	parentCount, err := uow.Associations().CountParents(ctx, student.ID)
	if err != nil {
		return nil, err
	}

	quote := s.policy.Quote(req.Amount, parentCount)
	share := quote.Share()

	payers := []int64{parent.ID}
	if quote.Split() {
		if payers, err = uow.Associations().ListParents(ctx, student.ID); err != nil {
			return nil, err
		}
	}

	// Every payer is checked before anything is debited so the failure names
	// the first parent that falls short.
	for _, id := range payers {
		payer := parent
		if id != parent.ID {
			if payer, err = uow.Parents().GetByID(ctx, id); err != nil {
				return nil, fmt.Errorf("failed to load co-paying parent %d: %w", id, err)
			}
		}
		if !payer.CanCover(share) {
			return nil, insufficientBalance(id)
		}
	}

	for _, id := range payers {
		if err := uow.Parents().Debit(ctx, id, share); err != nil {
			if errors.Is(err, repository.ErrInsufficientFunds) {
				return nil, insufficientBalance(id)
			}
			return nil, err
		}
	}

	if err := uow.Students().Credit(ctx, student.ID, req.Amount); err != nil {
		return nil, err
	}

	payment.Status = domain.PaymentStatusSuccess
	payment.Reason = domain.ReasonNone
	payment.ChargedAmount = quote.Adjusted
	payment.Description = successDescription

	if err := uow.Payments().Create(ctx, payment); err != nil {
		return nil, err
	}

	return payers, nil
}

// fail records the failed attempt outside the rolled-back transaction and
// returns the error the caller sees.
func (s *PaymentService) fail(ctx context.Context, payment *domain.Payment, cause error, start time.Time) (*domain.Payment, error) {
	perr := asPaymentError(cause)

	payment.ID = 0
	payment.Status = domain.PaymentStatusFailed
	payment.Reason = perr.Reason
	payment.ChargedAmount = decimal.Zero
	payment.Description = "Payment failed: " + perr.Error()

	defer func() {
		s.metrics.ObservePayment(string(payment.Status), string(payment.Reason), time.Since(start))
	}()

	if _, err := s.ledger.Record(ctx, payment); err != nil {
		s.metrics.AuditWriteFailed()
		s.logger.Error("failed to record failed payment",
			"reference", payment.Reference,
			"parent_id", payment.ParentID,
			"student_id", payment.StudentID,
			"amount", payment.Amount,
			"reason", payment.Reason,
			"cause", perr,
			"error", err,
		)
		return nil, errors.Join(perr, fmt.Errorf("failed to record failed payment: %w", err))
	}

	level := slog.LevelWarn
	if perr.Reason == domain.ReasonUnexpected {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "payment failed",
		"payment_id", payment.ID,
		"reference", payment.Reference,
		"parent_id", payment.ParentID,
		"student_id", payment.StudentID,
		"amount", payment.Amount,
		"reason", payment.Reason,
		"error", perr,
	)

	if s.notification != nil {
		s.notification.NotifyPaymentFailed(ctx, payment)
	}

	return payment, perr
}

// GetPayment retrieves a payment record by ID.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID int64) (*domain.Payment, error) {
	if paymentID <= 0 {
		return nil, ErrInvalidPaymentID
	}

	return s.paymentRepo.GetByID(ctx, paymentID)
}

// GetPayments lists payment records, optionally narrowed to a parent and/or student.
func (s *PaymentService) GetPayments(ctx context.Context, filter repository.PaymentFilter) ([]*domain.Payment, error) {
	return s.paymentRepo.List(ctx, filter)
}

// GetReceipt builds the receipt for a payment record.
func (s *PaymentService) GetReceipt(ctx context.Context, paymentID int64) (*domain.Receipt, error) {
	payment, err := s.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	return GenerateReceipt(payment, s.policy.Rate), nil
}

func asPaymentError(err error) *PaymentError {
	var perr *PaymentError
	if errors.As(err, &perr) {
		return perr
	}
	return &PaymentError{
		Reason:  domain.ReasonUnexpected,
		Message: "Unexpected error while processing payment",
		Err:     ErrUnexpectedFailure,
		Cause:   err,
	}
}

func parentNotFound(parentID int64) *PaymentError {
	return &PaymentError{
		Reason:  domain.ReasonParentNotFound,
		Message: fmt.Sprintf("Parent (ID=%d) not found", parentID),
		Err:     ErrParentNotFound,
	}
}

func studentNotFound(studentID int64) *PaymentError {
	return &PaymentError{
		Reason:  domain.ReasonStudentNotFound,
		Message: fmt.Sprintf("Student (ID=%d) not found", studentID),
		Err:     ErrStudentNotFound,
	}
}

func notAssociated(parentID, studentID int64) *PaymentError {
	return &PaymentError{
		Reason:  domain.ReasonNotAssociated,
		Message: fmt.Sprintf("Parent (ID=%d) not associated with Student (ID=%d)", parentID, studentID),
		Err:     ErrNotAssociated,
	}
}

func insufficientBalance(parentID int64) *PaymentError {
	return &PaymentError{
		Reason:  domain.ReasonInsufficientBalance,
		Message: fmt.Sprintf("Insufficient balance for Parent (ID=%d)", parentID),
		Err:     ErrInsufficientBalance,
	}
}

func invalidAmount(amount decimal.Decimal) *PaymentError {
	return &PaymentError{
		Reason:  domain.ReasonInvalidAmount,
		Message: fmt.Sprintf("Payment amount must be greater than zero, got %s", amount.String()),
		Err:     ErrInvalidPaymentAmount,
	}
}
