package service

import (
	"errors"

	"tuition/internal/domain"
)

var (
	// ErrParentNotFound is returned when the paying parent does not exist.
	ErrParentNotFound = errors.New("parent not found")

	// ErrStudentNotFound is returned when the student does not exist.
	ErrStudentNotFound = errors.New("student not found")

	// ErrNotAssociated is returned when the parent may not pay for the student.
	ErrNotAssociated = errors.New("parent not associated with student")

	// ErrInsufficientBalance is returned when a paying parent cannot cover their charge.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidPaymentAmount is returned when payment amount is invalid.
	ErrInvalidPaymentAmount = errors.New("invalid payment amount")

	// ErrUnexpectedFailure is returned for any other failure while processing a payment.
	ErrUnexpectedFailure = errors.New("unexpected failure")

	// ErrInvalidPaymentID is returned when payment ID is not positive.
	ErrInvalidPaymentID = errors.New("invalid payment id")
)

// PaymentError describes why a payment attempt failed. It is returned only
// after the FAILED record has been written (or its write has failed, in which
// case the two errors are joined).
type PaymentError struct {
	Reason  domain.FailureReason
	Message string
	Err     error // one of the sentinels above
	Cause   error // underlying error for UNEXPECTED_FAILURE
}

func (e *PaymentError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *PaymentError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

// ReasonOf returns the failure reason carried by err, or UNEXPECTED_FAILURE.
func ReasonOf(err error) domain.FailureReason {
	var perr *PaymentError
	if errors.As(err, &perr) {
		return perr.Reason
	}
	return domain.ReasonUnexpected
}
