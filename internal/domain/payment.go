package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the outcome of a payment attempt.
type PaymentStatus string

const (
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// FailureReason classifies why a payment attempt failed.
type FailureReason string

const (
	ReasonNone                FailureReason = ""
	ReasonParentNotFound      FailureReason = "PARENT_NOT_FOUND"
	ReasonStudentNotFound     FailureReason = "STUDENT_NOT_FOUND"
	ReasonNotAssociated       FailureReason = "NOT_ASSOCIATED"
	ReasonInsufficientBalance FailureReason = "INSUFFICIENT_BALANCE"
	ReasonInvalidAmount       FailureReason = "INVALID_AMOUNT"
	ReasonUnexpected          FailureReason = "UNEXPECTED_FAILURE"
)

// Payment is the immutable audit record of a single payment attempt.
// One record is written per attempt, successful or not.
type Payment struct {
	ID            int64
	Reference     string
	ParentID      int64
	StudentID     int64
	Amount        decimal.Decimal
	ChargedAmount decimal.Decimal
	Status        PaymentStatus
	Reason        FailureReason
	Description   string
	CreatedAt     time.Time
}

// Succeeded reports whether the attempt was committed.
func (p *Payment) Succeeded() bool {
	return p.Status == PaymentStatusSuccess
}

// Receipt is a printable breakdown of a payment record.
type Receipt struct {
	PaymentID     int64
	Reference     string
	ParentID      int64
	StudentID     int64
	Amount        decimal.Decimal
	SurchargeRate decimal.Decimal
	Surcharge     decimal.Decimal
	ChargedAmount decimal.Decimal
	Status        PaymentStatus
	Description   string
	CreatedAt     time.Time
}
