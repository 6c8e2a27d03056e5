package service

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tuition/internal/domain"
)

// GenerateReceipt builds a receipt for a payment record. For a successful
// payment the surcharge and its rate are derived from what was actually
// charged; rate is only reported for attempts that charged nothing.
func GenerateReceipt(payment *domain.Payment, rate decimal.Decimal) *domain.Receipt {
	surcharge := decimal.Zero
	if payment.Succeeded() {
		surcharge = payment.ChargedAmount.Sub(payment.Amount)
		if payment.Amount.IsPositive() {
			rate = surcharge.Div(payment.Amount)
		}
	}

	return &domain.Receipt{
		PaymentID:     payment.ID,
		Reference:     payment.Reference,
		ParentID:      payment.ParentID,
		StudentID:     payment.StudentID,
		Amount:        payment.Amount,
		SurchargeRate: rate,
		Surcharge:     surcharge,
		ChargedAmount: payment.ChargedAmount,
		Status:        payment.Status,
		Description:   payment.Description,
		CreatedAt:     payment.CreatedAt,
	}
}

// FormatReceipt formats the receipt as plain text.
func FormatReceipt(receipt *domain.Receipt) string {
	var b strings.Builder

	b.WriteString("=====================================\n")
	b.WriteString("        TUITION PAYMENT RECEIPT\n")
	b.WriteString("=====================================\n")
	fmt.Fprintf(&b, "Payment ID: %d\n", receipt.PaymentID)
	fmt.Fprintf(&b, "Reference:  %s\n", receipt.Reference)
	fmt.Fprintf(&b, "Date:       %s\n", receipt.CreatedAt.Format("Jan 02, 2006 3:04 PM"))
	b.WriteString("\nPARTIES\n")
	b.WriteString("-------------------------------------\n")
	fmt.Fprintf(&b, "Parent ID:  %d\n", receipt.ParentID)
	fmt.Fprintf(&b, "Student ID: %d\n", receipt.StudentID)
	b.WriteString("\nBREAKDOWN\n")
	b.WriteString("-------------------------------------\n")
	fmt.Fprintf(&b, "Tuition:          %s\n", formatMoney(receipt.Amount))
	fmt.Fprintf(&b, "Surcharge (%s%%): %s\n", receipt.SurchargeRate.Shift(2).String(), formatMoney(receipt.Surcharge))
	b.WriteString("-------------------------------------\n")
	fmt.Fprintf(&b, "CHARGED:          %s\n", formatMoney(receipt.ChargedAmount))
	b.WriteString("\nSTATUS\n")
	b.WriteString("-------------------------------------\n")
	fmt.Fprintf(&b, "%s\n", receipt.Status)
	fmt.Fprintf(&b, "%s\n", receipt.Description)
	b.WriteString("=====================================\n")

	return b.String()
}

func formatMoney(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}
