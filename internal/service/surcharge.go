package service

import (
	"github.com/shopspring/decimal"
)

// DefaultSurchargeRate is applied to every payment unless configured otherwise.
var DefaultSurchargeRate = decimal.RequireFromString("0.05")

// SurchargePolicy computes what parents are charged for a tuition payment.
type SurchargePolicy struct {
	// Rate is the fractional surcharge added to the requested amount.
	Rate decimal.Decimal
	// SplitParents is the exact number of associated parents that triggers an
	// even split of the charge. Any other count charges the paying parent alone.
	SplitParents int
}

// DefaultSurchargePolicy returns a 5% surcharge split between exactly two parents.
func DefaultSurchargePolicy() SurchargePolicy {
	return NewSurchargePolicy(DefaultSurchargeRate)
}

// NewSurchargePolicy returns a policy with the given rate and the two-parent split.
func NewSurchargePolicy(rate decimal.Decimal) SurchargePolicy {
	return SurchargePolicy{Rate: rate, SplitParents: 2}
}

// Quote is the charge computed for one payment.
type Quote struct {
	Amount    decimal.Decimal // credited to the student
	Surcharge decimal.Decimal
	Adjusted  decimal.Decimal // debited from parents in aggregate
	Shares    int             // number of parents charged
}

// Quote computes the charge for amount given the number of parents associated
// with the student.
func (p SurchargePolicy) Quote(amount decimal.Decimal, parentCount int) Quote {
	surcharge := amount.Mul(p.Rate)

	shares := 1
	if p.SplitParents > 1 && parentCount == p.SplitParents {
		shares = p.SplitParents
	}

	return Quote{
		Amount:    amount,
		Surcharge: surcharge,
		Adjusted:  amount.Add(surcharge),
		Shares:    shares,
	}
}

// Split reports whether the charge is divided between several parents.
func (q Quote) Split() bool {
	return q.Shares > 1
}

// Share returns what each charged parent pays.
func (q Quote) Share() decimal.Decimal {
	if q.Shares <= 1 {
		return q.Adjusted
	}
	return q.Adjusted.Div(decimal.NewFromInt(int64(q.Shares)))
}
