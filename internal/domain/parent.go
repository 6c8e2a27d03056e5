package domain

import "github.com/shopspring/decimal"

// Parent represents an account that pays for one or more students.
type Parent struct {
	ID      int64
	Name    string
	Balance decimal.Decimal
}

// CanCover reports whether the parent's balance covers the given amount.
func (p *Parent) CanCover(amount decimal.Decimal) bool {
	return p.Balance.GreaterThanOrEqual(amount)
}
