package domain

import "github.com/shopspring/decimal"

// Student represents an account credited by parent payments.
type Student struct {
	ID        int64
	Name      string
	Balance   decimal.Decimal
	ParentIDs []int64
}
