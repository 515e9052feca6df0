package domain

import (
	"github.com/shopspring/decimal"
)

type Account struct {
	ID        string          `json:"account_id"`
	UserID    string          `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	IsBlocked bool            `json:"is_blocked"`
}

// CanDebit reports whether amount may leave the account.
func (a Account) CanDebit(amount decimal.Decimal) bool {
	return !a.IsBlocked && amount.IsPositive() && amount.LessThanOrEqual(a.Balance)
}
