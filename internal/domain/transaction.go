package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionDeposit     TransactionType = "deposit"
	TransactionTransfer    TransactionType = "transfer"
	TransactionBillPayment TransactionType = "bill_payment"
)

func ParseTransactionType(s string) (TransactionType, error) {
	switch t := TransactionType(s); t {
	case TransactionDeposit, TransactionTransfer, TransactionBillPayment:
		return t, nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
}

// Transaction is an append-only ledger entry. Amount is negative for debits.
type Transaction struct {
	ID        string          `json:"transaction_id"`
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Type      TransactionType `json:"transaction_type"`
	Timestamp time.Time       `json:"timestamp"`
}

type SortKey string

const (
	SortDateDesc   SortKey = "date_desc"
	SortDateAsc    SortKey = "date_asc"
	SortAmountDesc SortKey = "amount_desc"
	SortAmountAsc  SortKey = "amount_asc"
)

// ParseSortKey defaults to newest first when s is empty.
func ParseSortKey(s string) (SortKey, error) {
	if s == "" {
		return SortDateDesc, nil
	}
	switch k := SortKey(s); k {
	case SortDateDesc, SortDateAsc, SortAmountDesc, SortAmountAsc:
		return k, nil
	default:
		return "", fmt.Errorf("unknown sort key %q", s)
	}
}

// SortTransactions orders txs in place. Ties keep their existing order.
func SortTransactions(txs []Transaction, key SortKey) {
	var less func(a, b Transaction) int
	switch key {
	case SortDateAsc:
		less = func(a, b Transaction) int { return a.Timestamp.Compare(b.Timestamp) }
	case SortAmountDesc:
		less = func(a, b Transaction) int { return b.Amount.Cmp(a.Amount) }
	case SortAmountAsc:
		less = func(a, b Transaction) int { return a.Amount.Cmp(b.Amount) }
	default:
		less = func(a, b Transaction) int { return b.Timestamp.Compare(a.Timestamp) }
	}
	slices.SortStableFunc(txs, less)
}
