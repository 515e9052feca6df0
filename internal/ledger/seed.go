package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"banking-ledger/internal/domain"
)

// SeedSnapshot is the dataset written when no snapshot exists yet: one client
// holding a 1000 balance, one employee, and a single recorded deposit.
func SeedSnapshot(now time.Time) *domain.Snapshot {
	return &domain.Snapshot{
		Users: []domain.User{
			{ID: "u1", Username: "client1", Password: "pass123", Role: domain.RoleClient},
			{ID: "u2", Username: "employee1", Password: "pass456", Role: domain.RoleEmployee},
		},
		Accounts: []domain.Account{
			{ID: "a1", UserID: "u1", Balance: decimal.NewFromInt(1000)},
		},
		Transactions: []domain.Transaction{
			{ID: "t1", AccountID: "a1", Amount: decimal.NewFromInt(100), Type: domain.TransactionDeposit, Timestamp: now},
		},
	}
}
