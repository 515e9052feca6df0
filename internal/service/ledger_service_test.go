package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"banking-ledger/internal/domain"
	"banking-ledger/internal/errors"
	"banking-ledger/internal/ledger"
)

type LedgerServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	repo    *memoryRepository
	audit   *recordingAudit
	clock   *fakeClock
	service *LedgerService
}

func TestLedgerServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceTestSuite))
}

func (s *LedgerServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = &fakeClock{now: time.Date(2024, 6, 3, 14, 0, 0, 0, time.Local)}
	state, err := ledger.FromSnapshot(ledger.SeedSnapshot(s.clock.Now().AddDate(0, 0, -1)))
	s.Require().NoError(err)

	s.repo = &memoryRepository{}
	s.audit = &recordingAudit{}
	s.service = NewLedgerService(state, s.repo, s.audit, discardLogger(), WithClock(s.clock.Now))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// registerClient returns the new user and its default account.
func (s *LedgerServiceTestSuite) registerClient(username string) (*domain.User, *domain.Account) {
	user, account, err := s.service.RegisterUser(s.ctx, username, "hash", domain.RoleClient)
	s.Require().NoError(err)
	s.Require().NotNil(account)
	return user, account
}

func (s *LedgerServiceTestSuite) balance(accountID string) string {
	account, err := s.service.Account(accountID)
	s.Require().NoError(err)
	return account.Balance.String()
}

func (s *LedgerServiceTestSuite) TestScenarioA_RegisterDepositTransferToAccountlessUser() {
	alice, account := s.registerClient("alice")
	s.Equal("0", account.Balance.String())
	_, _, err := s.service.RegisterUser(s.ctx, "bob", "hash", domain.RoleEmployee)
	s.Require().NoError(err)

	_, err = s.service.Deposit(s.ctx, alice.ID, account.ID, dec("500"))
	s.Require().NoError(err)
	s.Equal("500", s.balance(account.ID))

	txs, err := s.service.ListTransactions(alice.ID, account.ID, domain.SortDateDesc)
	s.Require().NoError(err)
	s.Len(txs, 1)
	s.Equal(domain.TransactionDeposit, txs[0].Type)

	_, err = s.service.Transfer(s.ctx, &TransferRequest{
		UserID: alice.ID, SourceAccountID: account.ID, RecipientUsername: "bob", Amount: dec("200"),
	})
	s.ErrorIs(err, errors.ErrRecipientHasNoAccount)
	s.Equal("500", s.balance(account.ID))
}

func (s *LedgerServiceTestSuite) TestScenarioB_BlockedAccountCannotPayBills() {
	s.Require().NoError(s.service.Block(s.ctx, "a1"))

	_, err := s.service.PayBill(s.ctx, "u1", "a1", dec("50"))
	s.ErrorIs(err, errors.ErrAccountBlocked)
	s.Equal("1000", s.balance("a1"))

	s.Require().NoError(s.service.Unblock(s.ctx, "a1"))
	_, err = s.service.PayBill(s.ctx, "u1", "a1", dec("50"))
	s.Require().NoError(err)
	s.Equal("950", s.balance("a1"))
}

func (s *LedgerServiceTestSuite) TestScenarioC_ConcurrentDepositsDoNotLoseUpdates() {
	user, account := s.registerClient("carol")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.Deposit(s.ctx, user.ID, account.ID, dec("100"))
			assert.NoError(s.T(), err)
		}()
	}
	wg.Wait()

	s.Equal("200", s.balance(account.ID))
	txs, err := s.service.ListTransactions(user.ID, account.ID, domain.SortDateAsc)
	s.Require().NoError(err)
	s.Len(txs, 2)
}

func (s *LedgerServiceTestSuite) TestDailyLimit() {
	user, account := s.registerClient("dave")

	_, err := s.service.Deposit(s.ctx, user.ID, account.ID, dec("100000"))
	s.NoError(err, "exactly the limit is allowed")

	_, err = s.service.Deposit(s.ctx, user.ID, account.ID, dec("0.01"))
	s.ErrorIs(err, errors.ErrDailyLimitExceeded)

	// next calendar day starts a fresh window
	s.clock.Set(time.Date(2024, 6, 4, 0, 0, 0, 0, time.Local))
	_, err = s.service.Deposit(s.ctx, user.ID, account.ID, dec("60000"))
	s.Require().NoError(err)
	_, err = s.service.Deposit(s.ctx, user.ID, account.ID, dec("60000"))
	s.ErrorIs(err, errors.ErrDailyLimitExceeded)
	s.Equal("160000", s.balance(account.ID))
}

func (s *LedgerServiceTestSuite) TestDailyLimit_OverLimitSingleDeposit() {
	user, account := s.registerClient("erin")

	_, err := s.service.Deposit(s.ctx, user.ID, account.ID, dec("100000.01"))
	s.ErrorIs(err, errors.ErrDailyLimitExceeded)
	s.Equal("0", s.balance(account.ID))
}

func (s *LedgerServiceTestSuite) TestDailyLimit_SpansAllAccountsOfUser() {
	user, first := s.registerClient("frank")
	second, err := s.service.CreateAccount(s.ctx, user.ID)
	s.Require().NoError(err)

	_, err = s.service.Deposit(s.ctx, user.ID, first.ID, dec("70000"))
	s.Require().NoError(err)
	_, err = s.service.Deposit(s.ctx, user.ID, second.ID, dec("30000.01"))
	s.ErrorIs(err, errors.ErrDailyLimitExceeded)
}

func (s *LedgerServiceTestSuite) TestDeposit_InvalidAmount() {
	for _, amount := range []string{"0", "-5"} {
		_, err := s.service.Deposit(s.ctx, "u1", "a1", dec(amount))
		s.ErrorIs(err, errors.ErrInvalidAmount, amount)
	}
	s.Zero(s.repo.saveCount())
}

func (s *LedgerServiceTestSuite) TestTransfer_Success() {
	_, target := s.registerClient("grace")
	savesBefore := s.repo.saveCount()
	txBefore := len(s.service.ListAllTransactions(domain.SortDateAsc))

	result, err := s.service.Transfer(s.ctx, &TransferRequest{
		UserID: "u1", SourceAccountID: "a1", RecipientUsername: "grace", Amount: dec("250.50"),
	})
	s.Require().NoError(err)

	s.Equal("a1", result.Debit.AccountID)
	s.Equal("-250.5", result.Debit.Amount.String())
	s.Equal(target.ID, result.Credit.AccountID)
	s.Equal("250.5", result.Credit.Amount.String())
	s.Equal("749.5", s.balance("a1"))
	s.Equal("250.5", s.balance(target.ID))
	s.Len(s.service.ListAllTransactions(domain.SortDateAsc), txBefore+2)
	s.Equal(savesBefore+1, s.repo.saveCount(), "one save covers both legs")
}

func (s *LedgerServiceTestSuite) TestTransfer_GoesToRecipientsFirstAccount() {
	henry, first := s.registerClient("henry")
	_, err := s.service.CreateAccount(s.ctx, henry.ID)
	s.Require().NoError(err)

	result, err := s.service.Transfer(s.ctx, &TransferRequest{
		UserID: "u1", SourceAccountID: "a1", RecipientUsername: "henry", Amount: dec("1"),
	})
	s.Require().NoError(err)
	s.Equal(first.ID, result.Credit.AccountID)
}

func (s *LedgerServiceTestSuite) TestTransfer_Rejections() {
	_, blockedTarget := s.registerClient("ivy")
	s.Require().NoError(s.service.Block(s.ctx, blockedTarget.ID))
	s.registerClient("jack")

	cases := []struct {
		name      string
		recipient string
		amount    string
		want      error
	}{
		{"zero amount", "jack", "0", errors.ErrInvalidAmount},
		{"negative amount", "jack", "-1", errors.ErrInvalidAmount},
		{"more than balance", "jack", "1000.01", errors.ErrInvalidAmount},
		{"self transfer", "client1", "10", errors.ErrSelfTransfer},
		{"unknown recipient", "nobody", "10", errors.ErrRecipientNotFound},
		{"recipient without account", "employee1", "10", errors.ErrRecipientHasNoAccount},
		{"blocked recipient", "ivy", "10", errors.ErrRecipientAccountBlocked},
	}
	for _, tc := range cases {
		_, err := s.service.Transfer(s.ctx, &TransferRequest{
			UserID: "u1", SourceAccountID: "a1", RecipientUsername: tc.recipient, Amount: dec(tc.amount),
		})
		s.ErrorIs(err, tc.want, tc.name)
	}
	s.Equal("1000", s.balance("a1"))
}

func (s *LedgerServiceTestSuite) TestTransfer_BlockedSourceCheckedFirst() {
	s.Require().NoError(s.service.Block(s.ctx, "a1"))

	_, err := s.service.Transfer(s.ctx, &TransferRequest{
		UserID: "u1", SourceAccountID: "a1", RecipientUsername: "client1", Amount: dec("-1"),
	})
	s.ErrorIs(err, errors.ErrAccountBlocked)
}

func (s *LedgerServiceTestSuite) TestOperationsOnForeignAccountAreForbidden() {
	user, _ := s.registerClient("kate")

	_, err := s.service.Deposit(s.ctx, user.ID, "a1", dec("1"))
	s.ErrorIs(err, errors.ErrForbidden)
	_, err = s.service.PayBill(s.ctx, user.ID, "a1", dec("1"))
	s.ErrorIs(err, errors.ErrForbidden)
	_, err = s.service.ListTransactions(user.ID, "a1", domain.SortDateDesc)
	s.ErrorIs(err, errors.ErrForbidden)
	_, err = s.service.Deposit(s.ctx, user.ID, "missing", dec("1"))
	s.ErrorIs(err, errors.ErrAccountNotFound)
}

func (s *LedgerServiceTestSuite) TestPayBill_InvalidAmount() {
	_, err := s.service.PayBill(s.ctx, "u1", "a1", dec("1000.01"))
	s.ErrorIs(err, errors.ErrInvalidAmount)

	tx, err := s.service.PayBill(s.ctx, "u1", "a1", dec("1000"))
	s.Require().NoError(err)
	s.Equal("-1000", tx.Amount.String())
	s.Equal(domain.TransactionBillPayment, tx.Type)
	s.Equal("0", s.balance("a1"))
}

func (s *LedgerServiceTestSuite) TestBlock_UnknownAccount() {
	s.ErrorIs(s.service.Block(s.ctx, "missing"), errors.ErrAccountNotFound)
	s.ErrorIs(s.service.Unblock(s.ctx, "missing"), errors.ErrAccountNotFound)
}

func (s *LedgerServiceTestSuite) TestSaveFailureLeavesStateUntouched() {
	s.repo.fail = true

	_, err := s.service.Deposit(s.ctx, "u1", "a1", dec("10"))
	s.ErrorIs(err, errors.ErrIO)
	s.Require().Error(s.service.Block(s.ctx, "a1"))
	_, err = s.service.CreateAccount(s.ctx, "u1")
	s.ErrorIs(err, errors.ErrIO)

	s.Equal("1000", s.balance("a1"))
	account, _ := s.service.Account("a1")
	s.False(account.IsBlocked)
	s.Len(s.service.Accounts("u1"), 1)
	s.Len(s.service.ListAllTransactions(domain.SortDateAsc), 1)
	s.Empty(s.audit.all())
}

func (s *LedgerServiceTestSuite) TestEveryMutationSavesOnceAndAudits() {
	user, account := s.registerClient("liam")
	s.Equal(1, s.repo.saveCount())

	_, err := s.service.Deposit(s.ctx, user.ID, account.ID, dec("10"))
	s.Require().NoError(err)
	_, err = s.service.CreateAccount(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.service.Block(s.ctx, account.ID))

	s.Equal(4, s.repo.saveCount())
	s.Equal([]string{
		"User registered: liam",
		"Deposit: $10.00 to account " + account.ID,
	}, s.audit.all()[:2])
	s.Len(s.audit.all(), 4)
}

func (s *LedgerServiceTestSuite) TestSavedSnapshotReloadsIdentically() {
	user, account := s.registerClient("mia")
	_, err := s.service.Deposit(s.ctx, user.ID, account.ID, dec("42.42"))
	s.Require().NoError(err)

	reloaded, err := ledger.FromSnapshot(s.repo.snap)
	s.Require().NoError(err)
	s.Equal(s.repo.snap, reloaded.Snapshot())
}

func (s *LedgerServiceTestSuite) TestListTransactions_Sorting() {
	s.clock.Set(time.Date(2024, 6, 3, 9, 0, 0, 0, time.Local))
	_, err := s.service.Deposit(s.ctx, "u1", "a1", dec("300"))
	s.Require().NoError(err)
	s.clock.Set(time.Date(2024, 6, 3, 10, 0, 0, 0, time.Local))
	_, err = s.service.PayBill(s.ctx, "u1", "a1", dec("20"))
	s.Require().NoError(err)

	amounts := func(key domain.SortKey) []string {
		txs, err := s.service.ListTransactions("u1", "a1", key)
		s.Require().NoError(err)
		out := make([]string, 0, len(txs))
		for _, tx := range txs {
			out = append(out, tx.Amount.String())
		}
		return out
	}

	s.Equal([]string{"-20", "300", "100"}, amounts(domain.SortDateDesc))
	s.Equal([]string{"100", "300", "-20"}, amounts(domain.SortDateAsc))
	s.Equal([]string{"300", "100", "-20"}, amounts(domain.SortAmountDesc))
	s.Equal([]string{"-20", "100", "300"}, amounts(domain.SortAmountAsc))
}

// TestConservation runs a mixed workload and checks that balances only move
// by deposits and bill payments, never by transfers, and never go negative.
func TestConservation(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 6, 3, 8, 0, 0, 0, time.Local)}
	state, err := ledger.FromSnapshot(ledger.SeedSnapshot(clock.Now().AddDate(0, 0, -1)))
	require.NoError(t, err)
	svc := NewLedgerService(state, &memoryRepository{}, &recordingAudit{}, discardLogger(), WithClock(clock.Now))
	ctx := context.Background()

	names := []string{"anna", "ben", "cora", "dan"}
	users := make([]*domain.User, len(names))
	accounts := make([]*domain.Account, len(names))
	for i, name := range names {
		users[i], accounts[i], err = svc.RegisterUser(ctx, name, "hash", domain.RoleClient)
		require.NoError(t, err)
	}

	initial := dec("1000")
	deposits := decimal.Zero
	bills := decimal.Zero

	var wg sync.WaitGroup
	var mu sync.Mutex
	for i := range names {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for round := 0; round < 25; round++ {
				amount := decimal.NewFromInt(int64(round + 1)).Div(decimal.NewFromInt(3)).Round(2)
				if _, err := svc.Deposit(ctx, users[i].ID, accounts[i].ID, amount); err == nil {
					mu.Lock()
					deposits = deposits.Add(amount)
					mu.Unlock()
				}
				_, _ = svc.Transfer(ctx, &TransferRequest{
					UserID:            users[i].ID,
					SourceAccountID:   accounts[i].ID,
					RecipientUsername: names[(i+1)%len(names)],
					Amount:            amount.Mul(decimal.NewFromFloat(1.5)).Round(2),
				})
				if _, err := svc.PayBill(ctx, users[i].ID, accounts[i].ID, dec("0.07")); err == nil {
					mu.Lock()
					bills = bills.Add(dec("0.07"))
					mu.Unlock()
				}
			}
		}(i)
	}
	wg.Wait()

	total := decimal.Zero
	owners := []string{"u1"}
	for _, u := range users {
		owners = append(owners, u.ID)
	}
	for _, owner := range owners {
		for _, a := range svc.Accounts(owner) {
			assert.False(t, a.Balance.IsNegative(), "account %s went negative", a.ID)
			total = total.Add(a.Balance)
		}
	}
	assert.True(t, total.Equal(initial.Add(deposits).Sub(bills)),
		"total %s != %s + %s - %s", total, initial, deposits, bills)

	summary := Summarize(svc.ListAllTransactions(domain.SortDateAsc))
	assert.True(t, summary.TotalBillPayments.Equal(bills))
}
