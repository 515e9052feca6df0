package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"banking-ledger/internal/domain"
	"banking-ledger/internal/errors"
	"banking-ledger/internal/ledger"
)

// DefaultDailyDepositLimit caps the total a user may deposit per calendar day.
var DefaultDailyDepositLimit = decimal.NewFromInt(100000)

// LedgerService is the transaction engine. Every mutation runs under one
// write lock: it is applied to a staged copy of the state, the copy is
// saved, and only then does it replace the live state. A failed save
// therefore leaves nothing changed in memory or on disk.
type LedgerService struct {
	mu    sync.RWMutex
	state *ledger.State
	repo  domain.SnapshotRepository
	audit domain.AuditLogger

	dailyLimit decimal.Decimal
	now        func() time.Time
	logger     *slog.Logger
}

type Option func(*LedgerService)

// WithClock overrides the time source used for timestamps and the daily window.
func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

func WithDailyDepositLimit(limit decimal.Decimal) Option {
	return func(s *LedgerService) { s.dailyLimit = limit }
}

func NewLedgerService(
	state *ledger.State,
	repo domain.SnapshotRepository,
	audit domain.AuditLogger,
	logger *slog.Logger,
	opts ...Option,
) *LedgerService {
	s := &LedgerService{
		state:      state,
		repo:       repo,
		audit:      audit,
		dailyLimit: DefaultDailyDepositLimit,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// mutate stages fn on a copy of the state, persists the copy and commits it.
func (s *LedgerService) mutate(ctx context.Context, fn func(st *ledger.State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.Clone()
	if err := fn(staged); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, staged.Snapshot()); err != nil {
		s.logger.Error("Snapshot save failed, mutation discarded", "error", err)
		return errors.AsAppError(err)
	}
	s.state = staged
	return nil
}

// read runs fn against the live state under the shared lock.
func (s *LedgerService) read(fn func(st *ledger.State)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.state)
}

// ownedAccount resolves accountID and checks it belongs to userID.
func ownedAccount(st *ledger.State, userID, accountID string) (domain.Account, error) {
	account, ok := st.Account(accountID)
	if !ok {
		return domain.Account{}, errors.ErrAccountNotFound
	}
	if account.UserID != userID {
		return domain.Account{}, errors.ErrForbidden.WithDetails("account belongs to another user")
	}
	return account, nil
}

func (s *LedgerService) Deposit(ctx context.Context, userID, accountID string, amount decimal.Decimal) (*domain.Transaction, error) {
	s.logger.Info("Processing deposit", "account_id", accountID, "amount", amount)

	if !amount.IsPositive() {
		return nil, errors.ErrInvalidAmount
	}

	var tx domain.Transaction
	err := s.mutate(ctx, func(st *ledger.State) error {
		if _, err := ownedAccount(st, userID, accountID); err != nil {
			return err
		}
		now := s.now()
		dailyTotal := st.DepositsOn(userID, now)
		if dailyTotal.Add(amount).GreaterThan(s.dailyLimit) {
			return errors.ErrDailyLimitExceeded.WithDetails(
				fmt.Sprintf("deposited today %s, limit %s", dailyTotal.StringFixed(2), s.dailyLimit.StringFixed(2)))
		}
		var err error
		tx, err = st.Deposit(accountID, amount, now)
		return err
	})
	if err != nil {
		s.logger.Warn("Deposit rejected", "account_id", accountID, "error", err)
		return nil, err
	}

	s.audit.Log(fmt.Sprintf("Deposit: $%s to account %s", amount.StringFixed(2), accountID))
	s.logger.Info("Deposit completed", "transaction_id", tx.ID)
	return &tx, nil
}

type TransferRequest struct {
	UserID            string
	SourceAccountID   string
	RecipientUsername string
	Amount            decimal.Decimal
}

// TransferResult holds both legs of a completed transfer.
type TransferResult struct {
	Debit  domain.Transaction
	Credit domain.Transaction
}

// Transfer moves money to the first account, in creation order, of the
// recipient user.
func (s *LedgerService) Transfer(ctx context.Context, req *TransferRequest) (*TransferResult, error) {
	s.logger.Info("Processing transfer",
		"source_account_id", req.SourceAccountID,
		"recipient", req.RecipientUsername,
		"amount", req.Amount)

	var result TransferResult
	var targetID string
	err := s.mutate(ctx, func(st *ledger.State) error {
		source, err := ownedAccount(st, req.UserID, req.SourceAccountID)
		if err != nil {
			return err
		}
		if source.IsBlocked {
			return errors.ErrAccountBlocked
		}
		if !req.Amount.IsPositive() || req.Amount.GreaterThan(source.Balance) {
			return errors.ErrInvalidAmount
		}

		sender, ok := st.User(req.UserID)
		if !ok {
			return errors.ErrUserNotFound
		}
		if req.RecipientUsername == sender.Username {
			return errors.ErrSelfTransfer
		}
		recipient, ok := st.FindByUsername(req.RecipientUsername)
		if !ok {
			return errors.ErrRecipientNotFound
		}
		accounts := st.AccountsOf(recipient.ID)
		if len(accounts) == 0 {
			return errors.ErrRecipientHasNoAccount
		}
		target := accounts[0]
		if target.IsBlocked {
			return errors.ErrRecipientAccountBlocked
		}

		targetID = target.ID
		result.Debit, result.Credit, err = st.Transfer(source.ID, target.ID, req.Amount, s.now())
		return err
	})
	if err != nil {
		s.logger.Warn("Transfer rejected", "source_account_id", req.SourceAccountID, "error", err)
		return nil, err
	}

	s.audit.Log(fmt.Sprintf("Transfer: $%s from %s to %s (user: %s)",
		req.Amount.StringFixed(2), req.SourceAccountID, targetID, req.RecipientUsername))
	s.logger.Info("Transfer completed successfully",
		"debit_transaction_id", result.Debit.ID,
		"credit_transaction_id", result.Credit.ID)
	return &result, nil
}

func (s *LedgerService) PayBill(ctx context.Context, userID, accountID string, amount decimal.Decimal) (*domain.Transaction, error) {
	s.logger.Info("Processing bill payment", "account_id", accountID, "amount", amount)

	var tx domain.Transaction
	err := s.mutate(ctx, func(st *ledger.State) error {
		account, err := ownedAccount(st, userID, accountID)
		if err != nil {
			return err
		}
		if account.IsBlocked {
			return errors.ErrAccountBlocked
		}
		if !amount.IsPositive() || amount.GreaterThan(account.Balance) {
			return errors.ErrInvalidAmount
		}
		tx, err = st.PayBill(accountID, amount, s.now())
		return err
	})
	if err != nil {
		s.logger.Warn("Bill payment rejected", "account_id", accountID, "error", err)
		return nil, err
	}

	s.audit.Log(fmt.Sprintf("Bill payment: $%s from %s", amount.StringFixed(2), accountID))
	return &tx, nil
}

func (s *LedgerService) CreateAccount(ctx context.Context, userID string) (*domain.Account, error) {
	var account domain.Account
	err := s.mutate(ctx, func(st *ledger.State) error {
		var err error
		account, err = st.CreateAccount(userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(fmt.Sprintf("New account created: %s for user %s", account.ID, userID))
	s.logger.Info("Account created successfully", "account_id", account.ID, "user_id", userID)
	return &account, nil
}

// Block and Unblock trust the caller to have checked the employee role.
func (s *LedgerService) Block(ctx context.Context, accountID string) error {
	return s.setBlocked(ctx, accountID, true)
}

func (s *LedgerService) Unblock(ctx context.Context, accountID string) error {
	return s.setBlocked(ctx, accountID, false)
}

func (s *LedgerService) setBlocked(ctx context.Context, accountID string, blocked bool) error {
	err := s.mutate(ctx, func(st *ledger.State) error {
		return st.SetBlocked(accountID, blocked)
	})
	if err != nil {
		return err
	}

	if blocked {
		s.audit.Log("Account blocked: " + accountID)
	} else {
		s.audit.Log("Account unblocked: " + accountID)
	}
	s.logger.Info("Account block state changed", "account_id", accountID, "blocked", blocked)
	return nil
}

func (s *LedgerService) Accounts(userID string) []domain.Account {
	var out []domain.Account
	s.read(func(st *ledger.State) { out = st.AccountsOf(userID) })
	return out
}

func (s *LedgerService) Account(accountID string) (*domain.Account, error) {
	var account domain.Account
	var ok bool
	s.read(func(st *ledger.State) { account, ok = st.Account(accountID) })
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	return &account, nil
}

func (s *LedgerService) ListTransactions(userID, accountID string, key domain.SortKey) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	var err error
	s.read(func(st *ledger.State) {
		if _, err = ownedAccount(st, userID, accountID); err != nil {
			return
		}
		txs = st.TransactionsOf(accountID)
	})
	if err != nil {
		return nil, err
	}
	domain.SortTransactions(txs, key)
	return txs, nil
}

func (s *LedgerService) ListAllTransactions(key domain.SortKey) []domain.Transaction {
	var txs []domain.Transaction
	s.read(func(st *ledger.State) { txs = st.AllTransactions() })
	domain.SortTransactions(txs, key)
	return txs
}
