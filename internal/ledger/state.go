// Package ledger holds the in-memory identity and ledger stores: users,
// accounts and the append-only transaction history, all kept in creation
// order. State is not safe for concurrent use; callers serialize access.
package ledger

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"banking-ledger/internal/domain"
	"banking-ledger/internal/errors"
)

// State owns id-keyed maps plus an insertion-order index for each entity.
type State struct {
	users        map[string]*domain.User
	userOrder    []string
	usernames    map[string]string
	accounts     map[string]*domain.Account
	accountOrder []string
	userAccounts map[string][]string
	transactions []domain.Transaction
	txByAccount  map[string][]int
	newID        func() string
}

func NewState() *State {
	return &State{
		users:        make(map[string]*domain.User),
		usernames:    make(map[string]string),
		accounts:     make(map[string]*domain.Account),
		userAccounts: make(map[string][]string),
		txByAccount:  make(map[string][]int),
		newID:        func() string { return uuid.NewString() },
	}
}

// FromSnapshot rebuilds a State, rejecting snapshots that break referential
// integrity or repeat an id.
func FromSnapshot(snap *domain.Snapshot) (*State, error) {
	s := NewState()
	if snap == nil {
		return s, nil
	}
	for _, u := range snap.Users {
		if _, dup := s.users[u.ID]; dup {
			return nil, errors.ErrInvalidInput.WithDetails("duplicate user id " + u.ID)
		}
		if _, dup := s.usernames[u.Username]; dup {
			return nil, errors.ErrDuplicateUsername.WithDetails(u.Username)
		}
		s.addUser(u)
	}
	for _, a := range snap.Accounts {
		if _, dup := s.accounts[a.ID]; dup {
			return nil, errors.ErrInvalidInput.WithDetails("duplicate account id " + a.ID)
		}
		if _, ok := s.users[a.UserID]; !ok {
			return nil, errors.ErrUserNotFound.WithDetails("account " + a.ID + " owner " + a.UserID)
		}
		s.addAccount(a)
	}
	seen := make(map[string]struct{}, len(snap.Transactions))
	for _, tx := range snap.Transactions {
		if _, dup := seen[tx.ID]; dup {
			return nil, errors.ErrInvalidInput.WithDetails("duplicate transaction id " + tx.ID)
		}
		if _, ok := s.accounts[tx.AccountID]; !ok {
			return nil, errors.ErrAccountNotFound.WithDetails("transaction " + tx.ID + " account " + tx.AccountID)
		}
		seen[tx.ID] = struct{}{}
		s.appendTransaction(tx)
	}
	return s, nil
}

// Snapshot copies the state into its persisted form.
func (s *State) Snapshot() *domain.Snapshot {
	snap := &domain.Snapshot{
		Users:        make([]domain.User, 0, len(s.userOrder)),
		Accounts:     make([]domain.Account, 0, len(s.accountOrder)),
		Transactions: slices.Clone(s.transactions),
	}
	for _, id := range s.userOrder {
		snap.Users = append(snap.Users, *s.users[id])
	}
	for _, id := range s.accountOrder {
		snap.Accounts = append(snap.Accounts, *s.accounts[id])
	}
	return snap
}

// Clone returns a deep copy used to stage a mutation before it is persisted.
func (s *State) Clone() *State {
	c := &State{
		users:        make(map[string]*domain.User, len(s.users)),
		userOrder:    slices.Clone(s.userOrder),
		usernames:    make(map[string]string, len(s.usernames)),
		accounts:     make(map[string]*domain.Account, len(s.accounts)),
		accountOrder: slices.Clone(s.accountOrder),
		userAccounts: make(map[string][]string, len(s.userAccounts)),
		transactions: slices.Clone(s.transactions),
		txByAccount:  make(map[string][]int, len(s.txByAccount)),
		newID:        s.newID,
	}
	for id, u := range s.users {
		cp := *u
		c.users[id] = &cp
	}
	for name, id := range s.usernames {
		c.usernames[name] = id
	}
	for id, a := range s.accounts {
		cp := *a
		c.accounts[id] = &cp
	}
	for id, ids := range s.userAccounts {
		c.userAccounts[id] = slices.Clone(ids)
	}
	for id, idx := range s.txByAccount {
		c.txByAccount[id] = slices.Clone(idx)
	}
	return c
}

// SetIDGenerator replaces the id source; used by tests for stable ids.
func (s *State) SetIDGenerator(gen func() string) {
	s.newID = gen
}

// Register creates a user and, for clients, one empty account.
func (s *State) Register(username, password string, role domain.Role) (domain.User, *domain.Account, error) {
	if _, exists := s.usernames[username]; exists {
		return domain.User{}, nil, errors.ErrDuplicateUsername
	}
	u := domain.User{ID: s.newID(), Username: username, Password: password, Role: role}

	switch role {
	case domain.RoleClient:
		s.addUser(u)
		a := domain.Account{ID: s.newID(), UserID: u.ID, Balance: decimal.Zero}
		s.addAccount(a)
		return u, &a, nil
	case domain.RoleEmployee:
		s.addUser(u)
		return u, nil, nil
	default:
		return domain.User{}, nil, errors.ErrInvalidInput.WithDetails("unknown role " + string(role))
	}
}

// SetPassword replaces a stored credential, used when upgrading legacy
// plain-text passwords to hashes.
func (s *State) SetPassword(userID, password string) error {
	u, ok := s.users[userID]
	if !ok {
		return errors.ErrUserNotFound
	}
	u.Password = password
	return nil
}

func (s *State) FindByUsername(username string) (domain.User, bool) {
	id, ok := s.usernames[username]
	if !ok {
		return domain.User{}, false
	}
	return *s.users[id], true
}

func (s *State) User(id string) (domain.User, bool) {
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, false
	}
	return *u, true
}

func (s *State) Account(id string) (domain.Account, bool) {
	a, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, false
	}
	return *a, true
}

// AccountsOf lists a user's accounts in creation order.
func (s *State) AccountsOf(userID string) []domain.Account {
	ids := s.userAccounts[userID]
	out := make([]domain.Account, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.accounts[id])
	}
	return out
}

func (s *State) CreateAccount(userID string) (domain.Account, error) {
	if _, ok := s.users[userID]; !ok {
		return domain.Account{}, errors.ErrUserNotFound
	}
	a := domain.Account{ID: s.newID(), UserID: userID, Balance: decimal.Zero}
	s.addAccount(a)
	return a, nil
}

func (s *State) TransactionsOf(accountID string) []domain.Transaction {
	idx := s.txByAccount[accountID]
	out := make([]domain.Transaction, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.transactions[i])
	}
	return out
}

func (s *State) AllTransactions() []domain.Transaction {
	return slices.Clone(s.transactions)
}

func (s *State) SetBlocked(accountID string, blocked bool) error {
	a, ok := s.accounts[accountID]
	if !ok {
		return errors.ErrAccountNotFound
	}
	a.IsBlocked = blocked
	return nil
}

// DepositsOn sums deposit amounts across every account of userID whose
// timestamp falls on the same local calendar day as day.
func (s *State) DepositsOn(userID string, day time.Time) decimal.Decimal {
	y, m, d := day.Date()
	loc := day.Location()
	total := decimal.Zero
	for _, accountID := range s.userAccounts[userID] {
		for _, i := range s.txByAccount[accountID] {
			tx := s.transactions[i]
			if tx.Type != domain.TransactionDeposit {
				continue
			}
			ty, tm, td := tx.Timestamp.In(loc).Date()
			if ty == y && tm == m && td == d {
				total = total.Add(tx.Amount)
			}
		}
	}
	return total
}

// Deposit credits amount to the account as a deposit entry.
func (s *State) Deposit(accountID string, amount decimal.Decimal, at time.Time) (domain.Transaction, error) {
	if !amount.IsPositive() {
		return domain.Transaction{}, errors.ErrInvalidAmount
	}
	return s.post(accountID, amount, domain.TransactionDeposit, at)
}

// PayBill debits amount from the account as a bill payment entry.
func (s *State) PayBill(accountID string, amount decimal.Decimal, at time.Time) (domain.Transaction, error) {
	if err := s.checkDebit(accountID, amount); err != nil {
		return domain.Transaction{}, err
	}
	return s.post(accountID, amount.Neg(), domain.TransactionBillPayment, at)
}

// Transfer moves amount between two accounts, recording the debit leg and
// the credit leg with the same timestamp. Either both legs are applied or
// neither is.
func (s *State) Transfer(fromID, toID string, amount decimal.Decimal, at time.Time) (debit, credit domain.Transaction, err error) {
	if err = s.checkDebit(fromID, amount); err != nil {
		return
	}
	to, ok := s.accounts[toID]
	if !ok {
		err = errors.ErrAccountNotFound
		return
	}
	if to.IsBlocked {
		err = errors.ErrRecipientAccountBlocked
		return
	}
	if debit, err = s.post(fromID, amount.Neg(), domain.TransactionTransfer, at); err != nil {
		return
	}
	credit, err = s.post(toID, amount, domain.TransactionTransfer, at)
	return
}

// checkDebit guards the non-negative balance rule for outgoing money.
func (s *State) checkDebit(accountID string, amount decimal.Decimal) error {
	a, ok := s.accounts[accountID]
	if !ok {
		return errors.ErrAccountNotFound
	}
	if a.IsBlocked {
		return errors.ErrAccountBlocked
	}
	if !a.CanDebit(amount) {
		return errors.ErrInvalidAmount
	}
	return nil
}

func (s *State) post(accountID string, signed decimal.Decimal, txType domain.TransactionType, at time.Time) (domain.Transaction, error) {
	a, ok := s.accounts[accountID]
	if !ok {
		return domain.Transaction{}, errors.ErrAccountNotFound
	}
	a.Balance = a.Balance.Add(signed)
	tx := domain.Transaction{
		ID:        s.newID(),
		AccountID: accountID,
		Amount:    signed,
		Type:      txType,
		Timestamp: at,
	}
	s.appendTransaction(tx)
	return tx, nil
}

func (s *State) addUser(u domain.User) {
	cp := u
	s.users[u.ID] = &cp
	s.userOrder = append(s.userOrder, u.ID)
	s.usernames[u.Username] = u.ID
}

func (s *State) addAccount(a domain.Account) {
	cp := a
	s.accounts[a.ID] = &cp
	s.accountOrder = append(s.accountOrder, a.ID)
	s.userAccounts[a.UserID] = append(s.userAccounts[a.UserID], a.ID)
}

func (s *State) appendTransaction(tx domain.Transaction) {
	s.transactions = append(s.transactions, tx)
	s.txByAccount[tx.AccountID] = append(s.txByAccount[tx.AccountID], len(s.transactions)-1)
}
