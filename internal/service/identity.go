package service

import (
	"context"

	"banking-ledger/internal/domain"
	"banking-ledger/internal/errors"
	"banking-ledger/internal/ledger"
)

// RegisterUser stores a new user with an already hashed credential. Clients
// receive one empty account.
func (s *LedgerService) RegisterUser(ctx context.Context, username, credential string, role domain.Role) (*domain.User, *domain.Account, error) {
	var user domain.User
	var account *domain.Account
	err := s.mutate(ctx, func(st *ledger.State) error {
		var err error
		user, account, err = st.Register(username, credential, role)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.audit.Log("User registered: " + username)
	s.logger.Info("User registered", "user_id", user.ID, "role", role)
	return &user, account, nil
}

func (s *LedgerService) FindUser(username string) (*domain.User, bool) {
	var user domain.User
	var ok bool
	s.read(func(st *ledger.State) { user, ok = st.FindByUsername(username) })
	if !ok {
		return nil, false
	}
	return &user, true
}

func (s *LedgerService) User(userID string) (*domain.User, error) {
	var user domain.User
	var ok bool
	s.read(func(st *ledger.State) { user, ok = st.User(userID) })
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	return &user, nil
}

// ReplaceCredential swaps the stored credential, used to move legacy
// plain-text passwords onto hashes.
func (s *LedgerService) ReplaceCredential(ctx context.Context, userID, credential string) error {
	return s.mutate(ctx, func(st *ledger.State) error {
		return st.SetPassword(userID, credential)
	})
}
