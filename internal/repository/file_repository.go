package repository

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"banking-ledger/internal/domain"
	"banking-ledger/internal/errors"
)

// FileStore keeps the snapshot as one JSON document. Saves go to a sibling
// temporary file which is synced and renamed over the target, so a crash
// mid-write leaves the previous snapshot intact.
type FileStore struct {
	path   string
	logger *slog.Logger
}

var _ domain.SnapshotRepository = (*FileStore)(nil)

func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.ErrIO.Wrap(err)
		}
	}
	return &FileStore{path: path, logger: logger}, nil
}

// number marshals a decimal as a bare JSON number.
type number struct {
	decimal.Decimal
}

func (n number) MarshalJSON() ([]byte, error) {
	return []byte(n.String()), nil
}

type fileUser struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type fileAccount struct {
	AccountID string `json:"account_id"`
	UserID    string `json:"user_id"`
	Balance   number `json:"balance"`
	IsBlocked bool   `json:"is_blocked"`
}

type fileTransaction struct {
	TransactionID   string `json:"transaction_id"`
	AccountID       string `json:"account_id"`
	Amount          number `json:"amount"`
	TransactionType string `json:"transaction_type"`
	Timestamp       string `json:"timestamp"`
}

type fileDocument struct {
	Users        []fileUser        `json:"users"`
	Accounts     []fileAccount     `json:"accounts"`
	Transactions []fileTransaction `json:"transactions"`
}

func (s *FileStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.ErrSnapshotNotFound
		}
		return nil, errors.ErrIO.Wrap(err)
	}
	defer f.Close()

	var doc fileDocument
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		s.logger.Error("Failed to decode snapshot", "path", s.path, "error", err)
		return nil, errors.ErrIO.Wrap(err)
	}
	return doc.toSnapshot()
}

func (s *FileStore) Save(ctx context.Context, snap *domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp := s.path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return errors.ErrIO.Wrap(err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "    ")
	if err := enc.Encode(fromSnapshot(snap)); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.ErrIO.Wrap(err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.ErrIO.Wrap(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.ErrIO.Wrap(err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return errors.ErrIO.Wrap(err)
	}

	s.logger.Debug("Snapshot saved", "path", s.path, "transactions", len(snap.Transactions))
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

func fromSnapshot(snap *domain.Snapshot) fileDocument {
	doc := fileDocument{
		Users:        make([]fileUser, 0, len(snap.Users)),
		Accounts:     make([]fileAccount, 0, len(snap.Accounts)),
		Transactions: make([]fileTransaction, 0, len(snap.Transactions)),
	}
	for _, u := range snap.Users {
		doc.Users = append(doc.Users, fileUser{
			UserID:   u.ID,
			Username: u.Username,
			Password: u.Password,
			Role:     string(u.Role),
		})
	}
	for _, a := range snap.Accounts {
		doc.Accounts = append(doc.Accounts, fileAccount{
			AccountID: a.ID,
			UserID:    a.UserID,
			Balance:   number{a.Balance},
			IsBlocked: a.IsBlocked,
		})
	}
	for _, t := range snap.Transactions {
		doc.Transactions = append(doc.Transactions, fileTransaction{
			TransactionID:   t.ID,
			AccountID:       t.AccountID,
			Amount:          number{t.Amount},
			TransactionType: string(t.Type),
			Timestamp:       t.Timestamp.Format(timeFormat),
		})
	}
	return doc
}

func (doc fileDocument) toSnapshot() (*domain.Snapshot, error) {
	snap := &domain.Snapshot{
		Users:        make([]domain.User, 0, len(doc.Users)),
		Accounts:     make([]domain.Account, 0, len(doc.Accounts)),
		Transactions: make([]domain.Transaction, 0, len(doc.Transactions)),
	}
	for _, u := range doc.Users {
		role, err := domain.ParseRole(u.Role)
		if err != nil {
			return nil, errors.ErrInvalidInput.WithDetails(err.Error())
		}
		snap.Users = append(snap.Users, domain.User{
			ID:       u.UserID,
			Username: u.Username,
			Password: u.Password,
			Role:     role,
		})
	}
	for _, a := range doc.Accounts {
		snap.Accounts = append(snap.Accounts, domain.Account{
			ID:        a.AccountID,
			UserID:    a.UserID,
			Balance:   a.Balance.Decimal,
			IsBlocked: a.IsBlocked,
		})
	}
	for _, t := range doc.Transactions {
		txType, err := domain.ParseTransactionType(t.TransactionType)
		if err != nil {
			return nil, errors.ErrInvalidInput.WithDetails(err.Error())
		}
		ts, err := parseTimestamp(t.Timestamp)
		if err != nil {
			return nil, errors.ErrInvalidInput.WithDetails(err.Error())
		}
		snap.Transactions = append(snap.Transactions, domain.Transaction{
			ID:        t.TransactionID,
			AccountID: t.AccountID,
			Amount:    t.Amount.Decimal,
			Type:      txType,
			Timestamp: ts,
		})
	}
	return snap, nil
}

// parseTimestamp accepts RFC 3339 and the offset-less ISO-8601 form older
// snapshots were written with, which is read as local time.
func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(timeFormat, s); err == nil {
		return ts, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.Local)
}
