package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"banking-ledger/internal/domain"
	"banking-ledger/internal/errors"
)

// Store persists snapshots into relational tables. Every Save rewrites the
// three tables inside a single database transaction.
type Store struct {
	db       DB
	executor SQLExecutor
	dialect  Dialect
	logger   *slog.Logger
}

var _ domain.SnapshotRepository = (*Store)(nil)

// NewStore creates a new Store over an open database and applies migrations.
func NewStore(ctx context.Context, db DB, dialect Dialect, logger *slog.Logger) (*Store, error) {
	if err := runMigrations(ctx, db); err != nil {
		return nil, err
	}
	return &Store{
		db:       db,
		executor: db,
		dialect:  dialect,
		logger:   logger,
	}, nil
}

// OpenPostgres connects to PostgreSQL using a lib/pq connection string.
func OpenPostgres(ctx context.Context, connStr string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open(Postgres.DriverName, connStr)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Successfully connected to database", "dialect", Postgres.Name)

	store, err := NewStore(ctx, db, Postgres, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open(SQLite.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// a single connection keeps writers serialized on one handle
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store, err := NewStore(ctx, db, SQLite, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

func (s *Store) users() *userRepository {
	return &userRepository{db: s.executor, dialect: s.dialect, logger: s.logger}
}

func (s *Store) accounts() *accountRepository {
	return &accountRepository{db: s.executor, dialect: s.dialect, logger: s.logger}
}

func (s *Store) transactions() *transactionRepository {
	return &transactionRepository{db: s.executor, dialect: s.dialect, logger: s.logger}
}

// WithTransaction executes a function within a database transaction
func (s *Store) WithTransaction(ctx context.Context, fn func(*Store) error) error {
	if s.db == nil {
		return errors.NewAppError(errors.InternalError, "store is already inside a transaction")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.ErrIO.Wrap(err)
	}

	txStore := &Store{
		executor: tx,
		dialect:  s.dialect,
		logger:   s.logger,
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txStore); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.ErrIO.Wrap(err)
	}
	return nil
}

// Load reads the stored snapshot. An empty users table means nothing has
// been saved yet.
func (s *Store) Load(ctx context.Context) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	err := s.WithTransaction(ctx, func(tx *Store) error {
		var err error
		if snap.Users, err = tx.users().list(ctx); err != nil {
			return err
		}
		if snap.Accounts, err = tx.accounts().list(ctx); err != nil {
			return err
		}
		snap.Transactions, err = tx.transactions().list(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(snap.Users) == 0 {
		return nil, errors.ErrSnapshotNotFound
	}
	return &snap, nil
}

// Save replaces the stored snapshot atomically.
func (s *Store) Save(ctx context.Context, snap *domain.Snapshot) error {
	err := s.WithTransaction(ctx, func(tx *Store) error {
		// children first so foreign keys never dangle
		if err := tx.transactions().deleteAll(ctx); err != nil {
			return err
		}
		if err := tx.accounts().deleteAll(ctx); err != nil {
			return err
		}
		if err := tx.users().deleteAll(ctx); err != nil {
			return err
		}

		for i, u := range snap.Users {
			if err := tx.users().insert(ctx, i, u); err != nil {
				return err
			}
		}
		for i, a := range snap.Accounts {
			if err := tx.accounts().insert(ctx, i, a); err != nil {
				return err
			}
		}
		for i, t := range snap.Transactions {
			if err := tx.transactions().insert(ctx, i, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Snapshot save failed", "dialect", s.dialect.Name, "error", err)
		return err
	}

	s.logger.Debug("Snapshot saved",
		"dialect", s.dialect.Name,
		"users", len(snap.Users),
		"accounts", len(snap.Accounts),
		"transactions", len(snap.Transactions))
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks database connectivity for health reporting.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}
