package repository

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"banking-ledger/internal/domain"
	"banking-ledger/internal/errors"
)

type accountRepository struct {
	db      SQLExecutor
	dialect Dialect
	logger  *slog.Logger
}

func (r *accountRepository) deleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM accounts`); err != nil {
		r.logger.Error("Failed to clear accounts", "error", err)
		return errors.ErrIO.Wrap(err)
	}
	return nil
}

func (r *accountRepository) insert(ctx context.Context, seq int, a domain.Account) error {
	query := r.dialect.Rebind(`
		INSERT INTO accounts (account_id, seq, user_id, balance, is_blocked)
		VALUES (?, ?, ?, ?, ?)
	`)

	if _, err := r.db.ExecContext(ctx, query, a.ID, seq, a.UserID, a.Balance.String(), a.IsBlocked); err != nil {
		r.logger.Error("Failed to insert account", "account_id", a.ID, "error", err)
		return insertError(err)
	}
	return nil
}

func (r *accountRepository) list(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT account_id, user_id, balance, is_blocked FROM accounts ORDER BY seq`)
	if err != nil {
		r.logger.Error("Failed to list accounts", "error", err)
		return nil, errors.ErrIO.Wrap(err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		var balanceStr string
		if err := rows.Scan(&a.ID, &a.UserID, &balanceStr, &a.IsBlocked); err != nil {
			return nil, errors.ErrIO.Wrap(err)
		}
		balance, err := decimal.NewFromString(balanceStr)
		if err != nil {
			r.logger.Error("Failed to parse balance", "account_id", a.ID, "balance_str", balanceStr, "error", err)
			return nil, errors.NewAppError(errors.InternalError, "failed to parse balance").WithDetails(err.Error())
		}
		a.Balance = balance
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.ErrIO.Wrap(err)
	}
	return accounts, nil
}
