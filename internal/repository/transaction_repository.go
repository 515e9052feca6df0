package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"banking-ledger/internal/domain"
	"banking-ledger/internal/errors"
)

const timeFormat = time.RFC3339Nano

type transactionRepository struct {
	db      SQLExecutor
	dialect Dialect
	logger  *slog.Logger
}

func (r *transactionRepository) deleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		r.logger.Error("Failed to clear transactions", "error", err)
		return errors.ErrIO.Wrap(err)
	}
	return nil
}

func (r *transactionRepository) insert(ctx context.Context, seq int, tx domain.Transaction) error {
	query := r.dialect.Rebind(`
		INSERT INTO transactions (transaction_id, seq, account_id, amount, transaction_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		tx.ID,
		seq,
		tx.AccountID,
		tx.Amount.String(),
		string(tx.Type),
		tx.Timestamp.Format(timeFormat),
	)
	if err != nil {
		r.logger.Error("Failed to insert transaction",
			"transaction_id", tx.ID,
			"account_id", tx.AccountID,
			"amount", tx.Amount,
			"error", err)
		return insertError(err)
	}
	return nil
}

func (r *transactionRepository) list(ctx context.Context) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT transaction_id, account_id, amount, transaction_type, created_at
		FROM transactions ORDER BY seq
	`)
	if err != nil {
		r.logger.Error("Failed to list transactions", "error", err)
		return nil, errors.ErrIO.Wrap(err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var amountStr, txType, createdAt string
		if err := rows.Scan(&tx.ID, &tx.AccountID, &amountStr, &txType, &createdAt); err != nil {
			return nil, errors.ErrIO.Wrap(err)
		}

		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to parse amount").WithDetails(err.Error())
		}
		tx.Amount = amount

		if tx.Type, err = domain.ParseTransactionType(txType); err != nil {
			return nil, errors.ErrInternal.WithDetails(err.Error())
		}
		if tx.Timestamp, err = time.Parse(timeFormat, createdAt); err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to parse timestamp").WithDetails(err.Error())
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.ErrIO.Wrap(err)
	}
	return txs, nil
}
