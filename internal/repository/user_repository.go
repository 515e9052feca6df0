package repository

import (
	"context"
	"log/slog"

	"banking-ledger/internal/domain"
	"banking-ledger/internal/errors"
)

type userRepository struct {
	db      SQLExecutor
	dialect Dialect
	logger  *slog.Logger
}

func (r *userRepository) deleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users`); err != nil {
		r.logger.Error("Failed to clear users", "error", err)
		return errors.ErrIO.Wrap(err)
	}
	return nil
}

func (r *userRepository) insert(ctx context.Context, seq int, u domain.User) error {
	query := r.dialect.Rebind(`
		INSERT INTO users (user_id, seq, username, password, role)
		VALUES (?, ?, ?, ?, ?)
	`)

	if _, err := r.db.ExecContext(ctx, query, u.ID, seq, u.Username, u.Password, string(u.Role)); err != nil {
		if isUniqueViolation(err) {
			r.logger.Warn("Duplicate user in snapshot", "user_id", u.ID, "username", u.Username)
			return errors.ErrDuplicateUsername.WithDetails(u.Username)
		}
		r.logger.Error("Failed to insert user", "user_id", u.ID, "error", err)
		return insertError(err)
	}
	return nil
}

func (r *userRepository) list(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id, username, password, role FROM users ORDER BY seq`)
	if err != nil {
		r.logger.Error("Failed to list users", "error", err)
		return nil, errors.ErrIO.Wrap(err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		var role string
		if err := rows.Scan(&u.ID, &u.Username, &u.Password, &role); err != nil {
			return nil, errors.ErrIO.Wrap(err)
		}
		if u.Role, err = domain.ParseRole(role); err != nil {
			return nil, errors.ErrInternal.WithDetails(err.Error())
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.ErrIO.Wrap(err)
	}
	return users, nil
}
