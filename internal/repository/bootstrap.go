package repository

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"banking-ledger/internal/domain"
	"banking-ledger/internal/errors"
	"banking-ledger/internal/ledger"
)

// Bootstrap loads the stored snapshot, or writes and returns the seed
// dataset when nothing has been stored yet.
func Bootstrap(ctx context.Context, repo domain.SnapshotRepository, now time.Time, logger *slog.Logger) (*domain.Snapshot, error) {
	snap, err := repo.Load(ctx)
	if err == nil {
		logger.Info("Snapshot loaded",
			"users", len(snap.Users),
			"accounts", len(snap.Accounts),
			"transactions", len(snap.Transactions))
		return snap, nil
	}
	if !stderrors.Is(err, errors.ErrSnapshotNotFound) {
		return nil, err
	}

	snap = ledger.SeedSnapshot(now)
	if err := repo.Save(ctx, snap); err != nil {
		return nil, err
	}
	logger.Info("No snapshot found, seed data written")
	return snap, nil
}
