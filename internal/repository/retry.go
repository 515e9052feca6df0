package repository

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"banking-ledger/internal/domain"
	"banking-ledger/internal/errors"
)

// RetryingRepository retries failed saves with exponential backoff and
// gives up after maxTries attempts.
type RetryingRepository struct {
	domain.SnapshotRepository
	maxTries uint
	interval time.Duration
	logger   *slog.Logger
}

func NewRetryingRepository(repo domain.SnapshotRepository, maxTries uint, logger *slog.Logger) *RetryingRepository {
	if maxTries == 0 {
		maxTries = 1
	}
	return &RetryingRepository{
		SnapshotRepository: repo,
		maxTries:           maxTries,
		interval:           50 * time.Millisecond,
		logger:             logger,
	}
}

func (r *RetryingRepository) Save(ctx context.Context, snap *domain.Snapshot) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.interval
	b.MaxInterval = 20 * r.interval

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := r.SnapshotRepository.Save(ctx, snap)
		if err == nil {
			return struct{}{}, nil
		}
		// only I/O failures are worth another attempt
		if !stderrors.Is(err, errors.ErrIO) {
			return struct{}{}, backoff.Permanent(err)
		}
		r.logger.Warn("Snapshot save failed, retrying", "attempt", attempt, "error", err)
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(r.maxTries))
	return err
}
