package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"banking-ledger/internal/domain"
	"banking-ledger/internal/errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryRepository keeps the last saved snapshot and can be told to fail.
type memoryRepository struct {
	mu    sync.Mutex
	snap  *domain.Snapshot
	saves int
	fail  bool
}

func (r *memoryRepository) Load(ctx context.Context) (*domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snap == nil {
		return nil, errors.ErrSnapshotNotFound
	}
	return r.snap, nil
}

func (r *memoryRepository) Save(ctx context.Context, snap *domain.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.ErrIO.WithDetails("disk full")
	}
	r.saves++
	r.snap = snap
	return nil
}

func (r *memoryRepository) Close() error { return nil }

func (r *memoryRepository) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []string
}

func (a *recordingAudit) Log(action string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, action)
}

func (a *recordingAudit) all() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.entries...)
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
