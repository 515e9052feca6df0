package domain

import "context"

// Snapshot is the full persisted state of users, accounts and transactions,
// each slice in creation order.
type Snapshot struct {
	Users        []User
	Accounts     []Account
	Transactions []Transaction
}

// SnapshotRepository stores and restores whole snapshots. Save overwrites the
// previous snapshot; Load returns errors.ErrSnapshotNotFound when none exists.
type SnapshotRepository interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	Close() error
}

// AuditLogger records human readable actions. It never fails the caller.
type AuditLogger interface {
	Log(action string)
}
