package repository

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"banking-ledger/internal/domain"
)

const auditTimeFormat = "2006-01-02 15:04:05.000000"

// FileAuditLog appends one "[timestamp] action" line per call. Write
// failures are reported to the debug log and otherwise ignored.
type FileAuditLog struct {
	mu     sync.Mutex
	path   string
	now    func() time.Time
	logger *slog.Logger
}

var _ domain.AuditLogger = (*FileAuditLog)(nil)

func NewFileAuditLog(path string, logger *slog.Logger) *FileAuditLog {
	return &FileAuditLog{path: path, now: time.Now, logger: logger}
}

func (l *FileAuditLog) Log(action string) {
	l.Append(action, l.now())
}

func (l *FileAuditLog) Append(action string, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l.logger.Debug("Audit log unavailable", "path", l.path, "error", err)
		return
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "[%s] %s\n", at.Format(auditTimeFormat), action); err != nil {
		l.logger.Debug("Audit log write failed", "path", l.path, "error", err)
	}
}
