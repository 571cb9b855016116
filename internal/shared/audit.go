package shared

import (
	"context"
	"errors"
	"time"

	"github.com/weftpos/weftpos/internal/store"
)

// AuditLog records one ledger mutation for later inspection.
type AuditLog struct {
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entityId"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"at"`
}

// AuditPort is implemented by anything able to record audit entries.
type AuditPort interface {
	Record(ctx context.Context, log AuditLog) error
}

// AuditLogger writes audit entries as documents under audit/.
type AuditLogger struct {
	store store.Store
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(st store.Store) *AuditLogger {
	return &AuditLogger{store: st}
}

// Record persists the log entry. Audit writes are single-path and sit outside
// the operation's atomic write map on purpose: a failed audit write must not
// undo a committed ledger operation.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	if log.At.IsZero() {
		log.At = time.Now().UTC()
	}
	id, err := l.store.Push(ctx, "audit")
	if err != nil {
		return err
	}
	return l.store.Set(ctx, store.Join("audit", id), log)
}
