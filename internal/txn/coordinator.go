// Package txn provides the atomic write coordinator: one logical operation
// collects a set of write intents and commits them through exactly one
// multi-path store update, or not at all.
package txn

import (
	"context"
	"log/slog"
	"time"

	"github.com/weftpos/weftpos/internal/store"
)

// IntentFunc produces the write-intent map for one logical operation. A nil
// value deletes the path. Returning an error aborts the operation with zero
// writes.
type IntentFunc func(ctx context.Context) (map[string]any, error)

// Coordinator submits write-intent maps as single atomic store updates.
type Coordinator struct {
	store  store.Store
	logger *slog.Logger
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(st store.Store, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{store: st, logger: logger}
}

// Execute runs fn and applies its write intents as one store update. The
// operation name is observability-only. Failures are not retried here; they
// propagate to the caller untouched.
func (c *Coordinator) Execute(ctx context.Context, op string, fn IntentFunc) error {
	start := time.Now()
	writes, err := fn(ctx)
	if err != nil {
		c.logger.Warn("atomic operation aborted",
			slog.String("op", op),
			slog.Any("error", err))
		return err
	}
	if len(writes) == 0 {
		c.logger.Info("atomic operation produced no writes", slog.String("op", op))
		return nil
	}
	if err := c.store.Update(ctx, writes); err != nil {
		c.logger.Error("atomic write failed",
			slog.String("op", op),
			slog.Int("paths", len(writes)),
			slog.Any("error", err))
		return err
	}
	c.logger.Info("atomic write committed",
		slog.String("op", op),
		slog.Int("paths", len(writes)),
		slog.Duration("duration", time.Since(start)))
	return nil
}
