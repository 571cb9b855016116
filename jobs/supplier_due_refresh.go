package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/weftpos/weftpos/internal/jobs"
	"github.com/weftpos/weftpos/internal/ledger"
)

// SupplierDueRefreshJob recomputes supplier dues from their transaction logs
// and corrects any stored value that drifted out of tolerance.
type SupplierDueRefreshJob struct {
	Service *ledger.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSupplierDueRefreshJob initialises the refresh handler.
func NewSupplierDueRefreshJob(service *ledger.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *SupplierDueRefreshJob {
	return &SupplierDueRefreshJob{Service: service, Logger: logger, Metrics: metrics}
}

// Handle executes the refresh sweep.
func (j *SupplierDueRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("supplier due refresh: handler not configured")
	}
	var payload SupplierDueRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskSupplierDueRefresh)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := time.Now()
	logger.Info("starting supplier due refresh", slog.String("supplier_id", payload.SupplierID))

	suppliers, err := j.targets(ctx, payload)
	if err != nil {
		resultErr = err
		logger.Error("resolve refresh targets", slog.Any("error", err))
		return resultErr
	}

	refreshed, corrected := 0, 0
	for _, supplierID := range suppliers {
		report, err := j.Service.RefreshSupplierDue(ctx, supplierID)
		if err != nil {
			resultErr = err
			logger.Error("refresh supplier due",
				slog.Any("error", err),
				slog.String("supplier_id", supplierID))
			return resultErr
		}
		refreshed++
		if !report.IsValid {
			corrected++
			j.metrics().AddDueDrift(1)
		}
	}

	logger.Info("completed supplier due refresh",
		slog.Int("suppliers", refreshed),
		slog.Int("corrected", corrected),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *SupplierDueRefreshJob) targets(ctx context.Context, payload SupplierDueRefreshPayload) ([]string, error) {
	if payload.SupplierID != "" {
		return []string{payload.SupplierID}, nil
	}
	suppliers, err := j.Service.ListSuppliers(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(suppliers))
	for _, s := range suppliers {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

func (j *SupplierDueRefreshJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSupplierDueRefresh))
	}
	return slog.Default().With(slog.String("job", TaskSupplierDueRefresh))
}

func (j *SupplierDueRefreshJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}
