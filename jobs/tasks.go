package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSupplierDueRefresh recomputes supplier dues from their transaction logs.
	TaskSupplierDueRefresh = "ledger:supplier_due_refresh"
)

// SupplierDueRefreshPayload scopes a refresh run. An empty SupplierID sweeps
// every supplier.
type SupplierDueRefreshPayload struct {
	SupplierID   string    `json:"supplier_id,omitempty"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewSupplierDueRefreshTask constructs an Asynq task for a due refresh run.
func NewSupplierDueRefreshTask(payload SupplierDueRefreshPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSupplierDueRefresh, body, asynq.Queue(QueueDefault)), nil
}
