package jobs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/weftpos/weftpos/internal/ledger"
	"github.com/weftpos/weftpos/internal/memo"
	"github.com/weftpos/weftpos/internal/store"
	"github.com/weftpos/weftpos/internal/txn"
	_ "github.com/weftpos/weftpos/testing"
)

func newRefreshFixture(t *testing.T) (*store.Memory, *SupplierDueRefreshJob) {
	t.Helper()
	mem := store.NewMemory()
	coordinator := txn.NewCoordinator(mem, nil)
	svc := ledger.NewService(ledger.NewRepository(mem), memo.NewRepository(mem), coordinator, mem, nil)
	return mem, NewSupplierDueRefreshJob(svc, nil, nil)
}

func seedSupplierWithLog(t *testing.T, mem *store.Memory, s ledger.Supplier, txns []ledger.SupplierTransaction) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, ledger.SupplierPath(s.ID), s))
	for _, tx := range txns {
		require.NoError(t, mem.Set(ctx, ledger.SupplierTransactionPath(s.ID, tx.ID), tx))
	}
}

func refreshTask(t *testing.T, payload SupplierDueRefreshPayload) *asynq.Task {
	t.Helper()
	task, err := NewSupplierDueRefreshTask(payload)
	require.NoError(t, err)
	return task
}

func storedDue(t *testing.T, mem *store.Memory, supplierID string) float64 {
	t.Helper()
	snap, err := mem.Get(context.Background(), ledger.SupplierPath(supplierID))
	require.NoError(t, err)
	require.True(t, snap.Exists())
	var s ledger.Supplier
	require.NoError(t, snap.Val(&s))
	return s.TotalDue
}

func TestSupplierDueRefreshSweep(t *testing.T) {
	mem, job := newRefreshFixture(t)

	seedSupplierWithLog(t, mem, ledger.Supplier{ID: "sup-1", Name: "Mills & Co", TotalDue: 999}, []ledger.SupplierTransaction{
		{ID: "t1", SupplierID: "sup-1", TotalAmount: 400, PaidAmount: 100},
		{ID: "t2", SupplierID: "sup-1", TotalAmount: 200, PaidAmount: 200},
	})
	seedSupplierWithLog(t, mem, ledger.Supplier{ID: "sup-2", Name: "Weave Works", TotalDue: 120}, []ledger.SupplierTransaction{
		{ID: "t3", SupplierID: "sup-2", TotalAmount: 150, PaidAmount: 30},
	})

	err := job.Handle(context.Background(), refreshTask(t, SupplierDueRefreshPayload{}))
	require.NoError(t, err)

	require.InDelta(t, 300, storedDue(t, mem, "sup-1"), 0.0001)
	require.InDelta(t, 120, storedDue(t, mem, "sup-2"), 0.0001)
}

func TestSupplierDueRefreshScoped(t *testing.T) {
	mem, job := newRefreshFixture(t)

	seedSupplierWithLog(t, mem, ledger.Supplier{ID: "sup-1", Name: "Mills & Co", TotalDue: 999}, []ledger.SupplierTransaction{
		{ID: "t1", SupplierID: "sup-1", TotalAmount: 400, PaidAmount: 100},
	})
	seedSupplierWithLog(t, mem, ledger.Supplier{ID: "sup-2", Name: "Weave Works", TotalDue: 999}, []ledger.SupplierTransaction{
		{ID: "t2", SupplierID: "sup-2", TotalAmount: 150, PaidAmount: 30},
	})

	err := job.Handle(context.Background(), refreshTask(t, SupplierDueRefreshPayload{SupplierID: "sup-1"}))
	require.NoError(t, err)

	require.InDelta(t, 300, storedDue(t, mem, "sup-1"), 0.0001)
	// sup-2 stays untouched by the scoped run.
	require.InDelta(t, 999, storedDue(t, mem, "sup-2"), 0.0001)
}

func TestSupplierDueRefreshMalformedPayload(t *testing.T) {
	_, job := newRefreshFixture(t)

	task := asynq.NewTask(TaskSupplierDueRefresh, []byte("{not json"))
	err := job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestSupplierDueRefreshPayloadRoundtrip(t *testing.T) {
	task := refreshTask(t, SupplierDueRefreshPayload{SupplierID: "sup-9"})
	var payload SupplierDueRefreshPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, "sup-9", payload.SupplierID)
}
