package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weftpos/weftpos/internal/shared"
	"github.com/weftpos/weftpos/internal/store"
	"github.com/weftpos/weftpos/internal/txn"
	_ "github.com/weftpos/weftpos/testing"
)

type fixture struct {
	store *store.Memory
	locks *shared.MemoryLockManager
	repo  *Repository
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	locks := shared.NewMemoryLockManager()
	repo := NewRepository(mem)
	svc := NewService(repo, locks, txn.NewCoordinator(mem, nil), mem, nil, nil, nil)
	return &fixture{store: mem, locks: locks, repo: repo, svc: svc}
}

func (f *fixture) seedFabric(t *testing.T, id, name string) {
	t.Helper()
	require.NoError(t, f.store.Set(context.Background(), FabricPath(id), Fabric{ID: id, Name: name, Unit: "m"}))
}

func (f *fixture) seedBatch(t *testing.T, fabricID string, batch Batch) {
	t.Helper()
	require.NoError(t, f.store.Set(context.Background(), BatchPath(fabricID, batch.ID), batch))
}

func (f *fixture) batch(t *testing.T, fabricID, batchID string) Batch {
	t.Helper()
	b, found, err := f.repo.GetBatch(context.Background(), fabricID, batchID)
	require.NoError(t, err)
	require.True(t, found)
	return b
}

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestReduceFIFOAcrossBatches(t *testing.T) {
	f := newFixture(t)
	f.seedFabric(t, "cotton", "Cotton")
	f.seedBatch(t, "cotton", Batch{ID: "a", PurchaseDate: date("2024-01-01"), Items: []BatchItem{{ColorName: "Red", Quantity: 50}}})
	f.seedBatch(t, "cotton", Batch{ID: "b", PurchaseDate: date("2024-02-01"), Items: []BatchItem{{ColorName: "Red", Quantity: 80}}})

	result, err := f.svc.ReduceInventory(context.Background(), ReduceRequest{Items: []SaleLineItem{
		{FabricID: "cotton", Name: "Cotton", Quantity: 60, ColorName: "Red"},
	}})
	require.NoError(t, err)

	require.InDelta(t, 0, f.batch(t, "cotton", "a").Items[0].Quantity, 1e-9)
	require.InDelta(t, 70, f.batch(t, "cotton", "b").Items[0].Quantity, 1e-9)
	require.Equal(t, 2, result.BatchesTouched)

	var total float64
	for _, r := range result.Reductions {
		total += r.Quantity
	}
	require.InDelta(t, 60, total, 1e-9)
}

func TestReducePurchaseDateTieBrokenByCreation(t *testing.T) {
	f := newFixture(t)
	f.seedFabric(t, "silk", "Silk")
	day := date("2024-03-01")
	f.seedBatch(t, "silk", Batch{ID: "later", PurchaseDate: day, CreatedAt: day.Add(2 * time.Hour), Items: []BatchItem{{ColorName: "Gold", Quantity: 30}}})
	f.seedBatch(t, "silk", Batch{ID: "earlier", PurchaseDate: day, CreatedAt: day.Add(1 * time.Hour), Items: []BatchItem{{ColorName: "Gold", Quantity: 30}}})

	_, err := f.svc.ReduceInventory(context.Background(), ReduceRequest{Items: []SaleLineItem{
		{FabricID: "silk", Quantity: 10, ColorName: "Gold"},
	}})
	require.NoError(t, err)

	require.InDelta(t, 20, f.batch(t, "silk", "earlier").Items[0].Quantity, 1e-9)
	require.InDelta(t, 30, f.batch(t, "silk", "later").Items[0].Quantity, 1e-9)
}

func TestReduceColorFilterSkipsOtherColors(t *testing.T) {
	f := newFixture(t)
	f.seedFabric(t, "linen", "Linen")
	f.seedBatch(t, "linen", Batch{ID: "a", PurchaseDate: date("2024-01-01"), Items: []BatchItem{
		{ColorName: "White", Quantity: 10},
		{ColorName: "Blue", Quantity: 15},
	}})
	f.seedBatch(t, "linen", Batch{ID: "b", PurchaseDate: date("2024-02-01"), Items: []BatchItem{
		{ColorName: "Blue", Quantity: 5},
	}})

	_, err := f.svc.ReduceInventory(context.Background(), ReduceRequest{Items: []SaleLineItem{
		{FabricID: "linen", Quantity: 18, ColorName: "Blue"},
	}})
	require.NoError(t, err)

	a := f.batch(t, "linen", "a")
	require.InDelta(t, 10, a.Items[0].Quantity, 1e-9) // White untouched
	require.InDelta(t, 0, a.Items[1].Quantity, 1e-9)
	require.InDelta(t, 2, f.batch(t, "linen", "b").Items[0].Quantity, 1e-9)
}

func TestReduceWithoutColorConsumesAllItems(t *testing.T) {
	f := newFixture(t)
	f.seedFabric(t, "linen", "Linen")
	f.seedBatch(t, "linen", Batch{ID: "a", PurchaseDate: date("2024-01-01"), Items: []BatchItem{
		{ColorName: "White", Quantity: 4},
		{ColorName: "Blue", Quantity: 6},
	}})

	_, err := f.svc.ReduceInventory(context.Background(), ReduceRequest{Items: []SaleLineItem{
		{FabricID: "linen", Quantity: 7},
	}})
	require.NoError(t, err)

	a := f.batch(t, "linen", "a")
	require.InDelta(t, 0, a.Items[0].Quantity, 1e-9)
	require.InDelta(t, 3, a.Items[1].Quantity, 1e-9)
}

func TestReduceInsufficientStockLeavesStoreUntouched(t *testing.T) {
	f := newFixture(t)
	f.seedFabric(t, "cotton", "Cotton")
	f.seedBatch(t, "cotton", Batch{ID: "a", PurchaseDate: date("2024-01-01"), Items: []BatchItem{{ColorName: "Red", Quantity: 50}}})

	_, err := f.svc.ReduceInventory(context.Background(), ReduceRequest{Items: []SaleLineItem{
		{FabricID: "cotton", Quantity: 60, ColorName: "Red"},
	}})
	require.True(t, shared.IsValidation(err))

	var appErr *shared.Error
	require.ErrorAs(t, err, &appErr)
	require.InDelta(t, 10.0, appErr.Meta["shortfall"].(float64), 1e-9)
	require.InDelta(t, 50.0, appErr.Meta["available"].(float64), 1e-9)

	require.InDelta(t, 50, f.batch(t, "cotton", "a").Items[0].Quantity, 1e-9)
	require.False(t, f.locks.Held(shared.BatchLockKey("cotton", "a")))
}

func TestReduceValidationFailures(t *testing.T) {
	f := newFixture(t)
	f.seedFabric(t, "cotton", "Cotton")
	ctx := context.Background()

	_, err := f.svc.ReduceInventory(ctx, ReduceRequest{})
	require.True(t, shared.IsValidation(err))

	_, err = f.svc.ReduceInventory(ctx, ReduceRequest{Items: []SaleLineItem{{FabricID: "", Quantity: 1}}})
	require.True(t, shared.IsValidation(err))

	_, err = f.svc.ReduceInventory(ctx, ReduceRequest{Items: []SaleLineItem{{FabricID: "cotton", Quantity: 0}}})
	require.True(t, shared.IsValidation(err))

	_, err = f.svc.ReduceInventory(ctx, ReduceRequest{Items: []SaleLineItem{{FabricID: "nope", Quantity: 1}}})
	require.True(t, shared.IsNotFound(err))

	// A fabric without batches is NOT_FOUND before any lock is taken.
	_, err = f.svc.ReduceInventory(ctx, ReduceRequest{Items: []SaleLineItem{{FabricID: "cotton", Quantity: 1}}})
	require.True(t, shared.IsNotFound(err))
}

func TestReduceLockContentionUnwinds(t *testing.T) {
	f := newFixture(t)
	f.seedFabric(t, "cotton", "Cotton")
	f.seedBatch(t, "cotton", Batch{ID: "a", PurchaseDate: date("2024-01-01"), Items: []BatchItem{{ColorName: "Red", Quantity: 10}}})
	f.seedBatch(t, "cotton", Batch{ID: "b", PurchaseDate: date("2024-02-01"), Items: []BatchItem{{ColorName: "Red", Quantity: 10}}})
	ctx := context.Background()

	// Another operation holds batch b; the request needs both batches.
	_, err := f.locks.Acquire(ctx, shared.BatchLockKey("cotton", "b"))
	require.NoError(t, err)

	_, err = f.svc.ReduceInventory(ctx, ReduceRequest{Items: []SaleLineItem{
		{FabricID: "cotton", Quantity: 15, ColorName: "Red"},
	}})
	require.True(t, shared.IsConflict(err))

	// The lock on a, taken before the contention, was released during unwind.
	require.False(t, f.locks.Held(shared.BatchLockKey("cotton", "a")))
	require.InDelta(t, 10, f.batch(t, "cotton", "a").Items[0].Quantity, 1e-9)
	require.InDelta(t, 10, f.batch(t, "cotton", "b").Items[0].Quantity, 1e-9)
}

func TestReduceLocksReleasedAfterCommit(t *testing.T) {
	f := newFixture(t)
	f.seedFabric(t, "cotton", "Cotton")
	f.seedBatch(t, "cotton", Batch{ID: "a", PurchaseDate: date("2024-01-01"), Items: []BatchItem{{ColorName: "Red", Quantity: 10}}})

	_, err := f.svc.ReduceInventory(context.Background(), ReduceRequest{Items: []SaleLineItem{
		{FabricID: "cotton", Quantity: 5, ColorName: "Red"},
	}})
	require.NoError(t, err)
	require.False(t, f.locks.Held(shared.BatchLockKey("cotton", "a")))
}

func TestReduceSecondLineSeesFirstLineReductions(t *testing.T) {
	f := newFixture(t)
	f.seedFabric(t, "cotton", "Cotton")
	f.seedBatch(t, "cotton", Batch{ID: "a", PurchaseDate: date("2024-01-01"), Items: []BatchItem{{ColorName: "Red", Quantity: 10}}})
	f.seedBatch(t, "cotton", Batch{ID: "b", PurchaseDate: date("2024-02-01"), Items: []BatchItem{{ColorName: "Red", Quantity: 10}}})

	_, err := f.svc.ReduceInventory(context.Background(), ReduceRequest{Items: []SaleLineItem{
		{FabricID: "cotton", Quantity: 8, ColorName: "Red"},
		{FabricID: "cotton", Quantity: 8, ColorName: "Red"},
	}})
	require.NoError(t, err)

	require.InDelta(t, 0, f.batch(t, "cotton", "a").Items[0].Quantity, 1e-9)
	require.InDelta(t, 4, f.batch(t, "cotton", "b").Items[0].Quantity, 1e-9)
}

// staleRepo inflates the validation snapshot so the commit phase has to catch
// the shortfall from the fresh per-batch reads.
type staleRepo struct {
	*Repository
	inflate float64
}

func (r *staleRepo) GetFabric(ctx context.Context, fabricID string) (Fabric, error) {
	fabric, err := r.Repository.GetFabric(ctx, fabricID)
	if err != nil {
		return Fabric{}, err
	}
	for id, b := range fabric.Batches {
		inflated := b
		inflated.Items = append([]BatchItem(nil), b.Items...)
		for i := range inflated.Items {
			inflated.Items[i].Quantity += r.inflate
		}
		fabric.Batches[id] = inflated
	}
	return fabric, nil
}

func TestReduceStaleSnapshotFailsUnderLockWithZeroWrites(t *testing.T) {
	mem := store.NewMemory()
	locks := shared.NewMemoryLockManager()
	repo := &staleRepo{Repository: NewRepository(mem), inflate: 100}
	svc := NewService(repo, locks, txn.NewCoordinator(mem, nil), mem, nil, nil, nil)
	ctx := context.Background()

	require.NoError(t, mem.Set(ctx, FabricPath("cotton"), Fabric{ID: "cotton", Name: "Cotton"}))
	require.NoError(t, mem.Set(ctx, BatchPath("cotton", "a"), Batch{ID: "a", PurchaseDate: date("2024-01-01"), Items: []BatchItem{{ColorName: "Red", Quantity: 5}}}))

	// Validation sees 105 units; the fresh read under lock only has 5.
	_, err := svc.ReduceInventory(ctx, ReduceRequest{Items: []SaleLineItem{
		{FabricID: "cotton", Quantity: 50, ColorName: "Red"},
	}})
	require.True(t, shared.IsValidation(err))
	require.Contains(t, err.Error(), "fifo reduction incomplete")

	b, found, err := NewRepository(mem).GetBatch(ctx, "cotton", "a")
	require.NoError(t, err)
	require.True(t, found)
	require.InDelta(t, 5, b.Items[0].Quantity, 1e-9)
	require.False(t, locks.Held(shared.BatchLockKey("cotton", "a")))
}

func TestCreateFabricAndAddBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fabric, err := f.svc.CreateFabric(ctx, FabricInput{Name: "Denim", Category: "heavy", Unit: "m"})
	require.NoError(t, err)
	require.NotEmpty(t, fabric.ID)

	_, err = f.svc.AddBatch(ctx, fabric.ID, BatchInput{
		PurchaseDate: date("2024-04-01"),
		UnitCost:     120,
		Supplier:     "sup-1",
		Items:        []BatchItem{{ColorName: "Indigo", Quantity: 40}},
	})
	require.NoError(t, err)

	loaded, err := f.svc.GetFabric(ctx, fabric.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Batches, 1)

	_, err = f.svc.AddBatch(ctx, "missing", BatchInput{Items: []BatchItem{{ColorName: "x", Quantity: 1}}})
	require.True(t, shared.IsNotFound(err))

	_, err = f.svc.AddBatch(ctx, fabric.ID, BatchInput{})
	require.True(t, shared.IsValidation(err))

	_, err = f.svc.AddBatch(ctx, fabric.ID, BatchInput{Items: []BatchItem{{ColorName: "x", Quantity: -1}}})
	require.True(t, shared.IsValidation(err))
}
