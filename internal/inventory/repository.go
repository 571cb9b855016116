package inventory

import (
	"context"
	"fmt"

	"github.com/weftpos/weftpos/internal/store"
)

// RepositoryPort abstracts fabric reads for the service.
type RepositoryPort interface {
	// GetFabric loads a fabric's meta document plus all of its batches.
	GetFabric(ctx context.Context, fabricID string) (Fabric, error)
	// GetBatch re-reads one batch. The reduction engine calls this after
	// taking the batch lock so it reduces against fresh state, not the
	// pre-lock snapshot.
	GetBatch(ctx context.Context, fabricID, batchID string) (Batch, bool, error)
}

// Repository reads fabrics from the document store.
type Repository struct {
	store store.Store
}

// NewRepository constructs a Repository.
func NewRepository(st store.Store) *Repository {
	return &Repository{store: st}
}

// GetFabric implements RepositoryPort.
func (r *Repository) GetFabric(ctx context.Context, fabricID string) (Fabric, error) {
	snap, err := r.store.Get(ctx, FabricPath(fabricID))
	if err != nil {
		return Fabric{}, fmt.Errorf("inventory: load fabric %s: %w", fabricID, err)
	}
	if !snap.Exists() {
		return Fabric{}, ErrFabricNotFound
	}
	var fabric Fabric
	if err := snap.Val(&fabric); err != nil {
		return Fabric{}, fmt.Errorf("inventory: decode fabric %s: %w", fabricID, err)
	}
	fabric.ID = fabricID

	docs, err := r.store.List(ctx, BatchesPrefix(fabricID))
	if err != nil {
		return Fabric{}, fmt.Errorf("inventory: load batches of %s: %w", fabricID, err)
	}
	fabric.Batches = make(map[string]Batch, len(docs))
	prefix := BatchesPrefix(fabricID)
	for path, doc := range docs {
		var batch Batch
		if err := doc.Val(&batch); err != nil {
			return Fabric{}, fmt.Errorf("inventory: decode batch %s: %w", path, err)
		}
		batch.ID = path[len(prefix):]
		fabric.Batches[batch.ID] = batch
	}
	return fabric, nil
}

// GetBatch implements RepositoryPort.
func (r *Repository) GetBatch(ctx context.Context, fabricID, batchID string) (Batch, bool, error) {
	snap, err := r.store.Get(ctx, BatchPath(fabricID, batchID))
	if err != nil {
		return Batch{}, false, fmt.Errorf("inventory: load batch %s/%s: %w", fabricID, batchID, err)
	}
	if !snap.Exists() {
		return Batch{}, false, nil
	}
	var batch Batch
	if err := snap.Val(&batch); err != nil {
		return Batch{}, false, fmt.Errorf("inventory: decode batch %s/%s: %w", fabricID, batchID, err)
	}
	batch.ID = batchID
	return batch, true, nil
}
