package inventory

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/weftpos/weftpos/internal/shared"
	"github.com/weftpos/weftpos/internal/store"
	"github.com/weftpos/weftpos/internal/txn"
)

const qtyEpsilon = 1e-9

// Service is the inventory reduction engine: FIFO stock reduction across
// fabric batches under per-batch locks, committing every touched batch through
// one atomic write.
type Service struct {
	repo        RepositoryPort
	locks       shared.LockManager
	coordinator *txn.Coordinator
	store       store.Store
	audit       shared.AuditPort
	idempotency *shared.IdempotencyStore
	logger      *slog.Logger
}

// NewService builds Service. Audit and idempotency are optional.
func NewService(repo RepositoryPort, locks shared.LockManager, coordinator *txn.Coordinator, st store.Store, audit shared.AuditPort, idem *shared.IdempotencyStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, locks: locks, coordinator: coordinator, store: st, audit: audit, idempotency: idem, logger: logger}
}

// ReduceInventory validates the whole request, then consumes stock oldest
// batch first. Validation never mutates; the commit phase re-reads every batch
// after taking its lock so a stale snapshot can never double-spend units. All
// acquired locks are released on every path out, and all batch writes commit
// through exactly one atomic update.
func (s *Service) ReduceInventory(ctx context.Context, req ReduceRequest) (ReduceResult, error) {
	const op = "inventory.reduce"

	if len(req.Items) == 0 {
		return ReduceResult{}, shared.NewError(shared.KindValidation, op, "at least one sale line item required")
	}
	for i, item := range req.Items {
		if item.FabricID == "" {
			return ReduceResult{}, shared.NewError(shared.KindValidation, op, "fabric id required").With("line", i)
		}
		if item.Quantity <= 0 {
			return ReduceResult{}, shared.NewError(shared.KindValidation, op, "quantity must be positive").
				With("line", i).With("fabric_id", item.FabricID).With("quantity", item.Quantity)
		}
	}

	// Validation phase: no locks, no mutation. A shortfall found here aborts
	// with zero side effects.
	fabrics := make(map[string]Fabric, len(req.Items))
	for _, item := range req.Items {
		fabric, ok := fabrics[item.FabricID]
		if !ok {
			loaded, err := s.repo.GetFabric(ctx, item.FabricID)
			if errors.Is(err, ErrFabricNotFound) {
				return ReduceResult{}, shared.WrapError(shared.KindNotFound, op, "fabric not found", err).
					With("fabric_id", item.FabricID)
			}
			if err != nil {
				return ReduceResult{}, err
			}
			fabrics[item.FabricID] = loaded
			fabric = loaded
		}
		if len(fabric.Batches) == 0 {
			return ReduceResult{}, shared.NewError(shared.KindNotFound, op, "fabric has no batches").
				With("fabric_id", item.FabricID)
		}
		var available float64
		for _, b := range fabric.Batches {
			available += availableQuantity(b, item.ColorName)
		}
		if available+qtyEpsilon < item.Quantity {
			return ReduceResult{}, shared.NewError(shared.KindValidation, op, "insufficient stock").
				With("fabric_id", item.FabricID).
				With("color", item.ColorName).
				With("requested", item.Quantity).
				With("available", available).
				With("shortfall", item.Quantity-available)
		}
	}

	insertedKey := ""
	if s.idempotency != nil && req.Code != "" {
		key := "reduce:" + req.Code
		if err := s.idempotency.CheckAndInsert(ctx, key, "inventory"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return ReduceResult{}, shared.NewError(shared.KindConflict, op, "operation code already processed").
					With("code", req.Code)
			}
			return ReduceResult{}, err
		}
		insertedKey = key
	}

	result, err := s.commitReduction(ctx, op, req, fabrics)
	if err != nil {
		if insertedKey != "" {
			_ = s.idempotency.Delete(ctx, insertedKey)
		}
		return ReduceResult{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "inventory:reduce",
			Entity:   "sale",
			EntityID: req.Code,
			Meta: map[string]any{
				"lines":           len(req.Items),
				"batches_touched": result.BatchesTouched,
			},
		})
	}
	return result, nil
}

// commitReduction walks batches FIFO, locking and re-reading each one before
// mutating it. Locks accumulate across the whole request and are released
// together once the atomic write has either committed or failed.
func (s *Service) commitReduction(ctx context.Context, op string, req ReduceRequest, fabrics map[string]Fabric) (result ReduceResult, err error) {
	var acquired []string
	defer func() {
		for _, key := range acquired {
			if relErr := s.locks.Release(ctx, key); relErr != nil {
				s.logger.Warn("release batch lock", slog.String("key", key), slog.Any("error", relErr))
			}
		}
	}()

	intents := make(map[string]any)
	// liveBatches carries the state seen under lock plus any in-flight
	// reductions from earlier lines; later lines must not reduce against the
	// pre-lock snapshot again.
	liveBatches := make(map[string]Batch)
	locked := make(map[string]bool)

	for _, item := range req.Items {
		fabric := fabrics[item.FabricID]
		remaining := item.Quantity

		for _, snapshot := range sortedBatches(fabric) {
			if remaining <= qtyEpsilon {
				break
			}
			path := BatchPath(item.FabricID, snapshot.ID)
			current, live := liveBatches[path]
			if !live {
				current = snapshot
			}
			// Never lock a batch with nothing eligible to take.
			if availableQuantity(current, item.ColorName) <= 0 {
				continue
			}

			key := shared.BatchLockKey(item.FabricID, snapshot.ID)
			if !locked[key] {
				ok, lockErr := s.locks.Acquire(ctx, key)
				if lockErr != nil {
					return ReduceResult{}, lockErr
				}
				if !ok {
					return ReduceResult{}, shared.NewError(shared.KindConflict, op, "batch lock contended").
						With("fabric_id", item.FabricID).
						With("batch_id", snapshot.ID)
				}
				locked[key] = true
				acquired = append(acquired, key)

				// Re-read under the lock: the validation snapshot may be
				// stale if a concurrent reduction committed in between.
				fresh, found, readErr := s.repo.GetBatch(ctx, item.FabricID, snapshot.ID)
				if readErr != nil {
					return ReduceResult{}, readErr
				}
				if !found {
					fresh = Batch{ID: snapshot.ID}
				}
				current = fresh
				liveBatches[path] = fresh
			}

			delta, taken := reduceBatch(current, item.ColorName, remaining)
			if taken <= 0 {
				continue
			}
			updated, applyErr := applyDelta(current, delta)
			if applyErr != nil {
				return ReduceResult{}, shared.WrapError(shared.KindValidation, op, "reduction broke quantity invariant", applyErr).
					With("fabric_id", item.FabricID).
					With("batch_id", snapshot.ID)
			}
			remaining -= taken
			liveBatches[path] = updated
			intents[path] = updated
			for idx, qty := range delta {
				result.Reductions = append(result.Reductions, BatchReduction{
					FabricID:  item.FabricID,
					BatchID:   snapshot.ID,
					ColorName: current.Items[idx].ColorName,
					Quantity:  current.Items[idx].Quantity - qty,
				})
			}
		}

		// Only reachable under a race: validation saw enough stock but the
		// fresh per-batch reads did not.
		if remaining > qtyEpsilon {
			return ReduceResult{}, shared.NewError(shared.KindValidation, op, "fifo reduction incomplete").
				With("fabric_id", item.FabricID).
				With("color", item.ColorName).
				With("requested", item.Quantity).
				With("remaining", remaining)
		}
	}

	result.BatchesTouched = len(intents)
	err = s.coordinator.Execute(ctx, op, func(ctx context.Context) (map[string]any, error) {
		return intents, nil
	})
	if err != nil {
		return ReduceResult{}, err
	}
	return result, nil
}

// reduceBatch computes the delta (item index to new quantity) a reduction of
// up to remaining units would apply to the batch, walking items in order. The
// batch itself is not mutated.
func reduceBatch(b Batch, color string, remaining float64) (map[int]float64, float64) {
	delta := make(map[int]float64)
	var taken float64
	for i, item := range b.Items {
		if remaining <= qtyEpsilon {
			break
		}
		if !eligible(item, color) {
			continue
		}
		take := item.Quantity
		if take > remaining {
			take = remaining
		}
		delta[i] = item.Quantity - take
		remaining -= take
		taken += take
	}
	return delta, taken
}

// applyDelta builds the updated batch from a snapshot plus a delta. A negative
// resulting quantity is a broken invariant, never written.
func applyDelta(b Batch, delta map[int]float64) (Batch, error) {
	out := b.clone()
	for idx, qty := range delta {
		if qty < 0 {
			return Batch{}, errors.New("inventory: item quantity below zero")
		}
		out.Items[idx].Quantity = qty
	}
	return out, nil
}

// CreateFabric writes a new fabric meta document.
func (s *Service) CreateFabric(ctx context.Context, input FabricInput) (Fabric, error) {
	const op = "inventory.create_fabric"
	if input.Name == "" {
		return Fabric{}, shared.NewError(shared.KindValidation, op, "fabric name required")
	}
	id := input.ID
	if id == "" {
		var err error
		if id, err = s.store.Push(ctx, "fabrics"); err != nil {
			return Fabric{}, err
		}
	}
	fabric := Fabric{ID: id, Name: input.Name, Category: input.Category, Unit: input.Unit}
	err := s.coordinator.Execute(ctx, op, func(ctx context.Context) (map[string]any, error) {
		return map[string]any{FabricPath(id): fabric}, nil
	})
	if err != nil {
		return Fabric{}, err
	}
	return fabric, nil
}

// AddBatch records a purchase intake as a new batch of the fabric.
func (s *Service) AddBatch(ctx context.Context, fabricID string, input BatchInput) (Batch, error) {
	const op = "inventory.add_batch"
	if fabricID == "" {
		return Batch{}, shared.NewError(shared.KindValidation, op, "fabric id required")
	}
	if len(input.Items) == 0 {
		return Batch{}, shared.NewError(shared.KindValidation, op, "batch requires at least one item")
	}
	for i, item := range input.Items {
		if item.Quantity < 0 {
			return Batch{}, shared.NewError(shared.KindValidation, op, "item quantity must not be negative").
				With("item", i).With("color", item.ColorName)
		}
	}
	if _, err := s.repo.GetFabric(ctx, fabricID); err != nil {
		if errors.Is(err, ErrFabricNotFound) {
			return Batch{}, shared.WrapError(shared.KindNotFound, op, "fabric not found", err).
				With("fabric_id", fabricID)
		}
		return Batch{}, err
	}
	id, err := s.store.Push(ctx, BatchesPrefix(fabricID))
	if err != nil {
		return Batch{}, err
	}
	batch := Batch{
		ID:           id,
		PurchaseDate: input.PurchaseDate,
		UnitCost:     input.UnitCost,
		Supplier:     input.Supplier,
		CreatedAt:    time.Now().UTC(),
		Items:        input.Items,
	}
	err = s.coordinator.Execute(ctx, op, func(ctx context.Context) (map[string]any, error) {
		return map[string]any{BatchPath(fabricID, id): batch}, nil
	})
	if err != nil {
		return Batch{}, err
	}
	return batch, nil
}

// GetFabric loads a fabric with its batches.
func (s *Service) GetFabric(ctx context.Context, fabricID string) (Fabric, error) {
	const op = "inventory.get_fabric"
	fabric, err := s.repo.GetFabric(ctx, fabricID)
	if errors.Is(err, ErrFabricNotFound) {
		return Fabric{}, shared.WrapError(shared.KindNotFound, op, "fabric not found", err).
			With("fabric_id", fabricID)
	}
	return fabric, err
}
