package inventory

import (
	"errors"
	"sort"
	"time"

	"github.com/weftpos/weftpos/internal/store"
)

// Fabric is a traded fabric. Batches live under their own store paths and are
// assembled onto the struct when the fabric is loaded; the meta document never
// embeds them.
type Fabric struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Unit     string `json:"unit"`

	Batches map[string]Batch `json:"-"`
}

// Batch is a discrete purchase lot of a fabric. Quantities only ever decrease
// through the reduction engine; a batch is never physically deleted.
type Batch struct {
	ID           string      `json:"id"`
	PurchaseDate time.Time   `json:"purchaseDate"`
	UnitCost     float64     `json:"unitCost"`
	Supplier     string      `json:"supplier"`
	CreatedAt    time.Time   `json:"createdAt"`
	Items        []BatchItem `json:"items"`
}

// BatchItem is a per-color quantity inside a batch.
type BatchItem struct {
	ColorName string  `json:"colorName"`
	Quantity  float64 `json:"quantity"`
}

// clone returns a copy of the batch whose Items slice shares nothing with the
// receiver, so reductions never mutate a loaded snapshot in place.
func (b Batch) clone() Batch {
	out := b
	out.Items = make([]BatchItem, len(b.Items))
	copy(out.Items, b.Items)
	return out
}

// SaleLineItem is one line of a sale to reduce stock for. An empty ColorName
// matches every color.
type SaleLineItem struct {
	FabricID  string  `json:"fabricId"`
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	ColorName string  `json:"colorName"`
}

// ReduceRequest groups the sale line items of one checkout. Code, when set, is
// used as an idempotency key.
type ReduceRequest struct {
	Code  string
	Items []SaleLineItem
}

// BatchReduction records stock taken from one batch item during a reduction.
type BatchReduction struct {
	FabricID  string  `json:"fabricId"`
	BatchID   string  `json:"batchId"`
	ColorName string  `json:"colorName"`
	Quantity  float64 `json:"quantity"`
}

// ReduceResult summarises a committed reduction.
type ReduceResult struct {
	Reductions     []BatchReduction `json:"reductions"`
	BatchesTouched int              `json:"batchesTouched"`
}

// BatchInput describes a purchase intake.
type BatchInput struct {
	PurchaseDate time.Time
	UnitCost     float64
	Supplier     string
	Items        []BatchItem
}

// FabricInput describes a new fabric.
type FabricInput struct {
	ID       string
	Name     string
	Category string
	Unit     string
}

// ErrFabricNotFound indicates the referenced fabric document is absent.
var ErrFabricNotFound = errors.New("inventory: fabric not found")

// FabricPath returns the store path of a fabric's meta document.
func FabricPath(fabricID string) string {
	return store.Join("fabrics", fabricID)
}

// BatchPath returns the store path of one batch document.
func BatchPath(fabricID, batchID string) string {
	return store.Join("fabrics", fabricID, "batches", batchID)
}

// BatchesPrefix returns the path prefix all of a fabric's batches share.
func BatchesPrefix(fabricID string) string {
	return store.Join("fabrics", fabricID, "batches") + "/"
}

// sortedBatches returns the fabric's batches oldest purchase first. Ties on
// purchase date fall back to creation order, then the batch id, so the walk is
// deterministic.
func sortedBatches(f Fabric) []Batch {
	out := make([]Batch, 0, len(f.Batches))
	for _, b := range f.Batches {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PurchaseDate.Equal(out[j].PurchaseDate) {
			return out[i].PurchaseDate.Before(out[j].PurchaseDate)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// eligible reports whether the item can serve a reduction for color.
func eligible(item BatchItem, color string) bool {
	if item.Quantity <= 0 {
		return false
	}
	return color == "" || item.ColorName == color
}

// availableQuantity sums the eligible stock of one batch for color.
func availableQuantity(b Batch, color string) float64 {
	var total float64
	for _, item := range b.Items {
		if eligible(item, color) {
			total += item.Quantity
		}
	}
	return total
}
