package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/weftpos/weftpos/internal/store"
)

// RepositoryPort abstracts ledger reads for the service.
type RepositoryPort interface {
	GetSupplier(ctx context.Context, supplierID string) (Supplier, bool, error)
	ListSuppliers(ctx context.Context) ([]Supplier, error)
	ListSupplierTransactions(ctx context.Context, supplierID string) ([]SupplierTransaction, error)
	GetCashTransaction(ctx context.Context, id string) (CashTransaction, bool, error)
	ListCashTransactions(ctx context.Context, filter CashFilter) ([]CashTransaction, error)
}

// Repository reads ledger documents from the store.
type Repository struct {
	store store.Store
}

// NewRepository constructs a Repository.
func NewRepository(st store.Store) *Repository {
	return &Repository{store: st}
}

// GetSupplier loads one supplier document.
func (r *Repository) GetSupplier(ctx context.Context, supplierID string) (Supplier, bool, error) {
	snap, err := r.store.Get(ctx, SupplierPath(supplierID))
	if err != nil {
		return Supplier{}, false, fmt.Errorf("ledger: load supplier %s: %w", supplierID, err)
	}
	if !snap.Exists() {
		return Supplier{}, false, nil
	}
	var supplier Supplier
	if err := snap.Val(&supplier); err != nil {
		return Supplier{}, false, fmt.Errorf("ledger: decode supplier %s: %w", supplierID, err)
	}
	supplier.ID = supplierID
	return supplier, true, nil
}

// ListSuppliers returns every supplier document. Supplier transactions live
// under nested paths and are filtered out by the path shape.
func (r *Repository) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	docs, err := r.store.List(ctx, SuppliersPrefix)
	if err != nil {
		return nil, fmt.Errorf("ledger: list suppliers: %w", err)
	}
	out := make([]Supplier, 0, len(docs))
	for path, doc := range docs {
		rest := path[len(SuppliersPrefix):]
		if strings.Contains(rest, "/") {
			continue
		}
		var supplier Supplier
		if err := doc.Val(&supplier); err != nil {
			return nil, fmt.Errorf("ledger: decode supplier %s: %w", path, err)
		}
		supplier.ID = rest
		out = append(out, supplier)
	}
	return out, nil
}

// ListSupplierTransactions returns the supplier's transaction log.
func (r *Repository) ListSupplierTransactions(ctx context.Context, supplierID string) ([]SupplierTransaction, error) {
	prefix := SupplierTransactionsPrefix(supplierID)
	docs, err := r.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("ledger: list supplier transactions %s: %w", supplierID, err)
	}
	out := make([]SupplierTransaction, 0, len(docs))
	for path, doc := range docs {
		var t SupplierTransaction
		if err := doc.Val(&t); err != nil {
			return nil, fmt.Errorf("ledger: decode supplier transaction %s: %w", path, err)
		}
		if t.ID == "" {
			t.ID = path[len(prefix):]
		}
		t.SupplierID = supplierID
		out = append(out, t)
	}
	return out, nil
}

// GetCashTransaction loads one cash-book entry.
func (r *Repository) GetCashTransaction(ctx context.Context, id string) (CashTransaction, bool, error) {
	snap, err := r.store.Get(ctx, CashPath(id))
	if err != nil {
		return CashTransaction{}, false, fmt.Errorf("ledger: load cash transaction %s: %w", id, err)
	}
	if !snap.Exists() {
		return CashTransaction{}, false, nil
	}
	var t CashTransaction
	if err := snap.Val(&t); err != nil {
		return CashTransaction{}, false, fmt.Errorf("ledger: decode cash transaction %s: %w", id, err)
	}
	t.ID = id
	return t, true, nil
}

// ListCashTransactions returns cash-book entries matching the filter.
func (r *Repository) ListCashTransactions(ctx context.Context, filter CashFilter) ([]CashTransaction, error) {
	docs, err := r.store.List(ctx, CashbookPrefix)
	if err != nil {
		return nil, fmt.Errorf("ledger: list cash transactions: %w", err)
	}
	out := make([]CashTransaction, 0, len(docs))
	for path, doc := range docs {
		var t CashTransaction
		if err := doc.Val(&t); err != nil {
			return nil, fmt.Errorf("ledger: decode cash transaction %s: %w", path, err)
		}
		if t.ID == "" {
			t.ID = path[len(CashbookPrefix):]
		}
		if !filter.From.IsZero() && t.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && t.Date.After(filter.To) {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
