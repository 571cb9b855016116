package memo

import (
	"context"
	"fmt"

	"github.com/weftpos/weftpos/internal/store"
)

// RepositoryPort abstracts transaction-log reads for the service.
type RepositoryPort interface {
	ListByCustomer(ctx context.Context, customerID string) ([]CustomerTransaction, error)
	ListByMemo(ctx context.Context, memoNumber string) ([]CustomerTransaction, error)
	Get(ctx context.Context, id string) (CustomerTransaction, bool, error)
}

// Repository reads customer transactions from the document store.
type Repository struct {
	store store.Store
}

// NewRepository constructs a Repository.
func NewRepository(st store.Store) *Repository {
	return &Repository{store: st}
}

func (r *Repository) list(ctx context.Context, keep func(CustomerTransaction) bool) ([]CustomerTransaction, error) {
	docs, err := r.store.List(ctx, TransactionsPrefix)
	if err != nil {
		return nil, fmt.Errorf("memo: list transactions: %w", err)
	}
	out := make([]CustomerTransaction, 0, len(docs))
	for path, doc := range docs {
		var t CustomerTransaction
		if err := doc.Val(&t); err != nil {
			return nil, fmt.Errorf("memo: decode transaction %s: %w", path, err)
		}
		if t.ID == "" {
			t.ID = path[len(TransactionsPrefix):]
		}
		if keep(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// ListByCustomer returns every transaction of one customer.
func (r *Repository) ListByCustomer(ctx context.Context, customerID string) ([]CustomerTransaction, error) {
	return r.list(ctx, func(t CustomerTransaction) bool { return t.CustomerID == customerID })
}

// ListByMemo returns every transaction referencing one memo number.
func (r *Repository) ListByMemo(ctx context.Context, memoNumber string) ([]CustomerTransaction, error) {
	return r.list(ctx, func(t CustomerTransaction) bool { return t.MemoNumber == memoNumber })
}

// Get loads one transaction by id.
func (r *Repository) Get(ctx context.Context, id string) (CustomerTransaction, bool, error) {
	snap, err := r.store.Get(ctx, TransactionPath(id))
	if err != nil {
		return CustomerTransaction{}, false, fmt.Errorf("memo: load transaction %s: %w", id, err)
	}
	if !snap.Exists() {
		return CustomerTransaction{}, false, nil
	}
	var t CustomerTransaction
	if err := snap.Val(&t); err != nil {
		return CustomerTransaction{}, false, fmt.Errorf("memo: decode transaction %s: %w", id, err)
	}
	t.ID = id
	return t, true, nil
}
