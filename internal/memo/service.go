package memo

import (
	"context"
	"log/slog"
	"time"

	"github.com/weftpos/weftpos/internal/shared"
	"github.com/weftpos/weftpos/internal/store"
	"github.com/weftpos/weftpos/internal/txn"
)

// Service exposes memo aggregation over the stored transaction log and
// records payments against memos.
type Service struct {
	repo        RepositoryPort
	coordinator *txn.Coordinator
	store       store.Store
	logger      *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, coordinator *txn.Coordinator, st store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, coordinator: coordinator, store: st, logger: logger}
}

// CustomerMemos groups the customer's transaction log by memo number.
func (s *Service) CustomerMemos(ctx context.Context, customerID string) ([]Group, error) {
	const op = "memo.customer_memos"
	if customerID == "" {
		return nil, shared.NewError(shared.KindValidation, op, "customer id required")
	}
	txns, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return GroupByMemo(customerID, txns), nil
}

// CustomerMemosWithDues returns only the memos still carrying a due.
func (s *Service) CustomerMemosWithDues(ctx context.Context, customerID string) ([]Group, error) {
	const op = "memo.customer_dues"
	if customerID == "" {
		return nil, shared.NewError(shared.KindValidation, op, "customer id required")
	}
	txns, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return GroupsWithDues(customerID, txns), nil
}

// CustomerTotalDue sums due amounts across the customer's memos. The value is
// signed; an overpaid customer yields a negative total.
func (s *Service) CustomerTotalDue(ctx context.Context, customerID string) (float64, error) {
	const op = "memo.customer_total_due"
	if customerID == "" {
		return 0, shared.NewError(shared.KindValidation, op, "customer id required")
	}
	txns, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return 0, err
	}
	return TotalDue(customerID, txns), nil
}

// MemoDetails loads the full view of one memo. NOT_FOUND when no sale
// transaction anchors the memo.
func (s *Service) MemoDetails(ctx context.Context, memoNumber string) (*Details, error) {
	const op = "memo.details"
	if memoNumber == "" {
		return nil, shared.NewError(shared.KindValidation, op, "memo number required")
	}
	txns, err := s.repo.ListByMemo(ctx, memoNumber)
	if err != nil {
		return nil, err
	}
	details := BuildDetails(memoNumber, txns)
	if details == nil {
		return nil, shared.NewError(shared.KindNotFound, op, "memo has no sale transaction").
			With("memo_number", memoNumber)
	}
	return details, nil
}

// AddPayment records a payment transaction against a memo and returns the new
// transaction id. The write is a single atomic update.
func (s *Service) AddPayment(ctx context.Context, memoNumber, customerID string, input PaymentInput) (string, error) {
	const op = "memo.add_payment"
	if memoNumber == "" {
		return "", shared.NewError(shared.KindValidation, op, "memo number required")
	}
	if customerID == "" {
		return "", shared.NewError(shared.KindValidation, op, "customer id required")
	}
	if input.Amount <= 0 {
		return "", shared.NewError(shared.KindValidation, op, "payment amount must be positive").
			With("memo_number", memoNumber).With("amount", input.Amount)
	}
	id, err := s.store.Push(ctx, "transactions")
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	paidAt := input.Date
	if paidAt.IsZero() {
		paidAt = now
	}
	payment := CustomerTransaction{
		ID:         id,
		CustomerID: customerID,
		MemoNumber: memoNumber,
		Type:       TransactionTypePayment,
		Deposit:    input.Amount,
		Date:       paidAt,
		CreatedAt:  now,
	}
	err = s.coordinator.Execute(ctx, op, func(ctx context.Context) (map[string]any, error) {
		return map[string]any{TransactionPath(id): payment}, nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// DeleteTransaction removes a customer transaction. Linked cash-book entries
// are NOT retracted; that coupling gap is inherited from the upstream data
// model and deliberately left visible.
func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	const op = "memo.delete_transaction"
	if id == "" {
		return shared.NewError(shared.KindValidation, op, "transaction id required")
	}
	_, found, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return shared.NewError(shared.KindNotFound, op, "transaction not found").With("transaction_id", id)
	}
	return s.coordinator.Execute(ctx, op, func(ctx context.Context) (map[string]any, error) {
		return map[string]any{TransactionPath(id): nil}, nil
	})
}
