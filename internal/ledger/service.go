package ledger

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/weftpos/weftpos/internal/memo"
	"github.com/weftpos/weftpos/internal/shared"
	"github.com/weftpos/weftpos/internal/store"
	"github.com/weftpos/weftpos/internal/txn"
)

// TransactionPort reads the customer transaction log; implemented by
// memo.Repository.
type TransactionPort interface {
	Get(ctx context.Context, id string) (memo.CustomerTransaction, bool, error)
	ListByMemo(ctx context.Context, memoNumber string) ([]memo.CustomerTransaction, error)
}

// Service keeps supplier dues and cash-book/deposit links consistent. Cash
// operations take no locks; they rely entirely on the coordinator's single
// atomic write.
type Service struct {
	repo         RepositoryPort
	transactions TransactionPort
	coordinator  *txn.Coordinator
	store        store.Store
	logger       *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, transactions TransactionPort, coordinator *txn.Coordinator, st store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, transactions: transactions, coordinator: coordinator, store: st, logger: logger}
}

// CalculateAndValidateSupplierDue recomputes the supplier's due from the
// given transactions and compares it to the persisted value. Read-only.
func (s *Service) CalculateAndValidateSupplierDue(ctx context.Context, supplierID string, txns []SupplierTransaction) (DueReport, error) {
	const op = "ledger.validate_supplier_due"
	if supplierID == "" {
		return DueReport{}, shared.NewError(shared.KindValidation, op, "supplier id required")
	}
	supplier, found, err := s.repo.GetSupplier(ctx, supplierID)
	if err != nil {
		return DueReport{}, err
	}
	if !found {
		return DueReport{}, shared.NewError(shared.KindNotFound, op, "supplier not found").
			With("supplier_id", supplierID)
	}
	calculated, count := CalculateDue(supplierID, txns)
	diff := calculated - supplier.TotalDue
	if diff < 0 {
		diff = -diff
	}
	return DueReport{
		Calculated:       calculated,
		Stored:           supplier.TotalDue,
		IsValid:          diff < DueTolerance,
		TransactionCount: count,
	}, nil
}

// UpdateSupplierTotalDue persists the recomputed due unconditionally and
// returns the report describing what was replaced.
func (s *Service) UpdateSupplierTotalDue(ctx context.Context, supplierID string, txns []SupplierTransaction) (DueReport, error) {
	const op = "ledger.update_supplier_due"
	report, err := s.CalculateAndValidateSupplierDue(ctx, supplierID, txns)
	if err != nil {
		return DueReport{}, err
	}
	supplier, _, err := s.repo.GetSupplier(ctx, supplierID)
	if err != nil {
		return DueReport{}, err
	}
	supplier.TotalDue = report.Calculated
	err = s.coordinator.Execute(ctx, op, func(ctx context.Context) (map[string]any, error) {
		return map[string]any{SupplierPath(supplierID): supplier}, nil
	})
	if err != nil {
		return DueReport{}, err
	}
	return report, nil
}

// RefreshSupplierDue recomputes one supplier's due from its stored
// transaction log and persists it, logging any drift beyond tolerance.
func (s *Service) RefreshSupplierDue(ctx context.Context, supplierID string) (DueReport, error) {
	txns, err := s.repo.ListSupplierTransactions(ctx, supplierID)
	if err != nil {
		return DueReport{}, err
	}
	report, err := s.UpdateSupplierTotalDue(ctx, supplierID, txns)
	if err != nil {
		return DueReport{}, err
	}
	if !report.IsValid {
		s.logger.Warn("supplier due drift corrected",
			slog.String("supplier_id", supplierID),
			slog.Float64("stored", report.Stored),
			slog.Float64("calculated", report.Calculated))
	}
	return report, nil
}

// ListSuppliers returns every supplier.
func (s *Service) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

// ListSupplierTransactions returns the supplier's purchase log.
func (s *Service) ListSupplierTransactions(ctx context.Context, supplierID string) ([]SupplierTransaction, error) {
	const op = "ledger.list_supplier_transactions"
	if supplierID == "" {
		return nil, shared.NewError(shared.KindValidation, op, "supplier id required")
	}
	return s.repo.ListSupplierTransactions(ctx, supplierID)
}

// CreateSupplier writes a new supplier with a zero due.
func (s *Service) CreateSupplier(ctx context.Context, input SupplierInput) (Supplier, error) {
	const op = "ledger.create_supplier"
	if input.Name == "" {
		return Supplier{}, shared.NewError(shared.KindValidation, op, "supplier name required")
	}
	id := input.ID
	if id == "" {
		var err error
		if id, err = s.store.Push(ctx, "suppliers"); err != nil {
			return Supplier{}, err
		}
	}
	supplier := Supplier{ID: id, Name: input.Name, Phone: input.Phone}
	err := s.coordinator.Execute(ctx, op, func(ctx context.Context) (map[string]any, error) {
		return map[string]any{SupplierPath(id): supplier}, nil
	})
	if err != nil {
		return Supplier{}, err
	}
	return supplier, nil
}

// AddSupplierTransaction records a purchase and bumps the supplier's
// persisted due by the unpaid remainder in the same atomic write.
func (s *Service) AddSupplierTransaction(ctx context.Context, supplierID string, input SupplierTransactionInput) (string, error) {
	const op = "ledger.add_supplier_transaction"
	if supplierID == "" {
		return "", shared.NewError(shared.KindValidation, op, "supplier id required")
	}
	if input.TotalAmount < 0 {
		return "", shared.NewError(shared.KindValidation, op, "total amount must not be negative").
			With("total_amount", input.TotalAmount)
	}
	if input.PaidAmount < 0 || input.PaidAmount > input.TotalAmount {
		return "", shared.NewError(shared.KindValidation, op, "paid amount must be between zero and the total").
			With("total_amount", input.TotalAmount).
			With("paid_amount", input.PaidAmount)
	}
	supplier, found, err := s.repo.GetSupplier(ctx, supplierID)
	if err != nil {
		return "", err
	}
	if !found {
		return "", shared.NewError(shared.KindNotFound, op, "supplier not found").
			With("supplier_id", supplierID)
	}
	id, err := s.store.Push(ctx, SupplierTransactionsPrefix(supplierID))
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	date := input.Date
	if date.IsZero() {
		date = now
	}
	record := SupplierTransaction{
		ID:          id,
		SupplierID:  supplierID,
		TotalAmount: input.TotalAmount,
		PaidAmount:  input.PaidAmount,
		Date:        date,
		CreatedAt:   now,
	}
	supplier.TotalDue += input.TotalAmount - input.PaidAmount
	err = s.coordinator.Execute(ctx, op, func(ctx context.Context) (map[string]any, error) {
		return map[string]any{
			SupplierTransactionPath(supplierID, id): record,
			SupplierPath(supplierID):                supplier,
		}, nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// AddCashTransaction writes a cash-book entry. When relatedTxID names a
// customer transaction, that transaction's deposit grows by cashIn inside the
// same atomic write; a missing related transaction aborts with NOT_FOUND
// before anything is written.
func (s *Service) AddCashTransaction(ctx context.Context, input CashInput, relatedTxID string) (string, error) {
	const op = "ledger.add_cash_transaction"
	if err := validateCashInput(op, input); err != nil {
		return "", err
	}
	id, err := s.store.Push(ctx, "cashbook")
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	record := CashTransaction{
		ID:          id,
		Date:        orNow(input.Date, now),
		Description: input.Description,
		CashIn:      input.CashIn,
		CashOut:     input.CashOut,
		Type:        input.Type,
		Reference:   input.Reference,
		CreatedAt:   now,
	}
	writes := map[string]any{CashPath(id): record}
	if relatedTxID != "" {
		related, found, err := s.transactions.Get(ctx, relatedTxID)
		if err != nil {
			return "", err
		}
		if !found {
			return "", shared.NewError(shared.KindNotFound, op, "related transaction not found").
				With("transaction_id", relatedTxID)
		}
		related.Deposit += input.CashIn
		writes[memo.TransactionPath(relatedTxID)] = related
	}
	err = s.coordinator.Execute(ctx, op, func(ctx context.Context) (map[string]any, error) {
		return writes, nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdateCashTransaction rewrites a cash-book entry. The related deposit moves
// by the cash-in delta in the same atomic write.
func (s *Service) UpdateCashTransaction(ctx context.Context, id string, input CashInput, relatedTxID string, previousCashIn float64) error {
	const op = "ledger.update_cash_transaction"
	if id == "" {
		return shared.NewError(shared.KindValidation, op, "cash transaction id required")
	}
	if err := validateCashInput(op, input); err != nil {
		return err
	}
	existing, found, err := s.repo.GetCashTransaction(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return shared.NewError(shared.KindNotFound, op, "cash transaction not found").
			With("cash_transaction_id", id)
	}
	record := existing
	record.Date = orNow(input.Date, existing.Date)
	record.Description = input.Description
	record.CashIn = input.CashIn
	record.CashOut = input.CashOut
	record.Type = input.Type
	record.Reference = input.Reference

	writes := map[string]any{CashPath(id): record}
	if relatedTxID != "" {
		related, found, err := s.transactions.Get(ctx, relatedTxID)
		if err != nil {
			return err
		}
		if !found {
			return shared.NewError(shared.KindNotFound, op, "related transaction not found").
				With("transaction_id", relatedTxID)
		}
		related.Deposit += input.CashIn - previousCashIn
		writes[memo.TransactionPath(relatedTxID)] = related
	}
	return s.coordinator.Execute(ctx, op, func(ctx context.Context) (map[string]any, error) {
		return writes, nil
	})
}

// DeleteCashTransaction removes a cash-book entry. For sale entries whose
// reference resolves to the memo's sale transaction, the deposit shrinks by
// the entry's cash-in inside the same atomic write, floored at zero.
func (s *Service) DeleteCashTransaction(ctx context.Context, id, reference string) error {
	const op = "ledger.delete_cash_transaction"
	if id == "" {
		return shared.NewError(shared.KindValidation, op, "cash transaction id required")
	}
	record, found, err := s.repo.GetCashTransaction(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return shared.NewError(shared.KindNotFound, op, "cash transaction not found").
			With("cash_transaction_id", id)
	}
	writes := map[string]any{CashPath(id): nil}
	if record.Type == CashTypeSale && reference != "" {
		linked, err := s.transactions.ListByMemo(ctx, reference)
		if err != nil {
			return err
		}
		details := memo.BuildDetails(reference, linked)
		if details != nil {
			sale := details.Sale
			sale.Deposit -= record.CashIn
			if sale.Deposit < 0 {
				sale.Deposit = 0
			}
			writes[memo.TransactionPath(sale.ID)] = sale
		}
	}
	return s.coordinator.Execute(ctx, op, func(ctx context.Context) (map[string]any, error) {
		return writes, nil
	})
}

// ListCashTransactions returns cash-book entries matching the filter, most
// recent first.
func (s *Service) ListCashTransactions(ctx context.Context, filter CashFilter) ([]CashTransaction, error) {
	entries, err := s.repo.ListCashTransactions(ctx, filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.After(entries[j].Date)
	})
	return entries, nil
}

func validateCashInput(op string, input CashInput) error {
	if input.CashIn < 0 {
		return shared.NewError(shared.KindValidation, op, "cash in must not be negative").
			With("cash_in", input.CashIn)
	}
	if input.CashOut < 0 {
		return shared.NewError(shared.KindValidation, op, "cash out must not be negative").
			With("cash_out", input.CashOut)
	}
	switch input.Type {
	case CashTypeSale, CashTypeExpense, CashTypeOther:
		return nil
	default:
		return shared.NewError(shared.KindValidation, op, "unknown cash transaction type").
			With("type", string(input.Type))
	}
}

func orNow(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}
