// Package ledger keeps the denormalized money records consistent: supplier
// due recomputation and the atomic linking of cash-book entries to customer
// transaction deposits.
package ledger

import (
	"time"

	"github.com/weftpos/weftpos/internal/store"
)

// CashType classifies cash-book entries.
type CashType string

const (
	CashTypeSale    CashType = "sale"
	CashTypeExpense CashType = "expense"
	CashTypeOther   CashType = "other"
)

// CashTransaction is one cash-book entry. Reference holds the memo number
// when the entry was produced by a sale.
type CashTransaction struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	CashIn      float64   `json:"cashIn"`
	CashOut     float64   `json:"cashOut"`
	Type        CashType  `json:"type"`
	Reference   string    `json:"reference,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CashInput describes a new or updated cash-book entry.
type CashInput struct {
	Date        time.Time
	Description string
	CashIn      float64
	CashOut     float64
	Type        CashType
	Reference   string
}

// CashFilter narrows cash-book listings.
type CashFilter struct {
	From time.Time
	To   time.Time
	Type CashType
}

// Supplier carries the derived, persisted total due.
type Supplier struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Phone    string  `json:"phone"`
	TotalDue float64 `json:"totalDue"`
}

// SupplierInput describes a new supplier.
type SupplierInput struct {
	ID    string
	Name  string
	Phone string
}

// SupplierTransaction is one purchase from a supplier; the unpaid remainder
// contributes to the supplier's due.
type SupplierTransaction struct {
	ID          string    `json:"id"`
	SupplierID  string    `json:"supplierId"`
	TotalAmount float64   `json:"totalAmount"`
	PaidAmount  float64   `json:"paidAmount"`
	Date        time.Time `json:"date"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SupplierTransactionInput describes a purchase to record.
type SupplierTransactionInput struct {
	TotalAmount float64
	PaidAmount  float64
	Date        time.Time
}

// DueTolerance is the maximum drift between a stored supplier due and the
// value recomputed from the transaction log before the stored value counts as
// inconsistent.
const DueTolerance = 0.01

// DueReport is the outcome of a supplier due validation.
type DueReport struct {
	Calculated       float64 `json:"calculated"`
	Stored           float64 `json:"stored"`
	IsValid          bool    `json:"isValid"`
	TransactionCount int     `json:"transactionCount"`
}

// CashPath returns the store path of a cash-book entry.
func CashPath(id string) string {
	return store.Join("cashbook", id)
}

// CashbookPrefix is the path prefix shared by all cash-book entries.
const CashbookPrefix = "cashbook/"

// SupplierPath returns the store path of a supplier document.
func SupplierPath(id string) string {
	return store.Join("suppliers", id)
}

// SupplierTransactionPath returns the store path of one supplier transaction.
func SupplierTransactionPath(supplierID, txID string) string {
	return store.Join("suppliers", supplierID, "transactions", txID)
}

// SupplierTransactionsPrefix returns the prefix of a supplier's transactions.
func SupplierTransactionsPrefix(supplierID string) string {
	return store.Join("suppliers", supplierID, "transactions") + "/"
}

// SuppliersPrefix is the path prefix shared by all supplier documents.
const SuppliersPrefix = "suppliers/"

// CalculateDue sums the unpaid remainder of the supplier's transactions.
func CalculateDue(supplierID string, txns []SupplierTransaction) (float64, int) {
	var due float64
	count := 0
	for _, t := range txns {
		if t.SupplierID != supplierID {
			continue
		}
		due += t.TotalAmount - t.PaidAmount
		count++
	}
	return due, count
}
