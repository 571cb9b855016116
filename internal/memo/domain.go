// Package memo groups a customer's sale and payment transactions by memo
// (invoice) number and derives paid and due amounts from the transaction log.
package memo

import (
	"time"

	"github.com/weftpos/weftpos/internal/store"
)

// TransactionType distinguishes memo-anchoring sales from payments.
type TransactionType string

const (
	// TransactionTypeSale anchors a memo.
	TransactionTypeSale TransactionType = "sale"
	// TransactionTypePayment references an existing memo.
	TransactionTypePayment TransactionType = "payment"
)

// CustomerTransaction is one entry of a customer's transaction log. Payment
// transactions carry their amount in Deposit; Total stays zero for them.
type CustomerTransaction struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customerId"`
	MemoNumber string          `json:"memoNumber,omitempty"`
	Type       TransactionType `json:"type,omitempty"`
	Total      float64         `json:"total"`
	Deposit    float64         `json:"deposit"`
	Date       time.Time       `json:"date"`
	Products   []ProductLine   `json:"products,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// ProductLine is one sold product on a sale transaction.
type ProductLine struct {
	FabricID string  `json:"fabricId"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

// MemoStatus summarises how much of a memo has been settled.
type MemoStatus string

const (
	MemoStatusPaid    MemoStatus = "paid"
	MemoStatusPartial MemoStatus = "partial"
	MemoStatusUnpaid  MemoStatus = "unpaid"
)

// Group is one memo: its anchoring sale, its payments and the derived
// amounts. DueAmount is total minus paid and may go negative on overpayment;
// the raw signed value is preserved so callers decide whether that is a
// credit balance or an error.
type Group struct {
	MemoNumber          string                `json:"memoNumber"`
	CustomerID          string                `json:"customerId"`
	SaleTransaction     *CustomerTransaction  `json:"saleTransaction,omitempty"`
	PaymentTransactions []CustomerTransaction `json:"paymentTransactions"`
	TotalAmount         float64               `json:"totalAmount"`
	PaidAmount          float64               `json:"paidAmount"`
	DueAmount           float64               `json:"dueAmount"`
	Status              MemoStatus            `json:"status"`
}

// Details is the full view of a single memo.
type Details struct {
	MemoNumber   string                `json:"memoNumber"`
	Sale         CustomerTransaction   `json:"sale"`
	Payments     []CustomerTransaction `json:"payments"`
	TotalAmount  float64               `json:"totalAmount"`
	TotalPaid    float64               `json:"totalPaid"`
	RemainingDue float64               `json:"remainingDue"`
}

// PaymentInput describes a payment to record against a memo.
type PaymentInput struct {
	Amount float64
	Date   time.Time
}

// TransactionPath returns the store path of a customer transaction.
func TransactionPath(id string) string {
	return store.Join("transactions", id)
}

// TransactionsPrefix is the path prefix shared by all customer transactions.
const TransactionsPrefix = "transactions/"

// isSaleAnchor treats untyped transactions as sales; early records predate the
// type field.
func isSaleAnchor(t CustomerTransaction) bool {
	return t.Type == TransactionTypeSale || t.Type == ""
}

// paymentAmount extracts the amount a payment contributes to its memo.
func paymentAmount(t CustomerTransaction) float64 {
	return t.Deposit
}
