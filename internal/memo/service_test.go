package memo

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

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func sale(id, customerID, memoNumber string, total, deposit float64, on string) CustomerTransaction {
	return CustomerTransaction{
		ID: id, CustomerID: customerID, MemoNumber: memoNumber,
		Type: TransactionTypeSale, Total: total, Deposit: deposit, Date: day(on),
	}
}

func payment(id, customerID, memoNumber string, amount float64, on string) CustomerTransaction {
	return CustomerTransaction{
		ID: id, CustomerID: customerID, MemoNumber: memoNumber,
		Type: TransactionTypePayment, Deposit: amount, Date: day(on),
	}
}

func TestGroupByMemoDerivesAmounts(t *testing.T) {
	txns := []CustomerTransaction{
		sale("t1", "c1", "M-1", 1000, 300, "2024-01-10"),
		payment("t2", "c1", "M-1", 200, "2024-01-15"),
		payment("t3", "c1", "M-1", 100, "2024-01-20"),
	}
	groups := GroupByMemo("c1", txns)
	require.Len(t, groups, 1)

	g := groups[0]
	require.Equal(t, "M-1", g.MemoNumber)
	require.NotNil(t, g.SaleTransaction)
	require.Len(t, g.PaymentTransactions, 2)
	require.InDelta(t, 1000, g.TotalAmount, 0.0001)
	require.InDelta(t, 600, g.PaidAmount, 0.0001)
	require.InDelta(t, 400, g.DueAmount, 0.0001)
	require.Equal(t, MemoStatusPartial, g.Status)
}

func TestGroupByMemoFoldsLaterSalesIntoTotals(t *testing.T) {
	txns := []CustomerTransaction{
		sale("t2", "c1", "M-1", 400, 100, "2024-01-15"),
		sale("t1", "c1", "M-1", 1000, 300, "2024-01-10"),
		payment("t3", "c1", "M-1", 200, "2024-01-20"),
	}
	groups := GroupByMemo("c1", txns)
	require.Len(t, groups, 1)

	g := groups[0]
	require.NotNil(t, g.SaleTransaction)
	require.Equal(t, "t1", g.SaleTransaction.ID)
	require.InDelta(t, 1400, g.TotalAmount, 0.0001)
	require.InDelta(t, 600, g.PaidAmount, 0.0001)
	require.InDelta(t, 800, g.DueAmount, 0.0001)
}

func TestBuildDetailsFoldsLaterSalesIntoTotals(t *testing.T) {
	txns := []CustomerTransaction{
		sale("t1", "c1", "M-1", 1000, 300, "2024-01-10"),
		sale("t2", "c1", "M-1", 400, 100, "2024-01-15"),
	}
	d := BuildDetails("M-1", txns)
	require.NotNil(t, d)
	require.Equal(t, "t1", d.Sale.ID)
	require.InDelta(t, 1400, d.TotalAmount, 0.0001)
	require.InDelta(t, 400, d.TotalPaid, 0.0001)
	require.InDelta(t, 1000, d.RemainingDue, 0.0001)
}

func TestGroupByMemoEachTransactionInExactlyOneGroup(t *testing.T) {
	txns := []CustomerTransaction{
		sale("t1", "c1", "M-1", 500, 0, "2024-01-01"),
		sale("t2", "c1", "M-2", 700, 700, "2024-01-02"),
		payment("t3", "c1", "M-1", 100, "2024-01-03"),
		sale("t4", "c2", "M-9", 40, 0, "2024-01-04"),      // other customer
		{ID: "t5", CustomerID: "c1", Total: 10, Date: day("2024-01-05")}, // no memo number
	}
	groups := GroupByMemo("c1", txns)
	require.Len(t, groups, 2)

	counts := map[string]int{}
	for _, g := range groups {
		for _, p := range g.PaymentTransactions {
			counts[p.ID]++
		}
		if g.SaleTransaction != nil {
			counts[g.SaleTransaction.ID]++
		}
	}
	require.Equal(t, map[string]int{"t1": 1, "t2": 1, "t3": 1}, counts)
}

func TestGroupStatusBoundaries(t *testing.T) {
	// Fully settled memo.
	groups := GroupByMemo("c1", []CustomerTransaction{
		sale("t1", "c1", "M-1", 500, 0, "2024-01-01"),
		payment("t2", "c1", "M-1", 500, "2024-01-02"),
	})
	require.Equal(t, MemoStatusPaid, groups[0].Status)

	// Untouched memo.
	groups = GroupByMemo("c1", []CustomerTransaction{
		sale("t1", "c1", "M-1", 500, 0, "2024-01-01"),
	})
	require.Equal(t, MemoStatusUnpaid, groups[0].Status)

	// Overpaid memo stays "paid" with a negative due, not clamped.
	groups = GroupByMemo("c1", []CustomerTransaction{
		sale("t1", "c1", "M-1", 500, 0, "2024-01-01"),
		payment("t2", "c1", "M-1", 650, "2024-01-02"),
	})
	require.Equal(t, MemoStatusPaid, groups[0].Status)
	require.InDelta(t, -150, groups[0].DueAmount, 0.0001)
}

func TestUntypedTransactionAnchorsMemo(t *testing.T) {
	groups := GroupByMemo("c1", []CustomerTransaction{
		{ID: "t1", CustomerID: "c1", MemoNumber: "M-1", Total: 300, Deposit: 100, Date: day("2024-01-01")},
	})
	require.Len(t, groups, 1)
	require.NotNil(t, groups[0].SaleTransaction)
	require.InDelta(t, 200, groups[0].DueAmount, 0.0001)
}

func TestTotalDueMatchesGroupSumAndKeepsSign(t *testing.T) {
	txns := []CustomerTransaction{
		sale("t1", "c1", "M-1", 1000, 300, "2024-01-01"),
		sale("t2", "c1", "M-2", 200, 0, "2024-01-02"),
		payment("t3", "c1", "M-2", 500, "2024-01-03"), // overpaid by 300
	}
	var fromGroups float64
	for _, g := range GroupByMemo("c1", txns) {
		fromGroups += g.DueAmount
	}
	total := TotalDue("c1", txns)
	require.InDelta(t, fromGroups, total, 0.0001)
	require.InDelta(t, 400, total, 0.0001) // 700 due minus 300 credit

	// A standalone overpayment yields a net negative total, preserved as-is.
	require.InDelta(t, -300, TotalDue("c1", txns[1:]), 0.0001)
}

func TestGroupsWithDuesFiltersSettledMemos(t *testing.T) {
	txns := []CustomerTransaction{
		sale("t1", "c1", "M-1", 1000, 1000, "2024-01-01"),
		sale("t2", "c1", "M-2", 200, 0, "2024-01-02"),
	}
	due := GroupsWithDues("c1", txns)
	require.Len(t, due, 1)
	require.Equal(t, "M-2", due[0].MemoNumber)
}

func TestBuildDetailsSortsPaymentsAndRequiresAnchor(t *testing.T) {
	txns := []CustomerTransaction{
		payment("t3", "c1", "M-1", 100, "2024-01-20"),
		sale("t1", "c1", "M-1", 1000, 300, "2024-01-10"),
		payment("t2", "c1", "M-1", 200, "2024-01-15"),
	}
	d := BuildDetails("M-1", txns)
	require.NotNil(t, d)
	require.Equal(t, []string{"t2", "t3"}, []string{d.Payments[0].ID, d.Payments[1].ID})
	require.InDelta(t, 1000, d.TotalAmount, 0.0001)
	require.InDelta(t, 600, d.TotalPaid, 0.0001)
	require.InDelta(t, 400, d.RemainingDue, 0.0001)

	require.Nil(t, BuildDetails("M-1", txns[:1]))
	require.Nil(t, BuildDetails("M-404", txns))
}

func newService(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	svc := NewService(NewRepository(mem), txn.NewCoordinator(mem, nil), mem, nil)
	return svc, mem
}

func TestServiceAddPayment(t *testing.T) {
	svc, mem := newService(t)
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, TransactionPath("t1"), sale("t1", "c1", "M-1", 1000, 300, "2024-01-10")))

	id, err := svc.AddPayment(ctx, "M-1", "c1", PaymentInput{Amount: 250})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	groups, err := svc.CustomerMemos(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.InDelta(t, 550, groups[0].PaidAmount, 0.0001)
	require.InDelta(t, 450, groups[0].DueAmount, 0.0001)

	_, err = svc.AddPayment(ctx, "", "c1", PaymentInput{Amount: 10})
	require.True(t, shared.IsValidation(err))
	_, err = svc.AddPayment(ctx, "M-1", "", PaymentInput{Amount: 10})
	require.True(t, shared.IsValidation(err))
	_, err = svc.AddPayment(ctx, "M-1", "c1", PaymentInput{Amount: 0})
	require.True(t, shared.IsValidation(err))
}

func TestServiceMemoDetailsNotFound(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.MemoDetails(context.Background(), "M-404")
	require.True(t, shared.IsNotFound(err))
}

func TestServiceDeleteTransaction(t *testing.T) {
	svc, mem := newService(t)
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, TransactionPath("t1"), sale("t1", "c1", "M-1", 100, 0, "2024-01-01")))

	require.NoError(t, svc.DeleteTransaction(ctx, "t1"))
	err := svc.DeleteTransaction(ctx, "t1")
	require.True(t, shared.IsNotFound(err))
}
