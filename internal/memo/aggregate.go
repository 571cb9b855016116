package memo

import "sort"

// GroupByMemo filters the transaction log to one customer and groups it by
// memo number. Transactions without a memo number are skipped. The earliest
// sale transaction anchors a group; later sales fold their total and deposit
// into the group's amounts, and every payment with the same memo number joins
// it. Groups come back sorted by memo number for deterministic output.
func GroupByMemo(customerID string, txns []CustomerTransaction) []Group {
	ordered := make([]CustomerTransaction, 0, len(txns))
	for _, t := range txns {
		if t.CustomerID != customerID || t.MemoNumber == "" {
			continue
		}
		ordered = append(ordered, t)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	groups := make(map[string]*Group)
	var keys []string
	for _, t := range ordered {
		g, ok := groups[t.MemoNumber]
		if !ok {
			g = &Group{
				MemoNumber:          t.MemoNumber,
				CustomerID:          customerID,
				PaymentTransactions: []CustomerTransaction{},
			}
			groups[t.MemoNumber] = g
			keys = append(keys, t.MemoNumber)
		}
		switch {
		case t.Type == TransactionTypePayment:
			g.PaymentTransactions = append(g.PaymentTransactions, t)
		case isSaleAnchor(t):
			if g.SaleTransaction == nil {
				sale := t
				g.SaleTransaction = &sale
			} else {
				g.TotalAmount += t.Total
				g.PaidAmount += t.Deposit
			}
		}
	}

	sort.Strings(keys)
	out := make([]Group, 0, len(keys))
	for _, key := range keys {
		g := groups[key]
		finalize(g)
		out = append(out, *g)
	}
	return out
}

// finalize derives the amounts and status of a group. TotalAmount and
// PaidAmount may already carry contributions from non-anchor sales.
func finalize(g *Group) {
	if g.SaleTransaction != nil {
		g.TotalAmount += g.SaleTransaction.Total
		g.PaidAmount += g.SaleTransaction.Deposit
	}
	for _, p := range g.PaymentTransactions {
		g.PaidAmount += paymentAmount(p)
	}
	g.DueAmount = g.TotalAmount - g.PaidAmount
	switch {
	case g.DueAmount <= 0:
		g.Status = MemoStatusPaid
	case g.PaidAmount > 0:
		g.Status = MemoStatusPartial
	default:
		g.Status = MemoStatusUnpaid
	}
}

// GroupsWithDues returns the subset of GroupByMemo with a positive due.
func GroupsWithDues(customerID string, txns []CustomerTransaction) []Group {
	all := GroupByMemo(customerID, txns)
	out := make([]Group, 0, len(all))
	for _, g := range all {
		if g.DueAmount > 0 {
			out = append(out, g)
		}
	}
	return out
}

// TotalDue sums the due amount across every memo group of the customer. The
// result is signed: overpayment on one memo offsets dues on another and a net
// negative total is returned as-is.
func TotalDue(customerID string, txns []CustomerTransaction) float64 {
	var total float64
	for _, g := range GroupByMemo(customerID, txns) {
		total += g.DueAmount
	}
	return total
}

// BuildDetails assembles the full view of one memo from the given transaction
// set, payments sorted ascending by date. The earliest sale is the anchor;
// further sales on the memo contribute to the totals. It returns nil when no
// sale transaction anchors the memo in that set.
func BuildDetails(memoNumber string, txns []CustomerTransaction) *Details {
	var sale *CustomerTransaction
	var payments []CustomerTransaction
	var saleTotal, saleDeposit float64
	for _, t := range txns {
		if t.MemoNumber != memoNumber {
			continue
		}
		switch {
		case t.Type == TransactionTypePayment:
			payments = append(payments, t)
		case isSaleAnchor(t):
			saleTotal += t.Total
			saleDeposit += t.Deposit
			if sale == nil || t.Date.Before(sale.Date) {
				anchor := t
				sale = &anchor
			}
		}
	}
	if sale == nil {
		return nil
	}
	sort.SliceStable(payments, func(i, j int) bool {
		return payments[i].Date.Before(payments[j].Date)
	})
	d := &Details{
		MemoNumber:  memoNumber,
		Sale:        *sale,
		Payments:    payments,
		TotalAmount: saleTotal,
		TotalPaid:   saleDeposit,
	}
	for _, p := range payments {
		d.TotalPaid += paymentAmount(p)
	}
	d.RemainingDue = d.TotalAmount - d.TotalPaid
	return d
}
