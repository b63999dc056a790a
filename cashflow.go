package portfolio

import "github.com/shopspring/decimal"

// FlowKind distinguishes trade cash flows from coupon/dividend receipts.
type FlowKind int

const (
	FlowTrade FlowKind = iota
	FlowInterest
)

// FlowEntry is one signed cash movement attributed to an instrument.
// Outflows (buys) are negative, inflows (sells, coupons, terminal
// valuations) positive.
type FlowEntry struct {
	Date   Date
	Amount Money // signed
	Price  Money // Price is the reference price of the movement; zero for coupons.
	Kind   FlowKind
}

// CashFlowLog is the per-instrument ordered log of signed cash flows the
// returns engine consumes. Entries are appended in caller order: submitting
// events chronologically is the caller's contract (the log never re-sorts),
// and the first entry is the initial investment.
type CashFlowLog struct {
	Title    string
	ISIN     string
	Currency string

	entries []FlowEntry
}

// NewCashFlowLog creates an empty log for one instrument.
func NewCashFlowLog(title, isin, currency string) *CashFlowLog {
	return &CashFlowLog{Title: title, ISIN: isin, Currency: currency}
}

// Append records a cash flow. The log is append-only; same-day flows
// accumulate as separate entries.
func (l *CashFlowLog) Append(e FlowEntry) {
	l.entries = append(l.entries, e)
}

// Len returns the number of recorded flows.
func (l *CashFlowLog) Len() int { return len(l.entries) }

// Entries returns a copy of the recorded flows.
func (l *CashFlowLog) Entries() []FlowEntry {
	out := make([]FlowEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// First returns the initial investment entry. For a well-formed sequence it
// is a negative (buy) flow; a credit-first log is possible when a coupon
// arrives before any recorded purchase, and the engine tolerates it.
func (l *CashFlowLog) First() (FlowEntry, bool) {
	if len(l.entries) == 0 {
		return FlowEntry{}, false
	}
	return l.entries[0], true
}

// AverageCost returns the weighted-average purchase price per unit over all
// purchase (negative) entries: total cash spent divided by total units
// acquired, each lot weighted by its monetary size.
func (l *CashFlowLog) AverageCost() Money {
	totalCost := decimal.Zero
	totalUnits := Q(0)
	currency := l.Currency
	for _, e := range l.entries {
		if !e.Amount.IsNegative() || e.Price.IsZero() {
			continue
		}
		cost := e.Amount.Neg()
		totalCost = totalCost.Add(cost.Amount())
		totalUnits = totalUnits.Add(cost.DivPrice(e.Price))
		currency = e.Price.Currency()
	}
	if totalUnits.IsZero() {
		return M(0, currency)
	}
	return M(totalCost, currency).Div(totalUnits)
}

// CouponTotal sums the coupon/dividend flows recorded for the instrument.
func (l *CashFlowLog) CouponTotal() Money {
	total := M(0, l.Currency)
	for _, e := range l.entries {
		if e.Kind == FlowInterest {
			total = M(total.Amount().Add(e.Amount.Amount()), total.Currency())
		}
	}
	return total
}

// annualSeries prepares the log (plus optional extra flows such as a
// terminal valuation) for the IRR computation: the first entry stands alone
// as period zero and every subsequent flow is bucketed by calendar year,
// with empty years zero-filled so periods stay contiguous.
//
// baseYear is the calendar year of the first bucket, so that series from
// different instruments can be vector-summed aligned by year.
//
// ok is false for a degenerate series of fewer than two flows.
func (l *CashFlowLog) annualSeries(extra ...FlowEntry) (initial float64, buckets []float64, baseYear int, first, last Date, ok bool) {
	all := make([]FlowEntry, 0, len(l.entries)+len(extra))
	all = append(all, l.entries...)
	all = append(all, extra...)
	if len(all) < 2 {
		return 0, nil, 0, Date{}, Date{}, false
	}

	initial = all[0].Amount.Float()
	rest := all[1:]

	minYear, maxYear := rest[0].Date.Year(), rest[0].Date.Year()
	for _, e := range rest {
		if y := e.Date.Year(); y < minYear {
			minYear = y
		} else if y > maxYear {
			maxYear = y
		}
	}
	buckets = make([]float64, maxYear-minYear+1)
	for _, e := range rest {
		buckets[e.Date.Year()-minYear] += e.Amount.Float()
	}
	return initial, buckets, minYear, all[0].Date, all[len(all)-1].Date, true
}

// sum returns the signed total of all flows plus the extras.
func (l *CashFlowLog) sum(extra ...FlowEntry) Money {
	total := M(0, l.Currency)
	for _, e := range l.entries {
		total = M(total.Amount().Add(e.Amount.Amount()), total.Currency())
	}
	for _, e := range extra {
		total = M(total.Amount().Add(e.Amount.Amount()), total.Currency())
	}
	return total
}
