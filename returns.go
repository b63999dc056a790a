package portfolio

import "math"

// tradingDaysPerYear is the day-count convention used to annualise returns.
const tradingDaysPerYear = 252

// ReturnsRow carries the performance figures of one instrument.
type ReturnsRow struct {
	Title      string
	ISIN       string
	Currency   string
	Coupon     Money   // Coupon is the accrued coupon/dividend total.
	PnL        Money   // PnL is the signed sum of all flows, unrealised value included.
	IRR        Percent // IRR is the money-weighted rate of return.
	Annualised Percent
}

// ReturnsTotal aggregates the same figures across all instruments.
type ReturnsTotal struct {
	Coupon     Money
	PnL        Money
	IRR        Percent
	Annualised Percent
}

// Returns computes per-instrument and portfolio-level performance from the
// cash-flow logs, using the latest revaluation (when one exists) as a
// terminal positive flow. Instruments appear in first-traded order.
//
// An instrument with fewer than two flows reports zero for every figure
// and does not poison the portfolio aggregate. An instrument whose first
// flow is a credit still produces a numeric, possibly meaningless, IRR.
func (l *Ledger) Returns(asOf Date) ([]ReturnsRow, ReturnsTotal) {
	rows := make([]ReturnsRow, 0, len(l.flowOrder))

	var (
		initialSum  float64
		yearFlows   = make(map[int]float64)
		hasResample bool
		pnlTotal    = M(0, l.currency)
		couponTotal = M(0, l.currency)
	)

	for _, title := range l.flowOrder {
		flow := l.flows[title]
		row := ReturnsRow{
			Title:    title,
			ISIN:     flow.ISIN,
			Currency: flow.Currency,
			Coupon:   flow.CouponTotal(),
			PnL:      M(0, flow.Currency),
		}

		var extra []FlowEntry
		if v, ok := l.valuations[title]; ok {
			extra = append(extra, FlowEntry{Date: v.on, Amount: v.value, Kind: FlowTrade})
		}

		initial, buckets, baseYear, first, last, ok := flow.annualSeries(extra...)
		if ok {
			series := append([]float64{initial}, buckets...)
			row.IRR = Percent(irr(series))
			row.PnL = flow.sum(extra...)
			if days := first.DaysUntil(last); days > 0 && initial != 0 {
				years := float64(days) / tradingDaysPerYear
				row.Annualised = Percent(row.PnL.Float() / -initial / years)
			}

			initialSum += initial
			for i, v := range buckets {
				yearFlows[baseYear+i] += v
			}
			hasResample = true
		}

		pnlTotal = pnlTotal.Add(M(row.PnL.Amount(), l.currency))
		couponTotal = couponTotal.Add(M(row.Coupon.Amount(), l.currency))
		rows = append(rows, row)
	}

	total := ReturnsTotal{Coupon: couponTotal, PnL: pnlTotal}
	if hasResample {
		minYear, maxYear := math.MaxInt, math.MinInt
		for y := range yearFlows {
			if y < minYear {
				minYear = y
			}
			if y > maxYear {
				maxYear = y
			}
		}
		series := make([]float64, 0, maxYear-minYear+2)
		series = append(series, initialSum)
		for y := minYear; y <= maxYear; y++ {
			series = append(series, yearFlows[y])
		}
		total.IRR = Percent(irr(series))
	}
	if days := l.inception.DaysUntil(asOf); days > 0 && !l.opening.IsZero() {
		years := float64(days) / tradingDaysPerYear
		growth := l.positions.totalNet().Amount().Div(l.opening.Amount()).InexactFloat64() - 1
		total.Annualised = Percent(growth / years)
	}
	return rows, total
}
