package portfolio

import "github.com/shopspring/decimal"

// CashTitle is the display name of the synthetic cash position.
const CashTitle = "Cash"

// materialityFloor is the minimum monetary amount below which an operation
// or a residual position is treated as economically negligible.
var materialityFloor = decimal.NewFromFloat(0.01)

// Position is one row of the position table: a held instrument, or the
// synthetic cash row that is always present and always last.
type Position struct {
	Title    string          // Title is the display name, the table key.
	ISIN     string          // ISIN is blank for the cash row.
	Currency string          //
	Maturity string          // Maturity is optional, blank for the cash row.
	Quantity Quantity        // Quantity held; pinned to 1 for the cash row.
	Price    Money           // Price of the last trade or revaluation; pinned to 1 for cash.
	AvgCost  Money           // AvgCost is the weighted-average purchase price per unit.
	Rate     decimal.Decimal // Rate is the FX rate applied at the last trade or revaluation.
	Gross    Money           // Gross market value.
	Net      Money           // Net value, fees included; the cash row carries the balance here.
	Weight   Percent         // Weight is Net over the table total.
}

// IsCash reports whether the position is the synthetic cash row.
func (p Position) IsCash() bool { return p.Title == CashTitle }

// positionTable is the insertion-ordered position table. The cash sentinel
// row exists from creation to the end of the ledger's life.
type positionTable struct {
	rows []*Position
	cur  string // portfolio base currency
}

func newPositionTable(currency string, opening Money) *positionTable {
	t := &positionTable{cur: currency}
	t.rows = append(t.rows, &Position{
		Title:    CashTitle,
		Currency: currency,
		Quantity: Q(1),
		Price:    M(1, currency),
		Rate:     decimal.NewFromInt(1),
		Gross:    opening,
		Net:      opening,
	})
	return t
}

// find returns the row with the given title, or nil.
func (t *positionTable) find(title string) *Position {
	for _, r := range t.rows {
		if r.Title == title {
			return r
		}
	}
	return nil
}

// cash returns the sentinel row. It always exists.
func (t *positionTable) cash() *Position { return t.find(CashTitle) }

// add appends a new row just before the cash sentinel.
func (t *positionTable) add(p *Position) {
	t.rows = append(t.rows, p)
}

// totalNet sums the net values of every row, cash included.
func (t *positionTable) totalNet() Money {
	total := M(0, t.cur)
	for _, r := range t.rows {
		total = M(total.Amount().Add(r.Net.Amount()), t.cur)
	}
	return total
}

// syncCash re-pins the sentinel's value columns to the ledger balance.
func (t *positionTable) syncCash(balance Money) {
	c := t.cash()
	c.Gross = balance
	c.Net = balance
}

// normalise recomputes every weight as net over total net. When the total
// is zero all weights are zero.
func (t *positionTable) normalise() {
	total := t.totalNet().Amount()
	if total.IsZero() {
		for _, r := range t.rows {
			r.Weight = 0
		}
		return
	}
	for _, r := range t.rows {
		r.Weight = Percent(r.Net.Amount().Div(total).InexactFloat64())
	}
}

// clean drops non-cash rows whose net value is at or below the materiality
// floor and re-pins the sentinel's invariant fields.
func (t *positionTable) clean() {
	kept := t.rows[:0]
	for _, r := range t.rows {
		if r.IsCash() || r.Net.Amount().GreaterThan(materialityFloor) {
			kept = append(kept, r)
		}
	}
	t.rows = kept

	c := t.cash()
	c.ISIN = ""
	c.Maturity = ""
	c.Currency = t.cur
	c.Quantity = Q(1)
	c.Price = M(1, t.cur)
	c.Rate = decimal.NewFromInt(1)
}

// reorder moves the cash sentinel to the last slot, keeping every other
// row in insertion order.
func (t *positionTable) reorder() {
	rows := make([]*Position, 0, len(t.rows))
	var cash *Position
	for _, r := range t.rows {
		if r.IsCash() {
			cash = r
			continue
		}
		rows = append(rows, r)
	}
	t.rows = append(rows, cash)
}

// snapshot returns a copy of the table rows.
func (t *positionTable) snapshot() []Position {
	out := make([]Position, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, *r)
	}
	return out
}
