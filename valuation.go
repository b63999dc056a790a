package portfolio

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Revalue marks the position table to market from externally supplied
// current prices, keyed by instrument title. For each instrument present in
// both the map and the table it refreshes the FX rate (looked up at asOf)
// and sets the market value to price x quantity x rate; instruments absent
// from the map keep their last-known valuation.
//
// Revalue is idempotent and must be called before any reporting query so
// valuations reflect the supplied prices rather than stale trade-time
// prices. All rate lookups are resolved before anything is mutated: a
// failed lookup leaves the ledger exactly as it was.
func (l *Ledger) Revalue(asOf Date, prices map[string]Money) error {
	type update struct {
		pos   *Position
		price Money
		rate  decimal.Decimal
	}

	var updates []update
	for _, pos := range l.positions.rows {
		if pos.IsCash() {
			continue
		}
		price, ok := prices[pos.Title]
		if !ok {
			continue
		}
		rate := decimal.NewFromInt(1)
		if pos.Currency != "" && pos.Currency != l.currency {
			var err error
			rate, err = l.rates.Rate(asOf, CurrencyPair{Base: pos.Currency, Quote: l.currency})
			if err != nil {
				return fmt.Errorf("revalue %s: %w", pos.Title, err)
			}
		}
		updates = append(updates, update{pos: pos, price: price, rate: rate})
	}

	for _, u := range updates {
		value := u.price.Mul(u.pos.Quantity).Convert(u.rate, l.currency)
		u.pos.Price = u.price
		u.pos.Rate = u.rate
		u.pos.Gross = value
		u.pos.Net = value
		l.valuations[u.pos.Title] = valuation{on: asOf, value: value}
	}

	l.cleanup()
	return nil
}
