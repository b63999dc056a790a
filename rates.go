package portfolio

import (
	"fmt"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ErrRateUnavailable is returned when no conversion rate exists at or before
// the requested date. The ledger propagates it and aborts the single
// operation that needed the rate; it never substitutes 1.0.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// CurrencyPair names a conversion from Base into Quote (EURUSD converts EUR
// amounts into USD).
type CurrencyPair struct {
	Base  string
	Quote string
}

func (p CurrencyPair) String() string { return p.Base + p.Quote }

// ParseCurrencyPair parses a six-letter pair code like "EURUSD".
func ParseCurrencyPair(s string) (CurrencyPair, error) {
	if len(s) != 6 {
		return CurrencyPair{}, fmt.Errorf("invalid currency pair %q, want six letters like EURUSD", s)
	}
	return CurrencyPair{Base: s[:3], Quote: s[3:]}, nil
}

// RateProvider resolves the conversion rate in force on a given date.
// Implementations return the most recent rate at or before the date and
// ErrRateUnavailable when none exists.
type RateProvider interface {
	Rate(on Date, pair CurrencyPair) (decimal.Decimal, error)
}

type rateQuote struct {
	on   Date
	rate decimal.Decimal
}

// RateTable is an in-memory RateProvider: constructed once, queried many
// times, with an explicit, injectable lifecycle.
type RateTable struct {
	quotes map[CurrencyPair][]rateQuote // sorted by date per pair
}

// NewRateTable creates an empty rate table.
func NewRateTable() *RateTable {
	return &RateTable{quotes: make(map[CurrencyPair][]rateQuote)}
}

// Add records a rate quote, keeping the per-pair history sorted by date.
func (t *RateTable) Add(on Date, pair CurrencyPair, rate decimal.Decimal) {
	history := append(t.quotes[pair], rateQuote{on: on, rate: rate})
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].on.Before(history[j].on)
	})
	t.quotes[pair] = history
}

// Rate returns the most recent quote at or before the given date.
func (t *RateTable) Rate(on Date, pair CurrencyPair) (decimal.Decimal, error) {
	history := t.quotes[pair]
	for i := len(history) - 1; i >= 0; i-- {
		if !history[i].on.After(on) {
			return history[i].rate, nil
		}
	}
	return decimal.Decimal{}, errors.Wrapf(ErrRateUnavailable, "no %s rate at or before %s", pair, on)
}

var _ RateProvider = (*RateTable)(nil)

// rateFile is the YAML shape of a rate table on disk.
type rateFile struct {
	Rates []struct {
		Date string  `yaml:"date"`
		Pair string  `yaml:"pair"`
		Rate float64 `yaml:"rate"`
	} `yaml:"rates"`
}

// LoadRateTable reads a YAML rate file:
//
//	rates:
//	  - date: 2020-06-19
//	    pair: USDEUR
//	    rate: 0.8931
func LoadRateTable(path string) (*RateTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read rate file")
	}
	var file rateFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.Wrap(err, "could not parse rate file")
	}

	table := NewRateTable()
	for i, q := range file.Rates {
		on, err := ParseDate(q.Date)
		if err != nil {
			return nil, errors.Wrapf(err, "rate entry %d", i)
		}
		pair, err := ParseCurrencyPair(q.Pair)
		if err != nil {
			return nil, errors.Wrapf(err, "rate entry %d", i)
		}
		table.Add(on, pair, decimal.NewFromFloat(q.Rate))
	}
	return table, nil
}
