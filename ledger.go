package portfolio

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Execution reports what an operation actually did. Withdrawals and buys
// are silently clamped to the available balance, sells to the held
// quantity: the clamp is policy, not an error, but it is observable here
// instead of only in the journal.
type Execution struct {
	Requested Money    // Requested is the cash amount the event asked for.
	Executed  Money    // Executed is the cash amount actually moved.
	Quantity  Quantity // Quantity actually traded, for buys and sells.
	Clamped   bool     // Clamped is true when Executed was reduced from Requested.
	NoOp      bool     // NoOp is true when the amount fell below the materiality floor.
}

// Ledger tracks a single portfolio's cash and security positions over time
// from a stream of events, and owns the per-instrument cash-flow logs the
// returns engine consumes.
//
// The ledger applies events strictly in the order they are submitted; it
// never re-sorts by date. Out-of-order submission produces a
// chronologically inconsistent journal, a contract the caller upholds.
// The ledger is not safe for concurrent mutation.
type Ledger struct {
	portfolioID string
	currency    string
	inception   Date
	opening     Money
	balance     Money

	positions *positionTable
	journal   []AccountEntry
	blotter   []BlotterRecord

	flows     map[string]*CashFlowLog // keyed by title
	flowOrder []string                // titles in first-seen order

	valuations map[string]valuation // latest mark per title, set by Revalue

	rates RateProvider
	log   *zap.Logger
}

// valuation is the latest mark-to-market of one instrument.
type valuation struct {
	on    Date
	value Money
}

// Option configures a Ledger at construction.
type Option func(*Ledger)

// WithRateProvider injects the exchange-rate source consulted on
// cross-currency trades, interest payments and revaluations.
func WithRateProvider(p RateProvider) Option {
	return func(l *Ledger) { l.rates = p }
}

// WithLogger injects a structured logger. The default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// NewLedger creates a ledger with an opening balance. The first journal
// entry is a synthetic deposit of that balance.
func NewLedger(on Date, portfolioID string, opening Money, opts ...Option) *Ledger {
	currency := opening.Currency()
	l := &Ledger{
		portfolioID: portfolioID,
		currency:    currency,
		inception:   on,
		opening:     opening,
		balance:     opening,
		positions:   newPositionTable(currency, opening),
		flows:       make(map[string]*CashFlowLog),
		valuations:  make(map[string]valuation),
		rates:       NewRateTable(),
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.appendJournal(on, KindDeposit, opening, "Deposit")
	l.cleanup()
	return l
}

// PortfolioID returns the portfolio identifier.
func (l *Ledger) PortfolioID() string { return l.portfolioID }

// Currency returns the portfolio base currency.
func (l *Ledger) Currency() string { return l.currency }

// Inception returns the date of the opening deposit.
func (l *Ledger) Inception() Date { return l.inception }

// Balance returns the current cash balance.
func (l *Ledger) Balance() Money { return l.balance }

// CashFlows returns the cash-flow log of an instrument, or nil when the
// instrument was never bought and never paid interest.
func (l *Ledger) CashFlows(title string) *CashFlowLog { return l.flows[title] }

// Apply dispatches a single event to the matching operation.
func (l *Ledger) Apply(e Event) (Execution, error) {
	switch v := e.(type) {
	case Deposit:
		return l.Deposit(v)
	case Withdraw:
		return l.Withdraw(v)
	case Trade:
		if v.Side == SideSell {
			return l.Sell(v)
		}
		return l.Buy(v)
	case Interest:
		return l.Interest(v)
	default:
		return Execution{}, fmt.Errorf("unsupported event type %T", e)
	}
}

// Deposit credits cash to the account. A negative amount is a caller
// error, never a disguised withdrawal.
func (l *Ledger) Deposit(e Deposit) (Execution, error) {
	if err := e.Validate(l); err != nil {
		return Execution{}, err
	}
	amount := M(e.Amount.Amount(), l.currency)
	l.balance = l.balance.Add(amount)
	l.appendJournal(e.Date, KindDeposit, amount, "Deposit")
	l.cleanup()
	return Execution{Requested: amount, Executed: amount}, nil
}

// Withdraw debits cash from the account. A request exceeding the balance
// is clamped: the available balance is withdrawn and the balance becomes
// zero. The journal records the amount actually transferred.
func (l *Ledger) Withdraw(e Withdraw) (Execution, error) {
	if err := e.Validate(l); err != nil {
		return Execution{}, err
	}
	requested := M(e.Amount.Amount(), l.currency)
	executed := requested
	clamped := false
	if l.balance.LessThan(requested) {
		executed = l.balance
		clamped = true
		l.log.Info("withdrawal clamped to available balance",
			zap.String("requested", requested.String()),
			zap.String("executed", executed.String()))
	}
	l.balance = l.balance.Sub(executed)
	l.appendJournal(e.Date, KindWithdraw, executed, "Withdraw")
	l.cleanup()
	return Execution{Requested: requested, Executed: executed, Clamped: clamped}, nil
}

// Buy purchases an instrument. The cash amount is quantity x price plus
// fee plus proportional commission; when it exceeds the balance it is
// clamped to the balance (the quantity is not reduced: the recorded cost
// equals what was actually spent). An amount below the materiality floor
// makes the whole operation a no-op.
//
// Cross-currency trades record the FX rate on the blotter but do not apply
// it: the cash amount is booked at face value in the base currency.
func (l *Ledger) Buy(e Trade) (Execution, error) {
	if e.Side != SideBuy {
		return Execution{}, fmt.Errorf("buy called with a %s trade", e.Side)
	}
	if err := e.Validate(l); err != nil {
		return Execution{}, err
	}
	rate, err := l.tradeRate(e.Date, e.Currency)
	if err != nil {
		return Execution{}, err
	}

	gross := M(e.gross().Amount(), l.currency)
	requested := M(e.cost().Amount(), l.currency)
	executed := requested
	clamped := false
	if l.balance.LessThan(requested) {
		executed = l.balance
		clamped = true
	}
	if executed.Amount().LessThan(materialityFloor) {
		l.log.Debug("buy below materiality floor, no-op",
			zap.String("title", e.Title), zap.String("amount", executed.String()))
		return Execution{Requested: requested, Executed: M(0, l.currency), NoOp: true}, nil
	}
	if clamped {
		l.log.Info("buy clamped to available balance",
			zap.String("title", e.Title),
			zap.String("requested", requested.String()),
			zap.String("executed", executed.String()))
	}

	l.balance = l.balance.Sub(executed)
	memo := fmt.Sprintf("Buy: %s ISIN: %s", e.Title, e.ISIN)
	l.appendJournal(e.Date, KindBuy, executed, memo)
	l.appendBlotter(e, rate, executed)

	pos := l.positions.find(e.Title)
	if pos == nil {
		pos = &Position{
			Title:    e.Title,
			ISIN:     e.ISIN,
			Currency: e.Currency,
			Maturity: e.Maturity,
			Quantity: e.Quantity,
			Price:    e.Price,
			Rate:     rate,
			Gross:    gross,
			Net:      executed,
		}
		l.positions.add(pos)
	} else {
		pos.Quantity = pos.Quantity.Add(e.Quantity)
		pos.Price = e.Price
		pos.Rate = rate
		pos.Gross = pos.Gross.Add(gross)
		pos.Net = pos.Net.Add(executed)
	}

	flow := l.flowLog(e.Title, e.ISIN, e.Currency)
	flow.Append(FlowEntry{Date: e.Date, Amount: executed.Neg(), Price: e.Price, Kind: FlowTrade})
	pos.AvgCost = flow.AverageCost()

	l.cleanup()
	return Execution{Requested: requested, Executed: executed, Quantity: e.Quantity, Clamped: clamped}, nil
}

// Sell disposes of an instrument. The quantity is clamped to the held
// quantity, so the ledger can never go short; selling an instrument that
// is not held is a no-op. Proceeds below the materiality floor make the
// operation a no-op.
func (l *Ledger) Sell(e Trade) (Execution, error) {
	if e.Side != SideSell {
		return Execution{}, fmt.Errorf("sell called with a %s trade", e.Side)
	}
	if err := e.Validate(l); err != nil {
		return Execution{}, err
	}
	pos := l.positions.find(e.Title)
	if pos == nil {
		l.log.Debug("sell of an instrument not held, no-op", zap.String("title", e.Title))
		return Execution{Requested: M(e.cost().Amount(), l.currency), Executed: M(0, l.currency), NoOp: true}, nil
	}
	rate, err := l.tradeRate(e.Date, e.Currency)
	if err != nil {
		return Execution{}, err
	}

	requested := M(e.cost().Amount(), l.currency)
	quantity := e.Quantity.Min(pos.Quantity)
	clamped := quantity.LessThan(e.Quantity)
	gross := M(e.Price.Mul(quantity).Amount(), l.currency)
	executed := gross.Add(M(e.Fee.Amount(), l.currency)).Add(gross.Scale(e.Commission))
	if executed.Amount().LessThan(materialityFloor) {
		l.log.Debug("sell below materiality floor, no-op",
			zap.String("title", e.Title), zap.String("amount", executed.String()))
		return Execution{Requested: requested, Executed: M(0, l.currency), NoOp: true}, nil
	}
	if clamped {
		l.log.Info("sell clamped to held quantity",
			zap.String("title", e.Title),
			zap.String("requested", e.Quantity.String()),
			zap.String("executed", quantity.String()))
	}

	l.balance = l.balance.Add(executed)
	memo := fmt.Sprintf("Sell: %s ISIN: %s", e.Title, e.ISIN)
	l.appendJournal(e.Date, KindSell, executed, memo)
	sold := e
	sold.Quantity = quantity
	l.appendBlotter(sold, rate, executed)

	pos.Quantity = pos.Quantity.Sub(quantity)
	pos.Price = e.Price
	pos.Rate = rate
	pos.Gross = pos.Gross.Sub(gross)
	pos.Net = pos.Net.Sub(gross)

	flow := l.flowLog(e.Title, e.ISIN, e.Currency)
	flow.Append(FlowEntry{Date: e.Date, Amount: executed, Price: e.Price, Kind: FlowTrade})

	l.cleanup()
	return Execution{Requested: requested, Executed: executed, Quantity: quantity, Clamped: clamped}, nil
}

// Interest credits a coupon or dividend payment unconditionally,
// converting it into the base currency first when it is denominated in
// another one. The payment is attributed to the instrument's cash-flow
// log, creating the log if the instrument was never traded.
func (l *Ledger) Interest(e Interest) (Execution, error) {
	if err := e.Validate(l); err != nil {
		return Execution{}, err
	}
	amount := M(e.Amount.Amount(), l.currency)
	if e.Currency != "" && e.Currency != l.currency {
		rate, err := l.rates.Rate(e.Date, CurrencyPair{Base: e.Currency, Quote: l.currency})
		if err != nil {
			return Execution{}, fmt.Errorf("interest on %s: %w", e.Title, err)
		}
		amount = e.Amount.Convert(rate, l.currency)
	}

	l.balance = l.balance.Add(amount)
	memo := fmt.Sprintf("Title: %s %s Qty: %s (%s)", e.ISIN, e.Currency, e.Quantity, e.Title)
	l.appendJournal(e.Date, KindInterest, amount, memo)

	if _, traded := l.flows[e.Title]; !traded {
		l.log.Warn("interest received before any recorded purchase",
			zap.String("title", e.Title), zap.String("isin", e.ISIN))
	}
	flow := l.flowLog(e.Title, e.ISIN, e.Currency)
	flow.Append(FlowEntry{Date: e.Date, Amount: amount, Kind: FlowInterest})

	l.cleanup()
	return Execution{Requested: e.Amount, Executed: amount}, nil
}

// tradeRate resolves the FX rate recorded on a trade: 1 for base-currency
// instruments, otherwise the provider's rate on the trade date. A missing
// rate aborts the operation before any mutation.
func (l *Ledger) tradeRate(on Date, currency string) (decimal.Decimal, error) {
	if currency == "" || currency == l.currency {
		return decimal.NewFromInt(1), nil
	}
	rate, err := l.rates.Rate(on, CurrencyPair{Base: currency, Quote: l.currency})
	if err != nil {
		return decimal.Decimal{}, err
	}
	return rate, nil
}

// flowLog returns the instrument's cash-flow log, creating it lazily.
func (l *Ledger) flowLog(title, isin, currency string) *CashFlowLog {
	flow, ok := l.flows[title]
	if !ok {
		flow = NewCashFlowLog(title, isin, currency)
		l.flows[title] = flow
		l.flowOrder = append(l.flowOrder, title)
	}
	return flow
}

func (l *Ledger) appendJournal(on Date, kind Kind, cashFlow Money, memo string) {
	l.journal = append(l.journal, AccountEntry{
		ID:       newRecordID(),
		Date:     on,
		Kind:     kind,
		CashFlow: cashFlow,
		Balance:  l.balance,
		Memo:     memo,
	})
}

func (l *Ledger) appendBlotter(e Trade, rate decimal.Decimal, amount Money) {
	l.blotter = append(l.blotter, BlotterRecord{
		ID:         newRecordID(),
		Portfolio:  l.portfolioID,
		Bank:       e.Bank,
		Date:       e.Date,
		ISIN:       e.ISIN,
		Currency:   e.Currency,
		Rate:       rate,
		Title:      e.Title,
		Side:       e.Side,
		Quantity:   e.Quantity,
		Price:      e.Price,
		NAV:        e.NAV,
		Fee:        e.Fee,
		Commission: e.Commission,
		Amount:     amount,
	})
}

// cleanup is the invariant-enforcing pass run after every mutation: re-pin
// the cash sentinel to the balance, prune immaterial positions, keep the
// cash row last, renormalise weights.
func (l *Ledger) cleanup() {
	l.positions.syncCash(l.balance)
	l.positions.clean()
	l.positions.reorder()
	l.positions.normalise()
}
