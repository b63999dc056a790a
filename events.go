package portfolio

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind is a typed string identifying an operation recorded in the
// current-account journal.
type Kind string

const (
	KindDeposit  Kind = "deposit"
	KindWithdraw Kind = "withdraw"
	KindBuy      Kind = "buy"
	KindSell     Kind = "sell"
	KindInterest Kind = "interest"
)

// Side distinguishes the two directions of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Event defines the common interface for all inputs the ledger consumes.
type Event interface {
	What() Kind // What returns the operation kind (e.g. "buy", "interest").
	When() Date // When returns the date on which the event occurred.
}

type baseEvent struct {
	Kind Kind   `json:"kind"` // Kind specifies the type of event.
	Date Date   `json:"date"` // Date is the date when the event took place.
	Memo string `json:"memo,omitempty"`
}

func (e baseEvent) What() Kind { return e.Kind }
func (e baseEvent) When() Date { return e.Date }

// Deposit represents cash added to the portfolio's account.
type Deposit struct {
	baseEvent
	Amount Money // Amount is the quantity of cash deposited.
}

// NewDeposit creates a new Deposit event.
func NewDeposit(day Date, amount Money) Deposit {
	return Deposit{baseEvent: baseEvent{Kind: KindDeposit, Date: day}, Amount: amount}
}

// Validate checks the Deposit event's fields. A negative deposit is a caller
// error, never a silent withdrawal.
func (e Deposit) Validate(l *Ledger) error {
	if e.Amount.IsNegative() {
		return fmt.Errorf("deposit amount must be non-negative, got %s", e.Amount)
	}
	if c := e.Amount.Currency(); c != "" && c != l.currency {
		return fmt.Errorf("deposit currency %s does not match portfolio currency %s", c, l.currency)
	}
	return nil
}

// Withdraw represents cash removed from the portfolio's account.
type Withdraw struct {
	baseEvent
	Amount Money // Amount is the quantity of cash requested.
}

// NewWithdraw creates a new Withdraw event. A request exceeding the balance
// is not an error: it is clamped to the available balance on application.
func NewWithdraw(day Date, amount Money) Withdraw {
	return Withdraw{baseEvent: baseEvent{Kind: KindWithdraw, Date: day}, Amount: amount}
}

// Validate checks the Withdraw event's fields.
func (e Withdraw) Validate(l *Ledger) error {
	if e.Amount.IsNegative() {
		return fmt.Errorf("withdraw amount must be non-negative, got %s", e.Amount)
	}
	if c := e.Amount.Currency(); c != "" && c != l.currency {
		return fmt.Errorf("withdraw currency %s does not match portfolio currency %s", c, l.currency)
	}
	return nil
}

// Trade represents a buy or sell order for an instrument. Instruments are
// keyed by display title, not by ISIN: two titles sharing an ISIN are two
// distinct positions.
type Trade struct {
	baseEvent
	Bank       string          // Bank is the executing counterparty.
	ISIN       string          // ISIN identifies the instrument.
	Title      string          // Title is the instrument's display name, the position key.
	Currency   string          // Currency is the instrument's trading currency.
	Maturity   string          // Maturity is optional, for bond-like instruments.
	Price      Money           // Price is the execution price per unit.
	NAV        Money           // NAV is the reference price for fund-type instruments.
	Fee        Money           // Fee is a fixed fee charged on the trade.
	Commission decimal.Decimal // Commission is a proportional rate applied to the gross amount.
	Quantity   Quantity        // Quantity is the number of units traded.
	Side       Side
}

// NewTrade creates a trade event with the fields every trade carries; the
// optional ones (NAV, Fee, Commission, Maturity, Bank) are set on the result.
func NewTrade(day Date, side Side, title, isin, currency string, quantity Quantity, price Money) Trade {
	kind := KindBuy
	if side == SideSell {
		kind = KindSell
	}
	return Trade{
		baseEvent: baseEvent{Kind: kind, Date: day},
		ISIN:      isin,
		Title:     title,
		Currency:  currency,
		Price:     price,
		NAV:       price,
		Quantity:  quantity,
		Side:      side,
	}
}

// Validate checks the Trade event's fields.
func (e Trade) Validate(l *Ledger) error {
	if e.Title == "" {
		return errors.New("trade title is missing")
	}
	if e.Side != SideBuy && e.Side != SideSell {
		return fmt.Errorf("trade side must be %q or %q, got %q", SideBuy, SideSell, e.Side)
	}
	if e.Quantity.IsNegative() || e.Quantity.IsZero() {
		return fmt.Errorf("trade quantity must be positive, got %s", e.Quantity)
	}
	if e.Price.IsNegative() {
		return fmt.Errorf("trade price must be non-negative, got %s", e.Price)
	}
	if e.Fee.IsNegative() {
		return fmt.Errorf("trade fee must be non-negative, got %s", e.Fee)
	}
	if e.Commission.IsNegative() {
		return fmt.Errorf("trade commission rate must be non-negative, got %s", e.Commission)
	}
	if c := e.Price.Currency(); c != "" && e.Currency != "" && c != e.Currency {
		return fmt.Errorf("trade price currency %s does not match the instrument currency %s", c, e.Currency)
	}
	if c := e.Fee.Currency(); c != "" && e.Currency != "" && c != e.Currency {
		return fmt.Errorf("trade fee currency %s does not match the instrument currency %s", c, e.Currency)
	}
	return nil
}

// gross is the fee-free execution amount, quantity x price.
func (e Trade) gross() Money { return e.Price.Mul(e.Quantity) }

// cost is the full cash amount of the trade: gross plus fixed fee plus
// proportional commission on the gross.
func (e Trade) cost() Money {
	g := e.gross()
	return g.Add(e.Fee).Add(g.Scale(e.Commission))
}

// Interest represents a coupon or dividend payment credited in cash.
type Interest struct {
	baseEvent
	ISIN     string   // ISIN identifies the paying instrument.
	Title    string   // Title is the instrument's display name.
	Currency string   // Currency is the currency the payment is denominated in.
	Quantity Quantity // Quantity is the holding the payment refers to.
	Amount   Money    // Amount is the cash received.
}

// NewInterest creates a new Interest event.
func NewInterest(day Date, title, isin, currency string, quantity Quantity, amount Money) Interest {
	return Interest{
		baseEvent: baseEvent{Kind: KindInterest, Date: day},
		ISIN:      isin,
		Title:     title,
		Currency:  currency,
		Quantity:  quantity,
		Amount:    amount,
	}
}

// Validate checks the Interest event's fields.
func (e Interest) Validate(l *Ledger) error {
	if e.Title == "" {
		return errors.New("interest title is missing")
	}
	if e.Amount.IsNegative() {
		return fmt.Errorf("interest amount must be non-negative, got %s", e.Amount)
	}
	return nil
}
