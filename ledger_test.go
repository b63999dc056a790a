package portfolio

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertInvariants checks the properties that must hold after every
// mutating call: weight normalisation, non-negative holdings, the cash pin
// and the cash row's position.
func assertInvariants(t *testing.T, l *Ledger) {
	t.Helper()

	report := l.PositionsReport()
	var weightSum float64
	for _, p := range report.Positions {
		weightSum += p.Weight.Float()
		if !p.IsCash() {
			assert.False(t, p.Quantity.IsNegative(), "position %s has negative quantity %s", p.Title, p.Quantity)
		}
	}
	if l.positions.totalNet().IsZero() {
		assert.Zero(t, weightSum)
	} else {
		assert.InDelta(t, 1.0, weightSum, 1e-9, "weights must sum to 1")
	}

	last := report.Positions[len(report.Positions)-1]
	assert.True(t, last.IsCash(), "cash row must be last")
	assert.True(t, last.Net.Equal(l.Balance()), "cash position %s must equal balance %s", last.Net, l.Balance())
	assert.True(t, last.Quantity.Equal(Q(1)))
	assert.True(t, last.Price.Equal(M(1, l.Currency())))
	assert.True(t, last.Rate.Equal(decimal.NewFromInt(1)))
}

func TestNewLedger(t *testing.T) {
	l := NewLedger(MustParse("2020-06-12"), "AAA", M(10000, "EUR"))

	assert.Equal(t, "AAA", l.PortfolioID())
	assert.Equal(t, "EUR", l.Currency())
	assert.True(t, l.Balance().Equal(M(10000, "EUR")))

	journal := l.JournalReport().Entries
	require.Len(t, journal, 1, "first journal entry is a synthetic deposit")
	assert.Equal(t, KindDeposit, journal[0].Kind)
	assert.True(t, journal[0].CashFlow.Equal(M(10000, "EUR")))
	assert.NotEmpty(t, journal[0].ID)

	assertInvariants(t, l)
}

func TestDeposit_NegativeIsCallerError(t *testing.T) {
	l := NewLedger(MustParse("2020-06-12"), "AAA", M(1000, "EUR"))

	_, err := l.Deposit(NewDeposit(MustParse("2020-06-14"), M(-50, "EUR")))
	require.Error(t, err)
	assert.True(t, l.Balance().Equal(M(1000, "EUR")), "failed deposit must not mutate the balance")
	assert.Len(t, l.JournalReport().Entries, 1)
}

func TestWithdraw_ClampedToBalance(t *testing.T) {
	l := NewLedger(MustParse("2020-06-12"), "AAA", M(100, "EUR"))

	exec, err := l.Withdraw(NewWithdraw(MustParse("2020-06-13"), M(250, "EUR")))
	require.NoError(t, err)

	assert.True(t, exec.Clamped)
	assert.True(t, exec.Requested.Equal(M(250, "EUR")))
	assert.True(t, exec.Executed.Equal(M(100, "EUR")))
	assert.True(t, l.Balance().IsZero(), "balance must be zero, never negative")

	journal := l.JournalReport().Entries
	last := journal[len(journal)-1]
	assert.True(t, last.CashFlow.Equal(M(100, "EUR")), "journal records the actual amount, not the requested one")
	assertInvariants(t, l)
}

func TestWithdraw_Exact(t *testing.T) {
	l := NewLedger(MustParse("2020-06-12"), "AAA", M(100, "EUR"))

	exec, err := l.Withdraw(NewWithdraw(MustParse("2020-06-13"), M(40, "EUR")))
	require.NoError(t, err)
	assert.False(t, exec.Clamped)
	assert.True(t, l.Balance().Equal(M(60, "EUR")))
	assertInvariants(t, l)
}

func TestBuy_CreatesPositionAndFlow(t *testing.T) {
	l := NewLedger(MustParse("2020-06-12"), "AAA", M(10000, "EUR"))

	trade := NewTrade(MustParse("2020-06-19"), SideBuy, "Arca Azioni Italia", "IT0000388907", "EUR", Q(10), M(20.4554, "EUR"))
	exec, err := l.Buy(trade)
	require.NoError(t, err)

	assert.False(t, exec.Clamped)
	assert.True(t, exec.Executed.Equal(M(204.554, "EUR")))
	assert.True(t, l.Balance().Equal(M(9795.446, "EUR")))

	pos := l.positions.find("Arca Azioni Italia")
	require.NotNil(t, pos)
	assert.Equal(t, "IT0000388907", pos.ISIN)
	assert.True(t, pos.Quantity.Equal(Q(10)))
	assert.True(t, pos.Net.Equal(M(204.554, "EUR")))
	assert.True(t, pos.AvgCost.Equal(M(20.4554, "EUR")))

	flow := l.CashFlows("Arca Azioni Italia")
	require.NotNil(t, flow)
	first, ok := flow.First()
	require.True(t, ok)
	assert.True(t, first.Amount.IsNegative(), "a buy is an outflow")
	assert.True(t, first.Amount.Equal(M(-204.554, "EUR")))

	require.Len(t, l.BlotterReport().Records, 1)
	record := l.BlotterReport().Records[0]
	assert.Equal(t, SideBuy, record.Side)
	assert.Equal(t, "AAA", record.Portfolio)
	assert.True(t, record.Amount.Equal(M(204.554, "EUR")))

	assertInvariants(t, l)
}

func TestBuy_ClampedToBalance(t *testing.T) {
	l := NewLedger(MustParse("2020-06-12"), "AAA", M(100, "EUR"))

	trade := NewTrade(MustParse("2020-06-19"), SideBuy, "Fund", "XX0000000001", "EUR", Q(10), M(20, "EUR"))
	exec, err := l.Buy(trade)
	require.NoError(t, err)

	assert.True(t, exec.Clamped)
	assert.True(t, exec.Requested.Equal(M(200, "EUR")))
	assert.True(t, exec.Executed.Equal(M(100, "EUR")), "recorded cost equals what was actually spent")
	assert.True(t, l.Balance().IsZero())

	pos := l.positions.find("Fund")
	require.NotNil(t, pos)
	assert.True(t, pos.Quantity.Equal(Q(10)), "quantity is not reduced by the clamp")
	assert.True(t, pos.Net.Equal(M(100, "EUR")))
	assertInvariants(t, l)
}

func TestBuy_BelowMaterialityIsNoOp(t *testing.T) {
	l := NewLedger(MustParse("2020-06-12"), "AAA", M(1000, "EUR"))
	before := l.PositionsReport()

	trade := NewTrade(MustParse("2020-06-19"), SideBuy, "Dust", "XX0000000002", "EUR", Q(1), M(0.005, "EUR"))
	exec, err := l.Buy(trade)
	require.NoError(t, err)

	assert.True(t, exec.NoOp)
	assert.True(t, l.Balance().Equal(M(1000, "EUR")), "balance unaffected")
	assert.Len(t, l.JournalReport().Entries, 1)
	assert.Empty(t, l.BlotterReport().Records)
	assert.Nil(t, l.CashFlows("Dust"))
	assert.Equal(t, before, l.PositionsReport())
}

func TestBuy_AccumulatesIntoExistingPosition(t *testing.T) {
	l := NewLedger(MustParse("2020-06-12"), "AAA", M(10000, "EUR"))

	_, err := l.Buy(NewTrade(MustParse("2020-06-19"), SideBuy, "Fund", "XX1", "EUR", Q(10), M(100, "EUR")))
	require.NoError(t, err)
	_, err = l.Buy(NewTrade(MustParse("2020-06-22"), SideBuy, "Fund", "XX1", "EUR", Q(10), M(200, "EUR")))
	require.NoError(t, err)

	pos := l.positions.find("Fund")
	require.NotNil(t, pos)
	assert.True(t, pos.Quantity.Equal(Q(20)))
	assert.True(t, pos.Price.Equal(M(200, "EUR")), "price reflects the latest trade")
	assert.True(t, pos.Net.Equal(M(3000, "EUR")))
	assertInvariants(t, l)
}

func TestBuy_WeightedAverageCost(t *testing.T) {
	// 10 units at 100 then 10 more at 200, no fees: average cost 150.
	l := NewLedger(MustParse("2020-06-12"), "AAA", M(10000, "EUR"))

	_, err := l.Buy(NewTrade(MustParse("2020-06-19"), SideBuy, "Fund", "XX1", "EUR", Q(10), M(100, "EUR")))
	require.NoError(t, err)
	_, err = l.Buy(NewTrade(MustParse("2020-06-22"), SideBuy, "Fund", "XX1", "EUR", Q(10), M(200, "EUR")))
	require.NoError(t, err)

	pos := l.positions.find("Fund")
	require.NotNil(t, pos)
	assert.True(t, pos.AvgCost.Equal(M(150, "EUR")), "got %s", pos.AvgCost)
}

func TestBuy_FeesAndCommission(t *testing.T) {
	l := NewLedger(MustParse("2020-06-12"), "AAA", M(10000, "EUR"))

	trade := NewTrade(MustParse("2020-06-19"), SideBuy, "Fund", "XX1", "EUR", Q(10), M(100, "EUR"))
	trade.Fee = M(5, "EUR")
	trade.Commission = decimal.NewFromFloat(0.01) // 1% of the gross
	exec, err := l.Buy(trade)
	require.NoError(t, err)

	// 1000 gross + 5 fee + 10 commission.
	assert.True(t, exec.Executed.Equal(M(1015, "EUR")))
	assert.True(t, l.Balance().Equal(M(8985, "EUR")))
	assertInvariants(t, l)
}

func TestSell_NotHeldIsNoOp(t *testing.T) {
	l := NewLedger(MustParse("2020-06-12"), "AAA", M(1000, "EUR"))

	exec, err := l.Sell(NewTrade(MustParse("2020-06-19"), SideSell, "Ghost", "XX9", "EUR", Q(10), M(5, "EUR")))
	require.NoError(t, err)
	assert.True(t, exec.NoOp)
	assert.True(t, l.Balance().Equal(M(1000, "EUR")))
	assert.Len(t, l.JournalReport().Entries, 1)
}

func TestSell_ClampedToHolding(t *testing.T) {
	l := NewLedger(MustParse("2020-06-12"), "AAA", M(1000, "EUR"))

	_, err := l.Buy(NewTrade(MustParse("2020-06-19"), SideBuy, "Fund", "XX1", "EUR", Q(10), M(20, "EUR")))
	require.NoError(t, err)

	exec, err := l.Sell(NewTrade(MustParse("2020-06-22"), SideSell, "Fund", "XX1", "EUR", Q(50), M(20, "EUR")))
	require.NoError(t, err)

	assert.True(t, exec.Clamped)
	assert.True(t, exec.Quantity.Equal(Q(10)), "sell is clamped to the held quantity")
	assert.True(t, exec.Executed.Equal(M(200, "EUR")))
	assert.True(t, l.Balance().Equal(M(1000, "EUR")), "fully round-tripped")

	assert.Nil(t, l.positions.find("Fund"), "emptied position is pruned")

	records := l.BlotterReport().Records
	require.Len(t, records, 2)
	assert.True(t, records[1].Quantity.Equal(Q(10)), "blotter records the executed quantity")
	assertInvariants(t, l)
}

func TestInterest_CreditsAndLogs(t *testing.T) {
	l := NewLedger(MustParse("2020-06-12"), "AAA", M(1000, "EUR"))

	_, err := l.Buy(NewTrade(MustParse("2020-06-13"), SideBuy, "Bond", "IT0005104473", "EUR", Q(10), M(20, "EUR")))
	require.NoError(t, err)

	exec, err := l.Interest(NewInterest(MustParse("2020-06-20"), "Bond", "IT0005104473", "EUR", Q(1000), M(450, "EUR")))
	require.NoError(t, err)
	assert.True(t, exec.Executed.Equal(M(450, "EUR")))
	assert.True(t, l.Balance().Equal(M(1250, "EUR")))

	journal := l.JournalReport().Entries
	last := journal[len(journal)-1]
	assert.Equal(t, KindInterest, last.Kind)
	assert.Contains(t, last.Memo, "IT0005104473", "memo identifies the paying instrument")

	flow := l.CashFlows("Bond")
	require.NotNil(t, flow)
	entries := flow.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, FlowInterest, entries[1].Kind)
	assert.True(t, entries[1].Amount.Equal(M(450, "EUR")))
	assert.True(t, flow.CouponTotal().Equal(M(450, "EUR")))
	assertInvariants(t, l)
}

func TestInterest_BeforeAnyPurchaseCreatesLog(t *testing.T) {
	l := NewLedger(MustParse("2020-06-12"), "AAA", M(1000, "EUR"))

	_, err := l.Interest(NewInterest(MustParse("2020-06-20"), "Bond", "IT0005104473", "EUR", Q(1000), M(450, "EUR")))
	require.NoError(t, err)

	flow := l.CashFlows("Bond")
	require.NotNil(t, flow, "the log is created even when the instrument was never traded")
	first, ok := flow.First()
	require.True(t, ok)
	assert.True(t, first.Amount.IsPositive(), "credit-first log")
	assertInvariants(t, l)
}

func TestInterest_CrossCurrencyConverts(t *testing.T) {
	rates := NewRateTable()
	rates.Add(MustParse("2020-06-19"), CurrencyPair{Base: "USD", Quote: "EUR"}, decimal.NewFromFloat(0.9))

	l := NewLedger(MustParse("2020-06-12"), "AAA", M(1000, "EUR"), WithRateProvider(rates))

	exec, err := l.Interest(NewInterest(MustParse("2020-06-20"), "T-Note", "US0000000001", "USD", Q(100), M(100, "USD")))
	require.NoError(t, err)
	assert.True(t, exec.Executed.Equal(M(90, "EUR")))
	assert.True(t, l.Balance().Equal(M(1090, "EUR")))
}

func TestInterest_RateUnavailableAborts(t *testing.T) {
	l := NewLedger(MustParse("2020-06-12"), "AAA", M(1000, "EUR"))

	_, err := l.Interest(NewInterest(MustParse("2020-06-20"), "T-Note", "US0000000001", "USD", Q(100), M(100, "USD")))
	require.ErrorIs(t, err, ErrRateUnavailable)
	assert.True(t, l.Balance().Equal(M(1000, "EUR")), "failed operation must not mutate the ledger")
	assert.Len(t, l.JournalReport().Entries, 1)
	assert.Nil(t, l.CashFlows("T-Note"))
}

func TestBuy_RateUnavailableAborts(t *testing.T) {
	l := NewLedger(MustParse("2020-06-12"), "AAA", M(1000, "EUR"))

	_, err := l.Buy(NewTrade(MustParse("2020-06-19"), SideBuy, "T-Note", "US0000000001", "USD", Q(10), M(20, "USD")))
	require.ErrorIs(t, err, ErrRateUnavailable)
	assert.True(t, l.Balance().Equal(M(1000, "EUR")))
	assert.Empty(t, l.BlotterReport().Records)
	assert.Nil(t, l.positions.find("T-Note"))
}

func TestBuy_ForeignCurrencyBooksAtFaceValue(t *testing.T) {
	rates := NewRateTable()
	rates.Add(MustParse("2020-06-19"), CurrencyPair{Base: "USD", Quote: "EUR"}, decimal.NewFromFloat(0.9))
	l := NewLedger(MustParse("2020-06-12"), "AAA", M(10000, "EUR"), WithRateProvider(rates))

	exec, err := l.Buy(NewTrade(MustParse("2020-06-19"), SideBuy, "T-Note", "US0000000001", "USD", Q(10), M(100, "USD")))
	require.NoError(t, err)

	// The FX rate is recorded on the blotter, not applied: the cash amount
	// is booked at face value in the base currency.
	assert.True(t, exec.Executed.Equal(M(1000, "EUR")))
	assert.Equal(t, "EUR", exec.Executed.Currency())
	assert.True(t, l.Balance().Equal(M(9000, "EUR")))

	record := l.BlotterReport().Records[0]
	assert.True(t, record.Rate.Equal(decimal.NewFromFloat(0.9)))

	pos := l.positions.find("T-Note")
	require.NotNil(t, pos)
	assert.Equal(t, "USD", pos.Currency)
	assert.True(t, pos.Price.Equal(M(100, "USD")), "price stays in the instrument currency")
	assert.True(t, pos.Net.Equal(M(1000, "EUR")), "value columns carry the base currency")
	assertInvariants(t, l)
}

func TestSell_ForeignCurrencyBooksAtFaceValue(t *testing.T) {
	rates := NewRateTable()
	rates.Add(MustParse("2020-06-19"), CurrencyPair{Base: "USD", Quote: "EUR"}, decimal.NewFromFloat(0.9))
	l := NewLedger(MustParse("2020-06-12"), "AAA", M(10000, "EUR"), WithRateProvider(rates))

	_, err := l.Buy(NewTrade(MustParse("2020-06-19"), SideBuy, "T-Note", "US0000000001", "USD", Q(10), M(100, "USD")))
	require.NoError(t, err)

	exec, err := l.Sell(NewTrade(MustParse("2020-06-22"), SideSell, "T-Note", "US0000000001", "USD", Q(10), M(110, "USD")))
	require.NoError(t, err)
	assert.True(t, exec.Executed.Equal(M(1100, "EUR")))
	assert.True(t, l.Balance().Equal(M(10100, "EUR")))
	assert.Nil(t, l.positions.find("T-Note"))
	assertInvariants(t, l)
}

func TestTrade_PriceCurrencyMismatchRejected(t *testing.T) {
	rates := NewRateTable()
	rates.Add(MustParse("2020-06-19"), CurrencyPair{Base: "USD", Quote: "EUR"}, decimal.NewFromFloat(0.9))
	l := NewLedger(MustParse("2020-06-12"), "AAA", M(1000, "EUR"), WithRateProvider(rates))

	_, err := l.Buy(NewTrade(MustParse("2020-06-19"), SideBuy, "T-Note", "US0000000001", "USD", Q(10), M(100, "EUR")))
	require.Error(t, err)
	assert.True(t, l.Balance().Equal(M(1000, "EUR")))
	assert.Empty(t, l.BlotterReport().Records)

	mismatchedFee := NewTrade(MustParse("2020-06-19"), SideBuy, "T-Note", "US0000000001", "USD", Q(10), M(100, "USD"))
	mismatchedFee.Fee = M(5, "EUR")
	_, err = l.Buy(mismatchedFee)
	require.Error(t, err)
	assert.True(t, l.Balance().Equal(M(1000, "EUR")))
}

func TestSell_BelowMaterialityIsNoOp(t *testing.T) {
	l := NewLedger(MustParse("2020-06-12"), "AAA", M(1000, "EUR"))
	_, err := l.Buy(NewTrade(MustParse("2020-06-13"), SideBuy, "Fund", "XX1", "EUR", Q(10), M(20, "EUR")))
	require.NoError(t, err)
	before := l.PositionsReport()

	exec, err := l.Sell(NewTrade(MustParse("2020-06-14"), SideSell, "Fund", "XX1", "EUR", Q(1), M(0.005, "EUR")))
	require.NoError(t, err)

	assert.True(t, exec.NoOp)
	assert.True(t, l.Balance().Equal(M(800, "EUR")), "balance unaffected")
	assert.Len(t, l.JournalReport().Entries, 2)
	assert.Len(t, l.BlotterReport().Records, 1)
	assert.Equal(t, 1, l.CashFlows("Fund").Len())
	assert.Equal(t, before, l.PositionsReport())
}

func TestBuy_ClampedBelowMaterialityIsNoOp(t *testing.T) {
	// The clamp happens first: a large request against a dust balance
	// executes below the floor and must leave everything untouched.
	l := NewLedger(MustParse("2020-06-12"), "AAA", M(0.005, "EUR"))
	before := l.PositionsReport()

	exec, err := l.Buy(NewTrade(MustParse("2020-06-13"), SideBuy, "Fund", "XX1", "EUR", Q(10), M(20, "EUR")))
	require.NoError(t, err)

	assert.True(t, exec.NoOp)
	assert.True(t, exec.Requested.Equal(M(200, "EUR")))
	assert.True(t, l.Balance().Equal(M(0.005, "EUR")))
	assert.Len(t, l.JournalReport().Entries, 1)
	assert.Empty(t, l.BlotterReport().Records)
	assert.Nil(t, l.positions.find("Fund"))
	assert.Nil(t, l.CashFlows("Fund"))
	assert.Equal(t, before, l.PositionsReport())
}

func TestApply_Dispatch(t *testing.T) {
	l := NewLedger(MustParse("2020-06-12"), "AAA", M(1000, "EUR"))

	events := []Event{
		NewDeposit(MustParse("2020-06-13"), M(100, "EUR")),
		NewTrade(MustParse("2020-06-14"), SideBuy, "Fund", "XX1", "EUR", Q(10), M(20, "EUR")),
		NewTrade(MustParse("2020-06-15"), SideSell, "Fund", "XX1", "EUR", Q(5), M(20, "EUR")),
		NewWithdraw(MustParse("2020-06-16"), M(50, "EUR")),
		NewInterest(MustParse("2020-06-17"), "Fund", "XX1", "EUR", Q(5), M(10, "EUR")),
	}
	for _, e := range events {
		_, err := l.Apply(e)
		require.NoError(t, err, "applying %s", e.What())
		assertInvariants(t, l)
	}

	// 1000 +100 -200 +100 -50 +10
	assert.True(t, l.Balance().Equal(M(960, "EUR")))
	assert.Len(t, l.JournalReport().Entries, 6)
}

// TestScenarioA is the regression fixture: the full event sequence with a
// fully determined final balance and position set.
func TestScenarioA(t *testing.T) {
	l := NewLedger(MustParse("2020-06-12"), "AAA", M(10000, "EUR"))

	bond := NewTrade(MustParse("2020-06-19"), SideBuy, "CctEu 15Giu22 TV", "IT0005104473", "EUR", Q(10), M(20.4554, "EUR"))
	_, err := l.Buy(bond)
	require.NoError(t, err)
	assert.True(t, l.Balance().Equal(M(9795.446, "EUR")))
	assertInvariants(t, l)

	_, err = l.Deposit(NewDeposit(MustParse("2020-06-20"), M(5000, "EUR")))
	require.NoError(t, err)
	_, err = l.Deposit(NewDeposit(MustParse("2020-06-20"), M(5000, "EUR")))
	require.NoError(t, err)
	assert.True(t, l.Balance().Equal(M(19795.446, "EUR")))
	assertInvariants(t, l)

	_, err = l.Withdraw(NewWithdraw(MustParse("2020-06-21"), M(5000, "EUR")))
	require.NoError(t, err)
	assert.True(t, l.Balance().Equal(M(14795.446, "EUR")))
	assertInvariants(t, l)

	fund := NewTrade(MustParse("2020-06-22"), SideBuy, "Arca Azioni Italia", "IT0000388907", "EUR", Q(10), M(20.4554, "EUR"))
	_, err = l.Buy(fund)
	require.NoError(t, err)
	assert.True(t, l.Balance().Equal(M(14590.892, "EUR")))
	assertInvariants(t, l)

	sell := NewTrade(MustParse("2020-06-23"), SideSell, "Arca Azioni Italia", "IT0000388907", "EUR", Q(50), M(20.4554, "EUR"))
	exec, err := l.Sell(sell)
	require.NoError(t, err)
	assert.True(t, exec.Clamped)
	assert.True(t, exec.Quantity.Equal(Q(10)))
	assert.True(t, l.Balance().Equal(M(14795.446, "EUR")))
	assert.Nil(t, l.positions.find("Arca Azioni Italia"), "sold-out position is pruned")
	assertInvariants(t, l)

	_, err = l.Interest(NewInterest(MustParse("2020-06-24"), "CctEu 15Giu22 TV", "IT0005104473", "EUR", Q(1000), M(450, "EUR")))
	require.NoError(t, err)
	assert.True(t, l.Balance().Equal(M(15245.446, "EUR")))
	assertInvariants(t, l)

	report := l.PositionsReport()
	require.Len(t, report.Positions, 2, "bond position and the cash row")
	assert.Equal(t, "CctEu 15Giu22 TV", report.Positions[0].Title)
	assert.True(t, report.Positions[0].Quantity.Equal(Q(10)))
	assert.True(t, report.Positions[1].IsCash())
	assert.True(t, report.Total.Weight.Equal(1))
}
