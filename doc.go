// Package portfolio tracks a single investment portfolio's cash and
// security positions from a stream of financial events (deposits,
// withdrawals, buys, sells, coupon and dividend receipts) and derives
// performance metrics from the resulting cash-flow history.
//
// The Ledger is the mutation surface: it applies events strictly in
// submission order, enforcing cash-position consistency, weight
// normalisation, non-negative holdings and cost-basis correctness after
// every operation. Withdrawals and buys exceeding the balance, and sells
// exceeding the holding, are silently clamped rather than rejected; the
// clamp is observable in the returned Execution. Amounts under the 0.01
// materiality floor are no-ops.
//
// Revalue marks positions to market from caller-supplied prices, and
// Returns turns the per-instrument cash-flow logs plus the latest
// valuation into money-weighted (IRR), profit-and-loss and annualised
// return figures.
//
// Cross-currency amounts are resolved through an injected RateProvider;
// a missing rate aborts the single operation that needed it and leaves
// the ledger untouched.
package portfolio
