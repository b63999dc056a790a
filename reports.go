package portfolio

// PositionsReport is a read view of the position table with its totals.
// Rounding and percentage formatting are the caller's concern.
type PositionsReport struct {
	Positions []Position
	Total     PositionsTotal
}

// PositionsTotal sums the value columns across all positions, cash
// included. Weight is within epsilon of 1 whenever the total is non-zero.
type PositionsTotal struct {
	Gross  Money
	Net    Money
	Weight Percent
}

// PositionsReport returns the current position table and its totals.
func (l *Ledger) PositionsReport() PositionsReport {
	rows := l.positions.snapshot()
	total := PositionsTotal{Gross: M(0, l.currency), Net: M(0, l.currency)}
	for _, p := range rows {
		total.Gross = M(total.Gross.Amount().Add(p.Gross.Amount()), l.currency)
		total.Net = M(total.Net.Amount().Add(p.Net.Amount()), l.currency)
		total.Weight += p.Weight
	}
	return PositionsReport{Positions: rows, Total: total}
}

// JournalReport is a read view of the current-account journal.
type JournalReport struct {
	Entries []AccountEntry
}

// JournalReport returns the current-account journal in application order.
func (l *Ledger) JournalReport() JournalReport {
	entries := make([]AccountEntry, len(l.journal))
	copy(entries, l.journal)
	return JournalReport{Entries: entries}
}

// BlotterReport is a read view of the buy/sell blotter.
type BlotterReport struct {
	Records []BlotterRecord
}

// BlotterReport returns the trade blotter in application order.
func (l *Ledger) BlotterReport() BlotterReport {
	records := make([]BlotterRecord, len(l.blotter))
	copy(records, l.blotter)
	return BlotterReport{Records: records}
}

// ReturnsReport is a read view of the returns engine's output.
type ReturnsReport struct {
	Rows  []ReturnsRow
	Total ReturnsTotal
}

// ReturnsReport computes and packages per-instrument and aggregate
// performance figures. Call Revalue first so the terminal valuations
// reflect current prices.
func (l *Ledger) ReturnsReport(asOf Date) ReturnsReport {
	rows, total := l.Returns(asOf)
	return ReturnsReport{Rows: rows, Total: total}
}
