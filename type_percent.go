package portfolio

import "fmt"

// Percent is a dimensionless fraction: a portfolio weight of 25% is
// Percent(0.25). Rates of return use the same type.
type Percent float64

func (p Percent) Equal(q Percent) bool {
	// it has to be compared with some precision
	const precision = 0.0001
	diff := p - q
	if diff < 0 {
		diff = -diff
	}
	return diff < precision
}

func (p Percent) Float() float64 { return float64(p) }

func (p Percent) String() string {
	return fmt.Sprintf("%.2f%%", 100*p)
}

func (p Percent) SignedString() string {
	res := fmt.Sprintf("%+.2f%%", 100*p)
	if res == "+0.00%" {
		return "-"
	}
	return res
}
