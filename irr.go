package portfolio

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// irr computes the internal rate of return of a cash-flow series, one flow
// per period, the first flow at period zero.
//
// It solves NPV(r) = sum(cf[t] / (1+r)^t) = 0 by finding the roots of the
// polynomial sum(cf[t] * x^t) in the per-period discount factor x = 1/(1+r):
// the roots are the eigenvalues of the polynomial's companion matrix. Among
// the real positive roots the rate closest to zero wins. A degenerate
// series, a failed factorization or the absence of a usable real root all
// report 0 rather than failing.
func irr(flows []float64) float64 {
	// Trim the high-order zero coefficients; the polynomial degree is the
	// last period with a non-zero flow.
	degree := len(flows) - 1
	for degree > 0 && flows[degree] == 0 {
		degree--
	}
	if degree < 1 {
		return 0
	}

	// Companion matrix of the monic polynomial
	// x^n + a[n-1]*x^(n-1) + ... + a[0], with a[i] = cf[i]/cf[n].
	lead := flows[degree]
	c := mat.NewDense(degree, degree, nil)
	for i := 0; i < degree; i++ {
		if i+1 < degree {
			c.Set(i+1, i, 1)
		}
		c.Set(i, degree-1, -flows[i]/lead)
	}

	var eig mat.Eigen
	if ok := eig.Factorize(c, mat.EigenNone); !ok {
		return 0
	}

	const imagTol = 1e-9
	best := math.NaN()
	for _, root := range eig.Values(nil) {
		if math.Abs(imag(root)) > imagTol {
			continue
		}
		x := real(root)
		if x <= 0 {
			continue
		}
		rate := 1/x - 1
		if math.IsNaN(best) || math.Abs(rate) < math.Abs(best) {
			best = rate
		}
	}
	if math.IsNaN(best) {
		return 0
	}
	return best
}
