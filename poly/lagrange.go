package poly

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// Vanishing returns the monic polynomial with the given roots,
// prod (X - x_i), as len(xs)+1 coefficients in ascending degree order.
func Vanishing(xs []fr.Element) []fr.Element {
	z := make([]fr.Element, len(xs)+1)
	z[0].SetOne()
	for i := range xs {
		// Multiply the current polynomial of degree i by (X - x_i).
		var t fr.Element
		for k := i + 1; k >= 1; k-- {
			t.Mul(&z[k], &xs[i])
			z[k].Sub(&z[k-1], &t)
		}
		t.Mul(&z[0], &xs[i])
		z[0].Neg(&t)
	}
	return z
}

// Interpolate returns the coefficients, in ascending degree order, of the
// unique polynomial of degree < len(xs) passing through the points
// (xs[i], ys[i]). The xs must be pairwise distinct.
//
// Cost is quadratic in the number of points; the codec only takes this path
// when a row's systematic prefix has holes, and batch openings use small
// point sets.
func Interpolate(xs, ys []fr.Element) ([]fr.Element, error) {
	n := len(xs)
	if n == 0 {
		return nil, fmt.Errorf("%w: no points", ErrInvalidLength)
	}
	if len(ys) != n {
		return nil, fmt.Errorf("%w: %d x-values, %d y-values", ErrInvalidLength, n, len(ys))
	}

	// d_i = prod_{j != i} (x_i - x_j), inverted in one batch.
	denoms := make([]fr.Element, n)
	for i := range denoms {
		denoms[i].SetOne()
		var diff fr.Element
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			diff.Sub(&xs[i], &xs[j])
			if diff.IsZero() {
				return nil, fmt.Errorf("%w: repeated x-value", ErrDuplicatePosition)
			}
			denoms[i].Mul(&denoms[i], &diff)
		}
	}
	inv := fr.BatchInvert(denoms)

	master := Vanishing(xs)

	// Each Lagrange basis numerator is master / (X - x_i), by synthetic
	// division (the remainder is zero since x_i is a root).
	coeffs := make([]fr.Element, n)
	q := make([]fr.Element, n)
	for i := 0; i < n; i++ {
		q[n-1] = master[n]
		var t fr.Element
		for k := n - 1; k >= 1; k-- {
			t.Mul(&xs[i], &q[k])
			q[k-1].Add(&master[k], &t)
		}

		var w fr.Element
		w.Mul(&ys[i], &inv[i])
		for k := 0; k < n; k++ {
			t.Mul(&q[k], &w)
			coeffs[k].Add(&coeffs[k], &t)
		}
	}
	return coeffs, nil
}
