package kzg

import (
	"fmt"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/dagrid/dagrid/metrics"
	"github.com/dagrid/dagrid/poly"
)

// OpenBatch proves the values of the row polynomial at a set of extended
// columns with one proof of the same size as a single opening. The proof
// commits to the quotient (p - r) / Z_T, where r interpolates p over the
// set and Z_T vanishes on it.
//
// The set must fit the SRS G2 table: verifying needs [Z_T(tau)]G2, whose
// degree equals the set size.
func (e *Engine) OpenBatch(coeffs []fr.Element, cols []int) (Proof, error) {
	if len(coeffs) == 0 {
		return Proof{}, ErrEmptyPolynomial
	}
	xs, err := e.batchPoints(cols)
	if err != nil {
		return Proof{}, err
	}
	if len(xs) > e.srs.MaxBatch() {
		return Proof{}, fmt.Errorf("%w: batch of %d columns, srs supports %d",
			ErrSRSTooSmall, len(xs), e.srs.MaxBatch())
	}

	ys := make([]fr.Element, len(xs))
	for i := range xs {
		ys[i] = evalPoly(coeffs, xs[i])
	}
	r, err := poly.Interpolate(xs, ys)
	if err != nil {
		return Proof{}, err
	}

	q, rem := polyDiv(polySub(coeffs, r), poly.Vanishing(xs))
	if !isZeroPoly(rem) {
		return Proof{}, fmt.Errorf("kzg: interpolant left a non-zero remainder")
	}
	pi, err := e.srs.commitG1(q)
	if err != nil {
		return Proof{}, err
	}
	metrics.BatchProofsOpened.Inc()
	return Proof(pi.Bytes()), nil
}

// VerifyBatch checks a multi-column opening against a row commitment. The
// claimed values are index-aligned with cols. As with Verify, false with a
// nil error is a cryptographic mismatch while a non-nil error reports
// inputs that could not be judged.
func (e *Engine) VerifyBatch(c Commitment, cols []int, values []fr.Element, proof Proof) (bool, error) {
	xs, err := e.batchPoints(cols)
	if err != nil {
		return false, err
	}
	if len(values) != len(xs) {
		return false, fmt.Errorf("%w: %d columns, %d values", ErrBatchMismatch, len(xs), len(values))
	}
	digest, err := parseG1("commitment", c[:])
	if err != nil {
		return false, err
	}
	h, err := parseG1("proof", proof[:])
	if err != nil {
		return false, err
	}

	r, err := poly.Interpolate(xs, values)
	if err != nil {
		return false, err
	}
	rG1, err := e.srs.commitG1(r)
	if err != nil {
		return false, err
	}
	zt2, err := e.srs.vanishingG2(poly.Vanishing(xs))
	if err != nil {
		return false, err
	}

	// e(C - [r(tau)]G1, G2) == e(pi, [Z_T(tau)]G2), folded into a single
	// product check by negating pi.
	var lhs, negH bls12381.G1Affine
	lhs.Sub(&digest, &rG1)
	negH.Neg(&h)
	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{lhs, negH},
		[]bls12381.G2Affine{e.srs.g2[0], zt2},
	)
	if err != nil {
		return false, fmt.Errorf("kzg: pairing check: %w", err)
	}
	metrics.ProofsVerified.Inc()
	if !ok {
		metrics.ProofsRejected.Inc()
	}
	return ok, nil
}

// batchPoints maps a column set to domain points, rejecting empty sets,
// repeats and columns outside the extended domain.
func (e *Engine) batchPoints(cols []int) ([]fr.Element, error) {
	if len(cols) == 0 {
		return nil, ErrEmptyBatch
	}
	seen := make(map[int]struct{}, len(cols))
	xs := make([]fr.Element, len(cols))
	for i, col := range cols {
		if _, dup := seen[col]; dup {
			return nil, fmt.Errorf("kzg: column %d repeated in batch: %w", col, poly.ErrDuplicatePosition)
		}
		seen[col] = struct{}{}
		x, err := e.codec.ColumnPoint(col)
		if err != nil {
			return nil, err
		}
		xs[i] = x
	}
	return xs, nil
}

// polySub returns a - b over coefficient vectors of any lengths.
func polySub(a, b []fr.Element) []fr.Element {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]fr.Element, n)
	copy(out, a)
	for i := range b {
		out[i].Sub(&out[i], &b[i])
	}
	return out
}

// polyDiv divides a by a monic divisor b, returning quotient and
// remainder. The remainder slice has length deg(b).
func polyDiv(a, b []fr.Element) (q, rem []fr.Element) {
	db := len(b) - 1
	rem = append([]fr.Element(nil), a...)
	if len(a)-1 < db {
		return nil, rem
	}
	q = make([]fr.Element, len(a)-db)
	for i := len(a) - 1; i >= db; i-- {
		c := rem[i]
		q[i-db] = c
		if c.IsZero() {
			continue
		}
		for j := 0; j <= db; j++ {
			var t fr.Element
			t.Mul(&c, &b[j])
			rem[i-db+j].Sub(&rem[i-db+j], &t)
		}
	}
	return q, rem[:db]
}

func isZeroPoly(p []fr.Element) bool {
	for i := range p {
		if !p[i].IsZero() {
			return false
		}
	}
	return true
}
