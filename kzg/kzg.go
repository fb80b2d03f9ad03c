// Package kzg produces and checks KZG commitments for the rows of an
// erasure-extended matrix.
//
// Every matrix row is a polynomial of degree < cols committed as
// C = [p(tau)]G1 against a structured reference string. A single-column
// opening proves p(x) = y for the column's domain point x via the pairing
// check
//
//	e(C - [y]G1, G2) == e(pi, [tau]G2 - [x]G2)
//
// and a multi-column opening proves the values at a whole set of columns T
// with one fixed-size proof via
//
//	e(C - [r(tau)]G1, G2) == e(pi, [Z_T(tau)]G2)
//
// where r interpolates the claimed values on T and Z_T is the vanishing
// polynomial of T. The second check needs G2 powers of tau beyond the usual
// pair, which is why SRS carries an explicit G2 power table.
//
// Verification never panics: inputs that fail to parse as group elements
// are reported as ErrMalformedEncoding, while well-formed proofs that do
// not satisfy the pairing equation verify to false with a nil error.
package kzg

import (
	"encoding/hex"
	"errors"
	"fmt"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	frpoly "github.com/consensys/gnark-crypto/ecc/bls12-381/fr/polynomial"
)

const (
	// CommitmentSize is the byte length of a compressed G1 commitment.
	CommitmentSize = 48
	// ProofSize is the byte length of a compressed G1 opening proof.
	ProofSize = 48
)

var (
	// ErrSRSTooSmall reports an SRS without enough powers for the
	// requested polynomial degree or opening set size.
	ErrSRSTooSmall = errors.New("kzg: srs too small")

	// ErrMalformedEncoding reports bytes that do not decode to a valid
	// curve point or field element. It is distinct from a verification
	// returning false: malformed inputs carry no cryptographic verdict.
	ErrMalformedEncoding = errors.New("kzg: malformed encoding")

	// ErrEmptyPolynomial reports a commit or open over zero coefficients.
	ErrEmptyPolynomial = errors.New("kzg: empty polynomial")

	// ErrEmptyBatch reports a batch operation over zero columns.
	ErrEmptyBatch = errors.New("kzg: empty column batch")

	// ErrBatchMismatch reports batch inputs whose lengths disagree.
	ErrBatchMismatch = errors.New("kzg: batch length mismatch")

	// ErrDimensionMismatch reports a matrix whose dimensions differ from
	// the ones the engine was constructed for.
	ErrDimensionMismatch = errors.New("kzg: matrix dimensions do not match engine")

	// ErrBadRegion reports region bounds outside the committed matrix.
	ErrBadRegion = errors.New("kzg: invalid region bounds")
)

// Commitment is a compressed G1 commitment to a row polynomial.
type Commitment [CommitmentSize]byte

// String returns the commitment as a 0x-prefixed hex string.
func (c Commitment) String() string { return "0x" + hex.EncodeToString(c[:]) }

// Proof is a compressed G1 opening proof. The same representation covers
// single openings, multi-column openings and region openings.
type Proof [ProofSize]byte

// String returns the proof as a 0x-prefixed hex string.
func (p Proof) String() string { return "0x" + hex.EncodeToString(p[:]) }

// parseG1 decodes a compressed G1 point, running the canonical-form and
// subgroup checks. Failures wrap ErrMalformedEncoding so callers can
// separate garbage inputs from honest verification failures.
func parseG1(label string, b []byte) (bls12381.G1Affine, error) {
	var p bls12381.G1Affine
	if len(b) != CommitmentSize {
		return p, fmt.Errorf("%w: %s is %d bytes, want %d", ErrMalformedEncoding, label, len(b), CommitmentSize)
	}
	if _, err := p.SetBytes(b); err != nil {
		return p, fmt.Errorf("%w: %s: %v", ErrMalformedEncoding, label, err)
	}
	return p, nil
}

// evalPoly evaluates a coefficient-form polynomial at x.
func evalPoly(coeffs []fr.Element, x fr.Element) fr.Element {
	return frpoly.Polynomial(coeffs).Eval(&x)
}
