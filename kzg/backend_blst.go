//go:build blst

// BlstBackend implements the pairing operations on supranational/blst
// instead of gnark-crypto. blst is cgo-backed and is the faster choice on
// hosts where cgo is acceptable.
//
// Build with:
//
//	go build -tags blst ./...
//
// Without the tag this file is not compiled and the engine default stays
// the pure-Go gnark backend.

package kzg

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	blst "github.com/supranational/blst/bindings/go"
)

// blstScalarBits is the bit width passed to blst multi-scalar routines;
// fr scalars are canonical and fit 255 bits.
const blstScalarBits = 255

// BlstBackend implements Backend on supranational/blst.
type BlstBackend struct {
	g1    []*blst.P1Affine // [tau^i]G1
	g1gen *blst.P1Affine
	g2gen *blst.P2Affine
	tauG2 *blst.P2Affine
}

var _ Backend = (*BlstBackend)(nil)

// NewBlstBackend converts the SRS tables into blst representation. The
// conversion round-trips through compressed encodings once at startup so
// the hot paths work on native blst points.
func NewBlstBackend(srs *SRS) (*BlstBackend, error) {
	b := &BlstBackend{g1: make([]*blst.P1Affine, len(srs.pk.G1))}
	for i := range srs.pk.G1 {
		enc := srs.pk.G1[i].Bytes()
		p := new(blst.P1Affine).Uncompress(enc[:])
		if p == nil {
			return nil, fmt.Errorf("%w: srs g1 power %d", ErrMalformedEncoding, i)
		}
		b.g1[i] = p
	}
	b.g1gen = b.g1[0]

	for i, dst := range []**blst.P2Affine{&b.g2gen, &b.tauG2} {
		enc := srs.g2[i].Bytes()
		p := new(blst.P2Affine).Uncompress(enc[:])
		if p == nil {
			return nil, fmt.Errorf("%w: srs g2 power %d", ErrMalformedEncoding, i)
		}
		*dst = p
	}
	return b, nil
}

// Name implements Backend.
func (b *BlstBackend) Name() string { return "blst" }

// Commit implements Backend.
func (b *BlstBackend) Commit(coeffs []fr.Element) (Commitment, error) {
	if len(coeffs) == 0 {
		return Commitment{}, ErrEmptyPolynomial
	}
	if len(coeffs) > len(b.g1) {
		return Commitment{}, fmt.Errorf("%w: polynomial of degree %d, srs covers up to %d",
			ErrSRSTooSmall, len(coeffs)-1, len(b.g1)-1)
	}
	var out Commitment
	copy(out[:], b.msmG1(b.g1[:len(coeffs)], coeffs).Compress())
	return out, nil
}

// Open implements Backend. The quotient (p - p(x)) / (X - x) is computed
// by synthetic division over fr and committed with one MSM.
func (b *BlstBackend) Open(coeffs []fr.Element, x fr.Element) (Proof, fr.Element, error) {
	if len(coeffs) == 0 {
		return Proof{}, fr.Element{}, ErrEmptyPolynomial
	}
	if len(coeffs) > len(b.g1) {
		return Proof{}, fr.Element{}, fmt.Errorf("%w: polynomial of degree %d, srs covers up to %d",
			ErrSRSTooSmall, len(coeffs)-1, len(b.g1)-1)
	}
	y := evalPoly(coeffs, x)

	var out Proof
	if len(coeffs) == 1 {
		// Constant polynomial: zero quotient, infinity proof.
		var inf blst.P1Affine
		copy(out[:], inf.Compress())
		return out, y, nil
	}
	q := make([]fr.Element, len(coeffs)-1)
	q[len(q)-1] = coeffs[len(coeffs)-1]
	for i := len(coeffs) - 2; i >= 1; i-- {
		q[i-1].Mul(&q[i], &x)
		q[i-1].Add(&q[i-1], &coeffs[i])
	}
	copy(out[:], b.msmG1(b.g1[:len(q)], q).Compress())
	return out, y, nil
}

// Verify implements Backend, checking
//
//	e(C - [y]G1, G2) == e(pi, [tau]G2 - [x]G2)
//
// with two miller loops and a shared final exponentiation.
func (b *BlstBackend) Verify(c Commitment, x, y fr.Element, proof Proof) (bool, error) {
	cAff := new(blst.P1Affine).Uncompress(c[:])
	if cAff == nil || !cAff.InG1() {
		return false, fmt.Errorf("%w: commitment", ErrMalformedEncoding)
	}
	hAff := new(blst.P1Affine).Uncompress(proof[:])
	if hAff == nil || !hAff.InG1() {
		return false, fmt.Errorf("%w: proof", ErrMalformedEncoding)
	}

	var one, negY, negX fr.Element
	one.SetOne()
	negY.Neg(&y)
	negX.Neg(&x)

	lhs := blst.P1AffinesMult(
		[]*blst.P1Affine{cAff, b.g1gen},
		[]*blst.Scalar{blstScalar(one), blstScalar(negY)},
		blstScalarBits,
	).ToAffine()
	rhs2 := blst.P2AffinesMult(
		[]*blst.P2Affine{b.tauG2, b.g2gen},
		[]*blst.Scalar{blstScalar(one), blstScalar(negX)},
		blstScalarBits,
	).ToAffine()

	e1 := blst.Fp12MillerLoop(b.g2gen, lhs)
	e2 := blst.Fp12MillerLoop(rhs2, hAff)
	return blst.Fp12FinalVerify(e1, e2), nil
}

func (b *BlstBackend) msmG1(points []*blst.P1Affine, scalars []fr.Element) *blst.P1Affine {
	ss := make([]*blst.Scalar, len(scalars))
	for i := range scalars {
		ss[i] = blstScalar(scalars[i])
	}
	return blst.P1AffinesMult(points, ss, blstScalarBits).ToAffine()
}

func blstScalar(e fr.Element) *blst.Scalar {
	b := e.Bytes()
	var s blst.Scalar
	s.FromBEndian(b[:])
	return &s
}
