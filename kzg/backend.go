package kzg

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	gnarkkzg "github.com/consensys/gnark-crypto/ecc/bls12-381/kzg"
)

// Backend performs the three core pairing-based operations on coefficient
// form polynomials. Implementations are chosen at engine construction, so
// an alternative curve library can be swapped in without touching callers.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string

	// Commit returns the commitment [p(tau)]G1 to the polynomial.
	Commit(coeffs []fr.Element) (Commitment, error)

	// Open returns an opening proof for p at x along with p(x).
	Open(coeffs []fr.Element, x fr.Element) (Proof, fr.Element, error)

	// Verify checks that proof opens c to value y at point x. A false
	// result with a nil error is a cryptographic mismatch; a non-nil
	// error means the inputs could not be judged at all.
	Verify(c Commitment, x, y fr.Element, proof Proof) (bool, error)
}

// GnarkBackend implements Backend on gnark-crypto's BLS12-381 KZG.
type GnarkBackend struct {
	srs *SRS
}

var _ Backend = (*GnarkBackend)(nil)

// NewGnarkBackend returns a backend committing against the given SRS.
func NewGnarkBackend(srs *SRS) *GnarkBackend {
	return &GnarkBackend{srs: srs}
}

// Name implements Backend.
func (b *GnarkBackend) Name() string { return "gnark" }

// Commit implements Backend.
func (b *GnarkBackend) Commit(coeffs []fr.Element) (Commitment, error) {
	if len(coeffs) == 0 {
		return Commitment{}, ErrEmptyPolynomial
	}
	if len(coeffs) > len(b.srs.pk.G1) {
		return Commitment{}, fmt.Errorf("%w: polynomial of degree %d, srs covers up to %d",
			ErrSRSTooSmall, len(coeffs)-1, b.srs.MaxDegree())
	}
	digest, err := gnarkkzg.Commit(coeffs, b.srs.pk)
	if err != nil {
		return Commitment{}, fmt.Errorf("kzg: commit: %w", err)
	}
	return Commitment(digest.Bytes()), nil
}

// Open implements Backend.
func (b *GnarkBackend) Open(coeffs []fr.Element, x fr.Element) (Proof, fr.Element, error) {
	if len(coeffs) == 0 {
		return Proof{}, fr.Element{}, ErrEmptyPolynomial
	}
	if len(coeffs) > len(b.srs.pk.G1) {
		return Proof{}, fr.Element{}, fmt.Errorf("%w: polynomial of degree %d, srs covers up to %d",
			ErrSRSTooSmall, len(coeffs)-1, b.srs.MaxDegree())
	}
	op, err := gnarkkzg.Open(coeffs, x, b.srs.pk)
	if err != nil {
		return Proof{}, fr.Element{}, fmt.Errorf("kzg: open: %w", err)
	}
	return Proof(op.H.Bytes()), op.ClaimedValue, nil
}

// Verify implements Backend.
func (b *GnarkBackend) Verify(c Commitment, x, y fr.Element, proof Proof) (bool, error) {
	digest, err := parseG1("commitment", c[:])
	if err != nil {
		return false, err
	}
	h, err := parseG1("proof", proof[:])
	if err != nil {
		return false, err
	}
	op := gnarkkzg.OpeningProof{H: h, ClaimedValue: y}
	if err := gnarkkzg.Verify(&digest, &op, x, b.srs.vk); err != nil {
		if errors.Is(err, gnarkkzg.ErrVerifyOpeningProof) {
			return false, nil
		}
		return false, fmt.Errorf("kzg: verify: %w", err)
	}
	return true, nil
}
