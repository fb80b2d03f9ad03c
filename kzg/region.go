package kzg

import (
	"encoding/binary"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"golang.org/x/crypto/sha3"

	"github.com/dagrid/dagrid/grid"
	"github.com/dagrid/dagrid/metrics"
	"github.com/dagrid/dagrid/poly"
)

// regionTranscript is the domain separation label for region challenges.
const regionTranscript = "dagrid-mp/v1"

// Region is a rectangle of matrix cells, half-open on both axes.
type Region struct {
	RowStart, RowEnd int
	ColStart, ColEnd int
}

// Rows returns the number of rows the region spans.
func (r Region) Rows() int { return r.RowEnd - r.RowStart }

// Cols returns the number of columns the region spans.
func (r Region) Cols() int { return r.ColEnd - r.ColStart }

// Size returns the number of cells in the region.
func (r Region) Size() int { return r.Rows() * r.Cols() }

func (r Region) String() string {
	return fmt.Sprintf("rows [%d,%d) cols [%d,%d)", r.RowStart, r.RowEnd, r.ColStart, r.ColEnd)
}

// RegionProof opens every cell of a region with a single proof. The rows
// are folded together with powers of a Fiat-Shamir challenge derived from
// the row commitments, the region bounds and the claimed values, so the
// proof is bound to all three. Values are row-major.
type RegionProof struct {
	Proof  Proof
	Values []fr.Element
}

// OpenRegion proves the values of a whole region against the matrix row
// commitments. comms must be the full commitment list for the matrix, as
// produced by CommitMatrix.
func (e *Engine) OpenRegion(m *grid.Matrix, comms []Commitment, reg Region) (*RegionProof, error) {
	if m.Dimensions() != e.dims {
		return nil, fmt.Errorf("%w: matrix %s, engine %s", ErrDimensionMismatch, m.Dimensions(), e.dims)
	}
	if err := e.checkRegion(reg, len(comms)); err != nil {
		return nil, err
	}
	if reg.Cols() > e.srs.MaxBatch() {
		return nil, fmt.Errorf("%w: region spans %d columns, srs supports %d",
			ErrSRSTooSmall, reg.Cols(), e.srs.MaxBatch())
	}

	xs, err := e.regionPoints(reg)
	if err != nil {
		return nil, err
	}

	values := make([]fr.Element, 0, reg.Size())
	for row := reg.RowStart; row < reg.RowEnd; row++ {
		ext, err := m.Row(row)
		if err != nil {
			return nil, err
		}
		values = append(values, ext[reg.ColStart:reg.ColEnd]...)
	}

	gamma := regionChallenge(comms[reg.RowStart:reg.RowEnd], reg, values)

	// Fold the region rows into one polynomial and one value vector with
	// powers of gamma. Each per-row difference p_i - r_i is divisible by
	// Z_T, so the folded difference is as well.
	agg := make([]fr.Element, e.codec.Cols())
	aggVals := make([]fr.Element, reg.Cols())
	var pow fr.Element
	pow.SetOne()
	for i := 0; i < reg.Rows(); i++ {
		sys, err := m.SystematicRow(reg.RowStart + i)
		if err != nil {
			return nil, err
		}
		coeffs, err := e.codec.Coefficients(sys)
		if err != nil {
			return nil, err
		}
		for k := range coeffs {
			var t fr.Element
			t.Mul(&coeffs[k], &pow)
			agg[k].Add(&agg[k], &t)
		}
		for k := 0; k < reg.Cols(); k++ {
			var t fr.Element
			t.Mul(&values[i*reg.Cols()+k], &pow)
			aggVals[k].Add(&aggVals[k], &t)
		}
		pow.Mul(&pow, &gamma)
	}

	r, err := poly.Interpolate(xs, aggVals)
	if err != nil {
		return nil, err
	}
	q, rem := polyDiv(polySub(agg, r), poly.Vanishing(xs))
	if !isZeroPoly(rem) {
		return nil, fmt.Errorf("kzg: region interpolant left a non-zero remainder")
	}
	pi, err := e.srs.commitG1(q)
	if err != nil {
		return nil, err
	}

	metrics.BatchProofsOpened.Inc()
	e.log.Debug("region opened", "region", reg.String(), "cells", reg.Size())
	return &RegionProof{Proof: Proof(pi.Bytes()), Values: values}, nil
}

// VerifyRegion checks a region proof against the matrix row commitments.
func (e *Engine) VerifyRegion(comms []Commitment, reg Region, rp *RegionProof) (bool, error) {
	if rp == nil {
		return false, fmt.Errorf("%w: nil region proof", ErrMalformedEncoding)
	}
	if err := e.checkRegion(reg, len(comms)); err != nil {
		return false, err
	}
	if len(rp.Values) != reg.Size() {
		return false, fmt.Errorf("%w: region of %d cells, %d values", ErrBatchMismatch, reg.Size(), len(rp.Values))
	}

	xs, err := e.regionPoints(reg)
	if err != nil {
		return false, err
	}
	digests := make([]bls12381.G1Affine, reg.Rows())
	for i := range digests {
		if digests[i], err = parseG1(fmt.Sprintf("commitment %d", reg.RowStart+i), comms[reg.RowStart+i][:]); err != nil {
			return false, err
		}
	}
	h, err := parseG1("proof", rp.Proof[:])
	if err != nil {
		return false, err
	}

	gamma := regionChallenge(comms[reg.RowStart:reg.RowEnd], reg, rp.Values)
	powers := make([]fr.Element, reg.Rows())
	powers[0].SetOne()
	for i := 1; i < len(powers); i++ {
		powers[i].Mul(&powers[i-1], &gamma)
	}

	var cAgg bls12381.G1Affine
	if _, err := cAgg.MultiExp(digests, powers, ecc.MultiExpConfig{}); err != nil {
		return false, fmt.Errorf("kzg: commitment fold: %w", err)
	}

	aggVals := make([]fr.Element, reg.Cols())
	for i := 0; i < reg.Rows(); i++ {
		for k := 0; k < reg.Cols(); k++ {
			var t fr.Element
			t.Mul(&rp.Values[i*reg.Cols()+k], &powers[i])
			aggVals[k].Add(&aggVals[k], &t)
		}
	}
	r, err := poly.Interpolate(xs, aggVals)
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

	var lhs, negH bls12381.G1Affine
	lhs.Sub(&cAgg, &rG1)
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

// checkRegion validates region bounds against the engine dimensions and
// the supplied commitment list.
func (e *Engine) checkRegion(reg Region, comms int) error {
	if reg.RowStart < 0 || reg.ColStart < 0 || reg.RowEnd <= reg.RowStart || reg.ColEnd <= reg.ColStart {
		return fmt.Errorf("%w: %s", ErrBadRegion, reg)
	}
	if reg.RowEnd > e.dims.Rows() || reg.ColEnd > e.codec.ExtendedCols() {
		return fmt.Errorf("%w: %s exceeds %dx%d", ErrBadRegion, reg, e.dims.Rows(), e.codec.ExtendedCols())
	}
	if reg.RowEnd > comms {
		return fmt.Errorf("%w: region ends at row %d, have %d commitments", ErrBatchMismatch, reg.RowEnd, comms)
	}
	return nil
}

// regionPoints maps the region's column range to domain points.
func (e *Engine) regionPoints(reg Region) ([]fr.Element, error) {
	xs := make([]fr.Element, reg.Cols())
	for i := range xs {
		x, err := e.codec.ColumnPoint(reg.ColStart + i)
		if err != nil {
			return nil, err
		}
		xs[i] = x
	}
	return xs, nil
}

// regionChallenge derives the row-folding challenge from everything the
// proof must be bound to: the commitments it opens, the region bounds and
// the claimed values.
func regionChallenge(comms []Commitment, reg Region, values []fr.Element) fr.Element {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(regionTranscript))
	var b [16]byte
	binary.BigEndian.PutUint32(b[0:4], uint32(reg.RowStart))
	binary.BigEndian.PutUint32(b[4:8], uint32(reg.RowEnd))
	binary.BigEndian.PutUint32(b[8:12], uint32(reg.ColStart))
	binary.BigEndian.PutUint32(b[12:16], uint32(reg.ColEnd))
	h.Write(b[:])
	for i := range comms {
		h.Write(comms[i][:])
	}
	for i := range values {
		vb := values[i].Bytes()
		h.Write(vb[:])
	}
	var gamma fr.Element
	gamma.SetBytes(h.Sum(nil))
	return gamma
}
