// Package poly converts grid rows between their cell form (evaluations of a
// low-degree polynomial over a power-of-two subgroup) and their coefficient
// form, in both directions: encoding a systematic row out to its erasure
// columns and decoding a full row back from any large-enough subset of cells.
//
// Cells use the bit-reversed evaluation order: column j of a width-n extended
// row holds P(w^brp(j)) for the order-n subgroup generator w. Under this
// layout the first half of the columns are exactly the evaluations over the
// half-size subgroup, so a systematic row occupies columns 0..cols-1
// verbatim and decoding an intact systematic prefix is a single inverse
// transform.
package poly

import (
	"errors"
	"fmt"
	"sort"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr/fft"
)

// Codec errors.
var (
	ErrInvalidLength       = errors.New("poly: invalid length")
	ErrDuplicatePosition   = errors.New("poly: conflicting values at duplicate position")
	ErrPositionOutOfDomain = errors.New("poly: position outside evaluation domain")
)

// InsufficientCellsError reports a decode attempt with fewer distinct
// positions than the erasure threshold requires.
type InsufficientCellsError struct {
	Have int
	Need int
}

func (e *InsufficientCellsError) Error() string {
	return fmt.Sprintf("poly: insufficient cells: have %d, need %d", e.Have, e.Need)
}

// Point is one received evaluation: the value of a row polynomial at the
// domain point of the given extended column.
type Point struct {
	Col   int
	Value fr.Element
}

// Codec encodes and decodes rows of a fixed geometry: cols systematic
// scalars extended to extendedCols evaluations. A Codec is immutable and
// safe for concurrent use; the underlying domains come from the process-wide
// cache.
type Codec struct {
	cols    int
	extCols int
	sys     *fft.Domain // order cols
	ext     *fft.Domain // order extendedCols
}

// NewCodec builds a codec for rows of cols systematic scalars extended to
// extendedCols cells. Both must be powers of two with cols < extendedCols.
func NewCodec(cols, extendedCols int) (*Codec, error) {
	if !isPowerOfTwo(cols) {
		return nil, fmt.Errorf("%w: cols %d is not a power of two", ErrInvalidLength, cols)
	}
	if !isPowerOfTwo(extendedCols) {
		return nil, fmt.Errorf("%w: extended cols %d is not a power of two", ErrInvalidLength, extendedCols)
	}
	if extendedCols <= cols {
		return nil, fmt.Errorf("%w: extended cols %d must exceed cols %d", ErrInvalidLength, extendedCols, cols)
	}
	return &Codec{
		cols:    cols,
		extCols: extendedCols,
		sys:     cachedDomain(uint64(cols)),
		ext:     cachedDomain(uint64(extendedCols)),
	}, nil
}

// Cols returns the systematic row length.
func (c *Codec) Cols() int { return c.cols }

// ExtendedCols returns the extended row length.
func (c *Codec) ExtendedCols() int { return c.extCols }

// ColumnPoint returns the evaluation-domain element for an extended column.
func (c *Codec) ColumnPoint(col int) (fr.Element, error) {
	if col < 0 || col >= c.extCols {
		return fr.Element{}, fmt.Errorf("%w: column %d of %d", ErrPositionOutOfDomain, col, c.extCols)
	}
	return domainPoint(c.ext, uint64(col)), nil
}

// Coefficients interpolates the systematic scalars into the unique
// polynomial of degree < cols taking those values on columns 0..cols-1.
// The input is not modified.
func (c *Codec) Coefficients(systematic []fr.Element) ([]fr.Element, error) {
	if len(systematic) != c.cols {
		return nil, fmt.Errorf("%w: systematic length %d, want %d", ErrInvalidLength, len(systematic), c.cols)
	}
	// Systematic cells are the subgroup evaluations in bit-reversed order,
	// which is exactly the input layout of a DIT inverse transform.
	coeffs := make([]fr.Element, c.cols)
	copy(coeffs, systematic)
	c.sys.FFTInverse(coeffs, fft.DIT)
	return coeffs, nil
}

// Systematic evaluates a coefficient-form row over the small subgroup,
// returning the systematic cell layout (the inverse of Coefficients).
func (c *Codec) Systematic(coeffs []fr.Element) ([]fr.Element, error) {
	if len(coeffs) != c.cols {
		return nil, fmt.Errorf("%w: coefficient length %d, want %d", ErrInvalidLength, len(coeffs), c.cols)
	}
	out := make([]fr.Element, c.cols)
	copy(out, coeffs)
	c.sys.FFT(out, fft.DIF)
	return out, nil
}

// Expand evaluates a coefficient-form row over the extended domain, producing
// the full extended cell row. The first cols cells equal the systematic
// scalars the coefficients were interpolated from.
func (c *Codec) Expand(coeffs []fr.Element) ([]fr.Element, error) {
	if len(coeffs) != c.cols {
		return nil, fmt.Errorf("%w: coefficient length %d, want %d", ErrInvalidLength, len(coeffs), c.cols)
	}
	out := make([]fr.Element, c.extCols)
	copy(out, coeffs)
	c.ext.FFT(out, fft.DIF)
	return out, nil
}

// Encode extends a systematic row to its full extended cell row: the
// systematic scalars reappear at columns 0..cols-1 and the remaining columns
// carry the erasure redundancy.
func (c *Codec) Encode(systematic []fr.Element) ([]fr.Element, error) {
	coeffs, err := c.Coefficients(systematic)
	if err != nil {
		return nil, err
	}
	return c.Expand(coeffs)
}

// Decode recovers the coefficient form of a row from at least cols distinct
// received points. Points sharing a column must agree on the value; equal
// duplicates collapse, conflicting ones fail with ErrDuplicatePosition.
//
// When every systematic column is present the row is recovered with a single
// inverse transform; otherwise the first cols points in column order are run
// through Lagrange interpolation over their domain points.
func (c *Codec) Decode(points []Point) ([]fr.Element, error) {
	byCol := make(map[int]fr.Element, len(points))
	for _, p := range points {
		if p.Col < 0 || p.Col >= c.extCols {
			return nil, fmt.Errorf("%w: column %d of %d", ErrPositionOutOfDomain, p.Col, c.extCols)
		}
		if prev, ok := byCol[p.Col]; ok {
			if !prev.Equal(&p.Value) {
				return nil, fmt.Errorf("%w: column %d", ErrDuplicatePosition, p.Col)
			}
			continue
		}
		byCol[p.Col] = p.Value
	}
	if len(byCol) < c.cols {
		return nil, &InsufficientCellsError{Have: len(byCol), Need: c.cols}
	}

	// Good path: an intact systematic prefix decodes with one transform.
	systematic := make([]fr.Element, 0, c.cols)
	for col := 0; col < c.cols; col++ {
		v, ok := byCol[col]
		if !ok {
			break
		}
		systematic = append(systematic, v)
	}
	if len(systematic) == c.cols {
		return c.Coefficients(systematic)
	}

	// Fallback: interpolate over the first cols received columns. Column
	// order makes the choice deterministic for a given input set.
	columns := make([]int, 0, len(byCol))
	for col := range byCol {
		columns = append(columns, col)
	}
	sort.Ints(columns)
	columns = columns[:c.cols]

	xs := make([]fr.Element, c.cols)
	ys := make([]fr.Element, c.cols)
	for i, col := range columns {
		xs[i] = domainPoint(c.ext, uint64(col))
		ys[i] = byCol[col]
	}
	return Interpolate(xs, ys)
}
