// Package grid models a block's data as an immutable two-dimensional grid of
// field elements: raw bytes are padded, chunked into scalars, laid out
// row-major, and each row is independently extended with erasure redundancy
// columns. The first Cols columns of every row hold the original (systematic)
// data; the remaining columns are recomputable from any Cols cells of that
// row.
//
// A Matrix is built once per block and never mutated afterwards, so it can be
// shared across any number of concurrent commitment, proof, and sampling
// operations without locks.
package grid

import (
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// Scalar is an element of the BLS12-381 scalar field. All cell values,
// polynomial coefficients, and evaluations are scalars; the canonical wire
// form is 32 bytes big-endian with value below the field modulus.
type Scalar = fr.Element

// Grid geometry and embedding constants.
const (
	// ScalarSize is the canonical encoded width of a scalar in bytes.
	ScalarSize = 32
	// ChunkSize is the number of raw data bytes embedded per scalar. One
	// byte of headroom keeps every chunk strictly below the field modulus.
	ChunkSize = ScalarSize - 1
	// MaxRows and MaxCols cap the systematic grid dimensions.
	MaxRows = 256
	MaxCols = 256
	// MaxExtendedCols caps cols times the extension factor.
	MaxExtendedCols = 1024
	// MinExtension is the smallest permitted erasure extension factor.
	MinExtension = 2
)

// padMarker terminates the data region of a padded block (IEC 9797-1
// method 2: a single one bit, then zeros).
const padMarker = 0x80

// Grid errors.
var (
	ErrInvalidDimensions = errors.New("grid: invalid dimensions")
	ErrDataTooLarge      = errors.New("grid: data too large")
	ErrOutOfBounds       = errors.New("grid: cell out of bounds")
	ErrBadPadding        = errors.New("grid: malformed padding")
)

// Position addresses one cell: zero-based row and extended-column indices.
type Position struct {
	Row uint32
	Col uint32
}

// Cell is one addressed grid value. Cells produced by Build are
// authoritative; cells arriving off the network are untrusted until their
// opening proof verifies.
type Cell struct {
	Position
	Value Scalar
}
