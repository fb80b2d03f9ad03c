package grid

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/dagrid/dagrid/metrics"
	"github.com/dagrid/dagrid/poly"
)

// Dimensions fixes a grid's geometry: rows and cols systematic scalars,
// with each row extended by the erasure extension factor. All three are
// powers of two. The zero value is not a valid geometry; use NewDimensions.
type Dimensions struct {
	rows uint16
	cols uint16
	ext  uint16
}

// NewDimensions validates a grid geometry. Rows and cols must be powers of
// two within the package caps; extension must be a power of two, at least
// MinExtension, with cols*extension at most MaxExtendedCols.
func NewDimensions(rows, cols, extension uint16) (Dimensions, error) {
	if !isPowerOfTwo(int(rows)) || rows > MaxRows {
		return Dimensions{}, fmt.Errorf("%w: rows %d (want power of two <= %d)", ErrInvalidDimensions, rows, MaxRows)
	}
	if !isPowerOfTwo(int(cols)) || cols > MaxCols {
		return Dimensions{}, fmt.Errorf("%w: cols %d (want power of two <= %d)", ErrInvalidDimensions, cols, MaxCols)
	}
	if !isPowerOfTwo(int(extension)) || extension < MinExtension {
		return Dimensions{}, fmt.Errorf("%w: extension factor %d (want power of two >= %d)", ErrInvalidDimensions, extension, MinExtension)
	}
	if int(cols)*int(extension) > MaxExtendedCols {
		return Dimensions{}, fmt.Errorf("%w: %d extended cols exceed %d", ErrInvalidDimensions, int(cols)*int(extension), MaxExtendedCols)
	}
	return Dimensions{rows: rows, cols: cols, ext: extension}, nil
}

// Rows returns the number of rows.
func (d Dimensions) Rows() int { return int(d.rows) }

// Cols returns the systematic row length.
func (d Dimensions) Cols() int { return int(d.cols) }

// Extension returns the erasure extension factor.
func (d Dimensions) Extension() int { return int(d.ext) }

// ExtendedCols returns the full row length including redundancy columns.
func (d Dimensions) ExtendedCols() int { return int(d.cols) * int(d.ext) }

// Capacity returns the raw-byte capacity of the systematic grid.
func (d Dimensions) Capacity() int { return int(d.rows) * int(d.cols) * ChunkSize }

func (d Dimensions) valid() bool { return d.rows != 0 }

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d (x%d)", d.rows, d.cols, d.ext)
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Matrix is a block's erasure-extended grid: rows by ExtendedCols scalars,
// row-major. Built once, immutable afterwards, safe for concurrent reads.
type Matrix struct {
	dims  Dimensions
	cells []fr.Element
}

// Build pads raw block bytes, embeds them as scalars, and extends every row
// independently with erasure redundancy. Fails with ErrInvalidDimensions for
// a bad geometry and ErrDataTooLarge when the padded data does not fit the
// systematic grid.
func Build(data []byte, rows, cols, extension uint16) (*Matrix, error) {
	dims, err := NewDimensions(rows, cols, extension)
	if err != nil {
		return nil, err
	}
	t := metrics.NewTimer(metrics.MatrixBuildTime)
	defer t.Stop()

	padded, err := Pad(data, dims.Capacity())
	if err != nil {
		return nil, err
	}

	systematic := make([]fr.Element, dims.Rows()*dims.Cols())
	for i := range systematic {
		systematic[i], err = ScalarFromChunk(padded[i*ChunkSize : (i+1)*ChunkSize])
		if err != nil {
			return nil, err
		}
	}
	m, err := extend(systematic, dims)
	if err != nil {
		return nil, err
	}
	metrics.MatricesBuilt.Inc()
	return m, nil
}

// FromRows assembles a matrix from per-row systematic scalars, re-deriving
// the redundancy columns. This is the path reconstruction takes to produce a
// fresh, fully-populated matrix.
func FromRows(rows [][]fr.Element, dims Dimensions) (*Matrix, error) {
	if !dims.valid() {
		return nil, fmt.Errorf("%w: zero dimensions", ErrInvalidDimensions)
	}
	if len(rows) != dims.Rows() {
		return nil, fmt.Errorf("%w: %d rows, want %d", ErrInvalidDimensions, len(rows), dims.Rows())
	}
	systematic := make([]fr.Element, dims.Rows()*dims.Cols())
	for r, row := range rows {
		if len(row) != dims.Cols() {
			return nil, fmt.Errorf("%w: row %d has %d cols, want %d", ErrInvalidDimensions, r, len(row), dims.Cols())
		}
		copy(systematic[r*dims.Cols():], row)
	}
	return extend(systematic, dims)
}

// extend populates the full cell array from row-major systematic scalars.
func extend(systematic []fr.Element, dims Dimensions) (*Matrix, error) {
	codec, err := poly.NewCodec(dims.Cols(), dims.ExtendedCols())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDimensions, err)
	}
	cells := make([]fr.Element, dims.Rows()*dims.ExtendedCols())
	for r := 0; r < dims.Rows(); r++ {
		row, err := codec.Encode(systematic[r*dims.Cols() : (r+1)*dims.Cols()])
		if err != nil {
			return nil, err
		}
		copy(cells[r*dims.ExtendedCols():], row)
	}
	return &Matrix{dims: dims, cells: cells}, nil
}

// Dimensions returns the grid geometry.
func (m *Matrix) Dimensions() Dimensions { return m.dims }

// Cell returns the value at (row, col), redundancy columns included. Row and
// column index spaces are validated independently.
func (m *Matrix) Cell(row, col int) (Scalar, error) {
	if row < 0 || row >= m.dims.Rows() {
		return Scalar{}, fmt.Errorf("%w: row %d of %d", ErrOutOfBounds, row, m.dims.Rows())
	}
	if col < 0 || col >= m.dims.ExtendedCols() {
		return Scalar{}, fmt.Errorf("%w: column %d of %d", ErrOutOfBounds, col, m.dims.ExtendedCols())
	}
	return m.cells[row*m.dims.ExtendedCols()+col], nil
}

// Row returns a copy of the full extended row.
func (m *Matrix) Row(row int) ([]Scalar, error) {
	if row < 0 || row >= m.dims.Rows() {
		return nil, fmt.Errorf("%w: row %d of %d", ErrOutOfBounds, row, m.dims.Rows())
	}
	out := make([]Scalar, m.dims.ExtendedCols())
	copy(out, m.cells[row*m.dims.ExtendedCols():])
	return out, nil
}

// SystematicRow returns a copy of the row's original data scalars.
func (m *Matrix) SystematicRow(row int) ([]Scalar, error) {
	if row < 0 || row >= m.dims.Rows() {
		return nil, fmt.Errorf("%w: row %d of %d", ErrOutOfBounds, row, m.dims.Rows())
	}
	out := make([]Scalar, m.dims.Cols())
	copy(out, m.cells[row*m.dims.ExtendedCols():])
	return out, nil
}

// RowCells returns the full extended row as addressed cells.
func (m *Matrix) RowCells(row int) ([]Cell, error) {
	scalars, err := m.Row(row)
	if err != nil {
		return nil, err
	}
	cells := make([]Cell, len(scalars))
	for c, v := range scalars {
		cells[c] = Cell{Position: Position{Row: uint32(row), Col: uint32(c)}, Value: v}
	}
	return cells, nil
}

// Data recovers the original block bytes from the systematic cells,
// stripping the padding.
func (m *Matrix) Data() ([]byte, error) {
	padded := make([]byte, 0, m.dims.Capacity())
	for r := 0; r < m.dims.Rows(); r++ {
		base := r * m.dims.ExtendedCols()
		for c := 0; c < m.dims.Cols(); c++ {
			chunk, err := ScalarToChunk(&m.cells[base+c])
			if err != nil {
				return nil, fmt.Errorf("row %d col %d: %w", r, c, err)
			}
			padded = append(padded, chunk[:]...)
		}
	}
	return Unpad(padded)
}
