package recovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/dagrid/dagrid/grid"
	"github.com/dagrid/dagrid/log"
	"github.com/dagrid/dagrid/metrics"
	"github.com/dagrid/dagrid/poly"
	"github.com/dagrid/dagrid/workpool"
)

var (
	// ErrInconsistentCell reports two verified cells claiming different
	// values for the same position. Equal duplicates collapse silently;
	// a conflict means a commitment equivocation or a broken verifier
	// upstream, so the whole reconstruction is abandoned.
	ErrInconsistentCell = errors.New("recovery: conflicting values for the same cell")

	// ErrRowMismatch reports a cell handed to a single-row operation
	// that belongs to another row.
	ErrRowMismatch = errors.New("recovery: cell from another row")

	// ErrMissingRows reports an attempt to materialise an incomplete
	// reconstruction.
	ErrMissingRows = errors.New("recovery: rows missing")
)

// Reconstructor rebuilds matrix rows from verified cells. Row recovery
// needs any cols distinct cells of the extended row; rows are independent
// and recover in parallel.
type Reconstructor struct {
	dims    grid.Dimensions
	codec   *poly.Codec
	workers int
	log     *log.Logger
}

// Option configures a Reconstructor.
type Option func(*Reconstructor)

// WithWorkers sets the worker count for matrix-wide reconstruction. Zero
// or negative selects one worker per CPU.
func WithWorkers(n int) Option {
	return func(r *Reconstructor) { r.workers = n }
}

// WithLogger replaces the reconstructor's logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Reconstructor) { r.log = l }
}

// NewReconstructor builds a reconstructor for one grid geometry.
func NewReconstructor(dims grid.Dimensions, opts ...Option) (*Reconstructor, error) {
	codec, err := poly.NewCodec(dims.Cols(), dims.ExtendedCols())
	if err != nil {
		return nil, fmt.Errorf("recovery: %w", err)
	}
	r := &Reconstructor{
		dims:  dims,
		codec: codec,
		log:   log.Default().Module("recovery"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ReconstructRow recovers one row's systematic scalars from verified
// cells of that row. It needs at least cols distinct positions; short
// inputs fail with poly.InsufficientCellsError carrying the have/need
// counts, and conflicting duplicates fail with ErrInconsistentCell.
func (r *Reconstructor) ReconstructRow(row uint32, cells []VerifiedCell) ([]fr.Element, error) {
	if int(row) >= r.dims.Rows() {
		return nil, fmt.Errorf("%w: row %d of %d", grid.ErrOutOfBounds, row, r.dims.Rows())
	}
	pts := make([]poly.Point, len(cells))
	for i, c := range cells {
		if c.Row != row {
			return nil, fmt.Errorf("%w: got row %d, want %d", ErrRowMismatch, c.Row, row)
		}
		pts[i] = poly.Point{Col: int(c.Col), Value: c.Value}
	}

	coeffs, err := r.codec.Decode(pts)
	if err != nil {
		if errors.Is(err, poly.ErrDuplicatePosition) {
			return nil, fmt.Errorf("%w: row %d: %v", ErrInconsistentCell, row, err)
		}
		return nil, err
	}
	return r.codec.Systematic(coeffs)
}

// MissingRow records a row that could not be recovered and how far short
// the available cells fell.
type MissingRow struct {
	Row  uint32
	Have int
	Need int
}

// MatrixResult is the outcome of a matrix reconstruction. RowData is
// index-aligned with rows and nil for rows listed in Missing.
type MatrixResult struct {
	dims    grid.Dimensions
	RowData [][]fr.Element
	Missing []MissingRow
}

// Complete reports whether every row was recovered.
func (res *MatrixResult) Complete() bool { return len(res.Missing) == 0 }

// Matrix materialises the recovered rows as a fresh extended matrix.
func (res *MatrixResult) Matrix() (*grid.Matrix, error) {
	if !res.Complete() {
		return nil, fmt.Errorf("%w: %d of %d", ErrMissingRows, len(res.Missing), res.dims.Rows())
	}
	return grid.FromRows(res.RowData, res.dims)
}

// Data materialises the recovered matrix and strips it back to the
// original block bytes.
func (res *MatrixResult) Data() ([]byte, error) {
	m, err := res.Matrix()
	if err != nil {
		return nil, err
	}
	return m.Data()
}

// Reconstruct recovers as much of the matrix as the verified cells allow,
// one worker task per row. Rows without enough cells are reported in the
// result's Missing list rather than failing the call; an inconsistent
// cell aborts the whole reconstruction. Cancelling ctx abandons rows not
// yet started.
func (r *Reconstructor) Reconstruct(ctx context.Context, cells []VerifiedCell) (*MatrixResult, error) {
	t := metrics.NewTimer(metrics.MatrixRecoverTime)
	defer t.Stop()

	rows := r.dims.Rows()
	byRow := make([][]VerifiedCell, rows)
	for _, c := range cells {
		if int(c.Row) >= rows {
			return nil, fmt.Errorf("%w: row %d of %d", grid.ErrOutOfBounds, c.Row, rows)
		}
		byRow[c.Row] = append(byRow[c.Row], c)
	}

	res := &MatrixResult{
		dims:    r.dims,
		RowData: make([][]fr.Element, rows),
	}
	missing := make([]*MissingRow, rows)
	rowErrs := make([]error, rows)

	var tasks []*workpool.Task
	for row := 0; row < rows; row++ {
		have := len(byRow[row])
		if have < r.dims.Cols() {
			missing[row] = &MissingRow{Row: uint32(row), Have: have, Need: r.dims.Cols()}
			continue
		}
		row := row
		tasks = append(tasks, &workpool.Task{ID: row, Run: func() error {
			data, err := r.ReconstructRow(uint32(row), byRow[row])
			if err != nil {
				var short *poly.InsufficientCellsError
				if errors.As(err, &short) {
					missing[row] = &MissingRow{Row: uint32(row), Have: short.Have, Need: short.Need}
					return nil
				}
				rowErrs[row] = err
				return err
			}
			res.RowData[row] = data
			return nil
		}})
	}

	pool := workpool.New(r.workers)
	if err := pool.RunTasks(ctx, tasks); err != nil {
		return nil, err
	}
	for _, err := range rowErrs {
		if err != nil {
			return nil, err
		}
	}

	for row := 0; row < rows; row++ {
		if missing[row] != nil {
			res.Missing = append(res.Missing, *missing[row])
		}
	}

	recovered := rows - len(res.Missing)
	metrics.RowsRecovered.Add(int64(recovered))
	metrics.RowsMissing.Add(int64(len(res.Missing)))
	r.log.Debug("matrix reconstructed", "rows", rows, "recovered", recovered, "missing", len(res.Missing))
	return res, nil
}
