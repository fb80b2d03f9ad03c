package kzg

import (
	"context"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/dagrid/dagrid/grid"
	"github.com/dagrid/dagrid/log"
	"github.com/dagrid/dagrid/metrics"
	"github.com/dagrid/dagrid/poly"
	"github.com/dagrid/dagrid/workpool"
)

// Engine binds an SRS, a backend and fixed matrix dimensions into one
// prover/verifier. The column-to-point mapping is the codec's, so proofs
// verify against the same domain the erasure extension evaluates on.
type Engine struct {
	srs     *SRS
	dims    grid.Dimensions
	codec   *poly.Codec
	backend Backend
	workers int
	log     *log.Logger
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithBackend swaps the pairing backend. The default is gnark-crypto.
func WithBackend(b Backend) Option {
	return func(e *Engine) { e.backend = b }
}

// WithWorkers sets the worker count for matrix-wide operations. Zero or
// negative selects one worker per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithLogger replaces the engine's logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine builds an engine for matrices of the given dimensions. The SRS
// must cover degree cols-1; a smaller one fails here rather than at the
// first commit.
func NewEngine(srs *SRS, dims grid.Dimensions, opts ...Option) (*Engine, error) {
	if srs == nil {
		return nil, fmt.Errorf("kzg: nil srs")
	}
	codec, err := poly.NewCodec(dims.Cols(), dims.ExtendedCols())
	if err != nil {
		return nil, fmt.Errorf("kzg: %w", err)
	}
	if srs.MaxDegree() < dims.Cols()-1 {
		return nil, fmt.Errorf("%w: rows have degree %d, srs covers up to %d",
			ErrSRSTooSmall, dims.Cols()-1, srs.MaxDegree())
	}
	e := &Engine{
		srs:   srs,
		dims:  dims,
		codec: codec,
		log:   log.Default().Module("kzg"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.backend == nil {
		e.backend = NewGnarkBackend(srs)
	}
	return e, nil
}

// Dimensions returns the matrix shape the engine was built for.
func (e *Engine) Dimensions() grid.Dimensions { return e.dims }

// Codec returns the row codec sharing the engine's evaluation domain.
func (e *Engine) Codec() *poly.Codec { return e.codec }

// SRS returns the reference string the engine commits against.
func (e *Engine) SRS() *SRS { return e.srs }

// Backend returns the pairing backend in use.
func (e *Engine) Backend() Backend { return e.backend }

// RowPolynomial returns the coefficient form of one matrix row.
func (e *Engine) RowPolynomial(m *grid.Matrix, row int) ([]fr.Element, error) {
	if m.Dimensions() != e.dims {
		return nil, fmt.Errorf("%w: matrix %s, engine %s", ErrDimensionMismatch, m.Dimensions(), e.dims)
	}
	sys, err := m.SystematicRow(row)
	if err != nil {
		return nil, err
	}
	return e.codec.Coefficients(sys)
}

// Commit commits to one row polynomial in coefficient form.
func (e *Engine) Commit(coeffs []fr.Element) (Commitment, error) {
	c, err := e.backend.Commit(coeffs)
	if err != nil {
		return Commitment{}, err
	}
	metrics.CommitsComputed.Inc()
	return c, nil
}

// CommitMatrix commits to every row of the matrix, fanning the rows out
// over a work-stealing pool and joining before returning. The result is
// index-aligned with the matrix rows and deterministic for a given matrix
// and SRS. Cancelling ctx abandons rows not yet started.
func (e *Engine) CommitMatrix(ctx context.Context, m *grid.Matrix) ([]Commitment, error) {
	if m.Dimensions() != e.dims {
		return nil, fmt.Errorf("%w: matrix %s, engine %s", ErrDimensionMismatch, m.Dimensions(), e.dims)
	}
	t := metrics.NewTimer(metrics.MatrixCommitTime)
	defer t.Stop()

	rows := e.dims.Rows()
	out := make([]Commitment, rows)
	rowErrs := make([]error, rows)
	tasks := make([]*workpool.Task, rows)
	for r := 0; r < rows; r++ {
		r := r
		tasks[r] = &workpool.Task{ID: r, Run: func() error {
			coeffs, err := e.RowPolynomial(m, r)
			if err != nil {
				rowErrs[r] = err
				return err
			}
			c, err := e.backend.Commit(coeffs)
			if err != nil {
				rowErrs[r] = fmt.Errorf("row %d: %w", r, err)
				return rowErrs[r]
			}
			out[r] = c
			return nil
		}}
	}

	pool := workpool.New(e.workers)
	if err := pool.RunTasks(ctx, tasks); err != nil {
		return nil, err
	}
	for _, err := range rowErrs {
		if err != nil {
			return nil, err
		}
	}

	metrics.CommitsComputed.Add(int64(rows))
	e.log.Debug("matrix committed", "rows", rows, "cols", e.codec.Cols())
	return out, nil
}

// Open proves the value of the row polynomial at one extended column.
func (e *Engine) Open(coeffs []fr.Element, col int) (Proof, error) {
	x, err := e.codec.ColumnPoint(col)
	if err != nil {
		return Proof{}, err
	}
	p, _, err := e.backend.Open(coeffs, x)
	if err != nil {
		return Proof{}, err
	}
	metrics.ProofsOpened.Inc()
	return p, nil
}

// Verify checks a single-column opening against a row commitment. The
// boolean is the cryptographic verdict; errors report inputs that could
// not be judged, such as bytes that fail to parse as group elements.
func (e *Engine) Verify(c Commitment, col int, value fr.Element, proof Proof) (bool, error) {
	x, err := e.codec.ColumnPoint(col)
	if err != nil {
		return false, err
	}
	ok, err := e.backend.Verify(c, x, value, proof)
	if err != nil {
		return false, err
	}
	metrics.ProofsVerified.Inc()
	if !ok {
		metrics.ProofsRejected.Inc()
	}
	return ok, nil
}
