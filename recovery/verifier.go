package recovery

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/dagrid/dagrid/grid"
	"github.com/dagrid/dagrid/kzg"
	"github.com/dagrid/dagrid/log"
	"github.com/dagrid/dagrid/metrics"
)

// ErrCommitmentCount reports a commitment list that does not cover the
// matrix rows.
var ErrCommitmentCount = errors.New("recovery: commitment count does not match matrix rows")

// Verifier checks sampled cells against row commitments and tracks the
// status of every position it has seen. The first terminal verdict for a
// position wins; later submissions for the same position return it
// unchanged, so retried or duplicated samples cannot flip a cell.
//
// Verifier is safe for concurrent use. Proof checks run outside the lock,
// so submissions for different cells verify in parallel.
type Verifier struct {
	eng   *kzg.Engine
	comms []kzg.Commitment
	log   *log.Logger

	mu     sync.Mutex
	status map[grid.Position]CellStatus
	values map[grid.Position]fr.Element
}

// NewVerifier builds a verifier for one committed matrix. comms is the
// full commitment list, index-aligned with rows.
func NewVerifier(eng *kzg.Engine, comms []kzg.Commitment) (*Verifier, error) {
	if len(comms) != eng.Dimensions().Rows() {
		return nil, fmt.Errorf("%w: %d commitments for %d rows", ErrCommitmentCount,
			len(comms), eng.Dimensions().Rows())
	}
	return &Verifier{
		eng:    eng,
		comms:  comms,
		log:    log.Default().Module("recovery"),
		status: make(map[grid.Position]CellStatus),
		values: make(map[grid.Position]fr.Element),
	}, nil
}

// Submit verifies one sampled cell and returns the position's status. A
// verified cell yields StatusVerified, a well-formed cell whose proof
// fails the pairing check yields StatusRejected, and both stick for all
// later submissions of the position.
//
// Inputs that cannot be judged at all, out-of-bounds positions or bytes
// that do not decode, return an error and leave the position unchanged.
func (v *Verifier) Submit(c SampleCell) (CellStatus, error) {
	metrics.SampleRate.Mark(1)

	dims := v.eng.Dimensions()
	if c.Row >= uint32(dims.Rows()) || c.Col >= uint32(dims.ExtendedCols()) {
		return StatusUnverified, fmt.Errorf("%w: cell (%d,%d) outside %dx%d",
			grid.ErrOutOfBounds, c.Row, c.Col, dims.Rows(), dims.ExtendedCols())
	}
	value, err := c.Scalar()
	if err != nil {
		return StatusUnverified, err
	}

	pos := grid.Position{Row: c.Row, Col: c.Col}
	v.mu.Lock()
	if st := v.status[pos]; st.terminal() {
		v.mu.Unlock()
		return st, nil
	}
	v.mu.Unlock()

	ok, err := v.eng.Verify(v.comms[c.Row], int(c.Col), value, c.Proof)
	if err != nil {
		return StatusUnverified, err
	}

	st := StatusRejected
	if ok {
		st = StatusVerified
	}

	v.mu.Lock()
	if prev := v.status[pos]; prev.terminal() {
		v.mu.Unlock()
		return prev, nil
	}
	v.status[pos] = st
	if st == StatusVerified {
		v.values[pos] = value
	}
	v.mu.Unlock()

	if st == StatusVerified {
		metrics.CellsVerified.Inc()
	} else {
		metrics.CellsRejected.Inc()
		v.log.Warn("cell rejected", "row", c.Row, "col", c.Col)
	}
	return st, nil
}

// Status returns the current status of a position. Positions never
// submitted are Unverified.
func (v *Verifier) Status(row, col uint32) CellStatus {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status[grid.Position{Row: row, Col: col}]
}

// VerifiedCount returns the number of positions verified so far.
func (v *Verifier) VerifiedCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.values)
}

// VerifiedCells returns every verified cell ordered by row then column,
// ready to hand to a Reconstructor.
func (v *Verifier) VerifiedCells() []VerifiedCell {
	v.mu.Lock()
	out := make([]VerifiedCell, 0, len(v.values))
	for pos, val := range v.values {
		out = append(out, VerifiedCell{Row: pos.Row, Col: pos.Col, Value: val})
	}
	v.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}
