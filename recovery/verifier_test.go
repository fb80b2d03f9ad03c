package recovery

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/dagrid/dagrid/grid"
	"github.com/dagrid/dagrid/kzg"
)

// --- fixtures ---

func testPayload(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i*11 + 3)
	}
	return out
}

// newFixture builds a committed 4x4 matrix extended to 8 columns plus a
// verifier over its commitments.
func newFixture(t *testing.T) (*kzg.Engine, *grid.Matrix, []kzg.Commitment, *Verifier) {
	t.Helper()
	m, err := grid.Build(testPayload(90), 4, 4, 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	srs, err := kzg.NewInsecureSRS(8, 8, []byte("recovery test srs"))
	if err != nil {
		t.Fatalf("NewInsecureSRS: %v", err)
	}
	eng, err := kzg.NewEngine(srs, m.Dimensions())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	comms, err := eng.CommitMatrix(context.Background(), m)
	if err != nil {
		t.Fatalf("CommitMatrix: %v", err)
	}
	v, err := NewVerifier(eng, comms)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return eng, m, comms, v
}

// sampleAt produces an honest sample for one cell, proof included.
func sampleAt(t *testing.T, eng *kzg.Engine, m *grid.Matrix, row, col int) SampleCell {
	t.Helper()
	coeffs, err := eng.RowPolynomial(m, row)
	if err != nil {
		t.Fatalf("RowPolynomial: %v", err)
	}
	proof, err := eng.Open(coeffs, col)
	if err != nil {
		t.Fatalf("Open(%d,%d): %v", row, col, err)
	}
	value, err := m.Cell(row, col)
	if err != nil {
		t.Fatalf("Cell(%d,%d): %v", row, col, err)
	}
	return SampleCell{
		Row:   uint32(row),
		Col:   uint32(col),
		Value: value.Bytes(),
		Proof: proof,
	}
}

func tamper(c SampleCell) SampleCell {
	var v, one fr.Element
	if err := v.SetBytesCanonical(c.Value[:]); err != nil {
		panic(err)
	}
	one.SetOne()
	v.Add(&v, &one)
	c.Value = v.Bytes()
	return c
}

// --- verifier tests ---

func TestSubmitVerifiesValidCell(t *testing.T) {
	eng, m, _, v := newFixture(t)
	c := sampleAt(t, eng, m, 1, 5)

	st, err := v.Submit(c)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if st != StatusVerified {
		t.Fatalf("status = %s, want verified", st)
	}
	if got := v.Status(1, 5); got != StatusVerified {
		t.Fatalf("Status(1,5) = %s, want verified", got)
	}
	if got := v.VerifiedCount(); got != 1 {
		t.Fatalf("VerifiedCount = %d, want 1", got)
	}
}

func TestSubmitRejectsTamperedValue(t *testing.T) {
	eng, m, _, v := newFixture(t)
	c := tamper(sampleAt(t, eng, m, 0, 2))

	st, err := v.Submit(c)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if st != StatusRejected {
		t.Fatalf("status = %s, want rejected", st)
	}
	if got := v.VerifiedCount(); got != 0 {
		t.Fatalf("VerifiedCount = %d, want 0", got)
	}
}

func TestTerminalStatusSticks(t *testing.T) {
	eng, m, _, v := newFixture(t)
	good := sampleAt(t, eng, m, 2, 3)

	// Reject first, then try to flip with the honest cell.
	if st, err := v.Submit(tamper(good)); err != nil || st != StatusRejected {
		t.Fatalf("tampered submit = %s, %v; want rejected, nil", st, err)
	}
	st, err := v.Submit(good)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if st != StatusRejected {
		t.Fatalf("status after honest resubmit = %s, want rejected (terminal)", st)
	}

	// And the other way round: verified stays verified.
	other := sampleAt(t, eng, m, 2, 4)
	if st, err := v.Submit(other); err != nil || st != StatusVerified {
		t.Fatalf("honest submit = %s, %v; want verified, nil", st, err)
	}
	if st, err := v.Submit(tamper(other)); err != nil || st != StatusVerified {
		t.Fatalf("tampered resubmit = %s, %v; want verified (terminal), nil", st, err)
	}
}

func TestSubmitOutOfBounds(t *testing.T) {
	eng, m, _, v := newFixture(t)
	c := sampleAt(t, eng, m, 0, 0)

	c.Row = 4
	if _, err := v.Submit(c); !errors.Is(err, grid.ErrOutOfBounds) {
		t.Fatalf("row 4 error = %v, want ErrOutOfBounds", err)
	}
	c.Row, c.Col = 0, 8
	if _, err := v.Submit(c); !errors.Is(err, grid.ErrOutOfBounds) {
		t.Fatalf("col 8 error = %v, want ErrOutOfBounds", err)
	}
}

func TestSubmitMalformedLeavesCellOpen(t *testing.T) {
	eng, m, _, v := newFixture(t)
	good := sampleAt(t, eng, m, 3, 1)

	// Non-canonical value bytes cannot be judged.
	bad := good
	fr.Modulus().FillBytes(bad.Value[:])
	if _, err := v.Submit(bad); !errors.Is(err, kzg.ErrMalformedEncoding) {
		t.Fatalf("bad value error = %v, want ErrMalformedEncoding", err)
	}
	if st := v.Status(3, 1); st != StatusUnverified {
		t.Fatalf("status after malformed value = %s, want unverified", st)
	}

	// Garbage proof bytes cannot be judged either.
	bad = good
	for i := range bad.Proof {
		bad.Proof[i] = 0xff
	}
	if _, err := v.Submit(bad); !errors.Is(err, kzg.ErrMalformedEncoding) {
		t.Fatalf("bad proof error = %v, want ErrMalformedEncoding", err)
	}
	if st := v.Status(3, 1); st != StatusUnverified {
		t.Fatalf("status after malformed proof = %s, want unverified", st)
	}

	// The position is still open: a well-formed retry verifies.
	if st, err := v.Submit(good); err != nil || st != StatusVerified {
		t.Fatalf("retry = %s, %v; want verified, nil", st, err)
	}
}

func TestVerifiedCellsSorted(t *testing.T) {
	eng, m, _, v := newFixture(t)
	for _, pos := range [][2]int{{2, 7}, {0, 3}, {2, 1}, {0, 0}, {1, 4}} {
		if _, err := v.Submit(sampleAt(t, eng, m, pos[0], pos[1])); err != nil {
			t.Fatalf("Submit(%v): %v", pos, err)
		}
	}
	// Duplicate submission must not duplicate the cell.
	if _, err := v.Submit(sampleAt(t, eng, m, 1, 4)); err != nil {
		t.Fatalf("duplicate Submit: %v", err)
	}

	cells := v.VerifiedCells()
	if len(cells) != 5 {
		t.Fatalf("len = %d, want 5", len(cells))
	}
	want := [][2]uint32{{0, 0}, {0, 3}, {1, 4}, {2, 1}, {2, 7}}
	for i, c := range cells {
		if c.Row != want[i][0] || c.Col != want[i][1] {
			t.Fatalf("cells[%d] = (%d,%d), want (%d,%d)", i, c.Row, c.Col, want[i][0], want[i][1])
		}
	}
}

func TestSubmitConcurrent(t *testing.T) {
	eng, m, _, v := newFixture(t)

	samples := make([]SampleCell, 0, 32)
	for row := 0; row < 4; row++ {
		for col := 0; col < 8; col++ {
			samples = append(samples, sampleAt(t, eng, m, row, col))
		}
	}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, s := range samples {
				if _, err := v.Submit(s); err != nil {
					t.Errorf("Submit(%d,%d): %v", s.Row, s.Col, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := v.VerifiedCount(); got != 32 {
		t.Fatalf("VerifiedCount = %d, want 32", got)
	}
}

func TestNewVerifierCommitmentCount(t *testing.T) {
	eng, _, comms, _ := newFixture(t)
	if _, err := NewVerifier(eng, comms[:3]); !errors.Is(err, ErrCommitmentCount) {
		t.Fatalf("NewVerifier error = %v, want ErrCommitmentCount", err)
	}
}
