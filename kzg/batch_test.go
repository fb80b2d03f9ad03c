package kzg

import (
	"errors"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/dagrid/dagrid/grid"
	"github.com/dagrid/dagrid/poly"
)

func cellValues(t *testing.T, m *grid.Matrix, row int, cols []int) []fr.Element {
	t.Helper()
	out := make([]fr.Element, len(cols))
	for i, col := range cols {
		v, err := m.Cell(row, col)
		if err != nil {
			t.Fatalf("Cell(%d,%d): %v", row, col, err)
		}
		out[i] = v
	}
	return out
}

// --- open batch tests ---

func TestOpenBatchVerifyRoundTrip(t *testing.T) {
	eng, m := testEngine(t)
	coeffs := rowCoeffs(t, eng, m, 1)
	comm, err := eng.Commit(coeffs)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	for _, cols := range [][]int{
		{0, 1, 2},
		{4, 5, 6, 7},
		{7, 0, 3},
		{2},
		{0, 1, 2, 3, 4, 5, 6, 7},
	} {
		proof, err := eng.OpenBatch(coeffs, cols)
		if err != nil {
			t.Fatalf("OpenBatch(%v): %v", cols, err)
		}
		values := cellValues(t, m, 1, cols)
		ok, err := eng.VerifyBatch(comm, cols, values, proof)
		if err != nil {
			t.Fatalf("VerifyBatch(%v): %v", cols, err)
		}
		if !ok {
			t.Fatalf("cols %v: valid batch opening rejected", cols)
		}
	}
}

// A singleton batch reduces to the single-opening quotient, so the proof
// bytes must match Open exactly and verify through both paths.
func TestOpenBatchSingletonMatchesOpen(t *testing.T) {
	eng, m := testEngine(t)
	coeffs := rowCoeffs(t, eng, m, 2)
	comm, err := eng.Commit(coeffs)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	single, err := eng.Open(coeffs, 5)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	batch, err := eng.OpenBatch(coeffs, []int{5})
	if err != nil {
		t.Fatalf("OpenBatch: %v", err)
	}
	if single != batch {
		t.Fatalf("singleton batch proof %s, single proof %s", batch, single)
	}

	values := cellValues(t, m, 2, []int{5})
	ok, err := eng.Verify(comm, 5, values[0], batch)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("batch proof rejected by single verify")
	}
}

func TestVerifyBatchRejectsTamperedValue(t *testing.T) {
	eng, m := testEngine(t)
	coeffs := rowCoeffs(t, eng, m, 0)
	comm, err := eng.Commit(coeffs)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	cols := []int{1, 4, 6}
	proof, err := eng.OpenBatch(coeffs, cols)
	if err != nil {
		t.Fatalf("OpenBatch: %v", err)
	}

	values := cellValues(t, m, 0, cols)
	var one fr.Element
	one.SetOne()
	values[1].Add(&values[1], &one)

	ok, err := eng.VerifyBatch(comm, cols, values, proof)
	if err != nil {
		t.Fatalf("VerifyBatch: %v", err)
	}
	if ok {
		t.Fatal("tampered batch verified")
	}
}

func TestVerifyBatchRejectsReorderedValues(t *testing.T) {
	eng, m := testEngine(t)
	coeffs := rowCoeffs(t, eng, m, 3)
	comm, err := eng.Commit(coeffs)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	cols := []int{2, 5}
	proof, err := eng.OpenBatch(coeffs, cols)
	if err != nil {
		t.Fatalf("OpenBatch: %v", err)
	}

	values := cellValues(t, m, 3, cols)
	values[0], values[1] = values[1], values[0]
	if values[0] == values[1] {
		t.Skip("row values coincide, swap is a no-op")
	}

	ok, err := eng.VerifyBatch(comm, cols, values, proof)
	if err != nil {
		t.Fatalf("VerifyBatch: %v", err)
	}
	if ok {
		t.Fatal("reordered batch values verified")
	}
}

func TestOpenBatchInputValidation(t *testing.T) {
	eng, m := testEngine(t)
	coeffs := rowCoeffs(t, eng, m, 0)

	if _, err := eng.OpenBatch(coeffs, nil); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("empty batch error = %v, want ErrEmptyBatch", err)
	}
	if _, err := eng.OpenBatch(coeffs, []int{1, 3, 1}); !errors.Is(err, poly.ErrDuplicatePosition) {
		t.Fatalf("duplicate column error = %v, want ErrDuplicatePosition", err)
	}
	if _, err := eng.OpenBatch(coeffs, []int{0, 9}); err == nil {
		t.Fatal("out-of-domain column accepted")
	}
	if _, err := eng.OpenBatch(nil, []int{0}); !errors.Is(err, ErrEmptyPolynomial) {
		t.Fatalf("empty polynomial error = %v, want ErrEmptyPolynomial", err)
	}
}

func TestVerifyBatchLengthMismatch(t *testing.T) {
	eng, m := testEngine(t)
	coeffs := rowCoeffs(t, eng, m, 0)
	comm, err := eng.Commit(coeffs)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	cols := []int{0, 1}
	proof, err := eng.OpenBatch(coeffs, cols)
	if err != nil {
		t.Fatalf("OpenBatch: %v", err)
	}
	values := cellValues(t, m, 0, []int{0})
	if _, err := eng.VerifyBatch(comm, cols, values, proof); !errors.Is(err, ErrBatchMismatch) {
		t.Fatalf("VerifyBatch error = %v, want ErrBatchMismatch", err)
	}
}

func TestOpenBatchExceedsSRSBatchCapacity(t *testing.T) {
	srs, err := NewInsecureSRS(8, 2, []byte("narrow batch"))
	if err != nil {
		t.Fatalf("NewInsecureSRS: %v", err)
	}
	eng, m := testEngine(t)
	narrow, err := NewEngine(srs, eng.Dimensions())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	coeffs := rowCoeffs(t, narrow, m, 0)
	if _, err := narrow.OpenBatch(coeffs, []int{0, 1, 2}); !errors.Is(err, ErrSRSTooSmall) {
		t.Fatalf("OpenBatch error = %v, want ErrSRSTooSmall", err)
	}
}

// Opening more columns than the polynomial degree still works: the
// interpolant then matches the polynomial itself and the quotient is zero.
func TestOpenBatchMoreColumnsThanDegree(t *testing.T) {
	eng, _ := testEngine(t)

	coeffs := make([]fr.Element, 4)
	coeffs[0].SetUint64(7)
	coeffs[1].SetUint64(9)
	comm, err := eng.Commit(coeffs)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	cols := []int{0, 1, 2, 3, 4, 5}
	proof, err := eng.OpenBatch(coeffs, cols)
	if err != nil {
		t.Fatalf("OpenBatch: %v", err)
	}
	values := make([]fr.Element, len(cols))
	for i, col := range cols {
		x, err := eng.Codec().ColumnPoint(col)
		if err != nil {
			t.Fatalf("ColumnPoint: %v", err)
		}
		values[i] = evalPoly(coeffs, x)
	}
	ok, err := eng.VerifyBatch(comm, cols, values, proof)
	if err != nil {
		t.Fatalf("VerifyBatch: %v", err)
	}
	if !ok {
		t.Fatal("degenerate batch opening rejected")
	}
}

// --- polynomial helper tests ---

func scalar(u uint64) fr.Element {
	var e fr.Element
	e.SetUint64(u)
	return e
}

func TestPolyDivExact(t *testing.T) {
	// (X^2 + 3X + 2) / (X + 1) = X + 2, remainder 0.
	a := []fr.Element{scalar(2), scalar(3), scalar(1)}
	b := []fr.Element{scalar(1), scalar(1)}

	q, rem := polyDiv(a, b)
	if len(q) != 2 {
		t.Fatalf("len(q) = %d, want 2", len(q))
	}
	one, two := scalar(1), scalar(2)
	if !q[0].Equal(&two) || !q[1].Equal(&one) {
		t.Fatalf("q = [%s %s], want [2 1]", q[0].String(), q[1].String())
	}
	if !isZeroPoly(rem) {
		t.Fatalf("remainder = %v, want zero", rem)
	}
}

func TestPolyDivRemainder(t *testing.T) {
	// (X^2 + 1) / (X + 1) = X - 1, remainder 2.
	a := []fr.Element{scalar(1), scalar(0), scalar(1)}
	b := []fr.Element{scalar(1), scalar(1)}

	q, rem := polyDiv(a, b)
	if len(q) != 2 || len(rem) != 1 {
		t.Fatalf("shapes: len(q)=%d len(rem)=%d, want 2 and 1", len(q), len(rem))
	}
	two := scalar(2)
	if !rem[0].Equal(&two) {
		t.Fatalf("remainder = %s, want 2", rem[0].String())
	}
}

func TestPolyDivShortDividend(t *testing.T) {
	a := []fr.Element{scalar(5)}
	b := []fr.Element{scalar(1), scalar(1)}
	q, rem := polyDiv(a, b)
	if q != nil {
		t.Fatalf("q = %v, want nil", q)
	}
	five := scalar(5)
	if len(rem) != 1 || !rem[0].Equal(&five) {
		t.Fatalf("rem = %v, want [5]", rem)
	}
}

func TestPolySubUnevenLengths(t *testing.T) {
	a := []fr.Element{scalar(4), scalar(4)}
	b := []fr.Element{scalar(1), scalar(2), scalar(3)}
	out := polySub(a, b)
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	three := scalar(3)
	two := scalar(2)
	var negThree fr.Element
	negThree.Neg(&three)
	if !out[0].Equal(&three) || !out[1].Equal(&two) || !out[2].Equal(&negThree) {
		t.Fatalf("out = [%s %s %s], want [3 2 -3]", out[0].String(), out[1].String(), out[2].String())
	}
}
