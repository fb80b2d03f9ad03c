package recovery

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/dagrid/dagrid/grid"
	"github.com/dagrid/dagrid/poly"
)

// verifiedAt lifts a matrix cell directly into a VerifiedCell, bypassing
// proof plumbing for reconstructor-only tests.
func verifiedAt(t *testing.T, m *grid.Matrix, row, col int) VerifiedCell {
	t.Helper()
	v, err := m.Cell(row, col)
	if err != nil {
		t.Fatalf("Cell(%d,%d): %v", row, col, err)
	}
	return VerifiedCell{Row: uint32(row), Col: uint32(col), Value: v}
}

func newReconstructor(t *testing.T, m *grid.Matrix) *Reconstructor {
	t.Helper()
	r, err := NewReconstructor(m.Dimensions())
	if err != nil {
		t.Fatalf("NewReconstructor: %v", err)
	}
	return r
}

func assertRowEqual(t *testing.T, got []fr.Element, m *grid.Matrix, row int) {
	t.Helper()
	want, err := m.SystematicRow(row)
	if err != nil {
		t.Fatalf("SystematicRow: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("row %d: %d scalars, want %d", row, len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(&want[i]) {
			t.Fatalf("row %d col %d: %s, want %s", row, i, got[i].String(), want[i].String())
		}
	}
}

// --- row reconstruction tests ---

func TestReconstructRowFromSubsets(t *testing.T) {
	m, err := grid.Build(testPayload(90), 4, 4, 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rec := newReconstructor(t, m)

	subsets := [][]int{
		{0, 1, 2, 3},    // systematic half
		{4, 5, 6, 7},    // redundancy half
		{0, 2, 5, 7},    // mixed
		{7, 1, 6, 0},    // mixed, unsorted
		{0, 1, 2, 3, 4}, // more than needed
	}
	for _, cols := range subsets {
		cells := make([]VerifiedCell, len(cols))
		for i, col := range cols {
			cells[i] = verifiedAt(t, m, 2, col)
		}
		got, err := rec.ReconstructRow(2, cells)
		if err != nil {
			t.Fatalf("ReconstructRow(%v): %v", cols, err)
		}
		assertRowEqual(t, got, m, 2)
	}
}

func TestReconstructRowThreshold(t *testing.T) {
	m, err := grid.Build(testPayload(90), 4, 4, 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rec := newReconstructor(t, m)

	cells := []VerifiedCell{
		verifiedAt(t, m, 0, 1),
		verifiedAt(t, m, 0, 4),
		verifiedAt(t, m, 0, 6),
	}
	_, err = rec.ReconstructRow(0, cells)
	var short *poly.InsufficientCellsError
	if !errors.As(err, &short) {
		t.Fatalf("error = %v, want InsufficientCellsError", err)
	}
	if short.Have != 3 || short.Need != 4 {
		t.Fatalf("have/need = %d/%d, want 3/4", short.Have, short.Need)
	}

	// An equal duplicate does not help reach the threshold.
	cells = append(cells, verifiedAt(t, m, 0, 1))
	if _, err := rec.ReconstructRow(0, cells); !errors.As(err, &short) {
		t.Fatalf("error with duplicate = %v, want InsufficientCellsError", err)
	}
}

func TestReconstructRowConflict(t *testing.T) {
	m, err := grid.Build(testPayload(90), 4, 4, 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rec := newReconstructor(t, m)

	conflicting := verifiedAt(t, m, 1, 2)
	var one fr.Element
	one.SetOne()
	conflicting.Value.Add(&conflicting.Value, &one)

	cells := []VerifiedCell{
		verifiedAt(t, m, 1, 0),
		verifiedAt(t, m, 1, 2),
		conflicting,
		verifiedAt(t, m, 1, 5),
		verifiedAt(t, m, 1, 7),
	}
	if _, err := rec.ReconstructRow(1, cells); !errors.Is(err, ErrInconsistentCell) {
		t.Fatalf("error = %v, want ErrInconsistentCell", err)
	}
}

func TestReconstructRowValidation(t *testing.T) {
	m, err := grid.Build(testPayload(90), 4, 4, 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rec := newReconstructor(t, m)

	if _, err := rec.ReconstructRow(4, nil); !errors.Is(err, grid.ErrOutOfBounds) {
		t.Fatalf("row 4 error = %v, want ErrOutOfBounds", err)
	}
	cells := []VerifiedCell{verifiedAt(t, m, 2, 0)}
	if _, err := rec.ReconstructRow(1, cells); !errors.Is(err, ErrRowMismatch) {
		t.Fatalf("error = %v, want ErrRowMismatch", err)
	}
}

// --- matrix reconstruction tests ---

// The full sampling pipeline: commit, sample half of each extended row,
// verify every sample, reconstruct, and compare with the original bytes.
func TestReconstructMatrixEndToEnd(t *testing.T) {
	eng, m, _, v := newFixture(t)
	payload := testPayload(90)

	sampleCols := [][]int{
		{0, 2, 5, 7}, // mixed
		{1, 3, 4, 6}, // mixed
		{4, 5, 6, 7}, // redundancy only
		{0, 1, 2, 3}, // systematic only
	}
	for row, cols := range sampleCols {
		for _, col := range cols {
			st, err := v.Submit(sampleAt(t, eng, m, row, col))
			if err != nil {
				t.Fatalf("Submit(%d,%d): %v", row, col, err)
			}
			if st != StatusVerified {
				t.Fatalf("sample (%d,%d) status = %s, want verified", row, col, st)
			}
		}
	}

	rec := newReconstructor(t, m)
	res, err := rec.Reconstruct(context.Background(), v.VerifiedCells())
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if !res.Complete() {
		t.Fatalf("missing rows: %+v", res.Missing)
	}
	for row := range sampleCols {
		assertRowEqual(t, res.RowData[row], m, row)
	}

	data, err := res.Data()
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("recovered %d bytes differ from original %d bytes", len(data), len(payload))
	}
}

func TestReconstructMatrixRebuildsRedundancy(t *testing.T) {
	m, err := grid.Build(testPayload(90), 4, 4, 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rec := newReconstructor(t, m)

	var cells []VerifiedCell
	for row := 0; row < 4; row++ {
		for _, col := range []int{1, 3, 4, 6} {
			cells = append(cells, verifiedAt(t, m, row, col))
		}
	}
	res, err := rec.Reconstruct(context.Background(), cells)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	rebuilt, err := res.Matrix()
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}

	// The rebuilt matrix must agree cell for cell, redundancy included.
	for row := 0; row < 4; row++ {
		for col := 0; col < 8; col++ {
			want, err := m.Cell(row, col)
			if err != nil {
				t.Fatalf("Cell: %v", err)
			}
			got, err := rebuilt.Cell(row, col)
			if err != nil {
				t.Fatalf("rebuilt Cell: %v", err)
			}
			if !got.Equal(&want) {
				t.Fatalf("cell (%d,%d) = %s, want %s", row, col, got.String(), want.String())
			}
		}
	}
}

func TestReconstructPartial(t *testing.T) {
	m, err := grid.Build(testPayload(90), 4, 4, 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rec := newReconstructor(t, m)

	var cells []VerifiedCell
	for _, row := range []int{0, 2, 3} {
		for _, col := range []int{0, 2, 5, 7} {
			cells = append(cells, verifiedAt(t, m, row, col))
		}
	}
	// Row 1 falls short.
	cells = append(cells, verifiedAt(t, m, 1, 0), verifiedAt(t, m, 1, 5))

	res, err := rec.Reconstruct(context.Background(), cells)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if res.Complete() {
		t.Fatal("reconstruction reported complete with a starved row")
	}
	if len(res.Missing) != 1 {
		t.Fatalf("missing = %+v, want one entry", res.Missing)
	}
	miss := res.Missing[0]
	if miss.Row != 1 || miss.Have != 2 || miss.Need != 4 {
		t.Fatalf("missing = %+v, want {1 2 4}", miss)
	}
	if res.RowData[1] != nil {
		t.Fatal("starved row has data")
	}
	for _, row := range []int{0, 2, 3} {
		assertRowEqual(t, res.RowData[row], m, row)
	}

	if _, err := res.Matrix(); !errors.Is(err, ErrMissingRows) {
		t.Fatalf("Matrix error = %v, want ErrMissingRows", err)
	}
	if _, err := res.Data(); !errors.Is(err, ErrMissingRows) {
		t.Fatalf("Data error = %v, want ErrMissingRows", err)
	}
}

func TestReconstructAbortsOnConflict(t *testing.T) {
	m, err := grid.Build(testPayload(90), 4, 4, 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rec := newReconstructor(t, m)

	var cells []VerifiedCell
	for row := 0; row < 4; row++ {
		for _, col := range []int{0, 1, 2, 3} {
			cells = append(cells, verifiedAt(t, m, row, col))
		}
	}
	bad := verifiedAt(t, m, 2, 1)
	var one fr.Element
	one.SetOne()
	bad.Value.Add(&bad.Value, &one)
	cells = append(cells, bad)

	if _, err := rec.Reconstruct(context.Background(), cells); !errors.Is(err, ErrInconsistentCell) {
		t.Fatalf("error = %v, want ErrInconsistentCell", err)
	}
}

func TestReconstructEmptyInput(t *testing.T) {
	m, err := grid.Build(testPayload(90), 4, 4, 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rec := newReconstructor(t, m)

	res, err := rec.Reconstruct(context.Background(), nil)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if len(res.Missing) != 4 {
		t.Fatalf("missing rows = %d, want 4", len(res.Missing))
	}
	for i, miss := range res.Missing {
		if miss.Row != uint32(i) || miss.Have != 0 || miss.Need != 4 {
			t.Fatalf("missing[%d] = %+v, want {%d 0 4}", i, miss, i)
		}
	}
}

func TestReconstructOutOfBoundsCell(t *testing.T) {
	m, err := grid.Build(testPayload(90), 4, 4, 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rec := newReconstructor(t, m)

	cells := []VerifiedCell{{Row: 9, Col: 0}}
	if _, err := rec.Reconstruct(context.Background(), cells); !errors.Is(err, grid.ErrOutOfBounds) {
		t.Fatalf("error = %v, want ErrOutOfBounds", err)
	}
}

func TestReconstructCancelledContext(t *testing.T) {
	m, err := grid.Build(testPayload(90), 4, 4, 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rec := newReconstructor(t, m)

	var cells []VerifiedCell
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			cells = append(cells, verifiedAt(t, m, row, col))
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := rec.Reconstruct(ctx, cells); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
