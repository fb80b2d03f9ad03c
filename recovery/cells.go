// Package recovery turns sampled cells back into matrix rows. Samples
// arrive with opening proofs, pass through a verifier that pins each grid
// position to a terminal verified-or-rejected state, and verified cells
// feed row reconstruction, which succeeds from any cols-sized subset of
// the extended row.
package recovery

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/dagrid/dagrid/kzg"
)

// ContentSize is the wire size of a sampled cell's payload: the opening
// proof followed by the big-endian scalar value.
const ContentSize = kzg.ProofSize + 32

// CellStatus is the verification state of one grid position. A position
// starts Unverified and moves to exactly one of Verified or Rejected;
// both are terminal.
type CellStatus uint8

const (
	StatusUnverified CellStatus = iota
	StatusVerified
	StatusRejected
)

func (s CellStatus) String() string {
	switch s {
	case StatusUnverified:
		return "unverified"
	case StatusVerified:
		return "verified"
	case StatusRejected:
		return "rejected"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// terminal reports whether the status can no longer change.
func (s CellStatus) terminal() bool { return s == StatusVerified || s == StatusRejected }

// SampleCell is one sampled cell as received from the network: a position,
// a claimed value and the proof opening the row commitment at the cell's
// column.
type SampleCell struct {
	Row, Col uint32
	Value    [32]byte
	Proof    kzg.Proof
}

// Content returns the cell payload in wire order, proof first.
func (c *SampleCell) Content() [ContentSize]byte {
	var out [ContentSize]byte
	copy(out[:kzg.ProofSize], c.Proof[:])
	copy(out[kzg.ProofSize:], c.Value[:])
	return out
}

// SampleFromContent parses a cell payload produced by Content.
func SampleFromContent(row, col uint32, content []byte) (SampleCell, error) {
	if len(content) != ContentSize {
		return SampleCell{}, fmt.Errorf("%w: cell content is %d bytes, want %d",
			kzg.ErrMalformedEncoding, len(content), ContentSize)
	}
	c := SampleCell{Row: row, Col: col}
	copy(c.Proof[:], content[:kzg.ProofSize])
	copy(c.Value[:], content[kzg.ProofSize:])
	return c, nil
}

// Scalar decodes the claimed value, rejecting non-canonical encodings so
// that a cell value has exactly one byte representation.
func (c *SampleCell) Scalar() (fr.Element, error) {
	var e fr.Element
	if err := e.SetBytesCanonical(c.Value[:]); err != nil {
		return fr.Element{}, fmt.Errorf("%w: cell value: %v", kzg.ErrMalformedEncoding, err)
	}
	return e, nil
}

// VerifiedCell is a cell whose proof has been checked against the row
// commitment. Only verified cells enter reconstruction.
type VerifiedCell struct {
	Row, Col uint32
	Value    fr.Element
}
