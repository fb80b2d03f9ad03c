// root.go computes the data root: a balanced binary Keccak-256 Merkle
// tree whose leaves are the systematic rows of a grid, each row hashed
// as the concatenation of its canonical 32-byte scalar encodings. Odd
// layers duplicate their last node. Leaf and interior hashes carry
// distinct domain prefixes so a leaf can never be replayed as a node.
package header

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"

	"github.com/dagrid/dagrid/grid"
)

// Domain separators for data root hashing.
var (
	rootDomainLeaf = []byte{0x00}
	rootDomainNode = []byte{0x01}
)

// rowLeaf hashes one systematic row with domain separation.
func rowLeaf(row []fr.Element) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(rootDomainLeaf)
	for i := range row {
		b := row[i].Bytes()
		h.Write(b[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// rowNode hashes two child nodes with domain separation.
func rowNode(left, right [32]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(rootDomainNode)
	h.Write(left[:])
	h.Write(right[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// foldLayer collapses one tree layer into the next, duplicating the
// last node when the layer is odd.
func foldLayer(layer [][32]byte) [][32]byte {
	if len(layer)%2 != 0 {
		layer = append(layer, layer[len(layer)-1])
	}
	next := make([][32]byte, len(layer)/2)
	for i := 0; i < len(layer); i += 2 {
		next[i/2] = rowNode(layer[i], layer[i+1])
	}
	return next
}

// DataRoot computes the Merkle root over the matrix's systematic rows.
func DataRoot(m *grid.Matrix) (common.Hash, error) {
	dims := m.Dimensions()
	if dims.Rows() == 0 {
		return common.Hash{}, fmt.Errorf("header: %w: empty matrix", grid.ErrInvalidDimensions)
	}
	layer := make([][32]byte, dims.Rows())
	for r := 0; r < dims.Rows(); r++ {
		row, err := m.SystematicRow(r)
		if err != nil {
			return common.Hash{}, fmt.Errorf("header: row %d: %w", r, err)
		}
		layer[r] = rowLeaf(row)
	}
	for len(layer) > 1 {
		layer = foldLayer(layer)
	}
	return common.Hash(layer[0]), nil
}

// RowProof is a Merkle inclusion proof for one systematic row against a
// data root.
type RowProof struct {
	Row      uint32
	Siblings []common.Hash
}

// ProveRow generates an inclusion proof for the given row.
func ProveRow(m *grid.Matrix, row int) (*RowProof, error) {
	dims := m.Dimensions()
	if row < 0 || row >= dims.Rows() {
		return nil, fmt.Errorf("%w: row %d of %d", grid.ErrOutOfBounds, row, dims.Rows())
	}

	layer := make([][32]byte, dims.Rows())
	for r := 0; r < dims.Rows(); r++ {
		scalars, err := m.SystematicRow(r)
		if err != nil {
			return nil, fmt.Errorf("header: row %d: %w", r, err)
		}
		layer[r] = rowLeaf(scalars)
	}

	proof := &RowProof{Row: uint32(row)}
	idx := row
	for len(layer) > 1 {
		if len(layer)%2 != 0 {
			layer = append(layer, layer[len(layer)-1])
		}
		proof.Siblings = append(proof.Siblings, common.Hash(layer[idx^1]))
		layer = foldLayer(layer)
		idx /= 2
	}
	return proof, nil
}

// VerifyRowProof checks a row's scalars against a data root. It returns
// false for a nil proof or any mismatch; it never panics.
func VerifyRowProof(row []fr.Element, proof *RowProof, root common.Hash) bool {
	if proof == nil {
		return false
	}
	current := rowLeaf(row)
	idx := proof.Row
	for _, sib := range proof.Siblings {
		if idx%2 == 0 {
			current = rowNode(current, sib)
		} else {
			current = rowNode(sib, current)
		}
		idx /= 2
	}
	return common.Hash(current) == root
}
