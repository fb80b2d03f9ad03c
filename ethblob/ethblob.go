// Package ethblob bridges grid rows to EIP-4844 blobs so a row can be
// posted to Ethereum blob space and verified there independently of the
// grid's own commitments. A systematic row is packed into a blob as
// canonical 32-byte big-endian scalars, committed and proven with the
// embedded mainnet ceremony setup via go-eth-kzg.
package ethblob

import (
	"fmt"

	goethkzg "github.com/crate-crypto/go-eth-kzg"

	"github.com/dagrid/dagrid/grid"
)

// BlobScalars is the number of field elements in an EIP-4844 blob. Grid
// rows are far narrower, so the tail of the blob is zero scalars.
const BlobScalars = 4096

// Poster wraps a go-eth-kzg context initialised from the Ethereum KZG
// ceremony. Construction is expensive; build one and share it.
type Poster struct {
	ctx *goethkzg.Context
}

// NewPoster initialises the ceremony context.
func NewPoster() (*Poster, error) {
	ctx, err := goethkzg.NewContext4096Secure()
	if err != nil {
		return nil, fmt.Errorf("ethblob: initialise ceremony context: %w", err)
	}
	return &Poster{ctx: ctx}, nil
}

// RowBlob packs a systematic row into a blob: scalar i occupies bytes
// [32i, 32i+32) big-endian, every element past the row's columns stays
// zero.
func RowBlob(m *grid.Matrix, row int) (*goethkzg.Blob, error) {
	scalars, err := m.SystematicRow(row)
	if err != nil {
		return nil, err
	}
	var blob goethkzg.Blob
	for i := range scalars {
		b := scalars[i].Bytes()
		copy(blob[i*grid.ScalarSize:(i+1)*grid.ScalarSize], b[:])
	}
	return &blob, nil
}

// CommitRow packs the row and computes its blob commitment.
func (p *Poster) CommitRow(m *grid.Matrix, row int) (goethkzg.KZGCommitment, error) {
	blob, err := RowBlob(m, row)
	if err != nil {
		return goethkzg.KZGCommitment{}, err
	}
	comm, err := p.ctx.BlobToKZGCommitment(blob, 0)
	if err != nil {
		return goethkzg.KZGCommitment{}, fmt.Errorf("ethblob: commit row %d: %w", row, err)
	}
	return comm, nil
}

// ProveRow packs the row and computes its blob commitment and proof.
func (p *Poster) ProveRow(m *grid.Matrix, row int) (goethkzg.KZGCommitment, goethkzg.KZGProof, error) {
	blob, err := RowBlob(m, row)
	if err != nil {
		return goethkzg.KZGCommitment{}, goethkzg.KZGProof{}, err
	}
	comm, err := p.ctx.BlobToKZGCommitment(blob, 0)
	if err != nil {
		return goethkzg.KZGCommitment{}, goethkzg.KZGProof{}, fmt.Errorf("ethblob: commit row %d: %w", row, err)
	}
	proof, err := p.ctx.ComputeBlobKZGProof(blob, comm, 0)
	if err != nil {
		return goethkzg.KZGCommitment{}, goethkzg.KZGProof{}, fmt.Errorf("ethblob: prove row %d: %w", row, err)
	}
	return comm, proof, nil
}

// VerifyRow checks a blob proof. It reports false with the library's
// error for both malformed inputs and a failed pairing check.
func (p *Poster) VerifyRow(blob *goethkzg.Blob, comm goethkzg.KZGCommitment, proof goethkzg.KZGProof) (bool, error) {
	if err := p.ctx.VerifyBlobKZGProof(blob, comm, proof); err != nil {
		return false, err
	}
	return true, nil
}
