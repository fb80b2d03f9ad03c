// Package header builds the commitment extension a block header carries
// for data availability sampling: grid dimensions, per-row KZG
// commitments, a Keccak-256 data root over the systematic rows, and a
// compact per-application row lookup.
//
// The extension has a single canonical encoding. Decode accepts exactly
// the bytes Encode produces and rejects truncated input, trailing
// bytes, and structurally invalid lookups.
package header

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dagrid/dagrid/grid"
	"github.com/dagrid/dagrid/kzg"
	"github.com/dagrid/dagrid/metrics"
)

// ErrBadExtension reports extension bytes or fields that violate the
// canonical form.
var ErrBadExtension = errors.New("header: malformed extension")

// extensionVersion is the first byte of every encoded extension.
const extensionVersion = 0x01

// Extension is the data-availability commitment block a header embeds.
// Rows and Cols are the unextended grid dimensions; Commitments holds
// one compressed 48-byte KZG commitment per row, flattened in row
// order.
type Extension struct {
	Rows        uint16
	Cols        uint16
	Commitments []byte
	DataRoot    common.Hash
	Lookup      Lookup
}

// NewExtension assembles the extension for a built matrix: it flattens
// the per-row commitments, computes the data root, and attaches the
// application lookup. The lookup may be empty; a non-empty one must not
// index past the matrix's rows.
func NewExtension(m *grid.Matrix, comms []kzg.Commitment, lookup Lookup) (*Extension, error) {
	dims := m.Dimensions()
	if len(comms) != dims.Rows() {
		return nil, fmt.Errorf("%w: %d commitments for %d rows", ErrBadExtension, len(comms), dims.Rows())
	}
	if err := lookup.validate(); err != nil {
		return nil, err
	}
	if lookup.size > uint32(dims.Rows()) {
		return nil, fmt.Errorf("%w: lookup indexes %d of %d rows", ErrBadLookup, lookup.size, dims.Rows())
	}

	root, err := DataRoot(m)
	if err != nil {
		return nil, err
	}
	flat := make([]byte, 0, len(comms)*kzg.CommitmentSize)
	for i := range comms {
		flat = append(flat, comms[i][:]...)
	}
	return &Extension{
		Rows:        uint16(dims.Rows()),
		Cols:        uint16(dims.Cols()),
		Commitments: flat,
		DataRoot:    root,
		Lookup:      lookup,
	}, nil
}

// CommitmentAt returns the commitment for one row.
func (e *Extension) CommitmentAt(row int) (kzg.Commitment, error) {
	var c kzg.Commitment
	if row < 0 || row >= int(e.Rows) {
		return c, fmt.Errorf("%w: row %d of %d", grid.ErrOutOfBounds, row, e.Rows)
	}
	off := row * kzg.CommitmentSize
	if len(e.Commitments) < off+kzg.CommitmentSize {
		return c, fmt.Errorf("%w: %d commitment bytes for %d rows", ErrBadExtension, len(e.Commitments), e.Rows)
	}
	copy(c[:], e.Commitments[off:off+kzg.CommitmentSize])
	return c, nil
}

// CommitmentList splits the flat commitment bytes back into per-row
// commitments, in row order.
func (e *Extension) CommitmentList() ([]kzg.Commitment, error) {
	out := make([]kzg.Commitment, e.Rows)
	for r := range out {
		c, err := e.CommitmentAt(r)
		if err != nil {
			return nil, err
		}
		out[r] = c
	}
	return out, nil
}

// encodedLen is the exact byte length of an encoded extension.
func encodedLen(rows int, items int) int {
	return 1 + 2 + 2 + common.HashLength + rows*kzg.CommitmentSize + 4 + 4 + items*8
}

// Encode serialises the extension into its canonical form:
//
//	1 byte   version
//	2 bytes  rows, big-endian
//	2 bytes  cols, big-endian
//	32 bytes data root
//	48*rows  row commitments
//	4 bytes  lookup size, big-endian
//	4 bytes  lookup item count, big-endian
//	8*count  lookup items: app id, start, big-endian
func (e *Extension) Encode() ([]byte, error) {
	if e.Rows == 0 || e.Cols == 0 {
		return nil, fmt.Errorf("%w: %dx%d grid", ErrBadExtension, e.Rows, e.Cols)
	}
	if len(e.Commitments) != int(e.Rows)*kzg.CommitmentSize {
		return nil, fmt.Errorf("%w: %d commitment bytes for %d rows", ErrBadExtension, len(e.Commitments), e.Rows)
	}
	if err := e.Lookup.validate(); err != nil {
		return nil, err
	}
	if e.Lookup.size > uint32(e.Rows) {
		return nil, fmt.Errorf("%w: lookup indexes %d of %d rows", ErrBadLookup, e.Lookup.size, e.Rows)
	}

	buf := make([]byte, 0, encodedLen(int(e.Rows), len(e.Lookup.items)))
	buf = append(buf, extensionVersion)
	buf = binary.BigEndian.AppendUint16(buf, e.Rows)
	buf = binary.BigEndian.AppendUint16(buf, e.Cols)
	buf = append(buf, e.DataRoot[:]...)
	buf = append(buf, e.Commitments...)
	buf = binary.BigEndian.AppendUint32(buf, e.Lookup.size)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(e.Lookup.items)))
	for _, it := range e.Lookup.items {
		buf = binary.BigEndian.AppendUint32(buf, it.AppID)
		buf = binary.BigEndian.AppendUint32(buf, it.Start)
	}
	metrics.HeadersEncoded.Inc()
	return buf, nil
}

// Decode parses a canonically encoded extension. Input that is
// truncated, carries trailing bytes, or holds an invalid lookup is
// rejected with ErrBadExtension or ErrBadLookup.
func Decode(data []byte) (*Extension, error) {
	const fixed = 1 + 2 + 2 + common.HashLength
	if len(data) < fixed {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadExtension, len(data))
	}
	if data[0] != extensionVersion {
		return nil, fmt.Errorf("%w: version %#x", ErrBadExtension, data[0])
	}
	rows := binary.BigEndian.Uint16(data[1:3])
	cols := binary.BigEndian.Uint16(data[3:5])
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%w: %dx%d grid", ErrBadExtension, rows, cols)
	}
	var root common.Hash
	copy(root[:], data[5:fixed])

	commEnd := fixed + int(rows)*kzg.CommitmentSize
	if len(data) < commEnd+8 {
		return nil, fmt.Errorf("%w: %d bytes for %d rows", ErrBadExtension, len(data), rows)
	}
	comms := append([]byte(nil), data[fixed:commEnd]...)

	size := binary.BigEndian.Uint32(data[commEnd : commEnd+4])
	count := binary.BigEndian.Uint32(data[commEnd+4 : commEnd+8])
	rest := data[commEnd+8:]
	if uint64(len(rest)) != uint64(count)*8 {
		return nil, fmt.Errorf("%w: %d trailing bytes for %d items", ErrBadExtension, len(rest), count)
	}
	var items []LookupItem
	if count > 0 {
		items = make([]LookupItem, count)
	}
	for i := range items {
		items[i] = LookupItem{
			AppID: binary.BigEndian.Uint32(rest[i*8 : i*8+4]),
			Start: binary.BigEndian.Uint32(rest[i*8+4 : i*8+8]),
		}
	}
	lookup := Lookup{size: size, items: items}
	if err := lookup.validate(); err != nil {
		return nil, err
	}
	if size > uint32(rows) {
		return nil, fmt.Errorf("%w: lookup indexes %d of %d rows", ErrBadLookup, size, rows)
	}

	metrics.HeadersDecoded.Inc()
	return &Extension{
		Rows:        rows,
		Cols:        cols,
		Commitments: comms,
		DataRoot:    root,
		Lookup:      lookup,
	}, nil
}
