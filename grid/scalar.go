package grid

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// ScalarFromChunk embeds up to ChunkSize raw bytes into a scalar,
// big-endian. The result is always canonical since a chunk is one byte
// narrower than the field's encoded width.
func ScalarFromChunk(chunk []byte) (Scalar, error) {
	var s Scalar
	if len(chunk) > ChunkSize {
		return s, fmt.Errorf("%w: chunk of %d bytes exceeds %d", ErrDataTooLarge, len(chunk), ChunkSize)
	}
	var buf [ScalarSize]byte
	copy(buf[ScalarSize-len(chunk):], chunk)
	s.SetBytes(buf[:])
	return s, nil
}

// ScalarToChunk extracts the ChunkSize data bytes embedded in a scalar.
// Scalars whose value needs the full 32-byte range were not produced by
// ScalarFromChunk and are rejected.
func ScalarToChunk(s *fr.Element) ([ChunkSize]byte, error) {
	var chunk [ChunkSize]byte
	b := s.Bytes()
	if b[0] != 0 {
		return chunk, fmt.Errorf("%w: scalar outside chunk range", ErrDataTooLarge)
	}
	copy(chunk[:], b[1:])
	return chunk, nil
}
