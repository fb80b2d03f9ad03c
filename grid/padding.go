package grid

import "fmt"

// Pad extends data to exactly capacity bytes: a 0x80 marker byte followed by
// zeros (IEC 9797-1 padding method 2). The marker always fits because data
// must be strictly shorter than capacity; unpadding is therefore unambiguous
// for every input, including data that itself ends in zero bytes.
func Pad(data []byte, capacity int) ([]byte, error) {
	if len(data) >= capacity {
		return nil, fmt.Errorf("%w: %d bytes with padding exceed capacity %d", ErrDataTooLarge, len(data), capacity)
	}
	out := make([]byte, capacity)
	copy(out, data)
	out[len(data)] = padMarker
	return out, nil
}

// Unpad strips IEC 9797-1 padding, recovering the exact original bytes.
func Unpad(padded []byte) ([]byte, error) {
	for i := len(padded) - 1; i >= 0; i-- {
		switch padded[i] {
		case 0x00:
			continue
		case padMarker:
			return padded[:i], nil
		default:
			return nil, fmt.Errorf("%w: byte %#02x before marker", ErrBadPadding, padded[i])
		}
	}
	return nil, fmt.Errorf("%w: no marker found", ErrBadPadding)
}
