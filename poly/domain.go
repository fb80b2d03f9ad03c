package poly

import (
	"math/big"
	"math/bits"
	"strconv"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr/fft"
	"golang.org/x/sync/singleflight"
)

// Evaluation domains are expensive to build (twiddle precomputation) and are
// reused for every row of every grid with the same width, so they live in a
// process-wide cache keyed by size. The cache is append-only and domains are
// never mutated after construction, making them safe to share across all
// worker goroutines. First construction for a given size collapses to a
// single call even under concurrent access.
var (
	domainCache sync.Map // uint64 -> *fft.Domain
	domainGroup singleflight.Group
)

// cachedDomain returns the radix-2 evaluation domain of the given power-of-two
// cardinality, building it at most once per process.
func cachedDomain(size uint64) *fft.Domain {
	if d, ok := domainCache.Load(size); ok {
		return d.(*fft.Domain)
	}
	v, _, _ := domainGroup.Do(strconv.FormatUint(size, 10), func() (interface{}, error) {
		if d, ok := domainCache.Load(size); ok {
			return d, nil
		}
		d := fft.NewDomain(size)
		domainCache.Store(size, d)
		return d, nil
	})
	return v.(*fft.Domain)
}

// isPowerOfTwo reports whether n is a positive power of two.
func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// bitReverse reverses the low logN bits of i.
func bitReverse(i, logN uint64) uint64 {
	return bits.Reverse64(i) >> (64 - logN)
}

// domainPoint returns the domain element at bit-reversed index i, i.e.
// generator^bitReverse(i) for the domain's subgroup generator.
func domainPoint(d *fft.Domain, i uint64) fr.Element {
	logN := uint64(bits.TrailingZeros64(d.Cardinality))
	exp := bitReverse(i, logN)

	var x fr.Element
	x.Exp(d.Generator, new(big.Int).SetUint64(exp))
	return x
}
