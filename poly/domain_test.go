package poly

import (
	"math/big"
	"sync"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr/fft"
)

func TestBitReverse(t *testing.T) {
	want := map[uint64]uint64{0: 0, 1: 4, 2: 2, 3: 6, 4: 1, 5: 5, 6: 3, 7: 7}
	for i, w := range want {
		if got := bitReverse(i, 3); got != w {
			t.Errorf("bitReverse(%d, 3) = %d, want %d", i, got, w)
		}
	}
}

func TestCachedDomainReturnsSameInstance(t *testing.T) {
	const size = 64
	first := cachedDomain(size)

	var wg sync.WaitGroup
	got := make([]*fft.Domain, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = cachedDomain(size)
		}(i)
	}
	wg.Wait()

	for i, d := range got {
		if d != first {
			t.Fatalf("goroutine %d got a different domain instance", i)
		}
	}
	if first.Cardinality != size {
		t.Fatalf("cardinality = %d, want %d", first.Cardinality, size)
	}
}

func TestDomainPoint(t *testing.T) {
	d := cachedDomain(8)

	var one fr.Element
	one.SetOne()
	if got := domainPoint(d, 0); !got.Equal(&one) {
		t.Errorf("domainPoint(0) = %s, want 1", got.String())
	}

	// Column 1 maps to generator^brp(1) = generator^4.
	var want fr.Element
	want.Exp(d.Generator, big.NewInt(4))
	if got := domainPoint(d, 1); !got.Equal(&want) {
		t.Errorf("domainPoint(1) != generator^4")
	}

	// All eight points are distinct eighth roots of unity.
	seen := make(map[string]bool)
	for i := uint64(0); i < 8; i++ {
		p := domainPoint(d, i)
		var eighth fr.Element
		eighth.Exp(p, big.NewInt(8))
		if !eighth.Equal(&one) {
			t.Errorf("domainPoint(%d)^8 != 1", i)
		}
		s := p.String()
		if seen[s] {
			t.Errorf("domainPoint(%d) repeats an earlier point", i)
		}
		seen[s] = true
	}
}
