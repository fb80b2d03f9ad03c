package kzg

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"os"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	gnarkkzg "github.com/consensys/gnark-crypto/ecc/bls12-381/kzg"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"
)

// srsMagic is the first line of the text serialisation format.
const srsMagic = "dagrid-srs-v1"

// SRS holds the powers of a trusted-setup secret tau in both groups:
// [tau^i]G1 for committing and opening, and [tau^j]G2 for verifying
// multi-column openings, whose vanishing polynomial has degree equal to
// the opening set size.
type SRS struct {
	pk gnarkkzg.ProvingKey
	vk gnarkkzg.VerifyingKey
	g2 []bls12381.G2Affine
}

// NewInsecureSRS derives tau from seed and builds an SRS supporting
// polynomials of degree up to maxDegree and opening sets of up to maxBatch
// columns. The secret is recoverable by anyone holding the seed, so the
// result is only usable for tests and local tooling. Production setups
// must come from a ceremony transcript via LoadSRS.
func NewInsecureSRS(maxDegree, maxBatch int, seed []byte) (*SRS, error) {
	if maxDegree < 1 {
		return nil, fmt.Errorf("%w: max degree %d, need at least 1", ErrSRSTooSmall, maxDegree)
	}
	if maxBatch < 1 {
		return nil, fmt.Errorf("%w: max batch %d, need at least 1", ErrSRSTooSmall, maxBatch)
	}

	var tau fr.Element
	digest := blake2b.Sum256(seed)
	tau.SetBytes(digest[:])
	for tau.IsZero() {
		digest = blake2b.Sum256(digest[:])
		tau.SetBytes(digest[:])
	}

	var bTau big.Int
	tau.BigInt(&bTau)
	inner, err := gnarkkzg.NewSRS(uint64(maxDegree+1), &bTau)
	if err != nil {
		return nil, fmt.Errorf("kzg: building srs: %w", err)
	}

	g2 := make([]bls12381.G2Affine, maxBatch+1)
	g2[0] = inner.Vk.G2[0]
	taus := make([]fr.Element, maxBatch)
	taus[0] = tau
	for i := 1; i < maxBatch; i++ {
		taus[i].Mul(&taus[i-1], &tau)
	}
	copy(g2[1:], bls12381.BatchScalarMultiplicationG2(&g2[0], taus))

	return &SRS{pk: inner.Pk, vk: inner.Vk, g2: g2}, nil
}

// MaxDegree returns the largest polynomial degree the SRS can commit to.
func (s *SRS) MaxDegree() int { return len(s.pk.G1) - 1 }

// MaxBatch returns the largest multi-column opening set the SRS can verify.
func (s *SRS) MaxBatch() int { return len(s.g2) - 1 }

// ParamsFor returns a view of the SRS truncated to exactly the G1 powers
// needed for polynomials of the given degree. The view shares the
// underlying tables with the parent, so it is cheap to hand to an engine.
func (s *SRS) ParamsFor(degree int) (*SRS, error) {
	if degree < 0 || degree > s.MaxDegree() {
		return nil, fmt.Errorf("%w: degree %d, srs covers up to %d", ErrSRSTooSmall, degree, s.MaxDegree())
	}
	return &SRS{
		pk: gnarkkzg.ProvingKey{G1: s.pk.G1[:degree+1]},
		vk: s.vk,
		g2: s.g2,
	}, nil
}

// commitG1 computes a commitment [p(tau)]G1 by multi-scalar multiplication
// over the G1 power table. The zero polynomial commits to infinity.
func (s *SRS) commitG1(coeffs []fr.Element) (bls12381.G1Affine, error) {
	var acc bls12381.G1Affine
	if len(coeffs) == 0 {
		return acc, nil
	}
	if len(coeffs) > len(s.pk.G1) {
		return acc, fmt.Errorf("%w: polynomial of degree %d, srs covers up to %d",
			ErrSRSTooSmall, len(coeffs)-1, s.MaxDegree())
	}
	if _, err := acc.MultiExp(s.pk.G1[:len(coeffs)], coeffs, ecc.MultiExpConfig{}); err != nil {
		return acc, fmt.Errorf("kzg: g1 msm: %w", err)
	}
	return acc, nil
}

// vanishingG2 computes [Z(tau)]G2 for a vanishing polynomial Z given in
// coefficient form.
func (s *SRS) vanishingG2(z []fr.Element) (bls12381.G2Affine, error) {
	var acc bls12381.G2Affine
	if len(z) > len(s.g2) {
		return acc, fmt.Errorf("%w: vanishing degree %d, srs has %d G2 powers",
			ErrSRSTooSmall, len(z)-1, len(s.g2))
	}
	if _, err := acc.MultiExp(s.g2[:len(z)], z, ecc.MultiExpConfig{}); err != nil {
		return acc, fmt.Errorf("kzg: g2 msm: %w", err)
	}
	return acc, nil
}

// Save writes the SRS in the textual transcript format: a magic line, a
// line with the G1 and G2 power counts, then one lowercase hex compressed
// point per line, G1 powers first.
func (s *SRS) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, srsMagic)
	fmt.Fprintf(bw, "%d %d\n", len(s.pk.G1), len(s.g2))
	for i := range s.pk.G1 {
		b := s.pk.G1[i].Bytes()
		fmt.Fprintln(bw, hex.EncodeToString(b[:]))
	}
	for i := range s.g2 {
		b := s.g2[i].Bytes()
		fmt.Fprintln(bw, hex.EncodeToString(b[:]))
	}
	return bw.Flush()
}

// LoadSRS parses the textual transcript format written by Save. The first
// G1 power must be the generator (the tau^0 term); the first two G2 powers
// are the generator and [tau]G2 and seed the pairing-side verifying key.
// Points are decoded with canonical-form and subgroup checks.
func LoadSRS(r io.Reader) (*SRS, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 512), 1<<20)

	line, err := nextLine(sc)
	if err != nil {
		return nil, err
	}
	if line != srsMagic {
		return nil, fmt.Errorf("%w: bad srs magic %q", ErrMalformedEncoding, line)
	}

	line, err = nextLine(sc)
	if err != nil {
		return nil, err
	}
	var nG1, nG2 int
	if _, err := fmt.Sscanf(line, "%d %d", &nG1, &nG2); err != nil {
		return nil, fmt.Errorf("%w: bad srs counts %q", ErrMalformedEncoding, line)
	}
	if nG1 < 2 || nG2 < 2 {
		return nil, fmt.Errorf("%w: srs needs at least 2 powers per group, got g1=%d g2=%d",
			ErrSRSTooSmall, nG1, nG2)
	}

	g1 := make([]bls12381.G1Affine, nG1)
	for i := range g1 {
		if line, err = nextLine(sc); err != nil {
			return nil, err
		}
		b, err := hex.DecodeString(line)
		if err != nil {
			return nil, fmt.Errorf("%w: g1 power %d: %v", ErrMalformedEncoding, i, err)
		}
		if g1[i], err = parseG1(fmt.Sprintf("g1 power %d", i), b); err != nil {
			return nil, err
		}
	}

	g2 := make([]bls12381.G2Affine, nG2)
	for i := range g2 {
		if line, err = nextLine(sc); err != nil {
			return nil, err
		}
		b, err := hex.DecodeString(line)
		if err != nil {
			return nil, fmt.Errorf("%w: g2 power %d: %v", ErrMalformedEncoding, i, err)
		}
		if len(b) != 2*CommitmentSize {
			return nil, fmt.Errorf("%w: g2 power %d is %d bytes, want %d",
				ErrMalformedEncoding, i, len(b), 2*CommitmentSize)
		}
		if _, err := g2[i].SetBytes(b); err != nil {
			return nil, fmt.Errorf("%w: g2 power %d: %v", ErrMalformedEncoding, i, err)
		}
	}

	var vk gnarkkzg.VerifyingKey
	vk.G1 = g1[0]
	vk.G2[0] = g2[0]
	vk.G2[1] = g2[1]
	vk.Lines[0] = bls12381.PrecomputeLines(vk.G2[0])
	vk.Lines[1] = bls12381.PrecomputeLines(vk.G2[1])

	return &SRS{
		pk: gnarkkzg.ProvingKey{G1: g1},
		vk: vk,
		g2: g2,
	}, nil
}

func nextLine(sc *bufio.Scanner) (string, error) {
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", fmt.Errorf("kzg: reading srs: %w", err)
		}
		return "", fmt.Errorf("%w: srs truncated", ErrMalformedEncoding)
	}
	return sc.Text(), nil
}

var (
	srsFiles sync.Map // path -> *SRS
	srsGroup singleflight.Group
)

// LoadSRSFile loads and parses an SRS transcript from disk, caching the
// result process-wide. Concurrent loads of the same path are collapsed
// into a single read.
func LoadSRSFile(path string) (*SRS, error) {
	if v, ok := srsFiles.Load(path); ok {
		return v.(*SRS), nil
	}
	v, err, _ := srsGroup.Do(path, func() (any, error) {
		if v, ok := srsFiles.Load(path); ok {
			return v, nil
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("kzg: opening srs: %w", err)
		}
		defer f.Close()
		s, err := LoadSRS(f)
		if err != nil {
			return nil, err
		}
		srsFiles.Store(path, s)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SRS), nil
}
