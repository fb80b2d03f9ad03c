package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/dagrid/dagrid/ethblob"
	"github.com/dagrid/dagrid/grid"
	"github.com/dagrid/dagrid/header"
	"github.com/dagrid/dagrid/kzg"
	"github.com/dagrid/dagrid/log"
	"github.com/dagrid/dagrid/metrics"
	"github.com/dagrid/dagrid/recovery"
)

// demoConfig holds the parsed flags of the demo subcommand.
type demoConfig struct {
	Rows        int
	Cols        int
	Extension   int
	Payload     int
	Drop        int
	Seed        int64
	SRSPath     string
	Workers     int
	LogLevel    string
	Color       bool
	Blob        bool
	MetricsAddr string
}

// parseDemoFlags parses demo subcommand arguments. Returns the config,
// whether the caller should exit immediately, and the exit code.
func parseDemoFlags(args []string, stderr io.Writer) (demoConfig, bool, int) {
	var cfg demoConfig
	fs := flag.NewFlagSet("dagrid demo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&cfg.Rows, "rows", 4, "matrix rows (power of two)")
	fs.IntVar(&cfg.Cols, "cols", 4, "systematic columns per row (power of two)")
	fs.IntVar(&cfg.Extension, "extension", 2, "erasure extension factor (power of two)")
	fs.IntVar(&cfg.Payload, "payload", 0, "payload size in bytes (0 = fill the matrix)")
	fs.IntVar(&cfg.Drop, "drop", -1, "cells dropped per row before recovery (-1 = every redundant column)")
	fs.Int64Var(&cfg.Seed, "seed", 1, "deterministic seed for payload and sampling")
	fs.StringVar(&cfg.SRSPath, "srs", "", "SRS transcript file (default: seed-derived in-memory setup)")
	fs.IntVar(&cfg.Workers, "workers", 0, "worker count for row-parallel phases (0 = GOMAXPROCS)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log verbosity (debug, info, warn, error)")
	fs.BoolVar(&cfg.Color, "color", false, "colorize log output")
	fs.BoolVar(&cfg.Blob, "blob", false, "also commit row 0 as an EIP-4844 blob (loads the ceremony setup)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address until interrupted")

	if err := fs.Parse(args); err != nil {
		return cfg, true, 2
	}
	return cfg, false, 0
}

// runDemo drives the whole pipeline once on a synthetic payload: build the
// extended matrix, commit every row, assemble and round-trip the header
// extension, prove a region, sample cells with proofs, verify them, and
// reconstruct the original payload from the survivors.
func runDemo(args []string, stdout, stderr io.Writer) int {
	cfg, exit, code := parseDemoFlags(args, stderr)
	if exit {
		return code
	}

	lg := log.NewTerminal(stderr, log.LevelFromString(cfg.LogLevel), cfg.Color)
	log.SetDefault(lg)

	if err := demo(context.Background(), cfg, stdout, lg); err != nil {
		fmt.Fprintf(stderr, "dagrid demo: %v\n", err)
		return 1
	}

	if cfg.MetricsAddr != "" {
		if err := serveMetrics(cfg.MetricsAddr, lg); err != nil {
			fmt.Fprintf(stderr, "dagrid demo: %v\n", err)
			return 1
		}
	}
	return 0
}

func demo(ctx context.Context, cfg demoConfig, stdout io.Writer, lg *log.Logger) error {
	dims, err := grid.NewDimensions(uint16(cfg.Rows), uint16(cfg.Cols), uint16(cfg.Extension))
	if err != nil {
		return err
	}

	payload := cfg.Payload
	if payload <= 0 {
		payload = dims.Capacity() - 1
	}
	drop := cfg.Drop
	if drop < 0 {
		drop = dims.ExtendedCols() - dims.Cols()
	}
	if drop >= dims.ExtendedCols() {
		return fmt.Errorf("drop %d leaves no cells in rows of %d", drop, dims.ExtendedCols())
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	data := make([]byte, payload)
	rng.Read(data)

	// Build.
	buildStart := time.Now()
	m, err := grid.Build(data, uint16(cfg.Rows), uint16(cfg.Cols), uint16(cfg.Extension))
	if err != nil {
		return err
	}
	lg.Info("matrix built", "dims", dims.String(), "payload", payload,
		"elapsed", time.Since(buildStart).Round(time.Microsecond))

	// Commit.
	srs, err := demoSRS(cfg, dims)
	if err != nil {
		return err
	}
	eng, err := kzg.NewEngine(srs, dims, kzg.WithWorkers(cfg.Workers))
	if err != nil {
		return err
	}
	commitStart := time.Now()
	comms, err := eng.CommitMatrix(ctx, m)
	if err != nil {
		return err
	}
	commitElapsed := time.Since(commitStart)
	lg.Info("matrix committed", "rows", len(comms), "elapsed", commitElapsed.Round(time.Microsecond))

	// Header extension with a single-app lookup, encode/decode round trip.
	lookup, err := header.NewLookup([]header.AppRows{{AppID: 1, Rows: uint32(cfg.Rows)}})
	if err != nil {
		return err
	}
	ext, err := header.NewExtension(m, comms, lookup)
	if err != nil {
		return err
	}
	enc, err := ext.Encode()
	if err != nil {
		return err
	}
	if _, err := header.Decode(enc); err != nil {
		return fmt.Errorf("header round trip: %w", err)
	}
	lg.Info("header extension", "root", ext.DataRoot.Hex(), "bytes", len(enc))

	// Multi-row region proof over the top-left corner.
	reg := kzg.Region{
		RowStart: 0, RowEnd: min(2, dims.Rows()),
		ColStart: 0, ColEnd: min(2, dims.ExtendedCols()),
	}
	rp, err := eng.OpenRegion(m, comms, reg)
	if err != nil {
		return err
	}
	regionOK, err := eng.VerifyRegion(comms, reg, rp)
	if err != nil {
		return err
	}
	if !regionOK {
		return fmt.Errorf("region proof for %s failed verification", reg)
	}
	lg.Info("region proven", "region", reg.String())

	// Sample the surviving cells with opening proofs.
	keep := dims.ExtendedCols() - drop
	samples := make([]recovery.SampleCell, 0, dims.Rows()*keep)
	var corrupted *recovery.SampleCell
	for row := 0; row < dims.Rows(); row++ {
		coeffs, err := eng.RowPolynomial(m, row)
		if err != nil {
			return err
		}
		perm := rng.Perm(dims.ExtendedCols())
		for _, col := range perm[:keep] {
			sc, err := sampleAt(eng, m, coeffs, row, col)
			if err != nil {
				return err
			}
			samples = append(samples, sc)
		}
		// Corrupt one dropped cell to exercise the rejection path without
		// poisoning a position reconstruction needs.
		if corrupted == nil && drop > 0 {
			col := perm[keep]
			sc, err := sampleAt(eng, m, coeffs, row, col)
			if err != nil {
				return err
			}
			sc.Value = offByOne(sc.Value)
			corrupted = &sc
		}
	}

	verifier, err := recovery.NewVerifier(eng, comms)
	if err != nil {
		return err
	}
	verifyStart := time.Now()
	for _, sc := range samples {
		st, err := verifier.Submit(sc)
		if err != nil {
			return err
		}
		if st != recovery.StatusVerified {
			return fmt.Errorf("genuine cell (%d,%d) got status %s", sc.Row, sc.Col, st)
		}
	}
	if corrupted != nil {
		st, err := verifier.Submit(*corrupted)
		if err != nil {
			return err
		}
		lg.Info("corrupted cell submitted", "row", corrupted.Row, "col", corrupted.Col, "status", st.String())
	}
	lg.Info("samples verified", "cells", verifier.VerifiedCount(),
		"elapsed", time.Since(verifyStart).Round(time.Microsecond))

	// Reconstruct from verified cells only.
	rec, err := recovery.NewReconstructor(dims, recovery.WithWorkers(cfg.Workers))
	if err != nil {
		return err
	}
	recoverStart := time.Now()
	res, err := rec.Reconstruct(ctx, verifier.VerifiedCells())
	if err != nil {
		return err
	}
	recoverElapsed := time.Since(recoverStart)
	if !res.Complete() {
		return fmt.Errorf("reconstruction left %d rows missing", len(res.Missing))
	}
	got, err := res.Data()
	if err != nil {
		return err
	}
	if !bytes.Equal(got, data) {
		return fmt.Errorf("recovered payload differs from original")
	}
	lg.Info("payload recovered", "bytes", len(got), "elapsed", recoverElapsed.Round(time.Microsecond))

	if cfg.Blob {
		if err := demoBlob(m, lg); err != nil {
			return err
		}
	}

	fmt.Fprintf(stdout, "matrix:      %s\n", dims.String())
	fmt.Fprintf(stdout, "payload:     %d bytes\n", payload)
	fmt.Fprintf(stdout, "data root:   %s\n", ext.DataRoot.Hex())
	fmt.Fprintf(stdout, "commitment0: %s\n", hexutil.Encode(comms[0][:]))
	fmt.Fprintf(stdout, "header:      %d bytes\n", len(enc))
	fmt.Fprintf(stdout, "sampled:     %d cells (%d dropped per row)\n", len(samples), drop)
	fmt.Fprintf(stdout, "commit:      %v\n", commitElapsed.Round(time.Microsecond))
	fmt.Fprintf(stdout, "reconstruct: %v\n", recoverElapsed.Round(time.Microsecond))
	fmt.Fprintln(stdout, "round trip:  ok")
	return nil
}

// demoSRS loads the SRS from disk when a path is given, otherwise derives a
// throwaway one from the demo seed. Either way the result is truncated to
// the degree the engine needs.
func demoSRS(cfg demoConfig, dims grid.Dimensions) (*kzg.SRS, error) {
	if cfg.SRSPath != "" {
		full, err := kzg.LoadSRSFile(cfg.SRSPath)
		if err != nil {
			return nil, err
		}
		return full.ParamsFor(dims.Cols() - 1)
	}
	seed := fmt.Sprintf("dagrid demo seed %d", cfg.Seed)
	return kzg.NewInsecureSRS(dims.Cols()-1, dims.Cols(), []byte(seed))
}

// offByOne returns the canonical encoding of value+1, a wrong claim that
// still decodes so the verifier judges it cryptographically.
func offByOne(value [32]byte) [32]byte {
	var e, one fr.Element
	e.SetBytes(value[:])
	one.SetOne()
	e.Add(&e, &one)
	return e.Bytes()
}

// sampleAt builds the wire-form sample for one matrix cell: its canonical
// value bytes plus the opening proof against the row commitment.
func sampleAt(eng *kzg.Engine, m *grid.Matrix, coeffs []grid.Scalar, row, col int) (recovery.SampleCell, error) {
	val, err := m.Cell(row, col)
	if err != nil {
		return recovery.SampleCell{}, err
	}
	proof, err := eng.Open(coeffs, col)
	if err != nil {
		return recovery.SampleCell{}, err
	}
	return recovery.SampleCell{
		Row:   uint32(row),
		Col:   uint32(col),
		Value: val.Bytes(),
		Proof: proof,
	}, nil
}

// demoBlob commits row 0 as an EIP-4844 blob and verifies the blob proof.
func demoBlob(m *grid.Matrix, lg *log.Logger) error {
	lg.Info("loading ceremony setup for blob interop")
	poster, err := ethblob.NewPoster()
	if err != nil {
		return err
	}
	blob, err := ethblob.RowBlob(m, 0)
	if err != nil {
		return err
	}
	comm, proof, err := poster.ProveRow(m, 0)
	if err != nil {
		return err
	}
	ok, err := poster.VerifyRow(blob, comm, proof)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("blob proof for row 0 failed verification")
	}
	lg.Info("blob proven", "row", 0, "commitment", hexutil.Encode(comm[:]))
	return nil
}

// serveMetrics exposes the default registry in Prometheus format and blocks
// until SIGINT or SIGTERM.
func serveMetrics(addr string, lg *log.Logger) error {
	exporter := metrics.NewPrometheusExporter(metrics.DefaultRegistry, metrics.DefaultPrometheusConfig())
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	srv := &http.Server{Handler: exporter.Handler()}
	go srv.Serve(ln)

	lg.Info("serving metrics", "addr", ln.Addr().String(), "path", "/metrics")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	lg.Info("shutting down", "signal", sig.String())
	return srv.Close()
}
