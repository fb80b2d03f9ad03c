package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/dagrid/dagrid/grid"
	"github.com/dagrid/dagrid/kzg"
	"github.com/dagrid/dagrid/log"
	"github.com/dagrid/dagrid/metrics"
	"github.com/dagrid/dagrid/recovery"
)

// benchConfig holds the parsed flags of the bench subcommand.
type benchConfig struct {
	Rows      int
	Cols      int
	Extension int
	Duration  time.Duration
	Interval  time.Duration
	Workers   int
	Seed      int64
	LogLevel  string
}

// parseBenchFlags parses bench subcommand arguments. Returns the config,
// whether the caller should exit immediately, and the exit code.
func parseBenchFlags(args []string, stderr io.Writer) (benchConfig, bool, int) {
	var cfg benchConfig
	fs := flag.NewFlagSet("dagrid bench", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&cfg.Rows, "rows", 4, "matrix rows (power of two)")
	fs.IntVar(&cfg.Cols, "cols", 4, "systematic columns per row (power of two)")
	fs.IntVar(&cfg.Extension, "extension", 2, "erasure extension factor (power of two)")
	fs.DurationVar(&cfg.Duration, "duration", 5*time.Second, "how long to keep iterating")
	fs.DurationVar(&cfg.Interval, "interval", 2*time.Second, "period between metric reports")
	fs.IntVar(&cfg.Workers, "workers", 0, "worker count for row-parallel phases (0 = GOMAXPROCS)")
	fs.Int64Var(&cfg.Seed, "seed", 1, "deterministic seed for payloads and sampling")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log verbosity (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return cfg, true, 2
	}
	return cfg, false, 0
}

// logBackend bridges the metrics reporter to the structured logger,
// surfacing a few headline values per report.
type logBackend struct {
	lg *log.Logger
}

func (b logBackend) Report(snap map[string]float64) error {
	b.lg.Info("metrics report",
		"tracked", len(snap),
		"commits", snap["kzg.commits"],
		"proofs", snap["kzg.proofs_opened"],
		"cells", snap["recovery.cells_verified"],
		"sample_rate", snap["recovery.sample_rate.rate1"])
	return nil
}

// runBench loops the full pipeline for the configured duration and reports
// per-phase latency percentiles, cumulative counters and process stats.
func runBench(args []string, stdout, stderr io.Writer) int {
	cfg, exit, code := parseBenchFlags(args, stderr)
	if exit {
		return code
	}

	lg := log.NewTerminal(stderr, log.LevelFromString(cfg.LogLevel), false)
	log.SetDefault(lg)

	if err := bench(context.Background(), cfg, stdout, lg); err != nil {
		fmt.Fprintf(stderr, "dagrid bench: %v\n", err)
		return 1
	}
	return 0
}

func bench(ctx context.Context, cfg benchConfig, stdout io.Writer, lg *log.Logger) error {
	dims, err := grid.NewDimensions(uint16(cfg.Rows), uint16(cfg.Cols), uint16(cfg.Extension))
	if err != nil {
		return err
	}

	seed := fmt.Sprintf("dagrid bench seed %d", cfg.Seed)
	srs, err := kzg.NewInsecureSRS(dims.Cols()-1, dims.Cols(), []byte(seed))
	if err != nil {
		return err
	}
	eng, err := kzg.NewEngine(srs, dims, kzg.WithWorkers(cfg.Workers))
	if err != nil {
		return err
	}
	rec, err := recovery.NewReconstructor(dims, recovery.WithWorkers(cfg.Workers))
	if err != nil {
		return err
	}

	collector := metrics.NewMetricsCollector(metrics.CollectorConfig{
		MaxMetrics:       1 << 20,
		EnableHistograms: true,
	})
	reporter := metrics.NewMetricsReporter(cfg.Interval, metrics.DefaultRegistry)
	reporter.RegisterBackend("log", logBackend{lg: lg})
	reporter.Start()
	defer reporter.Stop()

	sys := metrics.NewSystemMetrics()
	sys.Collect()

	rng := rand.New(rand.NewSource(cfg.Seed))
	data := make([]byte, dims.Capacity()-1)
	rng.Read(data)

	lg.Info("bench starting", "dims", dims.String(), "duration", cfg.Duration.String())
	start := time.Now()
	iterations := 0
	for time.Since(start) < cfg.Duration {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Vary the payload so successive matrices differ.
		data[0] = byte(iterations)
		if err := benchIteration(ctx, eng, rec, collector, rng, dims, data); err != nil {
			return err
		}
		iterations++
		sys.Collect()
	}
	elapsed := time.Since(start)

	fmt.Fprintf(stdout, "iterations:  %d in %v (%.2f/s)\n",
		iterations, elapsed.Round(time.Millisecond), float64(iterations)/elapsed.Seconds())
	for _, phase := range []string{"build_ms", "commit_ms", "open_ms", "verify_ms", "reconstruct_ms"} {
		name := "bench." + phase
		fmt.Fprintf(stdout, "%-12s p50=%.2fms p95=%.2fms p99=%.2fms\n", phase,
			collector.HistogramPercentile(name, 50),
			collector.HistogramPercentile(name, 95),
			collector.HistogramPercentile(name, 99))
	}
	fmt.Fprintf(stdout, "commits:     %d\n", metrics.CommitsComputed.Value())
	fmt.Fprintf(stdout, "proofs:      %d\n", metrics.ProofsOpened.Value())
	fmt.Fprintf(stdout, "cells:       %d verified, %d rejected\n",
		metrics.CellsVerified.Value(), metrics.CellsRejected.Value())
	fmt.Fprintf(stdout, "sample rate: %.1f/s mean\n", metrics.SampleRate.RateMean())
	fmt.Fprintf(stdout, "goroutines:  %d\n", sys.GoRoutineCount())
	fmt.Fprintf(stdout, "heap:        %.1f MiB\n", float64(sys.MemoryUsage().HeapAlloc)/(1<<20))
	fmt.Fprintf(stdout, "cpu:         %.1f%%\n", sys.CPUUsage())
	return nil
}

// benchIteration runs one full pipeline pass: build, commit, open a
// cols-sized sample per row, verify, reconstruct.
func benchIteration(ctx context.Context, eng *kzg.Engine, rec *recovery.Reconstructor,
	collector *metrics.MetricsCollector, rng *rand.Rand, dims grid.Dimensions, data []byte) error {

	phase := time.Now()
	m, err := grid.Build(data, uint16(dims.Rows()), uint16(dims.Cols()), uint16(dims.Extension()))
	if err != nil {
		return err
	}
	collector.RecordHistogram("bench.build_ms", msSince(phase))

	phase = time.Now()
	comms, err := eng.CommitMatrix(ctx, m)
	if err != nil {
		return err
	}
	collector.RecordHistogram("bench.commit_ms", msSince(phase))

	phase = time.Now()
	samples := make([]recovery.SampleCell, 0, dims.Rows()*dims.Cols())
	for row := 0; row < dims.Rows(); row++ {
		coeffs, err := eng.RowPolynomial(m, row)
		if err != nil {
			return err
		}
		for _, col := range rng.Perm(dims.ExtendedCols())[:dims.Cols()] {
			sc, err := sampleAt(eng, m, coeffs, row, col)
			if err != nil {
				return err
			}
			samples = append(samples, sc)
		}
	}
	collector.RecordHistogram("bench.open_ms", msSince(phase))

	phase = time.Now()
	verifier, err := recovery.NewVerifier(eng, comms)
	if err != nil {
		return err
	}
	for _, sc := range samples {
		st, err := verifier.Submit(sc)
		if err != nil {
			return err
		}
		if st != recovery.StatusVerified {
			return fmt.Errorf("bench cell (%d,%d) got status %s", sc.Row, sc.Col, st)
		}
	}
	collector.RecordHistogram("bench.verify_ms", msSince(phase))

	phase = time.Now()
	res, err := rec.Reconstruct(ctx, verifier.VerifiedCells())
	if err != nil {
		return err
	}
	if !res.Complete() {
		return fmt.Errorf("bench reconstruction left %d rows missing", len(res.Missing))
	}
	collector.RecordHistogram("bench.reconstruct_ms", msSince(phase))
	return nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
