package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dagrid/dagrid/kzg"
)

// srsConfig holds the parsed flags of the srs subcommand.
type srsConfig struct {
	Out     string
	Degree  int
	Batch   int
	Seed    string
	Inspect string
}

// parseSRSFlags parses srs subcommand arguments. Returns the config,
// whether the caller should exit immediately, and the exit code.
func parseSRSFlags(args []string, stderr io.Writer) (srsConfig, bool, int) {
	var cfg srsConfig
	fs := flag.NewFlagSet("dagrid srs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.Out, "out", "", "generate an SRS and write it to this path")
	fs.IntVar(&cfg.Degree, "degree", 255, "largest polynomial degree the SRS must cover")
	fs.IntVar(&cfg.Batch, "batch", 16, "largest multi-column opening set to support")
	fs.StringVar(&cfg.Seed, "seed", "", "tau derivation seed (required with -out)")
	fs.StringVar(&cfg.Inspect, "inspect", "", "print the parameters of an existing SRS file")

	if err := fs.Parse(args); err != nil {
		return cfg, true, 2
	}
	return cfg, false, 0
}

// runSRS generates or inspects an SRS transcript file.
func runSRS(args []string, stdout, stderr io.Writer) int {
	cfg, exit, code := parseSRSFlags(args, stderr)
	if exit {
		return code
	}

	switch {
	case cfg.Out != "" && cfg.Inspect != "":
		fmt.Fprintln(stderr, "dagrid srs: -out and -inspect are mutually exclusive")
		return 2
	case cfg.Out != "":
		return generateSRS(cfg, stdout, stderr)
	case cfg.Inspect != "":
		return inspectSRS(cfg.Inspect, stdout, stderr)
	default:
		fmt.Fprintln(stderr, "dagrid srs: one of -out or -inspect is required")
		return 2
	}
}

func generateSRS(cfg srsConfig, stdout, stderr io.Writer) int {
	if cfg.Seed == "" {
		fmt.Fprintln(stderr, "dagrid srs: -seed is required with -out")
		return 2
	}

	srs, err := kzg.NewInsecureSRS(cfg.Degree, cfg.Batch, []byte(cfg.Seed))
	if err != nil {
		fmt.Fprintf(stderr, "dagrid srs: %v\n", err)
		return 1
	}

	f, err := os.Create(cfg.Out)
	if err != nil {
		fmt.Fprintf(stderr, "dagrid srs: %v\n", err)
		return 1
	}
	if err := srs.Save(f); err != nil {
		f.Close()
		fmt.Fprintf(stderr, "dagrid srs: writing %s: %v\n", cfg.Out, err)
		return 1
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(stderr, "dagrid srs: closing %s: %v\n", cfg.Out, err)
		return 1
	}

	fmt.Fprintf(stdout, "wrote %s: degree %d, batch %d\n", cfg.Out, srs.MaxDegree(), srs.MaxBatch())
	fmt.Fprintln(stdout, "warning: seed-derived setup, the secret is recoverable; test use only")
	return 0
}

func inspectSRS(path string, stdout, stderr io.Writer) int {
	srs, err := kzg.LoadSRSFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "dagrid srs: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "%s: degree %d, batch %d\n", path, srs.MaxDegree(), srs.MaxBatch())
	return 0
}
