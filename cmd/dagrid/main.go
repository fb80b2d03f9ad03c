// Command dagrid is the command-line front end for the data-availability
// grid engine.
//
// Usage:
//
//	dagrid <command> [flags]
//
// Commands:
//
//	srs    generate or inspect a structured reference string
//	demo   run the full pipeline: build, commit, sample, verify, reconstruct
//	bench  measure pipeline throughput and report metrics
//
// Run "dagrid <command> -h" for the flags of each command.
package main

import (
	"fmt"
	"io"
	"os"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches to a subcommand and returns the process exit code. It
// takes the argument list without the program name and explicit output
// streams so it can be tested in isolation.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "srs":
		return runSRS(rest, stdout, stderr)
	case "demo":
		return runDemo(rest, stdout, stderr)
	case "bench":
		return runBench(rest, stdout, stderr)
	case "version", "-version", "--version":
		fmt.Fprintf(stdout, "dagrid %s (commit %s)\n", version, commit)
		return 0
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "dagrid: unknown command %q\n", cmd)
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: dagrid <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  srs      generate or inspect a structured reference string")
	fmt.Fprintln(w, "  demo     run the full pipeline on a synthetic payload")
	fmt.Fprintln(w, "  bench    measure pipeline throughput and report metrics")
	fmt.Fprintln(w, "  version  print version and exit")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run \"dagrid <command> -h\" for command flags.")
}
