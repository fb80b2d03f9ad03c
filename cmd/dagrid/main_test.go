package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// --- dispatch tests ---

func TestRun_NoArgs(t *testing.T) {
	var out, errBuf bytes.Buffer
	code := run(nil, &out, &errBuf)
	if code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	if !strings.Contains(errBuf.String(), "Usage:") {
		t.Error("expected usage on stderr")
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var out, errBuf bytes.Buffer
	code := run([]string{"frobnicate"}, &out, &errBuf)
	if code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	if !strings.Contains(errBuf.String(), "unknown command") {
		t.Errorf("stderr = %q, want unknown command notice", errBuf.String())
	}
}

func TestRun_Version(t *testing.T) {
	var out, errBuf bytes.Buffer
	code := run([]string{"version"}, &out, &errBuf)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(out.String(), "dagrid") {
		t.Errorf("stdout = %q, want version line", out.String())
	}
}

func TestRun_Help(t *testing.T) {
	var out, errBuf bytes.Buffer
	code := run([]string{"help"}, &out, &errBuf)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(out.String(), "Commands:") {
		t.Error("expected command list on stdout")
	}
}

// --- flag parsing tests ---

func TestParseDemoFlags_Defaults(t *testing.T) {
	var errBuf bytes.Buffer
	cfg, exit, code := parseDemoFlags(nil, &errBuf)
	if exit {
		t.Fatalf("unexpected exit with code %d", code)
	}
	if cfg.Rows != 4 || cfg.Cols != 4 || cfg.Extension != 2 {
		t.Errorf("dims = %dx%d ext %d, want 4x4 ext 2", cfg.Rows, cfg.Cols, cfg.Extension)
	}
	if cfg.Drop != -1 {
		t.Errorf("Drop = %d, want -1", cfg.Drop)
	}
	if cfg.Seed != 1 {
		t.Errorf("Seed = %d, want 1", cfg.Seed)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.Blob {
		t.Error("Blob should default to false")
	}
}

func TestParseDemoFlags_AllFlags(t *testing.T) {
	var errBuf bytes.Buffer
	args := []string{
		"-rows", "8", "-cols", "16", "-extension", "4",
		"-payload", "100", "-drop", "3", "-seed", "42",
		"-srs", "/tmp/srs.txt", "-workers", "2",
		"-log-level", "debug", "-metrics-addr", "127.0.0.1:0",
	}
	cfg, exit, _ := parseDemoFlags(args, &errBuf)
	if exit {
		t.Fatal("unexpected exit")
	}
	if cfg.Rows != 8 || cfg.Cols != 16 || cfg.Extension != 4 {
		t.Errorf("dims = %dx%d ext %d, want 8x16 ext 4", cfg.Rows, cfg.Cols, cfg.Extension)
	}
	if cfg.Payload != 100 || cfg.Drop != 3 || cfg.Seed != 42 {
		t.Errorf("payload/drop/seed = %d/%d/%d, want 100/3/42", cfg.Payload, cfg.Drop, cfg.Seed)
	}
	if cfg.SRSPath != "/tmp/srs.txt" {
		t.Errorf("SRSPath = %q, want /tmp/srs.txt", cfg.SRSPath)
	}
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Workers)
	}
	if cfg.MetricsAddr != "127.0.0.1:0" {
		t.Errorf("MetricsAddr = %q", cfg.MetricsAddr)
	}
}

func TestParseDemoFlags_InvalidFlag(t *testing.T) {
	var errBuf bytes.Buffer
	_, exit, code := parseDemoFlags([]string{"-no-such-flag"}, &errBuf)
	if !exit {
		t.Fatal("expected exit for unknown flag")
	}
	if code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
}

func TestParseBenchFlags_Defaults(t *testing.T) {
	var errBuf bytes.Buffer
	cfg, exit, code := parseBenchFlags(nil, &errBuf)
	if exit {
		t.Fatalf("unexpected exit with code %d", code)
	}
	if cfg.Duration != 5*time.Second {
		t.Errorf("Duration = %v, want 5s", cfg.Duration)
	}
	if cfg.Interval != 2*time.Second {
		t.Errorf("Interval = %v, want 2s", cfg.Interval)
	}
	if cfg.Rows != 4 || cfg.Cols != 4 {
		t.Errorf("dims = %dx%d, want 4x4", cfg.Rows, cfg.Cols)
	}
}

func TestParseSRSFlags_Defaults(t *testing.T) {
	var errBuf bytes.Buffer
	cfg, exit, code := parseSRSFlags(nil, &errBuf)
	if exit {
		t.Fatalf("unexpected exit with code %d", code)
	}
	if cfg.Degree != 255 || cfg.Batch != 16 {
		t.Errorf("degree/batch = %d/%d, want 255/16", cfg.Degree, cfg.Batch)
	}
	if cfg.Out != "" || cfg.Inspect != "" {
		t.Error("Out and Inspect should default to empty")
	}
}

// --- srs subcommand tests ---

func TestRunSRS_RequiresMode(t *testing.T) {
	var out, errBuf bytes.Buffer
	if code := runSRS(nil, &out, &errBuf); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	if !strings.Contains(errBuf.String(), "-out or -inspect") {
		t.Errorf("stderr = %q, want mode requirement notice", errBuf.String())
	}
}

func TestRunSRS_ModesExclusive(t *testing.T) {
	var out, errBuf bytes.Buffer
	args := []string{"-out", "a", "-inspect", "b"}
	if code := runSRS(args, &out, &errBuf); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
}

func TestRunSRS_GenerateRequiresSeed(t *testing.T) {
	var out, errBuf bytes.Buffer
	args := []string{"-out", filepath.Join(t.TempDir(), "srs.txt")}
	if code := runSRS(args, &out, &errBuf); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	if !strings.Contains(errBuf.String(), "-seed") {
		t.Errorf("stderr = %q, want seed requirement notice", errBuf.String())
	}
}

func TestRunSRS_GenerateAndInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "srs.txt")

	var out, errBuf bytes.Buffer
	args := []string{"-out", path, "-degree", "7", "-batch", "4", "-seed", "cli test"}
	if code := runSRS(args, &out, &errBuf); code != 0 {
		t.Fatalf("generate exit code = %d, stderr: %s", code, errBuf.String())
	}
	if !strings.Contains(out.String(), "degree 7, batch 4") {
		t.Errorf("generate output = %q, want parameters line", out.String())
	}

	out.Reset()
	errBuf.Reset()
	if code := runSRS([]string{"-inspect", path}, &out, &errBuf); code != 0 {
		t.Fatalf("inspect exit code = %d, stderr: %s", code, errBuf.String())
	}
	if !strings.Contains(out.String(), "degree 7, batch 4") {
		t.Errorf("inspect output = %q, want parameters line", out.String())
	}
}

func TestRunSRS_InspectMissingFile(t *testing.T) {
	var out, errBuf bytes.Buffer
	args := []string{"-inspect", filepath.Join(t.TempDir(), "nope.txt")}
	if code := runSRS(args, &out, &errBuf); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

// --- end-to-end subcommand tests ---

func TestRunDemo_EndToEnd(t *testing.T) {
	var out, errBuf bytes.Buffer
	args := []string{"-rows", "2", "-cols", "2", "-extension", "2", "-seed", "7"}
	if code := run(append([]string{"demo"}, args...), &out, &errBuf); code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, errBuf.String())
	}
	if !strings.Contains(out.String(), "round trip:  ok") {
		t.Errorf("stdout = %q, want round trip confirmation", out.String())
	}
	if !strings.Contains(out.String(), "data root:   0x") {
		t.Error("stdout missing data root line")
	}
}

func TestRunDemo_BadDimensions(t *testing.T) {
	var out, errBuf bytes.Buffer
	args := []string{"demo", "-rows", "3"} // not a power of two
	if code := run(args, &out, &errBuf); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(errBuf.String(), "dagrid demo:") {
		t.Errorf("stderr = %q, want demo error prefix", errBuf.String())
	}
}

func TestRunBench_Short(t *testing.T) {
	var out, errBuf bytes.Buffer
	args := []string{
		"bench", "-rows", "2", "-cols", "2",
		"-duration", "50ms", "-interval", "20ms", "-seed", "3",
	}
	if code := run(args, &out, &errBuf); code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, errBuf.String())
	}
	if !strings.Contains(out.String(), "iterations:") {
		t.Errorf("stdout = %q, want iteration summary", out.String())
	}
	if !strings.Contains(out.String(), "commit_ms") {
		t.Error("stdout missing per-phase percentile lines")
	}
}
