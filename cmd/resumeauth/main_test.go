package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	if got := percentile(samples, 0); got != 1 {
		t.Fatalf("p0: got %v", got)
	}
	if got := percentile(samples, 50); got != 5 {
		t.Fatalf("p50: got %v", got)
	}
	if got := percentile(samples, 100); got != 10 {
		t.Fatalf("p100: got %v", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Fatalf("empty: got %v", got)
	}
}

func TestComputeStatsSortsSamples(t *testing.T) {
	s := computeStats(time.Second, []time.Duration{30, 10, 20}, 1)
	if s.ops != 3 || s.failures != 1 || s.p50 != 20 || s.p99 != 20 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	if s.opsPerS != 3 {
		t.Fatalf("expected 3 ops/sec, got %v", s.opsPerS)
	}
}

func TestRunBenchWithMiniredis(t *testing.T) {
	var out bytes.Buffer
	err := runBench(context.Background(), benchOptions{users: 3, concurrency: 2, ops: 20}, &out)
	if err != nil {
		t.Fatalf("runBench failed: %v", err)
	}

	for _, want := range []string{"using miniredis", "verify: ops=20 failures=0", "refresh: ops=20 failures=0"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in output:\n%s", want, out.String())
		}
	}
}

func TestMigrateDownRequiresPositiveSteps(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--env-file", "does-not-exist.env", "migrate", "down", "--steps", "0"})
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--steps") {
		t.Fatalf("expected steps validation error, got %v", err)
	}
}
