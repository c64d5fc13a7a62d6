package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cwbudde/gonlopt/internal/nlopt"
	"github.com/cwbudde/gonlopt/internal/problems"
)

func TestBenchmark(t *testing.T) {
	stops := []nlopt.StopCond{nlopt.MaxEval(2000), nlopt.XTolRel(1e-8)}
	algs := []string{"LD_MMA", "LN_COBYLA", "LD_SLSQP"}

	rows, err := benchmark(context.Background(), "tutorial", algs, stops, 0, 2)
	if err != nil {
		t.Fatalf("benchmark failed: %v", err)
	}
	if len(rows) != len(algs) {
		t.Fatalf("Expected %d rows, got %d", len(algs), len(rows))
	}
	for i, r := range rows {
		if r.Algorithm != algs[i] {
			t.Errorf("Row %d: expected %s, got %s", i, algs[i], r.Algorithm)
		}
		if r.Err != nil {
			t.Errorf("%s failed: %v", r.Algorithm, r.Err)
			continue
		}
		if r.Evaluations == 0 {
			t.Errorf("%s reported no evaluations", r.Algorithm)
		}
	}
}

func TestBenchmark_FailingAlgorithmIsARow(t *testing.T) {
	// LD_LBFGS cannot handle the tutorial's nonlinear constraints
	rows, err := benchmark(context.Background(), "tutorial", []string{"LD_LBFGS", "LD_MMA"},
		[]nlopt.StopCond{nlopt.MaxEval(500)}, 0, 1)
	if err != nil {
		t.Fatalf("benchmark failed: %v", err)
	}
	if rows[0].Err == nil {
		t.Error("Expected LD_LBFGS to fail on a constrained problem")
	}
	if rows[1].Err != nil {
		t.Errorf("LD_MMA failed: %v", rows[1].Err)
	}
}

func TestBenchmark_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := benchmark(ctx, "sphere", []string{"LD_MMA"}, []nlopt.StopCond{nlopt.MaxEval(100)}, 0, 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestSortBench(t *testing.T) {
	rows := []benchRow{
		{Algorithm: "B", Err: errors.New("x")},
		{Algorithm: "C", Value: 3},
		{Algorithm: "A", Err: errors.New("y")},
		{Algorithm: "D", Value: 1},
	}

	sortBench(rows, nlopt.Minimize)
	got := []string{rows[0].Algorithm, rows[1].Algorithm, rows[2].Algorithm, rows[3].Algorithm}
	if strings.Join(got, ",") != "D,C,A,B" {
		t.Errorf("Minimize order: got %v", got)
	}

	sortBench(rows, nlopt.Maximize)
	if rows[0].Algorithm != "C" {
		t.Errorf("Maximize should put the largest value first, got %s", rows[0].Algorithm)
	}
}

func TestDefaultBenchAlgorithms(t *testing.T) {
	for _, name := range problems.Names() {
		p, err := problems.Get(name)
		if err != nil {
			t.Fatal(err)
		}
		for _, alg := range defaultBenchAlgorithms(p) {
			if _, err := nlopt.ParseAlgorithm(alg); err != nil {
				t.Errorf("%s: %v", name, err)
			}
		}
	}
}

func TestPrintBench(t *testing.T) {
	p, err := problems.Get("sphere")
	if err != nil {
		t.Fatal(err)
	}
	rows := []benchRow{
		{Algorithm: "LN_COBYLA", Status: "XTolReached", Value: 1e-6, Evaluations: 80},
		{Algorithm: "LD_LBFGS", Err: errors.New("invalid arguments")},
	}

	var buf bytes.Buffer
	printBench(&buf, p, rows)
	out := buf.String()
	for _, want := range []string{"Problem sphere (minimize, 3 variables, 0 constraints)", "ALGORITHM", "LN_COBYLA", "LD_LBFGS", "invalid arguments"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
}

func TestListAlgorithmsAndProblems(t *testing.T) {
	var buf bytes.Buffer
	if err := listAlgorithms(&buf, "ld_mma"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "LD_MMA") || !strings.Contains(buf.String(), "yes") {
		t.Errorf("Unexpected algorithms output:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "LN_COBYLA") {
		t.Error("Filter should exclude LN_COBYLA")
	}

	buf.Reset()
	if err := listProblems(&buf); err != nil {
		t.Fatal(err)
	}
	for _, name := range problems.Names() {
		if !strings.Contains(buf.String(), name) {
			t.Errorf("Expected %s in problems output", name)
		}
	}
}
