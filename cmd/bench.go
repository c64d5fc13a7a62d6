package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/gonlopt/internal/nlopt"
	"github.com/cwbudde/gonlopt/internal/opt"
	"github.com/cwbudde/gonlopt/internal/problems"
)

var (
	benchProblem    string
	benchAlgorithms []string
	benchParallel   int
	benchMaxEval    int
	benchXTolRel    float64
	benchSeed       int64
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Compare NLopt algorithms on one problem",
	Long: `Runs a problem with several NLopt algorithms concurrently and prints
the results sorted from best to worst. Algorithms that fail are listed last
with their error. Each algorithm runs on its own problem instance.

Setting --seed seeds NLopt's process-wide generator once; with --parallel
greater than 1 stochastic algorithms still draw from the shared generator in
an unspecified order.`,
	Example: `  gonlopt bench --problem tutorial
  gonlopt bench --problem rosenbrock --algorithms LD_LBFGS,LN_BOBYQA --max-eval 2000`,
	RunE: runBench,
}

func init() {
	f := benchCmd.Flags()
	f.StringVar(&benchProblem, "problem", "", "Problem name (required)")
	f.StringSliceVar(&benchAlgorithms, "algorithms", nil, "Algorithms to compare (default depends on the problem)")
	f.IntVar(&benchParallel, "parallel", runtime.NumCPU(), "Maximum number of concurrent runs")
	f.IntVar(&benchMaxEval, "max-eval", 20000, "Maximum evaluations per run")
	f.Float64Var(&benchXTolRel, "xtol-rel", 1e-6, "Relative tolerance on x")
	f.Int64Var(&benchSeed, "seed", 0, "Random seed (0 leaves NLopt's generator unseeded)")
	_ = benchCmd.MarkFlagRequired("problem")

	rootCmd.AddCommand(benchCmd)
}

// benchRow is the outcome of one algorithm in a benchmark
type benchRow struct {
	Algorithm   string
	Status      string
	Value       float64
	Evaluations int
	Elapsed     time.Duration
	Err         error
}

func runBench(cmd *cobra.Command, args []string) error {
	p, err := problems.Get(benchProblem)
	if err != nil {
		return err
	}

	algs := benchAlgorithms
	if len(algs) == 0 {
		algs = defaultBenchAlgorithms(p)
	}
	for _, name := range algs {
		if _, err := nlopt.ParseAlgorithm(name); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stops := []nlopt.StopCond{nlopt.MaxEval(benchMaxEval)}
	if benchXTolRel > 0 {
		stops = append(stops, nlopt.XTolRel(benchXTolRel))
	}
	rows, err := benchmark(ctx, benchProblem, algs, stops, benchSeed, benchParallel)
	if err != nil {
		return err
	}

	printBench(cmd.OutOrStdout(), p, rows)
	return nil
}

// defaultBenchAlgorithms picks algorithms that can handle p's constraints
func defaultBenchAlgorithms(p *problems.Problem) []string {
	if len(p.Constraints) > 0 {
		return []string{"LD_MMA", "LD_SLSQP", "LN_COBYLA", "LD_CCSAQ", "AUGLAG"}
	}
	return []string{
		"LD_LBFGS", "LD_MMA", "LN_BOBYQA", "LN_NELDERMEAD",
		"LN_SBPLX", "LN_COBYLA", "GN_DIRECT_L", "GN_CRS2_LM",
	}
}

// benchmark runs problemName once per algorithm with at most parallel runs at
// a time. A failing algorithm becomes a row; only cancellation aborts.
func benchmark(ctx context.Context, problemName string, algs []string, stops []nlopt.StopCond, seed int64, parallel int) ([]benchRow, error) {
	if parallel < 1 {
		parallel = 1
	}
	if seed != 0 {
		nlopt.Srand(uint64(seed))
	}

	rows := make([]benchRow, len(algs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i, name := range algs {
		g.Go(func() error {
			p, err := problems.Get(problemName)
			if err != nil {
				return err
			}

			optimizer := opt.NewNLopt(opt.NLoptOptions{
				Algorithm: name,
				Stops:     stops,
				Logger:    slog.Default().With("algorithm", name),
			})

			start := time.Now()
			res, err := optimizer.Run(gctx, p, nil)
			row := benchRow{Algorithm: name, Elapsed: time.Since(start), Err: err}
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Debug("Benchmark run failed", "algorithm", name, "error", err)
			} else {
				row.Status = res.Status
				row.Value = res.Value
				row.Evaluations = res.Evaluations
				row.Elapsed = res.Elapsed
			}
			rows[i] = row
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("benchmark interrupted: %w", err)
		}
		return nil, err
	}
	return rows, nil
}

// sortBench orders rows best first for the problem's sense, failures last
func sortBench(rows []benchRow, sense nlopt.ObjectiveType) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if (a.Err == nil) != (b.Err == nil) {
			return a.Err == nil
		}
		if a.Err != nil {
			return a.Algorithm < b.Algorithm
		}
		if sense == nlopt.Maximize {
			return a.Value > b.Value
		}
		return a.Value < b.Value
	})
}

// printBench writes the sorted results as a table
func printBench(w io.Writer, p *problems.Problem, rows []benchRow) {
	sortBench(rows, p.Sense)

	fmt.Fprintf(w, "Problem %s (%s, %d variables, %d constraints)\n\n",
		p.Name, p.Sense, p.Dim, len(p.Constraints))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ALGORITHM\tSTATUS\tVALUE\tGAP\tEVALS\tTIME")
	for _, r := range rows {
		if r.Err != nil {
			fmt.Fprintf(tw, "%s\terror\t-\t-\t-\t%s\n", r.Algorithm, r.Err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%.10g\t%.3g\t%d\t%s\n",
			r.Algorithm, r.Status, r.Value, math.Abs(r.Value-p.OptimumValue),
			r.Evaluations, r.Elapsed.Round(time.Microsecond))
	}
	tw.Flush()
}
