package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/gonlopt/internal/config"
	"github.com/cwbudde/gonlopt/internal/opt"
	"github.com/cwbudde/gonlopt/internal/store"
)

var (
	configPath     string
	problemName    string
	optimizerName  string
	algorithm      string
	localAlgorithm string
	x0             []float64
	seed           int64
	maxEval        int
	maxTime        string
	xtolRel        float64
	ftolRel        float64
	mayflyIters    int
	mayflyPop      int
	patience       int
	traceEvery     int
	warmStart      string
	runDataDir     string
	noSave         bool
	jsonOutput     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single optimization",
	Long: `Runs one optimization described by a YAML config file and/or flags.
Flags override values from the config file. The finished run is saved to the
run store unless --no-save is given. Interrupting the command stops the
optimizer at its next objective evaluation and records the run as cancelled.`,
	Example: `  gonlopt run --problem tutorial --algorithm LD_MMA
  gonlopt run --config run.yaml --trace-every 10
  gonlopt run --problem rastrigin --optimizer hybrid --seed 7
  gonlopt run --problem rosenbrock --warm-start <run-id> --algorithm LN_BOBYQA`,
	RunE: runOptimization,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML run configuration")
	f.StringVar(&problemName, "problem", "", "Problem name (see 'gonlopt problems')")
	f.StringVar(&optimizerName, "optimizer", "", "Optimizer: nlopt, mayfly, hybrid (default nlopt)")
	f.StringVar(&algorithm, "algorithm", "", "NLopt algorithm, e.g. LD_MMA (default: the problem's)")
	f.StringVar(&localAlgorithm, "local-algorithm", "", "Subsidiary algorithm for AUGLAG and MLSL")
	f.Float64SliceVar(&x0, "x0", nil, "Starting point, comma separated")
	f.Int64Var(&seed, "seed", 0, "Random seed (0 leaves NLopt's generator unseeded)")
	f.IntVar(&maxEval, "max-eval", 0, "Maximum number of objective evaluations")
	f.StringVar(&maxTime, "max-time", "", "Maximum run time, e.g. 30s")
	f.Float64Var(&xtolRel, "xtol-rel", 0, "Relative tolerance on x")
	f.Float64Var(&ftolRel, "ftol-rel", 0, "Relative tolerance on the objective")
	f.IntVar(&mayflyIters, "mayfly-iters", 0, "Mayfly iterations")
	f.IntVar(&mayflyPop, "mayfly-pop", 0, "Mayfly population size")
	f.IntVar(&patience, "patience", 0, "Stop after this many evaluations without significant improvement (0 disables)")
	f.IntVar(&traceEvery, "trace-every", 0, "Record every Nth evaluation in the run trace (0 disables)")
	f.StringVar(&warmStart, "warm-start", "", "Start from the best point of a stored run")
	f.StringVar(&runDataDir, "data-dir", "./data", "Base directory of the run store")
	f.BoolVar(&noSave, "no-save", false, "Do not save the run")
	f.BoolVar(&jsonOutput, "json", false, "Print the run record as JSON")

	rootCmd.AddCommand(runCmd)
}

func runOptimization(cmd *cobra.Command, args []string) error {
	cfg, err := buildRunConfig(cmd)
	if err != nil {
		return err
	}

	var runStore *store.FSStore
	if !noSave || warmStart != "" {
		runStore, err = store.NewFSStore(runDataDir)
		if err != nil {
			return fmt.Errorf("failed to open run store: %w", err)
		}
	}

	if warmStart != "" {
		if err := applyWarmStart(runStore, warmStart, cfg); err != nil {
			return err
		}
	}
	if noSave {
		runStore = nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec, err := executeRun(ctx, cfg, runStore, uuid.New().String())
	if rec != nil {
		if perr := printRecord(cmd.OutOrStdout(), rec, jsonOutput); perr != nil {
			return perr
		}
	}
	return err
}

// buildRunConfig merges the config file, if any, with explicitly set flags
func buildRunConfig(cmd *cobra.Command) (*config.RunConfig, error) {
	cfg := &config.RunConfig{}
	if configPath != "" {
		data, err := config.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if cfg, err = config.Decode(data); err != nil {
			return nil, err
		}
	}

	f := cmd.Flags()
	if f.Changed("problem") {
		cfg.Problem = problemName
	}
	if f.Changed("optimizer") {
		cfg.Optimizer = optimizerName
	}
	if f.Changed("algorithm") {
		cfg.Algorithm = algorithm
	}
	if f.Changed("local-algorithm") {
		cfg.LocalAlgorithm = localAlgorithm
	}
	if f.Changed("x0") {
		cfg.X0 = x0
	}
	if f.Changed("seed") {
		cfg.Seed = seed
	}
	if f.Changed("max-eval") {
		cfg.Stop.MaxEval = maxEval
	}
	if f.Changed("max-time") {
		cfg.Stop.MaxTime = maxTime
	}
	if f.Changed("xtol-rel") {
		cfg.Stop.XTolRel = xtolRel
	}
	if f.Changed("ftol-rel") {
		cfg.Stop.FTolRel = ftolRel
	}
	if f.Changed("mayfly-iters") {
		cfg.Mayfly.Iterations = mayflyIters
	}
	if f.Changed("mayfly-pop") {
		cfg.Mayfly.Population = mayflyPop
	}
	if f.Changed("patience") {
		cfg.Convergence.Patience = patience
	}
	if f.Changed("trace-every") {
		cfg.TraceEvery = traceEvery
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyWarmStart replaces cfg's starting point with the best point of a
// stored run of the same problem
func applyWarmStart(runStore store.Store, runID string, cfg *config.RunConfig) error {
	rec, err := runStore.LoadRun(runID)
	if err != nil {
		return fmt.Errorf("failed to load warm-start run: %w", err)
	}
	if err := rec.IsCompatible(*cfg); err != nil {
		return fmt.Errorf("cannot warm-start from %s: %w", runID, err)
	}

	slog.Info("Warm-starting from stored run", "run_id", runID, "value", rec.Value, "x0", rec.X)
	cfg.X0 = append([]float64(nil), rec.X...)
	return nil
}

// executeRun runs cfg to completion. The returned record describes the run
// even when it failed or was cancelled; it is saved when runStore is not nil.
func executeRun(ctx context.Context, cfg *config.RunConfig, runStore *store.FSStore, runID string) (*store.RunRecord, error) {
	logger := slog.Default().With("run_id", runID)

	p, err := cfg.BuildProblem()
	if err != nil {
		return nil, err
	}
	optimizer, err := cfg.BuildOptimizer(logger)
	if err != nil {
		return nil, err
	}

	var (
		obs   opt.Observer
		trace *store.TraceWriter
	)
	if runStore != nil && cfg.TraceEvery > 0 {
		trace, err = store.NewTraceWriter(runStore.BaseDir(), runID, cfg.TraceEvery)
		if err != nil {
			return nil, err
		}
		obs = trace.Observe
	}

	res, runErr := optimizer.Run(ctx, p, obs)

	if trace != nil {
		if err := trace.Close(); err != nil {
			logger.Warn("Failed to write trace", "error", err)
		}
	}

	rec := store.NewRunRecord(runID, *cfg, res, runErr, runErr != nil && ctx.Err() != nil)
	if runStore != nil {
		if err := runStore.SaveRun(rec); err != nil {
			return rec, fmt.Errorf("failed to save run: %w", err)
		}
		logger.Info("Run saved", "status", rec.Status, "path", runStore.BaseDir())
	}
	return rec, runErr
}

// printRecord writes a run record as text or indented JSON
func printRecord(w io.Writer, rec *store.RunRecord, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	fmt.Fprintf(w, "Run %s: %s\n", rec.ID, rec.Status)
	fmt.Fprintf(w, "  Problem:     %s\n", rec.Config.Problem)
	fmt.Fprintf(w, "  Optimizer:   %s\n", rec.Config.Optimizer)
	if rec.Algorithm != "" {
		fmt.Fprintf(w, "  Algorithm:   %s\n", rec.Algorithm)
	}
	if rec.Error != "" {
		fmt.Fprintf(w, "  Error:       %s\n", rec.Error)
		return nil
	}
	fmt.Fprintf(w, "  Value:       %.10g\n", rec.Value)
	fmt.Fprintf(w, "  X:           %v\n", rec.X)
	fmt.Fprintf(w, "  Evaluations: %d in %s\n", rec.Evaluations, rec.Elapsed)
	return nil
}
