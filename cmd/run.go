package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/cwbudde/peakfit/internal/export"
	"github.com/cwbudde/peakfit/internal/fit"
	"github.com/cwbudde/peakfit/internal/opt"
	"github.com/cwbudde/peakfit/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	runDataPath  string
	runModelName string
	runOptimizer string
	runParams    string
	runBounds    string
	runRange     string
	runNPoints   int
	runIters     int
	runPopSize   int
	runSeed      int64
	runRestarts  int
	runWeighted  bool
	runOutPath   string
	runDataDir   string
	runArchive   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fit a model to a dataset",
	Long: `Fits a catalog model to a two-column CSV dataset and prints the
fitted parameters. Optionally writes an xlsx report and persists the
fit as a resumable session.`,
	RunE: runFit,
}

func init() {
	runCmd.Flags().StringVar(&runDataPath, "data", "", "CSV data file with x,y columns (required)")
	runCmd.Flags().StringVar(&runModelName, "model", "gauss", "Model name (see catalog: gauss, gauss+linear, expdecay, linear, polyN)")
	runCmd.Flags().StringVar(&runOptimizer, "optimizer", "mayfly", "Optimizer backend: mayfly, neldermead, levmar")
	runCmd.Flags().StringVar(&runParams, "params", "", "Initial parameters, e.g. \"sigma=2,mean=80\" (unset ones are seeded from the data)")
	runCmd.Flags().StringVar(&runBounds, "bounds", "", "Parameter bounds, e.g. \"scale=0:1e6,sigma=0.1:50\"")
	runCmd.Flags().StringVar(&runRange, "range", "", "Fit range low:high (defaults to the data extent)")
	runCmd.Flags().IntVar(&runNPoints, "npoints", 0, "Curve samples in the report (default 501)")
	runCmd.Flags().IntVar(&runIters, "iters", 200, "Max optimizer iterations")
	runCmd.Flags().IntVar(&runPopSize, "pop", 30, "Population size (mayfly)")
	runCmd.Flags().Int64Var(&runSeed, "seed", 42, "Random seed")
	runCmd.Flags().IntVar(&runRestarts, "multistart", 0, "Extra jittered restart rounds")
	runCmd.Flags().BoolVar(&runWeighted, "weighted", false, "Use Poisson-weighted least squares")
	runCmd.Flags().StringVar(&runOutPath, "out", "", "Write an xlsx report to this path")
	runCmd.Flags().StringVar(&runDataDir, "data-dir", "", "Persist the fit as a session under this directory")
	runCmd.Flags().BoolVar(&runArchive, "archive-trace", false, "Compress the per-round trace after a successful fit")

	runCmd.MarkFlagRequired("data")
	rootCmd.AddCommand(runCmd)
}

func runFit(cmd *cobra.Command, args []string) error {
	ds, err := loadCSVDataset(runDataPath)
	if err != nil {
		return err
	}
	slog.Info("loaded dataset", "path", runDataPath, "samples", ds.Len())

	m, err := fit.ModelByName[float64](runModelName)
	if err != nil {
		return err
	}

	lo, hi, err := resolveFitRange(runRange, ds)
	if err != nil {
		return err
	}
	ranges := m.FitRanges()
	ranges[0] = [2]float64{lo, hi}
	if err := m.SetFitRanges(ranges); err != nil {
		return err
	}

	if runParams != "" {
		if err := applyInitialParams(m, runParams); err != nil {
			return err
		}
	}
	if runBounds != "" {
		if err := applyBounds(m, runBounds); err != nil {
			return err
		}
	}

	optimizer, err := opt.NewForBackend(runOptimizer, opt.Options{
		MaxIters: runIters,
		PopSize:  runPopSize,
		Seed:     runSeed,
	})
	if err != nil {
		return err
	}

	cfg := fit.DefaultFitConfig()
	cfg.Weighted = runWeighted
	cfg.Restarts = runRestarts
	cfg.Seed = runSeed

	var (
		sessions  *store.FSStore
		trace     *store.TraceWriter
		sessionID string
	)
	if runDataDir != "" {
		sessions, err = store.NewFSStore(runDataDir)
		if err != nil {
			return err
		}
		sessionID = uuid.New().String()
		trace, err = store.NewTraceWriter(sessions.BaseDir(), sessionID, false)
		if err != nil {
			slog.Warn("trace disabled", "error", err)
			trace = nil
		}
		defer func() {
			if trace != nil {
				trace.Close()
			}
		}()
	}
	if trace != nil {
		cfg.OnRound = func(round int, bestCost float64) {
			trace.Write(store.TraceEntry{Round: round, Cost: bestCost, Timestamp: time.Now()})
		}
	}

	// Ctrl-C stops the restart rounds but keeps the best fit so far.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	started := time.Now()
	result, err := fit.FitMultiStart(ctx, m, ds, optimizer, cfg)
	if err != nil {
		return err
	}

	fmt.Println(m)
	fmt.Printf("cost: %.6g -> %.6g  R^2: %.4f  (%d round(s), %s)\n",
		result.InitialCost, result.BestCost, result.RSquared,
		result.Rounds, result.Elapsed.Round(time.Millisecond))

	if sessions != nil {
		spec := store.FitSpec{
			Model:        runModelName,
			Optimizer:    runOptimizer,
			DataPath:     runDataPath,
			RangeLow:     lo,
			RangeHigh:    hi,
			Weighted:     runWeighted,
			Iters:        runIters,
			PopSize:      runPopSize,
			Seed:         runSeed,
			Restarts:     runRestarts,
			ArchiveTrace: runArchive,
		}
		sess := fit.SessionSnapshot(sessionID, spec, m, ds, result, started)
		if err := sessions.SaveSession(sessionID, sess); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		if trace != nil {
			trace.Close()
			trace = nil
			if runArchive {
				if err := store.ArchiveTrace(sessions.BaseDir(), sessionID); err != nil {
					slog.Warn("trace archive failed", "session", sessionID, "error", err)
				}
			}
		}
		fmt.Printf("session %s saved under %s\n", sessionID, sessions.BaseDir())
	}

	if runOutPath != "" {
		rep, err := export.NewReport(reportID(sessionID, runModelName), runOptimizer, m, runNPoints)
		if err != nil {
			return fmt.Errorf("failed to build report: %w", err)
		}
		if err := export.SaveXLSX(runOutPath, rep); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Printf("wrote %s\n", runOutPath)
	}

	return nil
}

func reportID(sessionID, modelName string) string {
	if sessionID != "" {
		return sessionID
	}
	return modelName
}
