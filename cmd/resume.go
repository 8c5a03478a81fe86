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
	"github.com/spf13/cobra"
)

var (
	resumeDataDir   string
	resumeDataPath  string
	resumeOptimizer string
	resumeIters     int
	resumeRestarts  int
	resumeOutPath   string
)

var resumeCmd = &cobra.Command{
	Use:   "resume [session-id]",
	Short: "Resume a saved fit",
	Long: `Reloads a saved session and fits again with the previously fitted
parameters as the new initial guess. The dataset must be the one the
session was fitted against; the optimizer and iteration budget may
change between runs.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeDataDir, "data-dir", "./data", "Session store directory")
	resumeCmd.Flags().StringVar(&resumeDataPath, "data", "", "CSV data file (defaults to the session's dataPath)")
	resumeCmd.Flags().StringVar(&resumeOptimizer, "optimizer", "", "Override the optimizer backend")
	resumeCmd.Flags().IntVar(&resumeIters, "iters", 0, "Override max optimizer iterations")
	resumeCmd.Flags().IntVar(&resumeRestarts, "multistart", 0, "Extra jittered restart rounds")
	resumeCmd.Flags().StringVar(&resumeOutPath, "out", "", "Write an xlsx report to this path")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	sessions, err := store.NewFSStore(resumeDataDir)
	if err != nil {
		return err
	}

	sess, err := sessions.LoadSession(sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	dataPath := resumeDataPath
	if dataPath == "" {
		dataPath = sess.Config.DataPath
	}
	if dataPath == "" {
		return fmt.Errorf("session has no stored dataPath, pass --data")
	}
	ds, err := loadCSVDataset(dataPath)
	if err != nil {
		return err
	}

	// Apply overrides to the stored spec, then check the result still
	// describes the same fit. A changed model or dataset is rejected.
	spec := sess.Config
	spec.DataPath = dataPath
	if resumeOptimizer != "" {
		spec.Optimizer = resumeOptimizer
	}
	if resumeIters > 0 {
		spec.Iters = resumeIters
	}
	spec.Restarts = resumeRestarts

	if err := sess.IsCompatible(spec, ds.Digest()); err != nil {
		return fmt.Errorf("cannot resume: %w", err)
	}

	m, err := fit.ModelFromSession(sess)
	if err != nil {
		return fmt.Errorf("failed to rebuild model: %w", err)
	}
	// The previous best becomes the new starting point.
	if err := m.SetInitialParameters(sess.FittedParams); err != nil {
		return err
	}

	optimizer, err := opt.NewForBackend(spec.Optimizer, opt.Options{
		MaxIters: spec.Iters,
		PopSize:  spec.PopSize,
		Seed:     spec.Seed,
	})
	if err != nil {
		return err
	}

	cfg := fit.DefaultFitConfig()
	cfg.Weighted = spec.Weighted
	cfg.Restarts = spec.Restarts
	cfg.Seed = spec.Seed

	trace, err := store.NewTraceWriter(sessions.BaseDir(), sessionID, true)
	if err != nil {
		slog.Warn("trace disabled", "error", err)
		trace = nil
	}
	defer func() {
		if trace != nil {
			trace.Close()
		}
	}()
	if trace != nil {
		// Rounds continue the session's numbering.
		offset := sess.Rounds
		cfg.OnRound = func(round int, bestCost float64) {
			trace.Write(store.TraceEntry{Round: offset + round, Cost: bestCost, Timestamp: time.Now()})
		}
	}

	slog.Info("resuming fit",
		"session", sessionID,
		"model", spec.Model,
		"optimizer", spec.Optimizer,
		"previous_best", sess.BestCost,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	result, err := fit.FitMultiStart(ctx, m, ds, optimizer, cfg)
	if err != nil {
		return err
	}

	fmt.Println(m)
	fmt.Printf("cost: %.6g -> %.6g  R^2: %.4f  (%d round(s), %s)\n",
		sess.BestCost, result.BestCost, result.RSquared,
		result.Rounds, result.Elapsed.Round(time.Millisecond))

	updated := fit.SessionSnapshot(sessionID, spec, m, ds, result, sess.CreatedAt)
	updated.Rounds = sess.Rounds + result.Rounds
	if err := sessions.SaveSession(sessionID, updated); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if trace != nil {
		trace.Close()
		trace = nil
		if spec.ArchiveTrace {
			if err := store.ArchiveTrace(sessions.BaseDir(), sessionID); err != nil {
				slog.Warn("trace archive failed", "session", sessionID, "error", err)
			}
		}
	}
	fmt.Printf("session %s updated\n", sessionID)

	if resumeOutPath != "" {
		rep, err := export.NewReport(sessionID, spec.Optimizer, m, 0)
		if err != nil {
			return fmt.Errorf("failed to build report: %w", err)
		}
		if err := export.SaveXLSX(resumeOutPath, rep); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Printf("wrote %s\n", resumeOutPath)
	}

	return nil
}
