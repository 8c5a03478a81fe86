package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/peakfit/internal/fit"
	"github.com/cwbudde/peakfit/internal/opt"
	"github.com/cwbudde/peakfit/internal/store"
)

// runJob executes a fit job in the background. When the server has a
// session store the finished fit is persisted under the job ID, with
// a per-round trace alongside it.
func (s *Server) runJob(ctx context.Context, jobID string) error {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.jobManager.RegisterCancel(jobID, cancel)
	defer s.jobManager.releaseCancel(jobID)

	err := s.jobManager.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
		j.StartTime = time.Now()
	})
	if err != nil {
		return err
	}

	slog.Info("starting job", "job_id", jobID, "model", job.Config.Model, "optimizer", job.Config.Optimizer)

	ds, err := loadJobDataset(job.Config, s.dataDir)
	if err != nil {
		s.markJobFailed(jobID, err)
		return err
	}
	slog.Info("loaded dataset", "job_id", jobID, "samples", ds.Len())

	m, err := buildJobModel(job.Config)
	if err != nil {
		s.markJobFailed(jobID, err)
		return err
	}

	optimizer, err := opt.NewForBackend(job.Config.Optimizer, opt.Options{
		MaxIters: job.Config.Iters,
		PopSize:  job.Config.PopSize,
		Seed:     job.Config.Seed,
	})
	if err != nil {
		s.markJobFailed(jobID, err)
		return err
	}

	var trace *store.TraceWriter
	if s.sessions != nil && s.baseDir != "" {
		trace, err = store.NewTraceWriter(s.baseDir, jobID, false)
		if err != nil {
			slog.Warn("trace disabled", "job_id", jobID, "error", err)
			trace = nil
		}
	}
	defer func() {
		if trace != nil {
			trace.Close()
		}
	}()

	cfg := fit.DefaultFitConfig()
	cfg.Weighted = job.Config.Weighted
	cfg.Restarts = job.Config.Restarts
	if job.Config.Seed != 0 {
		cfg.Seed = job.Config.Seed
	}
	cfg.OnRound = func(round int, bestCost float64) {
		now := time.Now()
		s.jobManager.UpdateJob(jobID, func(j *Job) {
			j.Rounds = round + 1
			j.BestCost = bestCost
		})
		if trace != nil {
			if werr := trace.Write(store.TraceEntry{Round: round, Cost: bestCost, Timestamp: now}); werr != nil {
				slog.Warn("trace write failed", "job_id", jobID, "error", werr)
			}
		}
		s.jobManager.broadcaster.Broadcast(ProgressEvent{
			JobID:     jobID,
			State:     StateRunning,
			Round:     round + 1,
			BestCost:  bestCost,
			Timestamp: now,
		})
	}

	start := time.Now()
	result, err := fit.FitMultiStart(ctx, m, ds, optimizer, cfg)
	if err != nil {
		if ctx.Err() != nil {
			s.markJobCancelled(jobID)
			return ctx.Err()
		}
		s.markJobFailed(jobID, err)
		return err
	}

	// A cancel that arrives mid-run still yields the best fit found so
	// far; record it under the cancelled state.
	finalState := StateCompleted
	if ctx.Err() != nil {
		finalState = StateCancelled
	}

	endTime := time.Now()
	err = s.jobManager.UpdateJob(jobID, func(j *Job) {
		j.State = finalState
		j.ParameterNames = m.ParameterNames()
		j.InitialParams = m.InitialValues()
		j.BestParams = result.BestParams
		j.BestCost = result.BestCost
		j.InitialCost = result.InitialCost
		j.RSquared = result.RSquared
		j.Rounds = result.Rounds
		j.Converged = result.Converged
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	if s.sessions != nil {
		if serr := s.saveJobSession(jobID, job.Config, m, ds, result); serr != nil {
			slog.Warn("session save failed", "job_id", jobID, "error", serr)
		} else if job.Config.ArchiveTrace && trace != nil {
			trace.Close()
			trace = nil
			if aerr := store.ArchiveTrace(s.baseDir, jobID); aerr != nil {
				slog.Warn("trace archive failed", "job_id", jobID, "error", aerr)
			}
		}
	}

	slog.Info("job completed",
		"job_id", jobID,
		"state", finalState,
		"elapsed", time.Since(start),
		"initial_cost", result.InitialCost,
		"best_cost", result.BestCost,
		"r_squared", result.RSquared,
		"rounds", result.Rounds,
	)

	s.jobManager.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     finalState,
		Round:     result.Rounds,
		BestCost:  result.BestCost,
		RSquared:  result.RSquared,
		Timestamp: time.Now(),
	})

	return nil
}

// saveJobSession persists the finished fit under the job ID.
func (s *Server) saveJobSession(jobID string, cfg JobConfig, m *fit.Model[float64], ds *fit.Dataset[float64], result *fit.FitResult) error {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	sess := fit.SessionSnapshot(jobID, cfg.FitSpec, m, ds, result, job.StartTime)
	return s.sessions.SaveSession(jobID, sess)
}

// markJobFailed marks a job as failed with an error message
func (s *Server) markJobFailed(jobID string, err error) {
	endTime := time.Now()
	s.jobManager.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("job failed", "job_id", jobID, "error", err)

	s.jobManager.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     StateFailed,
		Timestamp: endTime,
	})
}

// markJobCancelled marks a job as cancelled
func (s *Server) markJobCancelled(jobID string) {
	endTime := time.Now()
	s.jobManager.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("job cancelled", "job_id", jobID)

	s.jobManager.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     StateCancelled,
		Timestamp: endTime,
	})
}
