package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cwbudde/peakfit/internal/store"
	"github.com/google/uuid"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// InlineData carries samples submitted directly in the job request,
// as an alternative to a dataPath the server reads from disk.
type InlineData struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// JobConfig configures one fit job. The embedded FitSpec is the
// persisted subset; the remaining fields only matter while the job
// runs.
type JobConfig struct {
	store.FitSpec

	// Data holds inline samples; takes precedence over DataPath.
	Data *InlineData `json:"data,omitempty"`

	// InitialParams overrides the data-derived seed when set.
	InitialParams []float64 `json:"initialParams,omitempty"`

	// LowerBounds and UpperBounds override the default box bounds.
	LowerBounds []float64 `json:"lowerBounds,omitempty"`
	UpperBounds []float64 `json:"upperBounds,omitempty"`
}

// Job represents a fit job
type Job struct {
	ID             string     `json:"id"`
	State          JobState   `json:"state"`
	Config         JobConfig  `json:"config"`
	ParameterNames []string   `json:"parameterNames,omitempty"`
	InitialParams  []float64  `json:"initialParams,omitempty"`
	BestParams     []float64  `json:"bestParams,omitempty"`
	BestCost       float64    `json:"bestCost"`
	InitialCost    float64    `json:"initialCost"`
	RSquared       float64    `json:"rSquared"`
	Rounds         int        `json:"rounds"`
	Converged      bool       `json:"converged"`
	StartTime      time.Time  `json:"startTime"`
	EndTime        *time.Time `json:"endTime,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// JobManager manages the lifecycle of jobs
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	cancels     map[string]context.CancelFunc
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		cancels:     make(map[string]context.CancelFunc),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob creates a new job with the given configuration
func (jm *JobManager) CreateJob(config JobConfig) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Config:    config,
		StartTime: time.Now(),
	}

	jm.jobs[job.ID] = job
	return job
}

// GetJob retrieves a snapshot of a job by ID.
func (jm *JobManager) GetJob(id string) (*Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

// ListJobs returns snapshots of all jobs.
func (jm *JobManager) ListJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		snapshot := *job
		jobs = append(jobs, &snapshot)
	}
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(job)
	return nil
}

// RegisterCancel associates a cancel function with a running job.
func (jm *JobManager) RegisterCancel(id string, cancel context.CancelFunc) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.cancels[id] = cancel
}

// CancelJob cancels a running job. It reports false when the job does
// not exist or is not cancellable.
func (jm *JobManager) CancelJob(id string) bool {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	cancel, exists := jm.cancels[id]
	if !exists {
		return false
	}
	delete(jm.cancels, id)
	cancel()
	return true
}

// releaseCancel drops the cancel function once a job reaches a
// terminal state.
func (jm *JobManager) releaseCancel(id string) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	delete(jm.cancels, id)
}

// GetRunningJobs returns all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	runningJobs := make([]*Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			snapshot := *job
			runningJobs = append(runningJobs, &snapshot)
		}
	}
	return runningJobs
}
