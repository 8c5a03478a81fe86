package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cwbudde/peakfit/internal/export"
	"github.com/cwbudde/peakfit/internal/fit"
	"github.com/cwbudde/peakfit/internal/store"
)

// Server exposes fitting as an HTTP API: submit jobs, poll status,
// stream progress, download rendered curves and reports.
type Server struct {
	jobManager *JobManager
	sessions   store.Store
	baseDir    string
	dataDir    string
	addr       string
	server     *http.Server
}

// NewServer creates a new HTTP server. sessions may be nil, in which
// case finished fits are not persisted. baseDir is the store's root
// (for traces), dataDir anchors relative dataPath values from job
// requests.
func NewServer(addr string, sessions store.Store, baseDir, dataDir string) *Server {
	return &Server{
		jobManager: NewJobManager(),
		sessions:   sessions,
		baseDir:    baseDir,
		dataDir:    dataDir,
		addr:       addr,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/fits", s.handleFits)
	mux.HandleFunc("/api/v1/fits/", s.handleFitsWithID)
	mux.HandleFunc("/api/v1/sessions", s.handleListSessions)

	handler := s.loggingMiddleware(s.corsMiddleware(mux))

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: handler,
	}

	slog.Info("starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleFits handles /api/v1/fits
func (s *Server) handleFits(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateFit(w, r)
	case http.MethodGet:
		s.handleListFits(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleFitsWithID handles /api/v1/fits/:id/*
func (s *Server) handleFitsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/fits/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Fit ID required", http.StatusBadRequest)
		return
	}

	jobID := parts[0]

	switch {
	case len(parts) == 1 || parts[1] == "status":
		s.handleGetFitStatus(w, r, jobID)
	case parts[1] == "curve.json":
		s.handleGetCurve(w, r, jobID)
	case parts[1] == "report.xlsx":
		s.handleGetReport(w, r, jobID)
	case parts[1] == "trace":
		s.handleGetTrace(w, r, jobID)
	case parts[1] == "cancel":
		s.handleCancelFit(w, r, jobID)
	case parts[1] == "events":
		s.handleJobStream(w, r, jobID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateFit handles POST /api/v1/fits
func (s *Server) handleCreateFit(w http.ResponseWriter, r *http.Request) {
	var config JobConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	if config.Model == "" {
		http.Error(w, "model is required", http.StatusBadRequest)
		return
	}
	if config.Data == nil && config.DataPath == "" {
		http.Error(w, "data or dataPath is required", http.StatusBadRequest)
		return
	}
	if config.Optimizer == "" {
		config.Optimizer = "mayfly"
	}
	if config.Iters <= 0 {
		config.Iters = 200
	}
	if config.PopSize <= 0 {
		config.PopSize = 30
	}

	job := s.jobManager.CreateJob(config)

	go s.runJob(context.Background(), job.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(job)
}

// handleListFits handles GET /api/v1/fits
func (s *Server) handleListFits(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobManager.ListJobs()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jobs)
}

// handleGetFitStatus handles GET /api/v1/fits/:id/status
func (s *Server) handleGetFitStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Fit not found", http.StatusNotFound)
		return
	}

	var elapsed time.Duration
	if job.EndTime != nil {
		elapsed = job.EndTime.Sub(job.StartTime)
	} else {
		elapsed = time.Since(job.StartTime)
	}

	response := map[string]interface{}{
		"id":             job.ID,
		"state":          job.State,
		"config":         job.Config,
		"parameterNames": job.ParameterNames,
		"initialParams":  job.InitialParams,
		"bestParams":     job.BestParams,
		"bestCost":       job.BestCost,
		"initialCost":    job.InitialCost,
		"rSquared":       job.RSquared,
		"rounds":         job.Rounds,
		"converged":      job.Converged,
		"elapsed":        elapsed.Seconds(),
		"startTime":      job.StartTime,
		"endTime":        job.EndTime,
		"error":          job.Error,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleCancelFit handles POST /api/v1/fits/:id/cancel
func (s *Server) handleCancelFit(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, exists := s.jobManager.GetJob(jobID); !exists {
		http.Error(w, "Fit not found", http.StatusNotFound)
		return
	}
	if !s.jobManager.CancelJob(jobID) {
		http.Error(w, "Fit is not running", http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"id": jobID, "state": "cancelling"})
}

// curvePayload is the JSON form of a sampled model curve.
type curvePayload struct {
	Label string    `json:"label"`
	Color string    `json:"color"`
	X     []float64 `json:"x"`
	Y     []float64 `json:"y"`
}

// handleGetCurve handles GET /api/v1/fits/:id/curve.json.
// Query parameters: points, initial (true/false), binWidth.
func (s *Server) handleGetCurve(w http.ResponseWriter, r *http.Request, jobID string) {
	m, err := s.modelForFit(jobID)
	if err != nil {
		writeModelError(w, err)
		return
	}

	cfg := fit.DefaultCurveConfig()
	q := r.URL.Query()
	if v := q.Get("points"); v != "" {
		n, perr := strconv.Atoi(v)
		if perr != nil {
			http.Error(w, "points must be an integer", http.StatusBadRequest)
			return
		}
		cfg.Points = n
	}
	if v := q.Get("initial"); v != "" {
		use, perr := strconv.ParseBool(v)
		if perr != nil {
			http.Error(w, "initial must be a boolean", http.StatusBadRequest)
			return
		}
		cfg.UseInitial = use
	}
	if v := q.Get("binWidth"); v != "" {
		bw, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			http.Error(w, "binWidth must be a number", http.StatusBadRequest)
			return
		}
		cfg.BinWidth = bw
	}

	series, err := m.Curve(cfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	payload := curvePayload{Label: series.Label, Color: series.Color}
	for x, y := range series.Points {
		payload.X = append(payload.X, x)
		payload.Y = append(payload.Y, y)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	json.NewEncoder(w).Encode(payload)
}

// handleGetReport handles GET /api/v1/fits/:id/report.xlsx
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request, jobID string) {
	m, err := s.modelForFit(jobID)
	if err != nil {
		writeModelError(w, err)
		return
	}

	optimizer := ""
	if job, exists := s.jobManager.GetJob(jobID); exists {
		optimizer = job.Config.Optimizer
	} else if s.sessions != nil {
		if sess, serr := s.sessions.LoadSession(jobID); serr == nil {
			optimizer = sess.Config.Optimizer
		}
	}

	rep, err := export.NewReport(jobID, optimizer, m, 0)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to build report: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", jobID+".xlsx"))
	if err := export.WriteXLSX(w, rep); err != nil {
		slog.Error("failed to write report", "job_id", jobID, "error", err)
	}
}

// handleGetTrace handles GET /api/v1/fits/:id/trace
func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request, jobID string) {
	if s.sessions == nil || s.baseDir == "" {
		http.Error(w, "Tracing is not enabled", http.StatusNotFound)
		return
	}

	tr, err := store.NewTraceReader(s.baseDir, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Trace not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to open trace: %v", err), http.StatusInternalServerError)
		return
	}
	defer tr.Close()

	entries, err := tr.ReadAll()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read trace: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// handleListSessions handles GET /api/v1/sessions
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.sessions == nil {
		http.Error(w, "Session store is not enabled", http.StatusNotFound)
		return
	}

	infos, err := s.sessions.ListSessions()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list sessions: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(infos)
}

// modelForFit reconstructs the model for a fit ID, preferring the live
// job and falling back to the session store so curves and reports stay
// available across restarts.
func (s *Server) modelForFit(jobID string) (*fit.Model[float64], error) {
	if job, exists := s.jobManager.GetJob(jobID); exists {
		if len(job.BestParams) == 0 {
			return nil, errNoResults
		}
		m, err := buildJobModel(job.Config)
		if err != nil {
			return nil, err
		}
		if len(job.InitialParams) > 0 {
			if err := m.SetInitialParameters(job.InitialParams); err != nil {
				return nil, err
			}
		}
		if err := m.SetFittedParameters(job.BestParams); err != nil {
			return nil, err
		}
		return m, nil
	}

	if s.sessions == nil {
		return nil, errFitNotFound
	}
	sess, err := s.sessions.LoadSession(jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errFitNotFound
		}
		return nil, err
	}
	return fit.ModelFromSession(sess)
}

var (
	errFitNotFound = errors.New("fit not found")
	errNoResults   = errors.New("no results yet")
)

func writeModelError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errFitNotFound):
		http.Error(w, "Fit not found", http.StatusNotFound)
	case errors.Is(err, errNoResults):
		http.Error(w, "No results yet", http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
