package store

import (
	"fmt"
	"time"
)

// FitSpec holds the configuration a fit ran with (session copy).
// This avoids import cycles with the server package.
type FitSpec struct {
	Model        string  `json:"model"`
	Optimizer    string  `json:"optimizer"`
	DataPath     string  `json:"dataPath,omitempty"`
	RangeLow     float64 `json:"rangeLow"`
	RangeHigh    float64 `json:"rangeHigh"`
	Weighted     bool    `json:"weighted,omitempty"`
	Iters        int     `json:"iters"`
	PopSize      int     `json:"popSize,omitempty"`
	Seed         int64   `json:"seed"`
	Restarts     int     `json:"restarts,omitempty"`
	ArchiveTrace bool    `json:"archiveTrace,omitempty"`
}

// Session is a persisted fit: the configuration, the parameter state
// of the model when the fit finished, and the headline results.
//
// A session records the best parameters found, not the optimizer's
// internal state (population, simplex, damping). Resuming therefore
// restarts the backend fresh, seeded with the stored fitted values as
// the new initial guess. The best cost never regresses on resume
// because the stored parameters are the new starting point; the
// convergence path simply differs from an uninterrupted run.
//
// DataDigest fingerprints the dataset the fit ran against so a resume
// with different data is rejected instead of silently reporting
// parameters for the wrong spectrum.
type Session struct {
	// ID is the unique identifier for this session.
	ID string `json:"id"`

	// Config holds the fit configuration, needed for validation when
	// resuming.
	Config FitSpec `json:"config"`

	// Precision is the numeric type the model was carried in,
	// "float32" or "float64".
	Precision string `json:"precision"`

	// ParameterNames are the model's parameter names in order.
	ParameterNames []string `json:"parameterNames"`

	// InitialParams is the starting parameter vector of the fit.
	InitialParams []float64 `json:"initialParams"`

	// FittedParams is the best parameter vector found.
	FittedParams []float64 `json:"fittedParams"`

	// LowerBounds and UpperBounds are the per-parameter box bounds.
	LowerBounds []float64 `json:"lowerBounds"`
	UpperBounds []float64 `json:"upperBounds"`

	// BestCost is the objective value achieved by FittedParams.
	BestCost float64 `json:"bestCost"`

	// InitialCost is the objective value at InitialParams.
	InitialCost float64 `json:"initialCost"`

	// RSquared is the coefficient of determination of the fit.
	RSquared float64 `json:"rSquared"`

	// Rounds is the number of optimizer rounds that ran.
	Rounds int `json:"rounds"`

	// Converged records whether restarts stopped early.
	Converged bool `json:"converged"`

	// DataDigest is the xxhash64 fingerprint of the fitted dataset.
	DataDigest uint64 `json:"dataDigest"`

	// CreatedAt and UpdatedAt bracket the session's life.
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SessionInfo contains session metadata without the parameter vectors.
// Used for listing sessions cheaply.
type SessionInfo struct {
	ID        string    `json:"id"`
	Model     string    `json:"model"`
	Optimizer string    `json:"optimizer"`
	BestCost  float64   `json:"bestCost"`
	RSquared  float64   `json:"rSquared"`
	NParams   int       `json:"nParams"`
	Archived  bool      `json:"archived"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ToInfo converts a full Session to SessionInfo (metadata only).
func (s *Session) ToInfo() SessionInfo {
	return SessionInfo{
		ID:        s.ID,
		Model:     s.Config.Model,
		Optimizer: s.Config.Optimizer,
		BestCost:  s.BestCost,
		RSquared:  s.RSquared,
		NParams:   len(s.ParameterNames),
		UpdatedAt: s.UpdatedAt,
	}
}

// Validate checks that the session has consistent data.
func (s *Session) Validate() error {
	if s.ID == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	if s.Config.Model == "" {
		return &ValidationError{Field: "Config.Model", Reason: "cannot be empty"}
	}
	if s.Config.Optimizer == "" {
		return &ValidationError{Field: "Config.Optimizer", Reason: "cannot be empty"}
	}
	np := len(s.ParameterNames)
	if np == 0 {
		return &ValidationError{Field: "ParameterNames", Reason: "cannot be empty"}
	}
	if len(s.InitialParams) != np {
		return &ValidationError{Field: "InitialParams", Reason: lengthMismatch(np, len(s.InitialParams))}
	}
	if len(s.FittedParams) != np {
		return &ValidationError{Field: "FittedParams", Reason: lengthMismatch(np, len(s.FittedParams))}
	}
	if len(s.LowerBounds) != np {
		return &ValidationError{Field: "LowerBounds", Reason: lengthMismatch(np, len(s.LowerBounds))}
	}
	if len(s.UpperBounds) != np {
		return &ValidationError{Field: "UpperBounds", Reason: lengthMismatch(np, len(s.UpperBounds))}
	}
	if s.CreatedAt.IsZero() {
		return &ValidationError{Field: "CreatedAt", Reason: "cannot be zero"}
	}
	return nil
}

func lengthMismatch(want, got int) string {
	return fmt.Sprintf("length mismatch: expected %d entries, got %d", want, got)
}

// ValidationError represents a session validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks whether this session can be resumed with the
// given spec and dataset. The model must match because the stored
// parameters only mean something for the model that produced them;
// the data digest must match so the resume refines the same spectrum.
// Optimizer, iteration, and range changes are allowed.
func (s *Session) IsCompatible(spec FitSpec, dataDigest uint64) error {
	if s.Config.Model != spec.Model {
		return &CompatibilityError{
			Field:    "Model",
			Expected: s.Config.Model,
			Actual:   spec.Model,
		}
	}
	if s.DataDigest != dataDigest {
		return &CompatibilityError{
			Field:    "DataDigest",
			Expected: fmt.Sprintf("%016x", s.DataDigest),
			Actual:   fmt.Sprintf("%016x", dataDigest),
		}
	}
	return nil
}

// CompatibilityError represents a session compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
