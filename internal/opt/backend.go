package opt

import (
	"errors"
	"fmt"
	"strings"
)

// Backend identifies an optimizer implementation.
type Backend string

const (
	BackendMayfly     Backend = "mayfly"
	BackendNelderMead Backend = "neldermead"
	BackendLevMar     Backend = "levmar"
)

// ErrUnknownBackend is returned when the name does not match a known backend.
var ErrUnknownBackend = errors.New("unknown optimizer backend")

// NormalizeBackend maps arbitrary user input to a canonical backend identifier.
func NormalizeBackend(name string) Backend {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "mayfly":
		return BackendMayfly
	case "neldermead", "nelder-mead", "nm", "simplex":
		return BackendNelderMead
	case "levmar", "lm", "levenberg-marquardt":
		return BackendLevMar
	default:
		return Backend(name)
	}
}

// SupportedBackends returns the backends the factory understands.
func SupportedBackends() []Backend {
	return []Backend{BackendMayfly, BackendNelderMead, BackendLevMar}
}

// Options carries the tuning knobs shared across backends. Zero
// values mean backend defaults.
type Options struct {
	// MaxIters caps the backend's iterations.
	MaxIters int

	// PopSize is the swarm population, used by mayfly only.
	PopSize int

	// Seed drives stochastic backends, used by mayfly only.
	Seed int64
}

// NewForBackend constructs the requested optimizer.
func NewForBackend(name string, opts Options) (Optimizer, error) {
	switch NormalizeBackend(name) {
	case BackendMayfly:
		return NewMayfly(opts.MaxIters, opts.PopSize, opts.Seed), nil
	case BackendNelderMead:
		return NewNelderMead(opts.MaxIters), nil
	case BackendLevMar:
		return NewLevMar(opts.MaxIters), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
}
