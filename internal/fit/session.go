package fit

import (
	"time"

	"github.com/cwbudde/peakfit/internal/store"
)

// ModelFromSession rebuilds a float64 model from its persisted state:
// catalog model by name, then ranges, names, parameter vectors and
// bounds as they were saved.
func ModelFromSession(sess *store.Session) (*Model[float64], error) {
	m, err := ModelByName[float64](sess.Config.Model)
	if err != nil {
		return nil, err
	}

	if sess.Config.RangeHigh > sess.Config.RangeLow {
		ranges := m.FitRanges()
		ranges[0] = [2]float64{sess.Config.RangeLow, sess.Config.RangeHigh}
		if err := m.SetFitRanges(ranges); err != nil {
			return nil, err
		}
	}
	if len(sess.ParameterNames) > 0 {
		if err := m.SetParameterNames(sess.ParameterNames); err != nil {
			return nil, err
		}
	}
	if len(sess.InitialParams) > 0 {
		if err := m.SetInitialParameters(sess.InitialParams); err != nil {
			return nil, err
		}
	}
	if len(sess.FittedParams) > 0 {
		if err := m.SetFittedParameters(sess.FittedParams); err != nil {
			return nil, err
		}
	}
	if len(sess.LowerBounds) == m.NParams() && len(sess.UpperBounds) == m.NParams() {
		bounds := m.ParameterBounds()
		for i := range bounds {
			bounds[i].Lower = sess.LowerBounds[i]
			bounds[i].Upper = sess.UpperBounds[i]
		}
		if err := m.SetParameterBounds(bounds); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// SessionSnapshot captures a finished fit as a persistable session.
// createdAt should carry over from an existing session on resume.
func SessionSnapshot(id string, spec store.FitSpec, m *Model[float64], ds *Dataset[float64], res *FitResult, createdAt time.Time) *store.Session {
	bounds := m.ParameterBounds()
	lower := make([]float64, len(bounds))
	upper := make([]float64, len(bounds))
	for i, b := range bounds {
		lower[i] = b.Lower
		upper[i] = b.Upper
	}

	return &store.Session{
		ID:             id,
		Config:         spec,
		Precision:      m.Precision(),
		ParameterNames: m.ParameterNames(),
		InitialParams:  m.InitialValues(),
		FittedParams:   res.BestParams,
		LowerBounds:    lower,
		UpperBounds:    upper,
		BestCost:       res.BestCost,
		InitialCost:    res.InitialCost,
		RSquared:       res.RSquared,
		Rounds:         res.Rounds,
		Converged:      res.Converged,
		DataDigest:     ds.Digest(),
		CreatedAt:      createdAt,
		UpdatedAt:      time.Now(),
	}
}
