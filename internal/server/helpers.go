package server

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cwbudde/peakfit/internal/fit"
)

// loadJobDataset resolves the samples a job should fit against: inline
// data wins, otherwise DataPath is read as CSV relative to dataDir.
func loadJobDataset(cfg JobConfig, dataDir string) (*fit.Dataset[float64], error) {
	if cfg.Data != nil {
		ds := &fit.Dataset[float64]{
			X: append([]float64(nil), cfg.Data.X...),
			Y: append([]float64(nil), cfg.Data.Y...),
		}
		if err := ds.Validate(); err != nil {
			return nil, fmt.Errorf("inline data: %w", err)
		}
		return ds, nil
	}

	if cfg.DataPath == "" {
		return nil, fmt.Errorf("job config needs inline data or a dataPath")
	}

	path := cfg.DataPath
	if dataDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(dataDir, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer f.Close()

	ds, err := fit.FromCSV[float64](f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", cfg.DataPath, err)
	}
	return ds, nil
}

// buildJobModel constructs the model a job fits, applying range, seed
// and bound overrides from the config.
func buildJobModel(cfg JobConfig) (*fit.Model[float64], error) {
	m, err := fit.ModelByName[float64](cfg.Model)
	if err != nil {
		return nil, err
	}

	if cfg.RangeHigh > cfg.RangeLow {
		ranges := m.FitRanges()
		ranges[0] = [2]float64{cfg.RangeLow, cfg.RangeHigh}
		if err := m.SetFitRanges(ranges); err != nil {
			return nil, err
		}
	}

	if len(cfg.InitialParams) > 0 {
		if err := m.SetInitialParameters(cfg.InitialParams); err != nil {
			return nil, err
		}
	}

	if len(cfg.LowerBounds) > 0 || len(cfg.UpperBounds) > 0 {
		bounds := m.ParameterBounds()
		if len(cfg.LowerBounds) > 0 {
			if len(cfg.LowerBounds) != len(bounds) {
				return nil, fmt.Errorf("lowerBounds: want %d values, got %d", len(bounds), len(cfg.LowerBounds))
			}
			for i, lo := range cfg.LowerBounds {
				bounds[i].Lower = lo
			}
		}
		if len(cfg.UpperBounds) > 0 {
			if len(cfg.UpperBounds) != len(bounds) {
				return nil, fmt.Errorf("upperBounds: want %d values, got %d", len(bounds), len(cfg.UpperBounds))
			}
			for i, hi := range cfg.UpperBounds {
				bounds[i].Upper = hi
			}
		}
		if err := m.SetParameterBounds(bounds); err != nil {
			return nil, err
		}
	}

	return m, nil
}
