// Package export renders finished fits as spreadsheet reports.
package export

import (
	"fmt"
	"io"
	"math"

	"github.com/cwbudde/peakfit/internal/fit"
	"github.com/xuri/excelize/v2"
)

// Report carries everything one fit report needs: the headline
// numbers, the parameter table, and the sampled curves.
type Report struct {
	ID        string
	Model     string
	Optimizer string

	BestCost    float64
	InitialCost float64
	RSquared    float64
	Rounds      int
	Converged   bool

	Names   []string
	Initial []float64
	Fitted  []float64
	Lower   []float64
	Upper   []float64

	CurveX       []float64
	CurveFitted  []float64
	CurveInitial []float64
}

// NewReport assembles a report from a fitted model. The headline
// numbers come from the model's backend result when it is a
// *fit.FitResult; otherwise they stay zero and the caller fills them.
// points sets the curve sample count, 0 meaning the default.
func NewReport(id, optimizer string, m *fit.Model[float64], points int) (*Report, error) {
	rep := &Report{
		ID:        id,
		Model:     m.Name(),
		Optimizer: optimizer,
		Names:     m.ParameterNames(),
		Initial:   m.InitialValues(),
		Fitted:    m.FittedValues(),
	}

	bounds := m.ParameterBounds()
	rep.Lower = make([]float64, len(bounds))
	rep.Upper = make([]float64, len(bounds))
	for i, b := range bounds {
		rep.Lower[i] = b.Lower
		rep.Upper[i] = b.Upper
	}

	if res, ok := m.BackendResult().(*fit.FitResult); ok && res != nil {
		rep.BestCost = res.BestCost
		rep.InitialCost = res.InitialCost
		rep.RSquared = res.RSquared
		rep.Rounds = res.Rounds
		rep.Converged = res.Converged
	}

	// Curves are best effort: an unbounded fit range leaves the curve
	// sheet empty instead of failing the whole report.
	cfg := fit.DefaultCurveConfig()
	if points > 0 {
		cfg.Points = points
	}
	if series, err := m.Curve(cfg); err == nil {
		for x, y := range series.Points {
			rep.CurveX = append(rep.CurveX, x)
			rep.CurveFitted = append(rep.CurveFitted, y)
		}
	}
	if allFinite(rep.Initial) {
		cfg.UseInitial = true
		if series, err := m.Curve(cfg); err == nil {
			for _, y := range series.Points {
				rep.CurveInitial = append(rep.CurveInitial, y)
			}
		}
	}

	return rep, nil
}

// WriteXLSX renders the report as an xlsx workbook and writes it to w.
func WriteXLSX(w io.Writer, rep *Report) error {
	f, err := buildWorkbook(rep)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// SaveXLSX renders the report as an xlsx workbook at the given path.
func SaveXLSX(filename string, rep *Report) error {
	f, err := buildWorkbook(rep)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(filename)
}

func buildWorkbook(rep *Report) (*excelize.File, error) {
	f := excelize.NewFile()

	summary := "Summary"
	f.SetSheetName("Sheet1", summary)

	rows := []struct {
		key   string
		value interface{}
	}{
		{"Fit", rep.ID},
		{"Model", rep.Model},
		{"Optimizer", rep.Optimizer},
		{"Initial cost", rep.InitialCost},
		{"Best cost", rep.BestCost},
		{"R squared", rep.RSquared},
		{"Rounds", rep.Rounds},
		{"Converged", rep.Converged},
	}
	for i, row := range rows {
		f.SetCellValue(summary, fmt.Sprintf("A%d", i+1), row.key)
		f.SetCellValue(summary, fmt.Sprintf("B%d", i+1), row.value)
	}

	params := "Parameters"
	f.NewSheet(params)
	for col, h := range []string{"Parameter", "Initial", "Fitted", "Lower", "Upper"} {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(params, cell, h)
	}
	for i, name := range rep.Names {
		row := i + 2
		setCell(f, params, 1, row, name)
		setFloatCell(f, params, 2, row, at(rep.Initial, i))
		setFloatCell(f, params, 3, row, at(rep.Fitted, i))
		setFloatCell(f, params, 4, row, at(rep.Lower, i))
		setFloatCell(f, params, 5, row, at(rep.Upper, i))
	}

	curve := "Curve"
	f.NewSheet(curve)
	headers := []string{"X", "Fitted"}
	withInitial := len(rep.CurveInitial) == len(rep.CurveX) && len(rep.CurveX) > 0
	if withInitial {
		headers = append(headers, "Initial")
	}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(curve, cell, h)
	}
	for i := range rep.CurveX {
		row := i + 2
		setFloatCell(f, curve, 1, row, rep.CurveX[i])
		setFloatCell(f, curve, 2, row, rep.CurveFitted[i])
		if withInitial {
			setFloatCell(f, curve, 3, row, rep.CurveInitial[i])
		}
	}

	return f, nil
}

func setCell(f *excelize.File, sheet string, col, row int, v interface{}) {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	f.SetCellValue(sheet, cell, v)
}

// setFloatCell writes a float, substituting a label for values xlsx
// cannot represent as numbers.
func setFloatCell(f *excelize.File, sheet string, col, row int, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		setCell(f, sheet, col, row, fmt.Sprintf("%v", v))
		return
	}
	setCell(f, sheet, col, row, v)
}

func at(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}
	return math.NaN()
}

func allFinite(values []float64) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
