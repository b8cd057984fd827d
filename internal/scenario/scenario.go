package scenario

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/lawnsignal/leadcast/internal/features"
	"github.com/lawnsignal/leadcast/internal/model"
)

// Scenario is a named set of feature overrides applied on top of the
// baseline row.
type Scenario struct {
	Name      string
	Overrides map[string]float64
}

// Result is one scored scenario.
type Result struct {
	Name          string  `json:"scenario"`
	Predicted     float64 `json:"predicted_leads"`
	VsBaselinePct float64 `json:"vs_baseline_pct"`
}

// Baseline returns the componentwise median row of a feature matrix: the
// "typical day" every scenario is compared against.
func Baseline(m *features.Matrix) []float64 {
	base := make([]float64, len(m.Fields))
	col := make([]float64, len(m.Rows))
	for j := range m.Fields {
		for i, row := range m.Rows {
			col[i] = row[j]
		}
		sort.Float64s(col)
		base[j] = stat.Quantile(0.5, stat.LinInterp, col, nil)
	}
	return base
}

// Build applies overrides to a copy of the baseline row. Every override
// key must name a field of the matrix schema; a typo in a scenario
// definition fails loudly instead of silently scoring the baseline.
func Build(base []float64, m *features.Matrix, overrides map[string]float64) ([]float64, error) {
	row := append([]float64(nil), base...)
	for field, v := range overrides {
		idx, err := m.Index(field)
		if err != nil {
			return nil, fmt.Errorf("scenario: %w", err)
		}
		row[idx] = v
	}
	return row, nil
}

// Standard returns the scenario set the uplift report is built from. A
// midweek day is the reference frame; only the Saturday scenario touches
// the calendar flags.
func Standard() []Scenario {
	return []Scenario{
		{
			Name: "Sunny & Warm (70°F, 10hrs sun)",
			Overrides: map[string]float64{
				features.FieldTempMax: 70, features.FieldTempMean: 60,
				features.FieldSunshineHrs: 10, features.FieldPrecipIn: 0,
				features.FieldSnowfallIn: 0, features.FieldIsSnow: 0,
				features.FieldIsRainy: 0, features.FieldIsSunny: 1,
				features.FieldIsWeekend: 0, features.FieldIsSaturday: 0,
				features.FieldDOW:          2,
				features.FieldTempMax3dAvg: 68, features.FieldSunshine3dAvg: 9,
			},
		},
		{
			Name: "Cloudy & Cool (50°F, 3hrs sun)",
			Overrides: map[string]float64{
				features.FieldTempMax: 50, features.FieldTempMean: 42,
				features.FieldSunshineHrs: 3, features.FieldPrecipIn: 0,
				features.FieldSnowfallIn: 0, features.FieldIsSnow: 0,
				features.FieldIsRainy: 0, features.FieldIsSunny: 0,
				features.FieldIsWeekend: 0, features.FieldIsSaturday: 0,
				features.FieldDOW:          2,
				features.FieldTempMax3dAvg: 52, features.FieldSunshine3dAvg: 4,
			},
		},
		{
			Name: "Rainy Day (55°F, 1hr sun)",
			Overrides: map[string]float64{
				features.FieldTempMax: 55, features.FieldTempMean: 48,
				features.FieldSunshineHrs: 1, features.FieldPrecipIn: 0.5,
				features.FieldSnowfallIn: 0, features.FieldIsSnow: 0,
				features.FieldIsRainy: 1, features.FieldIsSunny: 0,
				features.FieldIsWeekend: 0, features.FieldIsSaturday: 0,
				features.FieldDOW:          2,
				features.FieldTempMax3dAvg: 55, features.FieldSunshine3dAvg: 3,
			},
		},
		{
			Name: "Snow Day (35°F, snow)",
			Overrides: map[string]float64{
				features.FieldTempMax: 35, features.FieldTempMean: 28,
				features.FieldSunshineHrs: 2, features.FieldPrecipIn: 0.3,
				features.FieldSnowfallIn: 2, features.FieldIsSnow: 1,
				features.FieldIsRainy: 0, features.FieldIsSunny: 0,
				features.FieldIsWeekend: 0, features.FieldIsSaturday: 0,
				features.FieldDOW:          2,
				features.FieldTempMax3dAvg: 36, features.FieldSunshine3dAvg: 3,
			},
		},
		{
			Name: "Peak Spring (65°F, sunny, Wed)",
			Overrides: map[string]float64{
				features.FieldTempMax: 65, features.FieldTempMean: 55,
				features.FieldSunshineHrs: 9, features.FieldPrecipIn: 0,
				features.FieldSnowfallIn: 0, features.FieldIsSnow: 0,
				features.FieldIsRainy: 0, features.FieldIsSunny: 1,
				features.FieldIsWeekend: 0, features.FieldIsSaturday: 0,
				features.FieldDOW:         2,
				features.FieldDayOfSeason: 45, features.FieldWeekNum: 14,
				features.FieldTempMax3dAvg: 63, features.FieldSunshine3dAvg: 8,
			},
		},
		{
			Name: "Saturday (same as peak spring)",
			Overrides: map[string]float64{
				features.FieldTempMax: 65, features.FieldTempMean: 55,
				features.FieldSunshineHrs: 9, features.FieldPrecipIn: 0,
				features.FieldSnowfallIn: 0, features.FieldIsSnow: 0,
				features.FieldIsRainy: 0, features.FieldIsSunny: 1,
				features.FieldIsWeekend: 1, features.FieldIsSaturday: 1,
				features.FieldDOW:         5,
				features.FieldDayOfSeason: 45, features.FieldWeekNum: 14,
				features.FieldTempMax3dAvg: 63, features.FieldSunshine3dAvg: 8,
			},
		},
	}
}

// Score predicts each scenario against the baseline of the given matrix.
// The baseline itself comes back as the first result with a 0% delta.
func Score(m *model.GBDT, matrix *features.Matrix, scenarios []Scenario) ([]Result, error) {
	base := Baseline(matrix)
	basePred := m.Predict(base)

	out := []Result{{Name: "Typical Weekday (baseline)", Predicted: basePred}}
	for _, sc := range scenarios {
		row, err := Build(base, matrix, sc.Overrides)
		if err != nil {
			return nil, err
		}
		pred := m.Predict(row)
		r := Result{Name: sc.Name, Predicted: pred}
		if basePred != 0 {
			r.VsBaselinePct = (pred/basePred - 1) * 100
		}
		out = append(out, r)
	}
	return out, nil
}
