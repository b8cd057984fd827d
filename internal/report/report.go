// Package report turns analysis and validation results into the JSON
// and CSV artifacts consumed by the dashboard. It formats; it never
// computes.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/lawnsignal/leadcast/internal/analysis"
	"github.com/lawnsignal/leadcast/internal/config"
	"github.com/lawnsignal/leadcast/internal/ingest"
	"github.com/lawnsignal/leadcast/internal/model"
	"github.com/lawnsignal/leadcast/internal/scenario"
	"github.com/lawnsignal/leadcast/internal/validate"
)

// Writer emits artifacts into a single output directory, creating it on
// first use.
type Writer struct {
	Dir string
}

// NewWriter returns a Writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir}
}

func (w *Writer) path(name string) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("report: create output dir: %w", err)
	}
	return filepath.Join(w.Dir, name), nil
}

// JSON writes v as indented JSON under the writer's directory.
func (w *Writer) JSON(name string, v any) error {
	path, err := w.path(name)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal %s: %w", name, err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", name, err)
	}
	log.Printf("report: wrote %s", path)
	return nil
}

// CSV writes a header plus rows under the writer's directory.
func (w *Writer) CSV(name string, header []string, rows [][]string) error {
	path, err := w.path(name)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", name, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("report: write %s: %w", name, err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("report: write %s: %w", name, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("report: flush %s: %w", name, err)
	}
	log.Printf("report: wrote %s", path)
	return nil
}

// Coverage describes the data window the report is built from.
type Coverage struct {
	Years           []int  `json:"years"`
	SeasonWindow    string `json:"season_window"`
	TotalLeads      int    `json:"total_leads"`
	TotalDays       int    `json:"total_days"`
	WeatherLocation string `json:"weather_location"`
}

// GrowthEntry is one year-over-year growth record.
type GrowthEntry struct {
	Year      int     `json:"year"`
	GrowthPct float64 `json:"growth_pct"`
}

// DOWFinding is the headline day-of-week pattern.
type DOWFinding struct {
	BestDay             string  `json:"best_day"`
	BestDayAvg          float64 `json:"best_day_avg"`
	SaturdayDiscountPct float64 `json:"saturday_discount_pct"`
	SundayDiscountPct   float64 `json:"sunday_discount_pct"`
}

// WeatherFinding is the headline weather effect, with rain and cloud
// variants pooled.
type WeatherFinding struct {
	SunnyAvg            float64 `json:"sunny_avg"`
	SunnyVsBaselinePct  float64 `json:"sunny_vs_baseline_pct"`
	SnowAvg             float64 `json:"snow_avg"`
	SnowVsBaselinePct   float64 `json:"snow_vs_baseline_pct"`
	RainAvg             float64 `json:"rain_avg"`
	RainVsBaselinePct   float64 `json:"rain_vs_baseline_pct"`
	CloudyAvg           float64 `json:"cloudy_avg"`
	CloudyVsBaselinePct float64 `json:"cloudy_vs_baseline_pct"`
}

// KeyFindings is the executive-summary block of the report.
type KeyFindings struct {
	YoYGrowth     []GrowthEntry   `json:"yoy_growth"`
	DayOfWeek     *DOWFinding     `json:"day_of_week,omitempty"`
	WeatherImpact *WeatherFinding `json:"weather_impact,omitempty"`
	Seasonality   string          `json:"seasonality"`
}

// Performance is the headline model accuracy block.
type Performance struct {
	Algorithm   string  `json:"algorithm"`
	CrossValMAE float64 `json:"cross_val_mae"`
	RSquared    float64 `json:"r_squared"`
	MAPE        float64 `json:"mape"`
}

// Integration tells the dashboard where the machine-readable outputs
// live.
type Integration struct {
	CoefficientsFile string `json:"coefficients_file"`
	ProjectionFile   string `json:"projection_file"`
	Usage            string `json:"usage"`
}

// Analysis is the top-level report document.
type Analysis struct {
	Title                string       `json:"title"`
	GeneratedAt          string       `json:"generated_at"`
	DataCoverage         Coverage     `json:"data_coverage"`
	KeyFindings          KeyFindings  `json:"key_findings"`
	ModelPerformance     Performance  `json:"model_performance"`
	OrganicPerformance   *Performance `json:"organic_model_performance,omitempty"`
	DashboardIntegration Integration  `json:"dashboard_integration"`
}

// AnalysisInputs collects everything the summary report draws from. The
// organic fields describe the model trained on organic/digital leads
// alone and are optional.
type AnalysisInputs struct {
	Yearly          []analysis.YearRow
	DOW             []analysis.DOWRow
	Conditions      []analysis.ConditionRow
	Weekly          []analysis.WeekRow
	CV              *model.CVResult
	InSample        model.Metrics
	OrganicCV       *model.CVResult
	OrganicInSample *model.Metrics
}

// BuildAnalysis assembles the summary report from already-computed
// pieces.
func BuildAnalysis(cfg config.Config, in AnalysisInputs) *Analysis {
	rep := &Analysis{
		Title:       "Seasonal Lead Volume Analysis",
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		DataCoverage: Coverage{
			SeasonWindow: fmt.Sprintf("%s - %s",
				cfg.SeasonStart(cfg.BaseYear).Format("Jan 2"),
				cfg.SeasonEnd(cfg.BaseYear).Format("Jan 2")),
			WeatherLocation: cfg.Location,
		},
		ModelPerformance: Performance{
			Algorithm: "gradient boosted decision trees",
			RSquared:  in.InSample.R2,
			MAPE:      in.InSample.MAPE,
		},
		DashboardIntegration: Integration{
			CoefficientsFile: "momentum_coefficients.json",
			ProjectionFile:   "seasonal_projection.csv",
			Usage:            "Multiply the projected daily baseline by the streak multiplier matching the current weather run.",
		},
	}
	if in.CV != nil {
		rep.ModelPerformance.CrossValMAE = in.CV.MeanMAE
	}
	if in.OrganicInSample != nil {
		perf := &Performance{
			Algorithm: "gradient boosted decision trees",
			RSquared:  in.OrganicInSample.R2,
			MAPE:      in.OrganicInSample.MAPE,
		}
		if in.OrganicCV != nil {
			perf.CrossValMAE = in.OrganicCV.MeanMAE
		}
		rep.OrganicPerformance = perf
	}

	for _, y := range in.Yearly {
		rep.DataCoverage.Years = append(rep.DataCoverage.Years, y.Year)
		rep.DataCoverage.TotalLeads += y.Total
		rep.DataCoverage.TotalDays += y.Days
		if y.YoYGrowthPct != nil {
			rep.KeyFindings.YoYGrowth = append(rep.KeyFindings.YoYGrowth, GrowthEntry{
				Year:      y.Year,
				GrowthPct: *y.YoYGrowthPct,
			})
		}
	}

	rep.KeyFindings.DayOfWeek = dowFinding(in.DOW)
	rep.KeyFindings.WeatherImpact = weatherFinding(in.Conditions)
	rep.KeyFindings.Seasonality = seasonalityText(in.Weekly)
	return rep
}

func dowFinding(rows []analysis.DOWRow) *DOWFinding {
	if len(rows) == 0 {
		return nil
	}
	f := &DOWFinding{}
	best := rows[0]
	for _, r := range rows {
		if r.AvgTotal > best.AvgTotal {
			best = r
		}
		switch r.DOW {
		case 5:
			f.SaturdayDiscountPct = r.PctVsWeekdayAvg
		case 6:
			f.SundayDiscountPct = r.PctVsWeekdayAvg
		}
	}
	f.BestDay = best.Name
	f.BestDayAvg = best.AvgTotal
	return f
}

// weatherFinding pools the condition table into four headline groups.
func weatherFinding(rows []analysis.ConditionRow) *WeatherFinding {
	if len(rows) == 0 {
		return nil
	}
	groups := map[string][]string{
		"sunny":  {"Sunny"},
		"snow":   {"Snow"},
		"rain":   {"Rain", "Light Rain"},
		"cloudy": {"Cloudy/Overcast", "Partly Cloudy"},
	}
	pooled := func(names []string) (avg, pct float64) {
		var leads, delta float64
		var n int
		for _, r := range rows {
			for _, name := range names {
				if r.Condition == name {
					leads += r.AvgTotal * float64(r.Count)
					delta += r.VsBaselinePct * float64(r.Count)
					n += r.Count
				}
			}
		}
		if n == 0 {
			return 0, 0
		}
		return leads / float64(n), delta / float64(n)
	}

	f := &WeatherFinding{}
	f.SunnyAvg, f.SunnyVsBaselinePct = pooled(groups["sunny"])
	f.SnowAvg, f.SnowVsBaselinePct = pooled(groups["snow"])
	f.RainAvg, f.RainVsBaselinePct = pooled(groups["rain"])
	f.CloudyAvg, f.CloudyVsBaselinePct = pooled(groups["cloudy"])
	return f
}

func seasonalityText(weekly []analysis.WeekRow) string {
	if len(weekly) == 0 {
		return ""
	}
	peak := weekly[0]
	for _, w := range weekly {
		if w.AvgTotal > peak.AvgTotal {
			peak = w
		}
	}
	first := weekly[0]
	if first.AvgTotal > 0 {
		return fmt.Sprintf("Volume peaks around week %d at %.0f leads/week, %.1fx the opening week.",
			peak.Week, peak.AvgTotal, peak.AvgTotal/first.AvgTotal)
	}
	return fmt.Sprintf("Volume peaks around week %d at %.0f leads/week.", peak.Week, peak.AvgTotal)
}

// Validation bundles the holdout result with the in-progress season
// check.
type Validation struct {
	*validate.Result
	PartialYear *validate.PartialYearResult `json:"partial_year,omitempty"`
}

// Momentum bundles the short-term dynamics analyses.
type Momentum struct {
	Transitions     []analysis.TransitionRow  `json:"transitions"`
	Streaks         analysis.StreakImpact     `json:"streaks"`
	PopFollow       *analysis.PopResult       `json:"pop_follow_through"`
	Saturday        []analysis.SaturdayRow    `json:"saturday_momentum"`
	ModelComparison *analysis.ModelComparison `json:"model_comparison,omitempty"`
}

// Phases bundles the seasonal-phase analyses.
type Phases struct {
	Summaries      []analysis.PhaseSummary    `json:"phases"`
	QualityEffects []analysis.PhaseQualityRow `json:"quality_effects"`
	Correlations   []analysis.PhaseCorrRow    `json:"correlations"`
	TempAnomalies  []analysis.TempAnomalyRow  `json:"temp_anomalies"`
}

// Coefficients is the machine-readable multiplier export the dashboard
// reads directly.
type Coefficients struct {
	GeneratedAt string               `json:"generated_at"`
	HoldRatio   float64              `json:"hold_ratio"`
	Multipliers analysis.Multipliers `json:"multipliers"`
}

// WriteScenariosCSV emits the scenario table.
func (w *Writer) WriteScenariosCSV(name string, results []scenario.Result) error {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Name,
			fmt.Sprintf("%.1f", r.Predicted),
			fmt.Sprintf("%.1f", r.VsBaselinePct),
		})
	}
	return w.CSV(name, []string{"scenario", "predicted_leads", "vs_baseline_pct"}, rows)
}

// WriteProjectionCSV emits the day-by-day seasonal projection.
func (w *Writer) WriteProjectionCSV(name string, rows []scenario.ProjectionRow) error {
	recs := make([][]string, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, []string{
			fmt.Sprintf("%d", r.DayOfSeason),
			fmt.Sprintf("%d", r.DOW),
			r.DOWName,
			fmt.Sprintf("%.1f", r.Predicted),
			fmt.Sprintf("%.1f", r.HistoricalAvg),
			fmt.Sprintf("%.1f", r.HistoricalStd),
		})
	}
	header := []string{"day_of_season", "dow", "dow_name", "predicted_leads", "historical_avg", "historical_std"}
	return w.CSV(name, header, recs)
}

// WriteYearlyCSV emits the yearly summary table.
func (w *Writer) WriteYearlyCSV(name string, rows []analysis.YearRow) error {
	recs := make([][]string, 0, len(rows))
	for _, r := range rows {
		growth := ""
		if r.YoYGrowthPct != nil {
			growth = fmt.Sprintf("%.1f", *r.YoYGrowthPct)
		}
		recs = append(recs, []string{
			fmt.Sprintf("%d", r.Year),
			fmt.Sprintf("%d", r.Total),
			fmt.Sprintf("%d", r.Days),
			fmt.Sprintf("%.1f", r.DailyAvg),
			fmt.Sprintf("%d", r.DMTotal),
			fmt.Sprintf("%d", r.OrganicTotal),
			fmt.Sprintf("%.1f", r.DMPct),
			growth,
		})
	}
	header := []string{"year", "total", "days", "daily_avg", "dm_total", "organic_total", "dm_pct", "yoy_growth_pct"}
	return w.CSV(name, header, recs)
}

// WriteDOWCSV emits the day-of-week profile.
func (w *Writer) WriteDOWCSV(name string, rows []analysis.DOWRow) error {
	recs := make([][]string, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, []string{
			fmt.Sprintf("%d", r.DOW),
			r.Name,
			fmt.Sprintf("%.1f", r.AvgTotal),
			fmt.Sprintf("%.1f", r.AvgOrganic),
			fmt.Sprintf("%.1f", r.AvgDM),
			fmt.Sprintf("%.1f", r.MedianTotal),
			fmt.Sprintf("%d", r.Count),
			fmt.Sprintf("%.1f", r.PctVsWeekdayAvg),
		})
	}
	header := []string{"dow", "dow_name", "avg_total", "avg_organic", "avg_dm", "median_total", "count", "pct_vs_weekday_avg"}
	return w.CSV(name, header, recs)
}

// WriteConditionsCSV emits the weather-condition impact table.
func (w *Writer) WriteConditionsCSV(name string, rows []analysis.ConditionRow) error {
	recs := make([][]string, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, []string{
			r.Condition,
			fmt.Sprintf("%.1f", r.AvgTotal),
			fmt.Sprintf("%.1f", r.AvgOrganic),
			fmt.Sprintf("%.1f", r.MedianTotal),
			fmt.Sprintf("%d", r.Count),
			fmt.Sprintf("%.1f", r.VsBaselinePct),
		})
	}
	header := []string{"condition", "avg_total", "avg_organic", "median_total", "count", "vs_baseline_pct"}
	return w.CSV(name, header, recs)
}

// WriteSourcesCSV emits the raw lead-source breakdown.
func (w *Writer) WriteSourcesCSV(name string, rows []ingest.SourceCount) error {
	recs := make([][]string, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, []string{r.Source, string(r.Type), fmt.Sprintf("%d", r.Count)})
	}
	return w.CSV(name, []string{"source", "source_type", "count"}, recs)
}

// WriteImportancesCSV emits per-feature importance, matrix order.
func (w *Writer) WriteImportancesCSV(name string, fields []string, importances []float64) error {
	recs := make([][]string, 0, len(fields))
	for i, f := range fields {
		recs = append(recs, []string{f, fmt.Sprintf("%.4f", importances[i])})
	}
	return w.CSV(name, []string{"feature", "importance"}, recs)
}
