package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/lawnsignal/leadcast/internal/analysis"
	"github.com/lawnsignal/leadcast/internal/config"
	"github.com/lawnsignal/leadcast/internal/features"
	"github.com/lawnsignal/leadcast/internal/ingest"
	"github.com/lawnsignal/leadcast/internal/model"
	"github.com/lawnsignal/leadcast/internal/models"
	"github.com/lawnsignal/leadcast/internal/report"
	"github.com/lawnsignal/leadcast/internal/scenario"
	"github.com/lawnsignal/leadcast/internal/store"
	"github.com/lawnsignal/leadcast/internal/validate"
)

// cvSplits is the number of expanding-window folds used everywhere a
// cross-validated MAE is reported.
const cvSplits = 5

type CLI struct {
	config.Config `embed:""`

	EnvFile kongdotenv.ENVFileConfig `name:"env-file" optional:"" help:"Optional .env file loaded before flags resolve."`

	Ingest   IngestCmd   `cmd:"" help:"Load lead exports, fetch archive weather, and store merged days."`
	Analyze  AnalyzeCmd  `cmd:"" help:"Run the historical analyses and emit the summary report."`
	Validate ValidateCmd `cmd:"" help:"Hold out the test year and score it blind."`
	Momentum MomentumCmd `cmd:"" help:"Run the weather-momentum analyses and export multipliers."`
	Phases   PhasesCmd   `cmd:"" help:"Run the seasonal-phase analyses."`
	Project  ProjectCmd  `cmd:"" help:"Emit the next-season projection under average weather."`
	Run      RunCmd      `cmd:"" default:"withargs" help:"Run the whole pipeline end to end."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("leadcast"),
		kong.Description("Seasonal lead-volume analysis and prediction pipeline."),
		kong.UsageOnError(),
	)
	if err := cli.Config.Validate(); err != nil {
		ctx.FatalIfErrorf(err)
	}
	ctx.FatalIfErrorf(ctx.Run(&cli))
}

type IngestCmd struct{}

func (c *IngestCmd) Run(cli *CLI) error {
	cfg := cli.Config
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	leads, err := ingest.LoadLeadFiles(cfg)
	if err != nil {
		return err
	}
	leads = ingest.FilterSeason(leads, cfg)
	daily := ingest.AggregateDaily(leads, cfg)
	log.Printf("ingest: %d leads across %d season days", len(leads), len(daily))

	breakdown := ingest.SourceBreakdown(leads)
	for i, s := range breakdown {
		if i >= 10 {
			break
		}
		log.Printf("ingest: source %q: %d leads", s.Source, s.Count)
	}
	w := report.NewWriter(cfg.OutputDir)
	if err := w.WriteSourcesCSV("source_breakdown.csv", breakdown); err != nil {
		return err
	}

	weather, err := ingest.NewArchive().FetchAllSeasons(ctx, cfg)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	merged := ingest.Merge(daily, weather)
	if err := st.UpsertDays(merged); err != nil {
		return err
	}
	log.Printf("ingest: stored %d merged days", len(merged))
	return nil
}

type AnalyzeCmd struct{}

func (c *AnalyzeCmd) Run(cli *CLI) error {
	cfg := cli.Config
	days, err := loadDays(cfg, cfg.FullYears)
	if err != nil {
		return err
	}

	yearly := analysis.YearlySummary(days)
	dow := analysis.DayOfWeek(days)
	weekly := analysis.WeeklyCurve(days)
	conditions := analysis.ConditionImpact(days, cfg.MinBucketSamples)

	bm, err := trainBase(days, cfg)
	if err != nil {
		return err
	}
	cv, err := model.WalkForwardCV(bm.Matrix.Rows, bm.TotalY, cvSplits, model.DefaultConfig())
	if err != nil {
		return err
	}
	inSample := model.Evaluate(bm.TotalY, bm.Total.PredictAll(bm.Matrix.Rows))
	log.Printf("analyze: total model cross-val MAE %.2f, in-sample R² %.3f", cv.MeanMAE, inSample.R2)

	organicCV, err := model.WalkForwardCV(bm.Matrix.Rows, bm.OrganicY, cvSplits, model.DefaultConfig())
	if err != nil {
		return err
	}
	organicInSample := model.Evaluate(bm.OrganicY, bm.Organic.PredictAll(bm.Matrix.Rows))
	log.Printf("analyze: organic model cross-val MAE %.2f, in-sample R² %.3f", organicCV.MeanMAE, organicInSample.R2)

	scenarios, err := scenario.Score(bm.Total, bm.Matrix, scenario.Standard())
	if err != nil {
		return err
	}

	w := report.NewWriter(cfg.OutputDir)
	if err := w.WriteYearlyCSV("yearly_summary.csv", yearly); err != nil {
		return err
	}
	if err := w.WriteDOWCSV("day_of_week.csv", dow); err != nil {
		return err
	}
	if err := w.WriteConditionsCSV("condition_impact.csv", conditions); err != nil {
		return err
	}
	if err := w.WriteImportancesCSV("feature_importance.csv", bm.Matrix.Fields, bm.Total.Importances()); err != nil {
		return err
	}
	if err := w.WriteScenariosCSV("weather_scenarios.csv", scenarios); err != nil {
		return err
	}

	impact := struct {
		Temperature []analysis.BucketRow      `json:"temperature"`
		Sunshine    []analysis.BucketRow      `json:"sunshine"`
		Precip      []analysis.BucketRow      `json:"precipitation"`
		DayType     []analysis.CrossRow       `json:"day_type_condition"`
		Correlation []analysis.CorrelationRow `json:"correlations"`
	}{
		Temperature: analysis.TempBuckets(days, cfg.MinBucketSamples),
		Sunshine:    analysis.SunshineBuckets(days, cfg.MinBucketSamples),
		Precip:      analysis.PrecipBuckets(days, cfg.MinBucketSamples),
		DayType:     analysis.DayTypeConditionCross(days, cfg.MinBucketSamples),
		Correlation: analysis.Correlations(days),
	}
	if err := w.JSON("weather_impact.json", impact); err != nil {
		return err
	}
	if err := w.JSON("dm_timing.json", analysis.DMTiming(days, cfg.MinBucketSamples)); err != nil {
		return err
	}

	rep := report.BuildAnalysis(cfg, report.AnalysisInputs{
		Yearly:          yearly,
		DOW:             dow,
		Conditions:      conditions,
		Weekly:          weekly,
		CV:              &cv,
		InSample:        inSample,
		OrganicCV:       &organicCV,
		OrganicInSample: &organicInSample,
	})
	return w.JSON("analysis_report.json", rep)
}

type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg := cli.Config
	days, err := loadDays(cfg, cfg.Years)
	if err != nil {
		return err
	}

	res, err := validate.Holdout(days, cfg, model.DefaultConfig())
	if err != nil {
		return err
	}
	log.Printf("validate: holdout MAE %.2f, season total error %+.1f%%",
		res.Overall.Metrics.MAE, res.Overall.SeasonErrorPct)

	// The in-progress season is scored by a model fit on complete
	// seasons only.
	var full []models.MergedDay
	fullSet := map[int]bool{}
	for _, y := range cfg.FullYears {
		fullSet[y] = true
	}
	for _, d := range days {
		if fullSet[d.Year] {
			full = append(full, d)
		}
	}
	bm, err := trainBase(full, cfg)
	if err != nil {
		return err
	}
	partial, err := validate.ScorePartialYear(bm.Total, days, cfg)
	if err != nil {
		return err
	}
	if partial != nil {
		log.Printf("validate: %d season %d days scored out of sample, error %+.1f%%",
			partial.Days, partial.Year, partial.ErrorPct)
	}

	w := report.NewWriter(cfg.OutputDir)
	return w.JSON("validation_results.json", report.Validation{Result: res, PartialYear: partial})
}

type MomentumCmd struct{}

func (c *MomentumCmd) Run(cli *CLI) error {
	cfg := cli.Config
	days, err := loadDays(cfg, cfg.FullYears)
	if err != nil {
		return err
	}

	md := analysis.PrepareMomentum(days, cfg.BaseYear)
	log.Printf("momentum: %d usable days after filtering", len(md.Days))

	cmp, err := analysis.CompareModels(md, cvSplits, model.DefaultConfig())
	if err != nil {
		return err
	}
	log.Printf("momentum: base CV MAE %.2f vs momentum %.2f (%+.1f%%)",
		cmp.BaseCVMAE, cmp.MomentumCVMAE, cmp.CVImprovementPct)

	w := report.NewWriter(cfg.OutputDir)
	mom := report.Momentum{
		Transitions:     analysis.Transitions(md, cfg.MinBucketSamples),
		Streaks:         analysis.Streaks(md, cfg.MinBucketSamples),
		PopFollow:       analysis.PopFollowThrough(md, cfg.HoldRatio),
		Saturday:        analysis.SaturdayMomentum(md),
		ModelComparison: cmp,
	}
	if err := w.JSON("momentum_analysis.json", mom); err != nil {
		return err
	}

	coef := report.Coefficients{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		HoldRatio:   cfg.HoldRatio,
		Multipliers: analysis.StreakMultipliers(md, cfg.MinBucketSamples),
	}
	return w.JSON("momentum_coefficients.json", coef)
}

type PhasesCmd struct{}

func (c *PhasesCmd) Run(cli *CLI) error {
	cfg := cli.Config
	days, err := loadDays(cfg, cfg.FullYears)
	if err != nil {
		return err
	}

	summaries, effects := analysis.PhaseQualityEffects(days, cfg.MinBucketSamples)
	w := report.NewWriter(cfg.OutputDir)
	return w.JSON("seasonal_phase_analysis.json", report.Phases{
		Summaries:      summaries,
		QualityEffects: effects,
		Correlations:   analysis.PhaseCorrelations(days),
		TempAnomalies:  analysis.TempAnomalies(days, cfg.MinBucketSamples),
	})
}

type ProjectCmd struct{}

func (c *ProjectCmd) Run(cli *CLI) error {
	cfg := cli.Config
	days, err := loadDays(cfg, cfg.FullYears)
	if err != nil {
		return err
	}

	bm, err := trainBase(days, cfg)
	if err != nil {
		return err
	}
	rows, err := scenario.Project(bm.Total, days, cfg)
	if err != nil {
		return err
	}
	log.Printf("project: %d day/weekday combinations", len(rows))

	w := report.NewWriter(cfg.OutputDir)
	return w.WriteProjectionCSV("seasonal_projection.csv", rows)
}

type RunCmd struct{}

func (c *RunCmd) Run(cli *CLI) error {
	steps := []struct {
		name string
		run  func(*CLI) error
	}{
		{"ingest", (&IngestCmd{}).Run},
		{"analyze", (&AnalyzeCmd{}).Run},
		{"validate", (&ValidateCmd{}).Run},
		{"momentum", (&MomentumCmd{}).Run},
		{"phases", (&PhasesCmd{}).Run},
		{"project", (&ProjectCmd{}).Run},
	}
	for _, s := range steps {
		log.Printf("run: %s", s.name)
		if err := s.run(cli); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// loadDays reads merged days for the given years and engineers the
// deterministic features every analysis expects.
func loadDays(cfg config.Config, years []int) ([]models.MergedDay, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	days, err := st.GetDaysForYears(years)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("no merged days stored for years %v; run ingest first", years)
	}
	features.Engineer(days, cfg.BaseYear)
	return days, nil
}

// baseModels is the pair of base-feature models fit on a run, one per
// lead target, sharing a single feature matrix.
type baseModels struct {
	Total    *model.GBDT
	Organic  *model.GBDT
	Matrix   *features.Matrix
	TotalY   []float64
	OrganicY []float64
}

// trainBase fits the base-feature models on every day with observed
// weather: one on total leads, one on organic/digital leads only.
func trainBase(days []models.MergedDay, cfg config.Config) (*baseModels, error) {
	var usable []models.MergedDay
	for _, d := range days {
		if d.HasWeather() {
			usable = append(usable, d)
		}
	}
	features.Engineer(usable, cfg.BaseYear)

	matrix, err := features.BuildMatrix(usable, features.BaseFields())
	if err != nil {
		return nil, err
	}
	totalY, organicY := features.Targets(usable)
	total, err := model.Train(matrix.Rows, totalY, model.DefaultConfig())
	if err != nil {
		return nil, err
	}
	organic, err := model.Train(matrix.Rows, organicY, model.DefaultConfig())
	if err != nil {
		return nil, err
	}
	return &baseModels{
		Total:    total,
		Organic:  organic,
		Matrix:   matrix,
		TotalY:   totalY,
		OrganicY: organicY,
	}, nil
}
