package validate

import (
	"fmt"
	"log"
	"sort"

	"github.com/lawnsignal/leadcast/internal/config"
	"github.com/lawnsignal/leadcast/internal/features"
	"github.com/lawnsignal/leadcast/internal/model"
	"github.com/lawnsignal/leadcast/internal/models"
	"github.com/lawnsignal/leadcast/internal/weather"
)

var dowNames = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Overall is the headline holdout result.
type Overall struct {
	TrainYears     []int         `json:"train_years"`
	TestYear       int           `json:"test_year"`
	TrainDays      int           `json:"train_days"`
	TestDays       int           `json:"test_days"`
	Metrics        model.Metrics `json:"metrics"`
	TotalActual    float64       `json:"total_actual"`
	TotalPredicted float64       `json:"total_predicted"`
	SeasonErrorPct float64       `json:"season_total_error_pct"`
}

// WeekRow is holdout accuracy within one ISO week.
type WeekRow struct {
	Week           int     `json:"week_num"`
	ActualTotal    float64 `json:"actual_total"`
	PredictedTotal float64 `json:"predicted_total"`
	ErrorPct       float64 `json:"weekly_error_pct"`
	DailyMAE       float64 `json:"daily_mae"`
	Days           int     `json:"days"`
}

// DOWRow is holdout accuracy for one day of the week.
type DOWRow struct {
	DOW          int     `json:"dow"`
	Name         string  `json:"dow_name"`
	AvgActual    float64 `json:"avg_actual"`
	AvgPredicted float64 `json:"avg_predicted"`
	ErrorPct     float64 `json:"error_pct"`
	MAE          float64 `json:"mae"`
}

// QualityRow is holdout accuracy within one weather quality bucket.
type QualityRow struct {
	Quality      models.Quality `json:"weather_quality"`
	AvgActual    float64        `json:"avg_actual"`
	AvgPredicted float64        `json:"avg_predicted"`
	ErrorPct     float64        `json:"error_pct"`
	MAE          float64        `json:"mae"`
	Count        int            `json:"count"`
}

// Result bundles the holdout outcome with its breakdowns.
type Result struct {
	Overall   Overall      `json:"holdout_test"`
	Weekly    []WeekRow    `json:"weekly_accuracy"`
	ByDOW     []DOWRow     `json:"dow_accuracy"`
	ByQuality []QualityRow `json:"quality_accuracy"`
}

// Holdout trains on the configured training years and scores the test
// year blind. Rows from any other year (including the in-progress
// season) may be present in days; they are excluded from both sides, so
// nothing outside the partition can leak into the fit.
func Holdout(days []models.MergedDay, cfg config.Config, mcfg model.Config) (*Result, error) {
	usable := withWeather(days)
	features.Engineer(usable, cfg.BaseYear)

	trainSet := map[int]bool{}
	for _, y := range cfg.TrainYears {
		trainSet[y] = true
	}

	var train, test []models.MergedDay
	for _, d := range usable {
		switch {
		case trainSet[d.Year]:
			train = append(train, d)
		case d.Year == cfg.TestYear:
			test = append(test, d)
		}
	}
	if len(train) == 0 {
		return nil, fmt.Errorf("validate: no training days in years %v", cfg.TrainYears)
	}
	if len(test) == 0 {
		return nil, fmt.Errorf("validate: no test days in year %d", cfg.TestYear)
	}
	log.Printf("validate: train %d days (%v), test %d days (%d)", len(train), cfg.TrainYears, len(test), cfg.TestYear)

	fields := features.BaseFields()
	trainX, err := features.BuildMatrix(train, fields)
	if err != nil {
		return nil, err
	}
	testX, err := features.BuildMatrix(test, fields)
	if err != nil {
		return nil, err
	}

	m, err := model.Train(trainX.Rows, totalLeads(train), mcfg)
	if err != nil {
		return nil, err
	}
	actual := totalLeads(test)
	predicted := m.PredictAll(testX.Rows)

	res := &Result{
		Overall: Overall{
			TrainYears: append([]int(nil), cfg.TrainYears...),
			TestYear:   cfg.TestYear,
			TrainDays:  len(train),
			TestDays:   len(test),
			Metrics:    model.Evaluate(actual, predicted),
		},
	}
	for i := range actual {
		res.Overall.TotalActual += actual[i]
		res.Overall.TotalPredicted += predicted[i]
	}
	if res.Overall.TotalActual > 0 {
		res.Overall.SeasonErrorPct = (res.Overall.TotalPredicted/res.Overall.TotalActual - 1) * 100
	}

	res.Weekly = weeklyRows(test, actual, predicted)
	res.ByDOW = dowRows(test, actual, predicted)
	res.ByQuality = qualityRows(test, actual, predicted)
	return res, nil
}

// PartialYearResult scores the in-progress season against a model that
// never saw it.
type PartialYearResult struct {
	Year           int          `json:"year"`
	Days           int          `json:"days"`
	TotalActual    float64      `json:"total_actual"`
	TotalPredicted float64      `json:"total_predicted"`
	ErrorPct       float64      `json:"error_pct"`
	DailyMAE       float64      `json:"daily_mae"`
	Daily          []PartialDay `json:"daily"`
}

// PartialDay is one scored day of the in-progress season.
type PartialDay struct {
	Date      string  `json:"date"`
	DOW       string  `json:"dow"`
	Actual    int     `json:"actual"`
	Predicted float64 `json:"predicted"`
}

// ScorePartialYear runs a fitted model over the in-progress season as an
// out-of-sample sanity check. Returns nil when that season has no usable
// days yet.
func ScorePartialYear(m *model.GBDT, days []models.MergedDay, cfg config.Config) (*PartialYearResult, error) {
	var partial []models.MergedDay
	for _, d := range days {
		if d.Year == cfg.PartialYear {
			partial = append(partial, d)
		}
	}
	partial = withWeather(partial)
	if len(partial) == 0 {
		return nil, nil
	}
	features.Engineer(partial, cfg.BaseYear)

	X, err := features.BuildMatrix(partial, features.BaseFields())
	if err != nil {
		return nil, err
	}
	actual := totalLeads(partial)
	predicted := m.PredictAll(X.Rows)

	res := &PartialYearResult{
		Year:     cfg.PartialYear,
		Days:     len(partial),
		DailyMAE: model.MAE(actual, predicted),
	}
	for i, d := range partial {
		res.TotalActual += actual[i]
		res.TotalPredicted += predicted[i]
		res.Daily = append(res.Daily, PartialDay{
			Date:      d.Date.Format("2006-01-02"),
			DOW:       dowNames[d.DOW],
			Actual:    d.TotalLeads,
			Predicted: predicted[i],
		})
	}
	if res.TotalActual > 0 {
		res.ErrorPct = (res.TotalPredicted/res.TotalActual - 1) * 100
	}
	return res, nil
}

func withWeather(days []models.MergedDay) []models.MergedDay {
	var out []models.MergedDay
	for _, d := range days {
		if d.HasWeather() {
			out = append(out, d)
		}
	}
	return out
}

func totalLeads(days []models.MergedDay) []float64 {
	out := make([]float64, len(days))
	for i := range days {
		out[i] = float64(days[i].TotalLeads)
	}
	return out
}

func weeklyRows(test []models.MergedDay, actual, predicted []float64) []WeekRow {
	byWeek := map[int]*WeekRow{}
	for i, d := range test {
		r := byWeek[d.WeekNum]
		if r == nil {
			r = &WeekRow{Week: d.WeekNum}
			byWeek[d.WeekNum] = r
		}
		r.ActualTotal += actual[i]
		r.PredictedTotal += predicted[i]
		r.DailyMAE += abs(predicted[i] - actual[i])
		r.Days++
	}
	var out []WeekRow
	for _, r := range byWeek {
		r.DailyMAE /= float64(r.Days)
		if r.ActualTotal > 0 {
			r.ErrorPct = (r.PredictedTotal/r.ActualTotal - 1) * 100
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Week < out[j].Week })
	return out
}

func dowRows(test []models.MergedDay, actual, predicted []float64) []DOWRow {
	type acc struct {
		actual, predicted, absErr float64
		n                         int
	}
	var buckets [7]acc
	for i, d := range test {
		b := &buckets[d.DOW]
		b.actual += actual[i]
		b.predicted += predicted[i]
		b.absErr += abs(predicted[i] - actual[i])
		b.n++
	}
	var out []DOWRow
	for dow, b := range buckets {
		if b.n == 0 {
			continue
		}
		n := float64(b.n)
		r := DOWRow{
			DOW:          dow,
			Name:         dowNames[dow],
			AvgActual:    b.actual / n,
			AvgPredicted: b.predicted / n,
			MAE:          b.absErr / n,
		}
		if r.AvgActual > 0 {
			r.ErrorPct = (r.AvgPredicted/r.AvgActual - 1) * 100
		}
		out = append(out, r)
	}
	return out
}

func qualityRows(test []models.MergedDay, actual, predicted []float64) []QualityRow {
	type acc struct {
		actual, predicted, absErr float64
		n                         int
	}
	buckets := map[models.Quality]*acc{}
	for i, d := range test {
		q := weather.Quality(d.Weather)
		b := buckets[q]
		if b == nil {
			b = &acc{}
			buckets[q] = b
		}
		b.actual += actual[i]
		b.predicted += predicted[i]
		b.absErr += abs(predicted[i] - actual[i])
		b.n++
	}
	var out []QualityRow
	for _, q := range []models.Quality{models.QualityNice, models.QualityOK, models.QualityBad} {
		b := buckets[q]
		if b == nil {
			continue
		}
		n := float64(b.n)
		r := QualityRow{
			Quality:      q,
			AvgActual:    b.actual / n,
			AvgPredicted: b.predicted / n,
			MAE:          b.absErr / n,
			Count:        b.n,
		}
		if r.AvgActual > 0 {
			r.ErrorPct = (r.AvgPredicted/r.AvgActual - 1) * 100
		}
		out = append(out, r)
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
