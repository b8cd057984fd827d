package analysis

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/lawnsignal/leadcast/internal/features"
	"github.com/lawnsignal/leadcast/internal/model"
	"github.com/lawnsignal/leadcast/internal/models"
)

// MomentumData is the working frame for the momentum analyses: Monday
// through Saturday days with observed weather, streak features rebuilt
// on that frame, and every day's lead volume normalized against its
// week's weekday average so that seasonal growth cancels out.
type MomentumData struct {
	Days  []models.MergedDay
	Ratio []float64
}

// PrepareMomentum builds the momentum frame. Sundays are excluded up
// front so a Saturday's "previous day" is Friday, and streaks never
// span the near-zero Sunday volume.
func PrepareMomentum(days []models.MergedDay, baseYear int) *MomentumData {
	var kept []models.MergedDay
	for _, d := range days {
		if d.DOW < 6 && d.HasWeather() {
			kept = append(kept, d)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Date.Before(kept[j].Date) })
	features.Engineer(kept, baseYear)
	features.EngineerMomentum(kept)

	type key struct{ year, week int }
	sums := map[key]float64{}
	counts := map[key]int{}
	var weekdaySum float64
	var weekdayN int
	for _, d := range kept {
		if d.DOW >= 5 {
			continue
		}
		k := key{d.Year, d.WeekNum}
		sums[k] += float64(d.TotalLeads)
		counts[k]++
		weekdaySum += float64(d.TotalLeads)
		weekdayN++
	}
	overall := 1.0
	if weekdayN > 0 {
		overall = weekdaySum / float64(weekdayN)
	}

	ratio := make([]float64, len(kept))
	for i, d := range kept {
		k := key{d.Year, d.WeekNum}
		base := overall
		if counts[k] > 0 {
			base = sums[k] / float64(counts[k])
		}
		if base <= 0 {
			base = overall
		}
		ratio[i] = float64(d.TotalLeads) / base
	}
	return &MomentumData{Days: kept, Ratio: ratio}
}

// weekdayIdx returns the indices of Monday-Friday rows.
func (md *MomentumData) weekdayIdx() []int {
	var idx []int
	for i, d := range md.Days {
		if d.DOW < 5 {
			idx = append(idx, i)
		}
	}
	return idx
}

// TransitionRow measures how lead volume behaves on a day whose weather
// quality followed a given quality the day before.
type TransitionRow struct {
	Name          string  `json:"transition"`
	AvgRatio      float64 `json:"avg_ratio"`
	VsBaselinePct float64 `json:"vs_baseline_pct"`
	Count         int     `json:"count"`
}

var transitionPairs = []struct {
	name       string
	prev, curr models.Quality
}{
	{"bad_to_nice", models.QualityBad, models.QualityNice},
	{"nice_to_bad", models.QualityNice, models.QualityBad},
	{"nice_to_nice", models.QualityNice, models.QualityNice},
	{"bad_to_bad", models.QualityBad, models.QualityBad},
	{"ok_to_nice", models.QualityOK, models.QualityNice},
	{"nice_to_ok", models.QualityNice, models.QualityOK},
}

// Transitions measures the normalized lead volume on weekdays grouped by
// yesterday's and today's weather quality.
func Transitions(md *MomentumData, minSamples int) []TransitionRow {
	var out []TransitionRow
	for _, p := range transitionPairs {
		var ratios []float64
		for _, i := range md.weekdayIdx() {
			d := md.Days[i]
			if d.PrevQuality == p.prev && d.Quality == p.curr {
				ratios = append(ratios, md.Ratio[i])
			}
		}
		if len(ratios) < minSamples {
			continue
		}
		avg := stat.Mean(ratios, nil)
		out = append(out, TransitionRow{
			Name:          p.name,
			AvgRatio:      avg,
			VsBaselinePct: (avg - 1) * 100,
			Count:         len(ratios),
		})
	}
	return out
}

// StreakRow measures lead volume on the n-th consecutive day of a
// nice-weather or bad-weather run.
type StreakRow struct {
	Label         string  `json:"streak"`
	AvgRatio      float64 `json:"avg_ratio"`
	VsBaselinePct float64 `json:"vs_baseline_pct"`
	Count         int     `json:"count"`
}

// StreakImpact buckets weekdays by the length of the weather streak they
// sit on. Long runs are pooled into a terminal bucket.
type StreakImpact struct {
	Nice []StreakRow `json:"nice"`
	Bad  []StreakRow `json:"bad"`
}

// Streaks measures whether demand keeps building on consecutive nice
// days and keeps sagging on consecutive bad ones.
func Streaks(md *MomentumData, minSamples int) StreakImpact {
	return StreakImpact{
		Nice: streakRows(md, minSamples, 5, func(d models.MergedDay) int { return d.NiceStreak }),
		Bad:  streakRows(md, minSamples, 4, func(d models.MergedDay) int { return d.BadStreak }),
	}
}

func streakRows(md *MomentumData, minSamples, maxRun int, streak func(models.MergedDay) int) []StreakRow {
	buckets := map[int][]float64{}
	for _, i := range md.weekdayIdx() {
		s := streak(md.Days[i])
		if s < 1 {
			continue
		}
		if s > maxRun {
			s = maxRun
		}
		buckets[s] = append(buckets[s], md.Ratio[i])
	}

	var out []StreakRow
	for s := 1; s <= maxRun; s++ {
		ratios := buckets[s]
		if len(ratios) < minSamples {
			continue
		}
		label := fmt.Sprintf("%d", s)
		if s == maxRun {
			label = fmt.Sprintf("%d+", s)
		}
		avg := stat.Mean(ratios, nil)
		out = append(out, StreakRow{
			Label:         label,
			AvgRatio:      avg,
			VsBaselinePct: (avg - 1) * 100,
			Count:         len(ratios),
		})
	}
	return out
}

// PopNextDay summarizes what happened the weekday after a pop day, split
// by that next day's weather quality.
type PopNextDay struct {
	Quality  string  `json:"quality"`
	AvgRatio float64 `json:"avg_ratio"`
	Count    int     `json:"count"`
	Held     int     `json:"held"`
}

// PopSequence is the average normalized volume across a three-day run
// starting at a pop day.
type PopSequence struct {
	Day0  float64 `json:"day0_avg_ratio"`
	Day1  float64 `json:"day1_avg_ratio"`
	Day2  float64 `json:"day2_avg_ratio"`
	Count int     `json:"count"`
}

// PopResult is the follow-through analysis of pop days: the first nice
// day after bad weather.
type PopResult struct {
	PopDays     int          `json:"pop_days"`
	PopAvgRatio float64      `json:"pop_avg_ratio"`
	NextDay     []PopNextDay `json:"next_day"`
	Sustained   *PopSequence `json:"sustained,omitempty"`
	Regressed   *PopSequence `json:"regressed,omitempty"`
}

// minSequences is the floor for the small pop-day sequence groups; the
// transition and streak tables use the configured bucket minimum.
const minSequences = 2

// PopFollowThrough asks whether the demand spike on a pop day carries
// into the following days, and what the next day's weather does to it.
// holdRatio is the fraction of the pop-day average a next day must reach
// to count as held.
func PopFollowThrough(md *MomentumData, holdRatio float64) *PopResult {
	idx := md.weekdayIdx()

	var popRatios []float64
	for _, i := range idx {
		if md.Days[i].IsPopDay == 1 {
			popRatios = append(popRatios, md.Ratio[i])
		}
	}
	res := &PopResult{PopDays: len(popRatios)}
	if len(popRatios) == 0 {
		return res
	}
	res.PopAvgRatio = stat.Mean(popRatios, nil)

	// Follow-up days are looked up by exact calendar date, so a Friday
	// pop has no next-day observation; Monday is not its day 1.
	byDate := map[int64]int{}
	for _, i := range idx {
		byDate[md.Days[i].Date.Unix()] = i
	}
	after := func(i, offset int) (int, bool) {
		j, ok := byDate[md.Days[i].Date.AddDate(0, 0, offset).Unix()]
		return j, ok
	}

	next := map[models.Quality][]float64{}
	held := map[models.Quality]int{}
	threshold := res.PopAvgRatio * holdRatio
	for _, i := range idx {
		if md.Days[i].IsPopDay != 1 {
			continue
		}
		j, ok := after(i, 1)
		if !ok {
			continue
		}
		q := md.Days[j].Quality
		next[q] = append(next[q], md.Ratio[j])
		if md.Ratio[j] >= threshold {
			held[q]++
		}
	}
	for _, q := range []models.Quality{models.QualityNice, models.QualityOK, models.QualityBad} {
		ratios := next[q]
		if len(ratios) < minSequences {
			continue
		}
		res.NextDay = append(res.NextDay, PopNextDay{
			Quality:  string(q),
			AvgRatio: stat.Mean(ratios, nil),
			Count:    len(ratios),
			Held:     held[q],
		})
	}

	// Three-day sequences from each pop day: does the pop sustain when
	// the weather holds, and regress when it turns?
	var sust, regr [3][]float64
	for _, i := range idx {
		if md.Days[i].IsPopDay != 1 {
			continue
		}
		j, okJ := after(i, 1)
		k, okK := after(i, 2)
		if !okJ || !okK {
			continue
		}
		q1, q2 := md.Days[j].Quality, md.Days[k].Quality
		seq := [3]float64{md.Ratio[i], md.Ratio[j], md.Ratio[k]}
		switch {
		case q1 == models.QualityNice && (q2 == models.QualityNice || q2 == models.QualityOK):
			for n := range seq {
				sust[n] = append(sust[n], seq[n])
			}
		case q1 == models.QualityBad || (q1 == models.QualityOK && q2 == models.QualityBad):
			for n := range seq {
				regr[n] = append(regr[n], seq[n])
			}
		}
	}
	res.Sustained = popSequence(sust)
	res.Regressed = popSequence(regr)
	return res
}

func popSequence(days [3][]float64) *PopSequence {
	if len(days[0]) < minSequences {
		return nil
	}
	return &PopSequence{
		Day0:  stat.Mean(days[0], nil),
		Day1:  stat.Mean(days[1], nil),
		Day2:  stat.Mean(days[2], nil),
		Count: len(days[0]),
	}
}

// SaturdayRow measures Saturday lead volume by how many of the
// preceding five weekdays had nice weather.
type SaturdayRow struct {
	NiceWeekdays string  `json:"nice_weekdays"`
	AvgLeads     float64 `json:"avg_leads"`
	Count        int     `json:"count"`
}

// SaturdayMomentum tests whether a nice working week primes Saturday
// demand: each Saturday is bucketed by the count of nice weekdays in
// the Monday-Friday window before it.
func SaturdayMomentum(md *MomentumData) []SaturdayRow {
	niceByDate := map[int64]bool{}
	for _, d := range md.Days {
		if d.DOW < 5 {
			niceByDate[d.Date.Unix()] = d.Quality == models.QualityNice
		}
	}

	buckets := map[int][]float64{}
	for _, d := range md.Days {
		if !d.IsSaturday {
			continue
		}
		nice := 0
		for back := 1; back <= 5; back++ {
			if niceByDate[d.Date.AddDate(0, 0, -back).Unix()] {
				nice++
			}
		}
		if nice > 5 {
			nice = 5
		}
		buckets[nice] = append(buckets[nice], float64(d.TotalLeads))
	}

	var out []SaturdayRow
	for n := 0; n <= 5; n++ {
		leads := buckets[n]
		if len(leads) < minSequences {
			continue
		}
		label := fmt.Sprintf("%d", n)
		if n == 5 {
			label = "5+"
		}
		out = append(out, SaturdayRow{
			NiceWeekdays: label,
			AvgLeads:     stat.Mean(leads, nil),
			Count:        len(leads),
		})
	}
	return out
}

// Multipliers are per-streak-length demand multipliers against the
// weekday average, for direct use by a forecasting dashboard.
type Multipliers struct {
	Nice map[string]float64 `json:"nice_streak"`
	Bad  map[string]float64 `json:"bad_streak"`
}

// StreakMultipliers exports the streak effect as rounded multipliers.
// Unlike Streaks it includes the zero-streak bucket, so the dashboard
// always has a row to look up.
func StreakMultipliers(md *MomentumData, minSamples int) Multipliers {
	idx := md.weekdayIdx()
	var sum float64
	for _, i := range idx {
		sum += float64(md.Days[i].TotalLeads)
	}
	if len(idx) == 0 || sum == 0 {
		return Multipliers{Nice: map[string]float64{}, Bad: map[string]float64{}}
	}
	weekdayAvg := sum / float64(len(idx))

	mult := func(maxRun int, streak func(models.MergedDay) int) map[string]float64 {
		buckets := map[int][]float64{}
		for _, i := range idx {
			s := streak(md.Days[i])
			if s > maxRun {
				s = maxRun
			}
			buckets[s] = append(buckets[s], float64(md.Days[i].TotalLeads))
		}
		out := map[string]float64{}
		for s := 0; s <= maxRun; s++ {
			leads := buckets[s]
			if len(leads) < minSamples {
				continue
			}
			label := fmt.Sprintf("%d", s)
			if s == maxRun {
				label = fmt.Sprintf("%d+", s)
			}
			out[label] = math.Round(stat.Mean(leads, nil)/weekdayAvg*100) / 100
		}
		return out
	}

	return Multipliers{
		Nice: mult(5, func(d models.MergedDay) int { return d.NiceStreak }),
		Bad:  mult(4, func(d models.MergedDay) int { return d.BadStreak }),
	}
}

// ModelComparison puts the base feature set and the momentum-augmented
// set side by side on the same frame.
type ModelComparison struct {
	BaseCVMAE        float64 `json:"base_cv_mae"`
	BaseR2           float64 `json:"base_r_squared"`
	MomentumCVMAE    float64 `json:"momentum_cv_mae"`
	MomentumR2       float64 `json:"momentum_r_squared"`
	MomentumShare    float64 `json:"momentum_importance_share"`
	CVImprovementPct float64 `json:"cv_improvement_pct"`
}

// CompareModels trains both feature sets on the momentum frame and
// reports cross-validated MAE, in-sample fit, and how much of the
// augmented model's importance lands on the momentum features.
func CompareModels(md *MomentumData, splits int, cfg model.Config) (*ModelComparison, error) {
	y := make([]float64, len(md.Days))
	for i, d := range md.Days {
		y[i] = float64(d.TotalLeads)
	}

	fit := func(fields []string) (cvMAE, r2 float64, m *model.GBDT, err error) {
		X, err := features.BuildMatrix(md.Days, fields)
		if err != nil {
			return 0, 0, nil, err
		}
		cv, err := model.WalkForwardCV(X.Rows, y, splits, cfg)
		if err != nil {
			return 0, 0, nil, err
		}
		m, err = model.Train(X.Rows, y, cfg)
		if err != nil {
			return 0, 0, nil, err
		}
		r2 = model.Evaluate(y, m.PredictAll(X.Rows)).R2
		return cv.MeanMAE, r2, m, nil
	}

	baseMAE, baseR2, _, err := fit(features.BaseFields())
	if err != nil {
		return nil, err
	}
	momMAE, momR2, momModel, err := fit(features.MomentumFields())
	if err != nil {
		return nil, err
	}

	momentum := map[string]bool{}
	for _, f := range features.MomentumFields()[len(features.BaseFields()):] {
		momentum[f] = true
	}
	imp := momModel.Importances()
	share := 0.0
	for i, f := range features.MomentumFields() {
		if momentum[f] {
			share += imp[i]
		}
	}

	cmp := &ModelComparison{
		BaseCVMAE:     baseMAE,
		BaseR2:        baseR2,
		MomentumCVMAE: momMAE,
		MomentumR2:    momR2,
		MomentumShare: share,
	}
	if baseMAE > 0 {
		cmp.CVImprovementPct = (1 - momMAE/baseMAE) * 100
	}
	return cmp, nil
}
