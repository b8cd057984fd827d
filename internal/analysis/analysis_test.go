package analysis

import (
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/lawnsignal/leadcast/internal/features"
	"github.com/lawnsignal/leadcast/internal/model"
	"github.com/lawnsignal/leadcast/internal/models"
)

func seasonDate(year, dos int) time.Time {
	return time.Date(year, 2, 15, 0, 0, 0, 0, time.UTC).AddDate(0, 0, dos)
}

// mkDay builds a fully observed merged day; condition and quality come
// from running the feature engineering over the slice afterwards.
func mkDay(year, dos, total, dm int, temp, sun, precip, snow float64) models.MergedDay {
	date := seasonDate(year, dos)
	dow := (int(date.Weekday()) + 6) % 7
	_, week := date.ISOWeek()
	f := func(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }
	return models.MergedDay{
		DailyRecord: models.DailyRecord{
			Date:         date,
			Year:         year,
			Month:        int(date.Month()),
			Day:          date.Day(),
			DOW:          dow,
			WeekNum:      week,
			IsWeekend:    dow >= 5,
			IsSaturday:   dow == 5,
			IsSunday:     dow == 6,
			DayOfSeason:  dos,
			TotalLeads:   total,
			DMLeads:      dm,
			OrganicLeads: total - dm,
		},
		Weather: models.WeatherRecord{
			Date:        date,
			TempMax:     f(temp),
			TempMin:     f(temp - 15),
			TempMean:    f(temp - 8),
			SunshineHrs: f(sun),
			PrecipIn:    f(precip),
			RainIn:      f(precip),
			SnowfallIn:  f(snow),
			WindMaxMPH:  f(9),
		},
	}
}

func engineered(days []models.MergedDay) []models.MergedDay {
	features.Engineer(days, 2021)
	return days
}

func TestYearlySummary(t *testing.T) {
	var days []models.MergedDay
	for i := 0; i < 10; i++ {
		days = append(days, mkDay(2021, i, 10, 4, 60, 8, 0, 0))
		days = append(days, mkDay(2022, i, 15, 3, 60, 8, 0, 0))
	}

	rows := YearlySummary(days)
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	y21, y22 := rows[0], rows[1]
	if y21.Year != 2021 || y21.Total != 100 || y21.Days != 10 || y21.DailyAvg != 10 {
		t.Errorf("2021 row = %+v", y21)
	}
	if y21.DMPct != 40 {
		t.Errorf("DMPct = %v, want 40", y21.DMPct)
	}
	if y21.YoYGrowthPct != nil {
		t.Errorf("first year has growth %v, want none", *y21.YoYGrowthPct)
	}
	if y22.YoYGrowthPct == nil || math.Abs(*y22.YoYGrowthPct-50) > 1e-9 {
		t.Errorf("2022 growth = %v, want 50", y22.YoYGrowthPct)
	}
}

func TestDayOfWeek(t *testing.T) {
	var days []models.MergedDay
	for i := 0; i < 28; i++ {
		d := mkDay(2021, i, 20, 0, 60, 8, 0, 0)
		if d.IsSaturday {
			d.TotalLeads = 10
		}
		if d.IsSunday {
			d.TotalLeads = 2
		}
		days = append(days, d)
	}

	rows := DayOfWeek(days)
	if len(rows) != 7 {
		t.Fatalf("len(rows) = %d, want 7", len(rows))
	}
	byDOW := map[int]DOWRow{}
	for _, r := range rows {
		byDOW[r.DOW] = r
	}
	sat := byDOW[5]
	if math.Abs(sat.PctVsWeekdayAvg-(-50)) > 1e-9 {
		t.Errorf("Saturday vs weekday avg = %v, want -50", sat.PctVsWeekdayAvg)
	}
	if byDOW[0].PctVsWeekdayAvg != 0 {
		t.Errorf("Monday vs weekday avg = %v, want 0", byDOW[0].PctVsWeekdayAvg)
	}
}

func TestWeeklyCurve(t *testing.T) {
	var days []models.MergedDay
	for i := 0; i < 14; i++ {
		days = append(days, mkDay(2021, i, 7, 0, 60, 8, 0, 0))
		days = append(days, mkDay(2022, i, 21, 0, 60, 8, 0, 0))
	}

	rows := WeeklyCurve(days)
	if len(rows) == 0 {
		t.Fatal("no weekly rows")
	}
	for i, r := range rows {
		if i > 0 && r.Week <= rows[i-1].Week {
			t.Errorf("weeks out of order at %d", i)
		}
		if r.Years != 2 {
			t.Errorf("week %d averaged over %d years, want 2", r.Week, r.Years)
		}
	}
}

func TestConditionImpact(t *testing.T) {
	var days []models.MergedDay
	for i := 0; i < 5; i++ {
		days = append(days, mkDay(2021, i, 30, 0, 65, 9, 0, 0))      // Sunny
		days = append(days, mkDay(2021, i+10, 10, 0, 50, 2, 0.4, 0)) // Rain
	}
	days = append(days, mkDay(2021, 20, 99, 0, 35, 1, 0, 2)) // lone Snow day
	days = engineered(days)

	rows := ConditionImpact(days, 3)
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2 (snow below min samples)", len(rows))
	}
	if rows[0].Condition != "Sunny" || rows[1].Condition != "Rain" {
		t.Errorf("order = %s, %s", rows[0].Condition, rows[1].Condition)
	}
	if rows[0].VsBaselinePct <= 0 || rows[1].VsBaselinePct >= 0 {
		t.Errorf("deltas = %v, %v", rows[0].VsBaselinePct, rows[1].VsBaselinePct)
	}
}

func TestBucketEdges(t *testing.T) {
	days := []models.MergedDay{
		mkDay(2021, 0, 10, 0, 40, 5, 0, 0),
		mkDay(2021, 1, 10, 0, 40.1, 5, 0, 0),
		mkDay(2021, 2, 10, 0, 40, 5, 0, 0),
	}
	rows := TempBuckets(days, 1)
	byLabel := map[string]BucketRow{}
	for _, r := range rows {
		byLabel[r.Label] = r
	}
	if byLabel["<40°F"].Count != 2 {
		t.Errorf("<40°F count = %d, want 2 (upper edge inclusive)", byLabel["<40°F"].Count)
	}
	if byLabel["40-50°F"].Count != 1 {
		t.Errorf("40-50°F count = %d, want 1", byLabel["40-50°F"].Count)
	}

	dry := []models.MergedDay{mkDay(2021, 0, 10, 0, 60, 5, 0, 0)}
	prows := PrecipBuckets(dry, 1)
	if len(prows) != 1 || prows[0].Label != "Dry" {
		t.Errorf("precip rows = %+v, want a single Dry bucket", prows)
	}
}

func TestCorrelations(t *testing.T) {
	var days []models.MergedDay
	for i := 0; i < 30; i++ {
		temp := 40.0 + float64(i)
		days = append(days, mkDay(2021, i, int(temp), 0, temp, 5, 0, 0))
	}

	rows := Correlations(days)
	if len(rows) == 0 {
		t.Fatal("no correlation rows")
	}
	var tempRow *CorrelationRow
	for i := range rows {
		if rows[i].Field == features.FieldTempMax {
			tempRow = &rows[i]
		}
	}
	if tempRow == nil {
		t.Fatal("temp_max missing from correlation rows")
	}
	if math.Abs(tempRow.R-1) > 1e-9 {
		t.Errorf("temp_max r = %v, want 1", tempRow.R)
	}
}

// momentumFrame builds four weeks where weather alternates between
// bad spells and nice spells, Mondays through Saturdays.
func momentumFrame(year int) []models.MergedDay {
	var days []models.MergedDay
	for i := 0; i < 28; i++ {
		// Nice in the back half of each week, bad in the front.
		temp, sun := 62.0, 9.0
		if i%7 < 3 {
			temp, sun = 38, 1
		}
		total := 20
		if sun >= 7 {
			total = 28
		}
		days = append(days, mkDay(year, i, total, 2, temp, sun, 0, 0))
	}
	return days
}

func TestPrepareMomentum(t *testing.T) {
	days := momentumFrame(2021)
	md := PrepareMomentum(days, 2021)

	for _, d := range md.Days {
		if d.DOW == 6 {
			t.Fatal("Sunday survived the momentum filter")
		}
	}
	if len(md.Ratio) != len(md.Days) {
		t.Fatalf("ratio length %d != days %d", len(md.Ratio), len(md.Days))
	}
	for i, r := range md.Ratio {
		if r <= 0 {
			t.Errorf("ratio[%d] = %v, want positive", i, r)
		}
	}
}

func TestTransitions(t *testing.T) {
	md := PrepareMomentum(momentumFrame(2021), 2021)
	rows := Transitions(md, 1)
	if len(rows) == 0 {
		t.Fatal("no transition rows")
	}
	byName := map[string]TransitionRow{}
	for _, r := range rows {
		byName[r.Name] = r
	}
	bn, ok := byName["bad_to_nice"]
	if !ok {
		t.Fatal("bad_to_nice missing from an alternating frame")
	}
	if bn.AvgRatio <= 1 {
		t.Errorf("bad_to_nice avg ratio = %v, want above week baseline", bn.AvgRatio)
	}
}

func TestStreaks(t *testing.T) {
	md := PrepareMomentum(momentumFrame(2021), 2021)
	impact := Streaks(md, 1)
	if len(impact.Nice) == 0 || len(impact.Bad) == 0 {
		t.Fatalf("streak rows missing: nice=%d bad=%d", len(impact.Nice), len(impact.Bad))
	}
	for _, r := range impact.Nice {
		if r.AvgRatio <= 1 {
			t.Errorf("nice streak %s ratio = %v, want above baseline", r.Label, r.AvgRatio)
		}
	}
	for _, r := range impact.Bad {
		if r.AvgRatio >= 1 {
			t.Errorf("bad streak %s ratio = %v, want below baseline", r.Label, r.AvgRatio)
		}
	}
}

func TestPopFollowThrough(t *testing.T) {
	var days []models.MergedDay
	for _, y := range []int{2021, 2022} {
		days = append(days, momentumFrame(y)...)
	}
	md := PrepareMomentum(days, 2021)

	res := PopFollowThrough(md, 0.9)
	if res.PopDays == 0 {
		t.Fatal("no pop days in an alternating frame")
	}
	if res.PopAvgRatio <= 1 {
		t.Errorf("pop avg ratio = %v, want above baseline", res.PopAvgRatio)
	}
	if len(res.NextDay) == 0 {
		t.Error("no next-day rows")
	}
	for _, nd := range res.NextDay {
		if nd.Held > nd.Count {
			t.Errorf("held %d exceeds count %d", nd.Held, nd.Count)
		}
	}
}

func TestPopFollowThroughWeekendGap(t *testing.T) {
	// Nice weather lands only on Fridays, so every pop day's next
	// calendar weekday is across the weekend.
	var days []models.MergedDay
	for _, y := range []int{2021, 2022} {
		for i := 0; i < 28; i++ {
			temp, sun, total := 38.0, 1.0, 20
			if seasonDate(y, i).Weekday() == time.Friday {
				temp, sun, total = 62, 9, 28
			}
			days = append(days, mkDay(y, i, total, 0, temp, sun, 0, 0))
		}
	}
	md := PrepareMomentum(days, 2021)

	res := PopFollowThrough(md, 0.9)
	if res.PopDays == 0 {
		t.Fatal("no pop days with nice Fridays after bad weeks")
	}
	if len(res.NextDay) != 0 {
		t.Errorf("next-day rows = %+v, want none: Monday is not a Friday pop's day 1", res.NextDay)
	}
	if res.Sustained != nil || res.Regressed != nil {
		t.Error("three-day sequences recorded across the weekend gap")
	}
}

func TestSaturdayMomentum(t *testing.T) {
	var days []models.MergedDay
	for _, y := range []int{2021, 2022} {
		days = append(days, momentumFrame(y)...)
	}
	md := PrepareMomentum(days, 2021)

	rows := SaturdayMomentum(md)
	if len(rows) == 0 {
		t.Fatal("no Saturday momentum rows")
	}
	for _, r := range rows {
		if r.Count < 2 {
			t.Errorf("bucket %s kept with %d samples", r.NiceWeekdays, r.Count)
		}
	}
}

func TestStreakMultipliersFlat(t *testing.T) {
	var days []models.MergedDay
	for i := 0; i < 28; i++ {
		days = append(days, mkDay(2021, i, 20, 0, 62, 9, 0, 0))
	}
	md := PrepareMomentum(days, 2021)

	m := StreakMultipliers(md, 1)
	for label, v := range m.Nice {
		if v != 1 {
			t.Errorf("nice[%s] = %v, want 1.0 on flat volume", label, v)
		}
	}
}

func TestCompareModels(t *testing.T) {
	var days []models.MergedDay
	for _, y := range []int{2021, 2022, 2023} {
		days = append(days, momentumFrame(y)...)
	}
	md := PrepareMomentum(days, 2021)

	cmp, err := CompareModels(md, 3, model.Config{
		Trees: 30, MaxDepth: 3, LearningRate: 0.1,
		Subsample: 1.0, MinLeaf: 3, Seed: 42,
	})
	if err != nil {
		t.Fatalf("CompareModels: %v", err)
	}
	if cmp.BaseCVMAE <= 0 || cmp.MomentumCVMAE <= 0 {
		t.Errorf("CV MAEs = %v/%v, want positive", cmp.BaseCVMAE, cmp.MomentumCVMAE)
	}
	if cmp.MomentumShare < 0 || cmp.MomentumShare > 1 {
		t.Errorf("momentum share = %v, want within [0,1]", cmp.MomentumShare)
	}
}

func TestPhase(t *testing.T) {
	tests := []struct {
		dos  int
		want string
	}{
		{0, PhaseEarly},
		{13, PhaseEarly},
		{14, PhaseRamp},
		{29, PhaseRamp},
		{30, PhasePeak},
		{59, PhasePeak},
		{60, PhaseTail},
		{84, PhaseTail},
	}
	for _, tt := range tests {
		if got := Phase(tt.dos); got != tt.want {
			t.Errorf("Phase(%d) = %s, want %s", tt.dos, got, tt.want)
		}
	}
}

func TestPhaseQualityEffects(t *testing.T) {
	var days []models.MergedDay
	for i := 0; i < 84; i++ {
		temp, sun, total := 62.0, 9.0, 30
		if i%2 == 0 {
			temp, sun, total = 38, 1, 15
		}
		days = append(days, mkDay(2021, i, total, 0, temp, sun, 0, 0))
	}
	days = engineered(days)

	summaries, rows := PhaseQualityEffects(days, 1)
	if len(summaries) != 4 {
		t.Fatalf("len(summaries) = %d, want 4", len(summaries))
	}
	for _, r := range rows {
		switch r.Quality {
		case "nice":
			if r.VsPhaseAvgPct <= 0 {
				t.Errorf("%s nice effect = %v, want positive", r.Phase, r.VsPhaseAvgPct)
			}
		case "bad":
			if r.VsPhaseAvgPct >= 0 {
				t.Errorf("%s bad effect = %v, want negative", r.Phase, r.VsPhaseAvgPct)
			}
		}
	}
}

func TestPhaseCorrelations(t *testing.T) {
	var days []models.MergedDay
	for i := 0; i < 84; i++ {
		temp := 40.0 + float64(i%25)
		days = append(days, mkDay(2021, i, int(temp*2), 0, temp, 5, 0, 0))
	}
	days = engineered(days)

	rows := PhaseCorrelations(days)
	if len(rows) == 0 {
		t.Fatal("no correlation rows")
	}
	for _, r := range rows {
		if r.Field != features.FieldTempMax {
			continue
		}
		if r.R < 0.99 {
			t.Errorf("%s temp r = %v, want ~1", r.Phase, r.R)
		}
		if r.P > 0.01 {
			t.Errorf("%s temp p = %v, want significant", r.Phase, r.P)
		}
	}
}

func TestTempAnomalies(t *testing.T) {
	var days []models.MergedDay
	// Three years at the same days of season, one year running hot.
	for _, y := range []int{2021, 2022, 2023} {
		for i := 0; i < 30; i++ {
			temp, total := 50.0, 20
			if y == 2023 {
				temp, total = 65, 30
			}
			days = append(days, mkDay(y, i, total, 0, temp, 5, 0, 0))
		}
	}
	days = engineered(days)

	rows := TempAnomalies(days, 1)
	if len(rows) == 0 {
		t.Fatal("no anomaly rows")
	}
	for _, r := range rows {
		if r.Category == TempAbove && r.VsPhaseAvgPct <= 0 {
			t.Errorf("%s above-normal effect = %v, want positive", r.Phase, r.VsPhaseAvgPct)
		}
	}
}

func TestDMTiming(t *testing.T) {
	var days []models.MergedDay
	for i := 0; i < 20; i++ {
		dm := 4
		if i == 5 || i == 12 {
			dm = 20
		}
		days = append(days, mkDay(2021, i, dm+10, dm, 60, 6, 0, 0))
	}
	days = append(days, mkDay(2021, 25, 8, 0, 60, 6, 0, 0)) // no DM, excluded
	days = engineered(days)

	res := DMTiming(days, 3)
	if res.DMDays != 20 {
		t.Errorf("DMDays = %d, want 20", res.DMDays)
	}
	if res.MedianDM != 4 {
		t.Errorf("MedianDM = %v, want 4", res.MedianDM)
	}
	if res.SpikeDays != 2 {
		t.Errorf("SpikeDays = %d, want 2 (above 2x median)", res.SpikeDays)
	}
	if len(res.ByWeek) == 0 {
		t.Error("no weekly rows")
	}
	total := 0
	for _, w := range res.ByWeek {
		total += w.Days
	}
	if total != 20 {
		t.Errorf("weekly rows cover %d days, want 20", total)
	}
	if res.SpikeConditions != nil {
		t.Errorf("spike conditions reported with only %d spikes", res.SpikeDays)
	}
}
