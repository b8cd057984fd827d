package features

import (
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/lawnsignal/leadcast/internal/models"
)

func f(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

// day builds a season day whose quality classifies as requested.
func day(year, month, dom int, quality models.Quality) models.MergedDay {
	var sun, temp float64
	switch quality {
	case models.QualityNice:
		sun, temp = 8, 60
	case models.QualityOK:
		sun, temp = 5, 50
	default: // bad
		sun, temp = 1, 45
	}
	return models.MergedDay{
		DailyRecord: models.DailyRecord{
			Date: time.Date(year, time.Month(month), dom, 0, 0, 0, 0, time.UTC),
			Year: year,
		},
		Weather: models.WeatherRecord{
			TempMax:     f(temp),
			SunshineHrs: f(sun),
		},
	}
}

func TestEngineerMomentumStreaks(t *testing.T) {
	days := []models.MergedDay{
		day(2023, 3, 1, models.QualityNice),
		day(2023, 3, 2, models.QualityNice),
		day(2023, 3, 3, models.QualityBad),
		day(2023, 3, 4, models.QualityBad),
		day(2023, 3, 5, models.QualityNice), // pop day
		day(2023, 3, 6, models.QualityOK),
	}
	Engineer(days, 2021)
	EngineerMomentum(days)

	wantNice := []int{1, 2, 0, 0, 1, 0}
	wantBad := []int{0, 0, 1, 2, 0, 0}
	for i := range days {
		if days[i].NiceStreak != wantNice[i] {
			t.Errorf("day %d: NiceStreak = %d, want %d", i, days[i].NiceStreak, wantNice[i])
		}
		if days[i].BadStreak != wantBad[i] {
			t.Errorf("day %d: BadStreak = %d, want %d", i, days[i].BadStreak, wantBad[i])
		}
	}

	if days[4].IsPopDay != 1 {
		t.Errorf("nice-after-bad day: IsPopDay = %d, want 1", days[4].IsPopDay)
	}
	for _, i := range []int{0, 1, 2, 3, 5} {
		if days[i].IsPopDay != 0 {
			t.Errorf("day %d: IsPopDay = %d, want 0", i, days[i].IsPopDay)
		}
	}

	if days[5].PrevQuality != models.QualityNice || days[5].Prev2Quality != models.QualityBad {
		t.Errorf("day 5 prev qualities = %q/%q, want nice/bad", days[5].PrevQuality, days[5].Prev2Quality)
	}
	if days[0].PrevQuality != models.QualityUnknown {
		t.Errorf("first day PrevQuality = %q, want unknown", days[0].PrevQuality)
	}
}

func TestEngineerMomentumYearReset(t *testing.T) {
	days := []models.MergedDay{
		day(2022, 5, 8, models.QualityNice),
		day(2022, 5, 9, models.QualityNice),
		day(2022, 5, 10, models.QualityNice),
		day(2023, 2, 15, models.QualityNice),
	}
	Engineer(days, 2021)
	EngineerMomentum(days)

	if days[2].NiceStreak != 3 {
		t.Fatalf("end of 2022: NiceStreak = %d, want 3", days[2].NiceStreak)
	}
	if days[3].NiceStreak != 1 {
		t.Errorf("start of 2023: NiceStreak = %d, want 1 (streak must reset)", days[3].NiceStreak)
	}
	if days[3].PrevQuality != models.QualityUnknown {
		t.Errorf("start of 2023: PrevQuality = %q, want unknown", days[3].PrevQuality)
	}
	if days[3].TempChange1d != 0 {
		t.Errorf("start of 2023: TempChange1d = %v, want 0", days[3].TempChange1d)
	}
}

func TestEngineerRollingAverages(t *testing.T) {
	days := []models.MergedDay{
		day(2023, 3, 1, models.QualityNice),
		day(2023, 3, 2, models.QualityNice),
		day(2023, 3, 3, models.QualityNice),
		day(2023, 3, 4, models.QualityNice),
	}
	temps := []float64{50, 60, 70, 40}
	for i := range days {
		days[i].Weather.TempMax = f(temps[i])
	}
	Engineer(days, 2021)

	want := []float64{50, 55, 60, 170.0 / 3}
	for i := range days {
		got := days[i].TempMax3dAvg
		if !got.Valid {
			t.Fatalf("day %d: TempMax3dAvg not set", i)
		}
		if math.Abs(got.Float64-want[i]) > 1e-9 {
			t.Errorf("day %d: TempMax3dAvg = %v, want %v", i, got.Float64, want[i])
		}
	}
}

func TestEngineerRollingAveragesYearIsolation(t *testing.T) {
	days := []models.MergedDay{
		day(2022, 5, 9, models.QualityNice),
		day(2022, 5, 10, models.QualityNice),
		day(2023, 2, 15, models.QualityNice),
	}
	days[0].Weather.TempMax = f(80)
	days[1].Weather.TempMax = f(80)
	days[2].Weather.TempMax = f(50)
	Engineer(days, 2021)

	got := days[2].TempMax3dAvg
	if !got.Valid || got.Float64 != 50 {
		t.Errorf("first 2023 day: TempMax3dAvg = %+v, want 50 (window must not cross years)", got)
	}
}

func TestEngineerRollingAverageSkipsMissing(t *testing.T) {
	days := []models.MergedDay{
		day(2023, 3, 1, models.QualityNice),
		day(2023, 3, 2, models.QualityNice),
	}
	days[0].Weather.TempMax = sql.NullFloat64{}
	days[1].Weather.TempMax = f(60)
	Engineer(days, 2021)

	if got := days[1].TempMax3dAvg; !got.Valid || got.Float64 != 60 {
		t.Errorf("TempMax3dAvg = %+v, want 60 (missing day excluded, not zeroed)", got)
	}
	if got := days[0].TempMax3dAvg; got.Valid {
		t.Errorf("TempMax3dAvg = %+v, want invalid when no observations", got)
	}
}

func TestBuildMatrix(t *testing.T) {
	days := []models.MergedDay{day(2023, 3, 1, models.QualityNice)}
	days[0].DOW = 2
	days[0].DayOfSeason = 14
	days[0].Weather.WindMaxMPH = sql.NullFloat64{} // missing
	Engineer(days, 2021)

	m, err := BuildMatrix(days, BaseFields())
	if err != nil {
		t.Fatalf("BuildMatrix: %v", err)
	}
	if len(m.Rows) != 1 || len(m.Rows[0]) != len(BaseFields()) {
		t.Fatalf("matrix shape = %dx%d, want 1x%d", len(m.Rows), len(m.Rows[0]), len(BaseFields()))
	}

	wind, err := m.Index(FieldWindMaxMPH)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if m.Rows[0][wind] != 0 {
		t.Errorf("missing wind = %v, want 0", m.Rows[0][wind])
	}

	trend, _ := m.Index(FieldYearTrend)
	if m.Rows[0][trend] != 2 {
		t.Errorf("year_trend = %v, want 2", m.Rows[0][trend])
	}
}

func TestTargets(t *testing.T) {
	days := []models.MergedDay{
		day(2023, 3, 1, models.QualityNice),
		day(2023, 3, 2, models.QualityBad),
	}
	days[0].TotalLeads, days[0].OrganicLeads = 12, 9
	days[1].TotalLeads, days[1].OrganicLeads = 7, 7

	total, organic := Targets(days)
	if len(total) != 2 || len(organic) != 2 {
		t.Fatalf("lengths = %d/%d, want 2/2", len(total), len(organic))
	}
	if total[0] != 12 || total[1] != 7 {
		t.Errorf("total = %v, want [12 7]", total)
	}
	if organic[0] != 9 || organic[1] != 7 {
		t.Errorf("organic = %v, want [9 7]", organic)
	}
}

func TestBuildMatrixUnknownField(t *testing.T) {
	days := []models.MergedDay{day(2023, 3, 1, models.QualityNice)}
	if _, err := BuildMatrix(days, []string{"dow", "no_such_field"}); err == nil {
		t.Fatal("BuildMatrix accepted an unknown field")
	}
}
