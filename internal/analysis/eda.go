package analysis

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/lawnsignal/leadcast/internal/models"
)

var dowNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// YearRow summarizes one season's lead volume.
type YearRow struct {
	Year         int      `json:"year"`
	Total        int      `json:"total"`
	Days         int      `json:"days"`
	DailyAvg     float64  `json:"daily_avg"`
	DMTotal      int      `json:"dm_total"`
	OrganicTotal int      `json:"organic_total"`
	DMPct        float64  `json:"dm_pct"`
	YoYGrowthPct *float64 `json:"yoy_growth,omitempty"`
}

// YearlySummary aggregates lead volume per year with year-over-year
// growth. Years come back ascending; the first year has no growth figure.
func YearlySummary(days []models.MergedDay) []YearRow {
	byYear := map[int]*YearRow{}
	for _, d := range days {
		r := byYear[d.Year]
		if r == nil {
			r = &YearRow{Year: d.Year}
			byYear[d.Year] = r
		}
		r.Total += d.TotalLeads
		r.DMTotal += d.DMLeads
		r.OrganicTotal += d.OrganicLeads
		r.Days++
	}

	out := make([]YearRow, 0, len(byYear))
	for _, r := range byYear {
		r.DailyAvg = float64(r.Total) / float64(r.Days)
		if r.Total > 0 {
			r.DMPct = float64(r.DMTotal) / float64(r.Total) * 100
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })

	for i := 1; i < len(out); i++ {
		if out[i-1].Total > 0 {
			g := (float64(out[i].Total)/float64(out[i-1].Total) - 1) * 100
			out[i].YoYGrowthPct = &g
		}
	}
	return out
}

// DOWRow is the lead profile of one day of the week.
type DOWRow struct {
	DOW             int     `json:"dow"`
	Name            string  `json:"dow_name"`
	AvgTotal        float64 `json:"avg_total"`
	AvgOrganic      float64 `json:"avg_organic"`
	AvgDM           float64 `json:"avg_dm"`
	MedianTotal     float64 `json:"median_total"`
	Count           int     `json:"count"`
	PctVsWeekdayAvg float64 `json:"pct_vs_weekday_avg"`
}

// DayOfWeek profiles lead volume Monday through Sunday, each day
// compared against the Monday-Friday average.
func DayOfWeek(days []models.MergedDay) []DOWRow {
	type acc struct {
		total, organic, dm float64
		totals             []float64
	}
	var buckets [7]acc
	var weekdaySum float64
	var weekdayN int
	for _, d := range days {
		b := &buckets[d.DOW]
		b.total += float64(d.TotalLeads)
		b.organic += float64(d.OrganicLeads)
		b.dm += float64(d.DMLeads)
		b.totals = append(b.totals, float64(d.TotalLeads))
		if d.DOW < 5 {
			weekdaySum += float64(d.TotalLeads)
			weekdayN++
		}
	}

	weekdayAvg := 0.0
	if weekdayN > 0 {
		weekdayAvg = weekdaySum / float64(weekdayN)
	}

	var out []DOWRow
	for dow, b := range buckets {
		n := len(b.totals)
		if n == 0 {
			continue
		}
		r := DOWRow{
			DOW:         dow,
			Name:        dowNames[dow],
			AvgTotal:    b.total / float64(n),
			AvgOrganic:  b.organic / float64(n),
			AvgDM:       b.dm / float64(n),
			MedianTotal: median(b.totals),
			Count:       n,
		}
		if weekdayAvg > 0 {
			r.PctVsWeekdayAvg = (r.AvgTotal/weekdayAvg - 1) * 100
		}
		out = append(out, r)
	}
	return out
}

// WeekRow is the average weekly lead volume for one calendar week,
// averaged across the per-year weekly totals.
type WeekRow struct {
	Week       int     `json:"week_num"`
	AvgTotal   float64 `json:"avg_total"`
	AvgOrganic float64 `json:"avg_organic"`
	AvgDM      float64 `json:"avg_dm"`
	Years      int     `json:"years"`
}

// WeeklyCurve builds the seasonal shape: weekly totals per year, then
// averaged per calendar week across years.
func WeeklyCurve(days []models.MergedDay) []WeekRow {
	type key struct{ year, week int }
	type tot struct{ total, organic, dm float64 }
	perYearWeek := map[key]*tot{}
	for _, d := range days {
		k := key{d.Year, d.WeekNum}
		t := perYearWeek[k]
		if t == nil {
			t = &tot{}
			perYearWeek[k] = t
		}
		t.total += float64(d.TotalLeads)
		t.organic += float64(d.OrganicLeads)
		t.dm += float64(d.DMLeads)
	}

	byWeek := map[int]*WeekRow{}
	for k, t := range perYearWeek {
		r := byWeek[k.week]
		if r == nil {
			r = &WeekRow{Week: k.week}
			byWeek[k.week] = r
		}
		r.AvgTotal += t.total
		r.AvgOrganic += t.organic
		r.AvgDM += t.dm
		r.Years++
	}

	var out []WeekRow
	for _, r := range byWeek {
		n := float64(r.Years)
		r.AvgTotal /= n
		r.AvgOrganic /= n
		r.AvgDM /= n
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Week < out[j].Week })
	return out
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.LinInterp, sorted, nil)
}
