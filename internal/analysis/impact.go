package analysis

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/lawnsignal/leadcast/internal/features"
	"github.com/lawnsignal/leadcast/internal/models"
)

// ConditionRow is the lead profile of one weather condition.
type ConditionRow struct {
	Condition     string  `json:"condition"`
	AvgTotal      float64 `json:"avg_total"`
	AvgOrganic    float64 `json:"avg_organic"`
	MedianTotal   float64 `json:"median_total"`
	Count         int     `json:"count"`
	VsBaselinePct float64 `json:"vs_baseline_pct"`
}

// ConditionImpact compares average lead volume per classified condition
// against the overall daily average, best conditions first. Conditions
// with fewer than minSamples days are dropped.
func ConditionImpact(days []models.MergedDay, minSamples int) []ConditionRow {
	type acc struct {
		total, organic float64
		totals         []float64
	}
	byCond := map[string]*acc{}
	var overallSum float64
	for _, d := range days {
		a := byCond[d.Condition]
		if a == nil {
			a = &acc{}
			byCond[d.Condition] = a
		}
		a.total += float64(d.TotalLeads)
		a.organic += float64(d.OrganicLeads)
		a.totals = append(a.totals, float64(d.TotalLeads))
		overallSum += float64(d.TotalLeads)
	}
	if len(days) == 0 {
		return nil
	}
	overallAvg := overallSum / float64(len(days))

	var out []ConditionRow
	for cond, a := range byCond {
		n := len(a.totals)
		if n < minSamples {
			continue
		}
		r := ConditionRow{
			Condition:   cond,
			AvgTotal:    a.total / float64(n),
			AvgOrganic:  a.organic / float64(n),
			MedianTotal: median(a.totals),
			Count:       n,
		}
		if overallAvg > 0 {
			r.VsBaselinePct = (r.AvgTotal/overallAvg - 1) * 100
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AvgTotal > out[j].AvgTotal })
	return out
}

// BucketRow is the lead profile of one value range of a weather variable.
type BucketRow struct {
	Label         string  `json:"label"`
	AvgTotal      float64 `json:"avg_total"`
	AvgOrganic    float64 `json:"avg_organic"`
	Count         int     `json:"count"`
	VsBaselinePct float64 `json:"vs_baseline_pct"`
}

// bucketEdges pair half-open (lo, hi] ranges with display labels.
type bucket struct {
	lo, hi float64
	label  string
}

var tempBuckets = []bucket{
	{0, 40, "<40°F"},
	{40, 50, "40-50°F"},
	{50, 60, "50-60°F"},
	{60, 70, "60-70°F"},
	{70, 80, "70-80°F"},
	{80, 100, "80°F+"},
}

var sunshineBuckets = []bucket{
	{-1, 2, "<2hrs"},
	{2, 5, "2-5hrs"},
	{5, 8, "5-8hrs"},
	{8, 15, "8hrs+"},
}

var precipBuckets = []bucket{
	{-0.01, 0, "Dry"},
	{0, 0.1, "Trace"},
	{0.1, 0.5, "Light Rain"},
	{0.5, 5, "Heavy Rain"},
}

// TempBuckets groups days by max temperature band.
func TempBuckets(days []models.MergedDay, minSamples int) []BucketRow {
	return bucketImpact(days, tempBuckets, minSamples, func(d models.MergedDay) (float64, bool) {
		return d.Weather.TempMax.Float64, d.Weather.TempMax.Valid
	})
}

// SunshineBuckets groups days by hours of sunshine.
func SunshineBuckets(days []models.MergedDay, minSamples int) []BucketRow {
	return bucketImpact(days, sunshineBuckets, minSamples, func(d models.MergedDay) (float64, bool) {
		return d.Weather.SunshineHrs.Float64, d.Weather.SunshineHrs.Valid
	})
}

// PrecipBuckets groups days by rainfall amount.
func PrecipBuckets(days []models.MergedDay, minSamples int) []BucketRow {
	return bucketImpact(days, precipBuckets, minSamples, func(d models.MergedDay) (float64, bool) {
		return d.Weather.PrecipIn.Float64, d.Weather.PrecipIn.Valid
	})
}

func bucketImpact(days []models.MergedDay, buckets []bucket, minSamples int, value func(models.MergedDay) (float64, bool)) []BucketRow {
	type acc struct {
		total, organic float64
		n              int
	}
	accs := make([]acc, len(buckets))
	var overallSum float64
	var overallN int
	for _, d := range days {
		v, ok := value(d)
		if !ok {
			continue
		}
		overallSum += float64(d.TotalLeads)
		overallN++
		for i, b := range buckets {
			if v > b.lo && v <= b.hi {
				accs[i].total += float64(d.TotalLeads)
				accs[i].organic += float64(d.OrganicLeads)
				accs[i].n++
				break
			}
		}
	}
	if overallN == 0 {
		return nil
	}
	overallAvg := overallSum / float64(overallN)

	var out []BucketRow
	for i, a := range accs {
		if a.n < minSamples {
			continue
		}
		r := BucketRow{
			Label:      buckets[i].label,
			AvgTotal:   a.total / float64(a.n),
			AvgOrganic: a.organic / float64(a.n),
			Count:      a.n,
		}
		if overallAvg > 0 {
			r.VsBaselinePct = (r.AvgTotal/overallAvg - 1) * 100
		}
		out = append(out, r)
	}
	return out
}

// CrossRow is the average lead volume for one day-type and condition pair.
type CrossRow struct {
	DayType   string  `json:"day_type"`
	Condition string  `json:"condition"`
	AvgTotal  float64 `json:"avg_total"`
	Count     int     `json:"count"`
}

// DayTypeConditionCross crosses weekday/Saturday/Sunday against weather
// condition, showing how the weekend premium interacts with weather.
func DayTypeConditionCross(days []models.MergedDay, minSamples int) []CrossRow {
	type key struct{ dayType, cond string }
	type acc struct {
		total float64
		n     int
	}
	accs := map[key]*acc{}
	for _, d := range days {
		dayType := "Weekday"
		if d.IsSaturday {
			dayType = "Saturday"
		} else if d.IsSunday {
			dayType = "Sunday"
		}
		k := key{dayType, d.Condition}
		a := accs[k]
		if a == nil {
			a = &acc{}
			accs[k] = a
		}
		a.total += float64(d.TotalLeads)
		a.n++
	}

	var out []CrossRow
	for k, a := range accs {
		if a.n < minSamples {
			continue
		}
		out = append(out, CrossRow{
			DayType:   k.dayType,
			Condition: k.cond,
			AvgTotal:  a.total / float64(a.n),
			Count:     a.n,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayType != out[j].DayType {
			return out[i].DayType < out[j].DayType
		}
		return out[i].Condition < out[j].Condition
	})
	return out
}

// CorrelationRow is the Pearson correlation of one variable with daily
// total leads.
type CorrelationRow struct {
	Field string  `json:"field"`
	R     float64 `json:"r"`
	N     int     `json:"n"`
}

// Correlations computes the Pearson correlation of each numeric weather
// and calendar variable against daily total leads, over the days where
// the variable is observed. Strongest absolute correlations first.
func Correlations(days []models.MergedDay) []CorrelationRow {
	extract := []struct {
		field string
		value func(models.MergedDay) (float64, bool)
	}{
		{features.FieldTempMax, func(d models.MergedDay) (float64, bool) { return d.Weather.TempMax.Float64, d.Weather.TempMax.Valid }},
		{"temp_min", func(d models.MergedDay) (float64, bool) { return d.Weather.TempMin.Float64, d.Weather.TempMin.Valid }},
		{features.FieldTempMean, func(d models.MergedDay) (float64, bool) { return d.Weather.TempMean.Float64, d.Weather.TempMean.Valid }},
		{features.FieldSunshineHrs, func(d models.MergedDay) (float64, bool) { return d.Weather.SunshineHrs.Float64, d.Weather.SunshineHrs.Valid }},
		{features.FieldPrecipIn, func(d models.MergedDay) (float64, bool) { return d.Weather.PrecipIn.Float64, d.Weather.PrecipIn.Valid }},
		{features.FieldSnowfallIn, func(d models.MergedDay) (float64, bool) { return d.Weather.SnowfallIn.Float64, d.Weather.SnowfallIn.Valid }},
		{features.FieldWindMaxMPH, func(d models.MergedDay) (float64, bool) { return d.Weather.WindMaxMPH.Float64, d.Weather.WindMaxMPH.Valid }},
		{features.FieldDayOfSeason, func(d models.MergedDay) (float64, bool) { return float64(d.DayOfSeason), true }},
		{features.FieldDOW, func(d models.MergedDay) (float64, bool) { return float64(d.DOW), true }},
	}

	var out []CorrelationRow
	for _, e := range extract {
		var xs, ys []float64
		for _, d := range days {
			v, ok := e.value(d)
			if !ok {
				continue
			}
			xs = append(xs, v)
			ys = append(ys, float64(d.TotalLeads))
		}
		if len(xs) < 3 {
			continue
		}
		out = append(out, CorrelationRow{
			Field: e.field,
			R:     stat.Correlation(xs, ys, nil),
			N:     len(xs),
		})
	}
	sort.Slice(out, func(i, j int) bool { return abs(out[i].R) > abs(out[j].R) })
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
