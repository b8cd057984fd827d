package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/lawnsignal/leadcast/internal/features"
	"github.com/lawnsignal/leadcast/internal/models"
)

// Season phases by day of season. The dates in the labels are the
// approximate calendar windows for a mid-February season start.
const (
	PhaseEarly = "Early (Feb 15-Mar 1)"
	PhaseRamp  = "Ramp (Mar 1-17)"
	PhasePeak  = "Peak (Mar 17-Apr 16)"
	PhaseTail  = "Tail (Apr 16-May 10)"
)

// PhaseNames lists the phases in season order.
var PhaseNames = []string{PhaseEarly, PhaseRamp, PhasePeak, PhaseTail}

// Phase maps a day of season to its phase label.
func Phase(dayOfSeason int) string {
	switch {
	case dayOfSeason < 14:
		return PhaseEarly
	case dayOfSeason < 30:
		return PhaseRamp
	case dayOfSeason < 60:
		return PhasePeak
	default:
		return PhaseTail
	}
}

// PhaseQualityRow is the lead effect of one weather quality within one
// phase, relative to that phase's average.
type PhaseQualityRow struct {
	Phase         string  `json:"phase"`
	Quality       string  `json:"quality"`
	AvgLeads      float64 `json:"avg_leads"`
	VsPhaseAvgPct float64 `json:"vs_phase_avg_pct"`
	Count         int     `json:"count"`
}

// PhaseSummary is the overall weekday lead level of one phase.
type PhaseSummary struct {
	Phase    string  `json:"phase"`
	AvgLeads float64 `json:"avg_leads"`
	Days     int     `json:"days"`
}

// PhaseQualityEffects measures whether weather quality matters more in
// some parts of the season than others. Weekdays only, so the weekend
// swing does not masquerade as a weather effect.
func PhaseQualityEffects(days []models.MergedDay, minSamples int) ([]PhaseSummary, []PhaseQualityRow) {
	type acc struct {
		sum float64
		n   int
	}
	phaseAcc := map[string]*acc{}
	type key struct {
		phase   string
		quality models.Quality
	}
	qualAcc := map[key]*acc{}

	for _, d := range days {
		if d.DOW >= 5 || !d.HasWeather() {
			continue
		}
		p := Phase(d.DayOfSeason)
		pa := phaseAcc[p]
		if pa == nil {
			pa = &acc{}
			phaseAcc[p] = pa
		}
		pa.sum += float64(d.TotalLeads)
		pa.n++

		k := key{p, d.Quality}
		qa := qualAcc[k]
		if qa == nil {
			qa = &acc{}
			qualAcc[k] = qa
		}
		qa.sum += float64(d.TotalLeads)
		qa.n++
	}

	var summaries []PhaseSummary
	var rows []PhaseQualityRow
	for _, p := range PhaseNames {
		pa := phaseAcc[p]
		if pa == nil || pa.n == 0 {
			continue
		}
		phaseAvg := pa.sum / float64(pa.n)
		summaries = append(summaries, PhaseSummary{Phase: p, AvgLeads: phaseAvg, Days: pa.n})

		for _, q := range []models.Quality{models.QualityNice, models.QualityOK, models.QualityBad} {
			qa := qualAcc[key{p, q}]
			if qa == nil || qa.n < minSamples {
				continue
			}
			avg := qa.sum / float64(qa.n)
			r := PhaseQualityRow{
				Phase:    p,
				Quality:  string(q),
				AvgLeads: avg,
				Count:    qa.n,
			}
			if phaseAvg > 0 {
				r.VsPhaseAvgPct = (avg/phaseAvg - 1) * 100
			}
			rows = append(rows, r)
		}
	}
	return summaries, rows
}

// PhaseCorrRow is the Pearson correlation of one weather variable with
// weekday lead volume inside one phase.
type PhaseCorrRow struct {
	Phase string  `json:"phase"`
	Field string  `json:"field"`
	R     float64 `json:"r"`
	P     float64 `json:"p_value"`
	N     int     `json:"n"`
}

// minCorrRows is the floor below which a per-phase correlation is too
// noisy to report.
const minCorrRows = 10

// PhaseCorrelations computes per-phase temperature and sunshine
// correlations with weekday lead volume, with a two-sided t-test
// p-value.
func PhaseCorrelations(days []models.MergedDay) []PhaseCorrRow {
	vars := []struct {
		field string
		value func(models.MergedDay) (float64, bool)
	}{
		{features.FieldTempMax, func(d models.MergedDay) (float64, bool) { return d.Weather.TempMax.Float64, d.Weather.TempMax.Valid }},
		{features.FieldSunshineHrs, func(d models.MergedDay) (float64, bool) { return d.Weather.SunshineHrs.Float64, d.Weather.SunshineHrs.Valid }},
	}

	var out []PhaseCorrRow
	for _, p := range PhaseNames {
		for _, v := range vars {
			var xs, ys []float64
			for _, d := range days {
				if d.DOW >= 5 || Phase(d.DayOfSeason) != p {
					continue
				}
				val, ok := v.value(d)
				if !ok {
					continue
				}
				xs = append(xs, val)
				ys = append(ys, float64(d.TotalLeads))
			}
			if len(xs) < minCorrRows {
				continue
			}
			r := stat.Correlation(xs, ys, nil)
			out = append(out, PhaseCorrRow{
				Phase: p,
				Field: v.field,
				R:     r,
				P:     pearsonPValue(r, len(xs)),
				N:     len(xs),
			})
		}
	}
	return out
}

// pearsonPValue is the two-sided p-value of a Pearson r under the null
// of no correlation, via the exact t distribution with n-2 degrees of
// freedom.
func pearsonPValue(r float64, n int) float64 {
	if n <= 2 {
		return 1
	}
	den := 1 - r*r
	if den <= 0 {
		return 0
	}
	t := r * math.Sqrt(float64(n-2)/den)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
	return 2 * dist.CDF(-math.Abs(t))
}

// Temperature-anomaly categories relative to the climatological normal
// for that day of season.
const (
	TempAbove  = "Above (+5°F)"
	TempNormal = "Normal (±5°F)"
	TempBelow  = "Below (-5°F)"
)

// TempAnomalyRow is the lead effect of unseasonable temperature within
// one phase.
type TempAnomalyRow struct {
	Phase         string  `json:"phase"`
	Category      string  `json:"category"`
	AvgLeads      float64 `json:"avg_leads"`
	VsPhaseAvgPct float64 `json:"vs_phase_avg_pct"`
	Count         int     `json:"count"`
}

// TempAnomalies compares days that ran more than 5°F above or below the
// average temperature for their day of season. "Warm for March" can
// move demand even when the absolute temperature is unremarkable.
func TempAnomalies(days []models.MergedDay, minSamples int) []TempAnomalyRow {
	type acc struct {
		sum float64
		n   int
	}
	normSum := map[int]float64{}
	normN := map[int]int{}
	for _, d := range days {
		if d.DOW >= 5 || !d.Weather.TempMax.Valid {
			continue
		}
		normSum[d.DayOfSeason] += d.Weather.TempMax.Float64
		normN[d.DayOfSeason]++
	}

	phaseAcc := map[string]*acc{}
	type key struct{ phase, cat string }
	catAcc := map[key]*acc{}
	for _, d := range days {
		if d.DOW >= 5 || !d.Weather.TempMax.Valid || normN[d.DayOfSeason] == 0 {
			continue
		}
		normal := normSum[d.DayOfSeason] / float64(normN[d.DayOfSeason])
		diff := d.Weather.TempMax.Float64 - normal
		cat := TempNormal
		if diff > 5 {
			cat = TempAbove
		} else if diff < -5 {
			cat = TempBelow
		}

		p := Phase(d.DayOfSeason)
		pa := phaseAcc[p]
		if pa == nil {
			pa = &acc{}
			phaseAcc[p] = pa
		}
		pa.sum += float64(d.TotalLeads)
		pa.n++

		k := key{p, cat}
		ca := catAcc[k]
		if ca == nil {
			ca = &acc{}
			catAcc[k] = ca
		}
		ca.sum += float64(d.TotalLeads)
		ca.n++
	}

	var out []TempAnomalyRow
	for _, p := range PhaseNames {
		pa := phaseAcc[p]
		if pa == nil || pa.n == 0 {
			continue
		}
		phaseAvg := pa.sum / float64(pa.n)
		for _, cat := range []string{TempAbove, TempNormal, TempBelow} {
			ca := catAcc[key{p, cat}]
			if ca == nil || ca.n < minSamples {
				continue
			}
			avg := ca.sum / float64(ca.n)
			r := TempAnomalyRow{
				Phase:    p,
				Category: cat,
				AvgLeads: avg,
				Count:    ca.n,
			}
			if phaseAvg > 0 {
				r.VsPhaseAvgPct = (avg/phaseAvg - 1) * 100
			}
			out = append(out, r)
		}
	}
	return out
}
