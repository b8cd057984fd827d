package features

import (
	"database/sql"
	"sort"

	"github.com/lawnsignal/leadcast/internal/models"
	"github.com/lawnsignal/leadcast/internal/weather"
)

// Binary flag thresholds. These are deliberately looser than the
// classification thresholds: the flags mark days where the signal is
// present at all, the classifier marks days where it dominates.
const (
	snowFlagIn    = 0.05
	snowFlagDepth = 0.5
	rainFlagIn    = 0.1
	sunnyFlagHrs  = 8.0
	rollingWindow = 3
)

// Engineer sorts days date-ascending and fills the classification and
// base model features in place: condition and quality labels, binary
// flags, the year trend, and trailing 3-day rolling averages. Rolling
// windows never cross a year boundary.
func Engineer(days []models.MergedDay, baseYear int) {
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })

	for i := range days {
		d := &days[i]
		d.Condition = weather.Condition(d.Weather)
		d.Quality = weather.Quality(d.Weather)

		d.IsSnow = 0
		if orZero(d.Weather.SnowfallIn) > snowFlagIn || orZero(d.Weather.SnowDepth) > snowFlagDepth {
			d.IsSnow = 1
		}
		d.IsRainy = 0
		if orZero(d.Weather.RainIn) > rainFlagIn {
			d.IsRainy = 1
		}
		d.IsSunny = 0
		if orZero(d.Weather.SunshineHrs) >= sunnyFlagHrs {
			d.IsSunny = 1
		}
		d.YearTrend = d.Year - baseYear
	}

	for _, idx := range byYear(days) {
		for pos, i := range idx {
			lo := pos - rollingWindow + 1
			if lo < 0 {
				lo = 0
			}
			window := idx[lo : pos+1]
			days[i].TempMax3dAvg = rollingMean(days, window, func(d *models.MergedDay) sql.NullFloat64 {
				return d.Weather.TempMax
			})
			days[i].Sunshine3dAvg = rollingMean(days, window, func(d *models.MergedDay) sql.NullFloat64 {
				return d.Weather.SunshineHrs
			})
		}
	}
}

// EngineerMomentum fills the streak and momentum features. Days must
// already be engineered; the slice is walked per year in date order with
// a fresh tracker each year, so no momentum state leaks across seasons.
func EngineerMomentum(days []models.MergedDay) {
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })

	for _, idx := range byYear(days) {
		var tracker StreakTracker
		for pos, i := range idx {
			d := &days[i]
			d.NiceStreak, d.BadStreak = tracker.Observe(d.Quality)
			d.PrevQuality = tracker.Prev(1)
			d.Prev2Quality = tracker.Prev(2)

			d.TempChange1d = 0
			d.SunshineChange1d = 0
			if pos > 0 {
				prev := &days[idx[pos-1]]
				if d.Weather.TempMax.Valid && prev.Weather.TempMax.Valid {
					d.TempChange1d = d.Weather.TempMax.Float64 - prev.Weather.TempMax.Float64
				}
				if d.Weather.SunshineHrs.Valid && prev.Weather.SunshineHrs.Valid {
					d.SunshineChange1d = d.Weather.SunshineHrs.Float64 - prev.Weather.SunshineHrs.Float64
				}
			}

			d.QualityNum = weather.QualityNum(d.Quality)
			d.PrevQualityNum = weather.QualityNum(d.PrevQuality)

			d.IsPopDay = 0
			if d.Quality == models.QualityNice && d.PrevQuality == models.QualityBad {
				d.IsPopDay = 1
			}
		}
	}
}

// byYear returns index lists per year, preserving slice order within each
// year. Years come back in ascending order.
func byYear(days []models.MergedDay) [][]int {
	groups := map[int][]int{}
	var years []int
	for i := range days {
		y := days[i].Year
		if _, ok := groups[y]; !ok {
			years = append(years, y)
		}
		groups[y] = append(groups[y], i)
	}
	sort.Ints(years)
	out := make([][]int, 0, len(years))
	for _, y := range years {
		out = append(out, groups[y])
	}
	return out
}

func rollingMean(days []models.MergedDay, window []int, get func(*models.MergedDay) sql.NullFloat64) sql.NullFloat64 {
	var sum float64
	var n int
	for _, i := range window {
		if v := get(&days[i]); v.Valid {
			sum += v.Float64
			n++
		}
	}
	if n == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: sum / float64(n), Valid: true}
}

func orZero(v sql.NullFloat64) float64 {
	if v.Valid {
		return v.Float64
	}
	return 0
}
