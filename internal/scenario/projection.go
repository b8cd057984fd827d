package scenario

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/lawnsignal/leadcast/internal/config"
	"github.com/lawnsignal/leadcast/internal/features"
	"github.com/lawnsignal/leadcast/internal/model"
	"github.com/lawnsignal/leadcast/internal/models"
)

// ProjectionRow is the expected lead volume for one day-of-season under
// climatological average weather, for one day of the week.
type ProjectionRow struct {
	DayOfSeason   int     `json:"day_of_season"`
	DOW           int     `json:"dow"`
	DOWName       string  `json:"dow_name"`
	Predicted     float64 `json:"predicted_leads"`
	HistoricalAvg float64 `json:"historical_avg"`
	HistoricalStd float64 `json:"historical_std"`
}

var dowNames = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

type dayClimate struct {
	tempMax, tempMean, sunshine, precip, snow, wind []float64
	leads                                           []float64
}

// Project builds the seasonal baseline: for every day of season, average
// the weather across the full years, then predict each weekday under
// that average. The trend feature is pinned to the latest complete year
// so the projection reads as "next season at current volume".
func Project(m *model.GBDT, days []models.MergedDay, cfg config.Config) ([]ProjectionRow, error) {
	fullYears := map[int]bool{}
	for _, y := range cfg.FullYears {
		fullYears[y] = true
	}

	climate := map[int]*dayClimate{}
	for _, d := range days {
		if !fullYears[d.Year] {
			continue
		}
		c := climate[d.DayOfSeason]
		if c == nil {
			c = &dayClimate{}
			climate[d.DayOfSeason] = c
		}
		appendValid(&c.tempMax, d.Weather.TempMax.Float64, d.Weather.TempMax.Valid)
		appendValid(&c.tempMean, d.Weather.TempMean.Float64, d.Weather.TempMean.Valid)
		appendValid(&c.sunshine, d.Weather.SunshineHrs.Float64, d.Weather.SunshineHrs.Valid)
		appendValid(&c.precip, d.Weather.PrecipIn.Float64, d.Weather.PrecipIn.Valid)
		appendValid(&c.snow, d.Weather.SnowfallIn.Float64, d.Weather.SnowfallIn.Valid)
		appendValid(&c.wind, d.Weather.WindMaxMPH.Float64, d.Weather.WindMaxMPH.Valid)
		c.leads = append(c.leads, float64(d.TotalLeads))
	}

	var dosList []int
	for dos := range climate {
		dosList = append(dosList, dos)
	}
	sort.Ints(dosList)

	fields := features.BaseFields()
	schema := &features.Matrix{Fields: fields}
	yearTrend := float64(cfg.LatestFullYear() - cfg.BaseYear)
	seasonStart := cfg.SeasonStart(cfg.LatestFullYear())

	var rows []ProjectionRow
	for _, dos := range dosList {
		c := climate[dos]
		date := seasonStart.Add(time.Duration(dos) * 24 * time.Hour)
		_, week := date.ISOWeek()

		avgTemp := mean(c.tempMax)
		avgTempMean := mean(c.tempMean)
		avgSun := mean(c.sunshine)
		avgPrecip := mean(c.precip)
		avgSnow := mean(c.snow)
		avgWind := mean(c.wind)

		histAvg := mean(c.leads)
		histStd := 0.0
		if len(c.leads) > 1 {
			histStd = stat.StdDev(c.leads, nil)
		}

		for dow := 0; dow < 7; dow++ {
			overrides := map[string]float64{
				features.FieldDOW:           float64(dow),
				features.FieldIsWeekend:     b2f(dow >= 5),
				features.FieldIsSaturday:    b2f(dow == 5),
				features.FieldDayOfSeason:   float64(dos),
				features.FieldWeekNum:       float64(week),
				features.FieldMonth:         float64(date.Month()),
				features.FieldTempMax:       avgTemp,
				features.FieldTempMean:      avgTempMean,
				features.FieldSunshineHrs:   avgSun,
				features.FieldPrecipIn:      avgPrecip,
				features.FieldSnowfallIn:    avgSnow,
				features.FieldWindMaxMPH:    avgWind,
				features.FieldIsSnow:        b2f(avgSnow > 0.05),
				features.FieldIsRainy:       b2f(avgPrecip > 0.1),
				features.FieldIsSunny:       b2f(avgSun >= 8),
				features.FieldTempMax3dAvg:  avgTemp,
				features.FieldSunshine3dAvg: avgSun,
				features.FieldYearTrend:     yearTrend,
			}
			row, err := Build(make([]float64, len(fields)), schema, overrides)
			if err != nil {
				return nil, err
			}
			rows = append(rows, ProjectionRow{
				DayOfSeason:   dos,
				DOW:           dow,
				DOWName:       dowNames[dow],
				Predicted:     m.Predict(row),
				HistoricalAvg: histAvg,
				HistoricalStd: histStd,
			})
		}
	}
	return rows, nil
}

func appendValid(dst *[]float64, v float64, ok bool) {
	if ok {
		*dst = append(*dst, v)
	}
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	v := stat.Mean(vals, nil)
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
