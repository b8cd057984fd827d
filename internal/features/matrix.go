package features

import (
	"fmt"

	"github.com/lawnsignal/leadcast/internal/models"
)

// Canonical feature field names. Matrix columns are always laid out in
// the order of BaseFields/MomentumFields.
const (
	FieldDOW            = "dow"
	FieldIsWeekend      = "is_weekend"
	FieldIsSaturday     = "is_saturday"
	FieldDayOfSeason    = "day_of_season"
	FieldWeekNum        = "week_num"
	FieldMonth          = "month"
	FieldTempMax        = "temp_max"
	FieldTempMean       = "temp_mean"
	FieldSunshineHrs    = "sunshine_hrs"
	FieldPrecipIn       = "precip_in"
	FieldSnowfallIn     = "snowfall_in"
	FieldWindMaxMPH     = "wind_max_mph"
	FieldIsSnow         = "is_snow"
	FieldIsRainy        = "is_rainy"
	FieldIsSunny        = "is_sunny"
	FieldTempMax3dAvg   = "temp_max_3d_avg"
	FieldSunshine3dAvg  = "sunshine_3d_avg"
	FieldYearTrend      = "year_trend"
	FieldNiceStreak     = "nice_streak"
	FieldBadStreak      = "bad_streak"
	FieldTempChange1d   = "temp_change_1d"
	FieldSunshineChg1d  = "sunshine_change_1d"
	FieldQualityNum     = "weather_quality_num"
	FieldPrevQualityNum = "prev_quality_num"
	FieldIsPopDay       = "is_pop_day"
)

// BaseFields is the feature schema of the base model.
func BaseFields() []string {
	return []string{
		FieldDOW, FieldIsWeekend, FieldIsSaturday,
		FieldDayOfSeason, FieldWeekNum, FieldMonth,
		FieldTempMax, FieldTempMean, FieldSunshineHrs,
		FieldPrecipIn, FieldSnowfallIn, FieldWindMaxMPH,
		FieldIsSnow, FieldIsRainy, FieldIsSunny,
		FieldTempMax3dAvg, FieldSunshine3dAvg,
		FieldYearTrend,
	}
}

// MomentumFields is the base schema plus the streak and momentum fields.
func MomentumFields() []string {
	return append(BaseFields(),
		FieldNiceStreak, FieldBadStreak,
		FieldTempChange1d, FieldSunshineChg1d,
		FieldQualityNum, FieldPrevQualityNum,
		FieldIsPopDay,
	)
}

// Matrix is a dense feature matrix with named columns. Rows follow the
// order of the days it was built from.
type Matrix struct {
	Fields []string
	Rows   [][]float64
}

// Index returns the column position of a field, or an error if the field
// is not in this matrix's schema.
func (m *Matrix) Index(field string) (int, error) {
	for i, f := range m.Fields {
		if f == field {
			return i, nil
		}
	}
	return 0, fmt.Errorf("features: field %q not in schema", field)
}

// BuildMatrix extracts the named fields from each day. Unrecognized field
// names fail hard rather than being silently dropped: a model trained on
// a narrowed schema would score incomparably. Missing observations become
// zero here and only here.
func BuildMatrix(days []models.MergedDay, fields []string) (*Matrix, error) {
	for _, f := range fields {
		if !knownField(f) {
			return nil, fmt.Errorf("features: unknown field %q", f)
		}
	}
	rows := make([][]float64, len(days))
	for i := range days {
		row := make([]float64, len(fields))
		for j, f := range fields {
			row[j] = fieldValue(&days[i], f)
		}
		rows[i] = row
	}
	return &Matrix{Fields: append([]string(nil), fields...), Rows: rows}, nil
}

// Targets extracts the two regression targets fit on every run: total
// daily leads and the organic/digital channel on its own. Slices follow
// the order of days.
func Targets(days []models.MergedDay) (total, organic []float64) {
	total = make([]float64, len(days))
	organic = make([]float64, len(days))
	for i := range days {
		total[i] = float64(days[i].TotalLeads)
		organic[i] = float64(days[i].OrganicLeads)
	}
	return total, organic
}

func knownField(f string) bool {
	for _, k := range MomentumFields() {
		if k == f {
			return true
		}
	}
	return false
}

func fieldValue(d *models.MergedDay, field string) float64 {
	switch field {
	case FieldDOW:
		return float64(d.DOW)
	case FieldIsWeekend:
		return b2f(d.IsWeekend)
	case FieldIsSaturday:
		return b2f(d.IsSaturday)
	case FieldDayOfSeason:
		return float64(d.DayOfSeason)
	case FieldWeekNum:
		return float64(d.WeekNum)
	case FieldMonth:
		return float64(d.Month)
	case FieldTempMax:
		return orZero(d.Weather.TempMax)
	case FieldTempMean:
		return orZero(d.Weather.TempMean)
	case FieldSunshineHrs:
		return orZero(d.Weather.SunshineHrs)
	case FieldPrecipIn:
		return orZero(d.Weather.PrecipIn)
	case FieldSnowfallIn:
		return orZero(d.Weather.SnowfallIn)
	case FieldWindMaxMPH:
		return orZero(d.Weather.WindMaxMPH)
	case FieldIsSnow:
		return float64(d.IsSnow)
	case FieldIsRainy:
		return float64(d.IsRainy)
	case FieldIsSunny:
		return float64(d.IsSunny)
	case FieldTempMax3dAvg:
		return orZero(d.TempMax3dAvg)
	case FieldSunshine3dAvg:
		return orZero(d.Sunshine3dAvg)
	case FieldYearTrend:
		return float64(d.YearTrend)
	case FieldNiceStreak:
		return float64(d.NiceStreak)
	case FieldBadStreak:
		return float64(d.BadStreak)
	case FieldTempChange1d:
		return d.TempChange1d
	case FieldSunshineChg1d:
		return d.SunshineChange1d
	case FieldQualityNum:
		return d.QualityNum
	case FieldPrevQualityNum:
		return d.PrevQualityNum
	case FieldIsPopDay:
		return float64(d.IsPopDay)
	}
	return 0
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
