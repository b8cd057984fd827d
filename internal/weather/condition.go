package weather

import (
	"database/sql"

	"github.com/lawnsignal/leadcast/internal/models"
)

// Condition labels, checked in priority order: frozen precipitation beats
// rain beats sunshine.
const (
	ConditionSnow          = "Snow"
	ConditionRain          = "Rain"
	ConditionLightRain     = "Light Rain"
	ConditionSunny         = "Sunny"
	ConditionPartlyCloudy  = "Partly Cloudy"
	ConditionCloudOvercast = "Cloudy/Overcast"
)

// Defaults substituted for missing observations before classification.
// Temp defaults to a mild 50°F so a day with no thermometer reading does
// not classify as frigid.
const (
	defaultTempMax = 50.0
	defaultAmount  = 0.0
)

func orDefault(v sql.NullFloat64, def float64) float64 {
	if v.Valid {
		return v.Float64
	}
	return def
}

// Condition assigns one of six descriptive labels to a day's observations.
// Every input maps to exactly one label.
func Condition(w models.WeatherRecord) string {
	snowfall := orDefault(w.SnowfallIn, defaultAmount)
	snowDepth := orDefault(w.SnowDepth, defaultAmount)
	rain := orDefault(w.RainIn, defaultAmount)
	sunshine := orDefault(w.SunshineHrs, defaultAmount)

	switch {
	case snowfall > 0.1 || snowDepth > 1:
		return ConditionSnow
	case rain > 0.25:
		return ConditionRain
	case rain > 0.05:
		return ConditionLightRain
	case sunshine >= 8:
		return ConditionSunny
	case sunshine >= 4:
		return ConditionPartlyCloudy
	default:
		return ConditionCloudOvercast
	}
}

// Quality collapses a day's observations into the coarse nice/ok/bad
// classification used by the momentum features. Snow or meaningful
// precipitation always reads bad regardless of sunshine.
func Quality(w models.WeatherRecord) models.Quality {
	snowfall := orDefault(w.SnowfallIn, defaultAmount)
	snowDepth := orDefault(w.SnowDepth, defaultAmount)
	precip := orDefault(w.PrecipIn, defaultAmount)
	sunshine := orDefault(w.SunshineHrs, defaultAmount)
	tempMax := orDefault(w.TempMax, defaultTempMax)

	switch {
	case snowfall > 0.1 || snowDepth > 1:
		return models.QualityBad
	case precip > 0.2:
		return models.QualityBad
	case sunshine >= 7 && tempMax >= 55:
		return models.QualityNice
	case sunshine >= 5 && tempMax >= 50:
		return models.QualityOK
	case sunshine < 3 || tempMax < 42:
		return models.QualityBad
	default:
		return models.QualityOK
	}
}

// QualityNum encodes a quality label for the model: nice=2, ok=1, bad=0.
// Unknown reads as ok.
func QualityNum(q models.Quality) float64 {
	switch q {
	case models.QualityNice:
		return 2
	case models.QualityBad:
		return 0
	default:
		return 1
	}
}
