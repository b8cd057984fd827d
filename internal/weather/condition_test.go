package weather

import (
	"database/sql"
	"testing"

	"github.com/lawnsignal/leadcast/internal/models"
)

func f(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

func TestCondition(t *testing.T) {
	tests := []struct {
		name string
		rec  models.WeatherRecord
		want string
	}{
		{
			name: "snowfall over threshold",
			rec:  models.WeatherRecord{SnowfallIn: f(0.2), SunshineHrs: f(9)},
			want: ConditionSnow,
		},
		{
			name: "snow depth alone",
			rec:  models.WeatherRecord{SnowDepth: f(1.5), SunshineHrs: f(9)},
			want: ConditionSnow,
		},
		{
			name: "trace snowfall does not count",
			rec:  models.WeatherRecord{SnowfallIn: f(0.1), SunshineHrs: f(9)},
			want: ConditionSunny,
		},
		{
			name: "heavy rain",
			rec:  models.WeatherRecord{RainIn: f(0.5)},
			want: ConditionRain,
		},
		{
			name: "rain exactly at boundary is light",
			rec:  models.WeatherRecord{RainIn: f(0.25)},
			want: ConditionLightRain,
		},
		{
			name: "rain just over boundary",
			rec:  models.WeatherRecord{RainIn: f(0.25000001)},
			want: ConditionRain,
		},
		{
			name: "light rain",
			rec:  models.WeatherRecord{RainIn: f(0.06)},
			want: ConditionLightRain,
		},
		{
			name: "drizzle below light threshold",
			rec:  models.WeatherRecord{RainIn: f(0.05), SunshineHrs: f(8)},
			want: ConditionSunny,
		},
		{
			name: "sunny",
			rec:  models.WeatherRecord{SunshineHrs: f(8)},
			want: ConditionSunny,
		},
		{
			name: "partly cloudy",
			rec:  models.WeatherRecord{SunshineHrs: f(4)},
			want: ConditionPartlyCloudy,
		},
		{
			name: "overcast",
			rec:  models.WeatherRecord{SunshineHrs: f(3.9)},
			want: ConditionCloudOvercast,
		},
		{
			name: "all fields missing",
			rec:  models.WeatherRecord{},
			want: ConditionCloudOvercast,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Condition(tt.rec); got != tt.want {
				t.Errorf("Condition() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQuality(t *testing.T) {
	tests := []struct {
		name string
		rec  models.WeatherRecord
		want models.Quality
	}{
		{
			name: "snow is bad even when sunny and warm",
			rec:  models.WeatherRecord{SnowfallIn: f(0.5), SunshineHrs: f(10), TempMax: f(60)},
			want: models.QualityBad,
		},
		{
			name: "lingering snow depth is bad",
			rec:  models.WeatherRecord{SnowDepth: f(2), SunshineHrs: f(10), TempMax: f(60)},
			want: models.QualityBad,
		},
		{
			name: "wet day is bad",
			rec:  models.WeatherRecord{PrecipIn: f(0.3), SunshineHrs: f(8), TempMax: f(60)},
			want: models.QualityBad,
		},
		{
			name: "nice needs sun and warmth",
			rec:  models.WeatherRecord{SunshineHrs: f(7), TempMax: f(55)},
			want: models.QualityNice,
		},
		{
			name: "sunny but cool is ok",
			rec:  models.WeatherRecord{SunshineHrs: f(7), TempMax: f(52)},
			want: models.QualityOK,
		},
		{
			name: "moderate sun and temp is ok",
			rec:  models.WeatherRecord{SunshineHrs: f(5), TempMax: f(50)},
			want: models.QualityOK,
		},
		{
			name: "gloomy is bad",
			rec:  models.WeatherRecord{SunshineHrs: f(2), TempMax: f(60)},
			want: models.QualityBad,
		},
		{
			name: "frigid is bad",
			rec:  models.WeatherRecord{SunshineHrs: f(6), TempMax: f(40)},
			want: models.QualityBad,
		},
		{
			name: "middling day falls through to ok",
			rec:  models.WeatherRecord{SunshineHrs: f(4), TempMax: f(48)},
			want: models.QualityOK,
		},
		{
			name: "missing sunshine defaults to zero hours",
			rec:  models.WeatherRecord{TempMax: f(60)},
			want: models.QualityBad,
		},
		{
			name: "missing temp defaults to mild",
			rec:  models.WeatherRecord{SunshineHrs: f(6)},
			want: models.QualityOK,
		},
		{
			name: "all fields missing",
			rec:  models.WeatherRecord{},
			want: models.QualityBad,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Quality(tt.rec); got != tt.want {
				t.Errorf("Quality() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQualityNum(t *testing.T) {
	tests := []struct {
		q    models.Quality
		want float64
	}{
		{models.QualityNice, 2},
		{models.QualityOK, 1},
		{models.QualityBad, 0},
		{models.QualityUnknown, 1},
	}
	for _, tt := range tests {
		if got := QualityNum(tt.q); got != tt.want {
			t.Errorf("QualityNum(%q) = %v, want %v", tt.q, got, tt.want)
		}
	}
}
