package models

import (
	"database/sql"
	"time"
)

// LeadRecord is one raw estimate request as parsed from a yearly export.
type LeadRecord struct {
	RequestedAt time.Time
	Source      string
	SourceType  SourceType
	Year        int
}

type SourceType string

const (
	SourceDirectMail SourceType = "Direct Mail"
	SourceOrganic    SourceType = "Organic/Digital"
)

// DailyRecord is one calendar day of aggregated leads inside the season
// window. Count fields are fixed at aggregation time; weather and derived
// feature fields are attached later without touching them.
type DailyRecord struct {
	Date         time.Time
	Year         int
	Month        int
	Day          int
	DOW          int // 0=Monday .. 6=Sunday
	WeekNum      int // ISO week number
	IsWeekend    bool
	IsSaturday   bool
	IsSunday     bool
	DayOfSeason  int // days since Feb 15 of Year
	TotalLeads   int
	DMLeads      int
	OrganicLeads int
}

// WeatherRecord is one day's archive observation for the reference
// location. Any field may be missing; consumers must not coerce Null to
// zero except through an explicit classification default.
type WeatherRecord struct {
	Date           time.Time
	TempMax        sql.NullFloat64 // °F
	TempMin        sql.NullFloat64
	TempMean       sql.NullFloat64
	PrecipIn       sql.NullFloat64 // inches
	SnowfallIn     sql.NullFloat64
	SnowDepth      sql.NullFloat64
	SunshineHrs    sql.NullFloat64
	RainIn         sql.NullFloat64
	WindMaxMPH     sql.NullFloat64
	SolarRadiation sql.NullFloat64
}

// Quality is the coarse 3-way weather classification used by the momentum
// features and analyses.
type Quality string

const (
	QualityNice    Quality = "nice"
	QualityOK      Quality = "ok"
	QualityBad     Quality = "bad"
	QualityUnknown Quality = "unknown"
)

// MergedDay is a DailyRecord joined with its WeatherRecord, enriched over
// the pipeline stages with classification, rolling and momentum fields.
// Momentum fields are only meaningful relative to a per-year date-ascending
// ordering; streaks never carry across a year boundary.
type MergedDay struct {
	DailyRecord
	Weather WeatherRecord

	Condition string
	Quality   Quality

	IsSnow    int
	IsRainy   int
	IsSunny   int
	YearTrend int

	TempMax3dAvg  sql.NullFloat64
	Sunshine3dAvg sql.NullFloat64

	NiceStreak       int
	BadStreak        int
	PrevQuality      Quality
	Prev2Quality     Quality
	TempChange1d     float64
	SunshineChange1d float64
	QualityNum       float64
	PrevQualityNum   float64
	IsPopDay         int
}

// HasWeather reports whether the day has the observations the model
// requires (temp_max and sunshine).
func (d *MergedDay) HasWeather() bool {
	return d.Weather.TempMax.Valid && d.Weather.SunshineHrs.Valid
}
