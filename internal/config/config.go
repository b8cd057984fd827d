package config

import (
	"fmt"
	"time"
)

// Config carries every tunable of the pipeline. It is built once in main
// (kong populates it from flags, env and an optional .env file) and passed
// by value into each stage. No stage mutates it.
type Config struct {
	DataDir   string `name:"data-dir" env:"LEADCAST_DATA_DIR" default:"data" help:"Directory holding the yearly lead export CSVs."`
	DBPath    string `name:"db" env:"LEADCAST_DB" default:"leadcast.db" help:"SQLite database path for the merged daily table."`
	OutputDir string `name:"output-dir" env:"LEADCAST_OUTPUT_DIR" default:"output" help:"Directory for emitted JSON/CSV reports."`

	// Reference location for the weather archive (West Chester, PA).
	Latitude  float64 `name:"lat" env:"LEADCAST_LAT" default:"39.9566"`
	Longitude float64 `name:"lon" env:"LEADCAST_LON" default:"-75.6058"`
	Timezone  string  `name:"tz" env:"LEADCAST_TZ" default:"America/New_York"`
	Location  string  `name:"location" env:"LEADCAST_LOCATION" default:"West Chester, PA" help:"Display name for the weather location in reports."`

	// Season window, month/day within each year.
	SeasonStartMonth int `name:"season-start-month" default:"2"`
	SeasonStartDay   int `name:"season-start-day" default:"15"`
	SeasonEndMonth   int `name:"season-end-month" default:"5"`
	SeasonEndDay     int `name:"season-end-day" default:"10"`

	Years        []int `name:"years" default:"2021,2022,2023,2024,2025,2026" help:"All years to ingest, including the in-progress one."`
	FullYears    []int `name:"full-years" default:"2021,2022,2023,2024,2025" help:"Years with a complete season, usable for training."`
	TrainYears   []int `name:"train-years" default:"2021,2022,2023,2024" help:"Holdout validation training years."`
	TestYear     int   `name:"test-year" default:"2025" help:"Holdout validation test year."`
	PartialYear  int   `name:"partial-year" default:"2026" help:"In-progress season scored out of sample."`
	BaseYear     int   `name:"base-year" default:"2021" help:"Year the linear trend feature is anchored to."`

	// Analysis thresholds.
	MinBucketSamples int     `name:"min-bucket-samples" default:"3" help:"Buckets with fewer samples are omitted."`
	HoldRatio        float64 `name:"hold-ratio" default:"0.9" help:"Next-day/pop-day ratio at or above which a surge counts as held."`
}

// SeasonStart returns the first day of the season window for a year.
func (c Config) SeasonStart(year int) time.Time {
	return time.Date(year, time.Month(c.SeasonStartMonth), c.SeasonStartDay, 0, 0, 0, 0, time.UTC)
}

// SeasonEnd returns the last day of the season window for a year.
func (c Config) SeasonEnd(year int) time.Time {
	return time.Date(year, time.Month(c.SeasonEndMonth), c.SeasonEndDay, 0, 0, 0, 0, time.UTC)
}

// InSeason reports whether a date falls inside the season window of its
// own year.
func (c Config) InSeason(d time.Time) bool {
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(c.SeasonStart(d.Year())) && !day.After(c.SeasonEnd(d.Year()))
}

// LatestFullYear returns the most recent complete season year.
func (c Config) LatestFullYear() int {
	latest := 0
	for _, y := range c.FullYears {
		if y > latest {
			latest = y
		}
	}
	return latest
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if len(c.Years) == 0 {
		return fmt.Errorf("config: no years configured")
	}
	if len(c.FullYears) == 0 {
		return fmt.Errorf("config: no full years configured")
	}
	if len(c.TrainYears) == 0 {
		return fmt.Errorf("config: no training years configured")
	}
	for _, y := range c.TrainYears {
		if y == c.TestYear {
			return fmt.Errorf("config: test year %d appears in training years", c.TestYear)
		}
	}
	if c.MinBucketSamples < 1 {
		return fmt.Errorf("config: min-bucket-samples must be >= 1, got %d", c.MinBucketSamples)
	}
	if c.HoldRatio <= 0 || c.HoldRatio > 1 {
		return fmt.Errorf("config: hold-ratio must be in (0, 1], got %g", c.HoldRatio)
	}
	if c.SeasonEnd(c.BaseYear).Before(c.SeasonStart(c.BaseYear)) {
		return fmt.Errorf("config: season window ends before it starts")
	}
	return nil
}
