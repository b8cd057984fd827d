package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lawnsignal/leadcast/internal/models"
)

// Store persists the merged daily table, the one durable artifact of the
// pipeline. Derived features are recomputed on load, never stored.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (creating if needed) the sqlite database and applies
// migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return New(db), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const mergedDayColumns = `date, year, month, day, dow, week_num,
	is_weekend, is_saturday, is_sunday, day_of_season,
	total_leads, dm_leads, organic_leads,
	temp_max, temp_min, temp_mean, precip_in, snowfall_in, snow_depth,
	sunshine_hrs, rain_in, wind_max_mph, solar_radiation`

const upsertDaySQL = `
	INSERT INTO merged_days (` + mergedDayColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(date) DO UPDATE SET
		total_leads = excluded.total_leads,
		dm_leads = excluded.dm_leads,
		organic_leads = excluded.organic_leads,
		temp_max = excluded.temp_max,
		temp_min = excluded.temp_min,
		temp_mean = excluded.temp_mean,
		precip_in = excluded.precip_in,
		snowfall_in = excluded.snowfall_in,
		snow_depth = excluded.snow_depth,
		sunshine_hrs = excluded.sunshine_hrs,
		rain_in = excluded.rain_in,
		wind_max_mph = excluded.wind_max_mph,
		solar_radiation = excluded.solar_radiation
`

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func upsertDay(e execer, d models.MergedDay) error {
	_, err := e.Exec(upsertDaySQL,
		d.Date, d.Year, d.Month, d.Day, d.DOW, d.WeekNum,
		d.IsWeekend, d.IsSaturday, d.IsSunday, d.DayOfSeason,
		d.TotalLeads, d.DMLeads, d.OrganicLeads,
		d.Weather.TempMax, d.Weather.TempMin, d.Weather.TempMean,
		d.Weather.PrecipIn, d.Weather.SnowfallIn, d.Weather.SnowDepth,
		d.Weather.SunshineHrs, d.Weather.RainIn, d.Weather.WindMaxMPH,
		d.Weather.SolarRadiation)
	return err
}

// UpsertDay writes one merged day, replacing any previous row for the
// same date.
func (s *Store) UpsertDay(d models.MergedDay) error {
	return upsertDay(s.db, d)
}

// UpsertDays writes a batch of merged days in one transaction.
func (s *Store) UpsertDays(days []models.MergedDay) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for _, d := range days {
		if err := upsertDay(tx, d); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert %s: %w", d.Date.Format("2006-01-02"), err)
		}
	}
	return tx.Commit()
}

// GetDay returns one merged day, or (nil, nil) when the date has no row.
func (s *Store) GetDay(date time.Time) (*models.MergedDay, error) {
	row := s.db.QueryRow(`
		SELECT `+mergedDayColumns+`
		FROM merged_days
		WHERE date = ?
	`, date)

	d, err := scanMergedDay(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetDays returns every merged day, date-ascending.
func (s *Store) GetDays() ([]models.MergedDay, error) {
	return s.queryDays(`SELECT ` + mergedDayColumns + ` FROM merged_days ORDER BY date ASC`)
}

// GetDaysForYears returns the merged days of the given years,
// date-ascending.
func (s *Store) GetDaysForYears(years []int) ([]models.MergedDay, error) {
	if len(years) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(years)), ", ")
	args := make([]any, len(years))
	for i, y := range years {
		args[i] = y
	}
	return s.queryDays(`
		SELECT `+mergedDayColumns+`
		FROM merged_days
		WHERE year IN (`+placeholders+`)
		ORDER BY date ASC
	`, args...)
}

func (s *Store) queryDays(query string, args ...any) ([]models.MergedDay, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []models.MergedDay
	for rows.Next() {
		d, err := scanMergedDay(rows)
		if err != nil {
			return nil, err
		}
		days = append(days, *d)
	}
	return days, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMergedDay(row scanner) (*models.MergedDay, error) {
	var d models.MergedDay
	err := row.Scan(
		&d.Date, &d.Year, &d.Month, &d.Day, &d.DOW, &d.WeekNum,
		&d.IsWeekend, &d.IsSaturday, &d.IsSunday, &d.DayOfSeason,
		&d.TotalLeads, &d.DMLeads, &d.OrganicLeads,
		&d.Weather.TempMax, &d.Weather.TempMin, &d.Weather.TempMean,
		&d.Weather.PrecipIn, &d.Weather.SnowfallIn, &d.Weather.SnowDepth,
		&d.Weather.SunshineHrs, &d.Weather.RainIn, &d.Weather.WindMaxMPH,
		&d.Weather.SolarRadiation,
	)
	if err != nil {
		return nil, err
	}
	d.Date = d.Date.UTC()
	d.Weather.Date = d.Date
	return &d, nil
}
