package ingest

import (
	"time"

	"github.com/lawnsignal/leadcast/internal/models"
)

// Merge left-joins daily lead records with weather on date. Days without
// an archive observation keep an all-Null weather record; the classifiers
// apply their own defaults downstream.
func Merge(daily []models.DailyRecord, weather []models.WeatherRecord) []models.MergedDay {
	byDate := make(map[time.Time]models.WeatherRecord, len(weather))
	for _, w := range weather {
		byDate[w.Date] = w
	}

	out := make([]models.MergedDay, 0, len(daily))
	for _, d := range daily {
		m := models.MergedDay{DailyRecord: d}
		if w, ok := byDate[d.Date]; ok {
			m.Weather = w
		} else {
			m.Weather = models.WeatherRecord{Date: d.Date}
		}
		out = append(out, m)
	}
	return out
}
