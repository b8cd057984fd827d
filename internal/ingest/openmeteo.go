package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lawnsignal/leadcast/internal/config"
	"github.com/lawnsignal/leadcast/internal/metrics"
	"github.com/lawnsignal/leadcast/internal/models"
)

const archiveBaseURL = "https://archive-api.open-meteo.com/v1/archive"

var archiveDailyVars = []string{
	"temperature_2m_max", "temperature_2m_min", "temperature_2m_mean",
	"precipitation_sum", "snowfall_sum", "snow_depth_mean",
	"sunshine_duration", "rain_sum",
	"wind_speed_10m_max",
	"shortwave_radiation_sum",
}

// Archive fetches daily historical weather from the Open-Meteo archive
// API.
type Archive struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
}

func NewArchive() *Archive {
	return &Archive{
		baseURL: archiveBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		now:     time.Now,
	}
}

type archiveResponse struct {
	Daily struct {
		Time          []string   `json:"time"`
		TempMax       []*float64 `json:"temperature_2m_max"`
		TempMin       []*float64 `json:"temperature_2m_min"`
		TempMean      []*float64 `json:"temperature_2m_mean"`
		PrecipSum     []*float64 `json:"precipitation_sum"`
		SnowfallSum   []*float64 `json:"snowfall_sum"`
		SnowDepthMean []*float64 `json:"snow_depth_mean"`
		SunshineDur   []*float64 `json:"sunshine_duration"`
		RainSum       []*float64 `json:"rain_sum"`
		WindSpeedMax  []*float64 `json:"wind_speed_10m_max"`
		ShortwaveSum  []*float64 `json:"shortwave_radiation_sum"`
	} `json:"daily"`
}

// FetchSeason retrieves one season window of daily observations in °F,
// inches and mph. For the current year the window is clamped to today; a
// season that has not started yet returns no rows.
func (a *Archive) FetchSeason(ctx context.Context, cfg config.Config, year int) ([]models.WeatherRecord, error) {
	start := cfg.SeasonStart(year)
	end := cfg.SeasonEnd(year)

	today := a.now().UTC().Truncate(24 * time.Hour)
	if start.After(today) {
		return nil, nil
	}
	if end.After(today) {
		end = today
	}

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(cfg.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(cfg.Longitude, 'f', -1, 64))
	params.Set("start_date", start.Format("2006-01-02"))
	params.Set("end_date", end.Format("2006-01-02"))
	params.Set("daily", strings.Join(archiveDailyVars, ","))
	params.Set("temperature_unit", "fahrenheit")
	params.Set("wind_speed_unit", "mph")
	params.Set("precipitation_unit", "inch")
	params.Set("timezone", cfg.Timezone)
	reqURL := a.baseURL + "?" + params.Encode()

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := a.client.Do(req)
		if err != nil {
			return fmt.Errorf("fetch archive: %w", err)
		}
		defer resp.Body.Close()
		metrics.ArchiveAPICallsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("fetch archive: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch archive: status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}

	var data archiveResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal archive response: %w", err)
	}

	recs := make([]models.WeatherRecord, 0, len(data.Daily.Time))
	for i, ts := range data.Daily.Time {
		date, err := time.Parse("2006-01-02", ts)
		if err != nil {
			return nil, fmt.Errorf("parse archive date %q: %w", ts, err)
		}
		rec := models.WeatherRecord{
			Date:           date,
			TempMax:        nullAt(data.Daily.TempMax, i),
			TempMin:        nullAt(data.Daily.TempMin, i),
			TempMean:       nullAt(data.Daily.TempMean, i),
			PrecipIn:       nullAt(data.Daily.PrecipSum, i),
			SnowfallIn:     nullAt(data.Daily.SnowfallSum, i),
			SnowDepth:      nullAt(data.Daily.SnowDepthMean, i),
			RainIn:         nullAt(data.Daily.RainSum, i),
			WindMaxMPH:     nullAt(data.Daily.WindSpeedMax, i),
			SolarRadiation: nullAt(data.Daily.ShortwaveSum, i),
		}
		// The API reports sunshine in seconds.
		if v := nullAt(data.Daily.SunshineDur, i); v.Valid {
			rec.SunshineHrs = sql.NullFloat64{Float64: v.Float64 / 3600, Valid: true}
		}
		recs = append(recs, rec)
	}

	metrics.WeatherDaysIngested.WithLabelValues(strconv.Itoa(year)).Add(float64(len(recs)))
	return recs, nil
}

// FetchAllSeasons fetches every configured year, skipping seasons that
// have not started. A failed year aborts the run: the model cannot train
// on a season with no weather.
func (a *Archive) FetchAllSeasons(ctx context.Context, cfg config.Config) ([]models.WeatherRecord, error) {
	var all []models.WeatherRecord
	for _, year := range cfg.Years {
		recs, err := a.FetchSeason(ctx, cfg, year)
		if err != nil {
			return nil, fmt.Errorf("weather %d: %w", year, err)
		}
		if len(recs) == 0 {
			log.Printf("ingest: no weather for %d season yet", year)
			continue
		}
		log.Printf("ingest: weather %d: %d days", year, len(recs))
		all = append(all, recs...)
	}
	return all, nil
}

func nullAt(vals []*float64, i int) sql.NullFloat64 {
	if i >= len(vals) || vals[i] == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *vals[i], Valid: true}
}
