package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lawnsignal/leadcast/internal/config"
	"github.com/lawnsignal/leadcast/internal/metrics"
	"github.com/lawnsignal/leadcast/internal/models"
)

// The yearly exports are hand-named, so a few spellings exist per year.
var leadFilePatterns = []string{
	"%d Leads.csv",
	"%d Leads .csv",
	"%d Estimate Requests so far.csv",
}

// Column headers of the export, matched after trimming whitespace.
const (
	colRequestedDate = "EstimateRequestedDate"
	colProgramSource = "ProgramSourceDescription"
)

// Date layouts seen across the yearly exports.
var dateLayouts = []string{
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/06",
	"2006-01-02",
	"2006-01-02 15:04:05",
}

// LoadLeadFiles reads every configured year's export from the data
// directory. A missing year is logged and skipped; zero loadable years is
// an error.
func LoadLeadFiles(cfg config.Config) ([]models.LeadRecord, error) {
	var all []models.LeadRecord
	loaded := 0

	for _, year := range cfg.Years {
		path, ok := findLeadFile(cfg.DataDir, year)
		if !ok {
			log.Printf("ingest: no lead export found for %d, skipping", year)
			continue
		}
		recs, err := loadLeadFile(path, year)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
		}
		log.Printf("ingest: %s: %d leads", filepath.Base(path), len(recs))
		all = append(all, recs...)
		loaded++
	}

	if loaded == 0 {
		return nil, fmt.Errorf("ingest: no lead exports found in %s", cfg.DataDir)
	}
	return all, nil
}

func findLeadFile(dir string, year int) (string, bool) {
	for _, pat := range leadFilePatterns {
		path := filepath.Join(dir, fmt.Sprintf(pat, year))
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

func loadLeadFile(path string, year int) ([]models.LeadRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	dateIdx, srcIdx := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case colRequestedDate:
			dateIdx = i
		case colProgramSource:
			srcIdx = i
		}
	}
	if dateIdx == -1 {
		return nil, fmt.Errorf("missing %s column", colRequestedDate)
	}

	yearLabel := strconv.Itoa(year)
	var recs []models.LeadRecord
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// A malformed row must not truncate the rest of the file.
			log.Printf("ingest: %s: dropping malformed row: %v", filepath.Base(path), err)
			metrics.LeadRowsDropped.WithLabelValues(yearLabel, "csv_error").Inc()
			continue
		}
		if dateIdx >= len(row) {
			metrics.LeadRowsDropped.WithLabelValues(yearLabel, "short_row").Inc()
			continue
		}
		date, ok := parseDate(strings.TrimSpace(row[dateIdx]))
		if !ok {
			metrics.LeadRowsDropped.WithLabelValues(yearLabel, "bad_date").Inc()
			continue
		}

		source := "Unknown"
		if srcIdx != -1 && srcIdx < len(row) {
			if s := strings.TrimSpace(row[srcIdx]); s != "" {
				source = s
			}
		}

		recs = append(recs, models.LeadRecord{
			RequestedAt: date,
			Source:      source,
			SourceType:  ClassifySource(source),
			Year:        year,
		})
		metrics.LeadRowsParsed.WithLabelValues(yearLabel).Inc()
	}
	return recs, nil
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// ClassifySource splits lead sources into the two channels the business
// tracks: direct mail campaigns versus everything organic or digital.
func ClassifySource(source string) models.SourceType {
	s := strings.ToUpper(source)
	if strings.HasPrefix(s, "DM") || strings.Contains(s, "DIRECT MAIL") {
		return models.SourceDirectMail
	}
	return models.SourceOrganic
}

// FilterSeason keeps leads that fall inside the season window of their
// own year.
func FilterSeason(leads []models.LeadRecord, cfg config.Config) []models.LeadRecord {
	var out []models.LeadRecord
	for _, l := range leads {
		if cfg.InSeason(l.RequestedAt) {
			out = append(out, l)
		}
	}
	return out
}

// AggregateDaily rolls leads up to per-day totals with the DM/organic
// split, plus the calendar fields every later stage keys on. Days with no
// leads at all do not appear.
func AggregateDaily(leads []models.LeadRecord, cfg config.Config) []models.DailyRecord {
	type counts struct{ total, dm, organic int }
	byDate := map[time.Time]*counts{}
	for _, l := range leads {
		c := byDate[l.RequestedAt]
		if c == nil {
			c = &counts{}
			byDate[l.RequestedAt] = c
		}
		c.total++
		if l.SourceType == models.SourceDirectMail {
			c.dm++
		} else {
			c.organic++
		}
	}

	out := make([]models.DailyRecord, 0, len(byDate))
	for date, c := range byDate {
		_, week := date.ISOWeek()
		dow := (int(date.Weekday()) + 6) % 7 // 0=Monday
		out = append(out, models.DailyRecord{
			Date:         date,
			Year:         date.Year(),
			Month:        int(date.Month()),
			Day:          date.Day(),
			DOW:          dow,
			WeekNum:      week,
			IsWeekend:    dow >= 5,
			IsSaturday:   dow == 5,
			IsSunday:     dow == 6,
			DayOfSeason:  int(date.Sub(cfg.SeasonStart(date.Year())).Hours() / 24),
			TotalLeads:   c.total,
			DMLeads:      c.dm,
			OrganicLeads: c.organic,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// SourceCount is one lead source with its volume and channel.
type SourceCount struct {
	Source string            `json:"source"`
	Type   models.SourceType `json:"type"`
	Count  int               `json:"count"`
}

// SourceBreakdown tallies leads per raw source string, descending by
// volume.
func SourceBreakdown(leads []models.LeadRecord) []SourceCount {
	bySource := map[string]int{}
	for _, l := range leads {
		bySource[l.Source]++
	}
	out := make([]SourceCount, 0, len(bySource))
	for src, n := range bySource {
		out = append(out, SourceCount{Source: src, Type: ClassifySource(src), Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Source < out[j].Source
	})
	return out
}
