package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testArchive(t *testing.T, handler http.HandlerFunc, now time.Time) *Archive {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	a := NewArchive()
	a.baseURL = srv.URL
	a.now = func() time.Time { return now }
	return a
}

func TestFetchSeason(t *testing.T) {
	var gotQuery map[string]string
	handler := func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"start_date":       r.URL.Query().Get("start_date"),
			"end_date":         r.URL.Query().Get("end_date"),
			"temperature_unit": r.URL.Query().Get("temperature_unit"),
		}
		w.Write([]byte(`{"daily":{
			"time":["2023-02-15","2023-02-16"],
			"temperature_2m_max":[48.2,null],
			"sunshine_duration":[28800,3600],
			"rain_sum":[0,0.3]
		}}`))
	}
	a := testArchive(t, handler, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC))

	cfg := testCfg(t)
	recs, err := a.FetchSeason(context.Background(), cfg, 2023)
	if err != nil {
		t.Fatalf("FetchSeason: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len(recs) = %d, want 2", len(recs))
	}

	if gotQuery["start_date"] != "2023-02-15" || gotQuery["end_date"] != "2023-05-10" {
		t.Errorf("requested window %s..%s, want full season", gotQuery["start_date"], gotQuery["end_date"])
	}
	if gotQuery["temperature_unit"] != "fahrenheit" {
		t.Errorf("temperature_unit = %q", gotQuery["temperature_unit"])
	}

	if !recs[0].TempMax.Valid || recs[0].TempMax.Float64 != 48.2 {
		t.Errorf("TempMax = %+v, want 48.2", recs[0].TempMax)
	}
	if recs[1].TempMax.Valid {
		t.Errorf("null TempMax parsed as valid: %+v", recs[1].TempMax)
	}
	if !recs[0].SunshineHrs.Valid || recs[0].SunshineHrs.Float64 != 8 {
		t.Errorf("SunshineHrs = %+v, want 8 (seconds converted to hours)", recs[0].SunshineHrs)
	}
	if recs[0].WindMaxMPH.Valid {
		t.Errorf("absent variable parsed as valid: %+v", recs[0].WindMaxMPH)
	}
}

func TestFetchSeasonClampsCurrentYear(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("end_date"); got != "2024-03-01" {
			t.Errorf("end_date = %q, want clamped to today", got)
		}
		w.Write([]byte(`{"daily":{"time":[]}}`))
	}
	a := testArchive(t, handler, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	cfg := testCfg(t)
	if _, err := a.FetchSeason(context.Background(), cfg, 2024); err != nil {
		t.Fatalf("FetchSeason: %v", err)
	}
}

func TestFetchSeasonFutureSeason(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		t.Error("request made for a season that has not started")
	}
	a := testArchive(t, handler, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))

	cfg := testCfg(t)
	recs, err := a.FetchSeason(context.Background(), cfg, 2024)
	if err != nil {
		t.Fatalf("FetchSeason: %v", err)
	}
	if recs != nil {
		t.Errorf("got %d records for a future season", len(recs))
	}
}

func TestFetchSeasonPermanentError(t *testing.T) {
	calls := 0
	handler := func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad request", http.StatusBadRequest)
	}
	a := testArchive(t, handler, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC))

	cfg := testCfg(t)
	if _, err := a.FetchSeason(context.Background(), cfg, 2023); err == nil {
		t.Fatal("FetchSeason succeeded on a 400 response")
	}
	if calls != 1 {
		t.Errorf("client retried a permanent error %d times", calls)
	}
}
