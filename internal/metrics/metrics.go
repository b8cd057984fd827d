package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ArchiveAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadcast_archive_api_calls_total",
			Help: "Total Open-Meteo archive API calls",
		},
		[]string{"status"},
	)

	WeatherDaysIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadcast_weather_days_ingested_total",
			Help: "Total daily weather records successfully ingested",
		},
		[]string{"year"},
	)

	LeadRowsParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadcast_lead_rows_parsed_total",
			Help: "Total lead export rows parsed",
		},
		[]string{"year"},
	)

	LeadRowsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadcast_lead_rows_dropped_total",
			Help: "Total lead export rows dropped during parsing",
		},
		[]string{"year", "reason"},
	)
)
