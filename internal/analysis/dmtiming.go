package analysis

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/lawnsignal/leadcast/internal/models"
)

// DMWeekRow is direct-mail response volume for one calendar week.
type DMWeekRow struct {
	Week    int     `json:"week_num"`
	AvgDM   float64 `json:"avg_dm"`
	TotalDM int     `json:"total_dm"`
	Days    int     `json:"days"`
}

// DMSpikeConditionRow profiles spike days under one weather condition.
type DMSpikeConditionRow struct {
	Condition string  `json:"condition"`
	AvgTotal  float64 `json:"avg_total"`
	AvgDM     float64 `json:"avg_dm"`
	Count     int     `json:"count"`
}

// DMTimingResult summarizes when direct-mail responses arrive. Mail
// drops are not in the data, so spike days - well above the median
// response - are the observable echo of a drop landing.
type DMTimingResult struct {
	DMDays          int                   `json:"dm_days"`
	MedianDM        float64               `json:"median_dm"`
	SpikeThreshold  float64               `json:"spike_threshold"`
	SpikeDays       int                   `json:"spike_days"`
	SpikeAvgTemp    float64               `json:"spike_avg_temp"`
	SpikeAvgSun     float64               `json:"spike_avg_sunshine"`
	NonSpikeAvgTemp float64               `json:"non_spike_avg_temp"`
	ByWeek          []DMWeekRow           `json:"by_week"`
	SpikeConditions []DMSpikeConditionRow `json:"spike_conditions,omitempty"`
}

// minSpikesForConditions is the floor below which spike days are too
// few to slice by weather condition.
const minSpikesForConditions = 10

// DMTiming analyzes direct-mail response timing across days with any DM
// volume at all.
func DMTiming(days []models.MergedDay, minSamples int) *DMTimingResult {
	var dmDays []models.MergedDay
	var dmVals []float64
	for _, d := range days {
		if d.DMLeads > 0 {
			dmDays = append(dmDays, d)
			dmVals = append(dmVals, float64(d.DMLeads))
		}
	}
	res := &DMTimingResult{DMDays: len(dmDays)}
	if len(dmDays) == 0 {
		return res
	}
	res.MedianDM = median(dmVals)
	res.SpikeThreshold = 2 * res.MedianDM

	var spikeTemp, spikeSun, calmTemp []float64
	spikeCond := map[string]*DMSpikeConditionRow{}
	for _, d := range dmDays {
		spike := float64(d.DMLeads) > res.SpikeThreshold
		if spike {
			res.SpikeDays++
			if d.Weather.TempMax.Valid {
				spikeTemp = append(spikeTemp, d.Weather.TempMax.Float64)
			}
			if d.Weather.SunshineHrs.Valid {
				spikeSun = append(spikeSun, d.Weather.SunshineHrs.Float64)
			}
			c := spikeCond[d.Condition]
			if c == nil {
				c = &DMSpikeConditionRow{Condition: d.Condition}
				spikeCond[d.Condition] = c
			}
			c.AvgTotal += float64(d.TotalLeads)
			c.AvgDM += float64(d.DMLeads)
			c.Count++
		} else if d.Weather.TempMax.Valid {
			calmTemp = append(calmTemp, d.Weather.TempMax.Float64)
		}
	}
	res.SpikeAvgTemp = mean(spikeTemp)
	res.SpikeAvgSun = mean(spikeSun)
	res.NonSpikeAvgTemp = mean(calmTemp)

	byWeek := map[int]*DMWeekRow{}
	for _, d := range dmDays {
		w := byWeek[d.WeekNum]
		if w == nil {
			w = &DMWeekRow{Week: d.WeekNum}
			byWeek[d.WeekNum] = w
		}
		w.TotalDM += d.DMLeads
		w.Days++
	}
	for _, w := range byWeek {
		w.AvgDM = float64(w.TotalDM) / float64(w.Days)
		res.ByWeek = append(res.ByWeek, *w)
	}
	sort.Slice(res.ByWeek, func(i, j int) bool { return res.ByWeek[i].Week < res.ByWeek[j].Week })

	if res.SpikeDays > minSpikesForConditions {
		for _, c := range spikeCond {
			if c.Count < minSamples {
				continue
			}
			row := *c
			row.AvgTotal /= float64(c.Count)
			row.AvgDM /= float64(c.Count)
			res.SpikeConditions = append(res.SpikeConditions, row)
		}
		sort.Slice(res.SpikeConditions, func(i, j int) bool {
			return res.SpikeConditions[i].Count > res.SpikeConditions[j].Count
		})
	}
	return res
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return stat.Mean(vals, nil)
}
