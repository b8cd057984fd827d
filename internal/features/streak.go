package features

import (
	"github.com/lawnsignal/leadcast/internal/models"
)

// StreakTracker folds a sequence of daily quality labels into running
// nice/bad streak counters. A nice day extends the nice streak and clears
// the bad streak; a bad day does the opposite; an ok (or unknown) day
// clears both. One tracker covers one year: callers construct a fresh
// tracker at each year boundary so streaks never span seasons.
type StreakTracker struct {
	nice    int
	bad     int
	history []models.Quality
}

// Observe records one day and returns the streak counters as of that day.
func (t *StreakTracker) Observe(q models.Quality) (nice, bad int) {
	switch q {
	case models.QualityNice:
		t.nice++
		t.bad = 0
	case models.QualityBad:
		t.bad++
		t.nice = 0
	default:
		t.nice = 0
		t.bad = 0
	}
	t.history = append(t.history, q)
	return t.nice, t.bad
}

// Prev returns the quality observed n days before the most recent
// observation, or QualityUnknown when the tracker has not seen that far
// back.
func (t *StreakTracker) Prev(n int) models.Quality {
	// history includes the current day, so "1 day back" is len-2.
	idx := len(t.history) - 1 - n
	if idx < 0 {
		return models.QualityUnknown
	}
	return t.history[idx]
}
