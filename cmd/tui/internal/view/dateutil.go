package view

import (
	"time"
)

type Timeframe int

const (
	TimeframeThisWeek Timeframe = iota
	TimeframeLastWeek
	TimeframeThisMonth
	TimeframeLastMonth
	TimeframeThisYear
	TimeframeAll
	TimeframeCustom
)

var timeframes = []Timeframe{
	TimeframeThisWeek,
	TimeframeLastWeek,
	TimeframeThisMonth,
	TimeframeLastMonth,
	TimeframeThisYear,
	TimeframeAll,
	TimeframeCustom,
}

func (t Timeframe) String() string {
	switch t {
	case TimeframeThisWeek:
		return "This Week"
	case TimeframeLastWeek:
		return "Last Week"
	case TimeframeThisMonth:
		return "This Month"
	case TimeframeLastMonth:
		return "Last Month"
	case TimeframeThisYear:
		return "This Year"
	case TimeframeAll:
		return "All Time"
	case TimeframeCustom:
		return "Custom Range"
	}

	return "Unknown"
}

// TimeframeToDateRange resolves a predefined timeframe relative to now. Weeks
// start on Monday. All and Custom yield zero times.
func TimeframeToDateRange(tf Timeframe, now time.Time) (time.Time, time.Time) {
	var start, end time.Time

	// Monday = 1 ... Sunday = 7
	offset := int(now.Weekday())
	if offset == 0 {
		offset = 7
	}

	switch tf {
	case TimeframeThisWeek:
		start = now.AddDate(0, 0, -offset+1)
		end = now
	case TimeframeLastWeek:
		end = now.AddDate(0, 0, -offset)
		start = end.AddDate(0, 0, -6)
	case TimeframeThisMonth:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		end = now
	case TimeframeLastMonth:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		start = first.AddDate(0, -1, 0)
		end = first.AddDate(0, 0, -1)
	case TimeframeThisYear:
		start = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
		end = now
	}

	return start, end
}

// NormalizeDateRange widens a range to whole UTC days.
func NormalizeDateRange(start time.Time, end time.Time) (time.Time, time.Time) {
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
		time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, time.UTC)
}
