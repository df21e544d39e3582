package stats

import "time"

// Period is the lookback window of usage statistics
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
	PeriodTotal Period = "total"
)

// Periods lists every supported period
var Periods = []Period{PeriodDay, PeriodWeek, PeriodMonth, PeriodYear, PeriodTotal}

// Valid reports whether p is a supported period
func (p Period) Valid() bool {
	for _, known := range Periods {
		if p == known {
			return true
		}
	}
	return false
}

// Duration returns the rolling length of the period; zero for total
func (p Period) Duration() time.Duration {
	switch p {
	case PeriodDay:
		return 24 * time.Hour
	case PeriodWeek:
		return 7 * 24 * time.Hour
	case PeriodMonth:
		return 30 * 24 * time.Hour
	case PeriodYear:
		return 365 * 24 * time.Hour
	default:
		return 0
	}
}

// Since returns the lower bound of the period ending at now; zero for total
func (p Period) Since(now time.Time) time.Time {
	d := p.Duration()
	if d == 0 {
		return time.Time{}
	}
	return now.Add(-d)
}
