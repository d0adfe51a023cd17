package challenge

import (
	"fmt"
	"math"
	"time"
)

// DefaultDailyCap is the fallback daily limit (kg CO2e) for consecutive_days
// challenges whose definition does not set daily_cap_value.
const DefaultDailyCap = 5.0

// ProgressResult is the output of the pure per-type progress calculation.
type ProgressResult struct {
	Progress      float64
	StatusMessage string
	Completed     bool
}

// ElapsedDays returns ceil(now - start) in days, floored to at least 1, so
// averages never divide by zero on the join day.
func ElapsedDays(start, now time.Time) int {
	days := int(math.Ceil(now.Sub(start).Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days
}

// CalendarDaysElapsed counts calendar days from start through today,
// inclusive on both ends. Day 1 is the join date.
func CalendarDaysElapsed(start, today time.Time) int {
	s := dateOnly(start)
	t := dateOnly(today)
	return int(t.Sub(s).Hours()/24) + 1
}

// DaysRemaining returns whole days left until endDate, never negative.
func DaysRemaining(endDate, now time.Time) int {
	if !now.Before(endDate) {
		return 0
	}
	return int(math.Ceil(endDate.Sub(now).Hours() / 24))
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CalculateProgress maps accumulated value, elapsed time and the challenge
// definition to a progress percentage, a status line and a completion
// verdict. expired reports whether the challenge window has ended; the
// daily_limit and consecutive_days success rules only fire at expiry.
//
// dailyCap is only read for consecutive_days and falls back to
// DefaultDailyCap when nil.
func CalculateProgress(ct ChallengeType, accumulated float64, elapsedDays int, target float64, dailyCap *float64, durationDays int, expired bool) ProgressResult {
	if elapsedDays < 1 {
		elapsedDays = 1
	}

	var res ProgressResult

	switch ct {
	case TypeDailyLimit:
		avg := accumulated / float64(elapsedDays)
		if target > 0 {
			if avg <= target {
				res.Progress = 100
			} else {
				res.Progress = math.Max(0, 100-((avg-target)/target*100))
			}
		}
		res.StatusMessage = fmt.Sprintf("%.2f kg/day (target: <%g kg/day)", avg, target)
		res.Completed = expired && avg <= target

	case TypeTotalLimit:
		if target > 0 {
			res.Progress = math.Min(100, (1-(accumulated/target))*100)
			res.Progress = math.Max(0, res.Progress)
		}
		res.StatusMessage = fmt.Sprintf("%.2f / %g kg total", accumulated, target)
		// Staying under the total already counts as success, even before the
		// window ends. Only going over keeps the attempt pending until expiry.
		res.Completed = accumulated <= target

	case TypeActivityCount:
		if target > 0 {
			res.Progress = math.Min(100, (accumulated/target)*100)
		}
		res.StatusMessage = fmt.Sprintf("%d / %g activities logged", int(accumulated), target)
		res.Completed = accumulated >= target

	case TypeConsecutiveDays:
		limit := DefaultDailyCap
		if dailyCap != nil {
			limit = *dailyCap
		}
		avg := accumulated / float64(elapsedDays)
		if avg <= limit {
			res.Progress = float64(elapsedDays) / float64(durationDays) * 100
		}
		res.StatusMessage = fmt.Sprintf("%d days, avg %.2f kg/day (limit: %g)", elapsedDays, avg, limit)
		res.Completed = expired && avg <= limit

	default:
		res.StatusMessage = "Unknown challenge type"
	}

	res.Progress = roundProgress(res.Progress)
	return res
}

// roundProgress keeps reported percentages at one decimal place.
func roundProgress(p float64) float64 {
	return math.Round(p*10) / 10
}
