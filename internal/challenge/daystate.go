package challenge

import (
	"math"
	"time"
)

// DayStatus is derived on every read from start_date, duration_days and the
// log table. It is never stored.
type DayStatus string

const (
	DayLocked    DayStatus = "locked"
	DayUnlocked  DayStatus = "unlocked"
	DayCompleted DayStatus = "completed"
)

type DayState struct {
	DayNumber   int        `json:"day_number"`
	LogDate     time.Time  `json:"log_date"`
	DailyGoal   float64    `json:"daily_goal"`
	ValueLogged *float64   `json:"value_logged"`
	Notes       *string    `json:"notes"`
	IsCompleted bool       `json:"is_completed"`
	LoggedAt    *time.Time `json:"logged_at"`
	IsUnlocked  bool       `json:"is_unlocked"`
	IsCurrent   bool       `json:"is_current"`
	IsFuture    bool       `json:"is_future"`
	Status      DayStatus  `json:"status"`
}

// DailyGoal converts a challenge target into a per-day goal for the
// daily-log path. Limits split evenly over the duration; activity counts
// round up so hitting the goal every day always reaches the target.
func DailyGoal(ct ChallengeType, target float64, durationDays int) float64 {
	switch ct {
	case TypeDailyLimit, TypeConsecutiveDays:
		return target
	case TypeTotalLimit:
		return target / float64(durationDays)
	case TypeActivityCount:
		return math.Ceil(target / float64(durationDays))
	default:
		return 0
	}
}

// DayMeetsGoal reports whether a logged value completes its day.
// Activity counts are reach-at-least goals; everything else is stay-under.
func DayMeetsGoal(ct ChallengeType, value, goal float64) bool {
	if ct == TypeActivityCount {
		return value >= goal
	}
	return value <= goal
}

// CheckDayWritable enforces the unlock rule for a write to dayNumber.
// prevDayCompleted is the stored completion state of dayNumber-1 (ignored
// for day 1). Returns false with a reason when the write must be rejected.
//
// Future days are locked outright. The current boundary day additionally
// requires the immediately preceding day to be completed. Past days are
// always writable so missed days can be backfilled.
func CheckDayWritable(dayNumber, elapsedDays int, prevDayCompleted bool) (bool, string) {
	if dayNumber > elapsedDays {
		return false, "This day is locked. Complete previous days first."
	}
	if dayNumber == elapsedDays && dayNumber > 1 && !prevDayCompleted {
		return false, "Previous day must be completed first"
	}
	return true, ""
}

// BuildDayStates derives the state of every day of an enrollment from its
// start date and logs. today is truncated to a calendar date internally.
func BuildDayStates(ct ChallengeType, target float64, durationDays int, start, today time.Time, logs []DailyLog) []DayState {
	elapsed := CalendarDaysElapsed(start, today)
	goal := DailyGoal(ct, target, durationDays)

	byDay := make(map[int]DailyLog, len(logs))
	for _, l := range logs {
		byDay[l.DayNumber] = l
	}

	currentDay := elapsed
	if currentDay > durationDays {
		currentDay = durationDays
	}

	days := make([]DayState, 0, durationDays)
	for i := 1; i <= durationDays; i++ {
		d := DayState{
			DayNumber: i,
			LogDate:   dateOnly(start).AddDate(0, 0, i-1),
			DailyGoal: goal,
			IsFuture:  i > elapsed,
		}

		if l, ok := byDay[i]; ok {
			v := l.ValueLogged
			at := l.LoggedAt
			d.ValueLogged = &v
			d.Notes = l.Notes
			d.IsCompleted = l.IsCompleted
			d.LoggedAt = &at
		}

		d.IsUnlocked = i <= elapsed
		d.IsCurrent = i == currentDay && !d.IsCompleted

		switch {
		case d.IsCompleted:
			d.Status = DayCompleted
		case d.IsUnlocked:
			d.Status = DayUnlocked
		default:
			d.Status = DayLocked
		}

		days = append(days, d)
	}

	return days
}
