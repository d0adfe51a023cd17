package challenge

import "math"

// XP amounts for the aggregate path. Joining pays a small fixed amount,
// finishing successfully pays the completion bonus. Both are granted at most
// once per enrollment.
const (
	JoinXP       = 10
	CompletionXP = 100
)

// XPPoolForDuration returns the total XP pool for a daily-tracked challenge.
// Pools are fixed per supported duration (a product decision, deliberately
// non-linear); other durations scale against the 30-day pool.
func XPPoolForDuration(durationDays int) int {
	switch durationDays {
	case 7:
		return 300
	case 14:
		return 700
	case 30:
		return 1000
	}
	return int(math.Round(1000.0 / 30.0 * float64(durationDays)))
}

// SplitXPPool divides a pool across a duration: every day-completion grants
// the floor share, and the remainder rides on the final qualifying day so the
// pool is paid out exactly, never over and never short.
func SplitXPPool(pool, durationDays int) (perDay, remainder int) {
	perDay = pool / durationDays
	remainder = pool - perDay*durationDays
	return perDay, remainder
}

// DayCompletionXP is the award for a day transitioning to completed.
// completedDaysAfter is the days_completed roll-up after the write; when it
// reaches the full duration the remainder is included.
func DayCompletionXP(durationDays, completedDaysAfter int) int {
	pool := XPPoolForDuration(durationDays)
	perDay, remainder := SplitXPPool(pool, durationDays)
	if completedDaysAfter == durationDays {
		return perDay + remainder
	}
	return perDay
}
