package challenge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestXPPoolForDuration(t *testing.T) {
	assert.Equal(t, 300, XPPoolForDuration(7))
	assert.Equal(t, 700, XPPoolForDuration(14))
	assert.Equal(t, 1000, XPPoolForDuration(30))

	// Non-standard durations scale off the 30-day pool.
	assert.Equal(t, 333, XPPoolForDuration(10))
	assert.Equal(t, 700, XPPoolForDuration(21))
	assert.Equal(t, 33, XPPoolForDuration(1))
}

func TestSplitXPPool(t *testing.T) {
	perDay, remainder := SplitXPPool(300, 7)
	assert.Equal(t, 42, perDay)
	assert.Equal(t, 6, remainder)

	perDay, remainder = SplitXPPool(700, 14)
	assert.Equal(t, 50, perDay)
	assert.Equal(t, 0, remainder)

	perDay, remainder = SplitXPPool(1000, 30)
	assert.Equal(t, 33, perDay)
	assert.Equal(t, 10, remainder)
}

func TestDayCompletionXP(t *testing.T) {
	// Ordinary days pay the per-day share.
	assert.Equal(t, 42, DayCompletionXP(7, 1))
	assert.Equal(t, 42, DayCompletionXP(7, 6))

	// The final completed day also collects the remainder.
	assert.Equal(t, 48, DayCompletionXP(7, 7))
	assert.Equal(t, 50, DayCompletionXP(14, 14))
}

// Completing every day of a challenge pays out exactly the pool, no more,
// no less, for every supported duration.
func TestDayCompletionXPSumsToPool(t *testing.T) {
	for _, duration := range []int{1, 7, 10, 14, 21, 30} {
		total := 0
		for n := 1; n <= duration; n++ {
			total += DayCompletionXP(duration, n)
		}
		assert.Equal(t, XPPoolForDuration(duration), total, "duration %d", duration)
	}
}
