package xp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToLevel(t *testing.T) {
	info := ToLevel(0, DefaultLevelSize)
	assert.Equal(t, 1, info.Level)
	assert.Equal(t, 0, info.XPInLevel)
	assert.Equal(t, DefaultLevelSize, info.XPToNext)

	// Just under the boundary stays on level 1.
	info = ToLevel(499, DefaultLevelSize)
	assert.Equal(t, 1, info.Level)
	assert.Equal(t, 499, info.XPInLevel)
	assert.Equal(t, 1, info.XPToNext)

	// The boundary itself rolls over.
	info = ToLevel(500, DefaultLevelSize)
	assert.Equal(t, 2, info.Level)
	assert.Equal(t, 0, info.XPInLevel)
	assert.Equal(t, 0, info.XPProgressPct)

	info = ToLevel(1250, DefaultLevelSize)
	assert.Equal(t, 3, info.Level)
	assert.Equal(t, 250, info.XPInLevel)
	assert.Equal(t, 250, info.XPToNext)
	assert.Equal(t, 50, info.XPProgressPct)
}

func TestToLevelGuards(t *testing.T) {
	// Negative totals clamp to zero.
	info := ToLevel(-10, DefaultLevelSize)
	assert.Equal(t, 1, info.Level)
	assert.Equal(t, 0, info.XPInLevel)

	// Bogus level sizes fall back to the default.
	info = ToLevel(1000, 0)
	assert.Equal(t, 3, info.Level)
	assert.Equal(t, DefaultLevelSize, info.LevelSize)
}
