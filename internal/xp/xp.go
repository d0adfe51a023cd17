// Package xp holds the user XP ledger types and level derivation.
package xp

import "time"

// DefaultLevelSize is the flat XP cost of one level.
const DefaultLevelSize = 500

type Summary struct {
	XPTotal     int        `json:"xp_total"`
	LastUpdated *time.Time `json:"last_updated"`
}

type LevelInfo struct {
	Level         int `json:"level"`
	LevelSize     int `json:"level_size"`
	XPTotal       int `json:"xp_total"`
	XPInLevel     int `json:"xp_in_level"`
	XPToNext      int `json:"xp_to_next"`
	XPProgressPct int `json:"xp_progress_pct"`
}

type SummaryWithLevel struct {
	LevelInfo
	LastUpdated *time.Time `json:"last_updated"`
}

// ToLevel converts a total into flat levels of levelSize XP each.
// Level starts at 1 for totals in [0, levelSize).
func ToLevel(total, levelSize int) LevelInfo {
	if total < 0 {
		total = 0
	}
	if levelSize < 1 {
		levelSize = DefaultLevelSize
	}
	inLevel := total % levelSize
	return LevelInfo{
		Level:         total/levelSize + 1,
		LevelSize:     levelSize,
		XPTotal:       total,
		XPInLevel:     inLevel,
		XPToNext:      levelSize - inLevel,
		XPProgressPct: inLevel * 100 / levelSize,
	}
}
