package challenge

import (
	"time"

	"github.com/google/uuid"
)

type ChallengeType string

const (
	TypeDailyLimit      ChallengeType = "daily_limit"
	TypeTotalLimit      ChallengeType = "total_limit"
	TypeActivityCount   ChallengeType = "activity_count"
	TypeConsecutiveDays ChallengeType = "consecutive_days"
)

// TrackingMode selects which progress tracker drives a challenge:
// on-demand aggregation over the emission ledger, or explicit per-day logs.
type TrackingMode string

const (
	TrackAggregate TrackingMode = "aggregate"
	TrackDaily     TrackingMode = "daily"
)

type ScopeType string

const (
	ScopeAll      ScopeType = "all"
	ScopeScenario ScopeType = "scenario"
	ScopeCategory ScopeType = "category"
)

// Categories a challenge scope may target. Matches the activity categories
// the scenario tracker writes.
var allowedCategories = map[string]bool{
	"transport": true,
	"diet":      true,
	"energy":    true,
	"waste":     true,
	"other":     true,
}

func ValidCategory(category string) bool {
	return allowedCategories[category]
}

type Challenge struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	Name          string        `json:"name" db:"name"`
	Description   string        `json:"description" db:"description"`
	ChallengeType ChallengeType `json:"challenge_type" db:"challenge_type"`
	TrackingMode  TrackingMode  `json:"tracking_mode" db:"tracking_mode"`
	TargetValue   float64       `json:"target_value" db:"target_value"`
	TargetUnit    string        `json:"target_unit" db:"target_unit"`
	DurationDays  int           `json:"duration_days" db:"duration_days"`
	DailyCapValue *float64      `json:"daily_cap_value" db:"daily_cap_value"`
	BadgeName     *string       `json:"badge_name" db:"badge_name"`
	IsActive      bool          `json:"is_active" db:"is_active"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}

// UserChallenge is one user's attempt at one challenge. At most one active
// (completed=false) row may exist per (user, challenge) pair.
type UserChallenge struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	ChallengeID uuid.UUID `json:"challenge_id" db:"challenge_id"`

	StartDate time.Time  `json:"start_date" db:"start_date"`
	EndDate   *time.Time `json:"end_date" db:"end_date"`

	ScopeType  ScopeType  `json:"scope_type" db:"scope_type"`
	ScopeRefID *uuid.UUID `json:"scope_ref_id" db:"scope_ref_id"`
	ScopeValue *string    `json:"scope_value" db:"scope_value"`

	// Aggregate path. starting_co2e is always 0: progress is tracked forward
	// from the join date, not against a baseline.
	StartingCO2e float64 `json:"starting_co2e" db:"starting_co2e"`
	CurrentCO2e  float64 `json:"current_co2e" db:"current_co2e"`

	// Daily-log path roll-ups.
	DaysCompleted int        `json:"days_completed" db:"days_completed"`
	TotalProgress float64    `json:"total_progress" db:"total_progress"`
	LastLogDate   *time.Time `json:"last_log_date" db:"last_log_date"`

	Completed bool      `json:"completed" db:"completed"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DailyLog is one logged day of a daily-tracked enrollment. day_number is
// unique per enrollment; re-logging a day overwrites the row.
type DailyLog struct {
	ID              uuid.UUID `json:"id" db:"id"`
	UserChallengeID uuid.UUID `json:"user_challenge_id" db:"user_challenge_id"`
	DayNumber       int       `json:"day_number" db:"day_number"`
	LogDate         time.Time `json:"log_date" db:"log_date"`
	ValueLogged     float64   `json:"value_logged" db:"value_logged"`
	Notes           *string   `json:"notes" db:"notes"`
	IsCompleted     bool      `json:"is_completed" db:"is_completed"`
	LoggedAt        time.Time `json:"logged_at" db:"logged_at"`
}

type JoinChallengeRequest struct {
	ScenarioID *uuid.UUID `json:"scenario_id"`
	Category   *string    `json:"category"`
}

type JoinChallengeResponse struct {
	UserChallengeID uuid.UUID     `json:"user_challenge_id"`
	ChallengeID     uuid.UUID     `json:"challenge_id"`
	ChallengeType   ChallengeType `json:"challenge_type"`
	TargetValue     float64       `json:"target_value"`
	ScopeType       ScopeType     `json:"scope_type"`
	ScopeRefID      *uuid.UUID    `json:"scope_ref_id"`
	ScopeValue      *string       `json:"scope_value"`
	StartDate       time.Time     `json:"start_date"`
}

// ChallengeListing is a catalog row annotated with join state and stats.
type ChallengeListing struct {
	Challenge
	Joined       bool `json:"joined"`
	Completions  int  `json:"completions"`
	Participants int  `json:"participants"`
}

// MyChallenge is an enrollment joined with its definition plus derived
// aggregate-path progress.
type MyChallenge struct {
	UserChallenge
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	ChallengeType ChallengeType `json:"challenge_type"`
	TargetValue   float64       `json:"target_value"`
	TargetUnit    string        `json:"target_unit"`
	DurationDays  int           `json:"duration_days"`
	BadgeName     *string       `json:"badge_name"`
	Progress      float64       `json:"progress"`
	StatusText    string        `json:"status_text"`
}

// ProgressReport is the result of recomputing an enrollment's progress.
type ProgressReport struct {
	UserChallengeID uuid.UUID     `json:"user_challenge_id"`
	ChallengeID     uuid.UUID     `json:"challenge_id"`
	ChallengeType   ChallengeType `json:"challenge_type"`
	TotalEmissions  float64       `json:"total_emissions"`
	TargetValue     float64       `json:"target_value"`
	Progress        float64       `json:"progress"`
	StatusMessage   string        `json:"status_message"`
	Completed       bool          `json:"completed"`
	IsExpired       bool          `json:"is_expired"`
	DaysRemaining   int           `json:"days_remaining"`
}

type LogDayRequest struct {
	DayNumber   int      `json:"day_number"`
	ValueLogged *float64 `json:"value_logged"`
	Notes       *string  `json:"notes"`
}

type LogDayResponse struct {
	DayNumber          int     `json:"day_number"`
	ValueLogged        float64 `json:"value_logged"`
	DailyGoal          float64 `json:"daily_goal"`
	IsCompleted        bool    `json:"is_completed"`
	CompletedDays      int     `json:"completed_days"`
	TotalDays          int     `json:"total_days"`
	ChallengeCompleted bool    `json:"challenge_completed"`
	XPAwarded          int     `json:"xp_awarded"`
}

// DayBreakdown is the full per-day view of a daily-tracked enrollment.
type DayBreakdown struct {
	UserChallenge UserChallenge `json:"user_challenge"`
	ChallengeName string        `json:"challenge_name"`
	Days          []DayState    `json:"days"`
	Summary       DaySummary    `json:"summary"`
}

type DaySummary struct {
	TotalDays       int     `json:"total_days"`
	CompletedDays   int     `json:"completed_days"`
	CurrentDay      int     `json:"current_day"`
	DaysRemaining   int     `json:"days_remaining"`
	TotalLogged     float64 `json:"total_logged"`
	TargetValue     float64 `json:"target_value"`
	ProgressPercent float64 `json:"progress_percent"`
	DailyGoal       float64 `json:"daily_goal"`
}

// MyDailyChallenge is an enrollment summary for the daily-tracking list view.
type MyDailyChallenge struct {
	UserChallengeID uuid.UUID     `json:"user_challenge_id"`
	ChallengeID     uuid.UUID     `json:"challenge_id"`
	Name            string        `json:"name"`
	Description     string        `json:"description"`
	ChallengeType   ChallengeType `json:"challenge_type"`
	TargetValue     float64       `json:"target_value"`
	TargetUnit      string        `json:"target_unit"`
	DurationDays    int           `json:"duration_days"`
	BadgeName       *string       `json:"badge_name"`
	StartDate       time.Time     `json:"start_date"`
	Completed       bool          `json:"completed"`
	DaysCompleted   int           `json:"days_completed"`
	TotalProgress   float64       `json:"total_progress"`
	CurrentDay      int           `json:"current_day"`
	ProgressPercent float64       `json:"progress_percent"`
	DaysRemaining   int           `json:"days_remaining"`
	Status          string        `json:"status"`
}
