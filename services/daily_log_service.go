package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"carbonPlayAPI/internal/apperrors"
	"carbonPlayAPI/internal/challenge"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DailyLogService drives the day-by-day completion path: derived day states,
// per-day log writes with the unlock rule, roll-up counters and the
// once-per-day reward transition.
type DailyLogService struct {
	db     *pgxpool.Pool
	ledger PointsLedger
}

func NewDailyLogService(db *pgxpool.Pool, ledger PointsLedger) *DailyLogService {
	return &DailyLogService{db: db, ledger: ledger}
}

type dayChallengeRow struct {
	uc challenge.UserChallenge
	ch challenge.Challenge
}

func (s *DailyLogService) loadEnrollment(ctx context.Context, userID, userChallengeID uuid.UUID) (*dayChallengeRow, error) {
	var r dayChallengeRow
	err := s.db.QueryRow(ctx, `
		SELECT uc.id, uc.challenge_id, uc.start_date, uc.days_completed,
		       uc.total_progress, uc.last_log_date, uc.completed,
		       c.name, c.challenge_type, c.target_value, c.target_unit,
		       c.duration_days, c.badge_name
		FROM user_challenges uc
		JOIN challenges c ON c.id = uc.challenge_id
		WHERE uc.id = $1 AND uc.user_id = $2
	`, userChallengeID, userID).Scan(
		&r.uc.ID, &r.uc.ChallengeID, &r.uc.StartDate, &r.uc.DaysCompleted,
		&r.uc.TotalProgress, &r.uc.LastLogDate, &r.uc.Completed,
		&r.ch.Name, &r.ch.ChallengeType, &r.ch.TargetValue, &r.ch.TargetUnit,
		&r.ch.DurationDays, &r.ch.BadgeName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.New(apperrors.KindNotFound, "Challenge not found")
		}
		return nil, apperrors.Wrap(apperrors.KindDependency, "failed to load challenge", err)
	}
	r.uc.UserID = userID
	return &r, nil
}

func (s *DailyLogService) loadLogs(ctx context.Context, userChallengeID uuid.UUID) ([]challenge.DailyLog, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_challenge_id, day_number, log_date, value_logged, notes, is_completed, logged_at
		FROM challenge_daily_logs
		WHERE user_challenge_id = $1
		ORDER BY day_number ASC
	`, userChallengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily logs: %w", err)
	}
	defer rows.Close()

	var logs []challenge.DailyLog
	for rows.Next() {
		var l challenge.DailyLog
		if err := rows.Scan(&l.ID, &l.UserChallengeID, &l.DayNumber, &l.LogDate, &l.ValueLogged, &l.Notes, &l.IsCompleted, &l.LoggedAt); err != nil {
			return nil, fmt.Errorf("failed to scan daily log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// GetDayBreakdown returns every day of the enrollment with its derived
// state plus a roll-up summary.
func (s *DailyLogService) GetDayBreakdown(ctx context.Context, clerkID string, userChallengeID uuid.UUID) (*challenge.DayBreakdown, error) {
	userID, err := lookupUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	row, err := s.loadEnrollment(ctx, userID, userChallengeID)
	if err != nil {
		return nil, err
	}

	logs, err := s.loadLogs(ctx, userChallengeID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindDependency, "failed to load daily logs", err)
	}

	now := time.Now()
	days := challenge.BuildDayStates(row.ch.ChallengeType, row.ch.TargetValue, row.ch.DurationDays, row.uc.StartDate, now, logs)

	completedDays := 0
	totalLogged := 0.0
	for _, l := range logs {
		if l.IsCompleted {
			completedDays++
		}
		totalLogged += l.ValueLogged
	}

	elapsed := challenge.CalendarDaysElapsed(row.uc.StartDate, now)
	currentDay := elapsed
	if currentDay > row.ch.DurationDays {
		currentDay = row.ch.DurationDays
	}
	daysRemaining := row.ch.DurationDays - elapsed + 1
	if daysRemaining < 0 {
		daysRemaining = 0
	}

	return &challenge.DayBreakdown{
		UserChallenge: row.uc,
		ChallengeName: row.ch.Name,
		Days:          days,
		Summary: challenge.DaySummary{
			TotalDays:       row.ch.DurationDays,
			CompletedDays:   completedDays,
			CurrentDay:      currentDay,
			DaysRemaining:   daysRemaining,
			TotalLogged:     totalLogged,
			TargetValue:     row.ch.TargetValue,
			ProgressPercent: float64(completedDays) / float64(row.ch.DurationDays) * 100,
			DailyGoal:       challenge.DailyGoal(row.ch.ChallengeType, row.ch.TargetValue, row.ch.DurationDays),
		},
	}, nil
}

// LogDay records a value for one day of the enrollment. Every state read
// that feeds the write (unlock check, prior day state) happens inside one
// transaction holding a row lock on the enrollment, so concurrent day writes
// for the same enrollment are serialized: two writes to the same fresh day
// cannot both see it as not previously completed and double the reward, and
// two writes finishing the last two days cannot both miss the completion
// roll-up.
func (s *DailyLogService) LogDay(ctx context.Context, clerkID string, userChallengeID uuid.UUID, req *challenge.LogDayRequest) (*challenge.LogDayResponse, error) {
	if req == nil || req.DayNumber == 0 || req.ValueLogged == nil {
		return nil, apperrors.New(apperrors.KindBadRequest, "day_number and value_logged are required")
	}

	userID, err := lookupUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	row, err := s.loadEnrollment(ctx, userID, userChallengeID)
	if err != nil {
		return nil, err
	}

	if req.DayNumber < 1 || req.DayNumber > row.ch.DurationDays {
		return nil, apperrors.New(apperrors.KindBadRequest, "Invalid day number")
	}

	now := time.Now()
	elapsed := challenge.CalendarDaysElapsed(row.uc.StartDate, now)

	goal := challenge.DailyGoal(row.ch.ChallengeType, row.ch.TargetValue, row.ch.DurationDays)
	isCompleted := challenge.DayMeetsGoal(row.ch.ChallengeType, *req.ValueLogged, goal)
	logDate := row.uc.StartDate.AddDate(0, 0, req.DayNumber-1)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindDependency, "failed to begin log", err)
	}
	defer tx.Rollback(ctx)

	// Lock the enrollment row before reading any log state. Locking the log
	// row itself is not enough: FOR UPDATE on a day that has never been
	// logged locks nothing.
	var alreadyCompleted bool
	err = tx.QueryRow(ctx, `
		SELECT completed FROM user_challenges WHERE id = $1 FOR UPDATE
	`, userChallengeID).Scan(&alreadyCompleted)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindDependency, "failed to lock enrollment", err)
	}
	if alreadyCompleted {
		return nil, apperrors.New(apperrors.KindConflict, "Challenge already completed")
	}

	prevCompleted := true
	if req.DayNumber > 1 {
		err := tx.QueryRow(ctx, `
			SELECT is_completed FROM challenge_daily_logs
			WHERE user_challenge_id = $1 AND day_number = $2
		`, userChallengeID, req.DayNumber-1).Scan(&prevCompleted)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.Wrap(apperrors.KindDependency, "failed to check previous day", err)
			}
			prevCompleted = false
		}
	}

	if ok, reason := challenge.CheckDayWritable(req.DayNumber, elapsed, prevCompleted); !ok {
		return nil, apperrors.New(apperrors.KindForbidden, reason)
	}

	// Prior state of this specific day, read under the enrollment lock.
	wasCompleted := false
	err = tx.QueryRow(ctx, `
		SELECT is_completed FROM challenge_daily_logs
		WHERE user_challenge_id = $1 AND day_number = $2
	`, userChallengeID, req.DayNumber).Scan(&wasCompleted)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.Wrap(apperrors.KindDependency, "failed to read prior log", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO challenge_daily_logs
			(user_challenge_id, day_number, log_date, value_logged, notes, is_completed, logged_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_challenge_id, day_number)
		DO UPDATE SET value_logged = EXCLUDED.value_logged,
		              notes = EXCLUDED.notes,
		              is_completed = EXCLUDED.is_completed,
		              logged_at = NOW()
	`, userChallengeID, req.DayNumber, logDate, *req.ValueLogged, req.Notes, isCompleted)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindDependency, "failed to log progress", err)
	}

	var completedDays int
	var totalProgress float64
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE is_completed), COALESCE(SUM(value_logged), 0)
		FROM challenge_daily_logs
		WHERE user_challenge_id = $1
	`, userChallengeID).Scan(&completedDays, &totalProgress)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindDependency, "failed to recompute totals", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE user_challenges
		SET days_completed = $1, total_progress = $2, last_log_date = CURRENT_DATE
		WHERE id = $3
	`, completedDays, totalProgress, userChallengeID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindDependency, "failed to update roll-ups", err)
	}

	challengeCompleted := completedDays == row.ch.DurationDays
	if challengeCompleted {
		// No bonus beyond the per-day shares; the remainder already rides on
		// the final day's award.
		_, err = tx.Exec(ctx, `
			UPDATE user_challenges SET completed = true, end_date = CURRENT_DATE
			WHERE id = $1 AND completed = false
		`, userChallengeID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindDependency, "failed to complete challenge", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.KindDependency, "failed to commit log", err)
	}

	xpAwarded := 0
	if isCompleted && !wasCompleted {
		xpAwarded = challenge.DayCompletionXP(row.ch.DurationDays, completedDays)
		if err := s.ledger.CreditPoints(ctx, userID, xpAwarded, "challenge_day_completed"); err != nil {
			// The day stays completed; under-reward is reconciled out-of-band.
			log.Printf("LogDay: failed to credit %d xp for user %s day %d: %v", xpAwarded, userID, req.DayNumber, err)
		}
	}

	return &challenge.LogDayResponse{
		DayNumber:          req.DayNumber,
		ValueLogged:        *req.ValueLogged,
		DailyGoal:          goal,
		IsCompleted:        isCompleted,
		CompletedDays:      completedDays,
		TotalDays:          row.ch.DurationDays,
		ChallengeCompleted: challengeCompleted,
		XPAwarded:          xpAwarded,
	}, nil
}

// MyChallengesWithDays lists the caller's enrollments with day-tracking
// roll-ups and a coarse status.
func (s *DailyLogService) MyChallengesWithDays(ctx context.Context, clerkID string) ([]challenge.MyDailyChallenge, error) {
	userID, err := lookupUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT uc.id, uc.start_date, uc.completed,
		       uc.days_completed, uc.total_progress,
		       c.id, c.name, c.description, c.challenge_type, c.target_value,
		       c.target_unit, c.duration_days, c.badge_name,
		       (SELECT COUNT(*) FROM challenge_daily_logs cdl
		        WHERE cdl.user_challenge_id = uc.id AND cdl.is_completed = true) AS completed_days_count
		FROM user_challenges uc
		JOIN challenges c ON c.id = uc.challenge_id
		WHERE uc.user_id = $1
		ORDER BY uc.completed ASC, uc.start_date DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load challenges: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var result []challenge.MyDailyChallenge
	for rows.Next() {
		var m challenge.MyDailyChallenge
		var completedDaysCount int
		err := rows.Scan(
			&m.UserChallengeID, &m.StartDate, &m.Completed,
			&m.DaysCompleted, &m.TotalProgress,
			&m.ChallengeID, &m.Name, &m.Description, &m.ChallengeType, &m.TargetValue,
			&m.TargetUnit, &m.DurationDays, &m.BadgeName,
			&completedDaysCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}

		elapsed := challenge.CalendarDaysElapsed(m.StartDate, now)
		m.CurrentDay = elapsed
		if m.CurrentDay > m.DurationDays {
			m.CurrentDay = m.DurationDays
		}
		m.ProgressPercent = float64(completedDaysCount) / float64(m.DurationDays) * 100
		m.DaysRemaining = m.DurationDays - elapsed + 1
		if m.DaysRemaining < 0 {
			m.DaysRemaining = 0
		}
		switch {
		case m.Completed:
			m.Status = "completed"
		case elapsed > m.DurationDays:
			m.Status = "expired"
		default:
			m.Status = "active"
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// Report implements ProgressTracker for daily-tracked challenges. Progress
// is the share of days completed; success and termination coincide on this
// path because the enrollment only flips when every day is done.
func (s *DailyLogService) Report(ctx context.Context, clerkID string, userChallengeID uuid.UUID) (*challenge.ProgressReport, error) {
	userID, err := lookupUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	row, err := s.loadEnrollment(ctx, userID, userChallengeID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	elapsed := challenge.CalendarDaysElapsed(row.uc.StartDate, now)
	daysRemaining := row.ch.DurationDays - elapsed + 1
	if daysRemaining < 0 {
		daysRemaining = 0
	}

	progress := float64(row.uc.DaysCompleted) / float64(row.ch.DurationDays) * 100
	return &challenge.ProgressReport{
		UserChallengeID: row.uc.ID,
		ChallengeID:     row.uc.ChallengeID,
		ChallengeType:   row.ch.ChallengeType,
		TotalEmissions:  row.uc.TotalProgress,
		TargetValue:     row.ch.TargetValue,
		Progress:        math.Round(progress*10) / 10,
		StatusMessage:   fmt.Sprintf("%d / %d days completed", row.uc.DaysCompleted, row.ch.DurationDays),
		Completed:       row.uc.Completed,
		IsExpired:       elapsed > row.ch.DurationDays,
		DaysRemaining:   daysRemaining,
	}, nil
}
