package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"carbonPlayAPI/internal/apperrors"
	"carbonPlayAPI/internal/challenge"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Collaborators the enrollment lifecycle depends on. The pgx-backed
// implementations live in this package; the interfaces keep the engine
// testable and the reward/aggregation sides swappable.
type EmissionAggregator interface {
	SumEmissions(ctx context.Context, userID uuid.UUID, scope Scope, from, to time.Time) (float64, error)
	CountActivities(ctx context.Context, userID uuid.UUID, scope Scope, from, to time.Time) (int, error)
}

type ScenarioCatalog interface {
	ScenarioOwnedAndActive(ctx context.Context, userID, scenarioID uuid.UUID) (bool, error)
}

type PointsLedger interface {
	CreditPoints(ctx context.Context, userID uuid.UUID, amount int, reason string) error
}

// ChallengeService owns the enrollment lifecycle: joining, the aggregate
// recompute path, and the catalog/list views.
type ChallengeService struct {
	db        *pgxpool.Pool
	emissions EmissionAggregator
	catalog   ScenarioCatalog
	ledger    PointsLedger
}

func NewChallengeService(db *pgxpool.Pool, emissions EmissionAggregator, catalog ScenarioCatalog, ledger PointsLedger) *ChallengeService {
	return &ChallengeService{
		db:        db,
		emissions: emissions,
		catalog:   catalog,
		ledger:    ledger,
	}
}

// ListChallenges returns the active catalog annotated with the caller's join
// state and global participation stats.
func (s *ChallengeService) ListChallenges(ctx context.Context, clerkID string) ([]challenge.ChallengeListing, error) {
	userID, err := lookupUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT c.id, c.name, c.description, c.challenge_type, c.tracking_mode,
		       c.target_value, c.target_unit, c.duration_days, c.daily_cap_value,
		       c.badge_name, c.is_active, c.created_at,
		       EXISTS(
		           SELECT 1 FROM user_challenges uc
		           WHERE uc.challenge_id = c.id AND uc.user_id = $1 AND uc.completed = false
		       ) AS joined,
		       (SELECT COUNT(*) FROM user_challenges uc2 WHERE uc2.challenge_id = c.id AND uc2.completed = true) AS completions,
		       (SELECT COUNT(*) FROM user_challenges uc3 WHERE uc3.challenge_id = c.id) AS participants
		FROM challenges c
		WHERE c.is_active = true
		ORDER BY c.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	var listings []challenge.ChallengeListing
	for rows.Next() {
		var l challenge.ChallengeListing
		err := rows.Scan(
			&l.ID, &l.Name, &l.Description, &l.ChallengeType, &l.TrackingMode,
			&l.TargetValue, &l.TargetUnit, &l.DurationDays, &l.DailyCapValue,
			&l.BadgeName, &l.IsActive, &l.CreatedAt,
			&l.Joined, &l.Completions, &l.Participants,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// JoinChallenge enrolls the user into an active challenge. The active-
// enrollment check and the insert run in one transaction, backed by the
// partial unique index, so concurrent duplicate joins cannot both succeed.
func (s *ChallengeService) JoinChallenge(ctx context.Context, clerkID string, challengeID uuid.UUID, req *challenge.JoinChallengeRequest) (*challenge.JoinChallengeResponse, error) {
	userID, err := lookupUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	var ch challenge.Challenge
	err = s.db.QueryRow(ctx, `
		SELECT id, challenge_type, target_value
		FROM challenges
		WHERE id = $1 AND is_active = true
	`, challengeID).Scan(&ch.ID, &ch.ChallengeType, &ch.TargetValue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.New(apperrors.KindNotFound, "Challenge not found")
		}
		return nil, apperrors.Wrap(apperrors.KindDependency, "failed to load challenge", err)
	}

	scopeType := challenge.ScopeAll
	var scopeRefID *uuid.UUID
	var scopeValue *string

	if req != nil && req.ScenarioID != nil {
		owned, err := s.catalog.ScenarioOwnedAndActive(ctx, userID, *req.ScenarioID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindDependency, "failed to validate scenario", err)
		}
		if !owned {
			return nil, apperrors.New(apperrors.KindBadRequest, "Invalid scenario for this user")
		}
		scopeType = challenge.ScopeScenario
		scopeRefID = req.ScenarioID
	} else if req != nil && req.Category != nil {
		if !challenge.ValidCategory(*req.Category) {
			return nil, apperrors.New(apperrors.KindBadRequest, "Invalid category")
		}
		scopeType = challenge.ScopeCategory
		scopeValue = req.Category
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindDependency, "failed to begin join", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM user_challenges
			WHERE user_id = $1 AND challenge_id = $2 AND completed = false
		)
	`, userID, challengeID).Scan(&exists)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindDependency, "failed to check enrollment", err)
	}
	if exists {
		return nil, apperrors.New(apperrors.KindConflict, "Already joined")
	}

	var userChallengeID uuid.UUID
	var startDate time.Time
	err = tx.QueryRow(ctx, `
		INSERT INTO user_challenges
			(user_id, challenge_id, start_date, starting_co2e, current_co2e, completed, scope_type, scope_ref_id, scope_value)
		VALUES ($1, $2, CURRENT_DATE, 0, 0, false, $3, $4, $5)
		RETURNING id, start_date
	`, userID, challengeID, scopeType, scopeRefID, scopeValue).Scan(&userChallengeID, &startDate)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.New(apperrors.KindConflict, "Already joined")
		}
		return nil, apperrors.Wrap(apperrors.KindDependency, "failed to join challenge", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.New(apperrors.KindConflict, "Already joined")
		}
		return nil, apperrors.Wrap(apperrors.KindDependency, "failed to commit join", err)
	}

	// Reward is best-effort once the enrollment is committed.
	if err := s.ledger.CreditPoints(ctx, userID, challenge.JoinXP, "challenge_joined"); err != nil {
		log.Printf("JoinChallenge: failed to credit join xp for user %s: %v", userID, err)
	}

	return &challenge.JoinChallengeResponse{
		UserChallengeID: userChallengeID,
		ChallengeID:     challengeID,
		ChallengeType:   ch.ChallengeType,
		TargetValue:     ch.TargetValue,
		ScopeType:       scopeType,
		ScopeRefID:      scopeRefID,
		ScopeValue:      scopeValue,
		StartDate:       startDate,
	}, nil
}

// MyChallenges returns the caller's enrollments with progress derived from
// the last stored aggregate, without hitting the emission ledger.
func (s *ChallengeService) MyChallenges(ctx context.Context, clerkID string) ([]challenge.MyChallenge, error) {
	userID, err := lookupUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT uc.id, uc.user_id, uc.challenge_id, uc.start_date, uc.end_date,
		       uc.scope_type, uc.scope_ref_id, uc.scope_value,
		       uc.starting_co2e, uc.current_co2e,
		       uc.days_completed, uc.total_progress, uc.last_log_date,
		       uc.completed, uc.created_at,
		       c.name, c.description, c.challenge_type, c.target_value,
		       c.target_unit, c.duration_days, c.daily_cap_value, c.badge_name
		FROM user_challenges uc
		JOIN challenges c ON c.id = uc.challenge_id
		WHERE uc.user_id = $1 AND c.is_active = true
		ORDER BY uc.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load challenges: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var result []challenge.MyChallenge
	for rows.Next() {
		var m challenge.MyChallenge
		var dailyCap *float64
		err := rows.Scan(
			&m.UserChallenge.ID, &m.UserID, &m.ChallengeID, &m.StartDate, &m.EndDate,
			&m.ScopeType, &m.ScopeRefID, &m.ScopeValue,
			&m.StartingCO2e, &m.CurrentCO2e,
			&m.DaysCompleted, &m.TotalProgress, &m.LastLogDate,
			&m.Completed, &m.CreatedAt,
			&m.Name, &m.Description, &m.ChallengeType, &m.TargetValue,
			&m.TargetUnit, &m.DurationDays, &dailyCap, &m.BadgeName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}

		elapsed := challenge.ElapsedDays(m.StartDate, now)
		res := challenge.CalculateProgress(
			m.ChallengeType, m.CurrentCO2e, elapsed, m.TargetValue,
			dailyCap, m.DurationDays, false,
		)
		m.Progress = res.Progress
		m.StatusText = res.StatusMessage
		result = append(result, m)
	}
	return result, rows.Err()
}

// RecomputeProgress drives the aggregate completion path for one enrollment:
// re-aggregate the scoped emissions over the challenge window, persist the
// total, evaluate the type's rule, and flip to completed (with or without
// reward) when the rule or the deadline says so. Already-completed
// enrollments short-circuit without touching the aggregator.
func (s *ChallengeService) RecomputeProgress(ctx context.Context, clerkID string, userChallengeID uuid.UUID) (*challenge.ProgressReport, error) {
	userID, err := lookupUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	var uc challenge.UserChallenge
	var ch challenge.Challenge
	err = s.db.QueryRow(ctx, `
		SELECT uc.id, uc.challenge_id, uc.start_date, uc.scope_type, uc.scope_ref_id, uc.scope_value,
		       uc.current_co2e, uc.completed,
		       c.challenge_type, c.target_value, c.duration_days, c.daily_cap_value
		FROM user_challenges uc
		JOIN challenges c ON c.id = uc.challenge_id
		WHERE uc.id = $1 AND uc.user_id = $2
	`, userChallengeID, userID).Scan(
		&uc.ID, &uc.ChallengeID, &uc.StartDate, &uc.ScopeType, &uc.ScopeRefID, &uc.ScopeValue,
		&uc.CurrentCO2e, &uc.Completed,
		&ch.ChallengeType, &ch.TargetValue, &ch.DurationDays, &ch.DailyCapValue,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.New(apperrors.KindNotFound, "Enrollment or challenge not found")
		}
		return nil, apperrors.Wrap(apperrors.KindDependency, "failed to load enrollment", err)
	}

	now := time.Now()
	endDate := uc.StartDate.AddDate(0, 0, ch.DurationDays)
	isExpired := !now.Before(endDate)

	if uc.Completed {
		return &challenge.ProgressReport{
			UserChallengeID: uc.ID,
			ChallengeID:     uc.ChallengeID,
			ChallengeType:   ch.ChallengeType,
			TotalEmissions:  uc.CurrentCO2e,
			TargetValue:     ch.TargetValue,
			Progress:        100,
			StatusMessage:   "Challenge completed",
			Completed:       true,
			IsExpired:       isExpired,
			DaysRemaining:   0,
		}, nil
	}

	windowEnd := now
	if isExpired {
		windowEnd = endDate
	}

	scope := Scope{Type: uc.ScopeType, ScenarioID: uc.ScopeRefID, Category: uc.ScopeValue}

	var accumulated float64
	if ch.ChallengeType == challenge.TypeActivityCount {
		count, err := s.emissions.CountActivities(ctx, userID, scope, uc.StartDate, windowEnd)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindDependency, "failed to aggregate activities", err)
		}
		accumulated = float64(count)
	} else {
		total, err := s.emissions.SumEmissions(ctx, userID, scope, uc.StartDate, windowEnd)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindDependency, "failed to aggregate emissions", err)
		}
		accumulated = total
	}

	// Completed enrollments are immutable; a recompute racing a concurrent
	// completion flip must not overwrite the final total.
	if _, err := s.db.Exec(ctx, `
		UPDATE user_challenges SET current_co2e = $1 WHERE id = $2 AND completed = false
	`, accumulated, uc.ID); err != nil {
		return nil, apperrors.Wrap(apperrors.KindDependency, "failed to store progress", err)
	}

	elapsed := challenge.ElapsedDays(uc.StartDate, now)
	res := challenge.CalculateProgress(
		ch.ChallengeType, accumulated, elapsed, ch.TargetValue,
		ch.DailyCapValue, ch.DurationDays, isExpired,
	)

	if res.Completed {
		// Compare-and-set keeps the transition idempotent under concurrent
		// recomputes; the reward rides on winning the flip.
		tag, err := s.db.Exec(ctx, `
			UPDATE user_challenges SET completed = true, end_date = CURRENT_DATE
			WHERE id = $1 AND completed = false
		`, uc.ID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindDependency, "failed to complete challenge", err)
		}
		if tag.RowsAffected() == 1 {
			if err := s.ledger.CreditPoints(ctx, userID, challenge.CompletionXP, "challenge_completed"); err != nil {
				log.Printf("RecomputeProgress: failed to credit completion xp for user %s: %v", userID, err)
			}
		}
	} else if isExpired {
		// Window over without success: the attempt ends, no reward.
		if _, err := s.db.Exec(ctx, `
			UPDATE user_challenges SET completed = true, end_date = $1
			WHERE id = $2 AND completed = false
		`, endDate, uc.ID); err != nil {
			return nil, apperrors.Wrap(apperrors.KindDependency, "failed to expire challenge", err)
		}
	}

	return &challenge.ProgressReport{
		UserChallengeID: uc.ID,
		ChallengeID:     uc.ChallengeID,
		ChallengeType:   ch.ChallengeType,
		TotalEmissions:  accumulated,
		TargetValue:     ch.TargetValue,
		Progress:        res.Progress,
		StatusMessage:   res.StatusMessage,
		Completed:       res.Completed,
		IsExpired:       isExpired,
		DaysRemaining:   challenge.DaysRemaining(endDate, now),
	}, nil
}

// Report implements ProgressTracker for aggregate-tracked challenges.
func (s *ChallengeService) Report(ctx context.Context, clerkID string, userChallengeID uuid.UUID) (*challenge.ProgressReport, error) {
	return s.RecomputeProgress(ctx, clerkID, userChallengeID)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
