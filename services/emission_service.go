package services

import (
	"context"
	"fmt"
	"time"

	"carbonPlayAPI/internal/challenge"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Scope narrows which scenario activity counts toward an enrollment:
// everything the user owns, one scenario, or one activity category.
type Scope struct {
	Type       challenge.ScopeType
	ScenarioID *uuid.UUID
	Category   *string
}

// EmissionService answers scoped aggregation queries over the scenario
// activity ledger. It is a pure read side; the challenge engine never writes
// to scenarios or scenario_activities.
type EmissionService struct {
	db *pgxpool.Pool
}

func NewEmissionService(db *pgxpool.Pool) *EmissionService {
	return &EmissionService{db: db}
}

// SumEmissions returns the summed co2e recorded in [from, to) for the given
// user and scope. Missing data is 0, not an error.
func (s *EmissionService) SumEmissions(ctx context.Context, userID uuid.UUID, scope Scope, from, to time.Time) (float64, error) {
	var total float64
	var err error

	switch {
	case scope.Type == challenge.ScopeScenario && scope.ScenarioID != nil:
		err = s.db.QueryRow(ctx, `
			SELECT COALESCE(SUM(sa.co2e_amount), 0)
			FROM scenario_activities sa
			INNER JOIN scenarios sc ON sa.scenario_id = sc.id
			WHERE sc.id = $1 AND sc.user_id = $2
			  AND sa.created_at >= $3 AND sa.created_at < $4
		`, scope.ScenarioID, userID, from, to).Scan(&total)

	case scope.Type == challenge.ScopeCategory && scope.Category != nil:
		err = s.db.QueryRow(ctx, `
			SELECT COALESCE(SUM(sa.co2e_amount), 0)
			FROM scenario_activities sa
			INNER JOIN scenarios sc ON sa.scenario_id = sc.id
			WHERE sc.user_id = $1 AND sc.is_active = true
			  AND sa.category = $2
			  AND sa.created_at >= $3 AND sa.created_at < $4
		`, userID, scope.Category, from, to).Scan(&total)

	default:
		err = s.db.QueryRow(ctx, `
			SELECT COALESCE(SUM(sa.co2e_amount), 0)
			FROM scenario_activities sa
			INNER JOIN scenarios sc ON sa.scenario_id = sc.id
			WHERE sc.user_id = $1 AND sc.is_active = true
			  AND sa.created_at >= $2 AND sa.created_at < $3
		`, userID, from, to).Scan(&total)
	}

	if err != nil {
		return 0, fmt.Errorf("failed to sum emissions: %w", err)
	}
	return total, nil
}

// CountActivities returns how many activities were logged in [from, to) for
// the given user and scope. Used by activity_count challenges.
func (s *EmissionService) CountActivities(ctx context.Context, userID uuid.UUID, scope Scope, from, to time.Time) (int, error) {
	var count int
	var err error

	switch {
	case scope.Type == challenge.ScopeScenario && scope.ScenarioID != nil:
		err = s.db.QueryRow(ctx, `
			SELECT COUNT(*)
			FROM scenario_activities sa
			INNER JOIN scenarios sc ON sa.scenario_id = sc.id
			WHERE sc.id = $1 AND sc.user_id = $2
			  AND sa.created_at >= $3 AND sa.created_at < $4
		`, scope.ScenarioID, userID, from, to).Scan(&count)

	case scope.Type == challenge.ScopeCategory && scope.Category != nil:
		err = s.db.QueryRow(ctx, `
			SELECT COUNT(*)
			FROM scenario_activities sa
			INNER JOIN scenarios sc ON sa.scenario_id = sc.id
			WHERE sc.user_id = $1 AND sc.is_active = true
			  AND sa.category = $2
			  AND sa.created_at >= $3 AND sa.created_at < $4
		`, userID, scope.Category, from, to).Scan(&count)

	default:
		err = s.db.QueryRow(ctx, `
			SELECT COUNT(*)
			FROM scenario_activities sa
			INNER JOIN scenarios sc ON sa.scenario_id = sc.id
			WHERE sc.user_id = $1 AND sc.is_active = true
			  AND sa.created_at >= $2 AND sa.created_at < $3
		`, userID, from, to).Scan(&count)
	}

	if err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}
	return count, nil
}

// ScenarioOwnedAndActive reports whether scenarioID belongs to userID and is
// currently active. Checked once at join time when a scenario scope is
// requested.
func (s *EmissionService) ScenarioOwnedAndActive(ctx context.Context, userID, scenarioID uuid.UUID) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM scenarios
			WHERE id = $1 AND user_id = $2 AND is_active = true
		)
	`, scenarioID, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check scenario ownership: %w", err)
	}
	return ok, nil
}
