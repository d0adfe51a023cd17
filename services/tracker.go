package services

import (
	"context"
	"errors"

	"carbonPlayAPI/internal/apperrors"
	"carbonPlayAPI/internal/challenge"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProgressTracker is the one seam both tracking strategies stand behind:
// aggregate recomputation and day-by-day logging both answer a progress
// report for an enrollment.
type ProgressTracker interface {
	Report(ctx context.Context, clerkID string, userChallengeID uuid.UUID) (*challenge.ProgressReport, error)
}

// TrackerSet selects the tracker for an enrollment from the challenge
// definition's tracking_mode at read time.
type TrackerSet struct {
	db        *pgxpool.Pool
	aggregate ProgressTracker
	daily     ProgressTracker
}

func NewTrackerSet(db *pgxpool.Pool, aggregate, daily ProgressTracker) *TrackerSet {
	return &TrackerSet{db: db, aggregate: aggregate, daily: daily}
}

func (t *TrackerSet) For(mode challenge.TrackingMode) ProgressTracker {
	if mode == challenge.TrackDaily {
		return t.daily
	}
	return t.aggregate
}

// Report looks up the enrollment's tracking mode and dispatches.
func (t *TrackerSet) Report(ctx context.Context, clerkID string, userChallengeID uuid.UUID) (*challenge.ProgressReport, error) {
	var mode challenge.TrackingMode
	err := t.db.QueryRow(ctx, `
		SELECT c.tracking_mode
		FROM user_challenges uc
		JOIN challenges c ON c.id = uc.challenge_id
		WHERE uc.id = $1
	`, userChallengeID).Scan(&mode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.New(apperrors.KindNotFound, "Enrollment not found")
		}
		return nil, apperrors.Wrap(apperrors.KindDependency, "failed to resolve tracking mode", err)
	}
	return t.For(mode).Report(ctx, clerkID, userChallengeID)
}
