package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"carbonPlayAPI/internal/xp"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// XPService is the reward ledger: a per-user XP total with an additive
// update. It tolerates repeated small credits; every challenge reward lands
// here.
type XPService struct {
	db *pgxpool.Pool
}

func NewXPService(db *pgxpool.Pool) *XPService {
	return &XPService{db: db}
}

// CreditPoints adds amount to the user's XP total, creating the row on first
// credit. Non-positive amounts are a no-op.
func (s *XPService) CreditPoints(ctx context.Context, userID uuid.UUID, amount int, reason string) error {
	if amount <= 0 {
		return nil
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO user_xp (user_id, xp_total, last_updated)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET xp_total = user_xp.xp_total + EXCLUDED.xp_total, last_updated = NOW()
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to credit %d xp (%s): %w", amount, reason, err)
	}

	log.Printf("CreditPoints: user %s +%d xp (%s)", userID, amount, reason)
	return nil
}

// GetXP returns the user's XP summary with derived level info. Users who
// never earned XP get a zero summary.
func (s *XPService) GetXP(ctx context.Context, clerkID string) (*xp.SummaryWithLevel, error) {
	userID, err := lookupUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	var total int
	var lastUpdated time.Time
	err = s.db.QueryRow(ctx, `
		SELECT xp_total, last_updated FROM user_xp WHERE user_id = $1
	`, userID).Scan(&total, &lastUpdated)

	summary := &xp.SummaryWithLevel{}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			summary.LevelInfo = xp.ToLevel(0, xp.DefaultLevelSize)
			return summary, nil
		}
		return nil, fmt.Errorf("failed to get xp: %w", err)
	}

	summary.LevelInfo = xp.ToLevel(total, xp.DefaultLevelSize)
	summary.LastUpdated = &lastUpdated
	return summary, nil
}
