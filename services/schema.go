package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the tables the challenge engine owns. Idempotent,
// called once at startup. The users/scenarios tables belong to other
// subsystems and are only referenced here.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS challenges (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			challenge_type VARCHAR(30) NOT NULL,
			tracking_mode VARCHAR(15) NOT NULL DEFAULT 'aggregate',
			target_value NUMERIC(12,3) NOT NULL CHECK (target_value >= 0),
			target_unit VARCHAR(50) NOT NULL DEFAULT 'kg',
			duration_days INT NOT NULL CHECK (duration_days >= 1),
			daily_cap_value NUMERIC(12,3),
			badge_name VARCHAR(100),
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS user_challenges (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			challenge_id UUID NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
			start_date DATE NOT NULL DEFAULT CURRENT_DATE,
			end_date DATE,
			scope_type VARCHAR(15) NOT NULL DEFAULT 'all',
			scope_ref_id UUID,
			scope_value VARCHAR(100),
			starting_co2e NUMERIC(12,3) NOT NULL DEFAULT 0,
			current_co2e NUMERIC(12,3) NOT NULL DEFAULT 0,
			days_completed INT NOT NULL DEFAULT 0,
			total_progress NUMERIC(12,3) NOT NULL DEFAULT 0,
			last_log_date DATE,
			completed BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// One active attempt per (user, challenge). The duplicate-join check
		// and the insert race through this index, not application logic.
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_active_user_challenge
			ON user_challenges (user_id, challenge_id)
			WHERE completed = false`,

		`CREATE TABLE IF NOT EXISTS challenge_daily_logs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_challenge_id UUID NOT NULL REFERENCES user_challenges(id) ON DELETE CASCADE,
			day_number INT NOT NULL CHECK (day_number >= 1),
			log_date DATE NOT NULL,
			value_logged NUMERIC(12,3) NOT NULL,
			notes TEXT,
			is_completed BOOLEAN NOT NULL DEFAULT false,
			logged_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_challenge_id, day_number)
		)`,

		`CREATE TABLE IF NOT EXISTS user_xp (
			user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			xp_total INT NOT NULL DEFAULT 0,
			last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
