package services

import (
	"context"
	"os"
	"testing"

	"carbonPlayAPI/internal/challenge"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
)

// setupTestDB connects to the database named by DATABASE_URL and makes sure
// the schema exists. Tests are skipped when no database is configured.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if err := godotenv.Load("../.env"); err != nil {
		_ = godotenv.Load()
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping database tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	// Tables owned by other subsystems that the engine only reads. Created
	// here so the tests run against a bare database.
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			clerk_id VARCHAR(255) UNIQUE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS scenarios (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			is_active BOOLEAN NOT NULL DEFAULT true
		)`,
		`CREATE TABLE IF NOT EXISTS scenario_activities (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			scenario_id UUID NOT NULL REFERENCES scenarios(id) ON DELETE CASCADE,
			category VARCHAR(50) NOT NULL DEFAULT 'other',
			co2e_amount NUMERIC(12,3) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	} {
		_, err := db.Exec(ctx, stmt)
		require.NoError(t, err)
	}

	require.NoError(t, EnsureSchema(ctx, db))
	return db
}

func createTestUser(t *testing.T, db *pgxpool.Pool) (uuid.UUID, string) {
	t.Helper()

	clerkID := "test_clerk_" + uuid.NewString()
	var id uuid.UUID
	err := db.QueryRow(context.Background(),
		`INSERT INTO users (clerk_id) VALUES ($1) RETURNING id`, clerkID).Scan(&id)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, id)
	})
	return id, clerkID
}

func createTestChallenge(t *testing.T, db *pgxpool.Pool, ct challenge.ChallengeType, mode challenge.TrackingMode, target float64, durationDays int) uuid.UUID {
	t.Helper()

	var id uuid.UUID
	err := db.QueryRow(context.Background(), `
		INSERT INTO challenges (name, description, challenge_type, tracking_mode, target_value, duration_days)
		VALUES ($1, '', $2, $3, $4, $5)
		RETURNING id
	`, "test "+string(ct)+" "+uuid.NewString()[:8], ct, mode, target, durationDays).Scan(&id)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Exec(context.Background(), `DELETE FROM challenges WHERE id = $1`, id)
	})
	return id
}

func createTestScenario(t *testing.T, db *pgxpool.Pool, userID uuid.UUID) uuid.UUID {
	t.Helper()

	var id uuid.UUID
	err := db.QueryRow(context.Background(),
		`INSERT INTO scenarios (user_id) VALUES ($1) RETURNING id`, userID).Scan(&id)
	require.NoError(t, err)
	return id
}

func addTestActivity(t *testing.T, db *pgxpool.Pool, scenarioID uuid.UUID, category string, co2e float64) {
	t.Helper()

	_, err := db.Exec(context.Background(), `
		INSERT INTO scenario_activities (scenario_id, category, co2e_amount)
		VALUES ($1, $2, $3)
	`, scenarioID, category, co2e)
	require.NoError(t, err)
}

// createTestEnrollment inserts an enrollment directly with the start date
// shifted back startOffsetDays, bypassing JoinChallenge so tests can control
// the calendar and keep join XP out of payout assertions.
func createTestEnrollment(t *testing.T, db *pgxpool.Pool, userID, challengeID uuid.UUID, startOffsetDays int) uuid.UUID {
	t.Helper()

	var id uuid.UUID
	err := db.QueryRow(context.Background(), `
		INSERT INTO user_challenges (user_id, challenge_id, start_date)
		VALUES ($1, $2, CURRENT_DATE - $3::int)
		RETURNING id
	`, userID, challengeID, startOffsetDays).Scan(&id)
	require.NoError(t, err)
	return id
}

func userXPTotal(t *testing.T, db *pgxpool.Pool, userID uuid.UUID) int {
	t.Helper()

	var total int
	err := db.QueryRow(context.Background(),
		`SELECT COALESCE((SELECT xp_total FROM user_xp WHERE user_id = $1), 0)`, userID).Scan(&total)
	require.NoError(t, err)
	return total
}
