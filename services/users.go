package services

import (
	"context"
	"errors"

	"carbonPlayAPI/internal/apperrors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// lookupUserID resolves the authenticated Clerk id to the internal user id.
func lookupUserID(ctx context.Context, db *pgxpool.Pool, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, apperrors.New(apperrors.KindNotFound, "user not found")
		}
		return uuid.Nil, apperrors.Wrap(apperrors.KindDependency, "failed to look up user", err)
	}
	return userID, nil
}
