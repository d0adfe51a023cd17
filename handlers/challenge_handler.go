package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"carbonPlayAPI/internal/apperrors"
	"carbonPlayAPI/internal/challenge"
	"carbonPlayAPI/middleware"
	"carbonPlayAPI/services"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type ChallengeHandler struct {
	challengeService *services.ChallengeService
	trackers         *services.TrackerSet
}

func NewChallengeHandler(challengeService *services.ChallengeService, trackers *services.TrackerSet) *ChallengeHandler {
	return &ChallengeHandler{
		challengeService: challengeService,
		trackers:         trackers,
	}
}

func (h *ChallengeHandler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	listings, err := h.challengeService.ListChallenges(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to load challenges")
		return
	}

	respondWithJSON(w, http.StatusOK, listings)
}

func (h *ChallengeHandler) JoinChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
		return
	}

	// Body is optional: absent body means scope "all".
	var req challenge.JoinChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.challengeService.JoinChallenge(ctx, clerkID, challengeID, &req)
	if err != nil {
		respondWithServiceError(w, err, "Failed to join challenge")
		return
	}

	middleware.ChallengeJoins.Inc()
	respondWithJSON(w, http.StatusCreated, resp)
}

func (h *ChallengeHandler) GetMyChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	mine, err := h.challengeService.MyChallenges(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to load your challenges")
		return
	}

	respondWithJSON(w, http.StatusOK, mine)
}

// UpdateProgress recomputes aggregate progress for one enrollment.
func (h *ChallengeHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	userChallengeID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid enrollment id")
		return
	}

	report, err := h.challengeService.RecomputeProgress(ctx, clerkID, userChallengeID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update progress")
		return
	}

	if report.Completed {
		middleware.ChallengeCompletions.Inc()
	}
	respondWithJSON(w, http.StatusOK, report)
}

// GetProgress reports progress through whichever tracker drives the
// enrollment's challenge.
func (h *ChallengeHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	userChallengeID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid enrollment id")
		return
	}

	report, err := h.trackers.Report(ctx, clerkID, userChallengeID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to load progress")
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}

// Helper functions
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithServiceError maps engine error kinds onto status codes and
// hides internals behind the fallback message.
func respondWithServiceError(w http.ResponseWriter, err error, fallback string) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case apperrors.KindNotFound:
			respondWithError(w, http.StatusNotFound, appErr.Message)
			return
		case apperrors.KindConflict:
			respondWithError(w, http.StatusConflict, appErr.Message)
			return
		case apperrors.KindBadRequest:
			respondWithError(w, http.StatusBadRequest, appErr.Message)
			return
		case apperrors.KindForbidden:
			respondWithError(w, http.StatusForbidden, appErr.Message)
			return
		}
	}
	log.Printf("handler error: %v", err)
	respondWithError(w, http.StatusInternalServerError, fallback)
}
