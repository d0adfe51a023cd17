package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"carbonPlayAPI/internal/challenge"
	"carbonPlayAPI/middleware"
	"carbonPlayAPI/services"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type DailyLogHandler struct {
	dailyLogService *services.DailyLogService
}

func NewDailyLogHandler(dailyLogService *services.DailyLogService) *DailyLogHandler {
	return &DailyLogHandler{
		dailyLogService: dailyLogService,
	}
}

func (h *DailyLogHandler) GetDayBreakdown(w http.ResponseWriter, r *http.Request) {
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

	breakdown, err := h.dailyLogService.GetDayBreakdown(ctx, clerkID, userChallengeID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to load challenge days")
		return
	}

	respondWithJSON(w, http.StatusOK, breakdown)
}

func (h *DailyLogHandler) LogDay(w http.ResponseWriter, r *http.Request) {
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

	var req challenge.LogDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.dailyLogService.LogDay(ctx, clerkID, userChallengeID, &req)
	if err != nil {
		respondWithServiceError(w, err, "Failed to log progress")
		return
	}

	middleware.DaysLogged.Inc()
	if resp.ChallengeCompleted {
		middleware.ChallengeCompletions.Inc()
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *DailyLogHandler) GetMyChallengesWithDays(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	result, err := h.dailyLogService.MyChallengesWithDays(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to load challenges")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}
