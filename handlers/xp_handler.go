package handlers

import (
	"context"
	"net/http"
	"time"

	"carbonPlayAPI/middleware"
	"carbonPlayAPI/services"
)

type XPHandler struct {
	xpService *services.XPService
}

func NewXPHandler(xpService *services.XPService) *XPHandler {
	return &XPHandler{
		xpService: xpService,
	}
}

func (h *XPHandler) GetMyXP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	summary, err := h.xpService.GetXP(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to load XP")
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}
