package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/preppal/internal/assistant"
	"github.com/kalambet/preppal/internal/nutrition"
	"github.com/kalambet/preppal/internal/profile"
)

type computeGoalsRequest struct {
	// UserID is optional; when set the computed goals are saved to the profile.
	UserID string `json:"userId,omitempty"`
	nutrition.BiometricProfile
	GoalType       nutrition.GoalType       `json:"goalType"`
	DietaryPattern nutrition.DietaryPattern `json:"dietaryPattern"`
}

func handleComputeGoals(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req computeGoalsRequest
		if !decodeBody(w, r, &req) {
			return
		}
		goals, err := nutrition.ComputeGoalsFor(req.BiometricProfile, req.GoalType, req.DietaryPattern)
		if err != nil {
			writeError(w, err)
			return
		}
		if req.UserID != "" {
			if err := deps.Profiles.ApplyGoals(req.UserID, req.BiometricProfile, goals); err != nil {
				writeError(w, err)
				return
			}
			syncProfile(deps.Assistant, req.UserID)
		}
		writeJSON(w, http.StatusOK, goals)
	}
}

type customizeGoalsRequest struct {
	UserID  string  `json:"userId"`
	Protein float64 `json:"protein"`
	Carbs   float64 `json:"carbs"`
	Fat     float64 `json:"fat"`
}

func handleCustomizeGoals(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req customizeGoalsRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "userId is required")
			return
		}
		goals, err := deps.Assistant.CustomizeGoals(r.Context(), req.UserID, req.Protein, req.Carbs, req.Fat)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, goals)
	}
}

func handleGetProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Profiles.Get(chi.URLParam(r, "userID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// profileUpdate is the PUT body. Absent fields are left unchanged; an empty
// list clears the corresponding field.
type profileUpdate struct {
	profile.BiometricsUpdate
	DietaryRestrictions []string `json:"dietaryRestrictions"`
	Allergies           []string `json:"allergies"`
	DislikedIngredients []string `json:"dislikedIngredients"`
	FavoriteIngredients []string `json:"favoriteIngredients"`
}

func handlePutProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		var req profileUpdate
		if !decodeBody(w, r, &req) {
			return
		}

		if !req.BiometricsUpdate.IsZero() {
			if _, err := deps.Profiles.UpdateBiometrics(userID, req.BiometricsUpdate); err != nil {
				writeError(w, err)
				return
			}
		}
		p, err := deps.Profiles.UpdateRestrictions(userID, profile.RestrictionsUpdate{
			DietaryRestrictions: req.DietaryRestrictions,
			Allergies:           req.Allergies,
			Disliked:            req.DislikedIngredients,
			Favorites:           req.FavoriteIngredients,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		syncProfile(deps.Assistant, userID)
		writeJSON(w, http.StatusOK, p)
	}
}

func handleAppendProgress(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var wp profile.WeeklyProgress
		if !decodeBody(w, r, &wp) {
			return
		}
		p, err := deps.Profiles.AppendProgress(chi.URLParam(r, "userID"), wp)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// syncProfile pushes a profile change into a loaded chat session. The
// profile itself is already saved, so a failure is only logged.
func syncProfile(a *assistant.Assistant, userID string) {
	if err := a.SyncProfile(userID); err != nil {
		slog.Warn("refreshing chat context after profile change", "user", userID, "error", err)
	}
}
