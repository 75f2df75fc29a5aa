package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/preppal/internal/mealplan"
	"github.com/kalambet/preppal/internal/preference"
	"github.com/kalambet/preppal/internal/storage"
)

func handleListMealPlans(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", storage.MaxRecentMealPlans, storage.MaxRecentMealPlans)
		plans, err := deps.Plans.Recent(chi.URLParam(r, "userID"), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		if plans == nil {
			plans = []mealplan.WeeklyMealPlan{}
		}
		writeJSON(w, http.StatusOK, plans)
	}
}

func handleSaveMealPlan(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var plan mealplan.WeeklyMealPlan
		if !decodeBody(w, r, &plan) {
			return
		}
		plan.UserID = chi.URLParam(r, "userID")

		saved, err := deps.Plans.Save(plan)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	}
}

func handleMealPlanFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CompletionRate *float64 `json:"completionRate"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.CompletionRate == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "completionRate is required")
			return
		}

		userID, planID := chi.URLParam(r, "userID"), chi.URLParam(r, "planID")
		if err := deps.Assistant.RecordFeedback(r.Context(), userID, planID, *req.CompletionRate); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
	}
}

func handleListPreferences(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		var (
			items []preference.Item
			err   error
		)
		if cat := r.URL.Query().Get("category"); cat != "" {
			c, perr := preference.ParseCategory(cat)
			if perr != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", perr)
				return
			}
			items, err = deps.Assistant.TopPreferences(r.Context(), userID, c, parseIntParam(r, "limit", 5, 50))
		} else {
			items, err = deps.Assistant.Preferences(r.Context(), userID)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		if items == nil {
			items = []preference.Item{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

type preferenceRequest struct {
	Category string `json:"category"`
	Value    string `json:"value"`
	Liked    bool   `json:"liked"`
}

func handleRecordPreference(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req preferenceRequest
		if !decodeBody(w, r, &req) {
			return
		}
		c, err := preference.ParseCategory(req.Category)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		value := strings.TrimSpace(req.Value)
		if value == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "value is required")
			return
		}

		item, err := deps.Assistant.RecordPreference(r.Context(), chi.URLParam(r, "userID"), c, value, req.Liked)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}
