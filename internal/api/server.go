package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/preppal/internal/assistant"
	"github.com/kalambet/preppal/internal/mealplan"
	"github.com/kalambet/preppal/internal/nutrition"
	"github.com/kalambet/preppal/internal/profile"
	"github.com/kalambet/preppal/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps holds the services behind the HTTP API.
type Deps struct {
	Assistant *assistant.Assistant
	Profiles  *profile.Manager
	Plans     *mealplan.Service
	Token     string
}

// NewHandler returns the PrepPal REST API. /health is public; everything
// under /v1 requires the bearer token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/chat", handleChat(deps))
		r.Post("/sessions", handleNewSession(deps))
		r.Get("/sessions/search", handleSearchSessions(deps))

		r.Post("/goals/compute", handleComputeGoals(deps))
		r.Post("/goals/customize", handleCustomizeGoals(deps))

		r.Get("/profile/{userID}", handleGetProfile(deps))
		r.Put("/profile/{userID}", handlePutProfile(deps))
		r.Post("/profile/{userID}/progress", handleAppendProgress(deps))

		r.Get("/mealplans/{userID}", handleListMealPlans(deps))
		r.Post("/mealplans/{userID}", handleSaveMealPlan(deps))
		r.Post("/mealplans/{userID}/{planID}/feedback", handleMealPlanFeedback(deps))

		r.Get("/preferences/{userID}", handleListPreferences(deps))
		r.Post("/preferences/{userID}", handleRecordPreference(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// decodeBody reads a size-limited JSON body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	case errors.Is(err, assistant.ErrStaleResponse), errors.Is(err, profile.ErrNoGoals):
		httpError(w, http.StatusConflict, "conflict_error", "%v", err)
	case errors.Is(err, assistant.ErrEmptyMessage),
		errors.Is(err, nutrition.ErrIncompleteProfile),
		errors.Is(err, nutrition.ErrInvalidBiometrics),
		errors.Is(err, mealplan.ErrInvalidCompletion):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, assistant.ErrUpstream):
		httpError(w, http.StatusBadGateway, "api_error", "upstream error: %v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
