package api

import (
	"net/http"
	"strings"

	"github.com/kalambet/preppal/internal/conversation"
)

type chatRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "userId is required")
			return
		}

		reply, err := deps.Assistant.HandleMessage(r.Context(), req.UserID, req.Message)
		if err != nil {
			writeError(w, err)
			return
		}
		if reply.Messages == nil {
			reply.Messages = []conversation.Message{}
		}
		writeJSON(w, http.StatusOK, reply)
	}
}

func handleNewSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string `json:"userId"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "userId is required")
			return
		}

		id, err := deps.Assistant.StartNewSession(r.Context(), req.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"sessionId": id})
	}
}

func handleSearchSessions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("userId")
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if userID == "" || q == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "userId and q are required")
			return
		}

		msgs, err := deps.Assistant.SearchContext(r.Context(), userID, q)
		if err != nil {
			writeError(w, err)
			return
		}
		if msgs == nil {
			msgs = []conversation.Message{}
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}
