package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tablemend/tablemend-api/internal/application/typing"
	"github.com/tablemend/tablemend-api/internal/transport/http/middleware"
)

// TypingHandler handles typing presence endpoints.
type TypingHandler struct {
	svc typing.Service
}

func NewTypingHandler(svc typing.Service) *TypingHandler {
	return &TypingHandler{svc: svc}
}

type setTypingRequest struct {
	IsTyping bool `json:"is_typing"`
}

func (h *TypingHandler) Set(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req setTypingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	err := h.svc.SetTyping(r.Context(), chi.URLParam(r, "id"), claims.UserID, claims.DisplayName, req.IsTyping)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "ok"})
}

// Clear removes the caller's presence row, used when the thread view closes.
func (h *TypingHandler) Clear(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.Clear(r.Context(), chi.URLParam(r, "id"), claims.UserID); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "cleared"})
}

// List returns display names of the other participants currently typing.
func (h *TypingHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	names, err := h.svc.TypingUsers(r.Context(), chi.URLParam(r, "id"), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TypingEnvelope{Typing: names})
}
