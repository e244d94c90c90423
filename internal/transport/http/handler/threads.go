package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tablemend/tablemend-api/internal/application/message"
	"github.com/tablemend/tablemend-api/internal/application/unread"
	"github.com/tablemend/tablemend-api/internal/transport/http/middleware"
)

// ThreadHandler handles read-state and unread endpoints.
type ThreadHandler struct {
	messages message.Service
	unread   unread.Service
}

func NewThreadHandler(messages message.Service, unreadSvc unread.Service) *ThreadHandler {
	return &ThreadHandler{messages: messages, unread: unreadSvc}
}

// MarkRead advances the caller's read watermark for the thread.
func (h *ThreadHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.messages.MarkRead(r.Context(), claims.UserID, chi.URLParam(r, "id")); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "read"})
}

// UnreadMap computes unread flags for a comma-separated thread_ids query in
// two batched lookups, for list views.
func (h *ThreadHandler) UnreadMap(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	raw := r.URL.Query().Get("thread_ids")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "thread_ids is required")
		return
	}
	ids := strings.Split(raw, ",")
	m, err := h.unread.UnreadMap(r.Context(), claims.UserID, ids)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UnreadEnvelope{Unread: m})
}
