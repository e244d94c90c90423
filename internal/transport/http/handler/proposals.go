package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tablemend/tablemend-api/internal/application/proposal"
	"github.com/tablemend/tablemend-api/internal/domain"
	"github.com/tablemend/tablemend-api/internal/transport/http/middleware"
)

// ProposalHandler resolves assistant proposals attached to messages.
type ProposalHandler struct {
	svc proposal.Service
}

func NewProposalHandler(svc proposal.Service) *ProposalHandler {
	return &ProposalHandler{svc: svc}
}

type resolveProposalRequest struct {
	Action proposal.Action `json:"action"`
}

func (h *ProposalHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req resolveProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	msg, err := h.svc.Resolve(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "mid"), req.Action, claims.UserID)
	if errors.Is(err, domain.ErrAlreadyResolved) {
		// Second resolution attempt: no-op, current state returned.
		writeJSON(w, http.StatusOK, msg)
		return
	}
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}
