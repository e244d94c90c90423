package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tablemend/tablemend-api/internal/application/message"
	"github.com/tablemend/tablemend-api/internal/domain"
	"github.com/tablemend/tablemend-api/internal/transport/http/middleware"
)

// MessageHandler handles message send/list and reaction endpoints.
type MessageHandler struct {
	svc message.Service
}

func NewMessageHandler(svc message.Service) *MessageHandler {
	return &MessageHandler{svc: svc}
}

type sendMessageRequest struct {
	Body            string           `json:"body"`
	MessageID       string           `json:"message_id"`
	CreatedAt       *time.Time       `json:"created_at"`
	ParentMessageID *string          `json:"parent_message_id"`
	Attachment      *attachmentInput `json:"attachment"`
	Proposal        *domain.Proposal `json:"proposal"`

	// Thread bootstrap fields, honored only on the thread's first message.
	IssueID        string   `json:"issue_id"`
	IssueTitle     string   `json:"issue_title"`
	RestaurantName string   `json:"restaurant_name"`
	ParticipantIDs []string `json:"participant_ids"`
}

type attachmentInput struct {
	Base64      string `json:"base64"`
	ContentType string `json:"content_type"`
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sendReq := message.SendRequest{
		ThreadID:        chi.URLParam(r, "id"),
		AuthorID:        claims.UserID,
		AuthorName:      claims.DisplayName,
		AuthorKind:      domain.AuthorHuman,
		Body:            req.Body,
		MessageID:       req.MessageID,
		ParentMessageID: req.ParentMessageID,
		Proposal:        req.Proposal,
		IssueID:         req.IssueID,
		IssueTitle:      req.IssueTitle,
		RestaurantName:  req.RestaurantName,
		ParticipantIDs:  req.ParticipantIDs,
	}
	if req.CreatedAt != nil {
		sendReq.CreatedAt = *req.CreatedAt
	}
	if req.Attachment != nil {
		data, err := base64.StdEncoding.DecodeString(req.Attachment.Base64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid attachment encoding")
			return
		}
		sendReq.Attachment = &message.Attachment{Data: data, ContentType: req.Attachment.ContentType}
	}

	msg, err := h.svc.Send(r.Context(), sendReq)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.svc.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

type reactionRequest struct {
	Symbol string `json:"symbol"`
}

func (h *MessageHandler) AddReaction(w http.ResponseWriter, r *http.Request) {
	h.mutateReaction(w, r, h.svc.AddReaction)
}

func (h *MessageHandler) RemoveReaction(w http.ResponseWriter, r *http.Request) {
	h.mutateReaction(w, r, h.svc.RemoveReaction)
}

func (h *MessageHandler) mutateReaction(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, threadID, messageID, symbol, userID string) (*domain.Message, error)) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req reactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	msg, err := op(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "mid"), req.Symbol, claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}
