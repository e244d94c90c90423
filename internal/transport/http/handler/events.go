package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tablemend/tablemend-api/internal/application/threadsync"
	"github.com/tablemend/tablemend-api/internal/transport/http/middleware"
)

// EventsHandler exposes thread subscriptions as Server-Sent Events.
type EventsHandler struct {
	hub *threadsync.Hub
}

func NewEventsHandler(hub *threadsync.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Stream opens a live subscription: first a snapshot event carrying the full
// ordered message set, then one event per change until the client goes away.
// The deferred Close releases the subscription on every exit path, including
// write errors mid-stream.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	threadID := chi.URLParam(r, "id")
	sub, err := h.hub.Subscribe(r.Context(), threadID, claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeSSE(w, "snapshot", sub.Snapshot()); err != nil {
		return
	}
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-sub.Events():
			if !open {
				return
			}
			if err := writeSSE(w, string(ev.Type), ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
