package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/facegate/internal/app"
	"github.com/ayusman/facegate/internal/store"
)

// DefaultEventLimit is the number of events returned without a limit.
const DefaultEventLimit = 50

// EventsHandler serves the recognition history and the pipeline switch.
type EventsHandler struct {
	app *app.App
}

// NewEventsHandler creates a new EventsHandler for a.
func NewEventsHandler(a *app.App) *EventsHandler {
	return &EventsHandler{app: a}
}

type listEventsResponse struct {
	Events []*store.Event `json:"events"`
}

type autoRecognizeRequest struct {
	Enabled *bool `json:"enabled"`
}

type autoRecognizeResponse struct {
	Enabled bool `json:"enabled"`
	Running bool `json:"running"`
}

// List handles GET /api/events?limit=N, newest first.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := DefaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	events, err := h.app.Events(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}
	if events == nil {
		events = []*store.Event{}
	}
	writeJSON(w, http.StatusOK, listEventsResponse{Events: events})
}

// Last handles GET /api/last and returns the latest result.
func (h *EventsHandler) Last(w http.ResponseWriter, r *http.Request) {
	last := h.app.Last()
	if last.Kind == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, last)
}

// GetAutoRecognize handles GET /api/auto.
func (h *EventsHandler) GetAutoRecognize(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.autoState())
}

// SetAutoRecognize handles PUT /api/auto with {"enabled": bool}.
func (h *EventsHandler) SetAutoRecognize(w http.ResponseWriter, r *http.Request) {
	var req autoRecognizeRequest
	if err := decodeJSON(r, &req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.app.SetAutoRecognize(*req.Enabled)
	writeJSON(w, http.StatusOK, h.autoState())
}

func (h *EventsHandler) autoState() autoRecognizeResponse {
	running := false
	if g := h.app.Grabber(); g != nil {
		running = g.Running()
	}
	return autoRecognizeResponse{Enabled: h.app.AutoRecognize(), Running: running}
}
