// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gandalf-events/ledger/internal/model"
	"github.com/gandalf-events/ledger/internal/repository"
	"github.com/gandalf-events/ledger/internal/service"
)

// EventHandler holds the HTTP handlers for events and access levels.
type EventHandler struct {
	svc *service.EventService
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(svc *service.EventService) *EventHandler {
	return &EventHandler{svc: svc}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// respondError maps domain errors to HTTP statuses. Validation failures
// carry their field detail into the envelope.
func respondError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, model.ErrorResponse{
			Error:  "validation failed",
			Fields: verr.Fields,
		})
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, repository.ErrCapacityExceeded):
		writeError(w, http.StatusConflict, "access level is sold out")
	case errors.Is(err, repository.ErrDuplicateStudentNumber):
		writeError(w, http.StatusConflict, "student number already registered for this event")
	case errors.Is(err, repository.ErrTierInUse):
		writeError(w, http.StatusConflict, "access level still has registrations")
	case errors.Is(err, repository.ErrPaymentCodeExhausted):
		writeError(w, http.StatusInternalServerError, "could not allocate a payment code")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ─── Event handlers ───────────────────────────────────────────────────────────

// CreateEvent handles POST /events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.svc.CreateEvent(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListEvents(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// ─── Access level handlers ────────────────────────────────────────────────────

// CreateAccessLevel handles POST /events/{id}/access-levels
func (h *EventHandler) CreateAccessLevel(w http.ResponseWriter, r *http.Request) {
	var req model.CreateAccessLevelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	al, err := h.svc.CreateAccessLevel(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, al)
}

// ListAccessLevels handles GET /events/{id}/access-levels
func (h *EventHandler) ListAccessLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.svc.ListAccessLevels(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	if levels == nil {
		levels = []model.AccessLevel{}
	}
	writeJSON(w, http.StatusOK, levels)
}

// GetAccessLevel handles GET /events/{id}/access-levels/{alID}
func (h *EventHandler) GetAccessLevel(w http.ResponseWriter, r *http.Request) {
	al, err := h.svc.GetAccessLevel(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "alID"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, al)
}

// UpdateAccessLevel handles PATCH /events/{id}/access-levels/{alID}
func (h *EventHandler) UpdateAccessLevel(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateAccessLevelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	al, err := h.svc.UpdateAccessLevel(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "alID"), req)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, al)
}

// ToggleVisibility handles POST /events/{id}/access-levels/{alID}/toggle-visibility
func (h *EventHandler) ToggleVisibility(w http.ResponseWriter, r *http.Request) {
	al, err := h.svc.ToggleVisibility(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "alID"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, al)
}

// DeleteAccessLevel handles DELETE /events/{id}/access-levels/{alID}
func (h *EventHandler) DeleteAccessLevel(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteAccessLevel(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "alID")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
