package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gandalf-events/ledger/internal/audit"
	"github.com/gandalf-events/ledger/internal/model"
	"github.com/gandalf-events/ledger/internal/service"
)

// RegistrationHandler holds the HTTP handlers for the registration ledger.
type RegistrationHandler struct {
	svc *service.RegistrationService
}

// NewRegistrationHandler constructs a RegistrationHandler.
func NewRegistrationHandler(svc *service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{svc: svc}
}

// Register handles POST /events/{id}/registrations
// Creates a registration under the tier's capacity guard.
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.CreateRegistrationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, err := h.svc.Register(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

// ListRegistrations handles GET /events/{id}/registrations
// With ?paid=true only settled registrations are returned.
func (h *RegistrationHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	paidOnly := r.URL.Query().Get("paid") == "true"
	regs, err := h.svc.ListRegistrations(r.Context(), chi.URLParam(r, "id"), paidOnly)
	if err != nil {
		respondError(w, err)
		return
	}
	if regs == nil {
		regs = []model.Registration{}
	}
	writeJSON(w, http.StatusOK, regs)
}

// GetRegistration handles GET /registrations/{id}
func (h *RegistrationHandler) GetRegistration(w http.ResponseWriter, r *http.Request) {
	reg, err := h.svc.GetRegistration(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// UpdateRegistration handles PATCH /registrations/{id}
func (h *RegistrationHandler) UpdateRegistration(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateRegistrationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, err := h.svc.UpdateRegistration(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// DeleteRegistration handles DELETE /registrations/{id}
func (h *RegistrationHandler) DeleteRegistration(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteRegistration(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GenerateBarcode handles POST /registrations/{id}/barcode
// Idempotent; an existing barcode is returned unchanged.
func (h *RegistrationHandler) GenerateBarcode(w http.ResponseWriter, r *http.Request) {
	reg, err := h.svc.GenerateBarcode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// CheckIn handles POST /registrations/{id}/check-in
func (h *RegistrationHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	reg, err := h.svc.CheckIn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// Deliver handles POST /registrations/{id}/deliver
func (h *RegistrationHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	reg, err := h.svc.Deliver(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// MatchPayment handles POST /payments/match
// Resolves an imported bank statement line to the registration whose
// payment code it contains.
func (h *RegistrationHandler) MatchPayment(w http.ResponseWriter, r *http.Request) {
	var req model.MatchPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, err := h.svc.MatchPaymentFromText(r.Context(), req.Text)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// AuditHistory handles GET /registrations/{id}/audit?field=paid
func (h *RegistrationHandler) AuditHistory(w http.ResponseWriter, r *http.Request) {
	field := r.URL.Query().Get("field")
	entries, err := h.svc.AuditHistory(r.Context(), chi.URLParam(r, "id"), field)
	if err != nil {
		respondError(w, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
