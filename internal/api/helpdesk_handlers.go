package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carebridge/carebridge/internal/helpdesk"
	"github.com/carebridge/carebridge/internal/identity"
	"github.com/carebridge/carebridge/internal/notify"
)

// HelpdeskHandlers serves the asynchronous patient-question flow and
// the notification inbox.
type HelpdeskHandlers struct {
	Service       *helpdesk.Service
	Notifications notify.Repository
	Handlers      *Handlers
}

func (h *HelpdeskHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFrom(r.Context())

	var req SubmitHelpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	created, err := h.Service.Submit(r.Context(), ident.UserID, req.Specialty, req.Subject, req.Body)
	if err != nil {
		if errors.Is(err, helpdesk.ErrInvalidRequest) {
			writeError(w, http.StatusUnprocessableEntity, "invalid_help_request", err.Error())
			return
		}
		h.Handlers.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toHelpRequestResponse(*created))
}

func (h *HelpdeskHandlers) List(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFrom(r.Context())

	var (
		requests []helpdesk.HelpRequest
		err      error
	)
	switch ident.Role {
	case identity.RolePatient:
		requests, err = h.Service.ByPatient(r.Context(), ident.UserID)
	case identity.RoleDoctor:
		if specialty := r.URL.Query().Get("specialty"); specialty != "" {
			requests, err = h.Service.PendingBySpecialty(r.Context(), specialty)
		} else {
			requests, err = h.Service.ByDoctor(r.Context(), ident.UserID)
		}
	default:
		writeError(w, http.StatusForbidden, "forbidden", "role not permitted for this operation")
		return
	}
	if err != nil {
		h.Handlers.internalError(w, r, err)
		return
	}

	resp := make([]HelpRequestResponse, 0, len(requests))
	for _, req := range requests {
		resp = append(resp, toHelpRequestResponse(req))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HelpdeskHandlers) Claim(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFrom(r.Context())

	id, ok := parseRequestID(w, r)
	if !ok {
		return
	}

	claimed, err := h.Service.Claim(r.Context(), id, ident.UserID)
	if err != nil {
		h.handleHelpdeskError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toHelpRequestResponse(*claimed))
}

func (h *HelpdeskHandlers) Answer(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFrom(r.Context())

	id, ok := parseRequestID(w, r)
	if !ok {
		return
	}

	var req AnswerHelpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	p, err := h.Service.Answer(r.Context(), id, ident.UserID, req.Advice, req.Medication)
	if err != nil {
		if errors.Is(err, helpdesk.ErrInvalidRequest) {
			writeError(w, http.StatusUnprocessableEntity, "invalid_answer", err.Error())
			return
		}
		h.handleHelpdeskError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, PrescriptionResponse{
		ID:            p.ID,
		HelpRequestID: p.HelpRequestID,
		DoctorID:      p.DoctorID,
		Advice:        p.Advice,
		Medication:    p.Medication,
		CreatedAt:     p.CreatedAt,
	})
}

func (h *HelpdeskHandlers) Close(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFrom(r.Context())

	id, ok := parseRequestID(w, r)
	if !ok {
		return
	}

	closed, err := h.Service.Close(r.Context(), id, ident.UserID)
	if err != nil {
		h.handleHelpdeskError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toHelpRequestResponse(*closed))
}

func (h *HelpdeskHandlers) GetPrescription(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFrom(r.Context())

	id, ok := parseRequestID(w, r)
	if !ok {
		return
	}

	req, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.handleHelpdeskError(w, r, err)
		return
	}

	allowed := (ident.Role == identity.RolePatient && ident.UserID == req.PatientID) ||
		(ident.Role == identity.RoleDoctor && req.DoctorID != nil && ident.UserID == *req.DoctorID)
	if !allowed {
		writeError(w, http.StatusNotFound, "help_request_not_found", helpdesk.ErrRequestNotFound.Error())
		return
	}

	p, err := h.Service.Prescription(r.Context(), id)
	if err != nil {
		h.handleHelpdeskError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, PrescriptionResponse{
		ID:            p.ID,
		HelpRequestID: p.HelpRequestID,
		DoctorID:      p.DoctorID,
		Advice:        p.Advice,
		Medication:    p.Medication,
		CreatedAt:     p.CreatedAt,
	})
}

func (h *HelpdeskHandlers) handleHelpdeskError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, helpdesk.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, "help_request_not_found", err.Error())
	case errors.Is(err, helpdesk.ErrRequestTaken):
		writeError(w, http.StatusConflict, "help_request_taken", err.Error())
	case errors.Is(err, helpdesk.ErrAlreadyAnswered):
		writeError(w, http.StatusConflict, "help_request_answered", err.Error())
	case errors.Is(err, helpdesk.ErrNotClaimant):
		writeError(w, http.StatusForbidden, "not_claimant", err.Error())
	default:
		h.Handlers.internalError(w, r, err)
	}
}

func parseRequestID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// -- Notifications --

func (h *HelpdeskHandlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFrom(r.Context())

	unreadOnly := r.URL.Query().Get("unread") == "true"
	notifications, err := h.Notifications.ListByUser(r.Context(), ident.UserID, unreadOnly)
	if err != nil {
		h.Handlers.internalError(w, r, err)
		return
	}

	resp := make([]NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		resp = append(resp, toNotificationResponse(n))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HelpdeskHandlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFrom(r.Context())

	id, ok := parseRequestID(w, r)
	if !ok {
		return
	}

	if err := h.Notifications.MarkRead(r.Context(), id, ident.UserID); err != nil {
		if errors.Is(err, notify.ErrNotificationNotFound) {
			writeError(w, http.StatusNotFound, "notification_not_found", err.Error())
			return
		}
		h.Handlers.internalError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *HelpdeskHandlers) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFrom(r.Context())

	updated, err := h.Notifications.MarkAllRead(r.Context(), ident.UserID)
	if err != nil {
		h.Handlers.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}
