package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebridge/carebridge/internal/booking"
	"github.com/carebridge/carebridge/internal/consult"
	"github.com/carebridge/carebridge/internal/identity"
	"github.com/carebridge/carebridge/internal/metrics"
	"github.com/carebridge/carebridge/internal/schedule"
)

// Handlers bundles the request handlers and their dependencies. The
// router wires these onto routes behind the auth middleware.
type Handlers struct {
	Users       identity.Repository
	Tokens      *identity.TokenManager
	Engine      *schedule.Engine
	Slots       schedule.SlotRepository
	Doctors     schedule.DoctorRepository
	Coordinator *booking.Coordinator
	Bookings    booking.Repository
	Messages    consult.MessageRepository
	Channel     *consult.Channel
	Metrics     *metrics.Collector
	Log         zerolog.Logger
}

// -- Auth --

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials", "email and password are required")
		return
	}

	ident, err := h.Users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrBadCredentials) {
			writeError(w, http.StatusUnauthorized, "bad_credentials", err.Error())
			return
		}
		h.internalError(w, r, err)
		return
	}

	token, expiresAt, err := h.Tokens.Issue(ident)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    ident.UserID,
		Name:      ident.Name,
		Role:      string(ident.Role),
	})
}

// -- Doctors and schedule --

func (h *Handlers) ListDoctors(w http.ResponseWriter, r *http.Request) {
	var (
		doctors []schedule.Doctor
		err     error
	)
	if specialty := r.URL.Query().Get("specialty"); specialty != "" {
		doctors, err = h.Doctors.ListDoctorsBySpecialty(r.Context(), specialty)
	} else {
		doctors, err = h.Doctors.ListDoctors(r.Context())
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	resp := make([]DoctorResponse, 0, len(doctors))
	for _, d := range doctors {
		resp = append(resp, toDoctorResponse(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) ListDoctorSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
		return
	}

	if _, err := h.Doctors.GetDoctorByID(r.Context(), doctorID); err != nil {
		if errors.Is(err, schedule.ErrDoctorNotFound) {
			writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
			return
		}
		h.internalError(w, r, err)
		return
	}

	slots, err := h.Slots.ListAvailable(r.Context(), doctorID, time.Now())
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	resp := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		resp = append(resp, toSlotResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) GenerateSchedule(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFrom(r.Context())

	var req GenerateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	windowStart, windowEnd, err := req.Window()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_window_format", "date must be YYYY-MM-DD and times HH:MM")
		return
	}

	slots, err := h.Engine.GenerateSlots(r.Context(), ident.UserID, windowStart, windowEnd, h.Engine.SlotDuration())
	if err != nil {
		if errors.Is(err, schedule.ErrInvalidWindow) {
			writeError(w, http.StatusUnprocessableEntity, "invalid_window", err.Error())
			return
		}
		h.internalError(w, r, err)
		return
	}

	h.Metrics.SlotsGeneratedTotal.Add(float64(len(slots)))

	resp := GenerateScheduleResponse{Created: len(slots)}
	resp.Slots = make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		resp.Slots = append(resp.Slots, toSlotResponse(s))
	}
	writeJSON(w, http.StatusCreated, resp)
}

// -- Appointments --

func (h *Handlers) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFrom(r.Context())

	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	slotID, err := uuid.Parse(req.SlotID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
		return
	}

	appt, err := h.Coordinator.Book(r.Context(), slotID, ident.UserID, req.Reason)
	if err != nil {
		h.handleBookError(w, r, err)
		return
	}

	h.Metrics.BookingsTotal.WithLabelValues(metrics.OutcomeBooked).Inc()
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *Handlers) handleBookError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		h.Metrics.BookingsTotal.WithLabelValues(metrics.OutcomeConflict).Inc()
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, booking.ErrSlotContended):
		h.Metrics.BookingsTotal.WithLabelValues(metrics.OutcomeContended).Inc()
		writeError(w, http.StatusConflict, "slot_being_booked", err.Error())
	default:
		h.Metrics.BookingsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		h.internalError(w, r, err)
	}
}

func (h *Handlers) ListAppointments(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFrom(r.Context())

	var (
		details []booking.AppointmentDetail
		err     error
	)
	switch ident.Role {
	case identity.RolePatient:
		details, err = h.Bookings.ListByPatient(r.Context(), ident.UserID)
	case identity.RoleDoctor:
		details, err = h.Bookings.ListByDoctor(r.Context(), ident.UserID, time.Now().Add(-24*time.Hour))
	default:
		writeError(w, http.StatusForbidden, "forbidden", "role not permitted for this operation")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	resp := make([]AppointmentResponse, 0, len(details))
	for i := range details {
		resp = append(resp, toAppointmentDetailResponse(&details[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) GetAppointment(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	detail, err := h.Bookings.GetAppointmentDetail(r.Context(), id)
	if err != nil {
		if errors.Is(err, booking.ErrAppointmentNotFound) {
			writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
			return
		}
		h.internalError(w, r, err)
		return
	}

	if !h.isParticipant(ident, detail) {
		// Hidden rather than forbidden; do not reveal the appointment
		// exists.
		writeError(w, http.StatusNotFound, "appointment_not_found", booking.ErrAppointmentNotFound.Error())
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentDetailResponse(detail))
}

func (h *Handlers) isParticipant(ident identity.Identity, detail *booking.AppointmentDetail) bool {
	switch ident.Role {
	case identity.RolePatient:
		return ident.UserID == detail.PatientID
	case identity.RoleDoctor:
		return detail.Slot != nil && ident.UserID == detail.Slot.DoctorID
	case identity.RoleAdmin:
		return true
	}
	return false
}

func (h *Handlers) CompleteAppointment(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	var req CompleteAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	appt, err := h.Coordinator.Complete(r.Context(), id, ident.UserID, req.Notes)
	if err != nil {
		if errors.Is(err, booking.ErrAppointmentNotFound) {
			writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
			return
		}
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

// -- Consultation --

func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	detail, err := h.Bookings.GetAppointmentDetail(r.Context(), id)
	if err != nil {
		if errors.Is(err, booking.ErrAppointmentNotFound) {
			writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
			return
		}
		h.internalError(w, r, err)
		return
	}
	if !h.isParticipant(ident, detail) {
		writeError(w, http.StatusNotFound, "appointment_not_found", booking.ErrAppointmentNotFound.Error())
		return
	}

	messages, err := h.Messages.ListByAppointment(r.Context(), id)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	resp := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		resp = append(resp, toMessageResponse(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) ConsultChannel(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "appointment_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
		return
	}

	h.Channel.Serve(w, r, ident, id)
}

func (h *Handlers) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.Log.Error().Err(err).
		Str("request_id", GetRequestID(r.Context())).
		Str("path", r.URL.Path).
		Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
}
