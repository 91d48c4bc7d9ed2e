package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/carebridge/internal/booking"
	"github.com/carebridge/carebridge/internal/consult"
	"github.com/carebridge/carebridge/internal/helpdesk"
	"github.com/carebridge/carebridge/internal/notify"
	"github.com/carebridge/carebridge/internal/schedule"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
}

type GenerateScheduleRequest struct {
	Date      string `json:"date"`       // 2006-01-02
	StartTime string `json:"start_time"` // 15:04
	EndTime   string `json:"end_time"`   // 15:04
}

// Window combines the date with the two clock times. Times are taken
// as UTC; the server clock is authoritative throughout.
func (r GenerateScheduleRequest) Window() (start, end time.Time, err error) {
	day, err := time.Parse("2006-01-02", r.Date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	from, err := time.Parse("15:04", r.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := time.Parse("15:04", r.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	start = day.Add(time.Duration(from.Hour())*time.Hour + time.Duration(from.Minute())*time.Minute)
	end = day.Add(time.Duration(to.Hour())*time.Hour + time.Duration(to.Minute())*time.Minute)
	return start, end, nil
}

type GenerateScheduleResponse struct {
	Created int            `json:"created"`
	Slots   []SlotResponse `json:"slots"`
}

type SlotResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Booked    bool      `json:"booked"`
}

func toSlotResponse(s schedule.Slot) SlotResponse {
	return SlotResponse{
		ID:        s.ID,
		DoctorID:  s.DoctorID,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Booked:    s.Booked,
	}
}

type DoctorResponse struct {
	UserID          uuid.UUID `json:"user_id"`
	Name            string    `json:"name"`
	Specialty       string    `json:"specialty"`
	YearsExperience int       `json:"years_experience"`
}

func toDoctorResponse(d schedule.Doctor) DoctorResponse {
	return DoctorResponse{
		UserID:          d.UserID,
		Name:            d.Name,
		Specialty:       d.Specialty,
		YearsExperience: d.YearsExperience,
	}
}

type CreateAppointmentRequest struct {
	SlotID string `json:"slot_id"`
	Reason string `json:"reason"`
}

type AppointmentResponse struct {
	ID          uuid.UUID       `json:"id"`
	SlotID      uuid.UUID       `json:"slot_id"`
	PatientID   uuid.UUID       `json:"patient_id"`
	Reason      string          `json:"reason"`
	Status      string          `json:"status"`
	Notes       *string         `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	Slot        *SlotResponse   `json:"slot,omitempty"`
	Doctor      *DoctorResponse `json:"doctor,omitempty"`
	PatientName string          `json:"patient_name,omitempty"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		SlotID:    a.SlotID,
		PatientID: a.PatientID,
		Reason:    a.Reason,
		Status:    string(a.Status),
		Notes:     a.Notes,
		CreatedAt: a.CreatedAt,
	}
}

func toAppointmentDetailResponse(d *booking.AppointmentDetail) AppointmentResponse {
	resp := toAppointmentResponse(&d.Appointment)
	if d.Slot != nil {
		slot := toSlotResponse(*d.Slot)
		resp.Slot = &slot
	}
	if d.Doctor != nil {
		doctor := toDoctorResponse(*d.Doctor)
		resp.Doctor = &doctor
	}
	if d.Patient != nil {
		resp.PatientName = d.Patient.Name
	}
	return resp
}

type CompleteAppointmentRequest struct {
	Notes string `json:"notes"`
}

type MessageResponse struct {
	ID        uuid.UUID `json:"id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func toMessageResponse(m consult.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		SenderID:  m.SenderID,
		Username:  m.SenderName,
		Message:   m.Body,
		CreatedAt: m.CreatedAt,
	}
}

type SubmitHelpRequest struct {
	Specialty string `json:"specialty"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

type AnswerHelpRequest struct {
	Advice     string  `json:"advice"`
	Medication *string `json:"medication,omitempty"`
}

type HelpRequestResponse struct {
	ID        uuid.UUID  `json:"id"`
	PatientID uuid.UUID  `json:"patient_id"`
	Specialty string     `json:"specialty"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	Status    string     `json:"status"`
	DoctorID  *uuid.UUID `json:"doctor_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func toHelpRequestResponse(r helpdesk.HelpRequest) HelpRequestResponse {
	return HelpRequestResponse{
		ID:        r.ID,
		PatientID: r.PatientID,
		Specialty: r.Specialty,
		Subject:   r.Subject,
		Body:      r.Body,
		Status:    string(r.Status),
		DoctorID:  r.DoctorID,
		CreatedAt: r.CreatedAt,
	}
}

type PrescriptionResponse struct {
	ID            uuid.UUID `json:"id"`
	HelpRequestID uuid.UUID `json:"help_request_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	Advice        string    `json:"advice"`
	Medication    *string   `json:"medication,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type NotificationResponse struct {
	ID        uuid.UUID `json:"id"`
	Message   string    `json:"message"`
	Link      string    `json:"link"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

func toNotificationResponse(n notify.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Message:   n.Message,
		Link:      n.Link,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
