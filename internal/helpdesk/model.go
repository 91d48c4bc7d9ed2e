package helpdesk

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusInProgress RequestStatus = "in_progress"
	StatusAnswered   RequestStatus = "answered"
	StatusClosed     RequestStatus = "closed"
)

// HelpRequest is a patient question routed to doctors of a specialty.
// It moves pending -> in_progress when a doctor claims it, and
// in_progress -> answered when that doctor issues a prescription.
type HelpRequest struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	Specialty string
	Subject   string
	Body      string
	Status    RequestStatus
	DoctorID  *uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Prescription is the doctor's written answer to a help request. At
// most one exists per request.
type Prescription struct {
	ID            uuid.UUID
	HelpRequestID uuid.UUID
	DoctorID      uuid.UUID
	Advice        string
	Medication    *string
	CreatedAt     time.Time
}
