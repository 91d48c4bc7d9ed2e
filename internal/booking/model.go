package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/carebridge/internal/schedule"
)

type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "booked"
	StatusCompleted AppointmentStatus = "completed"
)

// Patient is the requester side of booking.
type Patient struct {
	UserID  uuid.UUID
	Name    string
	Age     *int
	Gender  *string
	Contact *string
}

// Appointment binds one patient to one slot. It exists if and only if
// its slot is booked; the conditional slot update and this row are
// written in one transaction. Status moves booked -> completed when the
// doctor records consultation notes, and never reverts.
type Appointment struct {
	ID           uuid.UUID
	PatientID    uuid.UUID
	SlotID       uuid.UUID
	Reason       string
	Status       AppointmentStatus
	Notes        *string
	ReminderSent bool
	CreatedAt    time.Time
}

// AppointmentDetail is an appointment hydrated with its slot and the
// two participants.
type AppointmentDetail struct {
	Appointment
	Slot    *schedule.Slot
	Doctor  *schedule.Doctor
	Patient *Patient
}
