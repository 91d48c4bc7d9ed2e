package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotUnavailable covers both a slot that never existed and one
	// that is already booked; callers cannot and must not distinguish.
	ErrSlotUnavailable = errors.New("slot is not available")

	// ErrSlotContended is the retryable outcome when the per-slot lock
	// is held by another booking attempt.
	ErrSlotContended = errors.New("slot is currently being booked, please retry")
)

// Repository contains all DB interactions needed by the coordinator.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// CreateAppointmentForSlot atomically marks the slot booked and
	// inserts the appointment in one transaction. The slot update is
	// conditional on booked = FALSE; zero rows affected means
	// ErrSlotUnavailable and nothing is written.
	CreateAppointmentForSlot(ctx context.Context, slotID, patientID uuid.UUID, reason string) (*Appointment, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]AppointmentDetail, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, from time.Time) ([]AppointmentDetail, error)

	// CompleteAppointment records notes and moves booked -> completed,
	// conditional on the current status and on the doctor owning the
	// slot. Zero rows affected means ErrAppointmentNotFound.
	CompleteAppointment(ctx context.Context, id, doctorID uuid.UUID, notes string) (*Appointment, error)

	// Reminder worker. ClaimReminders flips reminder_sent FALSE -> TRUE
	// for appointments starting inside the window and returns the
	// claimed rows, so each reminder fires once across worker runs.
	ClaimReminders(ctx context.Context, from, to time.Time) ([]AppointmentDetail, error)
}
