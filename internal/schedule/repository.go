package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound = errors.New("doctor not found")
	ErrSlotNotFound   = errors.New("slot not found")
)

// SlotRepository contains all DB interactions needed by the engine and
// the schedule handlers.
type SlotRepository interface {
	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)

	// CreateSlotIfAbsent inserts the slot unless one already exists for
	// the same (doctor, start). Returns false when the slot was skipped.
	CreateSlotIfAbsent(ctx context.Context, s *Slot) (bool, error)

	// ListAvailable returns unbooked slots for a doctor starting at or
	// after the given time, in chronological order.
	ListAvailable(ctx context.Context, doctorID uuid.UUID, from time.Time) ([]Slot, error)

	// ListByDoctorWindow returns all of a doctor's slots inside a window,
	// booked or not, in chronological order.
	ListByDoctorWindow(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Slot, error)
}

// DoctorRepository serves the patient-facing doctor directory.
type DoctorRepository interface {
	GetDoctorByID(ctx context.Context, userID uuid.UUID) (*Doctor, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)
	ListDoctorsBySpecialty(ctx context.Context, specialty string) ([]Doctor, error)
}
