package schedule

import (
	"time"

	"github.com/google/uuid"
)

// Doctor is the provider side of scheduling. Specialty is set at
// registration and treated as immutable for matching.
type Doctor struct {
	UserID          uuid.UUID
	Name            string
	Specialty       string
	YearsExperience int
}

// Slot is a bookable half-open interval [StartTime, EndTime) owned by
// one doctor. Booked flips to true exactly once, when the booking
// coordinator claims the slot; slots are never deleted in normal flow.
type Slot struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	Booked    bool
	CreatedAt time.Time
}
