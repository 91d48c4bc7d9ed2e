package consult

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/carebridge/internal/booking"
	"github.com/carebridge/carebridge/internal/identity"
	"github.com/carebridge/carebridge/internal/schedule"
)

// DenyReason explains a refused channel attach. The websocket close
// frame carries the human-readable form; the code never leaks whether
// the appointment exists to non-participants.
type DenyReason string

const (
	ReasonNotFound       DenyReason = "appointment not found"
	ReasonNotParticipant DenyReason = "not a participant of this consultation"
	ReasonTooEarly       DenyReason = "consultation has not started yet"
	ReasonTooLate        DenyReason = "consultation window has ended"
)

// Decision is the result of one authorization check. Checks are
// evaluated fresh on every call; nothing is cached between attempts.
type Decision struct {
	Allowed bool
	Reason  DenyReason

	// Set when Allowed.
	Appointment *booking.Appointment
	Slot        *schedule.Slot
}

func deny(reason DenyReason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

type appointmentSource interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*booking.Appointment, error)
}

type slotSource interface {
	GetSlotByID(ctx context.Context, id uuid.UUID) (*schedule.Slot, error)
}

// Authorizer gates access to consultation channels. A caller is let in
// only when they are a participant of the appointment and the current
// time falls inside the slot, boundaries included.
type Authorizer struct {
	appointments appointmentSource
	slots        slotSource
}

func NewAuthorizer(appointments appointmentSource, slots slotSource) *Authorizer {
	return &Authorizer{appointments: appointments, slots: slots}
}

// Authorize decides whether ident may attach to the consultation for
// appointmentID at the instant now. Any storage failure denies; access
// is never granted on partial information.
func (a *Authorizer) Authorize(ctx context.Context, ident identity.Identity, appointmentID uuid.UUID, now time.Time) (Decision, error) {
	appt, err := a.appointments.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, booking.ErrAppointmentNotFound) {
			return deny(ReasonNotFound), nil
		}
		return deny(ReasonNotFound), fmt.Errorf("load appointment: %w", err)
	}

	slot, err := a.slots.GetSlotByID(ctx, appt.SlotID)
	if err != nil {
		if errors.Is(err, schedule.ErrSlotNotFound) {
			return deny(ReasonNotFound), nil
		}
		return deny(ReasonNotFound), fmt.Errorf("load slot: %w", err)
	}

	switch ident.Role {
	case identity.RolePatient:
		if ident.UserID != appt.PatientID {
			return deny(ReasonNotParticipant), nil
		}
	case identity.RoleDoctor:
		if ident.UserID != slot.DoctorID {
			return deny(ReasonNotParticipant), nil
		}
	default:
		return deny(ReasonNotParticipant), nil
	}

	if now.Before(slot.StartTime) {
		return deny(ReasonTooEarly), nil
	}
	if now.After(slot.EndTime) {
		return deny(ReasonTooLate), nil
	}

	return Decision{Allowed: true, Appointment: appt, Slot: slot}, nil
}
