package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/carebridge/carebridge/internal/redis"
)

// Notifier is the fire-and-forget notification sink. Implementations
// must never block the caller on delivery.
type Notifier interface {
	Notify(userID uuid.UUID, message, link string)
}

// Coordinator converts an available slot into a confirmed appointment.
// The per-slot lock narrows the contention window; correctness rests on
// the repository's conditional update, so a lost or expired lock can
// never produce a double booking.
type Coordinator struct {
	repo     Repository
	locker   redisclient.Locker
	notifier Notifier
	log      zerolog.Logger
}

func NewCoordinator(repo Repository, locker redisclient.Locker, notifier Notifier, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		log:      log,
	}
}

// Book reserves the slot for the patient. Exactly one concurrent caller
// racing for the same slot succeeds; the rest observe ErrSlotUnavailable
// or ErrSlotContended, both retryable with a different slot.
func (c *Coordinator) Book(ctx context.Context, slotID, patientID uuid.UUID, reason string) (*Appointment, error) {
	patient, err := c.repo.GetPatientByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	var created *Appointment

	err = c.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		appt, err := c.repo.CreateAppointmentForSlot(lockCtx, slotID, patientID, reason)
		if err != nil {
			return err
		}
		created = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotContended
		}
		if errors.Is(err, ErrSlotUnavailable) {
			// Expected contention outcome, not a fault.
			c.log.Debug().Str("slot_id", slotID.String()).Msg("slot unavailable")
			return nil, err
		}
		return nil, fmt.Errorf("book slot: %w", err)
	}

	c.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("slot_id", slotID.String()).
		Str("patient_id", patientID.String()).
		Msg("appointment booked")

	// Fire-and-forget: booking succeeds even if delivery fails.
	if detail, err := c.repo.GetAppointmentDetail(ctx, created.ID); err == nil && detail.Doctor != nil {
		c.notifier.Notify(detail.Doctor.UserID,
			fmt.Sprintf("Patient %s has booked an appointment with you.", patient.Name),
			fmt.Sprintf("/appointments/%s", created.ID))
	}

	return created, nil
}

// Complete records consultation notes and closes out the appointment.
// Only the doctor owning the slot may complete it, and only once.
func (c *Coordinator) Complete(ctx context.Context, appointmentID, doctorID uuid.UUID, notes string) (*Appointment, error) {
	appt, err := c.repo.CompleteAppointment(ctx, appointmentID, doctorID, notes)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("complete appointment: %w", err)
	}

	c.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("doctor_id", doctorID.String()).
		Msg("appointment completed")

	return appt, nil
}

// SendReminders claims appointments starting inside the horizon and
// notifies both participants. Intended to be called periodically by the
// reminder worker.
func (c *Coordinator) SendReminders(ctx context.Context, horizon time.Duration) (int, error) {
	now := time.Now()
	due, err := c.repo.ClaimReminders(ctx, now, now.Add(horizon))
	if err != nil {
		return 0, fmt.Errorf("claim reminders: %w", err)
	}

	for _, d := range due {
		link := fmt.Sprintf("/appointments/%s", d.ID)
		when := d.Slot.StartTime.Format("15:04")
		if d.Doctor != nil {
			c.notifier.Notify(d.Doctor.UserID,
				fmt.Sprintf("Upcoming consultation at %s.", when), link)
		}
		c.notifier.Notify(d.PatientID,
			fmt.Sprintf("Your appointment starts at %s.", when), link)
	}

	return len(due), nil
}
