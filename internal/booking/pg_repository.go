package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebridge/carebridge/internal/schedule"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

var _ Repository = (*PgRepository)(nil)

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.UserID,
		&p.Name,
		&p.Age,
		&p.Gender,
		&p.Contact,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.SlotID,
		&a.Reason,
		&a.Status,
		&a.Notes,
		&a.ReminderSent,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

const detailQuery = `
	SELECT a.id, a.patient_id, a.slot_id, a.reason, a.status, a.notes, a.reminder_sent, a.created_at,
	       s.id, s.doctor_id, s.start_time, s.end_time, s.booked, s.created_at,
	       d.user_id, du.name, d.specialty, d.years_experience,
	       p.user_id, pu.name, p.age, p.gender, p.contact
	FROM appointments a
	JOIN slots s     ON s.id = a.slot_id
	JOIN doctors d   ON d.user_id = s.doctor_id
	JOIN users du    ON du.id = d.user_id
	JOIN patients p  ON p.user_id = a.patient_id
	JOIN users pu    ON pu.id = p.user_id
`

func scanDetail(row pgx.Row) (*AppointmentDetail, error) {
	var (
		detail AppointmentDetail
		slot   schedule.Slot
		doctor schedule.Doctor
		pat    Patient
	)

	err := row.Scan(
		&detail.ID, &detail.PatientID, &detail.SlotID, &detail.Reason,
		&detail.Status, &detail.Notes, &detail.ReminderSent, &detail.CreatedAt,
		&slot.ID, &slot.DoctorID, &slot.StartTime, &slot.EndTime, &slot.Booked, &slot.CreatedAt,
		&doctor.UserID, &doctor.Name, &doctor.Specialty, &doctor.YearsExperience,
		&pat.UserID, &pat.Name, &pat.Age, &pat.Gender, &pat.Contact,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	detail.Slot = &slot
	detail.Doctor = &doctor
	detail.Patient = &pat
	return &detail, nil
}

func collectDetails(rows pgx.Rows) ([]AppointmentDetail, error) {
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT p.user_id, u.name, p.age, p.gender, p.contact
		FROM patients p
		JOIN users u ON u.id = p.user_id
		WHERE p.user_id = $1
	`, id)
	return scanPatient(row)
}

// CreateAppointmentForSlot is the booking critical section. The slot
// flip is a conditional update; when it claims zero rows the slot was
// missing or already booked and the transaction writes nothing.
func (r *PgRepository) CreateAppointmentForSlot(ctx context.Context, slotID, patientID uuid.UUID, reason string) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE slots
		SET booked = TRUE
		WHERE id = $1
		  AND booked = FALSE
	`, slotID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrSlotUnavailable
	}

	id := uuid.New()
	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, slot_id, reason, status, reminder_sent, created_at)
		VALUES ($1, $2, $3, $4, 'booked', FALSE, now())
		RETURNING id, patient_id, slot_id, reason, status, notes, reminder_sent, created_at
	`, id, patientID, slotID, reason)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return appt, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, patient_id, slot_id, reason, status, notes, reminder_sent, created_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	row := r.pool.QueryRow(ctx, detailQuery+` WHERE a.id = $1`, id)
	return scanDetail(row)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, detailQuery+`
		WHERE a.patient_id = $1
		ORDER BY s.start_time DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from time.Time) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, detailQuery+`
		WHERE s.doctor_id = $1
		  AND s.start_time >= $2
		  AND a.status = 'booked'
		ORDER BY s.start_time
	`, doctorID, from)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

func (r *PgRepository) CompleteAppointment(ctx context.Context, id, doctorID uuid.UUID, notes string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments a
		SET status = 'completed',
		    notes = $3
		FROM slots s
		WHERE a.id = $1
		  AND a.slot_id = s.id
		  AND s.doctor_id = $2
		  AND a.status = 'booked'
		RETURNING a.id, a.patient_id, a.slot_id, a.reason, a.status, a.notes, a.reminder_sent, a.created_at
	`, id, doctorID, notes)
	return scanAppointment(row)
}

func (r *PgRepository) ClaimReminders(ctx context.Context, from, to time.Time) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, `
		WITH claimed AS (
			UPDATE appointments a
			SET reminder_sent = TRUE
			FROM slots s
			WHERE a.slot_id = s.id
			  AND a.status = 'booked'
			  AND a.reminder_sent = FALSE
			  AND s.start_time >= $1
			  AND s.start_time < $2
			RETURNING a.id
		)
		`+detailQuery+`
		WHERE a.id IN (SELECT id FROM claimed)
		ORDER BY s.start_time
	`, from, to)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}
