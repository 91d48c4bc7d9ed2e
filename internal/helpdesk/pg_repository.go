package helpdesk

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

var _ Repository = (*PgRepository)(nil)

const requestColumns = `id, patient_id, specialty, subject, body, status, doctor_id, created_at, updated_at`

func scanRequest(row pgx.Row) (*HelpRequest, error) {
	var r HelpRequest

	err := row.Scan(
		&r.ID,
		&r.PatientID,
		&r.Specialty,
		&r.Subject,
		&r.Body,
		&r.Status,
		&r.DoctorID,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	return &r, nil
}

func collectRequests(rows pgx.Rows) ([]HelpRequest, error) {
	defer rows.Close()

	var result []HelpRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CreateRequest(ctx context.Context, req *HelpRequest) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO help_requests (id, patient_id, specialty, subject, body, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', now(), now())
		RETURNING created_at, updated_at
	`, req.ID, req.PatientID, req.Specialty, req.Subject, req.Body).Scan(&req.CreatedAt, &req.UpdatedAt)
}

func (r *PgRepository) GetRequestByID(ctx context.Context, id uuid.UUID) (*HelpRequest, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+requestColumns+` FROM help_requests WHERE id = $1
	`, id)
	return scanRequest(row)
}

func (r *PgRepository) ListPendingBySpecialty(ctx context.Context, specialty string) ([]HelpRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM help_requests
		WHERE status = 'pending' AND specialty = $1
		ORDER BY created_at
	`, specialty)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]HelpRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM help_requests
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]HelpRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM help_requests
		WHERE doctor_id = $1
		ORDER BY created_at DESC
	`, doctorID)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

// ClaimRequest is a conditional update; two doctors racing for the same
// pending request resolve to one claimant.
func (r *PgRepository) ClaimRequest(ctx context.Context, id, doctorID uuid.UUID) (*HelpRequest, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE help_requests
		SET status = 'in_progress',
		    doctor_id = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'pending'
		RETURNING `+requestColumns+`
	`, id, doctorID)

	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return nil, r.classifyClaimMiss(ctx, id)
		}
		return nil, err
	}

	return req, nil
}

// classifyClaimMiss distinguishes a lost race from a request that never
// existed.
func (r *PgRepository) classifyClaimMiss(ctx context.Context, id uuid.UUID) error {
	if _, err := r.GetRequestByID(ctx, id); err != nil {
		return err
	}
	return ErrRequestTaken
}

func (r *PgRepository) AnswerRequest(ctx context.Context, id, doctorID uuid.UUID, p *Prescription) (*HelpRequest, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE help_requests
		SET status = 'answered',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'in_progress'
		  AND doctor_id = $2
		RETURNING `+requestColumns+`
	`, id, doctorID)

	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return nil, r.classifyAnswerMiss(ctx, id, doctorID)
		}
		return nil, err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO prescriptions (id, help_request_id, doctor_id, advice, medication, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING created_at
	`, p.ID, p.HelpRequestID, p.DoctorID, p.Advice, p.Medication).Scan(&p.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return req, nil
}

func (r *PgRepository) classifyAnswerMiss(ctx context.Context, id, doctorID uuid.UUID) error {
	req, err := r.GetRequestByID(ctx, id)
	if err != nil {
		return err
	}
	switch {
	case req.Status == StatusAnswered:
		return ErrAlreadyAnswered
	case req.DoctorID == nil || *req.DoctorID != doctorID:
		return ErrNotClaimant
	default:
		return ErrRequestTaken
	}
}

func (r *PgRepository) CloseRequest(ctx context.Context, id, patientID uuid.UUID) (*HelpRequest, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE help_requests
		SET status = 'closed',
		    updated_at = now()
		WHERE id = $1
		  AND patient_id = $2
		  AND status <> 'closed'
		RETURNING `+requestColumns+`
	`, id, patientID)
	return scanRequest(row)
}

func (r *PgRepository) GetPrescription(ctx context.Context, helpRequestID uuid.UUID) (*Prescription, error) {
	var p Prescription

	err := r.pool.QueryRow(ctx, `
		SELECT id, help_request_id, doctor_id, advice, medication, created_at
		FROM prescriptions
		WHERE help_request_id = $1
	`, helpRequestID).Scan(&p.ID, &p.HelpRequestID, &p.DoctorID, &p.Advice, &p.Medication, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	return &p, nil
}
