package helpdesk

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrRequestNotFound = errors.New("help request not found")

	// ErrRequestTaken is returned when the claim loses the race, the
	// request was already answered, or it was closed.
	ErrRequestTaken = errors.New("help request already claimed")

	ErrAlreadyAnswered = errors.New("help request already answered")

	// ErrNotClaimant rejects answers and closes from a doctor other than
	// the one holding the claim.
	ErrNotClaimant = errors.New("help request claimed by another doctor")
)

type Repository interface {
	CreateRequest(ctx context.Context, req *HelpRequest) error
	GetRequestByID(ctx context.Context, id uuid.UUID) (*HelpRequest, error)
	ListPendingBySpecialty(ctx context.Context, specialty string) ([]HelpRequest, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]HelpRequest, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]HelpRequest, error)

	// ClaimRequest moves pending -> in_progress and records the doctor,
	// conditional on the current status. Zero rows affected means
	// ErrRequestTaken.
	ClaimRequest(ctx context.Context, id, doctorID uuid.UUID) (*HelpRequest, error)

	// AnswerRequest writes the prescription and moves the request to
	// answered in one transaction, conditional on the claiming doctor.
	AnswerRequest(ctx context.Context, id, doctorID uuid.UUID, p *Prescription) (*HelpRequest, error)

	CloseRequest(ctx context.Context, id, patientID uuid.UUID) (*HelpRequest, error)
	GetPrescription(ctx context.Context, helpRequestID uuid.UUID) (*Prescription, error)
}
