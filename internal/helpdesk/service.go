package helpdesk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrInvalidRequest = errors.New("help request must have a specialty, subject and body")

// Notifier matches booking.Notifier; delivery must not block.
type Notifier interface {
	Notify(userID uuid.UUID, message, link string)
}

type Service struct {
	repo     Repository
	notifier Notifier
	log      zerolog.Logger
}

func NewService(repo Repository, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, log: log}
}

// Submit files a new help request in the pending state.
func (s *Service) Submit(ctx context.Context, patientID uuid.UUID, specialty, subject, body string) (*HelpRequest, error) {
	specialty = strings.TrimSpace(specialty)
	subject = strings.TrimSpace(subject)
	body = strings.TrimSpace(body)
	if specialty == "" || subject == "" || body == "" {
		return nil, ErrInvalidRequest
	}

	req := &HelpRequest{
		ID:        uuid.New(),
		PatientID: patientID,
		Specialty: specialty,
		Subject:   subject,
		Body:      body,
		Status:    StatusPending,
	}
	if err := s.repo.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("create help request: %w", err)
	}

	s.log.Info().
		Str("request_id", req.ID.String()).
		Str("specialty", req.Specialty).
		Msg("help request submitted")

	return req, nil
}

// Claim assigns the request to the doctor. Of several doctors racing
// for the same pending request, exactly one wins; the rest see
// ErrRequestTaken.
func (s *Service) Claim(ctx context.Context, requestID, doctorID uuid.UUID) (*HelpRequest, error) {
	req, err := s.repo.ClaimRequest(ctx, requestID, doctorID)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) || errors.Is(err, ErrRequestTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("claim help request: %w", err)
	}

	s.log.Info().
		Str("request_id", req.ID.String()).
		Str("doctor_id", doctorID.String()).
		Msg("help request claimed")

	return req, nil
}

// Answer records the prescription, marks the request answered and
// notifies the patient.
func (s *Service) Answer(ctx context.Context, requestID, doctorID uuid.UUID, advice string, medication *string) (*Prescription, error) {
	advice = strings.TrimSpace(advice)
	if advice == "" {
		return nil, ErrInvalidRequest
	}

	p := &Prescription{
		ID:            uuid.New(),
		HelpRequestID: requestID,
		DoctorID:      doctorID,
		Advice:        advice,
		Medication:    medication,
	}

	req, err := s.repo.AnswerRequest(ctx, requestID, doctorID, p)
	if err != nil {
		switch {
		case errors.Is(err, ErrRequestNotFound),
			errors.Is(err, ErrAlreadyAnswered),
			errors.Is(err, ErrNotClaimant),
			errors.Is(err, ErrRequestTaken):
			return nil, err
		}
		return nil, fmt.Errorf("answer help request: %w", err)
	}

	s.log.Info().
		Str("request_id", requestID.String()).
		Str("doctor_id", doctorID.String()).
		Msg("help request answered")

	s.notifier.Notify(req.PatientID,
		"A doctor has answered your help request.",
		fmt.Sprintf("/requests/%s", requestID))

	return p, nil
}

// Close lets the requesting patient retire their own request.
func (s *Service) Close(ctx context.Context, requestID, patientID uuid.UUID) (*HelpRequest, error) {
	req, err := s.repo.CloseRequest(ctx, requestID, patientID)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("close help request: %w", err)
	}
	return req, nil
}

func (s *Service) Get(ctx context.Context, requestID uuid.UUID) (*HelpRequest, error) {
	return s.repo.GetRequestByID(ctx, requestID)
}

func (s *Service) PendingBySpecialty(ctx context.Context, specialty string) ([]HelpRequest, error) {
	return s.repo.ListPendingBySpecialty(ctx, specialty)
}

func (s *Service) ByPatient(ctx context.Context, patientID uuid.UUID) ([]HelpRequest, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

func (s *Service) ByDoctor(ctx context.Context, doctorID uuid.UUID) ([]HelpRequest, error) {
	return s.repo.ListByDoctor(ctx, doctorID)
}

func (s *Service) Prescription(ctx context.Context, requestID uuid.UUID) (*Prescription, error) {
	return s.repo.GetPrescription(ctx, requestID)
}
