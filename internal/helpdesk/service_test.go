package helpdesk

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type mockHelpdeskRepo struct {
	mu            sync.Mutex
	requests      map[uuid.UUID]*HelpRequest
	prescriptions map[uuid.UUID]*Prescription
}

func newMockHelpdeskRepo() *mockHelpdeskRepo {
	return &mockHelpdeskRepo{
		requests:      make(map[uuid.UUID]*HelpRequest),
		prescriptions: make(map[uuid.UUID]*Prescription),
	}
}

func (m *mockHelpdeskRepo) CreateRequest(_ context.Context, req *HelpRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	m.requests[req.ID] = req
	return nil
}

func (m *mockHelpdeskRepo) GetRequestByID(_ context.Context, id uuid.UUID) (*HelpRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return r, nil
}

func (m *mockHelpdeskRepo) ListPendingBySpecialty(_ context.Context, specialty string) ([]HelpRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []HelpRequest
	for _, r := range m.requests {
		if r.Status == StatusPending && r.Specialty == specialty {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *mockHelpdeskRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]HelpRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []HelpRequest
	for _, r := range m.requests {
		if r.PatientID == patientID {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *mockHelpdeskRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]HelpRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []HelpRequest
	for _, r := range m.requests {
		if r.DoctorID != nil && *r.DoctorID == doctorID {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *mockHelpdeskRepo) ClaimRequest(_ context.Context, id, doctorID uuid.UUID) (*HelpRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if r.Status != StatusPending {
		return nil, ErrRequestTaken
	}
	r.Status = StatusInProgress
	r.DoctorID = &doctorID
	r.UpdatedAt = time.Now()
	return r, nil
}

func (m *mockHelpdeskRepo) AnswerRequest(_ context.Context, id, doctorID uuid.UUID, p *Prescription) (*HelpRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if r.Status == StatusAnswered {
		return nil, ErrAlreadyAnswered
	}
	if r.DoctorID == nil || *r.DoctorID != doctorID {
		return nil, ErrNotClaimant
	}
	if r.Status != StatusInProgress {
		return nil, ErrRequestTaken
	}
	r.Status = StatusAnswered
	r.UpdatedAt = time.Now()
	p.CreatedAt = time.Now()
	m.prescriptions[id] = p
	return r, nil
}

func (m *mockHelpdeskRepo) CloseRequest(_ context.Context, id, patientID uuid.UUID) (*HelpRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.PatientID != patientID || r.Status == StatusClosed {
		return nil, ErrRequestNotFound
	}
	r.Status = StatusClosed
	return r, nil
}

func (m *mockHelpdeskRepo) GetPrescription(_ context.Context, helpRequestID uuid.UUID) (*Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prescriptions[helpRequestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return p, nil
}

type captureNotifier struct {
	mu    sync.Mutex
	calls []uuid.UUID
}

func (n *captureNotifier) Notify(userID uuid.UUID, _, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, userID)
}

func newTestService(repo Repository, notifier Notifier) *Service {
	return NewService(repo, notifier, zerolog.Nop())
}

func submitRequest(t *testing.T, s *Service) (*HelpRequest, uuid.UUID) {
	t.Helper()
	patientID := uuid.New()
	req, err := s.Submit(context.Background(), patientID, "Dermatologist", "rash", "itchy for a week")
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	return req, patientID
}

func TestSubmit(t *testing.T) {
	repo := newMockHelpdeskRepo()
	s := newTestService(repo, &captureNotifier{})

	req, patientID := submitRequest(t, s)
	if req.Status != StatusPending {
		t.Errorf("status = %q, want %q", req.Status, StatusPending)
	}
	if req.PatientID != patientID {
		t.Error("request not linked to patient")
	}

	pending, err := s.PendingBySpecialty(context.Background(), "Dermatologist")
	if err != nil {
		t.Fatalf("PendingBySpecialty returned error: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("%d pending requests, want 1", len(pending))
	}
}

func TestSubmit_Validation(t *testing.T) {
	s := newTestService(newMockHelpdeskRepo(), &captureNotifier{})

	cases := []struct{ specialty, subject, body string }{
		{"", "subject", "body"},
		{"Dermatologist", "  ", "body"},
		{"Dermatologist", "subject", ""},
	}
	for _, tc := range cases {
		if _, err := s.Submit(context.Background(), uuid.New(), tc.specialty, tc.subject, tc.body); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("Submit(%q, %q, %q): expected ErrInvalidRequest, got %v", tc.specialty, tc.subject, tc.body, err)
		}
	}
}

func TestClaim_ConcurrentSingleWinner(t *testing.T) {
	repo := newMockHelpdeskRepo()
	s := newTestService(repo, &captureNotifier{})
	req, _ := submitRequest(t, s)

	const doctors = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
		taken   int
	)

	start := make(chan struct{})
	for i := 0; i < doctors; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.Claim(context.Background(), req.ID, uuid.New())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, ErrRequestTaken):
				taken++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if winners != 1 {
		t.Fatalf("%d doctors claimed the request, want exactly 1", winners)
	}
	if taken != doctors-1 {
		t.Fatalf("%d ErrRequestTaken, want %d", taken, doctors-1)
	}
}

func TestAnswer_NotifiesPatient(t *testing.T) {
	repo := newMockHelpdeskRepo()
	notifier := &captureNotifier{}
	s := newTestService(repo, notifier)

	req, patientID := submitRequest(t, s)
	doctorID := uuid.New()
	if _, err := s.Claim(context.Background(), req.ID, doctorID); err != nil {
		t.Fatalf("Claim returned error: %v", err)
	}

	med := "hydrocortisone"
	p, err := s.Answer(context.Background(), req.ID, doctorID, "apply twice daily", &med)
	if err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if p.HelpRequestID != req.ID {
		t.Error("prescription not linked to request")
	}

	got, err := s.Get(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Status != StatusAnswered {
		t.Errorf("status = %q, want %q", got.Status, StatusAnswered)
	}

	if len(notifier.calls) != 1 || notifier.calls[0] != patientID {
		t.Errorf("notifications = %v, want exactly one to the patient", notifier.calls)
	}
}

func TestAnswer_OnlyClaimant(t *testing.T) {
	repo := newMockHelpdeskRepo()
	s := newTestService(repo, &captureNotifier{})

	req, _ := submitRequest(t, s)
	claimant := uuid.New()
	if _, err := s.Claim(context.Background(), req.ID, claimant); err != nil {
		t.Fatalf("Claim returned error: %v", err)
	}

	if _, err := s.Answer(context.Background(), req.ID, uuid.New(), "advice", nil); !errors.Is(err, ErrNotClaimant) {
		t.Fatalf("expected ErrNotClaimant, got %v", err)
	}
}

func TestAnswer_OnlyOnce(t *testing.T) {
	repo := newMockHelpdeskRepo()
	s := newTestService(repo, &captureNotifier{})

	req, _ := submitRequest(t, s)
	doctorID := uuid.New()
	if _, err := s.Claim(context.Background(), req.ID, doctorID); err != nil {
		t.Fatalf("Claim returned error: %v", err)
	}
	if _, err := s.Answer(context.Background(), req.ID, doctorID, "advice", nil); err != nil {
		t.Fatalf("first Answer returned error: %v", err)
	}

	if _, err := s.Answer(context.Background(), req.ID, doctorID, "more advice", nil); !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}
}

func TestClose_OwnerOnly(t *testing.T) {
	repo := newMockHelpdeskRepo()
	s := newTestService(repo, &captureNotifier{})

	req, patientID := submitRequest(t, s)

	if _, err := s.Close(context.Background(), req.ID, uuid.New()); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("stranger close: expected ErrRequestNotFound, got %v", err)
	}

	closed, err := s.Close(context.Background(), req.ID, patientID)
	if err != nil {
		t.Fatalf("owner close returned error: %v", err)
	}
	if closed.Status != StatusClosed {
		t.Errorf("status = %q, want %q", closed.Status, StatusClosed)
	}
}
