package consult

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/carebridge/internal/booking"
	"github.com/carebridge/carebridge/internal/identity"
	"github.com/carebridge/carebridge/internal/schedule"
)

type mockAppointments struct {
	byID map[uuid.UUID]*booking.Appointment
	err  error
}

func (m *mockAppointments) GetAppointmentByID(_ context.Context, id uuid.UUID) (*booking.Appointment, error) {
	if m.err != nil {
		return nil, m.err
	}
	a, ok := m.byID[id]
	if !ok {
		return nil, booking.ErrAppointmentNotFound
	}
	return a, nil
}

type mockSlots struct {
	byID map[uuid.UUID]*schedule.Slot
	err  error
}

func (m *mockSlots) GetSlotByID(_ context.Context, id uuid.UUID) (*schedule.Slot, error) {
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.byID[id]
	if !ok {
		return nil, schedule.ErrSlotNotFound
	}
	return s, nil
}

type authFixture struct {
	authorizer *Authorizer
	appt       *booking.Appointment
	slot       *schedule.Slot
	patient    identity.Identity
	doctor     identity.Identity
}

func newAuthFixture(start, end time.Time) *authFixture {
	patientID := uuid.New()
	doctorID := uuid.New()

	slot := &schedule.Slot{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		StartTime: start,
		EndTime:   end,
	}
	appt := &booking.Appointment{
		ID:        uuid.New(),
		PatientID: patientID,
		SlotID:    slot.ID,
		Status:    booking.StatusBooked,
	}

	return &authFixture{
		authorizer: NewAuthorizer(
			&mockAppointments{byID: map[uuid.UUID]*booking.Appointment{appt.ID: appt}},
			&mockSlots{byID: map[uuid.UUID]*schedule.Slot{slot.ID: slot}},
		),
		appt:    appt,
		slot:    slot,
		patient: identity.Identity{UserID: patientID, Name: "Asha", Role: identity.RolePatient},
		doctor:  identity.Identity{UserID: doctorID, Name: "Dr. Reyes", Role: identity.RoleDoctor},
	}
}

func TestAuthorize_WindowBoundaries(t *testing.T) {
	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	fx := newAuthFixture(start, end)

	cases := []struct {
		name   string
		now    time.Time
		allow  bool
		reason DenyReason
	}{
		{"one second before start", start.Add(-time.Second), false, ReasonTooEarly},
		{"exactly at start", start, true, ""},
		{"mid window", start.Add(15 * time.Minute), true, ""},
		{"exactly at end", end, true, ""},
		{"one second after end", end.Add(time.Second), false, ReasonTooLate},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := fx.authorizer.Authorize(context.Background(), fx.patient, fx.appt.ID, tc.now)
			if err != nil {
				t.Fatalf("Authorize returned error: %v", err)
			}
			if d.Allowed != tc.allow {
				t.Fatalf("allowed = %v, want %v", d.Allowed, tc.allow)
			}
			if !tc.allow && d.Reason != tc.reason {
				t.Errorf("reason = %q, want %q", d.Reason, tc.reason)
			}
		})
	}
}

func TestAuthorize_Participants(t *testing.T) {
	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	fx := newAuthFixture(start, start.Add(30*time.Minute))
	inWindow := start.Add(10 * time.Minute)

	for _, ident := range []identity.Identity{fx.patient, fx.doctor} {
		d, err := fx.authorizer.Authorize(context.Background(), ident, fx.appt.ID, inWindow)
		if err != nil {
			t.Fatalf("Authorize(%s) returned error: %v", ident.Role, err)
		}
		if !d.Allowed {
			t.Errorf("%s was denied: %s", ident.Role, d.Reason)
		}
	}
}

func TestAuthorize_NonParticipants(t *testing.T) {
	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	fx := newAuthFixture(start, start.Add(30*time.Minute))
	inWindow := start.Add(10 * time.Minute)

	cases := []struct {
		name  string
		ident identity.Identity
	}{
		{"other patient", identity.Identity{UserID: uuid.New(), Role: identity.RolePatient}},
		{"other doctor", identity.Identity{UserID: uuid.New(), Role: identity.RoleDoctor}},
		{"admin", identity.Identity{UserID: uuid.New(), Role: identity.RoleAdmin}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := fx.authorizer.Authorize(context.Background(), tc.ident, fx.appt.ID, inWindow)
			if err != nil {
				t.Fatalf("Authorize returned error: %v", err)
			}
			if d.Allowed {
				t.Fatal("non-participant was allowed")
			}
			if d.Reason != ReasonNotParticipant {
				t.Errorf("reason = %q, want %q", d.Reason, ReasonNotParticipant)
			}
		})
	}
}

func TestAuthorize_MissingAppointment(t *testing.T) {
	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	fx := newAuthFixture(start, start.Add(30*time.Minute))

	d, err := fx.authorizer.Authorize(context.Background(), fx.patient, uuid.New(), start)
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if d.Allowed {
		t.Fatal("missing appointment was allowed")
	}
	if d.Reason != ReasonNotFound {
		t.Errorf("reason = %q, want %q", d.Reason, ReasonNotFound)
	}
}

func TestAuthorize_StorageFailureDenies(t *testing.T) {
	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	fx := newAuthFixture(start, start.Add(30*time.Minute))

	broken := NewAuthorizer(
		&mockAppointments{err: errors.New("connection refused")},
		&mockSlots{},
	)

	d, err := broken.Authorize(context.Background(), fx.patient, fx.appt.ID, start)
	if err == nil {
		t.Fatal("expected error from failing store")
	}
	if d.Allowed {
		t.Fatal("storage failure granted access")
	}
}

func TestAuthorize_FreshPerCall(t *testing.T) {
	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	fx := newAuthFixture(start, start.Add(30*time.Minute))

	// Denied before the window, allowed inside it, with no state carried
	// between the calls.
	early, _ := fx.authorizer.Authorize(context.Background(), fx.patient, fx.appt.ID, start.Add(-time.Minute))
	if early.Allowed {
		t.Fatal("early attach was allowed")
	}
	later, _ := fx.authorizer.Authorize(context.Background(), fx.patient, fx.appt.ID, start.Add(time.Minute))
	if !later.Allowed {
		t.Fatalf("in-window attach denied after earlier denial: %s", later.Reason)
	}
}
