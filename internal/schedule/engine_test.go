package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// -- Mock repository --

type slotKey struct {
	doctorID uuid.UUID
	start    time.Time
}

type mockSlotRepo struct {
	byKey map[slotKey]*Slot
	byID  map[uuid.UUID]*Slot
}

func newMockSlotRepo() *mockSlotRepo {
	return &mockSlotRepo{
		byKey: make(map[slotKey]*Slot),
		byID:  make(map[uuid.UUID]*Slot),
	}
}

func (m *mockSlotRepo) GetSlotByID(_ context.Context, id uuid.UUID) (*Slot, error) {
	s, ok := m.byID[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return s, nil
}

func (m *mockSlotRepo) CreateSlotIfAbsent(_ context.Context, s *Slot) (bool, error) {
	key := slotKey{doctorID: s.DoctorID, start: s.StartTime}
	if _, exists := m.byKey[key]; exists {
		return false, nil
	}
	s.CreatedAt = time.Now()
	copied := *s
	m.byKey[key] = &copied
	m.byID[s.ID] = &copied
	return true, nil
}

func (m *mockSlotRepo) ListAvailable(_ context.Context, doctorID uuid.UUID, from time.Time) ([]Slot, error) {
	var result []Slot
	for _, s := range m.byKey {
		if s.DoctorID == doctorID && !s.Booked && !s.StartTime.Before(from) {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (m *mockSlotRepo) ListByDoctorWindow(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]Slot, error) {
	var result []Slot
	for _, s := range m.byKey {
		if s.DoctorID == doctorID && !s.StartTime.Before(from) && s.StartTime.Before(to) {
			result = append(result, *s)
		}
	}
	return result, nil
}

// -- Tests --

func newTestEngine(repo SlotRepository) *Engine {
	return NewEngine(repo, 30*time.Minute, zerolog.Nop())
}

func TestGenerateSlots_DiscardsRaggedTail(t *testing.T) {
	repo := newMockSlotRepo()
	engine := newTestEngine(repo)
	doctorID := uuid.New()

	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	end := time.Date(2026, 9, 1, 10, 5, 0, 0, time.UTC)

	slots, err := engine.GenerateSlots(context.Background(), doctorID, start, end, 30*time.Minute)
	if err != nil {
		t.Fatalf("GenerateSlots returned error: %v", err)
	}

	if len(slots) != 2 {
		t.Fatalf("expected 2 slots for a 65 minute window, got %d", len(slots))
	}

	if !slots[0].StartTime.Equal(start) || !slots[0].EndTime.Equal(start.Add(30*time.Minute)) {
		t.Errorf("first slot is %s-%s, want 09:00-09:30", slots[0].StartTime, slots[0].EndTime)
	}
	if !slots[1].StartTime.Equal(start.Add(30*time.Minute)) || !slots[1].EndTime.Equal(start.Add(time.Hour)) {
		t.Errorf("second slot is %s-%s, want 09:30-10:00", slots[1].StartTime, slots[1].EndTime)
	}
}

func TestGenerateSlots_ChronologicalOrder(t *testing.T) {
	repo := newMockSlotRepo()
	engine := newTestEngine(repo)

	start := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(4 * time.Hour)

	slots, err := engine.GenerateSlots(context.Background(), uuid.New(), start, end, 30*time.Minute)
	if err != nil {
		t.Fatalf("GenerateSlots returned error: %v", err)
	}

	if len(slots) != 8 {
		t.Fatalf("expected 8 slots, got %d", len(slots))
	}
	for i := 1; i < len(slots); i++ {
		if !slots[i].StartTime.After(slots[i-1].StartTime) {
			t.Fatalf("slots out of order at index %d", i)
		}
		if !slots[i].StartTime.Equal(slots[i-1].EndTime) {
			t.Fatalf("gap or overlap between slot %d and %d", i-1, i)
		}
	}
}

func TestGenerateSlots_InvalidWindow(t *testing.T) {
	repo := newMockSlotRepo()
	engine := newTestEngine(repo)

	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		end      time.Time
		duration time.Duration
	}{
		{"end before start", start.Add(-time.Hour), 30 * time.Minute},
		{"end equals start", start, 30 * time.Minute},
		{"zero duration", start.Add(time.Hour), 0},
		{"negative duration", start.Add(time.Hour), -time.Minute},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.GenerateSlots(context.Background(), uuid.New(), start, tc.end, tc.duration)
			if err != ErrInvalidWindow {
				t.Fatalf("expected ErrInvalidWindow, got %v", err)
			}
			if len(repo.byKey) != 0 {
				t.Fatalf("validation failure persisted %d slots", len(repo.byKey))
			}
		})
	}
}

func TestGenerateSlots_IdempotentRerun(t *testing.T) {
	repo := newMockSlotRepo()
	engine := newTestEngine(repo)
	doctorID := uuid.New()

	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	first, err := engine.GenerateSlots(context.Background(), doctorID, start, end, 30*time.Minute)
	if err != nil {
		t.Fatalf("first run returned error: %v", err)
	}
	if len(first) != 4 {
		t.Fatalf("expected 4 slots from first run, got %d", len(first))
	}

	second, err := engine.GenerateSlots(context.Background(), doctorID, start, end, 30*time.Minute)
	if err != nil {
		t.Fatalf("second run returned error: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("second identical run created %d slots, want 0", len(second))
	}
	if len(repo.byKey) != 4 {
		t.Fatalf("store holds %d slots after rerun, want 4", len(repo.byKey))
	}
}

func TestGenerateSlots_PartialOverlapFillsGaps(t *testing.T) {
	repo := newMockSlotRepo()
	engine := newTestEngine(repo)
	doctorID := uuid.New()

	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	if _, err := engine.GenerateSlots(context.Background(), doctorID, start, start.Add(time.Hour), 30*time.Minute); err != nil {
		t.Fatalf("seed run returned error: %v", err)
	}

	// Wider window: the two existing intervals are skipped, the two new
	// ones are created.
	created, err := engine.GenerateSlots(context.Background(), doctorID, start, start.Add(2*time.Hour), 30*time.Minute)
	if err != nil {
		t.Fatalf("widened run returned error: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 new slots, got %d", len(created))
	}
	if !created[0].StartTime.Equal(start.Add(time.Hour)) {
		t.Errorf("first new slot starts at %s, want 10:00", created[0].StartTime)
	}
	if len(repo.byKey) != 4 {
		t.Fatalf("store holds %d slots, want 4", len(repo.byKey))
	}
}

func TestGenerateSlots_OtherDoctorUnaffected(t *testing.T) {
	repo := newMockSlotRepo()
	engine := newTestEngine(repo)

	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	if _, err := engine.GenerateSlots(context.Background(), uuid.New(), start, end, 30*time.Minute); err != nil {
		t.Fatalf("first doctor run returned error: %v", err)
	}

	created, err := engine.GenerateSlots(context.Background(), uuid.New(), start, end, 30*time.Minute)
	if err != nil {
		t.Fatalf("second doctor run returned error: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("second doctor got %d slots, want 2", len(created))
	}
}
