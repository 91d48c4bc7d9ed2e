package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrInvalidWindow = errors.New("schedule window end must be after start")

// Engine carves a doctor-supplied time range into fixed-duration slots
// and persists them. Re-running with the same range is duplicate-safe:
// intervals whose (doctor, start) already exist are skipped.
type Engine struct {
	slots    SlotRepository
	duration time.Duration
	log      zerolog.Logger
}

func NewEngine(slots SlotRepository, duration time.Duration, log zerolog.Logger) *Engine {
	return &Engine{slots: slots, duration: duration, log: log}
}

// SlotDuration is the configured default used when callers do not pick
// a duration themselves.
func (e *Engine) SlotDuration() time.Duration {
	return e.duration
}

// GenerateSlots creates non-overlapping slots of the given duration
// between windowStart and windowEnd. A partial interval that would
// extend past windowEnd is discarded. Returns only the slots created by
// this call, in chronological order. Validation failures persist nothing.
func (e *Engine) GenerateSlots(ctx context.Context, doctorID uuid.UUID, windowStart, windowEnd time.Time, duration time.Duration) ([]Slot, error) {
	if !windowEnd.After(windowStart) {
		return nil, ErrInvalidWindow
	}
	if duration <= 0 {
		return nil, ErrInvalidWindow
	}

	var created []Slot
	skipped := 0

	for cur := windowStart; ; cur = cur.Add(duration) {
		end := cur.Add(duration)
		if end.After(windowEnd) {
			break
		}

		slot := Slot{
			ID:        uuid.New(),
			DoctorID:  doctorID,
			StartTime: cur,
			EndTime:   end,
		}

		ok, err := e.slots.CreateSlotIfAbsent(ctx, &slot)
		if err != nil {
			return nil, fmt.Errorf("create slot at %s: %w", cur.Format(time.RFC3339), err)
		}
		if !ok {
			skipped++
			continue
		}
		created = append(created, slot)
	}

	e.log.Info().
		Str("doctor_id", doctorID.String()).
		Time("window_start", windowStart).
		Time("window_end", windowEnd).
		Int("created", len(created)).
		Int("skipped", skipped).
		Msg("slots generated")

	return created, nil
}
