package consult

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func joinTestClient(r *Registry, appointmentID uuid.UUID) *Client {
	c := newClient(appointmentID, uuid.New(), "tester", nil)
	r.Join(c)
	return c
}

func TestRegistry_JoinLeave(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	room := uuid.New()

	a := joinTestClient(r, room)
	b := joinTestClient(r, room)

	if got := r.RoomCount(room); got != 2 {
		t.Fatalf("RoomCount = %d, want 2", got)
	}

	r.Leave(a)
	if got := r.RoomCount(room); got != 1 {
		t.Fatalf("RoomCount after leave = %d, want 1", got)
	}
	if _, open := <-a.Send; open {
		t.Error("send channel still open after leave")
	}

	r.Leave(b)
	if got := r.RoomCount(room); got != 0 {
		t.Fatalf("RoomCount after both left = %d, want 0", got)
	}
	if got := r.TotalClients(); got != 0 {
		t.Fatalf("TotalClients = %d, want 0", got)
	}
}

func TestRegistry_LeaveTwice(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	c := joinTestClient(r, uuid.New())

	r.Leave(c)
	// Second leave must not close the channel again.
	r.Leave(c)
}

func TestRegistry_BroadcastReachesWholeRoom(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	room := uuid.New()

	sender := joinTestClient(r, room)
	peer := joinTestClient(r, room)
	outsider := joinTestClient(r, uuid.New())

	payload := []byte(`{"message":"hello","username":"tester"}`)
	r.Broadcast(room, payload)

	for _, c := range []*Client{sender, peer} {
		select {
		case got := <-c.Send:
			if string(got) != string(payload) {
				t.Errorf("received %q, want %q", got, payload)
			}
		default:
			t.Error("room member did not receive the broadcast")
		}
	}

	select {
	case <-outsider.Send:
		t.Error("broadcast leaked into another room")
	default:
	}
}

func TestRegistry_BroadcastDropsWhenBufferFull(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	room := uuid.New()
	c := joinTestClient(r, room)

	for i := 0; i < sendBuffer; i++ {
		c.Send <- []byte("fill")
	}

	// Must not block.
	r.Broadcast(room, []byte("overflow"))

	if got := len(c.Send); got != sendBuffer {
		t.Fatalf("buffer holds %d frames, want %d", got, sendBuffer)
	}
}

func TestRegistry_BroadcastEmptyRoom(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	r.Broadcast(uuid.New(), []byte("nobody home"))
}
