package consult

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const sendBuffer = 64

// Conn is the subset of the websocket connection the registry needs.
// Tests substitute an in-memory implementation.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one attached participant of a consultation room.
type Client struct {
	AppointmentID uuid.UUID
	Identity      clientIdentity
	Send          chan []byte

	conn Conn
}

type clientIdentity struct {
	UserID uuid.UUID
	Name   string
}

func newClient(appointmentID uuid.UUID, userID uuid.UUID, name string, conn Conn) *Client {
	return &Client{
		AppointmentID: appointmentID,
		Identity:      clientIdentity{UserID: userID, Name: name},
		Send:          make(chan []byte, sendBuffer),
		conn:          conn,
	}
}

// Registry tracks the live membership of every consultation room. All
// methods are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[*Client]struct{}
	log   zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		rooms: make(map[uuid.UUID]map[*Client]struct{}),
		log:   log,
	}
}

func (r *Registry) Join(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[c.AppointmentID]
	if !ok {
		room = make(map[*Client]struct{})
		r.rooms[c.AppointmentID] = room
	}
	room[c] = struct{}{}
}

func (r *Registry) Leave(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[c.AppointmentID]
	if !ok {
		return
	}
	if _, member := room[c]; !member {
		return
	}
	delete(room, c)
	close(c.Send)
	if len(room) == 0 {
		delete(r.rooms, c.AppointmentID)
	}
}

// Broadcast delivers payload to every member of the room, the sender
// included. A client whose send buffer is full is skipped rather than
// blocking the room.
func (r *Registry) Broadcast(appointmentID uuid.UUID, payload []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for c := range r.rooms[appointmentID] {
		select {
		case c.Send <- payload:
		default:
			r.log.Warn().
				Str("appointment_id", appointmentID.String()).
				Str("user_id", c.Identity.UserID.String()).
				Msg("send buffer full, dropping frame")
		}
	}
}

// RoomCount reports the number of attached clients, for readiness and
// metrics.
func (r *Registry) RoomCount(appointmentID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[appointmentID])
}

func (r *Registry) TotalClients() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, room := range r.rooms {
		total += len(room)
	}
	return total
}
