package consult

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/carebridge/carebridge/internal/identity"
)

// CloseUnauthorized is sent when the authorizer refuses the attach.
const CloseUnauthorized = 4403

// ChannelMetrics receives connection and relay counts. The prometheus
// collector implements it; tests pass a no-op.
type ChannelMetrics interface {
	ChannelOpened()
	ChannelClosed()
	MessageRelayed()
}

type nopMetrics struct{}

func (nopMetrics) ChannelOpened()  {}
func (nopMetrics) ChannelClosed()  {}
func (nopMetrics) MessageRelayed() {}

type inboundFrame struct {
	Message string `json:"message"`
}

type outboundFrame struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

type errorFrame struct {
	Error string `json:"error"`
}

// Channel upgrades HTTP requests into consultation websocket sessions.
// Every inbound message is persisted before it is relayed; a message
// that cannot be saved is reported to its sender and never broadcast.
type Channel struct {
	upgrader   websocket.Upgrader
	authorizer *Authorizer
	messages   MessageRepository
	registry   *Registry
	metrics    ChannelMetrics
	log        zerolog.Logger

	now func() time.Time
}

func NewChannel(authorizer *Authorizer, messages MessageRepository, registry *Registry, metrics ChannelMetrics, log zerolog.Logger) *Channel {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Channel{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		authorizer: authorizer,
		messages:   messages,
		registry:   registry,
		metrics:    metrics,
		log:        log,
		now:        time.Now,
	}
}

// Serve authorizes ident for the appointment and, if allowed, runs the
// session until the peer disconnects. A denied attach is closed with
// CloseUnauthorized and leaves no trace in the room or the transcript.
func (ch *Channel) Serve(w http.ResponseWriter, r *http.Request, ident identity.Identity, appointmentID uuid.UUID) {
	decision, err := ch.authorizer.Authorize(r.Context(), ident, appointmentID, ch.now())
	if err != nil {
		ch.log.Error().Err(err).
			Str("appointment_id", appointmentID.String()).
			Msg("channel authorization check failed")
	}

	conn, upgradeErr := ch.upgrader.Upgrade(w, r, nil)
	if upgradeErr != nil {
		// Upgrade already wrote the HTTP error response.
		return
	}

	if !decision.Allowed {
		msg := websocket.FormatCloseMessage(CloseUnauthorized, string(decision.Reason))
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		conn.Close()
		return
	}

	client := newClient(appointmentID, ident.UserID, ident.Name, conn)
	ch.registry.Join(client)
	ch.metrics.ChannelOpened()

	go ch.writePump(client)
	ch.readPump(r, client)
}

func (ch *Channel) readPump(r *http.Request, c *Client) {
	defer func() {
		ch.registry.Leave(c)
		c.conn.Close()
		ch.metrics.ChannelClosed()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ch.log.Debug().Err(err).
					Str("appointment_id", c.AppointmentID.String()).
					Msg("channel read ended")
			}
			return
		}

		var in inboundFrame
		if err := json.Unmarshal(data, &in); err != nil || in.Message == "" {
			continue
		}

		msg := &Message{
			ID:            uuid.New(),
			AppointmentID: c.AppointmentID,
			SenderID:      c.Identity.UserID,
			SenderName:    c.Identity.Name,
			Body:          in.Message,
		}

		if err := ch.messages.SaveMessage(r.Context(), msg); err != nil {
			ch.log.Error().Err(err).
				Str("appointment_id", c.AppointmentID.String()).
				Msg("message save failed")
			ch.sendToClient(c, errorFrame{Error: "message could not be saved"})
			continue
		}

		payload, err := json.Marshal(outboundFrame{
			Message:  msg.Body,
			Username: msg.SenderName,
		})
		if err != nil {
			continue
		}

		ch.registry.Broadcast(c.AppointmentID, payload)
		ch.metrics.MessageRelayed()
	}
}

func (ch *Channel) writePump(c *Client) {
	for payload := range c.Send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	// Send channel closed by Leave; tell the peer we are done.
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// sendToClient bypasses the room and targets one client only.
func (ch *Channel) sendToClient(c *Client, frame errorFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	select {
	case c.Send <- payload:
	default:
	}
}
