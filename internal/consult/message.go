package consult

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Message is one line of a consultation transcript.
type Message struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	SenderID      uuid.UUID
	SenderName    string
	Body          string
	CreatedAt     time.Time
}

// MessageRepository persists the transcript. Persist happens before
// broadcast; an unsaved message is never relayed.
type MessageRepository interface {
	SaveMessage(ctx context.Context, msg *Message) error
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]Message, error)
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

func (r *PgMessageRepository) SaveMessage(ctx context.Context, msg *Message) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO messages (id, appointment_id, sender_id, body, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING created_at
	`, msg.ID, msg.AppointmentID, msg.SenderID, msg.Body).Scan(&msg.CreatedAt)
}

func (r *PgMessageRepository) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.id, m.appointment_id, m.sender_id, u.name, m.body, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.appointment_id = $1
		ORDER BY m.created_at
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.AppointmentID, &m.SenderID, &m.SenderName, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

var _ MessageRepository = (*PgMessageRepository)(nil)
