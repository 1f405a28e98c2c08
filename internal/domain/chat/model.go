package chat

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Message types.
const (
	TypeText  = "text"
	TypeImage = "image"
)

// Sender types.
const (
	SenderPatient = "patient"
	SenderDoctor  = "doctor"
)

var (
	ErrNotFound      = errors.New("chat message not found")
	ErrValidation    = errors.New("invalid chat message")
	ErrNotAuthorized = errors.New("not a participant of this consultation")
)

// Message maps to the chat_message table.
type Message struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ConsultationID uuid.UUID `db:"consultation_id" json:"consultation_id"`
	SenderID       uuid.UUID `db:"sender_id" json:"sender_id"`
	SenderType     string    `db:"sender_type" json:"sender_type"`
	MessageType    string    `db:"message_type" json:"message_type"`
	Content        string    `db:"content" json:"content"`
	Attachments    []string  `db:"attachments" json:"attachments"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

var validMessageTypes = map[string]bool{
	TypeText:  true,
	TypeImage: true,
}

var validSenderTypes = map[string]bool{
	SenderPatient: true,
	SenderDoctor:  true,
}
