package notify

import (
	"encoding/json"
	"time"

	"github.com/fatali-fataliyev/wallet_tracker/internal/budget"
)

// Message is the wire form of a budget.Notification.
type Message struct {
	Kind      string    `json:"kind"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	TraceID   string    `json:"trace_id,omitempty"`
}

func NewMessage(n budget.Notification, traceID string) Message {
	return Message{
		Kind:      n.Kind,
		UserID:    n.UserID,
		Email:     n.Email,
		Subject:   n.Subject,
		Body:      n.Body,
		CreatedAt: n.CreatedAt.UTC(),
		TraceID:   traceID,
	}
}

func (m Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func MessageFromJSON(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
