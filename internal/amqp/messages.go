package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"expensebook/internal/notify"
)

// AlertMessage is the wire form of a budget alert on the broker.
type AlertMessage struct {
	Email     string    `json:"email_address"`
	Kind      string    `json:"kind,omitempty"`
	Message   string    `json:"message"`
	Source    string    `json:"source"`
	RaisedAt  time.Time `json:"raised_at"`
	Timestamp time.Time `json:"timestamp"`
}

// NewAlertMessage wraps an alert for publishing.
func NewAlertMessage(a notify.Alert) *AlertMessage {
	return &AlertMessage{
		Email:     a.Email,
		Kind:      a.Kind,
		Message:   a.Message,
		Source:    a.Source,
		RaisedAt:  a.At,
		Timestamp: time.Now(),
	}
}

// Alert converts the message back into an alert.
func (m *AlertMessage) Alert() notify.Alert {
	return notify.Alert{Email: m.Email, Kind: m.Kind, Message: m.Message, Source: m.Source, At: m.RaisedAt}
}

// ToJSON converts the message to JSON bytes
func (m *AlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AlertMessageFromJSON decodes a message, rejecting ones without content.
func AlertMessageFromJSON(data []byte) (*AlertMessage, error) {
	var msg AlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Message == "" {
		return nil, errors.New("alert message has no text")
	}
	return &msg, nil
}
