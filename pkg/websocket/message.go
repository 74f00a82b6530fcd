// Package websocket provides WebSocket connection handling.
package websocket

import (
	"encoding/json"
	"time"
)

// Envelope represents a message envelope with metadata.
type Envelope struct {
	// ID correlates a reply with the request that caused it.
	ID string `json:"id,omitempty"`

	// Type is the type of the message.
	Type string `json:"type"`

	// Data is the message data.
	Data any `json:"data,omitempty"`

	// Timestamp is the time the message was created.
	Timestamp time.Time `json:"timestamp"`
}

// NewEnvelope creates a new message envelope.
func NewEnvelope(messageType string, data any) *Envelope {
	return &Envelope{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// WithID sets the message ID.
func (e *Envelope) WithID(id string) *Envelope {
	e.ID = id
	return e
}

// JSON marshals the envelope to JSON.
func (e *Envelope) JSON() ([]byte, error) {
	return json.Marshal(e)
}

// Send sends the envelope to the connection.
func (e *Envelope) Send(conn *Connection) error {
	return conn.WriteJSON(e)
}
