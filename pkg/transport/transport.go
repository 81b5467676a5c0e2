// Package transport carries live session frames between the browser and
// the server over WebSocket.
package transport

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotConnected     = errors.New("transport not connected")
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendTimeout      = errors.New("send timeout")
	ErrInvalidMessage   = errors.New("invalid message format")
)

// ReplyEvent is the event name of every reply to a client request.
const ReplyEvent = "phx_reply"

// Message is one JSON frame. Client requests carry a Ref; the server
// echoes it in the matching reply.
type Message struct {
	Ref       string         `json:"ref,omitempty"`
	Topic     string         `json:"topic"`
	Event     string         `json:"event"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"ts,omitzero"`
}

// NewMessage stamps a frame with the current time.
func NewMessage(topic, event string, payload map[string]any) Message {
	return Message{
		Topic:     topic,
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

func (m Message) WithRef(ref string) Message {
	m.Ref = ref
	return m
}

// Reply builds the ok reply to m.
func (m Message) Reply(response map[string]any) Message {
	return m.reply("ok", response)
}

// ErrorReply builds the error reply to m, carrying err as the reason.
func (m Message) ErrorReply(err error) Message {
	return m.reply("error", map[string]any{"reason": err.Error()})
}

func (m Message) reply(status string, response map[string]any) Message {
	return Message{
		Ref:   m.Ref,
		Topic: m.Topic,
		Event: ReplyEvent,
		Payload: map[string]any{
			"status":   status,
			"response": response,
		},
	}
}

// Status returns the status of a reply, or "" for other frames.
func (m Message) Status() string {
	if m.Event != ReplyEvent {
		return ""
	}
	s, _ := m.Payload["status"].(string)
	return s
}

func (m Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal decodes a frame. A frame without an event is rejected with
// ErrInvalidMessage.
func Unmarshal(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return m, err
	}
	if m.Event == "" {
		return m, ErrInvalidMessage
	}
	return m, nil
}

// TransportConfig bounds one connection.
type TransportConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64

	// SendBufferSize and ReceiveBufferSize size the per-connection queues.
	// A full receive queue drops inbound frames.
	SendBufferSize    int
	ReceiveBufferSize int
}

func DefaultTransportConfig() *TransportConfig {
	return &TransportConfig{
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		PingInterval:      30 * time.Second,
		MaxMessageSize:    64 * 1024,
		SendBufferSize:    256,
		ReceiveBufferSize: 256,
	}
}
