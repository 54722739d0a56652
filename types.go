package nemochat

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role indicates who authored a message.
type Role string

// Role constants
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// IsValid returns true if the role is one of system, user or assistant
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Message is one entry of the conversation log.
//
// Content only grows while the message is the in-progress assistant message
// of its Store. Once finalized it never changes again.
type Message struct {
	// ID uniquely identifies the message within and across conversations
	ID string `json:"id,omitempty"`

	// Role is system, user or assistant
	Role Role `json:"role"`

	// Content is the message text
	Content string `json:"content"`

	// Timestamp is when the message was appended to the log
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// NewMessage creates a message with a fresh ID. The timestamp is stored in
// UTC so it survives a JSON round trip unchanged.
func NewMessage(role Role, content string, now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: now.UTC(),
	}
}

// UnmarshalJSON accepts both the full shape and the bare {role, content}
// shape written by older clients. Missing IDs are generated.
func (m *Message) UnmarshalJSON(data []byte) error {
	type alias Message
	var aux struct {
		alias
		Timestamp *time.Time `json:"timestamp,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = Message(aux.alias)
	if aux.Timestamp != nil {
		m.Timestamp = *aux.Timestamp
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// Wire returns the {role, content} pair sent upstream.
func (m Message) Wire() WireMessage {
	return WireMessage{Role: m.Role, Content: m.Content}
}

// WireMessage is a message as carried in an outbound ChatRequest.
type WireMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Frame is one parsed unit of the streamed response.
// Frames are never persisted; they only exist while a stream is accumulated.
type Frame struct {
	// Content is the text delta to append (nil when absent)
	Content *string

	// Error is the relay's failure message (nil when absent)
	Error *string

	// Terminal is true for the done-sentinel
	Terminal bool
}

// HasContent returns true if the frame carries a content delta
func (f Frame) HasContent() bool {
	return f.Content != nil
}

// HasError returns true if the frame carries an upstream error
func (f Frame) HasError() bool {
	return f.Error != nil
}
