// Package chat is the conversational front door: it accepts chat messages from
// peers, acknowledges them and replies with a preview URL and the top listings.
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Schema names carried by envelopes.
const (
	SchemaChatMessage         = "chat_message"
	SchemaChatAcknowledgement = "chat_acknowledgement"
)

// ContentText is the only content type the front door reads.
const ContentText = "text"

// ErrUnknownSchema is returned for envelopes whose payload type is not handled.
var ErrUnknownSchema = errors.New("unknown message schema")

// Content is one part of a chat message. Only text parts carry Text.
type Content struct {
	Type string `json:"type" validate:"required"`
	Text string `json:"text,omitempty"`
}

// ChatMessage is a message in a conversation.
type ChatMessage struct {
	Timestamp time.Time `json:"timestamp"`
	MsgID     string    `json:"msg_id" validate:"required"`
	Content   []Content `json:"content" validate:"dive"`
}

// ChatAcknowledgement confirms receipt of a ChatMessage.
type ChatAcknowledgement struct {
	Timestamp         time.Time         `json:"timestamp"`
	AcknowledgedMsgID string            `json:"acknowledged_msg_id" validate:"required"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// Envelope carries one payload between peers. Sender is the address replies go to.
type Envelope struct {
	Version int             `json:"version"`
	Sender  string          `json:"sender" validate:"required"`
	Target  string          `json:"target,omitempty"`
	Session string          `json:"session,omitempty"`
	Schema  string          `json:"schema" validate:"required"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

// Text concatenates the text parts of m and trims the result.
func (m ChatMessage) Text() string {
	var b strings.Builder
	for _, c := range m.Content {
		if c.Type == ContentText {
			b.WriteString(c.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

// NewTextMessage builds a single-part text message with a fresh id.
func NewTextMessage(text string) ChatMessage {
	return ChatMessage{
		Timestamp: time.Now().UTC(),
		MsgID:     uuid.NewString(),
		Content:   []Content{{Type: ContentText, Text: text}},
	}
}

// NewAcknowledgement acknowledges msgID.
func NewAcknowledgement(msgID string) ChatAcknowledgement {
	return ChatAcknowledgement{Timestamp: time.Now().UTC(), AcknowledgedMsgID: msgID}
}

// schemaOf returns the envelope schema for a payload value.
func schemaOf(payload any) (string, error) {
	switch payload.(type) {
	case ChatMessage, *ChatMessage:
		return SchemaChatMessage, nil
	case ChatAcknowledgement, *ChatAcknowledgement:
		return SchemaChatAcknowledgement, nil
	}
	return "", fmt.Errorf("%w: %T", ErrUnknownSchema, payload)
}
