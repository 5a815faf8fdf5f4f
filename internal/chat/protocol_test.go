package chat

import (
	"errors"
	"testing"
)

func TestChatMessageText(t *testing.T) {
	tests := []struct {
		name    string
		content []Content
		want    string
	}{
		{"none", nil, ""},
		{"single", []Content{{Type: ContentText, Text: " hello "}}, "hello"},
		{"concatenated", []Content{{Type: ContentText, Text: "go "}, {Type: ContentText, Text: "jobs"}}, "go jobs"},
		{"non-text ignored", []Content{{Type: "resource", Text: "x"}, {Type: ContentText, Text: "ok"}}, "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (ChatMessage{Content: tt.content}).Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewTextMessage(t *testing.T) {
	a, b := NewTextMessage("x"), NewTextMessage("x")
	if a.MsgID == "" || a.MsgID == b.MsgID {
		t.Errorf("message ids %q and %q should be set and distinct", a.MsgID, b.MsgID)
	}
	if a.Text() != "x" {
		t.Errorf("Text() = %q, want %q", a.Text(), "x")
	}
}

func TestSchemaOf(t *testing.T) {
	s, err := schemaOf(NewAcknowledgement("m"))
	if err != nil || s != SchemaChatAcknowledgement {
		t.Errorf("schemaOf(ack) = %q, %v", s, err)
	}
	if _, err := schemaOf("plain string"); !errors.Is(err, ErrUnknownSchema) {
		t.Errorf("schemaOf(string) error = %v, want ErrUnknownSchema", err)
	}
}
