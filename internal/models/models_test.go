package models

import (
	"strings"
	"testing"
)

func TestInboundMessageCommand(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"/start", "start"},
		{"/Cancel", "cancel"},
		{"/start@ResumeBot extra", "start"},
		{"hello", ""},
		{"  /users ", "users"},
	}
	for _, tt := range tests {
		got := InboundMessage{Text: tt.text}.Command()
		if got != tt.want {
			t.Errorf("Command(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestOutboundMessageValidate(t *testing.T) {
	if err := (OutboundMessage{}).Validate(); err != ErrEmptyOutbound {
		t.Errorf("expected ErrEmptyOutbound, got %v", err)
	}

	msg := OutboundMessage{Text: "pick", Buttons: [][]Button{{{Label: "", Data: "x"}}}}
	if err := msg.Validate(); err != ErrEmptyButtonLabel {
		t.Errorf("expected ErrEmptyButtonLabel, got %v", err)
	}

	msg = OutboundMessage{Text: strings.Repeat("a", MaxMessageLength+1)}
	if err := msg.Validate(); err != ErrMessageTooLong {
		t.Errorf("expected ErrMessageTooLong, got %v", err)
	}

	msg = OutboundMessage{DocumentPath: "/tmp/resume.pdf"}
	if err := msg.Validate(); err != nil {
		t.Errorf("document-only message should be valid, got %v", err)
	}
}

func TestRenderButtonsAsText(t *testing.T) {
	out := RenderButtonsAsText("Choose a color", []Button{{Label: "Blue"}, {Label: "Red"}})
	if !strings.Contains(out, "1. Blue") || !strings.Contains(out, "2. Red") {
		t.Errorf("numbered options missing: %q", out)
	}
	out = RenderButtonsAsText("Pick one", []Button{{Label: "Modern"}, {Label: "Random", Key: "S"}, {Label: "Classic"}})
	if !strings.Contains(out, "S. Random") || !strings.Contains(out, "2. Classic") {
		t.Errorf("keyed option should not take a number: %q", out)
	}
	if RenderButtonsAsText("plain", nil) != "plain" {
		t.Error("text without buttons should be unchanged")
	}
}

func TestResumeClone(t *testing.T) {
	r := Resume{Name: "Ada", Skills: []Skill{{Name: "Go", Rating: 5}}, Experience: []string{"Engineer"}}
	c := r.Clone()
	c.Skills[0].Rating = 1
	c.Experience = append(c.Experience, "Lead")
	if r.Skills[0].Rating != 5 {
		t.Error("clone shares skills backing array")
	}
	if len(r.Experience) != 1 {
		t.Error("clone shares experience slice")
	}
	if !r.HasSkill("go") {
		t.Error("HasSkill should be case-insensitive")
	}
}

func TestAPIResponseHelpers(t *testing.T) {
	if Success(nil).Status != string(APIStatusOK) {
		t.Error("Success status mismatch")
	}
	e := Error("boom")
	if e.Status != string(APIStatusError) || e.Message != "boom" {
		t.Errorf("unexpected error response: %+v", e)
	}
}
