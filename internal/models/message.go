package models

import (
	"errors"
	"fmt"
	"strings"
)

// Channel identifies the messaging transport a message travelled over.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelTwilio   Channel = "twilio"
	ChannelWhatsApp Channel = "whatsapp"
)

// Validation limits for outbound messages.
const (
	// MaxMessageLength is the longest text body any transport accepts in one message.
	MaxMessageLength = 4096
	// MaxButtonLabelLength bounds a single button label.
	MaxButtonLabelLength = 64
	// MaxButtonDataLength bounds a button payload (Telegram allows 64 bytes of callback data).
	MaxButtonDataLength = 64
)

var (
	ErrEmptyRecipient     = errors.New("recipient cannot be empty")
	ErrEmptyOutbound      = errors.New("outbound message has no text, document or photo")
	ErrMessageTooLong     = errors.New("message text exceeds maximum length")
	ErrEmptyButtonLabel   = errors.New("button label cannot be empty")
	ErrButtonLabelTooLong = errors.New("button label exceeds maximum length")
	ErrButtonDataTooLong  = errors.New("button data exceeds maximum length")
)

// Attachment is a file received from the user, typically a profile photo.
type Attachment struct {
	// FileID is the transport-specific handle used to download the file
	// (a Telegram file_id, a Twilio media URL or a WhatsApp message id).
	FileID      string `json:"file_id"`
	ContentType string `json:"content_type,omitempty"`
}

// InboundMessage is a decoded user event from any transport.
type InboundMessage struct {
	Channel Channel `json:"channel"`
	// MessageID uniquely identifies the event for deduplication.
	MessageID string `json:"message_id"`
	// UserID is the stable per-user identifier, also used as the reply address.
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	// Text holds the raw text, or the command including its leading slash.
	Text string `json:"text,omitempty"`
	// Data holds the payload of a pressed button, if any.
	Data       string      `json:"data,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
	Time       int64       `json:"time"`
}

// IsCommand reports whether the message text is a bot command.
func (m InboundMessage) IsCommand() bool {
	return strings.HasPrefix(strings.TrimSpace(m.Text), "/")
}

// Command returns the command name without the leading slash or any bot suffix
// ("/start@ResumeBot arg" yields "start").
func (m InboundMessage) Command() string {
	if !m.IsCommand() {
		return ""
	}
	fields := strings.Fields(strings.TrimSpace(m.Text))
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name)
}

// Button is a selectable reply option. Data is returned to the bot when the
// button is pressed; Label is what the user sees.
type Button struct {
	Label string `json:"label"`
	Data  string `json:"data"`
	// Key replaces the option number in text renderings when set.
	Key string `json:"key,omitempty"`
}

// OutboundMessage is a transport-neutral reply. When a document or photo is
// attached, Text is sent as its caption.
type OutboundMessage struct {
	Text string `json:"text,omitempty"`
	// Buttons are laid out row by row.
	Buttons [][]Button `json:"buttons,omitempty"`
	// DocumentPath is a local file to deliver as a document.
	DocumentPath string `json:"document_path,omitempty"`
	// Filename is the name the recipient sees for DocumentPath.
	Filename string `json:"filename,omitempty"`
	// PhotoPath is a local image to deliver inline.
	PhotoPath string `json:"photo_path,omitempty"`
}

// HasButtons reports whether any button is attached.
func (m OutboundMessage) HasButtons() bool {
	for _, row := range m.Buttons {
		if len(row) > 0 {
			return true
		}
	}
	return false
}

// FlatButtons returns all buttons in reading order.
func (m OutboundMessage) FlatButtons() []Button {
	var out []Button
	for _, row := range m.Buttons {
		out = append(out, row...)
	}
	return out
}

// Validate checks the message against transport limits.
func (m OutboundMessage) Validate() error {
	if m.Text == "" && m.DocumentPath == "" && m.PhotoPath == "" {
		return ErrEmptyOutbound
	}
	if len(m.Text) > MaxMessageLength {
		return ErrMessageTooLong
	}
	for _, b := range m.FlatButtons() {
		if b.Label == "" {
			return ErrEmptyButtonLabel
		}
		if len(b.Label) > MaxButtonLabelLength {
			return ErrButtonLabelTooLong
		}
		if len(b.Data) > MaxButtonDataLength {
			return ErrButtonDataTooLong
		}
	}
	return nil
}

// RenderButtonsAsText appends a numbered option list to text for transports
// without native buttons. Keyed buttons are listed under their key and do not
// take a number.
func RenderButtonsAsText(text string, buttons []Button) string {
	if len(buttons) == 0 {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n")
	n := 0
	for _, btn := range buttons {
		if btn.Key != "" {
			fmt.Fprintf(&b, "\n%s. %s", btn.Key, btn.Label)
			continue
		}
		n++
		fmt.Fprintf(&b, "\n%d. %s", n, btn.Label)
	}
	return b.String()
}
