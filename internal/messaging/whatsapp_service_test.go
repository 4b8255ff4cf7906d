package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/BTreeMap/ResumePipe/internal/models"
	"github.com/BTreeMap/ResumePipe/internal/whatsapp"
)

// Ensure WhatsAppService implements Service interface
func TestWhatsAppService_ImplementsService(t *testing.T) {
	var _ Service = (*WhatsAppService)(nil)
}

func TestWhatsAppService_SendMessageRoutesByKind(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)
	ctx := context.Background()

	err := svc.SendMessage(ctx, "94771234567", models.OutboundMessage{
		Text:    "Choose",
		Buttons: [][]models.Button{{{Label: "English", Data: "lang:en"}, {Label: "සිංහල", Data: "lang:si"}}},
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(mock.Texts) != 1 || mock.Texts[0].Body != "Choose\n\n1. English\n2. සිංහල" {
		t.Errorf("unexpected text %+v", mock.Texts)
	}

	if err := svc.SendMessage(ctx, "94771234567", models.OutboundMessage{DocumentPath: "/tmp/r.pdf"}); err != nil {
		t.Fatalf("SendMessage document: %v", err)
	}
	if len(mock.Documents) != 1 || mock.Documents[0].Filename != "r.pdf" {
		t.Errorf("expected filename to default to the base name, got %+v", mock.Documents)
	}

	if err := svc.SendMessage(ctx, "94771234567", models.OutboundMessage{PhotoPath: "/tmp/p.png", Text: "Template 1"}); err != nil {
		t.Fatalf("SendMessage photo: %v", err)
	}
	if len(mock.Images) != 1 || mock.Images[0].Body != "Template 1" {
		t.Errorf("unexpected images %+v", mock.Images)
	}
}

func TestWhatsAppService_SendMessageError(t *testing.T) {
	mock := whatsapp.NewMockClient()
	mock.Err = errors.New("offline")
	svc := NewWhatsAppService(mock)
	if err := svc.SendMessage(context.Background(), "1", models.OutboundMessage{Text: "x"}); !errors.Is(err, mock.Err) {
		t.Errorf("expected client error, got %v", err)
	}
}

func TestWhatsAppService_HandleIncomingMessage(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	info := types.MessageInfo{
		MessageSource: types.MessageSource{Sender: types.NewJID("94771234567", types.DefaultUserServer)},
		ID:            "ABC",
		PushName:      "Jane",
		Timestamp:     time.Unix(100, 0),
	}

	svc.handleIncomingMessage(&events.Message{Info: info, Message: &waE2E.Message{Conversation: proto.String("/start")}})
	msg := <-svc.Responses()
	if msg.UserID != "94771234567" || msg.Text != "/start" || msg.MessageID != "ABC" || msg.Username != "Jane" || msg.Time != 100 {
		t.Errorf("unexpected inbound %+v", msg)
	}

	info.ID = "IMG"
	svc.handleIncomingMessage(&events.Message{Info: info, Message: &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
		Caption: proto.String("me"), Mimetype: proto.String("image/jpeg"),
	}}})
	msg = <-svc.Responses()
	if msg.Attachment == nil || msg.Attachment.FileID != "IMG" || msg.Attachment.ContentType != "image/jpeg" || msg.Text != "me" {
		t.Errorf("unexpected image inbound %+v", msg)
	}

	fromMe := info
	fromMe.IsFromMe = true
	svc.handleIncomingMessage(&events.Message{Info: fromMe, Message: &waE2E.Message{Conversation: proto.String("echo")}})
	select {
	case msg := <-svc.Responses():
		t.Errorf("own messages should be ignored, got %+v", msg)
	default:
	}
}

// Test Start and Stop do not error and close channels
func TestWhatsAppService_StartStop(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("second Stop returned error: %v", err)
	}
	if response, ok := <-svc.Responses(); ok {
		t.Errorf("expected responses channel closed, got value %v", response)
	}
	if err := svc.SendMessage(context.Background(), "1", models.OutboundMessage{Text: "x"}); !errors.Is(err, ErrServiceStopped) {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
}
