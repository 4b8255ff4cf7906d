package messaging

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/BTreeMap/ResumePipe/internal/models"
)

type fakeBot struct {
	mu        sync.Mutex
	sent      []tgbotapi.Chattable
	requests  []tgbotapi.Chattable
	fileURL   string
	sendErr   error
	updates   chan tgbotapi.Update
	stopCalls int
}

func newFakeBot() *fakeBot {
	return &fakeBot{updates: make(chan tgbotapi.Update, 10)}
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return tgbotapi.Message{}, b.sendErr
	}
	b.sent = append(b.sent, c)
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) GetFileDirectURL(fileID string) (string, error) {
	if b.fileURL == "" {
		return "", errors.New("file not found")
	}
	return b.fileURL + "/" + fileID, nil
}

func (b *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return b.updates
}

func (b *fakeBot) StopReceivingUpdates() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopCalls++
}

func (b *fakeBot) lastSent(t *testing.T) tgbotapi.Chattable {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.sent) == 0 {
		t.Fatal("nothing sent")
	}
	return b.sent[len(b.sent)-1]
}

func TestTelegramService_ImplementsService(t *testing.T) {
	var _ Service = (*TelegramService)(nil)
}

func TestTelegramService_SendMessageWithKeyboard(t *testing.T) {
	bot := newFakeBot()
	svc := NewTelegramService(bot)
	msg := models.OutboundMessage{
		Text: "Pick a color",
		Buttons: [][]models.Button{
			{{Label: "Blue", Data: "color:Blue"}, {Label: "Red", Data: "color:Red"}},
			{},
			{{Label: "Green", Data: "color:Green"}},
		},
	}
	if err := svc.SendMessage(context.Background(), "42", msg); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	cfg, ok := bot.lastSent(t).(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("expected a MessageConfig, got %T", bot.lastSent(t))
	}
	if cfg.ChatID != 42 || cfg.Text != "Pick a color" {
		t.Errorf("unexpected message %+v", cfg)
	}
	kb, ok := cfg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("expected inline keyboard, got %T", cfg.ReplyMarkup)
	}
	if len(kb.InlineKeyboard) != 2 || len(kb.InlineKeyboard[0]) != 2 {
		t.Fatalf("expected empty rows to be skipped, got %d rows", len(kb.InlineKeyboard))
	}
	if data := kb.InlineKeyboard[1][0].CallbackData; data == nil || *data != "color:Green" {
		t.Errorf("unexpected callback data %v", data)
	}
}

func TestTelegramService_SendDocumentReadsFileEagerly(t *testing.T) {
	bot := newFakeBot()
	svc := NewTelegramService(bot)
	path := filepath.Join(t.TempDir(), "out.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o600); err != nil {
		t.Fatal(err)
	}
	err := svc.SendMessage(context.Background(), "42", models.OutboundMessage{
		Text: "Here is your resume", DocumentPath: path, Filename: "Jane_Doe_resume.pdf",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	// the caller deletes the file right after sending
	os.Remove(path)

	doc, ok := bot.lastSent(t).(tgbotapi.DocumentConfig)
	if !ok {
		t.Fatalf("expected a DocumentConfig, got %T", bot.lastSent(t))
	}
	file, ok := doc.File.(tgbotapi.FileBytes)
	if !ok || file.Name != "Jane_Doe_resume.pdf" || string(file.Bytes) != "%PDF-1.4" {
		t.Errorf("unexpected document payload %+v", doc.File)
	}
	if doc.Caption != "Here is your resume" {
		t.Errorf("unexpected caption %q", doc.Caption)
	}
}

func TestTelegramService_SendMessageRejectsBadInput(t *testing.T) {
	svc := NewTelegramService(newFakeBot())
	ctx := context.Background()
	if err := svc.SendMessage(ctx, "", models.OutboundMessage{Text: "x"}); !errors.Is(err, models.ErrEmptyRecipient) {
		t.Errorf("expected ErrEmptyRecipient, got %v", err)
	}
	if err := svc.SendMessage(ctx, "not-a-number", models.OutboundMessage{Text: "x"}); err == nil {
		t.Error("expected error for non-numeric chat id")
	}
	if err := svc.SendMessage(ctx, "42", models.OutboundMessage{}); !errors.Is(err, models.ErrEmptyOutbound) {
		t.Errorf("expected ErrEmptyOutbound, got %v", err)
	}
	svc.Stop()
	if err := svc.SendMessage(ctx, "42", models.OutboundMessage{Text: "x"}); !errors.Is(err, ErrServiceStopped) {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
}

func TestDecodeUpdate(t *testing.T) {
	from := &tgbotapi.User{ID: 42, FirstName: "Jane", LastName: "Doe"}
	chat := &tgbotapi.Chat{ID: 42}

	msg, ok := DecodeUpdate(tgbotapi.Update{UpdateID: 7, Message: &tgbotapi.Message{From: from, Chat: chat, Text: "/start"}})
	if !ok || msg.UserID != "42" || msg.MessageID != "7" || msg.Text != "/start" || msg.Username != "Jane Doe" {
		t.Errorf("unexpected text decode %+v", msg)
	}

	msg, ok = DecodeUpdate(tgbotapi.Update{UpdateID: 8, CallbackQuery: &tgbotapi.CallbackQuery{
		ID: "cb", From: &tgbotapi.User{ID: 42, UserName: "jane"}, Data: "lang:en",
		Message: &tgbotapi.Message{Chat: chat},
	}})
	if !ok || msg.Data != "lang:en" || msg.Username != "jane" || msg.UserID != "42" {
		t.Errorf("unexpected callback decode %+v", msg)
	}

	msg, ok = DecodeUpdate(tgbotapi.Update{UpdateID: 9, Message: &tgbotapi.Message{
		From: from, Chat: chat, Caption: "me",
		Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}},
	}})
	if !ok || msg.Attachment == nil || msg.Attachment.FileID != "large" || msg.Text != "me" {
		t.Errorf("expected the largest photo size, got %+v", msg)
	}

	msg, ok = DecodeUpdate(tgbotapi.Update{UpdateID: 10, Message: &tgbotapi.Message{
		From: from, Chat: chat, Document: &tgbotapi.Document{FileID: "doc", MimeType: "image/png"},
	}})
	if !ok || msg.Attachment == nil || msg.Attachment.ContentType != "image/png" {
		t.Errorf("expected image document as attachment, got %+v", msg)
	}

	if _, ok := DecodeUpdate(tgbotapi.Update{UpdateID: 11, Message: &tgbotapi.Message{
		From: from, Chat: chat, Document: &tgbotapi.Document{FileID: "doc", MimeType: "application/pdf"},
	}}); ok {
		t.Error("non-image document without text should be ignored")
	}
	if _, ok := DecodeUpdate(tgbotapi.Update{UpdateID: 12}); ok {
		t.Error("empty update should be ignored")
	}
}

func TestTelegramService_CallbackIsAnswered(t *testing.T) {
	bot := newFakeBot()
	svc := NewTelegramService(bot)
	svc.HandleUpdate(tgbotapi.Update{UpdateID: 1, CallbackQuery: &tgbotapi.CallbackQuery{
		ID: "cb1", From: &tgbotapi.User{ID: 5}, Data: "form:steps",
	}})

	if len(bot.requests) != 1 {
		t.Fatalf("expected callback answer, got %d requests", len(bot.requests))
	}
	if cb, ok := bot.requests[0].(tgbotapi.CallbackConfig); !ok || cb.CallbackQueryID != "cb1" {
		t.Errorf("unexpected request %+v", bot.requests[0])
	}
	select {
	case msg := <-svc.Responses():
		if msg.Data != "form:steps" || msg.UserID != "5" {
			t.Errorf("unexpected inbound %+v", msg)
		}
	default:
		t.Fatal("expected an inbound message")
	}
}

func TestTelegramService_WebhookSecret(t *testing.T) {
	svc := NewTelegramService(newFakeBot(), WithWebhookSecret("s3cret"))
	body := `{"update_id":10,"message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"from":{"id":42,"first_name":"Jane","username":"jane"},"text":"/start"}}`

	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(body))
	rr := httptest.NewRecorder()
	svc.TelegramWebhookHandler(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without secret, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(body))
	req.Header.Set(TelegramSecretHeader, "s3cret")
	rr = httptest.NewRecorder()
	svc.TelegramWebhookHandler(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	msg := <-svc.Responses()
	if msg.MessageID != "10" || msg.UserID != "42" || msg.Username != "jane" || msg.Text != "/start" {
		t.Errorf("unexpected inbound %+v", msg)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader("{not json"))
	req.Header.Set(TelegramSecretHeader, "s3cret")
	rr = httptest.NewRecorder()
	svc.TelegramWebhookHandler(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad JSON, got %d", rr.Code)
	}
}

func TestTelegramService_DownloadAttachment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/photo-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("jpeg"))
	}))
	defer srv.Close()

	bot := newFakeBot()
	bot.fileURL = srv.URL
	svc := NewTelegramService(bot)
	rc, err := svc.DownloadAttachment(context.Background(), models.Attachment{FileID: "photo-1"})
	if err != nil {
		t.Fatalf("DownloadAttachment: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "jpeg" {
		t.Errorf("unexpected body %q", data)
	}
	if _, err := svc.DownloadAttachment(context.Background(), models.Attachment{FileID: "missing"}); err == nil {
		t.Error("expected error for 404")
	}
}

func TestTelegramService_PollingStartStop(t *testing.T) {
	bot := newFakeBot()
	svc := NewTelegramService(bot, WithPolling())
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	bot.updates <- tgbotapi.Update{UpdateID: 3, Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: "hello"}}
	msg := <-svc.Responses()
	if msg.Text != "hello" {
		t.Errorf("unexpected polled message %+v", msg)
	}
	svc.Stop()
	svc.Stop()
	if bot.stopCalls != 1 {
		t.Errorf("expected polling stopped once, got %d", bot.stopCalls)
	}
	if _, ok := <-svc.Responses(); ok {
		t.Error("expected responses channel closed")
	}
}
