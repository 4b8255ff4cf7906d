package messaging

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/BTreeMap/ResumePipe/internal/models"
)

// TelegramSecretHeader carries the webhook secret Telegram echoes back.
const TelegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// DefaultPollTimeout is the long-poll timeout in seconds for getUpdates.
const DefaultPollTimeout = 60

// TelegramBot is the part of *tgbotapi.BotAPI the service uses.
type TelegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// NewTelegramBot connects to the Bot API with token.
func NewTelegramBot(token string) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token must be provided")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	slog.Info("Telegram bot authorized", "username", bot.Self.UserName)
	return bot, nil
}

// TelegramOpts configures a TelegramService.
type TelegramOpts struct {
	WebhookSecret string
	Polling       bool
	HTTPClient    *http.Client
}

// TelegramOption defines a configuration option for TelegramService.
type TelegramOption func(*TelegramOpts)

// WithWebhookSecret requires webhook requests to carry secret in TelegramSecretHeader.
func WithWebhookSecret(secret string) TelegramOption {
	return func(o *TelegramOpts) { o.WebhookSecret = secret }
}

// WithPolling makes Start pull updates with getUpdates instead of waiting for webhooks.
func WithPolling() TelegramOption {
	return func(o *TelegramOpts) { o.Polling = true }
}

// WithDownloadClient overrides the HTTP client used to fetch user files.
func WithDownloadClient(c *http.Client) TelegramOption {
	return func(o *TelegramOpts) { o.HTTPClient = c }
}

// TelegramService implements Service over the Telegram Bot API.
type TelegramService struct {
	inbox
	bot  TelegramBot
	opts TelegramOpts
	done chan struct{}
	once sync.Once
}

// NewTelegramService creates a TelegramService wrapping bot.
func NewTelegramService(bot TelegramBot, opts ...TelegramOption) *TelegramService {
	cfg := TelegramOpts{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &TelegramService{
		inbox: newInbox("TelegramService"),
		bot:   bot,
		opts:  cfg,
		done:  make(chan struct{}),
	}
}

func (s *TelegramService) Channel() models.Channel { return models.ChannelTelegram }

func (s *TelegramService) NativeButtons() bool { return true }

// Start begins long polling when configured; in webhook mode it does nothing.
func (s *TelegramService) Start(ctx context.Context) error {
	if !s.opts.Polling {
		slog.Debug("TelegramService Start: webhook mode")
		return nil
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = DefaultPollTimeout
	updates := s.bot.GetUpdatesChan(u)
	slog.Info("TelegramService Start: polling for updates")
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				s.HandleUpdate(update)
			}
		}
	}()
	return nil
}

// Stop stops polling and closes the responses channel.
func (s *TelegramService) Stop() error {
	s.once.Do(func() {
		close(s.done)
		if s.opts.Polling {
			s.bot.StopReceivingUpdates()
		}
		s.inbox.close()
		slog.Info("TelegramService stopped")
	})
	return nil
}

// Responses returns a channel of incoming user messages.
func (s *TelegramService) Responses() <-chan models.InboundMessage {
	return s.responses
}

func parseChatID(to string) (int64, error) {
	if to == "" {
		return 0, models.ErrEmptyRecipient
	}
	id, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q: %w", to, err)
	}
	return id, nil
}

func inlineKeyboard(rows [][]models.Button) tgbotapi.InlineKeyboardMarkup {
	var kb [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		var btns []tgbotapi.InlineKeyboardButton
		for _, b := range row {
			btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		kb = append(kb, tgbotapi.NewInlineKeyboardRow(btns...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(kb...)
}

// SendMessage sends text with an inline keyboard, a document or a photo.
// Files are read during the call, so the caller may delete them afterwards.
func (s *TelegramService) SendMessage(ctx context.Context, to string, msg models.OutboundMessage) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	chatID, err := parseChatID(to)
	if err != nil {
		return err
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	var c tgbotapi.Chattable
	switch {
	case msg.DocumentPath != "":
		data, err := os.ReadFile(msg.DocumentPath)
		if err != nil {
			return fmt.Errorf("failed to read document: %w", err)
		}
		name := msg.Filename
		if name == "" {
			name = filepath.Base(msg.DocumentPath)
		}
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
		doc.Caption = msg.Text
		c = doc
	case msg.PhotoPath != "":
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(msg.PhotoPath))
		photo.Caption = msg.Text
		c = photo
	default:
		text := tgbotapi.NewMessage(chatID, msg.Text)
		if msg.HasButtons() {
			text.ReplyMarkup = inlineKeyboard(msg.Buttons)
		}
		c = text
	}

	if _, err := s.bot.Send(c); err != nil {
		slog.Error("TelegramService.SendMessage: send failed", "to", to, "error", err)
		return fmt.Errorf("failed to send telegram message to %s: %w", to, err)
	}
	slog.Debug("TelegramService.SendMessage: sent", "to", to, "buttons", len(msg.FlatButtons()))
	return nil
}

// DownloadAttachment resolves a file_id and streams the file.
func (s *TelegramService) DownloadAttachment(ctx context.Context, att models.Attachment) (io.ReadCloser, error) {
	url, err := s.bot.GetFileDirectURL(att.FileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve telegram file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download telegram file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download telegram file: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func displayName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// DecodeUpdate converts a Telegram update. ok is false for update kinds the
// bot ignores (edits, channel posts, stickers without text).
func DecodeUpdate(update tgbotapi.Update) (msg models.InboundMessage, ok bool) {
	msg = models.InboundMessage{
		Channel:   models.ChannelTelegram,
		MessageID: strconv.Itoa(update.UpdateID),
		Time:      time.Now().Unix(),
	}

	if cq := update.CallbackQuery; cq != nil {
		if cq.From == nil {
			return msg, false
		}
		chatID := cq.From.ID
		if cq.Message != nil && cq.Message.Chat != nil {
			chatID = cq.Message.Chat.ID
		}
		msg.UserID = strconv.FormatInt(chatID, 10)
		msg.Username = displayName(cq.From)
		msg.Data = cq.Data
		return msg, true
	}

	m := update.Message
	if m == nil || m.Chat == nil {
		return msg, false
	}
	msg.UserID = strconv.FormatInt(m.Chat.ID, 10)
	msg.Username = displayName(m.From)
	msg.Text = m.Text

	switch {
	case len(m.Photo) > 0:
		// sizes are ascending; the last one is the original
		largest := m.Photo[len(m.Photo)-1]
		msg.Attachment = &models.Attachment{FileID: largest.FileID, ContentType: "image/jpeg"}
		msg.Text = m.Caption
	case m.Document != nil && strings.HasPrefix(m.Document.MimeType, "image/"):
		msg.Attachment = &models.Attachment{FileID: m.Document.FileID, ContentType: m.Document.MimeType}
		msg.Text = m.Caption
	}

	if msg.Text == "" && msg.Attachment == nil {
		return msg, false
	}
	return msg, true
}

// HandleUpdate answers button presses and queues the decoded message.
func (s *TelegramService) HandleUpdate(update tgbotapi.Update) {
	if cq := update.CallbackQuery; cq != nil {
		// stops the client-side spinner
		if _, err := s.bot.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
			slog.Warn("TelegramService.HandleUpdate: callback answer failed", "error", err)
		}
	}
	msg, ok := DecodeUpdate(update)
	if !ok {
		slog.Debug("TelegramService.HandleUpdate: ignoring update", "update_id", update.UpdateID)
		return
	}
	s.emit(msg)
}

// TelegramWebhookHandler handles inbound Telegram webhook requests.
func (s *TelegramService) TelegramWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if s.opts.WebhookSecret != "" {
		got := r.Header.Get(TelegramSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.WebhookSecret)) != 1 {
			slog.Warn("TelegramService webhook rejected: bad secret token")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		slog.Error("Failed to decode Telegram update", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	s.HandleUpdate(update)
	w.WriteHeader(http.StatusOK)
}
