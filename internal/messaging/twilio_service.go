package messaging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/BTreeMap/ResumePipe/internal/flow"
	"github.com/BTreeMap/ResumePipe/internal/models"
	"github.com/BTreeMap/ResumePipe/internal/twiliowhatsapp"
)

const (
	// TwilioMaxBodyLength is the WhatsApp body limit on Twilio's API.
	TwilioMaxBodyLength = 1600
	// DefaultMediaTTL is how long a published document stays downloadable.
	DefaultMediaTTL = 10 * time.Minute
	// TwilioSignatureHeader carries the request signature.
	TwilioSignatureHeader = "X-Twilio-Signature"
	// MediaRoutePrefix is where the API serves published media.
	MediaRoutePrefix = "/media/"
)

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// TwilioOpts configures a TwilioService.
type TwilioOpts struct {
	// PublicURL is the externally reachable base URL of this server. It is
	// needed to publish documents and to check webhook signatures.
	PublicURL         string
	MediaDir          string
	MediaTTL          time.Duration
	ValidateSignature bool
	Timer             flow.Timer
}

// TwilioOption defines a configuration option for TwilioService.
type TwilioOption func(*TwilioOpts)

// WithPublicURL sets the externally reachable base URL.
func WithPublicURL(u string) TwilioOption {
	return func(o *TwilioOpts) { o.PublicURL = strings.TrimRight(u, "/") }
}

// WithMediaDir sets where published documents are copied.
func WithMediaDir(dir string) TwilioOption {
	return func(o *TwilioOpts) { o.MediaDir = dir }
}

// WithMediaTTL sets how long published documents are kept.
func WithMediaTTL(d time.Duration) TwilioOption {
	return func(o *TwilioOpts) { o.MediaTTL = d }
}

// WithSignatureValidation rejects webhook requests without a valid X-Twilio-Signature.
func WithSignatureValidation() TwilioOption {
	return func(o *TwilioOpts) { o.ValidateSignature = true }
}

// WithMediaTimer sets the timer used to expire published media.
func WithMediaTimer(t flow.Timer) TwilioOption {
	return func(o *TwilioOpts) { o.Timer = t }
}

// TwilioService implements the Service interface using Twilio API
type TwilioService struct {
	inbox
	client twiliowhatsapp.TwilioWhatsAppSender // Could be real Twilio client or MockClient
	opts   TwilioOpts
	// ownTimer is set when the service created its timer and must stop it.
	ownTimer bool
	once     sync.Once
}

// NewTwilioService creates a new TwilioService with a real or mock Twilio client
func NewTwilioService(client twiliowhatsapp.TwilioWhatsAppSender, opts ...TwilioOption) *TwilioService {
	cfg := TwilioOpts{MediaTTL: DefaultMediaTTL}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MediaDir == "" {
		cfg.MediaDir = filepath.Join(os.TempDir(), "resumepipe-media")
	}
	own := cfg.Timer == nil
	if own {
		cfg.Timer = flow.NewSimpleTimer()
	}
	return &TwilioService{
		inbox:    newInbox("TwilioService"),
		client:   client,
		opts:     cfg,
		ownTimer: own,
	}
}

func (s *TwilioService) Channel() models.Channel { return models.ChannelTwilio }

// NativeButtons is false: Twilio's free-form WhatsApp messages carry no buttons.
func (s *TwilioService) NativeButtons() bool { return false }

// Start prepares the media directory.
func (s *TwilioService) Start(ctx context.Context) error {
	if err := os.MkdirAll(s.opts.MediaDir, 0o755); err != nil {
		return fmt.Errorf("failed to create media dir: %w", err)
	}
	return nil
}

// Stop closes the responses channel and cancels pending media expiry.
func (s *TwilioService) Stop() error {
	s.once.Do(func() {
		s.inbox.close()
		if s.ownTimer {
			s.opts.Timer.Stop()
		}
	})
	return nil
}

// Responses returns the channel for incoming messages
func (s *TwilioService) Responses() <-chan models.InboundMessage {
	return s.responses
}

// SendMessage renders buttons as a numbered list and splits long text.
// Documents and photos are published under MediaRoutePrefix for Twilio to fetch.
func (s *TwilioService) SendMessage(ctx context.Context, to string, msg models.OutboundMessage) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	if to == "" {
		return models.ErrEmptyRecipient
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	text := msg.Text
	if msg.HasButtons() {
		text = models.RenderButtonsAsText(text, msg.FlatButtons())
	}

	if path := firstNonEmpty(msg.DocumentPath, msg.PhotoPath); path != "" {
		mediaURL, err := s.publish(path, msg.Filename)
		if err != nil {
			return err
		}
		caption, rest := splitAt(text, TwilioMaxBodyLength)
		if err := s.client.SendMedia(ctx, to, caption, mediaURL); err != nil {
			return err
		}
		text = rest
	}

	for _, chunk := range splitText(text, TwilioMaxBodyLength) {
		if err := s.client.SendMessage(ctx, to, chunk); err != nil {
			return err
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// publish copies path into the media dir under an unguessable name and
// schedules its removal.
func (s *TwilioService) publish(path, filename string) (string, error) {
	if s.opts.PublicURL == "" {
		return "", fmt.Errorf("cannot send media: public URL not configured")
	}
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = filepath.Ext(path)
	}
	name := uuid.NewString() + ext
	dst := filepath.Join(s.opts.MediaDir, name)
	if err := copyFile(path, dst); err != nil {
		return "", fmt.Errorf("failed to publish media: %w", err)
	}
	if _, err := s.opts.Timer.ScheduleAfter(s.opts.MediaTTL, "expire media "+name, func() {
		if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
			slog.Warn("TwilioService.publish: media cleanup failed", "name", name, "error", err)
		}
	}); err != nil {
		slog.Warn("TwilioService.publish: could not schedule media cleanup", "name", name, "error", err)
	}
	return s.opts.PublicURL + MediaRoutePrefix + name, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

// MediaFile resolves a published media name to its local path.
func (s *TwilioService) MediaFile(name string) (string, bool) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", false
	}
	path := filepath.Join(s.opts.MediaDir, name)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}

// DownloadAttachment fetches inbound media; FileID holds the Twilio media URL.
func (s *TwilioService) DownloadAttachment(ctx context.Context, att models.Attachment) (io.ReadCloser, error) {
	return s.client.Download(ctx, att.FileID)
}

// splitAt cuts text at the last newline (or rune boundary) before limit bytes.
func splitAt(text string, limit int) (head, rest string) {
	if len(text) <= limit {
		return text, ""
	}
	cut := strings.LastIndexByte(text[:limit], '\n')
	if cut <= 0 {
		cut = limit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
	}
	return text[:cut], strings.TrimLeft(text[cut:], "\n")
}

func splitText(text string, limit int) []string {
	var out []string
	for text != "" {
		var head string
		head, text = splitAt(text, limit)
		out = append(out, head)
	}
	return out
}

// decodeTwilioForm converts a Twilio messaging webhook form.
func decodeTwilioForm(form map[string]string) (models.InboundMessage, bool) {
	from := form["From"]
	if from == "" {
		return models.InboundMessage{}, false
	}
	msg := models.InboundMessage{
		Channel:   models.ChannelTwilio,
		MessageID: form["MessageSid"],
		UserID:    twiliowhatsapp.StripAddress(from),
		Username:  form["ProfileName"],
		Text:      form["Body"],
		Time:      time.Now().Unix(),
	}
	if mediaURL := form["MediaUrl0"]; mediaURL != "" {
		msg.Attachment = &models.Attachment{FileID: mediaURL, ContentType: form["MediaContentType0"]}
	}
	if msg.Username == "" {
		msg.Username = msg.UserID
	}
	if msg.Text == "" && msg.Attachment == nil {
		return msg, false
	}
	return msg, true
}

// TwilioWebhookHandler handles inbound Twilio webhook requests.
// It parses incoming messages and emits them into the Responses() channel.
func (s *TwilioService) TwilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("Failed to parse Twilio webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	form := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			form[k] = v[0]
		}
	}

	if s.opts.ValidateSignature {
		url := s.opts.PublicURL + r.URL.RequestURI()
		if !s.client.ValidateRequest(url, form, r.Header.Get(TwilioSignatureHeader)) {
			slog.Warn("Twilio webhook rejected: bad signature")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	msg, ok := decodeTwilioForm(form)
	if !ok {
		slog.Warn("Twilio webhook missing fields", "from_set", form["From"] != "", "message_sid", form["MessageSid"])
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}
	slog.Debug("Inbound WhatsApp message from Twilio", "user_id", msg.UserID, "message_id", msg.MessageID, "media", msg.Attachment != nil)
	s.emit(msg)

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, emptyTwiML)
}
