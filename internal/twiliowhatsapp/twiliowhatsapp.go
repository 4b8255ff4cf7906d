// Package twiliowhatsapp wraps the Twilio API for WhatsApp integration in ResumePipe.
package twiliowhatsapp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/twilio/twilio-go"
	twilioClient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// AddressPrefix marks a WhatsApp address in Twilio's To/From fields.
const AddressPrefix = "whatsapp:"

// DefaultDownloadTimeout bounds one inbound media download.
const DefaultDownloadTimeout = 30 * time.Second

// TwilioWhatsAppSender is the subset of the Twilio API the bot uses.
type TwilioWhatsAppSender interface {
	SendMessage(ctx context.Context, to string, body string) error
	SendMedia(ctx context.Context, to string, body string, mediaURL string) error
	Download(ctx context.Context, mediaURL string) (io.ReadCloser, error)
	ValidateRequest(url string, params map[string]string, signature string) bool
}

// Opts holds configuration options for the Twilio WhatsApp client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromWhats  string
	HTTPClient *http.Client
}

// Option defines a configuration option for the Twilio WhatsApp client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token, used for the REST API, media
// downloads and webhook signature checks.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromWhats sets the sending number, with or without the "whatsapp:" prefix.
func WithFromWhats(from string) Option {
	return func(o *Opts) { o.FromWhats = from }
}

// WithHTTPClient overrides the client used for media downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client wraps Twilio REST API for WhatsApp
type Client struct {
	client     *twilio.RestClient
	validator  twilioClient.RequestValidator
	httpClient *http.Client
	accountSID string
	authToken  string
	fromWhats  string // WhatsApp number in "whatsapp:+1234567890" format
}

// Address prefixes a phone number for Twilio's WhatsApp channel.
func Address(number string) string {
	if strings.HasPrefix(number, AddressPrefix) {
		return number
	}
	return AddressPrefix + number
}

// StripAddress removes the "whatsapp:" prefix from a Twilio address.
func StripAddress(addr string) string {
	return strings.TrimPrefix(addr, AddressPrefix)
}

func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	// Fallback to environment variables if not provided via options
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromWhats == "" {
		cfg.FromWhats = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromWhats_set", cfg.FromWhats != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromWhats == "" {
		return nil, fmt.Errorf("fromWhats number must be provided")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultDownloadTimeout}
	}

	client := twilio.NewRestClientWithParams(
		twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		},
	)

	return &Client{
		client:     client,
		validator:  twilioClient.NewRequestValidator(cfg.AuthToken),
		httpClient: cfg.HTTPClient,
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromWhats:  Address(cfg.FromWhats),
	}, nil
}

// SendMessage sends a WhatsApp message using Twilio API
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(Address(to))
	params.SetFrom(c.fromWhats)
	params.SetBody(body)

	if _, err := c.client.Api.CreateMessage(params); err != nil {
		slog.Error("Twilio SendMessage failed", "to", to, "error", err)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}

	slog.Debug("Twilio message sent", "to", to)
	return nil
}

// SendMedia sends a message whose attachment Twilio fetches from mediaURL.
// The URL must be publicly reachable until Twilio has retrieved it.
func (c *Client) SendMedia(ctx context.Context, to string, body string, mediaURL string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(Address(to))
	params.SetFrom(c.fromWhats)
	if body != "" {
		params.SetBody(body)
	}
	params.SetMediaUrl([]string{mediaURL})

	if _, err := c.client.Api.CreateMessage(params); err != nil {
		slog.Error("Twilio SendMedia failed", "to", to, "error", err)
		return fmt.Errorf("failed to send media to %s: %w", to, err)
	}
	slog.Debug("Twilio media message sent", "to", to)
	return nil
}

// Download fetches inbound media. Twilio media URLs require the account's
// basic auth credentials.
func (c *Client) Download(ctx context.Context, mediaURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build media request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download media: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download media: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// ValidateRequest checks the X-Twilio-Signature of a webhook request.
func (c *Client) ValidateRequest(url string, params map[string]string, signature string) bool {
	return c.validator.Validate(url, params, signature)
}

// SentMessage records one call on MockClient.
type SentMessage struct {
	To       string
	Body     string
	MediaURL string
}

// MockClient implements TwilioWhatsAppSender in memory.
type MockClient struct {
	mu           sync.Mutex
	SentMessages []SentMessage
	// Media maps URLs to the bytes Download returns.
	Media map[string][]byte
	// ValidSignature is the only signature ValidateRequest accepts.
	ValidSignature string
	Err            error
}

func NewMockClient() *MockClient {
	return &MockClient{
		SentMessages: []SentMessage{},
		Media:        map[string][]byte{},
	}
}

func (m *MockClient) SendMessage(ctx context.Context, to string, body string) error {
	return m.SendMedia(ctx, to, body, "")
}

func (m *MockClient) SendMedia(ctx context.Context, to string, body string, mediaURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body, MediaURL: mediaURL})
	return nil
}

func (m *MockClient) Download(ctx context.Context, mediaURL string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Media[mediaURL]
	if !ok {
		return nil, fmt.Errorf("failed to download media: status %d", http.StatusNotFound)
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func (m *MockClient) ValidateRequest(url string, params map[string]string, signature string) bool {
	return m.ValidSignature != "" && signature == m.ValidSignature
}

// Sent returns a copy of the recorded messages.
func (m *MockClient) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.SentMessages...)
}
