// Package whatsapp wraps the Whatsmeow client for WhatsApp integration in ResumePipe.
//
// It provides methods for sending text, documents and images, and for
// downloading photos users send to the bot.
package whatsapp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/BTreeMap/ResumePipe/internal/store"
	"github.com/elliotchance/orderedmap/v3"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

// Constants for WhatsApp client configuration
const (
	// DefaultSQLitePath is the default path for WhatsApp/whatsmeow SQLite database
	DefaultSQLitePath = "/var/lib/resumepipe/whatsmeow.db"
	// JIDSuffix is the WhatsApp JID suffix for regular users
	JIDSuffix = "s.whatsapp.net"
	// MaxRememberedImages bounds how many inbound images stay downloadable.
	MaxRememberedImages = 256
)

var (
	ErrNotInitialized = errors.New("whatsapp client not initialized")
	ErrUnknownMedia   = errors.New("no downloadable media for message id")
)

// WhatsAppSender is an interface for sending WhatsApp messages (for production and testing)
type WhatsAppSender interface {
	SendMessage(ctx context.Context, to string, body string) error
	SendDocument(ctx context.Context, to, path, filename, caption string) error
	SendImage(ctx context.Context, to, path, caption string) error
	Download(ctx context.Context, messageID string) (io.ReadCloser, error)
}

// Opts holds configuration options for the WhatsApp client.
// This focuses solely on WhatsApp/whatsmeow database configuration and login settings.
type Opts struct {
	DBDSN       string // WhatsApp/whatsmeow database connection string
	QRPath      string // path to write login QR code
	NumericCode bool   // use numeric login code instead of QR code
}

// Option defines a configuration option for the WhatsApp client.
type Option func(*Opts)

// WithDBDSN sets the WhatsApp/whatsmeow database connection string.
func WithDBDSN(dsn string) Option {
	return func(o *Opts) {
		o.DBDSN = dsn
	}
}

// WithQRCodeOutput instructs the WhatsApp client to write the login QR code to the specified path.
func WithQRCodeOutput(path string) Option {
	return func(o *Opts) {
		o.QRPath = path
	}
}

// WithNumericCode instructs the WhatsApp client to use numeric login code instead of QR code.
func WithNumericCode() Option {
	return func(o *Opts) {
		o.NumericCode = true
	}
}

// Client wraps the Whatsmeow client for modular use
type Client struct {
	waClient *whatsmeow.Client

	mu     sync.Mutex
	images *orderedmap.OrderedMap[string, *waE2E.ImageMessage]
}

// hasForeignKeys reports whether a SQLite DSN enables foreign keys.
func hasForeignKeys(dsn string) bool {
	return strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "foreign_keys")
}

// driverFor picks the database/sql driver name for a whatsmeow DSN.
func driverFor(dsn string) string {
	if store.DetectDSNType(dsn) == "postgres" {
		return "postgres"
	}
	return "sqlite3"
}

// NewClient creates a new WhatsApp client, applying any provided options for customization.
// When the device is not yet linked it runs the QR (or numeric code) login flow.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("WhatsApp NewClient options set", "DBDSN_set", cfg.DBDSN != "", "QRPath_set", cfg.QRPath != "", "NumericCode", cfg.NumericCode)

	dbDSN := cfg.DBDSN
	if dbDSN == "" {
		dbDSN = DefaultSQLitePath
		slog.Debug("No WhatsApp database DSN provided, using default SQLite path", "default_path", dbDSN)
	}

	dbDriver := driverFor(dbDSN)
	if dbDriver == "sqlite3" && !hasForeignKeys(dbDSN) {
		slog.Warn("SQLite database for WhatsApp does not appear to have foreign keys enabled. "+
			"Consider adding '?_foreign_keys=on' to your connection string.",
			"dsn_example", "file:"+dbDSN+"?_foreign_keys=on")
	}

	slog.Debug("WhatsApp NewClient initializing DB store", "driver", dbDriver)
	container, err := sqlstore.New(ctx, dbDriver, dbDSN, waLog.Stdout("Database", "INFO", true))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize WhatsApp database store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device from WhatsApp store: %w", err)
	}

	waClient := whatsmeow.NewClient(deviceStore, waLog.Stdout("Client", "INFO", true))

	if waClient.Store.ID == nil {
		slog.Info("WhatsApp login required; starting QR code flow")
		qrChan, _ := waClient.GetQRChannel(ctx)
		if err := waClient.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect to WhatsApp during login: %w", err)
		}
		writer := io.Writer(os.Stdout)
		if cfg.QRPath != "" {
			f, ferr := os.Create(cfg.QRPath)
			if ferr != nil {
				return nil, fmt.Errorf("failed to create QR file: %w", ferr)
			}
			defer f.Close()
			writer = f
		}
		for evt := range qrChan {
			if evt.Event == "code" {
				if cfg.NumericCode {
					fmt.Fprintln(writer, evt.Code)
				} else {
					qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, writer)
				}
			} else {
				slog.Info("WhatsApp login event", "event", evt.Event)
			}
		}
	} else {
		slog.Debug("WhatsApp already logged in, connecting to server")
		if err := waClient.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect to WhatsApp server: %w", err)
		}
	}
	slog.Info("WhatsApp client connected successfully")
	return &Client{
		waClient: waClient,
		images:   orderedmap.NewOrderedMap[string, *waE2E.ImageMessage](),
	}, nil
}

func (c *Client) ready(to string) error {
	if c.waClient == nil || c.waClient.Store == nil {
		return ErrNotInitialized
	}
	if to == "" {
		return fmt.Errorf("recipient cannot be empty")
	}
	return nil
}

func (c *Client) send(ctx context.Context, to string, msg *waE2E.Message) error {
	jid := types.NewJID(to, JIDSuffix)
	if _, err := c.waClient.SendMessage(ctx, jid, msg); err != nil {
		slog.Error("Client.send: WhatsApp send failed", "error", err, "to", to)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	return nil
}

// SendMessage sends a WhatsApp text message to the specified recipient.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	if err := c.ready(to); err != nil {
		return err
	}
	if body == "" {
		return fmt.Errorf("message body cannot be empty")
	}
	slog.Debug("Client.SendMessage", "to", to, "body_length", len(body))
	return c.send(ctx, to, &waE2E.Message{Conversation: proto.String(body)})
}

// SendDocument uploads the file at path and sends it as a PDF document.
func (c *Client) SendDocument(ctx context.Context, to, path, filename, caption string) error {
	if err := c.ready(to); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	up, err := c.waClient.Upload(ctx, data, whatsmeow.MediaDocument)
	if err != nil {
		return fmt.Errorf("failed to upload document: %w", err)
	}
	doc := &waE2E.DocumentMessage{
		URL:           proto.String(up.URL),
		DirectPath:    proto.String(up.DirectPath),
		MediaKey:      up.MediaKey,
		FileEncSHA256: up.FileEncSHA256,
		FileSHA256:    up.FileSHA256,
		FileLength:    proto.Uint64(up.FileLength),
		Mimetype:      proto.String("application/pdf"),
		FileName:      proto.String(filename),
		Title:         proto.String(filename),
	}
	if caption != "" {
		doc.Caption = proto.String(caption)
	}
	slog.Debug("Client.SendDocument", "to", to, "size", len(data))
	return c.send(ctx, to, &waE2E.Message{DocumentMessage: doc})
}

// SendImage uploads the image at path and sends it inline.
func (c *Client) SendImage(ctx context.Context, to, path, caption string) error {
	if err := c.ready(to); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	up, err := c.waClient.Upload(ctx, data, whatsmeow.MediaImage)
	if err != nil {
		return fmt.Errorf("failed to upload image: %w", err)
	}
	img := &waE2E.ImageMessage{
		URL:           proto.String(up.URL),
		DirectPath:    proto.String(up.DirectPath),
		MediaKey:      up.MediaKey,
		FileEncSHA256: up.FileEncSHA256,
		FileSHA256:    up.FileSHA256,
		FileLength:    proto.Uint64(up.FileLength),
		Mimetype:      proto.String(imageMimetype(path)),
	}
	if caption != "" {
		img.Caption = proto.String(caption)
	}
	return c.send(ctx, to, &waE2E.Message{ImageMessage: img})
}

func imageMimetype(path string) string {
	if strings.HasSuffix(strings.ToLower(path), ".png") {
		return "image/png"
	}
	return "image/jpeg"
}

// RememberImage keeps an inbound image so Download can fetch it later by
// message id. The oldest entries are dropped past MaxRememberedImages.
func (c *Client) RememberImage(messageID string, img *waE2E.ImageMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images.Set(messageID, img)
	for c.images.Len() > MaxRememberedImages {
		c.images.Delete(c.images.Front().Key)
	}
}

// Download fetches and decrypts an image previously passed to RememberImage.
func (c *Client) Download(ctx context.Context, messageID string) (io.ReadCloser, error) {
	if c.waClient == nil {
		return nil, ErrNotInitialized
	}
	c.mu.Lock()
	img, ok := c.images.Get(messageID)
	if ok {
		c.images.Delete(messageID)
	}
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMedia, messageID)
	}
	data, err := c.waClient.Download(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("failed to download image %s: %w", messageID, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// GetClient returns the underlying whatsmeow client for event handling
func (c *Client) GetClient() *whatsmeow.Client {
	return c.waClient
}

// SentMessage records one call on MockClient.
type SentMessage struct {
	To       string
	Body     string
	Path     string
	Filename string
}

// MockClient implements WhatsAppSender without a WhatsApp connection.
// In tests, use whatsapp.NewMockClient() instead of NewClient.
type MockClient struct {
	mu        sync.Mutex
	Texts     []SentMessage
	Documents []SentMessage
	Images    []SentMessage
	// Media maps message ids to the bytes Download returns.
	Media map[string][]byte
	Err   error
}

func NewMockClient() *MockClient {
	return &MockClient{Media: map[string][]byte{}}
}

func (m *MockClient) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Texts = append(m.Texts, SentMessage{To: to, Body: body})
	return nil
}

func (m *MockClient) SendDocument(ctx context.Context, to, path, filename, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Documents = append(m.Documents, SentMessage{To: to, Body: caption, Path: path, Filename: filename})
	return nil
}

func (m *MockClient) SendImage(ctx context.Context, to, path, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Images = append(m.Images, SentMessage{To: to, Body: caption, Path: path})
	return nil
}

func (m *MockClient) Download(ctx context.Context, messageID string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Media[messageID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMedia, messageID)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
