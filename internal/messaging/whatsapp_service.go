package messaging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/BTreeMap/ResumePipe/internal/models"
	"github.com/BTreeMap/ResumePipe/internal/whatsapp"
)

// WhatsAppService implements Service using the Whatsmeow-based whatsapp client.
type WhatsAppService struct {
	inbox
	client    whatsapp.WhatsAppSender
	waClient  *whatsapp.Client // Access to underlying client for event handling
	handlerID uint32
	once      sync.Once
}

// NewWhatsAppService creates a new WhatsAppService wrapping the given WhatsAppSender.
func NewWhatsAppService(client whatsapp.WhatsAppSender) *WhatsAppService {
	service := &WhatsAppService{
		inbox:  newInbox("WhatsAppService"),
		client: client,
	}

	// If the client is a full Client (not just an interface), store it for event handling
	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}

	return service
}

func (s *WhatsAppService) Channel() models.Channel { return models.ChannelWhatsApp }

// NativeButtons is false: options are sent as a numbered list.
func (s *WhatsAppService) NativeButtons() bool { return false }

// Start registers the whatsmeow event handler.
func (s *WhatsAppService) Start(ctx context.Context) error {
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Debug("WhatsAppService no full client available, skipping event handling (likely mock)")
		return nil
	}
	s.handlerID = s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		if v, ok := evt.(*events.Message); ok {
			s.handleIncomingMessage(v)
		}
	})
	slog.Debug("WhatsAppService event handler registered")
	return nil
}

// Stop detaches from the client and closes the responses channel.
func (s *WhatsAppService) Stop() error {
	s.once.Do(func() {
		if s.waClient != nil && s.waClient.GetClient() != nil {
			s.waClient.GetClient().RemoveEventHandler(s.handlerID)
			s.waClient.GetClient().Disconnect()
		}
		s.inbox.close()
		slog.Info("WhatsAppService stopped and channels closed")
	})
	return nil
}

// Responses returns a channel of incoming user messages.
func (s *WhatsAppService) Responses() <-chan models.InboundMessage {
	return s.responses
}

// SendMessage sends text with buttons rendered as a numbered list, or uploads
// a document or image with the text as caption.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, msg models.OutboundMessage) error {
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

	var err error
	switch {
	case msg.DocumentPath != "":
		name := msg.Filename
		if name == "" {
			name = filepath.Base(msg.DocumentPath)
		}
		err = s.client.SendDocument(ctx, to, msg.DocumentPath, name, text)
	case msg.PhotoPath != "":
		err = s.client.SendImage(ctx, to, msg.PhotoPath, text)
	default:
		err = s.client.SendMessage(ctx, to, text)
	}
	if err != nil {
		slog.Error("WhatsAppService SendMessage error", "error", err, "to", to)
		return err
	}
	return nil
}

// DownloadAttachment fetches an inbound image; FileID is the message id.
func (s *WhatsAppService) DownloadAttachment(ctx context.Context, att models.Attachment) (io.ReadCloser, error) {
	return s.client.Download(ctx, att.FileID)
}

// handleIncomingMessage converts direct text and image messages.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil || evt.Info.IsFromMe || evt.Info.IsGroup {
		return
	}

	msg := models.InboundMessage{
		Channel:   models.ChannelWhatsApp,
		MessageID: evt.Info.ID,
		UserID:    evt.Info.Sender.User,
		Username:  evt.Info.PushName,
		Time:      evt.Info.Timestamp.Unix(),
	}

	switch {
	case evt.Message.GetConversation() != "":
		msg.Text = evt.Message.GetConversation()
	case evt.Message.GetExtendedTextMessage() != nil:
		msg.Text = evt.Message.GetExtendedTextMessage().GetText()
	case evt.Message.GetImageMessage() != nil:
		img := evt.Message.GetImageMessage()
		if s.waClient != nil {
			s.waClient.RememberImage(evt.Info.ID, img)
		}
		msg.Text = img.GetCaption()
		msg.Attachment = &models.Attachment{FileID: evt.Info.ID, ContentType: img.GetMimetype()}
	default:
		slog.Debug("WhatsAppService ignoring unsupported message", "from", evt.Info.Sender.String())
		return
	}

	if msg.Username == "" {
		msg.Username = msg.UserID
	}
	slog.Debug("WhatsAppService processing incoming message", "user_id", msg.UserID, "message_id", msg.MessageID)
	s.emit(msg)
}
