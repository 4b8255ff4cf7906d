// Package messaging connects the conversation engine to chat transports.
//
// Each transport (Telegram, Twilio's WhatsApp API, a directly linked WhatsApp
// device) is a Service: it decodes inbound events into models.InboundMessage
// values on its Responses channel and delivers models.OutboundMessage replies.
// ResponseHandler drains those channels into the engine.
package messaging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/ResumePipe/internal/models"
)

// Constants for Service configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for response channels
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking channel operations
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned by operations on a stopped service.
var ErrServiceStopped = errors.New("messaging service stopped")

// Service defines a pluggable chat transport.
type Service interface {
	// Channel identifies the transport.
	Channel() models.Channel

	// SendMessage delivers a reply to a user id previously seen on Responses.
	SendMessage(ctx context.Context, to string, msg models.OutboundMessage) error

	// DownloadAttachment opens a file the user sent.
	DownloadAttachment(ctx context.Context, att models.Attachment) (io.ReadCloser, error)

	// NativeButtons reports whether the transport shows tappable buttons.
	NativeButtons() bool

	// Start begins any background processing (e.g., polling for events).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Responses returns a channel of incoming user messages.
	Responses() <-chan models.InboundMessage
}

// inbox is the responses channel shared by every service, with a stop flag
// so late webhook deliveries never write to a closed channel.
type inbox struct {
	name      string
	mu        sync.RWMutex
	stopped   bool
	responses chan models.InboundMessage
}

func newInbox(name string) inbox {
	return inbox{
		name:      name,
		responses: make(chan models.InboundMessage, DefaultChannelBufferSize),
	}
}

func (b *inbox) isStopped() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stopped
}

// emit queues msg, dropping it if the service is stopped or the consumer
// stays blocked past DefaultChannelTimeout.
func (b *inbox) emit(msg models.InboundMessage) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		return false
	}
	select {
	case b.responses <- msg:
		return true
	case <-time.After(DefaultChannelTimeout):
		slog.Warn(b.name+".emit: response channel full, dropping message", "user_id", msg.UserID, "message_id", msg.MessageID)
		return false
	}
}

// close marks the inbox stopped and closes the channel once.
func (b *inbox) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.stopped = true
	close(b.responses)
}
