package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/ResumePipe/internal/metrics"
	"github.com/BTreeMap/ResumePipe/internal/models"
	"github.com/BTreeMap/ResumePipe/internal/store"
)

const (
	// DefaultUserQueueSize bounds how many messages one user can have waiting.
	DefaultUserQueueSize = 32
	// DefaultQueueIdle is how long an empty per-user queue lives before its worker exits.
	DefaultQueueIdle = 30 * time.Second
	// DefaultDedupRetention is how long inbound message ids are remembered.
	DefaultDedupRetention = 48 * time.Hour
	// DefaultPruneInterval is how often old dedup records are deleted.
	DefaultPruneInterval = time.Hour
)

// MessageProcessor consumes decoded inbound messages. *flow.Engine implements it.
type MessageProcessor interface {
	HandleMessage(ctx context.Context, msg models.InboundMessage) error
}

// ResponseHandlerOpts configures a ResponseHandler.
type ResponseHandlerOpts struct {
	Dedup         store.DedupRepo
	Metrics       metrics.Recorder
	Retention     time.Duration
	PruneInterval time.Duration
	QueueIdle     time.Duration
}

// ResponseHandlerOption defines a configuration option for ResponseHandler.
type ResponseHandlerOption func(*ResponseHandlerOpts)

// WithDedup drops messages whose id repo has already recorded.
func WithDedup(repo store.DedupRepo) ResponseHandlerOption {
	return func(o *ResponseHandlerOpts) { o.Dedup = repo }
}

// WithMetrics sets the recorder for duplicate drops.
func WithMetrics(rec metrics.Recorder) ResponseHandlerOption {
	return func(o *ResponseHandlerOpts) { o.Metrics = rec }
}

// WithDedupRetention sets how long message ids are kept.
func WithDedupRetention(d time.Duration) ResponseHandlerOption {
	return func(o *ResponseHandlerOpts) { o.Retention = d }
}

// WithQueueIdle sets how long an idle per-user worker lingers.
func WithQueueIdle(d time.Duration) ResponseHandlerOption {
	return func(o *ResponseHandlerOpts) { o.QueueIdle = d }
}

// ResponseHandler drains every registered service's Responses channel into a
// MessageProcessor. Messages from one user are handled in arrival order by a
// dedicated worker; different users proceed in parallel.
type ResponseHandler struct {
	processor MessageProcessor
	opts      ResponseHandlerOpts
	services  []Service

	mu     sync.Mutex
	queues map[string]chan models.InboundMessage
	wg     sync.WaitGroup
}

// NewResponseHandler creates a ResponseHandler feeding processor.
func NewResponseHandler(processor MessageProcessor, opts ...ResponseHandlerOption) *ResponseHandler {
	cfg := ResponseHandlerOpts{
		Metrics:       metrics.Noop{},
		Retention:     DefaultDedupRetention,
		PruneInterval: DefaultPruneInterval,
		QueueIdle:     DefaultQueueIdle,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &ResponseHandler{
		processor: processor,
		opts:      cfg,
		queues:    make(map[string]chan models.InboundMessage),
	}
}

// Register adds a service whose responses Start will consume.
func (rh *ResponseHandler) Register(svc Service) {
	rh.services = append(rh.services, svc)
}

// ProcessMessage handles one message synchronously, dropping redeliveries.
func (rh *ResponseHandler) ProcessMessage(ctx context.Context, msg models.InboundMessage) error {
	if rh.opts.Dedup != nil && msg.MessageID != "" {
		id := string(msg.Channel) + ":" + msg.MessageID
		fresh, err := rh.opts.Dedup.RecordInbound(id, msg.UserID)
		if err != nil {
			// losing dedup is better than losing the message
			slog.Error("ResponseHandler.ProcessMessage: dedup record failed", "error", err, "message_id", id)
		} else if !fresh {
			slog.Debug("ResponseHandler.ProcessMessage: duplicate dropped", "message_id", id, "user_id", msg.UserID)
			rh.opts.Metrics.ObserveDuplicate(string(msg.Channel))
			return nil
		}
		defer func() {
			if err := rh.opts.Dedup.MarkProcessed(id); err != nil {
				slog.Warn("ResponseHandler.ProcessMessage: mark processed failed", "error", err, "message_id", id)
			}
		}()
	}

	if err := rh.processor.HandleMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to handle message from %s: %w", msg.UserID, err)
	}
	return nil
}

// enqueue hands msg to the user's worker, starting one if needed.
func (rh *ResponseHandler) enqueue(ctx context.Context, msg models.InboundMessage) {
	key := string(msg.Channel) + ":" + msg.UserID

	rh.mu.Lock()
	defer rh.mu.Unlock()
	q, ok := rh.queues[key]
	if !ok {
		q = make(chan models.InboundMessage, DefaultUserQueueSize)
		rh.queues[key] = q
		rh.wg.Add(1)
		go rh.drain(ctx, key, q)
	}
	// never block while holding mu: drain needs it to retire
	select {
	case q <- msg:
	default:
		slog.Warn("ResponseHandler.enqueue: user queue full, dropping message", "user_id", msg.UserID, "message_id", msg.MessageID)
	}
}

func (rh *ResponseHandler) drain(ctx context.Context, key string, q chan models.InboundMessage) {
	defer rh.wg.Done()
	idle := time.NewTimer(rh.opts.QueueIdle)
	defer idle.Stop()
	for {
		select {
		case msg := <-q:
			if err := rh.ProcessMessage(ctx, msg); err != nil {
				slog.Error("ResponseHandler failed to process message", "error", err, "user_id", msg.UserID)
			}
			idle.Reset(rh.opts.QueueIdle)
		case <-idle.C:
			rh.mu.Lock()
			if len(q) == 0 {
				delete(rh.queues, key)
				rh.mu.Unlock()
				return
			}
			rh.mu.Unlock()
			idle.Reset(rh.opts.QueueIdle)
		case <-ctx.Done():
			return
		}
	}
}

// Start begins consuming every registered service and pruning dedup records.
func (rh *ResponseHandler) Start(ctx context.Context) {
	slog.Info("ResponseHandler starting response processing", "services", len(rh.services))

	for _, svc := range rh.services {
		rh.wg.Add(1)
		go func(svc Service) {
			defer rh.wg.Done()
			for {
				select {
				case msg, ok := <-svc.Responses():
					if !ok {
						slog.Debug("ResponseHandler responses channel closed", "channel", svc.Channel())
						return
					}
					rh.enqueue(ctx, msg)
				case <-ctx.Done():
					return
				}
			}
		}(svc)
	}

	if rh.opts.Dedup != nil && rh.opts.PruneInterval > 0 {
		rh.wg.Add(1)
		go rh.pruneLoop(ctx)
	}
}

func (rh *ResponseHandler) pruneLoop(ctx context.Context) {
	defer rh.wg.Done()
	ticker := time.NewTicker(rh.opts.PruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n, err := rh.opts.Dedup.PruneInbound(time.Now().Add(-rh.opts.Retention))
			if err != nil {
				slog.Warn("ResponseHandler.pruneLoop: prune failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("ResponseHandler.pruneLoop: pruned dedup records", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Wait blocks until every worker started by Start has returned. Cancel the
// context passed to Start first.
func (rh *ResponseHandler) Wait() {
	rh.wg.Wait()
}

// ActiveQueues returns the number of users with a live worker.
func (rh *ResponseHandler) ActiveQueues() int {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	return len(rh.queues)
}
