package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/conversation"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/store"
)

const (
	// DefaultMaxConcurrentTurns bounds how many inbound messages are processed at once.
	DefaultMaxConcurrentTurns = 32
	// DefaultTurnTimeout bounds one turn including reply enqueue.
	DefaultTurnTimeout = 30 * time.Second
)

// TurnProcessor runs one inbound message through the conversation engine.
type TurnProcessor interface {
	HandleMessage(ctx context.Context, msg conversation.InboundMessage) (conversation.Reply, error)
}

// ReplyQueue persists outbound replies for the outbox sender.
type ReplyQueue interface {
	EnqueueOutboxMessage(ctx context.Context, recipientID, kind, body, dedupeKey string) (string, error)
}

// Notifier wakes the outbox sender after an enqueue.
type Notifier interface {
	Notify()
}

// Handler consumes a Service's channels and routes messages to the
// orchestrator. Replies go through the outbox so they survive restarts; when
// enqueueing fails the reply is sent directly.
type Handler struct {
	svc         Service
	turns       TurnProcessor
	queue       ReplyQueue
	notifier    Notifier
	maxInFlight int
	turnTimeout time.Duration
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithNotifier wakes n after each enqueued reply.
func WithNotifier(n Notifier) HandlerOption {
	return func(h *Handler) { h.notifier = n }
}

// WithMaxConcurrentTurns sets the in-flight turn limit.
func WithMaxConcurrentTurns(n int) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxInFlight = n
		}
	}
}

// WithTurnTimeout sets the per-turn deadline.
func WithTurnTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.turnTimeout = d
		}
	}
}

// NewHandler creates a Handler.
func NewHandler(svc Service, turns TurnProcessor, queue ReplyQueue, opts ...HandlerOption) *Handler {
	h := &Handler{
		svc:         svc,
		turns:       turns,
		queue:       queue,
		maxInFlight: DefaultMaxConcurrentTurns,
		turnTimeout: DefaultTurnTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run processes inbound messages and receipts until ctx is cancelled or
// the service closes its channels, then waits for in-flight turns.
func (h *Handler) Run(ctx context.Context) {
	var g errgroup.Group
	g.SetLimit(h.maxInFlight)
	defer func() { _ = g.Wait() }()

	responses := h.svc.Responses()
	receipts := h.svc.Receipts()
	for responses != nil || receipts != nil {
		select {
		case <-ctx.Done():
			slog.Info("Handler.Run: stopping", "reason", ctx.Err())
			return
		case resp, ok := <-responses:
			if !ok {
				responses = nil
				continue
			}
			g.Go(func() error {
				if err := h.ProcessResponse(ctx, resp); err != nil {
					slog.Error("Handler.Run: turn failed", "from", resp.From, "messageID", resp.MessageID, "error", err)
				}
				return nil
			})
		case r, ok := <-receipts:
			if !ok {
				receipts = nil
				continue
			}
			slog.Debug("Handler.Run: receipt", "to", r.To, "status", r.Status)
		}
	}
	slog.Info("Handler.Run: service channels closed")
}

// ProcessResponse handles one inbound message and queues its reply.
func (h *Handler) ProcessResponse(ctx context.Context, resp models.Response) error {
	from, err := h.svc.ValidateAndCanonicalizeRecipient(resp.From)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, h.turnTimeout)
	defer cancel()

	reply, err := h.turns.HandleMessage(ctx, conversation.InboundMessage{
		SenderID:  from,
		Text:      resp.Body,
		MessageID: resp.MessageID,
	})
	if err != nil {
		return fmt.Errorf("handle message: %w", err)
	}
	if reply.NoReply || reply.Text == "" {
		slog.Debug("Handler.ProcessResponse: no reply", "from", from, "messageID", resp.MessageID)
		return nil
	}
	return h.deliver(ctx, from, resp.MessageID, reply.Text)
}

func (h *Handler) deliver(ctx context.Context, to, messageID, text string) error {
	dedupeKey := ""
	if messageID != "" {
		dedupeKey = "reply:" + messageID
	}
	id, err := h.queue.EnqueueOutboxMessage(ctx, to, store.OutboxKindReply, text, dedupeKey)
	if err != nil {
		slog.Warn("Handler.deliver: enqueue failed, sending directly", "to", to, "error", err)
		if sendErr := h.svc.SendMessage(ctx, to, text); sendErr != nil {
			return fmt.Errorf("send reply: %w", sendErr)
		}
		return nil
	}
	slog.Debug("Handler.deliver: reply queued", "to", to, "outboxID", id)
	if h.notifier != nil {
		h.notifier.Notify()
	}
	return nil
}
