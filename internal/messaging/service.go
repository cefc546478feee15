// Package messaging connects chat transports to the conversation orchestrator.
//
// A Service delivers replies and surfaces inbound messages and delivery
// receipts as channels; Handler consumes those channels, runs each message
// through the orchestrator and queues the reply in the outbox.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
)

const (
	// DefaultChannelBufferSize is the buffer size for receipt and response channels.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout bounds how long an emitter waits on a full channel.
	DefaultChannelTimeout = 1 * time.Second
	// MinPhoneDigits is the shortest accepted phone number.
	MinPhoneDigits = 6
)

// ErrServiceStopped is returned by sends after Stop.
var ErrServiceStopped = errors.New("messaging service stopped")

var phoneNumberRegex = regexp.MustCompile(`\D`)

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient returns the digits-only form of a
	// phone number, or an error when it is too short to be one.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins any background processing (e.g., event handlers).
	Start(ctx context.Context) error

	// Stop stops background processing and closes the channels.
	Stop() error

	// Receipts returns a channel of receipt events (sent, delivered, read).
	Receipts() <-chan models.Receipt

	// Responses returns a channel of inbound member messages.
	Responses() <-chan models.Response
}

// CanonicalizePhone strips every non-digit from recipient.
func CanonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", errors.New("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < MinPhoneDigits {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum %d digits required)", canonical, MinPhoneDigits)
	}
	return canonical, nil
}

// eventChannels holds the receipt and response channels shared by the
// transport services. Emitters hold the read lock while sending so close
// never races a send.
type eventChannels struct {
	name      string
	receipts  chan models.Receipt
	responses chan models.Response
	mu        sync.RWMutex
	stopped   bool
}

func (c *eventChannels) init(name string) {
	c.name = name
	c.receipts = make(chan models.Receipt, DefaultChannelBufferSize)
	c.responses = make(chan models.Response, DefaultChannelBufferSize)
}

func (c *eventChannels) isStopped() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stopped
}

func (c *eventChannels) emitResponse(resp models.Response) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stopped {
		slog.Warn(c.name+".emitResponse: dropping inbound message, service stopped", "from", resp.From)
		return
	}
	select {
	case c.responses <- resp:
		slog.Debug(c.name+".emitResponse: forwarded", "from", resp.From, "messageID", resp.MessageID)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn(c.name+".emitResponse: channel blocked, dropping message", "from", resp.From, "timeout", DefaultChannelTimeout)
	}
}

func (c *eventChannels) emitReceipt(r models.Receipt) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stopped {
		return
	}
	select {
	case c.receipts <- r:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn(c.name+".emitReceipt: channel blocked, dropping receipt", "to", r.To, "status", r.Status)
	}
}

// close marks the channels stopped and closes them. It reports false when
// they were already closed.
func (c *eventChannels) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return false
	}
	c.stopped = true
	close(c.receipts)
	close(c.responses)
	return true
}

// Receipts returns the channel of delivery receipts.
func (c *eventChannels) Receipts() <-chan models.Receipt {
	return c.receipts
}

// Responses returns the channel of inbound member messages.
func (c *eventChannels) Responses() <-chan models.Response {
	return c.responses
}
