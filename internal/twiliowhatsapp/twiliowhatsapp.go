// Package twiliowhatsapp wraps the Twilio REST API for the bot's WhatsApp
// Business transport.
package twiliowhatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// AddressPrefix marks WhatsApp addresses in the Twilio API.
const AddressPrefix = "whatsapp:"

// ErrMissingCredentials is returned when the account SID or auth token is absent.
var ErrMissingCredentials = errors.New("twilio account SID and auth token must be provided")

// Sender sends plain-text WhatsApp messages through Twilio.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// messageCreator is the subset of the Twilio API service used for sends.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Opts holds configuration options for the Twilio WhatsApp client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromWhats  string
}

// Option defines a configuration option for the Twilio WhatsApp client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromWhats sets the sending number, with or without the whatsapp: prefix.
func WithFromWhats(from string) Option {
	return func(o *Opts) { o.FromWhats = from }
}

// Address returns number in Twilio's WhatsApp address form.
func Address(number string) string {
	number = strings.TrimSpace(number)
	if strings.HasPrefix(number, AddressPrefix) {
		return number
	}
	if !strings.HasPrefix(number, "+") {
		number = "+" + number
	}
	return AddressPrefix + number
}

// StripAddress removes the whatsapp: prefix and leading plus sign.
func StripAddress(addr string) string {
	return strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(addr), AddressPrefix), "+")
}

// Client wraps the Twilio REST API for WhatsApp.
type Client struct {
	api       messageCreator
	fromWhats string
}

var _ Sender = (*Client)(nil)

// NewClient creates a Client. Unset options fall back to TWILIO_ACCOUNT_SID,
// TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER.
func NewClient(opts ...Option) (*Client, error) {
	cfg := resolveOpts(opts)
	slog.Debug("twiliowhatsapp.NewClient: config loaded",
		"accountSIDSet", cfg.AccountSID != "",
		"authTokenSet", cfg.AuthToken != "",
		"fromSet", cfg.FromWhats != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.FromWhats == "" {
		return nil, errors.New("twilio from number must be provided")
	}
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Client{api: rest.Api, fromWhats: Address(cfg.FromWhats)}, nil
}

func resolveOpts(opts []Option) Opts {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromWhats == "" {
		cfg.FromWhats = os.Getenv("TWILIO_FROM_NUMBER")
	}
	return cfg
}

// SendMessage sends body to the WhatsApp number to.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(Address(to))
	params.SetFrom(c.fromWhats)
	params.SetBody(body)

	resp, err := c.api.CreateMessage(params)
	if err != nil {
		slog.Error("twiliowhatsapp.SendMessage: send failed", "to", to, "error", err)
		return fmt.Errorf("send to %s: %w", to, err)
	}
	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	slog.Debug("twiliowhatsapp.SendMessage: sent", "to", to, "sid", sid)
	return nil
}

// SignatureValidator checks the X-Twilio-Signature header on webhooks.
type SignatureValidator struct {
	rv twilioclient.RequestValidator
}

// NewSignatureValidator creates a validator for authToken.
func NewSignatureValidator(authToken string) *SignatureValidator {
	return &SignatureValidator{rv: twilioclient.NewRequestValidator(authToken)}
}

// Valid reports whether signature matches the request URL and form params.
func (v *SignatureValidator) Valid(url string, params map[string]string, signature string) bool {
	if signature == "" {
		return false
	}
	return v.rv.Validate(url, params, signature)
}

// SentMessage is a message recorded by MockClient.
type SentMessage struct {
	To   string
	Body string
}

// MockClient records sends instead of calling Twilio.
type MockClient struct {
	mu   sync.Mutex
	sent []SentMessage
	Err  error
}

var _ Sender = (*MockClient)(nil)

// NewMockClient creates a MockClient.
func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, SentMessage{To: to, Body: body})
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *MockClient) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.sent...)
}
