// Package whatsapp wraps the whatsmeow client used by the bot's WhatsApp transport.
//
// It owns device login (QR code or numeric pairing code on first start) and
// plain-text sends to a member's phone number.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/store"
)

const (
	// DefaultSQLitePath is the default whatsmeow device database.
	DefaultSQLitePath = "/var/lib/yatrabot/whatsmeow.db"
	// JIDSuffix is the WhatsApp JID server for regular users.
	JIDSuffix = types.DefaultUserServer
	// MinPhoneDigits is the shortest accepted phone number.
	MinPhoneDigits = 6
)

var (
	// ErrInvalidRecipient is returned for recipients that are not phone numbers.
	ErrInvalidRecipient = errors.New("invalid recipient")
	// ErrNotConnected is returned when sending without a connected client.
	ErrNotConnected = errors.New("whatsapp client not connected")

	nonDigitRegex = regexp.MustCompile(`\D`)
)

// Sender sends plain-text WhatsApp messages. Client and MockClient implement it.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// Opts holds configuration options for the WhatsApp client.
type Opts struct {
	DBDSN       string // whatsmeow device store connection string
	QRPath      string // file to write the login QR code to instead of stdout
	NumericCode bool   // print the raw pairing code instead of a QR code
}

// Option defines a configuration option for the WhatsApp client.
type Option func(*Opts)

// WithDBDSN sets the whatsmeow device store connection string.
func WithDBDSN(dsn string) Option {
	return func(o *Opts) { o.DBDSN = dsn }
}

// WithQRCodeOutput writes the login QR code to path.
func WithQRCodeOutput(path string) Option {
	return func(o *Opts) { o.QRPath = path }
}

// WithNumericCode prints the pairing code as text.
func WithNumericCode() Option {
	return func(o *Opts) { o.NumericCode = true }
}

// CanonicalPhone strips everything but digits from a phone number or JID user.
func CanonicalPhone(s string) (string, error) {
	user, _, _ := strings.Cut(strings.TrimSpace(s), "@")
	digits := nonDigitRegex.ReplaceAllString(user, "")
	if len(digits) < MinPhoneDigits {
		return "", fmt.Errorf("%w: %q", ErrInvalidRecipient, s)
	}
	return digits, nil
}

// deviceStoreDSN returns the driver and DSN for the device store. SQLite
// DSNs get foreign keys switched on, which whatsmeow requires.
func deviceStoreDSN(dsn string) (driver, out string) {
	if dsn == "" {
		dsn = DefaultSQLitePath
	}
	if store.DetectDSNType(dsn) == "postgres" {
		return "postgres", dsn
	}
	if strings.Contains(dsn, "foreign_keys") {
		return "sqlite3", dsn
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return "sqlite3", dsn + sep + "_foreign_keys=on"
}

// Client wraps the whatsmeow client.
type Client struct {
	waClient *whatsmeow.Client
}

var _ Sender = (*Client)(nil)

// NewClient opens the device store, logs in if the device is not paired yet
// and connects.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	driver, dsn := deviceStoreDSN(cfg.DBDSN)
	slog.Debug("whatsapp.NewClient: opening device store", "driver", driver, "qrPath", cfg.QRPath, "numericCode", cfg.NumericCode)

	container, err := sqlstore.New(ctx, driver, dsn, waLog.Stdout("Database", "INFO", true))
	if err != nil {
		return nil, fmt.Errorf("open whatsapp device store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("load whatsapp device: %w", err)
	}
	waClient := whatsmeow.NewClient(device, waLog.Stdout("Client", "INFO", true))

	if waClient.Store.ID == nil {
		if err := pair(ctx, waClient, cfg); err != nil {
			return nil, err
		}
	} else if err := waClient.Connect(); err != nil {
		return nil, fmt.Errorf("connect to whatsapp: %w", err)
	}
	slog.Info("whatsapp.NewClient: connected")
	return &Client{waClient: waClient}, nil
}

// pair runs the QR login flow until whatsmeow closes the channel.
func pair(ctx context.Context, waClient *whatsmeow.Client, cfg Opts) error {
	slog.Info("whatsapp.pair: device not paired, starting login")
	qrChan, err := waClient.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("open whatsapp login channel: %w", err)
	}
	if err := waClient.Connect(); err != nil {
		return fmt.Errorf("connect to whatsapp for login: %w", err)
	}

	out := io.Writer(os.Stdout)
	if cfg.QRPath != "" {
		f, err := os.Create(cfg.QRPath)
		if err != nil {
			return fmt.Errorf("create QR file: %w", err)
		}
		defer f.Close()
		out = f
	}
	for evt := range qrChan {
		if evt.Event != "code" {
			slog.Info("whatsapp.pair: login event", "event", evt.Event)
			continue
		}
		if cfg.NumericCode {
			fmt.Fprintln(out, evt.Code)
		} else {
			qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, out)
		}
	}
	return nil
}

// SendMessage sends body to the member with phone number to.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	if c.waClient == nil || c.waClient.Store == nil {
		return ErrNotConnected
	}
	if body == "" {
		return errors.New("message body cannot be empty")
	}
	phone, err := CanonicalPhone(to)
	if err != nil {
		return err
	}
	jid := types.NewJID(phone, JIDSuffix)
	if _, err := c.waClient.SendMessage(ctx, jid, &waE2E.Message{Conversation: &body}); err != nil {
		return fmt.Errorf("send to %s: %w", phone, err)
	}
	slog.Debug("Client.SendMessage: sent", "to", phone, "length", len(body))
	return nil
}

// GetClient returns the underlying whatsmeow client for event handling.
func (c *Client) GetClient() *whatsmeow.Client {
	return c.waClient
}

// Disconnect closes the websocket.
func (c *Client) Disconnect() {
	if c.waClient != nil {
		c.waClient.Disconnect()
	}
}

// SentMessage is a message recorded by MockClient.
type SentMessage struct {
	To   string
	Body string
}

// MockClient records sends instead of talking to WhatsApp.
type MockClient struct {
	mu   sync.Mutex
	sent []SentMessage
	// Err, when set, is returned by every send.
	Err error
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
