// Package verify implements email ownership verification with one-time codes.
package verify

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/util"
)

const (
	// CodeDigits is the length of issued codes.
	CodeDigits = 6
	// DefaultCodeTTL is how long an issued code stays valid.
	DefaultCodeTTL = 10 * time.Minute
)

var (
	ErrNoPendingCode = errors.New("no verification code pending")
	ErrCodeExpired   = errors.New("verification code expired")
	ErrCodeMismatch  = errors.New("verification code does not match")
)

// Sender delivers a code to an email address.
type Sender interface {
	SendOTP(ctx context.Context, email, code string) error
}

// LogSender writes codes to the log instead of sending mail.
type LogSender struct{}

// SendOTP implements Sender.
func (LogSender) SendOTP(ctx context.Context, email, code string) error {
	slog.Info("LogSender.SendOTP: verification code issued", "email", email, "code", code)
	return nil
}

// Issuer issues and checks codes. Pending state lives on the session.
type Issuer struct {
	sender Sender
	ttl    time.Duration
	now    func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithTTL overrides DefaultCodeTTL.
func WithTTL(d time.Duration) Option {
	return func(i *Issuer) {
		if d > 0 {
			i.ttl = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer creates an Issuer delivering through sender.
func NewIssuer(sender Sender, opts ...Option) *Issuer {
	if sender == nil {
		sender = LogSender{}
	}
	i := &Issuer{sender: sender, ttl: DefaultCodeTTL, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue generates a code for email, delivers it and records it on sess.
// The session is only modified when delivery succeeds.
func (i *Issuer) Issue(ctx context.Context, sess *models.Session, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	code, err := util.GenerateOTP(CodeDigits)
	if err != nil {
		return err
	}
	if err := i.sender.SendOTP(ctx, email, code); err != nil {
		return fmt.Errorf("send verification code: %w", err)
	}
	sess.PendingEmail = email
	sess.PendingOTP = code
	sess.OTPExpiresAt = i.now().Add(i.ttl)
	slog.Debug("Issuer.Issue: code pending", "user", sess.UserID, "expiresAt", sess.OTPExpiresAt)
	return nil
}

// Verify checks code against the pending one. On success the pending state is
// cleared, the session is authenticated and the verified email is returned.
// An expired code is cleared too; a mismatch leaves it pending.
func (i *Issuer) Verify(sess *models.Session, code string) (string, error) {
	if sess.PendingOTP == "" {
		return "", ErrNoPendingCode
	}
	if !i.now().Before(sess.OTPExpiresAt) {
		sess.ClearVerification()
		return "", ErrCodeExpired
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(code)), []byte(sess.PendingOTP)) != 1 {
		return "", ErrCodeMismatch
	}
	email := sess.PendingEmail
	sess.ClearVerification()
	sess.Authenticated = true
	return email, nil
}
