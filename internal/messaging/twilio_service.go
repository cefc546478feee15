package messaging

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/twiliowhatsapp"
)

// SignatureHeader carries Twilio's webhook signature.
const SignatureHeader = "X-Twilio-Signature"

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// TwilioService implements Service using the Twilio API. Inbound messages
// and status callbacks arrive through WebhookHandler.
type TwilioService struct {
	eventChannels
	client     twiliowhatsapp.Sender
	validator  *twiliowhatsapp.SignatureValidator
	webhookURL string
}

var _ Service = (*TwilioService)(nil)

// TwilioServiceOption configures a TwilioService.
type TwilioServiceOption func(*TwilioService)

// WithSignatureValidation rejects webhook calls whose X-Twilio-Signature does
// not match publicURL, the URL Twilio is configured to call.
func WithSignatureValidation(v *twiliowhatsapp.SignatureValidator, publicURL string) TwilioServiceOption {
	return func(s *TwilioService) {
		s.validator = v
		s.webhookURL = publicURL
	}
}

// NewTwilioService creates a TwilioService around client.
func NewTwilioService(client twiliowhatsapp.Sender, opts ...TwilioServiceOption) *TwilioService {
	s := &TwilioService{client: client}
	s.init("TwilioService")
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateAndCanonicalizeRecipient implements Service.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhone(twiliowhatsapp.StripAddress(recipient))
}

// Start is a no-op; Twilio pushes events to the webhook.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes the event channels.
func (s *TwilioService) Stop() error {
	if s.close() {
		slog.Info("TwilioService.Stop: channels closed")
	}
	return nil
}

// SendMessage sends a message via Twilio and emits a sent receipt.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		return err
	}
	s.emitReceipt(models.Receipt{To: canonicalTo, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return nil
}

// WebhookHandler handles Twilio's inbound message and status callback
// requests. Inbound messages are emitted on Responses and status callbacks
// on Receipts.
func (s *TwilioService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Warn("TwilioService.WebhookHandler: bad form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if s.validator != nil && !s.validSignature(r) {
		slog.Warn("TwilioService.WebhookHandler: signature mismatch", "remote", r.RemoteAddr)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if status := r.PostForm.Get("MessageStatus"); status != "" {
		s.handleStatusCallback(r.PostForm.Get("To"), status)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	from := twiliowhatsapp.StripAddress(r.PostForm.Get("From"))
	body := r.PostForm.Get("Body")
	if from == "" || body == "" {
		slog.Warn("TwilioService.WebhookHandler: missing fields", "fromSet", from != "", "bodySet", body != "")
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}
	s.emitResponse(models.Response{
		From:      from,
		Body:      body,
		MessageID: r.PostForm.Get("MessageSid"),
		Time:      time.Now().Unix(),
	})

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(emptyTwiML))
}

func (s *TwilioService) validSignature(r *http.Request) bool {
	params := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return s.validator.Valid(s.webhookURL, params, r.Header.Get(SignatureHeader))
}

func (s *TwilioService) handleStatusCallback(to, status string) {
	var st models.MessageStatus
	switch status {
	case "delivered":
		st = models.MessageStatusDelivered
	case "read":
		st = models.MessageStatusRead
	case "failed", "undelivered":
		st = models.MessageStatusFailed
	default:
		return
	}
	s.emitReceipt(models.Receipt{To: twiliowhatsapp.StripAddress(to), Status: st, Time: time.Now().Unix()})
}
