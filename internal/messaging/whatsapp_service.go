package messaging

import (
	"context"
	"log/slog"
	"time"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/whatsapp"
)

// WhatsAppService implements Service on top of the whatsmeow client.
type WhatsAppService struct {
	eventChannels
	client   whatsapp.Sender
	waClient *whatsapp.Client
}

var _ Service = (*WhatsAppService)(nil)

// NewWhatsAppService creates a WhatsAppService. Inbound events are only
// available when client is a *whatsapp.Client.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	s := &WhatsAppService{client: client}
	s.init("WhatsAppService")
	if waClient, ok := client.(*whatsapp.Client); ok {
		s.waClient = waClient
	}
	return s
}

// ValidateAndCanonicalizeRecipient implements Service.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhone(recipient)
}

// Start registers the whatsmeow event handler.
func (s *WhatsAppService) Start(ctx context.Context) error {
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Debug("WhatsAppService.Start: no live client, skipping event handling")
		return nil
	}
	s.waClient.GetClient().AddEventHandler(s.handleEvent)
	slog.Info("WhatsAppService.Start: event handler registered")
	return nil
}

// Stop closes the event channels.
func (s *WhatsAppService) Stop() error {
	if s.close() {
		slog.Info("WhatsAppService.Stop: channels closed")
	}
	return nil
}

// SendMessage sends body to the member and emits a sent receipt.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		slog.Error("WhatsAppService.SendMessage: send failed", "to", canonicalTo, "error", err)
		return err
	}
	s.emitReceipt(models.Receipt{To: canonicalTo, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return nil
}

func (s *WhatsAppService) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		s.handleIncomingMessage(v)
	case *events.Receipt:
		s.handleReceipt(v)
	case *events.Connected:
		slog.Info("WhatsAppService: connected")
	case *events.Disconnected:
		slog.Warn("WhatsAppService: disconnected")
	}
}

// handleIncomingMessage forwards direct text messages from members.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil || evt.Info.IsFromMe || evt.Info.IsGroup {
		return
	}
	var text string
	switch {
	case evt.Message.Conversation != nil:
		text = evt.Message.GetConversation()
	case evt.Message.ExtendedTextMessage != nil && evt.Message.ExtendedTextMessage.Text != nil:
		text = evt.Message.ExtendedTextMessage.GetText()
	default:
		slog.Debug("WhatsAppService.handleIncomingMessage: ignoring non-text message", "from", evt.Info.Sender.User)
		return
	}
	s.emitResponse(models.Response{
		From:      evt.Info.Sender.User,
		Body:      text,
		MessageID: evt.Info.ID,
		Time:      evt.Info.Timestamp.Unix(),
	})
}

func (s *WhatsAppService) handleReceipt(evt *events.Receipt) {
	var status models.MessageStatus
	switch evt.Type {
	case events.ReceiptTypeDelivered:
		status = models.MessageStatusDelivered
	case events.ReceiptTypeRead:
		status = models.MessageStatusRead
	default:
		return
	}
	s.emitReceipt(models.Receipt{
		To:     evt.MessageSource.Chat.User,
		Status: status,
		Time:   evt.Timestamp.Unix(),
	})
}
