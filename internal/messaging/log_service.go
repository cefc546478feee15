package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
)

// LogService is a Service for API-only deployments. Sends are logged and
// never reach a member; no inbound messages are produced.
type LogService struct {
	eventChannels
}

var _ Service = (*LogService)(nil)

// NewLogService creates a LogService.
func NewLogService() *LogService {
	s := &LogService{}
	s.init("LogService")
	return s
}

// ValidateAndCanonicalizeRecipient implements Service.
func (s *LogService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhone(recipient)
}

// Start is a no-op.
func (s *LogService) Start(ctx context.Context) error {
	return nil
}

// Stop closes the event channels.
func (s *LogService) Stop() error {
	s.close()
	return nil
}

// SendMessage logs body and emits a sent receipt.
func (s *LogService) SendMessage(ctx context.Context, to string, body string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	slog.Info("LogService.SendMessage", "to", canonicalTo, "body", body)
	s.emitReceipt(models.Receipt{To: canonicalTo, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return nil
}
