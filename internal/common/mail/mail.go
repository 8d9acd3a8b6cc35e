// Package mail delivers notification requests through an external transport.
package mail

import (
	"context"
	"fmt"

	"shop-notifier/internal/common/config"
	"shop-notifier/internal/common/errors"
	"shop-notifier/internal/common/logger"
	"shop-notifier/internal/models"
)

// Sender is the outbound mail collaborator. Implementations make exactly one
// delivery attempt per call; retries are the caller's decision.
type Sender interface {
	Name() string
	Send(ctx context.Context, req models.NotificationRequest) (*Receipt, error)
}

// Receipt describes an accepted message.
type Receipt struct {
	Provider  string
	MessageID string
}

// NewSender builds the transport selected by cfg.Provider.
func NewSender(ctx context.Context, cfg config.MailConfig, log logger.Logger) (Sender, error) {
	switch cfg.Provider {
	case config.MailProviderSMTP:
		return NewSMTPSender(cfg.SMTP, log)
	case config.MailProviderSES:
		return NewSESSender(ctx, cfg.SES.Region, log)
	default:
		return nil, errors.NewMailConfigInvalidError(fmt.Sprintf("unknown provider %q", cfg.Provider))
	}
}
