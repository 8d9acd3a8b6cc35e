package mail

import (
	"context"
	"fmt"
	"time"

	"shop-notifier/internal/common/config"
	"shop-notifier/internal/common/errors"
	"shop-notifier/internal/common/logger"
	"shop-notifier/internal/models"

	gomail "github.com/wneessen/go-mail"
)

const ProviderSMTP = "smtp"

// smtpDialer is satisfied by *gomail.Client.
type smtpDialer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

// SMTPSender delivers plain-text mail through an authenticated SMTP relay
// such as Gmail with an app password.
type SMTPSender struct {
	client smtpDialer
	logger logger.Logger
}

func NewSMTPSender(cfg config.SMTPConfig, log logger.Logger) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, errors.NewMailConfigInvalidError("smtp host is required")
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(tlsPolicy(cfg.TLSPolicy)),
	}
	if cfg.TLSPolicy == "ssl" {
		opts = append(opts, gomail.WithSSL())
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	if cfg.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(time.Duration(cfg.Timeout)*time.Millisecond))
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, errors.NewMailConfigInvalidError(fmt.Sprintf("create smtp client: %v", err))
	}

	return newSMTPSender(client, log), nil
}

func newSMTPSender(client smtpDialer, log logger.Logger) *SMTPSender {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &SMTPSender{
		client: client,
		logger: log.WithFields(map[string]interface{}{"provider": ProviderSMTP}),
	}
}

func (s *SMTPSender) Name() string { return ProviderSMTP }

func (s *SMTPSender) Send(ctx context.Context, req models.NotificationRequest) (*Receipt, error) {
	msg, err := buildMessage(req)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("dialing smtp relay", map[string]interface{}{"to": req.To})

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewMailTimeoutError(ProviderSMTP, err)
		}
		return nil, errors.NewMailSendFailedError(ProviderSMTP, err)
	}

	receipt := &Receipt{Provider: ProviderSMTP}
	if ids := msg.GetGenHeader(gomail.HeaderMessageID); len(ids) > 0 {
		receipt.MessageID = ids[0]
	}
	return receipt, nil
}

func buildMessage(req models.NotificationRequest) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(req.FromName, req.FromAddress); err != nil {
		return nil, errors.NewMailConfigInvalidError(fmt.Sprintf("invalid from address %q: %v", req.FromAddress, err))
	}
	if err := msg.To(req.To); err != nil {
		return nil, errors.NewInvalidRecipientError(req.To, err)
	}
	msg.Subject(req.Subject)
	msg.SetMessageID()
	msg.SetDate()
	msg.SetBodyString(gomail.TypeTextPlain, req.Body)
	return msg, nil
}

func tlsPolicy(policy string) gomail.TLSPolicy {
	switch policy {
	case "opportunistic":
		return gomail.TLSOpportunistic
	case "none":
		return gomail.NoTLS
	default:
		return gomail.TLSMandatory
	}
}
