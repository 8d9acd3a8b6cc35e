package mail

import (
	"context"
	"fmt"
	netmail "net/mail"

	"shop-notifier/internal/common/errors"
	"shop-notifier/internal/common/logger"
	"shop-notifier/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

const ProviderSES = "ses"

// SESAPI is the part of the SES client the sender uses.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESSender struct {
	client SESAPI
	logger logger.Logger
}

func NewSESSender(ctx context.Context, region string, log logger.Logger) (*SESSender, error) {
	if region == "" {
		return nil, errors.NewMailConfigInvalidError("ses region is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.NewMailConfigInvalidError(fmt.Sprintf("load AWS config: %v", err))
	}
	return newSESSender(ses.NewFromConfig(awsCfg), log), nil
}

func newSESSender(client SESAPI, log logger.Logger) *SESSender {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &SESSender{
		client: client,
		logger: log.WithFields(map[string]interface{}{"provider": ProviderSES}),
	}
}

func (s *SESSender) Name() string { return ProviderSES }

func (s *SESSender) Send(ctx context.Context, req models.NotificationRequest) (*Receipt, error) {
	to, err := netmail.ParseAddress(req.To)
	if err != nil {
		return nil, errors.NewInvalidRecipientError(req.To, err)
	}
	from := netmail.Address{Name: req.FromName, Address: req.FromAddress}

	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to.Address},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(req.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(req.Body), Charset: aws.String("UTF-8")},
			},
		},
		Source: aws.String(from.String()),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewMailTimeoutError(ProviderSES, err)
		}
		return nil, errors.NewMailSendFailedError(ProviderSES, err)
	}

	return &Receipt{Provider: ProviderSES, MessageID: aws.ToString(out.MessageId)}, nil
}
