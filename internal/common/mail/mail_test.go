package mail

import (
	"context"
	stderrors "errors"
	"testing"

	"shop-notifier/internal/common/config"
	"shop-notifier/internal/common/errors"
	"shop-notifier/internal/common/logger"
	"shop-notifier/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "github.com/wneessen/go-mail"
)

type fakeDialer struct {
	sent []*gomail.Msg
	err  error
}

func (f *fakeDialer) DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, messages...)
	return nil
}

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("ses-0001")}, nil
}

func testRequest() models.NotificationRequest {
	return models.NotificationRequest{
		FromName:    "Shop Approval",
		FromAddress: "approvals@example.com",
		To:          "owner@example.com",
		Subject:     "Shop Approved – You Can Now Sell!",
		Body:        "Your shop \"Alpha\" has been approved.",
	}
}

func TestSMTPSender_Send(t *testing.T) {
	dialer := &fakeDialer{}
	sender := newSMTPSender(dialer, logger.NewTestLogger(t))

	receipt, err := sender.Send(context.Background(), testRequest())
	require.NoError(t, err)
	require.Len(t, dialer.sent, 1)

	msg := dialer.sent[0]
	require.Len(t, msg.GetToString(), 1)
	assert.Contains(t, msg.GetToString()[0], "owner@example.com")
	assert.Equal(t, []string{"Shop Approved – You Can Now Sell!"}, msg.GetGenHeader(gomail.HeaderSubject))
	assert.Contains(t, msg.GetFromString()[0], "approvals@example.com")

	parts := msg.GetParts()
	require.Len(t, parts, 1)
	body, err := parts[0].GetContent()
	require.NoError(t, err)
	assert.Contains(t, string(body), "Alpha")

	assert.Equal(t, ProviderSMTP, receipt.Provider)
	assert.NotEmpty(t, receipt.MessageID)
}

func TestSMTPSender_InvalidRecipient(t *testing.T) {
	dialer := &fakeDialer{}
	sender := newSMTPSender(dialer, nil)

	req := testRequest()
	req.To = ""

	_, err := sender.Send(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, string(errors.ErrCodeInvalidRecipient), errors.CodeOf(err))
	assert.Empty(t, dialer.sent)
}

func TestSMTPSender_TransportFailure(t *testing.T) {
	dialer := &fakeDialer{err: stderrors.New("535 authentication failed")}
	sender := newSMTPSender(dialer, nil)

	_, err := sender.Send(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, string(errors.ErrCodeMailSendFailed), errors.CodeOf(err))
	assert.Contains(t, err.Error(), "535 authentication failed")
}

func TestSMTPSender_CancelledContext(t *testing.T) {
	dialer := &fakeDialer{err: context.Canceled}
	sender := newSMTPSender(dialer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sender.Send(ctx, testRequest())
	require.Error(t, err)
	assert.Equal(t, string(errors.ErrCodeMailTimeout), errors.CodeOf(err))
}

func TestSESSender_Send(t *testing.T) {
	client := &fakeSES{}
	sender := newSESSender(client, logger.NewTestLogger(t))

	receipt, err := sender.Send(context.Background(), testRequest())
	require.NoError(t, err)

	require.NotNil(t, client.input)
	assert.Equal(t, []string{"owner@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, `"Shop Approval" <approvals@example.com>`, *client.input.Source)
	assert.Equal(t, "Shop Approved – You Can Now Sell!", *client.input.Message.Subject.Data)
	assert.Contains(t, *client.input.Message.Body.Text.Data, "Alpha")
	assert.Nil(t, client.input.Message.Body.Html)

	assert.Equal(t, ProviderSES, receipt.Provider)
	assert.Equal(t, "ses-0001", receipt.MessageID)
}

func TestSESSender_Errors(t *testing.T) {
	t.Run("malformed recipient never reaches SES", func(t *testing.T) {
		client := &fakeSES{}
		sender := newSESSender(client, nil)

		req := testRequest()
		req.To = "not-an-address"

		_, err := sender.Send(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, string(errors.ErrCodeInvalidRecipient), errors.CodeOf(err))
		assert.Nil(t, client.input)
	})

	t.Run("provider rejection", func(t *testing.T) {
		client := &fakeSES{err: stderrors.New("MessageRejected: Email address is not verified")}
		sender := newSESSender(client, nil)

		_, err := sender.Send(context.Background(), testRequest())
		require.Error(t, err)
		assert.Equal(t, string(errors.ErrCodeMailSendFailed), errors.CodeOf(err))
		assert.True(t, errors.IsRetryable(err))
	})
}

func TestNewSender(t *testing.T) {
	t.Run("smtp", func(t *testing.T) {
		sender, err := NewSender(context.Background(), config.MailConfig{
			Provider: config.MailProviderSMTP,
			SMTP: config.SMTPConfig{
				Host:      "smtp.example.com",
				Port:      587,
				Username:  "user",
				Password:  "secret",
				TLSPolicy: "mandatory",
			},
		}, logger.NewNoOpLogger())
		require.NoError(t, err)
		assert.Equal(t, ProviderSMTP, sender.Name())
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewSender(context.Background(), config.MailConfig{Provider: "fax"}, logger.NewNoOpLogger())
		require.Error(t, err)
		assert.Equal(t, string(errors.ErrCodeMailConfigInvalid), errors.CodeOf(err))
	})
}
