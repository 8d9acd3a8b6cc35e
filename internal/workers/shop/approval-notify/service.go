package approvalnotify

import (
	"context"
	"fmt"
	"time"

	"shop-notifier/internal/common/errors"
	"shop-notifier/internal/common/logger"
	"shop-notifier/internal/common/mail"
	"shop-notifier/internal/common/metrics"
	"shop-notifier/internal/common/observability"
	"shop-notifier/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type ServiceDependencies struct {
	Sender        mail.Sender
	Logger        logger.Logger
	Observability *observability.Observability
}

// ApprovalNotifier emails a shop owner when their shop's status moves into
// approved. It keeps no state between events: a redelivered qualifying event
// is mailed again.
type ApprovalNotifier struct {
	config *Config
	sender mail.Sender
	logger logger.Logger
	obs    *observability.Observability
}

func NewApprovalNotifier(deps ServiceDependencies, cfg *Config) (*ApprovalNotifier, error) {
	if deps.Sender == nil {
		return nil, errors.NewMailConfigInvalidError("mail sender is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.FromAddress == "" {
		return nil, errors.NewMailConfigInvalidError("sender address is required")
	}

	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	obs := deps.Observability
	if obs == nil {
		obs = observability.NewNoop(DefaultTaskType)
	}

	return &ApprovalNotifier{
		config: cfg,
		sender: deps.Sender,
		logger: log.WithFields(map[string]interface{}{"component": "approval-notifier"}),
		obs:    obs,
	}, nil
}

// OnChange implements changefeed.ChangeListener.
func (n *ApprovalNotifier) OnChange(ctx context.Context, event models.ChangeEvent) {
	n.Handle(ctx, event)
}

// Handle processes one change event and reports what it did. It never fails:
// mail errors are logged and surface only as OutcomeFailed.
func (n *ApprovalNotifier) Handle(ctx context.Context, event models.ChangeEvent) Outcome {
	start := time.Now()
	ctx, span := n.obs.StartSpan(ctx, "approval_notifier.handle",
		attribute.String("shop.id", event.ShopID),
		attribute.String("document.path", event.DocumentPath(n.config.Collection)),
	)
	defer span.End()

	outcome := n.handle(ctx, event)

	span.SetAttributes(attribute.String("outcome", string(outcome)))
	if outcome == OutcomeFailed {
		span.SetStatus(codes.Error, "mail dispatch failed")
	}
	n.obs.RecordEventHandled(ctx, string(outcome), time.Since(start))
	return outcome
}

func (n *ApprovalNotifier) handle(ctx context.Context, event models.ChangeEvent) Outcome {
	if skip, ok := Qualifies(event); !ok {
		metrics.ChangeEventsSkipped.WithLabelValues(string(skip)).Inc()
		n.logger.Debug("change event does not qualify", map[string]interface{}{
			"shopId": event.ShopID,
			"reason": string(skip),
		})
		return skip
	}

	result := n.Dispatch(ctx, n.BuildRequest(event.After))
	if !result.Sent {
		n.logger.Error("failed to send approval email", map[string]interface{}{
			"shopId":         event.ShopID,
			"recipient":      result.Recipient,
			"notificationId": result.NotificationID.String(),
			"provider":       result.Provider,
			"errorCode":      errors.CodeOf(result.Err),
			"error":          result.Err,
		})
		return OutcomeFailed
	}

	n.logger.Info("approval email sent", map[string]interface{}{
		"shopId":         event.ShopID,
		"recipient":      result.Recipient,
		"notificationId": result.NotificationID.String(),
		"provider":       result.Provider,
		"messageId":      result.MessageID,
	})
	return OutcomeSent
}

// Qualifies reports whether event is a transition into approved. When it is
// not, the returned Outcome says why.
func Qualifies(event models.ChangeEvent) (Outcome, bool) {
	if event.Before == nil || event.After == nil {
		return OutcomeSkippedIncomplete, false
	}
	if event.Before.IsApproved() || !event.After.IsApproved() {
		return OutcomeSkippedNoTransition, false
	}
	return "", true
}

// BuildRequest renders the approval email for the approved snapshot.
func (n *ApprovalNotifier) BuildRequest(after *models.ShopRecord) models.NotificationRequest {
	name := after.ShopName
	if name == "" {
		name = FallbackShopName
	}
	return models.NotificationRequest{
		FromName:    n.config.FromName,
		FromAddress: n.config.FromAddress,
		To:          after.Email,
		Subject:     Subject,
		Body:        renderBody(name),
	}
}

// Dispatch makes exactly one delivery attempt. Failures, including a
// panicking transport, are returned in the result rather than raised.
func (n *ApprovalNotifier) Dispatch(ctx context.Context, req models.NotificationRequest) (result DispatchResult) {
	provider := n.sender.Name()
	result = DispatchResult{
		NotificationID: uuid.New(),
		Recipient:      req.To,
		Provider:       provider,
	}

	ctx, span := n.obs.StartSpan(ctx, "approval_notifier.dispatch",
		attribute.String("mail.provider", provider),
		attribute.String("notification.id", result.NotificationID.String()),
	)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			result.Sent = false
			result.Err = errors.NewMailSendFailedError(provider, fmt.Errorf("transport panic: %v", r))
		}
		metrics.NotificationDispatchDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
		if result.Err != nil {
			metrics.NotificationsFailed.WithLabelValues(provider, errors.CodeOf(result.Err)).Inc()
			span.RecordError(result.Err)
			span.SetStatus(codes.Error, errors.CodeOf(result.Err))
		} else {
			metrics.NotificationsSent.WithLabelValues(provider).Inc()
		}
		span.End()
	}()

	receipt, err := n.sender.Send(ctx, req)
	if err != nil {
		result.Err = err
		return result
	}

	result.Sent = true
	if receipt != nil {
		result.MessageID = receipt.MessageID
	}
	return result
}
