package approvalnotify

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	DefaultTaskType = "shop-approval-notify"
	DefaultFromName = "Shop Approval"

	Subject          = "Shop Approved – You Can Now Sell!"
	FallbackShopName = "your shop"
	bodyTemplate     = "🎉 Congratulations! Your shop \"%s\" has been approved by the admin. You can now start adding products."
)

// Outcome is what happened to one change event.
type Outcome string

const (
	// OutcomeSkippedIncomplete means the event lacked a before or after
	// snapshot (creation or deletion).
	OutcomeSkippedIncomplete Outcome = "skipped_incomplete"
	// OutcomeSkippedNoTransition means the status did not move into approved.
	OutcomeSkippedNoTransition Outcome = "skipped_no_transition"
	OutcomeSent                Outcome = "sent"
	OutcomeFailed              Outcome = "failed"
)

// DispatchResult reports one mail attempt. Err is set exactly when Sent is false.
type DispatchResult struct {
	NotificationID uuid.UUID
	Recipient      string
	Provider       string
	MessageID      string
	Sent           bool
	Err            error
}

// JobOutput is written back to the process instance.
type JobOutput struct {
	ShopID  string
	Outcome Outcome
}

func (o JobOutput) Variables() map[string]interface{} {
	return map[string]interface{}{
		"shopId":              o.ShopID,
		"notificationOutcome": string(o.Outcome),
	}
}

func renderBody(shopName string) string {
	return fmt.Sprintf(bodyTemplate, shopName)
}
