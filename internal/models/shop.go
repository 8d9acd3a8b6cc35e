package models

import (
	"encoding/json"
	"fmt"
)

// Shop statuses written by the admin console. Only StatusApproved matters to
// the notifier; any other value, including an empty one, counts as not approved.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// DefaultCollection is the document collection holding shops awaiting review.
const DefaultCollection = "pending_shops"

// ShopRecord is the slice of a pending shop document the notifier reads.
type ShopRecord struct {
	Status   string `json:"status"`
	Email    string `json:"email"`
	ShopName string `json:"shopName,omitempty"`
}

// IsApproved reports whether the record is in the approved state.
func (r *ShopRecord) IsApproved() bool {
	return r != nil && r.Status == StatusApproved
}

// ChangeEvent is one write to one shop document. Before is nil on creation,
// After is nil on deletion.
type ChangeEvent struct {
	ShopID string      `json:"shopId"`
	Before *ShopRecord `json:"before"`
	After  *ShopRecord `json:"after"`
}

// DocumentPath renders the store path of the changed document.
func (e ChangeEvent) DocumentPath(collection string) string {
	return fmt.Sprintf("%s/%s", collection, e.ShopID)
}

// DecodeChangeEvent parses a JSON change event. Missing and null snapshots
// both decode to nil.
func DecodeChangeEvent(raw []byte) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return ChangeEvent{}, fmt.Errorf("decode change event: %w", err)
	}
	return ev, nil
}
