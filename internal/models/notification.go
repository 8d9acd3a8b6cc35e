package models

// NotificationRequest is built fresh for every qualifying change event and
// handed to the mail transport. It is never persisted.
type NotificationRequest struct {
	FromName    string `json:"fromName"`
	FromAddress string `json:"fromAddress"`
	To          string `json:"to"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
}
