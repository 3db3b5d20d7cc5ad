package entity

import "time"

// NotificationLevel distinguishes success and failure messages.
type NotificationLevel string

const (
	NotificationSuccess NotificationLevel = "success"
	NotificationError   NotificationLevel = "error"
)

// Notification is a user-facing message about a transaction outcome.
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	TxHash  string            `json:"txHash,omitempty"`
	Time    time.Time         `json:"time"`
}
