package domain

import (
	"time"

	"github.com/entradalabs/entrada/pkg/idx"
)

// NotificationKind classifies a transient user-facing message.
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
	NotificationInfo    NotificationKind = "info"
)

// Notification is a transient message shown to the user and removed
// automatically after Duration elapses.
type Notification struct {
	ID       idx.ID           `json:"id"`
	Kind     NotificationKind `json:"kind"`
	Title    string           `json:"title"`
	Message  string           `json:"message"`
	Duration time.Duration    `json:"duration"`
}
