package domain

import "time"

// Status tracks the lifecycle of a queue entry. Sent and failed are terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusRetry      Status = "retry"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further delivery attempt will be made.
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed
}

// MaxRetries bounds delivery attempts per entry. A failing entry is retried
// until retry_count reaches this value, then marked failed permanently.
const MaxRetries = 3

// RetryBackoff is the fixed spacing between delivery attempts.
const RetryBackoff = 10 * time.Second

// QueueEntry is one per-recipient, per-device delivery task derived from a
// NotificationRecord. It is owned exclusively by the queue processor for the
// duration of its state machine; the referenced subscription is not owned.
type QueueEntry struct {
	ID             string     `json:"id"`
	NotificationID string     `json:"notification_id"`
	UserID         string     `json:"user_id"`
	DeviceID       string     `json:"device_id"`
	SubscriptionID string     `json:"subscription_id"`
	Payload        Payload    `json:"payload"`
	Status         Status     `json:"status"`
	RetryCount     int        `json:"retry_count"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty"`
	LastAttemptAt  *time.Time `json:"last_attempt_at,omitempty"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	FailedAt       *time.Time `json:"failed_at,omitempty"`
}
