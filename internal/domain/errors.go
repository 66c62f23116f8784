package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidNotificationID = errors.New("notification_id must not be empty")
	ErrNoRecipients          = errors.New("recipient_user_ids must contain at least one user")
	ErrInvalidSubscription   = errors.New("subscription requires user_id, device_id, endpoint, and keys")
	ErrInvalidDeviceType     = errors.New("invalid device_type: must be mobile or desktop")
	ErrNoActiveSubscription  = errors.New("no active subscription found for user")
	ErrDeliveryUnavailable   = errors.New("no delivery method available")
)
