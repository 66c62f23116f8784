package domain

import "time"

// DeviceType partitions subscriptions for the eviction policy: after the
// evictor runs, a user keeps at most one active subscription per device type.
type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceDesktop DeviceType = "desktop"
)

func (d DeviceType) IsValid() bool {
	return d == DeviceMobile || d == DeviceDesktop
}

// Subscription is a registered delivery endpoint for one device of one user.
// Identity is (UserID, DeviceID); the registry upserts on that pair.
type Subscription struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	DeviceID   string     `json:"device_id"`
	DeviceType DeviceType `json:"device_type"`
	Endpoint   string     `json:"endpoint"`
	P256dh     string     `json:"p256dh"`
	Auth       string     `json:"auth"`
	IsActive   bool       `json:"is_active"`
	LastSeen   time.Time  `json:"last_seen"`
	CreatedAt  time.Time  `json:"created_at"`
}

// RegisterRequest is the device-registration payload. Keys come straight
// from the platform's PushSubscription object.
type RegisterRequest struct {
	UserID     string     `json:"user_id"`
	DeviceID   string     `json:"device_id"`
	DeviceType DeviceType `json:"device_type"`
	Endpoint   string     `json:"endpoint"`
	P256dh     string     `json:"p256dh"`
	Auth       string     `json:"auth"`
}

func (r *RegisterRequest) Validate() error {
	if r.UserID == "" || r.DeviceID == "" {
		return ErrInvalidSubscription
	}
	if !r.DeviceType.IsValid() {
		return ErrInvalidDeviceType
	}
	if r.Endpoint == "" || r.P256dh == "" || r.Auth == "" {
		return ErrInvalidSubscription
	}
	return nil
}

// SubscriptionStats is the operator-facing registry snapshot.
type SubscriptionStats struct {
	Total                  int `json:"total"`
	Active                 int `json:"active"`
	Inactive               int `json:"inactive"`
	Mobile                 int `json:"mobile"`
	Desktop                int `json:"desktop"`
	UsersWithSubscriptions int `json:"usersWithSubscriptions"`
}
