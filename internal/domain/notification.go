package domain

import (
	"encoding/json"
	"time"
)

// Priority controls Web Push urgency. High and urgent map to urgency=high.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// Urgency returns the Web Push urgency header value for this priority.
func (p Priority) Urgency() string {
	if p == PriorityUrgent || p == PriorityHigh {
		return "high"
	}
	return "normal"
}

// NotificationType tags the payload variant. Unknown types are carried
// through verbatim and routed to the generic inbox.
type NotificationType string

const (
	TypeTask          NotificationType = "task"
	TypeTaskAssigned  NotificationType = "task_assigned"
	TypeTaskCompleted NotificationType = "task_completed"
	TypeEmployee      NotificationType = "employee"
	TypeBranch        NotificationType = "branch"
	TypeVendor        NotificationType = "vendor"
	TypeInfo          NotificationType = "info"
	TypeSuccess       NotificationType = "success"
	TypeWarning       NotificationType = "warning"
	TypeError         NotificationType = "error"
	TypeAnnouncement  NotificationType = "announcement"
	TypeSystem        NotificationType = "system"
)

// NotificationRecord is the immutable content created by the business layer.
// This subsystem only reads it; it never mutates or owns these rows.
type NotificationRecord struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Type      NotificationType `json:"type"`
	Priority  Priority         `json:"priority"`
	Data      PayloadData      `json:"data"`
	CreatedAt time.Time        `json:"created_at"`
}

// PayloadData is the structured portion of a notification payload: a tagged
// union of the known variants plus an opaque map for everything else.
// URL, when set, always wins over the type-based route table.
type PayloadData struct {
	Type     NotificationType `json:"type,omitempty"`
	URL      string           `json:"url,omitempty"`
	EntityID string           `json:"entity_id,omitempty"`
	Priority Priority         `json:"priority,omitempty"`

	// Extra preserves fields of unknown variants so they survive a
	// round-trip untouched.
	Extra map[string]any `json:"-"`
}

func (d PayloadData) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Extra)+4)
	for k, v := range d.Extra {
		out[k] = v
	}
	if d.Type != "" {
		out["type"] = d.Type
	}
	if d.URL != "" {
		out["url"] = d.URL
	}
	if d.EntityID != "" {
		out["entity_id"] = d.EntityID
	}
	if d.Priority != "" {
		out["priority"] = d.Priority
	}
	return json.Marshal(out)
}

func (d *PayloadData) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	take := func(key string, dst any) {
		if v, ok := raw[key]; ok {
			if json.Unmarshal(v, dst) == nil {
				delete(raw, key)
			}
		}
	}
	take("type", &d.Type)
	take("url", &d.URL)
	take("entity_id", &d.EntityID)
	take("priority", &d.Priority)

	if len(raw) > 0 {
		d.Extra = make(map[string]any, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			d.Extra[k] = val
		}
	}
	return nil
}

// Payload is the denormalized copy of a NotificationRecord stored on each
// queue entry, plus the display fields handed to the platform.
type Payload struct {
	Title string      `json:"title"`
	Body  string      `json:"body"`
	Icon  string      `json:"icon,omitempty"`
	Badge string      `json:"badge,omitempty"`
	Tag   string      `json:"tag,omitempty"`
	Data  PayloadData `json:"data"`
}

// NotificationTag groups redundant platform notifications for one record.
func NotificationTag(notificationID string) string {
	return "notification-" + notificationID
}

// MaterializeRequest is the inbound call from the business layer after a
// NotificationRecord has been persisted.
type MaterializeRequest struct {
	NotificationID   string   `json:"notification_id"`
	RecipientUserIDs []string `json:"recipient_user_ids"`
}

func (r *MaterializeRequest) Validate() error {
	if r.NotificationID == "" {
		return ErrInvalidNotificationID
	}
	if len(r.RecipientUserIDs) == 0 {
		return ErrNoRecipients
	}
	return nil
}
