package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/aqura-labs/pushrelay/internal/domain"
)

func TestPayloadData_KnownVariant(t *testing.T) {
	in := `{"type":"task_assigned","url":"/tasks/7","entity_id":"7","priority":"high"}`

	var d domain.PayloadData
	if err := json.Unmarshal([]byte(in), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Type != domain.TypeTaskAssigned || d.URL != "/tasks/7" || d.EntityID != "7" || d.Priority != domain.PriorityHigh {
		t.Fatalf("fields not decoded: %+v", d)
	}
	if len(d.Extra) != 0 {
		t.Fatalf("known fields must not leak into Extra: %v", d.Extra)
	}
}

func TestPayloadData_UnknownFieldsSurviveRoundTrip(t *testing.T) {
	in := `{"type":"shipment_update","tracking_no":"TRK-99","hops":3}`

	var d domain.PayloadData
	if err := json.Unmarshal([]byte(in), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Type != "shipment_update" {
		t.Fatalf("unknown type must be carried verbatim, got %q", d.Type)
	}
	if d.Extra["tracking_no"] != "TRK-99" {
		t.Fatalf("expected extra field preserved, got %v", d.Extra)
	}

	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("re-unmarshal: %v", err)
	}
	if decoded["tracking_no"] != "TRK-99" || decoded["type"] != "shipment_update" {
		t.Fatalf("round trip lost fields: %v", decoded)
	}
	if decoded["hops"] != float64(3) {
		t.Fatalf("round trip lost numeric field: %v", decoded)
	}
}

func TestPriorityUrgency(t *testing.T) {
	tests := []struct {
		p    domain.Priority
		want string
	}{
		{domain.PriorityUrgent, "high"},
		{domain.PriorityHigh, "high"},
		{domain.PriorityNormal, "normal"},
		{domain.PriorityLow, "normal"},
	}
	for _, tt := range tests {
		if got := tt.p.Urgency(); got != tt.want {
			t.Errorf("Urgency(%s) = %s, want %s", tt.p, got, tt.want)
		}
	}
}

func TestMaterializeRequestValidate(t *testing.T) {
	ok := domain.MaterializeRequest{NotificationID: "n-1", RecipientUserIDs: []string{"u-1"}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	missing := domain.MaterializeRequest{RecipientUserIDs: []string{"u-1"}}
	if err := missing.Validate(); err != domain.ErrInvalidNotificationID {
		t.Fatalf("expected ErrInvalidNotificationID, got %v", err)
	}

	empty := domain.MaterializeRequest{NotificationID: "n-1"}
	if err := empty.Validate(); err != domain.ErrNoRecipients {
		t.Fatalf("expected ErrNoRecipients, got %v", err)
	}
}

func TestStatusIsTerminal(t *testing.T) {
	for _, s := range []domain.Status{domain.StatusPending, domain.StatusProcessing, domain.StatusRetry} {
		if s.IsTerminal() {
			t.Errorf("%s must not be terminal", s)
		}
	}
	for _, s := range []domain.Status{domain.StatusSent, domain.StatusFailed} {
		if !s.IsTerminal() {
			t.Errorf("%s must be terminal", s)
		}
	}
}
