package clickrouter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aqura-labs/pushrelay/internal/clickrouter"
	"github.com/aqura-labs/pushrelay/internal/domain"
)

const appOrigin = "https://app.example.com"

// fakeDirectory scripts the platform's instance surface.
type fakeDirectory struct {
	instances []clickrouter.Instance
	readyErr  error
	neverOpen bool

	focused  []string
	opened   []string
	posted   map[string][]clickrouter.Message
	openedID string
}

func newFakeDirectory(instances ...clickrouter.Instance) *fakeDirectory {
	return &fakeDirectory{
		instances: instances,
		posted:    make(map[string][]clickrouter.Message),
		openedID:  "inst-new",
	}
}

func (f *fakeDirectory) List(context.Context) ([]clickrouter.Instance, error) {
	return f.instances, nil
}

func (f *fakeDirectory) Focus(_ context.Context, id string) error {
	f.focused = append(f.focused, id)
	return nil
}

func (f *fakeDirectory) Open(_ context.Context, path string) (string, error) {
	if f.neverOpen {
		return "", errors.New("platform refused to open a window")
	}
	f.opened = append(f.opened, path)
	return f.openedID, nil
}

func (f *fakeDirectory) AwaitReady(ctx context.Context, id string) error {
	if f.readyErr != nil {
		return f.readyErr
	}
	return ctx.Err()
}

func (f *fakeDirectory) Post(_ context.Context, id string, msg clickrouter.Message) error {
	f.posted[id] = append(f.posted[id], msg)
	return nil
}

func newRouter(dir clickrouter.InstanceDirectory) *clickrouter.Router {
	return clickrouter.New(dir, appOrigin, 50*time.Millisecond, zap.NewNop())
}

func clickPayload(data domain.PayloadData) domain.Payload {
	return domain.Payload{Title: "T", Body: "B", Data: data}
}

func TestRouter_FocusesExistingInstanceAndForwards(t *testing.T) {
	dir := newFakeDirectory(
		clickrouter.Instance{ID: "other", Origin: "https://elsewhere.example.com"},
		clickrouter.Instance{ID: "inst-1", Origin: appOrigin},
	)
	r := newRouter(dir)

	if err := r.HandleClick(context.Background(), clickPayload(domain.PayloadData{Type: domain.TypeTask})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dir.focused) != 1 || dir.focused[0] != "inst-1" {
		t.Fatalf("expected inst-1 focused, got %v", dir.focused)
	}
	if len(dir.opened) != 0 {
		t.Fatalf("expected no new instance, opened %v", dir.opened)
	}
	msgs := dir.posted["inst-1"]
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message forwarded, got %d", len(msgs))
	}
	if msgs[0].Type != clickrouter.MessageTypeClick {
		t.Fatalf("expected %s message, got %s", clickrouter.MessageTypeClick, msgs[0].Type)
	}
}

func TestRouter_OpensNewInstanceWhenNoneMatch(t *testing.T) {
	dir := newFakeDirectory(
		clickrouter.Instance{ID: "other", Origin: "https://elsewhere.example.com"},
	)
	r := newRouter(dir)

	data := domain.PayloadData{Type: domain.TypeTaskAssigned, EntityID: "task-42"}
	if err := r.HandleClick(context.Background(), clickPayload(data)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dir.opened) != 1 || dir.opened[0] != "/tasks/task-42" {
		t.Fatalf("expected a new instance at /tasks/task-42, got %v", dir.opened)
	}
	if len(dir.posted["inst-new"]) != 1 {
		t.Fatal("expected the click forwarded to the new instance once ready")
	}
	if len(dir.posted["other"]) != 0 {
		t.Fatal("foreign-origin instance must not receive the payload")
	}
}

func TestRouter_ReadyTimeoutDropsPayloadQuietly(t *testing.T) {
	dir := newFakeDirectory()
	dir.readyErr = context.DeadlineExceeded
	r := newRouter(dir)

	if err := r.HandleClick(context.Background(), clickPayload(domain.PayloadData{Type: domain.TypeInfo})); err != nil {
		t.Fatalf("a slow instance must not fail the click, got %v", err)
	}
	if len(dir.opened) != 1 {
		t.Fatalf("expected the instance still opened, got %v", dir.opened)
	}
	if len(dir.posted) != 0 {
		t.Fatalf("expected no payload forwarded after timeout, got %v", dir.posted)
	}
}

func TestRouter_OpenFailureSurfaces(t *testing.T) {
	dir := newFakeDirectory()
	dir.neverOpen = true
	r := newRouter(dir)

	if err := r.HandleClick(context.Background(), clickPayload(domain.PayloadData{})); err == nil {
		t.Fatal("expected error when the platform cannot open an instance")
	}
}

func TestDestination(t *testing.T) {
	tests := []struct {
		name string
		data domain.PayloadData
		want string
	}{
		{"explicit url wins", domain.PayloadData{Type: domain.TypeTask, URL: "/custom/route"}, "/custom/route"},
		{"task", domain.PayloadData{Type: domain.TypeTask}, "/tasks"},
		{"task with entity", domain.PayloadData{Type: domain.TypeTaskCompleted, EntityID: "7"}, "/tasks/7"},
		{"employee", domain.PayloadData{Type: domain.TypeEmployee, EntityID: "e-9"}, "/employees/e-9"},
		{"branch", domain.PayloadData{Type: domain.TypeBranch}, "/branches"},
		{"vendor", domain.PayloadData{Type: domain.TypeVendor}, "/vendors"},
		{"warning goes to inbox", domain.PayloadData{Type: domain.TypeWarning}, "/notifications"},
		{"announcement goes to inbox", domain.PayloadData{Type: domain.TypeAnnouncement}, "/notifications"},
		{"system goes to dashboard", domain.PayloadData{Type: domain.TypeSystem}, "/dashboard"},
		{"unknown type goes to inbox", domain.PayloadData{Type: "mystery"}, "/notifications"},
		{"empty goes to inbox", domain.PayloadData{}, "/notifications"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clickrouter.Destination(tt.data); got != tt.want {
				t.Fatalf("Destination(%+v) = %q, want %q", tt.data, got, tt.want)
			}
		})
	}
}
