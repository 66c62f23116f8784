package clickrouter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aqura-labs/pushrelay/internal/domain"
)

// MessageTypeClick is the message type forwarded to an app instance when a
// notification is clicked.
const MessageTypeClick = "NOTIFICATION_CLICK"

// Message is what an app instance receives after a click.
type Message struct {
	Type    string         `json:"type"`
	Payload domain.Payload `json:"payload"`
}

// Instance is one open app instance (window, tab, or installed app view).
type Instance struct {
	ID     string
	Origin string
}

// InstanceDirectory abstracts the platform's view of open app instances.
type InstanceDirectory interface {
	List(ctx context.Context) ([]Instance, error)
	Focus(ctx context.Context, instanceID string) error
	// Open launches a new instance at the given in-app path and returns its id.
	Open(ctx context.Context, path string) (string, error)
	// AwaitReady blocks until the instance can receive messages or ctx ends.
	AwaitReady(ctx context.Context, instanceID string) error
	Post(ctx context.Context, instanceID string, msg Message) error
}

const (
	inboxRoute     = "/notifications"
	dashboardRoute = "/dashboard"
)

// routes maps notification types to their in-app destinations. Unknown
// types land in the generic inbox.
var routes = map[domain.NotificationType]string{
	domain.TypeTask:          "/tasks",
	domain.TypeTaskAssigned:  "/tasks",
	domain.TypeTaskCompleted: "/tasks",
	domain.TypeEmployee:      "/employees",
	domain.TypeBranch:        "/branches",
	domain.TypeVendor:        "/vendors",
	domain.TypeInfo:          inboxRoute,
	domain.TypeSuccess:       inboxRoute,
	domain.TypeWarning:       inboxRoute,
	domain.TypeError:         inboxRoute,
	domain.TypeAnnouncement:  inboxRoute,
	domain.TypeSystem:        dashboardRoute,
}

// Router handles notification clicks: reuse an open app instance when one
// exists, otherwise open a new one at the notification's destination.
type Router struct {
	dir          InstanceDirectory
	appOrigin    string
	readyTimeout time.Duration
	logger       *zap.Logger
}

func New(dir InstanceDirectory, appOrigin string, readyTimeout time.Duration, logger *zap.Logger) *Router {
	return &Router{dir: dir, appOrigin: appOrigin, readyTimeout: readyTimeout, logger: logger}
}

// HandleClick routes one click. Focus-and-forward when an instance of the
// app is already open; otherwise open a new instance at the destination and
// forward once it signals readiness. The readiness wait is bounded: if the
// new instance never becomes ready the click still opened the app, so the
// error is logged, not returned.
func (r *Router) HandleClick(ctx context.Context, payload domain.Payload) error {
	instances, err := r.dir.List(ctx)
	if err != nil {
		return fmt.Errorf("list instances: %w", err)
	}

	msg := Message{Type: MessageTypeClick, Payload: payload}

	for _, inst := range instances {
		if inst.Origin != r.appOrigin {
			continue
		}
		if err := r.dir.Focus(ctx, inst.ID); err != nil {
			r.logger.Warn("focus failed, falling through to next instance",
				zap.String("instance_id", inst.ID), zap.Error(err))
			continue
		}
		if err := r.dir.Post(ctx, inst.ID, msg); err != nil {
			return fmt.Errorf("forward click to instance %s: %w", inst.ID, err)
		}
		return nil
	}

	instanceID, err := r.dir.Open(ctx, Destination(payload.Data))
	if err != nil {
		return fmt.Errorf("open instance: %w", err)
	}

	// Forward only to the instance just opened; an instance that closed
	// between List and now must not receive the payload.
	waitCtx, cancel := context.WithTimeout(ctx, r.readyTimeout)
	defer cancel()
	if err := r.dir.AwaitReady(waitCtx, instanceID); err != nil {
		r.logger.Warn("new instance not ready in time, click payload dropped",
			zap.String("instance_id", instanceID), zap.Error(err))
		return nil
	}
	if err := r.dir.Post(ctx, instanceID, msg); err != nil {
		return fmt.Errorf("forward click to new instance: %w", err)
	}
	return nil
}

// Destination resolves where a click lands: an explicit URL always wins,
// then the type route table, then the inbox.
func Destination(data domain.PayloadData) string {
	if data.URL != "" {
		return data.URL
	}
	route, ok := routes[data.Type]
	if !ok {
		return inboxRoute
	}
	if data.EntityID != "" && route != inboxRoute && route != dashboardRoute {
		return route + "/" + data.EntityID
	}
	return route
}
