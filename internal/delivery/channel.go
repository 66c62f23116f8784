package delivery

import (
	"context"
	"errors"

	"github.com/aqura-labs/pushrelay/internal/domain"
)

// Delivery is one attempt to surface a notification on a device.
type Delivery struct {
	Subscription *domain.Subscription
	Payload      domain.Payload
	Priority     domain.Priority
}

// Channel is a single way of getting a notification in front of the user.
// Show returns nil on success, a PermanentError when no future attempt can
// succeed for this subscription, and any other error for transient failures.
type Channel interface {
	Name() string
	Show(ctx context.Context, d *Delivery) error
}

// PermanentError marks a delivery failure that retrying cannot fix, such as
// an expired subscription or revoked permission.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so IsPermanent reports true for it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
