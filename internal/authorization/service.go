package authorization

import (
	"context"
	"errors"

	"github.com/smallbiznis/tunedesk/internal/identity"
)

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)

// Service decides whether a caller may perform an action on an object.
type Service interface {
	Authorize(ctx context.Context, caller identity.Identity, object string, action string) error
}
