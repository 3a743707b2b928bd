package identity

import (
	"context"
	"strings"
)

// Role names accepted from the upstream authentication layer.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Identity is the caller attached to a request by the authentication layer in front of the API.
type Identity struct {
	UserID    string
	AccountID string
	Role      string
}

// IsZero reports whether no caller was identified.
func (i Identity) IsZero() bool {
	return strings.TrimSpace(i.UserID) == ""
}

// IsAdmin reports whether the caller holds the admin role.
func (i Identity) IsAdmin() bool {
	return strings.EqualFold(strings.TrimSpace(i.Role), RoleAdmin)
}

type identityKey struct{}

// WithIdentity stores id in the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	id.UserID = strings.TrimSpace(id.UserID)
	id.AccountID = strings.TrimSpace(id.AccountID)
	id.Role = strings.ToLower(strings.TrimSpace(id.Role))
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored in ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.IsZero() {
		return Identity{}, false
	}
	return id, true
}
