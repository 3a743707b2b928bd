package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tunedesk/internal/identity"
	obscontext "github.com/smallbiznis/tunedesk/internal/observability/context"
)

// Headers set by the authentication proxy in front of the API.
const (
	HeaderUserID    = "X-User-Id"
	HeaderAccountID = "X-Account-Id"
	HeaderRole      = "X-Role"
)

const actorTypeUser = "user"

// IdentityRequired attaches the caller identity forwarded by the authentication
// layer and rejects requests that carry none.
func (s *Server) IdentityRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := identity.Identity{
			UserID:    strings.TrimSpace(c.GetHeader(HeaderUserID)),
			AccountID: strings.TrimSpace(c.GetHeader(HeaderAccountID)),
			Role:      strings.TrimSpace(c.GetHeader(HeaderRole)),
		}
		if caller.IsZero() {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := identity.WithIdentity(c.Request.Context(), caller)
		if caller.AccountID != "" {
			ctx = obscontext.WithAccountID(ctx, caller.AccountID)
		}
		ctx = obscontext.WithActor(ctx, actorTypeUser, caller.UserID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeWithContext(c *gin.Context, object string, action string) error {
	caller, ok := identity.FromContext(c.Request.Context())
	if !ok {
		return ErrUnauthorized
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}
	return s.authzSvc.Authorize(c.Request.Context(), caller, object, action)
}

func callerID(c *gin.Context) string {
	caller, ok := identity.FromContext(c.Request.Context())
	if !ok {
		return ""
	}
	return caller.UserID
}
