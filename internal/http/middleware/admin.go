package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/casedeskhq/casedesk/internal/guard"
)

// SessionCookie is the name of the hosted auth provider's session cookie.
const SessionCookie = "cd_session"

// Admin rejects requests whose caller is not an active owner or admin of the
// resolved tenant. The guard runs before the wrapped handler, so no privileged
// handler can mutate state for an unauthorized caller.
type Admin struct {
	Guard *guard.Guard
}

// RequireAdmin validates the session and membership, attaching the actor.
func (m *Admin) RequireAdmin(c *gin.Context) {
	tenantCtx, ok := GetTenantContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "invalid_tenant", "error_description": "Tenant missing."})
		return
	}

	actor, err := m.Guard.RequireAdmin(c.Request.Context(), tenantCtx.Tenant.ID, SessionToken(c))
	if err != nil {
		switch {
		case errors.Is(err, guard.ErrUnauthenticated):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "error_description": "Sign-in required."})
		case errors.Is(err, guard.ErrForbidden):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "error_description": "Admin role required."})
		default:
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "dependency_error", "error_description": "Membership lookup failed."})
		}
		return
	}

	c.Set(actorKey, actor)
	c.Next()
}

// SessionToken extracts the caller's session token from the Authorization
// header, falling back to the session cookie.
func SessionToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}

// GetActor exposes the authorized caller to handlers.
func GetActor(c *gin.Context) (*guard.Actor, bool) {
	value, ok := c.Get(actorKey)
	if !ok {
		return nil, false
	}
	actor, ok := value.(*guard.Actor)
	return actor, ok
}
