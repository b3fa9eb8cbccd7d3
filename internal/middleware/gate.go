package middleware

import (
	"errors"
	"net/http"

	"taskhub/internal/rbac"
	"taskhub/pkg/response"

	"github.com/gin-gonic/gin"
)

// ProbeSchema checks for the role tables once per request and stamps the
// answer on the request context. With the none backend nothing is probed.
func ProbeSchema(prober *rbac.SchemaProber, backend rbac.Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		present := false
		if backend != rbac.BackendNone {
			present = prober.Present(c.Request.Context())
		}
		c.Request = c.Request.WithContext(rbac.WithSchemaPresence(c.Request.Context(), present))
		c.Next()
	}
}

// RequireAnyRole lets the request through when the caller holds one of roles.
func RequireAnyRole(gate *rbac.Gate, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := gate.RequireAnyRole(c.Request.Context(), CurrentUser(c), roles); err != nil {
			abortDenied(c, err)
			return
		}
		c.Next()
	}
}

// RequirePermission lets the request through when the caller is granted one of perms.
func RequirePermission(gate *rbac.Gate, perms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := gate.RequirePermission(c.Request.Context(), CurrentUser(c), perms); err != nil {
			abortDenied(c, err)
			return
		}
		c.Next()
	}
}

func abortDenied(c *gin.Context, err error) {
	status := http.StatusForbidden
	if errors.Is(err, rbac.ErrUnauthenticated) {
		status = http.StatusUnauthorized
	}
	c.AbortWithStatusJSON(status, response.Error(status, err.Error()))
}
