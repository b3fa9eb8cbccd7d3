package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"taskhub/internal/model"
	"taskhub/pkg/response"

	"github.com/gin-gonic/gin"
)

// Context keys set by Authenticate.
const (
	ContextUser  = "user"
	ContextToken = "token"
)

const accessTokenCookie = "access_token"

// TokenAuthenticator resolves an access token to its user and stored token row.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, *model.AccessToken, error)
}

// CookieOptions controls the access_token cookie.
type CookieOptions struct {
	Secure bool
}

func (o CookieOptions) sameSite() http.SameSite {
	// Cross-origin frontends need SameSite=None, which browsers only accept on secure cookies
	if o.Secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// SetTokenCookies sets access_token as an HttpOnly cookie expiring with the token.
func SetTokenCookies(c *gin.Context, opts CookieOptions, accessToken string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = 3600 * 24
	}
	c.SetSameSite(opts.sameSite())
	c.SetCookie(accessTokenCookie, accessToken, maxAge, "/", "", opts.Secure, true)
}

// ClearTokenCookies removes the access_token cookie
func ClearTokenCookies(c *gin.Context, opts CookieOptions) {
	c.SetSameSite(opts.sameSite())
	c.SetCookie(accessTokenCookie, "", -1, "/", "", opts.Secure, true)
}

// Authenticate requires a valid access token from the access_token cookie or
// an "Authorization: Bearer" header, and stores the user and token on the context.
func Authenticate(auth TokenAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := extractToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Unauthenticated."))
			return
		}

		user, token, err := auth.Authenticate(c.Request.Context(), tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Unauthenticated."))
			return
		}

		c.Set(ContextUser, user)
		c.Set(ContextToken, token)
		c.Next()
	}
}

func extractToken(c *gin.Context) (string, bool) {
	// Try cookie first, fallback to Authorization header
	if tokenString, err := c.Cookie(accessTokenCookie); err == nil && tokenString != "" {
		return tokenString, true
	}

	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// CurrentUser returns the authenticated user, or nil on public routes.
func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil
	}
	user, _ := v.(*model.User)
	return user
}

// CurrentToken returns the access token row used for this request.
func CurrentToken(c *gin.Context) *model.AccessToken {
	v, ok := c.Get(ContextToken)
	if !ok {
		return nil
	}
	token, _ := v.(*model.AccessToken)
	return token
}
