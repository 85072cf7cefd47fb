package security

import (
	"errors"
	"net/http"
	"strings"

	"PChat/service/storage"
	"PChat/tools/errs"
	"PChat/tools/security"

	"github.com/gin-gonic/gin"
)

// Context keys set by the gate for downstream handlers.
const (
	CtxUserIDKey    = "user_id"
	CtxUserEmailKey = "user_email"
	CtxUserNameKey  = "user_name"
	CtxTokenKey     = "token"
)

const cookieName = "token"

type Options struct {
	Jwt security.Options

	// LoginPath is where unauthenticated page requests are redirected.
	LoginPath string
}

func DefaultOptions(jwt security.Options) *Options {
	return &Options{Jwt: jwt, LoginPath: "/login"}
}

// Middleware is the request gate: it extracts the token (cookie first, then
// Authorization bearer), verifies it and checks the revocation denylist. API
// requests fail with a 401 JSON body; page requests are redirected to the
// login path with the stale cookie cleared.
func Middleware(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			reject(c, opts, errs.ErrTokenMissing)
			return
		}

		claims, err := security.Verify(opts.Jwt, token)
		if err != nil {
			if errors.Is(err, security.ErrTokenExpired) {
				reject(c, opts, errs.ErrTokenExpired)
			} else {
				reject(c, opts, errs.ErrTokenInvalid)
			}
			return
		}
		if storage.IsTokenRevoked(c.Request.Context(), security.HashToken(token)) {
			reject(c, opts, errs.ErrTokenRevoked)
			return
		}

		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxUserEmailKey, claims.Email)
		c.Set(CtxUserNameKey, claims.Name)
		c.Set(CtxTokenKey, token)
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	if v, err := c.Cookie(cookieName); err == nil && v != "" {
		return v
	}
	authz := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return ""
}

func reject(c *gin.Context, opts *Options, cause errs.CodeError) {
	if isAPIRequest(c) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, cause)
		return
	}
	// stale cookie gets cleared so the browser does not loop on it
	c.SetCookie(cookieName, "", -1, "/", "", false, true)
	c.Redirect(http.StatusFound, opts.LoginPath)
	c.Abort()
}

func isAPIRequest(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/api/") ||
		strings.HasPrefix(c.Request.URL.Path, "/uploads/")
}

// UserID reads the authenticated user set by the gate. Empty when the route
// was not gated.
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserIDKey)
}

func UserEmail(c *gin.Context) string {
	return c.GetString(CtxUserEmailKey)
}

func UserName(c *gin.Context) string {
	return c.GetString(CtxUserNameKey)
}

func Token(c *gin.Context) string {
	return c.GetString(CtxTokenKey)
}
