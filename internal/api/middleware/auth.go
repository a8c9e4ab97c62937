package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/andresuchdata/backoffice/backend-go/internal/apperror"
	"github.com/andresuchdata/backoffice/backend-go/internal/auth"
	"github.com/andresuchdata/backoffice/backend-go/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
	principalKey  = "principal"
)

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// Auth rejects requests without a valid bearer token and stores the caller's
// principal in the context.
func Auth(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(AuthHeaderKey)
		if !strings.HasPrefix(header, BearerPrefix) {
			abortUnauthorized(c, auth.ErrInvalidToken, "missing bearer token")
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
		if token == "" {
			abortUnauthorized(c, auth.ErrInvalidToken, "empty bearer token")
			return
		}

		claims, err := tokens.Validate(token)
		if err != nil {
			abortUnauthorized(c, err, "token validation failed")
			return
		}

		c.Set(principalKey, claims.Principal())
		c.Next()
	}
}

// RequireRole answers 403 with message unless the principal has one of roles.
func RequireRole(message string, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if ok {
			for _, role := range roles {
				if principal.Role == role {
					c.Next()
					return
				}
			}
		}

		log.Warn().
			Str("request_id", RequestIDFrom(c)).
			Str("user_id", principal.UserID).
			Str("role", principal.Role).
			Str("path", c.Request.URL.Path).
			Msg("auth: role not permitted")
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"status":  "error",
			"success": false,
			"message": message,
		})
	}
}

// PrincipalFrom returns the principal stored by Auth.
func PrincipalFrom(c *gin.Context) (domain.Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := value.(domain.Principal)
	return principal, ok
}

func abortUnauthorized(c *gin.Context, err error, reason string) {
	log.Warn().
		Err(err).
		Str("request_id", RequestIDFrom(c)).
		Str("reason", reason).
		Str("path", c.Request.URL.Path).
		Msg("auth: request rejected")

	message := apperror.MsgAuthentication
	if errors.Is(err, auth.ErrExpiredToken) {
		message = "session expired, sign in again"
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"status":  "error",
		"success": false,
		"message": message,
	})
}
