package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-planner-api/internal/models"
	appErrors "github.com/noah-isme/course-planner-api/pkg/errors"
	"github.com/noah-isme/course-planner-api/pkg/response"
)

const (
	// ContextUserKey is the gin context key storing JWT claims.
	ContextUserKey = "currentUser"
	// ContextUserIDKey is the gin context key storing the resolved caller identity.
	ContextUserIDKey = "currentUserID"
	// UserIDHeader carries a caller identity from trusted legacy clients.
	UserIDHeader = "X-User-ID"
)

// TokenValidator verifies access tokens.
type TokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// JWT protects routes by requiring a valid access token.
func JWT(validator TokenValidator) gin.HandlerFunc {
	return Identity(validator, false)
}

// Identity resolves the caller from the bearer token, or from X-User-ID when allowHeader is set.
// A bearer token that fails verification is rejected even if the header is present.
func Identity(validator TokenValidator, allowHeader bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := resolve(c, validator, allowHeader); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if UserID(c) == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}

// OptionalIdentity attaches the caller when one can be resolved but never blocks.
func OptionalIdentity(validator TokenValidator, allowHeader bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		_ = resolve(c, validator, allowHeader)
		c.Next()
	}
}

// UserID returns the identity resolved for the request, or "".
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserIDKey)
}

// Claims returns the verified access-token claims, or nil when the caller was identified otherwise.
func Claims(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}

func resolve(c *gin.Context, validator TokenValidator, allowHeader bool) error {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return appErrors.Clone(appErrors.ErrAccessInvalid, "invalid authorization header")
		}
		claims, err := validator.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			return err
		}
		c.Set(ContextUserKey, claims)
		c.Set(ContextUserIDKey, claims.UserID())
		return nil
	}

	if allowHeader {
		if id := strings.TrimSpace(c.GetHeader(UserIDHeader)); id != "" {
			c.Set(ContextUserIDKey, id)
		}
	}
	return nil
}
