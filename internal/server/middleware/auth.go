package middleware

import (
	"net/http"
	"strings"

	"github.com/barterverse-backend/internal/chat/ws"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// IdentityKey is the gin context key holding the authenticated identity
	IdentityKey = "auth_identity"
)

// Auth middleware verifies the bearer token on REST endpoints and stores the
// authenticated identity in the request context
func Auth(verifier *ws.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")

		identity, err := verifier.Verify(token)
		if err != nil {
			response := gin.H{
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "invalid or missing token",
				},
			}
			if correlationID := GetCorrelationID(c); correlationID != "" {
				response["correlation_id"] = correlationID
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, response)
			return
		}

		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// CurrentUser returns the authenticated user ID, or uuid.Nil when the request
// did not pass the Auth middleware
func CurrentUser(c *gin.Context) uuid.UUID {
	if v, exists := c.Get(IdentityKey); exists {
		if identity, ok := v.(*ws.Identity); ok {
			return identity.UserID
		}
	}
	return uuid.Nil
}
