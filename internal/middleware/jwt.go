package middleware

import (
	"github.com/gin-gonic/gin" // Gin web framework

	"expense_tracker/internal/apperr" // Error responses
	"expense_tracker/internal/utils"  // JWT utility functions
)

var errUnauthorized = apperr.Unauthorized("Unauthorized")

// Context keys set by the session middleware
const (
	ContextUserID = "userID"
	ContextEmail  = "email"
)

// SessionClaims reads and verifies the session cookie. ok is false when the
// cookie is missing, malformed, badly signed or expired.
func SessionClaims(c *gin.Context, secret, cookieName string) (*utils.Claims, bool) {
	tokenStr, err := c.Cookie(cookieName) // Session token travels in an http-only cookie
	if err != nil || tokenStr == "" {
		return nil, false
	}
	claims, err := utils.ParseJWT(tokenStr, secret) // Verify signature and expiry
	if err != nil {
		return nil, false
	}
	return claims, true
}

// SessionAuthMiddleware rejects requests without a valid session cookie and
// stores the acting user in the context.
func SessionAuthMiddleware(secret, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := SessionClaims(c, secret, cookieName)
		if !ok {
			// Missing, invalid and expired sessions look the same to the client
			c.AbortWithStatusJSON(apperr.Response(errUnauthorized))
			return
		}
		c.Set(ContextUserID, claims.UserID) // Store userID in context
		c.Set(ContextEmail, claims.Email)
		c.Next() // Proceed to the next handler
	}
}

// UserID returns the acting user's id set by SessionAuthMiddleware
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
