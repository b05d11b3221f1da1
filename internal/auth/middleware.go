package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/procurehq/orderdesk/internal/apperr"
)

const subjectContextKey = "auth.subject"

// Middleware enforces a bearer credential on the route. On success the
// verified subject is stored in the gin context for SubjectFrom.
func Middleware(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing_credentials", "msg": "Authorization header required"})
			c.Abort()
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "malformed_credentials", "msg": "Authorization header must be 'Bearer <token>'"})
			c.Abort()
			return
		}

		sub, err := v.Verify(tokenParts[1])
		if err != nil {
			c.JSON(apperr.HTTPStatus(err), gin.H{"error": apperr.Code(err), "msg": apperr.ClientMessage(err)})
			c.Abort()
			return
		}

		c.Set(subjectContextKey, sub)
		c.Next()
	}
}

// SubjectFrom returns the authenticated subject set by Middleware.
func SubjectFrom(c *gin.Context) (*Subject, bool) {
	v, exists := c.Get(subjectContextKey)
	if !exists {
		return nil, false
	}
	sub, ok := v.(*Subject)
	return sub, ok
}
