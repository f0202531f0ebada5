package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nurpe/subcontract-billing/internal/model"
)

const principalKey = "principal"

type TokenParser interface {
	Parse(token string) (model.Principal, error)
}

// Auth requires a bearer access token and stores the decoded principal.
func Auth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abortUnauthorized(c, "invalid authorization header")
			return
		}

		principal, err := parser.Parse(strings.TrimSpace(token))
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{
		"kind":    "Unauthorized",
		"code":    "UNAUTHORIZED",
		"message": message,
	}})
}

func MustPrincipal(c *gin.Context) (model.Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return model.Principal{}, false
	}
	principal, ok := value.(model.Principal)
	return principal, ok
}
