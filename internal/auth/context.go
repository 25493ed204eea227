package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenContextKey is the gin context key holding the raw access token
const TokenContextKey = "access_token"

// BearerToken returns the token from an "Authorization: Bearer" header, or
// an empty string
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// TokenFromContext returns the access token stored by the auth middleware
func TokenFromContext(c *gin.Context) string {
	return c.GetString(TokenContextKey)
}
