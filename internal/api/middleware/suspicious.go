package middleware

import (
	"authguard/internal/audit"

	"github.com/gin-gonic/gin"
)

// SuspiciousActivity records a security event for request values that look
// like injection attempts. The request itself is never rejected.
func SuspiciousActivity(recorder *audit.Recorder) gin.HandlerFunc {
	detector := audit.Detector{}
	return func(c *gin.Context) {
		events := detector.Events(
			audit.FromGin(c),
			c.Request.Method,
			c.Request.URL.Path,
			c.Request.URL.Query(),
			requestBody(c),
		)
		for _, event := range events {
			recorder.LogSecurityEvent(c.Request.Context(), event)
		}
		c.Next()
	}
}
