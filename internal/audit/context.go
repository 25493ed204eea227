package audit

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// RequestContext carries the client details attached to every record
type RequestContext struct {
	IPAddress string
	UserAgent string
}

// FromGin extracts the client address and user agent for records. The
// first X-Forwarded-For entry wins over gin's ClientIP. Rate limiters key
// on ClientIP instead.
func FromGin(c *gin.Context) RequestContext {
	ip := c.ClientIP()
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			ip = first
		}
	}
	return RequestContext{
		IPAddress: ip,
		UserAgent: c.Request.UserAgent(),
	}
}

const recordedKey = "audit_recorded"

// MarkRecorded flags the request as audited by its handler so the request
// audit middleware does not write a second entry
func MarkRecorded(c *gin.Context) {
	c.Set(recordedKey, true)
}

// Recorded reports whether MarkRecorded was called for the request
func Recorded(c *gin.Context) bool {
	return c.GetBool(recordedKey)
}
