package middleware

import (
	"bytes"
	"io"

	"github.com/gin-gonic/gin"
)

const (
	rawBodyKey   = "raw_body"
	maxBodyBytes = 64 << 10
)

// requestBody reads up to maxBodyBytes of the body once per request and
// restores it for later binding
func requestBody(c *gin.Context) []byte {
	if v, ok := c.Get(rawBodyKey); ok {
		return v.([]byte)
	}
	if c.Request.Body == nil {
		return nil
	}

	head, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		head = nil
	}
	c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(head), c.Request.Body))
	c.Set(rawBodyKey, head)
	return head
}
