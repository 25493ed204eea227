// Package logger configures the process-wide logrus logger and provides the
// gin request logging middleware.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"authguard/internal/config"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Setup applies level and format from the configuration.
func Setup(cfg config.LogConfig) {
	SetupWithOutput(cfg, os.Stdout)
}

// SetupWithOutput is Setup with an explicit writer.
func SetupWithOutput(cfg config.LogConfig, out io.Writer) {
	log.SetOutput(out)

	level, err := log.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	if err != nil && cfg.Level != "" {
		log.WithField("level", cfg.Level).Warn("unknown log level, using info")
	}
}

// GinLogger logs one line per request.
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(log.Fields{
			"method":    c.Request.Method,
			"path":      path,
			"status":    status,
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		})
		if userID, ok := c.Get("user_id"); ok {
			entry = entry.WithField("user_id", userID)
		}

		switch {
		case status >= 500:
			entry.Error("request completed")
		case status >= 400:
			entry.Warn("request completed")
		default:
			entry.Info("request completed")
		}
	}
}
