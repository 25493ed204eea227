package middleware

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"authguard/internal/audit"
	"authguard/internal/auth"
	"authguard/internal/models"

	"github.com/gin-gonic/gin"
)

const redacted = "[REDACTED]"

var sensitiveFields = map[string]struct{}{
	"password":        {},
	"currentPassword": {},
	"newPassword":     {},
	"token":           {},
	"secret":          {},
	"key":             {},
	"refreshToken":    {},
}

// actionsByRoute maps the last path segment of auth routes to their action
var actionsByRoute = map[string]models.AuditAction{
	"register":            models.AuditActionUserRegistered,
	"login":               models.AuditActionLoginSuccess,
	"logout":              models.AuditActionLogout,
	"change-password":     models.AuditActionPasswordChanged,
	"forgot-password":     models.AuditActionPasswordResetRequested,
	"reset-password":      models.AuditActionPasswordResetCompleted,
	"verify-email":        models.AuditActionEmailVerificationCompleted,
	"resend-verification": models.AuditActionEmailVerificationRequested,
	"setup-2fa":           models.AuditActionTwoFactorEnabled,
	"disable-2fa":         models.AuditActionTwoFactorDisabled,
	"verify-2fa":          models.AuditActionTwoFactorVerified,
	"update-profile":      models.AuditActionProfileUpdated,
}

// RequestAudit writes an audit entry for mutating requests and for every
// auth and admin request that the handler did not audit itself.
func RequestAudit(recorder *audit.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if !shouldAudit(c.Request.Method, path) {
			c.Next()
			return
		}

		start := time.Now()
		body := requestBody(c)
		c.Next()

		if audit.Recorded(c) {
			return
		}

		status := c.Writer.Status()
		if !c.Writer.Written() && len(c.Errors) > 0 {
			status = StatusFor(c.Errors.Last().Err)
		}

		rc := audit.FromGin(c)
		entry := models.AuditLog{
			Action:    actionForPath(path, status),
			Severity:  severityFor(path, status),
			Status:    models.AuditStatusSuccess,
			IPAddress: rc.IPAddress,
			UserAgent: rc.UserAgent,
			Details: models.Details{
				"method":     c.Request.Method,
				"path":       path,
				"statusCode": status,
				"duration":   time.Since(start).Milliseconds(),
			},
		}
		if status >= http.StatusBadRequest {
			entry.Status = models.AuditStatusFailure
		}
		if query := redactQuery(c.Request.URL.Query()); len(query) > 0 {
			entry.Details["query"] = query
		}
		if fields := redactBody(body); len(fields) > 0 {
			entry.Details["body"] = fields
		}
		if claims := auth.ClaimsFromContext(c); claims != nil {
			if id, err := claims.UserUUID(); err == nil {
				entry.UserID = &id
			}
		}

		recorder.LogAudit(c.Request.Context(), entry)
	}
}

func shouldAudit(method, path string) bool {
	if strings.HasSuffix(path, "/health") {
		return false
	}
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return strings.Contains(path, "/auth/") || strings.Contains(path, "/admin/")
}

func actionForPath(path string, status int) models.AuditAction {
	if !strings.Contains(path, "/auth/") {
		return models.AuditActionAPIRequest
	}
	segment := path[strings.LastIndex(path, "/")+1:]
	action, ok := actionsByRoute[segment]
	if !ok {
		return models.AuditActionAPIRequest
	}
	if action == models.AuditActionLoginSuccess && status >= http.StatusBadRequest {
		return models.AuditActionLoginFailed
	}
	return action
}

func severityFor(path string, status int) models.AuditSeverity {
	switch {
	case strings.Contains(path, "/admin/"), strings.HasSuffix(path, "/auth/disable-2fa"):
		return models.AuditSeverityCritical
	case status >= http.StatusInternalServerError:
		return models.AuditSeverityError
	case status >= http.StatusBadRequest:
		return models.AuditSeverityWarning
	default:
		return models.AuditSeverityInfo
	}
}

func redactQuery(query url.Values) map[string]interface{} {
	out := make(map[string]interface{}, len(query))
	for k, vs := range query {
		if _, ok := sensitiveFields[k]; ok {
			out[k] = redacted
			continue
		}
		out[k] = strings.Join(vs, ",")
	}
	return out
}

func redactBody(body []byte) map[string]interface{} {
	if len(body) == 0 {
		return nil
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil
	}
	for k := range fields {
		if _, ok := sensitiveFields[k]; ok {
			fields[k] = redacted
		}
	}
	return fields
}
