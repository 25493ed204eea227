package audit

import (
	"encoding/json"
	"net/url"
	"regexp"

	"authguard/internal/models"
)

var (
	sqlInjectionPattern = regexp.MustCompile(`(?i)('|"|;|--|/\*|\*/|xp_|sp_|exec|select|insert|update|delete|drop|union|into|load_file|outfile)`)
	xssPattern          = regexp.MustCompile(`(?i)(<script|javascript:|on\w+\s*=|alert\s*\(|eval\s*\()`)
)

const (
	ReasonSQLInjection = "Potential SQL injection attempt"
	ReasonXSS          = "Potential XSS attempt"
)

// Detector flags request payloads that look like injection attempts
type Detector struct{}

// Inspect returns one reason per matching pattern class. Only top-level
// string values of the query and of a JSON object body are considered.
func (Detector) Inspect(query url.Values, body []byte) []string {
	values := collectValues(query, body)

	var sqlHit, xssHit bool
	for _, v := range values {
		if !sqlHit && sqlInjectionPattern.MatchString(v) {
			sqlHit = true
		}
		if !xssHit && xssPattern.MatchString(v) {
			xssHit = true
		}
	}

	var reasons []string
	if sqlHit {
		reasons = append(reasons, ReasonSQLInjection)
	}
	if xssHit {
		reasons = append(reasons, ReasonXSS)
	}
	return reasons
}

// Events builds the suspicious_login events for a request
func (d Detector) Events(rc RequestContext, method, path string, query url.Values, body []byte) []models.SecurityEvent {
	var events []models.SecurityEvent
	for _, reason := range d.Inspect(query, body) {
		events = append(events, models.SecurityEvent{
			EventType: models.SecurityEventSuspiciousLogin,
			Severity:  models.SecuritySeverityHigh,
			IPAddress: rc.IPAddress,
			UserAgent: rc.UserAgent,
			Details: models.Details{
				"reason": reason,
				"path":   path,
				"method": method,
			},
		})
	}
	return events
}

func collectValues(query url.Values, body []byte) []string {
	var values []string
	for _, vs := range query {
		values = append(values, vs...)
	}

	if len(body) == 0 {
		return values
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(body, &obj); err != nil {
		return values
	}
	for _, v := range obj {
		if s, ok := v.(string); ok {
			values = append(values, s)
		}
	}
	return values
}
