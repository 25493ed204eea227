package models

import (
	"time"

	"github.com/google/uuid"
)

// SecurityEventType is the heuristic category of a security event
type SecurityEventType string

const (
	SecurityEventSuspiciousLogin   SecurityEventType = "suspicious_login"
	SecurityEventBruteForceAttempt SecurityEventType = "brute_force_attempt"
	SecurityEventPasswordGuessing  SecurityEventType = "password_guessing"
	SecurityEventSessionHijacking  SecurityEventType = "session_hijacking"
	SecurityEventUnusualLocation   SecurityEventType = "unusual_location"
	SecurityEventUnusualDevice     SecurityEventType = "unusual_device"
)

// Valid reports whether t is a known event type
func (t SecurityEventType) Valid() bool {
	switch t {
	case SecurityEventSuspiciousLogin, SecurityEventBruteForceAttempt, SecurityEventPasswordGuessing,
		SecurityEventSessionHijacking, SecurityEventUnusualLocation, SecurityEventUnusualDevice:
		return true
	}
	return false
}

// SecuritySeverity grades a security event
type SecuritySeverity string

const (
	SecuritySeverityLow      SecuritySeverity = "low"
	SecuritySeverityMedium   SecuritySeverity = "medium"
	SecuritySeverityHigh     SecuritySeverity = "high"
	SecuritySeverityCritical SecuritySeverity = "critical"
)

// Valid reports whether s is a known severity
func (s SecuritySeverity) Valid() bool {
	switch s {
	case SecuritySeverityLow, SecuritySeverityMedium, SecuritySeverityHigh, SecuritySeverityCritical:
		return true
	}
	return false
}

// Location is a best-effort geolocation of an IP address
type Location struct {
	Country   string  `json:"country,omitempty"`
	City      string  `json:"city,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SecurityEvent records heuristically detected suspicious activity
type SecurityEvent struct {
	ID         uuid.UUID         `json:"id"`
	UserID     *uuid.UUID        `json:"userId"`
	EventType  SecurityEventType `json:"eventType"`
	Severity   SecuritySeverity  `json:"severity"`
	IPAddress  string            `json:"ipAddress,omitempty"`
	UserAgent  string            `json:"userAgent,omitempty"`
	Location   *Location         `json:"location,omitempty"`
	Details    Details           `json:"details,omitempty"`
	Resolved   bool              `json:"resolved"`
	ResolvedBy *uuid.UUID        `json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time        `json:"resolvedAt,omitempty"`
	Notes      string            `json:"notes,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	User       *UserRef          `json:"user,omitempty"`
}
