package models

import (
	"time"

	"github.com/google/uuid"
)

// DeviceType classifies the client device of a session
type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceDesktop DeviceType = "desktop"
	DeviceOther   DeviceType = "other"
)

// Device is parsed from the User-Agent header
type Device struct {
	Type    DeviceType `json:"type"`
	Name    string     `json:"name"`
	OS      string     `json:"os"`
	Browser string     `json:"browser"`
}

// UserSession tracks one issued access/refresh token pair.
// Tokens are never serialized.
type UserSession struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"userId"`
	Token        string    `json:"-"`
	RefreshToken string    `json:"-"`
	IPAddress    string    `json:"ipAddress,omitempty"`
	UserAgent    string    `json:"userAgent,omitempty"`
	Device       Device    `json:"device"`
	Location     *Location `json:"location,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	User         *UserRef  `json:"user,omitempty"`
}

// IsValid reports whether the session is active and unexpired at now
func (s *UserSession) IsValid(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now)
}
