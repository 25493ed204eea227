package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of account action recorded
type AuditAction string

const (
	AuditActionUserRegistered             AuditAction = "user_registered"
	AuditActionLoginSuccess               AuditAction = "user_login_success"
	AuditActionLoginFailed                AuditAction = "user_login_failed"
	AuditActionLogout                     AuditAction = "user_logout"
	AuditActionPasswordChanged            AuditAction = "password_changed"
	AuditActionPasswordResetRequested     AuditAction = "password_reset_requested"
	AuditActionPasswordResetCompleted     AuditAction = "password_reset_completed"
	AuditActionEmailVerificationRequested AuditAction = "email_verification_requested"
	AuditActionEmailVerificationCompleted AuditAction = "email_verification_completed"
	AuditActionTwoFactorEnabled           AuditAction = "two_factor_enabled"
	AuditActionTwoFactorDisabled          AuditAction = "two_factor_disabled"
	AuditActionTwoFactorVerified          AuditAction = "two_factor_verified"
	AuditActionAccountLocked              AuditAction = "account_locked"
	AuditActionAccountUnlocked            AuditAction = "account_unlocked"
	AuditActionAccountDeactivated         AuditAction = "account_deactivated"
	AuditActionAccountReactivated         AuditAction = "account_reactivated"
	AuditActionOAuthLogin                 AuditAction = "oauth_login"
	AuditActionOAuthLink                  AuditAction = "oauth_link"
	AuditActionOAuthUnlink                AuditAction = "oauth_unlink"
	AuditActionProfileUpdated             AuditAction = "profile_updated"
	AuditActionAvatarUpdated              AuditAction = "avatar_updated"
	AuditActionPreferencesUpdated         AuditAction = "preferences_updated"
	AuditActionUserRoleChanged            AuditAction = "user_role_changed"
	AuditActionUserDeleted                AuditAction = "user_deleted"
	AuditActionUserCreated                AuditAction = "user_created"
	AuditActionSystemSettingsUpdated      AuditAction = "system_settings_updated"
	// AuditActionAPIRequest is recorded by the request audit middleware for
	// routes without a more specific action.
	AuditActionAPIRequest AuditAction = "api_request"
)

var auditActions = map[AuditAction]struct{}{
	AuditActionUserRegistered: {}, AuditActionLoginSuccess: {}, AuditActionLoginFailed: {},
	AuditActionLogout: {}, AuditActionPasswordChanged: {}, AuditActionPasswordResetRequested: {},
	AuditActionPasswordResetCompleted: {}, AuditActionEmailVerificationRequested: {},
	AuditActionEmailVerificationCompleted: {}, AuditActionTwoFactorEnabled: {},
	AuditActionTwoFactorDisabled: {}, AuditActionTwoFactorVerified: {}, AuditActionAccountLocked: {},
	AuditActionAccountUnlocked: {}, AuditActionAccountDeactivated: {}, AuditActionAccountReactivated: {},
	AuditActionOAuthLogin: {}, AuditActionOAuthLink: {}, AuditActionOAuthUnlink: {},
	AuditActionProfileUpdated: {}, AuditActionAvatarUpdated: {}, AuditActionPreferencesUpdated: {},
	AuditActionUserRoleChanged: {}, AuditActionUserDeleted: {}, AuditActionUserCreated: {},
	AuditActionSystemSettingsUpdated: {}, AuditActionAPIRequest: {},
}

// Valid reports whether a is a known action
func (a AuditAction) Valid() bool {
	_, ok := auditActions[a]
	return ok
}

// AuditSeverity grades an audit entry
type AuditSeverity string

const (
	AuditSeverityInfo     AuditSeverity = "info"
	AuditSeverityWarning  AuditSeverity = "warning"
	AuditSeverityError    AuditSeverity = "error"
	AuditSeverityCritical AuditSeverity = "critical"
)

// Valid reports whether s is a known severity
func (s AuditSeverity) Valid() bool {
	switch s {
	case AuditSeverityInfo, AuditSeverityWarning, AuditSeverityError, AuditSeverityCritical:
		return true
	}
	return false
}

// AuditStatus is the outcome of the audited action
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
)

// Details is free-form context stored as JSON
type Details map[string]interface{}

// AuditLog is an append-only record of an account action
type AuditLog struct {
	ID        uuid.UUID     `json:"id"`
	UserID    *uuid.UUID    `json:"userId"` // nil for anonymous actions
	Action    AuditAction   `json:"action"`
	Severity  AuditSeverity `json:"severity"`
	Status    AuditStatus   `json:"status"`
	IPAddress string        `json:"ipAddress,omitempty"`
	UserAgent string        `json:"userAgent,omitempty"`
	Details   Details       `json:"details,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	User      *UserRef      `json:"user,omitempty"`
}
