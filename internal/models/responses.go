package models

import "time"

// SuccessResponse represents a success response
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// PaginatedResponse wraps one page of a list
type PaginatedResponse struct {
	Success     bool        `json:"success"`
	Count       int         `json:"count"`
	Total       int         `json:"total"`
	TotalPages  int         `json:"totalPages"`
	CurrentPage int         `json:"currentPage"`
	Data        interface{} `json:"data"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	User                UserSummary `json:"user"`
	Token               string      `json:"token"`
	RefreshToken        string      `json:"refreshToken,omitempty"`
	IsTwoFactorRequired bool        `json:"isTwoFactorRequired"`
}

// TokenPair is returned by refresh-token and verify-2fa
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// TwoFactorSetupResponse carries the new TOTP secret
type TwoFactorSetupResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
}

// CountResponse reports how many records an operation affected
type CountResponse struct {
	Count int64 `json:"count"`
}

// UserActivity summarizes one user's recent activity for admins
type UserActivity struct {
	User                 UserSummary     `json:"user"`
	LoginCount           int             `json:"loginCount"`
	FailedLoginCount     int             `json:"failedLoginCount"`
	LastLogin            *time.Time      `json:"lastLogin,omitempty"`
	ActiveSessions       int             `json:"activeSessions"`
	RecentAuditLogs      []AuditLog      `json:"recentAuditLogs"`
	RecentSecurityEvents []SecurityEvent `json:"recentSecurityEvents"`
}

// DailyLoginStat counts logins for one day
type DailyLoginStat struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

// DashboardStats is the admin dashboard payload
type DashboardStats struct {
	Users struct {
		Total int `json:"total"`
		New   int `json:"new"`
	} `json:"users"`
	Sessions struct {
		Active int `json:"active"`
	} `json:"sessions"`
	Logins struct {
		Successful int     `json:"successful"`
		Failed     int     `json:"failed"`
		Ratio      float64 `json:"ratio"`
	} `json:"logins"`
	Security struct {
		Total        int `json:"total"`
		Unresolved   int `json:"unresolved"`
		HighSeverity int `json:"highSeverity"`
	} `json:"security"`
	DailyLoginStats      map[string]DailyLoginStat `json:"dailyLoginStats"`
	RecentSecurityEvents []SecurityEvent           `json:"recentSecurityEvents"`
}
