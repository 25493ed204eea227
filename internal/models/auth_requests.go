package models

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,nospaces,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenRequest carries an opaque email-verification token
type TokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// EmailRequest carries an email address (resend verification, forgot password)
type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest completes a password reset
type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// ChangePasswordRequest represents the request to change the caller's password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6,max=72"`
}

// RefreshTokenRequest carries a refresh token
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// VerifyTwoFactorRequest verifies a TOTP code for an account
type VerifyTwoFactorRequest struct {
	Email string `json:"email" binding:"required,email"`
	Token string `json:"token" binding:"required,otpcode"`
}

// TwoFactorCodeRequest carries a TOTP code for the authenticated user
type TwoFactorCodeRequest struct {
	Token string `json:"token" binding:"required,otpcode"`
}

// UpdateProfileRequest is a partial profile update
type UpdateProfileRequest struct {
	Name    *string        `json:"name" binding:"omitempty,nospaces,min=3,max=50"`
	Profile *ProfileUpdate `json:"profile"`
}

// UpdatePreferencesRequest is a partial preferences update
type UpdatePreferencesRequest struct {
	Preferences *PreferencesUpdate `json:"preferences"`
}

// DeleteAccountRequest confirms account deletion with the current password
type DeleteAccountRequest struct {
	Password string `json:"password" binding:"required"`
}

// ResolveSecurityEventRequest carries optional resolution notes
type ResolveSecurityEventRequest struct {
	Notes string `json:"notes" binding:"max=1000"`
}

// UpdateRoleRequest changes a user's role
type UpdateRoleRequest struct {
	Role Role `json:"role" binding:"required,oneof=user admin"`
}
