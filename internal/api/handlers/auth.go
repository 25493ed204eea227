package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"authguard/internal/apperrors"
	"authguard/internal/audit"
	"authguard/internal/auth"
	"authguard/internal/email"
	"authguard/internal/lockout"
	"authguard/internal/models"
	"authguard/internal/repository"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Failed-attempt counts from which a failure also raises a brute force
// event, and from which that event is high severity
const (
	bruteForceThreshold     = 3
	bruteForceHighThreshold = 5
)

// AuthHandler handles registration, login and account self-service
type AuthHandler struct {
	userRepo        repository.UserRepository
	authService     *auth.Service
	sessions        *audit.SessionTracker
	recorder        *audit.Recorder
	emailService    email.EmailSender
	policy          lockout.Policy
	enforceSessions bool
}

// NewAuthHandler creates a new authentication handler with the given dependencies
func NewAuthHandler(
	userRepo repository.UserRepository,
	authService *auth.Service,
	sessions *audit.SessionTracker,
	recorder *audit.Recorder,
	emailService email.EmailSender,
	policy lockout.Policy,
	enforceSessions bool,
) *AuthHandler {
	return &AuthHandler{
		userRepo:        userRepo,
		authService:     authService,
		sessions:        sessions,
		recorder:        recorder,
		emailService:    emailService,
		policy:          policy,
		enforceSessions: enforceSessions,
	}
}

// Register godoc
// @Summary Register a new account
// @Description Creates the user, emails a verification link and returns tokens
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "Account details"
// @Success 201 {object} models.SuccessResponse{data=models.AuthResponse}
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 409 {object} models.ErrorResponse "User already exists"
// @Failure 429 {object} models.ErrorResponse "Rate limit exceeded"
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}
	ctx := c.Request.Context()

	emailAddr := models.NormalizeEmail(req.Email)
	if _, err := h.userRepo.GetByEmail(ctx, emailAddr); err == nil {
		_ = c.Error(apperrors.Conflict("User already exists"))
		return
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		_ = c.Error(err)
		return
	}

	hashed, err := h.authService.HashPassword(req.Password)
	if err != nil {
		_ = c.Error(fmt.Errorf("hash password: %w", err))
		return
	}
	rawToken, tokenHash, err := auth.NewOpaqueToken()
	if err != nil {
		_ = c.Error(err)
		return
	}
	expires := h.authService.VerificationExpiry()

	user := &models.User{
		Name:                     strings.TrimSpace(req.Name),
		Email:                    emailAddr,
		PasswordHash:             hashed,
		Role:                     models.RoleUser,
		VerificationTokenHash:    &tokenHash,
		VerificationTokenExpires: &expires,
		Profile:                  models.DefaultProfile(),
		Preferences:              models.DefaultPreferences(),
	}
	if err := h.userRepo.Create(ctx, user); err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.emailService.SendVerificationEmail(user.Email, user.Name, rawToken); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Warn("Failed to send verification email")
	}

	access, refresh, err := h.startSession(c, user, true)
	if err != nil {
		_ = c.Error(err)
		return
	}

	recordAudit(c, h.recorder, models.AuditLog{
		UserID:  &user.ID,
		Action:  models.AuditActionUserRegistered,
		Details: models.Details{"email": user.Email},
	})

	respond(c, http.StatusCreated, "User registered successfully. Please check your email to verify your account.", models.AuthResponse{
		User:         user.Summary(),
		Token:        access,
		RefreshToken: refresh,
	})
}

// Login godoc
// @Summary User login
// @Description Authenticate with email and password. Accounts with two-factor enabled receive a pending token for /auth/verify-2fa.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login credentials"
// @Success 200 {object} models.SuccessResponse{data=models.AuthResponse}
// @Failure 400 {object} models.ErrorResponse "Invalid request format"
// @Failure 401 {object} models.ErrorResponse "Invalid credentials"
// @Failure 429 {object} models.ErrorResponse "Account locked or rate limit exceeded"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}
	ctx := c.Request.Context()
	emailAddr := models.NormalizeEmail(req.Email)

	user, err := h.userRepo.GetByEmail(ctx, emailAddr)
	if errors.Is(err, repository.ErrUserNotFound) {
		recordAudit(c, h.recorder, models.AuditLog{
			Action:   models.AuditActionLoginFailed,
			Severity: models.AuditSeverityWarning,
			Status:   models.AuditStatusFailure,
			Details:  models.Details{"email": emailAddr, "reason": "unknown_email"},
		})
		_ = c.Error(apperrors.Unauthenticated("Invalid credentials"))
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	now := h.authService.Now()
	state := user.LockoutState()
	if state.IsLocked(now) {
		recordAudit(c, h.recorder, models.AuditLog{
			UserID:   &user.ID,
			Action:   models.AuditActionLoginFailed,
			Severity: models.AuditSeverityWarning,
			Status:   models.AuditStatusFailure,
			Details:  models.Details{"email": user.Email, "reason": "account_locked"},
		})
		_ = c.Error(apperrors.TooManyRequests(fmt.Sprintf(
			"Account locked due to too many failed login attempts. Try again in %d minutes.",
			state.RemainingMinutes(now),
		)))
		return
	}

	if err := h.authService.ComparePasswords(user.PasswordHash, req.Password); err != nil {
		h.loginFailed(c, user, state)
		return
	}

	if err := h.userRepo.UpdateLoginState(ctx, user.ID, h.policy.RegisterSuccess(state), &now); err != nil {
		_ = c.Error(err)
		return
	}
	user.ApplyLockoutState(lockout.State{})
	user.LastLogin = &now

	// a pending token is all a two-factor account gets until verify-2fa
	access, refresh, err := h.startSession(c, user, !user.IsTwoFactorEnabled)
	if err != nil {
		_ = c.Error(err)
		return
	}

	recordAudit(c, h.recorder, models.AuditLog{
		UserID:  &user.ID,
		Action:  models.AuditActionLoginSuccess,
		Details: models.Details{"email": user.Email, "twoFactorRequired": user.IsTwoFactorEnabled},
	})

	resp := models.AuthResponse{
		User:                user.Summary(),
		Token:               access,
		IsTwoFactorRequired: user.IsTwoFactorEnabled,
	}
	message := "Two-factor authentication required"
	if !user.IsTwoFactorEnabled {
		resp.RefreshToken = refresh
		message = "Login successful"
	}
	respond(c, http.StatusOK, message, resp)
}

func (h *AuthHandler) loginFailed(c *gin.Context, user *models.User, state lockout.State) {
	outcome := h.policy.RegisterFailure(state, h.authService.Now())
	if err := h.userRepo.UpdateLoginState(c.Request.Context(), user.ID, outcome.State, nil); err != nil {
		_ = c.Error(err)
		return
	}
	attempts := outcome.State.LoginAttempts

	recordAudit(c, h.recorder, models.AuditLog{
		UserID:   &user.ID,
		Action:   models.AuditActionLoginFailed,
		Severity: models.AuditSeverityWarning,
		Status:   models.AuditStatusFailure,
		Details:  models.Details{"email": user.Email, "reason": "invalid_password", "attempts": attempts},
	})

	if attempts >= bruteForceThreshold {
		severity := models.SecuritySeverityMedium
		if attempts >= bruteForceHighThreshold {
			severity = models.SecuritySeverityHigh
		}
		recordSecurityEvent(c, h.recorder, models.SecurityEvent{
			UserID:    &user.ID,
			EventType: models.SecurityEventBruteForceAttempt,
			Severity:  severity,
			Details:   models.Details{"email": user.Email, "attempts": attempts},
		})
	}

	if outcome.Locked {
		recordAudit(c, h.recorder, models.AuditLog{
			UserID:   &user.ID,
			Action:   models.AuditActionAccountLocked,
			Severity: models.AuditSeverityWarning,
			Status:   models.AuditStatusSuccess,
			Details:  models.Details{"attempts": attempts, "lockUntil": outcome.State.LockUntil},
		})
	}

	_ = c.Error(apperrors.Unauthenticated("Invalid credentials"))
}

// startSession issues a token pair and records the session behind it
func (h *AuthHandler) startSession(c *gin.Context, user *models.User, twoFactorVerified bool) (string, string, error) {
	access, refresh, err := h.authService.IssueTokenPair(user, twoFactorVerified)
	if err != nil {
		return "", "", err
	}
	if _, err := h.sessions.Create(c.Request.Context(), user.ID, access, refresh, audit.FromGin(c)); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// VerifyEmail godoc
// @Summary Verify email address
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.TokenRequest true "Verification token"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse "Invalid or expired token"
// @Router /auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req models.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}
	ctx := c.Request.Context()

	user, err := h.userRepo.GetByVerificationTokenHash(ctx, auth.HashOpaqueToken(req.Token))
	if errors.Is(err, repository.ErrUserNotFound) {
		_ = c.Error(apperrors.BadRequest("Invalid verification token"))
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := auth.CheckOpaqueExpiry(user.VerificationTokenExpires, h.authService.Now()); err != nil {
		_ = c.Error(apperrors.BadRequest("Verification token has expired").WithCode("token_expired"))
		return
	}

	if err := h.userRepo.MarkEmailVerified(ctx, user.ID); err != nil {
		_ = c.Error(err)
		return
	}

	recordAudit(c, h.recorder, models.AuditLog{
		UserID:  &user.ID,
		Action:  models.AuditActionEmailVerificationCompleted,
		Details: models.Details{"email": user.Email},
	})
	respond(c, http.StatusOK, "Email verified successfully", nil)
}

// ResendVerification godoc
// @Summary Resend the verification email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.EmailRequest true "Account email"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse "Email already verified"
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Router /auth/resend-verification [post]
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req models.EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}
	ctx := c.Request.Context()

	user, err := h.userRepo.GetByEmail(ctx, models.NormalizeEmail(req.Email))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if user.IsEmailVerified {
		_ = c.Error(apperrors.BadRequest("Email is already verified"))
		return
	}

	rawToken, tokenHash, err := auth.NewOpaqueToken()
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.userRepo.SetVerificationToken(ctx, user.ID, tokenHash, h.authService.VerificationExpiry()); err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.emailService.SendVerificationEmail(user.Email, user.Name, rawToken); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Warn("Failed to send verification email")
	}

	recordAudit(c, h.recorder, models.AuditLog{
		UserID:  &user.ID,
		Action:  models.AuditActionEmailVerificationRequested,
		Details: models.Details{"email": user.Email},
	})
	respond(c, http.StatusOK, "Verification email sent", nil)
}

const forgotPasswordMessage = "If an account with that email exists, a password reset link has been sent"

// ForgotPassword godoc
// @Summary Request a password reset
// @Description Always answers with the same message whether or not the account exists
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.EmailRequest true "Account email"
// @Success 200 {object} models.SuccessResponse
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req models.EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}
	ctx := c.Request.Context()
	emailAddr := models.NormalizeEmail(req.Email)

	user, err := h.userRepo.GetByEmail(ctx, emailAddr)
	if errors.Is(err, repository.ErrUserNotFound) {
		recordAudit(c, h.recorder, models.AuditLog{
			Action:   models.AuditActionPasswordResetRequested,
			Severity: models.AuditSeverityWarning,
			Status:   models.AuditStatusFailure,
			Details:  models.Details{"email": emailAddr, "reason": "unknown_email"},
		})
		respond(c, http.StatusOK, forgotPasswordMessage, nil)
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	rawToken, tokenHash, err := auth.NewOpaqueToken()
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.userRepo.SetResetToken(ctx, user.ID, tokenHash, h.authService.PasswordResetExpiry()); err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.emailService.SendPasswordResetEmail(user.Email, user.Name, rawToken); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Warn("Failed to send password reset email")
	}

	recordAudit(c, h.recorder, models.AuditLog{
		UserID:   &user.ID,
		Action:   models.AuditActionPasswordResetRequested,
		Severity: models.AuditSeverityWarning,
		Details:  models.Details{"email": user.Email},
	})
	respond(c, http.StatusOK, forgotPasswordMessage, nil)
}

// ResetPassword godoc
// @Summary Complete a password reset
// @Description Sets the new password and signs out every session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.ResetPasswordRequest true "Reset token and new password"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse "Invalid or expired token"
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}
	ctx := c.Request.Context()

	user, err := h.userRepo.GetByResetTokenHash(ctx, auth.HashOpaqueToken(req.Token))
	if errors.Is(err, repository.ErrUserNotFound) {
		_ = c.Error(apperrors.BadRequest("Invalid reset token"))
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := auth.CheckOpaqueExpiry(user.ResetPasswordExpires, h.authService.Now()); err != nil {
		_ = c.Error(apperrors.BadRequest("Reset token has expired").WithCode("token_expired"))
		return
	}

	hashed, err := h.authService.HashPassword(req.Password)
	if err != nil {
		_ = c.Error(fmt.Errorf("hash password: %w", err))
		return
	}
	if err := h.userRepo.UpdatePassword(ctx, user.ID, hashed); err != nil {
		_ = c.Error(err)
		return
	}
	revoked, err := h.sessions.InvalidateAll(ctx, user.ID, "")
	if err != nil {
		_ = c.Error(err)
		return
	}

	recordAudit(c, h.recorder, models.AuditLog{
		UserID:  &user.ID,
		Action:  models.AuditActionPasswordResetCompleted,
		Details: models.Details{"sessionsRevoked": revoked},
	})
	respond(c, http.StatusOK, "Password reset successful", nil)
}

// VerifyTwoFactor godoc
// @Summary Verify a TOTP code
// @Description Enables two-factor on first use. Accounts with two-factor enabled must send the pending token from login.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.VerifyTwoFactorRequest true "Email and TOTP code"
// @Success 200 {object} models.SuccessResponse{data=models.TokenPair}
// @Failure 400 {object} models.ErrorResponse "Two-factor not set up"
// @Failure 401 {object} models.ErrorResponse "Invalid code or token"
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Security BearerAuth
// @Router /auth/verify-2fa [post]
func (h *AuthHandler) VerifyTwoFactor(c *gin.Context) {
	var req models.VerifyTwoFactorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}
	ctx := c.Request.Context()

	user, err := h.userRepo.GetByEmail(ctx, models.NormalizeEmail(req.Email))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if user.TwoFactorSecret == nil {
		_ = c.Error(apperrors.BadRequest("Two-factor authentication is not set up"))
		return
	}

	pending := auth.BearerToken(c)
	if user.IsTwoFactorEnabled {
		if pending == "" {
			_ = c.Error(apperrors.Unauthenticated("Not authorized to access this route"))
			return
		}
		claims, err := h.authService.Verify(pending, auth.TokenAccess)
		if err != nil {
			_ = c.Error(err)
			return
		}
		if claims.UserID != user.ID.String() {
			_ = c.Error(apperrors.Unauthenticated("Token does not belong to this account"))
			return
		}
	}

	if !h.authService.ValidateTOTP(req.Token, *user.TwoFactorSecret) {
		recordAudit(c, h.recorder, models.AuditLog{
			UserID:   &user.ID,
			Action:   models.AuditActionTwoFactorVerified,
			Severity: models.AuditSeverityWarning,
			Status:   models.AuditStatusFailure,
			Details:  models.Details{"reason": "invalid_code"},
		})
		_ = c.Error(apperrors.Unauthenticated("Invalid two-factor code"))
		return
	}

	if !user.IsTwoFactorEnabled {
		if err := h.userRepo.SetTwoFactor(ctx, user.ID, user.TwoFactorSecret, true); err != nil {
			_ = c.Error(err)
			return
		}
		user.IsTwoFactorEnabled = true
		recordAudit(c, h.recorder, models.AuditLog{
			UserID: &user.ID,
			Action: models.AuditActionTwoFactorEnabled,
		})
	}

	access, refresh, err := h.authService.IssueTokenPair(user, true)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.swapPendingSession(c, user, pending, access, refresh); err != nil {
		_ = c.Error(err)
		return
	}

	recordAudit(c, h.recorder, models.AuditLog{
		UserID: &user.ID,
		Action: models.AuditActionTwoFactorVerified,
	})
	respond(c, http.StatusOK, "Two-factor authentication verified", models.TokenPair{Token: access, RefreshToken: refresh})
}

// swapPendingSession moves the pending session onto the verified pair, or
// opens a new session when there is none
func (h *AuthHandler) swapPendingSession(c *gin.Context, user *models.User, pending, access, refresh string) error {
	ctx := c.Request.Context()
	if pending != "" {
		err := h.sessions.RotateAccess(ctx, pending, access, refresh)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrSessionNotFound) {
			return err
		}
	}
	_, err := h.sessions.Create(ctx, user.ID, access, refresh, audit.FromGin(c))
	return err
}

// RefreshToken godoc
// @Summary Refresh the token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} models.SuccessResponse{data=models.TokenPair}
// @Failure 401 {object} models.ErrorResponse "Invalid refresh token"
// @Router /auth/refresh-token [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}
	ctx := c.Request.Context()
	invalid := apperrors.Unauthenticated("Invalid refresh token")

	claims, err := h.authService.Verify(req.RefreshToken, auth.TokenRefresh)
	if err != nil {
		_ = c.Error(invalid)
		return
	}
	if h.enforceSessions {
		if _, err := h.sessions.ValidRefresh(ctx, req.RefreshToken); err != nil {
			_ = c.Error(invalid)
			return
		}
	}

	userID, err := claims.UserUUID()
	if err != nil {
		_ = c.Error(invalid)
		return
	}
	user, err := h.userRepo.GetByID(ctx, userID)
	if err != nil {
		_ = c.Error(invalid)
		return
	}

	// refresh tokens are only handed out once any second factor has passed
	access, refresh, err := h.authService.IssueTokenPair(user, true)
	if err != nil {
		_ = c.Error(err)
		return
	}
	err = h.sessions.Rotate(ctx, req.RefreshToken, access, refresh)
	if errors.Is(err, repository.ErrSessionNotFound) {
		_, err = h.sessions.Create(ctx, user.ID, access, refresh, audit.FromGin(c))
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusOK, "", models.TokenPair{Token: access, RefreshToken: refresh})
}

// Me godoc
// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} models.SuccessResponse{data=models.User}
// @Failure 401 {object} models.ErrorResponse "Not authenticated"
// @Security BearerAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.currentUser(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, "", user)
}

func (h *AuthHandler) currentUser(c *gin.Context) (*models.User, error) {
	userID, err := currentUserID(c)
	if err != nil {
		return nil, err
	}
	return h.userRepo.GetByID(c.Request.Context(), userID)
}

// UpdateProfile godoc
// @Summary Update name and profile fields
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.UpdateProfileRequest true "Fields to change"
// @Success 200 {object} models.SuccessResponse{data=models.User}
// @Failure 400 {object} models.ErrorResponse "No fields provided"
// @Security BearerAuth
// @Router /auth/update-profile [patch]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}
	if req.Name == nil && (req.Profile == nil || req.Profile.Empty()) {
		_ = c.Error(apperrors.BadRequest("No profile fields provided"))
		return
	}

	user, err := h.currentUser(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Profile != nil {
		req.Profile.Apply(&user.Profile)
	}
	if err := h.userRepo.UpdateProfile(c.Request.Context(), user.ID, user.Name, user.Profile); err != nil {
		_ = c.Error(err)
		return
	}

	recordAudit(c, h.recorder, models.AuditLog{
		UserID: &user.ID,
		Action: models.AuditActionProfileUpdated,
	})
	respond(c, http.StatusOK, "Profile updated successfully", user)
}

// UpdatePreferences godoc
// @Summary Update preferences
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.UpdatePreferencesRequest true "Preferences to change"
// @Success 200 {object} models.SuccessResponse{data=models.Preferences}
// @Failure 400 {object} models.ErrorResponse "No fields provided"
// @Security BearerAuth
// @Router /auth/update-preferences [patch]
func (h *AuthHandler) UpdatePreferences(c *gin.Context) {
	var req models.UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}
	if req.Preferences == nil || req.Preferences.Empty() {
		_ = c.Error(apperrors.BadRequest("No preference fields provided"))
		return
	}

	user, err := h.currentUser(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	req.Preferences.Apply(&user.Preferences)
	if err := h.userRepo.UpdatePreferences(c.Request.Context(), user.ID, user.Preferences); err != nil {
		_ = c.Error(err)
		return
	}

	recordAudit(c, h.recorder, models.AuditLog{
		UserID: &user.ID,
		Action: models.AuditActionPreferencesUpdated,
	})
	respond(c, http.StatusOK, "Preferences updated successfully", user.Preferences)
}

// ChangePassword godoc
// @Summary Change password
// @Description Signs out every other session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.ChangePasswordRequest true "Current and new password"
// @Success 200 {object} models.SuccessResponse
// @Failure 401 {object} models.ErrorResponse "Current password is incorrect"
// @Security BearerAuth
// @Router /auth/change-password [patch]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}
	ctx := c.Request.Context()

	user, err := h.currentUser(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.authService.ComparePasswords(user.PasswordHash, req.CurrentPassword); err != nil {
		_ = c.Error(apperrors.Unauthenticated("Current password is incorrect"))
		return
	}

	hashed, err := h.authService.HashPassword(req.NewPassword)
	if err != nil {
		_ = c.Error(fmt.Errorf("hash password: %w", err))
		return
	}
	if err := h.userRepo.UpdatePassword(ctx, user.ID, hashed); err != nil {
		_ = c.Error(err)
		return
	}
	revoked, err := h.sessions.InvalidateAll(ctx, user.ID, auth.TokenFromContext(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	recordAudit(c, h.recorder, models.AuditLog{
		UserID:  &user.ID,
		Action:  models.AuditActionPasswordChanged,
		Details: models.Details{"sessionsRevoked": revoked},
	})
	respond(c, http.StatusOK, "Password changed successfully", nil)
}

// SetupTwoFactor godoc
// @Summary Start two-factor setup
// @Description Generates a TOTP secret; confirm it with /auth/verify-2fa
// @Tags auth
// @Produce json
// @Success 200 {object} models.SuccessResponse{data=models.TwoFactorSetupResponse}
// @Failure 400 {object} models.ErrorResponse "Already enabled"
// @Failure 403 {object} models.ErrorResponse "Email not verified"
// @Security BearerAuth
// @Router /auth/setup-2fa [post]
func (h *AuthHandler) SetupTwoFactor(c *gin.Context) {
	user, err := h.currentUser(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if user.IsTwoFactorEnabled {
		_ = c.Error(apperrors.BadRequest("Two-factor authentication is already enabled"))
		return
	}

	secret, url, err := h.authService.GenerateTOTP(user.Email)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.userRepo.SetTwoFactor(c.Request.Context(), user.ID, &secret, false); err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.emailService.SendTwoFactorSetupEmail(user.Email, user.Name, secret); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Warn("Failed to send two-factor setup email")
	}

	respond(c, http.StatusOK, "Scan the QR code and verify a code to enable two-factor authentication", models.TwoFactorSetupResponse{
		Secret:     secret,
		OTPAuthURL: url,
	})
}

// DisableTwoFactor godoc
// @Summary Disable two-factor authentication
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.TwoFactorCodeRequest true "Current TOTP code"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse "Not enabled"
// @Failure 401 {object} models.ErrorResponse "Invalid code"
// @Security BearerAuth
// @Router /auth/disable-2fa [post]
func (h *AuthHandler) DisableTwoFactor(c *gin.Context) {
	var req models.TwoFactorCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	user, err := h.currentUser(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !user.IsTwoFactorEnabled || user.TwoFactorSecret == nil {
		_ = c.Error(apperrors.BadRequest("Two-factor authentication is not enabled"))
		return
	}
	if !h.authService.ValidateTOTP(req.Token, *user.TwoFactorSecret) {
		_ = c.Error(apperrors.Unauthenticated("Invalid two-factor code"))
		return
	}

	if err := h.userRepo.SetTwoFactor(c.Request.Context(), user.ID, nil, false); err != nil {
		_ = c.Error(err)
		return
	}

	recordAudit(c, h.recorder, models.AuditLog{
		UserID:   &user.ID,
		Action:   models.AuditActionTwoFactorDisabled,
		Severity: models.AuditSeverityCritical,
	})
	respond(c, http.StatusOK, "Two-factor authentication disabled", nil)
}

// Logout godoc
// @Summary Log out the current session
// @Tags auth
// @Produce json
// @Success 200 {object} models.SuccessResponse
// @Security BearerAuth
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	err = h.sessions.Invalidate(c.Request.Context(), auth.TokenFromContext(c))
	if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		_ = c.Error(err)
		return
	}

	recordAudit(c, h.recorder, models.AuditLog{
		UserID: &userID,
		Action: models.AuditActionLogout,
	})
	respond(c, http.StatusOK, "Logged out successfully", nil)
}

// LogoutAll godoc
// @Summary Log out every other session
// @Tags auth
// @Produce json
// @Success 200 {object} models.SuccessResponse{data=models.CountResponse}
// @Security BearerAuth
// @Router /auth/logout-all [post]
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	count, err := h.sessions.InvalidateAll(c.Request.Context(), userID, auth.TokenFromContext(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	recordAudit(c, h.recorder, models.AuditLog{
		UserID:  &userID,
		Action:  models.AuditActionLogout,
		Details: models.Details{"allSessions": true, "sessionsRevoked": count},
	})
	respond(c, http.StatusOK, "Logged out of all other sessions", models.CountResponse{Count: count})
}

// Sessions godoc
// @Summary List the caller's active sessions
// @Tags auth
// @Produce json
// @Success 200 {object} models.SuccessResponse{data=[]models.UserSession}
// @Security BearerAuth
// @Router /auth/sessions [get]
func (h *AuthHandler) Sessions(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	sessions, err := h.sessions.ActiveSessions(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if sessions == nil {
		sessions = []models.UserSession{}
	}
	respond(c, http.StatusOK, "", sessions)
}

// DeleteAccount godoc
// @Summary Delete the caller's account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.DeleteAccountRequest true "Current password"
// @Success 200 {object} models.SuccessResponse
// @Failure 401 {object} models.ErrorResponse "Password is incorrect"
// @Security BearerAuth
// @Router /auth/account [delete]
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	var req models.DeleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}
	ctx := c.Request.Context()

	user, err := h.currentUser(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.authService.ComparePasswords(user.PasswordHash, req.Password); err != nil {
		_ = c.Error(apperrors.Unauthenticated("Password is incorrect"))
		return
	}

	if _, err := h.sessions.InvalidateAll(ctx, user.ID, ""); err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.userRepo.Delete(ctx, user.ID); err != nil {
		_ = c.Error(err)
		return
	}

	// the row is gone, so the entry references the account by detail only
	recordAudit(c, h.recorder, models.AuditLog{
		Action:   models.AuditActionUserDeleted,
		Severity: models.AuditSeverityWarning,
		Details:  models.Details{"userId": user.ID.String(), "email": user.Email},
	})
	respond(c, http.StatusOK, "Account deleted successfully", nil)
}
