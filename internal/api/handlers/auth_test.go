package handlers_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"authguard/internal/auth"
	"authguard/internal/config"
	"authguard/internal/models"
	"authguard/internal/repository"
	"authguard/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

const testPassword = "test_password"

func login(tc *testutil.TestContext, email, password string) (int, models.AuthResponse, testutil.Envelope) {
	tc.T.Helper()
	w := tc.Do(http.MethodPost, "/api/v1/auth/login", models.LoginRequest{Email: email, Password: password}, "")
	var resp models.AuthResponse
	env := testutil.Decode(tc.T, w, nil)
	if w.Code == http.StatusOK {
		testutil.Decode(tc.T, w, &resp)
	}
	return w.Code, resp, env
}

func TestAuthHandler_Register(t *testing.T) {
	tests := []struct {
		name       string
		setupFunc  func(*testutil.TestContext)
		input      interface{}
		wantStatus int
		errMsg     string
	}{
		{
			name:       "Success",
			input:      models.RegisterRequest{Name: "alice", Email: "Alice@Example.com", Password: testPassword},
			wantStatus: http.StatusCreated,
		},
		{
			name: "Duplicate Email",
			setupFunc: func(tc *testutil.TestContext) {
				tc.CreateTestUser("alice", "alice@example.com", testPassword, models.RoleUser)
			},
			input:      models.RegisterRequest{Name: "alice2", Email: "alice@example.com", Password: testPassword},
			wantStatus: http.StatusConflict,
			errMsg:     "User already exists",
		},
		{
			name:       "Invalid Email",
			input:      models.RegisterRequest{Name: "alice", Email: "not-an-email", Password: testPassword},
			wantStatus: http.StatusBadRequest,
			errMsg:     "Please provide a valid email",
		},
		{
			name:       "Short Password",
			input:      models.RegisterRequest{Name: "alice", Email: "alice@example.com", Password: "12345"},
			wantStatus: http.StatusBadRequest,
			errMsg:     "Password must be at least 6 characters",
		},
		{
			name:       "Blank Name",
			input:      models.RegisterRequest{Name: "    ", Email: "alice@example.com", Password: testPassword},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Malformed Body",
			input:      `{"name":`,
			wantStatus: http.StatusBadRequest,
			errMsg:     "Invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := testutil.NewTestContext(t)
			if tt.setupFunc != nil {
				tt.setupFunc(tc)
			}

			w := tc.Do(http.MethodPost, "/api/v1/auth/register", tt.input, "")
			testutil.RequireStatus(t, tt.wantStatus, w)

			if tt.wantStatus != http.StatusCreated {
				env := testutil.Decode(t, w, nil)
				assert.False(t, env.Success)
				if tt.errMsg != "" {
					assert.Equal(t, tt.errMsg, env.Message)
				}
				return
			}

			var resp models.AuthResponse
			env := testutil.Decode(t, w, &resp)
			assert.True(t, env.Success)
			assert.Equal(t, "alice@example.com", resp.User.Email)
			assert.NotEmpty(t, resp.Token)
			assert.NotEmpty(t, resp.RefreshToken)
			assert.False(t, resp.IsTwoFactorRequired)

			sent, ok := tc.Email.Last("verification", "alice@example.com")
			require.True(t, ok, "verification email not sent")

			user, err := tc.UserRepo.GetByEmail(context.Background(), "alice@example.com")
			require.NoError(t, err)
			require.NotNil(t, user.VerificationTokenHash)
			assert.Equal(t, auth.HashOpaqueToken(sent.Token), *user.VerificationTokenHash)
			assert.NotEqual(t, sent.Token, *user.VerificationTokenHash)
			assert.Contains(t, tc.AuditActions(user), models.AuditActionUserRegistered)

			// the issued token is backed by a session
			w = tc.Do(http.MethodGet, "/api/v1/auth/me", nil, resp.Token)
			testutil.RequireStatus(t, http.StatusOK, w)
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	tests := []struct {
		name       string
		input      interface{}
		wantStatus int
		errMsg     string
	}{
		{
			name:       "Success",
			input:      models.LoginRequest{Email: "user@example.com", Password: testPassword},
			wantStatus: http.StatusOK,
		},
		{
			name:       "Email Is Case Insensitive",
			input:      models.LoginRequest{Email: "USER@example.com", Password: testPassword},
			wantStatus: http.StatusOK,
		},
		{
			name:       "Invalid Credentials",
			input:      models.LoginRequest{Email: "user@example.com", Password: "wrong_password"},
			wantStatus: http.StatusUnauthorized,
			errMsg:     "Invalid credentials",
		},
		{
			name:       "User Not Found",
			input:      models.LoginRequest{Email: "nobody@example.com", Password: testPassword},
			wantStatus: http.StatusUnauthorized,
			errMsg:     "Invalid credentials",
		},
		{
			name:       "Missing Password",
			input:      map[string]string{"email": "user@example.com"},
			wantStatus: http.StatusBadRequest,
			errMsg:     "Password is required",
		},
		{
			name:       "SQL Injection Attempt",
			input:      models.LoginRequest{Email: "user@example.com", Password: "' OR '1'='1"},
			wantStatus: http.StatusUnauthorized,
			errMsg:     "Invalid credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := testutil.NewTestContext(t)
			user := tc.CreateTestUser("user", "user@example.com", testPassword, models.RoleUser)

			w := tc.Do(http.MethodPost, "/api/v1/auth/login", tt.input, "")
			testutil.RequireStatus(t, tt.wantStatus, w)

			if tt.wantStatus != http.StatusOK {
				env := testutil.Decode(t, w, nil)
				assert.Equal(t, tt.errMsg, env.Message)
				return
			}

			var resp models.AuthResponse
			testutil.Decode(t, w, &resp)
			assert.NotEmpty(t, resp.Token)
			assert.NotEmpty(t, resp.RefreshToken)
			assert.False(t, resp.IsTwoFactorRequired)

			stored := tc.GetUser(user)
			require.NotNil(t, stored.LastLogin)
			assert.Equal(t, 0, stored.LoginAttempts)
			assert.Contains(t, tc.AuditActions(user), models.AuditActionLoginSuccess)
		})
	}
}

func TestAuthHandler_LoginLockout(t *testing.T) {
	tc := testutil.NewTestContext(t)
	user := tc.CreateTestUser("locked", "locked@example.com", testPassword, models.RoleUser)

	for attempt := 1; attempt <= 4; attempt++ {
		status, _, env := login(tc, user.Email, "wrong_password")
		require.Equal(t, http.StatusUnauthorized, status, "attempt %d", attempt)
		assert.Equal(t, "Invalid credentials", env.Message)

		stored := tc.GetUser(user)
		assert.Equal(t, attempt, stored.LoginAttempts)
		assert.Nil(t, stored.LockUntil)
	}

	// the fifth failure still answers 401 but engages the lock
	status, _, _ := login(tc, user.Email, "wrong_password")
	require.Equal(t, http.StatusUnauthorized, status)
	stored := tc.GetUser(user)
	assert.Equal(t, 5, stored.LoginAttempts)
	require.NotNil(t, stored.LockUntil)
	assert.True(t, stored.LockUntil.Equal(tc.Clock.Now().Add(time.Hour)))

	// even the right password is refused while locked, and the counter stays put
	status, _, env := login(tc, user.Email, testPassword)
	require.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, env.Message, "Try again in 60 minutes")
	assert.Equal(t, 5, tc.GetUser(user).LoginAttempts)

	actions := tc.AuditActions(user)
	assert.Contains(t, actions, models.AuditActionAccountLocked)
	assert.Contains(t, actions, models.AuditActionLoginFailed)

	bruteForce := models.SecurityEventBruteForceAttempt
	events, total, err := tc.EventRepo.List(context.Background(), repository.SecurityEventFilter{UserID: &user.ID, EventType: &bruteForce})
	require.NoError(t, err)
	require.Equal(t, 3, total, "attempts 3, 4 and 5 raise brute force events")
	severities := map[models.SecuritySeverity]int{}
	for _, e := range events {
		severities[e.Severity]++
	}
	assert.Equal(t, 2, severities[models.SecuritySeverityMedium])
	assert.Equal(t, 1, severities[models.SecuritySeverityHigh])

	// once the lock has lapsed a failure starts a fresh count
	tc.Clock.Advance(time.Hour + time.Minute)
	status, _, _ = login(tc, user.Email, "wrong_password")
	require.Equal(t, http.StatusUnauthorized, status)
	stored = tc.GetUser(user)
	assert.Equal(t, 1, stored.LoginAttempts)
	assert.Nil(t, stored.LockUntil)

	status, _, _ = login(tc, user.Email, testPassword)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, tc.GetUser(user).LoginAttempts)
}

func TestAuthHandler_VerifyEmail(t *testing.T) {
	tests := []struct {
		name       string
		advance    time.Duration
		token      func(raw string) string
		wantStatus int
		wantCode   string
		errMsg     string
	}{
		{
			name:       "Success",
			token:      func(raw string) string { return raw },
			wantStatus: http.StatusOK,
		},
		{
			name:       "Unknown Token",
			token:      func(string) string { return "not-a-real-token" },
			wantStatus: http.StatusBadRequest,
			errMsg:     "Invalid verification token",
		},
		{
			name:       "Expired Token",
			advance:    25 * time.Hour,
			token:      func(raw string) string { return raw },
			wantStatus: http.StatusBadRequest,
			wantCode:   "token_expired",
			errMsg:     "Verification token has expired",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := testutil.NewTestContext(t)
			w := tc.Do(http.MethodPost, "/api/v1/auth/register",
				models.RegisterRequest{Name: "verify", Email: "verify@example.com", Password: testPassword}, "")
			testutil.RequireStatus(t, http.StatusCreated, w)
			sent, ok := tc.Email.Last("verification", "verify@example.com")
			require.True(t, ok)

			tc.Clock.Advance(tt.advance)
			w = tc.Do(http.MethodPost, "/api/v1/auth/verify-email", models.TokenRequest{Token: tt.token(sent.Token)}, "")
			testutil.RequireStatus(t, tt.wantStatus, w)
			env := testutil.Decode(t, w, nil)

			user, err := tc.UserRepo.GetByEmail(context.Background(), "verify@example.com")
			require.NoError(t, err)

			if tt.wantStatus != http.StatusOK {
				assert.Equal(t, tt.errMsg, env.Message)
				assert.Equal(t, tt.wantCode, env.Code)
				assert.False(t, user.IsEmailVerified)
				return
			}

			assert.True(t, user.IsEmailVerified)
			assert.Nil(t, user.VerificationTokenHash)
			assert.Contains(t, tc.AuditActions(user), models.AuditActionEmailVerificationCompleted)

			// the token is single use
			w = tc.Do(http.MethodPost, "/api/v1/auth/verify-email", models.TokenRequest{Token: sent.Token}, "")
			testutil.RequireStatus(t, http.StatusBadRequest, w)
			assert.Equal(t, "Invalid verification token", testutil.Decode(t, w, nil).Message)
		})
	}
}

func TestAuthHandler_ResendVerification(t *testing.T) {
	tc := testutil.NewTestContext(t)
	unverified := tc.CreateTestUser("pending", "pending@example.com", testPassword, models.RoleUser)
	tc.CreateVerifiedUser("done", "done@example.com", testPassword, models.RoleUser)

	w := tc.Do(http.MethodPost, "/api/v1/auth/resend-verification", models.EmailRequest{Email: "ghost@example.com"}, "")
	testutil.RequireStatus(t, http.StatusNotFound, w)

	w = tc.Do(http.MethodPost, "/api/v1/auth/resend-verification", models.EmailRequest{Email: "done@example.com"}, "")
	testutil.RequireStatus(t, http.StatusBadRequest, w)
	assert.Equal(t, "Email is already verified", testutil.Decode(t, w, nil).Message)

	w = tc.Do(http.MethodPost, "/api/v1/auth/resend-verification", models.EmailRequest{Email: "pending@example.com"}, "")
	testutil.RequireStatus(t, http.StatusOK, w)
	sent, ok := tc.Email.Last("verification", "pending@example.com")
	require.True(t, ok)

	w = tc.Do(http.MethodPost, "/api/v1/auth/verify-email", models.TokenRequest{Token: sent.Token}, "")
	testutil.RequireStatus(t, http.StatusOK, w)
	assert.True(t, tc.GetUser(unverified).IsEmailVerified)
}

func TestAuthHandler_PasswordReset(t *testing.T) {
	tc := testutil.NewTestContext(t)
	user := tc.CreateVerifiedUser("reset", "reset@example.com", testPassword, models.RoleUser)
	oldToken := tc.GetTestJWT(user)

	// unknown addresses get the same answer
	unknown := tc.Do(http.MethodPost, "/api/v1/auth/forgot-password", models.EmailRequest{Email: "ghost@example.com"}, "")
	testutil.RequireStatus(t, http.StatusOK, unknown)
	known := tc.Do(http.MethodPost, "/api/v1/auth/forgot-password", models.EmailRequest{Email: user.Email}, "")
	testutil.RequireStatus(t, http.StatusOK, known)
	assert.Equal(t, testutil.Decode(t, unknown, nil).Message, testutil.Decode(t, known, nil).Message)

	sent, ok := tc.Email.Last("password_reset", user.Email)
	require.True(t, ok)
	_, ok = tc.Email.Last("password_reset", "ghost@example.com")
	assert.False(t, ok)

	w := tc.Do(http.MethodPost, "/api/v1/auth/reset-password", models.ResetPasswordRequest{Token: "bogus", Password: "new_password"}, "")
	testutil.RequireStatus(t, http.StatusBadRequest, w)
	assert.Equal(t, "Invalid reset token", testutil.Decode(t, w, nil).Message)

	w = tc.Do(http.MethodPost, "/api/v1/auth/reset-password", models.ResetPasswordRequest{Token: sent.Token, Password: "new_password"}, "")
	testutil.RequireStatus(t, http.StatusOK, w)

	// every session is signed out
	w = tc.Do(http.MethodGet, "/api/v1/auth/me", nil, oldToken)
	testutil.RequireStatus(t, http.StatusUnauthorized, w)

	status, _, _ := login(tc, user.Email, testPassword)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _, _ = login(tc, user.Email, "new_password")
	assert.Equal(t, http.StatusOK, status)

	actions := tc.AuditActions(user)
	assert.Contains(t, actions, models.AuditActionPasswordResetRequested)
	assert.Contains(t, actions, models.AuditActionPasswordResetCompleted)
}

func TestAuthHandler_PasswordResetExpired(t *testing.T) {
	tc := testutil.NewTestContext(t)
	user := tc.CreateVerifiedUser("reset", "reset@example.com", testPassword, models.RoleUser)

	w := tc.Do(http.MethodPost, "/api/v1/auth/forgot-password", models.EmailRequest{Email: user.Email}, "")
	testutil.RequireStatus(t, http.StatusOK, w)
	sent, ok := tc.Email.Last("password_reset", user.Email)
	require.True(t, ok)

	tc.Clock.Advance(11 * time.Minute)
	w = tc.Do(http.MethodPost, "/api/v1/auth/reset-password", models.ResetPasswordRequest{Token: sent.Token, Password: "new_password"}, "")
	testutil.RequireStatus(t, http.StatusBadRequest, w)
	env := testutil.Decode(t, w, nil)
	assert.Equal(t, "Reset token has expired", env.Message)
	assert.Equal(t, "token_expired", env.Code)
}

func TestAuthHandler_RefreshToken(t *testing.T) {
	tc := testutil.NewTestContext(t)
	user := tc.CreateVerifiedUser("refresh", "refresh@example.com", testPassword, models.RoleUser)
	access, refresh := tc.GetTestTokens(user)

	w := tc.Do(http.MethodPost, "/api/v1/auth/refresh-token", models.RefreshTokenRequest{RefreshToken: "garbage"}, "")
	testutil.RequireStatus(t, http.StatusUnauthorized, w)
	assert.Equal(t, "Invalid refresh token", testutil.Decode(t, w, nil).Message)

	// an access token is not a refresh token
	w = tc.Do(http.MethodPost, "/api/v1/auth/refresh-token", models.RefreshTokenRequest{RefreshToken: access}, "")
	testutil.RequireStatus(t, http.StatusUnauthorized, w)

	w = tc.Do(http.MethodPost, "/api/v1/auth/refresh-token", models.RefreshTokenRequest{RefreshToken: refresh}, "")
	testutil.RequireStatus(t, http.StatusOK, w)
	var pair models.TokenPair
	testutil.Decode(t, w, &pair)
	assert.NotEmpty(t, pair.Token)
	assert.NotEqual(t, refresh, pair.RefreshToken)

	// rotation retires both old tokens
	w = tc.Do(http.MethodPost, "/api/v1/auth/refresh-token", models.RefreshTokenRequest{RefreshToken: refresh}, "")
	testutil.RequireStatus(t, http.StatusUnauthorized, w)
	w = tc.Do(http.MethodGet, "/api/v1/auth/me", nil, access)
	testutil.RequireStatus(t, http.StatusUnauthorized, w)

	w = tc.Do(http.MethodGet, "/api/v1/auth/me", nil, pair.Token)
	testutil.RequireStatus(t, http.StatusOK, w)
}

func TestAuthHandler_ExpiredAccessToken(t *testing.T) {
	tc := testutil.NewTestContext(t)
	user := tc.CreateVerifiedUser("expiry", "expiry@example.com", testPassword, models.RoleUser)
	token := tc.GetTestJWT(user)

	tc.Clock.Advance(tc.Config.Auth.JWTExpiresIn + time.Second)
	w := tc.Do(http.MethodGet, "/api/v1/auth/me", nil, token)
	testutil.RequireStatus(t, http.StatusUnauthorized, w)
	env := testutil.Decode(t, w, nil)
	assert.Equal(t, "Your token has expired. Please log in again.", env.Message)
	assert.Equal(t, "token_expired", env.Code)
}

func TestAuthHandler_TwoFactorFlow(t *testing.T) {
	tc := testutil.NewTestContext(t)
	user := tc.CreateVerifiedUser("totp", "totp@example.com", testPassword, models.RoleUser)
	token := tc.GetTestJWT(user)

	w := tc.Do(http.MethodPost, "/api/v1/auth/setup-2fa", nil, token)
	testutil.RequireStatus(t, http.StatusOK, w)
	var setup models.TwoFactorSetupResponse
	testutil.Decode(t, w, &setup)
	require.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.OTPAuthURL, "otpauth://totp/")
	_, ok := tc.Email.Last("two_factor_setup", user.Email)
	assert.True(t, ok)

	code := func() string {
		c, err := auth.GenerateTOTPCode(setup.Secret, tc.Clock.Now())
		require.NoError(t, err)
		return c
	}

	wrong := "000000"
	if code() == wrong {
		wrong = "111111"
	}
	w = tc.Do(http.MethodPost, "/api/v1/auth/verify-2fa", models.VerifyTwoFactorRequest{Email: user.Email, Token: wrong}, "")
	testutil.RequireStatus(t, http.StatusUnauthorized, w)
	assert.False(t, tc.GetUser(user).IsTwoFactorEnabled)

	// first verification enables two-factor
	w = tc.Do(http.MethodPost, "/api/v1/auth/verify-2fa", models.VerifyTwoFactorRequest{Email: user.Email, Token: code()}, "")
	testutil.RequireStatus(t, http.StatusOK, w)
	assert.True(t, tc.GetUser(user).IsTwoFactorEnabled)

	// login now yields a pending token without a refresh token
	status, resp, _ := login(tc, user.Email, testPassword)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, resp.IsTwoFactorRequired)
	assert.Empty(t, resp.RefreshToken)
	pending := resp.Token

	w = tc.Do(http.MethodGet, "/api/v1/auth/me", nil, pending)
	testutil.RequireStatus(t, http.StatusUnauthorized, w)
	assert.Equal(t, "two_factor_required", testutil.Decode(t, w, nil).Code)

	// an enabled account must present the pending token
	w = tc.Do(http.MethodPost, "/api/v1/auth/verify-2fa", models.VerifyTwoFactorRequest{Email: user.Email, Token: code()}, "")
	testutil.RequireStatus(t, http.StatusUnauthorized, w)

	other := tc.CreateVerifiedUser("other", "other@example.com", testPassword, models.RoleUser)
	w = tc.Do(http.MethodPost, "/api/v1/auth/verify-2fa", models.VerifyTwoFactorRequest{Email: user.Email, Token: code()}, tc.GetTestJWT(other))
	testutil.RequireStatus(t, http.StatusUnauthorized, w)

	w = tc.Do(http.MethodPost, "/api/v1/auth/verify-2fa", models.VerifyTwoFactorRequest{Email: user.Email, Token: code()}, pending)
	testutil.RequireStatus(t, http.StatusOK, w)
	var pair models.TokenPair
	testutil.Decode(t, w, &pair)
	require.NotEmpty(t, pair.RefreshToken)

	w = tc.Do(http.MethodGet, "/api/v1/auth/me", nil, pair.Token)
	testutil.RequireStatus(t, http.StatusOK, w)
	// the pending token was swapped out of its session
	w = tc.Do(http.MethodGet, "/api/v1/auth/me", nil, pending)
	testutil.RequireStatus(t, http.StatusUnauthorized, w)

	w = tc.Do(http.MethodPost, "/api/v1/auth/setup-2fa", nil, pair.Token)
	testutil.RequireStatus(t, http.StatusBadRequest, w)

	w = tc.Do(http.MethodPost, "/api/v1/auth/disable-2fa", models.TwoFactorCodeRequest{Token: "12345"}, pair.Token)
	testutil.RequireStatus(t, http.StatusBadRequest, w)

	w = tc.Do(http.MethodPost, "/api/v1/auth/disable-2fa", models.TwoFactorCodeRequest{Token: code()}, pair.Token)
	testutil.RequireStatus(t, http.StatusOK, w)
	stored := tc.GetUser(user)
	assert.False(t, stored.IsTwoFactorEnabled)
	assert.Nil(t, stored.TwoFactorSecret)

	actions := tc.AuditActions(user)
	assert.Contains(t, actions, models.AuditActionTwoFactorEnabled)
	assert.Contains(t, actions, models.AuditActionTwoFactorVerified)
	assert.Contains(t, actions, models.AuditActionTwoFactorDisabled)
}

func TestAuthHandler_SetupTwoFactorRequiresVerifiedEmail(t *testing.T) {
	tc := testutil.NewTestContext(t)
	user := tc.CreateTestUser("unverified", "unverified@example.com", testPassword, models.RoleUser)

	w := tc.Do(http.MethodPost, "/api/v1/auth/setup-2fa", nil, tc.GetTestJWT(user))
	testutil.RequireStatus(t, http.StatusForbidden, w)
	assert.Equal(t, "Please verify your email address first", testutil.Decode(t, w, nil).Message)
}

func TestAuthHandler_UpdateProfile(t *testing.T) {
	tests := []struct {
		name       string
		input      interface{}
		wantStatus int
		check      func(t *testing.T, user *models.User)
	}{
		{
			name:       "Name And Profile",
			input:      map[string]interface{}{"name": "renamed", "profile": map[string]string{"company": "Acme"}},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, user *models.User) {
				assert.Equal(t, "renamed", user.Name)
				assert.Equal(t, "Acme", user.Profile.Company)
				assert.Equal(t, "en", user.Profile.PreferredLanguage)
			},
		},
		{
			name:       "Empty Body",
			input:      map[string]interface{}{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Invalid Website",
			input:      map[string]interface{}{"profile": map[string]string{"website": "not a url"}},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := testutil.NewTestContext(t)
			user := tc.CreateVerifiedUser("profile", "profile@example.com", testPassword, models.RoleUser)

			w := tc.Do(http.MethodPatch, "/api/v1/auth/update-profile", tt.input, tc.GetTestJWT(user))
			testutil.RequireStatus(t, tt.wantStatus, w)
			if tt.check != nil {
				tt.check(t, tc.GetUser(user))
				assert.Contains(t, tc.AuditActions(user), models.AuditActionProfileUpdated)
			}
		})
	}
}

func TestAuthHandler_UpdatePreferences(t *testing.T) {
	tc := testutil.NewTestContext(t)
	user := tc.CreateVerifiedUser("prefs", "prefs@example.com", testPassword, models.RoleUser)
	token := tc.GetTestJWT(user)

	w := tc.Do(http.MethodPatch, "/api/v1/auth/update-preferences", map[string]interface{}{}, token)
	testutil.RequireStatus(t, http.StatusBadRequest, w)

	w = tc.Do(http.MethodPatch, "/api/v1/auth/update-preferences",
		map[string]interface{}{"preferences": map[string]string{"theme": "neon"}}, token)
	testutil.RequireStatus(t, http.StatusBadRequest, w)

	w = tc.Do(http.MethodPatch, "/api/v1/auth/update-preferences",
		map[string]interface{}{"preferences": map[string]interface{}{"theme": "dark", "marketingEmails": true}}, token)
	testutil.RequireStatus(t, http.StatusOK, w)

	var prefs models.Preferences
	testutil.Decode(t, w, &prefs)
	assert.Equal(t, "dark", prefs.Theme)
	assert.True(t, prefs.MarketingEmails)
	assert.Equal(t, prefs, tc.GetUser(user).Preferences)
}

func TestAuthHandler_ChangePassword(t *testing.T) {
	tc := testutil.NewTestContext(t)
	user := tc.CreateVerifiedUser("change", "change@example.com", testPassword, models.RoleUser)
	current := tc.GetTestJWT(user)
	other := tc.GetTestJWT(user)

	w := tc.Do(http.MethodPatch, "/api/v1/auth/change-password",
		models.ChangePasswordRequest{CurrentPassword: "wrong_password", NewPassword: "new_password"}, current)
	testutil.RequireStatus(t, http.StatusUnauthorized, w)
	assert.Equal(t, "Current password is incorrect", testutil.Decode(t, w, nil).Message)

	w = tc.Do(http.MethodPatch, "/api/v1/auth/change-password",
		models.ChangePasswordRequest{CurrentPassword: testPassword, NewPassword: "new_password"}, current)
	testutil.RequireStatus(t, http.StatusOK, w)

	testutil.RequireStatus(t, http.StatusOK, tc.Do(http.MethodGet, "/api/v1/auth/me", nil, current))
	testutil.RequireStatus(t, http.StatusUnauthorized, tc.Do(http.MethodGet, "/api/v1/auth/me", nil, other))

	status, _, _ := login(tc, user.Email, "new_password")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, tc.AuditActions(user), models.AuditActionPasswordChanged)
}

func TestAuthHandler_SessionsAndLogout(t *testing.T) {
	tc := testutil.NewTestContext(t)
	user := tc.CreateVerifiedUser("sessions", "sessions@example.com", testPassword, models.RoleUser)
	first := tc.GetTestJWT(user)
	second := tc.GetTestJWT(user)
	third := tc.GetTestJWT(user)

	w := tc.Do(http.MethodGet, "/api/v1/auth/sessions", nil, first)
	testutil.RequireStatus(t, http.StatusOK, w)
	var sessions []models.UserSession
	testutil.Decode(t, w, &sessions)
	assert.Len(t, sessions, 3)

	w = tc.Do(http.MethodPost, "/api/v1/auth/logout-all", nil, first)
	testutil.RequireStatus(t, http.StatusOK, w)
	var count models.CountResponse
	testutil.Decode(t, w, &count)
	assert.Equal(t, int64(2), count.Count)

	testutil.RequireStatus(t, http.StatusUnauthorized, tc.Do(http.MethodGet, "/api/v1/auth/me", nil, second))
	testutil.RequireStatus(t, http.StatusUnauthorized, tc.Do(http.MethodGet, "/api/v1/auth/me", nil, third))

	w = tc.Do(http.MethodPost, "/api/v1/auth/logout", nil, first)
	testutil.RequireStatus(t, http.StatusOK, w)
	w = tc.Do(http.MethodGet, "/api/v1/auth/me", nil, first)
	testutil.RequireStatus(t, http.StatusUnauthorized, w)
	assert.Equal(t, "Session has expired or been revoked", testutil.Decode(t, w, nil).Message)

	assert.Contains(t, tc.AuditActions(user), models.AuditActionLogout)
}

func TestAuthHandler_DeleteAccount(t *testing.T) {
	tc := testutil.NewTestContext(t)
	user := tc.CreateVerifiedUser("leaving", "leaving@example.com", testPassword, models.RoleUser)
	token := tc.GetTestJWT(user)

	w := tc.Do(http.MethodDelete, "/api/v1/auth/account", models.DeleteAccountRequest{Password: "wrong_password"}, token)
	testutil.RequireStatus(t, http.StatusUnauthorized, w)

	w = tc.Do(http.MethodDelete, "/api/v1/auth/account", models.DeleteAccountRequest{Password: testPassword}, token)
	testutil.RequireStatus(t, http.StatusOK, w)

	_, err := tc.UserRepo.GetByID(context.Background(), user.ID)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	tc.FlushAudit()
	var deleted *models.AuditLog
	for _, entry := range tc.AuditRepo.All() {
		if entry.Action == models.AuditActionUserDeleted {
			entry := entry
			deleted = &entry
		}
	}
	require.NotNil(t, deleted)
	assert.Nil(t, deleted.UserID)
	assert.Equal(t, user.ID.String(), deleted.Details["userId"])
}

func TestSessionEnforcement(t *testing.T) {
	tests := []struct {
		name       string
		enforce    bool
		wantStatus int
	}{
		{name: "Enforced", enforce: true, wantStatus: http.StatusUnauthorized},
		{name: "Stateless", enforce: false, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := testutil.NewTestContext(t, func(cfg *config.Config) {
				cfg.Auth.EnforceSessions = tt.enforce
			})
			admin := tc.CreateVerifiedUser("admin", "admin@example.com", testPassword, models.RoleAdmin)
			user := tc.CreateVerifiedUser("user", "user@example.com", testPassword, models.RoleUser)
			userToken := tc.GetTestJWT(user)

			testutil.RequireStatus(t, http.StatusOK, tc.Do(http.MethodGet, "/api/v1/auth/me", nil, userToken))

			w := tc.Do(http.MethodDelete, "/api/v1/admin/users/"+user.ID.String()+"/sessions", nil, tc.GetTestJWT(admin))
			testutil.RequireStatus(t, http.StatusOK, w)
			var count models.CountResponse
			testutil.Decode(t, w, &count)
			assert.Equal(t, int64(1), count.Count)

			w = tc.Do(http.MethodGet, "/api/v1/auth/me", nil, userToken)
			testutil.RequireStatus(t, tt.wantStatus, w)
			if tt.enforce {
				assert.Equal(t, "Session has expired or been revoked", testutil.Decode(t, w, nil).Message)
			}
		})
	}
}
