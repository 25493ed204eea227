package auth

import (
	"strings"
	"testing"
	"time"

	"authguard/internal/config"
	"authguard/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:             "access-secret",
		JWTExpiresIn:          15 * time.Minute,
		RefreshTokenSecret:    "refresh-secret",
		RefreshTokenExpiresIn: 7 * 24 * time.Hour,
		VerificationTokenTTL:  24 * time.Hour,
		PasswordResetTTL:      10 * time.Minute,
		TOTPIssuer:            "authguard-test",
	}
}

func testUser() *models.User {
	return &models.User{
		ID:                 uuid.New(),
		Name:               "Test User",
		Email:              "test@example.com",
		Role:               models.RoleAdmin,
		IsEmailVerified:    true,
		IsTwoFactorEnabled: true,
	}
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	svc := NewService(testAuthConfig())
	user := testUser()

	token, issued, err := svc.IssueAccessToken(user, false)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Verify(token, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.True(t, claims.IsAdmin())
	assert.True(t, claims.IsTwoFactorEnabled)
	assert.False(t, claims.IsTwoFactorVerified)
	assert.True(t, claims.EmailVerified)
	assert.Equal(t, issued.ID, claims.ID)

	id, err := claims.UserUUID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
}

func TestTokensAreUniquePerIssue(t *testing.T) {
	svc := NewService(testAuthConfig())
	user := testUser()

	a, _, err := svc.IssueAccessToken(user, true)
	require.NoError(t, err)
	b, _, err := svc.IssueAccessToken(user, true)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyRejectsSwappedSecrets(t *testing.T) {
	svc := NewService(testAuthConfig())
	user := testUser()

	access, refresh, err := svc.IssueTokenPair(user, true)
	require.NoError(t, err)

	// each verifies on its own
	_, err = svc.Verify(access, TokenAccess)
	require.NoError(t, err)
	_, err = svc.Verify(refresh, TokenRefresh)
	require.NoError(t, err)

	// but not as the other kind
	_, err = svc.Verify(access, TokenRefresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.Verify(refresh, TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsKindMismatchWithSharedSecret(t *testing.T) {
	cfg := testAuthConfig()
	issuer := NewService(cfg)
	refresh, err := issuer.IssueRefreshToken(uuid.New())
	require.NoError(t, err)

	// a verifier whose access secret equals the refresh secret still checks the type claim
	cfg.JWTSecret = cfg.RefreshTokenSecret
	verifier := NewService(cfg)
	_, err = verifier.Verify(refresh, TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyExpiredToken(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	issuer := NewService(testAuthConfig()).WithClock(func() time.Time { return past })

	token, _, err := issuer.IssueAccessToken(testUser(), true)
	require.NoError(t, err)

	verifier := NewService(testAuthConfig())
	_, err = verifier.Verify(token, TokenAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyInvalidTokens(t *testing.T) {
	svc := NewService(testAuthConfig())

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		UserID: uuid.NewString(),
		Type:   TokenAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.token"},
		{name: "alg none", token: unsigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(tt.token, TokenAccess)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestPasswordHashing(t *testing.T) {
	svc := NewService(testAuthConfig())

	hash, err := svc.HashPassword("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", hash)
	assert.NoError(t, svc.ComparePasswords(hash, "s3cret!"))
	assert.Error(t, svc.ComparePasswords(hash, "wrong"))
}

func TestOpaqueToken(t *testing.T) {
	raw, hash, err := NewOpaqueToken()
	require.NoError(t, err)

	assert.Len(t, raw, 64)
	assert.Len(t, hash, 64)
	assert.NotEqual(t, raw, hash)
	assert.False(t, strings.Contains(hash, raw))
	assert.Equal(t, hash, HashOpaqueToken(raw))

	raw2, _, err := NewOpaqueToken()
	require.NoError(t, err)
	assert.NotEqual(t, raw, raw2)
}

func TestCheckOpaqueExpiry(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	assert.NoError(t, CheckOpaqueExpiry(&future, now))
	assert.ErrorIs(t, CheckOpaqueExpiry(&past, now), ErrTokenExpired)
	assert.ErrorIs(t, CheckOpaqueExpiry(&now, now), ErrTokenExpired)
	assert.ErrorIs(t, CheckOpaqueExpiry(nil, now), ErrTokenExpired)
}

func TestExpiryHelpers(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := NewService(testAuthConfig()).WithClock(func() time.Time { return fixed })

	assert.Equal(t, fixed.Add(24*time.Hour), svc.VerificationExpiry())
	assert.Equal(t, fixed.Add(10*time.Minute), svc.PasswordResetExpiry())
}

func TestTOTP(t *testing.T) {
	svc := NewService(testAuthConfig())

	secret, url, err := svc.GenerateTOTP("test@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, secret)
	assert.True(t, strings.HasPrefix(url, "otpauth://totp/"))
	assert.Contains(t, url, "authguard-test")

	code, err := GenerateTOTPCode(secret, time.Now())
	require.NoError(t, err)
	assert.True(t, svc.ValidateTOTP(code, secret))
	assert.False(t, svc.ValidateTOTP("000000x", secret))
	assert.False(t, svc.ValidateTOTP(code, ""))
}
