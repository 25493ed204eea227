package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "access-secret")
	t.Setenv("REFRESH_TOKEN_SECRET", "refresh-secret")
}

// TestLoadFromEnv tests loading configuration from environment variables
func TestLoadFromEnv(t *testing.T) {
	setSecrets(t)
	t.Setenv("PORT", "8080")
	t.Setenv("DB_NAME", "authguard_test")
	t.Setenv("JWT_EXPIRES_IN", "30m")
	t.Setenv("LOCK_TIME", "3600000")
	t.Setenv("MAX_LOGIN_ATTEMPTS", "3")
	t.Setenv("AUTH_ENFORCE_SESSIONS", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.API.Port)
	require.Equal(t, "localhost", cfg.Database.Host)
	require.Equal(t, 5432, cfg.Database.Port)
	require.Equal(t, "authguard_test", cfg.Database.DBName)
	require.Equal(t, "access-secret", cfg.Auth.JWTSecret)
	require.Equal(t, "refresh-secret", cfg.Auth.RefreshTokenSecret)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWTExpiresIn)
	require.Equal(t, time.Hour, cfg.Auth.LockTime)
	require.Equal(t, 3, cfg.Auth.MaxLoginAttempts)
	require.False(t, cfg.Auth.EnforceSessions)
	require.Equal(t, 10*time.Minute, cfg.Auth.PasswordResetTTL)
}

func TestLoadDefaults(t *testing.T) {
	setSecrets(t)

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "5000", cfg.API.Port)
	require.Equal(t, 15*time.Minute, cfg.Auth.JWTExpiresIn)
	require.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTokenExpiresIn)
	require.Equal(t, 24*time.Hour, cfg.Auth.VerificationTokenTTL)
	require.Equal(t, 5, cfg.Auth.MaxLoginAttempts)
	require.True(t, cfg.Auth.EnforceSessions)
	require.Equal(t, 15*time.Minute, cfg.RateLimit.AuthWindow)
	require.Equal(t, 100, cfg.RateLimit.AuthMax)
}

func TestLoadFileThenEnv(t *testing.T) {
	setSecrets(t)
	t.Setenv("DB_HOST", "db.internal")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
api:
  port: "9090"
database:
  host: file-host
  name: from_file
auth:
  lock_time: 2h
  max_login_attempts: 7
log:
  format: json
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "9090", cfg.API.Port)
	require.Equal(t, "from_file", cfg.Database.DBName)
	// environment wins over the file
	require.Equal(t, "db.internal", cfg.Database.Host)
	require.Equal(t, 2*time.Hour, cfg.Auth.LockTime)
	require.Equal(t, 7, cfg.Auth.MaxLoginAttempts)
	require.Equal(t, "json", cfg.Log.Format)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		access  string
		refresh string
		wantErr string
	}{
		{name: "missing access secret", refresh: "r", wantErr: "JWT_SECRET is required"},
		{name: "missing refresh secret", access: "a", wantErr: "REFRESH_TOKEN_SECRET is required"},
		{name: "identical secrets", access: "same", refresh: "same", wantErr: "must differ"},
		{name: "valid", access: "a", refresh: "r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Auth.JWTSecret = tt.access
			cfg.Auth.RefreshTokenSecret = tt.refresh
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTrustedProxies(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		want    []string
		wantErr bool
	}{
		{name: "unset trusts nobody", env: "", want: nil},
		{name: "list", env: "10.0.0.1, 172.16.0.0/12,,", want: []string{"10.0.0.1", "172.16.0.0/12"}},
		{name: "invalid entry", env: "10.0.0.1,proxy.internal", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setSecrets(t)
			t.Setenv("TRUSTED_PROXIES", tt.env)

			cfg, err := Load("")
			if tt.wantErr {
				require.ErrorContains(t, err, "invalid trusted proxy")
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, cfg.API.TrustedProxies)
		})
	}
}
