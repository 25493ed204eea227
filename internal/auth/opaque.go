package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const opaqueTokenBytes = 32

// NewOpaqueToken returns a random token for email delivery and the hash to persist.
func NewOpaqueToken() (raw string, hash string, err error) {
	b := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	raw = hex.EncodeToString(b)
	return raw, HashOpaqueToken(raw), nil
}

// HashOpaqueToken returns the sha256 hex digest stored in place of raw
func HashOpaqueToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// CheckOpaqueExpiry returns ErrTokenExpired when expires is missing or not after now
func CheckOpaqueExpiry(expires *time.Time, now time.Time) error {
	if expires == nil || !expires.After(now) {
		return ErrTokenExpired
	}
	return nil
}

// VerificationExpiry returns the expiry for a verification token issued now
func (s *Service) VerificationExpiry() time.Time {
	return s.now().Add(s.config.VerificationTokenTTL)
}

// PasswordResetExpiry returns the expiry for a reset token issued now
func (s *Service) PasswordResetExpiry() time.Time {
	return s.now().Add(s.config.PasswordResetTTL)
}
