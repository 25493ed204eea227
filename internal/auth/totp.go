package auth

import (
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var totpValidateOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// GenerateTOTP creates a new base32 secret and its otpauth:// URL
func (s *Service) GenerateTOTP(accountName string) (secret string, url string, err error) {
	issuer := s.config.TOTPIssuer
	if issuer == "" {
		issuer = "authguard"
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		SecretSize:  20,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// ValidateTOTP checks a six digit code against secret, allowing one step of skew
func (s *Service) ValidateTOTP(code, secret string) bool {
	code = strings.TrimSpace(code)
	if code == "" || secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, s.now().UTC(), totpValidateOpts)
	return err == nil && ok
}

// GenerateTOTPCode returns the current code for secret at t
func GenerateTOTPCode(secret string, t time.Time) (string, error) {
	return totp.GenerateCode(secret, t)
}
