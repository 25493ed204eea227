package auth

import (
	"errors"
	"time"

	"authguard/internal/config"
	"authguard/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidToken indicates the token is malformed, badly signed or of the wrong kind
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired indicates the token has expired
	ErrTokenExpired = errors.New("token expired")
)

// TokenKind distinguishes access tokens from refresh tokens
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// ClaimsContextKey is the gin context key holding the verified *Claims
const ClaimsContextKey = "claims"

// Claims is the JWT payload. Refresh tokens only carry UserID and Type.
type Claims struct {
	UserID              string    `json:"userId"`
	Name                string    `json:"name,omitempty"`
	Email               string    `json:"email,omitempty"`
	Role                string    `json:"role,omitempty"`
	IsTwoFactorEnabled  bool      `json:"isTwoFactorEnabled,omitempty"`
	IsTwoFactorVerified bool      `json:"isTwoFactorVerified,omitempty"`
	EmailVerified       bool      `json:"emailVerified,omitempty"`
	Type                TokenKind `json:"type"`
	jwt.RegisteredClaims
}

// UserUUID parses the subject user id
func (c *Claims) UserUUID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.UserID)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}

// IsAdmin reports whether the token carries the admin role
func (c *Claims) IsAdmin() bool {
	return c.Role == string(models.RoleAdmin)
}

// Service issues and verifies credentials
type Service struct {
	config config.AuthConfig
	now    func() time.Time
}

// NewService creates a new authentication service
func NewService(cfg config.AuthConfig) *Service {
	return &Service{
		config: cfg,
		now:    time.Now,
	}
}

// WithClock replaces the time source, used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Now returns the service clock's current time
func (s *Service) Now() time.Time {
	return s.now()
}

// AccessTTL returns the access token lifetime
func (s *Service) AccessTTL() time.Duration {
	return s.config.JWTExpiresIn
}

// RefreshTTL returns the refresh token lifetime
func (s *Service) RefreshTTL() time.Duration {
	return s.config.RefreshTokenExpiresIn
}

// IssueAccessToken signs an access token for user. twoFactorVerified should
// be true unless the user has 2FA enabled and has not yet presented a code.
func (s *Service) IssueAccessToken(user *models.User, twoFactorVerified bool) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		UserID:              user.ID.String(),
		Name:                user.Name,
		Email:               user.Email,
		Role:                string(user.Role),
		IsTwoFactorEnabled:  user.IsTwoFactorEnabled,
		IsTwoFactorVerified: twoFactorVerified,
		EmailVerified:       user.IsEmailVerified,
		Type:                TokenAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.JWTExpiresIn)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// IssueRefreshToken signs a refresh token with the refresh secret
func (s *Service) IssueRefreshToken(userID uuid.UUID) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID: userID.String(),
		Type:   TokenRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.RefreshTokenExpiresIn)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.RefreshTokenSecret))
}

// IssueTokenPair issues an access token and a refresh token for user
func (s *Service) IssueTokenPair(user *models.User, twoFactorVerified bool) (string, string, error) {
	access, _, err := s.IssueAccessToken(user, twoFactorVerified)
	if err != nil {
		return "", "", err
	}
	refresh, err := s.IssueRefreshToken(user.ID)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// Verify validates a token of the given kind and returns its claims.
// Expiry yields ErrTokenExpired, any other failure ErrInvalidToken.
func (s *Service) Verify(tokenString string, kind TokenKind) (*Claims, error) {
	secret := []byte(s.config.JWTSecret)
	if kind == TokenRefresh {
		secret = []byte(s.config.RefreshTokenSecret)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid || claims.Type != kind {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// HashPassword hashes a password using bcrypt
func (s *Service) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// ComparePasswords compares a hashed password with a plain text password
func (s *Service) ComparePasswords(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ClaimsFromContext retrieves the verified access token claims from the gin context
func ClaimsFromContext(c *gin.Context) *Claims {
	v, exists := c.Get(ClaimsContextKey)
	if !exists {
		return nil
	}
	if claims, ok := v.(*Claims); ok {
		return claims
	}
	return nil
}
