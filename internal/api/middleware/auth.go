package middleware

import (
	"fmt"

	"authguard/internal/apperrors"
	"authguard/internal/audit"
	"authguard/internal/auth"
	"authguard/internal/repository"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// AuthMiddleware guards routes with Bearer access tokens
type AuthMiddleware struct {
	authService *auth.Service
	sessions    *audit.SessionTracker
	userRepo    repository.UserRepository
	// enforceSessions rejects tokens whose session was revoked or expired
	enforceSessions bool
}

func NewAuthMiddleware(authService *auth.Service, sessions *audit.SessionTracker, userRepo repository.UserRepository, enforceSessions bool) *AuthMiddleware {
	return &AuthMiddleware{
		authService:     authService,
		sessions:        sessions,
		userRepo:        userRepo,
		enforceSessions: enforceSessions,
	}
}

// Authenticate verifies the access token and stores its claims. Tokens for
// accounts with two-factor enabled must have passed verification.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, token, err := m.verify(c)
		if err != nil {
			abort(c, err)
			return
		}

		if claims.IsTwoFactorEnabled && !claims.IsTwoFactorVerified {
			abort(c, apperrors.Unauthenticated("Two-factor authentication required").WithCode("two_factor_required"))
			return
		}

		c.Set(auth.ClaimsContextKey, claims)
		c.Set(auth.TokenContextKey, token)
		c.Next()
	}
}

func (m *AuthMiddleware) verify(c *gin.Context) (*auth.Claims, string, error) {
	token := auth.BearerToken(c)
	if token == "" {
		return nil, "", apperrors.Unauthenticated("Not authorized to access this route")
	}

	claims, err := m.authService.Verify(token, auth.TokenAccess)
	if err != nil {
		return nil, "", err
	}

	if m.enforceSessions {
		valid, err := m.sessions.IsValid(c.Request.Context(), token)
		if err != nil {
			return nil, "", err
		}
		if !valid {
			return nil, "", apperrors.Unauthenticated("Session has expired or been revoked")
		}
	}
	return claims, token, nil
}

// AuthorizeRoles allows only tokens whose role is listed
func (m *AuthMiddleware) AuthorizeRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := auth.ClaimsFromContext(c)
		if claims == nil {
			abort(c, apperrors.Unauthenticated("Not authorized to access this route"))
			return
		}
		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}
		abort(c, apperrors.Forbidden(fmt.Sprintf("User role %s is not authorized to access this route", claims.Role)))
	}
}

// RequireVerifiedEmail reads the current user since the token may predate
// verification
func (m *AuthMiddleware) RequireVerifiedEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := auth.ClaimsFromContext(c)
		if claims == nil {
			abort(c, apperrors.Unauthenticated("Not authorized to access this route"))
			return
		}
		if claims.EmailVerified {
			c.Next()
			return
		}

		userID, err := claims.UserUUID()
		if err != nil {
			abort(c, err)
			return
		}
		user, err := m.userRepo.GetByID(c.Request.Context(), userID)
		if err != nil {
			abort(c, err)
			return
		}
		if !user.IsEmailVerified {
			abort(c, apperrors.Forbidden("Please verify your email address first"))
			return
		}
		c.Next()
	}
}

// SessionActivity bumps last_active_at for the session behind the request
func (m *AuthMiddleware) SessionActivity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := auth.TokenFromContext(c); token != "" {
			if err := m.sessions.Touch(c.Request.Context(), token); err != nil {
				log.WithError(err).Debug("Failed to touch session")
			}
		}
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
