// Package routes handles the setup and configuration of API routes
package routes

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "authguard/docs" // Import swagger docs
	"authguard/internal/api/handlers"
	"authguard/internal/api/middleware"
	"authguard/internal/audit"
	"authguard/internal/auth"
	"authguard/internal/config"
	"authguard/internal/email"
	"authguard/internal/lockout"
	"authguard/internal/logger"
	"authguard/internal/ratelimit"
	"authguard/internal/repository"
	"authguard/internal/repository/postgres"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Dependencies are the collaborators the API is built from
type Dependencies struct {
	Users     repository.UserRepository
	AuditLogs repository.AuditLogRepository
	Events    repository.SecurityEventRepository
	Sessions  repository.SessionRepository

	// DB is pinged by the health check; nil skips the check
	DB handlers.Pinger
	// Email defaults to the SMTP service built from config
	Email email.EmailSender
	// Locator resolves client IPs for sessions and events; nil disables it
	Locator audit.GeoLocator
	// Sinks receive records in addition to the repositories
	Sinks []audit.Sink
	// Limits defaults to a manager built from the rate limit config
	Limits *ratelimit.Manager
	// Now overrides the clock of every time-dependent component
	Now func() time.Time
}

// PostgresDependencies wires the Postgres repositories over db
func PostgresDependencies(db *sql.DB) Dependencies {
	return Dependencies{
		Users:     postgres.NewUserRepository(db),
		AuditLogs: postgres.NewAuditLogRepository(db),
		Events:    postgres.NewSecurityEventRepository(db),
		Sessions:  postgres.NewSessionRepository(db),
		DB:        db,
	}
}

// App is the assembled HTTP API and the services behind it
type App struct {
	Engine      *gin.Engine
	Recorder    *audit.Recorder
	Auth        *auth.Service
	Sessions    *audit.SessionTracker
	Limits      *ratelimit.Manager
	RateLimiter *middleware.RateLimiter
}

// Close drains the audit queue and releases the rate limit backend
func (a *App) Close(ctx context.Context) error {
	return errors.Join(a.Recorder.Close(ctx), a.Limits.Close())
}

// SetupRoutes configures all API routes and their handlers
func SetupRoutes(cfg *config.Config, deps Dependencies) *App {
	authService := auth.NewService(cfg.Auth)
	sessions := audit.NewSessionTracker(deps.Sessions, deps.Locator, cfg.Auth.RefreshTokenExpiresIn)
	if deps.Now != nil {
		authService.WithClock(deps.Now)
		sessions.WithClock(deps.Now)
	}

	sinks := append([]audit.Sink{audit.NewStoreSink(deps.AuditLogs, deps.Events)}, deps.Sinks...)
	recorder := audit.NewRecorder(cfg.Audit, deps.Locator, sinks...)
	if deps.Now != nil {
		recorder.WithClock(deps.Now)
	}

	emailService := deps.Email
	if emailService == nil {
		emailService = email.NewService(cfg.Email)
	}
	limits := deps.Limits
	if limits == nil {
		limits = ratelimit.NewManager(cfg.RateLimit)
	}
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit)
	policy := lockout.NewPolicy(cfg.Auth.MaxLoginAttempts, cfg.Auth.LockTime)

	authMiddleware := middleware.NewAuthMiddleware(authService, sessions, deps.Users, cfg.Auth.EnforceSessions)
	authRateLimit := middleware.AuthRateLimit(limits, cfg.RateLimit)

	healthHandler := handlers.NewHealthHandler(deps.DB)
	authHandler := handlers.NewAuthHandler(
		deps.Users,
		authService,
		sessions,
		recorder,
		emailService,
		policy,
		cfg.Auth.EnforceSessions,
	)
	adminHandler := handlers.NewAdminHandler(deps.Users, deps.AuditLogs, deps.Events, deps.Sessions, recorder)
	if deps.Now != nil {
		adminHandler.WithClock(deps.Now)
	}

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.API.TrustedProxies); err != nil {
		log.WithError(err).Warn("Ignoring invalid trusted proxies")
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(logger.GinLogger(), gin.Recovery(), middleware.ErrorHandler())

	// Routes without rate limiting
	r.GET("/health", healthHandler.Health)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	v1.GET("/health", healthHandler.Health)
	v1.Use(
		rateLimiter.Middleware(),
		middleware.SuspiciousActivity(recorder),
		middleware.RequestAudit(recorder),
	)
	{
		public := v1.Group("/auth")
		{
			public.POST("/register", authRateLimit, authHandler.Register)
			public.POST("/login", authRateLimit, authHandler.Login)
			public.POST("/verify-email", authHandler.VerifyEmail)
			public.POST("/resend-verification", authRateLimit, authHandler.ResendVerification)
			public.POST("/forgot-password", authRateLimit, authHandler.ForgotPassword)
			public.POST("/reset-password", authHandler.ResetPassword)
			public.POST("/verify-2fa", authHandler.VerifyTwoFactor)
			public.POST("/refresh-token", authHandler.RefreshToken)
		}

		// Auth routes (requires authentication)
		account := v1.Group("/auth")
		account.Use(authMiddleware.Authenticate(), authMiddleware.SessionActivity())
		{
			account.GET("/me", authHandler.Me)
			account.PATCH("/update-profile", authHandler.UpdateProfile)
			account.PATCH("/update-preferences", authHandler.UpdatePreferences)
			account.PATCH("/change-password", authHandler.ChangePassword)
			account.POST("/setup-2fa", authMiddleware.RequireVerifiedEmail(), authHandler.SetupTwoFactor)
			account.POST("/disable-2fa", authHandler.DisableTwoFactor)
			account.POST("/logout", authHandler.Logout)
			account.POST("/logout-all", authHandler.LogoutAll)
			account.GET("/sessions", authHandler.Sessions)
			account.DELETE("/account", authHandler.DeleteAccount)
		}

		// Admin-only routes
		admin := v1.Group("/admin")
		admin.Use(
			authMiddleware.Authenticate(),
			authMiddleware.SessionActivity(),
			authMiddleware.AuthorizeRoles("admin"),
		)
		{
			admin.GET("/dashboard", adminHandler.Dashboard)
			admin.GET("/audit-logs", adminHandler.ListAuditLogs)
			admin.GET("/security-events", adminHandler.ListSecurityEvents)
			admin.PATCH("/security-events/:id/resolve", adminHandler.ResolveSecurityEvent)
			admin.GET("/user-sessions", adminHandler.ListUserSessions)
			admin.DELETE("/user-sessions/:id", adminHandler.InvalidateSession)
			admin.GET("/users", adminHandler.ListUsers)
			admin.DELETE("/users/:userId/sessions", adminHandler.InvalidateUserSessions)
			admin.GET("/users/:userId/activity", adminHandler.UserActivity)
			admin.PATCH("/users/:userId/unlock", adminHandler.UnlockUser)
			admin.PATCH("/users/:userId/role", adminHandler.UpdateUserRole)
		}
	}

	return &App{
		Engine:      r,
		Recorder:    recorder,
		Auth:        authService,
		Sessions:    sessions,
		Limits:      limits,
		RateLimiter: rateLimiter,
	}
}
