package handlers

import (
	"math"
	"net/http"
	"time"

	"authguard/internal/apperrors"
	"authguard/internal/audit"
	"authguard/internal/lockout"
	"authguard/internal/models"
	"authguard/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	dashboardDays            = 30
	dashboardRecentEvents    = 5
	activityRecentAuditLogs  = 20
	activityRecentSecEvents  = 10
	defaultResolutionComment = "Resolved by admin"
)

var highSeverities = []models.SecuritySeverity{models.SecuritySeverityHigh, models.SecuritySeverityCritical}

// AdminHandler serves the audit trail, security events, sessions and user
// management to administrators
type AdminHandler struct {
	userRepo    repository.UserRepository
	auditRepo   repository.AuditLogRepository
	eventRepo   repository.SecurityEventRepository
	sessionRepo repository.SessionRepository
	recorder    *audit.Recorder
	now         func() time.Time
}

func NewAdminHandler(
	userRepo repository.UserRepository,
	auditRepo repository.AuditLogRepository,
	eventRepo repository.SecurityEventRepository,
	sessionRepo repository.SessionRepository,
	recorder *audit.Recorder,
) *AdminHandler {
	return &AdminHandler{
		userRepo:    userRepo,
		auditRepo:   auditRepo,
		eventRepo:   eventRepo,
		sessionRepo: sessionRepo,
		recorder:    recorder,
		now:         time.Now,
	}
}

// WithClock overrides the time source
func (h *AdminHandler) WithClock(now func() time.Time) *AdminHandler {
	h.now = now
	return h
}

// Dashboard godoc
// @Summary Security dashboard
// @Description Totals and daily login buckets over the last 30 days
// @Tags admin
// @Produce json
// @Success 200 {object} models.SuccessResponse{data=models.DashboardStats}
// @Failure 403 {object} models.ErrorResponse "Admin role required"
// @Security BearerAuth
// @Router /admin/dashboard [get]
func (h *AdminHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	now := h.now().UTC()
	since := now.AddDate(0, 0, -dashboardDays)
	unresolved := false
	active := true

	var stats models.DashboardStats
	var err error
	counts := []struct {
		dst *int
		fn  func() (int, error)
	}{
		{&stats.Users.Total, func() (int, error) { return h.userRepo.Count(ctx, repository.UserFilter{}) }},
		{&stats.Users.New, func() (int, error) {
			return h.userRepo.Count(ctx, repository.UserFilter{CreatedAfter: &since})
		}},
		{&stats.Sessions.Active, func() (int, error) {
			return h.sessionRepo.Count(ctx, repository.SessionFilter{IsActive: &active})
		}},
		{&stats.Logins.Successful, func() (int, error) {
			return h.auditRepo.Count(ctx, repository.AuditLogFilter{
				Actions: []models.AuditAction{models.AuditActionLoginSuccess}, From: &since,
			})
		}},
		{&stats.Logins.Failed, func() (int, error) {
			return h.auditRepo.Count(ctx, repository.AuditLogFilter{
				Actions: []models.AuditAction{models.AuditActionLoginFailed}, From: &since,
			})
		}},
		{&stats.Security.Total, func() (int, error) {
			return h.eventRepo.Count(ctx, repository.SecurityEventFilter{From: &since})
		}},
		{&stats.Security.Unresolved, func() (int, error) {
			return h.eventRepo.Count(ctx, repository.SecurityEventFilter{From: &since, Resolved: &unresolved})
		}},
		{&stats.Security.HighSeverity, func() (int, error) {
			return h.eventRepo.Count(ctx, repository.SecurityEventFilter{
				From: &since, Resolved: &unresolved, Severities: highSeverities,
			})
		}},
	}
	for _, count := range counts {
		if *count.dst, err = count.fn(); err != nil {
			_ = c.Error(err)
			return
		}
	}

	if attempts := stats.Logins.Successful + stats.Logins.Failed; attempts > 0 {
		stats.Logins.Ratio = math.Round(float64(stats.Logins.Successful)/float64(attempts)*10000) / 100
	}

	stats.DailyLoginStats, err = h.auditRepo.DailyLoginCounts(ctx, since, now)
	if err != nil {
		_ = c.Error(err)
		return
	}

	events, _, err := h.eventRepo.List(ctx, repository.SecurityEventFilter{
		Resolved:   &unresolved,
		Severities: highSeverities,
		Page:       repository.Page{Limit: dashboardRecentEvents},
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	if stats.RecentSecurityEvents, err = h.enrichEvents(c, events); err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusOK, "", stats)
}

// ListAuditLogs godoc
// @Summary List audit logs
// @Tags admin
// @Produce json
// @Param userId query string false "User id"
// @Param action query string false "Audit action"
// @Param severity query string false "info, warning, error or critical"
// @Param status query string false "success or failure"
// @Param startDate query string false "RFC 3339 or YYYY-MM-DD"
// @Param endDate query string false "RFC 3339 or YYYY-MM-DD"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} models.PaginatedResponse{data=[]models.AuditLog}
// @Security BearerAuth
// @Router /admin/audit-logs [get]
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	page, p := pagination(c)
	filter := repository.AuditLogFilter{Page: p}

	var err error
	if filter.UserID, err = uuidQuery(c, "userId"); err != nil {
		_ = c.Error(err)
		return
	}
	if raw := c.Query("action"); raw != "" {
		action := models.AuditAction(raw)
		if !action.Valid() {
			_ = c.Error(apperrors.BadRequest("Invalid action filter"))
			return
		}
		filter.Actions = []models.AuditAction{action}
	}
	if raw := c.Query("severity"); raw != "" {
		severity := models.AuditSeverity(raw)
		if !severity.Valid() {
			_ = c.Error(apperrors.BadRequest("Invalid severity filter"))
			return
		}
		filter.Severity = &severity
	}
	if raw := c.Query("status"); raw != "" {
		status := models.AuditStatus(raw)
		if status != models.AuditStatusSuccess && status != models.AuditStatusFailure {
			_ = c.Error(apperrors.BadRequest("Invalid status filter"))
			return
		}
		filter.Status = &status
	}
	if filter.From, err = timeQuery(c, "startDate"); err != nil {
		_ = c.Error(err)
		return
	}
	if filter.To, err = timeQuery(c, "endDate"); err != nil {
		_ = c.Error(err)
		return
	}

	logs, total, err := h.auditRepo.List(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	refs, err := userRefs(c.Request.Context(), h.userRepo, logs, func(l models.AuditLog) *uuid.UUID { return l.UserID })
	if err != nil {
		_ = c.Error(err)
		return
	}
	for i := range logs {
		if logs[i].UserID != nil {
			if ref, ok := refs[*logs[i].UserID]; ok {
				logs[i].User = &ref
			}
		}
	}

	respondPage(c, logs, len(logs), total, page, p)
}

// ListSecurityEvents godoc
// @Summary List security events
// @Tags admin
// @Produce json
// @Param userId query string false "User id"
// @Param eventType query string false "Event type"
// @Param severity query string false "low, medium, high or critical"
// @Param resolved query bool false "Resolution state"
// @Param startDate query string false "RFC 3339 or YYYY-MM-DD"
// @Param endDate query string false "RFC 3339 or YYYY-MM-DD"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} models.PaginatedResponse{data=[]models.SecurityEvent}
// @Security BearerAuth
// @Router /admin/security-events [get]
func (h *AdminHandler) ListSecurityEvents(c *gin.Context) {
	page, p := pagination(c)
	filter := repository.SecurityEventFilter{Page: p}

	var err error
	if filter.UserID, err = uuidQuery(c, "userId"); err != nil {
		_ = c.Error(err)
		return
	}
	if raw := c.Query("eventType"); raw != "" {
		eventType := models.SecurityEventType(raw)
		if !eventType.Valid() {
			_ = c.Error(apperrors.BadRequest("Invalid eventType filter"))
			return
		}
		filter.EventType = &eventType
	}
	if raw := c.Query("severity"); raw != "" {
		severity := models.SecuritySeverity(raw)
		if !severity.Valid() {
			_ = c.Error(apperrors.BadRequest("Invalid severity filter"))
			return
		}
		filter.Severities = []models.SecuritySeverity{severity}
	}
	if filter.Resolved, err = boolQuery(c, "resolved"); err != nil {
		_ = c.Error(err)
		return
	}
	if filter.From, err = timeQuery(c, "startDate"); err != nil {
		_ = c.Error(err)
		return
	}
	if filter.To, err = timeQuery(c, "endDate"); err != nil {
		_ = c.Error(err)
		return
	}

	events, total, err := h.eventRepo.List(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if events, err = h.enrichEvents(c, events); err != nil {
		_ = c.Error(err)
		return
	}

	respondPage(c, events, len(events), total, page, p)
}

func (h *AdminHandler) enrichEvents(c *gin.Context, events []models.SecurityEvent) ([]models.SecurityEvent, error) {
	refs, err := userRefs(c.Request.Context(), h.userRepo, events, func(e models.SecurityEvent) *uuid.UUID { return e.UserID })
	if err != nil {
		return nil, err
	}
	for i := range events {
		if events[i].UserID != nil {
			if ref, ok := refs[*events[i].UserID]; ok {
				events[i].User = &ref
			}
		}
	}
	if events == nil {
		events = []models.SecurityEvent{}
	}
	return events, nil
}

// ResolveSecurityEvent godoc
// @Summary Resolve a security event
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Security event id"
// @Param request body models.ResolveSecurityEventRequest false "Resolution notes"
// @Success 200 {object} models.SuccessResponse{data=models.SecurityEvent}
// @Failure 400 {object} models.ErrorResponse "Already resolved"
// @Failure 404 {object} models.ErrorResponse "Security event not found"
// @Security BearerAuth
// @Router /admin/security-events/{id}/resolve [patch]
func (h *AdminHandler) ResolveSecurityEvent(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	var req models.ResolveSecurityEventRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(err)
			return
		}
	}
	if req.Notes == "" {
		req.Notes = defaultResolutionComment
	}
	adminID, err := currentUserID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	event, err := h.eventRepo.Resolve(c.Request.Context(), id, adminID, req.Notes, h.now().UTC())
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, "Security event resolved", event)
}

// ListUserSessions godoc
// @Summary List user sessions
// @Tags admin
// @Produce json
// @Param userId query string false "User id"
// @Param isActive query bool false "Active state"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} models.PaginatedResponse{data=[]models.UserSession}
// @Security BearerAuth
// @Router /admin/user-sessions [get]
func (h *AdminHandler) ListUserSessions(c *gin.Context) {
	page, p := pagination(c)
	filter := repository.SessionFilter{Page: p}

	var err error
	if filter.UserID, err = uuidQuery(c, "userId"); err != nil {
		_ = c.Error(err)
		return
	}
	if filter.IsActive, err = boolQuery(c, "isActive"); err != nil {
		_ = c.Error(err)
		return
	}

	sessions, total, err := h.sessionRepo.List(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	refs, err := userRefs(c.Request.Context(), h.userRepo, sessions, func(s models.UserSession) *uuid.UUID { return &s.UserID })
	if err != nil {
		_ = c.Error(err)
		return
	}
	for i := range sessions {
		if ref, ok := refs[sessions[i].UserID]; ok {
			sessions[i].User = &ref
		}
	}

	respondPage(c, sessions, len(sessions), total, page, p)
}

// InvalidateSession godoc
// @Summary Invalidate one session
// @Tags admin
// @Produce json
// @Param id path string true "Session id"
// @Success 200 {object} models.SuccessResponse{data=models.UserSession}
// @Failure 404 {object} models.ErrorResponse "Session not found"
// @Security BearerAuth
// @Router /admin/user-sessions/{id} [delete]
func (h *AdminHandler) InvalidateSession(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	session, err := h.sessionRepo.Deactivate(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, "Session invalidated", session)
}

// InvalidateUserSessions godoc
// @Summary Invalidate every session of a user
// @Tags admin
// @Produce json
// @Param userId path string true "User id"
// @Success 200 {object} models.SuccessResponse{data=models.CountResponse}
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Security BearerAuth
// @Router /admin/users/{userId}/sessions [delete]
func (h *AdminHandler) InvalidateUserSessions(c *gin.Context) {
	userID, err := uuidParam(c, "userId")
	if err != nil {
		_ = c.Error(err)
		return
	}
	ctx := c.Request.Context()
	if _, err := h.userRepo.GetByID(ctx, userID); err != nil {
		_ = c.Error(err)
		return
	}

	count, err := h.sessionRepo.DeactivateAllForUser(ctx, userID, "")
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, "User sessions invalidated", models.CountResponse{Count: count})
}

// UserActivity godoc
// @Summary Recent activity of a user
// @Tags admin
// @Produce json
// @Param userId path string true "User id"
// @Success 200 {object} models.SuccessResponse{data=models.UserActivity}
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Security BearerAuth
// @Router /admin/users/{userId}/activity [get]
func (h *AdminHandler) UserActivity(c *gin.Context) {
	userID, err := uuidParam(c, "userId")
	if err != nil {
		_ = c.Error(err)
		return
	}
	ctx := c.Request.Context()

	user, err := h.userRepo.GetByID(ctx, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	activity := models.UserActivity{User: user.Summary(), LastLogin: user.LastLogin}
	active := true

	if activity.RecentAuditLogs, _, err = h.auditRepo.List(ctx, repository.AuditLogFilter{
		UserID: &userID, Page: repository.Page{Limit: activityRecentAuditLogs},
	}); err != nil {
		_ = c.Error(err)
		return
	}
	if activity.RecentSecurityEvents, _, err = h.eventRepo.List(ctx, repository.SecurityEventFilter{
		UserID: &userID, Page: repository.Page{Limit: activityRecentSecEvents},
	}); err != nil {
		_ = c.Error(err)
		return
	}
	if activity.ActiveSessions, err = h.sessionRepo.Count(ctx, repository.SessionFilter{UserID: &userID, IsActive: &active}); err != nil {
		_ = c.Error(err)
		return
	}
	if activity.LoginCount, err = h.auditRepo.Count(ctx, repository.AuditLogFilter{
		UserID: &userID, Actions: []models.AuditAction{models.AuditActionLoginSuccess},
	}); err != nil {
		_ = c.Error(err)
		return
	}
	if activity.FailedLoginCount, err = h.auditRepo.Count(ctx, repository.AuditLogFilter{
		UserID: &userID, Actions: []models.AuditAction{models.AuditActionLoginFailed},
	}); err != nil {
		_ = c.Error(err)
		return
	}
	if activity.RecentAuditLogs == nil {
		activity.RecentAuditLogs = []models.AuditLog{}
	}
	if activity.RecentSecurityEvents == nil {
		activity.RecentSecurityEvents = []models.SecurityEvent{}
	}

	respond(c, http.StatusOK, "", activity)
}

// ListUsers godoc
// @Summary List users
// @Tags admin
// @Produce json
// @Param role query string false "user or admin"
// @Param locked query bool false "Only currently locked accounts"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} models.PaginatedResponse{data=[]models.User}
// @Security BearerAuth
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, p := pagination(c)
	filter := repository.UserFilter{Page: p}

	if raw := c.Query("role"); raw != "" {
		role := models.Role(raw)
		if role != models.RoleUser && role != models.RoleAdmin {
			_ = c.Error(apperrors.BadRequest("Invalid role filter"))
			return
		}
		filter.Role = &role
	}
	locked, err := boolQuery(c, "locked")
	if err != nil {
		_ = c.Error(err)
		return
	}
	if locked != nil && *locked {
		now := h.now().UTC()
		filter.LockedAt = &now
	}

	users, total, err := h.userRepo.List(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	respondPage(c, users, len(users), total, page, p)
}

// UnlockUser godoc
// @Summary Clear a user's lockout
// @Tags admin
// @Produce json
// @Param userId path string true "User id"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Security BearerAuth
// @Router /admin/users/{userId}/unlock [patch]
func (h *AdminHandler) UnlockUser(c *gin.Context) {
	userID, err := uuidParam(c, "userId")
	if err != nil {
		_ = c.Error(err)
		return
	}
	adminID, err := currentUserID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	ctx := c.Request.Context()

	user, err := h.userRepo.GetByID(ctx, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.userRepo.UpdateLoginState(ctx, userID, lockout.State{}, nil); err != nil {
		_ = c.Error(err)
		return
	}

	recordAudit(c, h.recorder, models.AuditLog{
		UserID:   &user.ID,
		Action:   models.AuditActionAccountUnlocked,
		Severity: models.AuditSeverityCritical,
		Details:  models.Details{"unlockedBy": adminID.String(), "previousAttempts": user.LoginAttempts},
	})
	respond(c, http.StatusOK, "User unlocked", nil)
}

// UpdateUserRole godoc
// @Summary Change a user's role
// @Tags admin
// @Accept json
// @Produce json
// @Param userId path string true "User id"
// @Param request body models.UpdateRoleRequest true "New role"
// @Success 200 {object} models.SuccessResponse{data=models.UserSummary}
// @Failure 400 {object} models.ErrorResponse "Invalid role"
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Security BearerAuth
// @Router /admin/users/{userId}/role [patch]
func (h *AdminHandler) UpdateUserRole(c *gin.Context) {
	userID, err := uuidParam(c, "userId")
	if err != nil {
		_ = c.Error(err)
		return
	}
	var req models.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}
	adminID, err := currentUserID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if adminID == userID {
		_ = c.Error(apperrors.BadRequest("You cannot change your own role"))
		return
	}
	ctx := c.Request.Context()

	user, err := h.userRepo.GetByID(ctx, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	previous := user.Role
	if err := h.userRepo.UpdateRole(ctx, userID, req.Role); err != nil {
		_ = c.Error(err)
		return
	}
	user.Role = req.Role

	recordAudit(c, h.recorder, models.AuditLog{
		UserID:   &user.ID,
		Action:   models.AuditActionUserRoleChanged,
		Severity: models.AuditSeverityCritical,
		Details:  models.Details{"from": previous, "to": req.Role, "changedBy": adminID.String()},
	})
	respond(c, http.StatusOK, "User role updated", user.Summary())
}
