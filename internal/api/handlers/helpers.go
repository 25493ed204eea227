// Package handlers implements the HTTP handlers of the auth and admin API
package handlers

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"authguard/internal/apperrors"
	"authguard/internal/audit"
	"authguard/internal/auth"
	"authguard/internal/models"
	"authguard/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	// maxPage keeps the row offset within an int32
	maxPage = math.MaxInt32 / maxPageLimit
)

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, models.SuccessResponse{Success: true, Message: message, Data: data})
}

// pagination reads page and limit; bad values fall back to the defaults
func pagination(c *gin.Context) (int, repository.Page) {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, repository.Page{Limit: limit, Offset: (page - 1) * limit}
}

func respondPage(c *gin.Context, data interface{}, count, total, page int, p repository.Page) {
	c.JSON(http.StatusOK, models.PaginatedResponse{
		Success:     true,
		Count:       count,
		Total:       total,
		TotalPages:  int(math.Ceil(float64(total) / float64(p.Limit))),
		CurrentPage: page,
		Data:        data,
	})
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, error) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.InvalidID(raw)
	}
	return id, nil
}

// uuidQuery parses an optional id filter
func uuidQuery(c *gin.Context, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperrors.InvalidID(raw)
	}
	return &id, nil
}

// timeQuery accepts RFC 3339 timestamps or plain dates
func timeQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperrors.BadRequest("Invalid date for " + name)
}

func boolQuery(c *gin.Context, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperrors.BadRequest("Invalid value for " + name)
	}
	return &b, nil
}

func currentUserID(c *gin.Context) (uuid.UUID, error) {
	claims := auth.ClaimsFromContext(c)
	if claims == nil {
		return uuid.Nil, apperrors.Unauthenticated("Not authorized to access this route")
	}
	return claims.UserUUID()
}

// recordAudit submits entry with the request's client details and marks the
// request as audited
func recordAudit(c *gin.Context, recorder *audit.Recorder, entry models.AuditLog) {
	rc := audit.FromGin(c)
	entry.IPAddress = rc.IPAddress
	entry.UserAgent = rc.UserAgent
	recorder.LogAudit(c.Request.Context(), entry)
	audit.MarkRecorded(c)
}

func recordSecurityEvent(c *gin.Context, recorder *audit.Recorder, event models.SecurityEvent) {
	rc := audit.FromGin(c)
	event.IPAddress = rc.IPAddress
	event.UserAgent = rc.UserAgent
	recorder.LogSecurityEvent(c.Request.Context(), event)
}

func userIDs[T any](items []T, id func(T) *uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if uid := id(item); uid != nil {
			if _, ok := seen[*uid]; !ok {
				seen[*uid] = struct{}{}
				ids = append(ids, *uid)
			}
		}
	}
	return ids
}

func userRefs[T any](ctx context.Context, users repository.UserRepository, items []T, id func(T) *uuid.UUID) (map[uuid.UUID]models.UserRef, error) {
	ids := userIDs(items, id)
	if len(ids) == 0 {
		return map[uuid.UUID]models.UserRef{}, nil
	}
	return users.Refs(ctx, ids)
}
