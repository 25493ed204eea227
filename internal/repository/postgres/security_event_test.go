package postgres_test

import (
	"context"
	"testing"
	"time"

	"authguard/internal/models"
	"authguard/internal/repository"
	"authguard/internal/repository/postgres"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityEventRepository_CreateListResolve(t *testing.T) {
	testDB := setupDB(t)
	users := postgres.NewUserRepository(testDB)
	repo := postgres.NewSecurityEventRepository(testDB)
	ctx := context.Background()

	admin := createUser(t, users, "admin@example.com")
	high := &models.SecurityEvent{
		EventType: models.SecurityEventBruteForceAttempt,
		Severity:  models.SecuritySeverityHigh,
		IPAddress: "10.0.0.1",
		Location:  &models.Location{Country: "SE", City: "Stockholm"},
		Details:   models.Details{"attempts": 5},
	}
	low := &models.SecurityEvent{
		EventType: models.SecurityEventUnusualDevice,
		Severity:  models.SecuritySeverityLow,
	}
	require.NoError(t, repo.Create(ctx, high))
	require.NoError(t, repo.Create(ctx, low))

	got, err := repo.GetByID(ctx, high.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Location)
	assert.Equal(t, "Stockholm", got.Location.City)
	assert.EqualValues(t, 5, got.Details["attempts"])

	unresolved := false
	events, total, err := repo.List(ctx, repository.SecurityEventFilter{
		Severities: []models.SecuritySeverity{models.SecuritySeverityHigh, models.SecuritySeverityCritical},
		Resolved:   &unresolved,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, high.ID, events[0].ID)

	resolved, err := repo.Resolve(ctx, high.ID, admin.ID, "handled", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	assert.Equal(t, "handled", resolved.Notes)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, admin.ID, *resolved.ResolvedBy)

	_, err = repo.Resolve(ctx, high.ID, admin.ID, "again", time.Now().UTC())
	assert.ErrorIs(t, err, repository.ErrAlreadyResolved)

	_, err = repo.Resolve(ctx, uuid.New(), admin.ID, "", time.Now().UTC())
	assert.ErrorIs(t, err, repository.ErrSecurityEventNotFound)
}
