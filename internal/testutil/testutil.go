// Package testutil provides utilities for testing
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"authguard/internal/api/routes"
	"authguard/internal/audit"
	"authguard/internal/config"
	"authguard/internal/models"
	"authguard/internal/repository/memory"
	"authguard/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// LoadTestConfig returns the defaults plus test secrets, with throttling
// loose enough not to interfere with tests
func LoadTestConfig() *config.Config {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-access-secret"
	cfg.Auth.RefreshTokenSecret = "test-refresh-secret"
	cfg.RateLimit.Requests = 100000
	cfg.RateLimit.Burst = 100000
	cfg.RateLimit.AuthMax = 100000
	cfg.Jobs.Enabled = false
	cfg.Audit.QueueSize = 4096
	cfg.Audit.WriteTimeout = time.Second
	return cfg
}

// Clock is a manually advanced time source
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts the clock at now, truncated to the second so JWT
// timestamps round-trip exactly
func NewClock() *Clock {
	return &Clock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SentEmail is one message captured by MockEmailService
type SentEmail struct {
	Kind  string
	To    string
	Name  string
	Token string
}

// MockEmailService is a mock implementation of the email service for testing
type MockEmailService struct {
	mu   sync.Mutex
	sent []SentEmail
	Err  error
}

func NewMockEmailService() *MockEmailService {
	return &MockEmailService{}
}

func (s *MockEmailService) record(kind, to, name, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, SentEmail{Kind: kind, To: to, Name: name, Token: token})
	return s.Err
}

func (s *MockEmailService) SendVerificationEmail(to, name, token string) error {
	return s.record("verification", to, name, token)
}

func (s *MockEmailService) SendPasswordResetEmail(to, name, token string) error {
	return s.record("password_reset", to, name, token)
}

func (s *MockEmailService) SendTwoFactorSetupEmail(to, name, secret string) error {
	return s.record("two_factor_setup", to, name, secret)
}

// Sent returns the captured messages
func (s *MockEmailService) Sent() []SentEmail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentEmail(nil), s.sent...)
}

// Last returns the most recent message of kind sent to address
func (s *MockEmailService) Last(kind, to string) (SentEmail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.sent) - 1; i >= 0; i-- {
		if s.sent[i].Kind == kind && s.sent[i].To == to {
			return s.sent[i], true
		}
	}
	return SentEmail{}, false
}

// TestContext holds common test dependencies
type TestContext struct {
	T         *testing.T
	Config    *config.Config
	Clock     *Clock
	UserRepo  *memory.UserRepository
	AuditRepo *memory.AuditLogRepository
	EventRepo *memory.SecurityEventRepository
	SessRepo  *memory.SessionRepository
	Email     *MockEmailService
	App       *routes.App
	Router    *gin.Engine
}

// NewTestContext builds the full API over in-memory repositories. Options
// adjust the configuration before the routes are assembled.
func NewTestContext(t *testing.T, opts ...func(*config.Config)) *TestContext {
	t.Helper()

	gin.SetMode(gin.TestMode)
	validation.Initialize()

	cfg := LoadTestConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	tc := &TestContext{
		T:         t,
		Config:    cfg,
		Clock:     NewClock(),
		UserRepo:  memory.NewUserRepository(),
		AuditRepo: memory.NewAuditLogRepository(),
		EventRepo: memory.NewSecurityEventRepository(),
		SessRepo:  memory.NewSessionRepository(),
		Email:     NewMockEmailService(),
	}

	tc.App = routes.SetupRoutes(cfg, routes.Dependencies{
		Users:     tc.UserRepo,
		AuditLogs: tc.AuditRepo,
		Events:    tc.EventRepo,
		Sessions:  tc.SessRepo,
		Email:     tc.Email,
		Now:       tc.Clock.Now,
	})
	tc.Router = tc.App.Engine

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tc.App.Close(ctx); err != nil {
			t.Errorf("Failed to close app: %v", err)
		}
	})

	return tc
}

// CreateTestUser creates a user with the given details and returns it
func (tc *TestContext) CreateTestUser(name, email, password string, role models.Role) *models.User {
	tc.T.Helper()

	hashed, err := tc.App.Auth.HashPassword(password)
	require.NoError(tc.T, err, "Failed to hash password")

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hashed,
		Role:         role,
		Profile:      models.DefaultProfile(),
		Preferences:  models.DefaultPreferences(),
	}
	err = tc.UserRepo.Create(context.Background(), user)
	require.NoError(tc.T, err, "Failed to create test user")

	return user
}

// CreateVerifiedUser creates a user whose email is already verified
func (tc *TestContext) CreateVerifiedUser(name, email, password string, role models.Role) *models.User {
	tc.T.Helper()
	user := tc.CreateTestUser(name, email, password, role)
	tc.MarkEmailVerified(user)
	return user
}

// MarkEmailVerified marks a user's email as verified
func (tc *TestContext) MarkEmailVerified(user *models.User) {
	tc.T.Helper()
	err := tc.UserRepo.MarkEmailVerified(context.Background(), user.ID)
	require.NoError(tc.T, err, "Failed to mark email as verified")
	user.IsEmailVerified = true
}

// GetUser reloads a user from the repository
func (tc *TestContext) GetUser(user *models.User) *models.User {
	tc.T.Helper()
	got, err := tc.UserRepo.GetByID(context.Background(), user.ID)
	require.NoError(tc.T, err, "Failed to get user")
	return got
}

// GetTestJWT issues a verified token pair for user and records the session
// behind it, returning the access token
func (tc *TestContext) GetTestJWT(user *models.User) string {
	tc.T.Helper()
	access, _ := tc.GetTestTokens(user)
	return access
}

// GetTestTokens issues a verified token pair for user with a session
func (tc *TestContext) GetTestTokens(user *models.User) (string, string) {
	tc.T.Helper()

	access, refresh, err := tc.App.Auth.IssueTokenPair(user, true)
	require.NoError(tc.T, err, "Failed to generate test JWT")
	_, err = tc.App.Sessions.Create(context.Background(), user.ID, access, refresh, audit.RequestContext{IPAddress: "192.0.2.1", UserAgent: "authguard-test"})
	require.NoError(tc.T, err, "Failed to create test session")
	return access, refresh
}

// Do sends a request through the router. body may be nil, a string or any
// JSON-encodable value.
func (tc *TestContext) Do(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	tc.T.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(tc.T, err, "Failed to encode request body")
		reader = bytes.NewBuffer(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", "authguard-test")

	w := httptest.NewRecorder()
	tc.Router.ServeHTTP(w, req)
	return w
}

// FlushAudit waits until every queued audit record has been written
func (tc *TestContext) FlushAudit() {
	tc.T.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(tc.T, tc.App.Recorder.Flush(ctx), "Failed to flush audit recorder")
}

// AuditActions returns the recorded actions for user in write order
func (tc *TestContext) AuditActions(user *models.User) []models.AuditAction {
	tc.T.Helper()
	tc.FlushAudit()

	var actions []models.AuditAction
	for _, entry := range tc.AuditRepo.All() {
		if entry.UserID != nil && *entry.UserID == user.ID {
			actions = append(actions, entry.Action)
		}
	}
	return actions
}

// Envelope is the success response with a raw data payload
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

// Decode parses the response envelope and, when v is non-nil, its data
func Decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) Envelope {
	t.Helper()

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "Failed to decode response: %s", w.Body.String())
	if v != nil {
		require.NoError(t, json.Unmarshal(env.Data, v), "Failed to decode response data")
	}
	return env
}

// RequireStatus fails the test with the response body when the status differs
func RequireStatus(t *testing.T, want int, w *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, want, w.Code, "unexpected status %d (%s): %s", w.Code, http.StatusText(w.Code), w.Body.String())
}
