package middleware_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"authguard/internal/config"
	"authguard/internal/testutil"

	"github.com/stretchr/testify/assert"
)

func TestCredentialThrottleClientAddress(t *testing.T) {
	tests := []struct {
		name        string
		proxies     []string
		remoteIP    string
		wantAllowed int
	}{
		{name: "No Trusted Proxies", remoteIP: "203.0.113.9", wantAllowed: 2},
		{name: "Untrusted Peer", proxies: []string{"10.1.0.0/16"}, remoteIP: "203.0.113.9", wantAllowed: 2},
		{name: "Trusted Proxy", proxies: []string{"10.1.0.0/16"}, remoteIP: "10.1.0.5", wantAllowed: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := testutil.NewTestContext(t, func(cfg *config.Config) {
				cfg.RateLimit.AuthMax = 2
				cfg.API.TrustedProxies = tt.proxies
			})

			allowed := 0
			for i := 0; i < 6; i++ {
				req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/forgot-password",
					bytes.NewBufferString(`{"email":"someone@example.com"}`))
				req.Header.Set("Content-Type", "application/json")
				req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
				req.RemoteAddr = tt.remoteIP + ":40000"

				w := httptest.NewRecorder()
				tc.Router.ServeHTTP(w, req)
				if w.Code == http.StatusOK {
					allowed++
				} else {
					assert.Equal(t, http.StatusTooManyRequests, w.Code)
				}
			}
			assert.Equal(t, tt.wantAllowed, allowed)
		})
	}
}
